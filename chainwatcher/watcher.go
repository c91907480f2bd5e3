// Package chainwatcher polls the wallet RPC for a channel's current
// on-chain state and feeds the result into a channelmanager.Manager's
// ProcessOnChain / ProcessOnChainNonExistant. The real Xaya daemon
// (original_source/xayagame/game.hpp) drives this off a ZMQ block
// subscription; no ZMQ client exists anywhere in the retrieved pack (the
// teacher's own ZMQ dependency is a transitive entry no pack file imports
// directly), so this is a deliberate simplification to ticker-driven
// polling, grounded on the teacher's own use of
// github.com/lightningnetwork/lnd/ticker for identical periodic-sampling
// loops (see DESIGN.md).
package chainwatcher

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"sync"

	"github.com/btcsuite/btclog"
	"github.com/go-errors/errors"
	"github.com/lightningnetwork/lnd/ticker"

	"github.com/xaya/channeld/stateproof"
	"github.com/xaya/channeld/walletrpc"
)

// log is this package's subsystem logger (CWAT, per SPEC_FULL.md §2.1).
var log = btclog.Disabled

// UseLogger lets callers plug in a concrete backend for this package's
// subsystem logger.
func UseLogger(logger btclog.Logger) {
	log = logger
}

// Manager is the subset of channelmanager.Manager the watcher drives. It is
// expressed as an interface so tests can substitute a recorder without
// constructing a full Manager.
type Manager interface {
	ProcessOnChain(meta stateproof.Metadata, initialState []byte, proof *stateproof.Proof, disputeHeight uint64)
	ProcessOnChainNonExistant()
}

// Config bundles a Watcher's collaborators.
type Config struct {
	// Client is used to poll getchannel.
	Client *walletrpc.Client
	// ChannelId is the on-chain channel ID to poll for.
	ChannelId string
	// Manager receives the polled observation.
	Manager Manager
	// Ticker drives the polling interval. Tests may substitute
	// ticker.NewForce for deterministic, immediate ticks.
	Ticker ticker.Ticker
}

// Watcher polls Config.Client for Config.ChannelId's on-chain state once
// per Config.Ticker tick and feeds it to Config.Manager, until Stop is
// called.
type Watcher struct {
	cfg  Config
	quit chan struct{}
	wg   sync.WaitGroup
}

// New returns a Watcher ready to Start.
func New(cfg Config) *Watcher {
	return &Watcher{cfg: cfg, quit: make(chan struct{})}
}

// Start begins the polling loop in a background goroutine.
func (w *Watcher) Start() {
	w.pollOnce()

	w.cfg.Ticker.Resume()
	w.wg.Add(1)
	go w.pollLoop()
}

// Stop halts the polling loop and waits for it to exit.
func (w *Watcher) Stop() {
	close(w.quit)
	w.wg.Wait()
	w.cfg.Ticker.Stop()
}

func (w *Watcher) pollLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.cfg.Ticker.Ticks():
			w.pollOnce()
		case <-w.quit:
			return
		}
	}
}

// channelResponse is the JSON shape getchannel returns: existence plus,
// when it exists, the channel's metadata, its current reinit genesis
// state, the base64-encoded wire proof (stateproof.Proof.Encode, the same
// codec mover uses for submission) and the dispute height (0 if none).
type channelResponse struct {
	ExistsOnChain bool     `json:"existsonchain"`
	Meta          metaJSON `json:"meta"`
	InitialState  string   `json:"initialstate"`
	ProofData     string   `json:"proofdata"`
	DisputeHeight uint64   `json:"disputeheight"`
}

type metaJSON struct {
	Participants []participantJSON `json:"participants"`
}

type participantJSON struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// pollOnce issues a single getchannel request and feeds the result to the
// manager. A transport failure is logged and retried on the next tick; a
// well-formed "does not exist" response calls ProcessOnChainNonExistant
// immediately, distinguishing the two the way game.hpp's real block
// attach/detach split does (spec.md leaves this implicit).
func (w *Watcher) pollOnce() {
	raw, err := w.cfg.Client.GetChannel(w.cfg.ChannelId)
	if err != nil {
		log.Warnf("chainwatcher: getchannel failed for %s, will retry: %v", w.cfg.ChannelId, err)
		return
	}

	var resp channelResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		log.Errorf("chainwatcher: malformed getchannel response for %s: %v", w.cfg.ChannelId, err)
		return
	}

	if !resp.ExistsOnChain {
		w.cfg.Manager.ProcessOnChainNonExistant()
		return
	}

	proof, err := decodeProof(resp.ProofData)
	if err != nil {
		log.Errorf("chainwatcher: malformed proof in getchannel response for %s: %v", w.cfg.ChannelId, err)
		return
	}

	meta := stateproof.Metadata{Participants: make([]stateproof.Participant, len(resp.Meta.Participants))}
	for i, p := range resp.Meta.Participants {
		meta.Participants[i] = stateproof.Participant{Name: p.Name, Address: p.Address}
	}

	w.cfg.Manager.ProcessOnChain(meta, []byte(resp.InitialState), proof, resp.DisputeHeight)
}

func decodeProof(encoded string) (*stateproof.Proof, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.Errorf("chainwatcher: invalid base64 proof data: %v", err)
	}

	var proof stateproof.Proof
	if err := proof.Decode(bytes.NewReader(data)); err != nil {
		return nil, errors.Errorf("chainwatcher: invalid proof wire encoding: %v", err)
	}
	return &proof, nil
}
