// Package mover implements channelmanager.MoveSender on top of walletrpc,
// submitting dispute, resolution and game-specific moves as Xaya
// name_update transactions under the channel's "p/<playerName>" name
// (spec.md §4.3), grounded directly in channelmanager_tests.cpp's
// ExpectMoves/ExpectOnChainMove helpers which assert on exactly this
// envelope.
package mover

import (
	"bytes"
	"encoding/base64"
	"encoding/json"

	"github.com/btcsuite/btclog"
	"github.com/go-errors/errors"

	"github.com/xaya/channeld/stateproof"
	"github.com/xaya/channeld/walletrpc"
)

// log is this package's subsystem logger (MVSN, per SPEC_FULL.md §2.1).
var log = btclog.Disabled

// UseLogger lets callers plug in a concrete backend for this package's
// subsystem logger.
func UseLogger(logger btclog.Logger) {
	log = logger
}

// Sender implements channelmanager.MoveSender against a single game ID,
// player name and channel, submitting every move through a walletrpc.Client.
type Sender struct {
	client     *walletrpc.Client
	gameId     string
	playerName string
	channelId  stateproof.ChannelId
}

// New returns a Sender that submits moves for playerName in gameId, on
// behalf of channelId, through client.
func New(client *walletrpc.Client, gameId, playerName string, channelId stateproof.ChannelId) *Sender {
	return &Sender{client: client, gameId: gameId, playerName: playerName, channelId: channelId}
}

// envelope mirrors spec.md §4.3's on-chain move format: the game-specific
// payload nested under the game's ID inside a top-level "g" object, the
// convention every Xaya game's moves share so a single name can carry
// moves for more than one game at once.
type envelope struct {
	G map[string]json.RawMessage `json:"g"`
}

func (s *Sender) submit(payload json.RawMessage) (string, error) {
	body, err := json.Marshal(envelope{G: map[string]json.RawMessage{s.gameId: payload}})
	if err != nil {
		return "", errors.Errorf("mover: failed to build move envelope: %v", err)
	}

	txid, err := s.client.NameUpdate("p/"+s.playerName, body)
	if err != nil {
		return "", errors.Errorf("mover: name_update failed: %v", err)
	}
	return txid, nil
}

// disputeOrResolutionMove mirrors spec.md §4.3's move shape for filing or
// resolving a dispute: the operation's name, the channel it applies to, and
// the encoded proof, all flat at the top level of the payload.
type disputeOrResolutionMove struct {
	Type  string `json:"type"`
	Id    string `json:"id"`
	Proof string `json:"proof"`
}

func encodeProof(proof *stateproof.Proof) (string, error) {
	var buf bytes.Buffer
	if err := proof.Encode(&buf); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// SendDispute submits a dispute transaction carrying proof.
func (s *Sender) SendDispute(proof *stateproof.Proof) (string, error) {
	encoded, err := encodeProof(proof)
	if err != nil {
		return "", errors.Errorf("mover: failed to encode dispute proof: %v", err)
	}
	payload, err := json.Marshal(disputeOrResolutionMove{
		Type:  "dispute",
		Id:    s.channelId.String(),
		Proof: encoded,
	})
	if err != nil {
		return "", errors.Errorf("mover: failed to marshal dispute move: %v", err)
	}

	txid, err := s.submit(payload)
	if err != nil {
		log.Errorf("mover: dispute submission failed: %v", err)
		return "", err
	}
	return txid, nil
}

// SendResolution submits a resolution transaction carrying proof.
func (s *Sender) SendResolution(proof *stateproof.Proof) (string, error) {
	encoded, err := encodeProof(proof)
	if err != nil {
		return "", errors.Errorf("mover: failed to encode resolution proof: %v", err)
	}
	payload, err := json.Marshal(disputeOrResolutionMove{
		Type:  "resolution",
		Id:    s.channelId.String(),
		Proof: encoded,
	})
	if err != nil {
		return "", errors.Errorf("mover: failed to marshal resolution move: %v", err)
	}

	txid, err := s.submit(payload)
	if err != nil {
		log.Errorf("mover: resolution submission failed: %v", err)
		return "", err
	}
	return txid, nil
}

// SendOnChainMove submits a game-specific on-chain move payload (already
// rendered as JSON by the rules plugin's MaybeOnChainMove) unchanged.
func (s *Sender) SendOnChainMove(payload []byte) (string, error) {
	txid, err := s.submit(payload)
	if err != nil {
		log.Errorf("mover: on-chain move submission failed: %v", err)
		return "", err
	}
	return txid, nil
}
