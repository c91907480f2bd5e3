package main

import (
	"fmt"
	"sync"

	"github.com/lightningnetwork/lnd/ticker"

	"github.com/xaya/channeld/broadcast"
	"github.com/xaya/channeld/chainwatcher"
	"github.com/xaya/channeld/channelmanager"
	"github.com/xaya/channeld/mover"
	"github.com/xaya/channeld/rules/numbergame"
	"github.com/xaya/channeld/signer"
	"github.com/xaya/channeld/stateproof"
	"github.com/xaya/channeld/walletrpc"
)

// channelEntry bundles everything the daemon keeps alive per tracked
// channel: the manager itself, the watcher feeding it on-chain
// observations, and the peer broadcast hub serving its /ws endpoint.
type channelEntry struct {
	id      stateproof.ChannelId
	manager *channelmanager.Manager
	watcher *chainwatcher.Watcher
	hub     *broadcast.Hub
}

// daemon is the top-level registry of tracked channels, following the
// teacher's chainRegistry pattern in chainregistry.go: one long-lived
// object owning a collaborator per tracked entity, looked up by ID from
// the HTTP layer.
type daemon struct {
	mu       sync.RWMutex
	channels map[string]*channelEntry
	metrics  *metrics
}

// newDaemon parses cfg's channel list and wires one Manager/Watcher/Hub
// triple per entry against a shared wallet RPC client. The watchers are not
// started here; start launches them.
func newDaemon(cfg *config, m *metrics) (*daemon, error) {
	specs, err := parseChannels(cfg.Channels)
	if err != nil {
		return nil, err
	}
	net, err := networkParams(cfg.Network)
	if err != nil {
		return nil, err
	}

	client := walletrpc.New(cfg.RPCHost, cfg.RPCUser, cfg.RPCPass)
	wallet := signer.NewRemoteSigner(client, net)

	d := &daemon{channels: make(map[string]*channelEntry), metrics: m}

	for _, spec := range specs {
		id, err := stateproof.ChannelIdFromHex(spec.ChannelIdHex)
		if err != nil {
			return nil, fmt.Errorf("invalid channel ID %q: %v", spec.ChannelIdHex, err)
		}

		hub := broadcast.NewHub()
		sender := mover.New(client, cfg.GameId, spec.PlayerName, id)
		instrumented := &instrumentedMoveSender{inner: sender, channelId: id, metrics: m}

		manager := channelmanager.New(numbergame.New(), id, instrumented, hub, wallet, spec.PlayerName)

		watcher := chainwatcher.New(chainwatcher.Config{
			Client:    client,
			ChannelId: spec.ChannelIdHex,
			Manager:   manager,
			Ticker:    ticker.New(cfg.PollInterval),
		})

		d.channels[spec.ChannelIdHex] = &channelEntry{
			id:      id,
			manager: manager,
			watcher: watcher,
			hub:     hub,
		}
	}

	return d, nil
}

// start launches every tracked channel's watcher.
func (d *daemon) start() {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, entry := range d.channels {
		entry.watcher.Start()
	}
}

// stop halts every tracked channel's watcher and manager, in that order so
// no further observation arrives after the manager stops notifying.
func (d *daemon) stop() {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, entry := range d.channels {
		entry.watcher.Stop()
		entry.manager.StopUpdates()
	}
}

// lookup returns the channel entry for idHex, or (nil, false) if no such
// channel is tracked by this daemon.
func (d *daemon) lookup(idHex string) (*channelEntry, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	entry, ok := d.channels[idHex]
	return entry, ok
}
