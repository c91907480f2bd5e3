package channelmanager

import "github.com/xaya/channeld/stateproof"

// MoveSender submits a blockchain name-update transaction carrying a
// dispute, resolution or game-specific move (spec.md §4.3), and returns
// the resulting transaction ID. A failing implementation returns a non-nil
// error; the manager logs it and leaves the triggering pending flag set so
// the next observation retries (spec.md §7). The manager only ever passes
// the logical (type, proof) pair or a rules-supplied payload — encoding the
// "p/<player>" name and the {"g": {"<gameId>": ...}} envelope of spec.md
// §4.3 is entirely this collaborator's concern.
type MoveSender interface {
	SendDispute(proof *stateproof.Proof) (txid string, err error)
	SendResolution(proof *stateproof.Proof) (txid string, err error)
	SendOnChainMove(payload []byte) (txid string, err error)
}

// OffChainBroadcast fans a serialized BroadcastMessage out to peers
// (spec.md §4.4). It is fire-and-forget: a failure is logged and not
// retried, since a later move will carry the newer state anyway.
type OffChainBroadcast interface {
	SendMessage(serialized []byte) error
}
