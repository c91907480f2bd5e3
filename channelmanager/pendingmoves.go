package channelmanager

// pendingMoves tracks in-flight on-chain emissions so that each is sent at
// most once per triggering observation (spec.md §2's "PendingMoves"). The
// dispute-pending flag is the only piece of state that outlives a single
// PostProcess call; "resolution pending" lives on the dispute record itself
// (disputeRecord.pendingResolution) since it only makes sense relative to a
// particular dispute.
type pendingMoves struct {
	disputePending bool
	// broadcastDue records that the current PostProcess call advanced the
	// proof via a local move or auto-move, and so owes exactly one
	// off-chain broadcast before returning (spec.md §4.2.6 step 5).
	broadcastDue bool
}

func newPendingMoves() *pendingMoves {
	return &pendingMoves{}
}

func (p *pendingMoves) fileDispute() {
	p.disputePending = true
}

// clearDispute drops the pending-dispute flag; called on every
// ProcessOnChain regardless of disputeHeight, so that a FileDispute call
// following a new on-chain observation can re-trigger emission.
func (p *pendingMoves) clearDispute() {
	p.disputePending = false
}

func (p *pendingMoves) isDisputePending() bool {
	return p.disputePending
}

func (p *pendingMoves) markLocalAdvance() {
	p.broadcastDue = true
}

// takeBroadcastDue reports whether a broadcast is owed and resets the flag;
// PostProcess calls this exactly once per invocation.
func (p *pendingMoves) takeBroadcastDue() bool {
	due := p.broadcastDue
	p.broadcastDue = false
	return due
}
