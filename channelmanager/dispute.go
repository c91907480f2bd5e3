package channelmanager

// disputeRecord mirrors spec.md §3's "Dispute record": present only when
// the chain currently carries an unresolved dispute. At most one exists at
// a time, owned exclusively by the ChannelManager under its lock.
type disputeRecord struct {
	height            uint64
	turn              int
	count             uint32
	pendingResolution bool
}

// disputeTracker holds the optional pending dispute record for a channel.
type disputeTracker struct {
	current *disputeRecord
}

func newDisputeTracker() *disputeTracker {
	return &disputeTracker{}
}

func (d *disputeTracker) clear() {
	d.current = nil
}

// set installs a new dispute record for the given on-chain observation.
// pendingResolution always resets to false: a new block height means a
// previously-failed resolution attempt may be retried.
func (d *disputeTracker) set(height uint64, turn int, count uint32) {
	d.current = &disputeRecord{height: height, turn: turn, count: count}
}

func (d *disputeTracker) get() *disputeRecord {
	return d.current
}

// resolvable reports whether the given end-state turn count makes the
// current dispute resolvable per spec.md §3/§6: a dispute exists and the
// current turn count strictly exceeds the dispute's fork count. This is
// exactly the "canresolve" field of ToJson: any later proof defeats the
// dispute regardless of whose turn it records, and regardless of whether a
// resolution is already in flight.
func (d *disputeTracker) resolvable(currentCount uint32) bool {
	if d.current == nil {
		return false
	}
	return currentCount > d.current.count
}

// shouldEmitResolution is the actual trigger PostProcess uses to decide
// whether to emit a resolution transaction: the dispute must additionally
// belong to the local player's turn (only the player the dispute accuses of
// stalling can submit the resolution) and no resolution may already be
// pending.
func (d *disputeTracker) shouldEmitResolution(localPlayer int, currentCount uint32) bool {
	if d.current == nil || d.current.turn != localPlayer {
		return false
	}
	return d.resolvable(currentCount) && !d.current.pendingResolution
}

func (d *disputeTracker) markResolutionPending() {
	if d.current != nil {
		d.current.pendingResolution = true
	}
}
