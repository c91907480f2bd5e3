package channelmanager

// postProcess runs the six-step reconciliation of spec.md §4.2.6 after
// every ingress method has applied its own update. It must be called with
// m.mu held, and it is the only place that talks to moveSender and
// broadcaster.
func (m *Manager) postProcess() {
	m.runAutoMoves()
	m.maybeSubmitOnChainMove()
	m.maybeResolveDispute()
	m.maybeFileDispute()
	m.maybeBroadcast()

	if m.changed {
		m.notify.bump()
		m.changed = false
	}
}

// runAutoMoves repeatedly asks the rules plugin for an auto-move from the
// current state and applies it while the local player remains on turn
// (spec.md §4.2.6 step 1). It is a no-op for channels the local player
// isn't part of.
func (m *Manager) runAutoMoves() {
	if !m.hasLocal || !m.exists {
		return
	}

	for i := 0; i < maxAutoMoveSteps; i++ {
		if m.board.whoseTurn() != m.localIdx {
			return
		}

		state := m.board.getLatestState()
		move, ok := m.rules.MaybeAutoMove(state, m.localIdx)
		if !ok {
			return
		}
		if !m.applyMove(move, m.localIdx) {
			return
		}
		m.changed = true
	}

	log.Errorf("channel %v: auto-move loop hit the %d-step safety limit",
		m.channelId, maxAutoMoveSteps)
}

// maybeSubmitOnChainMove asks the rules plugin whether the current state
// demands an on-chain move and submits it if so (spec.md §4.2.6 step 2).
// The rules plugin alone decides when this fires again for an unchanged
// state; the manager keeps no pending flag for it, since on-chain moves
// (unlike disputes and resolutions) carry no record the manager can check
// for confirmation.
func (m *Manager) maybeSubmitOnChainMove() {
	if !m.exists {
		return
	}

	payload, ok := m.rules.MaybeOnChainMove(m.board.getLatestState())
	if !ok {
		return
	}

	txid, err := m.moveSender.SendOnChainMove(payload)
	if err != nil {
		log.Errorf("channel %v: failed to submit on-chain move: %v", m.channelId, err)
		return
	}
	log.Infof("channel %v: submitted on-chain move in %v", m.channelId, txid)
}

// maybeResolveDispute emits a resolution transaction when the local player
// holds a later turn-count than the on-chain dispute record and no
// resolution is already in flight for it (spec.md §4.2.6 step 3, §3).
func (m *Manager) maybeResolveDispute() {
	if !m.exists || !m.hasLocal {
		return
	}
	if !m.dispute.shouldEmitResolution(m.localIdx, m.board.turnCount()) {
		return
	}

	// Set before sending: a failed send still counts as "attempted" and is
	// only retried once a fresh on-chain observation resets the record
	// (spec.md §4.2.1, §4.2.5, §7).
	m.dispute.markResolutionPending()

	proof := m.board.getStateProof()
	txid, err := m.moveSender.SendResolution(proof)
	if err != nil {
		log.Errorf("channel %v: failed to submit dispute resolution: %v", m.channelId, err)
		return
	}
	log.Infof("channel %v: submitted dispute resolution in %v", m.channelId, txid)
}

// maybeFileDispute emits the dispute transaction requested by FileDispute
// once no on-chain dispute record exists yet (spec.md §4.2.6 step 4).
func (m *Manager) maybeFileDispute() {
	if !m.exists || !m.pending.isDisputePending() {
		return
	}
	if m.dispute.get() != nil {
		return
	}

	proof := m.board.getStateProof()
	txid, err := m.moveSender.SendDispute(proof)
	if err != nil {
		log.Errorf("channel %v: failed to submit dispute: %v", m.channelId, err)
		return
	}
	log.Infof("channel %v: submitted dispute in %v", m.channelId, txid)
}

// maybeBroadcast fans the current proof out to peers exactly once, iff this
// call advanced it via a local move or auto-move (spec.md §4.2.6 step 5).
func (m *Manager) maybeBroadcast() {
	if !m.pending.takeBroadcastDue() {
		return
	}

	serialized, err := serializeBroadcast(m.board.getReinitId(), m.board.getStateProof())
	if err != nil {
		log.Errorf("channel %v: failed to serialize broadcast message: %v", m.channelId, err)
		return
	}
	if err := m.broadcaster.SendMessage(serialized); err != nil {
		log.Warnf("channel %v: failed to broadcast move: %v", m.channelId, err)
	}
}
