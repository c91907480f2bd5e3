// Package channelmanager implements the core of spec.md: the
// ChannelManager that reconciles on-chain observations, off-chain peer
// messages and local player moves against a single coherent view of a
// state channel, decides when to submit on-chain transactions, and
// notifies watchers of change.
//
// Everything here runs under a single mutex (spec.md §5): ingress methods
// are mutually exclusive, and the only suspension point is WaitForChange,
// which releases the lock while waiting on a condition variable.
package channelmanager

import (
	"sync"

	"github.com/xaya/channeld/rules"
	"github.com/xaya/channeld/signer"
	"github.com/xaya/channeld/stateproof"
)

// Manager is the ChannelManager of spec.md §2/§4.2. It is constructed once
// per channel and lives until StopUpdates is called.
type Manager struct {
	mu sync.Mutex

	rules       rules.Plugin
	channelId   stateproof.ChannelId
	playerName  string
	moveSender  MoveSender
	broadcaster OffChainBroadcast
	signer      signer.Signer

	board   *boardStates
	dispute *disputeTracker
	pending *pendingMoves
	notify  *changeNotifier

	exists   bool
	localIdx int
	hasLocal bool

	stopped bool

	// changed accumulates whether any field ToJson exposes (existence,
	// proof, dispute, metadata) was mutated during the current ingress
	// call; PostProcess bumps the version iff it is set.
	changed bool
}

// maxAutoMoveSteps bounds the auto-move loop of spec.md §4.2.6 step 1.
// Rules are responsible for well-foundedness; this is only a backstop
// against a misbehaving plugin looping forever.
const maxAutoMoveSteps = 10000

// New constructs a ChannelManager for the given channel, with rules as the
// game-rules plugin, moveSender/broadcaster/signer as the on-chain,
// off-chain and wallet collaborators, and playerName identifying the local
// player within whatever metadata future ProcessOnChain calls deliver.
func New(r rules.Plugin, id stateproof.ChannelId, moveSender MoveSender,
	broadcaster OffChainBroadcast, wallet signer.Signer, playerName string) *Manager {

	m := &Manager{
		rules:       r,
		channelId:   id,
		playerName:  playerName,
		moveSender:  moveSender,
		broadcaster: broadcaster,
		signer:      wallet,
		dispute:     newDisputeTracker(),
		pending:     newPendingMoves(),
	}
	m.board = newBoardStates(id, r, wallet)
	m.notify = newChangeNotifier(&m.mu)
	return m
}

// ProcessOnChain handles a newly observed on-chain anchor or confirmation
// for the channel (spec.md §4.2.1).
func (m *Manager) ProcessOnChain(meta stateproof.Metadata, initialState []byte,
	proof *stateproof.Proof, disputeHeight uint64) {

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}

	wasExisting := m.exists
	m.exists = true
	if !wasExisting {
		m.changed = true
	}

	reinit := stateproof.ReinitId(meta, initialState)
	needsReinit := !wasExisting || reinit != m.board.getReinitId()

	// onChainEnd is the just-observed proof's own verified end state,
	// independent of whether the board actually adopts it as its latest
	// (a dispute record reflects what was posted on chain, not a
	// possibly-better proof the board already holds locally).
	var onChainEnd []byte

	if needsReinit {
		if err := m.board.reinitialise(meta, initialState, proof); err != nil {
			log.Errorf("channel %v: rejecting on-chain anchor: %v", m.channelId, err)
			m.exists = wasExisting
			m.changed = false
			return
		}
		m.changed = true
		onChainEnd = m.board.getLatestState()
	} else {
		updated, end, err := m.board.adoptOnChainProof(proof)
		if err != nil {
			log.Debugf("channel %v: on-chain proof rejected: %v", m.channelId, err)
		} else {
			onChainEnd = end
			if updated {
				m.changed = true
			}
		}
	}

	m.refreshLocalIndex()

	if disputeHeight == 0 {
		if m.dispute.get() != nil {
			m.changed = true
		}
		m.dispute.clear()
	} else if onChainEnd != nil {
		m.dispute.set(disputeHeight, m.rules.WhoseTurn(onChainEnd), m.rules.TurnCount(onChainEnd))
		m.changed = true
	}

	// Any in-flight dispute transaction is considered observed, whatever
	// disputeHeight says: either it confirmed (height > 0, now on the
	// dispute record) or it never made it and must be re-filed explicitly.
	m.pending.clearDispute()

	m.postProcess()
}

// ProcessOnChainNonExistant handles an on-chain observation that the
// channel is not (or no longer) anchored at all (spec.md §4.2.2).
func (m *Manager) ProcessOnChainNonExistant() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}

	if m.exists {
		m.changed = true
	}
	m.exists = false
	if m.dispute.get() != nil {
		m.changed = true
	}
	m.dispute.clear()

	m.postProcess()
}

// ProcessOffChain handles a proof broadcast by a peer (spec.md §4.2.3).
func (m *Manager) ProcessOffChain(reinitId []byte, proof *stateproof.Proof) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped || !m.exists {
		return
	}

	if len(reinitId) > 0 {
		current := m.board.getReinitId()
		if string(reinitId) != string(current[:]) {
			return
		}
	}

	updated, err := m.board.updateWithMove(proof)
	if err != nil {
		log.Debugf("channel %v: off-chain proof rejected: %v", m.channelId, err)
		return
	}
	if updated {
		m.changed = true
	}

	m.postProcess()
}

// ProcessLocalMove handles a move made by the local player (spec.md
// §4.2.4).
func (m *Manager) ProcessLocalMove(move []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped || !m.exists || !m.hasLocal {
		return
	}
	if m.board.whoseTurn() != m.localIdx {
		return
	}

	if m.applyMove(move, m.localIdx) {
		m.changed = true
	}

	m.postProcess()
}

// FileDispute requests that a dispute transaction be filed for the current
// state (spec.md §4.2.5).
func (m *Manager) FileDispute() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped || !m.exists {
		return
	}
	if m.dispute.get() != nil {
		return
	}
	if m.pending.isDisputePending() {
		return
	}

	m.pending.fileDispute()
	m.postProcess()
}

// StopUpdates permanently disables all further ingress. After it returns,
// every ingress method is a no-op, and any WaitForChange call (pending or
// future) returns immediately (spec.md §4.2, §5).
func (m *Manager) StopUpdates() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}
	m.stopped = true
	m.notify.stop()
}

// applyMove runs move through the rules plugin on behalf of player, signs
// the resulting transition with the wallet, and adopts the extended proof.
// It is the single code path shared by ProcessLocalMove and the PostProcess
// auto-move loop (spec.md §4.2.4/§4.2.6). Returns whether the proof
// advanced.
func (m *Manager) applyMove(move []byte, player int) bool {
	current := m.board.getStateProof()
	if current == nil {
		return false
	}
	state := m.board.getLatestState()

	next, err := m.rules.ApplyMove(state, player, move)
	if err != nil {
		log.Debugf("channel %v: move rejected by rules: %v", m.channelId, err)
		return false
	}

	meta := m.board.getMetadata()
	if player < 0 || player >= len(meta.Participants) {
		return false
	}
	address := meta.Participants[player].Address

	step := uint32(len(current.Transitions) + 1)
	digest := stateproof.CanonicalMessage(m.channelId, m.board.getReinitId(), step, next)
	sig, err := m.signer.Sign(address, digest)
	if err != nil {
		log.Warnf("channel %v: wallet failed to sign move for %v: %v",
			m.channelId, meta.Participants[player].Name, err)
		return false
	}

	extended := &stateproof.Proof{
		InitialState:      current.InitialState,
		InitialSignatures: current.InitialSignatures,
		Transitions:       append(append([]stateproof.Transition{}, current.Transitions...), stateproof.Transition{
			Move:      move,
			Signature: sig,
		}),
	}

	updated, err := m.board.updateWithMove(extended)
	if err != nil || !updated {
		if err != nil {
			log.Errorf("channel %v: freshly-signed move failed to verify: %v", m.channelId, err)
		}
		return false
	}

	m.pending.markLocalAdvance()
	return true
}

// refreshLocalIndex recomputes whether, and at what index, the local
// player name appears in the current metadata. Absence implies the channel
// is not ours: it is still observed, but local moves are ignored.
func (m *Manager) refreshLocalIndex() {
	meta := m.board.getMetadata()
	idx, ok := meta.LocalIndex(m.playerName)
	m.localIdx = idx
	m.hasLocal = ok
}
