package channelmanager

// ChannelState is the JSON shape of spec.md §6: a snapshot of everything
// ToJson exposes about a channel at a point in time.
type ChannelState struct {
	Id            string       `json:"id"`
	PlayerName    string       `json:"playername"`
	ExistsOnChain bool         `json:"existsonchain"`
	Version       int          `json:"version"`
	Current       *CurrentInfo `json:"current,omitempty"`
	Dispute       *DisputeInfo `json:"dispute,omitempty"`
}

// CurrentInfo mirrors the current{meta,state} object of spec.md §6.
type CurrentInfo struct {
	Meta  MetaInfo    `json:"meta"`
	State interface{} `json:"state"`
}

// MetaInfo mirrors the metadata participants exposed in current.meta.
type MetaInfo struct {
	Participants []ParticipantInfo `json:"participants"`
}

// ParticipantInfo is one entry of MetaInfo.Participants.
type ParticipantInfo struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// DisputeInfo mirrors the dispute{height,whoseturn,canresolve} object of
// spec.md §6. canresolve reflects resolvability alone: it does not take
// pendingResolution into account (spec.md §6), unlike the internal gate
// that decides whether to actually emit a resolution transaction.
type DisputeInfo struct {
	Height     uint64 `json:"height"`
	WhoseTurn  int    `json:"whoseturn"`
	CanResolve bool   `json:"canresolve"`
}

// ToJson renders the manager's current observable state as described by
// spec.md §6. It takes the lock like any other method, since it reads
// fields mutated under m.mu.
func (m *Manager) ToJson() ChannelState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.toJsonLocked()
}

func (m *Manager) toJsonLocked() ChannelState {
	state := ChannelState{
		Id:            m.channelId.String(),
		PlayerName:    m.playerName,
		ExistsOnChain: m.exists,
		Version:       m.notify.currentVersion(),
	}

	if !m.exists {
		return state
	}

	meta := m.board.getMetadata()
	participants := make([]ParticipantInfo, len(meta.Participants))
	for i, p := range meta.Participants {
		participants[i] = ParticipantInfo{Name: p.Name, Address: p.Address}
	}

	latest := m.board.getLatestState()
	rendered, err := m.rules.StateToJSON(latest)
	if err != nil {
		log.Errorf("channel %v: rules failed to render state as JSON: %v", m.channelId, err)
		rendered = nil
	}

	state.Current = &CurrentInfo{
		Meta:  MetaInfo{Participants: participants},
		State: rendered,
	}

	if d := m.dispute.get(); d != nil {
		state.Dispute = &DisputeInfo{
			Height:     d.height,
			WhoseTurn:  d.turn,
			CanResolve: m.dispute.resolvable(m.board.turnCount()),
		}
	}

	return state
}

// WaitForChange blocks until the manager's version differs from known, or
// until StopUpdates is called, then returns the snapshot computed while
// still holding the lock at the moment of wake-up (spec.md §4.5). Computing
// it here, rather than handing the version back for the caller to look up
// separately, is what keeps the snapshot from racing a later, unrelated
// mutation. Pass WaitForChangeAlwaysBlock to always wait for the next
// change regardless of the caller's last known version.
func (m *Manager) WaitForChange(known int) ChannelState {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notify.wait(known)
	return m.toJsonLocked()
}
