// Package stateproof implements the proof codec that spec.md leaves as an
// external collaborator: parsing and verifying signed state proofs,
// identifying the next mover, extracting the turn count, and comparing
// board states. The channel manager calls Verify, ReinitId and
// CanonicalMessage directly; they are the concrete implementation behind
// its notion of a "valid proof".
package stateproof

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/xaya/channeld/rules"
	"github.com/xaya/channeld/signer"
)

// ChannelId is an opaque 256-bit channel identifier, printable as lowercase
// hex (spec.md §3).
type ChannelId chainhash.Hash

// String renders the channel ID as lowercase hex.
func (id ChannelId) String() string {
	h := chainhash.Hash(id)
	return hex.EncodeToString(h[:])
}

// ChannelIdFromHex parses a channel ID previously produced by String.
func ChannelIdFromHex(s string) (ChannelId, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return ChannelId{}, err
	}
	if len(b) != chainhash.HashSize {
		return ChannelId{}, fmt.Errorf("stateproof: channel ID must be %d bytes, got %d",
			chainhash.HashSize, len(b))
	}
	var id ChannelId
	copy(id[:], b)
	return id, nil
}

// Participant is one party to a channel (spec.md §3).
type Participant struct {
	Name    string
	Address string
}

// Metadata is the ordered sequence of participants for a channel. Index 0
// moves first.
type Metadata struct {
	Participants []Participant
}

// LocalIndex returns the index of the participant with the given name, and
// whether one was found. A channel whose metadata has no participant named
// name is not ours — it is still observed, but local moves are ignored.
func (m Metadata) LocalIndex(name string) (int, bool) {
	for i, p := range m.Participants {
		if p.Name == name {
			return i, true
		}
	}
	return 0, false
}

// Transition is one signed move in a state proof: the raw move bytes plus
// the signature of whichever participant was on turn before it was applied.
type Transition struct {
	Move      []byte
	Signature []byte
}

// Proof is the ordered, non-negative chain of spec.md §3: a signed initial
// state followed by zero or more signed transitions. It is intentionally
// game-agnostic; interpreting it requires a rules.Plugin to replay the
// transitions.
type Proof struct {
	InitialState []byte
	// InitialSignatures holds one signature per participant, authenticating
	// agreement on InitialState. It is empty for a proof whose initial
	// state is the on-chain genesis (already anchored, so it needs no
	// further signing).
	InitialSignatures [][]byte
	Transitions       []Transition
}

// Empty reports whether the proof is nil or has neither an initial state nor
// any transitions; BoardStates uses this to reject an incoming proof that
// carries nothing.
func (p *Proof) Empty() bool {
	return p == nil || (p.InitialState == nil && len(p.Transitions) == 0)
}

// UnverifiedEndState replays every transition via rules without checking any
// signature, for inspection of proofs whose validity has not (yet) been
// established.
func UnverifiedEndState(r rules.Plugin, p *Proof) ([]byte, error) {
	state := p.InitialState
	for i, t := range p.Transitions {
		mover := r.WhoseTurn(state)
		if mover == rules.NoTurn {
			return nil, fmt.Errorf("stateproof: transition %d applied to a no-turn state", i)
		}
		next, err := r.ApplyMove(state, mover, t.Move)
		if err != nil {
			return nil, fmt.Errorf("stateproof: transition %d: %w", i, err)
		}
		state = next
	}
	return state, nil
}

// Verify checks that every signature required by meta is present and
// verifiable, and returns the resulting verified end state. A proof is
// valid with respect to meta when: the initial state carries a signature
// from every participant (if any are present at all — a freshly anchored
// channel's initial state is authenticated by the anchoring transaction
// itself and carries none), and every transition carries a valid signature
// from the participant whose turn it was.
func Verify(r rules.Plugin, v signer.Verifier, id ChannelId, reinit chainhash.Hash, meta Metadata, p *Proof) ([]byte, error) {
	if p.Empty() {
		return nil, fmt.Errorf("stateproof: empty proof")
	}

	if len(p.InitialSignatures) > 0 {
		if len(p.InitialSignatures) != len(meta.Participants) {
			return nil, fmt.Errorf("stateproof: expected %d initial signatures, got %d",
				len(meta.Participants), len(p.InitialSignatures))
		}
		digest := CanonicalMessage(id, reinit, 0, p.InitialState)
		for i, part := range meta.Participants {
			if !v.Verify(part.Address, digest, p.InitialSignatures[i]) {
				return nil, fmt.Errorf("stateproof: invalid initial signature for participant %d (%s)",
					i, part.Name)
			}
		}
	}

	state := p.InitialState
	for i, t := range p.Transitions {
		mover := r.WhoseTurn(state)
		if mover == rules.NoTurn {
			return nil, fmt.Errorf("stateproof: transition %d applied to a no-turn state", i)
		}
		if mover < 0 || mover >= len(meta.Participants) {
			return nil, fmt.Errorf("stateproof: transition %d: mover index %d out of range", i, mover)
		}

		next, err := r.ApplyMove(state, mover, t.Move)
		if err != nil {
			return nil, fmt.Errorf("stateproof: transition %d: %w", i, err)
		}

		digest := CanonicalMessage(id, reinit, uint32(i+1), next)
		addr := meta.Participants[mover].Address
		if !v.Verify(addr, digest, t.Signature) {
			return nil, fmt.Errorf("stateproof: invalid signature on transition %d by participant %d (%s)",
				i, mover, meta.Participants[mover].Name)
		}

		state = next
	}

	return state, nil
}

// CanonicalMessage builds the digest that SignMessage/Verify operate on for
// a given channel, reinit instance and step index. Binding the channel ID
// and reinit ID into every signed message prevents a signature collected
// for one channel instance from being replayed against another.
func CanonicalMessage(id ChannelId, reinit chainhash.Hash, step uint32, state []byte) []byte {
	var buf bytes.Buffer
	idHash := chainhash.Hash(id)
	buf.Write(idHash[:])
	buf.Write(reinit[:])
	var scratch [4]byte
	wire.LittleEndian.PutUint32(scratch[:], step)
	buf.Write(scratch[:])
	buf.Write(state)
	return chainhash.HashB(buf.Bytes())
}

// ReinitId computes the content hash of (metadata, initial state) that
// identifies a channel instance (spec.md glossary: "Reinit id").
func ReinitId(meta Metadata, initialState []byte) chainhash.Hash {
	var buf bytes.Buffer
	for _, p := range meta.Participants {
		buf.WriteString(p.Name)
		buf.WriteByte(0)
		buf.WriteString(p.Address)
		buf.WriteByte(0)
	}
	buf.Write(initialState)
	return chainhash.HashH(buf.Bytes())
}
