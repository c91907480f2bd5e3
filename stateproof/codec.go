package stateproof

import (
	"io"

	"github.com/btcsuite/btcd/wire"
)

// Encode serializes the proof into the passed byte stream, for transport
// inside a BroadcastMessage or a name_update payload (spec.md §4.3-4.4).
func (p *Proof) Encode(w io.Writer) error {
	if err := writeBytes(w, p.InitialState); err != nil {
		return err
	}

	if err := wire.WriteVarInt(w, 0, uint64(len(p.InitialSignatures))); err != nil {
		return err
	}
	for _, sig := range p.InitialSignatures {
		if err := writeBytes(w, sig); err != nil {
			return err
		}
	}

	if err := wire.WriteVarInt(w, 0, uint64(len(p.Transitions))); err != nil {
		return err
	}
	for _, t := range p.Transitions {
		if err := writeBytes(w, t.Move); err != nil {
			return err
		}
		if err := writeBytes(w, t.Signature); err != nil {
			return err
		}
	}

	return nil
}

// Decode deserializes a proof from the passed byte stream.
func (p *Proof) Decode(r io.Reader) error {
	state, err := readBytes(r)
	if err != nil {
		return err
	}
	p.InitialState = state

	numSigs, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return err
	}
	p.InitialSignatures = make([][]byte, numSigs)
	for i := range p.InitialSignatures {
		p.InitialSignatures[i], err = readBytes(r)
		if err != nil {
			return err
		}
	}

	numTransitions, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return err
	}
	p.Transitions = make([]Transition, numTransitions)
	for i := range p.Transitions {
		p.Transitions[i].Move, err = readBytes(r)
		if err != nil {
			return err
		}
		p.Transitions[i].Signature, err = readBytes(r)
		if err != nil {
			return err
		}
	}

	return nil
}

func writeBytes(w io.Writer, b []byte) error {
	if err := wire.WriteVarInt(w, 0, uint64(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readBytes(r io.Reader) ([]byte, error) {
	n, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
	}
	return buf, nil
}
