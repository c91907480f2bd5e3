package channelmanager

import (
	"bytes"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/xaya/channeld/stateproof"
)

// serializeBroadcast frames an off-chain broadcast message as the
// reinitialisation ID the proof is relative to, followed by the proof's own
// wire encoding (stateproof.Proof.Encode). Peers on a stale reinitialisation
// discard the message without attempting to interpret the proof (spec.md
// §4.3/§4.4).
func serializeBroadcast(reinit chainhash.Hash, proof *stateproof.Proof) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := buf.Write(reinit[:]); err != nil {
		return nil, err
	}
	if err := proof.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// deserializeBroadcast is the receiving side's counterpart of
// serializeBroadcast. Nothing in this repository calls it.
func deserializeBroadcast(data []byte) (chainhash.Hash, *stateproof.Proof, error) {
	var reinit chainhash.Hash
	r := bytes.NewReader(data)
	if _, err := io.ReadFull(r, reinit[:]); err != nil {
		return reinit, nil, err
	}
	var proof stateproof.Proof
	if err := proof.Decode(r); err != nil {
		return reinit, nil, err
	}
	return reinit, &proof, nil
}
