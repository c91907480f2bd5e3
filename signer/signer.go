// Package signer implements the wallet signature scheme the channel
// manager's collaborators rely on to authenticate state proofs. Xaya Core
// is a Namecoin/Bitcoin fork, so it inherits Bitcoin Core's
// signmessage/verifymessage RPCs verbatim; this package reproduces that
// scheme directly rather than inventing a new one.
package signer

import (
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
)

// Verifier checks a signature produced by the wallet RPC's signmessage call
// against a participant's address. It is the capability the proof codec
// needs; it never needs to produce signatures itself.
type Verifier interface {
	Verify(address string, digest, sig []byte) bool
}

// Signer additionally produces signatures; ProcessLocalMove uses this (via
// the wallet RPC) to authenticate the local player's own transitions.
type Signer interface {
	Verifier
	Sign(address string, digest []byte) (sig []byte, err error)
}

// messageMagic mirrors Bitcoin/Namecoin's "Bitcoin Signed Message:\n"
// prefix, so that signatures produced here are the same ones a real
// signmessage RPC would return.
const messageMagic = "Xaya Signed Message:\n"

func messageHash(digest []byte) []byte {
	var buf []byte
	buf = append(buf, byte(len(messageMagic)))
	buf = append(buf, messageMagic...)
	buf = appendVarBytes(buf, digest)
	first := sha256.Sum256(buf)
	second := sha256.Sum256(first[:])
	return second[:]
}

func appendVarBytes(buf, data []byte) []byte {
	// digest is always a 32-byte chainhash output in this codebase, so a
	// single-byte varint length prefix is always sufficient.
	buf = append(buf, byte(len(data)))
	return append(buf, data...)
}

// WalletSigner verifies signatures locally and signs with a caller-supplied
// private key (SignWithKey). It holds no key of its own, so it implements
// Verifier but not Signer.
type WalletSigner struct {
	net *chaincfg.Params
}

// NewWalletSigner returns a WalletSigner that authenticates against the
// given network's address encoding.
func NewWalletSigner(net *chaincfg.Params) *WalletSigner {
	return &WalletSigner{net: net}
}

// SignWithKey produces a recoverable signature over digest using priv, and checks
// that priv's address matches the claimed address (a real wallet RPC would
// reject signmessage for an address it does not hold the key for).
func (w *WalletSigner) SignWithKey(priv *btcec.PrivateKey, address string, digest []byte) ([]byte, error) {
	addr, err := AddressForKey(w.net, priv.PubKey())
	if err != nil {
		return nil, err
	}
	if addr != address {
		return nil, errAddressMismatch{address}
	}
	sig := ecdsa.SignCompact(priv, messageHash(digest), true)
	return sig, nil
}

// Verify recovers the public key from sig and checks it hashes to address.
func (w *WalletSigner) Verify(address string, digest, sig []byte) bool {
	pub, _, err := ecdsa.RecoverCompact(sig, messageHash(digest))
	if err != nil {
		return false
	}
	addr, err := AddressForKey(w.net, pub)
	if err != nil {
		return false
	}
	return addr == address
}

// AddressForKey encodes pub as a P2PKH address on net, the same address
// format signmessage/verifymessage operate over.
func AddressForKey(net *chaincfg.Params, pub *btcec.PublicKey) (string, error) {
	addr, err := btcutil.NewAddressPubKeyHash(
		btcutil.Hash160(pub.SerializeCompressed()), net,
	)
	if err != nil {
		return "", err
	}
	return addr.EncodeAddress(), nil
}

type errAddressMismatch struct{ address string }

func (e errAddressMismatch) Error() string {
	return "signer: private key does not match address " + e.address
}
