package signer

import (
	"encoding/base64"

	"github.com/btcsuite/btcd/chaincfg"
)

// signClient is the one walletrpc.Client method RemoteSigner needs. It is
// expressed as an interface here (rather than importing walletrpc
// directly) so this package's tests can substitute a stub without standing
// up an HTTP server.
type signClient interface {
	SignMessage(address string, message []byte) (string, error)
}

// RemoteSigner is a Signer whose Sign half defers to a wallet RPC (the
// daemon never holds private keys itself) while Verify stays local, pure
// public-key crypto the way WalletSigner already does it. This is the
// signer.Signer cmd/channeld wires into channelmanager.New: the wallet
// holds the key, the daemon only ever needs to authenticate against it.
type RemoteSigner struct {
	client signClient
	net    *chaincfg.Params
}

// NewRemoteSigner returns a Signer that calls through client for signing
// and verifies locally against net's address encoding.
func NewRemoteSigner(client signClient, net *chaincfg.Params) *RemoteSigner {
	return &RemoteSigner{client: client, net: net}
}

// Sign calls the wallet's signmessage RPC with the raw digest as the
// message to sign (the wallet applies the "Xaya Signed Message:\n" magic
// and double-SHA256 itself, exactly as WalletSigner.SignWithKey does
// locally) and decodes the result into the raw recoverable signature bytes
// the proof codec stores.
func (s *RemoteSigner) Sign(address string, digest []byte) ([]byte, error) {
	encoded, err := s.client.SignMessage(address, digest)
	if err != nil {
		return nil, err
	}
	return base64.StdEncoding.DecodeString(encoded)
}

// Verify recovers the signer's address from sig, exactly as WalletSigner
// does: this half never needs the wallet, since the scheme is designed to
// be verifiable from the signature and message alone.
func (s *RemoteSigner) Verify(address string, digest, sig []byte) bool {
	return (&WalletSigner{net: s.net}).Verify(address, digest, sig)
}
