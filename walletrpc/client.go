// Package walletrpc implements a small JSON-RPC 1.0 client speaking the
// subset of Xaya Core's wallet RPC surface this daemon needs:
// signmessage (authenticating state-proof transitions) and name_update
// (submitting on-chain moves, disputes and resolutions). No JSON-RPC
// client ships anywhere in the retrieved pack's dependency graph, so this
// is hand-written on net/http and encoding/json rather than grounded on a
// pack library (see DESIGN.md).
package walletrpc

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/btcsuite/btclog"
	"github.com/go-errors/errors"
)

// log is this package's subsystem logger (WRPC, per SPEC_FULL.md §2.1),
// wired to a real backend by cmd/channeld's UseLogger calls at startup.
var log = btclog.Disabled

// UseLogger lets callers plug in a concrete backend for this package's
// subsystem logger.
func UseLogger(logger btclog.Logger) {
	log = logger
}

// Client is a JSON-RPC 1.0 client for a single Xaya Core wallet endpoint,
// authenticated with HTTP basic auth the way bitcoind-family nodes expect.
type Client struct {
	url      string
	user     string
	password string
	http     *http.Client
}

// New returns a Client talking to the wallet RPC endpoint at url, using
// user/password for HTTP basic auth.
func New(url, user, password string) *Client {
	return &Client{url: url, user: user, password: password, http: &http.Client{}}
}

type request struct {
	Method string        `json:"method"`
	Params []interface{} `json:"params"`
	Id     int           `json:"id"`
}

type response struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
	Id     int             `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("walletrpc: RPC error %d: %s", e.Code, e.Message)
}

// call issues a single JSON-RPC 1.0 request and unmarshals the result into
// out (which may be nil if the caller doesn't need the result).
func (c *Client) call(method string, params []interface{}, out interface{}) error {
	req := request{Method: method, Params: params, Id: 1}
	body, err := json.Marshal(req)
	if err != nil {
		return errors.Errorf("walletrpc: failed to marshal %s request: %v", method, err)
	}

	httpReq, err := http.NewRequest(http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return errors.Errorf("walletrpc: failed to build %s request: %v", method, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.user != "" {
		httpReq.SetBasicAuth(c.user, c.password)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return errors.Errorf("walletrpc: %s request failed: %v", method, err)
	}
	defer resp.Body.Close()

	var rpcResp response
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return errors.Errorf("walletrpc: failed to decode %s response: %v", method, err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return errors.Errorf("walletrpc: failed to unmarshal %s result: %v", method, err)
	}
	return nil
}

// SignMessage calls signmessage(address, message) and returns the
// base64-encoded recoverable signature, matching the Sign half of
// signer.Signer once the caller decodes it (see signer.WalletSigner for
// the verification side of the same scheme). message is an arbitrary
// binary digest rather than human text, so it is base64-encoded before
// going into the JSON request: encoding/json coerces a Go string to valid
// UTF-8 and silently replaces any byte that isn't, which would corrupt a
// raw hash almost every time it went over the wire.
func (c *Client) SignMessage(address string, message []byte) (string, error) {
	var sig string
	encoded := base64.StdEncoding.EncodeToString(message)
	err := c.call("signmessage", []interface{}{address, encoded}, &sig)
	if err != nil {
		log.Warnf("signmessage for %s failed: %v", address, err)
		return "", err
	}
	return sig, nil
}

// NameUpdate calls name_update(name, value) and returns the resulting
// transaction ID, used by mover to submit moves/disputes/resolutions under
// the "p/<playerName>" name.
func (c *Client) NameUpdate(name string, value []byte) (string, error) {
	var txid string
	err := c.call("name_update", []interface{}{name, string(value)}, &txid)
	if err != nil {
		log.Warnf("name_update for %s failed: %v", name, err)
		return "", err
	}
	return txid, nil
}

// GetChannel calls the getchannel RPC chainwatcher polls, returning the
// raw JSON payload for the caller to interpret (shape mirrors the
// channelstate the teacher's own JSON-RPC surface returns).
func (c *Client) GetChannel(id string) (json.RawMessage, error) {
	var raw json.RawMessage
	err := c.call("getchannel", []interface{}{id}, &raw)
	if err != nil {
		return nil, err
	}
	return raw, nil
}
