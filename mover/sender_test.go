package mover

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xaya/channeld/stateproof"
	"github.com/xaya/channeld/walletrpc"
)

type rpcRequest struct {
	Method string        `json:"method"`
	Params []interface{} `json:"params"`
	Id     int           `json:"id"`
}

func newCapturingServer(t *testing.T, capture *rpcRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(capture))
		w.Header().Set("Content-Type", "application/json")
		resp := map[string]interface{}{"result": "txid123", "id": capture.Id}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

var testChannelId = stateproof.ChannelId{0x01, 0x02, 0x03}

func TestSendOnChainMoveEnvelope(t *testing.T) {
	var captured rpcRequest
	srv := newCapturingServer(t, &captured)
	defer srv.Close()

	client := walletrpc.New(srv.URL, "", "")
	s := New(client, "mygame", "player", testChannelId)

	txid, err := s.SendOnChainMove([]byte(`{"finalNumber":100}`))
	require.NoError(t, err)
	require.Equal(t, "txid123", txid)

	require.Equal(t, "name_update", captured.Method)
	require.Equal(t, "p/player", captured.Params[0])

	var env map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(captured.Params[1].(string)), &env))
	require.Equal(t, float64(100), env["g"]["mygame"].(map[string]interface{})["finalNumber"])
}

func TestSendDisputeEnvelope(t *testing.T) {
	var captured rpcRequest
	srv := newCapturingServer(t, &captured)
	defer srv.Close()

	client := walletrpc.New(srv.URL, "", "")
	s := New(client, "mygame", "player", testChannelId)

	proof := &stateproof.Proof{InitialState: []byte("10 5")}
	txid, err := s.SendDispute(proof)
	require.NoError(t, err)
	require.Equal(t, "txid123", txid)

	var env struct {
		G map[string]struct {
			Type  string `json:"type"`
			Id    string `json:"id"`
			Proof string `json:"proof"`
		} `json:"g"`
	}
	require.NoError(t, json.Unmarshal([]byte(captured.Params[1].(string)), &env))

	require.Equal(t, "dispute", env.G["mygame"].Type)
	require.Equal(t, testChannelId.String(), env.G["mygame"].Id)

	decoded, err := base64.StdEncoding.DecodeString(env.G["mygame"].Proof)
	require.NoError(t, err)
	require.NotEmpty(t, decoded)
}

func TestSendResolutionEnvelope(t *testing.T) {
	var captured rpcRequest
	srv := newCapturingServer(t, &captured)
	defer srv.Close()

	client := walletrpc.New(srv.URL, "", "")
	s := New(client, "mygame", "player", testChannelId)

	proof := &stateproof.Proof{InitialState: []byte("12 6")}
	_, err := s.SendResolution(proof)
	require.NoError(t, err)

	var env struct {
		G map[string]struct {
			Type  string `json:"type"`
			Id    string `json:"id"`
			Proof string `json:"proof"`
		} `json:"g"`
	}
	require.NoError(t, json.Unmarshal([]byte(captured.Params[1].(string)), &env))
	require.Equal(t, "resolution", env.G["mygame"].Type)
	require.Equal(t, testChannelId.String(), env.G["mygame"].Id)
	require.NotEmpty(t, env.G["mygame"].Proof)
}
