// Package broadcast implements channelmanager.OffChainBroadcast by fanning
// a serialized BroadcastMessage out to every peer currently connected over
// a websocket, following the teacher's own use of
// github.com/gorilla/websocket for subscription-style push endpoints.
// Delivery is fire-and-forget: a peer that is offline simply misses the
// broadcast, which spec.md §7 explicitly allows ("no retry... a later move
// will carry the newer state").
package broadcast

import (
	"net/http"
	"sync"

	"github.com/btcsuite/btclog"
	"github.com/gorilla/websocket"
)

// log is this package's subsystem logger (BCST, per SPEC_FULL.md §2.1).
var log = btclog.Disabled

// UseLogger lets callers plug in a concrete backend for this package's
// subsystem logger.
func UseLogger(logger btclog.Logger) {
	log = logger
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Peer connections for this daemon's own channels only; the browser
	// same-origin check gorilla/websocket applies by default is not
	// useful here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub is a set of connected peer sockets for a single channel, implementing
// channelmanager.OffChainBroadcast.SendMessage by writing to each of them.
type Hub struct {
	mu    sync.Mutex
	peers map[*websocket.Conn]struct{}
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{peers: make(map[*websocket.Conn]struct{})}
}

// ServeHTTP upgrades the incoming request to a websocket connection and
// registers it as a broadcast peer until the connection closes. It blocks
// for the lifetime of the connection, reading (and discarding) incoming
// frames purely to detect the peer disconnecting or sending a close frame.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("broadcast: websocket upgrade failed: %v", err)
		return
	}

	h.add(conn)
	defer h.remove(conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) add(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.peers[conn] = struct{}{}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.peers, conn)
	conn.Close()
}

// SendMessage fans msg out to every currently connected peer. A write
// failure to one peer is logged and does not prevent delivery to the
// others; the failing peer is dropped so a later broadcast doesn't keep
// retrying a dead connection.
func (h *Hub) SendMessage(msg []byte) error {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.peers))
	for c := range h.peers {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		if err := c.WriteMessage(websocket.BinaryMessage, msg); err != nil {
			log.Warnf("broadcast: write to peer failed, dropping: %v", err)
			h.remove(c)
		}
	}
	return nil
}

// PeerCount reports how many peers are currently connected, for metrics.
func (h *Hub) PeerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}
