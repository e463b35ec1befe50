package node

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"nodeagent/internal/auth"
)

const (
	writeDeadline = 5 * time.Second
	readLimit     = 4096
)

var upgrader = websocket.Upgrader{
	// Requests are already gated by the request token.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Frame is a message sent to event stream subscribers.
type Frame struct {
	Type   string `json:"type"` // "hello", "peer" or "shutdown"
	NodeID string `json:"node_id,omitempty"`
	PeerID string `json:"peer_id,omitempty"`
}

// dataPlane serves the HTTP status endpoint and the websocket event stream.
type dataPlane struct {
	nodeID string
	status func() Status
	peers  *peerSet
	token  auth.Token
	log    zerolog.Logger

	mu      sync.Mutex
	conns   map[*websocket.Conn]struct{}
	closing bool
}

func newDataPlane(nodeID string, status func() Status, peers *peerSet, token auth.Token, log zerolog.Logger) *dataPlane {
	return &dataPlane{
		nodeID: nodeID,
		status: status,
		peers:  peers,
		token:  token,
		log:    log,
		conns:  make(map[*websocket.Conn]struct{}),
	}
}

// Handler returns the routes wrapped by the token check.
func (d *dataPlane) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/status", d.handleStatus)
	mux.HandleFunc("GET /v1/events", d.handleEvents)
	return auth.Middleware(d.token, mux)
}

func (d *dataPlane) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(d.status())
}

func (d *dataPlane) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		d.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(readLimit)

	d.mu.Lock()
	if d.closing {
		d.mu.Unlock()
		writeFrame(conn, Frame{Type: "shutdown", NodeID: d.nodeID})
		conn.Close()
		return
	}
	writeFrame(conn, Frame{Type: "hello", NodeID: d.nodeID})
	d.conns[conn] = struct{}{}
	d.mu.Unlock()

	if peerID := r.URL.Query().Get("peer"); peerID != "" {
		d.peers.add(peerID, time.Now().UTC())
		d.log.Info().Str("peer_id", peerID).Msg("peer connected")
		d.broadcast(Frame{Type: "peer", NodeID: d.nodeID, PeerID: peerID}, conn)
	}

	// Inbound messages are ignored; the loop only notices the peer going away.
	go func() {
		defer d.remove(conn)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()
}

// broadcast sends f to every subscriber except skip. Writes are serialized by d.mu.
func (d *dataPlane) broadcast(f Frame, skip *websocket.Conn) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for c := range d.conns {
		if c != skip {
			writeFrame(c, f)
		}
	}
}

func (d *dataPlane) remove(conn *websocket.Conn) {
	d.mu.Lock()
	delete(d.conns, conn)
	d.mu.Unlock()
	conn.Close()
}

// closeAll says goodbye to every subscriber and refuses new ones.
func (d *dataPlane) closeAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closing = true
	for c := range d.conns {
		writeFrame(c, Frame{Type: "shutdown", NodeID: d.nodeID})
		_ = c.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "node shutting down"),
			time.Now().Add(writeDeadline))
		c.Close()
		delete(d.conns, c)
	}
}

func writeFrame(c *websocket.Conn, f Frame) {
	_ = c.SetWriteDeadline(time.Now().Add(writeDeadline))
	_ = c.WriteJSON(f)
}
