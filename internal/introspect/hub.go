// Package introspect serves a read-only debug websocket feed of a
// participant's discovery state and recent trace activity, grounded on the
// teacher's main.go Client/Broker pattern (per-connection send channel,
// upgrade handshake, ping/pong keepalive) but carrying discovery snapshots
// instead of game-world diffs, and authenticated with the teacher's HMAC
// token verifier (internal/auth) instead of left unauthenticated.
package introspect

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"ddscore/internal/auth"
	"ddscore/internal/logging"
)

const (
	writeWait          = 10 * time.Second
	pingInterval       = 20 * time.Second
	pongWaitMultiplier = 2
	maxQueuedFrames    = 32
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// Snapshot is one discovery-state broadcast sent to every connected viewer.
type Snapshot struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// Viewer is one connected debug-feed subscriber.
type Viewer struct {
	conn *websocket.Conn
	send chan []byte
	id   string
	log  *logging.Logger
}

// Hub fans discovery snapshots out to every connected Viewer, mirroring the
// teacher's Broker but with a single outbound feed and no client-to-server
// payload handling beyond keepalive control frames.
type Hub struct {
	mu       sync.RWMutex
	viewers  map[*Viewer]bool
	log      *logging.Logger
	verifier *auth.HMACTokenVerifier
	limiter  *SlidingWindowLimiter
}

// NewHub constructs a Hub. A nil verifier disables token authentication,
// which is only appropriate for local development; production deployments
// should always configure DDS_INTROSPECT_TOKEN.
func NewHub(verifier *auth.HMACTokenVerifier, logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.L()
	}
	return &Hub{
		viewers:  make(map[*Viewer]bool),
		log:      logger,
		verifier: verifier,
		limiter:  NewSlidingWindowLimiter(time.Minute, 30, nil),
	}
}

// ServeHTTP upgrades the request to a websocket and registers the resulting
// Viewer, rejecting connections that fail token verification or exceed the
// connection-attempt rate limit.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.limiter.Allow() {
		http.Error(w, "too many connection attempts", http.StatusTooManyRequests)
		return
	}

	viewerID := r.RemoteAddr
	if h.verifier != nil {
		token := bearerToken(r)
		claims, err := h.verifier.Verify(token)
		if err != nil {
			h.log.Warn("rejecting introspect connection: invalid token", logging.Error(err))
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if strings.TrimSpace(claims.Subject) != "" {
			viewerID = claims.Subject
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("introspect websocket upgrade failed", logging.Error(err))
		return
	}

	viewer := &Viewer{conn: conn, send: make(chan []byte, maxQueuedFrames), id: viewerID, log: h.log.With(logging.String("viewer_id", viewerID))}
	h.register(viewer)

	go h.readPump(viewer)
	go h.writePump(viewer)
}

func bearerToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	header := r.Header.Get("Authorization")
	return strings.TrimPrefix(header, "Bearer ")
}

func (h *Hub) register(v *Viewer) {
	h.mu.Lock()
	h.viewers[v] = true
	h.mu.Unlock()
}

func (h *Hub) deregister(v *Viewer) {
	h.mu.Lock()
	if _, ok := h.viewers[v]; ok {
		delete(h.viewers, v)
		close(v.send)
	}
	h.mu.Unlock()
}

// Broadcast marshals snapshot to JSON and queues it for every connected
// viewer, dropping slow viewers' frames rather than blocking the caller.
func (h *Hub) Broadcast(snapshot Snapshot) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		h.log.Warn("introspect broadcast marshal failed", logging.Error(err))
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for v := range h.viewers {
		select {
		case v.send <- data:
		default:
			v.log.Warn("dropping introspect frame: viewer send buffer full")
		}
	}
}

// Viewers reports how many debug-feed connections are currently active.
func (h *Hub) Viewers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.viewers)
}

func (h *Hub) readPump(v *Viewer) {
	defer func() {
		h.deregister(v)
		_ = v.conn.Close()
	}()
	waitDuration := pongWaitMultiplier * pingInterval
	_ = v.conn.SetReadDeadline(time.Now().Add(waitDuration))
	v.conn.SetPongHandler(func(string) error {
		return v.conn.SetReadDeadline(time.Now().Add(waitDuration))
	})
	for {
		// The feed is read-only from the viewer's perspective; any inbound
		// frame is discarded, only the read deadline/pong keepalive matters.
		if _, _, err := v.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(v *Viewer) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = v.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-v.send:
			if !ok {
				_ = v.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := v.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				v.log.Warn("introspect write error", logging.Error(err))
				h.deregister(v)
				return
			}
		case <-ticker.C:
			_ = v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := v.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeWait)); err != nil {
				h.deregister(v)
				return
			}
		}
	}
}
