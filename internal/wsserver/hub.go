// Package wsserver exposes the live match over websockets and a few HTTP routes.
package wsserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/Cheese-LiveBoard/internal/match"
	"github.com/park285/Cheese-LiveBoard/internal/obslog"
	"github.com/park285/Cheese-LiveBoard/internal/seat"
	"github.com/park285/Cheese-LiveBoard/pkg/boarddto"
)

// Session is the part of match.Session the hub drives.
type Session interface {
	Connect(connID string) seat.Role
	Disconnect(connID string)
	Submit(ctx context.Context, connID string, mv boarddto.Move) match.Outcome
	Snapshot() boarddto.StateSnapshot
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	// joined flips on the first direct Send, which is the role notification
	// issued by Session.Connect. Broadcasts skip the client until then.
	joined   atomic.Bool
	dropOnce sync.Once
}

// Hub tracks live connections. It implements match.Notifier: Send and
// Broadcast only enqueue, and a connection whose queue is full is closed.
type Hub struct {
	allowOrigins map[string]bool
	sendQueue    int
	pingInterval time.Duration
	writeTimeout time.Duration

	mu      sync.RWMutex
	clients map[string]*client

	session Session
}

type HubOption func(*Hub)

// WithAllowedOrigins restricts the Origin header of websocket handshakes.
// No origins means any origin is accepted.
func WithAllowedOrigins(origins []string) HubOption {
	return func(h *Hub) {
		for _, o := range origins {
			if o != "" {
				h.allowOrigins[o] = true
			}
		}
	}
}

func WithSendQueue(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.sendQueue = n
		}
	}
}

func WithPingInterval(d time.Duration) HubOption {
	return func(h *Hub) {
		if d > 0 {
			h.pingInterval = d
		}
	}
}

func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		allowOrigins: map[string]bool{},
		sendQueue:    64,
		pingInterval: 15 * time.Second,
		writeTimeout: 5 * time.Second,
		clients:      map[string]*client{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Attach sets the session served by ServeWS. It must be called before the
// first connection arrives.
func (h *Hub) Attach(s Session) { h.session = s }

// Clients reports the number of open connections.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Send implements match.Notifier.
func (h *Hub) Send(connID string, env boarddto.Envelope) {
	b, err := json.Marshal(env)
	if err != nil {
		obslog.L().Error("ws_encode_error", zap.String("event", env.Event), zap.Error(err))
		return
	}
	h.mu.RLock()
	c := h.clients[connID]
	if c != nil {
		c.joined.Store(true)
		h.enqueueLocked(c, b)
	}
	h.mu.RUnlock()
}

// Broadcast implements match.Notifier.
func (h *Hub) Broadcast(env boarddto.Envelope) {
	b, err := json.Marshal(env)
	if err != nil {
		obslog.L().Error("ws_encode_error", zap.String("event", env.Event), zap.Error(err))
		return
	}
	h.mu.RLock()
	for _, c := range h.clients {
		if c.joined.Load() {
			h.enqueueLocked(c, b)
		}
	}
	h.mu.RUnlock()
}

// enqueueLocked runs with h.mu held for reading; unregister closes send under
// the write lock, so the channel is open here.
func (h *Hub) enqueueLocked(c *client, b []byte) {
	select {
	case c.send <- b:
	default:
		c.dropOnce.Do(func() {
			obslog.L().Warn("ws_send_queue_full", zap.String("conn_id", c.id), zap.Int("queue", cap(c.send)))
			go func() { _ = c.conn.Close(websocket.StatusPolicyViolation, "send queue full") }()
		})
	}
}

// CloseAll closes every open connection; their handlers then unregister.
func (h *Hub) CloseAll(reason string) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for _, c := range h.clients {
		conns = append(conns, c.conn)
	}
	h.mu.RUnlock()
	for _, conn := range conns {
		_ = conn.Close(websocket.StatusGoingAway, reason)
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		close(c.send)
	}
	h.mu.Unlock()
}

// ServeWS upgrades the request and runs the connection until it closes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	if h.session == nil {
		http.Error(w, "session not ready", http.StatusServiceUnavailable)
		return
	}
	origin := r.Header.Get("Origin")
	if origin != "" && len(h.allowOrigins) > 0 && !h.allowOrigins[origin] {
		obslog.L().Warn("ws_origin_rejected", zap.String("origin", origin))
		http.Error(w, "forbidden origin", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		obslog.L().Warn("ws_accept_error", zap.Error(err))
		return
	}

	c := &client{id: uuid.NewString(), conn: conn, send: make(chan []byte, h.sendQueue)}
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	h.register(c)
	obslog.L().Info("ws_connected", zap.String("conn_id", c.id), zap.String("remote", r.RemoteAddr))

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writeLoop(ctx, c)
	}()

	h.session.Connect(c.id)
	h.readLoop(ctx, c)

	h.unregister(c)
	h.session.Disconnect(c.id)
	cancel()
	<-writerDone
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	obslog.L().Info("ws_disconnected", zap.String("conn_id", c.id))
}

func (h *Hub) readLoop(ctx context.Context, c *client) {
	for {
		var env boarddto.Envelope
		if err := wsjson.Read(ctx, c.conn, &env); err != nil {
			if status := websocket.CloseStatus(err); status == -1 && !errors.Is(err, context.Canceled) {
				obslog.L().Debug("ws_read_end", zap.String("conn_id", c.id), zap.Error(err))
			}
			return
		}
		switch env.Event {
		case boarddto.EventAction:
			var mv boarddto.Move
			// An undecodable payload goes through as an empty move and is rejected as malformed.
			_ = env.Decode(&mv)
			h.session.Submit(ctx, c.id, mv)
		default:
			obslog.L().Debug("ws_unknown_event", zap.String("conn_id", c.id), zap.String("event", env.Event))
		}
	}
}

func (h *Hub) writeLoop(ctx context.Context, c *client) {
	ping := time.NewTicker(h.pingInterval)
	defer ping.Stop()
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			wctx, cancel := context.WithTimeout(ctx, h.writeTimeout)
			err := c.conn.Write(wctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				_ = c.conn.Close(websocket.StatusInternalError, "write failed")
				return
			}
		case <-ping.C:
			pctx, cancel := context.WithTimeout(ctx, h.writeTimeout)
			err := c.conn.Ping(pctx)
			cancel()
			if err != nil {
				_ = c.conn.Close(websocket.StatusGoingAway, "ping failure")
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
