package boardclient

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/Cheese-LiveBoard/internal/obslog"
	"github.com/park285/Cheese-LiveBoard/pkg/boarddto"
)

// EventCallback observes every frame after the mirror has applied it.
type EventCallback func(env boarddto.Envelope)

// Conn is one websocket connection to the board. There is no reconnect: a new
// connection is a new participant and gets whatever seat is free.
type Conn struct {
	conn   *websocket.Conn
	mirror *Mirror

	cbM sync.RWMutex
	cbs []EventCallback

	pingInterval time.Duration
	closeOnce    sync.Once
}

type DialOption func(*dialConfig)

type dialConfig struct {
	header       http.Header
	pingInterval time.Duration
	timeout      time.Duration
}

// WithHeader adds a handshake header (Origin, for example).
func WithHeader(k, v string) DialOption {
	return func(c *dialConfig) {
		if strings.TrimSpace(k) != "" && strings.TrimSpace(v) != "" {
			c.header.Set(k, v)
		}
	}
}

func WithClientPing(d time.Duration) DialOption {
	return func(c *dialConfig) { c.pingInterval = d }
}

// Dial connects to wsURL (ws:// or wss://, path /ws).
func Dial(ctx context.Context, wsURL string, opts ...DialOption) (*Conn, error) {
	cfg := dialConfig{header: http.Header{}, pingInterval: 30 * time.Second, timeout: 10 * time.Second}
	for _, opt := range opts {
		opt(&cfg)
	}
	dialCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, wsURL, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
		HTTPHeader:      cfg.header,
	})
	if err != nil {
		return nil, err
	}
	return &Conn{conn: conn, mirror: NewMirror(), pingInterval: cfg.pingInterval}, nil
}

func (c *Conn) Mirror() *Mirror { return c.mirror }

func (c *Conn) OnEvent(cb EventCallback) {
	if cb == nil {
		return
	}
	c.cbM.Lock()
	c.cbs = append(c.cbs, cb)
	c.cbM.Unlock()
}

// Run reads frames into the mirror until the connection or ctx ends.
func (c *Conn) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if c.pingInterval > 0 {
		go c.pingLoop(ctx)
	}
	for {
		var env boarddto.Envelope
		if err := wsjson.Read(ctx, c.conn, &env); err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if err := c.mirror.Handle(env); err != nil {
			obslog.L().Warn("board_frame_error", zap.String("event", env.Event), zap.Error(err))
		}
		c.cbM.RLock()
		cbs := make([]EventCallback, len(c.cbs))
		copy(cbs, c.cbs)
		c.cbM.RUnlock()
		for _, cb := range cbs {
			cb(env)
		}
	}
}

func (c *Conn) pingLoop(ctx context.Context) {
	t := time.NewTicker(c.pingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := c.conn.Ping(pctx)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			if failures >= 2 {
				_ = c.Close()
				return
			}
		}
	}
}

// Play applies mv to the mirror and sends it. Nothing is sent when the local
// check fails, and the mirror is rolled back when the write fails.
func (c *Conn) Play(ctx context.Context, mv boarddto.Move) error {
	out, err := c.mirror.Propose(mv)
	if err != nil {
		return err
	}
	env, err := boarddto.NewEnvelope(boarddto.EventAction, out)
	if err == nil {
		err = wsjson.Write(ctx, c.conn, env)
	}
	if err != nil {
		c.mirror.rollback()
		return err
	}
	return nil
}

func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() { err = c.conn.Close(websocket.StatusNormalClosure, "close") })
	return err
}
