// Package feed mirrors broadcast board events to Redis for out-of-process observers.
package feed

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/Cheese-LiveBoard/internal/obslog"
	"github.com/park285/Cheese-LiveBoard/pkg/boarddto"
)

const (
	DefaultQueue = 256
	DefaultTTL   = 24 * time.Hour
)

var ErrClosed = errors.New("feed: publisher closed")

// EventsChannel is the pub/sub channel carrying every broadcast envelope of a match.
func EventsChannel(matchID string) string {
	return "liveboard:" + strings.TrimSpace(matchID) + ":events"
}

// FENKey holds the latest position of a match.
func FENKey(matchID string) string { return "liveboard:" + strings.TrimSpace(matchID) + ":fen" }

// Publisher queues envelopes without blocking and publishes them from a single
// worker, so Redis sees them in the order Broadcast was called.
type Publisher struct {
	rdb     *redis.Client
	matchID string
	ttl     time.Duration
	queue   chan boarddto.Envelope

	dropped atomic.Int64
	once    sync.Once
	done    chan struct{}
}

type Option func(*Publisher)

func WithQueue(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.queue = make(chan boarddto.Envelope, n)
		}
	}
}

func WithTTL(ttl time.Duration) Option {
	return func(p *Publisher) {
		if ttl > 0 {
			p.ttl = ttl
		}
	}
}

func NewPublisher(rdb *redis.Client, matchID string, opts ...Option) *Publisher {
	p := &Publisher{
		rdb:     rdb,
		matchID: strings.TrimSpace(matchID),
		ttl:     DefaultTTL,
		queue:   make(chan boarddto.Envelope, DefaultQueue),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Broadcast enqueues env. When the queue is full the event is dropped and counted.
func (p *Publisher) Broadcast(env boarddto.Envelope) {
	select {
	case <-p.done:
		return
	default:
	}
	select {
	case p.queue <- env:
	default:
		n := p.dropped.Add(1)
		obslog.L().Warn("feed_queue_full", zap.String("match_id", p.matchID), zap.String("event", env.Event), zap.Int64("dropped", n))
	}
}

// Dropped reports how many events were discarded because the queue was full.
func (p *Publisher) Dropped() int64 { return p.dropped.Load() }

// Run drains the queue until ctx is cancelled or Close is called, then flushes
// what is already queued.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case env := <-p.queue:
			p.publish(ctx, env)
		case <-ctx.Done():
			p.drain(context.Background())
			return ctx.Err()
		case <-p.done:
			p.drain(ctx)
			return ErrClosed
		}
	}
}

func (p *Publisher) drain(ctx context.Context) {
	for {
		select {
		case env := <-p.queue:
			p.publish(ctx, env)
		default:
			return
		}
	}
}

func (p *Publisher) publish(ctx context.Context, env boarddto.Envelope) {
	body, err := json.Marshal(env)
	if err != nil {
		obslog.L().Error("feed_encode_error", zap.String("event", env.Event), zap.Error(err))
		return
	}
	pipe := p.rdb.TxPipeline()
	pipe.Publish(ctx, EventsChannel(p.matchID), body)
	if env.Event == boarddto.EventPositionUpdate {
		var fen string
		if err := env.Decode(&fen); err == nil && fen != "" {
			pipe.Set(ctx, FENKey(p.matchID), fen, p.ttl)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		obslog.L().Warn("feed_publish_error", zap.String("match_id", p.matchID), zap.String("event", env.Event), zap.Error(err))
	}
}

// Close stops accepting events and makes Run return after flushing.
func (p *Publisher) Close() {
	p.once.Do(func() { close(p.done) })
}

// LatestFEN reads the mirrored position; "" when nothing was published yet.
func LatestFEN(ctx context.Context, rdb *redis.Client, matchID string) (string, error) {
	fen, err := rdb.Get(ctx, FENKey(matchID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("feed: get fen: %w", err)
	}
	return fen, nil
}

// Connect opens a client from REDIS_URL and pings it.
func Connect(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := ParseRedisURL(rawURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// ParseRedisURL accepts redis:// and rediss:// with an optional /<db> path.
func ParseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("redis db %q: %w", p, err)
		}
		db = n
	}
	pass, _ := u.User.Password()
	opts := &redis.Options{Addr: u.Host, Username: u.User.Username(), Password: pass, DB: db}
	if u.Scheme == "rediss" {
		opts.TLSConfig = &tls.Config{ServerName: u.Hostname(), MinVersion: tls.VersionTLS12}
	}
	return opts, nil
}
