package boardbuilder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/Cheese-LiveBoard/internal/archive"
	"github.com/park285/Cheese-LiveBoard/internal/config"
	"github.com/park285/Cheese-LiveBoard/internal/feed"
	"github.com/park285/Cheese-LiveBoard/internal/match"
	"github.com/park285/Cheese-LiveBoard/internal/msgcat"
	"github.com/park285/Cheese-LiveBoard/internal/obslog"
	"github.com/park285/Cheese-LiveBoard/internal/wsserver"
)

type Deps struct {
	Session *match.Session
	Hub     *wsserver.Hub
	Server  *wsserver.Server
	Archive archive.Repository
	Feed    *feed.Publisher // nil without REDIS_URL
	Redis   *redis.Client
}

// New builds every component from cfg. Redis is optional; the archive falls
// back to memory when ARCHIVE_URL is empty.
func New(ctx context.Context, cfg *config.AppConfig, version string, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	catalog, err := msgcat.New(cfg.MessageDir)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}

	repo, err := archive.Open(ctx, cfg.ArchiveURL)
	if err != nil {
		return nil, fmt.Errorf("init archive: %w", err)
	}
	deps := &Deps{Archive: repo}

	hub := wsserver.NewHub(
		wsserver.WithAllowedOrigins(cfg.AllowedOrigins),
		wsserver.WithSendQueue(cfg.SendQueue),
		wsserver.WithPingInterval(cfg.PingInterval),
	)
	deps.Hub = hub

	var notifier match.Notifier = hub
	opts := []match.Option{
		match.WithCatalog(catalog),
		match.WithStartFEN(cfg.StartFEN),
		match.OnFinish(archive.Recorder(repo, 5*time.Second)),
	}
	// The match id is needed for the feed channel before the session exists.
	matchID := uuid.NewString()
	opts = append(opts, match.WithID(matchID))

	if cfg.RedisURL != "" {
		rdb, err := feed.Connect(ctx, cfg.RedisURL)
		if err != nil {
			_ = deps.Close()
			return nil, fmt.Errorf("init feed: %w", err)
		}
		deps.Redis = rdb
		deps.Feed = feed.NewPublisher(rdb, matchID, feed.WithTTL(cfg.FeedTTL))
		notifier = match.Fanout(hub, deps.Feed)
		logger.Info("feed_enabled", zap.String("channel", feed.EventsChannel(matchID)))
	}
	opts = append(opts, match.WithNotifier(notifier))

	sess, err := match.NewSession(opts...)
	if err != nil {
		_ = deps.Close()
		return nil, err
	}
	hub.Attach(sess)
	deps.Session = sess
	deps.Server = &wsserver.Server{
		Hub:       hub,
		Session:   sess,
		Archive:   repo,
		Version:   version,
		PublicURL: cfg.PublicURL,
	}
	logger.Info("match_ready", zap.String("match_id", sess.ID()), zap.String("fen", sess.Snapshot().FEN))
	return deps, nil
}

// Run serves HTTP (and the feed worker, when enabled) until ctx ends.
func (d *Deps) Run(ctx context.Context, bind string, port int) error {
	if d.Feed != nil {
		go func() {
			if err := d.Feed.Run(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, feed.ErrClosed) {
				obslog.L().Warn("feed_stopped", zap.Error(err))
			}
		}()
	}
	err := d.Server.ListenAndServe(ctx, bind, port)
	if d.Session != nil {
		d.Session.Wait()
	}
	return err
}

func (d *Deps) Close() error {
	var errs []error
	if d.Feed != nil {
		d.Feed.Close()
	}
	if d.Redis != nil {
		errs = append(errs, d.Redis.Close())
	}
	if d.Archive != nil {
		errs = append(errs, d.Archive.Close())
	}
	return errors.Join(errs...)
}
