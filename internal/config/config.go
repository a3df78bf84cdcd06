package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/park285/Cheese-LiveBoard/internal/obslog"
)

type LogConfig struct {
	Level   string `env:"LEVEL" envDefault:"info"`
	Format  string `env:"FORMAT" envDefault:"legacy"`
	Console bool   `env:"TO_CONSOLE" envDefault:"true"`
	File    string `env:"FILE"`
	Caller  bool   `env:"CALLER"`
}

type AppConfig struct {
	Bind      string `env:"BIND" envDefault:"0.0.0.0"`
	Port      int    `env:"PORT" envDefault:"3000"`
	PublicURL string `env:"PUBLIC_URL"`

	AllowedOrigins []string      `env:"ALLOWED_ORIGINS" envSeparator:","`
	SendQueue      int           `env:"WS_SEND_QUEUE" envDefault:"64"`
	PingInterval   time.Duration `env:"WS_PING_INTERVAL" envDefault:"15s"`

	// START_FEN lets an operator open the match from a custom position.
	StartFEN string `env:"START_FEN"`

	RedisURL   string        `env:"REDIS_URL"`
	FeedTTL    time.Duration `env:"FEED_TTL" envDefault:"24h"`
	ArchiveURL string        `env:"ARCHIVE_URL"`

	MessageDir   string `env:"MESSAGE_DIR"`
	OTelEndpoint string `env:"OTEL_EXPORTER_ENDPOINT"`

	Log LogConfig `envPrefix:"LOG_"`
}

// Load reads the process environment.
func Load() (*AppConfig, error) {
	return parse(env.Options{})
}

// LoadFrom reads configuration from the given variables only.
func LoadFrom(vars map[string]string) (*AppConfig, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) normalize() {
	c.Bind = strings.TrimSpace(c.Bind)
	c.PublicURL = strings.TrimRight(strings.TrimSpace(c.PublicURL), "/")
	c.RedisURL = strings.TrimSpace(c.RedisURL)
	c.ArchiveURL = strings.TrimSpace(c.ArchiveURL)
	origins := c.AllowedOrigins[:0]
	for _, o := range c.AllowedOrigins {
		if s := strings.TrimSpace(o); s != "" {
			origins = append(origins, s)
		}
	}
	c.AllowedOrigins = origins
	if c.SendQueue <= 0 {
		c.SendQueue = 64
	}
}

// Validate checks ranges and URL schemes.
func (c *AppConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	if c.RedisURL != "" && !strings.HasPrefix(c.RedisURL, "redis://") && !strings.HasPrefix(c.RedisURL, "rediss://") {
		return errors.New("REDIS_URL must use redis:// or rediss://")
	}
	if c.ArchiveURL != "" {
		switch {
		case strings.HasPrefix(c.ArchiveURL, "postgres://"), strings.HasPrefix(c.ArchiveURL, "postgresql://"),
			strings.HasPrefix(c.ArchiveURL, "sqlite://"), c.ArchiveURL == "memory":
		default:
			return fmt.Errorf("unsupported ARCHIVE_URL scheme: %s", c.ArchiveURL)
		}
	}
	return nil
}

// Addr is the listen address.
func (c *AppConfig) Addr() string { return fmt.Sprintf("%s:%d", c.Bind, c.Port) }

// LogOptions maps the LOG_* block onto obslog options.
func (c *AppConfig) LogOptions() obslog.Options {
	return obslog.Options{
		Level:   c.Log.Level,
		Format:  c.Log.Format,
		Console: c.Log.Console,
		File:    c.Log.File,
		Caller:  c.Log.Caller,
	}
}
