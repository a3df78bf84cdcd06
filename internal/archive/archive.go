// Package archive stores finished matches for auditing. The live session never
// reads from it.
package archive

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/park285/Cheese-LiveBoard/internal/domain"
	"github.com/park285/Cheese-LiveBoard/internal/obslog"
	"github.com/park285/Cheese-LiveBoard/internal/rules"
)

var ErrUnsupportedURL = errors.New("archive: unsupported ARCHIVE_URL scheme")

// Repository persists match records.
type Repository interface {
	SaveResult(ctx context.Context, rec *domain.MatchRecord) error
	Recent(ctx context.Context, limit int) ([]*domain.MatchRecord, error)
	Close() error
}

// DefaultRecentLimit caps Recent when the caller passes a non-positive limit.
const DefaultRecentLimit = 20

// Open picks a backend from rawURL:
//
//	""  or "memory"          in-process map
//	postgres://, postgresql:// lib/pq
//	sqlite://<path>           modernc.org/sqlite
func Open(ctx context.Context, rawURL string) (Repository, error) {
	raw := strings.TrimSpace(rawURL)
	if raw == "" || raw == "memory" {
		return NewMemory(), nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse archive url: %w", err)
	}
	switch u.Scheme {
	case "postgres", "postgresql":
		return OpenPostgres(ctx, raw)
	case "sqlite":
		path := strings.TrimPrefix(raw, "sqlite://")
		return OpenSQLite(ctx, path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedURL, u.Scheme)
	}
}

// Recorder adapts repo into a match finish hook. The PGN is filled in here so
// every backend stores the same text.
func Recorder(repo Repository, timeout time.Duration) func(domain.MatchRecord) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return func(rec domain.MatchRecord) {
		if repo == nil {
			return
		}
		if rec.PGN == "" {
			rec.PGN = BuildPGN(&rec)
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := repo.SaveResult(ctx, &rec); err != nil {
			obslog.L().Error("archive_persist_error", zap.String("match_id", rec.MatchID), zap.String("result", rec.Result), zap.Error(err))
			return
		}
		obslog.L().Info("archive_persist", zap.String("match_id", rec.MatchID), zap.String("result", rec.Result), zap.String("method", rec.Method))
	}
}

func mapResultToPGN(result string) string {
	switch strings.ToLower(strings.TrimSpace(result)) {
	case "white":
		return "1-0"
	case "black":
		return "0-1"
	case "draw":
		return "1/2-1/2"
	default:
		return "*"
	}
}

// BuildPGN renders rec as a PGN game. A non-standard start position adds the
// SetUp/FEN tag pair.
func BuildPGN(rec *domain.MatchRecord) string {
	if rec == nil {
		return ""
	}
	pgnResult := mapResultToPGN(rec.Result)
	date := rec.EndedAt
	if date.IsZero() {
		date = time.Now()
	}
	var b strings.Builder
	b.WriteString("[Event \"LiveBoard\"]\n")
	fmt.Fprintf(&b, "[Site \"%s\"]\n", sanitizePGN(rec.MatchID))
	fmt.Fprintf(&b, "[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day())
	fmt.Fprintf(&b, "[White \"%s\"]\n", sanitizePGN(orUnknown(rec.WhiteConn)))
	fmt.Fprintf(&b, "[Black \"%s\"]\n", sanitizePGN(orUnknown(rec.BlackConn)))
	if fen := strings.TrimSpace(rec.StartFEN); fen != "" && fen != rules.StartFEN {
		b.WriteString("[SetUp \"1\"]\n")
		fmt.Fprintf(&b, "[FEN \"%s\"]\n", sanitizePGN(fen))
	}
	if m := strings.TrimSpace(rec.Method); m != "" {
		fmt.Fprintf(&b, "[Termination \"%s\"]\n", sanitizePGN(strings.ToLower(m)))
	}
	fmt.Fprintf(&b, "[Result \"%s\"]\n\n", pgnResult)

	for i := 0; i < len(rec.MovesSAN); i += 2 {
		fmt.Fprintf(&b, "%d. %s", i/2+1, strings.TrimSpace(rec.MovesSAN[i]))
		if i+1 < len(rec.MovesSAN) {
			b.WriteString(" ")
			b.WriteString(strings.TrimSpace(rec.MovesSAN[i+1]))
		}
		b.WriteString(" ")
	}
	b.WriteString(pgnResult)
	return b.String()
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "?"
	}
	return s
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
