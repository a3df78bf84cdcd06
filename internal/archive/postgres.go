package archive

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

var postgresDialect = dialect{
	name:   "postgres",
	dollar: true,
	schema: `CREATE TABLE IF NOT EXISTS liveboard_matches (
    id            BIGSERIAL PRIMARY KEY,
    match_id      TEXT NOT NULL UNIQUE,
    white_conn    TEXT NOT NULL DEFAULT '',
    black_conn    TEXT NOT NULL DEFAULT '',
    result        TEXT NOT NULL DEFAULT '',
    result_method TEXT NOT NULL DEFAULT '',
    start_fen     TEXT NOT NULL DEFAULT '',
    final_fen     TEXT NOT NULL DEFAULT '',
    moves_uci     TEXT NOT NULL DEFAULT '[]',
    moves_san     TEXT NOT NULL DEFAULT '[]',
    pgn           TEXT NOT NULL DEFAULT '',
    started_at_ms BIGINT NOT NULL DEFAULT 0,
    ended_at_ms   BIGINT NOT NULL DEFAULT 0,
    duration_ms   BIGINT NOT NULL DEFAULT 0
)`,
}

// OpenPostgres connects with lib/pq and makes sure the table exists.
func OpenPostgres(ctx context.Context, databaseURL string) (Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("postgres url is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	s, err := newSQLStore(pingCtx, db, postgresDialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}
