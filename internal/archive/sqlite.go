package archive

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

var sqliteDialect = dialect{
	name: "sqlite",
	schema: `CREATE TABLE IF NOT EXISTS liveboard_matches (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
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
    started_at_ms INTEGER NOT NULL DEFAULT 0,
    ended_at_ms   INTEGER NOT NULL DEFAULT 0,
    duration_ms   INTEGER NOT NULL DEFAULT 0
)`,
}

// OpenSQLite opens (or creates) the archive database at path.
func OpenSQLite(ctx context.Context, path string) (Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	s, err := newSQLStore(ctx, db, sqliteDialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}
