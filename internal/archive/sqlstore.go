package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/park285/Cheese-LiveBoard/internal/domain"
)

// dialect carries what differs between the SQL backends.
type dialect struct {
	name   string
	schema string
	// dollar rewrites ? placeholders to $1..$n.
	dollar bool
}

// sqlStore is the database/sql repository shared by postgres and sqlite.
type sqlStore struct {
	db *sql.DB
	d  dialect
}

func newSQLStore(ctx context.Context, db *sql.DB, d dialect) (*sqlStore, error) {
	s := &sqlStore{db: db, d: d}
	if _, err := db.ExecContext(ctx, d.schema); err != nil {
		return nil, fmt.Errorf("%s schema: %w", d.name, err)
	}
	return s, nil
}

func (s *sqlStore) q(query string) string {
	if !s.d.dollar {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const upsertMatch = `INSERT INTO liveboard_matches (
    match_id, white_conn, black_conn, result, result_method,
    start_fen, final_fen, moves_uci, moves_san, pgn,
    started_at_ms, ended_at_ms, duration_ms
  ) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)
  ON CONFLICT (match_id) DO UPDATE SET
    white_conn=EXCLUDED.white_conn,
    black_conn=EXCLUDED.black_conn,
    result=EXCLUDED.result,
    result_method=EXCLUDED.result_method,
    start_fen=EXCLUDED.start_fen,
    final_fen=EXCLUDED.final_fen,
    moves_uci=EXCLUDED.moves_uci,
    moves_san=EXCLUDED.moves_san,
    pgn=EXCLUDED.pgn,
    started_at_ms=EXCLUDED.started_at_ms,
    ended_at_ms=EXCLUDED.ended_at_ms,
    duration_ms=EXCLUDED.duration_ms`

const selectRecent = `SELECT id, match_id, white_conn, black_conn, result, result_method,
    start_fen, final_fen, moves_uci, moves_san, pgn, started_at_ms, ended_at_ms
  FROM liveboard_matches ORDER BY ended_at_ms DESC, id DESC LIMIT ?`

// SaveResult upserts rec keyed by match id.
func (s *sqlStore) SaveResult(ctx context.Context, rec *domain.MatchRecord) error {
	if s == nil || s.db == nil || rec == nil {
		return nil
	}
	movesUCIRaw, _ := json.Marshal(nonNil(rec.MovesUCI))
	movesSANRaw, _ := json.Marshal(nonNil(rec.MovesSAN))
	pgn := rec.PGN
	if pgn == "" {
		pgn = BuildPGN(rec)
	}
	_, err := s.db.ExecContext(ctx, s.q(upsertMatch),
		rec.MatchID,
		rec.WhiteConn, rec.BlackConn,
		strings.TrimSpace(rec.Result), strings.TrimSpace(rec.Method),
		rec.StartFEN, rec.FinalFEN,
		string(movesUCIRaw), string(movesSANRaw), pgn,
		rec.StartedAt.UnixMilli(), rec.EndedAt.UnixMilli(), rec.Duration().Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("%s save match %s: %w", s.d.name, rec.MatchID, err)
	}
	return nil
}

// Recent returns the latest finished matches, newest first.
func (s *sqlStore) Recent(ctx context.Context, limit int) ([]*domain.MatchRecord, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	rows, err := s.db.QueryContext(ctx, s.q(selectRecent), limit)
	if err != nil {
		return nil, fmt.Errorf("%s recent matches: %w", s.d.name, err)
	}
	defer rows.Close()

	out := make([]*domain.MatchRecord, 0, limit)
	for rows.Next() {
		var (
			rec                domain.MatchRecord
			uciRaw, sanRaw     string
			startedMS, endedMS int64
		)
		if err := rows.Scan(&rec.ID, &rec.MatchID, &rec.WhiteConn, &rec.BlackConn, &rec.Result, &rec.Method,
			&rec.StartFEN, &rec.FinalFEN, &uciRaw, &sanRaw, &rec.PGN, &startedMS, &endedMS); err != nil {
			return nil, fmt.Errorf("%s scan match: %w", s.d.name, err)
		}
		_ = json.Unmarshal([]byte(uciRaw), &rec.MovesUCI)
		_ = json.Unmarshal([]byte(sanRaw), &rec.MovesSAN)
		rec.StartedAt = time.UnixMilli(startedMS).UTC()
		rec.EndedAt = time.UnixMilli(endedMS).UTC()
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s iterate matches: %w", s.d.name, err)
	}
	return out, nil
}

func (s *sqlStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
