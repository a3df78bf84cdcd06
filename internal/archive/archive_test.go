package archive

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/park285/Cheese-LiveBoard/internal/domain"
)

func sampleRecord(id string, ended time.Time) *domain.MatchRecord {
	return &domain.MatchRecord{
		MatchID:   id,
		WhiteConn: "conn-w",
		BlackConn: "conn-b",
		Result:    "black",
		Method:    "checkmate",
		FinalFEN:  "rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3",
		MovesUCI:  []string{"f2f3", "e7e5", "g2g4", "d8h4"},
		MovesSAN:  []string{"f3", "e5", "g4", "Qh4#"},
		StartedAt: ended.Add(-time.Minute),
		EndedAt:   ended,
	}
}

func TestBuildPGN(t *testing.T) {
	rec := sampleRecord("m1", time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC))
	pgn := BuildPGN(rec)
	for _, want := range []string{
		`[Date "2026.03.04"]`,
		`[White "conn-w"]`,
		`[Termination "checkmate"]`,
		`[Result "0-1"]`,
		"1. f3 e5 2. g4 Qh4# 0-1",
	} {
		if !strings.Contains(pgn, want) {
			t.Fatalf("pgn missing %q:\n%s", want, pgn)
		}
	}
	if strings.Contains(pgn, "[SetUp") {
		t.Fatalf("standard start should not carry SetUp:\n%s", pgn)
	}

	rec.StartFEN = "k7/8/8/1Q6/8/8/8/7K w - - 0 1"
	rec.Result = "draw"
	rec.WhiteConn = `bad"name`
	pgn = BuildPGN(rec)
	if !strings.Contains(pgn, `[FEN "k7/8/8/1Q6/8/8/8/7K w - - 0 1"]`) || !strings.Contains(pgn, `[Result "1/2-1/2"]`) {
		t.Fatalf("custom start pgn:\n%s", pgn)
	}
	if !strings.Contains(pgn, `[White "bad'name"]`) {
		t.Fatalf("tag not sanitized:\n%s", pgn)
	}
}

func exerciseRepository(t *testing.T, repo Repository) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	if err := repo.SaveResult(ctx, sampleRecord("old", base)); err != nil {
		t.Fatalf("SaveResult old: %v", err)
	}
	if err := repo.SaveResult(ctx, sampleRecord("new", base.Add(time.Hour))); err != nil {
		t.Fatalf("SaveResult new: %v", err)
	}
	// Upsert keeps one row per match.
	again := sampleRecord("old", base)
	again.Result = "white"
	if err := repo.SaveResult(ctx, again); err != nil {
		t.Fatalf("SaveResult upsert: %v", err)
	}

	got, err := repo.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("recent len = %d", len(got))
	}
	if got[0].MatchID != "new" || got[1].MatchID != "old" {
		t.Fatalf("order = %s, %s", got[0].MatchID, got[1].MatchID)
	}
	if got[1].Result != "white" {
		t.Fatalf("upserted result = %q", got[1].Result)
	}
	if len(got[0].MovesSAN) != 4 || got[0].MovesSAN[3] != "Qh4#" {
		t.Fatalf("moves = %v", got[0].MovesSAN)
	}
	if !got[0].EndedAt.Equal(base.Add(time.Hour)) || got[0].Duration() != time.Minute {
		t.Fatalf("times = %v / %v", got[0].EndedAt, got[0].Duration())
	}
	if !strings.Contains(got[0].PGN, "Qh4#") {
		t.Fatalf("pgn not stored: %q", got[0].PGN)
	}

	one, err := repo.Recent(ctx, 1)
	if err != nil || len(one) != 1 {
		t.Fatalf("Recent(1) = %d, %v", len(one), err)
	}
}

func TestMemoryRepository(t *testing.T) {
	repo := NewMemory()
	defer repo.Close()
	exerciseRepository(t, repo)
}

func TestSQLiteRepository(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.db")
	repo, err := Open(context.Background(), "sqlite://"+path)
	if err != nil {
		t.Fatalf("Open sqlite: %v", err)
	}
	defer repo.Close()
	exerciseRepository(t, repo)
}

func TestOpen_Schemes(t *testing.T) {
	repo, err := Open(context.Background(), "")
	if err != nil {
		t.Fatalf("Open empty: %v", err)
	}
	if _, ok := repo.(*memrepo); !ok {
		t.Fatalf("empty url backend = %T", repo)
	}
	if _, err := Open(context.Background(), "mysql://x"); !errors.Is(err, ErrUnsupportedURL) {
		t.Fatalf("mysql err = %v", err)
	}
}

func TestPlaceholderRewrite(t *testing.T) {
	s := &sqlStore{d: postgresDialect}
	if got := s.q("SELECT ? , ?"); got != "SELECT $1 , $2" {
		t.Fatalf("rewrite = %q", got)
	}
	s = &sqlStore{d: sqliteDialect}
	if got := s.q("SELECT ?"); got != "SELECT ?" {
		t.Fatalf("sqlite rewrite = %q", got)
	}
}

func TestRecorder_FillsPGNAndSaves(t *testing.T) {
	repo := NewMemory()
	hook := Recorder(repo, time.Second)
	hook(*sampleRecord("hooked", time.Now()))

	got, err := repo.Recent(context.Background(), 5)
	if err != nil || len(got) != 1 {
		t.Fatalf("Recent = %d, %v", len(got), err)
	}
	if !strings.Contains(got[0].PGN, `[Site "hooked"]`) {
		t.Fatalf("pgn = %q", got[0].PGN)
	}
}
