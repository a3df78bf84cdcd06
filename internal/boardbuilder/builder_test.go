package boardbuilder

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/park285/Cheese-LiveBoard/internal/config"
	"github.com/park285/Cheese-LiveBoard/internal/feed"
	"github.com/park285/Cheese-LiveBoard/pkg/boarddto"
)

func TestNew_MemoryDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	cfg, err := config.LoadFrom(map[string]string{})
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	deps, err := New(context.Background(), cfg, "test", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer deps.Close()
	if deps.Feed != nil || deps.Redis != nil {
		t.Fatalf("feed enabled without REDIS_URL")
	}
	if deps.Server.Session == nil || deps.Session.ID() == "" {
		t.Fatalf("session not wired")
	}

	deps.Session.Connect("a")
	deps.Session.Connect("b")
	for _, step := range []struct {
		conn     string
		from, to string
	}{{"a", "f2", "f3"}, {"b", "e7", "e5"}, {"a", "g2", "g4"}, {"b", "d8", "h4"}} {
		if out := deps.Session.Submit(context.Background(), step.conn, boarddto.Move{From: step.from, To: step.to}); !out.Accepted() {
			t.Fatalf("%s%s: %+v", step.from, step.to, out)
		}
	}
	deps.Session.Wait()
	if recs, err := deps.Archive.Recent(context.Background(), 5); err != nil || len(recs) != 1 {
		t.Fatalf("memory archive = %v, %v", recs, err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 0 {
		t.Fatalf("default config wrote files: %v, %v", entries, err)
	}
}

func TestNew_FeedAndSQLiteArchive(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()

	cfg, err := config.LoadFrom(map[string]string{
		"REDIS_URL":   "redis://" + mr.Addr() + "/0",
		"ARCHIVE_URL": "sqlite://" + filepath.Join(t.TempDir(), "a.db"),
		"START_FEN":   "k7/8/8/1Q6/8/8/8/7K w - - 0 1",
	})
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	deps, err := New(ctx, cfg, "test", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer deps.Close()
	if deps.Feed == nil {
		t.Fatalf("feed not wired")
	}
	go func() { _ = deps.Feed.Run(ctx) }()

	deps.Session.Connect("a")
	deps.Session.Connect("b")
	out := deps.Session.Submit(ctx, "a", boarddto.Move{From: "b5", To: "b6"})
	if out.Result == nil || !out.Result.Stalemate {
		t.Fatalf("outcome = %+v", out)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		fen, err := feed.LatestFEN(ctx, deps.Redis, deps.Session.ID())
		if err == nil && fen == out.FEN {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("feed fen = %q, %v (want %q)", fen, err, out.FEN)
		}
		time.Sleep(10 * time.Millisecond)
	}

	deps.Session.Wait()
	recs, err := deps.Archive.Recent(ctx, 1)
	if err != nil || len(recs) != 1 || recs[0].Method != "stalemate" || recs[0].Result != "draw" {
		t.Fatalf("archive = %+v, %v", recs, err)
	}
}
