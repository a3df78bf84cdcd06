package boardclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/park285/Cheese-LiveBoard/internal/archive"
	"github.com/park285/Cheese-LiveBoard/internal/match"
	"github.com/park285/Cheese-LiveBoard/internal/seat"
	"github.com/park285/Cheese-LiveBoard/internal/wsserver"
	"github.com/park285/Cheese-LiveBoard/pkg/boarddto"
)

func newBoardServer(t *testing.T) *httptest.Server {
	t.Helper()
	hub := wsserver.NewHub()
	repo := archive.NewMemory()
	sess, err := match.NewSession(match.WithNotifier(hub), match.WithID("client-test"))
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	hub.Attach(sess)
	srv := httptest.NewServer((&wsserver.Server{Hub: hub, Session: sess, Archive: repo, Version: "t"}).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_StateAndMatches(t *testing.T) {
	srv := newBoardServer(t)
	c := NewClient(srv.URL+"/", WithTimeout(2*time.Second))
	ctx := context.Background()

	if err := c.Health(ctx); err != nil {
		t.Fatalf("Health: %v", err)
	}
	snap, err := c.State(ctx)
	if err != nil || snap.MatchID != "client-test" || snap.Turn != "w" {
		t.Fatalf("State = %+v, %v", snap, err)
	}
	list, err := c.Matches(ctx, 3)
	if err != nil || len(list) != 0 {
		t.Fatalf("Matches = %v, %v", list, err)
	}
	if got := c.WSURL(); !strings.HasPrefix(got, "ws://") || !strings.HasSuffix(got, "/ws") {
		t.Fatalf("WSURL = %q", got)
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"match_id":"m","turn":"b"}`))
	}))
	defer srv.Close()

	snap, err := NewClient(srv.URL, WithRetry(3)).State(context.Background())
	if err != nil || snap.Turn != "b" {
		t.Fatalf("State = %+v, %v", snap, err)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d", calls.Load())
	}
}

func TestClient_DomainErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"bad_limit","message":"limit must be 1-200"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Matches(context.Background(), 999)
	if err == nil || !strings.Contains(err.Error(), "limit must be 1-200") {
		t.Fatalf("err = %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d", calls.Load())
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestConn_TwoParticipantsStayInSync(t *testing.T) {
	srv := newBoardServer(t)
	ws := NewClient(srv.URL).WSURL()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	white, err := Dial(ctx, ws)
	if err != nil {
		t.Fatalf("Dial white: %v", err)
	}
	defer white.Close()
	go func() { _ = white.Run(ctx) }()
	waitFor(t, "white role", func() bool { return white.Mirror().Role() == seat.First })

	black, err := Dial(ctx, ws)
	if err != nil {
		t.Fatalf("Dial black: %v", err)
	}
	defer black.Close()
	var blackFrames atomic.Int32
	black.OnEvent(func(boarddto.Envelope) { blackFrames.Add(1) })
	go func() { _ = black.Run(ctx) }()
	waitFor(t, "black role", func() bool { return black.Mirror().Role() == seat.Second })

	if err := black.Play(ctx, boarddto.Move{From: "e7", To: "e5"}); err == nil {
		t.Fatalf("black moved first")
	}
	if err := white.Play(ctx, boarddto.Move{From: "e2", To: "e4"}); err != nil {
		t.Fatalf("white Play: %v", err)
	}
	waitFor(t, "black sees e4", func() bool { return black.Mirror().CanAct() })
	if err := black.Play(ctx, boarddto.Move{From: "e7", To: "e5"}); err != nil {
		t.Fatalf("black Play: %v", err)
	}
	waitFor(t, "white sees e5", func() bool { return white.Mirror().CanAct() })

	waitFor(t, "mirrors agree", func() bool {
		w, b := white.Mirror().Position().FEN(), black.Mirror().Position().FEN()
		return w == b && strings.Contains(w, " w ")
	})
	if blackFrames.Load() == 0 {
		t.Fatalf("callback never fired")
	}
}
