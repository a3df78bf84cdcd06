package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/park285/Cheese-LiveBoard/internal/boardclient"
	"github.com/park285/Cheese-LiveBoard/pkg/boarddto"
)

func main() {
	log.SetFlags(0)

	baseURL := pflag.StringP("url", "u", envOr("LIVEBOARD_URL", "http://127.0.0.1:3000"), "board base URL (env: LIVEBOARD_URL)")
	origin := pflag.String("origin", os.Getenv("LIVEBOARD_ORIGIN"), "Origin header for the websocket handshake")
	watch := pflag.Duration("watch", 0, "only observe for this long, ignoring stdin")
	pflag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := boardclient.NewClient(*baseURL, boardclient.WithTimeout(8*time.Second))
	hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	snap, err := client.State(hctx)
	cancel()
	if err != nil {
		log.Fatalf("/state error: %v", err)
	}
	log.Printf("/state ok: match=%s turn=%s moves=%d fen=%s", snap.MatchID, snap.Turn, snap.MoveCount, snap.FEN)

	conn, err := boardclient.Dial(ctx, client.WSURL(), boardclient.WithHeader("Origin", *origin))
	if err != nil {
		log.Fatalf("ws connect error: %v", err)
	}
	defer conn.Close()

	conn.OnEvent(func(env boarddto.Envelope) {
		line := fmt.Sprintf("<- %s %s", env.Event, env.Payload)
		if env.Message != "" {
			line += "  " + env.Message
		}
		fmt.Println(line)
	})
	done := make(chan error, 1)
	go func() { done <- conn.Run(ctx) }()

	if *watch > 0 {
		select {
		case <-time.After(*watch):
		case <-ctx.Done():
		case err := <-done:
			reportRun(err)
		}
		return
	}

	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-done:
			reportRun(err)
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			mv, err := boardclient.ParseUCI(line)
			if err != nil {
				log.Print(err)
				continue
			}
			if err := conn.Play(ctx, mv); err != nil {
				log.Printf("not sent: %v", err)
			}
		}
	}
}

func reportRun(err error) {
	if err != nil {
		log.Printf("connection closed: %v", err)
	}
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
