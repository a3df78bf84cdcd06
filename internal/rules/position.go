// Package rules wraps github.com/corentings/chess/v2 behind the small, pure transition
// function shared by the server session and the client mirror.
package rules

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Side is the colour to move, tagged the way FEN tags it.
type Side string

const (
	White Side = "w"
	Black Side = "b"
)

// Opponent returns the other side.
func (s Side) Opponent() Side {
	if s == White {
		return Black
	}
	return White
}

// Position is an immutable game state. The zero value behaves as the start position.
// It carries the move history it was reached by so repetition draws and PGN export work.
type Position struct {
	game     *nchess.Game
	startFEN string
	uci      []string
	san      []string
}

// Start returns the initial position.
func Start() Position {
	return Position{game: nchess.NewGame(), startFEN: StartFEN}
}

// FromFEN parses a FEN string. The resulting position has no move history.
func FromFEN(fen string) (Position, error) {
	fen = strings.TrimSpace(fen)
	if fen == "" || fen == "startpos" {
		return Start(), nil
	}
	opt, err := nchess.FEN(fen)
	if err != nil {
		return Position{}, fmt.Errorf("parse fen %q: %w", fen, err)
	}
	return Position{game: nchess.NewGame(opt), startFEN: fen}, nil
}

func (p Position) normalized() Position {
	if p.game == nil {
		return Start()
	}
	return p
}

// FEN is the canonical string form.
func (p Position) FEN() string { return p.normalized().game.FEN() }

// StartFEN is the position the history starts from.
func (p Position) StartFEN() string {
	if p.startFEN == "" {
		return StartFEN
	}
	return p.startFEN
}

// Turn returns the side to move.
func (p Position) Turn() Side {
	if p.normalized().game.Position().Turn() == nchess.White {
		return White
	}
	return Black
}

// MovesUCI returns a copy of the applied moves in UCI form.
func (p Position) MovesUCI() []string { return append([]string(nil), p.uci...) }

// MovesSAN returns a copy of the applied moves in SAN form.
func (p Position) MovesSAN() []string { return append([]string(nil), p.san...) }

// MoveCount is the number of half-moves applied since StartFEN.
func (p Position) MoveCount() int { return len(p.uci) }

func (p Position) with(game *nchess.Game, uci, san string) Position {
	next := Position{game: game, startFEN: p.StartFEN()}
	next.uci = append(append(make([]string, 0, len(p.uci)+1), p.uci...), uci)
	next.san = append(append(make([]string, 0, len(p.san)+1), p.san...), san)
	return next
}
