package rules

import (
	"errors"
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// Action is a proposed move in coordinate form.
type Action struct {
	From      string
	To        string
	Promotion string
}

// Reason classifies a rejected action.
type Reason string

const (
	ReasonMalformed Reason = "malformed"
	ReasonIllegal   Reason = "illegal"
	ReasonFinished  Reason = "finished"
	ReasonFault     Reason = "engine_fault"
)

var (
	errBadSquare    = errors.New("square must be a file a-h followed by a rank 1-8")
	errSameSquare   = errors.New("source and destination are the same square")
	errBadPromotion = errors.New("promotion must be one of q, r, b, n")
	errNeedPromo    = errors.New("pawn reaching the last rank needs a promotion piece")
)

type square struct {
	file, rank int
}

func (s square) String() string { return fmt.Sprintf("%c%c", 'a'+s.file, '1'+s.rank) }

func (s square) chess() nchess.Square {
	return nchess.NewSquare(nchess.File(s.file), nchess.Rank(s.rank))
}

func parseSquare(raw string) (square, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if len(v) != 2 {
		return square{}, fmt.Errorf("%q: %w", raw, errBadSquare)
	}
	f, r := int(v[0]-'a'), int(v[1]-'1')
	if f < 0 || f > 7 || r < 0 || r > 7 {
		return square{}, fmt.Errorf("%q: %w", raw, errBadSquare)
	}
	return square{file: f, rank: r}, nil
}

func parsePromotion(raw string) (string, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	switch v {
	case "":
		return "", nil
	case "q", "r", "b", "n":
		return v, nil
	default:
		return "", fmt.Errorf("%q: %w", raw, errBadPromotion)
	}
}

// uci turns an action into UCI notation against board. The promotion piece is only
// appended when a pawn actually reaches the last rank and is ignored otherwise.
func (a Action) uci(board *nchess.Board) (string, error) {
	from, err := parseSquare(a.From)
	if err != nil {
		return "", err
	}
	to, err := parseSquare(a.To)
	if err != nil {
		return "", err
	}
	if from == to {
		return "", errSameSquare
	}
	promo, err := parsePromotion(a.Promotion)
	if err != nil {
		return "", err
	}
	out := from.String() + to.String()
	piece := board.Piece(from.chess())
	if piece.Type() == nchess.Pawn && (to.rank == 7 || to.rank == 0) {
		if promo == "" {
			return "", errNeedPromo
		}
		out += promo
	}
	return out, nil
}

// String renders the action for logs.
func (a Action) String() string {
	s := strings.TrimSpace(a.From) + strings.TrimSpace(a.To)
	if p := strings.TrimSpace(a.Promotion); p != "" {
		s += "=" + p
	}
	return s
}
