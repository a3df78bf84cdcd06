package rules

import (
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// Terminal holds the end-of-game flags. At most one flag is set.
type Terminal struct {
	Checkmate bool
	Stalemate bool
	Draw      bool
	Method    string
}

// Over reports whether any terminal flag is set.
func (t Terminal) Over() bool { return t.Checkmate || t.Stalemate || t.Draw }

// Evaluate inspects pos for a terminal condition. Threefold repetition and the
// fifty-move rule count as draws as soon as they become claimable.
func Evaluate(pos Position) Terminal {
	game := pos.normalized().game
	switch game.Method() {
	case nchess.Checkmate:
		return Terminal{Checkmate: true, Method: methodName(nchess.Checkmate)}
	case nchess.Stalemate:
		return Terminal{Stalemate: true, Method: methodName(nchess.Stalemate)}
	}
	if game.Outcome() == nchess.Draw {
		return Terminal{Draw: true, Method: methodName(game.Method())}
	}
	for _, m := range game.EligibleDraws() {
		if m == nchess.ThreefoldRepetition || m == nchess.FiftyMoveRule {
			return Terminal{Draw: true, Method: methodName(m)}
		}
	}
	return Terminal{}
}

func methodName(m nchess.Method) string { return strings.ToLower(m.String()) }
