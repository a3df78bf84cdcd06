package rules

import (
	"fmt"

	nchess "github.com/corentings/chess/v2"
)

// Result is the tagged outcome of Apply: either OK with the next position,
// or a rejection Reason with the underlying error.
type Result struct {
	OK       bool
	Position Position
	UCI      string
	SAN      string
	Reason   Reason
	Err      error
}

func reject(reason Reason, err error) Result {
	return Result{Reason: reason, Err: err}
}

// Apply validates act against pos and returns the resulting position.
// It never panics: engine faults come back as ReasonFault.
func Apply(pos Position, act Action) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = reject(ReasonFault, fmt.Errorf("rules engine panic: %v", r))
		}
	}()

	pos = pos.normalized()
	if pos.game.Outcome() != nchess.NoOutcome {
		return reject(ReasonFinished, fmt.Errorf("game already decided: %s", pos.game.Outcome()))
	}

	game := pos.game.Clone()
	current := game.Position()
	uci, err := act.uci(current.Board())
	if err != nil {
		return reject(ReasonMalformed, err)
	}
	mv, err := nchess.UCINotation{}.Decode(current, uci)
	if err != nil {
		return reject(ReasonIllegal, fmt.Errorf("decode %s: %w", uci, err))
	}
	san := nchess.AlgebraicNotation{}.Encode(current, mv)
	if err := game.Move(mv, nil); err != nil {
		return reject(ReasonIllegal, fmt.Errorf("apply %s: %w", uci, err))
	}
	return Result{OK: true, Position: pos.with(game, uci, san), UCI: uci, SAN: san}
}

// Engine is the collaborator the turn authority consumes.
type Engine interface {
	SideToMove(pos Position) Side
	Apply(pos Position, act Action) Result
	Terminal(pos Position) Terminal
	Serialize(pos Position) string
	Deserialize(fen string) (Position, error)
}

// Chess is the Engine backed by corentings/chess.
type Chess struct{}

// New returns the default engine.
func New() Chess { return Chess{} }

func (Chess) SideToMove(pos Position) Side             { return pos.Turn() }
func (Chess) Apply(pos Position, act Action) Result    { return Apply(pos, act) }
func (Chess) Terminal(pos Position) Terminal           { return Evaluate(pos) }
func (Chess) Serialize(pos Position) string            { return pos.FEN() }
func (Chess) Deserialize(fen string) (Position, error) { return FromFEN(fen) }
