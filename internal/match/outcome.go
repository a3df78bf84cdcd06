package match

import (
	"github.com/park285/Cheese-LiveBoard/internal/rules"
	"github.com/park285/Cheese-LiveBoard/pkg/boarddto"
)

// Status classifies what Submit did with an action.
type Status string

const (
	StatusAccepted    Status = "accepted"
	StatusNotYourTurn Status = "not_your_turn"
	StatusInvalid     Status = "invalid_action"
)

// Outcome is returned by Submit for callers and tests; clients learn the same
// through events.
type Outcome struct {
	Status Status
	Reason rules.Reason
	UCI    string
	FEN    string
	Result *boarddto.MatchResult
}

// Accepted reports whether the position changed.
func (o Outcome) Accepted() bool { return o.Status == StatusAccepted }
