// Package boardclient is the participant side of the board: a local mirror of
// the authoritative match plus transports to reach the server.
package boardclient

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/park285/Cheese-LiveBoard/internal/rules"
	"github.com/park285/Cheese-LiveBoard/internal/seat"
	"github.com/park285/Cheese-LiveBoard/pkg/boarddto"
)

var (
	ErrNoRole      = errors.New("boardclient: no role assigned yet")
	ErrNotYourTurn = errors.New("boardclient: not your turn")
	ErrMatchOver   = errors.New("boardclient: match is over")
)

// RejectedError is returned by Propose when the local rules reject a move.
type RejectedError struct {
	Move   boarddto.Move
	Reason rules.Reason
	Err    error
}

func (e *RejectedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("move %s%s rejected (%s): %v", e.Move.From, e.Move.To, e.Reason, e.Err)
	}
	return fmt.Sprintf("move %s%s rejected (%s)", e.Move.From, e.Move.To, e.Reason)
}

func (e *RejectedError) Unwrap() error { return e.Err }

// Mirror tracks the role and position this participant believes in. A proposed
// move is shown at once; the server is authoritative and OnPosition always
// overwrites what the mirror holds.
type Mirror struct {
	mu     sync.RWMutex
	engine rules.Engine
	role   seat.Role
	pos    rules.Position
	result *boarddto.MatchResult
	notice string

	// confirmed is the last position the server vouched for. pending is the
	// optimistically applied move still awaiting its echo.
	confirmed rules.Position
	pending   *boarddto.Move
}

func NewMirror() *Mirror {
	start := rules.Start()
	return &Mirror{engine: rules.New(), pos: start, confirmed: start}
}

// Role is "" until the server assigns one.
func (m *Mirror) Role() seat.Role {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.role
}

func (m *Mirror) Position() rules.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pos
}

func (m *Mirror) Result() *boarddto.MatchResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.result
}

// LastNotice is the message of the most recent rejection from the server.
func (m *Mirror) LastNotice() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.notice
}

// OnRole records a seat. Unknown tags leave the mirror without a role.
func (m *Mirror) OnRole(tag string) error {
	var role seat.Role
	switch tag {
	case seat.First.Tag():
		role = seat.First
	case seat.Second.Tag():
		role = seat.Second
	default:
		return fmt.Errorf("boardclient: unknown role tag %q", tag)
	}
	m.mu.Lock()
	m.role = role
	m.mu.Unlock()
	return nil
}

func (m *Mirror) OnSpectator() {
	m.mu.Lock()
	m.role = seat.Spectator
	m.mu.Unlock()
}

// OnAction replays an accepted action on top of the confirmed position. The
// echo of our own pending move only confirms it. A failed replay is ignored;
// the position-update that follows reconciles.
func (m *Mirror) OnAction(mv boarddto.Move) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := m.engine.Apply(m.confirmed, rules.Action{From: mv.From, To: mv.To, Promotion: mv.Promotion})
	if !res.OK {
		return
	}
	m.confirmed = res.Position
	if m.pending != nil && sameMove(*m.pending, mv) {
		m.pending = nil
	}
	if m.pending == nil {
		m.pos = m.confirmed
	}
}

// OnPosition replaces the local position with the server's and drops any
// pending move.
func (m *Mirror) OnPosition(fen string) error {
	pos, err := m.engine.Deserialize(fen)
	if err != nil {
		return fmt.Errorf("boardclient: position update: %w", err)
	}
	m.mu.Lock()
	m.pos = pos
	m.confirmed = pos
	m.pending = nil
	m.mu.Unlock()
	return nil
}

// OnRejected records the server's message and undoes the pending move. No
// position-update follows a rejection.
func (m *Mirror) OnRejected(message string) {
	m.mu.Lock()
	m.notice = message
	m.rollbackLocked()
	m.mu.Unlock()
}

// Pending reports whether a proposed move awaits the server's echo.
func (m *Mirror) Pending() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pending != nil
}

func (m *Mirror) rollback() {
	m.mu.Lock()
	m.rollbackLocked()
	m.mu.Unlock()
}

func (m *Mirror) rollbackLocked() {
	m.pos = m.confirmed
	m.pending = nil
}

func sameMove(a, b boarddto.Move) bool {
	return a.From == b.From && a.To == b.To && strings.EqualFold(a.Promotion, b.Promotion)
}

func (m *Mirror) OnMatchOver(res boarddto.MatchResult) {
	m.mu.Lock()
	m.result = &res
	m.mu.Unlock()
}

// CanAct reports whether this participant holds the side to move in a running match.
func (m *Mirror) CanAct() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.canActLocked() == nil
}

func (m *Mirror) canActLocked() error {
	if m.result != nil {
		return ErrMatchOver
	}
	side, ok := m.role.Side()
	if !ok {
		if m.role == "" {
			return ErrNoRole
		}
		return ErrNotYourTurn
	}
	if side != m.engine.SideToMove(m.pos) {
		return ErrNotYourTurn
	}
	return nil
}

// Propose checks mv against the local position and, when legal, applies it
// locally before it is sent. The move stays pending until the server echoes
// it, rejects it, or sends a position-update.
func (m *Mirror) Propose(mv boarddto.Move) (boarddto.Move, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.canActLocked(); err != nil {
		return boarddto.Move{}, err
	}
	res := m.engine.Apply(m.pos, rules.Action{From: mv.From, To: mv.To, Promotion: mv.Promotion})
	if !res.OK {
		return boarddto.Move{}, &RejectedError{Move: mv, Reason: res.Reason, Err: res.Err}
	}
	m.pos = res.Position
	m.pending = &mv
	return mv, nil
}

// Handle applies one server frame to the mirror.
func (m *Mirror) Handle(env boarddto.Envelope) error {
	switch env.Event {
	case boarddto.EventRoleAssigned:
		var tag string
		if err := env.Decode(&tag); err != nil {
			return err
		}
		return m.OnRole(tag)
	case boarddto.EventSpectatorAssigned:
		m.OnSpectator()
	case boarddto.EventAction:
		var mv boarddto.Move
		if err := env.Decode(&mv); err != nil {
			return err
		}
		m.OnAction(mv)
	case boarddto.EventPositionUpdate:
		var fen string
		if err := env.Decode(&fen); err != nil {
			return err
		}
		return m.OnPosition(fen)
	case boarddto.EventMatchOver:
		var res boarddto.MatchResult
		if err := env.Decode(&res); err != nil {
			return err
		}
		m.OnMatchOver(res)
	case boarddto.EventNotYourTurn, boarddto.EventInvalidAction:
		m.OnRejected(env.Message)
	}
	return nil
}
