// Package match owns the single live match: seat assignment, turn authority and
// the ordered broadcast of accepted moves.
package match

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/park285/Cheese-LiveBoard/internal/domain"
	"github.com/park285/Cheese-LiveBoard/internal/msgcat"
	"github.com/park285/Cheese-LiveBoard/internal/obslog"
	"github.com/park285/Cheese-LiveBoard/internal/rules"
	"github.com/park285/Cheese-LiveBoard/internal/seat"
	"github.com/park285/Cheese-LiveBoard/pkg/boarddto"
)

const tracerName = "github.com/park285/Cheese-LiveBoard/internal/match"

// Session is the one authoritative match. Connect, Disconnect and Submit are
// serialized by a single mutex; notifications are emitted inside the same step so
// every observer sees moves in the order the position changed.
type Session struct {
	mu sync.Mutex

	id        string
	engine    rules.Engine
	seats     *seat.Registry
	pos       rules.Position
	startFEN  string
	result    *boarddto.MatchResult
	method    string
	startedAt time.Time

	out      Notifier
	catalog  *msgcat.Catalog
	tracer   trace.Tracer
	now      func() time.Time
	onFinish []func(domain.MatchRecord)
	hooks    sync.WaitGroup
}

type Option func(*Session)

func WithEngine(e rules.Engine) Option { return func(s *Session) { s.engine = e } }

func WithNotifier(n Notifier) Option { return func(s *Session) { s.out = n } }

func WithCatalog(c *msgcat.Catalog) Option { return func(s *Session) { s.catalog = c } }

func WithTracer(t trace.Tracer) Option { return func(s *Session) { s.tracer = t } }

func WithClock(now func() time.Time) Option { return func(s *Session) { s.now = now } }

func WithID(id string) Option { return func(s *Session) { s.id = strings.TrimSpace(id) } }

// WithStartFEN opens the match from a custom position instead of the standard one.
func WithStartFEN(fen string) Option { return func(s *Session) { s.startFEN = strings.TrimSpace(fen) } }

// OnFinish registers fn to receive the match record once the match ends.
// fn runs on its own goroutine, outside the critical section.
func OnFinish(fn func(domain.MatchRecord)) Option {
	return func(s *Session) {
		if fn != nil {
			s.onFinish = append(s.onFinish, fn)
		}
	}
}

// NewSession builds the session. It fails only when WithStartFEN is not a valid position.
func NewSession(opts ...Option) (*Session, error) {
	s := &Session{
		engine: rules.New(),
		seats:  seat.NewRegistry(),
		out:    nopNotifier{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	if s.catalog == nil {
		s.catalog = msgcat.Default()
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
	if s.out == nil {
		s.out = nopNotifier{}
	}
	pos := rules.Start()
	if s.startFEN != "" {
		p, err := s.engine.Deserialize(s.startFEN)
		if err != nil {
			return nil, fmt.Errorf("start position: %w", err)
		}
		pos = p
	}
	s.pos = pos
	s.startedAt = s.now()
	return s, nil
}

// ID identifies the match in logs, the event feed and the archive.
func (s *Session) ID() string { return s.id }

// Connect assigns a role to connID and tells only that connection about it,
// followed by the current position (and the result, when the match is over).
func (s *Session) Connect(connID string) seat.Role {
	s.mu.Lock()
	role := s.seats.Assign(connID)
	if tag := role.Tag(); tag != "" {
		s.out.Send(connID, boarddto.MustEnvelope(boarddto.EventRoleAssigned, tag))
	} else {
		s.out.Send(connID, boarddto.Envelope{Event: boarddto.EventSpectatorAssigned})
	}
	s.out.Send(connID, boarddto.MustEnvelope(boarddto.EventPositionUpdate, s.engine.Serialize(s.pos)))
	if s.result != nil {
		s.out.Send(connID, boarddto.MustEnvelope(boarddto.EventMatchOver, s.result).WithMessage(s.resultText()))
	}
	s.mu.Unlock()

	obslog.L().Info("match_connect",
		zap.String("match_id", s.id),
		zap.String("conn_id", connID),
		zap.String("role", string(role)),
	)
	return role
}

// Disconnect frees the seat held by connID. The match keeps its position and
// simply waits with an empty seat.
func (s *Session) Disconnect(connID string) {
	s.mu.Lock()
	role := s.seats.Release(connID)
	s.mu.Unlock()

	obslog.L().Info("match_disconnect",
		zap.String("match_id", s.id),
		zap.String("conn_id", connID),
		zap.String("role", string(role)),
	)
}

// Submit runs one action through turn ownership, the rules engine and the
// terminal check. Rejections are reported to the sender only.
func (s *Session) Submit(ctx context.Context, connID string, mv boarddto.Move) Outcome {
	_, span := s.tracer.Start(ctx, "match.submit",
		trace.WithAttributes(
			attribute.String("match.id", s.id),
			attribute.String("conn.id", connID),
			attribute.String("move.from", mv.From),
			attribute.String("move.to", mv.To),
		))
	defer span.End()

	s.mu.Lock()
	out, role := s.submitLocked(connID, mv)
	s.mu.Unlock()

	span.SetAttributes(attribute.String("outcome.status", string(out.Status)))
	fields := []zap.Field{
		zap.String("match_id", s.id),
		zap.String("conn_id", connID),
		zap.String("role", string(role)),
		zap.String("from", mv.From),
		zap.String("to", mv.To),
	}
	switch out.Status {
	case StatusAccepted:
		obslog.L().Info("match_action_accepted", append(fields, zap.String("uci", out.UCI), zap.String("fen", out.FEN))...)
		if out.Result != nil {
			obslog.L().Info("match_over", zap.String("match_id", s.id), zap.Bool("checkmate", out.Result.Checkmate),
				zap.Bool("stalemate", out.Result.Stalemate), zap.Bool("draw", out.Result.Draw), zap.String("method", s.Method()))
		}
	case StatusNotYourTurn:
		obslog.L().Info("match_not_your_turn", fields...)
	default:
		span.SetStatus(codes.Error, string(out.Reason))
		obslog.L().Info("match_invalid_action", append(fields, zap.String("reason", string(out.Reason)))...)
	}
	return out
}

func (s *Session) submitLocked(connID string, mv boarddto.Move) (Outcome, seat.Role) {
	role := s.seats.RoleOf(connID)
	side := s.engine.SideToMove(s.pos)
	if holder := s.seats.Holder(seat.ForSide(side)); holder == "" || holder != connID {
		msg := s.catalog.Text("reject.not_your_turn", map[string]any{"Turn": sideName(side)})
		if !role.Seated() {
			msg = s.catalog.Text("reject.not_seated", nil)
		}
		s.out.Send(connID, boarddto.MustEnvelope(boarddto.EventNotYourTurn, mv).WithMessage(msg))
		return Outcome{Status: StatusNotYourTurn, FEN: s.engine.Serialize(s.pos)}, role
	}

	act := rules.Action{From: mv.From, To: mv.To, Promotion: mv.Promotion}
	var res rules.Result
	if s.result != nil {
		res = rules.Result{Reason: rules.ReasonFinished}
	} else {
		res = s.safeApply(act)
	}
	if !res.OK {
		detail := ""
		if res.Err != nil {
			detail = res.Err.Error()
		}
		msg := s.catalog.Text("reject."+string(res.Reason), map[string]any{"Move": act.String(), "Detail": detail})
		s.out.Send(connID, boarddto.MustEnvelope(boarddto.EventInvalidAction, mv).WithMessage(msg))
		return Outcome{Status: StatusInvalid, Reason: res.Reason, FEN: s.engine.Serialize(s.pos)}, role
	}

	s.pos = res.Position
	fen := s.engine.Serialize(s.pos)
	s.out.Broadcast(boarddto.MustEnvelope(boarddto.EventAction, mv))
	s.out.Broadcast(boarddto.MustEnvelope(boarddto.EventPositionUpdate, fen))

	out := Outcome{Status: StatusAccepted, UCI: res.UCI, FEN: fen}
	if term := s.safeTerminal(); term.Over() {
		result := &boarddto.MatchResult{Checkmate: term.Checkmate, Stalemate: term.Stalemate, Draw: term.Draw}
		if term.Checkmate {
			winner := seat.ForSide(side).Tag()
			result.Winner = &winner
		}
		s.result = result
		s.method = term.Method
		s.out.Broadcast(boarddto.MustEnvelope(boarddto.EventMatchOver, result).WithMessage(s.resultText()))
		s.finishLocked()
		out.Result = result
	}
	return out, role
}

// safeApply turns engine panics into rejections so a faulty engine never
// takes the session down.
func (s *Session) safeApply(act rules.Action) (res rules.Result) {
	defer func() {
		if r := recover(); r != nil {
			res = rules.Result{Reason: rules.ReasonFault, Err: fmt.Errorf("rules engine panic: %v", r)}
		}
	}()
	return s.engine.Apply(s.pos, act)
}

func (s *Session) safeTerminal() (term rules.Terminal) {
	defer func() {
		if r := recover(); r != nil {
			obslog.L().Error("match_terminal_check_panic", zap.String("match_id", s.id), zap.Any("panic", r))
			term = rules.Terminal{}
		}
	}()
	return s.engine.Terminal(s.pos)
}

func (s *Session) finishLocked() {
	if len(s.onFinish) == 0 {
		return
	}
	rec := domain.MatchRecord{
		MatchID:   s.id,
		WhiteConn: s.seats.Holder(seat.First),
		BlackConn: s.seats.Holder(seat.Second),
		Result:    resultToken(s.result),
		Method:    s.method,
		StartFEN:  s.pos.StartFEN(),
		FinalFEN:  s.engine.Serialize(s.pos),
		MovesUCI:  s.pos.MovesUCI(),
		MovesSAN:  s.pos.MovesSAN(),
		StartedAt: s.startedAt,
		EndedAt:   s.now(),
	}
	for _, fn := range s.onFinish {
		s.hooks.Add(1)
		go func(fn func(domain.MatchRecord)) {
			defer s.hooks.Done()
			fn(rec)
		}(fn)
	}
}

// Wait blocks until finish hooks started so far have returned.
func (s *Session) Wait() { s.hooks.Wait() }

// Position returns the current authoritative position.
func (s *Session) Position() rules.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

// Result returns the match result, or nil while the match is running.
func (s *Session) Result() *boarddto.MatchResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return nil
	}
	cp := *s.result
	return &cp
}

// Method names how the match ended ("" while running).
func (s *Session) Method() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.method
}

// Snapshot describes the match for GET /state.
func (s *Session) Snapshot() boarddto.StateSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := boarddto.StateSnapshot{
		MatchID:    s.id,
		FEN:        s.engine.Serialize(s.pos),
		Turn:       string(s.engine.SideToMove(s.pos)),
		MoveCount:  s.pos.MoveCount(),
		WhiteSeat:  s.seats.Holder(seat.First) != "",
		BlackSeat:  s.seats.Holder(seat.Second) != "",
		Spectators: s.seats.Spectators(),
		StartedAt:  s.startedAt,
	}
	if s.result != nil {
		cp := *s.result
		snap.Result = &cp
	}
	return snap
}

func (s *Session) resultText() string {
	switch {
	case s.result == nil:
		return ""
	case s.result.Checkmate:
		winner := "White"
		if s.result.Winner != nil && *s.result.Winner == string(rules.Black) {
			winner = "Black"
		}
		return s.catalog.Text("match.checkmate", map[string]any{"Winner": winner})
	case s.result.Stalemate:
		return s.catalog.Text("match.stalemate", nil)
	default:
		return s.catalog.Text("match.draw", map[string]any{"Method": s.method})
	}
}

func sideName(side rules.Side) string {
	if side == rules.Black {
		return "black"
	}
	return "white"
}

func resultToken(r *boarddto.MatchResult) string {
	if r == nil {
		return ""
	}
	if r.Checkmate && r.Winner != nil {
		if *r.Winner == string(rules.Black) {
			return "black"
		}
		return "white"
	}
	return "draw"
}
