package domain

import "time"

// MatchRecord is the archived summary of one finished match.
type MatchRecord struct {
	ID        int64
	MatchID   string
	WhiteConn string
	BlackConn string
	Result    string // white | black | draw
	Method    string // checkmate | stalemate | threefoldrepetition ...
	StartFEN  string
	FinalFEN  string
	MovesUCI  []string
	MovesSAN  []string
	PGN       string
	StartedAt time.Time
	EndedAt   time.Time
}

// Duration is the wall time between the first connection and the final move.
func (r *MatchRecord) Duration() time.Duration {
	if r == nil || r.EndedAt.Before(r.StartedAt) {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}
