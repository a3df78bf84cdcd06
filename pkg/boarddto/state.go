package boarddto

import "time"

// StateSnapshot is served by GET /state.
type StateSnapshot struct {
	MatchID    string       `json:"match_id"`
	FEN        string       `json:"fen"`
	Turn       string       `json:"turn"`
	MoveCount  int          `json:"move_count"`
	WhiteSeat  bool         `json:"white_seated"`
	BlackSeat  bool         `json:"black_seated"`
	Spectators int          `json:"spectators"`
	Result     *MatchResult `json:"result,omitempty"`
	StartedAt  time.Time    `json:"started_at"`
}

// MatchSummary is one archived match as served by GET /matches.
type MatchSummary struct {
	MatchID  string    `json:"match_id"`
	Result   string    `json:"result"`
	Method   string    `json:"method"`
	Moves    int       `json:"moves"`
	PGN      string    `json:"pgn"`
	EndedAt  time.Time `json:"ended_at"`
	Duration string    `json:"duration"`
}
