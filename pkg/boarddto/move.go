package boarddto

// Move is the action payload sent by clients and echoed by the server.
type Move struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
}

// MatchResult is the terminal summary broadcast once per match.
// Winner is the seat tag ("w" or "b") on checkmate and nil otherwise.
type MatchResult struct {
	Checkmate bool    `json:"checkmate"`
	Stalemate bool    `json:"stalemate"`
	Draw      bool    `json:"draw"`
	Winner    *string `json:"winner"`
}
