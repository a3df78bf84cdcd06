package boarddto

import "encoding/json"

// Event names exchanged over the board websocket.
const (
	EventRoleAssigned      = "role-assigned"
	EventSpectatorAssigned = "spectator-assigned"
	EventAction            = "action"
	EventPositionUpdate    = "position-update"
	EventNotYourTurn       = "not-your-turn"
	EventInvalidAction     = "invalid-action"
	EventMatchOver         = "match-over"
)

// Envelope is the single frame type on the wire.
// Payload stays raw so each side decodes only the events it cares about.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Message string          `json:"message,omitempty"`
}

// NewEnvelope marshals payload into an Envelope. A nil payload produces an empty frame body.
func NewEnvelope(event string, payload any) (Envelope, error) {
	env := Envelope{Event: event}
	if payload == nil {
		return env, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	env.Payload = raw
	return env, nil
}

// MustEnvelope is NewEnvelope for payload types that always marshal (strings, Move, MatchResult).
func MustEnvelope(event string, payload any) Envelope {
	env, err := NewEnvelope(event, payload)
	if err != nil {
		panic(err)
	}
	return env
}

// Decode unmarshals the payload into v.
func (e Envelope) Decode(v any) error {
	if len(e.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(e.Payload, v)
}

// WithMessage returns a copy carrying human readable text.
func (e Envelope) WithMessage(msg string) Envelope {
	e.Message = msg
	return e
}
