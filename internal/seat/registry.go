// Package seat implements first-come-first-served seat assignment for a two-seat match.
package seat

import (
	"strings"
	"sync"

	"github.com/park285/Cheese-LiveBoard/internal/rules"
)

// Role is the per-connection role, fixed at connect time.
type Role string

const (
	First     Role = "first"
	Second    Role = "second"
	Spectator Role = "spectator"
)

// Seated reports whether the role holds a seat.
func (r Role) Seated() bool { return r == First || r == Second }

// Tag is the wire tag of a seated role ("w" / "b"); empty for spectators.
func (r Role) Tag() string {
	switch r {
	case First:
		return string(rules.White)
	case Second:
		return string(rules.Black)
	default:
		return ""
	}
}

// Side is the colour the role plays. First seat plays white.
func (r Role) Side() (rules.Side, bool) {
	switch r {
	case First:
		return rules.White, true
	case Second:
		return rules.Black, true
	default:
		return "", false
	}
}

// ForSide returns the seat that plays side.
func ForSide(side rules.Side) Role {
	if side == rules.Black {
		return Second
	}
	return First
}

// Registry maps the two seats to connection ids. All operations are total.
type Registry struct {
	mu         sync.RWMutex
	holders    [2]string
	spectators map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{spectators: make(map[string]struct{})}
}

func index(r Role) int {
	if r == Second {
		return 1
	}
	return 0
}

// Assign gives connID the lowest free seat, or Spectator when both are taken.
// Assigning an id that is already known returns its existing role.
func (r *Registry) Assign(connID string) Role {
	connID = strings.TrimSpace(connID)
	r.mu.Lock()
	defer r.mu.Unlock()

	if role := r.roleOfLocked(connID); role != "" {
		return role
	}
	for i, seat := range [2]Role{First, Second} {
		if r.holders[i] == "" {
			r.holders[i] = connID
			return seat
		}
	}
	r.spectators[connID] = struct{}{}
	return Spectator
}

// Release frees the seat held by connID. It returns the role connID had,
// or "" when the id was unknown.
func (r *Registry) Release(connID string) Role {
	connID = strings.TrimSpace(connID)
	r.mu.Lock()
	defer r.mu.Unlock()

	role := r.roleOfLocked(connID)
	switch role {
	case First, Second:
		r.holders[index(role)] = ""
	case Spectator:
		delete(r.spectators, connID)
	}
	return role
}

// Holder returns the connection id seated in role, or "".
func (r *Registry) Holder(role Role) string {
	if !role.Seated() {
		return ""
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.holders[index(role)]
}

// RoleOf returns the role of connID, or "" when unknown.
func (r *Registry) RoleOf(connID string) Role {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.roleOfLocked(strings.TrimSpace(connID))
}

// Spectators counts connected spectators.
func (r *Registry) Spectators() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.spectators)
}

func (r *Registry) roleOfLocked(connID string) Role {
	if connID == "" {
		return ""
	}
	switch connID {
	case r.holders[0]:
		return First
	case r.holders[1]:
		return Second
	}
	if _, ok := r.spectators[connID]; ok {
		return Spectator
	}
	return ""
}
