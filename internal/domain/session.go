package domain

import (
	"sync"
	"time"
)

// SessionState tracks where a connection is in its lifecycle.
type SessionState int

const (
	StateConnecting SessionState = iota
	StateAuthenticating
	StateJoined
	StateClosed
	StateRejected
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateJoined:
		return "joined"
	case StateClosed:
		return "closed"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Session is the server-side record of one connection. The principal and
// room are fixed once joined; a session never switches rooms.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu           sync.RWMutex
	state        SessionState
	principal    Principal
	room         string
	lastActiveAt time.Time
}

func NewSession(id string) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		CreatedAt:    now,
		lastActiveAt: now,
		state:        StateConnecting,
	}
}

// Transition moves the session to next. Terminal states are sticky and
// the call reports whether the transition happened.
func (s *Session) Transition(next SessionState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed || s.state == StateRejected {
		return false
	}
	s.state = next
	return true
}

func (s *Session) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Join records the principal and room. It only succeeds once.
func (s *Session) Join(p Principal, room string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAuthenticating {
		return false
	}
	s.principal = p
	s.room = room
	s.state = StateJoined
	s.lastActiveAt = time.Now()
	return true
}

func (s *Session) Principal() Principal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.principal
}

func (s *Session) Room() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.room
}

func (s *Session) IsJoined() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state == StateJoined
}

func (s *Session) UpdateActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActiveAt = time.Now()
}

func (s *Session) LastActiveAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActiveAt
}

// Age is how long the session has existed.
func (s *Session) Age() time.Duration {
	return time.Since(s.CreatedAt)
}
