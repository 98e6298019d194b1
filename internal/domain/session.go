// Package domain holds the core chat types shared across the server.
package domain

import (
	"sync"
	"time"
)

// State is the dialogue position of a session. It is set and cleared by the
// dialogue engine, never inferred from reply text.
type State int

const (
	// StateIdle means no quiz question is in play.
	StateIdle State = iota
	// StateAwaitingAnswer means a question was delivered and a letter answer
	// is expected.
	StateAwaitingAnswer
	// StateAwaitingContinue means a verdict was delivered and the
	// "another question?" prompt is pending a sim/não reply.
	StateAwaitingContinue
)

// String returns a short label for logs and session listings.
func (s State) String() string {
	switch s {
	case StateAwaitingAnswer:
		return "awaiting_answer"
	case StateAwaitingContinue:
		return "awaiting_continue"
	default:
		return "idle"
	}
}

// Turn is one stored user/agent exchange.
type Turn struct {
	Query  string `json:"query"`
	Answer string `json:"response"`
}

// Session holds per-conversation state, keyed by an opaque id.
//
// Mu serializes whole turns: the transport layer holds it from intent routing
// until the reply is recorded, so two concurrent requests for the same chat id
// cannot both observe and clear the same pending question.
type Session struct {
	Mu sync.Mutex

	ID         string
	History    []Turn
	Pending    *QuizQuestion
	State      State
	CreatedAt  time.Time
	LastActive time.Time
	TurnCount  int

	historyCap int
}

// NewSession creates an empty session. historyCap bounds History; oldest
// turns are dropped first once the cap is reached.
func NewSession(id string, historyCap int) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		CreatedAt:  now,
		LastActive: now,
		historyCap: historyCap,
	}
}

// RecordTurn appends one exchange, evicting the oldest turn when the history
// is full, and refreshes the activity timestamp.
func (s *Session) RecordTurn(query, answer string) {
	s.History = append(s.History, Turn{Query: query, Answer: answer})
	if s.historyCap > 0 && len(s.History) > s.historyCap {
		s.History = s.History[len(s.History)-s.historyCap:]
	}
	s.TurnCount++
	s.LastActive = time.Now()
}

// RecentTurns returns the last n stored turns.
func (s *Session) RecentTurns(n int) []Turn {
	if n >= len(s.History) {
		return s.History
	}
	return s.History[len(s.History)-n:]
}

// Reset empties the history and abandons any pending question.
func (s *Session) Reset() {
	s.History = nil
	s.Pending = nil
	s.State = StateIdle
	s.LastActive = time.Now()
}
