// Package session owns the in-memory mapping from chat id to Session and
// enforces the bounded-population eviction policy. Nothing here survives a
// process restart.
package session

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pilhia/pilhia/internal/domain"
)

// Summary is the read-only view exposed by session listings.
type Summary struct {
	ID         string    `json:"chat_id"`
	State      string    `json:"state"`
	Turns      int       `json:"turns"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active_at"`
}

// Store holds all live sessions behind a single map-level lock. Individual
// turns are serialized by each session's own mutex, not by this lock, so a
// slow completion call never blocks lookups for other chats.
type Store struct {
	mu            sync.RWMutex
	sessions      map[string]*domain.Session
	capacity      int
	evictionBatch int
	historySize   int
}

// NewStore creates an empty store. capacity bounds the session population;
// evictionBatch is how many least-recently-active sessions are dropped when
// the store is full and a new session must be created.
func NewStore(capacity, evictionBatch, historySize int) *Store {
	return &Store{
		sessions:      make(map[string]*domain.Session),
		capacity:      capacity,
		evictionBatch: evictionBatch,
		historySize:   historySize,
	}
}

// ResolveOrCreate returns the session for id, creating it when unknown.
// An empty id mints a fresh opaque one; a caller-supplied unknown id is
// honored as-is. Lookups do not refresh the activity timestamp — only actual
// message processing does. Eviction runs before insertion, never after, so
// the population never exceeds capacity.
func (s *Store) ResolveOrCreate(id string) *domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id != "" {
		if sess, ok := s.sessions[id]; ok {
			return sess
		}
	}

	if len(s.sessions) >= s.capacity {
		s.evictOldestLocked(s.evictionBatch)
	}

	if id == "" {
		id = s.mintIDLocked()
	}
	sess := domain.NewSession(id, s.historySize)
	s.sessions[id] = sess
	return sess
}

// Get returns the session for id without creating one.
func (s *Store) Get(id string) (*domain.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// ClearHistory empties the session's history and abandons its pending
// question. Returns false when the id is unknown; no session is created.
func (s *Store) ClearHistory(id string) bool {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return false
	}

	sess.Mu.Lock()
	sess.Reset()
	sess.Mu.Unlock()
	return true
}

// Len returns the current session population.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// List returns summary metadata for every live session, most recently
// active first.
func (s *Store) List() []Summary {
	s.mu.RLock()
	sessions := make([]*domain.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.RUnlock()

	summaries := make([]Summary, 0, len(sessions))
	for _, sess := range sessions {
		sess.Mu.Lock()
		summaries = append(summaries, Summary{
			ID:         sess.ID,
			State:      sess.State.String(),
			Turns:      sess.TurnCount,
			CreatedAt:  sess.CreatedAt,
			LastActive: sess.LastActive,
		})
		sess.Mu.Unlock()
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].LastActive.After(summaries[j].LastActive)
	})
	return summaries
}

// SweepInactive removes sessions idle longer than maxAge, independent of the
// capacity-driven eviction. Returns the number removed.
//
// LastActive is written under each session's Mu by the request path, so the
// scan takes that lock per session. Lock order is always store lock then
// session lock; the request path never holds both at once.
func (s *Store) SweepInactive(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		sess.Mu.Lock()
		idle := sess.LastActive.Before(cutoff)
		sess.Mu.Unlock()
		if idle {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// StartSweep runs SweepInactive on a ticker until ctx is canceled. This is
// the ops-triggered cleanup path; it never runs on a request.
func (s *Store) StartSweep(ctx context.Context, interval, maxAge time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := s.SweepInactive(maxAge); removed > 0 {
					slog.Info("Swept inactive sessions", "removed", removed, "max_age", maxAge)
				}
			}
		}
	}()
}

// evictOldestLocked removes up to batch sessions, least recently active
// first. Caller must hold s.mu. Each candidate's LastActive is snapshotted
// under its own Mu, same lock order as SweepInactive.
func (s *Store) evictOldestLocked(batch int) {
	type candidate struct {
		id         string
		lastActive time.Time
	}
	candidates := make([]candidate, 0, len(s.sessions))
	for id, sess := range s.sessions {
		sess.Mu.Lock()
		lastActive := sess.LastActive
		sess.Mu.Unlock()
		candidates = append(candidates, candidate{id: id, lastActive: lastActive})
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].lastActive.Before(candidates[j].lastActive)
	})

	if batch > len(candidates) {
		batch = len(candidates)
	}
	for _, c := range candidates[:batch] {
		delete(s.sessions, c.id)
	}
	slog.Info("Evicted oldest sessions", "evicted", batch, "remaining", len(s.sessions))
}

// mintIDLocked generates a short opaque chat id. Caller must hold s.mu.
func (s *Store) mintIDLocked() string {
	for {
		id := uuid.NewString()[:6]
		if _, taken := s.sessions[id]; !taken {
			return id
		}
	}
}
