package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/knowbase/sales-copilot/internal/core/domain"
)

// Store keeps conversation histories in memory. A session that goes idle
// past the TTL is reaped; the API treats a reaped session the same as one
// that never existed.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	ttl      time.Duration
	now      func() time.Time
}

type entry struct {
	turns    []domain.ConversationTurn
	lastSeen time.Time
}

const defaultTTL = 30 * time.Minute

func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Store{
		sessions: make(map[string]*entry),
		ttl:      ttl,
		now:      time.Now,
	}
}

// StartJanitor reaps expired sessions until ctx is cancelled.
func (s *Store) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.reap()
			}
		}
	}()
}

func (s *Store) Create(_ context.Context) (string, error) {
	id := uuid.NewString()
	s.mu.Lock()
	s.sessions[id] = &entry{lastSeen: s.now()}
	s.mu.Unlock()
	return id, nil
}

func (s *Store) History(_ context.Context, sessionID string) ([]domain.ConversationTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.sessions[sessionID]
	if !ok || s.expired(e) {
		return nil, domain.WrapError(domain.ErrNotFound, "session history", errSessionUnknown(sessionID))
	}
	turns := make([]domain.ConversationTurn, len(e.turns))
	copy(turns, e.turns)
	return turns, nil
}

func (s *Store) AppendTurn(_ context.Context, sessionID string, turn domain.ConversationTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[sessionID]
	if !ok || s.expired(e) {
		return domain.WrapError(domain.ErrNotFound, "append session turn", errSessionUnknown(sessionID))
	}
	e.turns = append(e.turns, turn)
	e.lastSeen = s.now()
	return nil
}

func (s *Store) Touch(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[sessionID]
	if !ok || s.expired(e) {
		return domain.WrapError(domain.ErrNotFound, "touch session", errSessionUnknown(sessionID))
	}
	e.lastSeen = s.now()
	return nil
}

func (s *Store) reap() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.sessions {
		if s.expired(e) {
			delete(s.sessions, id)
		}
	}
}

func (s *Store) expired(e *entry) bool {
	return s.now().Sub(e.lastSeen) > s.ttl
}

type errSessionUnknown string

func (e errSessionUnknown) Error() string {
	return "unknown or expired session: " + string(e)
}
