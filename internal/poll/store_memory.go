package poll

import (
	"context"
	"sync"

	"github.com/pollwatch/pollwatch/internal/domain"
)

// MemoryStore keeps polls in a plain map. Nothing survives a restart, so it
// is only suitable for tests and throwaway development setups.
type MemoryStore struct {
	mu    sync.RWMutex
	polls map[string]*domain.Poll
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{polls: make(map[string]*domain.Poll)}
}

func (s *MemoryStore) Save(_ context.Context, p *domain.Poll) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls[p.ID] = p.Clone()
	return nil
}

func (s *MemoryStore) Load(_ context.Context, id string) (*domain.Poll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.polls[id]
	if !ok {
		return nil, domain.ErrPollNotFound
	}
	return p.Clone(), nil
}

func (s *MemoryStore) LoadAll(_ context.Context) (map[string]*domain.Poll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	polls := make(map[string]*domain.Poll, len(s.polls))
	for id, p := range s.polls {
		polls[id] = p.Clone()
	}
	return polls, nil
}
