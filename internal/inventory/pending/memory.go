package pending

import (
	"context"
	"sync"

	"github.com/bagtrack/bagtrack-backend/pkg/clock"
)

// MemoryStore keeps confirmations in process memory. Suitable for a single
// service instance.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]Confirmation
	clock clock.Clock
}

// NewMemoryStore creates an empty store that expires entries against clk
func NewMemoryStore(clk clock.Clock) *MemoryStore {
	return &MemoryStore{
		items: make(map[string]Confirmation),
		clock: clk,
	}
}

// Put implements Store
func (s *MemoryStore) Put(_ context.Context, c Confirmation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked()
	s.items[c.TerminalID] = c
	return nil
}

// Get implements Store
func (s *MemoryStore) Get(_ context.Context, terminalID string) (*Confirmation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.items[terminalID]
	if !ok {
		return nil, nil
	}
	if !s.clock.Now().Before(c.ExpiresAt) {
		delete(s.items, terminalID)
		return nil, nil
	}
	return &c, nil
}

// Delete implements Store
func (s *MemoryStore) Delete(_ context.Context, terminalID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.items[terminalID]
	if !ok {
		return false, nil
	}
	delete(s.items, terminalID)
	return s.clock.Now().Before(c.ExpiresAt), nil
}

// Len returns the number of stored entries, expired or not
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *MemoryStore) pruneLocked() {
	now := s.clock.Now()
	for k, c := range s.items {
		if !now.Before(c.ExpiresAt) {
			delete(s.items, k)
		}
	}
}
