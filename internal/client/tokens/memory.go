package tokens

import (
	"context"
	"sync"

	"github.com/guardline/guardline-cli/internal/client/models"
)

// MemoryStore holds the pair in process memory only. Used in tests and for
// runs where nothing should touch disk.
type MemoryStore struct {
	mu   sync.Mutex
	pair *models.TokenPair
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Save(ctx context.Context, pair models.TokenPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := pair
	s.pair = &clone
	return nil
}

func (s *MemoryStore) Load(ctx context.Context) (*models.TokenPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pair == nil {
		return nil, nil
	}
	clone := *s.pair
	return &clone, nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = nil
	return nil
}
