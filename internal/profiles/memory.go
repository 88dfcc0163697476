package profiles

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// MemoryStore serves profiles from memory. It backs the fixture store used for
// local runs and is handy in tests.
type MemoryStore struct {
	mu    sync.RWMutex
	items []*Profile
}

func NewMemoryStore(items ...*Profile) *MemoryStore {
	return &MemoryStore{items: items}
}

// LoadFixture reads a JSON array of profile rows shaped like the REST backend
// output (profiles with embedded ikigai_responses, skills and portfolio_items).
func LoadFixture(path string) (*MemoryStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %q: %w", path, err)
	}

	var items []any
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse fixture %q: %w", path, err)
	}

	profiles, err := DecodeRows(items)
	if err != nil {
		return nil, err
	}

	return NewMemoryStore(profiles...), nil
}

func (s *MemoryStore) ListSearchableProfiles(ctx context.Context, excluding string) ([]*Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Profile, 0, len(s.items))
	for _, p := range s.items {
		if !p.Searchable || p.ID == excluding {
			continue
		}
		result = append(result, p)
	}
	return result, nil
}

func (s *MemoryStore) Resolve(ctx context.Context, userID string) error {
	if err := ValidateUserID(userID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.items {
		if p.ID == userID {
			return nil
		}
	}
	return ErrUnknownRequester
}
