package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"dental-clinic/internal/recordstore"
)

// Store es el Record Store in-process (default en dev/tests).
// Values are copied on the way in and out so callers never share buffers.
type Store struct {
	mu    sync.RWMutex
	byKey map[string][]byte
}

func NewStore() *Store {
	return &Store{
		byKey: make(map[string][]byte),
	}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.byKey[key]
	if !ok {
		return nil, false, nil
	}
	return clone(v), true, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if strings.TrimSpace(key) == "" {
		return recordstore.ErrEmptyKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.byKey[key] = clone(value)
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.byKey, key)
	return nil
}

func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0)
	for k := range s.byKey {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

var _ recordstore.Store = (*Store)(nil)
