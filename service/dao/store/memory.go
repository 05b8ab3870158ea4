// Package store provides generic dao.Service implementations.
package store

import (
	"context"
	"sync"

	"github.com/viant/ulma/service/dao"
)

// MemoryStore keeps copies of entities keyed by keySelector. Load returns a
// copy so callers cannot mutate stored records in place.
type MemoryStore[K comparable, T any] struct {
	mu          sync.RWMutex
	records     map[K]T
	keySelector func(*T) K
	filter      func(*T, []*dao.Parameter) bool
}

var _ dao.Service[string, struct{}] = (*MemoryStore[string, struct{}])(nil)

func (s *MemoryStore[K, T]) Save(_ context.Context, v *T) error {
	if v == nil {
		return dao.ErrNilEntity
	}
	key := s.keySelector(v)
	var zero K
	if key == zero {
		return dao.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = *v
	return nil
}

func (s *MemoryStore[K, T]) Load(_ context.Context, key K) (*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.records[key]
	if !ok {
		return nil, dao.ErrNotFound
	}
	return &v, nil
}

func (s *MemoryStore[K, T]) Delete(_ context.Context, key K) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[key]; !ok {
		return dao.ErrNotFound
	}
	delete(s.records, key)
	return nil
}

func (s *MemoryStore[K, T]) List(_ context.Context, parameters ...*dao.Parameter) ([]*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*T, 0, len(s.records))
	for _, v := range s.records {
		record := v
		if s.filter != nil && !s.filter(&record, parameters) {
			continue
		}
		out = append(out, &record)
	}
	return out, nil
}

// NewMemoryStore creates a store; filter, when non nil, applies List parameters.
func NewMemoryStore[K comparable, T any](keySelector func(*T) K, filter func(*T, []*dao.Parameter) bool) *MemoryStore[K, T] {
	return &MemoryStore[K, T]{records: map[K]T{}, keySelector: keySelector, filter: filter}
}
