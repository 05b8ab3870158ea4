// Package memory provides an in-process state.Store. Records survive for the
// lifetime of the value only, which makes it suitable for tests and single
// process deployments.
package memory

import (
	"context"
	"sync"

	"github.com/viant/ulma/service/state"
)

// Store keeps coerced copies of session state in memory.
type Store struct {
	mu      sync.RWMutex
	records map[string]map[string]interface{}
}

// Get returns a copy of the stored mapping.
func (s *Store) Get(_ context.Context, sessionID string) (map[string]interface{}, error) {
	if sessionID == "" {
		return nil, state.ErrInvalidID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	record := s.records[sessionID]
	out := make(map[string]interface{}, len(record))
	for k, v := range record {
		out[k] = v
	}
	return out, nil
}

// Put overwrites the stored mapping.
func (s *Store) Put(_ context.Context, sessionID string, values map[string]interface{}) error {
	if sessionID == "" {
		return state.ErrInvalidID
	}
	record := state.Coerce(values)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[sessionID] = record
	return nil
}

// Len returns the number of stored sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// New creates an empty store.
func New() *Store {
	return &Store{records: make(map[string]map[string]interface{})}
}

var _ state.Store = (*Store)(nil)
