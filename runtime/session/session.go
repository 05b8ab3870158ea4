// Package session holds the live, in-process representation of one
// conversational workflow: an identifier plus a guarded state mapping that is
// hydrated from and persisted to the durable state store.
package session

import (
	"sync"
	"time"

	"github.com/viant/structology/conv"
)

// Session represents the state of one workflow instance.
type Session struct {
	ID        string
	CreatedAt time.Time
	state     map[string]interface{}
	converter *conv.Converter
	mu        sync.RWMutex
	listeners []StateListener
}

// StateListener is invoked every time Set or Delete changes a key. It is
// called outside the session lock.
type StateListener func(s *Session, key string, oldVal, newVal interface{})

// RegisterListeners attaches callbacks that are invoked on every mutation.
func (s *Session) RegisterListeners(fn ...StateListener) {
	if len(fn) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn...)
}

// Set adds or updates a key.
func (s *Session) Set(key string, value interface{}) {
	s.mu.Lock()
	old := s.state[key]
	s.state[key] = value
	listeners := s.listeners
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(s, key, old, value)
	}
}

// Delete removes a key.
func (s *Session) Delete(key string) {
	s.mu.Lock()
	old, ok := s.state[key]
	delete(s.state, key)
	listeners := s.listeners
	s.mu.Unlock()
	if !ok {
		return
	}
	for _, fn := range listeners {
		fn(s, key, old, nil)
	}
}

// Get retrieves a key.
func (s *Session) Get(key string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, exists := s.state[key]
	return value, exists
}

// GetString retrieves a key as a string; non-string values are not coerced.
func (s *Session) GetString(key string) (string, bool) {
	value, exists := s.Get(key)
	if !exists {
		return "", false
	}
	strVal, ok := value.(string)
	return strVal, ok
}

// GetBool retrieves a key as a boolean. Values that came back from a textual
// store (for example "true") are converted.
func (s *Session) GetBool(key string) (bool, bool) {
	value, exists := s.Get(key)
	if !exists || value == nil {
		return false, false
	}
	if boolVal, ok := value.(bool); ok {
		return boolVal, true
	}
	var out bool
	if err := s.conv().Convert(value, &out); err != nil {
		return false, false
	}
	return out, true
}

// Seed copies entries that are not yet present. Live keys always win over
// seeded ones.
func (s *Session) Seed(from map[string]interface{}) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	added := 0
	for k, v := range from {
		if _, ok := s.state[k]; ok {
			continue
		}
		s.state[k] = v
		added++
	}
	return added
}

// Snapshot returns a copy of the state mapping.
func (s *Session) Snapshot() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[string]interface{}, len(s.state))
	for k, v := range s.state {
		result[k] = v
	}
	return result
}

// Len returns the number of state entries.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state)
}

// Clone creates a detached copy of the session.
func (s *Session) Clone() *Session {
	clone := New(s.ID, WithState(s.Snapshot()))
	s.mu.RLock()
	clone.listeners = append(clone.listeners, s.listeners...)
	clone.converter = s.converter
	clone.CreatedAt = s.CreatedAt
	s.mu.RUnlock()
	return clone
}

func (s *Session) conv() *conv.Converter {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.converter == nil {
		s.converter = conv.NewConverter(conv.DefaultOptions())
	}
	return s.converter
}

// New creates a new session.
func New(id string, opts ...Option) *Session {
	ret := &Session{
		ID:        id,
		CreatedAt: time.Now(),
		state:     make(map[string]interface{}),
	}
	for _, o := range opts {
		o(ret)
	}
	return ret
}
