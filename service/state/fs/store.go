// Package fs implements state.Store on top of github.com/viant/afs, one JSON
// document per session under a base URL. Any afs scheme works (file://,
// mem://, gs://, s3://).
package fs

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
	"goa.design/clue/log"

	"github.com/viant/ulma/internal/fsname"
	"github.com/viant/ulma/service/state"
)

// Store implements a filesystem-based session state storage.
type Store struct {
	baseURL string
	fs      afs.Service
	mu      sync.RWMutex
}

var _ state.Store = (*Store)(nil)

// Get loads the session record. A missing record yields an empty mapping; an
// undecodable one is logged and also yields an empty mapping.
func (s *Store) Get(ctx context.Context, sessionID string) (map[string]interface{}, error) {
	if sessionID == "" {
		return nil, state.ErrInvalidID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	location := s.recordURL(sessionID)
	exists, err := s.fs.Exists(ctx, location)
	if err != nil {
		return nil, state.NewStorageError("get", sessionID, fmt.Errorf("failed to check %s: %w", location, err))
	}
	if !exists {
		return map[string]interface{}{}, nil
	}
	data, err := s.fs.DownloadWithURL(ctx, location)
	if err != nil {
		return nil, state.NewStorageError("get", sessionID, fmt.Errorf("failed to read %s: %w", location, err))
	}
	values, err := state.Unmarshal(data)
	if err != nil {
		log.Warn(ctx, log.KV{K: "msg", V: "discarding undecodable session state"},
			log.KV{K: "session", V: sessionID}, log.KV{K: "url", V: location}, log.KV{K: "err", V: err.Error()})
		return map[string]interface{}{}, nil
	}
	return values, nil
}

// Put overwrites the session record.
func (s *Store) Put(ctx context.Context, sessionID string, values map[string]interface{}) error {
	if sessionID == "" {
		return state.ErrInvalidID
	}
	data, err := state.Marshal(values)
	if err != nil {
		return state.NewStorageError("put", sessionID, fmt.Errorf("failed to marshal state: %w", err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	location := s.recordURL(sessionID)
	if err = s.fs.Upload(ctx, location, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return state.NewStorageError("put", sessionID, fmt.Errorf("failed to write %s: %w", location, err))
	}
	return nil
}

// Delete removes the session record if present.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return state.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	location := s.recordURL(sessionID)
	exists, err := s.fs.Exists(ctx, location)
	if err != nil || !exists {
		return err
	}
	if err = s.fs.Delete(ctx, location); err != nil {
		return state.NewStorageError("delete", sessionID, err)
	}
	return nil
}

// BaseURL returns the normalised storage location.
func (s *Store) BaseURL() string { return s.baseURL }

func (s *Store) recordURL(sessionID string) string {
	return url.Join(s.baseURL, fileName(sessionID))
}

func fileName(sessionID string) string {
	return fsname.Encode(sessionID) + ".json"
}

// New creates a store rooted at baseURL, creating the location when missing.
func New(ctx context.Context, baseURL string, options ...Option) (*Store, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	ret := &Store{}
	for _, opt := range options {
		opt(ret)
	}
	if ret.fs == nil {
		ret.fs = afs.New()
	}
	exists, _ := ret.fs.Exists(ctx, baseURL)
	if !exists {
		if err := ret.fs.Create(ctx, baseURL, file.DefaultDirOsMode, true); err != nil {
			return nil, state.NewStorageError("init", "", fmt.Errorf("failed to create %s: %w", baseURL, err))
		}
	}
	ret.baseURL = url.Normalize(baseURL, file.Scheme)
	return ret, nil
}

// Option customises a Store.
type Option func(s *Store)

// WithFS sets the afs service used for storage.
func WithFS(fs afs.Service) Option {
	return func(s *Store) { s.fs = fs }
}
