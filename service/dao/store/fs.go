package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
	"goa.design/clue/log"

	"github.com/viant/ulma/internal/fsname"
	"github.com/viant/ulma/service/dao"
)

// FSStore keeps one JSON file per entity under baseURL.
type FSStore[T any] struct {
	baseURL     string
	fs          afs.Service
	keySelector func(*T) string
	filter      func(*T, []*dao.Parameter) bool
	mu          sync.RWMutex
}

var _ dao.Service[string, struct{}] = (*FSStore[struct{}])(nil)

func (s *FSStore[T]) Save(ctx context.Context, v *T) error {
	if v == nil {
		return dao.ErrNilEntity
	}
	key := s.keySelector(v)
	if key == "" {
		return dao.ErrInvalidID
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err = s.fs.Upload(ctx, s.recordURL(key), file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

func (s *FSStore[T]) Load(ctx context.Context, key string) (*T, error) {
	if key == "" {
		return nil, dao.ErrInvalidID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	recordURL := s.recordURL(key)
	ok, err := s.fs.Exists(ctx, recordURL)
	if err != nil {
		return nil, fmt.Errorf("failed to check %s: %w", key, err)
	}
	if !ok {
		return nil, dao.ErrNotFound
	}
	data, err := s.fs.DownloadWithURL(ctx, recordURL)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	ret := new(T)
	if err = json.Unmarshal(data, ret); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return ret, nil
}

func (s *FSStore[T]) Delete(ctx context.Context, key string) error {
	if key == "" {
		return dao.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	recordURL := s.recordURL(key)
	if ok, _ := s.fs.Exists(ctx, recordURL); !ok {
		return dao.ErrNotFound
	}
	return s.fs.Delete(ctx, recordURL)
}

// List decodes every record; unreadable files are logged and skipped.
func (s *FSStore[T]) List(ctx context.Context, parameters ...*dao.Parameter) ([]*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	objects, err := s.fs.List(ctx, s.baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.baseURL, err)
	}
	var ret []*T
	for _, object := range objects {
		if object.IsDir() || !strings.HasSuffix(object.Name(), ".json") {
			continue
		}
		data, err := s.fs.Download(ctx, object)
		if err != nil {
			log.Warn(ctx, log.KV{K: "msg", V: "skipping unreadable record"}, log.KV{K: "url", V: object.URL()}, log.KV{K: "err", V: err.Error()})
			continue
		}
		record := new(T)
		if err = json.Unmarshal(data, record); err != nil {
			log.Warn(ctx, log.KV{K: "msg", V: "skipping undecodable record"}, log.KV{K: "url", V: object.URL()}, log.KV{K: "err", V: err.Error()})
			continue
		}
		if s.filter != nil && !s.filter(record, parameters) {
			continue
		}
		ret = append(ret, record)
	}
	return ret, nil
}

func (s *FSStore[T]) recordURL(key string) string {
	return url.Join(s.baseURL, fsname.Encode(key)+".json")
}

// NewFSStore creates baseURL when missing.
func NewFSStore[T any](ctx context.Context, fs afs.Service, baseURL string, keySelector func(*T) string, filter func(*T, []*dao.Parameter) bool) (*FSStore[T], error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	if fs == nil {
		fs = afs.New()
	}
	baseURL = url.Normalize(baseURL, file.Scheme)
	if ok, _ := fs.Exists(ctx, baseURL); !ok {
		if err := fs.Create(ctx, baseURL, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", baseURL, err)
		}
	}
	return &FSStore[T]{baseURL: baseURL, fs: fs, keySelector: keySelector, filter: filter}, nil
}
