// Package meta loads YAML documents through afs. ${env.KEY} expressions are
// expanded before decoding so secrets and hosts can stay out of the file.
package meta

import (
	"context"
	"fmt"
	"os"

	"github.com/viant/afs"
	"gopkg.in/yaml.v3"
)

// Service loads documents from any afs supported URL.
type Service struct {
	fs     afs.Service
	lookup func(key string) string
}

// Download returns the expanded document text.
func (s *Service) Download(ctx context.Context, URL string) ([]byte, error) {
	data, err := s.fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to download %v: %w", URL, err)
	}
	return []byte(Expand(string(data), s.lookup)), nil
}

// Load decodes the YAML document at URL into target.
func (s *Service) Load(ctx context.Context, URL string, target interface{}) error {
	data, err := s.Download(ctx, URL)
	if err != nil {
		return err
	}
	if err = yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to decode %v: %w", URL, err)
	}
	return nil
}

// Option customises a Service.
type Option func(s *Service)

// WithLookup replaces the environment lookup.
func WithLookup(fn func(key string) string) Option {
	return func(s *Service) { s.lookup = fn }
}

// New creates a loader; a nil fs uses afs.New().
func New(fs afs.Service, options ...Option) *Service {
	if fs == nil {
		fs = afs.New()
	}
	ret := &Service{fs: fs, lookup: os.Getenv}
	for _, option := range options {
		option(ret)
	}
	return ret
}
