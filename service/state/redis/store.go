// Package redis implements state.Store on Redis. Each session is a single
// string key holding the JSON encoded, coerced state mapping.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/viant/scy"
	"goa.design/clue/log"

	"github.com/viant/ulma/service/state"
)

const defaultPrefix = "ulma:session:"

// Client is the subset of *goredis.Client used by the store.
type Client interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.StatusCmd
	Del(ctx context.Context, keys ...string) *goredis.IntCmd
}

// Config describes a Redis connection.
type Config struct {
	Addr              string        `json:"addr" yaml:"addr"`
	DB                int           `json:"db,omitempty" yaml:"db,omitempty"`
	Prefix            string        `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	TTL               time.Duration `json:"ttl,omitempty" yaml:"ttl,omitempty"`
	PasswordSecretURL string        `json:"passwordSecretURL,omitempty" yaml:"passwordSecretURL,omitempty"`
	SecretKey         string        `json:"secretKey,omitempty" yaml:"secretKey,omitempty"`
}

// Store persists session state in Redis.
type Store struct {
	client Client
	prefix string
	ttl    time.Duration
}

var _ state.Store = (*Store)(nil)

// Get loads the session record; redis.Nil yields an empty mapping.
func (s *Store) Get(ctx context.Context, sessionID string) (map[string]interface{}, error) {
	if sessionID == "" {
		return nil, state.ErrInvalidID
	}
	data, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return map[string]interface{}{}, nil
	}
	if err != nil {
		return nil, state.NewStorageError("get", sessionID, err)
	}
	values, err := state.Unmarshal(data)
	if err != nil {
		log.Warn(ctx, log.KV{K: "msg", V: "discarding undecodable session state"},
			log.KV{K: "session", V: sessionID}, log.KV{K: "err", V: err.Error()})
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
		return state.NewStorageError("put", sessionID, err)
	}
	if err = s.client.Set(ctx, s.key(sessionID), data, s.ttl).Err(); err != nil {
		return state.NewStorageError("put", sessionID, err)
	}
	return nil
}

// Delete removes the session record.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return state.ErrInvalidID
	}
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return state.NewStorageError("delete", sessionID, err)
	}
	return nil
}

func (s *Store) key(sessionID string) string { return s.prefix + sessionID }

// New wraps an existing client.
func New(client Client, prefix string, ttl time.Duration) (*Store, error) {
	if client == nil {
		return nil, state.NewStorageError("init", "", state.ErrUnavailable)
	}
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Store{client: client, prefix: prefix, ttl: ttl}, nil
}

// NewClient builds a go-redis client from cfg. When PasswordSecretURL is set
// the password is loaded (and decrypted with SecretKey) through scy.
func NewClient(ctx context.Context, cfg *Config) (*goredis.Client, error) {
	if cfg == nil || cfg.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	options := &goredis.Options{Addr: cfg.Addr, DB: cfg.DB}
	if cfg.PasswordSecretURL != "" {
		resource := scy.NewResource(nil, cfg.PasswordSecretURL, cfg.SecretKey)
		secret, err := scy.New().Load(ctx, resource)
		if err != nil {
			return nil, fmt.Errorf("failed to load redis password from %s: %w", cfg.PasswordSecretURL, err)
		}
		options.Password = secret.String()
	}
	return goredis.NewClient(options), nil
}

// NewFromConfig connects to Redis and returns a store.
func NewFromConfig(ctx context.Context, cfg *Config) (*Store, error) {
	client, err := NewClient(ctx, cfg)
	if err != nil {
		return nil, state.NewStorageError("init", "", err)
	}
	return New(client, cfg.Prefix, cfg.TTL)
}
