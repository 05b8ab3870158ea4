package ulma

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/viant/afs"

	"github.com/viant/ulma/policy"
	"github.com/viant/ulma/service/approval"
	"github.com/viant/ulma/service/directory"
	"github.com/viant/ulma/service/mailbox"
	"github.com/viant/ulma/service/meta"
	"github.com/viant/ulma/service/pipeline"
)

// Backend kinds.
const (
	KindMemory = "memory"
	KindFS     = "fs"
	KindRedis  = "redis"
)

// Config is a serialisable representation of the service configuration. It
// is built once, usually with LoadConfig, and passed to New; nothing in the
// core reads the environment.
type Config struct {
	Store     StoreConfig     `json:"store" yaml:"store"`
	Mailbox   MailboxConfig   `json:"mailbox" yaml:"mailbox"`
	Approval  ApprovalConfig  `json:"approval" yaml:"approval"`
	Events    EventsConfig    `json:"events" yaml:"events"`
	Directory DirectoryConfig `json:"directory" yaml:"directory"`
	Policy    *policy.Config  `json:"policy,omitempty" yaml:"policy,omitempty"`
	Remote    RemoteConfig    `json:"remote" yaml:"remote"`
	Tracing   TracingConfig   `json:"tracing" yaml:"tracing"`
	Log       LogConfig       `json:"log" yaml:"log"`
	Session   SessionConfig   `json:"session" yaml:"session"`
}

// StoreConfig selects the durable state store.
type StoreConfig struct {
	Kind    string       `json:"kind" yaml:"kind"`
	BaseURL string       `json:"baseURL,omitempty" yaml:"baseURL,omitempty"`
	Redis   *RedisConfig `json:"redis,omitempty" yaml:"redis,omitempty"`
}

// RedisConfig configures the redis store.
type RedisConfig struct {
	Addr              string        `json:"addr" yaml:"addr"`
	DB                int           `json:"db,omitempty" yaml:"db,omitempty"`
	Prefix            string        `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	TTL               time.Duration `json:"ttl,omitempty" yaml:"ttl,omitempty"`
	PasswordSecretURL string        `json:"passwordSecretURL,omitempty" yaml:"passwordSecretURL,omitempty"`
	SecretKey         string        `json:"secretKey,omitempty" yaml:"secretKey,omitempty"`
}

// MailboxConfig selects the mailbox medium.
type MailboxConfig struct {
	Kind     string `json:"kind" yaml:"kind"`
	BaseURL  string `json:"baseURL,omitempty" yaml:"baseURL,omitempty"`
	Sentinel string `json:"sentinel,omitempty" yaml:"sentinel,omitempty"`
}

// ApprovalConfig bounds how long a turn waits for a human reply.
type ApprovalConfig struct {
	Timeout      time.Duration `json:"timeout" yaml:"timeout"`
	PollInterval time.Duration `json:"pollInterval" yaml:"pollInterval"`
}

// EventsConfig selects the queue carrying approval lifecycle events.
type EventsConfig struct {
	Kind       string `json:"kind" yaml:"kind"`
	BaseURL    string `json:"baseURL,omitempty" yaml:"baseURL,omitempty"`
	MaxRetries int    `json:"maxRetries,omitempty" yaml:"maxRetries,omitempty"`
	Buffer     int    `json:"buffer,omitempty" yaml:"buffer,omitempty"`
	// Journal records events in memory for audit queries.
	Journal bool `json:"journal,omitempty" yaml:"journal,omitempty"`
}

// DirectoryConfig selects the identity directory and its seed principals.
type DirectoryConfig struct {
	Kind       string                 `json:"kind" yaml:"kind"`
	BaseURL    string                 `json:"baseURL,omitempty" yaml:"baseURL,omitempty"`
	Principals []*directory.Principal `json:"principals,omitempty" yaml:"principals,omitempty"`
}

// RemoteConfig names the branch whose users are delegated.
type RemoteConfig struct {
	Location string `json:"location,omitempty" yaml:"location,omitempty"`
}

// TracingConfig enables OpenTelemetry tracing.
type TracingConfig struct {
	Enabled        bool   `json:"enabled" yaml:"enabled"`
	ServiceName    string `json:"serviceName,omitempty" yaml:"serviceName,omitempty"`
	ServiceVersion string `json:"serviceVersion,omitempty" yaml:"serviceVersion,omitempty"`
	OutputFile     string `json:"outputFile,omitempty" yaml:"outputFile,omitempty"`
}

// LogConfig controls the clue logger installed by WithLogContext.
type LogConfig struct {
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
	Debug  bool   `json:"debug,omitempty" yaml:"debug,omitempty"`
}

// SessionConfig controls generated session ids.
type SessionConfig struct {
	IDPrefix string `json:"idPrefix,omitempty" yaml:"idPrefix,omitempty"`
}

// DefaultConfig returns a Config populated with the defaults used when a
// setting is omitted. Callers may modify it before passing it to New.
func DefaultConfig() *Config {
	return &Config{
		Store:   StoreConfig{Kind: KindMemory},
		Mailbox: MailboxConfig{Kind: KindFS, BaseURL: "logs/teams", Sentinel: mailbox.DefaultSentinel},
		Approval: ApprovalConfig{
			Timeout:      approval.DefaultTimeout,
			PollInterval: approval.DefaultPollInterval,
		},
		Events:    EventsConfig{Kind: KindMemory, Journal: true},
		Directory: DirectoryConfig{Kind: KindMemory},
		Remote:    RemoteConfig{Location: pipeline.DefaultRemoteLocation},
		Tracing:   TracingConfig{ServiceName: "ulma"},
		Log:       LogConfig{Format: "terminal"},
		Session:   SessionConfig{IDPrefix: "ulma"},
	}
}

// Validate returns aggregated error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	var errs []error
	switch c.Store.Kind {
	case KindMemory:
	case KindFS:
		if c.Store.BaseURL == "" {
			errs = append(errs, errors.New("store.baseURL is required for fs store"))
		}
	case KindRedis:
		if c.Store.Redis == nil || c.Store.Redis.Addr == "" {
			errs = append(errs, errors.New("store.redis.addr is required for redis store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported store.kind: %q", c.Store.Kind))
	}
	switch c.Mailbox.Kind {
	case KindMemory:
	case KindFS:
		if c.Mailbox.BaseURL == "" {
			errs = append(errs, errors.New("mailbox.baseURL is required for fs mailbox"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported mailbox.kind: %q", c.Mailbox.Kind))
	}
	if strings.TrimSpace(c.Mailbox.Sentinel) != c.Mailbox.Sentinel {
		errs = append(errs, errors.New("mailbox.sentinel must not carry surrounding spaces"))
	}
	if c.Approval.Timeout <= 0 {
		errs = append(errs, errors.New("approval.timeout must be > 0"))
	}
	if c.Approval.PollInterval <= 0 {
		errs = append(errs, errors.New("approval.pollInterval must be > 0"))
	}
	switch c.Events.Kind {
	case KindMemory:
	case KindFS:
		if c.Events.BaseURL == "" {
			errs = append(errs, errors.New("events.baseURL is required for fs events"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported events.kind: %q", c.Events.Kind))
	}
	switch c.Directory.Kind {
	case KindMemory:
	case KindFS:
		if c.Directory.BaseURL == "" {
			errs = append(errs, errors.New("directory.baseURL is required for fs directory"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported directory.kind: %q", c.Directory.Kind))
	}
	if c.Policy != nil {
		switch strings.ToLower(strings.TrimSpace(c.Policy.Mode)) {
		case "", policy.ModeAsk, policy.ModeAuto, policy.ModeDeny:
		default:
			errs = append(errs, fmt.Errorf("unsupported policy.mode: %q", c.Policy.Mode))
		}
	}
	switch c.Log.Format {
	case "", "terminal", "json":
	default:
		errs = append(errs, fmt.Errorf("unsupported log.format: %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// LoadConfig reads a YAML configuration from any afs supported URL, expanding
// ${env.KEY} expressions. Omitted settings keep their DefaultConfig values.
func LoadConfig(ctx context.Context, URL string) (*Config, error) {
	ret := DefaultConfig()
	if err := meta.New(afs.New()).Load(ctx, URL, ret); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := ret.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %v: %w", URL, err)
	}
	return ret, nil
}
