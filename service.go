package ulma

import (
	"context"
	"fmt"

	"github.com/viant/afs"
	"goa.design/clue/log"

	"github.com/viant/ulma/internal/idgen"
	"github.com/viant/ulma/model/event"
	"github.com/viant/ulma/policy"
	"github.com/viant/ulma/runtime/coordinator"
	"github.com/viant/ulma/runtime/session"
	"github.com/viant/ulma/service/approval"
	ajournal "github.com/viant/ulma/service/approval/memory"
	"github.com/viant/ulma/service/directory"
	dirfs "github.com/viant/ulma/service/directory/fs"
	dirmemory "github.com/viant/ulma/service/directory/memory"
	"github.com/viant/ulma/service/mailbox"
	mbfs "github.com/viant/ulma/service/mailbox/fs"
	mbmemory "github.com/viant/ulma/service/mailbox/memory"
	"github.com/viant/ulma/service/messaging"
	msgfs "github.com/viant/ulma/service/messaging/fs"
	msgmemory "github.com/viant/ulma/service/messaging/memory"
	"github.com/viant/ulma/service/pipeline"
	"github.com/viant/ulma/service/state"
	stfs "github.com/viant/ulma/service/state/fs"
	stmemory "github.com/viant/ulma/service/state/memory"
	stredis "github.com/viant/ulma/service/state/redis"
	"github.com/viant/ulma/tracing"
)

// Service wires the state store, mailbox, approval gate, directory and
// supervisor pipeline behind one session coordinator.
type Service struct {
	config      *Config
	fs          afs.Service
	store       state.Store
	channel     mailbox.Channel
	events      messaging.Queue[approval.Event]
	journal     *ajournal.Journal
	directory   directory.Service
	policy      *policy.Policy
	pipeline    pipeline.Pipeline
	gate        *approval.Gate
	coordinator *coordinator.Coordinator
	newID       func() string
	stop        context.CancelFunc
}

// Reply is the outcome of one Run call.
type Reply struct {
	SessionID string
	Events    []event.Event
}

// Texts renders every event as text.
func (r *Reply) Texts() []string {
	ret := make([]string, 0, len(r.Events))
	for _, e := range r.Events {
		ret = append(ret, event.Text(e))
	}
	return ret
}

// Execute runs one turn for sessionID, streaming events to sink. An empty
// sessionID starts a new session; the id in use is returned.
func (s *Service) Execute(ctx context.Context, sessionID string, input *pipeline.Input, sink event.Sink) (string, error) {
	if sessionID == "" {
		sessionID = s.newID()
	}
	return sessionID, s.coordinator.Execute(ctx, sessionID, input, sink)
}

// Run runs one free-text turn and collects the emitted events.
func (s *Service) Run(ctx context.Context, sessionID, text string) (*Reply, error) {
	collector := &event.Collector{}
	sessionID, err := s.Execute(ctx, sessionID, &pipeline.Input{Text: text}, collector)
	return &Reply{SessionID: sessionID, Events: collector.Events()}, err
}

// Session returns the live session for id.
func (s *Service) Session(ctx context.Context, sessionID string) (*session.Session, error) {
	return s.coordinator.Session(ctx, sessionID)
}

// ApprovalStatus returns the approval status of a session.
func (s *Service) ApprovalStatus(ctx context.Context, sessionID string) (approval.Status, error) {
	sess, err := s.coordinator.Session(ctx, sessionID)
	if err != nil {
		return approval.StatusNone, err
	}
	return s.gate.Status(sess), nil
}

func (s *Service) Config() *Config                         { return s.config }
func (s *Service) Store() state.Store                      { return s.store }
func (s *Service) Mailbox() mailbox.Channel                { return s.channel }
func (s *Service) Directory() directory.Service            { return s.directory }
func (s *Service) Gate() *approval.Gate                    { return s.gate }
func (s *Service) Events() messaging.Queue[approval.Event] { return s.events }
func (s *Service) Coordinator() *coordinator.Coordinator   { return s.coordinator }

// Journal returns the approval audit journal, nil when disabled.
func (s *Service) Journal() *ajournal.Journal { return s.journal }

// Close stops background consumers.
func (s *Service) Close() error {
	if s.stop != nil {
		s.stop()
	}
	return nil
}

func (s *Service) init(ctx context.Context, options []Option) error {
	for _, option := range options {
		option(s)
	}
	if s.fs == nil {
		s.fs = afs.New()
	}
	if s.config.Tracing.Enabled {
		if err := tracing.Init(s.config.Tracing.ServiceName, s.config.Tracing.ServiceVersion, s.config.Tracing.OutputFile); err != nil {
			log.Warn(ctx, log.KV{K: "msg", V: "tracing disabled"}, log.KV{K: "err", V: err.Error()})
		}
	}
	if s.newID == nil {
		prefix := s.config.Session.IDPrefix
		s.newID = func() string { return idgen.NewSessionID(prefix) }
	}
	var err error
	if s.store == nil {
		if s.store, err = s.newStore(ctx); err != nil {
			return err
		}
	}
	if s.channel == nil {
		if s.channel, err = s.newMailbox(ctx); err != nil {
			return err
		}
	}
	if s.events == nil {
		if s.events, err = s.newEvents(ctx); err != nil {
			return err
		}
	}
	if s.directory == nil {
		if s.directory, err = s.newDirectory(ctx); err != nil {
			return err
		}
	}
	if s.policy == nil {
		s.policy = policy.FromConfig(s.config.Policy)
	}
	s.gate = approval.New(s.channel,
		approval.WithEvents(s.events),
		approval.WithTimeout(s.config.Approval.Timeout),
		approval.WithPollInterval(s.config.Approval.PollInterval),
		approval.WithSentinel(s.config.Mailbox.Sentinel))
	if s.pipeline == nil {
		s.pipeline = pipeline.New(s.directory, s.channel, s.policy, pipeline.WithRemoteLocation(s.config.Remote.Location))
	}
	s.coordinator = coordinator.New(s.pipeline, s.gate, s.store,
		coordinator.WithTimeout(s.config.Approval.Timeout),
		coordinator.WithPollInterval(s.config.Approval.PollInterval))
	if s.config.Events.Journal {
		followCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		s.stop = cancel
		s.journal = ajournal.New()
		go s.journal.Follow(followCtx, s.events)
	}
	return nil
}

func (s *Service) newStore(ctx context.Context) (state.Store, error) {
	cfg := s.config.Store
	switch cfg.Kind {
	case KindFS:
		return stfs.New(ctx, cfg.BaseURL, stfs.WithFS(s.fs))
	case KindRedis:
		redisCfg := cfg.Redis
		return stredis.NewFromConfig(ctx, &stredis.Config{
			Addr:              redisCfg.Addr,
			DB:                redisCfg.DB,
			Prefix:            redisCfg.Prefix,
			TTL:               redisCfg.TTL,
			PasswordSecretURL: redisCfg.PasswordSecretURL,
			SecretKey:         redisCfg.SecretKey,
		})
	default:
		return stmemory.New(), nil
	}
}

func (s *Service) newMailbox(ctx context.Context) (mailbox.Channel, error) {
	cfg := s.config.Mailbox
	if cfg.Kind == KindMemory {
		return mbmemory.New(cfg.Sentinel), nil
	}
	return mbfs.New(ctx, cfg.BaseURL, mbfs.WithFS(s.fs), mbfs.WithSentinel(cfg.Sentinel))
}

func (s *Service) newEvents(ctx context.Context) (messaging.Queue[approval.Event], error) {
	cfg := s.config.Events
	if cfg.Kind == KindFS {
		return msgfs.NewQueue[approval.Event](ctx, s.fs, msgfs.Config{BaseURL: cfg.BaseURL, MaxRetries: cfg.MaxRetries})
	}
	queueConfig := msgmemory.DefaultConfig()
	if cfg.MaxRetries > 0 {
		queueConfig.MaxRetries = cfg.MaxRetries
	}
	if cfg.Buffer > 0 {
		queueConfig.Buffer = cfg.Buffer
	}
	return msgmemory.NewQueue[approval.Event](queueConfig), nil
}

func (s *Service) newDirectory(ctx context.Context) (directory.Service, error) {
	cfg := s.config.Directory
	var dir *directory.Directory
	if cfg.Kind == KindFS {
		var err error
		if dir, err = dirfs.New(ctx, s.fs, cfg.BaseURL); err != nil {
			return nil, err
		}
	} else {
		dir = dirmemory.New()
	}
	if len(cfg.Principals) > 0 {
		if err := dir.Seed(ctx, cfg.Principals...); err != nil {
			return nil, fmt.Errorf("failed to seed directory: %w", err)
		}
	}
	return dir, nil
}

// New creates a Service from config; a nil config uses DefaultConfig.
func New(ctx context.Context, config *Config, options ...Option) (*Service, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	ret := &Service{config: config}
	if err := ret.init(ctx, options); err != nil {
		return nil, err
	}
	return ret, nil
}
