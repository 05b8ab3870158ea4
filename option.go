package ulma

import (
	"context"

	"github.com/viant/afs"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"goa.design/clue/log"

	"github.com/viant/ulma/policy"
	"github.com/viant/ulma/service/approval"
	"github.com/viant/ulma/service/directory"
	"github.com/viant/ulma/service/mailbox"
	"github.com/viant/ulma/service/messaging"
	"github.com/viant/ulma/service/pipeline"
	"github.com/viant/ulma/service/state"
	"github.com/viant/ulma/tracing"
)

// Option customises a Service.
type Option func(s *Service)

// WithFS sets the afs service used by file backed components.
func WithFS(fs afs.Service) Option {
	return func(s *Service) { s.fs = fs }
}

// WithStore sets the durable state store, overriding Config.Store.
func WithStore(store state.Store) Option {
	return func(s *Service) { s.store = store }
}

// WithMailbox sets the mailbox channel, overriding Config.Mailbox.
func WithMailbox(channel mailbox.Channel) Option {
	return func(s *Service) { s.channel = channel }
}

// WithEvents sets the approval lifecycle queue.
func WithEvents(queue messaging.Queue[approval.Event]) Option {
	return func(s *Service) { s.events = queue }
}

// WithDirectory sets the identity directory.
func WithDirectory(dir directory.Service) Option {
	return func(s *Service) { s.directory = dir }
}

// WithPolicy sets the approval policy, overriding Config.Policy.
func WithPolicy(p *policy.Policy) Option {
	return func(s *Service) { s.policy = p }
}

// WithPipeline replaces the supervisor pipeline.
func WithPipeline(p pipeline.Pipeline) Option {
	return func(s *Service) { s.pipeline = p }
}

// WithIDGenerator overrides session id generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

// WithTracingExporter configures OpenTelemetry tracing using a custom
// SpanExporter. The first successful initialisation wins.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		_ = tracing.InitWithExporter(serviceName, serviceVersion, exporter)
	}
}

// WithLogContext returns ctx carrying a clue logger configured from cfg.
func WithLogContext(ctx context.Context, cfg LogConfig) context.Context {
	format := log.FormatTerminal
	if cfg.Format == "json" {
		format = log.FormatJSON
	}
	ctx = log.Context(ctx, log.WithFormat(format))
	if cfg.Debug {
		ctx = log.Context(ctx, log.WithDebug())
	}
	return ctx
}
