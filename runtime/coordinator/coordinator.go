// Package coordinator runs conversational turns: it hydrates the session,
// dispatches input to the pipeline, turns a pipeline pause into an approval
// request, waits for the decision, resumes the pipeline and persists the
// session on every exit path.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"goa.design/clue/log"
	"golang.org/x/sync/singleflight"

	"github.com/viant/ulma/model/event"
	"github.com/viant/ulma/model/state"
	"github.com/viant/ulma/runtime/session"
	"github.com/viant/ulma/service/approval"
	"github.com/viant/ulma/service/pipeline"
	ustate "github.com/viant/ulma/service/state"
	"github.com/viant/ulma/tracing"
)

// Author tags content emitted by the coordinator.
const Author = "coordinator"

const genericFailure = "The request could not be completed because of an internal error. Progress so far was saved; you can retry."

var (
	// ErrPipeline wraps every pipeline failure returned by Execute.
	ErrPipeline = errors.New("pipeline failed")

	// ErrInvalidSessionID is returned for an empty session id.
	ErrInvalidSessionID = errors.New("coordinator: invalid session id")
)

// Coordinator owns the in-process sessions.
type Coordinator struct {
	pipeline     pipeline.Pipeline
	gate         *approval.Gate
	store        ustate.Store
	timeout      time.Duration
	pollInterval time.Duration

	mu       sync.RWMutex
	sessions map[string]*session.Session
	group    singleflight.Group
}

// Session returns the live session, hydrating it from the store the first
// time it is seen. Concurrent first calls share one store read.
func (c *Coordinator) Session(ctx context.Context, sessionID string) (*session.Session, error) {
	if sessionID == "" {
		return nil, ErrInvalidSessionID
	}
	c.mu.RLock()
	sess, ok := c.sessions[sessionID]
	c.mu.RUnlock()
	if ok {
		return sess, nil
	}
	value, err, _ := c.group.Do(sessionID, func() (interface{}, error) {
		c.mu.RLock()
		existing, ok := c.sessions[sessionID]
		c.mu.RUnlock()
		if ok {
			return existing, nil
		}
		created := session.New(sessionID, session.WithStateListeners(debugListener(ctx)))
		c.hydrate(ctx, created)
		c.mu.Lock()
		c.sessions[sessionID] = created
		c.mu.Unlock()
		return created, nil
	})
	if err != nil {
		return nil, err
	}
	return value.(*session.Session), nil
}

func (c *Coordinator) hydrate(ctx context.Context, sess *session.Session) {
	if c.store == nil {
		return
	}
	ctx, span := tracing.StartSpan(ctx, tracing.SpanHydrate)
	persisted, err := c.store.Get(ctx, sess.ID)
	tracing.EndSpan(span, err)
	if err != nil {
		log.Error(ctx, err, log.KV{K: "msg", V: "session hydrate failed, continuing in memory"}, log.KV{K: "session", V: sess.ID})
		return
	}
	if seeded := sess.Seed(persisted); seeded > 0 {
		log.Debug(ctx, log.KV{K: "msg", V: "session hydrated"}, log.KV{K: "session", V: sess.ID}, log.KV{K: "keys", V: seeded})
	}
}

// Forget drops a session from memory; the persisted copy is kept.
func (c *Coordinator) Forget(sessionID string) {
	c.mu.Lock()
	delete(c.sessions, sessionID)
	c.mu.Unlock()
}

// Execute runs one turn, streaming events to sink in pipeline order.
//
// A turn on a session with an outstanding approval request does not reach
// the pipeline; it polls the stored request instead ("check again"). Resume
// inputs from the caller are never forwarded: the decision handed to the
// pipeline is always the one the gate resolved.
func (c *Coordinator) Execute(ctx context.Context, sessionID string, input *pipeline.Input, sink event.Sink) (err error) {
	sess, err := c.Session(ctx, sessionID)
	if err != nil {
		return err
	}
	ctx, span := tracing.StartSpan(ctx, tracing.SpanExecute)
	span.WithAttributes(map[string]string{"session": sessionID})
	started := time.Now()
	defer func() {
		c.persist(ctx, sess)
		if errors.Is(err, event.ErrStop) {
			err = nil
		}
		tracing.EndSpan(span, err)
		outcome, _ := sess.GetString(state.KeyLastOutcome)
		tracing.Observe(context.WithoutCancel(ctx), tracing.MetricTurnDuration, time.Since(started), map[string]string{"outcome": outcome})
	}()

	if input == nil {
		input = &pipeline.Input{}
	}
	status := c.gate.Status(sess)
	resume := c.decided(sess, status)
	switch {
	case status == approval.StatusRequested:
		request, _ := c.gate.Outstanding(sess)
		if input, err = c.await(ctx, sess, request, sink); err != nil || input == nil {
			return err
		}
	case resume != nil:
		input = resume
	case input.Resume != nil:
		return sink.Send(ctx, event.NewContent(Author, "No approval decision is recorded for this session; there is nothing to resume."))
	}
	for {
		pause, err := c.dispatch(ctx, sess, input, sink)
		if err != nil || pause == nil {
			return err
		}
		request, err := c.gate.RaiseRequest(ctx, sess, pause.Subject, pause.Action)
		if err != nil {
			sess.Delete(state.KeyPendingRequest)
			sess.Delete(state.KeyApprovalToken)
			return sink.Send(ctx, event.NewContent(Author, "Could not queue approval request: "+err.Error()))
		}
		sess.Set(state.KeyApprovalToken, pause.Token)
		if input, err = c.await(ctx, sess, request, sink); err != nil || input == nil {
			return err
		}
	}
}

// decided returns the resume input for a paused request whose approval is
// already resolved but which the pipeline has not completed yet, e.g. after
// a failed directory call. Decisions only ever come from the gate.
func (c *Coordinator) decided(sess *session.Session, status approval.Status) *pipeline.Input {
	if status != approval.StatusApproved && status != approval.StatusRejected {
		return nil
	}
	pending, _ := sess.GetString(state.KeyPendingRequest)
	token, _ := sess.GetString(state.KeyApprovalToken)
	if pending == "" || token == "" {
		return nil
	}
	return pipeline.NewResume(token, status == approval.StatusApproved)
}

// await surfaces the waiting notice and blocks on the gate. It returns the
// resume input once a decision is known, or nil after a timeout.
func (c *Coordinator) await(ctx context.Context, sess *session.Session, request *approval.Request, sink event.Sink) (*pipeline.Input, error) {
	location := ""
	if request != nil {
		location = request.OutgoingURL
		if location == "" {
			location = request.ID
		}
	}
	if err := sink.Send(ctx, event.NewContent(Author, fmt.Sprintf("High-risk operation paused: waiting for approval reply in %s ...", location))); err != nil {
		return nil, err
	}
	approved, reason, err := c.gate.AwaitWithTimeout(ctx, sess, c.timeout, c.pollInterval)
	if err != nil {
		return nil, err
	}
	if approved == nil {
		return nil, sink.Send(ctx, event.NewContent(Author, fmt.Sprintf("Approval still pending (%s). Please add the reply file then ask to 'check again'.", reason)))
	}
	token, _ := sess.GetString(state.KeyApprovalToken)
	return pipeline.NewResume(token, *approved), nil
}

// dispatch runs the pipeline once. Content and tool results are forwarded;
// the first confirmation request halts the run and is returned.
func (c *Coordinator) dispatch(ctx context.Context, sess *session.Session, input *pipeline.Input, sink event.Sink) (*event.ConfirmationRequest, error) {
	var pause *event.ConfirmationRequest
	forward := event.SinkFunc(func(ctx context.Context, e event.Event) error {
		switch actual := e.(type) {
		case *event.Content, *event.ToolResult:
			return sink.Send(ctx, actual)
		case *event.ConfirmationRequest:
			pause = actual
			return event.ErrStop
		default:
			return fmt.Errorf("unsupported event %T", e)
		}
	})
	pipelineCtx, span := tracing.StartSpan(ctx, tracing.SpanPipeline)
	err := c.pipeline.Run(pipelineCtx, sess, input, forward)
	if errors.Is(err, event.ErrStop) && pause != nil {
		err = nil
	}
	tracing.EndSpan(span, err)
	if err == nil {
		return pause, nil
	}
	if errors.Is(err, event.ErrStop) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}
	log.Error(ctx, err, log.KV{K: "msg", V: "pipeline failed"}, log.KV{K: "session", V: sess.ID})
	sess.Set(state.KeyLastOutcome, pipeline.OutcomeFailure)
	if sendErr := sink.Send(ctx, event.NewContent(Author, genericFailure)); sendErr != nil {
		return nil, sendErr
	}
	return nil, fmt.Errorf("%w: %w", ErrPipeline, err)
}

// persist writes the session snapshot; failures are logged, never returned.
func (c *Coordinator) persist(ctx context.Context, sess *session.Session) {
	if c.store == nil {
		return
	}
	ctx, span := tracing.StartSpan(context.WithoutCancel(ctx), tracing.SpanPersist)
	err := c.store.Put(ctx, sess.ID, sess.Snapshot())
	tracing.EndSpan(span, err)
	if err != nil {
		log.Error(ctx, err, log.KV{K: "msg", V: "session persist failed, state kept in memory"}, log.KV{K: "session", V: sess.ID})
	}
}

// Run executes a turn and collects its events.
func (c *Coordinator) Run(ctx context.Context, sessionID string, input *pipeline.Input) ([]event.Event, error) {
	collector := &event.Collector{}
	err := c.Execute(ctx, sessionID, input, collector)
	return collector.Events(), err
}

func debugListener(ctx context.Context) session.StateListener {
	ctx = context.WithoutCancel(ctx)
	return func(s *session.Session, key string, _, newVal interface{}) {
		log.Debug(ctx, log.KV{K: "msg", V: "state changed"}, log.KV{K: "session", V: s.ID}, log.KV{K: "key", V: key}, log.KV{K: "value", V: newVal})
	}
}

// New creates a coordinator. A nil store keeps sessions in memory only.
func New(p pipeline.Pipeline, gate *approval.Gate, store ustate.Store, options ...Option) *Coordinator {
	ret := &Coordinator{
		pipeline: p,
		gate:     gate,
		store:    store,
		sessions: map[string]*session.Session{},
	}
	if gate != nil {
		ret.timeout = gate.Timeout()
		ret.pollInterval = gate.PollInterval()
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}
