package approval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"goa.design/clue/log"
	"golang.org/x/time/rate"

	"github.com/viant/ulma/internal/clock"
	"github.com/viant/ulma/model/state"
	"github.com/viant/ulma/runtime/session"
	"github.com/viant/ulma/service/mailbox"
	"github.com/viant/ulma/service/messaging"
	"github.com/viant/ulma/tracing"
)

const (
	DefaultTimeout      = 300 * time.Second
	DefaultPollInterval = 5 * time.Second

	maxWakeInterval = 50 * time.Millisecond
)

// Gate drives the approval state machine of a session over a mailbox channel.
type Gate struct {
	channel      mailbox.Channel
	events       messaging.Queue[Event]
	timeout      time.Duration
	pollInterval time.Duration
	sentinel     string
}

// Status derives the approval status from session state. A waiting flag wins
// over a recorded decision so an inconsistent record never reads as approved.
func (g *Gate) Status(sess *session.Session) Status {
	filename, _ := sess.GetString(state.KeyApprovalFilename)
	if waiting, _ := sess.GetBool(state.KeyWaiting); waiting && filename != "" {
		return StatusRequested
	}
	status, _ := sess.GetString(state.KeyApprovalStatus)
	switch strings.ToUpper(status) {
	case state.ApprovalApproved:
		return StatusApproved
	case state.ApprovalRejected:
		return StatusRejected
	}
	return StatusNone
}

// Outstanding returns the request awaiting a decision, if any.
func (g *Gate) Outstanding(sess *session.Session) (*Request, bool) {
	if g.Status(sess) != StatusRequested {
		return nil, false
	}
	request := &Request{SessionID: sess.ID}
	request.ID, _ = sess.GetString(state.KeyApprovalFilename)
	request.Subject, _ = sess.GetString(state.KeyApprovalSubject)
	request.Action, _ = sess.GetString(state.KeyApprovalAction)
	if raisedAt, ok := sess.GetString(state.KeyApprovalRaisedAt); ok {
		request.CreatedAt, _ = time.Parse(time.RFC3339Nano, raisedAt)
	}
	return request, true
}

// RaiseRequest moves the session to REQUESTED by depositing an approval
// message. When a request is already outstanding it is returned unchanged
// (Reused set) and nothing is sent. When the mailbox fails the session state
// is left untouched.
func (g *Gate) RaiseRequest(ctx context.Context, sess *session.Session, subject, action string) (_ *Request, err error) {
	subject, action = strings.TrimSpace(subject), strings.TrimSpace(action)
	if subject == "" || action == "" {
		return nil, ErrInvalidSubject
	}
	ctx, span := tracing.StartSpan(ctx, tracing.SpanRaise)
	defer func() { tracing.EndSpan(span, err) }()
	span.WithAttributes(map[string]string{"session": sess.ID, "subject": subject, "action": action})

	if outstanding, ok := g.Outstanding(sess); ok {
		outstanding.Reused = true
		log.Info(ctx, log.KV{K: "msg", V: "approval request already outstanding"},
			log.KV{K: "session", V: sess.ID}, log.KV{K: "filename", V: outstanding.ID})
		g.publish(ctx, &Event{Topic: TopicRequestReused, Request: outstanding})
		return outstanding, nil
	}

	now := clock.Now()
	filename := mailbox.ApprovalFilename(subject)
	envelope, err := g.channel.Send(ctx, mailbox.KindApprovals, g.requestBody(sess.ID, subject, action, filename, now), filename)
	if err != nil {
		log.Error(ctx, err, log.KV{K: "msg", V: "could not queue approval request"},
			log.KV{K: "session", V: sess.ID}, log.KV{K: "subject", V: subject})
		return nil, err
	}
	sess.Delete(state.KeyApprovalStatus)
	sess.Delete(state.KeyApprovalTS)
	sess.Set(state.KeyApprovalFilename, envelope.Filename)
	sess.Set(state.KeyApprovalSubject, subject)
	sess.Set(state.KeyApprovalAction, action)
	sess.Set(state.KeyApprovalRaisedAt, now.Format(time.RFC3339Nano))
	sess.Set(state.KeyWaiting, true)

	request := &Request{
		ID:          envelope.Filename,
		SessionID:   sess.ID,
		Subject:     subject,
		Action:      action,
		IncomingURL: envelope.IncomingURL,
		OutgoingURL: envelope.OutgoingURL,
		CreatedAt:   now,
	}
	log.Info(ctx, log.KV{K: "msg", V: "approval requested"},
		log.KV{K: "session", V: sess.ID}, log.KV{K: "filename", V: request.ID}, log.KV{K: "action", V: action})
	tracing.Count(ctx, tracing.MetricApprovalRequested, map[string]string{"action": action})
	g.publish(ctx, &Event{Topic: TopicRequestCreated, Request: request})
	return request, nil
}

// PollOnce reads the reply for filename, or for the outstanding request when
// filename is empty. A complete reply resolves the session; anything else
// leaves it as is.
func (g *Gate) PollOnce(ctx context.Context, sess *session.Session, filename string) (_ *mailbox.Reply, err error) {
	if filename == "" {
		filename, _ = sess.GetString(state.KeyApprovalFilename)
	}
	if filename == "" {
		return nil, ErrNoOutstandingRequest
	}
	ctx, span := tracing.StartSpan(ctx, tracing.SpanPoll)
	defer func() { tracing.EndSpan(span, err) }()
	span.WithAttributes(map[string]string{"session": sess.ID, "filename": filename})

	reply, err := g.channel.ReadReply(ctx, filename)
	if err != nil {
		return nil, err
	}
	if !reply.Done {
		return reply, nil
	}
	g.resolve(ctx, sess, filename, reply)
	return reply, nil
}

func (g *Gate) resolve(ctx context.Context, sess *session.Session, filename string, reply *mailbox.Reply) {
	approved := reply.Decision == mailbox.DecisionApproved
	status := state.ApprovalRejected
	if approved {
		status = state.ApprovalApproved
	}
	current, _ := sess.GetString(state.KeyApprovalFilename)
	waiting, _ := sess.GetBool(state.KeyWaiting)
	recorded, _ := sess.GetString(state.KeyApprovalStatus)
	if current == filename && !waiting && recorded == status {
		return
	}
	now := clock.Now()
	sess.Set(state.KeyApprovalStatus, status)
	sess.Set(state.KeyApprovalTS, now.Format(time.RFC3339Nano))
	sess.Set(state.KeyApprovalFilename, filename)
	sess.Set(state.KeyWaiting, false)
	log.Info(ctx, log.KV{K: "msg", V: "approval resolved"},
		log.KV{K: "session", V: sess.ID}, log.KV{K: "filename", V: filename}, log.KV{K: "status", V: status})
	tracing.Count(ctx, tracing.MetricApprovalResolved, map[string]string{"status": status})
	g.publish(ctx, &Event{Topic: TopicDecisionCreated, Decision: &Decision{
		ID:        filename,
		SessionID: sess.ID,
		Approved:  approved,
		Reason:    string(reply.Decision),
		DecidedAt: now,
	}})
}

// AwaitWithTimeout polls the outstanding request until it resolves or timeout
// elapses. It returns the decision, or nil with the last pending reason on
// timeout. Cancellation returns ctx.Err(). Neither timeout nor cancellation
// changes session state. Channels implementing mailbox.Notifier wake the loop
// early when the reply file changes.
func (g *Gate) AwaitWithTimeout(ctx context.Context, sess *session.Session, timeout, pollInterval time.Duration) (_ *bool, reason string, err error) {
	filename, _ := sess.GetString(state.KeyApprovalFilename)
	if filename == "" {
		return nil, "", ErrNoOutstandingRequest
	}
	if timeout <= 0 {
		timeout = g.timeout
	}
	if pollInterval <= 0 {
		pollInterval = g.pollInterval
	}
	ctx, span := tracing.StartSpan(ctx, tracing.SpanAwait)
	defer func() { tracing.EndSpan(span, err) }()
	span.WithAttributes(map[string]string{"session": sess.ID, "filename": filename, "timeout": timeout.String()})

	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	var signals <-chan struct{}
	if notifier, ok := g.channel.(mailbox.Notifier); ok {
		if signals, err = notifier.Watch(waitCtx, filename); err != nil {
			log.Debug(ctx, log.KV{K: "msg", V: "reply watch unavailable, polling only"}, log.KV{K: "err", V: err.Error()})
			signals, err = nil, nil
		}
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	wake := rate.NewLimiter(rate.Every(min(pollInterval, maxWakeInterval)), 1)

	for {
		reply, pollErr := g.PollOnce(ctx, sess, filename)
		switch {
		case pollErr != nil:
			reason = pollErr.Error()
			log.Warn(ctx, log.KV{K: "msg", V: "approval poll failed"},
				log.KV{K: "filename", V: filename}, log.KV{K: "err", V: reason})
		case reply.Done:
			approved := reply.Decision == mailbox.DecisionApproved
			return &approved, string(reply.Decision), nil
		default:
			reason = reply.Reason
		}
		select {
		case <-ctx.Done():
			return nil, reason, ctx.Err()
		case <-deadline.C:
			return nil, reason, nil
		case <-ticker.C:
		case _, ok := <-signals:
			if !ok {
				signals = nil
				continue
			}
			// editors emit bursts of writes for one save
			if wake.Wait(ctx) != nil {
				// ctx is done or ends first; the next select returns
				continue
			}
		}
	}
}

func (g *Gate) requestBody(sessionID, subject, action, filename string, at time.Time) string {
	var builder strings.Builder
	builder.WriteString("HIGH RISK OPERATION - APPROVAL REQUIRED\n")
	fmt.Fprintf(&builder, "Session: %s\n", sessionID)
	fmt.Fprintf(&builder, "Subject: %s\n", subject)
	fmt.Fprintf(&builder, "Action: %s\n", action)
	fmt.Fprintf(&builder, "Requested at: %s\n\n", at.Format(time.RFC3339))
	fmt.Fprintf(&builder, "Reply with a file named %s in the outgoing folder.\n", filename)
	fmt.Fprintf(&builder, "Write 'Approved' or 'Not approved', then a line containing only '%s'.\n", g.sentinel)
	return builder.String()
}

func (g *Gate) publish(ctx context.Context, event *Event) {
	if g.events == nil {
		return
	}
	if err := g.events.Publish(ctx, event); err != nil {
		if errors.Is(err, messaging.ErrQueueFull) {
			log.Warn(ctx, log.KV{K: "msg", V: "approval event dropped"}, log.KV{K: "topic", V: event.Topic})
			return
		}
		log.Error(ctx, err, log.KV{K: "msg", V: "approval event publish failed"}, log.KV{K: "topic", V: event.Topic})
	}
}

// Events returns the lifecycle queue, nil when none is attached.
func (g *Gate) Events() messaging.Queue[Event] { return g.events }

// Timeout returns the default await timeout.
func (g *Gate) Timeout() time.Duration { return g.timeout }

// PollInterval returns the default await poll interval.
func (g *Gate) PollInterval() time.Duration { return g.pollInterval }

// New creates a gate over channel.
func New(channel mailbox.Channel, options ...Option) *Gate {
	ret := &Gate{
		channel:      channel,
		timeout:      DefaultTimeout,
		pollInterval: DefaultPollInterval,
		sentinel:     mailbox.DefaultSentinel,
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}
