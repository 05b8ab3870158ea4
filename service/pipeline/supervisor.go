package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"goa.design/clue/log"

	"github.com/viant/ulma/internal/idgen"
	"github.com/viant/ulma/model/event"
	"github.com/viant/ulma/model/state"
	"github.com/viant/ulma/policy"
	"github.com/viant/ulma/runtime/ledger"
	"github.com/viant/ulma/runtime/session"
	"github.com/viant/ulma/service/directory"
	"github.com/viant/ulma/service/mailbox"
)

// Author tags content emitted by the supervisor.
const Author = "supervisor"

// Outcome values stored under state.KeyLastOutcome.
const (
	OutcomeSuccess = "SUCCESS"
	OutcomeFailure = "FAILURE"
	OutcomePending = "PENDING"
)

// Supervisor validates a request, applies policy, pauses high-risk actions
// for approval, mutates the directory (or delegates to a remote site),
// posts a technical log and a manager summary, then reports the outcome.
type Supervisor struct {
	directory      directory.Service
	channel        mailbox.Channel
	policy         *policy.Policy
	remote         Remote
	remoteLocation string
}

var _ Pipeline = (*Supervisor)(nil)

// Run handles one turn.
func (s *Supervisor) Run(ctx context.Context, sess *session.Session, input *Input, sink event.Sink) error {
	if input == nil {
		return errors.New("pipeline: nil input")
	}
	if input.Resume != nil {
		return s.resume(ctx, sess, input.Resume, sink)
	}
	var request *Request
	if input.Request != nil {
		copied := *input.Request
		request = &copied
	} else {
		parsed, err := ParseRequest(input.Text)
		if err != nil {
			return sink.Send(ctx, event.NewContent(Author, "Could not understand the request: "+err.Error()))
		}
		request = parsed
	}
	return s.start(ctx, sess, request, sink)
}

func (s *Supervisor) start(ctx context.Context, sess *session.Session, request *Request, sink event.Sink) error {
	request.Normalize()
	if missing := request.Missing(); len(missing) > 0 {
		sess.Set(state.KeyLastOutcome, OutcomeFailure)
		return sink.Send(ctx, event.NewContent(Author, "Request incomplete: missing "+strings.Join(missing, ", ")+"."))
	}
	ledger.Reset(sess)
	sess.Delete(state.KeyPendingRequest)
	sess.Delete(state.KeyApprovalToken)

	plan := s.plan(request)
	sess.Set(state.KeyPlanSummary, plan)
	if err := sink.Send(ctx, event.NewContent(Author, plan)); err != nil {
		return err
	}

	verdict := s.policy.Evaluate(request.Action, request.Goal)
	if verdict.Allowed && (request.Action == ActionCreate || request.Action == ActionModify) {
		for _, app := range request.Apps {
			if !s.policy.AppAllowed(app) {
				verdict.Allowed = false
				verdict.RequiresApproval = false
				verdict.Reason = "application " + app + " is blocked by policy"
				break
			}
		}
	}
	ledger.Mark(sess, state.StepPolicy, verdict.Allowed)
	if err := sink.Send(ctx, &event.ToolResult{
		Tool:    "policy",
		Step:    state.StepPolicy,
		OK:      verdict.Allowed,
		Message: verdict.Reason,
		Payload: map[string]interface{}{"highRisk": verdict.HighRisk, "requiresApproval": verdict.RequiresApproval},
	}); err != nil {
		return err
	}
	if !verdict.Allowed {
		return s.finish(ctx, sess, sink, false, "FAILURE: "+verdict.Reason+".")
	}
	if verdict.RequiresApproval {
		return s.pause(ctx, sess, request, plan, sink)
	}
	return s.execute(ctx, sess, request, false, sink)
}

func (s *Supervisor) pause(ctx context.Context, sess *session.Session, request *Request, plan string, sink event.Sink) error {
	data, err := json.Marshal(request)
	if err != nil {
		return err
	}
	token := idgen.New()
	sess.Set(state.KeyPendingRequest, string(data))
	sess.Set(state.KeyApprovalToken, token)
	sess.Set(state.KeyLastOutcome, OutcomePending)
	return sink.Send(ctx, &event.ConfirmationRequest{
		Token:   token,
		Subject: request.User,
		Action:  request.Action,
		Hint:    "High-risk request needs approval. " + plan,
	})
}

func (s *Supervisor) resume(ctx context.Context, sess *session.Session, resume *Resume, sink event.Sink) error {
	raw, _ := sess.GetString(state.KeyPendingRequest)
	if raw == "" {
		return ErrNoPendingRequest
	}
	token, _ := sess.GetString(state.KeyApprovalToken)
	if token == "" || token != resume.Token {
		return ErrTokenMismatch
	}
	request := &Request{}
	if err := json.Unmarshal([]byte(raw), request); err != nil {
		return fmt.Errorf("pipeline: undecodable pending request: %w", err)
	}
	ledger.Mark(sess, state.StepApprovalRequest, resume.Approved)
	if !resume.Approved {
		release(sess)
	}
	message := "rejected by approver"
	if resume.Approved {
		message = "approved by approver"
	}
	if err := sink.Send(ctx, &event.ToolResult{Tool: "approval", Step: state.StepApprovalRequest, OK: resume.Approved, Message: message}); err != nil {
		return err
	}
	if resume.Approved {
		return s.execute(ctx, sess, request, true, sink)
	}
	ledger.Mark(sess, state.StepIdentity, false)
	body := fmt.Sprintf("%s of %s was rejected by the approver; no directory change was made.", request.Action, request.User)
	if err := s.notify(ctx, sess, mailbox.KindLogs, body, state.StepTeams, sink); err != nil {
		return err
	}
	return s.finish(ctx, sess, sink, false, "FAILURE: "+body)
}

func (s *Supervisor) execute(ctx context.Context, sess *session.Session, request *Request, approved bool, sink event.Sink) error {
	required := []string{state.StepPolicy}
	if approved {
		required = append(required, state.StepApprovalRequest)
	}
	lookup, err := s.directory.Lookup(ctx, request.User)
	if err != nil {
		return fmt.Errorf("directory lookup %s: %w", request.User, err)
	}
	location := request.Location
	if lookup.OK() && lookup.Principal != nil && lookup.Principal.Location != "" {
		location = lookup.Principal.Location
	}

	var result *directory.Result
	if s.remote != nil && location != "" && strings.EqualFold(location, s.remoteLocation) {
		required = append(required, state.StepRemoteDelegation)
		result, err = s.remote.Delegate(ctx, request)
		if err != nil {
			log.Error(ctx, err, log.KV{K: "msg", V: "remote delegation failed"}, log.KV{K: "user", V: request.User})
			result = &directory.Result{Status: directory.StatusError, Code: "DELEGATION_FAILED", Message: err.Error()}
		}
		ledger.Mark(sess, state.StepRemoteDelegation, result.OK())
		release(sess)
		if err = sink.Send(ctx, &event.ToolResult{Tool: "remote", Step: state.StepRemoteDelegation, OK: result.OK(), Code: result.Code, Message: result.Message}); err != nil {
			return err
		}
	} else {
		required = append(required, state.StepIdentity)
		if result, err = s.mutate(ctx, request, lookup); err != nil {
			return fmt.Errorf("directory %s %s: %w", request.Action, request.User, err)
		}
		ledger.Mark(sess, state.StepIdentity, result.OK())
		release(sess)
		if err = sink.Send(ctx, &event.ToolResult{Tool: "directory." + request.Action, Step: state.StepIdentity, OK: result.OK(), Code: result.Code, Message: result.Message}); err != nil {
			return err
		}
	}

	required = append(required, state.StepTeams, state.StepTeamsReporting)
	if err = s.notify(ctx, sess, mailbox.KindLogs, technicalLog(request, result), state.StepTeams, sink); err != nil {
		return err
	}
	if err = s.notify(ctx, sess, mailbox.KindSummaries, managerSummary(request, result), state.StepTeamsReporting, sink); err != nil {
		return err
	}
	if ledger.AllComplete(sess, required...) {
		return s.finish(ctx, sess, sink, true, "SUCCESS: "+result.Message+".")
	}
	pending := ledger.Pending(sess, required...)
	return s.finish(ctx, sess, sink, false, fmt.Sprintf("FAILURE: %s. Incomplete steps: %s.", result.Message, strings.Join(pending, ", ")))
}

// release drops the paused request once its outcome is on the ledger. Until
// then a failed turn can resume it again.
func release(sess *session.Session) {
	sess.Delete(state.KeyPendingRequest)
	sess.Delete(state.KeyApprovalToken)
}

func (s *Supervisor) mutate(ctx context.Context, request *Request, lookup *directory.Result) (*directory.Result, error) {
	switch request.Action {
	case ActionLookup:
		return lookup, nil
	case ActionCreate:
		return s.directory.Create(ctx, &directory.Principal{
			UPN:         request.User,
			DisplayName: request.DisplayName,
			Role:        request.Role,
			Groups:      request.Groups,
			Apps:        request.Apps,
			Location:    request.Location,
		})
	case ActionModify:
		change := &directory.Change{AddGroups: request.Groups, AddApps: request.Apps}
		if request.Role != "" {
			change.Role = &request.Role
		}
		if request.Location != "" {
			change.Location = &request.Location
		}
		if request.DisplayName != "" {
			change.DisplayName = &request.DisplayName
		}
		return s.directory.Modify(ctx, request.User, change)
	case ActionDelete:
		return s.directory.Delete(ctx, request.User)
	}
	return &directory.Result{Status: directory.StatusError, Code: directory.CodeInvalidParams, Message: "unsupported action " + request.Action}, nil
}

// notify deposits body in the mailbox and records the step. A mailbox failure
// marks the step incomplete; it does not fail the turn.
func (s *Supervisor) notify(ctx context.Context, sess *session.Session, kind mailbox.Kind, body, step string, sink event.Sink) error {
	result := &event.ToolResult{Tool: "mailbox." + string(kind), Step: step, OK: true}
	envelope, err := s.channel.Send(ctx, kind, body, "")
	if err != nil {
		log.Error(ctx, err, log.KV{K: "msg", V: "notification failed"}, log.KV{K: "kind", V: string(kind)})
		result.OK = false
		result.Message = err.Error()
	} else {
		result.Message = "posted " + envelope.Filename
	}
	ledger.Mark(sess, step, result.OK)
	return sink.Send(ctx, result)
}

func (s *Supervisor) finish(ctx context.Context, sess *session.Session, sink event.Sink, success bool, text string) error {
	outcome := OutcomeFailure
	if success {
		outcome = OutcomeSuccess
	}
	sess.Set(state.KeyLastOutcome, outcome)
	return sink.Send(ctx, event.NewContent(Author, text))
}

func (s *Supervisor) plan(request *Request) string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "Plan: %s %s", request.Action, request.User)
	if request.Role != "" {
		fmt.Fprintf(&builder, " as %s", request.Role)
	}
	if len(request.Groups) > 0 {
		fmt.Fprintf(&builder, ", groups %s", strings.Join(request.Groups, ", "))
	}
	if len(request.Apps) > 0 {
		fmt.Fprintf(&builder, ", apps %s", strings.Join(request.Apps, ", "))
	}
	builder.WriteString(".")
	if s.policy != nil && len(s.policy.Constraints) > 0 {
		fmt.Fprintf(&builder, " Constraints: %s.", strings.Join(s.policy.Constraints, "; "))
	}
	return builder.String()
}

func technicalLog(request *Request, result *directory.Result) string {
	return fmt.Sprintf("action=%s user=%s status=%s code=%s message=%s\n", request.Action, request.User, result.Status, result.Code, result.Message)
}

func managerSummary(request *Request, result *directory.Result) string {
	recipient := request.Manager
	if recipient == "" {
		recipient = "manager"
	}
	return fmt.Sprintf("To: %s\nRequest: %s\nUser: %s\nOutcome: %s\n", recipient, request.Goal, request.User, result.Message)
}

// New creates a supervisor. A nil policy uses policy.FromConfig(nil).
func New(dir directory.Service, channel mailbox.Channel, p *policy.Policy, options ...Option) *Supervisor {
	if p == nil {
		p = policy.FromConfig(nil)
	}
	ret := &Supervisor{
		directory:      dir,
		channel:        channel,
		policy:         p,
		remote:         &MailboxRemote{Channel: channel},
		remoteLocation: DefaultRemoteLocation,
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}
