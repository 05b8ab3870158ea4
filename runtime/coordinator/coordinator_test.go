package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/ulma/model/event"
	"github.com/viant/ulma/model/state"
	"github.com/viant/ulma/runtime/session"
	"github.com/viant/ulma/service/approval"
	"github.com/viant/ulma/service/directory"
	dirmemory "github.com/viant/ulma/service/directory/memory"
	"github.com/viant/ulma/service/mailbox"
	mbmemory "github.com/viant/ulma/service/mailbox/memory"
	"github.com/viant/ulma/service/pipeline"
	ustate "github.com/viant/ulma/service/state"
	stmemory "github.com/viant/ulma/service/state/memory"
)

type harness struct {
	directory directory.Service
	mailbox   *mbmemory.Mailbox
	store     ustate.Store
	gate      *approval.Gate
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := dirmemory.New()
	require.NoError(t, dir.Seed(context.Background(),
		&directory.Principal{UPN: "jane.doe@corp", Role: "employee", Location: "HQ", Enabled: true},
	))
	box := mbmemory.New("")
	return &harness{directory: dir, mailbox: box, store: stmemory.New(), gate: approval.New(box)}
}

func (h *harness) coordinator(timeout time.Duration) *Coordinator {
	supervisor := pipeline.New(h.directory, h.mailbox, nil)
	return New(supervisor, h.gate, h.store, WithTimeout(timeout), WithPollInterval(5*time.Millisecond))
}

func text(input string) *pipeline.Input {
	return &pipeline.Input{Text: input}
}

func texts(events []event.Event) []string {
	var ret []string
	for _, e := range events {
		ret = append(ret, event.Text(e))
	}
	return ret
}

func last(events []event.Event) string {
	if len(events) == 0 {
		return ""
	}
	return event.Text(events[len(events)-1])
}

func filenameOf(t *testing.T, c *Coordinator, sessionID string) string {
	t.Helper()
	sess, err := c.Session(context.Background(), sessionID)
	require.NoError(t, err)
	filename, _ := sess.GetString(state.KeyApprovalFilename)
	return filename
}

// replyWhenRaised answers the approval request as soon as it is deposited.
func replyWhenRaised(c *Coordinator, box *mbmemory.Mailbox, sessionID, body string) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			sess, err := c.Session(context.Background(), sessionID)
			if err == nil {
				if filename, _ := sess.GetString(state.KeyApprovalFilename); filename != "" {
					box.Reply(filename, body)
					return
				}
			}
			time.Sleep(2 * time.Millisecond)
		}
	}()
	return done
}

func TestCoordinator_ReplyAbsentThenCheckAgain(t *testing.T) {
	h := newHarness(t)
	c := h.coordinator(30 * time.Millisecond)
	ctx := context.Background()

	events, err := c.Run(ctx, "s1", text("Delete user jane.doe@corp"))
	require.NoError(t, err)
	all := texts(events)
	require.GreaterOrEqual(t, len(all), 2)
	assert.Contains(t, all[len(all)-2], "High-risk operation paused: waiting for approval reply in")
	assert.Contains(t, last(events), "Approval still pending (no reply yet)")
	assert.Contains(t, last(events), "'check again'")
	for _, e := range events {
		_, isPause := e.(*event.ConfirmationRequest)
		assert.False(t, isPause)
	}

	sess, err := c.Session(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, approval.StatusRequested, h.gate.Status(sess))
	assert.Equal(t, 1, h.mailbox.Count(mailbox.KindApprovals))

	persisted, err := h.store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, true, persisted[state.KeyWaiting])
	assert.Equal(t, filenameOf(t, c, "s1"), persisted[state.KeyApprovalFilename])

	h.mailbox.Reply(filenameOf(t, c, "s1"), "Approved\nover\n")
	events, err = c.Run(ctx, "s1", text("check again"))
	require.NoError(t, err)
	assert.Contains(t, last(events), "SUCCESS")
	assert.Equal(t, 1, h.mailbox.Count(mailbox.KindApprovals))
	assert.Equal(t, approval.StatusApproved, h.gate.Status(sess))

	result, err := h.directory.Lookup(ctx, "jane.doe@corp")
	require.NoError(t, err)
	assert.False(t, result.OK())
}

func TestCoordinator_ReplyDuringWait(t *testing.T) {
	var testCases = []struct {
		description  string
		reply        string
		expectStatus approval.Status
		expectText   string
		expectExists bool
	}{
		{description: "approved", reply: "approved\nover", expectStatus: approval.StatusApproved, expectText: "SUCCESS", expectExists: false},
		{description: "rejected", reply: "Not approved\nover", expectStatus: approval.StatusRejected, expectText: "FAILURE", expectExists: true},
	}

	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			h := newHarness(t)
			c := h.coordinator(2 * time.Second)
			done := replyWhenRaised(c, h.mailbox, "s1", testCase.reply)

			events, err := c.Run(context.Background(), "s1", text("Delete user jane.doe@corp"))
			<-done
			require.NoError(t, err)
			assert.Contains(t, last(events), testCase.expectText)

			sess, err := c.Session(context.Background(), "s1")
			require.NoError(t, err)
			assert.Equal(t, testCase.expectStatus, h.gate.Status(sess))
			waiting, _ := sess.GetBool(state.KeyWaiting)
			assert.False(t, waiting)

			result, err := h.directory.Lookup(context.Background(), "jane.doe@corp")
			require.NoError(t, err)
			assert.Equal(t, testCase.expectExists, result.OK())
		})
	}
}

func TestCoordinator_ResumeAfterRestart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first := h.coordinator(10 * time.Millisecond)
	_, err := first.Run(ctx, "s1", text("Delete user jane.doe@corp"))
	require.NoError(t, err)
	filename := filenameOf(t, first, "s1")
	require.NotEmpty(t, filename)

	h.mailbox.Reply(filename, "approved\nover")
	second := h.coordinator(10 * time.Millisecond)
	events, err := second.Run(ctx, "s1", text("check again"))
	require.NoError(t, err)
	assert.Contains(t, last(events), "SUCCESS")
	assert.Equal(t, 1, h.mailbox.Count(mailbox.KindApprovals))
}

func TestCoordinator_LowRiskDoesNotPause(t *testing.T) {
	h := newHarness(t)
	c := h.coordinator(10 * time.Millisecond)
	events, err := c.Run(context.Background(), "s1", &pipeline.Input{Request: &pipeline.Request{Goal: "onboard", User: "john@corp", Role: "employee"}})
	require.NoError(t, err)
	assert.Contains(t, last(events), "SUCCESS")
	assert.Equal(t, 0, h.mailbox.Count(mailbox.KindApprovals))
}

func TestCoordinator_MailboxFailure(t *testing.T) {
	h := newHarness(t)
	c := h.coordinator(10 * time.Millisecond)
	h.mailbox.SendErr = errors.New("disk full")

	events, err := c.Run(context.Background(), "s1", text("Delete user jane.doe@corp"))
	require.NoError(t, err)
	assert.Contains(t, last(events), "Could not queue approval request")

	sess, err := c.Session(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, approval.StatusNone, h.gate.Status(sess))
}

type failingStore struct {
	puts int
	mu   sync.Mutex
}

func (s *failingStore) Get(context.Context, string) (map[string]interface{}, error) {
	return nil, ustate.NewStorageError("get", "s1", errors.New("unreachable"))
}

func (s *failingStore) Put(context.Context, string, map[string]interface{}) error {
	s.mu.Lock()
	s.puts++
	s.mu.Unlock()
	return ustate.NewStorageError("put", "s1", errors.New("unreachable"))
}

func TestCoordinator_StorageFailureIsNotFatal(t *testing.T) {
	h := newHarness(t)
	store := &failingStore{}
	c := New(pipeline.New(h.directory, h.mailbox, nil), h.gate, store)

	events, err := c.Run(context.Background(), "s1", &pipeline.Input{Request: &pipeline.Request{Goal: "onboard", User: "john@corp"}})
	require.NoError(t, err)
	assert.Contains(t, last(events), "SUCCESS")
	assert.Equal(t, 1, store.puts)
}

type brokenPipeline struct{}

func (brokenPipeline) Run(ctx context.Context, sess *session.Session, _ *pipeline.Input, sink event.Sink) error {
	sess.Set("PARTIAL", true)
	if err := sink.Send(ctx, event.NewContent("test", "started")); err != nil {
		return err
	}
	return errors.New("boom")
}

func TestCoordinator_PipelineError(t *testing.T) {
	h := newHarness(t)
	c := New(brokenPipeline{}, h.gate, h.store)

	events, err := c.Run(context.Background(), "s1", text("anything"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPipeline)
	assert.Equal(t, []string{"started", genericFailure}, texts(events))

	persisted, err := h.store.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, true, persisted["PARTIAL"])
	assert.Equal(t, pipeline.OutcomeFailure, persisted[state.KeyLastOutcome])
}

func TestCoordinator_CancelledWhileWaiting(t *testing.T) {
	h := newHarness(t)
	c := h.coordinator(5 * time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	sink := event.SinkFunc(func(ctx context.Context, e event.Event) error {
		if content, ok := e.(*event.Content); ok && content.Author == Author {
			cancel()
		}
		return nil
	})

	err := c.Execute(ctx, "s1", text("Delete user jane.doe@corp"), sink)
	assert.ErrorIs(t, err, context.Canceled)

	persisted, err := h.store.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, true, persisted[state.KeyWaiting])
}

func TestCoordinator_CallerStopsStream(t *testing.T) {
	h := newHarness(t)
	c := h.coordinator(10 * time.Millisecond)
	var received int
	sink := event.SinkFunc(func(context.Context, event.Event) error {
		received++
		return event.ErrStop
	})
	err := c.Execute(context.Background(), "s1", &pipeline.Input{Request: &pipeline.Request{Goal: "onboard", User: "john@corp"}}, sink)
	require.NoError(t, err)
	assert.Equal(t, 1, received)
}

func TestCoordinator_Session(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.Put(context.Background(), "s1", map[string]interface{}{state.KeyLastOutcome: "SUCCESS"}))
	c := h.coordinator(time.Second)

	_, err := c.Session(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidSessionID)

	var wg sync.WaitGroup
	sessions := make([]*session.Session, 8)
	for i := range sessions {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sessions[i], _ = c.Session(context.Background(), "s1")
		}(i)
	}
	wg.Wait()
	for _, sess := range sessions {
		assert.Same(t, sessions[0], sess)
	}
	outcome, _ := sessions[0].GetString(state.KeyLastOutcome)
	assert.Equal(t, "SUCCESS", outcome)

	sessions[0].Set(state.KeyLastOutcome, "PENDING")
	require.NoError(t, h.store.Put(context.Background(), "s1", map[string]interface{}{state.KeyLastOutcome: "FAILURE"}))
	again, err := c.Session(context.Background(), "s1")
	require.NoError(t, err)
	outcome, _ = again.GetString(state.KeyLastOutcome)
	assert.Equal(t, "PENDING", outcome)

	c.Forget("s1")
	fresh, err := c.Session(context.Background(), "s1")
	require.NoError(t, err)
	outcome, _ = fresh.GetString(state.KeyLastOutcome)
	assert.Equal(t, "FAILURE", outcome)
}

func TestCoordinator_CallerResumeIsNotADecision(t *testing.T) {
	h := newHarness(t)
	c := h.coordinator(20 * time.Millisecond)
	ctx := context.Background()

	events, err := c.Run(ctx, "fresh", pipeline.NewResume("tok", true))
	require.NoError(t, err)
	assert.Contains(t, last(events), "nothing to resume")

	_, err = c.Run(ctx, "s1", text("Delete user jane.doe@corp"))
	require.NoError(t, err)
	sess, err := c.Session(ctx, "s1")
	require.NoError(t, err)
	token, _ := sess.GetString(state.KeyApprovalToken)
	require.NotEmpty(t, token)

	events, err = c.Run(ctx, "s1", pipeline.NewResume(token, true))
	require.NoError(t, err)
	assert.Contains(t, last(events), "Approval still pending")
	assert.Equal(t, approval.StatusRequested, h.gate.Status(sess))
	result, err := h.directory.Lookup(ctx, "jane.doe@corp")
	require.NoError(t, err)
	assert.True(t, result.OK())

	h.mailbox.Reply(filenameOf(t, c, "s1"), "Not approved\nover\n")
	events, err = c.Run(ctx, "s1", pipeline.NewResume(token, true))
	require.NoError(t, err)
	assert.Contains(t, last(events), "FAILURE")
	result, err = h.directory.Lookup(ctx, "jane.doe@corp")
	require.NoError(t, err)
	assert.True(t, result.OK())
}

type flakyDirectory struct {
	directory.Service
	failDelete bool
}

func (d *flakyDirectory) Delete(ctx context.Context, upn string) (*directory.Result, error) {
	if d.failDelete {
		return nil, errors.New("directory offline")
	}
	return d.Service.Delete(ctx, upn)
}

func TestCoordinator_ApprovedRequestRetriesAfterPipelineError(t *testing.T) {
	h := newHarness(t)
	flaky := &flakyDirectory{Service: h.directory, failDelete: true}
	h.directory = flaky
	c := h.coordinator(20 * time.Millisecond)
	ctx := context.Background()

	_, err := c.Run(ctx, "s1", text("Delete user jane.doe@corp"))
	require.NoError(t, err)
	h.mailbox.Reply(filenameOf(t, c, "s1"), "Approved\nover\n")

	events, err := c.Run(ctx, "s1", text("check again"))
	assert.ErrorIs(t, err, ErrPipeline)
	assert.Equal(t, genericFailure, last(events))
	persisted, err := h.store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.NotEmpty(t, persisted[state.KeyPendingRequest])
	assert.Equal(t, state.ApprovalApproved, persisted[state.KeyApprovalStatus])

	flaky.failDelete = false
	events, err = c.Run(ctx, "s1", text("check again"))
	require.NoError(t, err)
	assert.Contains(t, last(events), "SUCCESS")
	assert.Equal(t, 1, h.mailbox.Count(mailbox.KindApprovals))
	result, err := h.directory.Lookup(ctx, "jane.doe@corp")
	require.NoError(t, err)
	assert.False(t, result.OK())
}

func TestCoordinator_UnqueuedPauseIsDropped(t *testing.T) {
	h := newHarness(t)
	c := h.coordinator(10 * time.Millisecond)
	h.mailbox.SendErr = errors.New("disk full")

	_, err := c.Run(context.Background(), "s1", text("Delete user jane.doe@corp"))
	require.NoError(t, err)
	sess, err := c.Session(context.Background(), "s1")
	require.NoError(t, err)
	pending, _ := sess.GetString(state.KeyPendingRequest)
	assert.Empty(t, pending)
	token, _ := sess.GetString(state.KeyApprovalToken)
	assert.Empty(t, token)
}
