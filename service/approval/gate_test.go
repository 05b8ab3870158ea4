package approval

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/ulma/internal/clock"
	"github.com/viant/ulma/model/state"
	"github.com/viant/ulma/runtime/session"
	"github.com/viant/ulma/service/mailbox"
	mbmemory "github.com/viant/ulma/service/mailbox/memory"
	qmemory "github.com/viant/ulma/service/messaging/memory"
)

func fixedClock(t *testing.T) {
	t.Helper()
	clock.NowFunc = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }
	t.Cleanup(func() { clock.NowFunc = time.Now })
}

func TestGate_RaiseRequest(t *testing.T) {
	fixedClock(t)
	ctx := context.Background()
	box := mbmemory.New("")
	events := qmemory.NewQueue[Event](qmemory.DefaultConfig())
	gate := New(box, WithEvents(events))
	sess := session.New("s1")

	assert.Equal(t, StatusNone, gate.Status(sess))
	request, err := gate.RaiseRequest(ctx, sess, "Jane Doe", "deletion")
	require.NoError(t, err)
	assert.Equal(t, "approvals_jane_doe_20250102T030405.000000Z.txt", request.ID)
	assert.False(t, request.Reused)
	assert.Equal(t, StatusRequested, gate.Status(sess))

	filename, _ := sess.GetString(state.KeyApprovalFilename)
	assert.Equal(t, request.ID, filename)
	waiting, _ := sess.GetBool(state.KeyWaiting)
	assert.True(t, waiting)
	body, ok := box.Incoming(mailbox.KindApprovals, request.ID)
	require.True(t, ok)
	assert.Contains(t, body, "Subject: Jane Doe")
	assert.Contains(t, body, "Action: deletion")
	assert.Contains(t, body, "'over'")

	again, err := gate.RaiseRequest(ctx, sess, "Jane Doe", "deletion")
	require.NoError(t, err)
	assert.True(t, again.Reused)
	assert.Equal(t, request.ID, again.ID)
	assert.Equal(t, 1, box.Count(mailbox.KindApprovals))

	topics := []string{}
	for events.Size() > 0 {
		msg, err := events.Consume(ctx)
		require.NoError(t, err)
		topics = append(topics, msg.T().Topic)
	}
	assert.Equal(t, []string{TopicRequestCreated, TopicRequestReused}, topics)
}

func TestGate_RaiseRequest_MailboxFailure(t *testing.T) {
	ctx := context.Background()
	box := mbmemory.New("")
	box.SendErr = errors.New("share offline")
	gate := New(box)
	sess := session.New("s1")

	_, err := gate.RaiseRequest(ctx, sess, "Jane Doe", "deletion")
	require.Error(t, err)
	assert.True(t, mailbox.IsError(err))
	assert.Equal(t, StatusNone, gate.Status(sess))
	assert.Equal(t, 0, sess.Len())

	_, err = gate.RaiseRequest(ctx, sess, "", "deletion")
	assert.ErrorIs(t, err, ErrInvalidSubject)
}

func TestGate_PollOnce(t *testing.T) {
	var testCases = []struct {
		description string
		reply       string
		status      mailbox.Status
		done        bool
		reason      string
		expect      Status
	}{
		{description: "no reply", status: mailbox.StatusPending, reason: "no reply yet", expect: StatusRequested},
		{description: "approved without sentinel", reply: "Approved", status: mailbox.StatusPending, reason: "reply has no 'over' line", expect: StatusRequested},
		{description: "approved and over", reply: "Approved\nover", status: mailbox.StatusApproved, done: true, expect: StatusApproved},
		{description: "not approved and over", reply: "Not Approved\nover", status: mailbox.StatusRejected, done: true, expect: StatusRejected},
		{description: "keyword precedence", reply: "approved\nnot approved\nover", status: mailbox.StatusRejected, done: true, expect: StatusRejected},
		{description: "sentinel only", reply: "over", status: mailbox.StatusPending, reason: "reply has no decision keyword", expect: StatusRequested},
	}
	for _, testCase := range testCases {
		ctx := context.Background()
		box := mbmemory.New("")
		gate := New(box)
		sess := session.New("s1")
		request, err := gate.RaiseRequest(ctx, sess, "Jane Doe", "deletion")
		require.NoError(t, err, testCase.description)
		if testCase.reply != "" {
			box.Reply(request.ID, testCase.reply)
		}
		reply, err := gate.PollOnce(ctx, sess, "")
		require.NoError(t, err, testCase.description)
		assert.Equal(t, testCase.status, reply.Status, testCase.description)
		assert.Equal(t, testCase.done, reply.Done, testCase.description)
		assert.Equal(t, testCase.reason, reply.Reason, testCase.description)
		assert.Equal(t, testCase.expect, gate.Status(sess), testCase.description)

		status, ok := sess.GetString(state.KeyApprovalStatus)
		_, hasTS := sess.Get(state.KeyApprovalTS)
		if testCase.done {
			assert.True(t, ok, testCase.description)
			assert.Equal(t, string(testCase.expect), status, testCase.description)
			assert.True(t, hasTS, testCase.description)
			waiting, _ := sess.GetBool(state.KeyWaiting)
			assert.False(t, waiting, testCase.description)
		} else {
			assert.False(t, ok, testCase.description)
			assert.False(t, hasTS, testCase.description)
		}
	}
}

func TestGate_PollOnce_Idempotent(t *testing.T) {
	ctx := context.Background()
	box := mbmemory.New("")
	events := qmemory.NewQueue[Event](qmemory.DefaultConfig())
	gate := New(box, WithEvents(events))
	sess := session.New("s1")
	request, err := gate.RaiseRequest(ctx, sess, "Jane Doe", "deletion")
	require.NoError(t, err)
	box.Reply(request.ID, "Approved\nover")

	first, err := gate.PollOnce(ctx, sess, request.ID)
	require.NoError(t, err)
	resolvedAt, _ := sess.GetString(state.KeyApprovalTS)
	second, err := gate.PollOnce(ctx, sess, request.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	again, _ := sess.GetString(state.KeyApprovalTS)
	assert.Equal(t, resolvedAt, again)
	assert.Equal(t, 2, events.Size(), "one request and one decision event")

	_, err = gate.PollOnce(ctx, session.New("s2"), "")
	assert.ErrorIs(t, err, ErrNoOutstandingRequest)
}

func TestGate_RaiseAfterResolution(t *testing.T) {
	ctx := context.Background()
	box := mbmemory.New("")
	gate := New(box)
	sess := session.New("s1")
	request, err := gate.RaiseRequest(ctx, sess, "Jane Doe", "deletion")
	require.NoError(t, err)
	box.Reply(request.ID, "Approved\nover")
	_, err = gate.PollOnce(ctx, sess, "")
	require.NoError(t, err)

	clock.NowFunc = func() time.Time { return time.Now().Add(time.Hour) }
	defer func() { clock.NowFunc = time.Now }()
	next, err := gate.RaiseRequest(ctx, sess, "John Roe", "offboarding")
	require.NoError(t, err)
	assert.False(t, next.Reused)
	assert.NotEqual(t, request.ID, next.ID)
	assert.Equal(t, StatusRequested, gate.Status(sess))
	_, ok := sess.Get(state.KeyApprovalStatus)
	assert.False(t, ok)
}

func TestGate_AwaitWithTimeout(t *testing.T) {
	t.Run("timeout leaves request outstanding", func(t *testing.T) {
		ctx := context.Background()
		gate := New(mbmemory.New(""))
		sess := session.New("s1")
		_, err := gate.RaiseRequest(ctx, sess, "Jane Doe", "deletion")
		require.NoError(t, err)

		decision, reason, err := gate.AwaitWithTimeout(ctx, sess, 30*time.Millisecond, 5*time.Millisecond)
		require.NoError(t, err)
		assert.Nil(t, decision)
		assert.Equal(t, "no reply yet", reason)
		assert.Equal(t, StatusRequested, gate.Status(sess))
	})

	t.Run("cancellation leaves request outstanding", func(t *testing.T) {
		gate := New(mbmemory.New(""))
		sess := session.New("s1")
		_, err := gate.RaiseRequest(context.Background(), sess, "Jane Doe", "deletion")
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()
		decision, _, err := gate.AwaitWithTimeout(ctx, sess, time.Minute, 5*time.Millisecond)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, decision)
		assert.Equal(t, StatusRequested, gate.Status(sess))
		_, ok := sess.Get(state.KeyApprovalStatus)
		assert.False(t, ok)
	})

	t.Run("reply wakes the wait", func(t *testing.T) {
		ctx := context.Background()
		box := mbmemory.New("")
		gate := New(box)
		sess := session.New("s1")
		request, err := gate.RaiseRequest(ctx, sess, "Jane Doe", "deletion")
		require.NoError(t, err)
		go func() {
			time.Sleep(20 * time.Millisecond)
			box.Reply(request.ID, "Approved\nover")
		}()
		decision, reason, err := gate.AwaitWithTimeout(ctx, sess, 5*time.Second, time.Minute)
		require.NoError(t, err)
		require.NotNil(t, decision)
		assert.True(t, *decision)
		assert.Equal(t, "approved", reason)
		assert.Equal(t, StatusApproved, gate.Status(sess))
	})

	t.Run("cancellation while throttling reply writes", func(t *testing.T) {
		box := mbmemory.New("")
		gate := New(box)
		sess := session.New("s1")
		request, err := gate.RaiseRequest(context.Background(), sess, "Jane Doe", "deletion")
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			box.Reply(request.ID, "Approved")
			time.Sleep(2 * time.Millisecond)
			box.Reply(request.ID, "Approved\nstill typing")
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()
		decision, reason, err := gate.AwaitWithTimeout(ctx, sess, time.Minute, time.Minute)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, decision)
		assert.Equal(t, "reply has no 'over' line", reason)
		assert.Equal(t, StatusRequested, gate.Status(sess))
	})

	t.Run("no outstanding request", func(t *testing.T) {
		gate := New(mbmemory.New(""))
		_, _, err := gate.AwaitWithTimeout(context.Background(), session.New("s1"), time.Second, time.Millisecond)
		assert.ErrorIs(t, err, ErrNoOutstandingRequest)
	})
}

func TestGate_Status_FailsClosed(t *testing.T) {
	gate := New(mbmemory.New(""))
	sess := session.New("s1", session.WithState(map[string]interface{}{
		state.KeyApprovalFilename: "approvals_x.txt",
		state.KeyWaiting:          "true",
		state.KeyApprovalStatus:   "APPROVED",
	}))
	assert.Equal(t, StatusRequested, gate.Status(sess))
}
