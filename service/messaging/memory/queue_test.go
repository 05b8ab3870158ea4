package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/ulma/service/messaging"
)

type payload struct {
	Topic string
	Count int
}

func TestQueue_PublishConsume(t *testing.T) {
	ctx := context.Background()
	queue := NewQueue[payload](DefaultConfig())

	require.NoError(t, queue.Publish(ctx, &payload{Topic: "request.created", Count: 1}))
	assert.Equal(t, 1, queue.Size())

	msg, err := queue.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, "request.created", msg.T().Topic)
	assert.NoError(t, msg.Ack())
	assert.Error(t, msg.Ack())
}

func TestQueue_DropWhenFull(t *testing.T) {
	ctx := context.Background()
	var testCases = []struct {
		description string
		drop        bool
		expectErr   error
	}{
		{description: "drop returns ErrQueueFull", drop: true, expectErr: messaging.ErrQueueFull},
		{description: "blocking honours context", drop: false, expectErr: context.DeadlineExceeded},
	}
	for _, testCase := range testCases {
		queue := NewQueue[payload](Config{Buffer: 1, DropWhenFull: testCase.drop})
		require.NoError(t, queue.Publish(ctx, &payload{Count: 1}), testCase.description)
		runCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		err := queue.Publish(runCtx, &payload{Count: 2})
		cancel()
		assert.True(t, errors.Is(err, testCase.expectErr), testCase.description)
	}
}

func TestQueue_NackRetriesThenDeadLetters(t *testing.T) {
	ctx := context.Background()
	queue := NewQueue[payload](Config{MaxRetries: 1, RetryDelay: time.Millisecond, Buffer: 4})
	require.NoError(t, queue.Publish(ctx, &payload{Topic: "decision.created"}))

	msg, err := queue.Consume(ctx)
	require.NoError(t, err)
	require.NoError(t, msg.Nack(errors.New("listener failed")))

	consumeCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	msg, err = queue.Consume(consumeCtx)
	require.NoError(t, err)
	assert.Equal(t, "decision.created", msg.T().Topic)
	require.NoError(t, msg.Nack(errors.New("listener failed again")))
	assert.Equal(t, 1, queue.DLQSize())
}
