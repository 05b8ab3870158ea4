// Package messaging defines a minimal generic queue used to fan out approval
// lifecycle events to audit listeners.
package messaging

import (
	"context"
	"errors"
)

// ErrQueueFull is returned by non-blocking publishers when no capacity is left.
var ErrQueueFull = errors.New("queue is full")

// Queue is a typed message queue.
type Queue[T any] interface {
	// Publish enqueues a copy of t.
	Publish(ctx context.Context, t *T) error

	// Consume returns the next message. Implementations that cannot block
	// return (nil, nil) when nothing is pending.
	Consume(ctx context.Context) (Message[T], error)
}

// Message wraps a consumed payload.
type Message[T any] interface {
	// T returns the payload.
	T() *T

	// Ack marks the message processed.
	Ack() error

	// Nack marks the message failed; the queue decides whether to redeliver.
	Nack(err error) error
}
