package approval

import (
	"time"

	"github.com/viant/ulma/service/messaging"
)

// Option customises a Gate.
type Option func(g *Gate)

// WithEvents attaches a queue receiving lifecycle events. Publishing never
// blocks the gate when the queue is full.
func WithEvents(queue messaging.Queue[Event]) Option {
	return func(g *Gate) { g.events = queue }
}

// WithTimeout sets the default await timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(g *Gate) {
		if timeout > 0 {
			g.timeout = timeout
		}
	}
}

// WithPollInterval sets the default await poll interval.
func WithPollInterval(interval time.Duration) Option {
	return func(g *Gate) {
		if interval > 0 {
			g.pollInterval = interval
		}
	}
}

// WithSentinel sets the reply terminator quoted in request instructions.
func WithSentinel(sentinel string) Option {
	return func(g *Gate) {
		if sentinel != "" {
			g.sentinel = sentinel
		}
	}
}
