package event

import (
	"context"
	"errors"
	"sync"
)

// ErrStop may be returned by a Sink to end the turn early without failing it.
var ErrStop = errors.New("event: stop")

// Sink receives events in emission order.
type Sink interface {
	Send(ctx context.Context, e Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, e Event) error

func (f SinkFunc) Send(ctx context.Context, e Event) error { return f(ctx, e) }

// Collector is a Sink that keeps every event.
type Collector struct {
	mu     sync.Mutex
	events []Event
}

func (c *Collector) Send(_ context.Context, e Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

// Events returns a copy of the collected events.
func (c *Collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

// Texts renders the collected events with Text.
func (c *Collector) Texts() []string {
	events := c.Events()
	ret := make([]string, 0, len(events))
	for _, e := range events {
		ret = append(ret, Text(e))
	}
	return ret
}
