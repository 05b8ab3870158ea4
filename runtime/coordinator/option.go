package coordinator

import "time"

// Option customises a Coordinator.
type Option func(c *Coordinator)

// WithTimeout bounds how long a turn waits for an approval reply.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Coordinator) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithPollInterval sets how often the reply is polled.
func WithPollInterval(interval time.Duration) Option {
	return func(c *Coordinator) {
		if interval > 0 {
			c.pollInterval = interval
		}
	}
}
