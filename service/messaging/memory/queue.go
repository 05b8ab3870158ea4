package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/viant/ulma/service/messaging"
)

// Config controls the in-memory queue.
type Config struct {
	MaxRetries int
	RetryDelay time.Duration
	// DropWhenFull makes Publish fail fast with messaging.ErrQueueFull instead
	// of blocking until a consumer makes room.
	DropWhenFull bool
	Buffer       int
}

// DefaultConfig returns the configuration used for approval events.
func DefaultConfig() Config {
	return Config{
		MaxRetries:   3,
		RetryDelay:   100 * time.Millisecond,
		DropWhenFull: true,
		Buffer:       256,
	}
}

// Message is an in-memory queue message.
type Message[T any] struct {
	ID        string
	CreatedAt time.Time
	payload   T
	queue     *Queue[T]
	retries   int
	mu        sync.Mutex
	processed bool
}

func (m *Message[T]) T() *T { return &m.payload }

func (m *Message[T]) Ack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return fmt.Errorf("message %s already processed", m.ID)
	}
	m.processed = true
	return nil
}

// Nack redelivers the payload after RetryDelay until MaxRetries is exceeded,
// then moves the message to the dead letter list.
func (m *Message[T]) Nack(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return fmt.Errorf("message %s already processed", m.ID)
	}
	m.processed = true
	m.retries++
	if m.retries > m.queue.config.MaxRetries {
		m.queue.deadLetter(m)
		return nil
	}
	retry := &Message[T]{ID: m.ID, CreatedAt: time.Now(), payload: m.payload, queue: m.queue, retries: m.retries}
	go func() {
		time.Sleep(m.queue.config.RetryDelay)
		select {
		case m.queue.messages <- retry:
		default:
			m.queue.deadLetter(retry)
		}
	}()
	return nil
}

// Queue is a buffered channel backed messaging.Queue.
type Queue[T any] struct {
	messages chan *Message[T]
	config   Config
	dlq      []*Message[T]
	dlqMu    sync.Mutex
}

// Publish enqueues a copy of t.
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	if t == nil {
		return fmt.Errorf("nil payload")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := &Message[T]{ID: uuid.New().String(), CreatedAt: time.Now(), payload: *t, queue: q}
	if q.config.DropWhenFull {
		select {
		case q.messages <- msg:
			return nil
		default:
			return messaging.ErrQueueFull
		}
	}
	select {
	case q.messages <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume blocks until a message is available or ctx is done.
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	select {
	case msg := <-q.messages:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Size returns the number of buffered messages.
func (q *Queue[T]) Size() int { return len(q.messages) }

// DLQSize returns the number of dead lettered messages.
func (q *Queue[T]) DLQSize() int {
	q.dlqMu.Lock()
	defer q.dlqMu.Unlock()
	return len(q.dlq)
}

func (q *Queue[T]) deadLetter(m *Message[T]) {
	q.dlqMu.Lock()
	q.dlq = append(q.dlq, m)
	q.dlqMu.Unlock()
}

// NewQueue creates an in-memory queue.
func NewQueue[T any](config Config) *Queue[T] {
	if config.Buffer <= 0 {
		config.Buffer = DefaultConfig().Buffer
	}
	return &Queue[T]{messages: make(chan *Message[T], config.Buffer), config: config}
}

var _ messaging.Queue[any] = (*Queue[any])(nil)
