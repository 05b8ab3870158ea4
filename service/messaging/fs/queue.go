// Package fs implements messaging.Queue on top of afs so approval events
// survive restarts and can be consumed by out-of-process auditors.
//
// Layout under the base URL: pending/, processing/, completed/, failed/.
// File names start with a sortable timestamp so listing order is publish order.
package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/storage"
	"github.com/viant/afs/url"

	"github.com/viant/ulma/internal/clock"
	"github.com/viant/ulma/service/messaging"
)

// MessageState is the lifecycle stage of a stored message.
type MessageState string

const (
	MessageStatePending    MessageState = "pending"
	MessageStateProcessing MessageState = "processing"
	MessageStateCompleted  MessageState = "completed"
	MessageStateFailed     MessageState = "failed"
)

// Message is the stored envelope.
type Message[T any] struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Data      T            `json:"data"`
	State     MessageState `json:"state"`
	Error     string       `json:"error,omitempty"`
	Retries   int          `json:"retries"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`

	queue     *Queue[T]
	mu        sync.Mutex
	processed bool
}

func (m *Message[T]) T() *T { return &m.Data }

func (m *Message[T]) Ack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return fmt.Errorf("message %s already processed", m.ID)
	}
	m.processed = true
	m.State = MessageStateCompleted
	return m.queue.transition(context.Background(), m, MessageStateProcessing, MessageStateCompleted)
}

// Nack moves the message back to pending while retries remain, otherwise to failed.
func (m *Message[T]) Nack(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return fmt.Errorf("message %s already processed", m.ID)
	}
	m.processed = true
	m.Retries++
	if err != nil {
		m.Error = err.Error()
	}
	target := MessageStatePending
	if m.Retries > m.queue.config.MaxRetries {
		target = MessageStateFailed
	}
	m.State = target
	return m.queue.transition(context.Background(), m, MessageStateProcessing, target)
}

// Config configures the queue.
type Config struct {
	BaseURL    string `json:"baseURL" yaml:"baseURL"`
	MaxRetries int    `json:"maxRetries,omitempty" yaml:"maxRetries,omitempty"`
}

// Queue is an afs backed messaging.Queue. Consume never blocks: it returns
// (nil, nil) when nothing is pending.
type Queue[T any] struct {
	fs     afs.Service
	config Config
	mu     sync.Mutex
}

// Publish writes the payload to pending/.
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	if t == nil {
		return fmt.Errorf("nil payload")
	}
	now := clock.Now()
	id := uuid.New().String()
	msg := &Message[T]{
		ID:        id,
		Name:      fmt.Sprintf("%020d_%s.json", now.UnixNano(), id),
		Data:      *t,
		State:     MessageStatePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return q.write(ctx, msg)
}

// Consume claims the oldest pending message.
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	objects, err := q.fs.List(ctx, q.dir(MessageStatePending))
	if err != nil {
		return nil, fmt.Errorf("failed to list pending messages: %w", err)
	}
	candidates := make([]storage.Object, 0, len(objects))
	for _, object := range objects {
		if !object.IsDir() && strings.HasSuffix(object.Name(), ".json") {
			candidates = append(candidates, object)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Name() < candidates[j].Name() })
	object := candidates[0]
	data, err := q.fs.DownloadWithURL(ctx, object.URL())
	if err != nil {
		return nil, fmt.Errorf("failed to read message %s: %w", object.Name(), err)
	}
	msg := &Message[T]{}
	if err = json.Unmarshal(data, msg); err != nil {
		_ = q.fs.Move(ctx, object.URL(), url.Join(q.dir(MessageStateFailed), "invalid-"+object.Name()))
		return nil, fmt.Errorf("failed to decode message %s: %w", object.Name(), err)
	}
	msg.queue = q
	msg.Name = object.Name()
	msg.State = MessageStateProcessing
	msg.UpdatedAt = clock.Now()
	if err = q.write(ctx, msg); err != nil {
		return nil, err
	}
	if err = q.fs.Delete(ctx, object.URL()); err != nil {
		return nil, fmt.Errorf("failed to remove pending message %s: %w", object.Name(), err)
	}
	return msg, nil
}

func (q *Queue[T]) transition(ctx context.Context, m *Message[T], from, to MessageState) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	m.State = to
	m.UpdatedAt = clock.Now()
	if err := q.write(ctx, m); err != nil {
		return err
	}
	source := url.Join(q.dir(from), m.Name)
	if ok, _ := q.fs.Exists(ctx, source); ok {
		return q.fs.Delete(ctx, source)
	}
	return nil
}

func (q *Queue[T]) write(ctx context.Context, m *Message[T]) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode message %s: %w", m.ID, err)
	}
	if err = q.fs.Upload(ctx, url.Join(q.dir(m.State), m.Name), file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write message %s: %w", m.ID, err)
	}
	return nil
}

func (q *Queue[T]) dir(state MessageState) string {
	return url.Join(q.config.BaseURL, string(state))
}

// Count returns the number of messages in the given state.
func (q *Queue[T]) Count(ctx context.Context, state MessageState) (int, error) {
	objects, err := q.fs.List(ctx, q.dir(state))
	if err != nil {
		return 0, err
	}
	count := 0
	for _, object := range objects {
		if !object.IsDir() {
			count++
		}
	}
	return count, nil
}

// NewQueue creates the queue directories when missing.
func NewQueue[T any](ctx context.Context, fs afs.Service, config Config) (*Queue[T], error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	if fs == nil {
		fs = afs.New()
	}
	config.BaseURL = url.Normalize(config.BaseURL, file.Scheme)
	q := &Queue[T]{fs: fs, config: config}
	for _, state := range []MessageState{MessageStatePending, MessageStateProcessing, MessageStateCompleted, MessageStateFailed} {
		dir := q.dir(state)
		if ok, _ := fs.Exists(ctx, dir); ok {
			continue
		}
		if err := fs.Create(ctx, dir, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return q, nil
}

var _ messaging.Queue[any] = (*Queue[any])(nil)
