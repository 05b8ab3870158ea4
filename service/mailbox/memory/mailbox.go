// Package memory implements an in-process mailbox.Channel. Reply plays the
// human side, which makes it suitable for tests and embedded use.
package memory

import (
	"context"
	"sync"

	"github.com/viant/ulma/service/mailbox"
)

// Mailbox keeps messages and replies in maps.
type Mailbox struct {
	mu       sync.RWMutex
	sentinel string
	incoming map[string]string
	outgoing map[string]string
	watchers map[string][]chan struct{}
	// SendErr, when set, makes Send fail; used to simulate an unavailable medium.
	SendErr error
}

var (
	_ mailbox.Channel  = (*Mailbox)(nil)
	_ mailbox.Notifier = (*Mailbox)(nil)
)

func incomingKey(kind mailbox.Kind, filename string) string {
	return string(kind) + "/" + filename
}

func (m *Mailbox) Send(_ context.Context, kind mailbox.Kind, body, filename string) (*mailbox.Envelope, error) {
	if kind == "" {
		return nil, &mailbox.Error{Op: "send", Filename: filename, Err: mailbox.ErrInvalidKind}
	}
	if filename == "" {
		filename = mailbox.DefaultFilename(kind)
	}
	if err := mailbox.ValidateFilename(filename); err != nil {
		return nil, &mailbox.Error{Op: "send", Filename: filename, Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return nil, &mailbox.Error{Op: "send", Filename: filename, Err: m.SendErr}
	}
	key := incomingKey(kind, filename)
	m.incoming[key] = body
	return &mailbox.Envelope{
		Kind:        kind,
		Filename:    filename,
		IncomingURL: "mem://incoming/" + key,
		OutgoingURL: "mem://outgoing/" + filename,
	}, nil
}

func (m *Mailbox) ReadReply(_ context.Context, filename string) (*mailbox.Reply, error) {
	if err := mailbox.ValidateFilename(filename); err != nil {
		return nil, &mailbox.Error{Op: "read", Filename: filename, Err: err}
	}
	m.mu.RLock()
	body, ok := m.outgoing[filename]
	m.mu.RUnlock()
	if !ok {
		return mailbox.ParseReply(nil, m.sentinel), nil
	}
	return mailbox.ParseReply([]byte(body), m.sentinel), nil
}

// Watch signals when Reply is called for filename.
func (m *Mailbox) Watch(ctx context.Context, filename string) (<-chan struct{}, error) {
	if err := mailbox.ValidateFilename(filename); err != nil {
		return nil, &mailbox.Error{Op: "watch", Filename: filename, Err: err}
	}
	ch := make(chan struct{}, 1)
	m.mu.Lock()
	m.watchers[filename] = append(m.watchers[filename], ch)
	m.mu.Unlock()
	go func() {
		<-ctx.Done()
		m.mu.Lock()
		defer m.mu.Unlock()
		watchers := m.watchers[filename]
		for i, candidate := range watchers {
			if candidate == ch {
				m.watchers[filename] = append(watchers[:i], watchers[i+1:]...)
				break
			}
		}
		if len(m.watchers[filename]) == 0 {
			delete(m.watchers, filename)
		}
		close(ch)
	}()
	return ch, nil
}

// Reply stores a human reply for filename and wakes watchers.
func (m *Mailbox) Reply(filename, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outgoing[filename] = body
	for _, ch := range m.watchers[filename] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Incoming returns a deposited message body.
func (m *Mailbox) Incoming(kind mailbox.Kind, filename string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	body, ok := m.incoming[incomingKey(kind, filename)]
	return body, ok
}

// Count returns the number of messages deposited for kind.
func (m *Mailbox) Count(kind mailbox.Kind) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	prefix := string(kind) + "/"
	count := 0
	for key := range m.incoming {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			count++
		}
	}
	return count
}

// New creates an empty mailbox; an empty sentinel selects mailbox.DefaultSentinel.
func New(sentinel string) *Mailbox {
	if sentinel == "" {
		sentinel = mailbox.DefaultSentinel
	}
	return &Mailbox{
		sentinel: sentinel,
		incoming: map[string]string{},
		outgoing: map[string]string{},
		watchers: map[string][]chan struct{}{},
	}
}
