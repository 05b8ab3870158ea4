// Package fs implements mailbox.Channel on afs. Requests go to
// <base>/incoming/<kind>/<filename>; replies are read from
// <base>/outgoing/<filename>.
package fs

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
	"goa.design/clue/log"

	"github.com/viant/ulma/service/mailbox"
)

const (
	incomingFolder = "incoming"
	outgoingFolder = "outgoing"
)

// Mailbox is an afs backed mailbox.Channel.
type Mailbox struct {
	fs       afs.Service
	baseURL  string
	sentinel string
}

var (
	_ mailbox.Channel  = (*Mailbox)(nil)
	_ mailbox.Notifier = (*Mailbox)(nil)
)

// Send deposits body under incoming/<kind>.
func (m *Mailbox) Send(ctx context.Context, kind mailbox.Kind, body, filename string) (*mailbox.Envelope, error) {
	if kind == "" {
		return nil, &mailbox.Error{Op: "send", Filename: filename, Err: mailbox.ErrInvalidKind}
	}
	if filename == "" {
		filename = mailbox.DefaultFilename(kind)
	}
	if err := mailbox.ValidateFilename(filename); err != nil {
		return nil, &mailbox.Error{Op: "send", Filename: filename, Err: err}
	}
	envelope := &mailbox.Envelope{
		Kind:        kind,
		Filename:    filename,
		IncomingURL: url.Join(m.baseURL, incomingFolder, string(kind), filename),
		OutgoingURL: m.replyURL(filename),
	}
	if err := m.fs.Upload(ctx, envelope.IncomingURL, file.DefaultFileOsMode, strings.NewReader(body)); err != nil {
		return nil, &mailbox.Error{Op: "send", Filename: filename, Err: err}
	}
	log.Debug(ctx, log.KV{K: "msg", V: "mailbox message deposited"},
		log.KV{K: "kind", V: string(kind)}, log.KV{K: "url", V: envelope.IncomingURL})
	return envelope, nil
}

// ReadReply parses outgoing/<filename> when it exists.
func (m *Mailbox) ReadReply(ctx context.Context, filename string) (*mailbox.Reply, error) {
	if err := mailbox.ValidateFilename(filename); err != nil {
		return nil, &mailbox.Error{Op: "read", Filename: filename, Err: err}
	}
	replyURL := m.replyURL(filename)
	ok, err := m.fs.Exists(ctx, replyURL)
	if err != nil {
		return nil, &mailbox.Error{Op: "read", Filename: filename, Err: err}
	}
	if !ok {
		return mailbox.ParseReply(nil, m.sentinel), nil
	}
	data, err := m.fs.DownloadWithURL(ctx, replyURL)
	if err != nil {
		return nil, &mailbox.Error{Op: "read", Filename: filename, Err: err}
	}
	if data == nil {
		data = []byte{}
	}
	return mailbox.ParseReply(data, m.sentinel), nil
}

// Watch signals whenever outgoing/<filename> is created or written. Only
// local file URLs can be watched. The channel closes when ctx is done.
func (m *Mailbox) Watch(ctx context.Context, filename string) (<-chan struct{}, error) {
	if err := mailbox.ValidateFilename(filename); err != nil {
		return nil, &mailbox.Error{Op: "watch", Filename: filename, Err: err}
	}
	if url.Scheme(m.baseURL, file.Scheme) != file.Scheme {
		return nil, mailbox.ErrWatchUnsupported
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, &mailbox.Error{Op: "watch", Filename: filename, Err: err}
	}
	dir := url.Path(url.Join(m.baseURL, outgoingFolder))
	if err = watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, &mailbox.Error{Op: "watch", Filename: filename, Err: err}
	}
	signals := make(chan struct{}, 1)
	go func() {
		defer close(signals)
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != filename {
					continue
				}
				if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
					continue
				}
				select {
				case signals <- struct{}{}:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn(ctx, log.KV{K: "msg", V: "reply watcher error"},
					log.KV{K: "filename", V: filename}, log.KV{K: "err", V: err.Error()})
			}
		}
	}()
	return signals, nil
}

// BaseURL returns the normalised mailbox root.
func (m *Mailbox) BaseURL() string { return m.baseURL }

func (m *Mailbox) replyURL(filename string) string {
	return url.Join(m.baseURL, outgoingFolder, filename)
}

// New creates the incoming and outgoing folders under baseURL.
func New(ctx context.Context, baseURL string, options ...Option) (*Mailbox, error) {
	if baseURL == "" {
		return nil, errors.New("mailbox base URL is required")
	}
	ret := &Mailbox{baseURL: url.Normalize(baseURL, file.Scheme), sentinel: mailbox.DefaultSentinel}
	for _, option := range options {
		option(ret)
	}
	if ret.fs == nil {
		ret.fs = afs.New()
	}
	for _, dir := range []string{url.Join(ret.baseURL, incomingFolder), url.Join(ret.baseURL, outgoingFolder)} {
		if ok, _ := ret.fs.Exists(ctx, dir); ok {
			continue
		}
		if err := ret.fs.Create(ctx, dir, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create mailbox folder %s: %w", dir, err)
		}
	}
	return ret, nil
}

// Option customises a Mailbox.
type Option func(m *Mailbox)

// WithFS overrides the afs service.
func WithFS(fs afs.Service) Option {
	return func(m *Mailbox) { m.fs = fs }
}

// WithSentinel overrides the reply terminator line.
func WithSentinel(sentinel string) Option {
	return func(m *Mailbox) {
		if sentinel != "" {
			m.sentinel = sentinel
		}
	}
}
