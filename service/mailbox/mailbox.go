package mailbox

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/viant/ulma/internal/clock"
)

// Kind names a family of outgoing messages; it is also the incoming sub folder.
type Kind string

const (
	KindApprovals Kind = "approvals"
	KindSummaries Kind = "summaries"
	KindLogs      Kind = "logs"
)

// DefaultSentinel is the line that terminates a human reply.
const DefaultSentinel = "over"

// Status is the outcome of reading a reply. Anything short of a complete
// reply is pending.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Decision is the human verdict extracted from a reply.
type Decision string

const (
	DecisionNone     Decision = ""
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// Envelope describes a deposited message.
type Envelope struct {
	Kind        Kind   `json:"kind"`
	Filename    string `json:"filename"`
	IncomingURL string `json:"incomingURL"`
	OutgoingURL string `json:"outgoingURL"`
}

// Reply is the parsed state of the reply to one message.
type Reply struct {
	Status   Status   `json:"status"`
	Done     bool     `json:"done"`
	Decision Decision `json:"decision,omitempty"`
	Reason   string   `json:"reason,omitempty"`
}

// Approved reports a completed approval.
func (r *Reply) Approved() bool {
	return r != nil && r.Done && r.Decision == DecisionApproved
}

// Channel deposits messages and reads replies.
type Channel interface {
	// Send writes body under the incoming location of kind. An empty filename
	// defaults to DefaultFilename(kind).
	Send(ctx context.Context, kind Kind, body, filename string) (*Envelope, error)

	// ReadReply inspects the reply for filename. It never mutates anything.
	ReadReply(ctx context.Context, filename string) (*Reply, error)
}

// Notifier is implemented by channels able to signal that a reply file
// changed. Signals are hints; callers still read the reply.
type Notifier interface {
	Watch(ctx context.Context, filename string) (<-chan struct{}, error)
}

var (
	// ErrInvalidFilename is returned for empty or path-like filenames.
	ErrInvalidFilename = errors.New("mailbox: invalid filename")

	// ErrInvalidKind is returned for an empty kind.
	ErrInvalidKind = errors.New("mailbox: invalid kind")

	// ErrWatchUnsupported is returned when the medium cannot be watched.
	ErrWatchUnsupported = errors.New("mailbox: watch unsupported")
)

// Error reports a mailbox operation failure.
type Error struct {
	Op       string
	Filename string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("mailbox %s %s: %v", e.Op, e.Filename, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsError reports whether err is (or wraps) a mailbox Error.
func IsError(err error) bool {
	var mailboxErr *Error
	return errors.As(err, &mailboxErr)
}

// DefaultFilename returns <kind>_<UTC timestamp>.
func DefaultFilename(kind Kind) string {
	return string(kind) + "_" + clock.Timestamp(clock.Now())
}

// ApprovalFilename returns approvals_<subject slug>_<UTC timestamp>.txt.
func ApprovalFilename(subject string) string {
	return string(KindApprovals) + "_" + Slug(subject) + "_" + clock.Timestamp(clock.Now()) + ".txt"
}

// Slug lowercases s and folds every run of non alphanumerics into "_".
func Slug(s string) string {
	var builder strings.Builder
	underscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			builder.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore && builder.Len() > 0 {
			builder.WriteByte('_')
			underscore = true
		}
	}
	slug := strings.TrimSuffix(builder.String(), "_")
	if slug == "" {
		return "request"
	}
	return slug
}

// ValidateFilename rejects names that could escape the mailbox folders.
func ValidateFilename(filename string) error {
	if filename == "" || filename == "." || filename == ".." {
		return ErrInvalidFilename
	}
	if strings.ContainsAny(filename, `/\`) || path.Base(filename) != filename {
		return ErrInvalidFilename
	}
	return nil
}
