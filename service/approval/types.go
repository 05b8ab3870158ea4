package approval

import (
	"errors"
	"time"
)

// Status is the approval state of a session.
type Status string

const (
	StatusNone      Status = "NONE"
	StatusRequested Status = "REQUESTED"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
)

// Resolved reports a terminal status.
func (s Status) Resolved() bool {
	return s == StatusApproved || s == StatusRejected
}

// Event topics published on the gate queue.
const (
	TopicRequestCreated  = "request.created"
	TopicRequestReused   = "request.reused"
	TopicDecisionCreated = "decision.created"
)

// Event is an approval lifecycle notification.
type Event struct {
	Topic    string            `json:"topic"`
	Request  *Request          `json:"request,omitempty"`
	Decision *Decision         `json:"decision,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
}

// Request describes an outstanding approval request. ID is the mailbox
// filename, which also correlates the reply.
type Request struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"sessionId"`
	Subject     string    `json:"subject"`
	Action      string    `json:"action"`
	IncomingURL string    `json:"incomingURL,omitempty"`
	OutgoingURL string    `json:"outgoingURL,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	// Reused is set when an already outstanding request was returned instead
	// of a new one being sent.
	Reused bool `json:"reused,omitempty"`
}

// Decision is a resolved request.
type Decision struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Approved  bool      `json:"approved"`
	Reason    string    `json:"reason,omitempty"`
	DecidedAt time.Time `json:"decidedAt"`
}

var (
	// ErrNoOutstandingRequest is returned when polling without a filename.
	ErrNoOutstandingRequest = errors.New("approval: no outstanding request")

	// ErrInvalidSubject is returned when raising a request without subject or action.
	ErrInvalidSubject = errors.New("approval: subject and action are required")
)
