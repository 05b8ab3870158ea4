// Package pipeline defines the task pipeline the coordinator drives and a
// deterministic supervisor implementation for user lifecycle requests.
//
// A pipeline run streams events to a sink. It suspends by emitting an
// event.ConfirmationRequest and returning; the coordinator re-invokes it with
// a Resume carrying the same token once a human decision is known.
package pipeline

import (
	"context"
	"errors"

	"github.com/viant/ulma/model/event"
	"github.com/viant/ulma/runtime/session"
)

// Pipeline handles one turn of a session.
type Pipeline interface {
	Run(ctx context.Context, sess *session.Session, input *Input, sink event.Sink) error
}

// Resume answers a ConfirmationRequest.
type Resume struct {
	Token    string `json:"token"`
	Approved bool   `json:"approved"`
}

// Input is what a turn hands to the pipeline. Exactly one of Text, Request
// or Resume is expected; Request wins over Text.
type Input struct {
	Text    string   `json:"text,omitempty"`
	Request *Request `json:"request,omitempty"`
	Resume  *Resume  `json:"resume,omitempty"`
}

// NewResume returns a resume input.
func NewResume(token string, approved bool) *Input {
	return &Input{Resume: &Resume{Token: token, Approved: approved}}
}

var (
	// ErrNoPendingRequest is returned when resuming a session that holds no paused request.
	ErrNoPendingRequest = errors.New("pipeline: no pending request")

	// ErrTokenMismatch is returned when a resume token does not match the paused request.
	ErrTokenMismatch = errors.New("pipeline: confirmation token mismatch")
)
