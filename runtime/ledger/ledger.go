// Package ledger records which named pipeline steps completed for a session.
// Flags live in the session state under STATE_<STEP>_OK keys so they are
// persisted together with the rest of the workflow state.
package ledger

import (
	"github.com/viant/ulma/model/state"
	"github.com/viant/ulma/runtime/session"
)

// Mark records the completion flag of a step. Steps outside the known
// vocabulary are ignored and Mark reports false.
func Mark(s *session.Session, step string, done bool) bool {
	if s == nil {
		return false
	}
	key, ok := state.StepKey(step)
	if !ok {
		return false
	}
	s.Set(key, done)
	return true
}

// Done reports whether a single step is marked complete.
func Done(s *session.Session, step string) bool {
	if s == nil {
		return false
	}
	key, ok := state.StepKey(step)
	if !ok {
		return false
	}
	done, _ := s.GetBool(key)
	return done
}

// AllComplete returns true iff every required step is flagged true. An absent
// flag counts as incomplete; an empty requirement set is trivially complete.
func AllComplete(s *session.Session, required ...string) bool {
	if s == nil {
		return len(required) == 0
	}
	for _, step := range required {
		if !Done(s, step) {
			return false
		}
	}
	return true
}

// Pending returns required steps that are not yet complete, in input order.
func Pending(s *session.Session, required ...string) []string {
	var out []string
	for _, step := range required {
		if !Done(s, step) {
			out = append(out, step)
		}
	}
	return out
}

// Reset clears every step flag, used when a new request starts in an
// existing session.
func Reset(s *session.Session) {
	if s == nil {
		return
	}
	for _, key := range state.Steps {
		s.Delete(key)
	}
}
