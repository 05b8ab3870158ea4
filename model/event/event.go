// Package event defines the events a task pipeline emits while handling one
// conversational turn. Events form a closed set: Content, ConfirmationRequest
// and ToolResult; consumers handle them with an exhaustive type switch.
package event

import "encoding/json"

// Kind identifies the event variant.
type Kind string

const (
	KindContent      Kind = "content"
	KindConfirmation Kind = "confirmation"
	KindToolResult   Kind = "toolResult"
)

// Event is implemented only by the variants in this package.
type Event interface {
	Kind() Kind
	event()
}

// Content carries text for the caller.
type Content struct {
	Author string `json:"author,omitempty"`
	Text   string `json:"text"`
}

// ConfirmationRequest asks the orchestrator to suspend the pipeline until a
// human decision is known. Token is echoed back on resume.
type ConfirmationRequest struct {
	Token   string `json:"token"`
	Subject string `json:"subject,omitempty"`
	Action  string `json:"action,omitempty"`
	Hint    string `json:"hint,omitempty"`
}

// ToolResult reports the outcome of one capability call.
type ToolResult struct {
	Tool    string                 `json:"tool"`
	Step    string                 `json:"step,omitempty"`
	OK      bool                   `json:"ok"`
	Code    string                 `json:"code,omitempty"`
	Message string                 `json:"message,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

func (*Content) Kind() Kind             { return KindContent }
func (*ConfirmationRequest) Kind() Kind { return KindConfirmation }
func (*ToolResult) Kind() Kind          { return KindToolResult }

func (*Content) event()             {}
func (*ConfirmationRequest) event() {}
func (*ToolResult) event()          {}

// NewContent returns a content event.
func NewContent(author, text string) *Content {
	return &Content{Author: author, Text: text}
}

// Text returns the human readable rendering of any event.
func Text(e Event) string {
	switch actual := e.(type) {
	case *Content:
		return actual.Text
	case *ConfirmationRequest:
		if actual.Hint != "" {
			return actual.Hint
		}
		return "confirmation requested: " + actual.Action + " " + actual.Subject
	case *ToolResult:
		if actual.Message != "" {
			return actual.Tool + ": " + actual.Message
		}
		data, _ := json.Marshal(actual.Payload)
		return actual.Tool + ": " + string(data)
	}
	return ""
}
