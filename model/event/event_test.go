package event

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestText(t *testing.T) {
	type testCase struct {
		name     string
		event    Event
		kind     Kind
		expected string
	}
	tests := []testCase{
		{name: "content", event: NewContent("supervisor", "done"), kind: KindContent, expected: "done"},
		{name: "confirmation hint", event: &ConfirmationRequest{Token: "tok-1", Hint: "approve?"}, kind: KindConfirmation, expected: "approve?"},
		{name: "confirmation default", event: &ConfirmationRequest{Token: "tok-1", Subject: "Jane Doe", Action: "deletion"}, kind: KindConfirmation, expected: "confirmation requested: deletion Jane Doe"},
		{name: "tool message", event: &ToolResult{Tool: "directory.delete", Message: "deleted"}, kind: KindToolResult, expected: "directory.delete: deleted"},
		{name: "tool payload", event: &ToolResult{Tool: "policy", Payload: map[string]interface{}{"ok": true}}, kind: KindToolResult, expected: `policy: {"ok":true}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.kind, tc.event.Kind())
			assert.Equal(t, tc.expected, Text(tc.event))
		})
	}
}

func TestCollector(t *testing.T) {
	collector := &Collector{}
	var sink Sink = collector
	assert.NoError(t, sink.Send(context.Background(), NewContent("a", "one")))
	assert.NoError(t, SinkFunc(collector.Send).Send(context.Background(), NewContent("b", "two")))
	assert.Equal(t, []string{"one", "two"}, collector.Texts())
	assert.Len(t, collector.Events(), 2)
}
