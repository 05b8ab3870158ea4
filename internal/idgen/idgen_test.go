package idgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSessionID(t *testing.T) {
	type testCase struct {
		name     string
		prefix   string
		id       string
		expected string
	}
	tests := []testCase{
		{name: "default prefix", id: "0f1e2d3c-4b5a-6978-8796-a5b4c3d2e1f0", expected: "ulma_0f1e2d3c"},
		{name: "custom prefix", prefix: "hr", id: "aabbccdd-0000-0000-0000-000000000000", expected: "hr_aabbccdd"},
		{name: "short source", prefix: "x", id: "abc", expected: "x_abc"},
	}
	original := NewFunc
	defer func() { NewFunc = original }()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			id := tc.id
			NewFunc = func() string { return id }
			assert.Equal(t, tc.expected, NewSessionID(tc.prefix))
		})
	}
}
