package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSession_Seed(t *testing.T) {
	s := New("s1", WithState(map[string]interface{}{"A": "live"}))
	added := s.Seed(map[string]interface{}{"A": "stale", "B": true})
	assert.Equal(t, 1, added)
	value, _ := s.GetString("A")
	assert.Equal(t, "live", value)
	flag, ok := s.GetBool("B")
	assert.True(t, ok)
	assert.True(t, flag)
}

func TestSession_Listeners(t *testing.T) {
	var keys []string
	s := New("s1", WithStateListeners(func(_ *Session, key string, _, _ interface{}) {
		keys = append(keys, key)
	}))
	s.Set("X", 1)
	s.Delete("X")
	s.Delete("missing")
	assert.Equal(t, []string{"X", "X"}, keys)
}

func TestSession_Snapshot(t *testing.T) {
	s := New("s1")
	s.Set("K", "v")
	snapshot := s.Snapshot()
	snapshot["K"] = "changed"
	value, _ := s.GetString("K")
	assert.Equal(t, "v", value)

	clone := s.Clone()
	clone.Set("K", "clone")
	value, _ = s.GetString("K")
	assert.Equal(t, "v", value)
	assert.Equal(t, 1, s.Len())
}

func TestSession_GetBool(t *testing.T) {
	type testCase struct {
		name     string
		value    interface{}
		set      bool
		expected bool
		ok       bool
	}
	tests := []testCase{
		{name: "true", value: true, set: true, expected: true, ok: true},
		{name: "false", value: false, set: true, expected: false, ok: true},
		{name: "missing", set: false, expected: false, ok: false},
		{name: "nil", value: nil, set: true, expected: false, ok: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := New("s1")
			if tc.set {
				s.Set("F", tc.value)
			}
			actual, ok := s.GetBool("F")
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.expected, actual)
		})
	}
}
