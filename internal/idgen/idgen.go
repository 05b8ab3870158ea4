package idgen

import (
	"strings"

	"github.com/google/uuid"
)

// DefaultSessionPrefix is prepended to generated session identifiers.
const DefaultSessionPrefix = "ulma"

// NewFunc returns a new globally unique identifier. Override in tests.
var NewFunc = func() string { return uuid.New().String() }

// New returns a new globally unique identifier as string.
func New() string { return NewFunc() }

// NewSessionID returns a short session identifier of the form
// <prefix>_<8 hex chars>. An empty prefix falls back to DefaultSessionPrefix.
func NewSessionID(prefix string) string {
	if prefix == "" {
		prefix = DefaultSessionPrefix
	}
	hex := strings.ReplaceAll(New(), "-", "")
	if len(hex) > 8 {
		hex = hex[:8]
	}
	return prefix + "_" + hex
}
