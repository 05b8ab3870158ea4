// Package clock exposes an overridable time source so timestamps written to
// session state and mailbox filenames are deterministic under test.
package clock

import "time"

// NowFunc returns current time. Override in tests for determinism.
var NowFunc = time.Now

// Now returns the current time in UTC.
func Now() time.Time { return NowFunc().UTC() }

// Timestamp formats t as a compact UTC timestamp suitable for file names.
func Timestamp(t time.Time) string { return t.UTC().Format("20060102T150405.000000Z") }
