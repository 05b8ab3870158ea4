// Package state defines the durable, per-session key/value store used to
// persist workflow state between invocations. Put is a full overwrite; callers
// merge before writing. Values are coerced to a flat textual-friendly form so
// every backend can round-trip them.
package state
