// Package idgen wraps the UUID generator so that it can be stubbed in tests.
// Callers treat identifiers as opaque strings; only the session prefix is
// meaningful to humans reading mailbox files and logs.
package idgen
