// Package policy classifies lifecycle requests. It decides whether an action
// is permitted at all, whether it is high risk and therefore needs a human
// decision, and which applications must never be granted.
package policy
