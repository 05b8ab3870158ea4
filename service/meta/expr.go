package meta

import "regexp"

var envExpr = regexp.MustCompile(`\$\{env\.([A-Za-z0-9_]*)\}`)

// Expand replaces every ${env.KEY} with lookup(KEY). Malformed expressions
// are kept verbatim.
func Expand(value string, lookup func(key string) string) string {
	if lookup == nil {
		return value
	}
	return envExpr.ReplaceAllStringFunc(value, func(expr string) string {
		return lookup(envExpr.FindStringSubmatch(expr)[1])
	})
}
