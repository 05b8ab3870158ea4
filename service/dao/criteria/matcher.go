// Package criteria evaluates dao.Parameter filters against record fields.
package criteria

import (
	"strings"

	"github.com/viant/ulma/service/dao"
)

// Fields exposes named string fields of a record for filtering.
type Fields func(name string) (string, bool)

// Match reports whether every parameter matches the record. Parameters naming
// an unknown field are ignored. Comparison is case-insensitive.
func Match(fields Fields, parameters []*dao.Parameter) bool {
	for _, parameter := range parameters {
		if parameter == nil {
			continue
		}
		value, ok := fields(parameter.Name)
		if !ok {
			continue
		}
		switch actual := parameter.Value.(type) {
		case string:
			if !strings.EqualFold(value, actual) {
				return false
			}
		case []string:
			matched := false
			for _, candidate := range actual {
				if strings.EqualFold(value, candidate) {
					matched = true
					break
				}
			}
			if !matched {
				return false
			}
		}
	}
	return true
}
