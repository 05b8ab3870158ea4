package dao

// Parameter narrows List results. The store decides which names it honours.
type Parameter struct {
	Name  string
	Value interface{}
}

// NewParameter creates a parameter; several values become a []string.
func NewParameter(name string, values ...string) *Parameter {
	if len(values) == 1 {
		return &Parameter{Name: name, Value: values[0]}
	}
	return &Parameter{Name: name, Value: values}
}
