package pipeline

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const requestSchema = `{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "goal": {"type": "string"},
    "action": {"type": "string", "pattern": "(?i)^\\s*(lookup|create|modify|delete)?\\s*$"},
    "user": {"type": "string"},
    "displayName": {"type": "string"},
    "role": {"type": "string"},
    "groups": {"type": "array", "items": {"type": "string"}},
    "apps": {"type": "array", "items": {"type": "string"}},
    "location": {"type": "string"},
    "manager": {"type": "string"}
  }
}`

var compiledRequestSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader([]byte(requestSchema)))
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	if err = compiler.AddResource("request.json", doc); err != nil {
		return nil, err
	}
	return compiler.Compile("request.json")
})

// validateRequestJSON checks a JSON request document before it is decoded.
func validateRequestJSON(data []byte) error {
	schema, err := compiledRequestSchema()
	if err != nil {
		return fmt.Errorf("request schema: %w", err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return err
	}
	return schema.Validate(doc)
}
