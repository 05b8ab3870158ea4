package state

import (
	"encoding/json"
	"fmt"
	"time"
)

// Coerce returns a copy of values restricted to flat scalar types: string,
// bool, float64, int64 and nil. Times become RFC3339 strings, other numeric
// kinds are widened, everything else is replaced by its string form.
func Coerce(values map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(values))
	for k, v := range values {
		out[k] = coerceValue(v)
	}
	return out
}

func coerceValue(v interface{}) interface{} {
	switch actual := v.(type) {
	case nil:
		return nil
	case string, bool, float64, int64:
		return actual
	case int:
		return int64(actual)
	case int8:
		return int64(actual)
	case int16:
		return int64(actual)
	case int32:
		return int64(actual)
	case uint:
		return int64(actual)
	case uint8:
		return int64(actual)
	case uint16:
		return int64(actual)
	case uint32:
		return int64(actual)
	case uint64:
		return float64(actual)
	case float32:
		return float64(actual)
	case json.Number:
		return actual.String()
	case time.Time:
		return actual.UTC().Format(time.RFC3339Nano)
	case *time.Time:
		if actual == nil {
			return nil
		}
		return actual.UTC().Format(time.RFC3339Nano)
	case []byte:
		return string(actual)
	case fmt.Stringer:
		return actual.String()
	case error:
		return actual.Error()
	}
	return fmt.Sprint(v)
}

// Marshal encodes coerced values as JSON.
func Marshal(values map[string]interface{}) ([]byte, error) {
	return json.Marshal(Coerce(values))
}

// Unmarshal decodes a JSON record. A nil or empty payload yields an empty map.
func Unmarshal(data []byte) (map[string]interface{}, error) {
	out := map[string]interface{}{}
	if len(data) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]interface{}{}, err
	}
	if out == nil {
		out = map[string]interface{}{}
	}
	return out, nil
}
