package payload

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// emptyBody is what a delivery without a body is captured as
var emptyBody = json.RawMessage(`{}`)

/* Parse validates a raw request body and returns it normalized
 * An empty or whitespace-only body is captured as an empty object
 * Anything else must be a JSON object or array
 */
func Parse(data []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return emptyBody, nil
	}

	if !json.Valid(trimmed) {
		return nil, fmt.Errorf("body must be valid JSON")
	}
	if trimmed[0] != '{' && trimmed[0] != '[' {
		return nil, fmt.Errorf("body must be a JSON object or array")
	}

	return Normalize(trimmed)
}

// Indent pretty-prints any JSON-encodable value with four spaces
func Indent(v interface{}) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("marshaling payload: %w", err)
	}
	return data, nil
}

// YAML renders any JSON-encodable value as YAML, keeping JSON field names
func YAML(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshaling payload: %w", err)
	}

	var generic interface{}
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}

	out, err := yaml.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("encoding yaml: %w", err)
	}
	return out, nil
}
