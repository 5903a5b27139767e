package webhook

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

/* ReceivedWebhook is one inbound delivery, captured verbatim
 * Uses value semantics as it represents data, not behavior
 */
type ReceivedWebhook struct {
	Headers Headers         `json:"headers"`
	Body    json.RawMessage `json:"body"`
}

/* Headers maps lower-cased header names to their values
 * A single value is encoded as a JSON string, several values as a JSON array
 */
type Headers map[string][]string

// HeadersFromRequest captures the request headers, including the host header
func HeadersFromRequest(r *http.Request) Headers {
	headers := make(Headers, len(r.Header)+1)
	if r.Host != "" {
		headers["host"] = []string{r.Host}
	}
	for key, values := range r.Header {
		name := strings.ToLower(key)
		headers[name] = append(headers[name], values...)
	}
	return headers
}

// Get returns the first value of the named header, or "" when absent
func (h Headers) Get(name string) string {
	values := h[strings.ToLower(name)]
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// Set replaces the named header with a single value
func (h Headers) Set(name, value string) {
	h[strings.ToLower(name)] = []string{value}
}

// Names returns the header names in sorted order
func (h Headers) Names() []string {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MarshalJSON encodes single-valued headers as strings and the rest as arrays
func (h Headers) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(h))
	for name, values := range h {
		if len(values) == 1 {
			out[name] = values[0]
			continue
		}
		out[name] = values
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts both string and array header values
func (h *Headers) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("unmarshaling headers: %w", err)
	}

	headers := make(Headers, len(raw))
	for name, value := range raw {
		var single string
		if err := json.Unmarshal(value, &single); err == nil {
			headers[strings.ToLower(name)] = []string{single}
			continue
		}
		var multi []string
		if err := json.Unmarshal(value, &multi); err != nil {
			return fmt.Errorf("unmarshaling header %s: %w", name, err)
		}
		headers[strings.ToLower(name)] = multi
	}
	*h = headers
	return nil
}
