package payload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
)

// object keeps keys in first-seen order; a repeated key overwrites the value in place
type object struct {
	keys   []string
	values map[string]interface{}
}

/* Normalize re-serializes a JSON value into the form senders sign
 * Integer-like keys come first in ascending order and the rest keep first-seen order
 * Numbers are printed as the shortest form of the nearest double
 */
func Normalize(data []byte) (json.RawMessage, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return emptyBody, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	value, err := decodeValue(dec)
	if err != nil {
		return nil, fmt.Errorf("normalizing payload: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("normalizing payload: trailing data after JSON value")
	}

	var buf bytes.Buffer
	if err := encodeValue(&buf, value); err != nil {
		return nil, fmt.Errorf("normalizing payload: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeValue(dec *json.Decoder) (interface{}, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}

	switch delim {
	case '{':
		obj := &object{values: map[string]interface{}{}}
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, ok := keyTok.(string)
			if !ok {
				return nil, fmt.Errorf("object key %v is not a string", keyTok)
			}

			v, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			if _, seen := obj.values[key]; !seen {
				obj.keys = append(obj.keys, key)
			}
			obj.values[key] = v
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		obj.sortIndexKeys()
		return obj, nil

	case '[':
		arr := []interface{}{}
		for dec.More() {
			v, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return arr, nil
	}

	return nil, fmt.Errorf("unexpected delimiter %v", delim)
}

// sortIndexKeys moves array-index keys to the front in numeric order
func (o *object) sortIndexKeys() {
	sort.SliceStable(o.keys, func(i, j int) bool {
		a, aIdx := arrayIndex(o.keys[i])
		b, bIdx := arrayIndex(o.keys[j])
		if aIdx && bIdx {
			return a < b
		}
		return aIdx && !bIdx
	})
}

// arrayIndex reports whether key is the canonical form of an integer in [0, 2^32-2]
func arrayIndex(key string) (uint64, bool) {
	n, err := strconv.ParseUint(key, 10, 32)
	if err != nil || n == math.MaxUint32 {
		return 0, false
	}
	return n, strconv.FormatUint(n, 10) == key
}

func encodeValue(buf *bytes.Buffer, v interface{}) error {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		buf.WriteString(strconv.FormatBool(t))
	case string:
		writeString(buf, t)
	case json.Number:
		return writeNumber(buf, t)
	case []interface{}:
		buf.WriteByte('[')
		for i, item := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeValue(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case *object:
		buf.WriteByte('{')
		for i, key := range t.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeString(buf, key)
			buf.WriteByte(':')
			if err := encodeValue(buf, t.values[key]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unsupported value %T", v)
	}
	return nil
}

// writeNumber prints the double nearest to n; overflow prints null and -0 prints 0
func writeNumber(buf *bytes.Buffer, n json.Number) error {
	f, err := strconv.ParseFloat(string(n), 64)
	if math.IsInf(f, 0) {
		buf.WriteString("null")
		return nil
	}
	if err != nil {
		return fmt.Errorf("parsing number %q: %w", n, err)
	}
	if f == 0 {
		buf.WriteByte('0')
		return nil
	}

	out, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("formatting number %q: %w", n, err)
	}
	buf.Write(out)
	return nil
}

// writeString escapes quotes, backslashes and control characters only
func writeString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(buf, `\u%04x`, r)
				continue
			}
			buf.WriteRune(r)
		}
	}
	buf.WriteByte('"')
}
