package translator

import (
	"encoding/json"
	"strings"
)

// SanitizeJSON removes null values, "undefined" placeholder strings, and
// empty arrays/objects from the payload recursively. Some clients emit
// these and certain upstreams reject them.
func SanitizeJSON(raw []byte) []byte {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return raw
	}
	cleaned, keep := sanitizeValue(v)
	if !keep {
		return []byte("{}")
	}
	out, err := json.Marshal(cleaned)
	if err != nil {
		return raw
	}
	return out
}

func sanitizeValue(v interface{}) (interface{}, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case string:
		trimmed := strings.ToLower(strings.TrimSpace(t))
		if trimmed == "undefined" || trimmed == "[undefined]" {
			return nil, false
		}
		return t, true
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			if cleaned, keep := sanitizeValue(val); keep {
				out[k] = cleaned
			}
		}
		if len(out) == 0 {
			return nil, false
		}
		return out, true
	case []interface{}:
		out := make([]interface{}, 0, len(t))
		for _, val := range t {
			if cleaned, keep := sanitizeValue(val); keep {
				out = append(out, cleaned)
			}
		}
		if len(out) == 0 {
			return nil, false
		}
		return out, true
	default:
		return v, true
	}
}

// FilterFields keeps only the allowed top-level keys of a JSON object.
func FilterFields(raw []byte, allowed []string) []byte {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return raw
	}
	out := make(map[string]json.RawMessage, len(allowed))
	for _, k := range allowed {
		if v, ok := obj[k]; ok {
			out[k] = v
		}
	}
	b, err := json.Marshal(out)
	if err != nil {
		return raw
	}
	return b
}
