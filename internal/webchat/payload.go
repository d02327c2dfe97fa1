package webchat

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Payload — the vendor's "data" object. Loosely typed, any key may be missing.
type Payload map[string]any

func (p Payload) Has(key string) bool {
	v, ok := p[key]
	return ok && v != nil
}

// String returns the value as text. Numbers are formatted without exponent,
// anything that is not a scalar reads as "".
func (p Payload) String(key string) string {
	switch v := p[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

func (p Payload) Truthy(key string) bool {
	switch v := p[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
		return v != ""
	case float64:
		return v != 0
	case int:
		return v != 0
	case int64:
		return v != 0
	case json.Number:
		f, err := v.Float64()
		return err == nil && f != 0
	default:
		return false
	}
}

// firstString returns the first non-empty value among keys.
func (p Payload) firstString(keys ...string) string {
	for _, k := range keys {
		if s := p.String(k); s != "" {
			return s
		}
	}
	return ""
}

// messageData parses the embedded messageData JSON. Malformed data reads as absent.
func (p Payload) messageData() map[string]any {
	raw := p.String("messageData")
	if strings.TrimSpace(raw) == "" {
		if m, ok := p["messageData"].(map[string]any); ok {
			return m
		}
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}
