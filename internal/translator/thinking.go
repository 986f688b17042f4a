package translator

import (
	"strings"

	"github.com/tidwall/gjson"
)

// IsThinkingEnabled inspects the "thinking" field of an Anthropic-style
// request. Absent means enabled. Accepts booleans, bool-ish strings and
// numbers, and object forms with enabled/enable/type keys; a present
// budget_tokens also counts as enabled.
func IsThinkingEnabled(raw []byte) bool {
	v := gjson.GetBytes(raw, "thinking")
	if !v.Exists() {
		return true
	}
	switch v.Type {
	case gjson.True:
		return true
	case gjson.False:
		return false
	case gjson.Number:
		return v.Int() != 0
	case gjson.String:
		return boolishString(v.String(), true)
	case gjson.JSON:
		if !v.IsObject() {
			return true
		}
		for _, key := range []string{"enabled", "enable"} {
			if f := v.Get(key); f.Exists() {
				switch f.Type {
				case gjson.True:
					return true
				case gjson.False:
					return false
				case gjson.String:
					return boolishString(f.String(), true)
				case gjson.Number:
					return f.Int() != 0
				}
			}
		}
		if t := v.Get("type"); t.Exists() {
			switch strings.ToLower(strings.TrimSpace(t.String())) {
			case "disabled", "off", "false", "none":
				return false
			case "enabled", "on", "true":
				return true
			}
		}
		if v.Get("budget_tokens").Exists() {
			return true
		}
		return true
	}
	return true
}

func boolishString(s string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on", "enabled":
		return true
	case "false", "0", "no", "off", "disabled", "none":
		return false
	}
	return def
}
