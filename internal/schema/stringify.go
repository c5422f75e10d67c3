package schema

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Stringify renders a loose value as a field value. Strings pass through,
// numbers keep their literal text, null becomes "", and objects or lists
// become compact JSON.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case *Object, []any:
		b, err := marshalNoEscape(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	default:
		b, err := marshalNoEscape(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

// stringList reads a list (or a lone scalar) as strings, skipping nulls.
func stringList(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if item == nil {
				continue
			}
			out = append(out, Stringify(item))
		}
		return out
	default:
		return []string{Stringify(t)}
	}
}

func asNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(t), "%"), 64)
		return f, err == nil
	}
	return 0, false
}

func asBool(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case json.Number:
		f, err := t.Float64()
		return f != 0, err == nil
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "y", "1":
			return true, true
		case "false", "no", "n", "0":
			return false, true
		}
	}
	return false, false
}

func isScalar(v any) bool {
	switch v.(type) {
	case nil, string, json.Number, bool, float64, int:
		return true
	}
	return false
}
