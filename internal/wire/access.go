package wire

import (
	"fmt"
	"math"
	"strconv"
)

// String returns v as a string. Numbers are formatted, nil is "".
func String(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case fmt.Stringer:
		return x.String()
	}
	if n, ok := Int64(v); ok {
		return strconv.FormatInt(n, 10)
	}
	return fmt.Sprint(v)
}

// Int64 returns v as an int64 for any integer width, or for a float64
// holding an integral value (JSON numbers).
func Int64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint:
		return int64(x), true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		if x > math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	case float64:
		if x == math.Trunc(x) {
			return int64(x), true
		}
	case string:
		n, err := strconv.ParseInt(x, 10, 64)
		return n, err == nil
	}
	return 0, false
}

// Bool returns v as a bool.
func Bool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

// Strings returns v as a []string when it is a sequence of strings.
func Strings(v any) []string {
	switch x := Native(v).(type) {
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			out = append(out, String(e))
		}
		return out
	case string:
		return []string{x}
	}
	return nil
}

// Map returns v as a map[string]any, or nil.
func Map(v any) map[string]any {
	m, _ := Native(v).(map[string]any)
	return m
}

// Slice returns v as a []any, or nil.
func Slice(v any) []any {
	s, _ := Native(v).([]any)
	return s
}
