package wire

import (
	"reflect"

	"github.com/godbus/dbus/v5"
)

// Native converts a bus value into its plain Go equivalent.
func Native(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string, bool, float64,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return x
	case dbus.Variant:
		return Native(x.Value())
	case dbus.ObjectPath:
		return string(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = Native(e)
		}
		return out
	case map[string]dbus.Variant:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = Native(e.Value())
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = Native(e)
		}
		return out
	}
	return reflected(v)
}

// NativeAll converts every element of a reply body.
func NativeAll(body []any) []any {
	out := make([]any, len(body))
	for i, v := range body {
		out[i] = Native(v)
	}
	return out
}

// reflected handles typed containers ([]string, map[string]int32,
// anonymous structs) that the fast path does not name.
func reflected(v any) any {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			// byte arrays ("ay") stay []byte
			return v
		}
		fallthrough
	case reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = Native(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			out := make(map[string]any, rv.Len())
			iter := rv.MapRange()
			for iter.Next() {
				out[iter.Key().String()] = Native(iter.Value().Interface())
			}
			return out
		}
		out := make(map[any]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[Native(iter.Key().Interface())] = Native(iter.Value().Interface())
		}
		return out
	case reflect.Struct:
		if _, ok := v.(dbus.Signature); ok {
			return v
		}
		out := make([]any, 0, rv.NumField())
		for i := 0; i < rv.NumField(); i++ {
			if !rv.Type().Field(i).IsExported() {
				continue
			}
			out = append(out, Native(rv.Field(i).Interface()))
		}
		return out
	}
	return v
}
