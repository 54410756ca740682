// Package wire converts values decoded from the system bus into plain Go
// values.
//
// godbus hands method replies and signal bodies back as a mix of
// dbus.Variant, dbus.ObjectPath, typed slices, typed maps and []any for
// structs. Native walks such a value recursively:
//
//   - scalars (string, bool, every integer width, float64) are returned as is
//   - dbus.Variant is unwrapped and its content converted
//   - dbus.ObjectPath becomes a string
//   - slices, arrays and structs become []any
//   - maps become map[string]any when keys are strings, map[any]any otherwise
//
// Anything else (dbus.Signature, dbus.UnixFD, ...) is passed through
// untouched. The small accessor helpers (String, Int64, Strings, ...)
// tolerate the integer width and float/int differences between values
// that arrived over the bus and values decoded from JSON.
package wire
