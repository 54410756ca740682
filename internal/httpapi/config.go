package httpapi

import "time"

// maxEventBatch caps how many events one /events request may drain.
var maxEventBatch = 256

// SetMaxEventBatch configures the per-request drain limit.
func SetMaxEventBatch(n int) {
	if n <= 0 {
		maxEventBatch = 256
		return
	}
	maxEventBatch = n
}

// maxEventWait bounds the long-poll wait of /events?wait=N.
var maxEventWait = 30 * time.Second

// SetMaxEventWait sets the longest allowed long-poll (0 disables waiting).
func SetMaxEventWait(d time.Duration) {
	if d < 0 {
		d = 0
	}
	maxEventWait = d
}

// CORS configuration (opt-in). If disabled, no CORS middleware is added.
var (
	corsEnabled        bool
	corsAllowedOrigins []string
	corsAllowedMethods []string
	corsAllowedHeaders []string
)

// SetCORSOptions configures CORS behavior for the HTTP server.
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	corsEnabled = enabled
	corsAllowedOrigins = append([]string(nil), origins...)
	corsAllowedMethods = append([]string(nil), methods...)
	corsAllowedHeaders = append([]string(nil), headers...)
}
