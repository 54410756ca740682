package httpapi

import (
	"encoding/json"
	"net/http"

	"yumex/internal/dnfdaemon"
	"yumex/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// statusFor maps client errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case dnfdaemon.IsCommandInProgress(err):
		return http.StatusConflict
	case dnfdaemon.IsAccessDenied(err):
		return http.StatusForbidden
	case dnfdaemon.IsLocked(err):
		return http.StatusLocked
	case dnfdaemon.IsTimeout(err):
		return http.StatusGatewayTimeout
	}
	if he, ok := err.(HTTPError); ok {
		return he.StatusCode()
	}
	return http.StatusInternalServerError
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}
