package types

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Object path of the open daemon session; empty when closed.
	SessionPath string `json:"session_path"`
	SessionOpen bool   `json:"session_open"`
	// Command currently in flight, if any.
	InFlight string `json:"in_flight,omitempty"`
	// Events waiting in the outbound queue.
	QueueLen int `json:"queue_len"`
	// Whether the transaction inactivity watchdog is armed.
	WatchdogArmed bool `json:"watchdog_armed"`
	// State of the transaction coordinator, when one is attached.
	TransactionState string `json:"transaction_state,omitempty"`
	CallsTotal       uint64 `json:"calls_total"`
	LastError        string `json:"last_error,omitempty"`
	UptimeSeconds    int64  `json:"uptime_seconds"`
	ServerTimeUnix   int64  `json:"server_time_unix"`
}

// EventView is the JSON projection of one outbound event.
type EventView struct {
	Kind      string `json:"kind"`
	Name      string `json:"name"`
	CallID    string `json:"call_id,omitempty"`
	Payload   any    `json:"payload,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
	TimeUnix  int64  `json:"time_unix"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}
