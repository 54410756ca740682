package dnfdaemon

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"
)

// Kind classifies errors raised by the client.
type Kind int

const (
	KindDaemon Kind = iota
	KindAccessDenied
	KindLocked
	KindTransaction
	KindNotImplemented
	KindTimeout
	KindCommandInProgress
	KindIllegalAttribute
	KindEntityNotFound
	KindDependency
	KindGPGRejected
)

var kindNames = [...]string{
	KindDaemon:            "daemon",
	KindAccessDenied:      "access_denied",
	KindLocked:            "locked",
	KindTransaction:       "transaction",
	KindNotImplemented:    "not_implemented",
	KindTimeout:           "timeout",
	KindCommandInProgress: "command_in_progress",
	KindIllegalAttribute:  "illegal_attribute",
	KindEntityNotFound:    "entity_not_found",
	KindDependency:        "dependency",
	KindGPGRejected:       "gpg_rejected",
}

func (k Kind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Fatal reports whether errors of this kind end the session for the
// caller. Transaction level kinds are recovered by the coordinator.
func (k Kind) Fatal() bool {
	switch k {
	case KindDaemon, KindAccessDenied, KindLocked:
		return true
	}
	return false
}

// Error is the single error type surfaced by the client.
type Error struct {
	Kind Kind
	// Op is the command or daemon method that failed.
	Op string
	// Message is the daemon's own text, when it supplied one.
	Message string
	// Messages carries multi-line transaction reports verbatim.
	Messages []string
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	switch {
	case e.Message != "":
		b.WriteString(": ")
		b.WriteString(e.Message)
	case len(e.Messages) > 0:
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Messages, "; "))
	case e.Err != nil:
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind, so sentinels such as
// ErrTimeout work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrAccessDenied      = &Error{Kind: KindAccessDenied}
	ErrLocked            = &Error{Kind: KindLocked}
	ErrTimeout           = &Error{Kind: KindTimeout}
	ErrCommandInProgress = &Error{Kind: KindCommandInProgress}
	ErrIllegalAttribute  = &Error{Kind: KindIllegalAttribute}
	ErrEntityNotFound    = &Error{Kind: KindEntityNotFound}
)

// ErrSessionClosed is returned when a call needs a session that is not open.
var ErrSessionClosed = errors.New("dnfdaemon: session not open")

// KindOf returns the kind of err, or KindDaemon when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindDaemon
}

func isKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}

func IsAccessDenied(err error) bool      { return isKind(err, KindAccessDenied) }
func IsLocked(err error) bool            { return isKind(err, KindLocked) }
func IsTimeout(err error) bool           { return isKind(err, KindTimeout) }
func IsCommandInProgress(err error) bool { return isKind(err, KindCommandInProgress) }
func IsIllegalAttribute(err error) bool  { return isKind(err, KindIllegalAttribute) }
func IsEntityNotFound(err error) bool    { return isKind(err, KindEntityNotFound) }
func IsDependency(err error) bool        { return isKind(err, KindDependency) }
func IsGPGRejected(err error) bool       { return isKind(err, KindGPGRejected) }

// IsTransaction reports a daemon-side transaction failure. The daemon
// rejecting an unsupported operation counts as one.
func IsTransaction(err error) bool {
	return isKind(err, KindTransaction) || isKind(err, KindNotImplemented)
}

// ErrorSink receives every fatal error for display.
type ErrorSink interface {
	ReportError(err error)
}

type noopSink struct{}

func (noopSink) ReportError(error) {}

var (
	accessDeniedNames = []string{
		"org.freedesktop.DBus.Error.AccessDenied",
		"org.freedesktop.DBus.Error.AuthFailed",
		"org.freedesktop.DBus.Error.InteractiveAuthorizationRequired",
		"org.freedesktop.PolicyKit1.Error.NotAuthorized",
	}
	notImplementedNames = []string{
		"org.freedesktop.DBus.Error.UnknownMethod",
		"org.freedesktop.DBus.Error.UnknownInterface",
		"org.freedesktop.DBus.Error.UnknownObject",
		"org.freedesktop.DBus.Error.NotSupported",
	}
)

// classify converts a transport or daemon error into an *Error.
func classify(op string, err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Op: op, Err: err}
	}
	var derr dbus.Error
	var dptr *dbus.Error
	switch {
	case errors.As(err, &derr):
	case errors.As(err, &dptr):
		derr = *dptr
	default:
		return &Error{Kind: KindDaemon, Op: op, Message: err.Error(), Err: err}
	}
	msg := dbusMessage(derr)
	out := &Error{Kind: KindDaemon, Op: op, Message: msg, Err: err}
	lower := strings.ToLower(msg)
	switch {
	case contains(accessDeniedNames, derr.Name):
		out.Kind = KindAccessDenied
	case contains(notImplementedNames, derr.Name):
		out.Kind = KindNotImplemented
	case strings.Contains(lower, "failed to obtain lock"),
		strings.Contains(lower, "already locked"),
		strings.HasSuffix(derr.Name, ".Locked"):
		out.Kind = KindLocked
	case derr.Name == "org.freedesktop.DBus.Error.NoReply",
		derr.Name == "org.freedesktop.DBus.Error.Timeout":
		out.Kind = KindTimeout
	}
	return out
}

func dbusMessage(e dbus.Error) string {
	if len(e.Body) > 0 {
		if s, ok := e.Body[0].(string); ok {
			return s
		}
	}
	return e.Name
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
