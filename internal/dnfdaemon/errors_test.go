package dnfdaemon

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/godbus/dbus/v5"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{dbus.Error{Name: "org.freedesktop.DBus.Error.AccessDenied"}, KindAccessDenied},
		{&dbus.Error{Name: "org.freedesktop.PolicyKit1.Error.NotAuthorized"}, KindAccessDenied},
		{dbus.Error{Name: "org.freedesktop.DBus.Error.UnknownMethod", Body: []any{"nope"}}, KindNotImplemented},
		{dbus.Error{Name: "org.rpm.dnf.v0.Error", Body: []any{"Failed to obtain lock"}}, KindLocked},
		{dbus.Error{Name: "org.freedesktop.DBus.Error.NoReply"}, KindTimeout},
		{fmt.Errorf("call: %w", context.DeadlineExceeded), KindTimeout},
		{errors.New("eof"), KindDaemon},
	}
	for _, tc := range cases {
		got := classify("op", tc.err)
		if got.Kind != tc.want {
			t.Fatalf("classify(%v) = %v, want %v", tc.err, got.Kind, tc.want)
		}
		if got.Err == nil {
			t.Fatalf("classified error does not keep the cause %v", tc.err)
		}
	}
}

func TestErrorMatchesByKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &Error{Kind: KindLocked, Op: "open_session", Message: "held by pid 42"})
	if !errors.Is(err, ErrLocked) || errors.Is(err, ErrAccessDenied) {
		t.Fatalf("errors.Is by kind broken")
	}
	if !IsLocked(err) || KindOf(err) != KindLocked {
		t.Fatalf("helpers broken")
	}
	if got := err.Error(); got != "wrapped: open_session: locked: held by pid 42" {
		t.Fatalf("message = %q", got)
	}
	if !IsTransaction(&Error{Kind: KindNotImplemented}) {
		t.Fatalf("not implemented counts as a transaction error")
	}
}
