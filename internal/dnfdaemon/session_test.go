package dnfdaemon

import (
	"context"
	"errors"
	"testing"

	"github.com/godbus/dbus/v5"
)

func TestNewClientOpensSessionAndSubscribes(t *testing.T) {
	bus := newFakeBus()
	c := newTestClient(t, bus, ClientConfig{})

	st := c.Status()
	if !st.SessionOpen || st.SessionPath != string(testSession) {
		t.Fatalf("unexpected status %+v", st)
	}
	if len(bus.matches) != len(subscribedSignals) {
		t.Fatalf("expected %d signal matches, got %d", len(subscribedSignals), len(bus.matches))
	}
	for _, iface := range sessionInterfaces {
		i, err := c.session.Bound(iface)
		if err != nil {
			t.Fatalf("Bound(%s): %v", iface, err)
		}
		if i.path != testSession || i.Name() != iface {
			t.Fatalf("bad binding %+v", i)
		}
	}
}

func TestOpenSessionErrorKinds(t *testing.T) {
	cases := []struct {
		name string
		err  error
		is   func(error) bool
		kind Kind
	}{
		{"access denied", dbus.Error{Name: "org.freedesktop.DBus.Error.AccessDenied", Body: []any{"not authorized"}}, IsAccessDenied, KindAccessDenied},
		{"locked", dbus.Error{Name: "org.rpm.dnf.v0.Error", Body: []any{"Failed to obtain lock on /run/dnf"}}, IsLocked, KindLocked},
		{"generic", dbus.Error{Name: "org.rpm.dnf.v0.Error", Body: []any{"boom"}}, func(err error) bool { return KindOf(err) == KindDaemon }, KindDaemon},
		{"plain", errors.New("connection reset"), func(err error) bool { return KindOf(err) == KindDaemon }, KindDaemon},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bus := newFakeBus()
			bus.on(IfaceSessionManager+".open_session", func(context.Context, []any) ([]any, error) {
				return nil, tc.err
			})
			sink := &recordingSink{}
			_, err := NewClient(context.Background(), bus, ClientConfig{Sink: sink})
			if err == nil || !tc.is(err) {
				t.Fatalf("expected %s error, got %v", tc.kind, err)
			}
			if got := sink.all(); len(got) != 1 || KindOf(got[0]) != tc.kind {
				t.Fatalf("sink got %v", got)
			}
			if !tc.kind.Fatal() {
				t.Fatalf("session errors are fatal")
			}
		})
	}
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	bus := newFakeBus()
	c := newTestClient(t, bus, ClientConfig{})
	if err := c.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := c.Close(context.Background()); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := c.session.Close(context.Background()); err != nil {
		t.Fatalf("session Close on closed session: %v", err)
	}
	if n := len(bus.methodCalls(IfaceSessionManager + ".close_session")); n != 1 {
		t.Fatalf("close_session called %d times", n)
	}
	if len(bus.matches) != 0 {
		t.Fatalf("signal matches left behind: %v", bus.matches)
	}
	if _, err := c.session.Bound(IfaceRpm); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
}

func TestReloadOpensFreshSession(t *testing.T) {
	bus := newFakeBus()
	n := 0
	bus.on(IfaceSessionManager+".open_session", func(context.Context, []any) ([]any, error) {
		n++
		if n == 1 {
			return []any{testSession}, nil
		}
		return []any{dbus.ObjectPath("/org/rpm/dnf/v0/session/2")}, nil
	})
	c := newTestClient(t, bus, ClientConfig{})
	if err := c.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if got := c.session.Path(); got != "/org/rpm/dnf/v0/session/2" {
		t.Fatalf("session path after reload = %s", got)
	}
	closes := bus.methodCalls(IfaceSessionManager + ".close_session")
	if len(closes) != 1 || closes[0].args[0] != testSession {
		t.Fatalf("old session not closed: %+v", closes)
	}
}
