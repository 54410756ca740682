package dnfdaemon

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"

	"yumex/internal/clock"
)

const testSession = dbus.ObjectPath("/org/rpm/dnf/v0/session/1")

type handler func(ctx context.Context, args []any) ([]any, error)

type fakeCall struct {
	path   dbus.ObjectPath
	method string
	args   []any
}

// fakeBus answers method calls from registered handlers and lets tests
// inject signals.
type fakeBus struct {
	mu       sync.Mutex
	handlers map[string]handler
	calls    []fakeCall
	matches  map[string]bool
	sigs     chan<- *dbus.Signal
	// wedged makes Go ignore context cancellation for blocking handlers.
	wedged bool
}

func newFakeBus() *fakeBus {
	b := &fakeBus{handlers: map[string]handler{}, matches: map[string]bool{}}
	b.on(IfaceSessionManager+".open_session", func(context.Context, []any) ([]any, error) {
		return []any{testSession}, nil
	})
	b.on(IfaceSessionManager+".close_session", func(context.Context, []any) ([]any, error) {
		return []any{true}, nil
	})
	return b
}

func (b *fakeBus) on(method string, h handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[method] = h
}

func (b *fakeBus) invoke(ctx context.Context, path dbus.ObjectPath, method string, args []any) ([]any, error) {
	b.mu.Lock()
	b.calls = append(b.calls, fakeCall{path: path, method: method, args: args})
	h := b.handlers[method]
	b.mu.Unlock()
	if h == nil {
		return nil, dbus.Error{Name: "org.freedesktop.DBus.Error.UnknownMethod", Body: []any{"no such method " + method}}
	}
	return h(ctx, args)
}

func (b *fakeBus) Call(ctx context.Context, path dbus.ObjectPath, method string, args ...any) ([]any, error) {
	return b.invoke(ctx, path, method, args)
}

func (b *fakeBus) Go(ctx context.Context, path dbus.ObjectPath, method string, args ...any) <-chan Reply {
	out := make(chan Reply, 1)
	hctx := ctx
	b.mu.Lock()
	if b.wedged {
		hctx = context.Background()
	}
	b.mu.Unlock()
	go func() {
		body, err := b.invoke(hctx, path, method, args)
		out <- Reply{Body: body, Err: err}
	}()
	return out
}

func (b *fakeBus) AddMatchSignal(path dbus.ObjectPath, iface, member string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.matches[iface+"."+member] = true
	return nil
}

func (b *fakeBus) RemoveMatchSignal(path dbus.ObjectPath, iface, member string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.matches, iface+"."+member)
	return nil
}

func (b *fakeBus) Signal(ch chan<- *dbus.Signal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sigs = ch
}

func (b *fakeBus) RemoveSignal(ch chan<- *dbus.Signal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sigs = nil
}

func (b *fakeBus) Close() error { return nil }

func (b *fakeBus) emit(session dbus.ObjectPath, iface, member string, args ...any) {
	b.mu.Lock()
	ch := b.sigs
	b.mu.Unlock()
	ch <- &dbus.Signal{Name: iface + "." + member, Path: session, Body: append([]any{session}, args...)}
}

func (b *fakeBus) methodCalls(method string) []fakeCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []fakeCall
	for _, c := range b.calls {
		if c.method == method {
			out = append(out, c)
		}
	}
	return out
}

type recordingSink struct {
	mu   sync.Mutex
	errs []error
}

func (s *recordingSink) ReportError(err error) {
	s.mu.Lock()
	s.errs = append(s.errs, err)
	s.mu.Unlock()
}

func (s *recordingSink) all() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.errs...)
}

func newTestClient(t *testing.T, bus *fakeBus, cfg ClientConfig) *Client {
	t.Helper()
	c, err := NewClient(context.Background(), bus, cfg)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c
}

func newFakeClock() *clock.FakeClock {
	return clock.Fake(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
}

// waitForEvents polls until the queue holds at least n events.
func waitForEvents(t *testing.T, q *Queue, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for q.Len() < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d events, have %d", n, q.Len())
		}
		time.Sleep(time.Millisecond)
	}
}
