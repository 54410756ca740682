package e2e

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"golang.org/x/sys/unix"

	"yumex/internal/dnfdaemon"
)

const sessionPath = dbus.ObjectPath("/org/rpm/dnf/v0/e2e/1")

type method func(args []any) ([]any, error)

// scriptedDaemon stands in for the system bus connection to the package
// daemon. Methods answer from a script; signals are pushed by tests.
type scriptedDaemon struct {
	t *testing.T

	mu      sync.Mutex
	methods map[string]method
	counts  map[string]int
	sigs    chan<- *dbus.Signal
}

func newScriptedDaemon(t *testing.T) *scriptedDaemon {
	d := &scriptedDaemon{t: t, methods: map[string]method{}, counts: map[string]int{}}
	d.on(dnfdaemon.IfaceSessionManager+".open_session", func([]any) ([]any, error) { return []any{sessionPath}, nil })
	d.on(dnfdaemon.IfaceSessionManager+".close_session", func([]any) ([]any, error) { return []any{true}, nil })
	d.on(dnfdaemon.IfaceBase+".reset", func([]any) ([]any, error) { return []any{true, ""}, nil })
	return d
}

func (d *scriptedDaemon) on(name string, m method) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.methods[name] = m
}

func (d *scriptedDaemon) count(name string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.counts[name]
}

func (d *scriptedDaemon) call(name string, args []any) ([]any, error) {
	d.mu.Lock()
	d.counts[name]++
	m := d.methods[name]
	d.mu.Unlock()
	if m == nil {
		return nil, dbus.Error{Name: "org.freedesktop.DBus.Error.UnknownMethod", Body: []any{name}}
	}
	return m(args)
}

func (d *scriptedDaemon) Call(_ context.Context, _ dbus.ObjectPath, name string, args ...any) ([]any, error) {
	return d.call(name, args)
}

func (d *scriptedDaemon) Go(_ context.Context, _ dbus.ObjectPath, name string, args ...any) <-chan dnfdaemon.Reply {
	out := make(chan dnfdaemon.Reply, 1)
	go func() {
		body, err := d.call(name, args)
		out <- dnfdaemon.Reply{Body: body, Err: err}
	}()
	return out
}

func (d *scriptedDaemon) AddMatchSignal(dbus.ObjectPath, string, string) error    { return nil }
func (d *scriptedDaemon) RemoveMatchSignal(dbus.ObjectPath, string, string) error { return nil }
func (d *scriptedDaemon) Close() error                                            { return nil }

func (d *scriptedDaemon) Signal(ch chan<- *dbus.Signal) {
	d.mu.Lock()
	d.sigs = ch
	d.mu.Unlock()
}

func (d *scriptedDaemon) RemoveSignal(chan<- *dbus.Signal) {
	d.mu.Lock()
	d.sigs = nil
	d.mu.Unlock()
}

func (d *scriptedDaemon) emit(iface, member string, args ...any) {
	d.mu.Lock()
	ch := d.sigs
	d.mu.Unlock()
	if ch == nil {
		d.t.Errorf("signal %s emitted without a subscriber", member)
		return
	}
	ch <- &dbus.Signal{Name: iface + "." + member, Path: sessionPath, Body: append([]any{sessionPath}, args...)}
}

// stream writes JSON objects back to back into the pipe passed as the
// last argument, the way list_fd does.
func (d *scriptedDaemon) stream(args []any, objects ...string) {
	fd, ok := args[len(args)-1].(dbus.UnixFD)
	if !ok {
		d.t.Errorf("no fd argument: %#v", args)
		return
	}
	dup, err := unix.Dup(int(fd))
	if err != nil {
		d.t.Errorf("dup: %v", err)
		return
	}
	w := os.NewFile(uintptr(dup), "list_fd")
	go func() {
		defer w.Close()
		_, _ = w.WriteString(strings.Join(objects, ""))
	}()
}

func pkg(name, version, repo string) map[string]dbus.Variant {
	return map[string]dbus.Variant{
		"name":         dbus.MakeVariant(name),
		"epoch":        dbus.MakeVariant("0"),
		"version":      dbus.MakeVariant(version),
		"release":      dbus.MakeVariant("1.fc40"),
		"arch":         dbus.MakeVariant("x86_64"),
		"repo_id":      dbus.MakeVariant(repo),
		"install_size": dbus.MakeVariant(int64(4096)),
	}
}

func resolved(action, name, version, repo string) []any {
	return []any{"Package", action, "User", map[string]dbus.Variant{}, pkg(name, version, repo)}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}
