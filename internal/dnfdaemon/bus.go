package dnfdaemon

import (
	"context"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
)

// Daemon bus name, manager object and interfaces.
const (
	BusName     = "org.rpm.dnf.v0"
	ManagerPath = dbus.ObjectPath("/org/rpm/dnf/v0")

	IfaceSessionManager = "org.rpm.dnf.v0.SessionManager"
	IfaceBase           = "org.rpm.dnf.v0.Base"
	IfaceRepo           = "org.rpm.dnf.v0.rpm.Repo"
	IfaceRepoConf       = "org.rpm.dnf.v0.RepoConf"
	IfaceRpm            = "org.rpm.dnf.v0.rpm.Rpm"
	IfaceGoal           = "org.rpm.dnf.v0.Goal"
	IfaceAdvisory       = "org.rpm.dnf.v0.Advisory"
)

// sessionInterfaces are bound against every opened session.
var sessionInterfaces = []string{
	IfaceBase, IfaceRepo, IfaceRepoConf, IfaceRpm, IfaceGoal, IfaceAdvisory,
}

// Reply is the outcome of an asynchronous bus call.
type Reply struct {
	Body []any
	Err  error
}

// Bus is the slice of a D-Bus connection the client needs. Methods are
// fully qualified ("iface.member"). Go must deliver exactly one Reply,
// including when ctx is cancelled.
type Bus interface {
	Call(ctx context.Context, path dbus.ObjectPath, method string, args ...any) ([]any, error)
	Go(ctx context.Context, path dbus.ObjectPath, method string, args ...any) <-chan Reply
	AddMatchSignal(path dbus.ObjectPath, iface, member string) error
	RemoveMatchSignal(path dbus.ObjectPath, iface, member string) error
	Signal(ch chan<- *dbus.Signal)
	RemoveSignal(ch chan<- *dbus.Signal)
	Close() error
}

// SystemBus is the production Bus backed by the system message bus.
type SystemBus struct {
	conn    *dbus.Conn
	signals *orderedSignals
}

// ConnectSystemBus opens a private connection to the system bus.
func ConnectSystemBus() (*SystemBus, error) {
	signals := newOrderedSignals()
	conn, err := dbus.ConnectSystemBus(dbus.WithSignalHandler(signals))
	if err != nil {
		return nil, fmt.Errorf("connect system bus: %w", err)
	}
	if !conn.SupportsUnixFDs() {
		_ = conn.Close()
		return nil, fmt.Errorf("system bus connection cannot pass file descriptors")
	}
	return &SystemBus{conn: conn, signals: signals}, nil
}

// orderedSignals is a dbus.SignalHandler that hands each signal to its
// subscribers from the connection's reader goroutine. A signal read off
// the wire before a method reply is therefore queued on the subscriber's
// channel before that reply is delivered.
type orderedSignals struct {
	mu   sync.Mutex
	subs map[chan<- *dbus.Signal]chan struct{}
	done chan struct{}
	once sync.Once
}

func newOrderedSignals() *orderedSignals {
	return &orderedSignals{
		subs: make(map[chan<- *dbus.Signal]chan struct{}),
		done: make(chan struct{}),
	}
}

func (h *orderedSignals) DeliverSignal(_, _ string, sig *dbus.Signal) {
	h.mu.Lock()
	type sub struct {
		ch   chan<- *dbus.Signal
		gone chan struct{}
	}
	subs := make([]sub, 0, len(h.subs))
	for ch, gone := range h.subs {
		subs = append(subs, sub{ch, gone})
	}
	h.mu.Unlock()
	for _, s := range subs {
		select {
		case s.ch <- sig:
		case <-s.gone:
		case <-h.done:
			return
		}
	}
}

func (h *orderedSignals) AddSignal(ch chan<- *dbus.Signal) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ch]; !ok {
		h.subs[ch] = make(chan struct{})
	}
}

func (h *orderedSignals) RemoveSignal(ch chan<- *dbus.Signal) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if gone, ok := h.subs[ch]; ok {
		close(gone)
		delete(h.subs, ch)
	}
}

// Terminate is called by the connection on close.
func (h *orderedSignals) Terminate() {
	h.once.Do(func() { close(h.done) })
}

func (b *SystemBus) Call(ctx context.Context, path dbus.ObjectPath, method string, args ...any) ([]any, error) {
	call := b.conn.Object(BusName, path).CallWithContext(ctx, method, 0, args...)
	return call.Body, call.Err
}

func (b *SystemBus) Go(ctx context.Context, path dbus.ObjectPath, method string, args ...any) <-chan Reply {
	done := make(chan *dbus.Call, 1)
	b.conn.Object(BusName, path).GoWithContext(ctx, method, 0, done, args...)
	out := make(chan Reply, 1)
	go func() {
		call := <-done
		out <- Reply{Body: call.Body, Err: call.Err}
	}()
	return out
}

func (b *SystemBus) AddMatchSignal(path dbus.ObjectPath, iface, member string) error {
	return b.conn.AddMatchSignal(
		dbus.WithMatchObjectPath(path),
		dbus.WithMatchInterface(iface),
		dbus.WithMatchMember(member),
	)
}

func (b *SystemBus) RemoveMatchSignal(path dbus.ObjectPath, iface, member string) error {
	return b.conn.RemoveMatchSignal(
		dbus.WithMatchObjectPath(path),
		dbus.WithMatchInterface(iface),
		dbus.WithMatchMember(member),
	)
}

func (b *SystemBus) Signal(ch chan<- *dbus.Signal)       { b.conn.Signal(ch) }
func (b *SystemBus) RemoveSignal(ch chan<- *dbus.Signal) { b.conn.RemoveSignal(ch) }
func (b *SystemBus) Close() error                        { return b.conn.Close() }
