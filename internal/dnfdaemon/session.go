package dnfdaemon

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"
)

// Interface is one daemon interface bound to a session object.
type Interface struct {
	bus  Bus
	path dbus.ObjectPath
	name string
}

func (i *Interface) Name() string { return i.name }

func (i *Interface) Call(ctx context.Context, member string, args ...any) ([]any, error) {
	return i.bus.Call(ctx, i.path, i.name+"."+member, args...)
}

func (i *Interface) Go(ctx context.Context, member string, args ...any) <-chan Reply {
	return i.bus.Go(ctx, i.path, i.name+"."+member, args...)
}

// Session holds the single daemon session of a client and the interfaces
// bound to it. Open, Close and Reload are exclusive; the client makes sure
// no call is in flight while they run.
type Session struct {
	bus Bus
	log *zerolog.Logger

	mu    sync.RWMutex
	path  dbus.ObjectPath
	bound map[string]*Interface
}

func newSession(bus Bus, log *zerolog.Logger) *Session {
	return &Session{bus: bus, log: log}
}

// Path returns the object path of the open session, or "".
func (s *Session) Path() dbus.ObjectPath {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.path
}

func (s *Session) IsOpen() bool { return s.Path() != "" }

// Bound returns the interface iface bound to the open session.
func (s *Session) Bound(iface string) (*Interface, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.path == "" {
		return nil, ErrSessionClosed
	}
	i, ok := s.bound[iface]
	if !ok {
		return nil, fmt.Errorf("interface %s not bound", iface)
	}
	return i, nil
}

// Open establishes the session. Opening an open session is a no-op.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.path != "" {
		return nil
	}
	body, err := s.bus.Call(ctx, ManagerPath, IfaceSessionManager+".open_session", map[string]dbus.Variant{})
	if err != nil {
		return classify("open_session", err)
	}
	var path dbus.ObjectPath
	if len(body) > 0 {
		path, _ = body[0].(dbus.ObjectPath)
	}
	if path == "" || !path.IsValid() {
		return &Error{Kind: KindDaemon, Op: "open_session", Message: fmt.Sprintf("unexpected reply %v", body)}
	}
	for i, sig := range subscribedSignals {
		if err := s.bus.AddMatchSignal(path, sig.iface, sig.member); err != nil {
			for _, prev := range subscribedSignals[:i] {
				_ = s.bus.RemoveMatchSignal(path, prev.iface, prev.member)
			}
			s.closeSession(ctx, path)
			return classify("add_match", err)
		}
	}
	s.bound = make(map[string]*Interface, len(sessionInterfaces))
	for _, name := range sessionInterfaces {
		s.bound[name] = &Interface{bus: s.bus, path: path, name: name}
	}
	s.path = path
	s.log.Info().Str("event", "session_open").Str("session", string(path)).Msg("daemon session opened")
	return nil
}

// Close releases the session. It is safe on a closed session and during
// error unwinding.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.path == "" {
		return nil
	}
	path := s.path
	s.path = ""
	s.bound = nil
	for _, sig := range subscribedSignals {
		_ = s.bus.RemoveMatchSignal(path, sig.iface, sig.member)
	}
	return s.closeSession(ctx, path)
}

func (s *Session) closeSession(ctx context.Context, path dbus.ObjectPath) error {
	body, err := s.bus.Call(ctx, ManagerPath, IfaceSessionManager+".close_session", path)
	if err != nil {
		s.log.Warn().Err(err).Str("event", "session_close_error").Str("session", string(path)).Msg("closing daemon session failed")
		return classify("close_session", err)
	}
	if len(body) > 0 {
		if ok, isBool := body[0].(bool); isBool && !ok {
			s.log.Warn().Str("event", "session_close_refused").Str("session", string(path)).Msg("daemon did not close session")
		}
	}
	s.log.Info().Str("event", "session_close").Str("session", string(path)).Msg("daemon session closed")
	return nil
}

// Reload closes the session and opens a fresh one.
func (s *Session) Reload(ctx context.Context) error {
	cerr := s.Close(ctx)
	if err := s.Open(ctx); err != nil {
		return errors.Join(err, cerr)
	}
	if cerr != nil {
		s.log.Debug().Err(cerr).Msg("previous session close failed during reload")
	}
	return nil
}
