package dnfdaemon

import (
	"time"

	"yumex/pkg/types"
)

// EventKind tags an Event as a call result or a daemon signal.
type EventKind int

const (
	ResultEvent EventKind = iota
	SignalEvent
)

func (k EventKind) String() string {
	if k == SignalEvent {
		return "signal"
	}
	return "result"
}

// Event is one entry of the outbound queue. Name is the command for
// results and the signal member for signals.
type Event struct {
	Kind    EventKind
	Name    string
	CallID  string
	Payload any
	Err     error
	Time    time.Time
}

// View projects the event for JSON consumers.
func (e Event) View() types.EventView {
	v := types.EventView{
		Kind:     e.Kind.String(),
		Name:     e.Name,
		CallID:   e.CallID,
		Payload:  e.Payload,
		TimeUnix: e.Time.Unix(),
	}
	if e.Err != nil {
		v.Error = e.Err.Error()
		v.ErrorKind = KindOf(e.Err).String()
	}
	return v
}

// EventPublisher receives outbound events. Publish must not block.
type EventPublisher interface {
	Publish(Event)
}
