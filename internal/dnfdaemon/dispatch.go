package dnfdaemon

import (
	"context"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"

	"yumex/internal/pipestream"
	"yumex/internal/wire"
	"yumex/pkg/types"
)

// Shape selects how a call's reply is delivered.
type Shape int

const (
	// ShapeValue wraps the reply values through the wire codec.
	ShapeValue Shape = iota
	// ShapeVoid delivers a completion without payload.
	ShapeVoid
	// ShapePipe appends the write end of a fresh pipe to the arguments
	// and delivers the records the daemon writes into it.
	ShapePipe
)

func (s Shape) String() string {
	switch s {
	case ShapeVoid:
		return "void"
	case ShapePipe:
		return "pipe"
	default:
		return "value"
	}
}

// Command describes one daemon method call.
type Command struct {
	// Name labels events and selects the result postprocessor.
	Name   string
	Iface  string
	Method string
	Args   []any
	Shape  Shape

	// Target and Attribute parameterize attribute queries.
	Target    string
	Attribute types.Attribute
}

// PendingCall is the handle of one dispatched call. Its result is also
// published to the outbound queue under the same ID.
type PendingCall struct {
	ID      string
	Command string
	Args    []any
	Started time.Time

	done   chan struct{}
	result any
	err    error
}

// Done is closed once the call's event has been published.
func (p *PendingCall) Done() <-chan struct{} { return p.done }

// Result returns the call outcome. It is only meaningful after Done.
func (p *PendingCall) Result() (any, error) { return p.result, p.err }

// Wait blocks until the call completes or ctx ends. The call itself is
// not cancelled by ctx.
func (p *PendingCall) Wait(ctx context.Context) (any, error) {
	select {
	case <-p.done:
		return p.result, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Dispatch starts cmd on its own goroutine. When another call is in
// flight it publishes a command_in_progress failure and returns
// ErrCommandInProgress without touching the running call.
func (c *Client) Dispatch(cmd Command) (*PendingCall, error) {
	if !c.slot.TryAcquire(1) {
		err := &Error{Kind: KindCommandInProgress, Op: cmd.Name, Message: "command in progress"}
		rejectedTotal.WithLabelValues(cmd.Name).Inc()
		c.log.Debug().Str("event", "call_rejected").Str("command", cmd.Name).Str("in_flight", c.InFlight()).Msg("command in progress")
		c.publish(Event{Kind: ResultEvent, Name: cmd.Name, Err: err})
		return nil, err
	}
	pc := &PendingCall{
		ID:      uuid.NewString(),
		Command: cmd.Name,
		Args:    cmd.Args,
		Started: c.clock.Now(),
		done:    make(chan struct{}),
	}
	iface, err := c.session.Bound(cmd.Iface)
	if err != nil {
		c.finish(pc, nil, classify(cmd.Name, err))
		return pc, nil
	}
	c.mu.Lock()
	c.inflight = pc
	c.mu.Unlock()
	c.calls.Add(1)
	c.log.Debug().Str("event", "call_start").Str("command", cmd.Name).Str("call_id", pc.ID).Str("shape", cmd.Shape.String()).Msg("dispatch")
	go c.runCall(iface, cmd, pc)
	return pc, nil
}

// do dispatches cmd and waits for its outcome.
func (c *Client) do(ctx context.Context, cmd Command) (any, error) {
	pc, err := c.Dispatch(cmd)
	if err != nil {
		return nil, err
	}
	return pc.Wait(ctx)
}

func (c *Client) runCall(iface *Interface, cmd Command, pc *PendingCall) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p, args, err := preparePipe(cmd)
	if err != nil {
		c.finish(pc, nil, &Error{Kind: KindDaemon, Op: cmd.Name, Message: err.Error(), Err: err})
		return
	}
	replies := iface.Go(ctx, cmd.Method, args...)

	var reply Reply
	select {
	case reply = <-replies:
	case <-c.clock.After(c.cfg.CallTimeout):
		cancel()
		select {
		case <-replies:
			c.log.Warn().Str("event", "call_timeout").Str("command", cmd.Name).Str("call_id", pc.ID).Dur("timeout", c.cfg.CallTimeout).Msg("daemon call abandoned")
		case <-c.clock.After(c.cfg.WatchdogTimeout):
			watchdogFired.WithLabelValues("call").Inc()
			c.log.Error().Str("event", "call_watchdog").Str("command", cmd.Name).Str("call_id", pc.ID).Msg("transport did not release timed out call")
		}
		p.close()
		c.finish(pc, nil, &Error{Kind: KindTimeout, Op: cmd.Name, Message: fmt.Sprintf("no reply within %s", c.cfg.CallTimeout)})
		return
	}
	payload, err := c.complete(cmd, reply, p)
	c.finish(pc, payload, err)
}

// CallSync performs cmd on the calling goroutine. It does not take the
// single-flight slot and publishes nothing; it is meant for cheap
// idempotent reads.
func (c *Client) CallSync(ctx context.Context, cmd Command) (any, error) {
	iface, err := c.session.Bound(cmd.Iface)
	if err != nil {
		return nil, classify(cmd.Name, err)
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()
	p, args, err := preparePipe(cmd)
	if err != nil {
		return nil, err
	}
	start := c.clock.Now()
	body, err := iface.Call(ctx, cmd.Method, args...)
	payload, err := c.complete(cmd, Reply{Body: body, Err: err}, p)
	c.observe(cmd.Name, start, err)
	if err != nil && KindOf(err).Fatal() {
		c.report(err)
	}
	return payload, err
}

// complete turns a reply into the delivered payload, consuming the pipe.
func (c *Client) complete(cmd Command, reply Reply, p *pipePair) (any, error) {
	if reply.Err != nil {
		p.close()
		e := classify(cmd.Name, reply.Err)
		if e.Kind == KindDaemon && cmd.Name == CmdRunTransaction {
			// A failed run is a transaction outcome, not a broken session.
			cp := *e
			cp.Kind = KindTransaction
			e = &cp
		}
		return nil, e
	}
	var payload any
	switch cmd.Shape {
	case ShapeVoid:
	case ShapeValue:
		payload = replyValue(reply.Body)
	case ShapePipe:
		// The daemon holds its own copy of the write end once it acked.
		_ = p.w.Close()
		p.w = nil
		r := p.r
		p.r = nil
		recs := pipestream.Collect[map[string]any](r, pipestream.Options{
			PollInterval: c.cfg.PipePoll,
			MaxWait:      c.cfg.PipeMaxWait,
			Logger:       c.log,
		})
		pipeRecords.Add(float64(len(recs)))
		payload = recs
	}
	return postprocess(cmd, payload)
}

func replyValue(body []any) any {
	switch len(body) {
	case 0:
		return nil
	case 1:
		return wire.Native(body[0])
	default:
		return wire.NativeAll(body)
	}
}

// finish records the outcome, frees the slot and publishes the result.
func (c *Client) finish(pc *PendingCall, payload any, err error) {
	pc.result, pc.err = payload, err
	c.mu.Lock()
	if c.inflight == pc {
		c.inflight = nil
	}
	c.mu.Unlock()
	c.observe(pc.Command, pc.Started, err)
	if err != nil {
		c.log.Warn().Err(err).Str("event", "call_failed").Str("command", pc.Command).Str("call_id", pc.ID).Msg("daemon call failed")
		if KindOf(err).Fatal() {
			c.report(err)
		}
	}
	// The slot is free before the result is visible, so a consumer may
	// dispatch again as soon as it sees the event.
	c.slot.Release(1)
	c.publish(Event{Kind: ResultEvent, Name: pc.Command, CallID: pc.ID, Payload: payload, Err: err})
	close(pc.done)
}

func (c *Client) observe(command string, start time.Time, err error) {
	callsTotal.WithLabelValues(command, outcomeLabel(err)).Inc()
	callDuration.WithLabelValues(command).Observe(c.clock.Now().Sub(start).Seconds())
}

type pipePair struct {
	r, w *os.File
}

func (p *pipePair) close() {
	if p == nil {
		return
	}
	if p.w != nil {
		_ = p.w.Close()
		p.w = nil
	}
	if p.r != nil {
		_ = p.r.Close()
		p.r = nil
	}
}

// preparePipe creates the pipe for ShapePipe commands and appends its
// write end to the call arguments.
func preparePipe(cmd Command) (*pipePair, []any, error) {
	if cmd.Shape != ShapePipe {
		return nil, cmd.Args, nil
	}
	r, w, err := os.Pipe()
	if err != nil {
		return nil, nil, fmt.Errorf("create pipe: %w", err)
	}
	args := append(slices.Clone(cmd.Args), dbus.UnixFD(w.Fd()))
	return &pipePair{r: r, w: w}, args, nil
}
