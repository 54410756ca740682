package dnfdaemon

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"yumex/internal/clock"
	"yumex/pkg/types"
)

// Client talks to the package daemon through one session.
type Client struct {
	cfg     ClientConfig
	log     *zerolog.Logger
	clock   clock.Clock
	bus     Bus
	session *Session
	queue   *Queue
	sink    ErrorSink

	// slot admits one in-flight async call.
	slot     *semaphore.Weighted
	watchdog *watchdog

	mu               sync.Mutex
	inflight         *PendingCall
	keyRequest       *types.KeyImportRequest
	downloadFailures []string
	lastErr          string

	calls   atomic.Uint64
	started time.Time

	signals     chan *dbus.Signal
	stop        chan struct{}
	signalsDone chan struct{}
	closeOnce   sync.Once
}

// NewClient opens the daemon session and starts delivering signals. Setup
// failures are reported to the sink and returned.
func NewClient(ctx context.Context, bus Bus, cfg ClientConfig) (*Client, error) {
	cfg = cfg.withDefaults()
	c := &Client{
		cfg:         cfg,
		log:         cfg.Logger,
		clock:       cfg.Clock,
		bus:         bus,
		queue:       cfg.Queue,
		sink:        cfg.Sink,
		slot:        semaphore.NewWeighted(1),
		started:     cfg.Clock.Now(),
		signals:     make(chan *dbus.Signal, 64),
		stop:        make(chan struct{}),
		signalsDone: make(chan struct{}),
	}
	c.session = newSession(bus, c.log)
	c.watchdog = newWatchdog(c.clock, cfg.TransactionIdle, c.transactionTimeout)
	if err := c.session.Open(ctx); err != nil {
		c.report(err)
		return nil, err
	}
	bus.Signal(c.signals)
	go c.signalLoop(c.signals)
	return c, nil
}

// Close stops signal delivery and releases the session.
func (c *Client) Close(ctx context.Context) error {
	var err error
	c.closeOnce.Do(func() {
		c.bus.RemoveSignal(c.signals)
		close(c.stop)
		<-c.signalsDone
		c.watchdog.stop()
		err = c.session.Close(ctx)
	})
	return err
}

// Reload replaces the session with a fresh one. It fails with
// ErrCommandInProgress while a call is in flight.
func (c *Client) Reload(ctx context.Context) error {
	if !c.slot.TryAcquire(1) {
		return &Error{Kind: KindCommandInProgress, Op: "reload", Message: "command in progress"}
	}
	defer c.slot.Release(1)
	c.watchdog.stop()
	c.mu.Lock()
	c.keyRequest = nil
	c.downloadFailures = nil
	c.mu.Unlock()
	if err := c.session.Reload(ctx); err != nil {
		c.report(err)
		return err
	}
	return nil
}

// Events returns the outbound queue.
func (c *Client) Events() *Queue { return c.queue }

// InFlight names the command currently in flight, or "".
func (c *Client) InFlight() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight == nil {
		return ""
	}
	return c.inflight.Command
}

// PendingKeyRequest returns the last key import request seen since the
// current run started.
func (c *Client) PendingKeyRequest() *types.KeyImportRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.keyRequest == nil {
		return nil
	}
	req := *c.keyRequest
	return &req
}

// Status snapshots the client for diagnostics.
func (c *Client) Status() types.StatusResponse {
	now := c.clock.Now()
	c.mu.Lock()
	lastErr := c.lastErr
	c.mu.Unlock()
	path := c.session.Path()
	return types.StatusResponse{
		SessionPath:    string(path),
		SessionOpen:    path != "",
		InFlight:       c.InFlight(),
		QueueLen:       c.queue.Len(),
		WatchdogArmed:  c.watchdog.Armed(),
		CallsTotal:     c.calls.Load(),
		LastError:      lastErr,
		UptimeSeconds:  int64(now.Sub(c.started).Seconds()),
		ServerTimeUnix: now.Unix(),
	}
}

func (c *Client) publish(e Event) {
	if e.Time.IsZero() {
		e.Time = c.clock.Now()
	}
	c.queue.Publish(e)
}

func (c *Client) report(err error) {
	c.mu.Lock()
	c.lastErr = err.Error()
	c.mu.Unlock()
	c.sink.ReportError(err)
}

func (c *Client) transactionTimeout() {
	watchdogFired.WithLabelValues("transaction").Inc()
	c.log.Warn().Str("event", "transaction_timeout").Dur("idle", c.cfg.TransactionIdle).Msg("no transaction signal from daemon")
	c.publish(Event{
		Kind: SignalEvent,
		Name: SignalTransactionTimeout,
		Err:  &Error{Kind: KindTimeout, Op: "transaction", Message: "daemon went silent during transaction"},
	})
}
