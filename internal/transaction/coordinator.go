// Package transaction drives a queued set of package actions through
// resolve, user confirmation and run, including the key import round
// trip the daemon requires when a package is signed with an unknown key.
package transaction

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"yumex/internal/dnfdaemon"
	"yumex/pkg/types"
)

const defaultMaxKeyImports = 5

// ErrEmptyQueue is returned by Execute when nothing is queued.
var ErrEmptyQueue = errors.New("transaction queue is empty")

// ErrBusy is returned by Execute while another cycle is running.
var ErrBusy = errors.New("transaction already in progress")

// Backend performs the daemon side of a transaction.
type Backend interface {
	Resolve(ctx context.Context, items []types.QueueItem) (types.Resolution, error)
	Run(ctx context.Context) (types.RunResult, error)
	ConfirmKey(ctx context.Context, keyID string, accept bool) error
	Release(ctx context.Context) error
}

// Confirmer asks the user. Both methods block until answered.
type Confirmer interface {
	ConfirmTransaction(tree types.TransactionTree) bool
	ConfirmKey(req types.KeyImportRequest) bool
}

// Cache is the package cache invalidated after every finished transaction.
type Cache interface {
	ClearQueued()
	Reset()
}

// Config configures a Coordinator.
type Config struct {
	Backend   Backend
	Confirmer Confirmer
	Cache     Cache
	// MaxKeyImports bounds accepted key imports within one Execute.
	MaxKeyImports int
	Logger        *zerolog.Logger
}

// Outcome is the result of one Execute.
type Outcome struct {
	State    State
	Failure  Failure
	Messages []string
	// Err carries the failure in the client error taxonomy.
	Err        error
	Resolution types.Resolution
	KeyImports int
}

var outcomesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "yumex",
		Subsystem: "transaction",
		Name:      "outcomes_total",
		Help:      "Finished transaction cycles by end state and failure kind",
	},
	[]string{"state", "failure"},
)

func init() {
	prometheus.MustRegister(outcomesTotal)
}

// Coordinator owns the queue and the transaction state machine.
type Coordinator struct {
	backend   Backend
	confirmer Confirmer
	cache     Cache
	maxKeys   int
	log       *zerolog.Logger
	queue     *Queue

	mu    sync.Mutex
	state State
	fail  Failure
}

func New(cfg Config) *Coordinator {
	if cfg.MaxKeyImports <= 0 {
		cfg.MaxKeyImports = defaultMaxKeyImports
	}
	if cfg.Logger == nil {
		nop := zerolog.Nop()
		cfg.Logger = &nop
	}
	return &Coordinator{
		backend:   cfg.Backend,
		confirmer: cfg.Confirmer,
		cache:     cfg.Cache,
		maxKeys:   cfg.MaxKeyImports,
		log:       cfg.Logger,
		queue:     &Queue{},
	}
}

func (c *Coordinator) Queue() *Queue { return c.queue }

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Failure is the failure kind of the last failed cycle.
func (c *Coordinator) Failure() Failure {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fail
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	prev := c.state
	c.state = s
	if s != StateFailed {
		c.fail = FailureNone
	}
	c.mu.Unlock()
	c.log.Debug().Str("event", "transaction_state").Str("from", prev.String()).Str("to", s.String()).Msg("state change")
}

// Execute resolves the queued actions, asks for confirmation and runs the
// transaction. Transaction failures end in an Outcome with StateFailed;
// the returned error is reserved for transport and session failures,
// which also end the cycle.
func (c *Coordinator) Execute(ctx context.Context) (Outcome, error) {
	c.mu.Lock()
	prev := c.state
	switch {
	case prev.Busy():
		c.mu.Unlock()
		return Outcome{State: prev}, ErrBusy
	case c.queue.Len() == 0:
		c.mu.Unlock()
		return Outcome{State: prev}, ErrEmptyQueue
	}
	c.state, c.fail = StateResolving, FailureNone
	c.mu.Unlock()
	c.log.Debug().Str("event", "transaction_state").Str("from", prev.String()).Str("to", StateResolving.String()).Msg("state change")

	res, err := c.backend.Resolve(ctx, c.queue.Items())
	if err != nil {
		return c.abort(ctx, err)
	}
	if !res.Code.Succeeded() {
		return c.finish(ctx, Outcome{Resolution: res}, FailureDependency, res.Problems), nil
	}
	if !c.confirmer.ConfirmTransaction(res.Tree) {
		c.setState(StateIdle)
		c.log.Info().Str("event", "transaction_declined").Int("queued", c.queue.Len()).Msg("transaction not confirmed")
		return Outcome{State: StateIdle, Resolution: res}, nil
	}

	out := Outcome{Resolution: res}
	for {
		c.setState(StateRunning)
		rr, err := c.backend.Run(ctx)
		if err != nil {
			return c.abort(ctx, err)
		}
		switch rr.Code {
		case types.RunOK:
			return c.finish(ctx, out, FailureNone, rr.Messages), nil
		case types.RunDownloadErrors:
			return c.finish(ctx, out, FailureDownload, rr.Messages), nil
		case types.RunSignature:
			return c.finish(ctx, out, FailureSignature, rr.Messages), nil
		case types.RunKeyImport:
		default:
			return c.finish(ctx, out, FailureOther, rr.Messages), nil
		}

		if rr.KeyRequest == nil {
			return c.finish(ctx, out, FailureSignature, rr.Messages), nil
		}
		req := *rr.KeyRequest
		if req.PkgID == "" {
			req.PkgID = keyPackage(out.Resolution.Tree, rr.Messages)
		}
		c.setState(StateAwaitingGPGConfirm)
		if out.KeyImports >= c.maxKeys {
			msgs := append(rr.Messages, fmt.Sprintf("gave up after %d key imports", out.KeyImports))
			return c.finish(ctx, out, FailureSignature, msgs), nil
		}
		accept := c.confirmer.ConfirmKey(req)
		if err := c.backend.ConfirmKey(ctx, req.KeyID, accept); err != nil {
			return c.abort(ctx, err)
		}
		if !accept {
			msgs := append(rr.Messages, "import of key "+req.KeyID+" declined")
			return c.finish(ctx, out, FailureGPGRejected, msgs), nil
		}
		out.KeyImports++
		c.log.Info().Str("event", "key_imported").Str("key_id", req.KeyID).Int("imports", out.KeyImports).Msg("re-resolving after key import")

		// The daemon does not resume a run after a key import; rebuild it.
		c.setState(StateResolving)
		res, err = c.backend.Resolve(ctx, c.queue.Items())
		if err != nil {
			return c.abort(ctx, err)
		}
		out.Resolution = res
		if !res.Code.Succeeded() {
			return c.finish(ctx, out, FailureDependency, res.Problems), nil
		}
	}
}

// abort ends the cycle on a transport or session error. A rejected
// single-flight call leaves the queue untouched.
func (c *Coordinator) abort(ctx context.Context, err error) (Outcome, error) {
	if dnfdaemon.IsCommandInProgress(err) {
		c.setState(StateIdle)
		return Outcome{State: StateIdle, Err: err}, err
	}
	out := c.finish(ctx, Outcome{}, FailureOther, []string{err.Error()})
	out.Err = err
	return out, err
}

// finish enters a terminal state: the goal is released, the queue and
// per-package marks are cleared and the package cache is reset.
func (c *Coordinator) finish(ctx context.Context, out Outcome, f Failure, msgs []string) Outcome {
	if err := c.backend.Release(ctx); err != nil {
		c.log.Warn().Err(err).Str("event", "release_failed").Msg("releasing transaction failed")
	}
	c.queue.Clear()
	if c.cache != nil {
		c.cache.ClearQueued()
		c.cache.Reset()
	}

	out.Messages = msgs
	out.Failure = f
	if f == FailureNone {
		out.State = StateSucceeded
		c.setState(StateSucceeded)
	} else {
		out.State = StateFailed
		out.Err = failureError(f, msgs)
		c.mu.Lock()
		c.state = StateFailed
		c.fail = f
		c.mu.Unlock()
	}
	outcomesTotal.WithLabelValues(out.State.String(), f.String()).Inc()
	ev := c.log.Info()
	if f != FailureNone {
		ev = c.log.Warn().Strs("messages", msgs)
	}
	ev.Str("event", "transaction_done").Str("state", out.State.String()).Str("failure", f.String()).Int("key_imports", out.KeyImports).Msg("transaction finished")
	return out
}

func failureError(f Failure, msgs []string) error {
	kind := dnfdaemon.KindTransaction
	switch f {
	case FailureDependency:
		kind = dnfdaemon.KindDependency
	case FailureGPGRejected:
		kind = dnfdaemon.KindGPGRejected
	}
	return &dnfdaemon.Error{Kind: kind, Op: "transaction", Messages: msgs}
}

// keyPackage picks the resolved package the run messages name as failing
// verification. The key request signal carries no package, so this is ""
// when no message names one.
func keyPackage(tree types.TransactionTree, msgs []string) string {
	var ids []string
	for _, items := range tree {
		for _, it := range items {
			ids = append(ids, it.PkgID)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		p, err := types.FromID(id)
		if err != nil {
			continue
		}
		nevra := p.NEVRA()
		for _, m := range msgs {
			if strings.Contains(m, nevra) {
				return id
			}
		}
	}
	return ""
}
