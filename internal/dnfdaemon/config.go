package dnfdaemon

import (
	"time"

	"github.com/rs/zerolog"

	"yumex/internal/clock"
)

// Defaults applied when corresponding ClientConfig fields are unset.
const (
	defaultCallTimeout     = 600 * time.Second
	defaultWatchdogTimeout = 10 * time.Second
	defaultTransactionIdle = 60 * time.Second
	defaultPipePoll        = 1000 * time.Millisecond
	defaultPipeMaxWait     = 300 * time.Second
)

// ClientConfig encapsulates all tunables for Client construction.
type ClientConfig struct {
	// CallTimeout bounds one daemon method call.
	CallTimeout time.Duration
	// WatchdogTimeout is how long a timed out call may take to be
	// abandoned by the transport before a timeout is reported anyway.
	WatchdogTimeout time.Duration
	// TransactionIdle is the longest gap between transaction lifecycle
	// signals before a transaction_timeout event is pushed.
	TransactionIdle time.Duration
	PipePoll        time.Duration
	PipeMaxWait     time.Duration

	Queue  *Queue
	Sink   ErrorSink
	Logger *zerolog.Logger
	Clock  clock.Clock
}

func (cfg ClientConfig) withDefaults() ClientConfig {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	if cfg.WatchdogTimeout <= 0 {
		cfg.WatchdogTimeout = defaultWatchdogTimeout
	}
	if cfg.TransactionIdle <= 0 {
		cfg.TransactionIdle = defaultTransactionIdle
	}
	if cfg.PipePoll <= 0 {
		cfg.PipePoll = defaultPipePoll
	}
	if cfg.PipeMaxWait <= 0 {
		cfg.PipeMaxWait = defaultPipeMaxWait
	}
	if cfg.Queue == nil {
		cfg.Queue = NewQueue()
	}
	if cfg.Sink == nil {
		cfg.Sink = noopSink{}
	}
	if cfg.Logger == nil {
		nop := zerolog.Nop()
		cfg.Logger = &nop
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	return cfg
}
