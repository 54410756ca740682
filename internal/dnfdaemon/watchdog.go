package dnfdaemon

import (
	"sync"
	"time"

	"yumex/internal/clock"
)

// watchdog fires once when touch has not been called for d. After firing
// it stays disarmed until the next touch.
type watchdog struct {
	clock  clock.Clock
	d      time.Duration
	onFire func()

	mu    sync.Mutex
	timer *clock.Timer
	gen   uint64
	armed bool
}

func newWatchdog(c clock.Clock, d time.Duration, onFire func()) *watchdog {
	return &watchdog{clock: c, d: d, onFire: onFire}
}

func (w *watchdog) touch() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.gen++
	gen := w.gen
	w.armed = true
	w.timer = w.clock.AfterFunc(w.d, func() { w.fire(gen) })
}

func (w *watchdog) fire(gen uint64) {
	w.mu.Lock()
	if gen != w.gen || !w.armed {
		w.mu.Unlock()
		return
	}
	w.armed = false
	w.timer = nil
	w.mu.Unlock()
	w.onFire()
}

func (w *watchdog) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.gen++
	w.armed = false
}

func (w *watchdog) Armed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.armed
}
