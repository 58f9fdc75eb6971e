package control

import (
	"context"
	"time"

	"github.com/flowsniper/flowsniper/internal/logger"
)

// WatchedEngine is the scheduler slice the watchdog supervises.
type WatchedEngine interface {
	Engine
	LastActivity() time.Time
}

// Watchdog restarts the engine when no FlowStep has been recorded for the
// timeout window. This is the only defense against a silently wedged loop:
// every scan outcome stamps last-activity, so a quiet engine is a stuck one.
type Watchdog struct {
	engine  WatchedEngine
	timeout time.Duration
	logger  logger.LoggerInterface
}

// NewWatchdog creates the watchdog. Timeout <= 0 defaults to five minutes.
func NewWatchdog(engine WatchedEngine, timeout time.Duration, log logger.LoggerInterface) *Watchdog {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Watchdog{engine: engine, timeout: timeout, logger: log}
}

// Run blocks until ctx is done, checking liveness at a quarter of the
// timeout window.
func (w *Watchdog) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.timeout / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.check(ctx)
		}
	}
}

func (w *Watchdog) check(ctx context.Context) {
	snapshot := w.engine.Snapshot()
	if !snapshot.Active() {
		return
	}

	silence := time.Since(w.engine.LastActivity())
	if silence < w.timeout {
		return
	}

	w.logger.Error(ctx, "engine silent past watchdog window, restarting",
		"silence", silence.String(), "timeout", w.timeout.String())

	if err := w.engine.Stop(); err != nil {
		w.logger.Error(ctx, "watchdog stop failed", "error", err)
	}
	if err := w.engine.Start(snapshot.Mode, snapshot.Params); err != nil {
		w.logger.Error(ctx, "watchdog restart failed", "error", err)
	}
}
