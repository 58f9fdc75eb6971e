// Package trigger provides the scan trigger drivers: a fixed-interval ticker
// and a new-block subscription.
package trigger

import (
	"context"
	"time"
)

// Ticker fires a scan cycle on a fixed interval.
type Ticker struct {
	interval time.Duration
}

// NewTicker creates an interval trigger.
func NewTicker(interval time.Duration) *Ticker {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Ticker{interval: interval}
}

// Name identifies the driver in logs.
func (t *Ticker) Name() string { return "ticker" }

// Triggers delivers one value per interval until ctx is done. The first
// value fires immediately so a fresh start scans without waiting a full
// interval.
func (t *Ticker) Triggers(ctx context.Context) (<-chan struct{}, error) {
	out := make(chan struct{}, 1)
	out <- struct{}{}

	go func() {
		defer close(out)
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				select {
				case out <- struct{}{}:
				default:
					// Scan still running; skip this tick.
				}
			}
		}
	}()

	return out, nil
}
