// Package flowlog keeps the FlowStep audit trail: every step is logged and
// retained in a bounded ring for the control surface.
package flowlog

import (
	"context"
	"sync"

	"github.com/flowsniper/flowsniper/business/engine/domain"
	"github.com/flowsniper/flowsniper/internal/logger"
)

const defaultCapacity = 256

// Sink retains the most recent FlowSteps. Record never blocks.
type Sink struct {
	logger logger.LoggerInterface

	mu    sync.RWMutex
	steps []domain.FlowStep
	next  int
	full  bool
}

// NewSink creates a sink holding up to capacity steps; capacity <= 0 uses
// the default.
func NewSink(capacity int, log logger.LoggerInterface) *Sink {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Sink{
		logger: log,
		steps:  make([]domain.FlowStep, capacity),
	}
}

// Record appends the step to the ring and logs it.
func (s *Sink) Record(ctx context.Context, step domain.FlowStep) {
	s.mu.Lock()
	s.steps[s.next] = step
	s.next = (s.next + 1) % len(s.steps)
	if s.next == 0 {
		s.full = true
	}
	s.mu.Unlock()

	s.logger.Info(ctx, "flow step",
		"id", step.ID,
		"type", string(step.Type),
		"pair", step.Pair,
		"status", string(step.Status),
		"profit", step.Profit.String(),
		"detail", step.Detail,
		"hash", step.TxHash,
	)
}

// Recent returns up to n steps, newest first.
func (s *Sink) Recent(n int) []domain.FlowStep {
	s.mu.RLock()
	defer s.mu.RUnlock()

	size := s.next
	if s.full {
		size = len(s.steps)
	}
	if n > size {
		n = size
	}

	out := make([]domain.FlowStep, 0, n)
	for i := 1; i <= n; i++ {
		idx := (s.next - i + len(s.steps)) % len(s.steps)
		out = append(out, s.steps[idx])
	}
	return out
}
