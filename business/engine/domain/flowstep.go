package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FlowType labels what a FlowStep records.
type FlowType string

const (
	// FlowScan records one completed scan pass over a pair.
	FlowScan FlowType = "SCAN"

	// FlowSkip records a detection pass that declined to trade.
	FlowSkip FlowType = "SKIP"

	// FlowTrade records a submitted round trip.
	FlowTrade FlowType = "TRADE"

	// FlowConsolidation records a profit sweep.
	FlowConsolidation FlowType = "CONSOLIDATION"

	// FlowHalt records the drawdown stop.
	FlowHalt FlowType = "HALT"
)

// FlowStatus is the terminal outcome of a FlowStep.
type FlowStatus string

const (
	FlowSuccess FlowStatus = "SUCCESS"
	FlowFailed  FlowStatus = "FAILED"
)

// FlowStep is one append-only audit record. Every scan outcome produces one,
// trades and non-trades alike, so the trail is complete.
type FlowStep struct {
	ID        string     `json:"id"`
	Timestamp time.Time  `json:"timestamp"`
	Type      FlowType   `json:"type"`
	Pair      string     `json:"pair"`
	Detail    string     `json:"detail,omitempty"`
	Profit    decimal.Decimal `json:"profit"`
	Status    FlowStatus `json:"status"`
	TxHash    string     `json:"tx_hash,omitempty"`
}

// NewFlowStep creates a step stamped with a fresh id and the current time.
func NewFlowStep(flowType FlowType, pair string, status FlowStatus) FlowStep {
	return FlowStep{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Type:      flowType,
		Pair:      pair,
		Status:    status,
	}
}
