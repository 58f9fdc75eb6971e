// Package domain contains the core domain types for the engine context.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// State is the scheduler's lifecycle state.
type State string

const (
	// StateStopped means no scan loop is running.
	StateStopped State = "STOPPED"

	// StateScanning means the loop is between trades, fetching quotes.
	StateScanning State = "SCANNING"

	// StateExecuting means a trade round trip is in flight.
	StateExecuting State = "EXECUTING"
)

// Params are the hot-updatable strategy parameters. Start replaces them in
// place when the engine is already active.
type Params struct {
	// TradeAmount is the quote-token notional per buy leg.
	TradeAmount decimal.Decimal `json:"trade_amount"`

	// Slippage is the minimum-output haircut fraction.
	Slippage decimal.Decimal `json:"slippage"`

	// MinProfitFraction gates detection.
	MinProfitFraction decimal.Decimal `json:"min_profit_fraction"`

	// MaxDrawdown is the session loss (negative, quote tokens) that stops
	// the engine terminally.
	MaxDrawdown decimal.Decimal `json:"max_drawdown"`

	// ConsolidationThreshold is the stable balance above which profit is
	// swept to the owner.
	ConsolidationThreshold decimal.Decimal `json:"consolidation_threshold"`
}

// Merge overlays non-zero fields of other onto p and returns the result.
// Zero-valued fields in other keep the current value, so a partial update
// only touches what it names.
func (p Params) Merge(other Params) Params {
	merged := p
	if !other.TradeAmount.IsZero() {
		merged.TradeAmount = other.TradeAmount
	}
	if !other.Slippage.IsZero() {
		merged.Slippage = other.Slippage
	}
	if !other.MinProfitFraction.IsZero() {
		merged.MinProfitFraction = other.MinProfitFraction
	}
	if !other.MaxDrawdown.IsZero() {
		merged.MaxDrawdown = other.MaxDrawdown
	}
	if !other.ConsolidationThreshold.IsZero() {
		merged.ConsolidationThreshold = other.ConsolidationThreshold
	}
	return merged
}

// Snapshot is a point-in-time copy of the engine's state for the control
// surface. The scheduler is the single writer; snapshots are safe to hand
// out.
type Snapshot struct {
	State State  `json:"state"`
	Mode  string `json:"mode"`

	Params Params `json:"params"`

	// DailyPnl accumulates net profit across the session, in quote
	// tokens.
	DailyPnl decimal.Decimal `json:"daily_pnl"`

	// SimGasBalance tracks simulated gas spend; only meaningful in demo
	// mode.
	SimGasBalance decimal.Decimal `json:"sim_gas_balance"`

	TradesExecuted int `json:"trades_executed"`
	CyclesRun      int `json:"cycles_run"`

	StartedAt    time.Time `json:"started_at"`
	LastActivity time.Time `json:"last_activity"`
}

// Active reports whether the engine is in a running state.
func (s Snapshot) Active() bool {
	return s.State != StateStopped
}
