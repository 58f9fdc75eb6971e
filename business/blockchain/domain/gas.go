// Package domain contains the core domain types for the blockchain context.
package domain

import (
	"math/big"
	"time"
)

// FeePlan holds the EIP-1559 fee fields for one transaction. FeeCap already
// includes the base fee headroom bump, so builders use it as-is.
type FeePlan struct {
	BaseFee   *big.Int // latest block base fee
	TipCap    *big.Int // suggested priority fee
	FeeCap    *big.Int // baseFee*bump + tip
	Legacy    bool     // true when the node gave no base fee
	Timestamp time.Time
}

// NewFeePlan builds a plan from the latest base fee and suggested tip.
// bumpFactor is expressed in hundredths (125 means 1.25x) so the math stays
// in integers.
func NewFeePlan(baseFee, tipCap *big.Int, bumpFactor int64) *FeePlan {
	bumped := new(big.Int).Mul(baseFee, big.NewInt(bumpFactor))
	bumped.Div(bumped, big.NewInt(100))
	feeCap := new(big.Int).Add(bumped, tipCap)

	return &FeePlan{
		BaseFee:   baseFee,
		TipCap:    tipCap,
		FeeCap:    feeCap,
		Timestamp: time.Now(),
	}
}

// NewLegacyFeePlan builds a plan from a legacy gas price suggestion, bumped
// by the same factor. Used when the node reports no base fee.
func NewLegacyFeePlan(gasPrice *big.Int, bumpFactor int64) *FeePlan {
	bumped := new(big.Int).Mul(gasPrice, big.NewInt(bumpFactor))
	bumped.Div(bumped, big.NewInt(100))

	return &FeePlan{
		TipCap:    bumped,
		FeeCap:    bumped,
		Legacy:    true,
		Timestamp: time.Now(),
	}
}

// FeeCapGwei returns the fee cap in gwei for logging and metrics.
func (p *FeePlan) FeeCapGwei() float64 {
	gwei := new(big.Float).SetInt(p.FeeCap)
	gwei.Quo(gwei, big.NewFloat(1e9))
	f, _ := gwei.Float64()
	return f
}

// CostWei returns the worst-case native cost of a transaction using this
// plan with the given gas limit.
func (p *FeePlan) CostWei(gasLimit uint64) *big.Int {
	return new(big.Int).Mul(p.FeeCap, new(big.Int).SetUint64(gasLimit))
}

// GasEstimate pairs a gas limit with the fee plan used to price it.
type GasEstimate struct {
	GasLimit uint64
	Plan     *FeePlan
}

// NewGasEstimate creates a GasEstimate.
func NewGasEstimate(gasLimit uint64, plan *FeePlan) *GasEstimate {
	return &GasEstimate{GasLimit: gasLimit, Plan: plan}
}

// TotalWei returns the worst-case total cost.
func (e *GasEstimate) TotalWei() *big.Int {
	return e.Plan.CostWei(e.GasLimit)
}
