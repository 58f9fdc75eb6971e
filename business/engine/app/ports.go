// Package app contains the scan scheduler and its port definitions.
package app

import (
	"context"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"

	arbApp "github.com/flowsniper/flowsniper/business/arbitrage/app"
	arbDomain "github.com/flowsniper/flowsniper/business/arbitrage/domain"
	blockchainDomain "github.com/flowsniper/flowsniper/business/blockchain/domain"
	"github.com/flowsniper/flowsniper/business/engine/domain"
	execDomain "github.com/flowsniper/flowsniper/business/execution/domain"
	marketDomain "github.com/flowsniper/flowsniper/business/market/domain"
	pricingDomain "github.com/flowsniper/flowsniper/business/pricing/domain"
	"github.com/flowsniper/flowsniper/internal/asset"
)

// ReferencePricer serves independent reference prices. Satisfied by
// *pricing/app.PriceOracle.
type ReferencePricer interface {
	ReferencePrice(ctx context.Context, pair pricingDomain.Pair) (*pricingDomain.ReferencePrice, error)
}

// Quoter serves on-chain quote snapshots. Satisfied by the market context's
// aggregator.
type Quoter interface {
	GetQuotes(ctx context.Context, base, quote *asset.Asset, notionalIn decimal.Decimal) (*marketDomain.QuoteSet, error)
}

// OpportunityJudge scores one snapshot. Satisfied by *arbitrage/app.Detector.
type OpportunityJudge interface {
	Detect(in arbApp.DetectInput) (*arbDomain.Opportunity, arbDomain.Verdict)
}

// Trader submits swaps. Satisfied by *execution/app.TradeExecutor.
type Trader interface {
	Execute(ctx context.Context, req execDomain.TradeRequest) (*execDomain.TradeResult, *types.Transaction, error)
	Await(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// Consolidator sweeps settled profit. Satisfied by
// *execution/app.ConsolidationService. A positive threshold overrides the
// configured one for this sweep.
type Consolidator interface {
	MaybeConsolidate(ctx context.Context, threshold decimal.Decimal)
}

// FeePlanner prices the next transaction. Satisfied by the blockchain
// context's gas oracle.
type FeePlanner interface {
	SuggestFees(ctx context.Context) (*blockchainDomain.FeePlan, error)
}

// ScanTrigger drives scan cycles. One implementation ticks on an interval,
// another fires on new blocks.
type ScanTrigger interface {
	// Triggers returns a channel that delivers one value per scan cycle.
	// The channel closes when ctx is done.
	Triggers(ctx context.Context) (<-chan struct{}, error)

	// Name identifies the driver in logs.
	Name() string
}

// Advisor is the optional external collaborator consulted before each cycle.
type Advisor interface {
	Advise(ctx context.Context, snapshot domain.Snapshot) (domain.Advisory, error)
}

// FlowSink receives audit records. Implementations must not block the
// scheduler.
type FlowSink interface {
	Record(ctx context.Context, step domain.FlowStep)
}

// ParamsStore persists strategy parameters across restarts.
type ParamsStore interface {
	Load() (*domain.Params, error)
	Save(params domain.Params) error
}
