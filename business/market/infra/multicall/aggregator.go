// Package multicall implements the QuoteAggregator against Multicall3. All
// venue legs for one pair ride in a single eth_call so every quote in the
// snapshot reflects the same block.
package multicall

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowsniper/flowsniper/business/market/app"
	"github.com/flowsniper/flowsniper/business/market/domain"
	"github.com/flowsniper/flowsniper/internal/apperror"
	"github.com/flowsniper/flowsniper/internal/asset"
	"github.com/flowsniper/flowsniper/internal/circuitbreaker"
	"github.com/flowsniper/flowsniper/internal/logger"
)

const (
	tracerName = "github.com/flowsniper/flowsniper/business/market/infra/multicall"
	meterName  = "github.com/flowsniper/flowsniper/business/market/infra/multicall"
)

var _ app.QuoteAggregator = (*Aggregator)(nil)

// ContractCaller is the read-only chain surface the aggregator needs.
// Satisfied by *ethclient.Client.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

var _ ContractCaller = (*ethclient.Client)(nil)

// Config holds the contract addresses and fee tiers the aggregator quotes.
type Config struct {
	Multicall common.Address
	V2Router  common.Address
	V3Quoter  common.Address

	// FeeTiers must be sorted ascending; ties in output resolve to the
	// earliest (cheapest) tier.
	FeeTiers []int
}

// DefaultConfig returns the standard V3 fee tier set.
func DefaultConfig(multicall, v2Router, v3Quoter common.Address) Config {
	return Config{
		Multicall: multicall,
		V2Router:  v2Router,
		V3Quoter:  v3Quoter,
		FeeTiers:  []int{FeeTier005, FeeTier030, FeeTier100},
	}
}

type aggregatorMetrics struct {
	batchesTotal metric.Int64Counter
	batchLatency metric.Float64Histogram
	batchErrors  metric.Int64Counter
	deadLegs     metric.Int64Counter
}

// Aggregator batches venue quote calls through Multicall3.
type Aggregator struct {
	client ContractCaller
	cfg    Config

	multicallABI abi.ABI
	routerABI    abi.ABI
	quoterABI    abi.ABI

	logger logger.LoggerInterface
	cb     *circuitbreaker.CircuitBreaker[[]byte]

	tracer  trace.Tracer
	metrics *aggregatorMetrics
}

// NewAggregator creates a Multicall3-backed quote aggregator.
func NewAggregator(client ContractCaller, cfg Config, log logger.LoggerInterface) (*Aggregator, error) {
	if len(cfg.FeeTiers) == 0 {
		cfg.FeeTiers = []int{FeeTier005, FeeTier030, FeeTier100}
	}

	mcABI, err := abi.JSON(strings.NewReader(Multicall3ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse multicall ABI: %w", err)
	}
	routerABI, err := abi.JSON(strings.NewReader(V2RouterABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse router ABI: %w", err)
	}
	quoterABI, err := abi.JSON(strings.NewReader(QuoterV2ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse quoter ABI: %w", err)
	}

	a := &Aggregator{
		client:       client,
		cfg:          cfg,
		multicallABI: mcABI,
		routerABI:    routerABI,
		quoterABI:    quoterABI,
		logger:       log,
		tracer:       otel.Tracer(tracerName),
	}

	a.cb = circuitbreaker.New[[]byte](circuitbreaker.DefaultConfig("multicall-quotes"))

	if err := a.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}

	return a, nil
}

func (a *Aggregator) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	a.metrics = &aggregatorMetrics{}

	a.metrics.batchesTotal, err = meter.Int64Counter(
		"quote_batches_total",
		metric.WithDescription("Total quote batches sent"),
	)
	if err != nil {
		return err
	}

	a.metrics.batchLatency, err = meter.Float64Histogram(
		"quote_batch_latency_ms",
		metric.WithDescription("Quote batch latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	a.metrics.batchErrors, err = meter.Int64Counter(
		"quote_batch_errors_total",
		metric.WithDescription("Total quote batch failures"),
	)
	if err != nil {
		return err
	}

	a.metrics.deadLegs, err = meter.Int64Counter(
		"quote_dead_legs_total",
		metric.WithDescription("Legs that reverted or failed to decode"),
	)
	if err != nil {
		return err
	}

	return nil
}

// legKind discriminates what each batched call prices.
type legKind int

const (
	legV2Buy legKind = iota
	legV2Sell
	legV3Buy
	legV3Sell
)

type leg struct {
	kind    legKind
	feeTier int
}

// GetQuotes implements app.QuoteAggregator.
func (a *Aggregator) GetQuotes(ctx context.Context, base, quote *asset.Asset, notionalIn decimal.Decimal) (*domain.QuoteSet, error) {
	ctx, span := a.tracer.Start(ctx, "multicall.get_quotes",
		trace.WithAttributes(
			attribute.String("base", base.Symbol()),
			attribute.String("quote", quote.Symbol()),
			attribute.String("notional_in", notionalIn.String()),
		),
	)
	defer span.End()

	if !notionalIn.IsPositive() {
		return nil, apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext("notional must be positive"))
	}

	start := time.Now()
	a.metrics.batchesTotal.Add(ctx, 1)

	baseAddr := base.Address()
	quoteAddr := quote.Address()
	notionalRaw := notionalIn.Shift(int32(quote.Decimals())).BigInt()
	baseUnit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(base.Decimals())), nil)

	calls, legs, err := a.buildCalls(baseAddr, quoteAddr, notionalRaw, baseUnit)
	if err != nil {
		return nil, err
	}

	results, err := a.tryAggregate(ctx, calls)
	a.metrics.batchLatency.Record(ctx, float64(time.Since(start).Milliseconds()))
	if err != nil {
		a.metrics.batchErrors.Add(ctx, 1)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	set := a.decodeLegs(ctx, legs, results, base, quote)
	set.NotionalIn = notionalIn
	set.Timestamp = time.Now()

	span.SetAttributes(
		attribute.String("v2_buy_out", set.V2BuyOut.String()),
		attribute.String("v3_buy_out", set.V3BuyOut.String()),
		attribute.Int("v3_buy_fee_tier", set.V3BuyFeeTier),
		attribute.Int("v3_sell_fee_tier", set.V3SellFeeTier),
	)
	span.SetStatus(codes.Ok, "quotes batched")

	a.logger.Debug(ctx, "quote batch complete",
		"pair", base.Symbol()+"-"+quote.Symbol(),
		"v2_buy_out", set.V2BuyOut.String(),
		"v2_sell_unit", set.V2SellUnit.String(),
		"v3_buy_out", set.V3BuyOut.String(),
		"v3_sell_unit", set.V3SellUnit.String(),
	)

	return set, nil
}

// buildCalls assembles the batch: V2 buy, V2 sell-unit, then a V3 buy and a
// V3 sell-unit per fee tier.
func (a *Aggregator) buildCalls(baseAddr, quoteAddr common.Address, notionalRaw, baseUnit *big.Int) ([]Call, []leg, error) {
	calls := make([]Call, 0, 2+2*len(a.cfg.FeeTiers))
	legs := make([]leg, 0, cap(calls))

	v2Buy, err := a.routerABI.Pack("getAmountsOut", notionalRaw, []common.Address{quoteAddr, baseAddr})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode v2 buy leg: %w", err)
	}
	calls = append(calls, Call{Target: a.cfg.V2Router, CallData: v2Buy})
	legs = append(legs, leg{kind: legV2Buy})

	v2Sell, err := a.routerABI.Pack("getAmountsOut", baseUnit, []common.Address{baseAddr, quoteAddr})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode v2 sell leg: %w", err)
	}
	calls = append(calls, Call{Target: a.cfg.V2Router, CallData: v2Sell})
	legs = append(legs, leg{kind: legV2Sell})

	for _, tier := range a.cfg.FeeTiers {
		buy, err := a.quoterABI.Pack("quoteExactInputSingle", QuoteExactInputSingleParams{
			TokenIn:           quoteAddr,
			TokenOut:          baseAddr,
			AmountIn:          notionalRaw,
			Fee:               big.NewInt(int64(tier)),
			SqrtPriceLimitX96: big.NewInt(0),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encode v3 buy leg: %w", err)
		}
		calls = append(calls, Call{Target: a.cfg.V3Quoter, CallData: buy})
		legs = append(legs, leg{kind: legV3Buy, feeTier: tier})

		sell, err := a.quoterABI.Pack("quoteExactInputSingle", QuoteExactInputSingleParams{
			TokenIn:           baseAddr,
			TokenOut:          quoteAddr,
			AmountIn:          baseUnit,
			Fee:               big.NewInt(int64(tier)),
			SqrtPriceLimitX96: big.NewInt(0),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encode v3 sell leg: %w", err)
		}
		calls = append(calls, Call{Target: a.cfg.V3Quoter, CallData: sell})
		legs = append(legs, leg{kind: legV3Sell, feeTier: tier})
	}

	return calls, legs, nil
}

// tryAggregate sends the batch with requireSuccess=false so reverting legs
// come back as failed results instead of aborting the whole call.
func (a *Aggregator) tryAggregate(ctx context.Context, calls []Call) ([]Result, error) {
	callData, err := a.multicallABI.Pack("tryAggregate", false, calls)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tryAggregate: %w", err)
	}

	raw, err := a.cb.Execute(func() ([]byte, error) {
		return a.client.CallContract(ctx, ethereum.CallMsg{
			To:   &a.cfg.Multicall,
			Data: callData,
		}, nil)
	})
	if err != nil {
		return nil, apperror.New(apperror.CodeMulticallFailed,
			apperror.WithCause(err),
			apperror.WithContext("multicall batch failed"))
	}

	outputs, err := a.multicallABI.Unpack("tryAggregate", raw)
	if err != nil {
		return nil, apperror.New(apperror.CodeMulticallFailed,
			apperror.WithCause(err),
			apperror.WithContext("failed to decode tryAggregate result"))
	}

	results := *abi.ConvertType(outputs[0], new([]Result)).(*[]Result)
	if len(results) != len(calls) {
		return nil, apperror.New(apperror.CodeMulticallFailed,
			apperror.WithContext(fmt.Sprintf("expected %d results, got %d", len(calls), len(results))))
	}

	return results, nil
}

// decodeLegs converts raw results into a QuoteSet. A failed or undecodable
// leg stays zero; it means no liquidity on that route, not an error.
func (a *Aggregator) decodeLegs(ctx context.Context, legs []leg, results []Result, base, quote *asset.Asset) *domain.QuoteSet {
	set := &domain.QuoteSet{Base: base, Quote: quote}

	v3Buy := make(map[int]*big.Int)
	v3Sell := make(map[int]*big.Int)

	for i, l := range legs {
		res := results[i]
		if !res.Success || len(res.ReturnData) == 0 {
			a.metrics.deadLegs.Add(ctx, 1)
			continue
		}

		switch l.kind {
		case legV2Buy, legV2Sell:
			out, err := a.decodeV2(res.ReturnData)
			if err != nil {
				a.metrics.deadLegs.Add(ctx, 1)
				continue
			}
			if l.kind == legV2Buy {
				set.V2BuyOut = asset.NewAmount(base, out).ToDecimal()
			} else {
				set.V2SellUnit = asset.NewAmount(quote, out).ToDecimal()
			}

		case legV3Buy, legV3Sell:
			out, err := a.decodeV3(res.ReturnData)
			if err != nil {
				a.metrics.deadLegs.Add(ctx, 1)
				continue
			}
			if l.kind == legV3Buy {
				v3Buy[l.feeTier] = out
			} else {
				v3Sell[l.feeTier] = out
			}
		}
	}

	if out, tier := bestTier(v3Buy, a.cfg.FeeTiers); out != nil {
		set.V3BuyOut = asset.NewAmount(base, out).ToDecimal()
		set.V3BuyFeeTier = tier
	}
	if out, tier := bestTier(v3Sell, a.cfg.FeeTiers); out != nil {
		set.V3SellUnit = asset.NewAmount(quote, out).ToDecimal()
		set.V3SellFeeTier = tier
	}

	return set
}

func (a *Aggregator) decodeV2(data []byte) (*big.Int, error) {
	outputs, err := a.routerABI.Unpack("getAmountsOut", data)
	if err != nil {
		return nil, err
	}
	amounts, ok := outputs[0].([]*big.Int)
	if !ok || len(amounts) < 2 {
		return nil, fmt.Errorf("unexpected getAmountsOut shape")
	}
	return amounts[len(amounts)-1], nil
}

func (a *Aggregator) decodeV3(data []byte) (*big.Int, error) {
	outputs, err := a.quoterABI.Unpack("quoteExactInputSingle", data)
	if err != nil {
		return nil, err
	}
	if len(outputs) < 1 {
		return nil, fmt.Errorf("empty quoteExactInputSingle result")
	}
	out, ok := outputs[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected quoteExactInputSingle shape")
	}
	return out, nil
}

// bestTier picks the highest output; on an exact tie the earliest tier in
// the configured (ascending) order wins.
func bestTier(amounts map[int]*big.Int, tiers []int) (*big.Int, int) {
	var best *big.Int
	var bestFee int
	for _, tier := range tiers {
		out, ok := amounts[tier]
		if !ok || out.Sign() == 0 {
			continue
		}
		if best == nil || out.Cmp(best) > 0 {
			best = out
			bestFee = tier
		}
	}
	return best, bestFee
}
