package ethereum

import (
	"context"
	"fmt"
	"math/big"

	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowsniper/flowsniper/business/blockchain/domain"
	"github.com/flowsniper/flowsniper/internal/apperror"
	"github.com/flowsniper/flowsniper/internal/cache"
	"github.com/flowsniper/flowsniper/internal/circuitbreaker"
	"github.com/flowsniper/flowsniper/internal/logger"
)

// GasOracleConfig holds configuration for the gas oracle.
type GasOracleConfig struct {
	CacheTTL    time.Duration // how long a fee plan stays fresh, ~1 block
	BumpFactor  int64         // base fee headroom in hundredths, 125 = 1.25x
	MaxFeeCap   *big.Int      // maximum acceptable fee cap (safety)
	DefaultGas  uint64        // default gas limit when estimation fails
	EstimatePad uint64        // percent padding added to estimates
}

// DefaultGasOracleConfig returns sensible defaults for Polygon.
func DefaultGasOracleConfig() GasOracleConfig {
	maxFee := new(big.Int)
	maxFee.SetString("2000000000000", 10) // 2000 gwei, Polygon spikes hard

	return GasOracleConfig{
		CacheTTL:    2 * time.Second, // ~1 Polygon block
		BumpFactor:  125,
		MaxFeeCap:   maxFee,
		DefaultGas:  350000,
		EstimatePad: 10,
	}
}

// gasOracleMetrics holds OTEL metric instruments.
type gasOracleMetrics struct {
	feeFetches  metric.Int64Counter
	feeCapGwei  metric.Float64Gauge
	estimateGas metric.Int64Counter
	cacheHits   metric.Int64Counter
	cacheMisses metric.Int64Counter
}

// GasOracle plans EIP-1559 fees from the latest block's base fee plus the
// node's suggested tip. Falls back to legacy gas price suggestions on chains
// or nodes without base fees.
type GasOracle struct {
	config GasOracleConfig
	logger logger.LoggerInterface
	client *ethclient.Client

	planCache *cache.Cache[string, *domain.FeePlan]

	cb *circuitbreaker.CircuitBreaker[*domain.FeePlan]

	tracer  trace.Tracer
	metrics *gasOracleMetrics
}

// NewGasOracle creates a new gas oracle over the shared chain client.
func NewGasOracle(client *ethclient.Client, cfg GasOracleConfig, log logger.LoggerInterface) (*GasOracle, error) {
	g := &GasOracle{
		config:    cfg,
		logger:    log,
		client:    client,
		planCache: cache.New[string, *domain.FeePlan](time.Minute),
		tracer:    otel.Tracer(tracerName),
	}

	if err := g.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	g.cb = circuitbreaker.New[*domain.FeePlan](circuitbreaker.DefaultConfig("gas-oracle"))

	return g, nil
}

// initMetrics initializes OTEL metric instruments.
func (g *GasOracle) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	g.metrics = &gasOracleMetrics{}

	g.metrics.feeFetches, err = meter.Int64Counter(
		"gas_fee_fetches_total",
		metric.WithDescription("Total fee plan fetch attempts"),
		metric.WithUnit("{fetch}"),
	)
	if err != nil {
		return err
	}

	g.metrics.feeCapGwei, err = meter.Float64Gauge(
		"gas_fee_cap_gwei",
		metric.WithDescription("Current fee cap in gwei"),
		metric.WithUnit("gwei"),
	)
	if err != nil {
		return err
	}

	g.metrics.estimateGas, err = meter.Int64Counter(
		"gas_estimate_total",
		metric.WithDescription("Total gas estimation calls"),
		metric.WithUnit("{estimate}"),
	)
	if err != nil {
		return err
	}

	g.metrics.cacheHits, err = meter.Int64Counter(
		"gas_cache_hits_total",
		metric.WithDescription("Fee plan cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return err
	}

	g.metrics.cacheMisses, err = meter.Int64Counter(
		"gas_cache_misses_total",
		metric.WithDescription("Fee plan cache misses"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return err
	}

	return nil
}

// SuggestFees returns the fee plan for the next transaction, cached for
// roughly one block.
func (g *GasOracle) SuggestFees(ctx context.Context) (*domain.FeePlan, error) {
	ctx, span := g.tracer.Start(ctx, "gas.suggest_fees")
	defer span.End()

	if plan, found := g.planCache.Get(ctx, "current"); found {
		g.metrics.cacheHits.Add(ctx, 1)
		span.AddEvent("cache_hit")
		return plan, nil
	}

	g.metrics.cacheMisses.Add(ctx, 1)
	g.metrics.feeFetches.Add(ctx, 1)

	plan, err := g.cb.Execute(func() (*domain.FeePlan, error) {
		return g.fetchPlan(ctx)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, apperror.New(apperror.CodeChainRPCError,
			apperror.WithCause(err),
			apperror.WithContext("failed to build fee plan"))
	}

	// Safety clamp
	if g.config.MaxFeeCap != nil && plan.FeeCap.Cmp(g.config.MaxFeeCap) > 0 {
		span.AddEvent("fee_cap_clamped",
			trace.WithAttributes(attribute.String("wei", plan.FeeCap.String())))
		g.logger.Warn(ctx, "fee cap exceeds max, clamping", "wei", plan.FeeCap.String())
		plan.FeeCap = g.config.MaxFeeCap
	}

	g.planCache.Set(ctx, "current", plan, g.config.CacheTTL)
	g.metrics.feeCapGwei.Record(ctx, plan.FeeCapGwei())

	span.SetAttributes(
		attribute.Float64("fee_cap_gwei", plan.FeeCapGwei()),
		attribute.Bool("legacy", plan.Legacy),
	)
	span.SetStatus(codes.Ok, "fetched")

	return plan, nil
}

func (g *GasOracle) fetchPlan(ctx context.Context) (*domain.FeePlan, error) {
	header, err := g.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("latest header: %w", err)
	}

	if header.BaseFee == nil {
		gasPrice, err := g.client.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("suggest gas price: %w", err)
		}
		return domain.NewLegacyFeePlan(gasPrice, g.config.BumpFactor), nil
	}

	tipCap, err := g.client.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest tip cap: %w", err)
	}

	return domain.NewFeePlan(header.BaseFee, tipCap, g.config.BumpFactor), nil
}

// EstimateGas estimates the gas needed for a call, padded by the configured
// percentage.
func (g *GasOracle) EstimateGas(ctx context.Context, from common.Address, to common.Address, data []byte, value *big.Int) (uint64, error) {
	ctx, span := g.tracer.Start(ctx, "gas.estimate",
		trace.WithAttributes(
			attribute.String("to", to.Hex()),
			attribute.Int("data_len", len(data)),
		),
	)
	defer span.End()

	g.metrics.estimateGas.Add(ctx, 1)

	msg := ethereum.CallMsg{
		From:  from,
		To:    &to,
		Data:  data,
		Value: value,
	}

	gas, err := g.client.EstimateGas(ctx, msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "estimate failed")
		return 0, apperror.New(apperror.CodeGasEstimationFailed,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("failed to estimate gas for %s", to.Hex())))
	}

	gas = gas + (gas * g.config.EstimatePad / 100)

	span.SetAttributes(attribute.Int64("gas", int64(gas)))
	span.SetStatus(codes.Ok, "estimated")

	return gas, nil
}

// FullEstimate returns a gas estimate including the current fee plan, using
// the default gas limit when estimation fails.
func (g *GasOracle) FullEstimate(ctx context.Context, from common.Address, to common.Address, data []byte, value *big.Int) (*domain.GasEstimate, error) {
	ctx, span := g.tracer.Start(ctx, "gas.full_estimate")
	defer span.End()

	plan, err := g.SuggestFees(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	gasLimit, err := g.EstimateGas(ctx, from, to, data, value)
	if err != nil {
		gasLimit = g.config.DefaultGas
		span.AddEvent("using_default_gas", trace.WithAttributes(
			attribute.Int64("default", int64(gasLimit))))
	}

	estimate := domain.NewGasEstimate(gasLimit, plan)

	span.SetAttributes(
		attribute.Int64("gas_limit", int64(estimate.GasLimit)),
		attribute.Float64("fee_cap_gwei", plan.FeeCapGwei()),
	)
	span.SetStatus(codes.Ok, "estimated")

	return estimate, nil
}

// Close releases oracle resources. The shared chain client is owned by the
// monolith and is not closed here.
func (g *GasOracle) Close() error {
	g.planCache.Close()
	return nil
}
