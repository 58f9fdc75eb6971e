// Package onchain implements PriceSource against the V3 quoter. It is the
// last resort in the fallback chain: the price it returns is derived from
// the same liquidity the bot trades against, so it can never flag venue
// divergence.
package onchain

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
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowsniper/flowsniper/business/pricing/app"
	"github.com/flowsniper/flowsniper/business/pricing/domain"
	"github.com/flowsniper/flowsniper/internal/apperror"
	"github.com/flowsniper/flowsniper/internal/asset"
	"github.com/flowsniper/flowsniper/internal/circuitbreaker"
	"github.com/flowsniper/flowsniper/internal/logger"
)

const (
	tracerName = "github.com/flowsniper/flowsniper/business/pricing/infra/onchain"
	meterName  = "github.com/flowsniper/flowsniper/business/pricing/infra/onchain"

	sourceName = "onchain"

	// A single reference quote does not need a tier sweep; 0.30% is the
	// deepest tier for the pairs this chain trades.
	defaultFeeTier = 3000
)

// quoterABI covers quoteExactInputSingle, the only quoter method this source
// needs. QuoterV2 is nonpayable but side-effect free, so eth_call works.
const quoterABI = `[
	{
		"inputs": [
			{
				"components": [
					{"internalType": "address", "name": "tokenIn", "type": "address"},
					{"internalType": "address", "name": "tokenOut", "type": "address"},
					{"internalType": "uint256", "name": "amountIn", "type": "uint256"},
					{"internalType": "uint24", "name": "fee", "type": "uint24"},
					{"internalType": "uint160", "name": "sqrtPriceLimitX96", "type": "uint160"}
				],
				"internalType": "struct IQuoterV2.QuoteExactInputSingleParams",
				"name": "params",
				"type": "tuple"
			}
		],
		"name": "quoteExactInputSingle",
		"outputs": [
			{"internalType": "uint256", "name": "amountOut", "type": "uint256"},
			{"internalType": "uint160", "name": "sqrtPriceX96After", "type": "uint160"},
			{"internalType": "uint32", "name": "initializedTicksCrossed", "type": "uint32"},
			{"internalType": "uint256", "name": "gasEstimate", "type": "uint256"}
		],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

// quoteParams mirrors the quoteExactInputSingle input tuple.
type quoteParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	AmountIn          *big.Int
	Fee               *big.Int // uint24
	SqrtPriceLimitX96 *big.Int // uint160, 0 for no limit
}

var _ app.PriceSource = (*Provider)(nil)

type providerMetrics struct {
	lookupsTotal  metric.Int64Counter
	lookupLatency metric.Float64Histogram
	lookupErrors  metric.Int64Counter
}

// Provider derives a reference price from a 1-unit quoteExactInputSingle.
type Provider struct {
	client    *ethclient.Client
	quoter    common.Address
	quoterABI abi.ABI

	logger logger.LoggerInterface
	cb     *circuitbreaker.CircuitBreaker[[]byte]

	tracer  trace.Tracer
	metrics *providerMetrics
}

// NewProvider creates an on-chain price source backed by the given V3 quoter.
func NewProvider(client *ethclient.Client, quoter common.Address, log logger.LoggerInterface) (*Provider, error) {
	parsedABI, err := abi.JSON(strings.NewReader(quoterABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse quoter ABI: %w", err)
	}

	p := &Provider{
		client:    client,
		quoter:    quoter,
		quoterABI: parsedABI,
		logger:    log,
		tracer:    otel.Tracer(tracerName),
	}

	p.cb = circuitbreaker.New[[]byte](circuitbreaker.DefaultConfig("onchain-price"))

	if err := p.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}

	return p, nil
}

func (p *Provider) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	p.metrics = &providerMetrics{}

	p.metrics.lookupsTotal, err = meter.Int64Counter(
		"onchain_price_lookups_total",
		metric.WithDescription("Total on-chain price lookups"),
	)
	if err != nil {
		return err
	}

	p.metrics.lookupLatency, err = meter.Float64Histogram(
		"onchain_price_lookup_latency_ms",
		metric.WithDescription("On-chain price lookup latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	p.metrics.lookupErrors, err = meter.Int64Counter(
		"onchain_price_lookup_errors_total",
		metric.WithDescription("Total on-chain price lookup errors"),
	)
	if err != nil {
		return err
	}

	return nil
}

// Name implements app.PriceSource.
func (p *Provider) Name() string { return sourceName }

// SpotPrice quotes one base unit through the quoter and converts the output
// to a quote-per-base rate. The result is always marked Derived.
func (p *Provider) SpotPrice(ctx context.Context, pair domain.Pair) (*domain.ReferencePrice, error) {
	ctx, span := p.tracer.Start(ctx, "onchain.spot_price",
		trace.WithAttributes(attribute.String("pair", pair.String())),
	)
	defer span.End()

	start := time.Now()
	p.metrics.lookupsTotal.Add(ctx, 1)

	base, err := tokenAddress(pair.Base)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	quote, err := tokenAddress(pair.Quote)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	// One whole base unit keeps the quote representative without moving the pool.
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(pair.Base.Decimals())), nil)

	callData, err := p.quoterABI.Pack("quoteExactInputSingle", quoteParams{
		TokenIn:           base,
		TokenOut:          quote,
		AmountIn:          unit,
		Fee:               big.NewInt(defaultFeeTier),
		SqrtPriceLimitX96: big.NewInt(0),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode quoteExactInputSingle: %w", err)
	}

	result, err := p.cb.Execute(func() ([]byte, error) {
		return p.client.CallContract(ctx, ethereum.CallMsg{
			To:   &p.quoter,
			Data: callData,
		}, nil)
	})

	p.metrics.lookupLatency.Record(ctx, float64(time.Since(start).Milliseconds()))

	if err != nil {
		p.metrics.lookupErrors.Add(ctx, 1)
		span.SetStatus(codes.Error, err.Error())
		return nil, apperror.New(apperror.CodePriceSourceFailed,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("quoter call failed for %s", pair)))
	}

	outputs, err := p.quoterABI.Unpack("quoteExactInputSingle", result)
	if err != nil {
		p.metrics.lookupErrors.Add(ctx, 1)
		span.SetStatus(codes.Error, err.Error())
		return nil, apperror.New(apperror.CodePriceSourceFailed,
			apperror.WithCause(err),
			apperror.WithContext("failed to decode quoteExactInputSingle result"))
	}

	amountOut, ok := outputs[0].(*big.Int)
	if !ok {
		p.metrics.lookupErrors.Add(ctx, 1)
		return nil, apperror.New(apperror.CodePriceSourceFailed,
			apperror.WithContext("unexpected quoteExactInputSingle output shape"))
	}
	if amountOut.Sign() == 0 {
		// The quoter returns zero when no pool backs the pair at this tier.
		span.SetStatus(codes.Error, "no liquidity for pair")
		return nil, apperror.New(apperror.CodePairUnsupported,
			apperror.WithContext(fmt.Sprintf("no liquidity for %s on quoter", pair)))
	}

	rate := asset.NewAmount(pair.Quote, amountOut).ToDecimal()

	span.SetAttributes(attribute.String("rate", rate.String()))
	span.SetStatus(codes.Ok, "price derived")

	p.logger.Debug(ctx, "onchain price derived",
		"pair", pair.String(),
		"rate", rate.String(),
	)

	return domain.NewReferencePrice(pair, rate, sourceName, true), nil
}

// tokenAddress resolves the ERC20 address for an asset, substituting the
// wrapped token for the chain's native coin.
func tokenAddress(a *asset.Asset) (common.Address, error) {
	if a.IsToken() {
		return a.Address(), nil
	}
	if a.IsNative() && a.ChainID() == asset.ChainIDPolygon {
		return asset.AddrWPOLPolygon, nil
	}
	return common.Address{}, apperror.New(apperror.CodePairUnsupported,
		apperror.WithContext(fmt.Sprintf("asset %s has no on-chain address", a.Symbol())))
}
