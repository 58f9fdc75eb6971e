// Package coingecko provides a reference price source backed by the
// CoinGecko simple price API. Prices come back in USD, so pairs quoted in
// dollar-pegged stables are marked as derived.
package coingecko

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowsniper/flowsniper/business/pricing/domain"
	"github.com/flowsniper/flowsniper/internal/apperror"
	"github.com/flowsniper/flowsniper/internal/httpclient"
	"github.com/flowsniper/flowsniper/internal/logger"
	"github.com/flowsniper/flowsniper/internal/ratelimit"
)

const (
	tracerName = "github.com/flowsniper/flowsniper/business/pricing/infra/coingecko"

	// DefaultBaseURL is the CoinGecko public API host.
	DefaultBaseURL = "https://api.coingecko.com"

	simplePriceEndpoint = "/api/v3/simple/price"

	httpTimeout = 5 * time.Second

	// Free tier allows roughly 30 calls/min; stay under it.
	requestsPerMinute = 25
)

// coinIDs maps exchange tickers to CoinGecko coin ids.
var coinIDs = map[string]string{
	"ETH":  "ethereum",
	"BTC":  "bitcoin",
	"POL":  "polygon-ecosystem-token",
	"LINK": "chainlink",
	"USDT": "tether",
	"USDC": "usd-coin",
	"DAI":  "dai",
}

// dollarStables are quote assets treated as 1 USD when deriving pair rates.
var dollarStables = map[string]bool{
	"USDT": true,
	"USDC": true,
	"DAI":  true,
}

// Config holds configuration for the CoinGecko provider.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL: DefaultBaseURL,
		Timeout: httpTimeout,
	}
}

// Provider implements app.PriceSource against CoinGecko's simple price API.
type Provider struct {
	client  httpclient.Client
	limiter *ratelimit.Limiter
	logger  logger.LoggerInterface
	tracer  trace.Tracer
}

// NewProvider creates a new CoinGecko price source.
func NewProvider(cfg Config, log logger.LoggerInterface) (*Provider, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = httpTimeout
	}

	tracer := otel.Tracer(tracerName)

	client, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName("coingecko"),
		httpclient.WithBaseURL(baseURL),
		httpclient.WithRequestTimeout(timeout),
		httpclient.WithTraceOptions(tracer, httpclient.TraceRequest, httpclient.TraceResponse),
		httpclient.WithHeaders(map[string]string{
			"Accept": "application/json",
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	return &Provider{
		client:  client,
		limiter: ratelimit.New(requestsPerMinute),
		logger:  log,
		tracer:  tracer,
	}, nil
}

// Name identifies the source.
func (p *Provider) Name() string { return "coingecko" }

// SpotPrice fetches the USD price for the base asset and derives the pair
// rate. Only dollar-pegged quote assets are supported.
func (p *Provider) SpotPrice(ctx context.Context, pair domain.Pair) (*domain.ReferencePrice, error) {
	baseTicker := domain.UnwrapSymbol(pair.Base.Symbol())
	quoteTicker := domain.UnwrapSymbol(pair.Quote.Symbol())

	ctx, span := p.tracer.Start(ctx, "coingecko.spot_price",
		trace.WithAttributes(
			attribute.String("base", baseTicker),
			attribute.String("quote", quoteTicker),
		),
	)
	defer span.End()

	coinID, ok := coinIDs[baseTicker]
	if !ok {
		return nil, apperror.New(apperror.CodePairUnsupported,
			apperror.WithContext(fmt.Sprintf("no coingecko id for %s", baseTicker)))
	}
	if !dollarStables[quoteTicker] {
		return nil, apperror.New(apperror.CodePairUnsupported,
			apperror.WithContext(fmt.Sprintf("coingecko source only quotes dollar stables, got %s", quoteTicker)))
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, apperror.New(apperror.CodeRateLimitExceeded,
			apperror.WithCause(err),
			apperror.WithContext("coingecko rate limit wait aborted"))
	}

	// Response shape: {"ethereum": {"usd": 3400.12}}
	var result map[string]map[string]decimal.Decimal
	resp, err := p.client.NewRequestWithOptions(
		httpclient.WithLabels(
			httpclient.NewLabel("endpoint", "simple_price"),
			httpclient.NewLabel("coin", coinID),
		),
	).
		SetQueryParam("ids", coinID).
		SetQueryParam("vs_currencies", "usd").
		SetResult(&result).
		Get(ctx, simplePriceEndpoint)

	if err != nil {
		span.RecordError(err)
		return nil, apperror.New(apperror.CodePriceSourceFailed,
			apperror.WithCause(err),
			apperror.WithContext("coingecko simple price request failed"))
	}

	if resp.IsError() {
		if resp.StatusCode == 429 {
			return nil, apperror.New(apperror.CodeRateLimitExceeded,
				apperror.WithContext("coingecko rate limited"))
		}
		return nil, apperror.New(apperror.CodePriceSourceFailed,
			apperror.WithContext(fmt.Sprintf("HTTP %d: %s", resp.StatusCode, resp.String())))
	}

	usd, ok := result[coinID]["usd"]
	if !ok || usd.IsZero() {
		return nil, apperror.New(apperror.CodePriceSourceFailed,
			apperror.WithContext(fmt.Sprintf("coingecko returned no usd price for %s", coinID)))
	}

	span.SetAttributes(attribute.String("usd", usd.String()))

	p.logger.Debug(ctx, "coingecko usd price",
		"coin", coinID, "usd", usd.String(), "quote", strings.ToLower(quoteTicker))

	// The stable quote is treated as exactly 1 USD, hence derived.
	return domain.NewReferencePrice(pair, usd, p.Name(), true), nil
}
