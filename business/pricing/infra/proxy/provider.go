// Package proxy provides a reference price source backed by a self-hosted
// price proxy, used to front rate-limited public APIs with a single cached
// upstream. It is first in the oracle chain when configured.
package proxy

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowsniper/flowsniper/business/pricing/domain"
	"github.com/flowsniper/flowsniper/internal/apperror"
	"github.com/flowsniper/flowsniper/internal/httpclient"
	"github.com/flowsniper/flowsniper/internal/logger"
)

const (
	tracerName = "github.com/flowsniper/flowsniper/business/pricing/infra/proxy"

	priceEndpoint = "/api/price"

	httpTimeout = 5 * time.Second
)

// Config holds configuration for the proxy provider.
type Config struct {
	BaseURL string // required, no default
	Timeout time.Duration
}

// Provider implements app.PriceSource against the price proxy.
type Provider struct {
	client httpclient.Client
	logger logger.LoggerInterface
	tracer trace.Tracer
}

// NewProvider creates a new proxy price source.
func NewProvider(cfg Config, log logger.LoggerInterface) (*Provider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("proxy provider requires a base URL")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = httpTimeout
	}

	tracer := otel.Tracer(tracerName)

	client, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName("price-proxy"),
		httpclient.WithBaseURL(cfg.BaseURL),
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
		client: client,
		logger: log,
		tracer: tracer,
	}, nil
}

// Name identifies the source.
func (p *Provider) Name() string { return "proxy" }

// priceResponse is the proxy's /api/price response.
type priceResponse struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
	Source string          `json:"source,omitempty"`
}

// SpotPrice fetches the pair price from the proxy.
func (p *Provider) SpotPrice(ctx context.Context, pair domain.Pair) (*domain.ReferencePrice, error) {
	symbol := pair.TickerSymbol()

	ctx, span := p.tracer.Start(ctx, "proxy.spot_price",
		trace.WithAttributes(attribute.String("symbol", symbol)),
	)
	defer span.End()

	var result priceResponse
	resp, err := p.client.NewRequestWithOptions(
		httpclient.WithLabels(
			httpclient.NewLabel("endpoint", "price"),
			httpclient.NewLabel("symbol", symbol),
		),
	).
		SetQueryParam("symbol", symbol).
		SetResult(&result).
		Get(ctx, priceEndpoint)

	if err != nil {
		span.RecordError(err)
		return nil, apperror.New(apperror.CodePriceSourceFailed,
			apperror.WithCause(err),
			apperror.WithContext("price proxy request failed"))
	}

	if resp.StatusCode == 404 {
		return nil, apperror.New(apperror.CodePairUnsupported,
			apperror.WithContext(fmt.Sprintf("proxy has no price for %s", symbol)))
	}

	if resp.IsError() {
		return nil, apperror.New(apperror.CodePriceSourceFailed,
			apperror.WithContext(fmt.Sprintf("HTTP %d: %s", resp.StatusCode, resp.String())))
	}

	if result.Price.IsZero() {
		return nil, apperror.New(apperror.CodePriceSourceFailed,
			apperror.WithContext(fmt.Sprintf("proxy returned zero price for %s", symbol)))
	}

	span.SetAttributes(attribute.String("price", result.Price.String()))

	p.logger.Debug(ctx, "proxy spot price",
		"symbol", symbol, "price", result.Price.String(), "upstream", result.Source)

	return domain.NewReferencePrice(pair, result.Price, p.Name(), false), nil
}
