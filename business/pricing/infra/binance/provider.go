// Package binance provides a reference price source backed by the Binance
// public spot ticker API.
package binance

import (
	"context"
	"encoding/json"
	"errors"
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
	tracerName = "github.com/flowsniper/flowsniper/business/pricing/infra/binance"

	// DefaultBaseURL is the Binance public API host.
	DefaultBaseURL = "https://api.binance.com"

	tickerEndpoint = "/api/v3/ticker/price"

	httpTimeout = 5 * time.Second
)

// Config holds configuration for the Binance provider.
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

// Provider implements app.PriceSource against Binance's spot ticker.
type Provider struct {
	client httpclient.Client
	logger logger.LoggerInterface
	tracer trace.Tracer
}

// NewProvider creates a new Binance price source.
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
		httpclient.WithProviderName("binance"),
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
		client: client,
		logger: log,
		tracer: tracer,
	}, nil
}

// Name identifies the source.
func (p *Provider) Name() string { return "binance" }

// tickerResponse is the /api/v3/ticker/price response.
type tickerResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// SpotPrice fetches the last traded spot price for the pair.
func (p *Provider) SpotPrice(ctx context.Context, pair domain.Pair) (*domain.ReferencePrice, error) {
	symbol := pair.TickerSymbol()

	ctx, span := p.tracer.Start(ctx, "binance.spot_price",
		trace.WithAttributes(attribute.String("symbol", symbol)),
	)
	defer span.End()

	var result tickerResponse
	resp, err := p.client.NewRequestWithOptions(
		httpclient.WithLabels(
			httpclient.NewLabel("endpoint", "ticker_price"),
			httpclient.NewLabel("symbol", symbol),
		),
		httpclient.WithResponseErrorHandler(binanceErrorHandler),
	).
		SetQueryParam("symbol", symbol).
		SetResult(&result).
		Get(ctx, tickerEndpoint)

	if err != nil {
		span.RecordError(err)
		// Binance answers code -1121 for unknown symbols.
		var apiErr *binanceAPIError
		if errors.As(err, &apiErr) && apiErr.Code == -1121 {
			return nil, apperror.New(apperror.CodePairUnsupported,
				apperror.WithContext(fmt.Sprintf("binance has no ticker for %s", symbol)))
		}
		return nil, apperror.New(apperror.CodePriceSourceFailed,
			apperror.WithCause(err),
			apperror.WithContext("binance ticker request failed"))
	}

	if resp.IsError() {
		return nil, apperror.New(apperror.CodePriceSourceFailed,
			apperror.WithContext(fmt.Sprintf("HTTP %d: %s", resp.StatusCode, resp.String())))
	}

	rate, err := decimal.NewFromString(result.Price)
	if err != nil {
		span.RecordError(err)
		return nil, apperror.New(apperror.CodeInvalidFormat,
			apperror.WithCause(err),
			apperror.WithContext("binance price not numeric"))
	}

	span.SetAttributes(attribute.String("price", rate.String()))

	p.logger.Debug(ctx, "binance spot price", "symbol", symbol, "price", rate.String())

	return domain.NewReferencePrice(pair, rate, p.Name(), false), nil
}

// binanceAPIError represents an error response from the Binance API.
type binanceAPIError struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
}

func (e *binanceAPIError) Error() string {
	return fmt.Sprintf("binance API error %d: %s", e.Code, e.Message)
}

func binanceErrorHandler(statusCode int, body []byte) error {
	if statusCode >= 400 {
		var apiErr binanceAPIError
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Code != 0 {
			return &apiErr
		}
		return fmt.Errorf("HTTP %d: %s", statusCode, string(body))
	}
	return nil
}
