// Package bybit provides a reference price source backed by the Bybit
// public spot ticker API.
package bybit

import (
	"context"
	"encoding/json"
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
	tracerName = "github.com/flowsniper/flowsniper/business/pricing/infra/bybit"

	// DefaultBaseURL is the Bybit public API host.
	DefaultBaseURL = "https://api.bybit.com"

	tickersEndpoint = "/v5/market/tickers"

	httpTimeout = 5 * time.Second
)

// Config holds configuration for the Bybit provider.
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

// Provider implements app.PriceSource against Bybit's spot tickers.
type Provider struct {
	client httpclient.Client
	logger logger.LoggerInterface
	tracer trace.Tracer
}

// NewProvider creates a new Bybit price source.
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
		httpclient.WithProviderName("bybit"),
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
func (p *Provider) Name() string { return "bybit" }

// tickersResponse is the /v5/market/tickers envelope.
type tickersResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		Category string `json:"category"`
		List     []struct {
			Symbol    string `json:"symbol"`
			LastPrice string `json:"lastPrice"`
		} `json:"list"`
	} `json:"result"`
}

// SpotPrice fetches the last traded spot price for the pair.
func (p *Provider) SpotPrice(ctx context.Context, pair domain.Pair) (*domain.ReferencePrice, error) {
	symbol := pair.TickerSymbol()

	ctx, span := p.tracer.Start(ctx, "bybit.spot_price",
		trace.WithAttributes(attribute.String("symbol", symbol)),
	)
	defer span.End()

	var result tickersResponse
	resp, err := p.client.NewRequestWithOptions(
		httpclient.WithLabels(
			httpclient.NewLabel("endpoint", "tickers"),
			httpclient.NewLabel("symbol", symbol),
		),
		httpclient.WithResponseErrorHandler(bybitErrorHandler),
	).
		SetQueryParam("category", "spot").
		SetQueryParam("symbol", symbol).
		SetResult(&result).
		Get(ctx, tickersEndpoint)

	if err != nil {
		span.RecordError(err)
		return nil, apperror.New(apperror.CodePriceSourceFailed,
			apperror.WithCause(err),
			apperror.WithContext("bybit tickers request failed"))
	}

	if resp.IsError() {
		return nil, apperror.New(apperror.CodePriceSourceFailed,
			apperror.WithContext(fmt.Sprintf("HTTP %d: %s", resp.StatusCode, resp.String())))
	}

	if result.RetCode != 0 {
		return nil, apperror.New(apperror.CodePriceSourceFailed,
			apperror.WithContext(fmt.Sprintf("bybit retCode %d: %s", result.RetCode, result.RetMsg)))
	}

	if len(result.Result.List) == 0 {
		return nil, apperror.New(apperror.CodePairUnsupported,
			apperror.WithContext(fmt.Sprintf("bybit has no ticker for %s", symbol)))
	}

	rate, err := decimal.NewFromString(result.Result.List[0].LastPrice)
	if err != nil {
		span.RecordError(err)
		return nil, apperror.New(apperror.CodeInvalidFormat,
			apperror.WithCause(err),
			apperror.WithContext("bybit lastPrice not numeric"))
	}

	span.SetAttributes(attribute.String("last_price", rate.String()))

	p.logger.Debug(ctx, "bybit spot price", "symbol", symbol, "price", rate.String())

	return domain.NewReferencePrice(pair, rate, p.Name(), false), nil
}

// bybitAPIError is an error envelope with a non-zero retCode.
type bybitAPIError struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
}

func (e *bybitAPIError) Error() string {
	return fmt.Sprintf("bybit API error %d: %s", e.RetCode, e.RetMsg)
}

func bybitErrorHandler(statusCode int, body []byte) error {
	if statusCode >= 400 {
		var apiErr bybitAPIError
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.RetCode != 0 {
			return &apiErr
		}
		return fmt.Errorf("HTTP %d: %s", statusCode, string(body))
	}
	return nil
}
