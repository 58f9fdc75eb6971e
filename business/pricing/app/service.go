package app

import (
	"fmt"
	"time"

	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowsniper/flowsniper/business/pricing/domain"
	"github.com/flowsniper/flowsniper/internal/apperror"
	"github.com/flowsniper/flowsniper/internal/cache"
	"github.com/flowsniper/flowsniper/internal/logger"
)

const (
	tracerName = "github.com/flowsniper/flowsniper/business/pricing/app"
	meterName  = "github.com/flowsniper/flowsniper/business/pricing/app"
)

// OracleConfig holds PriceOracle settings.
type OracleConfig struct {
	CacheTTL time.Duration
}

// DefaultOracleConfig returns the default oracle settings.
func DefaultOracleConfig() OracleConfig {
	return OracleConfig{CacheTTL: 10 * time.Second}
}

// oracleMetrics holds OTEL metric instruments.
type oracleMetrics struct {
	lookups      metric.Int64Counter
	cacheHits    metric.Int64Counter
	sourceErrors metric.Int64Counter
	allFailed    metric.Int64Counter
	rate         metric.Float64Gauge
}

// PriceOracle resolves reference prices through an ordered source chain
// with a short-lived cache in front. The first source that answers wins;
// a cached answer within its TTL short-circuits the chain entirely.
type PriceOracle struct {
	sources []PriceSource
	cache   *cache.Cache[string, *domain.ReferencePrice]
	ttl     time.Duration
	logger  logger.LoggerInterface

	tracer  trace.Tracer
	metrics *oracleMetrics
}

// NewPriceOracle creates an oracle over the given ordered sources.
func NewPriceOracle(cfg OracleConfig, sources []PriceSource, log logger.LoggerInterface) (*PriceOracle, error) {
	o := &PriceOracle{
		sources: sources,
		cache:   cache.New[string, *domain.ReferencePrice](cfg.CacheTTL),
		ttl:     cfg.CacheTTL,
		logger:  log,
		tracer:  otel.Tracer(tracerName),
	}

	if err := o.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return o, nil
}

func (o *PriceOracle) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	o.metrics = &oracleMetrics{}

	o.metrics.lookups, err = meter.Int64Counter(
		"price_lookups_total",
		metric.WithDescription("Total reference price lookups"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return err
	}

	o.metrics.cacheHits, err = meter.Int64Counter(
		"price_cache_hits_total",
		metric.WithDescription("Reference price cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return err
	}

	o.metrics.sourceErrors, err = meter.Int64Counter(
		"price_source_errors_total",
		metric.WithDescription("Per-source reference price failures"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}

	o.metrics.allFailed, err = meter.Int64Counter(
		"price_chain_exhausted_total",
		metric.WithDescription("Lookups where every source failed"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return err
	}

	o.metrics.rate, err = meter.Float64Gauge(
		"reference_price",
		metric.WithDescription("Last resolved reference price"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	return nil
}

// ReferencePrice resolves the pair through the cache and source chain.
// When every source fails it returns a NO_PRICE error; callers decide
// whether that aborts their operation or merely disables a sanity check.
func (o *PriceOracle) ReferencePrice(ctx context.Context, pair domain.Pair) (*domain.ReferencePrice, error) {
	ctx, span := o.tracer.Start(ctx, "pricing.reference_price",
		trace.WithAttributes(attribute.String("pair", pair.String())),
	)
	defer span.End()

	o.metrics.lookups.Add(ctx, 1)

	key := pair.String()
	if price, found := o.cache.Get(ctx, key); found {
		o.metrics.cacheHits.Add(ctx, 1)
		span.AddEvent("cache_hit", trace.WithAttributes(attribute.String("source", price.Source)))
		return price, nil
	}

	for _, source := range o.sources {
		price, err := source.SpotPrice(ctx, pair)
		if err != nil {
			o.metrics.sourceErrors.Add(ctx, 1,
				metric.WithAttributes(attribute.String("source", source.Name())))
			span.AddEvent("source_failed", trace.WithAttributes(
				attribute.String("source", source.Name())))
			o.logger.Warn(ctx, "price source failed, trying next",
				"source", source.Name(), "pair", key, "error", err)
			continue
		}
		if price == nil || !price.Rate.IsPositive() {
			o.logger.Warn(ctx, "price source returned non-positive price",
				"source", source.Name(), "pair", key)
			continue
		}

		o.cache.Set(ctx, key, price, o.ttl)

		rate, _ := price.Rate.Float64()
		o.metrics.rate.Record(ctx, rate,
			metric.WithAttributes(attribute.String("pair", key)))
		span.SetAttributes(
			attribute.String("source", price.Source),
			attribute.Bool("derived", price.Derived),
			attribute.Float64("rate", rate),
		)
		span.SetStatus(codes.Ok, "resolved")

		return price, nil
	}

	o.metrics.allFailed.Add(ctx, 1)
	span.SetStatus(codes.Error, "all sources failed")
	return nil, apperror.New(apperror.CodeNoPrice,
		apperror.WithContext(fmt.Sprintf("no source could price %s", key)))
}

// Invalidate drops any cached price for the pair.
func (o *PriceOracle) Invalidate(ctx context.Context, pair domain.Pair) {
	o.cache.Delete(ctx, pair.String())
}

// Close releases oracle resources.
func (o *PriceOracle) Close() error {
	o.cache.Close()
	return nil
}
