package app

import (
	"context"
	"math/big"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowsniper/flowsniper/internal/asset"
	"github.com/flowsniper/flowsniper/internal/logger"
)

// ConsolidationConfig controls profit sweeps to the paired owner.
type ConsolidationConfig struct {
	// Threshold is the stable balance (raw units) above which the
	// operator's holdings are swept to the owner. Zero disables sweeps.
	Threshold *big.Int

	// Stable is the token being consolidated.
	Stable *asset.Asset
}

// ConsolidationService moves accumulated stable profit from the operator key
// to the paired owner wallet. It is invoked after settled trades and is
// strictly best-effort: a failed sweep is logged and retried on the next
// settlement.
type ConsolidationService struct {
	cfg     ConsolidationConfig
	custody Custody
	tokens  TokenReader
	router  VenueRouter
	logger  logger.LoggerInterface

	tracer trace.Tracer
	sweeps metric.Int64Counter
	errors metric.Int64Counter
}

// NewConsolidationService creates the service.
func NewConsolidationService(cfg ConsolidationConfig, custody Custody, tokens TokenReader, router VenueRouter, log logger.LoggerInterface) (*ConsolidationService, error) {
	s := &ConsolidationService{
		cfg:     cfg,
		custody: custody,
		tokens:  tokens,
		router:  router,
		logger:  log,
		tracer:  otel.Tracer(tracerName),
	}

	meter := otel.Meter(meterName)
	var err error

	s.sweeps, err = meter.Int64Counter(
		"consolidation_sweeps_total",
		metric.WithDescription("Profit sweeps sent to the owner"),
	)
	if err != nil {
		return nil, err
	}

	s.errors, err = meter.Int64Counter(
		"consolidation_errors_total",
		metric.WithDescription("Profit sweeps that failed"),
	)
	if err != nil {
		return nil, err
	}

	return s, nil
}

// MaybeConsolidate sweeps the operator's full stable balance to the owner
// when it crosses the threshold. A positive threshold (human units)
// overrides the configured one, so the engine's live parameters apply
// without a restart. Never returns an error: failures are logged and the
// balance stays with the operator until the next attempt.
func (s *ConsolidationService) MaybeConsolidate(ctx context.Context, threshold decimal.Decimal) {
	limit := s.cfg.Threshold
	if threshold.IsPositive() {
		limit = threshold.Shift(int32(s.cfg.Stable.Decimals())).BigInt()
	}
	if limit == nil || limit.Sign() == 0 {
		return
	}

	owner, paired := s.custody.Owner()
	if !paired {
		return
	}
	operator := s.custody.Operator()
	if owner == operator {
		return
	}

	ctx, span := s.tracer.Start(ctx, "execution.consolidate")
	defer span.End()

	balance, err := s.tokens.BalanceOf(ctx, s.cfg.Stable.Address(), operator)
	if err != nil {
		s.errors.Add(ctx, 1)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Warn(ctx, "consolidation balance read failed", "error", err)
		return
	}
	if balance.Cmp(limit) < 0 {
		span.SetStatus(codes.Ok, "below threshold")
		return
	}

	signer, err := s.custody.ResolveSigner(operator)
	if err != nil {
		s.errors.Add(ctx, 1)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Warn(ctx, "consolidation signer unavailable", "error", err)
		return
	}

	hash, err := s.router.Transfer(ctx, signer, s.cfg.Stable.Address(), owner, balance)
	if err != nil {
		s.errors.Add(ctx, 1)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Warn(ctx, "consolidation transfer failed",
			"owner", owner.Hex(), "amount", balance.String(), "error", err)
		return
	}

	s.sweeps.Add(ctx, 1)
	span.SetAttributes(
		attribute.String("owner", owner.Hex()),
		attribute.String("amount", balance.String()),
		attribute.String("tx_hash", hash.Hex()),
	)
	span.SetStatus(codes.Ok, "swept")

	s.logger.Info(ctx, "profit consolidated to owner",
		"owner", owner.Hex(), "amount", balance.String(), "hash", hash.Hex())
}
