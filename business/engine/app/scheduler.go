package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	arbApp "github.com/flowsniper/flowsniper/business/arbitrage/app"
	arbDomain "github.com/flowsniper/flowsniper/business/arbitrage/domain"
	"github.com/flowsniper/flowsniper/business/engine/domain"
	execDomain "github.com/flowsniper/flowsniper/business/execution/domain"
	marketDomain "github.com/flowsniper/flowsniper/business/market/domain"
	pricingDomain "github.com/flowsniper/flowsniper/business/pricing/domain"
	"github.com/flowsniper/flowsniper/internal/apperror"
	"github.com/flowsniper/flowsniper/internal/asset"
	"github.com/flowsniper/flowsniper/internal/logger"
)

const (
	tracerName = "github.com/flowsniper/flowsniper/business/engine/app"
	meterName  = "github.com/flowsniper/flowsniper/business/engine/app"
)

// SchedulerConfig holds the scan loop's static configuration. Strategy
// parameters live in domain.Params and can change while running.
type SchedulerConfig struct {
	// Pairs is the symbol batch scanned each cycle.
	Pairs []pricingDomain.Pair

	// DefaultParams seeds the strategy parameters; Start merges its
	// arguments onto them, so a bare Start runs the configured defaults.
	DefaultParams domain.Params

	// NativePair prices the gas token in quote units for profit math.
	NativePair pricingDomain.Pair

	// GasLimitSwap sizes the per-swap gas cost estimate.
	GasLimitSwap uint64

	// FallbackGasCost (quote tokens per swap) is used when the native
	// price is unavailable. Overestimating is the safe direction.
	FallbackGasCost decimal.Decimal

	// TradeCooldown is the minimum spacing between executed round trips.
	TradeCooldown time.Duration

	// DemoMode tracks simulated gas spend instead of real balances.
	DemoMode bool
}

// DefaultSchedulerConfig returns defaults sized for Polygon gas.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		GasLimitSwap:    350_000,
		FallbackGasCost: decimal.RequireFromString("0.05"),
		TradeCooldown:   30 * time.Second,
	}
}

type schedulerMetrics struct {
	cycles      metric.Int64Counter
	trades      metric.Int64Counter
	skips       metric.Int64Counter
	tradeErrors metric.Int64Counter
	cycleTime   metric.Float64Histogram
	tradePnl    metric.Float64Histogram
}

// Scheduler drives the scan loop: trigger, fan-out price+quote fetch,
// detection, serialized execution, audit trail. It owns all engine state;
// the control surface only sees snapshots.
type Scheduler struct {
	cfg SchedulerConfig

	oracle       ReferencePricer
	quoter       Quoter
	judge        OpportunityJudge
	trader       Trader
	consolidator Consolidator
	fees         FeePlanner
	trigger      ScanTrigger
	advisor      Advisor     // optional
	sink         FlowSink    // optional
	store        ParamsStore // optional
	logger       logger.LoggerInterface

	mu           sync.RWMutex
	state        domain.State
	mode         string
	params       domain.Params
	dailyPnl     decimal.Decimal
	simGas       decimal.Decimal
	trades       int
	cycles       int
	startedAt    time.Time
	lastActivity time.Time
	lastTrade    time.Time
	cancel       context.CancelFunc
	done         chan struct{}

	tracer  trace.Tracer
	metrics *schedulerMetrics
}

// NewScheduler creates the scheduler. Advisor, sink and store may be nil.
func NewScheduler(
	cfg SchedulerConfig,
	oracle ReferencePricer,
	quoter Quoter,
	judge OpportunityJudge,
	trader Trader,
	consolidator Consolidator,
	fees FeePlanner,
	trigger ScanTrigger,
	advisor Advisor,
	sink FlowSink,
	store ParamsStore,
	log logger.LoggerInterface,
) (*Scheduler, error) {
	if len(cfg.Pairs) == 0 {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("scheduler needs at least one pair"))
	}

	s := &Scheduler{
		cfg:          cfg,
		oracle:       oracle,
		quoter:       quoter,
		judge:        judge,
		trader:       trader,
		consolidator: consolidator,
		fees:         fees,
		trigger:      trigger,
		advisor:      advisor,
		sink:         sink,
		store:        store,
		logger:       log,
		state:        domain.StateStopped,
		params:       cfg.DefaultParams,
		tracer:       otel.Tracer(tracerName),
	}

	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return s, nil
}

func (s *Scheduler) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &schedulerMetrics{}

	s.metrics.cycles, err = meter.Int64Counter(
		"engine_cycles_total",
		metric.WithDescription("Scan cycles run"),
	)
	if err != nil {
		return err
	}

	s.metrics.trades, err = meter.Int64Counter(
		"engine_trades_total",
		metric.WithDescription("Round trips executed"),
	)
	if err != nil {
		return err
	}

	s.metrics.skips, err = meter.Int64Counter(
		"engine_skips_total",
		metric.WithDescription("Detection passes that declined to trade"),
	)
	if err != nil {
		return err
	}

	s.metrics.tradeErrors, err = meter.Int64Counter(
		"engine_trade_errors_total",
		metric.WithDescription("Round trips that failed"),
	)
	if err != nil {
		return err
	}

	s.metrics.cycleTime, err = meter.Float64Histogram(
		"engine_cycle_latency_ms",
		metric.WithDescription("Scan cycle duration"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	s.metrics.tradePnl, err = meter.Float64Histogram(
		"engine_trade_pnl",
		metric.WithDescription("Net profit per round trip in quote tokens"),
	)
	if err != nil {
		return err
	}

	return nil
}

// Start launches the scan loop, or hot-updates parameters when it is already
// running. A fresh start resets the session PnL.
func (s *Scheduler) Start(mode string, params domain.Params) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.StateStopped {
		s.params = s.params.Merge(params)
		if mode != "" {
			s.mode = mode
		}
		s.persistParamsLocked()
		s.logger.Info(context.Background(), "engine parameters hot-updated",
			"mode", s.mode, "trade_amount", s.params.TradeAmount.String())
		return nil
	}

	s.state = domain.StateScanning
	s.mode = mode
	s.params = s.params.Merge(params)
	s.dailyPnl = decimal.Zero
	s.trades = 0
	s.cycles = 0
	s.startedAt = time.Now()
	s.lastActivity = time.Now()
	s.done = make(chan struct{})
	s.persistParamsLocked()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	go s.run(ctx)

	s.logger.Info(ctx, "engine started",
		"mode", mode,
		"trigger", s.trigger.Name(),
		"pairs", len(s.cfg.Pairs),
		"trade_amount", s.params.TradeAmount.String(),
	)
	return nil
}

// Stop asks the loop to exit. Cooperative: an in-flight trade completes
// before the loop observes the cancellation at the top of the next cycle.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if s.state == domain.StateStopped {
		s.mu.Unlock()
		return apperror.New(apperror.CodeEngineNotRunning)
	}
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	cancel()
	<-done
	return nil
}

// UpdateParams merges the given fields into the live parameters and persists
// the result. Works whether or not the loop is running; a stopped engine
// picks the values up on its next Start.
func (s *Scheduler) UpdateParams(params domain.Params) domain.Params {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.params = s.params.Merge(params)
	s.persistParamsLocked()
	return s.params
}

// Snapshot returns a copy of the engine state for the control surface.
func (s *Scheduler) Snapshot() domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return domain.Snapshot{
		State:          s.state,
		Mode:           s.mode,
		Params:         s.params,
		DailyPnl:       s.dailyPnl,
		SimGasBalance:  s.simGas,
		TradesExecuted: s.trades,
		CyclesRun:      s.cycles,
		StartedAt:      s.startedAt,
		LastActivity:   s.lastActivity,
	}
}

// LastActivity returns the time of the most recent FlowStep. The watchdog
// restarts the engine when this goes quiet.
func (s *Scheduler) LastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActivity
}

// liveParams returns the current strategy parameters. Every cycle reads
// them fresh so a hot update applies to the very next detection and trade.
func (s *Scheduler) liveParams() domain.Params {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params
}

// persistParamsLocked writes params through the store; callers hold mu.
func (s *Scheduler) persistParamsLocked() {
	if s.store == nil {
		return
	}
	if err := s.store.Save(s.params); err != nil {
		s.logger.Warn(context.Background(), "params persistence failed", "error", err)
	}
}

func (s *Scheduler) run(ctx context.Context) {
	defer func() {
		s.mu.Lock()
		s.state = domain.StateStopped
		close(s.done)
		s.mu.Unlock()
		s.logger.Info(context.Background(), "engine stopped")
	}()

	triggers, err := s.trigger.Triggers(ctx)
	if err != nil {
		s.logger.Error(ctx, "scan trigger failed to start", "error", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-triggers:
			if !ok {
				return
			}
		}

		if s.drawdownBreached(ctx) {
			return
		}

		if s.advisorHolds(ctx) {
			continue
		}

		s.scanCycle(ctx)
	}
}

// drawdownBreached checks the circuit breaker at the top of the cycle. A
// breach is terminal for the session.
func (s *Scheduler) drawdownBreached(ctx context.Context) bool {
	s.mu.RLock()
	pnl := s.dailyPnl
	limit := s.params.MaxDrawdown
	s.mu.RUnlock()

	if limit.IsZero() || pnl.GreaterThan(limit) {
		return false
	}

	step := domain.NewFlowStep(domain.FlowHalt, "", domain.FlowFailed)
	step.Profit = pnl
	step.Detail = fmt.Sprintf("daily pnl %s breached drawdown limit %s", pnl, limit)
	s.record(ctx, step)

	s.logger.Error(ctx, "drawdown limit breached, engine halting",
		"daily_pnl", pnl.String(), "limit", limit.String())
	return true
}

// advisorHolds consults the optional advisor. Any failure is treated as no
// advice: the advisor can never block trading by being absent or broken.
func (s *Scheduler) advisorHolds(ctx context.Context) bool {
	if s.advisor == nil {
		return false
	}

	advisory, err := s.advisor.Advise(ctx, s.Snapshot())
	if err != nil {
		s.logger.Debug(ctx, "advisor unavailable, proceeding", "error", err)
		return false
	}

	if advisory.Kind == domain.AdvisoryAct && advisory.Strategy != "" {
		s.mu.Lock()
		s.mode = advisory.Strategy
		s.mu.Unlock()
	}

	if advisory.Blocks() {
		step := domain.NewFlowStep(domain.FlowSkip, "", domain.FlowSuccess)
		step.Detail = "advisor hold"
		s.record(ctx, step)
		return true
	}
	return false
}

type scanResult struct {
	pair        pricingDomain.Pair
	opportunity *arbDomain.Opportunity
	verdict     arbDomain.Verdict
	err         error
}

func (s *Scheduler) scanCycle(ctx context.Context) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "engine.scan_cycle")
	defer span.End()

	s.mu.Lock()
	s.cycles++
	params := s.params
	s.mu.Unlock()

	gasCost := s.gasCostInQuote(ctx)

	// Fan out: each pair fetches its reference price and quote snapshot
	// concurrently, then runs detection.
	results := make([]scanResult, len(s.cfg.Pairs))
	g, gctx := errgroup.WithContext(ctx)
	for i, pair := range s.cfg.Pairs {
		g.Go(func() error {
			results[i] = s.scanPair(gctx, pair, params, gasCost)
			return nil
		})
	}
	_ = g.Wait()

	// Fan in: execution is serialized so concurrent winners never race
	// for the same signer nonce.
	for _, res := range results {
		if res.err != nil {
			s.logger.Warn(ctx, "pair scan failed",
				"pair", res.pair.String(), "error", res.err)
			continue
		}
		if res.opportunity == nil {
			s.metrics.skips.Add(ctx, 1,
				metric.WithAttributes(attribute.String("verdict", string(res.verdict))))
			step := domain.NewFlowStep(domain.FlowSkip, res.pair.String(), domain.FlowSuccess)
			step.Detail = string(res.verdict)
			s.record(ctx, step)
			continue
		}

		s.executeOpportunity(ctx, res.pair, res.opportunity)
	}

	s.metrics.cycles.Add(ctx, 1)
	s.metrics.cycleTime.Record(ctx, float64(time.Since(start).Milliseconds()))
	span.SetStatus(codes.Ok, "cycle complete")
}

func (s *Scheduler) scanPair(ctx context.Context, pair pricingDomain.Pair, params domain.Params, gasCost decimal.Decimal) scanResult {
	res := scanResult{pair: pair}
	notional := params.TradeAmount

	var (
		reference *pricingDomain.ReferencePrice
		quotes    *marketDomain.QuoteSet
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ref, err := s.oracle.ReferencePrice(gctx, pair)
		if err != nil {
			// No reference just skips the divergence check.
			s.logger.Debug(gctx, "reference price unavailable",
				"pair", pair.String(), "error", err)
			return nil
		}
		reference = ref
		return nil
	})
	g.Go(func() error {
		q, err := s.quoter.GetQuotes(gctx, pair.Base, pair.Quote, notional)
		if err != nil {
			return err
		}
		quotes = q
		return nil
	})
	if err := g.Wait(); err != nil {
		res.err = err
		return res
	}

	res.opportunity, res.verdict = s.judge.Detect(arbApp.DetectInput{
		Quotes:            quotes,
		Reference:         reference,
		GasCost:           gasCost,
		MinProfitFraction: params.MinProfitFraction,
	})
	return res
}

// gasCostInQuote estimates one swap's gas cost in quote tokens: fee plan
// cost in wei, converted through the native reference price.
func (s *Scheduler) gasCostInQuote(ctx context.Context) decimal.Decimal {
	plan, err := s.fees.SuggestFees(ctx)
	if err != nil {
		s.logger.Debug(ctx, "fee plan unavailable, using fallback gas cost", "error", err)
		return s.cfg.FallbackGasCost
	}

	ref, err := s.oracle.ReferencePrice(ctx, s.cfg.NativePair)
	if err != nil {
		s.logger.Debug(ctx, "native price unavailable, using fallback gas cost", "error", err)
		return s.cfg.FallbackGasCost
	}

	cost := asset.NewAmount(s.cfg.NativePair.Base, plan.CostWei(s.cfg.GasLimitSwap))
	price := asset.NewPrice(s.cfg.NativePair.Base, s.cfg.NativePair.Quote, ref.Rate, ref.Timestamp)

	quoteCost, err := price.Convert(cost)
	if err != nil {
		s.logger.Debug(ctx, "gas cost conversion failed, using fallback", "error", err)
		return s.cfg.FallbackGasCost
	}
	return quoteCost.ToDecimal()
}

func (s *Scheduler) executeOpportunity(ctx context.Context, pair pricingDomain.Pair, opp *arbDomain.Opportunity) {
	s.mu.Lock()
	if s.cfg.TradeCooldown > 0 && time.Since(s.lastTrade) < s.cfg.TradeCooldown {
		s.mu.Unlock()
		step := domain.NewFlowStep(domain.FlowSkip, pair.String(), domain.FlowSuccess)
		step.Detail = "trade cooldown"
		s.record(ctx, step)
		return
	}
	s.state = domain.StateExecuting
	s.lastTrade = time.Now()
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.state == domain.StateExecuting {
			s.state = domain.StateScanning
		}
		s.mu.Unlock()
	}()

	// A submitted trade runs to completion even if Stop fires mid-flight.
	ctx = context.WithoutCancel(ctx)

	ctx, span := s.tracer.Start(ctx, "engine.execute_opportunity",
		trace.WithAttributes(
			attribute.String("pair", pair.String()),
			attribute.String("direction", string(opp.Direction)),
			attribute.String("net_profit", opp.NetProfit.String()),
		),
	)
	defer span.End()

	step := domain.NewFlowStep(domain.FlowTrade, pair.String(), domain.FlowSuccess)
	step.Detail = string(opp.Direction)

	hash, err := s.roundTrip(ctx, pair, opp)
	step.TxHash = hash

	if err != nil {
		s.metrics.tradeErrors.Add(ctx, 1)
		span.SetStatus(codes.Error, err.Error())

		// Only failures that reached the chain burned gas; a refused
		// trade (gas floor, allowance, pairing) costs nothing.
		loss := decimal.Zero
		if code := apperror.GetCode(err); code == apperror.CodeExecutionReverted || code == apperror.CodeTxTimeout {
			loss = opp.GasCost.Neg()
			s.applyPnl(loss)
		}
		step.Status = domain.FlowFailed
		step.Profit = loss
		step.Detail = fmt.Sprintf("%s: %s", opp.Direction, apperror.GetCode(err))
		s.record(ctx, step)

		s.logger.Error(ctx, "round trip failed",
			"pair", pair.String(), "direction", string(opp.Direction), "error", err)
		return
	}

	s.applyPnl(opp.NetProfit)
	step.Profit = opp.NetProfit
	s.record(ctx, step)

	s.mu.Lock()
	s.trades++
	if s.cfg.DemoMode {
		s.simGas = s.simGas.Sub(opp.GasCost)
	}
	s.mu.Unlock()

	s.metrics.trades.Add(ctx, 1,
		metric.WithAttributes(attribute.String("direction", string(opp.Direction))))
	pnl, _ := opp.NetProfit.Float64()
	s.metrics.tradePnl.Record(ctx, pnl)
	span.SetStatus(codes.Ok, "round trip complete")

	s.logger.Info(ctx, "round trip complete",
		"pair", pair.String(),
		"direction", string(opp.Direction),
		"net_profit", opp.NetProfit.String(),
		"hash", hash,
	)

	s.consolidator.MaybeConsolidate(ctx, s.liveParams().ConsolidationThreshold)
}

// roundTrip runs the buy leg, awaits it, then the sell leg. Returns the sell
// leg's hash, which is the one that realizes the profit.
func (s *Scheduler) roundTrip(ctx context.Context, pair pricingDomain.Pair, opp *arbDomain.Opportunity) (string, error) {
	buyVenue, sellVenue := marketDomain.VenueV2, marketDomain.VenueV3
	if opp.Direction == arbDomain.DirectionReverse {
		buyVenue, sellVenue = marketDomain.VenueV3, marketDomain.VenueV2
	}

	slippage := s.liveParams().Slippage

	buyResult, buyTx, err := s.trader.Execute(ctx, execDomain.TradeRequest{
		Venue:     buyVenue,
		TokenIn:   pair.Quote,
		TokenOut:  pair.Base,
		AmountIn:  opp.Notional,
		QuotedOut: opp.BaseAmount,
		Slippage:  slippage,
		FeeTier:   opp.FeeTier,
	})
	if err != nil {
		return "", fmt.Errorf("buy leg: %w", err)
	}
	if buyTx != nil {
		if _, err := s.trader.Await(ctx, buyTx); err != nil {
			return buyResult.Hash.Hex(), fmt.Errorf("buy leg: %w", err)
		}
	}

	sellResult, sellTx, err := s.trader.Execute(ctx, execDomain.TradeRequest{
		Venue:     sellVenue,
		TokenIn:   pair.Base,
		TokenOut:  pair.Quote,
		AmountIn:  opp.BaseAmount,
		QuotedOut: opp.BaseAmount.Mul(opp.SellUnit),
		Slippage:  slippage,
		FeeTier:   opp.FeeTier,
	})
	if err != nil {
		return buyResult.Hash.Hex(), fmt.Errorf("sell leg: %w", err)
	}
	if sellTx != nil {
		if _, err := s.trader.Await(ctx, sellTx); err != nil {
			return sellResult.Hash.Hex(), fmt.Errorf("sell leg: %w", err)
		}
	}

	return sellResult.Hash.Hex(), nil
}

func (s *Scheduler) applyPnl(delta decimal.Decimal) {
	s.mu.Lock()
	s.dailyPnl = s.dailyPnl.Add(delta)
	s.mu.Unlock()
}

// record stamps last-activity and forwards the step to the sink. Every
// outcome flows through here so the watchdog sees a complete pulse.
func (s *Scheduler) record(ctx context.Context, step domain.FlowStep) {
	s.mu.Lock()
	s.lastActivity = step.Timestamp
	s.mu.Unlock()

	if s.sink != nil {
		s.sink.Record(ctx, step)
	}
}
