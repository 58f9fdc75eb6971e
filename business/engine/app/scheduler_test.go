package app

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"

	arbApp "github.com/flowsniper/flowsniper/business/arbitrage/app"
	arbDomain "github.com/flowsniper/flowsniper/business/arbitrage/domain"
	blockchainDomain "github.com/flowsniper/flowsniper/business/blockchain/domain"
	"github.com/flowsniper/flowsniper/business/engine/domain"
	execDomain "github.com/flowsniper/flowsniper/business/execution/domain"
	marketDomain "github.com/flowsniper/flowsniper/business/market/domain"
	pricingDomain "github.com/flowsniper/flowsniper/business/pricing/domain"
	"github.com/flowsniper/flowsniper/internal/apperror"
	"github.com/flowsniper/flowsniper/internal/asset"
	"github.com/flowsniper/flowsniper/internal/testutil"
)

type fakeOracle struct {
	rate decimal.Decimal
}

func (f *fakeOracle) ReferencePrice(_ context.Context, pair pricingDomain.Pair) (*pricingDomain.ReferencePrice, error) {
	return pricingDomain.NewReferencePrice(pair, f.rate, "test", false), nil
}

type fakeQuoter struct {
	mu    sync.Mutex
	calls int
	legs  *marketDomain.QuoteSet // optional canned leg values
}

func (f *fakeQuoter) GetQuotes(_ context.Context, base, quote *asset.Asset, notionalIn decimal.Decimal) (*marketDomain.QuoteSet, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	set := &marketDomain.QuoteSet{
		Base:       base,
		Quote:      quote,
		NotionalIn: notionalIn,
		Timestamp:  time.Now(),
	}
	if f.legs != nil {
		set.V2BuyOut = f.legs.V2BuyOut
		set.V2SellUnit = f.legs.V2SellUnit
		set.V3BuyOut = f.legs.V3BuyOut
		set.V3BuyFeeTier = f.legs.V3BuyFeeTier
		set.V3SellUnit = f.legs.V3SellUnit
		set.V3SellFeeTier = f.legs.V3SellFeeTier
	}
	return set, nil
}

func (f *fakeQuoter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeJudge returns a canned verdict; when tradeable it builds an
// opportunity carrying the gas cost it was handed.
type fakeJudge struct {
	verdict arbDomain.Verdict
	profit  decimal.Decimal
}

func (f *fakeJudge) Detect(in arbApp.DetectInput) (*arbDomain.Opportunity, arbDomain.Verdict) {
	if f.verdict != arbDomain.VerdictTrade {
		return nil, f.verdict
	}
	return &arbDomain.Opportunity{
		ID:         "opp",
		Timestamp:  time.Now(),
		Direction:  arbDomain.DirectionForward,
		Quotes:     in.Quotes,
		Notional:   in.Quotes.NotionalIn,
		BaseAmount: decimal.RequireFromString("5"),
		SellUnit:   decimal.RequireFromString("2.05"),
		NetProfit:  f.profit,
		GasCost:    in.GasCost,
	}, arbDomain.VerdictTrade
}

// recordingJudge captures every detection input and never trades.
type recordingJudge struct {
	mu     sync.Mutex
	inputs []arbApp.DetectInput
}

func (r *recordingJudge) Detect(in arbApp.DetectInput) (*arbDomain.Opportunity, arbDomain.Verdict) {
	r.mu.Lock()
	r.inputs = append(r.inputs, in)
	r.mu.Unlock()
	return nil, arbDomain.VerdictNoRoute
}

func (r *recordingJudge) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inputs)
}

type fakeTrader struct {
	mu      sync.Mutex
	execs   int
	reqs    []execDomain.TradeRequest
	execErr error

	entered chan struct{} // closed once the first Execute is reached
	release chan struct{} // Execute blocks until closed, when non-nil
	once    sync.Once
}

func (f *fakeTrader) Execute(_ context.Context, req execDomain.TradeRequest) (*execDomain.TradeResult, *types.Transaction, error) {
	f.once.Do(func() {
		if f.entered != nil {
			close(f.entered)
		}
	})
	if f.release != nil {
		<-f.release
	}

	f.mu.Lock()
	f.execs++
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()

	if f.execErr != nil {
		return nil, nil, f.execErr
	}
	return &execDomain.TradeResult{
		Hash:      common.HexToHash("0xfeed"),
		Simulated: true,
		Submitted: time.Now(),
	}, nil, nil
}

func (f *fakeTrader) Await(context.Context, *types.Transaction) (*types.Receipt, error) {
	return &types.Receipt{Status: types.ReceiptStatusSuccessful}, nil
}

func (f *fakeTrader) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.execs
}

func (f *fakeTrader) requests() []execDomain.TradeRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]execDomain.TradeRequest(nil), f.reqs...)
}

type fakeConsolidator struct {
	mu         sync.Mutex
	calls      int
	thresholds []decimal.Decimal
}

func (f *fakeConsolidator) MaybeConsolidate(_ context.Context, threshold decimal.Decimal) {
	f.mu.Lock()
	f.calls++
	f.thresholds = append(f.thresholds, threshold)
	f.mu.Unlock()
}

type failingFees struct{}

func (failingFees) SuggestFees(context.Context) (*blockchainDomain.FeePlan, error) {
	return nil, apperror.New(apperror.CodeChainRPCError)
}

type workingFees struct {
	plan *blockchainDomain.FeePlan
}

func (f workingFees) SuggestFees(context.Context) (*blockchainDomain.FeePlan, error) {
	return f.plan, nil
}

// manualTrigger lets the test fire cycles deterministically.
type manualTrigger struct {
	ch chan struct{}
}

func newManualTrigger() *manualTrigger {
	return &manualTrigger{ch: make(chan struct{})}
}

func (m *manualTrigger) Name() string { return "manual" }

func (m *manualTrigger) Triggers(context.Context) (<-chan struct{}, error) {
	return m.ch, nil
}

func (m *manualTrigger) fire(t *testing.T) {
	t.Helper()
	select {
	case m.ch <- struct{}{}:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not consume trigger")
	}
}

type captureSink struct {
	mu    sync.Mutex
	steps []domain.FlowStep
}

func (c *captureSink) Record(_ context.Context, step domain.FlowStep) {
	c.mu.Lock()
	c.steps = append(c.steps, step)
	c.mu.Unlock()
}

func (c *captureSink) byType(flowType domain.FlowType) []domain.FlowStep {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domain.FlowStep
	for _, s := range c.steps {
		if s.Type == flowType {
			out = append(out, s)
		}
	}
	return out
}

type fixture struct {
	scheduler    *Scheduler
	trigger      *manualTrigger
	quoter       *fakeQuoter
	trader       *fakeTrader
	consolidator *fakeConsolidator
	sink         *captureSink
}

func newFixture(t *testing.T, cfg SchedulerConfig, judge OpportunityJudge, trader *fakeTrader, advisor Advisor) *fixture {
	t.Helper()

	if len(cfg.Pairs) == 0 {
		cfg.Pairs = []pricingDomain.Pair{pricingDomain.NewPair(asset.WETH, asset.USDT)}
	}
	if cfg.NativePair == (pricingDomain.Pair{}) {
		cfg.NativePair = pricingDomain.NewPair(asset.POL, asset.USDT)
	}

	f := &fixture{
		trigger:      newManualTrigger(),
		quoter:       &fakeQuoter{},
		trader:       trader,
		consolidator: &fakeConsolidator{},
		sink:         &captureSink{},
	}

	s, err := NewScheduler(cfg,
		&fakeOracle{rate: decimal.RequireFromString("2")},
		f.quoter, judge, trader, f.consolidator, failingFees{},
		f.trigger, advisor, f.sink, nil, testutil.NopLogger())
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	f.scheduler = s
	return f
}

func defaultParams() domain.Params {
	return domain.Params{
		TradeAmount:       decimal.RequireFromString("10"),
		Slippage:          decimal.RequireFromString("0.005"),
		MinProfitFraction: decimal.RequireFromString("0.001"),
		MaxDrawdown:       decimal.RequireFromString("-5"),
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSchedulerRecordsSkipVerdicts(t *testing.T) {
	f := newFixture(t, DefaultSchedulerConfig(),
		&fakeJudge{verdict: arbDomain.VerdictBelowThreshold}, &fakeTrader{}, nil)

	if err := f.scheduler.Start("live", defaultParams()); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.trigger.fire(t)
	waitFor(t, "skip step", func() bool { return len(f.sink.byType(domain.FlowSkip)) == 1 })

	if err := f.scheduler.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	skips := f.sink.byType(domain.FlowSkip)
	if skips[0].Detail != string(arbDomain.VerdictBelowThreshold) {
		t.Fatalf("skip detail = %s", skips[0].Detail)
	}
	if f.trader.count() != 0 {
		t.Fatal("skip verdict must not trade")
	}
}

func TestSchedulerExecutesAndConsolidates(t *testing.T) {
	cfg := DefaultSchedulerConfig()
	cfg.TradeCooldown = 0

	judge := &fakeJudge{verdict: arbDomain.VerdictTrade, profit: decimal.RequireFromString("0.21")}
	f := newFixture(t, cfg, judge, &fakeTrader{}, nil)

	if err := f.scheduler.Start("live", defaultParams()); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.trigger.fire(t)
	waitFor(t, "trade step", func() bool { return len(f.sink.byType(domain.FlowTrade)) == 1 })

	if err := f.scheduler.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	// Two legs per round trip.
	if f.trader.count() != 2 {
		t.Fatalf("executes = %d, want 2", f.trader.count())
	}
	if f.consolidator.calls != 1 {
		t.Fatalf("consolidations = %d, want 1", f.consolidator.calls)
	}

	snap := f.scheduler.Snapshot()
	if snap.TradesExecuted != 1 {
		t.Fatalf("trades executed = %d, want 1", snap.TradesExecuted)
	}
	if got, want := snap.DailyPnl.String(), "0.21"; got != want {
		t.Fatalf("daily pnl = %s, want %s", got, want)
	}
	if snap.LastActivity.IsZero() {
		t.Fatal("last activity not stamped")
	}
}

func TestSchedulerStopWaitsForInFlightTrade(t *testing.T) {
	cfg := DefaultSchedulerConfig()
	cfg.TradeCooldown = 0

	trader := &fakeTrader{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	judge := &fakeJudge{verdict: arbDomain.VerdictTrade, profit: decimal.RequireFromString("0.21")}
	f := newFixture(t, cfg, judge, trader, nil)

	if err := f.scheduler.Start("live", defaultParams()); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.trigger.fire(t)
	<-trader.entered

	stopped := make(chan error, 1)
	go func() { stopped <- f.scheduler.Stop() }()

	select {
	case <-stopped:
		t.Fatal("stop returned while a trade was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(trader.release)

	select {
	case err := <-stopped:
		if err != nil {
			t.Fatalf("stop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not return after the trade completed")
	}

	// The in-flight trade ran to completion.
	if f.trader.count() != 2 {
		t.Fatalf("executes = %d, want 2", f.trader.count())
	}
	if got := f.scheduler.Snapshot().State; got != domain.StateStopped {
		t.Fatalf("state = %s, want %s", got, domain.StateStopped)
	}
}

func TestSchedulerDrawdownHaltsOnNextCycle(t *testing.T) {
	cfg := DefaultSchedulerConfig()
	cfg.TradeCooldown = 0
	// Each failed round trip books -2.5 in burned gas.
	cfg.FallbackGasCost = decimal.RequireFromString("2.5")

	trader := &fakeTrader{execErr: apperror.New(apperror.CodeExecutionReverted)}
	judge := &fakeJudge{verdict: arbDomain.VerdictTrade, profit: decimal.RequireFromString("0.21")}
	f := newFixture(t, cfg, judge, trader, nil)

	if err := f.scheduler.Start("live", defaultParams()); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Two failed trades bring dailyPnl to exactly the -5 limit. The breach
	// only stops the engine at the top of the following cycle.
	f.trigger.fire(t)
	waitFor(t, "first failure", func() bool { return len(f.sink.byType(domain.FlowTrade)) == 1 })
	f.trigger.fire(t)
	waitFor(t, "second failure", func() bool { return len(f.sink.byType(domain.FlowTrade)) == 2 })

	if got := f.scheduler.Snapshot().State; got == domain.StateStopped {
		t.Fatal("engine stopped mid-cycle; breach must only halt at the top of a cycle")
	}

	f.trigger.fire(t)
	waitFor(t, "halt", func() bool {
		return f.scheduler.Snapshot().State == domain.StateStopped
	})

	halts := f.sink.byType(domain.FlowHalt)
	if len(halts) != 1 {
		t.Fatalf("halt steps = %d, want 1", len(halts))
	}
	if got, want := f.scheduler.Snapshot().DailyPnl.String(), "-5"; got != want {
		t.Fatalf("daily pnl = %s, want %s", got, want)
	}
	// The halting cycle never scanned.
	if f.quoter.count() != 2 {
		t.Fatalf("quote calls = %d, want 2", f.quoter.count())
	}

	if err := f.scheduler.Stop(); apperror.GetCode(err) != apperror.CodeEngineNotRunning {
		t.Fatalf("stop after halt = %v, want %s", err, apperror.CodeEngineNotRunning)
	}
}

func TestSchedulerHotUpdatesParams(t *testing.T) {
	f := newFixture(t, DefaultSchedulerConfig(),
		&fakeJudge{verdict: arbDomain.VerdictNoRoute}, &fakeTrader{}, nil)

	if err := f.scheduler.Start("conservative", defaultParams()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer f.scheduler.Stop()

	update := domain.Params{TradeAmount: decimal.RequireFromString("25")}
	if err := f.scheduler.Start("aggressive", update); err != nil {
		t.Fatalf("hot update: %v", err)
	}

	snap := f.scheduler.Snapshot()
	if snap.State == domain.StateStopped {
		t.Fatal("hot update must not restart the engine")
	}
	if snap.Mode != "aggressive" {
		t.Fatalf("mode = %s, want aggressive", snap.Mode)
	}
	if got, want := snap.Params.TradeAmount.String(), "25"; got != want {
		t.Fatalf("trade amount = %s, want %s", got, want)
	}
	// Untouched fields keep their values.
	if got, want := snap.Params.MaxDrawdown.String(), "-5"; got != want {
		t.Fatalf("max drawdown = %s, want %s", got, want)
	}
}

// A hot-updated profit gate must bite on the very next cycle, with the real
// detector judging.
func TestSchedulerHotMinProfitGatesNextCycle(t *testing.T) {
	cfg := DefaultSchedulerConfig()
	cfg.TradeCooldown = 0

	judge := arbApp.NewDetector(arbApp.DefaultDetectorConfig())
	f := newFixture(t, cfg, judge, &fakeTrader{}, nil)
	// Gross 0.25 on a 10 notional; nets 0.15 after two fallback swaps.
	f.quoter.legs = &marketDomain.QuoteSet{
		V2BuyOut:      decimal.RequireFromString("5"),
		V2SellUnit:    decimal.RequireFromString("1.99"),
		V3BuyOut:      decimal.RequireFromString("4.8"),
		V3BuyFeeTier:  3000,
		V3SellUnit:    decimal.RequireFromString("2.05"),
		V3SellFeeTier: 500,
	}

	if err := f.scheduler.Start("live", defaultParams()); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.trigger.fire(t)
	waitFor(t, "first trade", func() bool { return len(f.sink.byType(domain.FlowTrade)) == 1 })

	f.scheduler.UpdateParams(domain.Params{MinProfitFraction: decimal.RequireFromString("0.9")})

	f.trigger.fire(t)
	waitFor(t, "gated skip", func() bool {
		for _, s := range f.sink.byType(domain.FlowSkip) {
			if s.Detail == string(arbDomain.VerdictBelowThreshold) {
				return true
			}
		}
		return false
	})

	if err := f.scheduler.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if got := len(f.sink.byType(domain.FlowTrade)); got != 1 {
		t.Fatalf("trades = %d, want 1 (tightened gate must stop the second)", got)
	}
	if got := f.trader.count(); got != 2 {
		t.Fatalf("executes = %d, want 2 (no legs after the update)", got)
	}
}

// Slippage and the consolidation threshold ride along with each trade, so
// an operator update applies without a restart.
func TestSchedulerThreadsLiveParamsIntoTrades(t *testing.T) {
	cfg := DefaultSchedulerConfig()
	cfg.TradeCooldown = 0

	judge := &fakeJudge{verdict: arbDomain.VerdictTrade, profit: decimal.RequireFromString("0.21")}
	f := newFixture(t, cfg, judge, &fakeTrader{}, nil)

	params := defaultParams()
	params.ConsolidationThreshold = decimal.RequireFromString("50")
	if err := f.scheduler.Start("live", params); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.trigger.fire(t)
	waitFor(t, "first trade", func() bool { return len(f.sink.byType(domain.FlowTrade)) == 1 })

	f.scheduler.UpdateParams(domain.Params{
		Slippage:               decimal.RequireFromString("0.01"),
		ConsolidationThreshold: decimal.RequireFromString("75"),
	})

	f.trigger.fire(t)
	waitFor(t, "second trade", func() bool { return len(f.sink.byType(domain.FlowTrade)) == 2 })

	if err := f.scheduler.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	reqs := f.trader.requests()
	if len(reqs) != 4 {
		t.Fatalf("requests = %d, want 4", len(reqs))
	}
	for i, want := range []string{"0.005", "0.005", "0.01", "0.01"} {
		if got := reqs[i].Slippage.String(); got != want {
			t.Errorf("request %d slippage = %s, want %s", i, got, want)
		}
	}

	f.consolidator.mu.Lock()
	thresholds := append([]decimal.Decimal(nil), f.consolidator.thresholds...)
	f.consolidator.mu.Unlock()
	if len(thresholds) != 2 {
		t.Fatalf("consolidations = %d, want 2", len(thresholds))
	}
	if got, want := thresholds[0].String(), "50"; got != want {
		t.Errorf("first sweep threshold = %s, want %s", got, want)
	}
	if got, want := thresholds[1].String(), "75"; got != want {
		t.Errorf("second sweep threshold = %s, want %s", got, want)
	}
}

// With a live fee plan the gas cost handed to detection is the plan's wei
// cost converted through the native reference price, not the fallback.
func TestSchedulerGasCostFromFeePlan(t *testing.T) {
	cfg := DefaultSchedulerConfig()
	cfg.Pairs = []pricingDomain.Pair{pricingDomain.NewPair(asset.WETH, asset.USDT)}
	cfg.NativePair = pricingDomain.NewPair(asset.POL, asset.USDT)

	// 80 gwei base bumped 1.25x caps the fee at 100 gwei. 350k gas then
	// burns 0.035 POL, which is 0.07 quote at a reference rate of 2.
	fees := workingFees{plan: blockchainDomain.NewFeePlan(
		big.NewInt(80_000_000_000), big.NewInt(0), 125)}

	judge := &recordingJudge{}
	trigger := newManualTrigger()
	sink := &captureSink{}
	s, err := NewScheduler(cfg,
		&fakeOracle{rate: decimal.RequireFromString("2")},
		&fakeQuoter{}, judge, &fakeTrader{}, &fakeConsolidator{}, fees,
		trigger, nil, sink, nil, testutil.NopLogger())
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}

	if err := s.Start("live", defaultParams()); err != nil {
		t.Fatalf("start: %v", err)
	}
	trigger.fire(t)
	waitFor(t, "detection", func() bool { return judge.count() == 1 })
	if err := s.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	if got, want := judge.inputs[0].GasCost.String(), "0.07"; got != want {
		t.Fatalf("gas cost = %s, want %s", got, want)
	}
}

type holdAdvisor struct{}

func (holdAdvisor) Advise(context.Context, domain.Snapshot) (domain.Advisory, error) {
	return domain.Advisory{Kind: domain.AdvisoryHold}, nil
}

type brokenAdvisor struct{}

func (brokenAdvisor) Advise(context.Context, domain.Snapshot) (domain.Advisory, error) {
	return domain.Advisory{}, apperror.New(apperror.CodeServiceUnavailable)
}

func TestSchedulerAdvisoryHoldSkipsCycle(t *testing.T) {
	f := newFixture(t, DefaultSchedulerConfig(),
		&fakeJudge{verdict: arbDomain.VerdictTrade, profit: decimal.RequireFromString("1")},
		&fakeTrader{}, holdAdvisor{})

	if err := f.scheduler.Start("live", defaultParams()); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.trigger.fire(t)
	waitFor(t, "hold skip", func() bool { return len(f.sink.byType(domain.FlowSkip)) == 1 })

	if err := f.scheduler.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	if f.quoter.count() != 0 {
		t.Fatal("hold advisory must skip the whole cycle")
	}
	if f.trader.count() != 0 {
		t.Fatal("hold advisory must not trade")
	}
}

func TestSchedulerBrokenAdvisorNeverBlocks(t *testing.T) {
	cfg := DefaultSchedulerConfig()
	cfg.TradeCooldown = 0

	f := newFixture(t, cfg,
		&fakeJudge{verdict: arbDomain.VerdictTrade, profit: decimal.RequireFromString("1")},
		&fakeTrader{}, brokenAdvisor{})

	if err := f.scheduler.Start("live", defaultParams()); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.trigger.fire(t)
	waitFor(t, "trade despite broken advisor", func() bool {
		return len(f.sink.byType(domain.FlowTrade)) == 1
	})

	if err := f.scheduler.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestSchedulerTradeCooldown(t *testing.T) {
	cfg := DefaultSchedulerConfig()
	cfg.TradeCooldown = time.Hour

	judge := &fakeJudge{verdict: arbDomain.VerdictTrade, profit: decimal.RequireFromString("1")}
	f := newFixture(t, cfg, judge, &fakeTrader{}, nil)

	if err := f.scheduler.Start("live", defaultParams()); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.trigger.fire(t)
	waitFor(t, "first trade", func() bool { return len(f.sink.byType(domain.FlowTrade)) == 1 })
	f.trigger.fire(t)
	waitFor(t, "cooldown skip", func() bool { return len(f.sink.byType(domain.FlowSkip)) == 1 })

	if err := f.scheduler.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	if f.trader.count() != 2 {
		t.Fatalf("executes = %d, want exactly one round trip", f.trader.count())
	}
	skips := f.sink.byType(domain.FlowSkip)
	if skips[0].Detail != "trade cooldown" {
		t.Fatalf("skip detail = %s", skips[0].Detail)
	}
}

func TestSchedulerStartWhileStoppedRequiresPairs(t *testing.T) {
	_, err := NewScheduler(SchedulerConfig{},
		&fakeOracle{rate: decimal.New(1, 0)}, &fakeQuoter{},
		&fakeJudge{verdict: arbDomain.VerdictNoRoute}, &fakeTrader{},
		&fakeConsolidator{}, failingFees{}, newManualTrigger(), nil, nil, nil,
		testutil.NopLogger())
	if apperror.GetCode(err) != apperror.CodeConfigurationError {
		t.Fatalf("error = %v, want %s", err, apperror.CodeConfigurationError)
	}
}
