package app

import (
	"fmt"
	"math/big"
	"time"

	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowsniper/flowsniper/business/execution/domain"
	marketDomain "github.com/flowsniper/flowsniper/business/market/domain"
	"github.com/flowsniper/flowsniper/internal/apperror"
	"github.com/flowsniper/flowsniper/internal/asset"
	"github.com/flowsniper/flowsniper/internal/logger"
)

const (
	tracerName = "github.com/flowsniper/flowsniper/business/execution/app"
	meterName  = "github.com/flowsniper/flowsniper/business/execution/app"
)

// ExecutorConfig holds trade construction settings.
type ExecutorConfig struct {
	// Slippage is the fraction shaved off the quoted output to form the
	// on-chain minimum, e.g. 0.005 for half a percent.
	Slippage decimal.Decimal

	// SwapDeadline bounds how long a swap may sit in the mempool.
	SwapDeadline time.Duration

	// MinGasReserve is the native balance floor (wei) below which no trade
	// is attempted.
	MinGasReserve *big.Int

	// Stable is the token trades settle in and liquidations sweep to.
	Stable *asset.Asset

	// WrappedNative routes gas recharges.
	WrappedNative *asset.Asset

	// DemoMode short-circuits every trade into a simulated result.
	DemoMode bool
}

// DefaultExecutorConfig returns production defaults for Polygon.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		Slippage:      decimal.RequireFromString("0.005"),
		SwapDeadline:  20 * time.Minute,
		MinGasReserve: big.NewInt(100_000_000_000_000_000), // 0.1 native
		Stable:        asset.USDT,
		WrappedNative: asset.WPOL,
	}
}

type executorMetrics struct {
	tradesTotal     metric.Int64Counter
	tradeErrors     metric.Int64Counter
	simulatedTrades metric.Int64Counter
	transfersTotal  metric.Int64Counter
	liquidations    metric.Int64Counter
}

// TradeExecutor turns detected opportunities into signed swaps.
type TradeExecutor struct {
	cfg     ExecutorConfig
	custody Custody
	tokens  TokenReader
	native  NativeBalanceReader
	router  VenueRouter
	logger  logger.LoggerInterface

	tracer  trace.Tracer
	metrics *executorMetrics
}

// NewTradeExecutor creates the executor.
func NewTradeExecutor(cfg ExecutorConfig, custody Custody, tokens TokenReader, native NativeBalanceReader, router VenueRouter, log logger.LoggerInterface) (*TradeExecutor, error) {
	if cfg.Slippage.IsNegative() || cfg.Slippage.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("slippage must be in [0, 1)"))
	}
	if cfg.Stable == nil {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("executor needs a settlement stable"))
	}

	e := &TradeExecutor{
		cfg:     cfg,
		custody: custody,
		tokens:  tokens,
		native:  native,
		router:  router,
		logger:  log,
		tracer:  otel.Tracer(tracerName),
	}

	if err := e.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return e, nil
}

func (e *TradeExecutor) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	e.metrics = &executorMetrics{}

	e.metrics.tradesTotal, err = meter.Int64Counter(
		"trades_submitted_total",
		metric.WithDescription("Trades submitted on chain"),
	)
	if err != nil {
		return err
	}

	e.metrics.tradeErrors, err = meter.Int64Counter(
		"trade_errors_total",
		metric.WithDescription("Trade submissions that failed"),
	)
	if err != nil {
		return err
	}

	e.metrics.simulatedTrades, err = meter.Int64Counter(
		"trades_simulated_total",
		metric.WithDescription("Trades short-circuited by demo mode"),
	)
	if err != nil {
		return err
	}

	e.metrics.transfersTotal, err = meter.Int64Counter(
		"transfers_total",
		metric.WithDescription("Plain token transfers submitted"),
	)
	if err != nil {
		return err
	}

	e.metrics.liquidations, err = meter.Int64Counter(
		"liquidation_sweeps_total",
		metric.WithDescription("Emergency liquidation sweeps"),
	)
	if err != nil {
		return err
	}

	return nil
}

// MinAmountOut applies the slippage bound to a quoted output. A positive
// slippage overrides the configured default for this computation.
func (e *TradeExecutor) MinAmountOut(quotedOut, slippage decimal.Decimal) decimal.Decimal {
	if !slippage.IsPositive() {
		slippage = e.cfg.Slippage
	}
	return quotedOut.Mul(decimal.NewFromInt(1).Sub(slippage))
}

// Execute submits the swap and returns without awaiting inclusion. Callers
// that need the receipt use Await.
func (e *TradeExecutor) Execute(ctx context.Context, req domain.TradeRequest) (*domain.TradeResult, *types.Transaction, error) {
	ctx, span := e.tracer.Start(ctx, "execution.execute",
		trace.WithAttributes(
			attribute.String("venue", string(req.Venue)),
			attribute.String("token_in", req.TokenIn.Symbol()),
			attribute.String("token_out", req.TokenOut.Symbol()),
			attribute.String("amount_in", req.AmountIn.String()),
		),
	)
	defer span.End()

	if !req.AmountIn.IsPositive() {
		return nil, nil, apperror.New(apperror.CodeInvalidTradeSize,
			apperror.WithContext("amount in must be positive"))
	}
	if req.Slippage.IsNegative() || req.Slippage.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, nil, apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext("slippage must be in [0, 1)"))
	}

	signer, err := e.custody.ResolveSigner(req.PreferredSigner)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, nil, err
	}

	decIn, err := e.tokens.Decimals(ctx, req.TokenIn.Address())
	if err != nil {
		return nil, nil, apperror.New(apperror.CodeTokenMetadataError,
			apperror.WithCause(err), apperror.WithContext(req.TokenIn.Symbol()))
	}
	decOut, err := e.tokens.Decimals(ctx, req.TokenOut.Address())
	if err != nil {
		return nil, nil, apperror.New(apperror.CodeTokenMetadataError,
			apperror.WithCause(err), apperror.WithContext(req.TokenOut.Symbol()))
	}

	amountInRaw := req.AmountIn.Shift(int32(decIn)).BigInt()
	minOut := e.MinAmountOut(req.QuotedOut, req.Slippage)
	minOutRaw := minOut.Shift(int32(decOut)).BigInt()

	if e.cfg.DemoMode {
		e.metrics.simulatedTrades.Add(ctx, 1)
		span.SetStatus(codes.Ok, "simulated")

		result := &domain.TradeResult{
			Hash:      crypto.Keccak256Hash([]byte(uuid.NewString())),
			Signer:    signer.Address(),
			MinOut:    minOut,
			Simulated: true,
			Submitted: time.Now(),
		}
		e.logger.Info(ctx, "demo trade simulated",
			"venue", string(req.Venue),
			"amount_in", req.AmountIn.String(),
			"min_out", minOut.String(),
			"hash", result.Hash.Hex(),
		)
		return result, nil, nil
	}

	if err := e.checkGasFloor(ctx, signer.Address()); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, nil, err
	}

	if err := e.custody.EnsureFunds(ctx, req.TokenIn.Address(), amountInRaw); err != nil {
		e.metrics.tradeErrors.Add(ctx, 1)
		span.SetStatus(codes.Error, err.Error())
		return nil, nil, err
	}

	if err := e.router.EnsureAllowance(ctx, signer, req.TokenIn.Address(), req.Venue, amountInRaw); err != nil {
		e.metrics.tradeErrors.Add(ctx, 1)
		span.SetStatus(codes.Error, err.Error())
		return nil, nil, err
	}

	deadline := time.Now().Add(e.cfg.SwapDeadline)

	var tx *types.Transaction
	switch req.Venue {
	case marketDomain.VenueV2:
		path := []common.Address{req.TokenIn.Address(), req.TokenOut.Address()}
		tx, err = e.router.SwapV2(ctx, signer, amountInRaw, minOutRaw, path, deadline)
	case marketDomain.VenueV3:
		tx, err = e.router.SwapV3(ctx, signer, req.TokenIn.Address(), req.TokenOut.Address(), req.FeeTier, amountInRaw, minOutRaw, deadline)
	default:
		err = apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext(fmt.Sprintf("unknown venue %q", req.Venue)))
	}
	if err != nil {
		e.metrics.tradeErrors.Add(ctx, 1)
		span.SetStatus(codes.Error, err.Error())
		return nil, nil, err
	}

	e.metrics.tradesTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("venue", string(req.Venue))))
	span.SetAttributes(attribute.String("tx_hash", tx.Hash().Hex()))
	span.SetStatus(codes.Ok, "submitted")

	e.logger.Info(ctx, "trade submitted",
		"venue", string(req.Venue),
		"token_in", req.TokenIn.Symbol(),
		"token_out", req.TokenOut.Symbol(),
		"amount_in", req.AmountIn.String(),
		"min_out", minOut.String(),
		"hash", tx.Hash().Hex(),
	)

	return &domain.TradeResult{
		Hash:      tx.Hash(),
		Signer:    signer.Address(),
		MinOut:    minOut,
		Submitted: time.Now(),
	}, tx, nil
}

// Await blocks until a previously submitted trade is mined.
func (e *TradeExecutor) Await(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	return e.router.Await(ctx, tx)
}

func (e *TradeExecutor) checkGasFloor(ctx context.Context, account common.Address) error {
	if e.cfg.MinGasReserve == nil || e.cfg.MinGasReserve.Sign() == 0 {
		return nil
	}
	balance, err := e.native.BalanceAt(ctx, account, nil)
	if err != nil {
		return apperror.New(apperror.CodeChainRPCError,
			apperror.WithCause(err), apperror.WithContext("native balance read failed"))
	}
	if balance.Cmp(e.cfg.MinGasReserve) < 0 {
		return apperror.New(apperror.CodeInsufficientGas,
			apperror.WithContext(fmt.Sprintf("native balance %s below reserve %s", balance, e.cfg.MinGasReserve)))
	}
	return nil
}

// Transfer withdraws token to an external address and waits for inclusion.
func (e *TradeExecutor) Transfer(ctx context.Context, token *asset.Asset, to common.Address, amount decimal.Decimal) (common.Hash, error) {
	ctx, span := e.tracer.Start(ctx, "execution.transfer",
		trace.WithAttributes(
			attribute.String("token", token.Symbol()),
			attribute.String("to", to.Hex()),
			attribute.String("amount", amount.String()),
		),
	)
	defer span.End()

	if !amount.IsPositive() {
		return common.Hash{}, apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext("transfer amount must be positive"))
	}

	signer, err := e.custody.ResolveSigner(common.Address{})
	if err != nil {
		return common.Hash{}, err
	}

	dec, err := e.tokens.Decimals(ctx, token.Address())
	if err != nil {
		return common.Hash{}, apperror.New(apperror.CodeTokenMetadataError,
			apperror.WithCause(err), apperror.WithContext(token.Symbol()))
	}
	raw := amount.Shift(int32(dec)).BigInt()

	balance, err := e.tokens.BalanceOf(ctx, token.Address(), signer.Address())
	if err != nil {
		return common.Hash{}, err
	}
	if balance.Cmp(raw) < 0 {
		return common.Hash{}, apperror.New(apperror.CodeInsufficientFunds,
			apperror.WithContext(fmt.Sprintf("balance %s below transfer %s", balance, raw)))
	}

	hash, err := e.router.Transfer(ctx, signer, token.Address(), to, raw)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return common.Hash{}, err
	}

	e.metrics.transfersTotal.Add(ctx, 1)
	span.SetStatus(codes.Ok, "transferred")

	e.logger.Info(ctx, "token transferred",
		"token", token.Symbol(), "to", to.Hex(), "amount", amount.String(), "hash", hash.Hex())

	return hash, nil
}

// RechargeGas swaps stable for the native coin to refill the operator's gas
// tank. The swap unwraps on the way out, so the operator receives native.
func (e *TradeExecutor) RechargeGas(ctx context.Context, amount decimal.Decimal) (common.Hash, error) {
	ctx, span := e.tracer.Start(ctx, "execution.recharge_gas",
		trace.WithAttributes(attribute.String("amount", amount.String())),
	)
	defer span.End()

	if !amount.IsPositive() {
		return common.Hash{}, apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext("recharge amount must be positive"))
	}

	signer, err := e.custody.ResolveSigner(common.Address{})
	if err != nil {
		return common.Hash{}, err
	}

	raw := amount.Shift(int32(e.cfg.Stable.Decimals())).BigInt()

	if err := e.custody.EnsureFunds(ctx, e.cfg.Stable.Address(), raw); err != nil {
		return common.Hash{}, err
	}
	if err := e.router.EnsureAllowance(ctx, signer, e.cfg.Stable.Address(), marketDomain.VenueV2, raw); err != nil {
		return common.Hash{}, err
	}

	// A gas refill trades price sensitivity for liveness: any native out
	// is better than a stalled operator.
	path := []common.Address{e.cfg.Stable.Address(), e.cfg.WrappedNative.Address()}
	tx, err := e.router.SwapV2ToNative(ctx, signer, raw, big.NewInt(0), path, time.Now().Add(e.cfg.SwapDeadline))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return common.Hash{}, err
	}

	if _, err := e.router.Await(ctx, tx); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return tx.Hash(), err
	}

	span.SetStatus(codes.Ok, "recharged")
	e.logger.Info(ctx, "gas recharged", "amount", amount.String(), "hash", tx.Hash().Hex())

	return tx.Hash(), nil
}

// EmergencyLiquidate sweeps every non-stable token balance back to the
// settlement stable on V2. Best-effort per token: one failure does not stop
// the sweep.
func (e *TradeExecutor) EmergencyLiquidate(ctx context.Context, registry *asset.Registry) ([]common.Hash, error) {
	ctx, span := e.tracer.Start(ctx, "execution.emergency_liquidate")
	defer span.End()

	signer, err := e.custody.ResolveSigner(common.Address{})
	if err != nil {
		return nil, err
	}

	e.metrics.liquidations.Add(ctx, 1)

	var hashes []common.Hash
	for _, a := range registry.All() {
		if !a.IsToken() || a.ChainID() != e.cfg.Stable.ChainID() {
			continue
		}
		if isStable(a) {
			continue
		}

		balance, err := e.tokens.BalanceOf(ctx, a.Address(), signer.Address())
		if err != nil {
			e.logger.Warn(ctx, "liquidation balance read failed", "token", a.Symbol(), "error", err)
			continue
		}
		if balance.Sign() == 0 {
			continue
		}

		if err := e.router.EnsureAllowance(ctx, signer, a.Address(), marketDomain.VenueV2, balance); err != nil {
			e.logger.Warn(ctx, "liquidation approval failed", "token", a.Symbol(), "error", err)
			continue
		}

		// Liquidation accepts any price; the point is getting out.
		path := []common.Address{a.Address(), e.cfg.Stable.Address()}
		tx, err := e.router.SwapV2(ctx, signer, balance, big.NewInt(0), path, time.Now().Add(e.cfg.SwapDeadline))
		if err != nil {
			e.logger.Warn(ctx, "liquidation swap failed", "token", a.Symbol(), "error", err)
			continue
		}

		hashes = append(hashes, tx.Hash())
		e.logger.Info(ctx, "liquidation swap submitted",
			"token", a.Symbol(), "balance", balance.String(), "hash", tx.Hash().Hex())
	}

	span.SetAttributes(attribute.Int("swaps", len(hashes)))
	span.SetStatus(codes.Ok, "sweep complete")

	return hashes, nil
}

func isStable(a *asset.Asset) bool {
	switch a.Symbol() {
	case "USDT", "USDC", "DAI":
		return true
	}
	return false
}
