package router

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	blockchainApp "github.com/flowsniper/flowsniper/business/blockchain/app"
	custodyDomain "github.com/flowsniper/flowsniper/business/custody/domain"
	marketDomain "github.com/flowsniper/flowsniper/business/market/domain"
	"github.com/flowsniper/flowsniper/internal/apperror"
	"github.com/flowsniper/flowsniper/internal/erc20"
	"github.com/flowsniper/flowsniper/internal/logger"
)

const (
	tracerName = "github.com/flowsniper/flowsniper/business/execution/infra/router"
	meterName  = "github.com/flowsniper/flowsniper/business/execution/infra/router"
)

// Config holds the venue addresses and gas limits for swap submission.
type Config struct {
	V2Router common.Address
	V3Router common.Address

	// GasLimitSwap caps swap transactions; zero lets the sender estimate.
	GasLimitSwap uint64

	// GasLimitERC20 caps approvals and transfers; zero lets the sender
	// estimate.
	GasLimitERC20 uint64
}

// DefaultConfig returns a config with the given routers and fixed gas limits
// sized for single-hop swaps.
func DefaultConfig(v2Router, v3Router common.Address) Config {
	return Config{
		V2Router:      v2Router,
		V3Router:      v3Router,
		GasLimitSwap:  350_000,
		GasLimitERC20: 80_000,
	}
}

type adapterMetrics struct {
	approvals      metric.Int64Counter
	approvalErrors metric.Int64Counter
	swaps          metric.Int64Counter
}

// Adapter submits swaps, approvals and transfers through the shared
// transaction sender. It also serves ERC-20 reads for the executor.
type Adapter struct {
	cfg      Config
	binding  *erc20.Binding
	decimals *erc20.DecimalsResolver
	sender   blockchainApp.TxSender
	logger   logger.LoggerInterface

	v2ABI abi.ABI
	v3ABI abi.ABI

	tracer  trace.Tracer
	metrics *adapterMetrics
}

// NewAdapter creates the router adapter.
func NewAdapter(cfg Config, binding *erc20.Binding, decimals *erc20.DecimalsResolver, sender blockchainApp.TxSender, log logger.LoggerInterface) (*Adapter, error) {
	v2ABI, err := abi.JSON(strings.NewReader(V2SwapABI))
	if err != nil {
		return nil, fmt.Errorf("parse v2 swap abi: %w", err)
	}
	v3ABI, err := abi.JSON(strings.NewReader(V3SwapABI))
	if err != nil {
		return nil, fmt.Errorf("parse v3 swap abi: %w", err)
	}

	a := &Adapter{
		cfg:      cfg,
		binding:  binding,
		decimals: decimals,
		sender:   sender,
		logger:   log,
		v2ABI:    v2ABI,
		v3ABI:    v3ABI,
		tracer:   otel.Tracer(tracerName),
	}

	if err := a.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return a, nil
}

func (a *Adapter) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	a.metrics = &adapterMetrics{}

	a.metrics.approvals, err = meter.Int64Counter(
		"router_approvals_total",
		metric.WithDescription("Infinite approvals granted to venue routers"),
	)
	if err != nil {
		return err
	}

	a.metrics.approvalErrors, err = meter.Int64Counter(
		"router_approval_errors_total",
		metric.WithDescription("Approvals that failed or reverted"),
	)
	if err != nil {
		return err
	}

	a.metrics.swaps, err = meter.Int64Counter(
		"router_swaps_total",
		metric.WithDescription("Swap transactions submitted"),
	)
	if err != nil {
		return err
	}

	return nil
}

// BalanceOf reads an ERC-20 balance.
func (a *Adapter) BalanceOf(ctx context.Context, token, account common.Address) (*big.Int, error) {
	return a.binding.BalanceOf(ctx, token, account)
}

// Decimals resolves token decimals through the registry-backed resolver.
func (a *Adapter) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	return a.decimals.Resolve(ctx, token)
}

func (a *Adapter) routerFor(venue marketDomain.Venue) (common.Address, error) {
	switch venue {
	case marketDomain.VenueV2:
		return a.cfg.V2Router, nil
	case marketDomain.VenueV3:
		return a.cfg.V3Router, nil
	}
	return common.Address{}, apperror.New(apperror.CodeInvalidInput,
		apperror.WithContext(fmt.Sprintf("unknown venue %q", venue)))
}

// EnsureAllowance grants the venue router an infinite approval when the
// current allowance is below required. Approvals are awaited so the
// following swap never races its own allowance.
func (a *Adapter) EnsureAllowance(ctx context.Context, signer *custodyDomain.Signer, token common.Address, venue marketDomain.Venue, required *big.Int) error {
	ctx, span := a.tracer.Start(ctx, "router.ensure_allowance",
		trace.WithAttributes(
			attribute.String("token", token.Hex()),
			attribute.String("venue", string(venue)),
		),
	)
	defer span.End()

	spender, err := a.routerFor(venue)
	if err != nil {
		return err
	}

	allowance, err := a.binding.Allowance(ctx, token, signer.Address(), spender)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return apperror.New(apperror.CodeChainRPCError,
			apperror.WithCause(err), apperror.WithContext("allowance read failed"))
	}
	if allowance.Cmp(required) >= 0 {
		span.SetStatus(codes.Ok, "sufficient")
		return nil
	}

	data, err := erc20.PackApprove(spender, erc20.MaxApproval)
	if err != nil {
		return fmt.Errorf("pack approve: %w", err)
	}

	receipt, err := a.sender.SendAndWait(ctx, blockchainApp.TxRequest{
		Key:      signer.Key(),
		To:       token,
		Data:     data,
		GasLimit: a.cfg.GasLimitERC20,
	})
	if err != nil {
		a.metrics.approvalErrors.Add(ctx, 1)
		span.SetStatus(codes.Error, err.Error())
		return apperror.Wrap(err, apperror.CodeApprovalFailed,
			fmt.Sprintf("approve %s for %s", token.Hex(), spender.Hex()))
	}

	a.metrics.approvals.Add(ctx, 1)
	span.SetAttributes(attribute.String("tx_hash", receipt.TxHash.Hex()))
	span.SetStatus(codes.Ok, "approved")

	a.logger.Info(ctx, "router approval granted",
		"token", token.Hex(), "spender", spender.Hex(), "hash", receipt.TxHash.Hex())

	return nil
}

// SwapV2 submits swapExactTokensForTokens along path.
func (a *Adapter) SwapV2(ctx context.Context, signer *custodyDomain.Signer, amountIn, minOut *big.Int, path []common.Address, deadline time.Time) (*types.Transaction, error) {
	return a.swapV2(ctx, signer, "swapExactTokensForTokens", amountIn, minOut, path, deadline)
}

// SwapV2ToNative submits swapExactTokensForETH, which unwraps the final hop
// into the native coin.
func (a *Adapter) SwapV2ToNative(ctx context.Context, signer *custodyDomain.Signer, amountIn, minOut *big.Int, path []common.Address, deadline time.Time) (*types.Transaction, error) {
	return a.swapV2(ctx, signer, "swapExactTokensForETH", amountIn, minOut, path, deadline)
}

func (a *Adapter) swapV2(ctx context.Context, signer *custodyDomain.Signer, method string, amountIn, minOut *big.Int, path []common.Address, deadline time.Time) (*types.Transaction, error) {
	ctx, span := a.tracer.Start(ctx, "router.swap_v2",
		trace.WithAttributes(
			attribute.String("method", method),
			attribute.String("amount_in", amountIn.String()),
			attribute.String("min_out", minOut.String()),
		),
	)
	defer span.End()

	if len(path) < 2 {
		return nil, apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext("swap path needs at least two hops"))
	}

	data, err := a.v2ABI.Pack(method, amountIn, minOut, path, signer.Address(), big.NewInt(deadline.Unix()))
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	tx, err := a.sender.Send(ctx, blockchainApp.TxRequest{
		Key:      signer.Key(),
		To:       a.cfg.V2Router,
		Data:     data,
		GasLimit: a.cfg.GasLimitSwap,
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	a.metrics.swaps.Add(ctx, 1,
		metric.WithAttributes(attribute.String("venue", string(marketDomain.VenueV2))))
	span.SetAttributes(attribute.String("tx_hash", tx.Hash().Hex()))
	span.SetStatus(codes.Ok, "submitted")

	return tx, nil
}

// SwapV3 submits exactInputSingle on the given fee tier.
func (a *Adapter) SwapV3(ctx context.Context, signer *custodyDomain.Signer, tokenIn, tokenOut common.Address, feeTier int, amountIn, minOut *big.Int, deadline time.Time) (*types.Transaction, error) {
	ctx, span := a.tracer.Start(ctx, "router.swap_v3",
		trace.WithAttributes(
			attribute.Int("fee_tier", feeTier),
			attribute.String("amount_in", amountIn.String()),
			attribute.String("min_out", minOut.String()),
		),
	)
	defer span.End()

	params := ExactInputSingleParams{
		TokenIn:           tokenIn,
		TokenOut:          tokenOut,
		Fee:               big.NewInt(int64(feeTier)),
		Recipient:         signer.Address(),
		Deadline:          big.NewInt(deadline.Unix()),
		AmountIn:          amountIn,
		AmountOutMinimum:  minOut,
		SqrtPriceLimitX96: big.NewInt(0),
	}

	data, err := a.v3ABI.Pack("exactInputSingle", params)
	if err != nil {
		return nil, fmt.Errorf("pack exactInputSingle: %w", err)
	}

	tx, err := a.sender.Send(ctx, blockchainApp.TxRequest{
		Key:      signer.Key(),
		To:       a.cfg.V3Router,
		Data:     data,
		GasLimit: a.cfg.GasLimitSwap,
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	a.metrics.swaps.Add(ctx, 1,
		metric.WithAttributes(attribute.String("venue", string(marketDomain.VenueV3))))
	span.SetAttributes(attribute.String("tx_hash", tx.Hash().Hex()))
	span.SetStatus(codes.Ok, "submitted")

	return tx, nil
}

// Transfer submits a plain ERC-20 transfer and waits for inclusion.
func (a *Adapter) Transfer(ctx context.Context, signer *custodyDomain.Signer, token, to common.Address, amount *big.Int) (common.Hash, error) {
	ctx, span := a.tracer.Start(ctx, "router.transfer",
		trace.WithAttributes(
			attribute.String("token", token.Hex()),
			attribute.String("to", to.Hex()),
		),
	)
	defer span.End()

	data, err := erc20.PackTransfer(to, amount)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack transfer: %w", err)
	}

	receipt, err := a.sender.SendAndWait(ctx, blockchainApp.TxRequest{
		Key:      signer.Key(),
		To:       token,
		Data:     data,
		GasLimit: a.cfg.GasLimitERC20,
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return common.Hash{}, err
	}

	span.SetAttributes(attribute.String("tx_hash", receipt.TxHash.Hex()))
	span.SetStatus(codes.Ok, "transferred")

	return receipt.TxHash, nil
}

// Await blocks until a previously submitted transaction is mined.
func (a *Adapter) Await(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	return a.sender.Await(ctx, tx)
}
