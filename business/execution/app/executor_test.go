package app

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"

	custodyDomain "github.com/flowsniper/flowsniper/business/custody/domain"
	"github.com/flowsniper/flowsniper/business/execution/domain"
	marketDomain "github.com/flowsniper/flowsniper/business/market/domain"
	"github.com/flowsniper/flowsniper/internal/apperror"
	"github.com/flowsniper/flowsniper/internal/asset"
	"github.com/flowsniper/flowsniper/internal/testutil"
)

type fakeCustody struct {
	signer      *custodyDomain.Signer
	owner       common.Address
	paired      bool
	ensureErr   error
	ensureCalls int
}

func (f *fakeCustody) Operator() common.Address { return f.signer.Address() }

func (f *fakeCustody) Owner() (common.Address, bool) { return f.owner, f.paired }

func (f *fakeCustody) ResolveSigner(common.Address) (*custodyDomain.Signer, error) {
	return f.signer, nil
}

func (f *fakeCustody) EnsureFunds(context.Context, common.Address, *big.Int) error {
	f.ensureCalls++
	return f.ensureErr
}

type fakeTokens struct {
	balances map[common.Address]*big.Int
	decimals map[common.Address]uint8
}

func (f *fakeTokens) BalanceOf(_ context.Context, token, _ common.Address) (*big.Int, error) {
	if b, ok := f.balances[token]; ok {
		return new(big.Int).Set(b), nil
	}
	return big.NewInt(0), nil
}

func (f *fakeTokens) Decimals(_ context.Context, token common.Address) (uint8, error) {
	if d, ok := f.decimals[token]; ok {
		return d, nil
	}
	return 18, nil
}

type fakeNative struct {
	balance *big.Int
}

func (f *fakeNative) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	return new(big.Int).Set(f.balance), nil
}

type swapCall struct {
	method   string
	amountIn *big.Int
	minOut   *big.Int
	path     []common.Address
	feeTier  int
}

type fakeRouter struct {
	allowanceCalls int
	swapCalls      []swapCall
	transfers      []swapCall
	swapErr        error
}

func (f *fakeRouter) EnsureAllowance(context.Context, *custodyDomain.Signer, common.Address, marketDomain.Venue, *big.Int) error {
	f.allowanceCalls++
	return nil
}

func (f *fakeRouter) SwapV2(_ context.Context, _ *custodyDomain.Signer, amountIn, minOut *big.Int, path []common.Address, _ time.Time) (*types.Transaction, error) {
	if f.swapErr != nil {
		return nil, f.swapErr
	}
	f.swapCalls = append(f.swapCalls, swapCall{method: "v2", amountIn: amountIn, minOut: minOut, path: path})
	return types.NewTx(&types.LegacyTx{Nonce: uint64(len(f.swapCalls))}), nil
}

func (f *fakeRouter) SwapV2ToNative(_ context.Context, _ *custodyDomain.Signer, amountIn, minOut *big.Int, path []common.Address, _ time.Time) (*types.Transaction, error) {
	f.swapCalls = append(f.swapCalls, swapCall{method: "v2native", amountIn: amountIn, minOut: minOut, path: path})
	return types.NewTx(&types.LegacyTx{Nonce: uint64(len(f.swapCalls))}), nil
}

func (f *fakeRouter) SwapV3(_ context.Context, _ *custodyDomain.Signer, _, _ common.Address, feeTier int, amountIn, minOut *big.Int, _ time.Time) (*types.Transaction, error) {
	if f.swapErr != nil {
		return nil, f.swapErr
	}
	f.swapCalls = append(f.swapCalls, swapCall{method: "v3", amountIn: amountIn, minOut: minOut, feeTier: feeTier})
	return types.NewTx(&types.LegacyTx{Nonce: uint64(len(f.swapCalls))}), nil
}

func (f *fakeRouter) Transfer(_ context.Context, _ *custodyDomain.Signer, token, to common.Address, amount *big.Int) (common.Hash, error) {
	f.transfers = append(f.transfers, swapCall{method: "transfer", amountIn: amount, path: []common.Address{token, to}})
	return common.HexToHash("0xabc"), nil
}

func (f *fakeRouter) Await(context.Context, *types.Transaction) (*types.Receipt, error) {
	return &types.Receipt{Status: types.ReceiptStatusSuccessful}, nil
}

func newTestSigner(t *testing.T) *custodyDomain.Signer {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return custodyDomain.NewSigner(key)
}

func newTestExecutor(t *testing.T, cfg ExecutorConfig, custody *fakeCustody, tokens *fakeTokens, native *fakeNative, router *fakeRouter) *TradeExecutor {
	t.Helper()
	e, err := NewTradeExecutor(cfg, custody, tokens, native, router, testutil.NopLogger())
	if err != nil {
		t.Fatalf("new executor: %v", err)
	}
	return e
}

func baseConfig() ExecutorConfig {
	cfg := DefaultExecutorConfig()
	cfg.MinGasReserve = big.NewInt(1_000)
	return cfg
}

func TestExecuteAppliesSlippageBound(t *testing.T) {
	custody := &fakeCustody{signer: newTestSigner(t)}
	tokens := &fakeTokens{decimals: map[common.Address]uint8{
		asset.USDT.Address(): 6,
		asset.WETH.Address(): 18,
	}}
	router := &fakeRouter{}
	e := newTestExecutor(t, baseConfig(), custody, tokens, &fakeNative{balance: big.NewInt(10_000)}, router)

	result, tx, err := e.Execute(context.Background(), domain.TradeRequest{
		Venue:     marketDomain.VenueV2,
		TokenIn:   asset.USDT,
		TokenOut:  asset.WETH,
		AmountIn:  decimal.RequireFromString("10"),
		QuotedOut: decimal.RequireFromString("0.004"),
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if tx == nil {
		t.Fatal("expected a submitted transaction")
	}
	if result.Simulated {
		t.Fatal("trade should not be simulated")
	}

	if got, want := result.MinOut.String(), "0.00398"; got != want {
		t.Fatalf("min out = %s, want %s", got, want)
	}
	if len(router.swapCalls) != 1 {
		t.Fatalf("swap calls = %d, want 1", len(router.swapCalls))
	}
	call := router.swapCalls[0]
	if call.method != "v2" {
		t.Fatalf("method = %s, want v2", call.method)
	}
	// 10 USDT at 6 decimals.
	if call.amountIn.Cmp(big.NewInt(10_000_000)) != 0 {
		t.Fatalf("amount in raw = %s", call.amountIn)
	}
	// 0.00398 WETH at 18 decimals.
	want, _ := new(big.Int).SetString("3980000000000000", 10)
	if call.minOut.Cmp(want) != 0 {
		t.Fatalf("min out raw = %s, want %s", call.minOut, want)
	}
	if custody.ensureCalls != 1 {
		t.Fatalf("ensure funds calls = %d, want 1", custody.ensureCalls)
	}
	if router.allowanceCalls != 1 {
		t.Fatalf("allowance calls = %d, want 1", router.allowanceCalls)
	}
}

func TestExecutePerTradeSlippageOverridesConfig(t *testing.T) {
	custody := &fakeCustody{signer: newTestSigner(t)}
	tokens := &fakeTokens{decimals: map[common.Address]uint8{
		asset.USDT.Address(): 6,
		asset.WETH.Address(): 18,
	}}
	router := &fakeRouter{}
	e := newTestExecutor(t, baseConfig(), custody, tokens, &fakeNative{balance: big.NewInt(10_000)}, router)

	// Configured slippage is 0.005; the request carries a tighter 0.01
	// that must win.
	result, _, err := e.Execute(context.Background(), domain.TradeRequest{
		Venue:     marketDomain.VenueV2,
		TokenIn:   asset.USDT,
		TokenOut:  asset.WETH,
		AmountIn:  decimal.RequireFromString("10"),
		QuotedOut: decimal.RequireFromString("0.004"),
		Slippage:  decimal.RequireFromString("0.01"),
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got, want := result.MinOut.String(), "0.00396"; got != want {
		t.Fatalf("min out = %s, want %s", got, want)
	}

	// Out-of-range overrides are refused before any chain interaction.
	_, _, err = e.Execute(context.Background(), domain.TradeRequest{
		Venue:     marketDomain.VenueV2,
		TokenIn:   asset.USDT,
		TokenOut:  asset.WETH,
		AmountIn:  decimal.RequireFromString("10"),
		QuotedOut: decimal.RequireFromString("0.004"),
		Slippage:  decimal.RequireFromString("1.5"),
	})
	if apperror.GetCode(err) != apperror.CodeInvalidInput {
		t.Fatalf("code = %s, want %s", apperror.GetCode(err), apperror.CodeInvalidInput)
	}
	if len(router.swapCalls) != 1 {
		t.Fatalf("swap calls = %d, want 1 (refused trade must not swap)", len(router.swapCalls))
	}
}

func TestExecuteRoutesV3WithFeeTier(t *testing.T) {
	custody := &fakeCustody{signer: newTestSigner(t)}
	tokens := &fakeTokens{decimals: map[common.Address]uint8{}}
	router := &fakeRouter{}
	e := newTestExecutor(t, baseConfig(), custody, tokens, &fakeNative{balance: big.NewInt(10_000)}, router)

	_, _, err := e.Execute(context.Background(), domain.TradeRequest{
		Venue:     marketDomain.VenueV3,
		TokenIn:   asset.WETH,
		TokenOut:  asset.USDT,
		AmountIn:  decimal.RequireFromString("0.5"),
		QuotedOut: decimal.RequireFromString("1000"),
		FeeTier:   3000,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(router.swapCalls) != 1 || router.swapCalls[0].method != "v3" {
		t.Fatalf("expected one v3 swap, got %+v", router.swapCalls)
	}
	if router.swapCalls[0].feeTier != 3000 {
		t.Fatalf("fee tier = %d, want 3000", router.swapCalls[0].feeTier)
	}
}

func TestExecuteDemoModeSkipsChain(t *testing.T) {
	cfg := baseConfig()
	cfg.DemoMode = true

	custody := &fakeCustody{signer: newTestSigner(t)}
	router := &fakeRouter{}
	e := newTestExecutor(t, cfg, custody, &fakeTokens{}, &fakeNative{balance: big.NewInt(0)}, router)

	result, tx, err := e.Execute(context.Background(), domain.TradeRequest{
		Venue:     marketDomain.VenueV2,
		TokenIn:   asset.USDT,
		TokenOut:  asset.WETH,
		AmountIn:  decimal.RequireFromString("10"),
		QuotedOut: decimal.RequireFromString("0.004"),
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.Simulated {
		t.Fatal("expected simulated result")
	}
	if tx != nil {
		t.Fatal("demo mode must not submit a transaction")
	}
	if result.Hash == (common.Hash{}) {
		t.Fatal("simulated result needs a synthetic hash")
	}
	if len(router.swapCalls) != 0 || router.allowanceCalls != 0 || custody.ensureCalls != 0 {
		t.Fatal("demo mode must not touch custody or the router")
	}
}

func TestExecuteEnforcesGasFloor(t *testing.T) {
	custody := &fakeCustody{signer: newTestSigner(t)}
	router := &fakeRouter{}
	e := newTestExecutor(t, baseConfig(), custody, &fakeTokens{}, &fakeNative{balance: big.NewInt(999)}, router)

	_, _, err := e.Execute(context.Background(), domain.TradeRequest{
		Venue:     marketDomain.VenueV2,
		TokenIn:   asset.USDT,
		TokenOut:  asset.WETH,
		AmountIn:  decimal.RequireFromString("10"),
		QuotedOut: decimal.RequireFromString("0.004"),
	})
	if apperror.GetCode(err) != apperror.CodeInsufficientGas {
		t.Fatalf("error code = %s, want %s", apperror.GetCode(err), apperror.CodeInsufficientGas)
	}
	if len(router.swapCalls) != 0 {
		t.Fatal("gas floor breach must not submit a swap")
	}
}

func TestExecutePropagatesCustodyFailure(t *testing.T) {
	custody := &fakeCustody{
		signer:    newTestSigner(t),
		ensureErr: apperror.New(apperror.CodeOwnerNotPaired),
	}
	router := &fakeRouter{}
	e := newTestExecutor(t, baseConfig(), custody, &fakeTokens{}, &fakeNative{balance: big.NewInt(10_000)}, router)

	_, _, err := e.Execute(context.Background(), domain.TradeRequest{
		Venue:     marketDomain.VenueV2,
		TokenIn:   asset.USDT,
		TokenOut:  asset.WETH,
		AmountIn:  decimal.RequireFromString("10"),
		QuotedOut: decimal.RequireFromString("0.004"),
	})
	if apperror.GetCode(err) != apperror.CodeOwnerNotPaired {
		t.Fatalf("error code = %s, want %s", apperror.GetCode(err), apperror.CodeOwnerNotPaired)
	}
	if len(router.swapCalls) != 0 {
		t.Fatal("custody failure must not submit a swap")
	}
}

func TestExecuteRejectsNonPositiveAmount(t *testing.T) {
	e := newTestExecutor(t, baseConfig(), &fakeCustody{signer: newTestSigner(t)}, &fakeTokens{}, &fakeNative{balance: big.NewInt(10_000)}, &fakeRouter{})

	_, _, err := e.Execute(context.Background(), domain.TradeRequest{
		Venue:     marketDomain.VenueV2,
		TokenIn:   asset.USDT,
		TokenOut:  asset.WETH,
		AmountIn:  decimal.Zero,
		QuotedOut: decimal.RequireFromString("1"),
	})
	if apperror.GetCode(err) != apperror.CodeInvalidTradeSize {
		t.Fatalf("error code = %s, want %s", apperror.GetCode(err), apperror.CodeInvalidTradeSize)
	}
}

func TestTransferChecksBalance(t *testing.T) {
	custody := &fakeCustody{signer: newTestSigner(t)}
	tokens := &fakeTokens{
		balances: map[common.Address]*big.Int{asset.USDT.Address(): big.NewInt(5_000_000)},
		decimals: map[common.Address]uint8{asset.USDT.Address(): 6},
	}
	router := &fakeRouter{}
	e := newTestExecutor(t, baseConfig(), custody, tokens, &fakeNative{balance: big.NewInt(10_000)}, router)

	to := common.HexToAddress("0x1111111111111111111111111111111111111111")

	_, err := e.Transfer(context.Background(), asset.USDT, to, decimal.RequireFromString("10"))
	if apperror.GetCode(err) != apperror.CodeInsufficientFunds {
		t.Fatalf("error code = %s, want %s", apperror.GetCode(err), apperror.CodeInsufficientFunds)
	}

	hash, err := e.Transfer(context.Background(), asset.USDT, to, decimal.RequireFromString("5"))
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if hash == (common.Hash{}) {
		t.Fatal("expected transfer hash")
	}
	if len(router.transfers) != 1 {
		t.Fatalf("transfers = %d, want 1", len(router.transfers))
	}
	if router.transfers[0].amountIn.Cmp(big.NewInt(5_000_000)) != 0 {
		t.Fatalf("transfer raw = %s", router.transfers[0].amountIn)
	}
}

func TestRechargeGasRoutesThroughWrappedNative(t *testing.T) {
	custody := &fakeCustody{signer: newTestSigner(t)}
	router := &fakeRouter{}
	e := newTestExecutor(t, baseConfig(), custody, &fakeTokens{}, &fakeNative{balance: big.NewInt(10_000)}, router)

	_, err := e.RechargeGas(context.Background(), decimal.RequireFromString("25"))
	if err != nil {
		t.Fatalf("recharge: %v", err)
	}
	if len(router.swapCalls) != 1 {
		t.Fatalf("swap calls = %d, want 1", len(router.swapCalls))
	}
	call := router.swapCalls[0]
	if call.method != "v2native" {
		t.Fatalf("method = %s, want v2native", call.method)
	}
	if call.amountIn.Cmp(big.NewInt(25_000_000)) != 0 {
		t.Fatalf("amount in raw = %s", call.amountIn)
	}
	wantPath := []common.Address{asset.USDT.Address(), asset.WPOL.Address()}
	if len(call.path) != 2 || call.path[0] != wantPath[0] || call.path[1] != wantPath[1] {
		t.Fatalf("path = %v, want %v", call.path, wantPath)
	}
}

func TestEmergencyLiquidateSweepsNonStables(t *testing.T) {
	custody := &fakeCustody{signer: newTestSigner(t)}
	tokens := &fakeTokens{
		balances: map[common.Address]*big.Int{
			asset.WETH.Address(): big.NewInt(1_000_000),
			asset.USDC.Address(): big.NewInt(9_000_000),
		},
	}
	router := &fakeRouter{}
	e := newTestExecutor(t, baseConfig(), custody, tokens, &fakeNative{balance: big.NewInt(10_000)}, router)

	registry := asset.NewRegistry()
	registry.Register(asset.USDT)
	registry.Register(asset.USDC)
	registry.Register(asset.WETH)
	registry.Register(asset.WPOL)
	registry.Register(asset.POL)

	hashes, err := e.EmergencyLiquidate(context.Background(), registry)
	if err != nil {
		t.Fatalf("liquidate: %v", err)
	}
	// Only WETH holds a non-stable balance; WPOL balance is zero, POL is
	// native, USDC is a stable.
	if len(hashes) != 1 {
		t.Fatalf("hashes = %d, want 1", len(hashes))
	}
	if len(router.swapCalls) != 1 {
		t.Fatalf("swap calls = %d, want 1", len(router.swapCalls))
	}
	call := router.swapCalls[0]
	if call.minOut.Sign() != 0 {
		t.Fatalf("liquidation min out = %s, want 0", call.minOut)
	}
	if call.path[0] != asset.WETH.Address() || call.path[1] != asset.USDT.Address() {
		t.Fatalf("path = %v", call.path)
	}
}

func TestConsolidationSweepsAboveThreshold(t *testing.T) {
	signer := newTestSigner(t)
	owner := common.HexToAddress("0x2222222222222222222222222222222222222222")

	custody := &fakeCustody{signer: signer, owner: owner, paired: true}
	tokens := &fakeTokens{
		balances: map[common.Address]*big.Int{asset.USDT.Address(): big.NewInt(60_000_000)},
	}
	router := &fakeRouter{}

	svc, err := NewConsolidationService(ConsolidationConfig{
		Threshold: big.NewInt(50_000_000),
		Stable:    asset.USDT,
	}, custody, tokens, router, testutil.NopLogger())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	svc.MaybeConsolidate(context.Background(), decimal.Zero)

	if len(router.transfers) != 1 {
		t.Fatalf("transfers = %d, want 1", len(router.transfers))
	}
	tr := router.transfers[0]
	if tr.amountIn.Cmp(big.NewInt(60_000_000)) != 0 {
		t.Fatalf("swept = %s, want full balance", tr.amountIn)
	}
	if tr.path[1] != owner {
		t.Fatalf("swept to %s, want owner", tr.path[1].Hex())
	}
}

func TestConsolidationLiveThresholdOverridesConfig(t *testing.T) {
	signer := newTestSigner(t)
	owner := common.HexToAddress("0x2222222222222222222222222222222222222222")

	custody := &fakeCustody{signer: signer, owner: owner, paired: true}
	tokens := &fakeTokens{
		balances: map[common.Address]*big.Int{asset.USDT.Address(): big.NewInt(60_000_000)},
	}
	router := &fakeRouter{}

	// Configured threshold (50) would sweep a 60 USDT balance, but a live
	// threshold of 100 raises the bar without a restart.
	svc, err := NewConsolidationService(ConsolidationConfig{
		Threshold: big.NewInt(50_000_000),
		Stable:    asset.USDT,
	}, custody, tokens, router, testutil.NopLogger())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	svc.MaybeConsolidate(context.Background(), decimal.RequireFromString("100"))
	if len(router.transfers) != 0 {
		t.Fatalf("transfers = %d, want 0 under the raised threshold", len(router.transfers))
	}

	// Lowering it live sweeps immediately.
	svc.MaybeConsolidate(context.Background(), decimal.RequireFromString("25"))
	if len(router.transfers) != 1 {
		t.Fatalf("transfers = %d, want 1 under the lowered threshold", len(router.transfers))
	}
}

func TestConsolidationSkips(t *testing.T) {
	signer := newTestSigner(t)
	owner := common.HexToAddress("0x2222222222222222222222222222222222222222")

	tests := []struct {
		name    string
		custody *fakeCustody
		balance *big.Int
	}{
		{
			name:    "below threshold",
			custody: &fakeCustody{signer: signer, owner: owner, paired: true},
			balance: big.NewInt(10_000_000),
		},
		{
			name:    "not paired",
			custody: &fakeCustody{signer: signer},
			balance: big.NewInt(90_000_000),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := &fakeTokens{
				balances: map[common.Address]*big.Int{asset.USDT.Address(): tt.balance},
			}
			router := &fakeRouter{}

			svc, err := NewConsolidationService(ConsolidationConfig{
				Threshold: big.NewInt(50_000_000),
				Stable:    asset.USDT,
			}, tt.custody, tokens, router, testutil.NopLogger())
			if err != nil {
				t.Fatalf("new service: %v", err)
			}

			svc.MaybeConsolidate(context.Background(), decimal.Zero)

			if len(router.transfers) != 0 {
				t.Fatalf("transfers = %d, want 0", len(router.transfers))
			}
		})
	}
}
