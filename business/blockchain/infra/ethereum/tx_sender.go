package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowsniper/flowsniper/business/blockchain/app"
	"github.com/flowsniper/flowsniper/internal/apperror"
	"github.com/flowsniper/flowsniper/internal/logger"
	"github.com/flowsniper/flowsniper/internal/nonce"
)

var _ app.TxSender = (*TxSender)(nil)

// TxSenderConfig holds submission settings.
type TxSenderConfig struct {
	ChainID     *big.Int
	MineTimeout time.Duration
}

// DefaultTxSenderConfig returns Polygon PoS defaults.
func DefaultTxSenderConfig(chainID *big.Int) TxSenderConfig {
	return TxSenderConfig{
		ChainID:     chainID,
		MineTimeout: 3 * time.Minute,
	}
}

type txSenderMetrics struct {
	sendsTotal  metric.Int64Counter
	sendErrors  metric.Int64Counter
	mineLatency metric.Float64Histogram
}

// TxSender signs and submits transactions with one FIFO nonce manager per
// sender address.
type TxSender struct {
	client *ethclient.Client
	oracle app.GasOracle
	cfg    TxSenderConfig
	logger logger.LoggerInterface

	mu       sync.Mutex
	managers map[common.Address]*nonce.Manager

	tracer  trace.Tracer
	metrics *txSenderMetrics
}

// NewTxSender creates a transaction sender.
func NewTxSender(client *ethclient.Client, oracle app.GasOracle, cfg TxSenderConfig, log logger.LoggerInterface) (*TxSender, error) {
	if cfg.ChainID == nil {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("tx sender needs a chain id"))
	}
	if cfg.MineTimeout <= 0 {
		cfg.MineTimeout = 3 * time.Minute
	}

	s := &TxSender{
		client:   client,
		oracle:   oracle,
		cfg:      cfg,
		logger:   log,
		managers: make(map[common.Address]*nonce.Manager),
		tracer:   otel.Tracer(tracerName),
	}

	if err := s.initSenderMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}

	return s, nil
}

func (s *TxSender) initSenderMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &txSenderMetrics{}

	s.metrics.sendsTotal, err = meter.Int64Counter(
		"chain_tx_sends_total",
		metric.WithDescription("Total transactions submitted"),
	)
	if err != nil {
		return err
	}

	s.metrics.sendErrors, err = meter.Int64Counter(
		"chain_tx_send_errors_total",
		metric.WithDescription("Total transaction submission failures"),
	)
	if err != nil {
		return err
	}

	s.metrics.mineLatency, err = meter.Float64Histogram(
		"chain_tx_mine_latency_ms",
		metric.WithDescription("Time from submission to inclusion in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	return nil
}

func (s *TxSender) managerFor(account common.Address) *nonce.Manager {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.managers[account]
	if !ok {
		m = nonce.NewManager(s.client, account, s.logger)
		s.managers[account] = m
	}
	return m
}

// Send implements app.TxSender.
func (s *TxSender) Send(ctx context.Context, req app.TxRequest) (*types.Transaction, error) {
	from := crypto.PubkeyToAddress(req.Key.PublicKey)

	ctx, span := s.tracer.Start(ctx, "ethereum.send_tx",
		trace.WithAttributes(
			attribute.String("from", from.Hex()),
			attribute.String("to", req.To.Hex()),
		),
	)
	defer span.End()

	s.metrics.sendsTotal.Add(ctx, 1)

	value := req.Value
	if value == nil {
		value = big.NewInt(0)
	}

	res, err := s.managerFor(from).Acquire(ctx)
	if err != nil {
		s.metrics.sendErrors.Add(ctx, 1)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	tx, err := s.buildAndSign(ctx, from, req, value, res.Nonce())
	if err != nil {
		res.Release()
		s.metrics.sendErrors.Add(ctx, 1)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if err := s.client.SendTransaction(ctx, tx); err != nil {
		s.metrics.sendErrors.Add(ctx, 1)
		span.SetStatus(codes.Error, err.Error())

		// Nonce drift means someone else sent from this account; drop
		// local state so the next send re-syncs.
		if strings.Contains(strings.ToLower(err.Error()), "nonce too low") {
			res.Invalidate()
		} else {
			res.Release()
		}
		return nil, apperror.ClassifyRevert(err, fmt.Sprintf("send to %s", req.To.Hex()))
	}

	res.Commit()

	span.SetAttributes(attribute.String("tx_hash", tx.Hash().Hex()))
	span.SetStatus(codes.Ok, "submitted")

	s.logger.Debug(ctx, "transaction submitted",
		"from", from.Hex(),
		"to", req.To.Hex(),
		"nonce", tx.Nonce(),
		"hash", tx.Hash().Hex(),
	)

	return tx, nil
}

func (s *TxSender) buildAndSign(ctx context.Context, from common.Address, req app.TxRequest, value *big.Int, nonceVal uint64) (*types.Transaction, error) {
	plan, err := s.oracle.SuggestFees(ctx)
	if err != nil {
		return nil, err
	}

	gasLimit := req.GasLimit
	if gasLimit == 0 {
		gasLimit, err = s.oracle.EstimateGas(ctx, from, req.To, req.Data, value)
		if err != nil {
			return nil, err
		}
	}

	var tx *types.Transaction
	if plan.Legacy {
		tx = types.NewTx(&types.LegacyTx{
			Nonce:    nonceVal,
			GasPrice: plan.FeeCap,
			Gas:      gasLimit,
			To:       &req.To,
			Value:    value,
			Data:     req.Data,
		})
	} else {
		tx = types.NewTx(&types.DynamicFeeTx{
			ChainID:   s.cfg.ChainID,
			Nonce:     nonceVal,
			GasTipCap: plan.TipCap,
			GasFeeCap: plan.FeeCap,
			Gas:       gasLimit,
			To:        &req.To,
			Value:     value,
			Data:      req.Data,
		})
	}

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(s.cfg.ChainID), req.Key)
	if err != nil {
		return nil, apperror.New(apperror.CodeInternalError,
			apperror.WithCause(err),
			apperror.WithContext("failed to sign transaction"))
	}
	return signed, nil
}

// SendAndWait implements app.TxSender.
func (s *TxSender) SendAndWait(ctx context.Context, req app.TxRequest) (*types.Receipt, error) {
	tx, err := s.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.Await(ctx, tx)
}

// Await implements app.TxSender.
func (s *TxSender) Await(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	ctx, span := s.tracer.Start(ctx, "ethereum.await_tx",
		trace.WithAttributes(attribute.String("tx_hash", tx.Hash().Hex())),
	)
	defer span.End()

	waitCtx, cancel := context.WithTimeout(ctx, s.cfg.MineTimeout)
	defer cancel()

	start := time.Now()
	receipt, err := bind.WaitMined(waitCtx, s.client, tx)
	s.metrics.mineLatency.Record(ctx, float64(time.Since(start).Milliseconds()))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		if waitCtx.Err() != nil {
			return nil, apperror.New(apperror.CodeTxTimeout,
				apperror.WithCause(err),
				apperror.WithContext(tx.Hash().Hex()))
		}
		return nil, apperror.New(apperror.CodeChainRPCError,
			apperror.WithCause(err),
			apperror.WithContext("waiting for "+tx.Hash().Hex()))
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		span.SetStatus(codes.Error, "reverted")
		return receipt, apperror.New(apperror.CodeExecutionReverted,
			apperror.WithContext(tx.Hash().Hex()))
	}

	span.SetStatus(codes.Ok, "mined")
	return receipt, nil
}
