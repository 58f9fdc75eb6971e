package app

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"context"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowsniper/flowsniper/business/custody/domain"
	"github.com/flowsniper/flowsniper/internal/apperror"
	"github.com/flowsniper/flowsniper/internal/logger"
)

const (
	tracerName = "github.com/flowsniper/flowsniper/business/custody/app"
	meterName  = "github.com/flowsniper/flowsniper/business/custody/app"
)

type custodyMetrics struct {
	pairings    metric.Int64Counter
	pullsTotal  metric.Int64Counter
	pullErrors  metric.Int64Counter
	pulledUnits metric.Float64Counter
}

// CustodyManager owns the operator key, the owner pairing and the funding
// checks that gate every trade.
type CustodyManager struct {
	operator *domain.Signer
	signers  map[common.Address]*domain.Signer
	tokens   TokenCustody
	logger   logger.LoggerInterface

	mu      sync.RWMutex
	pairing *domain.Pairing

	tracer  trace.Tracer
	metrics *custodyMetrics
}

// NewCustodyManager loads the key material and builds the manager.
func NewCustodyManager(keys KeyStore, tokens TokenCustody, log logger.LoggerInterface) (*CustodyManager, error) {
	operator, err := keys.LoadOrCreateOperator()
	if err != nil {
		return nil, err
	}

	extra, err := keys.Signers()
	if err != nil {
		return nil, err
	}

	signers := make(map[common.Address]*domain.Signer, len(extra)+1)
	signers[operator.Address()] = operator
	for _, s := range extra {
		signers[s.Address()] = s
	}

	m := &CustodyManager{
		operator: operator,
		signers:  signers,
		tokens:   tokens,
		logger:   log,
		tracer:   otel.Tracer(tracerName),
	}

	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return m, nil
}

func (m *CustodyManager) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	m.metrics = &custodyMetrics{}

	m.metrics.pairings, err = meter.Int64Counter(
		"custody_pairings_total",
		metric.WithDescription("Successful owner pairings"),
	)
	if err != nil {
		return err
	}

	m.metrics.pullsTotal, err = meter.Int64Counter(
		"custody_pulls_total",
		metric.WithDescription("Owner fund pull attempts"),
	)
	if err != nil {
		return err
	}

	m.metrics.pullErrors, err = meter.Int64Counter(
		"custody_pull_errors_total",
		metric.WithDescription("Failed owner fund pulls"),
	)
	if err != nil {
		return err
	}

	m.metrics.pulledUnits, err = meter.Float64Counter(
		"custody_pulled_units_total",
		metric.WithDescription("Raw token units pulled from the owner"),
	)
	if err != nil {
		return err
	}

	return nil
}

// Operator returns the operator's account address.
func (m *CustodyManager) Operator() common.Address {
	return m.operator.Address()
}

// Owner returns the paired owner, if any.
func (m *CustodyManager) Owner() (common.Address, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.pairing == nil {
		return common.Address{}, false
	}
	return m.pairing.Owner, true
}

// Pair verifies the owner's signature over the pairing message and records
// the binding. Re-pairing with a new owner replaces the old one.
func (m *CustodyManager) Pair(ctx context.Context, owner common.Address, signature []byte) (*domain.Pairing, error) {
	ctx, span := m.tracer.Start(ctx, "custody.pair",
		trace.WithAttributes(attribute.String("owner", owner.Hex())),
	)
	defer span.End()

	if err := domain.VerifyPairingSignature(owner, m.operator.Address(), signature); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, apperror.Wrap(err, apperror.CodePairingFailed, owner.Hex())
	}

	pairing := &domain.Pairing{
		Owner:    owner,
		Operator: m.operator.Address(),
		PairedAt: time.Now(),
	}

	m.mu.Lock()
	m.pairing = pairing
	m.mu.Unlock()

	m.metrics.pairings.Add(ctx, 1)
	span.SetStatus(codes.Ok, "paired")

	m.logger.Info(ctx, "owner paired",
		"owner", owner.Hex(),
		"operator", m.operator.Address().Hex(),
	)

	return pairing, nil
}

// ResolveSigner picks the key to sign with: exact match on preferred, then
// the operator, then the only key in the store.
func (m *CustodyManager) ResolveSigner(preferred common.Address) (*domain.Signer, error) {
	if (preferred != common.Address{}) {
		if s, ok := m.signers[preferred]; ok {
			return s, nil
		}
	}
	if m.operator != nil {
		return m.operator, nil
	}
	if len(m.signers) == 1 {
		for _, s := range m.signers {
			return s, nil
		}
	}
	return nil, apperror.New(apperror.CodeKeyStoreUnavailable,
		apperror.WithContext("no usable signing key"))
}

// EnsureFunds guarantees the operator holds at least amount of token before
// a trade, pulling the shortfall from the paired owner when the allowance
// covers it. One pull attempt; a shortfall the allowance cannot cover is a
// hard refusal.
func (m *CustodyManager) EnsureFunds(ctx context.Context, token common.Address, amount *big.Int) error {
	ctx, span := m.tracer.Start(ctx, "custody.ensure_funds",
		trace.WithAttributes(
			attribute.String("token", token.Hex()),
			attribute.String("amount", amount.String()),
		),
	)
	defer span.End()

	operator := m.operator.Address()

	balance, err := m.tokens.BalanceOf(ctx, token, operator)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if balance.Cmp(amount) >= 0 {
		span.SetStatus(codes.Ok, "operator funded")
		return nil
	}

	shortfall := new(big.Int).Sub(amount, balance)

	owner, paired := m.Owner()
	if !paired {
		span.SetStatus(codes.Error, "no owner")
		return apperror.New(apperror.CodeOwnerNotPaired,
			apperror.WithContext(fmt.Sprintf("operator short %s units and no owner to pull from", shortfall)))
	}

	allowance, err := m.tokens.Allowance(ctx, token, owner, operator)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if allowance.Cmp(shortfall) < 0 {
		span.SetStatus(codes.Error, "allowance short")
		return apperror.New(apperror.CodeInsufficientAllowance,
			apperror.WithContext(fmt.Sprintf("need %s, allowance %s", shortfall, allowance)))
	}

	m.metrics.pullsTotal.Add(ctx, 1)

	hash, err := m.tokens.PullFunds(ctx, token, m.operator, owner, shortfall)
	if err != nil {
		m.metrics.pullErrors.Add(ctx, 1)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	pulled, _ := new(big.Float).SetInt(shortfall).Float64()
	m.metrics.pulledUnits.Add(ctx, pulled,
		metric.WithAttributes(attribute.String("token", token.Hex())))

	span.SetAttributes(attribute.String("pull_tx", hash.Hex()))
	span.SetStatus(codes.Ok, "shortfall pulled")

	m.logger.Info(ctx, "pulled owner funds",
		"token", token.Hex(),
		"amount", shortfall.String(),
		"owner", owner.Hex(),
		"tx", hash.Hex(),
	)

	return nil
}
