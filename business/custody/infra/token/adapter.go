// Package token adapts ERC-20 reads and owner fund pulls onto the chain
// client and transaction sender.
package token

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	blockchainApp "github.com/flowsniper/flowsniper/business/blockchain/app"
	"github.com/flowsniper/flowsniper/business/custody/app"
	"github.com/flowsniper/flowsniper/business/custody/domain"
	"github.com/flowsniper/flowsniper/internal/erc20"
	"github.com/flowsniper/flowsniper/internal/logger"
)

const tracerName = "github.com/flowsniper/flowsniper/business/custody/infra/token"

var _ app.TokenCustody = (*Adapter)(nil)

// Adapter implements TokenCustody over the shared ERC-20 binding.
type Adapter struct {
	binding *erc20.Binding
	sender  blockchainApp.TxSender
	logger  logger.LoggerInterface
	tracer  trace.Tracer
}

// NewAdapter creates the adapter.
func NewAdapter(client *ethclient.Client, sender blockchainApp.TxSender, log logger.LoggerInterface) (*Adapter, error) {
	binding, err := erc20.NewBinding(client)
	if err != nil {
		return nil, err
	}
	return &Adapter{
		binding: binding,
		sender:  sender,
		logger:  log,
		tracer:  otel.Tracer(tracerName),
	}, nil
}

// BalanceOf implements app.TokenCustody.
func (a *Adapter) BalanceOf(ctx context.Context, token, account common.Address) (*big.Int, error) {
	return a.binding.BalanceOf(ctx, token, account)
}

// Allowance implements app.TokenCustody.
func (a *Adapter) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	return a.binding.Allowance(ctx, token, owner, spender)
}

// PullFunds implements app.TokenCustody. The transferFrom is signed by the
// operator and awaited, so the balance is usable when this returns.
func (a *Adapter) PullFunds(ctx context.Context, token common.Address, operator *domain.Signer, owner common.Address, amount *big.Int) (common.Hash, error) {
	ctx, span := a.tracer.Start(ctx, "token.pull_funds",
		trace.WithAttributes(
			attribute.String("token", token.Hex()),
			attribute.String("owner", owner.Hex()),
			attribute.String("amount", amount.String()),
		),
	)
	defer span.End()

	data, err := erc20.PackTransferFrom(owner, operator.Address(), amount)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to encode transferFrom: %w", err)
	}

	receipt, err := a.sender.SendAndWait(ctx, blockchainApp.TxRequest{
		Key:  operator.Key(),
		To:   token,
		Data: data,
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return common.Hash{}, err
	}

	span.SetStatus(codes.Ok, "pulled")
	return receipt.TxHash, nil
}
