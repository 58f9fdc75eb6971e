// Package app contains application services and port definitions for the custody context.
package app

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/flowsniper/flowsniper/business/custody/domain"
)

// KeyStore loads and creates local signing keys.
type KeyStore interface {
	// LoadOrCreateOperator returns the operator signer, generating and
	// persisting a fresh key on first run.
	LoadOrCreateOperator() (*domain.Signer, error)

	// Signers returns every additional key found in the store.
	Signers() ([]*domain.Signer, error)
}

// TokenCustody reads balances/allowances and moves owner funds.
type TokenCustody interface {
	// BalanceOf reads account's balance of token.
	BalanceOf(ctx context.Context, token, account common.Address) (*big.Int, error)

	// Allowance reads what owner has approved spender to move.
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)

	// PullFunds moves amount of token from the owner to the operator via
	// transferFrom, signed by the operator, and waits for inclusion.
	PullFunds(ctx context.Context, token common.Address, operator *domain.Signer, owner common.Address, amount *big.Int) (common.Hash, error)
}
