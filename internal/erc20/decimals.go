package erc20

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/flowsniper/flowsniper/internal/asset"
)

// DecimalsReader reads decimals() from the chain. Satisfied by *Binding.
type DecimalsReader interface {
	Decimals(ctx context.Context, token common.Address) (uint8, error)
}

// DecimalsResolver answers token decimals from the asset registry when it
// can, and from an on-chain decimals() call otherwise. On-chain answers are
// memoized for the process lifetime, so each unknown token costs at most one
// RPC round trip.
type DecimalsResolver struct {
	binding  DecimalsReader
	registry *asset.Registry
	chainID  uint64

	mu   sync.Mutex
	memo map[common.Address]uint8
}

// NewDecimalsResolver creates a resolver for tokens on the given chain.
func NewDecimalsResolver(binding DecimalsReader, registry *asset.Registry, chainID uint64) *DecimalsResolver {
	return &DecimalsResolver{
		binding:  binding,
		registry: registry,
		chainID:  chainID,
		memo:     make(map[common.Address]uint8),
	}
}

// Resolve returns the token's decimals.
func (r *DecimalsResolver) Resolve(ctx context.Context, token common.Address) (uint8, error) {
	if a, ok := r.registry.GetToken(r.chainID, token); ok {
		return a.Decimals(), nil
	}

	r.mu.Lock()
	if d, ok := r.memo[token]; ok {
		r.mu.Unlock()
		return d, nil
	}
	r.mu.Unlock()

	d, err := r.binding.Decimals(ctx, token)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	r.memo[token] = d
	r.mu.Unlock()

	return d, nil
}
