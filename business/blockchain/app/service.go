// Package app contains application services and port definitions for the blockchain context.
package app

import (
	"context"

	"github.com/flowsniper/flowsniper/business/blockchain/domain"
)

// ChainService coordinates chain interactions for the rest of the application.
type ChainService struct {
	subscriber BlockSubscriber
	gasOracle  GasOracle
}

// NewChainService creates a new ChainService.
func NewChainService(subscriber BlockSubscriber, gasOracle GasOracle) *ChainService {
	return &ChainService{
		subscriber: subscriber,
		gasOracle:  gasOracle,
	}
}

// SubscribeBlocks starts the block subscription and returns the channel.
func (s *ChainService) SubscribeBlocks(ctx context.Context) (<-chan *domain.Block, error) {
	return s.subscriber.Subscribe(ctx)
}

// LatestBlock retrieves the most recent block.
func (s *ChainService) LatestBlock(ctx context.Context) (*domain.Block, error) {
	return s.subscriber.LatestBlock(ctx)
}

// SuggestFees returns the fee plan for the next transaction.
func (s *ChainService) SuggestFees(ctx context.Context) (*domain.FeePlan, error) {
	return s.gasOracle.SuggestFees(ctx)
}

// ConnectionState returns the current connection state.
func (s *ChainService) ConnectionState() domain.ConnectionState {
	return s.subscriber.State()
}
