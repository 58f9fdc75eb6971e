package trigger

import (
	"context"

	blockchainApp "github.com/flowsniper/flowsniper/business/blockchain/app"
)

// Block fires a scan cycle for every new chain head.
type Block struct {
	chain *blockchainApp.ChainService
}

// NewBlock creates a block-subscription trigger.
func NewBlock(chain *blockchainApp.ChainService) *Block {
	return &Block{chain: chain}
}

// Name identifies the driver in logs.
func (b *Block) Name() string { return "block" }

// Triggers delivers one value per new block until ctx is done.
func (b *Block) Triggers(ctx context.Context) (<-chan struct{}, error) {
	blocks, err := b.chain.SubscribeBlocks(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case block, ok := <-blocks:
				if !ok {
					return
				}
				if block == nil {
					continue
				}
				select {
				case out <- struct{}{}:
				default:
					// Scan still running; coalesce heads.
				}
			}
		}
	}()

	return out, nil
}
