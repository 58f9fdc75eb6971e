// Package erc20 holds a hand-rolled binding for the slice of the ERC-20
// interface the bot touches: balance/allowance/decimals reads and the
// calldata for transfer, transferFrom and approve.
package erc20

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ABI covers the methods the bot uses.
const ABI = `[
	{
		"inputs": [{"internalType": "address", "name": "account", "type": "address"}],
		"name": "balanceOf",
		"outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "owner", "type": "address"},
			{"internalType": "address", "name": "spender", "type": "address"}
		],
		"name": "allowance",
		"outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "decimals",
		"outputs": [{"internalType": "uint8", "name": "", "type": "uint8"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "to", "type": "address"},
			{"internalType": "uint256", "name": "amount", "type": "uint256"}
		],
		"name": "transfer",
		"outputs": [{"internalType": "bool", "name": "", "type": "bool"}],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "from", "type": "address"},
			{"internalType": "address", "name": "to", "type": "address"},
			{"internalType": "uint256", "name": "amount", "type": "uint256"}
		],
		"name": "transferFrom",
		"outputs": [{"internalType": "bool", "name": "", "type": "bool"}],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "spender", "type": "address"},
			{"internalType": "uint256", "name": "amount", "type": "uint256"}
		],
		"name": "approve",
		"outputs": [{"internalType": "bool", "name": "", "type": "bool"}],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

// MaxApproval is the infinite-approval sentinel (2^256 - 1).
var MaxApproval = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

var (
	parseOnce sync.Once
	parsedABI abi.ABI
	parseErr  error
)

func parsed() (abi.ABI, error) {
	parseOnce.Do(func() {
		parsedABI, parseErr = abi.JSON(strings.NewReader(ABI))
	})
	return parsedABI, parseErr
}

// Binding wraps read calls and calldata packing for one RPC client.
type Binding struct {
	client *ethclient.Client
	abi    abi.ABI
}

// NewBinding creates a binding over the given client.
func NewBinding(client *ethclient.Client) (*Binding, error) {
	a, err := parsed()
	if err != nil {
		return nil, fmt.Errorf("failed to parse erc20 ABI: %w", err)
	}
	return &Binding{client: client, abi: a}, nil
}

func (b *Binding) call(ctx context.Context, token common.Address, method string, args ...any) ([]any, error) {
	data, err := b.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", method, err)
	}
	raw, err := b.client.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%s call failed: %w", method, err)
	}
	outputs, err := b.abi.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return outputs, nil
}

// BalanceOf reads the token balance of account.
func (b *Binding) BalanceOf(ctx context.Context, token, account common.Address) (*big.Int, error) {
	outputs, err := b.call(ctx, token, "balanceOf", account)
	if err != nil {
		return nil, err
	}
	return outputs[0].(*big.Int), nil
}

// Allowance reads the spender allowance granted by owner.
func (b *Binding) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	outputs, err := b.call(ctx, token, "allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	return outputs[0].(*big.Int), nil
}

// Decimals reads the token's decimals.
func (b *Binding) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	outputs, err := b.call(ctx, token, "decimals")
	if err != nil {
		return 0, err
	}
	return outputs[0].(uint8), nil
}

// PackTransfer encodes transfer(to, amount).
func PackTransfer(to common.Address, amount *big.Int) ([]byte, error) {
	a, err := parsed()
	if err != nil {
		return nil, err
	}
	return a.Pack("transfer", to, amount)
}

// PackTransferFrom encodes transferFrom(from, to, amount).
func PackTransferFrom(from, to common.Address, amount *big.Int) ([]byte, error) {
	a, err := parsed()
	if err != nil {
		return nil, err
	}
	return a.Pack("transferFrom", from, to, amount)
}

// PackApprove encodes approve(spender, amount).
func PackApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	a, err := parsed()
	if err != nil {
		return nil, err
	}
	return a.Pack("approve", spender, amount)
}
