package dex

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/bimakw/dex-client/internal/domain/entities"
)

var (
	ErrPairNotFound = errors.New("pair does not exist")
	ErrNoContract   = errors.New("no contract code at address")
)

// ContractCaller executes read-only contract calls
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)
}

// BatchCaller can run several calls concurrently
type BatchCaller interface {
	ContractCaller
	Multicall(ctx context.Context, calls []ethereum.CallMsg) ([][]byte, error)
}

// DEXClient defines the interface for interacting with a constant-product DEX
type DEXClient interface {
	GetPairAddress(ctx context.Context, tokenA, tokenB common.Address) (common.Address, error)

	// GetPairByTokens returns the pair with live reserves, or ErrPairNotFound
	GetPairByTokens(ctx context.Context, tokenA, tokenB entities.Token) (*entities.Pair, error)

	// GetAmountsOut asks the router for the output along path
	GetAmountsOut(ctx context.Context, amountIn *big.Int, path []common.Address) ([]*big.Int, error)

	Router() common.Address
}

// TokenReader reads ERC-20 state
type TokenReader interface {
	Metadata(ctx context.Context, token common.Address) (TokenMetadata, error)
	BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error)
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
}
