package dex

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/bimakw/dex-client/internal/domain/entities"
)

// UniswapV2Client reads pairs and router quotes from a Uniswap V2 compatible
// deployment
type UniswapV2Client struct {
	caller  ContractCaller
	factory common.Address
	router  common.Address
	fee     uint64 // Fee in basis points (30 = 0.3%)
}

// NewUniswapV2Client creates a client for the given factory and router
func NewUniswapV2Client(caller ContractCaller, factory, router common.Address) *UniswapV2Client {
	return &UniswapV2Client{
		caller:  caller,
		factory: factory,
		router:  router,
		fee:     entities.DefaultFeeBps,
	}
}

func (c *UniswapV2Client) Router() common.Address  { return c.router }
func (c *UniswapV2Client) Factory() common.Address { return c.factory }

// GetPairAddress returns the pair address for two tokens, or the zero address
// when the factory has no pair for them
func (c *UniswapV2Client) GetPairAddress(ctx context.Context, tokenA, tokenB common.Address) (common.Address, error) {
	token0, token1 := entities.SortTokens(tokenA, tokenB)

	out, err := call(ctx, c.caller, c.factory, factoryABI, "getPair", token0, token1)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to get pair address: %w", err)
	}
	pair, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("getPair: unexpected result %T", out[0])
	}
	return pair, nil
}

// GetPair fetches reserves, orientation and LP supply of a pair. tokenA and
// tokenB may be given in any order.
func (c *UniswapV2Client) GetPair(ctx context.Context, pairAddress common.Address, tokenA, tokenB entities.Token) (*entities.Pair, error) {
	msgs := make([]ethereum.CallMsg, 0, 2)
	for _, method := range []string{"token0", "getReserves"} {
		data, err := pairABI.Pack(method)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, ethereum.CallMsg{To: &pairAddress, Data: data})
	}

	results, err := batch(ctx, c.caller, msgs)
	if err != nil {
		return nil, fmt.Errorf("failed to read pair %s: %w", pairAddress.Hex(), err)
	}

	token0Out, err := unpack(pairABI, "token0", results[0])
	if err != nil {
		return nil, err
	}
	reservesOut, err := unpack(pairABI, "getReserves", results[1])
	if err != nil {
		return nil, err
	}

	token0Addr, _ := token0Out[0].(common.Address)
	reserve0, _ := reservesOut[0].(*big.Int)
	reserve1, _ := reservesOut[1].(*big.Int)
	if reserve0 == nil || reserve1 == nil {
		return nil, fmt.Errorf("getReserves: unexpected result")
	}

	token0, token1 := tokenA, tokenB
	if token0Addr == tokenB.Address {
		token0, token1 = tokenB, tokenA
	}

	pair := &entities.Pair{
		Address:   pairAddress,
		Token0:    token0,
		Token1:    token1,
		Reserve0:  reserve0,
		Reserve1:  reserve1,
		Fee:       c.fee,
		UpdatedAt: time.Now().Unix(),
	}

	// LP supply is optional; quotes fall back to an estimate without it
	if supply, err := c.TotalSupply(ctx, pairAddress); err == nil {
		pair.TotalSupply = supply
	}
	return pair, nil
}

// GetPairByTokens fetches pair data by token addresses
func (c *UniswapV2Client) GetPairByTokens(ctx context.Context, tokenA, tokenB entities.Token) (*entities.Pair, error) {
	pairAddress, err := c.GetPairAddress(ctx, tokenA.Address, tokenB.Address)
	if err != nil {
		return nil, err
	}
	if pairAddress == (common.Address{}) {
		return nil, ErrPairNotFound
	}
	return c.GetPair(ctx, pairAddress, tokenA, tokenB)
}

// TotalSupply returns the ERC-20 total supply of token (LP supply for pairs)
func (c *UniswapV2Client) TotalSupply(ctx context.Context, token common.Address) (*big.Int, error) {
	out, err := call(ctx, c.caller, token, pairABI, "totalSupply")
	if err != nil {
		return nil, err
	}
	supply, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("totalSupply: unexpected result %T", out[0])
	}
	return supply, nil
}

// GetAmountsOut asks the router for the output amounts along path
func (c *UniswapV2Client) GetAmountsOut(ctx context.Context, amountIn *big.Int, path []common.Address) ([]*big.Int, error) {
	out, err := call(ctx, c.caller, c.router, routerABI, "getAmountsOut", amountIn, path)
	if err != nil {
		return nil, fmt.Errorf("getAmountsOut: %w", err)
	}
	amounts, ok := out[0].([]*big.Int)
	if !ok || len(amounts) != len(path) {
		return nil, fmt.Errorf("getAmountsOut: unexpected result")
	}
	return amounts, nil
}

func call(ctx context.Context, caller ContractCaller, to common.Address, contract abi.ABI, method string, args ...any) ([]any, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	result, err := caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data})
	if err != nil {
		return nil, err
	}
	return unpack(contract, method, result)
}

func unpack(contract abi.ABI, method string, result []byte) ([]any, error) {
	if len(result) == 0 {
		return nil, fmt.Errorf("%s: %w", method, ErrNoContract)
	}
	out, err := contract.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: empty result", method)
	}
	return out, nil
}

func batch(ctx context.Context, caller ContractCaller, msgs []ethereum.CallMsg) ([][]byte, error) {
	if bc, ok := caller.(BatchCaller); ok {
		return bc.Multicall(ctx, msgs)
	}
	results := make([][]byte, len(msgs))
	for i, msg := range msgs {
		out, err := caller.CallContract(ctx, msg)
		if err != nil {
			return nil, err
		}
		results[i] = out
	}
	return results, nil
}
