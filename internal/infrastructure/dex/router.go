package dex

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// SwapParams carries the arguments of the swapExact* router calls. AmountIn
// is ignored for native-in swaps, whose input is the transaction value.
type SwapParams struct {
	AmountIn     *big.Int
	AmountOutMin *big.Int
	Path         []common.Address
	To           common.Address
	Deadline     *big.Int
}

// AddLiquidityParams for token-token liquidity additions
type AddLiquidityParams struct {
	TokenA         common.Address
	TokenB         common.Address
	AmountADesired *big.Int
	AmountBDesired *big.Int
	AmountAMin     *big.Int
	AmountBMin     *big.Int
	To             common.Address
	Deadline       *big.Int
}

// AddLiquidityETHParams for token-native liquidity additions
type AddLiquidityETHParams struct {
	Token          common.Address
	AmountTokenDes *big.Int
	AmountTokenMin *big.Int
	AmountETHMin   *big.Int
	To             common.Address
	Deadline       *big.Int
}

// RemoveLiquidityParams for token-token withdrawals
type RemoveLiquidityParams struct {
	TokenA     common.Address
	TokenB     common.Address
	Liquidity  *big.Int
	AmountAMin *big.Int
	AmountBMin *big.Int
	To         common.Address
	Deadline   *big.Int
}

// RemoveLiquidityETHParams for token-native withdrawals
type RemoveLiquidityETHParams struct {
	Token          common.Address
	Liquidity      *big.Int
	AmountTokenMin *big.Int
	AmountETHMin   *big.Int
	To             common.Address
	Deadline       *big.Int
}

func PackSwapExactETHForTokens(p SwapParams) ([]byte, error) {
	return routerABI.Pack("swapExactETHForTokens", p.AmountOutMin, p.Path, p.To, p.Deadline)
}

func PackSwapExactTokensForETH(p SwapParams) ([]byte, error) {
	return routerABI.Pack("swapExactTokensForETH", p.AmountIn, p.AmountOutMin, p.Path, p.To, p.Deadline)
}

func PackSwapExactTokensForTokens(p SwapParams) ([]byte, error) {
	return routerABI.Pack("swapExactTokensForTokens", p.AmountIn, p.AmountOutMin, p.Path, p.To, p.Deadline)
}

func PackAddLiquidity(p AddLiquidityParams) ([]byte, error) {
	return routerABI.Pack("addLiquidity",
		p.TokenA, p.TokenB, p.AmountADesired, p.AmountBDesired, p.AmountAMin, p.AmountBMin, p.To, p.Deadline)
}

func PackAddLiquidityETH(p AddLiquidityETHParams) ([]byte, error) {
	return routerABI.Pack("addLiquidityETH",
		p.Token, p.AmountTokenDes, p.AmountTokenMin, p.AmountETHMin, p.To, p.Deadline)
}

func PackRemoveLiquidity(p RemoveLiquidityParams) ([]byte, error) {
	return routerABI.Pack("removeLiquidity",
		p.TokenA, p.TokenB, p.Liquidity, p.AmountAMin, p.AmountBMin, p.To, p.Deadline)
}

func PackRemoveLiquidityETH(p RemoveLiquidityETHParams) ([]byte, error) {
	return routerABI.Pack("removeLiquidityETH",
		p.Token, p.Liquidity, p.AmountTokenMin, p.AmountETHMin, p.To, p.Deadline)
}

// MethodName returns the router/ERC-20 method a calldata blob invokes, or ""
func MethodName(data []byte) string {
	m, err := methodOf(data)
	if err != nil {
		return ""
	}
	return m.Name
}

// DecodeCall unpacks router or ERC-20 calldata into its method name and
// positional arguments
func DecodeCall(data []byte) (string, []any, error) {
	m, err := methodOf(data)
	if err != nil {
		return "", nil, err
	}
	args, err := m.Inputs.Unpack(data[4:])
	if err != nil {
		return "", nil, fmt.Errorf("decode %s: %w", m.Name, err)
	}
	return m.Name, args, nil
}

func methodOf(data []byte) (*abi.Method, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("calldata too short: %d bytes", len(data))
	}
	if m, err := routerABI.MethodById(data[:4]); err == nil {
		return m, nil
	}
	return erc20ABI.MethodById(data[:4])
}
