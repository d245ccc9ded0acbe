package dex

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// ABIs (minimal fragments of the UniswapV2 periphery/core and ERC-20)
const (
	FactoryABI = `[
		{"inputs":[{"name":"tokenA","type":"address"},{"name":"tokenB","type":"address"}],
		 "name":"getPair","outputs":[{"name":"pair","type":"address"}],"stateMutability":"view","type":"function"}
	]`

	PairABI = `[
		{"inputs":[],"name":"getReserves","outputs":[
			{"name":"reserve0","type":"uint112"},
			{"name":"reserve1","type":"uint112"},
			{"name":"blockTimestampLast","type":"uint32"}],
		 "stateMutability":"view","type":"function"},
		{"inputs":[],"name":"token0","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"},
		{"inputs":[],"name":"token1","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"},
		{"inputs":[],"name":"totalSupply","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
	]`

	RouterABI = `[
		{"inputs":[
			{"name":"amountIn","type":"uint256"},
			{"name":"path","type":"address[]"}],
		 "name":"getAmountsOut","outputs":[{"name":"amounts","type":"uint256[]"}],
		 "stateMutability":"view","type":"function"},

		{"inputs":[
			{"name":"amountOutMin","type":"uint256"},
			{"name":"path","type":"address[]"},
			{"name":"to","type":"address"},
			{"name":"deadline","type":"uint256"}],
		 "name":"swapExactETHForTokens","outputs":[{"name":"amounts","type":"uint256[]"}],
		 "stateMutability":"payable","type":"function"},

		{"inputs":[
			{"name":"amountIn","type":"uint256"},
			{"name":"amountOutMin","type":"uint256"},
			{"name":"path","type":"address[]"},
			{"name":"to","type":"address"},
			{"name":"deadline","type":"uint256"}],
		 "name":"swapExactTokensForETH","outputs":[{"name":"amounts","type":"uint256[]"}],
		 "stateMutability":"nonpayable","type":"function"},

		{"inputs":[
			{"name":"amountIn","type":"uint256"},
			{"name":"amountOutMin","type":"uint256"},
			{"name":"path","type":"address[]"},
			{"name":"to","type":"address"},
			{"name":"deadline","type":"uint256"}],
		 "name":"swapExactTokensForTokens","outputs":[{"name":"amounts","type":"uint256[]"}],
		 "stateMutability":"nonpayable","type":"function"},

		{"inputs":[
			{"name":"tokenA","type":"address"},
			{"name":"tokenB","type":"address"},
			{"name":"amountADesired","type":"uint256"},
			{"name":"amountBDesired","type":"uint256"},
			{"name":"amountAMin","type":"uint256"},
			{"name":"amountBMin","type":"uint256"},
			{"name":"to","type":"address"},
			{"name":"deadline","type":"uint256"}],
		 "name":"addLiquidity","outputs":[
			{"name":"amountA","type":"uint256"},
			{"name":"amountB","type":"uint256"},
			{"name":"liquidity","type":"uint256"}],
		 "stateMutability":"nonpayable","type":"function"},

		{"inputs":[
			{"name":"token","type":"address"},
			{"name":"amountTokenDesired","type":"uint256"},
			{"name":"amountTokenMin","type":"uint256"},
			{"name":"amountETHMin","type":"uint256"},
			{"name":"to","type":"address"},
			{"name":"deadline","type":"uint256"}],
		 "name":"addLiquidityETH","outputs":[
			{"name":"amountToken","type":"uint256"},
			{"name":"amountETH","type":"uint256"},
			{"name":"liquidity","type":"uint256"}],
		 "stateMutability":"payable","type":"function"},

		{"inputs":[
			{"name":"tokenA","type":"address"},
			{"name":"tokenB","type":"address"},
			{"name":"liquidity","type":"uint256"},
			{"name":"amountAMin","type":"uint256"},
			{"name":"amountBMin","type":"uint256"},
			{"name":"to","type":"address"},
			{"name":"deadline","type":"uint256"}],
		 "name":"removeLiquidity","outputs":[
			{"name":"amountA","type":"uint256"},
			{"name":"amountB","type":"uint256"}],
		 "stateMutability":"nonpayable","type":"function"},

		{"inputs":[
			{"name":"token","type":"address"},
			{"name":"liquidity","type":"uint256"},
			{"name":"amountTokenMin","type":"uint256"},
			{"name":"amountETHMin","type":"uint256"},
			{"name":"to","type":"address"},
			{"name":"deadline","type":"uint256"}],
		 "name":"removeLiquidityETH","outputs":[
			{"name":"amountToken","type":"uint256"},
			{"name":"amountETH","type":"uint256"}],
		 "stateMutability":"nonpayable","type":"function"}
	]`

	ERC20ABI = `[
		{"inputs":[],"name":"name","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
		{"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
		{"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
		{"inputs":[],"name":"totalSupply","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
		{"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
		{"inputs":[{"name":"_owner","type":"address"},{"name":"_spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
		{"inputs":[{"name":"_spender","type":"address"},{"name":"_value","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"}
	]`
)

var (
	factoryABI = mustParseABI(FactoryABI)
	pairABI    = mustParseABI(PairABI)
	routerABI  = mustParseABI(RouterABI)
	erc20ABI   = mustParseABI(ERC20ABI)
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic("dex: invalid ABI fragment: " + err.Error())
	}
	return parsed
}
