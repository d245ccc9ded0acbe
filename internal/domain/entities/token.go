package entities

import (
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// NativeAddress is the all-zeros sentinel that denotes a chain's native coin
var NativeAddress = common.Address{}

type Token struct {
	Name     string         `json:"name"`
	Symbol   string         `json:"symbol"`
	Address  common.Address `json:"address"`
	ChainID  uint64         `json:"chainId"`
	Decimals uint8          `json:"decimals"`
	LogoURI  string         `json:"logoURI,omitempty"`
}

// IsNative reports whether the token is the chain's native coin
func (t Token) IsNative() bool {
	return t.Address == NativeAddress
}

// Equal compares tokens by (chainId, address). Addresses are parsed values,
// so the comparison ignores the case of their hex form.
func (t Token) Equal(other Token) bool {
	return t.ChainID == other.ChainID && t.Address == other.Address
}

// SameSymbol compares symbols case-insensitively
func (t Token) SameSymbol(other Token) bool {
	return strings.EqualFold(t.Symbol, other.Symbol)
}

// Key returns a stable lowercase identifier for maps and cache keys
func (t Token) Key() string {
	return TokenKey(t.ChainID, t.Address)
}

func TokenKey(chainID uint64, addr common.Address) string {
	return strings.ToLower(addr.Hex()) + "@" + strconv.FormatUint(chainID, 10)
}

// NativeToken builds the native coin entry for a chain
func NativeToken(chainID uint64, name, symbol string, decimals uint8) Token {
	return Token{
		Name:     name,
		Symbol:   symbol,
		Address:  NativeAddress,
		ChainID:  chainID,
		Decimals: decimals,
	}
}

// Default Ethereum mainnet tokens

var USDC = Token{
	Name:     "USD Coin",
	Symbol:   "USDC",
	Address:  common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"),
	ChainID:  1,
	Decimals: 6,
}

var USDT = Token{
	Name:     "Tether USD",
	Symbol:   "USDT",
	Address:  common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7"),
	ChainID:  1,
	Decimals: 6,
}

var WETH = Token{
	Name:     "Wrapped Ether",
	Symbol:   "WETH",
	Address:  common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"),
	ChainID:  1,
	Decimals: 18,
}

var DAI = Token{
	Name:     "Dai Stablecoin",
	Symbol:   "DAI",
	Address:  common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F"),
	ChainID:  1,
	Decimals: 18,
}
