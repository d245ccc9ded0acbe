package entities

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// TokenConfig represents token configuration from JSON
type TokenConfig struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Address  string `json:"address"`
	ChainID  uint64 `json:"chainId"`
	Decimals uint8  `json:"decimals"`
	LogoURI  string `json:"logoURI"`
}

// TokensConfig represents the tokens.json structure
type TokensConfig struct {
	Tokens []TokenConfig `json:"tokens"`
}

// TokenRegistry holds the static catalog indexed per chain by address and symbol
type TokenRegistry struct {
	byAddress map[uint64]map[common.Address]Token
	bySymbol  map[uint64]map[string]Token
	all       map[uint64][]Token
}

// NewTokenRegistry creates a new token registry
func NewTokenRegistry() *TokenRegistry {
	return &TokenRegistry{
		byAddress: make(map[uint64]map[common.Address]Token),
		bySymbol:  make(map[uint64]map[string]Token),
		all:       make(map[uint64][]Token),
	}
}

// LoadFromFile loads tokens from a JSON config file
func (r *TokenRegistry) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read token config: %w", err)
	}

	var config TokensConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("failed to parse token config: %w", err)
	}

	for _, tc := range config.Tokens {
		if tc.Address != "" && !common.IsHexAddress(tc.Address) {
			return fmt.Errorf("token %s: invalid address %q", tc.Symbol, tc.Address)
		}
		if tc.Decimals > 18 {
			return fmt.Errorf("token %s: decimals %d out of range", tc.Symbol, tc.Decimals)
		}
		r.Register(Token{
			Name:     tc.Name,
			Symbol:   tc.Symbol,
			Address:  common.HexToAddress(tc.Address),
			ChainID:  tc.ChainID,
			Decimals: tc.Decimals,
			LogoURI:  tc.LogoURI,
		})
	}

	return nil
}

// Register adds a token to the registry. Re-registering the same
// (chain, address) replaces the earlier entry.
func (r *TokenRegistry) Register(token Token) {
	if r.byAddress[token.ChainID] == nil {
		r.byAddress[token.ChainID] = make(map[common.Address]Token)
		r.bySymbol[token.ChainID] = make(map[string]Token)
	}

	if _, exists := r.byAddress[token.ChainID][token.Address]; exists {
		list := r.all[token.ChainID]
		for i := range list {
			if list[i].Address == token.Address {
				list[i] = token
			}
		}
	} else {
		r.all[token.ChainID] = append(r.all[token.ChainID], token)
	}

	r.byAddress[token.ChainID][token.Address] = token
	r.bySymbol[token.ChainID][strings.ToUpper(token.Symbol)] = token
}

// GetByAddress returns a token by its address on a chain
func (r *TokenRegistry) GetByAddress(chainID uint64, addr common.Address) (Token, bool) {
	token, ok := r.byAddress[chainID][addr]
	return token, ok
}

// GetBySymbol returns a token by its symbol on a chain, ignoring case
func (r *TokenRegistry) GetBySymbol(chainID uint64, symbol string) (Token, bool) {
	token, ok := r.bySymbol[chainID][strings.ToUpper(symbol)]
	return token, ok
}

// GetAll returns all registered tokens for a chain
func (r *TokenRegistry) GetAll(chainID uint64) []Token {
	out := make([]Token, len(r.all[chainID]))
	copy(out, r.all[chainID])
	return out
}

// FindByAddress searches every chain; used where the caller only has an address
func (r *TokenRegistry) FindByAddress(addr common.Address) (Token, bool) {
	for _, tokens := range r.byAddress {
		if token, ok := tokens[addr]; ok && addr != NativeAddress {
			return token, true
		}
	}
	return Token{}, false
}

// Count returns the number of registered tokens across chains
func (r *TokenRegistry) Count() int {
	n := 0
	for _, tokens := range r.all {
		n += len(tokens)
	}
	return n
}

// DefaultRegistry returns a registry with hardcoded default tokens
// Use this as fallback if config file is not available
func DefaultRegistry() *TokenRegistry {
	r := NewTokenRegistry()
	r.Register(NativeToken(1, "Ether", "ETH", 18))
	r.Register(WETH)
	r.Register(USDC)
	r.Register(USDT)
	r.Register(DAI)
	return r
}
