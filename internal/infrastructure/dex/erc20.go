package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TokenMetadata is what a token contract reports about itself
type TokenMetadata struct {
	Name     string
	Symbol   string
	Decimals uint8
}

// ERC20Client reads token contracts
type ERC20Client struct {
	caller ContractCaller
}

func NewERC20Client(caller ContractCaller) *ERC20Client {
	return &ERC20Client{caller: caller}
}

// Metadata reads name, symbol and decimals. A missing contract or any
// failing call is an error.
func (c *ERC20Client) Metadata(ctx context.Context, token common.Address) (TokenMetadata, error) {
	var md TokenMetadata

	name, err := c.readString(ctx, token, "name")
	if err != nil {
		return md, err
	}
	symbol, err := c.readString(ctx, token, "symbol")
	if err != nil {
		return md, err
	}
	out, err := call(ctx, c.caller, token, erc20ABI, "decimals")
	if err != nil {
		return md, fmt.Errorf("decimals of %s: %w", token.Hex(), err)
	}
	decimals, ok := out[0].(uint8)
	if !ok {
		return md, fmt.Errorf("decimals of %s: unexpected result %T", token.Hex(), out[0])
	}

	return TokenMetadata{Name: name, Symbol: symbol, Decimals: decimals}, nil
}

func (c *ERC20Client) readString(ctx context.Context, token common.Address, method string) (string, error) {
	out, err := call(ctx, c.caller, token, erc20ABI, method)
	if err != nil {
		return "", fmt.Errorf("%s of %s: %w", method, token.Hex(), err)
	}
	s, ok := out[0].(string)
	if !ok {
		return "", fmt.Errorf("%s of %s: unexpected result %T", method, token.Hex(), out[0])
	}
	return s, nil
}

func (c *ERC20Client) BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	return c.readUint(ctx, token, "balanceOf", owner)
}

func (c *ERC20Client) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	return c.readUint(ctx, token, "allowance", owner, spender)
}

func (c *ERC20Client) TotalSupply(ctx context.Context, token common.Address) (*big.Int, error) {
	return c.readUint(ctx, token, "totalSupply")
}

func (c *ERC20Client) readUint(ctx context.Context, token common.Address, method string, args ...any) (*big.Int, error) {
	out, err := call(ctx, c.caller, token, erc20ABI, method, args...)
	if err != nil {
		return nil, fmt.Errorf("%s of %s: %w", method, token.Hex(), err)
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s of %s: unexpected result %T", method, token.Hex(), out[0])
	}
	return v, nil
}

// PackApprove encodes approve(spender, amount)
func PackApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	return erc20ABI.Pack("approve", spender, amount)
}
