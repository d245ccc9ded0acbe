package entities

import (
	"bytes"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// DefaultFeeBps is the constant-product pool fee: 30 bps = 997/1000
const DefaultFeeBps uint64 = 30

// Pair represents a constant-product liquidity pair
type Pair struct {
	Address     common.Address `json:"address"`
	Token0      Token          `json:"token0"`
	Token1      Token          `json:"token1"`
	Reserve0    *big.Int       `json:"reserve0"`
	Reserve1    *big.Int       `json:"reserve1"`
	TotalSupply *big.Int       `json:"totalSupply,omitempty"`
	Fee         uint64         `json:"fee"` // Fee in basis points (e.g., 30 = 0.3%)
	UpdatedAt   int64          `json:"updatedAt"`
}

// SortTokens orders two addresses the way the factory does: numerically
func SortTokens(tokenA, tokenB common.Address) (common.Address, common.Address) {
	if bytes.Compare(tokenA.Bytes(), tokenB.Bytes()) < 0 {
		return tokenA, tokenB
	}
	return tokenB, tokenA
}

// ReservesFor returns (reserveIn, reserveOut) for a swap that sells tokenIn
func (p *Pair) ReservesFor(tokenIn common.Address) (*big.Int, *big.Int) {
	if tokenIn == p.Token0.Address {
		return p.Reserve0, p.Reserve1
	}
	return p.Reserve1, p.Reserve0
}

func (p *Pair) feeMultiplier() *big.Int {
	fee := p.Fee
	if fee == 0 {
		fee = DefaultFeeBps
	}
	return big.NewInt(10000 - int64(fee))
}

func (p *Pair) GetAmountOut(amountIn *big.Int, tokenIn common.Address) *big.Int {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return big.NewInt(0)
	}

	reserveIn, reserveOut := p.ReservesFor(tokenIn)
	if reserveIn == nil || reserveOut == nil || reserveIn.Sign() == 0 || reserveOut.Sign() == 0 {
		return big.NewInt(0)
	}

	// Apply fee (e.g., 0.3% fee means multiply by 997/1000)
	amountInWithFee := new(big.Int).Mul(amountIn, p.feeMultiplier())

	// numerator = amountInWithFee * reserveOut
	numerator := new(big.Int).Mul(amountInWithFee, reserveOut)

	// denominator = reserveIn * 10000 + amountInWithFee
	denominator := new(big.Int).Mul(reserveIn, big.NewInt(10000))
	denominator.Add(denominator, amountInWithFee)

	return new(big.Int).Div(numerator, denominator)
}

// Quote returns the amount of the other token that matches amountA at the
// current pool ratio, without fee. Deposits are sized with it.
func (p *Pair) Quote(amountA *big.Int, tokenA common.Address) *big.Int {
	reserveA, reserveB := p.ReservesFor(tokenA)
	if amountA == nil || reserveA == nil || reserveB == nil || reserveA.Sign() == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(amountA, reserveB)
	return out.Div(out, reserveA)
}
