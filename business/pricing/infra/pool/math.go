// Package pool derives token prices from on-chain V3 pool state.
package pool

import (
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/Blockchain-Oracle/somnia-liquidity-hub/internal/apperror"
)

// q96 is the Q64.96 fixed-point scale used by sqrtPriceX96.
var q96 = new(big.Int).Lsh(big.NewInt(1), 96)

// PriceFromSqrtX96 converts a pool's sqrtPriceX96 into a human price.
// The raw ratio (sqrtP/2^96)^2 is token1-per-token0 in raw units; the
// decimal difference rescales it to human units. priceOfToken0 selects
// which side of the pool is being priced; the other side is the quote.
func PriceFromSqrtX96(sqrtPriceX96 *big.Int, decimals0, decimals1 uint8, priceOfToken0 bool) (decimal.Decimal, error) {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return decimal.Zero, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithContext("pool reports zero sqrtPriceX96"))
	}

	sqrt := decimal.NewFromBigInt(sqrtPriceX96, 0).Div(decimal.NewFromBigInt(q96, 0))
	ratio := sqrt.Mul(sqrt)

	price := ratio.Mul(decimal.New(1, int32(decimals0)-int32(decimals1)))
	if priceOfToken0 {
		return price, nil
	}

	if price.IsZero() {
		return decimal.Zero, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithContext("pool price underflows inversion"))
	}
	return decimal.NewFromInt(1).Div(price), nil
}
