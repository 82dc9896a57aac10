package pool

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
)

// sqrtPriceX96For builds the Q64.96 sqrt price encoding rawRatio
// (token1 raw units per token0 raw unit).
func sqrtPriceX96For(rawRatio float64) *big.Int {
	f := new(big.Float).SetPrec(200).SetFloat64(rawRatio)
	f.Sqrt(f)
	f.Mul(f, new(big.Float).SetPrec(200).SetInt(q96))
	i, _ := f.Int(nil)
	return i
}

func assertWithin(t *testing.T, got decimal.Decimal, want, epsilon string) {
	t.Helper()
	diff := got.Sub(decimal.RequireFromString(want)).Abs()
	if diff.GreaterThan(decimal.RequireFromString(epsilon)) {
		t.Errorf("price = %s, want %s ± %s", got, want, epsilon)
	}
}

func TestPriceFromSqrtX96_Token0(t *testing.T) {
	// 18-decimal token0 vs 6-decimal stablecoin at 1.00: raw ratio 1e-12.
	sqrtP := sqrtPriceX96For(1e-12)

	price, err := PriceFromSqrtX96(sqrtP, 18, 6, true)
	if err != nil {
		t.Fatalf("PriceFromSqrtX96: %v", err)
	}
	assertWithin(t, price, "1", "0.00000001")
}

func TestPriceFromSqrtX96_Token1Inverts(t *testing.T) {
	// token0 is the 6-decimal stablecoin, priced at 2 token1 per token0
	// in human units: raw ratio = 2 * 10^(18-6).
	sqrtP := sqrtPriceX96For(2e12)

	price, err := PriceFromSqrtX96(sqrtP, 6, 18, false)
	if err != nil {
		t.Fatalf("PriceFromSqrtX96: %v", err)
	}
	// token1 price in token0 units is the inverse.
	assertWithin(t, price, "0.5", "0.00000001")
}

func TestPriceFromSqrtX96_HalfDollar(t *testing.T) {
	// 18-decimal token0 at 0.50 against a 6-decimal stablecoin.
	sqrtP := sqrtPriceX96For(0.5e-12)

	price, err := PriceFromSqrtX96(sqrtP, 18, 6, true)
	if err != nil {
		t.Fatalf("PriceFromSqrtX96: %v", err)
	}
	assertWithin(t, price, "0.5", "0.00000001")
}

func TestPriceFromSqrtX96_ZeroRejected(t *testing.T) {
	if _, err := PriceFromSqrtX96(big.NewInt(0), 18, 6, true); err == nil {
		t.Error("zero sqrtPriceX96 must be rejected")
	}
	if _, err := PriceFromSqrtX96(nil, 18, 6, true); err == nil {
		t.Error("nil sqrtPriceX96 must be rejected")
	}
}
