package domain

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Pool is a snapshot of one V3 pool's state.
type Pool struct {
	Address      string          `json:"address"`
	Token0       string          `json:"token0"`
	Token1       string          `json:"token1"`
	FeeTier      int             `json:"feeTier"`
	SqrtPriceX96 *big.Int        `json:"-"`
	Tick         int32           `json:"tick"`
	Liquidity    *big.Int        `json:"-"`
	Token0Price  decimal.Decimal `json:"token0Price"` // token1 per token0
	Token1Price  decimal.Decimal `json:"token1Price"` // token0 per token1
}

// PairKey normalizes a token pair into a stable cache key.
func PairKey(token0, token1 string) string {
	a, b := strings.ToUpper(token0), strings.ToUpper(token1)
	if a > b {
		a, b = b, a
	}
	return a + "/" + b
}

// Position is one liquidity position held by a user.
type Position struct {
	ID        uint64          `json:"id"`
	Owner     string          `json:"owner"`
	Token0    string          `json:"token0"`
	Token1    string          `json:"token1"`
	FeeTier   int             `json:"feeTier"`
	Liquidity *big.Int        `json:"-"`
	TickLower int32           `json:"tickLower"`
	TickUpper int32           `json:"tickUpper"`
	Amount0   decimal.Decimal `json:"amount0"`
	Amount1   decimal.Decimal `json:"amount1"`
	InRange   bool            `json:"inRange"`
}

// LiquidityParams are the inputs to AddLiquidity.
type LiquidityParams struct {
	Token0    string          `json:"token0"`
	Token1    string          `json:"token1"`
	Amount0   decimal.Decimal `json:"amount0"`
	Amount1   decimal.Decimal `json:"amount1"`
	FeeTier   int             `json:"feeTier"`
	Recipient string          `json:"recipient"`
}

// SwapParams are the inputs to Swap.
type SwapParams struct {
	TokenIn      string          `json:"tokenIn"`
	TokenOut     string          `json:"tokenOut"`
	AmountIn     decimal.Decimal `json:"amountIn"`
	MinAmountOut decimal.Decimal `json:"minAmountOut"`
	Recipient    string          `json:"recipient"`
}

// Execution describes how a write was performed. On-chain backends
// return prepared transaction data for the caller's wallet to submit;
// the demo backend fabricates a simulated receipt.
type Execution struct {
	Kind   ExecutionKind `json:"kind"`
	Mode   Mode          `json:"mode"`
	TxData string        `json:"txData,omitempty"` // hex calldata, on-chain only
	To     string        `json:"to,omitempty"`     // target contract, on-chain only
	RefID  string        `json:"refId,omitempty"`  // synthetic receipt, simulated only
}

// LiquidityResult is the outcome of AddLiquidity.
type LiquidityResult struct {
	Execution Execution       `json:"execution"`
	Token0    string          `json:"token0"`
	Token1    string          `json:"token1"`
	Amount0   decimal.Decimal `json:"amount0"`
	Amount1   decimal.Decimal `json:"amount1"`
	FeeTier   int             `json:"feeTier"`
}

// SwapResult is the outcome of Swap.
type SwapResult struct {
	Execution Execution       `json:"execution"`
	TokenIn   string          `json:"tokenIn"`
	TokenOut  string          `json:"tokenOut"`
	AmountIn  decimal.Decimal `json:"amountIn"`
	AmountOut decimal.Decimal `json:"amountOut"`
}
