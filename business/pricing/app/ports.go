// Package app contains application services and port definitions for the pricing context.
package app

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/Blockchain-Oracle/somnia-liquidity-hub/business/pricing/domain"
)

// PriceSource is the minimal contract every price adapter satisfies.
type PriceSource interface {
	// Name identifies the source in logs, metrics and quote attribution.
	Name() domain.Source

	// GetPrice retrieves the current USD price for a token symbol.
	GetPrice(ctx context.Context, symbol string) (domain.PriceQuote, error)
}

// ExchangeProvider is a centralized-exchange source that can also serve
// OHLC history.
type ExchangeProvider interface {
	PriceSource

	// GetCandles retrieves up to limit OHLC bars for the symbol at the
	// given timeframe (e.g. "1h", "1d").
	GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Candle, error)
}

// OracleProvider is an on-chain price feed source.
type OracleProvider interface {
	PriceSource
}

// PoolPricer derives a token price from configured liquidity pools.
type PoolPricer interface {
	// TokenPriceFromPools returns the pool-implied USD price for symbol.
	// ok=false with a nil error means no pool could price the token;
	// that is absence of data, not a failure.
	TokenPriceFromPools(ctx context.Context, symbol string) (decimal.Decimal, bool, error)
}
