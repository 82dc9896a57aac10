// Package app contains the mode manager and backend port for the dex context.
package app

import (
	"context"

	"github.com/Blockchain-Oracle/somnia-liquidity-hub/business/dex/domain"
)

// Backend is one source of DEX data: an on-chain deployment or the demo
// simulator. Exactly one backend serves at a time; the manager never
// mixes backends within an operation.
type Backend interface {
	// Mode names the mode this backend serves.
	Mode() domain.Mode

	// Execution is the kind stamped on this backend's write results.
	Execution() domain.ExecutionKind

	// ChainID identifies the network, 0 for demo.
	ChainID() uint64

	// Probe verifies the backend is reachable with a lightweight read.
	Probe(ctx context.Context) error

	GetPool(ctx context.Context, token0, token1 string) (*domain.Pool, error)
	GetUserPositions(ctx context.Context, address string) ([]domain.Position, error)
	AddLiquidity(ctx context.Context, params domain.LiquidityParams) (*domain.LiquidityResult, error)
	Swap(ctx context.Context, params domain.SwapParams) (*domain.SwapResult, error)
}
