// Package demo implements the dex Backend against a deterministic
// synthetic order book, so the dashboard keeps working when neither
// chain deployment is reachable.
package demo

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Blockchain-Oracle/somnia-liquidity-hub/business/dex/app"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/business/dex/domain"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/internal/apperror"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/internal/logger"
)

const tracerName = "dex.demo"

// Ensure Backend implements the dex port.
var _ app.Backend = (*Backend)(nil)

// defaultBook anchors every synthetic pool price in USD terms.
var defaultBook = map[string]decimal.Decimal{
	"WSOMI": decimal.RequireFromString("0.52"),
	"WETH":  decimal.RequireFromString("2450"),
	"USDC":  decimal.RequireFromString("1"),
	"USDT":  decimal.RequireFromString("0.9998"),
}

// Backend fabricates pool state, positions and simulated executions.
type Backend struct {
	book   map[string]decimal.Decimal
	logger logger.LoggerInterface
	refSeq atomic.Uint64
	tracer trace.Tracer
}

// BackendOption configures the Backend.
type BackendOption func(*Backend)

// WithBook overrides the synthetic USD price book.
func WithBook(book map[string]decimal.Decimal) BackendOption {
	return func(b *Backend) { b.book = book }
}

// NewBackend creates the demo backend.
func NewBackend(log logger.LoggerInterface, opts ...BackendOption) *Backend {
	b := &Backend{
		book:   defaultBook,
		logger: log,
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Mode names the mode this backend serves.
func (b *Backend) Mode() domain.Mode { return domain.ModeDemo }

// Execution is always simulated for this backend.
func (b *Backend) Execution() domain.ExecutionKind { return domain.ExecutionSimulated }

// ChainID is zero: demo data is not anchored to any network.
func (b *Backend) ChainID() uint64 { return 0 }

// Probe always succeeds; demo is the fallback of last resort.
func (b *Backend) Probe(context.Context) error { return nil }

// GetPool fabricates a pool for the pair from the USD book.
func (b *Backend) GetPool(ctx context.Context, token0, token1 string) (*domain.Pool, error) {
	_, span := b.tracer.Start(ctx, "demo.get_pool",
		trace.WithAttributes(
			attribute.String("token0", token0),
			attribute.String("token1", token1),
		),
	)
	defer span.End()

	return b.syntheticPool(token0, token1)
}

// GetUserPositions fabricates two full-range positions for any valid
// address, with IDs derived from the address so repeat calls agree.
func (b *Backend) GetUserPositions(ctx context.Context, address string) ([]domain.Position, error) {
	_, span := b.tracer.Start(ctx, "demo.get_user_positions",
		trace.WithAttributes(attribute.String("address", address)),
	)
	defer span.End()

	if !common.IsHexAddress(address) {
		return nil, apperror.Validation(apperror.CodeInvalidAddress, "invalid address "+address)
	}

	addr := common.HexToAddress(address)
	seed := new(big.Int).SetBytes(addr.Bytes()[16:]).Uint64()

	pairs := []struct {
		token0, token1   string
		amount0, amount1 string
	}{
		{"WSOMI", "USDC", "12500", "6500"},
		{"WETH", "USDC", "1.25", "3062.5"},
	}

	positions := make([]domain.Position, 0, len(pairs))
	for i, p := range pairs {
		lower, upper := fullRangeTicks()
		positions = append(positions, domain.Position{
			ID:        seed%100_000 + uint64(i),
			Owner:     addr.Hex(),
			Token0:    p.token0,
			Token1:    p.token1,
			FeeTier:   3000,
			Liquidity: big.NewInt(1_000_000_000_000),
			TickLower: lower,
			TickUpper: upper,
			Amount0:   decimal.RequireFromString(p.amount0),
			Amount1:   decimal.RequireFromString(p.amount1),
			InRange:   true,
		})
	}

	span.SetAttributes(attribute.Int("positions", len(positions)))
	return positions, nil
}

// AddLiquidity acknowledges the request with a simulated receipt.
func (b *Backend) AddLiquidity(ctx context.Context, params domain.LiquidityParams) (*domain.LiquidityResult, error) {
	ctx, span := b.tracer.Start(ctx, "demo.add_liquidity")
	defer span.End()

	if !common.IsHexAddress(params.Recipient) {
		return nil, apperror.Validation(apperror.CodeInvalidAddress, "invalid recipient "+params.Recipient)
	}
	if _, err := b.syntheticPool(params.Token0, params.Token1); err != nil {
		return nil, err
	}

	fee := params.FeeTier
	if fee == 0 {
		fee = 3000
	}

	refID := b.nextRef("liq")
	b.logger.Info(ctx, "simulated liquidity add",
		"pair", domain.PairKey(params.Token0, params.Token1), "ref", refID)

	return &domain.LiquidityResult{
		Execution: domain.Execution{
			Kind:  domain.ExecutionSimulated,
			Mode:  domain.ModeDemo,
			RefID: refID,
		},
		Token0:  strings.ToUpper(params.Token0),
		Token1:  strings.ToUpper(params.Token1),
		Amount0: params.Amount0,
		Amount1: params.Amount1,
		FeeTier: fee,
	}, nil
}

// Swap fills the order at the book price with a simulated receipt.
func (b *Backend) Swap(ctx context.Context, params domain.SwapParams) (*domain.SwapResult, error) {
	ctx, span := b.tracer.Start(ctx, "demo.swap")
	defer span.End()

	if !common.IsHexAddress(params.Recipient) {
		return nil, apperror.Validation(apperror.CodeInvalidAddress, "invalid recipient "+params.Recipient)
	}
	if !params.AmountIn.IsPositive() {
		return nil, apperror.Validation(apperror.CodeInvalidInput, "amountIn must be positive")
	}

	in, out := strings.ToUpper(params.TokenIn), strings.ToUpper(params.TokenOut)
	usdIn, ok := b.book[in]
	if !ok {
		return nil, apperror.Validation(apperror.CodeInvalidSymbol, "unknown token "+params.TokenIn)
	}
	usdOut, ok := b.book[out]
	if !ok {
		return nil, apperror.Validation(apperror.CodeInvalidSymbol, "unknown token "+params.TokenOut)
	}

	amountOut := params.AmountIn.Mul(usdIn.Div(usdOut))
	if !params.MinAmountOut.IsZero() && amountOut.LessThan(params.MinAmountOut) {
		return nil, apperror.Validation(apperror.CodeInvalidInput,
			fmt.Sprintf("fill %s below minimum %s", amountOut, params.MinAmountOut))
	}

	refID := b.nextRef("swap")
	b.logger.Info(ctx, "simulated swap",
		"in", in, "out", out, "amount_out", amountOut.String(), "ref", refID)

	span.SetAttributes(attribute.String("amount_out", amountOut.String()))
	return &domain.SwapResult{
		Execution: domain.Execution{
			Kind:  domain.ExecutionSimulated,
			Mode:  domain.ModeDemo,
			RefID: refID,
		},
		TokenIn:   in,
		TokenOut:  out,
		AmountIn:  params.AmountIn,
		AmountOut: amountOut,
	}, nil
}

func (b *Backend) syntheticPool(token0, token1 string) (*domain.Pool, error) {
	t0, t1 := strings.ToUpper(token0), strings.ToUpper(token1)
	if t0 > t1 {
		t0, t1 = t1, t0
	}

	usd0, ok := b.book[t0]
	if !ok {
		return nil, apperror.NotFound(apperror.CodePoolNotFound, "no pool for token "+token0)
	}
	usd1, ok := b.book[t1]
	if !ok {
		return nil, apperror.NotFound(apperror.CodePoolNotFound, "no pool for token "+token1)
	}

	price0 := usd0.Div(usd1)
	return &domain.Pool{
		Address:     syntheticAddress(t0, t1),
		Token0:      t0,
		Token1:      t1,
		FeeTier:     3000,
		Tick:        0,
		Liquidity:   big.NewInt(5_000_000_000_000),
		Token0Price: price0,
		Token1Price: decimal.NewFromInt(1).Div(price0),
	}, nil
}

// syntheticAddress derives a stable fake pool address from the pair.
func syntheticAddress(t0, t1 string) string {
	return common.BytesToAddress(crypto.Keccak256([]byte(t0 + "/" + t1))[12:]).Hex()
}

func (b *Backend) nextRef(kind string) string {
	return fmt.Sprintf("demo-%s-%06d", kind, b.refSeq.Add(1))
}

func fullRangeTicks() (int32, int32) {
	const bound = int32(887220) // widest tick aligned to 60 spacing
	return -bound, bound
}
