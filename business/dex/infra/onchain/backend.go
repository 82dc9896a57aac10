// Package onchain implements the dex Backend over a Somnia V3 deployment.
// Reads go straight to the chain; writes are prepared as calldata for the
// caller's wallet to sign and submit.
package onchain

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Blockchain-Oracle/somnia-liquidity-hub/business/dex/app"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/business/dex/domain"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/internal/apperror"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/internal/asset"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/internal/circuitbreaker"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/internal/config"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/internal/logger"
)

const (
	tracerName = "dex.onchain"

	// maxPositions caps enumeration per address.
	maxPositions = 50

	// txDeadline is stamped into prepared calldata.
	txDeadline = 20 * time.Minute
)

// Ensure Backend implements the dex port.
var _ app.Backend = (*Backend)(nil)

// ContractCaller is the ethclient subset this backend needs.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Backend serves one network deployment (mainnet or testnet).
type Backend struct {
	mode     domain.Mode
	network  config.NetworkConfig
	client   ContractCaller
	registry *asset.Registry
	logger   logger.LoggerInterface

	factoryABI abi.ABI
	poolABI    abi.ABI
	pmABI      abi.ABI
	routerABI  abi.ABI

	cb     *circuitbreaker.CircuitBreaker[[]byte]
	tracer trace.Tracer
}

// BackendOption configures the Backend.
type BackendOption func(*Backend)

// WithRegistry overrides the default asset registry.
func WithRegistry(r *asset.Registry) BackendOption {
	return func(b *Backend) { b.registry = r }
}

// NewBackend creates a backend for one network deployment.
func NewBackend(client ContractCaller, mode domain.Mode, network config.NetworkConfig, log logger.LoggerInterface, opts ...BackendOption) (*Backend, error) {
	if mode != domain.ModeMainnetDEX && mode != domain.ModeTestnetDEX {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("onchain backend cannot serve mode "+string(mode)))
	}

	factoryABI, err := abi.JSON(strings.NewReader(FactoryABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse factory ABI: %w", err)
	}
	poolABI, err := abi.JSON(strings.NewReader(PoolABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse pool ABI: %w", err)
	}
	pmABI, err := abi.JSON(strings.NewReader(PositionManagerABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse position manager ABI: %w", err)
	}
	routerABI, err := abi.JSON(strings.NewReader(RouterABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse router ABI: %w", err)
	}

	b := &Backend{
		mode:       mode,
		network:    network,
		client:     client,
		registry:   asset.DefaultRegistry(),
		logger:     log,
		factoryABI: factoryABI,
		poolABI:    poolABI,
		pmABI:      pmABI,
		routerABI:  routerABI,
		cb:         circuitbreaker.New[[]byte](circuitbreaker.DefaultConfig("dex-" + string(mode))),
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Mode names the mode this backend serves.
func (b *Backend) Mode() domain.Mode { return b.mode }

// Execution is always on-chain for this backend.
func (b *Backend) Execution() domain.ExecutionKind { return domain.ExecutionOnChain }

// ChainID identifies the network.
func (b *Backend) ChainID() uint64 { return b.network.ChainID }

// Probe performs a lightweight factory read to verify the deployment is
// reachable. The result does not matter, only that the call answers.
func (b *Backend) Probe(ctx context.Context) error {
	usdc, ok0 := b.registry.BySymbol("USDC")
	usdt, ok1 := b.registry.BySymbol("USDT")
	if !ok0 || !ok1 {
		return apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("probe tokens missing from registry"))
	}
	_, err := b.factoryPool(ctx, usdc.Address(), usdt.Address(), feeTiers[0])
	return err
}

// GetPool locates the deepest pool for the pair across fee tiers and
// returns its current state.
func (b *Backend) GetPool(ctx context.Context, token0, token1 string) (*domain.Pool, error) {
	ctx, span := b.tracer.Start(ctx, "onchain.get_pool",
		trace.WithAttributes(
			attribute.String("token0", token0),
			attribute.String("token1", token1),
		),
	)
	defer span.End()

	a0, a1, err := b.resolvePair(token0, token1)
	if err != nil {
		return nil, err
	}

	// V3 orders pool tokens by address.
	if strings.ToLower(a0.Address().Hex()) > strings.ToLower(a1.Address().Hex()) {
		a0, a1 = a1, a0
	}

	var best *domain.Pool
	for _, fee := range feeTiers {
		addr, err := b.factoryPool(ctx, a0.Address(), a1.Address(), fee)
		if err != nil {
			return nil, err
		}
		if addr.Hex() == common.HexToAddress(zeroAddress).Hex() {
			continue
		}

		pool, err := b.readPool(ctx, addr, a0, a1, int(fee))
		if err != nil {
			b.logger.Debug(ctx, "pool read failed", "pool", addr.Hex(), "error", err)
			continue
		}
		if best == nil || pool.Liquidity.Cmp(best.Liquidity) > 0 {
			best = pool
		}
	}

	if best == nil {
		return nil, apperror.NotFound(apperror.CodePoolNotFound,
			fmt.Sprintf("no pool for %s/%s", token0, token1))
	}

	span.SetAttributes(
		attribute.String("pool", best.Address),
		attribute.Int("fee_tier", best.FeeTier),
	)
	return best, nil
}

// GetUserPositions enumerates the address's positions from the position
// manager, capped at maxPositions.
func (b *Backend) GetUserPositions(ctx context.Context, address string) ([]domain.Position, error) {
	ctx, span := b.tracer.Start(ctx, "onchain.get_user_positions",
		trace.WithAttributes(attribute.String("address", address)),
	)
	defer span.End()

	if !common.IsHexAddress(address) {
		return nil, apperror.Validation(apperror.CodeInvalidAddress, "invalid address "+address)
	}
	owner := common.HexToAddress(address)

	balance, err := b.positionBalance(ctx, owner)
	if err != nil {
		return nil, err
	}
	count := int(balance.Int64())
	if count > maxPositions {
		b.logger.Warn(ctx, "position enumeration capped",
			"address", address, "total", count, "cap", maxPositions)
		count = maxPositions
	}

	// Current pool tick per pair, looked up lazily for in-range checks.
	tickCache := make(map[string]int32)

	positions := make([]domain.Position, 0, count)
	for i := 0; i < count; i++ {
		id, err := b.positionIDAt(ctx, owner, i)
		if err != nil {
			return nil, err
		}
		pos, err := b.readPosition(ctx, id, owner, tickCache)
		if err != nil {
			return nil, err
		}
		if pos != nil {
			positions = append(positions, *pos)
		}
	}

	span.SetAttributes(attribute.Int("positions", len(positions)))
	return positions, nil
}

// mintParams mirrors the position manager's MintParams tuple.
type mintParams struct {
	Token0         common.Address
	Token1         common.Address
	Fee            *big.Int
	TickLower      *big.Int
	TickUpper      *big.Int
	Amount0Desired *big.Int
	Amount1Desired *big.Int
	Amount0Min     *big.Int
	Amount1Min     *big.Int
	Recipient      common.Address
	Deadline       *big.Int
}

// AddLiquidity prepares a full-range mint for wallet submission.
func (b *Backend) AddLiquidity(ctx context.Context, params domain.LiquidityParams) (*domain.LiquidityResult, error) {
	ctx, span := b.tracer.Start(ctx, "onchain.add_liquidity")
	defer span.End()

	if !common.IsHexAddress(params.Recipient) {
		return nil, apperror.Validation(apperror.CodeInvalidAddress, "invalid recipient "+params.Recipient)
	}
	a0, a1, err := b.resolvePair(params.Token0, params.Token1)
	if err != nil {
		return nil, err
	}

	amount0, amount1 := params.Amount0, params.Amount1
	if strings.ToLower(a0.Address().Hex()) > strings.ToLower(a1.Address().Hex()) {
		a0, a1 = a1, a0
		amount0, amount1 = amount1, amount0
	}

	fee := params.FeeTier
	if fee == 0 {
		fee = 3000
	}
	tickLower, tickUpper := fullRangeTicks(fee)

	callData, err := b.pmABI.Pack("mint", mintParams{
		Token0:         a0.Address(),
		Token1:         a1.Address(),
		Fee:            big.NewInt(int64(fee)),
		TickLower:      big.NewInt(int64(tickLower)),
		TickUpper:      big.NewInt(int64(tickUpper)),
		Amount0Desired: amountToRaw(amount0, a0.Decimals()),
		Amount1Desired: amountToRaw(amount1, a1.Decimals()),
		Amount0Min:     big.NewInt(0),
		Amount1Min:     big.NewInt(0),
		Recipient:      common.HexToAddress(params.Recipient),
		Deadline:       big.NewInt(time.Now().Add(txDeadline).Unix()),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode mint: %w", err)
	}

	span.SetAttributes(attribute.Int("fee_tier", fee))
	return &domain.LiquidityResult{
		Execution: domain.Execution{
			Kind:   domain.ExecutionOnChain,
			Mode:   b.mode,
			To:     b.network.PositionManager,
			TxData: hexutil.Encode(callData),
		},
		Token0:  a0.Symbol(),
		Token1:  a1.Symbol(),
		Amount0: amount0,
		Amount1: amount1,
		FeeTier: fee,
	}, nil
}

// exactInputSingleParams mirrors the router's ExactInputSingleParams tuple.
type exactInputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Fee               *big.Int
	Recipient         common.Address
	Deadline          *big.Int
	AmountIn          *big.Int
	AmountOutMinimum  *big.Int
	SqrtPriceLimitX96 *big.Int
}

// Swap prepares an exactInputSingle for wallet submission, estimating the
// output from the current pool price.
func (b *Backend) Swap(ctx context.Context, params domain.SwapParams) (*domain.SwapResult, error) {
	ctx, span := b.tracer.Start(ctx, "onchain.swap")
	defer span.End()

	if !common.IsHexAddress(params.Recipient) {
		return nil, apperror.Validation(apperror.CodeInvalidAddress, "invalid recipient "+params.Recipient)
	}
	if !params.AmountIn.IsPositive() {
		return nil, apperror.Validation(apperror.CodeInvalidInput, "amountIn must be positive")
	}

	in, ok := b.registry.BySymbol(strings.ToUpper(params.TokenIn))
	if !ok {
		return nil, apperror.Validation(apperror.CodeInvalidSymbol, "unknown token "+params.TokenIn)
	}
	out, ok := b.registry.BySymbol(strings.ToUpper(params.TokenOut))
	if !ok {
		return nil, apperror.Validation(apperror.CodeInvalidSymbol, "unknown token "+params.TokenOut)
	}

	pool, err := b.GetPool(ctx, params.TokenIn, params.TokenOut)
	if err != nil {
		return nil, err
	}

	// Estimate output at the spot price; the router enforces the minimum.
	price := pool.Token0Price
	if !strings.EqualFold(pool.Token0, in.Symbol()) {
		price = pool.Token1Price
	}
	amountOut := params.AmountIn.Mul(price)

	minOut := params.MinAmountOut
	if minOut.IsZero() {
		// Default 0.5% slippage guard.
		minOut = amountOut.Mul(decimal.RequireFromString("0.995"))
	}

	callData, err := b.routerABI.Pack("exactInputSingle", exactInputSingleParams{
		TokenIn:           in.Address(),
		TokenOut:          out.Address(),
		Fee:               big.NewInt(int64(pool.FeeTier)),
		Recipient:         common.HexToAddress(params.Recipient),
		Deadline:          big.NewInt(time.Now().Add(txDeadline).Unix()),
		AmountIn:          amountToRaw(params.AmountIn, in.Decimals()),
		AmountOutMinimum:  amountToRaw(minOut, out.Decimals()),
		SqrtPriceLimitX96: big.NewInt(0),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode swap: %w", err)
	}

	span.SetAttributes(attribute.String("amount_out", amountOut.String()))
	return &domain.SwapResult{
		Execution: domain.Execution{
			Kind:   domain.ExecutionOnChain,
			Mode:   b.mode,
			To:     b.network.RouterAddress,
			TxData: hexutil.Encode(callData),
		},
		TokenIn:   in.Symbol(),
		TokenOut:  out.Symbol(),
		AmountIn:  params.AmountIn,
		AmountOut: amountOut,
	}, nil
}

// chain reads

func (b *Backend) factoryPool(ctx context.Context, tokenA, tokenB common.Address, fee int64) (common.Address, error) {
	raw, err := b.call(ctx, b.network.FactoryAddressHex(), b.factoryABI, "getPool", tokenA, tokenB, big.NewInt(fee))
	if err != nil {
		return common.Address{}, err
	}
	outputs, err := b.factoryABI.Unpack("getPool", raw)
	if err != nil {
		return common.Address{}, apperror.Wrap(err, apperror.CodeContractCallFailed, "decode getPool")
	}
	return outputs[0].(common.Address), nil
}

func (b *Backend) readPool(ctx context.Context, addr common.Address, a0, a1 *asset.Asset, fee int) (*domain.Pool, error) {
	sqrtPriceX96, tick, err := b.readSlot0(ctx, addr)
	if err != nil {
		return nil, err
	}
	liquidity, err := b.readLiquidity(ctx, addr)
	if err != nil {
		return nil, err
	}

	price0, err := priceFromSqrt(sqrtPriceX96, a0.Decimals(), a1.Decimals())
	if err != nil {
		return nil, err
	}
	price1 := decimal.Zero
	if !price0.IsZero() {
		price1 = decimal.NewFromInt(1).Div(price0)
	}

	return &domain.Pool{
		Address:      addr.Hex(),
		Token0:       a0.Symbol(),
		Token1:       a1.Symbol(),
		FeeTier:      fee,
		SqrtPriceX96: sqrtPriceX96,
		Tick:         tick,
		Liquidity:    liquidity,
		Token0Price:  price0,
		Token1Price:  price1,
	}, nil
}

func (b *Backend) readSlot0(ctx context.Context, pool common.Address) (*big.Int, int32, error) {
	raw, err := b.call(ctx, pool, b.poolABI, "slot0")
	if err != nil {
		return nil, 0, err
	}
	outputs, err := b.poolABI.Unpack("slot0", raw)
	if err != nil {
		return nil, 0, apperror.Wrap(err, apperror.CodeContractCallFailed, "decode slot0")
	}
	sqrtPriceX96 := outputs[0].(*big.Int)
	tick := int32(outputs[1].(*big.Int).Int64())
	return sqrtPriceX96, tick, nil
}

func (b *Backend) readLiquidity(ctx context.Context, pool common.Address) (*big.Int, error) {
	raw, err := b.call(ctx, pool, b.poolABI, "liquidity")
	if err != nil {
		return nil, err
	}
	outputs, err := b.poolABI.Unpack("liquidity", raw)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeContractCallFailed, "decode liquidity")
	}
	return outputs[0].(*big.Int), nil
}

func (b *Backend) positionBalance(ctx context.Context, owner common.Address) (*big.Int, error) {
	raw, err := b.call(ctx, b.network.PositionManagerHex(), b.pmABI, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	outputs, err := b.pmABI.Unpack("balanceOf", raw)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeContractCallFailed, "decode balanceOf")
	}
	return outputs[0].(*big.Int), nil
}

func (b *Backend) positionIDAt(ctx context.Context, owner common.Address, index int) (*big.Int, error) {
	raw, err := b.call(ctx, b.network.PositionManagerHex(), b.pmABI, "tokenOfOwnerByIndex", owner, big.NewInt(int64(index)))
	if err != nil {
		return nil, err
	}
	outputs, err := b.pmABI.Unpack("tokenOfOwnerByIndex", raw)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeContractCallFailed, "decode tokenOfOwnerByIndex")
	}
	return outputs[0].(*big.Int), nil
}

func (b *Backend) readPosition(ctx context.Context, id *big.Int, owner common.Address, tickCache map[string]int32) (*domain.Position, error) {
	raw, err := b.call(ctx, b.network.PositionManagerHex(), b.pmABI, "positions", id)
	if err != nil {
		return nil, err
	}
	outputs, err := b.pmABI.Unpack("positions", raw)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeContractCallFailed, "decode positions")
	}

	token0 := outputs[2].(common.Address)
	token1 := outputs[3].(common.Address)
	fee := int(outputs[4].(*big.Int).Int64())
	tickLower := int32(outputs[5].(*big.Int).Int64())
	tickUpper := int32(outputs[6].(*big.Int).Int64())
	liquidity := outputs[7].(*big.Int)

	a0, ok0 := b.registry.ByAddress(token0)
	a1, ok1 := b.registry.ByAddress(token1)
	if !ok0 || !ok1 {
		// Position in a pair we do not track; skip rather than fail the
		// whole listing.
		return nil, nil
	}

	// Resolve the current tick lazily per pair for the in-range check
	// and amount decomposition.
	pairKey := token0.Hex() + "/" + token1.Hex() + "/" + fmt.Sprint(fee)
	tick, seen := tickCache[pairKey]
	var sqrtPriceX96 *big.Int
	if !seen {
		poolAddr, err := b.factoryPool(ctx, token0, token1, int64(fee))
		if err != nil {
			return nil, err
		}
		sqrtPriceX96, tick, err = b.readSlot0(ctx, poolAddr)
		if err != nil {
			return nil, err
		}
		tickCache[pairKey] = tick
	} else {
		sqrtPriceX96 = sqrtAtTick(tick)
	}

	amount0, amount1 := positionAmounts(liquidity, sqrtPriceX96, tickLower, tickUpper, a0.Decimals(), a1.Decimals())

	return &domain.Position{
		ID:        id.Uint64(),
		Owner:     owner.Hex(),
		Token0:    a0.Symbol(),
		Token1:    a1.Symbol(),
		FeeTier:   fee,
		Liquidity: liquidity,
		TickLower: tickLower,
		TickUpper: tickUpper,
		Amount0:   amount0,
		Amount1:   amount1,
		InRange:   tickLower <= tick && tick < tickUpper,
	}, nil
}

func (b *Backend) call(ctx context.Context, to common.Address, contractABI abi.ABI, method string, args ...any) ([]byte, error) {
	callData, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", method, err)
	}

	raw, err := b.cb.Execute(func() ([]byte, error) {
		return b.client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: callData}, nil)
	})
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeSomniaRPCError, method+" "+to.Hex())
	}
	return raw, nil
}

// helpers

func (b *Backend) resolvePair(token0, token1 string) (*asset.Asset, *asset.Asset, error) {
	a0, ok := b.registry.BySymbol(strings.ToUpper(token0))
	if !ok {
		return nil, nil, apperror.Validation(apperror.CodeInvalidSymbol, "unknown token "+token0)
	}
	a1, ok := b.registry.BySymbol(strings.ToUpper(token1))
	if !ok {
		return nil, nil, apperror.Validation(apperror.CodeInvalidSymbol, "unknown token "+token1)
	}
	return a0, a1, nil
}

// priceFromSqrt converts sqrtPriceX96 to the human token0 price.
func priceFromSqrt(sqrtPriceX96 *big.Int, decimals0, decimals1 uint8) (decimal.Decimal, error) {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return decimal.Zero, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithContext("pool reports zero sqrtPriceX96"))
	}
	sqrt := decimal.NewFromBigInt(sqrtPriceX96, 0).Div(decimal.NewFromBigInt(q96, 0))
	return sqrt.Mul(sqrt).Mul(decimal.New(1, int32(decimals0)-int32(decimals1))), nil
}

// sqrtAtTick approximates sqrt(1.0001^tick) in Q64.96 for display math.
func sqrtAtTick(tick int32) *big.Int {
	sqrt := math.Pow(1.0001, float64(tick)/2)
	f := new(big.Float).SetPrec(128).SetFloat64(sqrt)
	f.Mul(f, new(big.Float).SetPrec(128).SetInt(q96))
	i, _ := f.Int(nil)
	return i
}

// positionAmounts decomposes in-range liquidity into token amounts using
// float64 precision, which is plenty for dashboard display.
func positionAmounts(liquidity, sqrtPriceX96 *big.Int, tickLower, tickUpper int32, decimals0, decimals1 uint8) (decimal.Decimal, decimal.Decimal) {
	if liquidity == nil || liquidity.Sign() == 0 || sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return decimal.Zero, decimal.Zero
	}

	l, _ := new(big.Float).SetInt(liquidity).Float64()
	sp, _ := new(big.Float).Quo(
		new(big.Float).SetInt(sqrtPriceX96),
		new(big.Float).SetInt(q96),
	).Float64()
	sa := math.Pow(1.0001, float64(tickLower)/2)
	sb := math.Pow(1.0001, float64(tickUpper)/2)

	var raw0, raw1 float64
	switch {
	case sp <= sa:
		raw0 = l * (sb - sa) / (sa * sb)
	case sp >= sb:
		raw1 = l * (sb - sa)
	default:
		raw0 = l * (sb - sp) / (sp * sb)
		raw1 = l * (sp - sa)
	}

	amount0 := decimal.NewFromFloat(raw0).Shift(-int32(decimals0)).Round(8)
	amount1 := decimal.NewFromFloat(raw1).Shift(-int32(decimals1)).Round(8)
	return amount0, amount1
}

// fullRangeTicks returns the widest ticks valid for the fee tier's spacing.
func fullRangeTicks(feeTier int) (int32, int32) {
	var spacing int32
	switch feeTier {
	case 500:
		spacing = 10
	case 10000:
		spacing = 200
	default:
		spacing = 60
	}
	const maxTick = 887272
	bound := (maxTick / spacing) * spacing
	return -bound, bound
}

// amountToRaw converts a human amount to raw token units.
func amountToRaw(amount decimal.Decimal, decimals uint8) *big.Int {
	return amount.Shift(int32(decimals)).BigInt()
}
