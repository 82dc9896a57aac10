package pool

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Blockchain-Oracle/somnia-liquidity-hub/business/pricing/app"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/business/pricing/domain"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/internal/apperror"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/internal/asset"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/internal/circuitbreaker"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/internal/config"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/internal/logger"
)

const tracerName = "pricing.pool"

// Ensure Pricer implements PoolPricer.
var _ app.PoolPricer = (*Pricer)(nil)

// ContractCaller is the ethclient subset this pricer needs.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Pricer derives token USD prices from configured V3 pools. A pool can
// price a token only when its counterparty is itself priced: stablecoins
// at par, or any token the counterparty oracle quotes.
type Pricer struct {
	client   ContractCaller
	pools    []config.PoolConfig
	poolABI  abi.ABI
	registry *asset.Registry
	stable   map[string]struct{}
	oracle   app.PriceSource // optional counterparty pricing
	logger   logger.LoggerInterface
	cb       *circuitbreaker.CircuitBreaker[[]byte]
	tracer   trace.Tracer
}

// PricerOption configures the Pricer.
type PricerOption func(*Pricer)

// WithCounterpartyOracle lets non-stablecoin counterparties be priced
// through an oracle source.
func WithCounterpartyOracle(src app.PriceSource) PricerOption {
	return func(p *Pricer) { p.oracle = src }
}

// WithRegistry overrides the default asset registry.
func WithRegistry(r *asset.Registry) PricerOption {
	return func(p *Pricer) { p.registry = r }
}

// NewPricer creates a pool pricer over the given configured pools.
func NewPricer(client ContractCaller, pools []config.PoolConfig, stablecoins []string, log logger.LoggerInterface, opts ...PricerOption) (*Pricer, error) {
	parsedABI, err := abi.JSON(strings.NewReader(V3PoolABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse pool ABI: %w", err)
	}

	stable := make(map[string]struct{}, len(stablecoins))
	for _, s := range stablecoins {
		stable[strings.ToUpper(s)] = struct{}{}
	}

	p := &Pricer{
		client:   client,
		pools:    pools,
		poolABI:  parsedABI,
		registry: asset.DefaultRegistry(),
		stable:   stable,
		logger:   log,
		cb:       circuitbreaker.New[[]byte](circuitbreaker.DefaultConfig("pool-pricer")),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// candidate is one pool able to price the requested token.
type candidate struct {
	price     decimal.Decimal
	liquidity *big.Int
	address   string
}

// TokenPriceFromPools returns the pool-implied USD price for symbol.
// Among multiple candidates the deepest-liquidity pool wins, with the
// first discovered breaking ties. ok=false with nil error means no pool
// could price the token.
func (p *Pricer) TokenPriceFromPools(ctx context.Context, symbol string) (decimal.Decimal, bool, error) {
	ctx, span := p.tracer.Start(ctx, "pool.token_price",
		trace.WithAttributes(attribute.String("symbol", symbol)),
	)
	defer span.End()

	symbol = strings.ToUpper(symbol)
	if _, ok := p.stable[symbol]; ok {
		return decimal.NewFromInt(1), true, nil
	}

	var (
		best    *candidate
		lastErr error
	)
	for i := range p.pools {
		pc := &p.pools[i]

		token0 := strings.ToUpper(pc.Token0)
		token1 := strings.ToUpper(pc.Token1)

		var counterparty string
		isToken0 := false
		switch symbol {
		case token0:
			counterparty, isToken0 = token1, true
		case token1:
			counterparty = token0
		default:
			continue
		}

		counterUSD, ok := p.counterpartyPrice(ctx, counterparty)
		if !ok {
			continue
		}

		c, err := p.poolCandidate(ctx, pc, isToken0, counterUSD)
		if err != nil {
			p.logger.Debug(ctx, "pool read failed", "pool", pc.Address, "error", err)
			lastErr = err
			continue
		}

		// Strictly-greater keeps the first discovered on equal depth.
		if best == nil || c.liquidity.Cmp(best.liquidity) > 0 {
			best = c
		}
	}

	if best == nil {
		if lastErr != nil {
			return decimal.Zero, false, lastErr
		}
		span.SetAttributes(attribute.Bool("unpriced", true))
		return decimal.Zero, false, nil
	}

	span.SetAttributes(
		attribute.String("pool", best.address),
		attribute.String("price", best.price.String()),
	)
	return best.price, true, nil
}

// counterpartyPrice resolves the USD price of the pool's other leg.
func (p *Pricer) counterpartyPrice(ctx context.Context, counterparty string) (decimal.Decimal, bool) {
	if _, ok := p.stable[counterparty]; ok {
		return decimal.NewFromInt(1), true
	}
	if p.oracle == nil {
		return decimal.Zero, false
	}

	quote, err := p.oracle.GetPrice(ctx, counterparty)
	if err != nil {
		p.logger.Debug(ctx, "counterparty not priced", "symbol", counterparty, "error", err)
		return decimal.Zero, false
	}
	return quote.Price, true
}

func (p *Pricer) poolCandidate(ctx context.Context, pc *config.PoolConfig, isToken0 bool, counterUSD decimal.Decimal) (*candidate, error) {
	dec0, dec1, err := p.poolDecimals(pc)
	if err != nil {
		return nil, err
	}

	sqrtPriceX96, err := p.readSlot0(ctx, pc.AddressHex())
	if err != nil {
		return nil, err
	}
	liquidity, err := p.readLiquidity(ctx, pc.AddressHex())
	if err != nil {
		return nil, err
	}

	ratio, err := PriceFromSqrtX96(sqrtPriceX96, dec0, dec1, isToken0)
	if err != nil {
		return nil, err
	}

	return &candidate{
		price:     ratio.Mul(counterUSD),
		liquidity: liquidity,
		address:   pc.Address,
	}, nil
}

func (p *Pricer) poolDecimals(pc *config.PoolConfig) (uint8, uint8, error) {
	a0, ok := p.registry.BySymbol(strings.ToUpper(pc.Token0))
	if !ok {
		return 0, 0, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("unknown pool token "+pc.Token0))
	}
	a1, ok := p.registry.BySymbol(strings.ToUpper(pc.Token1))
	if !ok {
		return 0, 0, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("unknown pool token "+pc.Token1))
	}
	return a0.Decimals(), a1.Decimals(), nil
}

func (p *Pricer) readSlot0(ctx context.Context, pool common.Address) (*big.Int, error) {
	raw, err := p.call(ctx, pool, "slot0")
	if err != nil {
		return nil, err
	}

	outputs, err := p.poolABI.Unpack("slot0", raw)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeContractCallFailed, "decode slot0")
	}
	if len(outputs) < 1 {
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithContext("empty slot0 result"))
	}
	return outputs[0].(*big.Int), nil
}

func (p *Pricer) readLiquidity(ctx context.Context, pool common.Address) (*big.Int, error) {
	raw, err := p.call(ctx, pool, "liquidity")
	if err != nil {
		return nil, err
	}

	outputs, err := p.poolABI.Unpack("liquidity", raw)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeContractCallFailed, "decode liquidity")
	}
	return outputs[0].(*big.Int), nil
}

func (p *Pricer) call(ctx context.Context, to common.Address, method string) ([]byte, error) {
	callData, err := p.poolABI.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", method, err)
	}

	raw, err := p.cb.Execute(func() ([]byte, error) {
		return p.client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: callData}, nil)
	})
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeContractCallFailed, method+" "+to.Hex())
	}
	return raw, nil
}

// Quote wraps TokenPriceFromPools in the PriceSource shape so pool-derived
// prices can join an aggregation directly.
func (p *Pricer) Quote(ctx context.Context, symbol string) (domain.PriceQuote, error) {
	price, ok, err := p.TokenPriceFromPools(ctx, symbol)
	if err != nil {
		return domain.PriceQuote{}, err
	}
	if !ok {
		return domain.PriceQuote{}, apperror.NotFound(apperror.CodePoolNotFound,
			"no pool prices "+symbol)
	}
	return domain.NewQuote(symbol, price, domain.SourcePoolDerived), nil
}
