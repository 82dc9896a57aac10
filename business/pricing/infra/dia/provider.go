// Package dia implements an OracleProvider over the DIA key/value
// oracle contract deployed on Somnia.
package dia

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/Blockchain-Oracle/somnia-liquidity-hub/business/pricing/app"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/business/pricing/domain"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/internal/apperror"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/internal/circuitbreaker"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/internal/logger"
)

const (
	tracerName = "pricing.dia"
	meterName  = "pricing.dia"
)

// Ensure Provider implements OracleProvider.
var _ app.OracleProvider = (*Provider)(nil)

// ContractCaller is the ethclient subset this adapter needs.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// ProviderConfig holds configuration for the DIA oracle provider.
type ProviderConfig struct {
	OracleAddress string            // oracle contract address (hex)
	Keys          map[string]string // token symbol -> oracle key, e.g. SOMI -> "SOMI/USD"
	MaxStaleness  time.Duration     // reject oracle values older than this (0 = accept any)
}

// providerMetrics holds OTEL metric instruments.
type providerMetrics struct {
	readsTotal  metric.Int64Counter
	readErrors  metric.Int64Counter
	readLatency metric.Float64Histogram
}

// Provider reads prices from the DIA oracle contract.
type Provider struct {
	config ProviderConfig
	client ContractCaller
	oracle common.Address
	abi    abi.ABI
	logger logger.LoggerInterface
	cb     *circuitbreaker.CircuitBreaker[[]byte]

	tracer  trace.Tracer
	metrics *providerMetrics
}

// NewProvider creates a new DIA oracle provider.
func NewProvider(client ContractCaller, cfg ProviderConfig, log logger.LoggerInterface) (*Provider, error) {
	if !common.IsHexAddress(cfg.OracleAddress) {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("invalid oracle address "+cfg.OracleAddress))
	}

	parsedABI, err := abi.JSON(strings.NewReader(OracleABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse oracle ABI: %w", err)
	}

	p := &Provider{
		config: cfg,
		client: client,
		oracle: common.HexToAddress(cfg.OracleAddress),
		abi:    parsedABI,
		logger: log,
		cb:     circuitbreaker.New[[]byte](circuitbreaker.DefaultConfig("dia-oracle")),
		tracer: otel.Tracer(tracerName),
	}

	if err := p.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}
	return p, nil
}

func (p *Provider) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	p.metrics = &providerMetrics{}

	p.metrics.readsTotal, err = meter.Int64Counter(
		"dia_oracle_reads_total",
		metric.WithDescription("Total oracle getValue reads"),
	)
	if err != nil {
		return err
	}

	p.metrics.readErrors, err = meter.Int64Counter(
		"dia_oracle_read_errors_total",
		metric.WithDescription("Total failed oracle reads"),
	)
	if err != nil {
		return err
	}

	p.metrics.readLatency, err = meter.Float64Histogram(
		"dia_oracle_read_latency_ms",
		metric.WithDescription("Oracle read latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	return err
}

// Name identifies this source on quotes.
func (p *Provider) Name() domain.Source {
	return domain.SourceDIAOracle
}

// KeyFor returns the oracle key configured for a token symbol.
func (p *Provider) KeyFor(symbol string) (string, bool) {
	key, ok := p.config.Keys[strings.ToUpper(symbol)]
	return key, ok
}

// GetPrice reads getValue(key) for the symbol's configured oracle key and
// scales the uint128 value by 10^8.
func (p *Provider) GetPrice(ctx context.Context, symbol string) (domain.PriceQuote, error) {
	ctx, span := p.tracer.Start(ctx, "dia.get_price",
		trace.WithAttributes(attribute.String("symbol", symbol)),
	)
	defer span.End()

	key, ok := p.KeyFor(symbol)
	if !ok {
		return domain.PriceQuote{}, apperror.NotFound(apperror.CodeInvalidSymbol,
			"no oracle key configured for "+symbol)
	}
	span.SetAttributes(attribute.String("oracle_key", key))

	callData, err := p.abi.Pack("getValue", key)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("failed to encode call: %w", err)
	}

	start := time.Now()
	p.metrics.readsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("key", key)))

	raw, err := p.cb.Execute(func() ([]byte, error) {
		return p.client.CallContract(ctx, ethereum.CallMsg{
			To:   &p.oracle,
			Data: callData,
		}, nil)
	})
	p.metrics.readLatency.Record(ctx, float64(time.Since(start).Milliseconds()))
	if err != nil {
		p.metrics.readErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("key", key)))
		span.RecordError(err)
		return domain.PriceQuote{}, apperror.Wrap(err, apperror.CodeOracleReadFailed, "getValue "+key)
	}

	outputs, err := p.abi.Unpack("getValue", raw)
	if err != nil {
		return domain.PriceQuote{}, apperror.Wrap(err, apperror.CodeOracleReadFailed, "decode getValue "+key)
	}
	if len(outputs) < 2 {
		return domain.PriceQuote{}, apperror.New(apperror.CodeOracleReadFailed,
			apperror.WithContext(fmt.Sprintf("unexpected output length %d", len(outputs))))
	}

	value := outputs[0].(*big.Int)
	updatedAt := time.Unix(outputs[1].(*big.Int).Int64(), 0)

	if value.Sign() == 0 {
		return domain.PriceQuote{}, apperror.New(apperror.CodeOracleReadFailed,
			apperror.WithContext("oracle returned zero value for "+key))
	}
	if p.config.MaxStaleness > 0 && time.Since(updatedAt) > p.config.MaxStaleness {
		return domain.PriceQuote{}, apperror.New(apperror.CodeOracleReadFailed,
			apperror.WithContext(fmt.Sprintf("oracle value for %s stale since %s", key, updatedAt.Format(time.RFC3339))))
	}

	price := decimal.NewFromBigInt(value, -ValueDecimals)

	span.SetAttributes(
		attribute.String("price", price.String()),
		attribute.Int64("updated_at", updatedAt.Unix()),
	)
	p.logger.Debug(ctx, "dia oracle read", "key", key, "price", price.String(), "updated_at", updatedAt)

	return domain.PriceQuote{
		Symbol:    symbol,
		Price:     price,
		Source:    domain.SourceDIAOracle,
		Timestamp: updatedAt,
	}, nil
}
