// Package coinbase implements a REST ExchangeProvider over the Coinbase
// spot and Exchange candles APIs.
package coinbase

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Blockchain-Oracle/somnia-liquidity-hub/business/pricing/app"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/business/pricing/domain"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/internal/apperror"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/internal/circuitbreaker"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/internal/httpclient"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/internal/logger"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/internal/ratelimit"
)

const (
	tracerName = "pricing.coinbase"

	// BaseHTTPURL is the public Coinbase data API.
	BaseHTTPURL = "https://api.coinbase.com"

	// BaseExchangeURL is the Coinbase Exchange market-data API, which
	// serves candles the data API does not.
	BaseExchangeURL = "https://api.exchange.coinbase.com"

	// maxCandles is the Exchange API's per-request candle cap.
	maxCandles = 300
)

// Ensure Provider implements ExchangeProvider.
var _ app.ExchangeProvider = (*Provider)(nil)

// spotResponse is GET /v2/prices/<pair>/spot.
type spotResponse struct {
	Data struct {
		Base     string `json:"base"`
		Currency string `json:"currency"`
		Amount   string `json:"amount"`
	} `json:"data"`
}

// candleRow is one GET /products/<pair>/candles entry:
// [time, low, high, open, close, volume], newest first.
type candleRow []json.Number

// ProviderConfig holds configuration for the Coinbase provider.
type ProviderConfig struct {
	HTTPURL           string // data API base URL (empty = default)
	ExchangeURL       string // Exchange API base URL (empty = default)
	QuoteCurrency     string // fiat leg, default USD
	RequestsPerMinute int
}

// DefaultProviderConfig returns sensible defaults.
func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		QuoteCurrency:     "USD",
		RequestsPerMinute: 600,
	}
}

// Provider serves spot prices and OHLC history from the Coinbase public
// APIs.
type Provider struct {
	config   ProviderConfig
	logger   logger.LoggerInterface
	http     *httpclient.Client
	exchange *httpclient.Client
	limiter  *ratelimit.Limiter

	breaker       *circuitbreaker.CircuitBreaker[domain.PriceQuote]
	candleBreaker *circuitbreaker.CircuitBreaker[[]domain.Candle]

	tracer trace.Tracer
}

// NewProvider creates a new Coinbase provider.
func NewProvider(cfg ProviderConfig, log logger.LoggerInterface) (*Provider, error) {
	if cfg.QuoteCurrency == "" {
		cfg.QuoteCurrency = "USD"
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 600
	}

	httpURL := cfg.HTTPURL
	if httpURL == "" {
		httpURL = BaseHTTPURL
	}
	httpClient, err := httpclient.New(
		httpclient.WithBaseURL(httpURL),
		httpclient.WithProviderName("coinbase"),
		httpclient.WithTimeout(10*time.Second),
	)
	if err != nil {
		return nil, err
	}

	exchangeURL := cfg.ExchangeURL
	if exchangeURL == "" {
		exchangeURL = BaseExchangeURL
	}
	exchangeClient, err := httpclient.New(
		httpclient.WithBaseURL(exchangeURL),
		httpclient.WithProviderName("coinbase-exchange"),
		httpclient.WithTimeout(10*time.Second),
	)
	if err != nil {
		return nil, err
	}

	return &Provider{
		config:        cfg,
		logger:        log,
		http:          httpClient,
		exchange:      exchangeClient,
		limiter:       ratelimit.New(cfg.RequestsPerMinute),
		breaker:       circuitbreaker.New[domain.PriceQuote](circuitbreaker.DefaultConfig("coinbase-spot")),
		candleBreaker: circuitbreaker.New[[]domain.Candle](circuitbreaker.DefaultConfig("coinbase-candles")),
		tracer:        otel.Tracer(tracerName),
	}, nil
}

// Name identifies this source on quotes.
func (p *Provider) Name() domain.Source {
	return domain.SourceCoinbase
}

// GetPrice returns the current spot price for symbol.
func (p *Provider) GetPrice(ctx context.Context, symbol string) (domain.PriceQuote, error) {
	ctx, span := p.tracer.Start(ctx, "coinbase.get_price",
		trace.WithAttributes(attribute.String("symbol", symbol)),
	)
	defer span.End()

	if err := p.limiter.Wait(ctx); err != nil {
		return domain.PriceQuote{}, apperror.Wrap(err, apperror.CodeRateLimitExceeded, "coinbase rate limit wait")
	}

	pair := p.pairFor(symbol)
	quote, err := p.breaker.Execute(func() (domain.PriceQuote, error) {
		var resp spotResponse
		if err := p.http.GetJSON(ctx, "/v2/prices/"+pair+"/spot", nil, &resp); err != nil {
			return domain.PriceQuote{}, apperror.Upstream(apperror.CodeExchangeAPIError, "coinbase spot "+pair, err)
		}

		price, err := decimal.NewFromString(resp.Data.Amount)
		if err != nil {
			return domain.PriceQuote{}, apperror.Wrap(err, apperror.CodeExchangeAPIError, "coinbase price parse "+pair)
		}
		return domain.NewQuote(symbol, price, domain.SourceCoinbase), nil
	})
	if err != nil {
		span.RecordError(err)
		return domain.PriceQuote{}, err
	}

	span.SetAttributes(attribute.String("price", quote.Price.String()))
	return quote, nil
}

// GetCandles returns up to limit OHLC bars for symbol, oldest first.
func (p *Provider) GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Candle, error) {
	ctx, span := p.tracer.Start(ctx, "coinbase.get_candles",
		trace.WithAttributes(
			attribute.String("symbol", symbol),
			attribute.String("timeframe", timeframe),
			attribute.Int("limit", limit),
		),
	)
	defer span.End()

	granularity, err := mapGranularity(timeframe)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > maxCandles {
		limit = 100
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeRateLimitExceeded, "coinbase rate limit wait")
	}

	pair := p.pairFor(symbol)
	candles, err := p.candleBreaker.Execute(func() ([]domain.Candle, error) {
		var rows []candleRow
		q := url.Values{"granularity": {strconv.Itoa(granularity)}}
		if err := p.exchange.GetJSON(ctx, "/products/"+pair+"/candles", q, &rows); err != nil {
			return nil, apperror.Upstream(apperror.CodeExchangeAPIError, "coinbase candles "+pair, err)
		}

		if len(rows) > limit {
			rows = rows[:limit]
		}

		// The Exchange API answers newest first; reverse so callers see
		// the series in time order.
		out := make([]domain.Candle, 0, len(rows))
		for i := len(rows) - 1; i >= 0; i-- {
			c, err := rows[i].toCandle(granularity)
			if err != nil {
				return nil, apperror.Wrap(err, apperror.CodeExchangeAPIError, "coinbase candle parse "+pair)
			}
			out = append(out, c)
		}
		return out, nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("candles", len(candles)))
	return candles, nil
}

func (p *Provider) pairFor(symbol string) string {
	return strings.ToUpper(symbol) + "-" + p.config.QuoteCurrency
}

func (r candleRow) toCandle(granularity int) (domain.Candle, error) {
	if len(r) < 6 {
		return domain.Candle{}, apperror.New(apperror.CodeExchangeAPIError,
			apperror.WithContext("short candle row"))
	}

	openSec, err := r[0].Int64()
	if err != nil {
		return domain.Candle{}, err
	}

	fields := make([]decimal.Decimal, 5)
	for i, num := range r[1:6] {
		d, err := decimal.NewFromString(num.String())
		if err != nil {
			return domain.Candle{}, err
		}
		fields[i] = d
	}

	openTime := time.Unix(openSec, 0).UTC()
	return domain.Candle{
		OpenTime:  openTime,
		CloseTime: openTime.Add(time.Duration(granularity) * time.Second),
		Low:       fields[0],
		High:      fields[1],
		Open:      fields[2],
		Close:     fields[3],
		Volume:    fields[4],
	}, nil
}

// mapGranularity validates the dashboard timeframe against the Exchange
// API's supported granularities.
func mapGranularity(timeframe string) (int, error) {
	switch timeframe {
	case "1m":
		return 60, nil
	case "5m":
		return 300, nil
	case "15m":
		return 900, nil
	case "1h", "":
		return 3600, nil
	case "6h":
		return 21600, nil
	case "1d":
		return 86400, nil
	default:
		return 0, apperror.Validation(apperror.CodeInvalidInput, "unsupported timeframe "+timeframe)
	}
}
