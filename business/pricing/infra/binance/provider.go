package binance

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

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
	tracerName = "pricing.binance"

	// BaseHTTPURL is the Binance spot REST endpoint.
	BaseHTTPURL = "https://api.binance.com"
)

// Ensure Provider implements ExchangeProvider.
var _ app.ExchangeProvider = (*Provider)(nil)

// ProviderConfig holds configuration for the Binance provider.
type ProviderConfig struct {
	HTTPURL           string        // REST base URL (empty = default)
	WebSocketURL      string        // WS base URL (empty = default)
	QuoteAsset        string        // pair quote leg, default USDT
	Pairs             []string      // pairs to stream, e.g. "SOMIUSDT"
	RequestsPerMinute int           // REST rate limit
	StreamMaxAge      time.Duration // how long a streamed quote stays usable
	EnableStream      bool          // keep a live WS last-quote per pair
}

// DefaultProviderConfig returns sensible defaults.
func DefaultProviderConfig(pairs []string) ProviderConfig {
	return ProviderConfig{
		QuoteAsset:        "USDT",
		Pairs:             pairs,
		RequestsPerMinute: 1200,
		StreamMaxAge:      10 * time.Second,
		EnableStream:      true,
	}
}

// Provider serves spot prices and OHLC history from Binance. A live
// bookTicker stream answers GetPrice when fresh; REST is the fallback.
type Provider struct {
	config  ProviderConfig
	logger  logger.LoggerInterface
	http    *httpclient.Client
	limiter *ratelimit.Limiter
	stream  *Stream

	priceBreaker  *circuitbreaker.CircuitBreaker[domain.PriceQuote]
	candleBreaker *circuitbreaker.CircuitBreaker[[]domain.Candle]

	tracer trace.Tracer
}

// NewProvider creates a new Binance provider.
func NewProvider(cfg ProviderConfig, log logger.LoggerInterface) (*Provider, error) {
	if cfg.QuoteAsset == "" {
		cfg.QuoteAsset = "USDT"
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 1200
	}
	if cfg.StreamMaxAge <= 0 {
		cfg.StreamMaxAge = 10 * time.Second
	}

	httpURL := cfg.HTTPURL
	if httpURL == "" {
		httpURL = BaseHTTPURL
	}
	httpClient, err := httpclient.New(
		httpclient.WithBaseURL(httpURL),
		httpclient.WithProviderName("binance"),
		httpclient.WithTimeout(10*time.Second),
	)
	if err != nil {
		return nil, err
	}

	p := &Provider{
		config:        cfg,
		logger:        log,
		http:          httpClient,
		limiter:       ratelimit.New(cfg.RequestsPerMinute),
		priceBreaker:  circuitbreaker.New[domain.PriceQuote](circuitbreaker.DefaultConfig("binance-price")),
		candleBreaker: circuitbreaker.New[[]domain.Candle](circuitbreaker.DefaultConfig("binance-klines")),
		tracer:        otel.Tracer(tracerName),
	}

	if cfg.EnableStream && len(cfg.Pairs) > 0 {
		stream, err := NewStream(cfg.WebSocketURL, cfg.Pairs, log)
		if err != nil {
			log.Warn(context.Background(), "binance stream setup failed, REST only", "error", err)
		} else {
			p.stream = stream
		}
	}

	return p, nil
}

// Connect starts the WebSocket stream, when enabled.
func (p *Provider) Connect(ctx context.Context) error {
	if p.stream == nil {
		return nil
	}
	return p.stream.Connect(ctx)
}

// Close shuts the stream down.
func (p *Provider) Close() error {
	if p.stream == nil {
		return nil
	}
	return p.stream.Close()
}

// Name identifies this source on quotes.
func (p *Provider) Name() domain.Source {
	return domain.SourceBinance
}

// GetPrice returns the current price for symbol against the quote asset.
func (p *Provider) GetPrice(ctx context.Context, symbol string) (domain.PriceQuote, error) {
	ctx, span := p.tracer.Start(ctx, "binance.get_price",
		trace.WithAttributes(attribute.String("symbol", symbol)),
	)
	defer span.End()

	pair := p.pairFor(symbol)

	if p.stream != nil {
		if price, at, ok := p.stream.Quote(pair, p.config.StreamMaxAge); ok {
			span.SetAttributes(attribute.String("source", "websocket"))
			return domain.PriceQuote{
				Symbol:    symbol,
				Price:     price,
				Source:    domain.SourceBinance,
				Timestamp: at,
			}, nil
		}
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return domain.PriceQuote{}, apperror.Wrap(err, apperror.CodeRateLimitExceeded, "binance rate limit wait")
	}

	quote, err := p.priceBreaker.Execute(func() (domain.PriceQuote, error) {
		var resp TickerPriceResponse
		q := url.Values{"symbol": {pair}}
		if err := p.http.GetJSON(ctx, "/api/v3/ticker/price", q, &resp); err != nil {
			return domain.PriceQuote{}, apperror.Upstream(apperror.CodeExchangeAPIError, "binance ticker "+pair, err)
		}

		price, err := resp.ParsePrice()
		if err != nil {
			return domain.PriceQuote{}, apperror.Wrap(err, apperror.CodeExchangeAPIError, "binance price parse "+pair)
		}
		return domain.NewQuote(symbol, price, domain.SourceBinance), nil
	})
	if err != nil {
		span.RecordError(err)
		return domain.PriceQuote{}, err
	}

	span.SetAttributes(
		attribute.String("source", "rest"),
		attribute.String("price", quote.Price.String()),
	)
	return quote, nil
}

// GetCandles returns up to limit OHLC bars for symbol.
func (p *Provider) GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Candle, error) {
	ctx, span := p.tracer.Start(ctx, "binance.get_candles",
		trace.WithAttributes(
			attribute.String("symbol", symbol),
			attribute.String("timeframe", timeframe),
			attribute.Int("limit", limit),
		),
	)
	defer span.End()

	interval, err := mapTimeframe(timeframe)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeRateLimitExceeded, "binance rate limit wait")
	}

	pair := p.pairFor(symbol)
	candles, err := p.candleBreaker.Execute(func() ([]domain.Candle, error) {
		var rows []KlineRow
		q := url.Values{
			"symbol":   {pair},
			"interval": {interval},
			"limit":    {strconv.Itoa(limit)},
		}
		if err := p.http.GetJSON(ctx, "/api/v3/klines", q, &rows); err != nil {
			return nil, apperror.Upstream(apperror.CodeExchangeAPIError, "binance klines "+pair, err)
		}

		out := make([]domain.Candle, 0, len(rows))
		for _, row := range rows {
			c, err := row.ToCandle()
			if err != nil {
				return nil, apperror.Wrap(err, apperror.CodeExchangeAPIError, "binance kline parse "+pair)
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
	return strings.ToUpper(symbol) + p.config.QuoteAsset
}

// mapTimeframe validates the dashboard timeframe against Binance intervals.
func mapTimeframe(timeframe string) (string, error) {
	switch timeframe {
	case "1m", "5m", "15m", "30m", "1h", "4h", "1d", "1w":
		return timeframe, nil
	case "":
		return "1h", nil
	default:
		return "", apperror.Validation(apperror.CodeInvalidInput, "unsupported timeframe "+timeframe)
	}
}
