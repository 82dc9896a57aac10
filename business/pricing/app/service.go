package app

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Blockchain-Oracle/somnia-liquidity-hub/business/pricing/domain"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/internal/apperror"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/internal/cache"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/internal/logger"
)

const tracerName = "pricing.service"

// ServiceConfig holds tuning knobs for the price aggregation service.
type ServiceConfig struct {
	CacheTTL      time.Duration // aggregated price cache TTL
	SourceTimeout time.Duration // per-adapter fan-out timeout
}

// DefaultServiceConfig returns sensible defaults.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		CacheTTL:      60 * time.Second,
		SourceTimeout: 5 * time.Second,
	}
}

// Service aggregates prices across exchange, oracle and pool sources.
type Service struct {
	config  ServiceConfig
	logger  logger.LoggerInterface
	sources []PriceSource
	// exchanges indexes the ExchangeProvider subset by name for the
	// per-exchange and history operations.
	exchanges map[domain.Source]ExchangeProvider
	pool      PoolPricer
	cache     cache.Cache

	// lastKnown holds the most recent successful aggregation per symbol.
	// Served only through StalePrice, never from GetAggregatedPrice.
	lastKnown   map[string]domain.AggregatedPrice
	lastKnownMu sync.RWMutex

	tracer trace.Tracer
}

// ServiceOption configures the Service.
type ServiceOption func(*Service)

// WithExchange registers an exchange adapter as both an aggregation source
// and a history provider.
func WithExchange(p ExchangeProvider) ServiceOption {
	return func(s *Service) {
		s.sources = append(s.sources, p)
		s.exchanges[p.Name()] = p
	}
}

// WithOracle registers an on-chain oracle adapter.
func WithOracle(p OracleProvider) ServiceOption {
	return func(s *Service) {
		s.sources = append(s.sources, p)
	}
}

// WithPoolPricer registers the pool-derived price fallback.
func WithPoolPricer(p PoolPricer) ServiceOption {
	return func(s *Service) { s.pool = p }
}

// WithCache overrides the default in-memory cache.
func WithCache(c cache.Cache) ServiceOption {
	return func(s *Service) { s.cache = c }
}

// NewService creates the aggregation service.
func NewService(cfg ServiceConfig, log logger.LoggerInterface, opts ...ServiceOption) *Service {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultServiceConfig().CacheTTL
	}
	if cfg.SourceTimeout <= 0 {
		cfg.SourceTimeout = DefaultServiceConfig().SourceTimeout
	}

	s := &Service{
		config:    cfg,
		logger:    log,
		exchanges: make(map[domain.Source]ExchangeProvider),
		cache:     cache.NewMemory(),
		lastKnown: make(map[string]domain.AggregatedPrice),
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetAggregatedPrice fans out to every configured source concurrently,
// drops failures, and returns the median of the survivors. The pool-derived
// price joins the source set when no direct source could quote the symbol.
// Returns an ALL_SOURCES_FAILED error when nothing survived.
func (s *Service) GetAggregatedPrice(ctx context.Context, symbol string) (*domain.AggregatedPrice, error) {
	ctx, span := s.tracer.Start(ctx, "pricing.get_aggregated_price",
		trace.WithAttributes(attribute.String("symbol", symbol)),
	)
	defer span.End()

	key := cacheKey(symbol)
	if raw, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		var cached domain.AggregatedPrice
		if err := json.Unmarshal(raw, &cached); err == nil {
			span.SetAttributes(attribute.Bool("cache_hit", true))
			return &cached, nil
		}
		// Corrupt entry: drop it and re-fetch.
		_ = s.cache.Delete(ctx, key)
	}

	quotes := s.fanOut(ctx, symbol)

	if len(quotes) == 0 && s.pool != nil {
		if q, ok := s.poolQuote(ctx, symbol); ok {
			quotes = append(quotes, q)
		}
	}

	agg := domain.Aggregate(symbol, quotes)
	if agg == nil {
		span.SetAttributes(attribute.Bool("all_failed", true))
		s.logger.Warn(ctx, "all price sources failed", "symbol", symbol)
		return nil, apperror.Upstream(apperror.CodeAllSourcesFailed, "no source could price "+symbol, nil)
	}

	span.SetAttributes(
		attribute.Int("sources", len(agg.Sources)),
		attribute.String("price", agg.Price.String()),
	)

	if raw, err := json.Marshal(agg); err == nil {
		if err := s.cache.Set(ctx, key, raw, s.config.CacheTTL); err != nil {
			s.logger.Warn(ctx, "price cache write failed", "symbol", symbol, "error", err)
		}
	}

	s.lastKnownMu.Lock()
	s.lastKnown[symbol] = *agg
	s.lastKnownMu.Unlock()

	return agg, nil
}

// fanOut queries every source in parallel with a per-source timeout and
// returns the surviving quotes in registration order.
func (s *Service) fanOut(ctx context.Context, symbol string) []domain.PriceQuote {
	type result struct {
		idx   int
		quote domain.PriceQuote
		err   error
	}

	results := make(chan result, len(s.sources))
	var wg sync.WaitGroup
	for i, src := range s.sources {
		wg.Add(1)
		go func(idx int, src PriceSource) {
			defer wg.Done()
			srcCtx, cancel := context.WithTimeout(ctx, s.config.SourceTimeout)
			defer cancel()

			q, err := src.GetPrice(srcCtx, symbol)
			results <- result{idx: idx, quote: q, err: err}
		}(i, src)
	}
	wg.Wait()
	close(results)

	ordered := make([]*domain.PriceQuote, len(s.sources))
	for r := range results {
		if r.err != nil {
			s.logger.Debug(ctx, "price source failed",
				"symbol", symbol, "source", s.sources[r.idx].Name(), "error", r.err)
			continue
		}
		q := r.quote
		ordered[r.idx] = &q
	}

	quotes := make([]domain.PriceQuote, 0, len(s.sources))
	for _, q := range ordered {
		if q != nil {
			quotes = append(quotes, *q)
		}
	}
	return quotes
}

func (s *Service) poolQuote(ctx context.Context, symbol string) (domain.PriceQuote, bool) {
	price, ok, err := s.pool.TokenPriceFromPools(ctx, symbol)
	if err != nil {
		s.logger.Debug(ctx, "pool pricing failed", "symbol", symbol, "error", err)
		return domain.PriceQuote{}, false
	}
	if !ok {
		return domain.PriceQuote{}, false
	}
	return domain.NewQuote(symbol, price, domain.SourcePoolDerived), true
}

// StalePrice returns the last successful aggregation for symbol, marked
// stale. This is the only path that serves data past its TTL; callers use
// it after GetAggregatedPrice fails and must surface the staleness.
func (s *Service) StalePrice(symbol string) (*domain.AggregatedPrice, bool) {
	s.lastKnownMu.RLock()
	agg, ok := s.lastKnown[symbol]
	s.lastKnownMu.RUnlock()
	if !ok {
		return nil, false
	}

	agg.Stale = true
	sources := make([]domain.PriceQuote, len(agg.Sources))
	copy(sources, agg.Sources)
	for i := range sources {
		sources[i].Stale = true
	}
	agg.Sources = sources
	return &agg, true
}

// GetPriceFromExchange returns a single-source quote from the named exchange.
func (s *Service) GetPriceFromExchange(ctx context.Context, exchange domain.Source, symbol string) (domain.PriceQuote, error) {
	ctx, span := s.tracer.Start(ctx, "pricing.get_price_from_exchange",
		trace.WithAttributes(
			attribute.String("exchange", string(exchange)),
			attribute.String("symbol", symbol),
		),
	)
	defer span.End()

	p, ok := s.exchanges[exchange]
	if !ok {
		return domain.PriceQuote{}, apperror.New(apperror.CodeExchangeUnsupported,
			apperror.WithContext("unknown exchange "+string(exchange)))
	}
	return p.GetPrice(ctx, symbol)
}

// GetHistory returns OHLC candles and a dashboard summary for symbol.
func (s *Service) GetHistory(ctx context.Context, symbol, timeframe string, limit int, exchange domain.Source) ([]domain.Candle, *domain.HistorySummary, error) {
	ctx, span := s.tracer.Start(ctx, "pricing.get_history",
		trace.WithAttributes(
			attribute.String("symbol", symbol),
			attribute.String("timeframe", timeframe),
			attribute.Int("limit", limit),
		),
	)
	defer span.End()

	p, ok := s.exchanges[exchange]
	if !ok {
		return nil, nil, apperror.New(apperror.CodeExchangeUnsupported,
			apperror.WithContext("unknown exchange "+string(exchange)))
	}

	candles, err := p.GetCandles(ctx, symbol, timeframe, limit)
	if err != nil {
		return nil, nil, apperror.Wrap(err, apperror.CodeHistoryFetchFailed, "history for "+symbol)
	}

	return candles, domain.Summarize(symbol, timeframe, candles), nil
}

// CalculateVolatility computes the stddev/mean percentage over windowHours
// of hourly closes.
func (s *Service) CalculateVolatility(ctx context.Context, symbol string, windowHours int, exchange domain.Source) (domain.Volatility, error) {
	if windowHours <= 0 {
		windowHours = 24
	}

	candles, _, err := s.GetHistory(ctx, symbol, "1h", windowHours, exchange)
	if err != nil {
		return domain.Volatility{}, err
	}

	closes := make([]decimal.Decimal, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	return domain.VolatilityOf(symbol, windowHours, closes), nil
}

// FindArbitrage computes the DEX/CEX spread for symbol. Pure computation,
// gas-unaware by contract.
func (s *Service) FindArbitrage(symbol string, dexPrice, cexPrice, minProfitPercent decimal.Decimal) domain.ArbitrageOpportunity {
	return domain.FindOpportunity(symbol, dexPrice, cexPrice, minProfitPercent)
}

// Sources returns the names of all registered price sources.
func (s *Service) Sources() []domain.Source {
	names := make([]domain.Source, len(s.sources))
	for i, src := range s.sources {
		names[i] = src.Name()
	}
	return names
}

func cacheKey(symbol string) string {
	return "price:agg:" + symbol
}
