package app

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Blockchain-Oracle/somnia-liquidity-hub/business/dex/domain"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/internal/apperror"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/internal/cache"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/internal/logger"
)

const tracerName = "dex.manager"

// ManagerConfig holds tuning knobs for the mode manager.
type ManagerConfig struct {
	PoolCacheTTL time.Duration // pool snapshot TTL
	ProbeTimeout time.Duration // per-backend probe budget
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		PoolCacheTTL: 30 * time.Second,
		ProbeTimeout: 5 * time.Second,
	}
}

// Manager serves DEX data from exactly one active backend. Construction
// probes mainnet first, falls back to testnet, then demo; SetMode moves
// only after the requested backend passes an independent probe.
type Manager struct {
	config   ManagerConfig
	logger   logger.LoggerInterface
	backends map[domain.Mode]Backend

	active   Backend
	activeMu sync.RWMutex

	poolCache cache.Cache
	tracer    trace.Tracer
}

// probeOrder is the construction fallback chain.
var probeOrder = []domain.Mode{domain.ModeMainnetDEX, domain.ModeTestnetDEX, domain.ModeDemo}

// ManagerOption configures the Manager.
type ManagerOption func(*Manager)

// WithBackend registers a backend under its own mode.
func WithBackend(b Backend) ManagerOption {
	return func(m *Manager) { m.backends[b.Mode()] = b }
}

// WithPoolCache overrides the default in-memory pool cache.
func WithPoolCache(c cache.Cache) ManagerOption {
	return func(m *Manager) { m.poolCache = c }
}

// NewManager creates the manager and selects the initial mode by probing
// the fallback chain. It fails only when no backend answers, demo
// included.
func NewManager(ctx context.Context, cfg ManagerConfig, log logger.LoggerInterface, opts ...ManagerOption) (*Manager, error) {
	if cfg.PoolCacheTTL <= 0 {
		cfg.PoolCacheTTL = DefaultManagerConfig().PoolCacheTTL
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultManagerConfig().ProbeTimeout
	}

	m := &Manager{
		config:    cfg,
		logger:    log,
		backends:  make(map[domain.Mode]Backend),
		poolCache: cache.NewMemory(),
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(m)
	}

	for _, mode := range probeOrder {
		b, ok := m.backends[mode]
		if !ok {
			continue
		}
		if err := m.probe(ctx, b); err != nil {
			log.Warn(ctx, "dex backend unreachable, falling back", "mode", mode, "error", err)
			continue
		}
		m.active = b
		log.Info(ctx, "dex mode selected", "mode", mode)
		break
	}
	if m.active == nil {
		return nil, apperror.New(apperror.CodeBackendUnavailable,
			apperror.WithContext("no dex backend reachable"))
	}
	return m, nil
}

func (m *Manager) probe(ctx context.Context, b Backend) error {
	probeCtx, cancel := context.WithTimeout(ctx, m.config.ProbeTimeout)
	defer cancel()
	return b.Probe(probeCtx)
}

// Status reports the current mode.
func (m *Manager) Status() domain.Status {
	b := m.current()
	return domain.Status{
		Mode:      b.Mode(),
		Execution: b.Execution(),
		ChainID:   b.ChainID(),
	}
}

// Mode returns the active mode.
func (m *Manager) Mode() domain.Mode {
	return m.current().Mode()
}

// SetMode switches to the requested mode after an independent probe of
// its backend succeeds. On any failure the current mode is retained and
// false returned.
func (m *Manager) SetMode(ctx context.Context, requested domain.Mode) bool {
	ctx, span := m.tracer.Start(ctx, "dex.set_mode",
		trace.WithAttributes(attribute.String("requested", string(requested))),
	)
	defer span.End()

	b, ok := m.backends[requested]
	if !ok {
		m.logger.Warn(ctx, "mode switch rejected, unknown mode", "requested", requested)
		return false
	}

	if err := m.probe(ctx, b); err != nil {
		span.RecordError(err)
		m.logger.Warn(ctx, "mode switch rejected, probe failed",
			"requested", requested, "retained", m.Mode(), "error", err)
		return false
	}

	m.activeMu.Lock()
	m.active = b
	m.activeMu.Unlock()

	m.logger.Info(ctx, "dex mode switched", "mode", requested)
	return true
}

// current captures the active backend once. Callers then operate on the
// capture, so a concurrent mode switch never splits one operation across
// two backends.
func (m *Manager) current() Backend {
	m.activeMu.RLock()
	defer m.activeMu.RUnlock()
	return m.active
}

// GetPool returns a pool snapshot from the active backend, cached per
// (mode, pair) for PoolCacheTTL.
func (m *Manager) GetPool(ctx context.Context, token0, token1 string) (*domain.Pool, error) {
	ctx, span := m.tracer.Start(ctx, "dex.get_pool",
		trace.WithAttributes(
			attribute.String("token0", token0),
			attribute.String("token1", token1),
		),
	)
	defer span.End()

	b := m.current()
	key := "dex:pool:" + string(b.Mode()) + ":" + domain.PairKey(token0, token1)

	if raw, ok, err := m.poolCache.Get(ctx, key); err == nil && ok {
		var cached domain.Pool
		if err := json.Unmarshal(raw, &cached); err == nil {
			span.SetAttributes(attribute.Bool("cache_hit", true))
			return &cached, nil
		}
		_ = m.poolCache.Delete(ctx, key)
	}

	pool, err := b.GetPool(ctx, token0, token1)
	if err != nil {
		return nil, m.annotate(err, b)
	}

	if raw, err := json.Marshal(pool); err == nil {
		if err := m.poolCache.Set(ctx, key, raw, m.config.PoolCacheTTL); err != nil {
			m.logger.Warn(ctx, "pool cache write failed", "key", key, "error", err)
		}
	}
	return pool, nil
}

// GetUserPositions returns the address's liquidity positions.
func (m *Manager) GetUserPositions(ctx context.Context, address string) ([]domain.Position, error) {
	ctx, span := m.tracer.Start(ctx, "dex.get_user_positions",
		trace.WithAttributes(attribute.String("address", address)),
	)
	defer span.End()

	b := m.current()
	positions, err := b.GetUserPositions(ctx, address)
	if err != nil {
		return nil, m.annotate(err, b)
	}
	span.SetAttributes(attribute.Int("positions", len(positions)))
	return positions, nil
}

// AddLiquidity dispatches to the active backend.
func (m *Manager) AddLiquidity(ctx context.Context, params domain.LiquidityParams) (*domain.LiquidityResult, error) {
	ctx, span := m.tracer.Start(ctx, "dex.add_liquidity")
	defer span.End()

	b := m.current()
	res, err := b.AddLiquidity(ctx, params)
	if err != nil {
		return nil, m.annotate(err, b)
	}
	span.SetAttributes(attribute.String("execution", string(res.Execution.Kind)))
	return res, nil
}

// Swap dispatches to the active backend.
func (m *Manager) Swap(ctx context.Context, params domain.SwapParams) (*domain.SwapResult, error) {
	ctx, span := m.tracer.Start(ctx, "dex.swap")
	defer span.End()

	b := m.current()
	res, err := b.Swap(ctx, params)
	if err != nil {
		return nil, m.annotate(err, b)
	}
	span.SetAttributes(attribute.String("execution", string(res.Execution.Kind)))
	return res, nil
}

// annotate surfaces the serving mode on backend errors. Errors never
// trigger a fallback mid-call; the caller sees which backend failed.
func (m *Manager) annotate(err error, b Backend) error {
	return apperror.Annotate(err, "mode "+string(b.Mode()))
}
