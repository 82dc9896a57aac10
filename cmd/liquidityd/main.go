// Package main is the entry point for the Somnia liquidity hub daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/joho/godotenv"

	"github.com/Blockchain-Oracle/somnia-liquidity-hub/api"
	dexapp "github.com/Blockchain-Oracle/somnia-liquidity-hub/business/dex/app"
	dexdomain "github.com/Blockchain-Oracle/somnia-liquidity-hub/business/dex/domain"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/business/dex/infra/demo"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/business/dex/infra/onchain"
	engagementapp "github.com/Blockchain-Oracle/somnia-liquidity-hub/business/engagement/app"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/business/engagement/infra/memory"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/business/engagement/infra/postgres"
	pricingapp "github.com/Blockchain-Oracle/somnia-liquidity-hub/business/pricing/app"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/business/pricing/infra/binance"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/business/pricing/infra/coinbase"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/business/pricing/infra/dia"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/business/pricing/infra/pool"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/internal/apm"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/internal/cache"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/internal/config"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/internal/health"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/internal/logger"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/internal/metrics"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

// streamPairs are the Binance pairs kept warm over the WebSocket stream.
var streamPairs = []string{"SOMIUSDT", "ETHUSDT", "BTCUSDT"}

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("liquidityd %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(os.Stderr, "received shutdown signal: %v\n", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logLevel := logger.LevelInfo
	switch cfg.App.LogLevel {
	case "debug":
		logLevel = logger.LevelDebug
	case "warn":
		logLevel = logger.LevelWarn
	case "error":
		logLevel = logger.LevelError
	}
	log := logger.New(os.Stderr, logLevel, cfg.App.Name, nil)
	log.Info(ctx, "starting somnia liquidity hub",
		"version", version,
		"environment", cfg.App.Environment,
	)

	// Observability, when enabled.
	var traceProvider apm.TraceProvider
	if cfg.Telemetry.Enabled {
		if cfg.Telemetry.ServiceName != "" {
			os.Setenv("OTEL_SERVICE_NAME", cfg.Telemetry.ServiceName)
		}
		if cfg.Telemetry.OTLPEndpoint != "" {
			os.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Telemetry.OTLPEndpoint)
		}

		traceProvider = apm.NewTraceProvider(log, apm.WithProvider(apm.ZipkinProvider, log))
		log.Info(ctx, "tracing initialized", "provider", "zipkin")

		metrics.NewMetricProvider(
			metrics.WithServiceName(cfg.Telemetry.ServiceName),
			metrics.WithProviderConfig(metrics.ProviderCfg{
				Provider: metrics.PrometheusProvider,
			}),
		)
		port := cfg.Telemetry.PrometheusPort
		if port == 0 {
			port = 9090
		}
		go metrics.ServePrometheusMetrics(metrics.WithPort(strconv.Itoa(port)))
		log.Info(ctx, "prometheus metrics server started", "port", port)
	}
	defer func() {
		if traceProvider != nil {
			traceProvider.Stop()
		}
	}()

	healthPort := cfg.Server.HealthPort
	if healthPort == 0 {
		healthPort = 8081
	}
	healthServer := health.NewServer(healthPort, version)
	if err := healthServer.Start(); err != nil {
		log.Warn(ctx, "failed to start health server", "error", err)
	} else {
		log.Info(ctx, "health server started", "port", healthPort)
	}
	defer healthServer.Stop(ctx)

	// Shared cache backend for price aggregation and pool snapshots.
	var store cache.Cache
	switch cfg.Cache.Backend {
	case "redis":
		redis, err := cache.NewRedis(cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		store = redis
		log.Info(ctx, "using redis cache", "addr", cfg.Cache.RedisAddr)
	default:
		store = cache.NewMemory()
	}

	manager, chainClient, err := buildDexManager(ctx, cfg, store, log)
	if err != nil {
		return err
	}
	log.Info(ctx, "dex manager ready", "mode", manager.Mode())

	prices, closeProviders, err := buildPricing(ctx, cfg, store, chainClient, log)
	if err != nil {
		return err
	}
	defer closeProviders()

	engagement, closeEngagement, err := buildEngagement(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeEngagement()

	healthServer.RegisterCheck("dex", func(context.Context) (bool, string) {
		return true, "serving mode " + string(manager.Mode())
	})

	apiServer := api.NewServer(cfg.Server, prices, manager, engagement, log)
	port := cfg.Server.Port
	if port == 0 {
		port = 8080
	}
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      apiServer.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "api server listening", "port", port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("api server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info(ctx, "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// buildDexManager dials the configured networks and assembles the
// mode-manager with the demo backend as last resort. It also returns a
// chain client for the oracle and pool-pricer adapters (mainnet
// preferred), which may be nil when no RPC is configured.
func buildDexManager(ctx context.Context, cfg *config.Config, store cache.Cache, log *logger.Logger) (*dexapp.Manager, *ethclient.Client, error) {
	opts := []dexapp.ManagerOption{dexapp.WithPoolCache(store)}
	var chainClient *ethclient.Client

	networks := []struct {
		mode dexdomain.Mode
		cfg  config.NetworkConfig
	}{
		{dexdomain.ModeMainnetDEX, cfg.Somnia.Mainnet},
		{dexdomain.ModeTestnetDEX, cfg.Somnia.Testnet},
	}
	for _, n := range networks {
		if n.cfg.RPCURL == "" {
			continue
		}
		client, err := ethclient.Dial(n.cfg.RPCURL)
		if err != nil {
			log.Warn(ctx, "failed to dial network", "mode", n.mode, "error", err)
			continue
		}
		backend, err := onchain.NewBackend(client, n.mode, n.cfg, log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to build %s backend: %w", n.mode, err)
		}
		opts = append(opts, dexapp.WithBackend(backend))
		if chainClient == nil {
			chainClient = client
		}
	}
	opts = append(opts, dexapp.WithBackend(demo.NewBackend(log)))

	manager, err := dexapp.NewManager(ctx, dexapp.ManagerConfig{
		PoolCacheTTL: cfg.Pricing.PoolCacheTTL,
		ProbeTimeout: cfg.Somnia.ProbeTimeout,
	}, log, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build dex manager: %w", err)
	}
	return manager, chainClient, nil
}

// buildPricing assembles the aggregation service from the enabled
// exchange adapters, the DIA oracle and the pool-derived fallback.
func buildPricing(ctx context.Context, cfg *config.Config, store cache.Cache, chainClient *ethclient.Client, log *logger.Logger) (*pricingapp.Service, func(), error) {
	opts := []pricingapp.ServiceOption{pricingapp.WithCache(store)}
	var closers []func()

	enabled := make(map[string]bool, len(cfg.Exchanges.Enabled))
	for _, name := range cfg.Exchanges.Enabled {
		enabled[name] = true
	}

	if enabled["binance"] {
		bcfg := binance.DefaultProviderConfig(streamPairs)
		if cfg.Exchanges.BinanceBaseURL != "" {
			bcfg.HTTPURL = cfg.Exchanges.BinanceBaseURL
		}
		if cfg.Exchanges.BinanceWSURL != "" {
			bcfg.WebSocketURL = cfg.Exchanges.BinanceWSURL
		}
		if cfg.Exchanges.RequestsPerMinute > 0 {
			bcfg.RequestsPerMinute = cfg.Exchanges.RequestsPerMinute
		}
		bcfg.EnableStream = cfg.Exchanges.BinanceStream

		provider, err := binance.NewProvider(bcfg, log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to build binance adapter: %w", err)
		}
		if bcfg.EnableStream {
			if err := provider.Connect(ctx); err != nil {
				log.Warn(ctx, "binance stream unavailable, REST only", "error", err)
			}
		}
		closers = append(closers, func() { _ = provider.Close() })
		opts = append(opts, pricingapp.WithExchange(provider))
	}

	if enabled["coinbase"] {
		ccfg := coinbase.DefaultProviderConfig()
		if cfg.Exchanges.CoinbaseBaseURL != "" {
			ccfg.HTTPURL = cfg.Exchanges.CoinbaseBaseURL
		}
		provider, err := coinbase.NewProvider(ccfg, log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to build coinbase adapter: %w", err)
		}
		opts = append(opts, pricingapp.WithExchange(provider))
	}

	var oracle *dia.Provider
	if chainClient != nil && cfg.Oracle.Address != "" {
		o, err := dia.NewProvider(chainClient, dia.ProviderConfig{
			OracleAddress: cfg.Oracle.Address,
			Keys:          cfg.Oracle.Keys,
		}, log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to build oracle adapter: %w", err)
		}
		oracle = o
		opts = append(opts, pricingapp.WithOracle(oracle))
	}

	if chainClient != nil && len(cfg.Pools) > 0 {
		var pricerOpts []pool.PricerOption
		if oracle != nil {
			pricerOpts = append(pricerOpts, pool.WithCounterpartyOracle(oracle))
		}
		pricer, err := pool.NewPricer(chainClient, cfg.Pools, cfg.Pricing.Stablecoins, log, pricerOpts...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to build pool pricer: %w", err)
		}
		opts = append(opts, pricingapp.WithPoolPricer(pricer))
	}

	service := pricingapp.NewService(pricingapp.ServiceConfig{
		CacheTTL:      cfg.Pricing.CacheTTL,
		SourceTimeout: cfg.Exchanges.AdapterTimeout,
	}, log, opts...)

	closeAll := func() {
		for _, close := range closers {
			close()
		}
	}
	return service, closeAll, nil
}

// buildEngagement selects the configured store and wraps the service.
func buildEngagement(ctx context.Context, cfg *config.Config, log *logger.Logger) (*engagementapp.Service, func(), error) {
	var (
		engStore engagementapp.Store
		closer   = func() {}
	)

	switch cfg.Engagement.Storage {
	case "postgres":
		pg, err := postgres.NewStore(ctx, cfg.Engagement.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open engagement store: %w", err)
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, nil, fmt.Errorf("failed to migrate engagement store: %w", err)
		}
		engStore = pg
		closer = pg.Close
		log.Info(ctx, "engagement store ready", "backend", "postgres")
	default:
		engStore = memory.NewStore()
	}

	service := engagementapp.NewService(engagementapp.ServiceConfig{
		ChainID:       cfg.Engagement.ChainID,
		ViewDedupeTTL: cfg.Engagement.ViewDedupeTTL,
	}, engStore, log)
	return service, closer, nil
}
