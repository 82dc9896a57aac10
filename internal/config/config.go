// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Somnia     SomniaConfig     `mapstructure:"somnia"`
	Oracle     OracleConfig     `mapstructure:"oracle"`
	Exchanges  ExchangesConfig  `mapstructure:"exchanges"`
	Pricing    PricingConfig    `mapstructure:"pricing"`
	Pools      []PoolConfig     `mapstructure:"pools"`
	Engagement EngagementConfig `mapstructure:"engagement"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// ServerConfig holds the HTTP API server settings.
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	HealthPort   int           `mapstructure:"health_port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	CORSOrigins  []string      `mapstructure:"cors_origins"`
}

// NetworkConfig holds one Somnia network deployment (mainnet or testnet).
type NetworkConfig struct {
	RPCURL          string `mapstructure:"rpc_url"`
	ChainID         uint64 `mapstructure:"chain_id"`
	FactoryAddress  string `mapstructure:"factory_address"`
	PositionManager string `mapstructure:"position_manager"`
	RouterAddress   string `mapstructure:"router_address"`
}

// FactoryAddressHex returns the factory address as common.Address.
func (n *NetworkConfig) FactoryAddressHex() common.Address {
	return common.HexToAddress(n.FactoryAddress)
}

// PositionManagerHex returns the position manager address as common.Address.
func (n *NetworkConfig) PositionManagerHex() common.Address {
	return common.HexToAddress(n.PositionManager)
}

// RouterAddressHex returns the router address as common.Address.
func (n *NetworkConfig) RouterAddressHex() common.Address {
	return common.HexToAddress(n.RouterAddress)
}

// SomniaConfig holds the Somnia network deployments.
type SomniaConfig struct {
	Mainnet      NetworkConfig `mapstructure:"mainnet"`
	Testnet      NetworkConfig `mapstructure:"testnet"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
}

// OracleConfig holds the DIA oracle deployment.
type OracleConfig struct {
	Address string            `mapstructure:"address"`
	Keys    map[string]string `mapstructure:"keys"` // symbol -> oracle feed key, e.g. SOMI -> "SOMI/USD"
}

// AddressHex returns the oracle address as common.Address.
func (o *OracleConfig) AddressHex() common.Address {
	return common.HexToAddress(o.Address)
}

// ExchangesConfig holds CEX adapter settings.
type ExchangesConfig struct {
	Enabled           []string      `mapstructure:"enabled"`
	BinanceBaseURL    string        `mapstructure:"binance_base_url"`
	BinanceWSURL      string        `mapstructure:"binance_ws_url"`
	BinanceStream     bool          `mapstructure:"binance_stream"`
	CoinbaseBaseURL   string        `mapstructure:"coinbase_base_url"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	AdapterTimeout    time.Duration `mapstructure:"adapter_timeout"`
}

// PricingConfig holds aggregation settings.
type PricingConfig struct {
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
	PoolCacheTTL time.Duration `mapstructure:"pool_cache_ttl"`
	Stablecoins  []string      `mapstructure:"stablecoins"`
}

// PoolConfig describes one known liquidity pool used for price discovery.
type PoolConfig struct {
	Address string `mapstructure:"address"`
	Token0  string `mapstructure:"token0"`
	Token1  string `mapstructure:"token1"`
	FeeTier int    `mapstructure:"fee_tier"`
}

// AddressHex returns the pool address as common.Address.
func (p *PoolConfig) AddressHex() common.Address {
	return common.HexToAddress(p.Address)
}

// EngagementConfig holds like/view service settings.
type EngagementConfig struct {
	ChainID       uint64        `mapstructure:"chain_id"`
	ViewDedupeTTL time.Duration `mapstructure:"view_dedupe_ttl"`
	Storage       string        `mapstructure:"storage"` // "memory" or "postgres"
	PostgresDSN   string        `mapstructure:"postgres_dsn"`
}

// CacheConfig holds price cache backend settings.
type CacheConfig struct {
	Backend       string `mapstructure:"backend"` // "memory" or "redis"
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("SLH")
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.name", "SLH_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "SLH_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "SLH_LOG_LEVEL", "LOG_LEVEL")

	// Server
	v.BindEnv("server.port", "SLH_PORT", "PORT")

	// Somnia
	v.BindEnv("somnia.mainnet.rpc_url", "SLH_MAINNET_RPC_URL", "SOMNIA_RPC_URL")
	v.BindEnv("somnia.testnet.rpc_url", "SLH_TESTNET_RPC_URL", "SOMNIA_TESTNET_RPC_URL")

	// Oracle
	v.BindEnv("oracle.address", "SLH_DIA_ORACLE_ADDRESS", "DIA_ORACLE_ADDRESS")

	// Engagement
	v.BindEnv("engagement.storage", "SLH_ENGAGEMENT_STORAGE")
	v.BindEnv("engagement.postgres_dsn", "SLH_POSTGRES_DSN", "DATABASE_URL")

	// Cache
	v.BindEnv("cache.backend", "SLH_CACHE_BACKEND")
	v.BindEnv("cache.redis_addr", "SLH_REDIS_ADDR", "REDIS_ADDR")
	v.BindEnv("cache.redis_password", "SLH_REDIS_PASSWORD", "REDIS_PASSWORD")

	// Telemetry
	v.BindEnv("telemetry.enabled", "SLH_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "SLH_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "SLH_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "somnia-liquidity-hub")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.health_port", 8081)
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.cors_origins", []string{"*"})

	// Somnia mainnet defaults (QuickSwap Algebra deployment)
	v.SetDefault("somnia.mainnet.rpc_url", "https://api.infra.mainnet.somnia.network")
	v.SetDefault("somnia.mainnet.chain_id", 5031)
	v.SetDefault("somnia.mainnet.factory_address", "0x0cCFf3D02eE9846BAFbb63e2952Dbd0e2a7a2cE3")
	v.SetDefault("somnia.mainnet.position_manager", "0x37A4950b4ea0C46596404895c5027B088B0e70e7")
	v.SetDefault("somnia.mainnet.router_address", "0x1582f6f3D26658F7208A799Be46e34b1f366CE44")

	// Somnia testnet (Shannon) defaults
	v.SetDefault("somnia.testnet.rpc_url", "https://dream-rpc.somnia.network")
	v.SetDefault("somnia.testnet.chain_id", 50312)
	v.SetDefault("somnia.testnet.factory_address", "0x057b0C04bE219a34DA1AF8a06B796b47a6F156a4")
	v.SetDefault("somnia.testnet.position_manager", "0x5e44F178E8cF9B2F5409B6f18ce936aB817C5a11")
	v.SetDefault("somnia.testnet.router_address", "0xE94de02e52Eaf9F0f6Bf7f16E4927FcBc2c09bC7")
	v.SetDefault("somnia.probe_timeout", "5s")

	// DIA oracle defaults (Somnia mainnet deployment)
	v.SetDefault("oracle.address", "0xbA0E0750A56e995506CA458b2BdD752754CF39C4")
	v.SetDefault("oracle.keys", map[string]string{
		"SOMI": "SOMI/USD",
		"WETH": "ETH/USD",
		"USDC": "USDC/USD",
		"USDT": "USDT/USD",
	})

	// Exchange defaults
	v.SetDefault("exchanges.enabled", []string{"binance", "coinbase"})
	v.SetDefault("exchanges.binance_base_url", "https://api.binance.com")
	v.SetDefault("exchanges.binance_ws_url", "wss://stream.binance.com:9443")
	v.SetDefault("exchanges.binance_stream", false)
	v.SetDefault("exchanges.coinbase_base_url", "https://api.coinbase.com")
	v.SetDefault("exchanges.requests_per_minute", 1200)
	v.SetDefault("exchanges.adapter_timeout", "5s")

	// Pricing defaults
	v.SetDefault("pricing.cache_ttl", "60s")
	v.SetDefault("pricing.pool_cache_ttl", "30s")
	v.SetDefault("pricing.stablecoins", []string{"USDC", "USDT"})

	// Engagement defaults
	v.SetDefault("engagement.chain_id", 5031)
	v.SetDefault("engagement.view_dedupe_ttl", "1h")
	v.SetDefault("engagement.storage", "memory")

	// Cache defaults
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_db", 0)

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "somnia-liquidity-hub")
	v.SetDefault("telemetry.prometheus_port", 9090)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Somnia.Mainnet.RPCURL == "" && c.Somnia.Testnet.RPCURL == "" {
		return fmt.Errorf("at least one of somnia.mainnet.rpc_url or somnia.testnet.rpc_url is required")
	}
	if c.Somnia.Mainnet.RPCURL != "" && !common.IsHexAddress(c.Somnia.Mainnet.FactoryAddress) {
		return fmt.Errorf("invalid somnia.mainnet.factory_address: %s", c.Somnia.Mainnet.FactoryAddress)
	}
	if c.Somnia.Testnet.RPCURL != "" && !common.IsHexAddress(c.Somnia.Testnet.FactoryAddress) {
		return fmt.Errorf("invalid somnia.testnet.factory_address: %s", c.Somnia.Testnet.FactoryAddress)
	}
	if c.Oracle.Address != "" && !common.IsHexAddress(c.Oracle.Address) {
		return fmt.Errorf("invalid oracle.address: %s", c.Oracle.Address)
	}
	for _, p := range c.Pools {
		if !common.IsHexAddress(p.Address) {
			return fmt.Errorf("invalid pool address: %s", p.Address)
		}
		if p.Token0 == "" || p.Token1 == "" {
			return fmt.Errorf("pool %s is missing token symbols", p.Address)
		}
	}
	if len(c.Exchanges.Enabled) == 0 {
		return fmt.Errorf("exchanges.enabled cannot be empty")
	}
	switch c.Engagement.Storage {
	case "memory", "postgres":
	default:
		return fmt.Errorf("engagement.storage must be memory or postgres, got %q", c.Engagement.Storage)
	}
	if c.Engagement.Storage == "postgres" && c.Engagement.PostgresDSN == "" {
		return fmt.Errorf("engagement.postgres_dsn is required for postgres storage")
	}
	switch c.Cache.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("cache.backend must be memory or redis, got %q", c.Cache.Backend)
	}
	return nil
}
