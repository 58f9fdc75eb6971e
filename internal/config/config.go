// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Chain     ChainConfig     `mapstructure:"chain"`
	Venues    VenuesConfig    `mapstructure:"venues"`
	Pricing   PricingConfig   `mapstructure:"pricing"`
	Strategy  StrategyConfig  `mapstructure:"strategy"`
	Custody   CustodyConfig   `mapstructure:"custody"`
	Execution ExecutionConfig `mapstructure:"execution"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Control   ControlConfig   `mapstructure:"control"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// ChainConfig holds chain node configuration.
type ChainConfig struct {
	HTTPURL        string        `mapstructure:"http_url"`
	WebSocketURL   string        `mapstructure:"websocket_url"`
	ChainID        uint64        `mapstructure:"chain_id"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
}

// VenuesConfig holds swap venue contract addresses.
type VenuesConfig struct {
	V2RouterAddress  string `mapstructure:"v2_router_address"`
	V3QuoterAddress  string `mapstructure:"v3_quoter_address"`
	V3RouterAddress  string `mapstructure:"v3_router_address"`
	MulticallAddress string `mapstructure:"multicall_address"`
	FeeTiers         []int  `mapstructure:"fee_tiers"`
}

// V2RouterAddressHex returns the V2 router address as common.Address.
func (c *VenuesConfig) V2RouterAddressHex() common.Address {
	return common.HexToAddress(c.V2RouterAddress)
}

// V3QuoterAddressHex returns the V3 quoter address as common.Address.
func (c *VenuesConfig) V3QuoterAddressHex() common.Address {
	return common.HexToAddress(c.V3QuoterAddress)
}

// V3RouterAddressHex returns the V3 router address as common.Address.
func (c *VenuesConfig) V3RouterAddressHex() common.Address {
	return common.HexToAddress(c.V3RouterAddress)
}

// MulticallAddressHex returns the multicall address as common.Address.
func (c *VenuesConfig) MulticallAddressHex() common.Address {
	return common.HexToAddress(c.MulticallAddress)
}

// PricingConfig holds reference price source configuration.
type PricingConfig struct {
	ProxyURL            string        `mapstructure:"proxy_url"`
	BybitBaseURL        string        `mapstructure:"bybit_base_url"`
	BinanceBaseURL      string        `mapstructure:"binance_base_url"`
	CoinGeckoBaseURL    string        `mapstructure:"coingecko_base_url"`
	CacheTTL            time.Duration `mapstructure:"cache_ttl"`
	RequestTimeout      time.Duration `mapstructure:"request_timeout"`
	DivergenceTolerance float64       `mapstructure:"divergence_tolerance"`
}

// StrategyConfig holds trade sizing and profitability thresholds.
type StrategyConfig struct {
	BaseSymbol        string        `mapstructure:"base_symbol"`
	QuoteSymbol       string        `mapstructure:"quote_symbol"`
	TradeAmount       float64       `mapstructure:"trade_amount"`
	MinProfitFraction float64       `mapstructure:"min_profit_fraction"`
	SlippageFraction  float64       `mapstructure:"slippage_fraction"`
	MaxROIFraction    float64       `mapstructure:"max_roi_fraction"`
	MaxDrawdown       float64       `mapstructure:"max_drawdown"`
	ScanInterval      time.Duration `mapstructure:"scan_interval"`
	TradeCooldown     time.Duration `mapstructure:"trade_cooldown"`
}

// TradeAmountDecimal returns the trade amount as decimal.Decimal.
func (c *StrategyConfig) TradeAmountDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.TradeAmount)
}

// SlippageDecimal returns the slippage fraction as decimal.Decimal.
func (c *StrategyConfig) SlippageDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.SlippageFraction)
}

// CustodyConfig holds wallet custody configuration.
type CustodyConfig struct {
	KeyStoreDir            string  `mapstructure:"keystore_dir"`
	OperatorKeyFile        string  `mapstructure:"operator_key_file"`
	PoolAddress            string  `mapstructure:"pool_address"`
	ConsolidationThreshold float64 `mapstructure:"consolidation_threshold"`
	MinGasReserve          float64 `mapstructure:"min_gas_reserve"`
}

// PoolAddressHex returns the consolidation pool address as common.Address.
func (c *CustodyConfig) PoolAddressHex() common.Address {
	return common.HexToAddress(c.PoolAddress)
}

// ExecutionConfig holds transaction construction parameters.
type ExecutionConfig struct {
	GasBumpFactor  float64       `mapstructure:"gas_bump_factor"`
	SwapDeadline   time.Duration `mapstructure:"swap_deadline"`
	MineTimeout    time.Duration `mapstructure:"mine_timeout"`
	GasLimitSwap   uint64        `mapstructure:"gas_limit_swap"`
	GasLimitERC20  uint64        `mapstructure:"gas_limit_erc20"`
	DemoMode       bool          `mapstructure:"demo_mode"`
	GasPriceTTL    time.Duration `mapstructure:"gas_price_ttl"`
}

// EngineConfig holds scan loop configuration.
type EngineConfig struct {
	WatchdogTimeout time.Duration `mapstructure:"watchdog_timeout"`
	StateFile       string        `mapstructure:"state_file"`
}

// ControlConfig holds the control HTTP server configuration.
type ControlConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
	AuthToken  string `mapstructure:"auth_token"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string `mapstructure:"otlp_headers"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables
	v.SetEnvPrefix("FLOWSNIPER")
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	// Read config file (optional)
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
	v.BindEnv("app.name", "FLOWSNIPER_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "FLOWSNIPER_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "FLOWSNIPER_LOG_LEVEL", "LOG_LEVEL")

	// Chain
	v.BindEnv("chain.http_url", "FLOWSNIPER_RPC_HTTP_URL", "POLYGON_RPC_URL")
	v.BindEnv("chain.websocket_url", "FLOWSNIPER_RPC_WS_URL", "POLYGON_WS_URL")
	v.BindEnv("chain.chain_id", "FLOWSNIPER_CHAIN_ID", "CHAIN_ID")

	// Venues
	v.BindEnv("venues.v2_router_address", "FLOWSNIPER_V2_ROUTER")
	v.BindEnv("venues.v3_quoter_address", "FLOWSNIPER_V3_QUOTER")
	v.BindEnv("venues.v3_router_address", "FLOWSNIPER_V3_ROUTER")
	v.BindEnv("venues.multicall_address", "FLOWSNIPER_MULTICALL")

	// Pricing
	v.BindEnv("pricing.proxy_url", "FLOWSNIPER_PRICE_PROXY_URL", "PRICE_PROXY_URL")
	v.BindEnv("pricing.cache_ttl", "FLOWSNIPER_PRICE_CACHE_TTL")

	// Strategy
	v.BindEnv("strategy.trade_amount", "FLOWSNIPER_TRADE_AMOUNT")
	v.BindEnv("strategy.min_profit_fraction", "FLOWSNIPER_MIN_PROFIT_FRACTION")
	v.BindEnv("strategy.slippage_fraction", "FLOWSNIPER_SLIPPAGE_FRACTION")
	v.BindEnv("strategy.max_drawdown", "FLOWSNIPER_MAX_DRAWDOWN")

	// Custody
	v.BindEnv("custody.keystore_dir", "FLOWSNIPER_KEYSTORE_DIR")
	v.BindEnv("custody.operator_key_file", "FLOWSNIPER_OPERATOR_KEY_FILE", "OPERATOR_KEY_FILE")
	v.BindEnv("custody.pool_address", "FLOWSNIPER_POOL_ADDRESS", "POOL_ADDRESS")

	// Execution
	v.BindEnv("execution.demo_mode", "FLOWSNIPER_DEMO_MODE", "DEMO_MODE")

	// Control
	v.BindEnv("control.listen_addr", "FLOWSNIPER_CONTROL_ADDR", "CONTROL_ADDR")
	v.BindEnv("control.auth_token", "FLOWSNIPER_CONTROL_TOKEN", "CONTROL_TOKEN")

	// Telemetry
	v.BindEnv("telemetry.enabled", "FLOWSNIPER_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "FLOWSNIPER_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "FLOWSNIPER_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "flowsniper")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// Chain defaults (Polygon PoS)
	v.SetDefault("chain.http_url", "https://polygon-rpc.com")
	v.SetDefault("chain.chain_id", 137)
	v.SetDefault("chain.max_reconnects", 0) // infinite
	v.SetDefault("chain.initial_backoff", "1s")
	v.SetDefault("chain.max_backoff", "30s")

	// Venue defaults (Polygon PoS)
	v.SetDefault("venues.v2_router_address", "0xa5E0829CaCEd8fFDD4De3c43696c57F7D7A678ff")
	v.SetDefault("venues.v3_quoter_address", "0x61fFE014bA17989E743c5F6cB21bF9697530B21e")
	v.SetDefault("venues.v3_router_address", "0x68b3465833fb72A70ecDF485E0e4C7bD8665Fc45")
	v.SetDefault("venues.multicall_address", "0xcA11bde05977b3631167028862bE2a173976CA11")
	v.SetDefault("venues.fee_tiers", []int{500, 3000, 10000})

	// Pricing defaults
	v.SetDefault("pricing.bybit_base_url", "https://api.bybit.com")
	v.SetDefault("pricing.binance_base_url", "https://api.binance.com")
	v.SetDefault("pricing.coingecko_base_url", "https://api.coingecko.com")
	v.SetDefault("pricing.cache_ttl", "10s")
	v.SetDefault("pricing.request_timeout", "5s")
	v.SetDefault("pricing.divergence_tolerance", 0.15)

	// Strategy defaults
	v.SetDefault("strategy.base_symbol", "WETH")
	v.SetDefault("strategy.quote_symbol", "USDT")
	v.SetDefault("strategy.trade_amount", 10.0)
	v.SetDefault("strategy.min_profit_fraction", 0.001)
	v.SetDefault("strategy.slippage_fraction", 0.005)
	v.SetDefault("strategy.max_roi_fraction", 0.5)
	v.SetDefault("strategy.max_drawdown", -5.0)
	v.SetDefault("strategy.scan_interval", "15s")
	v.SetDefault("strategy.trade_cooldown", "30s")

	// Custody defaults
	v.SetDefault("custody.keystore_dir", "./keystore")
	v.SetDefault("custody.consolidation_threshold", 10.0)
	v.SetDefault("custody.min_gas_reserve", 0.05)

	// Execution defaults
	v.SetDefault("execution.gas_bump_factor", 1.25)
	v.SetDefault("execution.swap_deadline", "20m")
	v.SetDefault("execution.mine_timeout", "3m")
	v.SetDefault("execution.gas_limit_swap", 350000)
	v.SetDefault("execution.gas_limit_erc20", 100000)
	v.SetDefault("execution.demo_mode", false)
	v.SetDefault("execution.gas_price_ttl", "2s")

	// Engine defaults
	v.SetDefault("engine.watchdog_timeout", "5m")
	v.SetDefault("engine.state_file", "bot_config.json")

	// Control defaults
	v.SetDefault("control.listen_addr", ":8080")

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "flowsniper")
	v.SetDefault("telemetry.prometheus_port", 9090)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Chain.HTTPURL == "" {
		return fmt.Errorf("chain.http_url is required")
	}
	if c.Chain.ChainID == 0 {
		return fmt.Errorf("chain.chain_id is required")
	}
	if !common.IsHexAddress(c.Venues.V2RouterAddress) {
		return fmt.Errorf("invalid venues.v2_router_address: %s", c.Venues.V2RouterAddress)
	}
	if !common.IsHexAddress(c.Venues.V3QuoterAddress) {
		return fmt.Errorf("invalid venues.v3_quoter_address: %s", c.Venues.V3QuoterAddress)
	}
	if !common.IsHexAddress(c.Venues.V3RouterAddress) {
		return fmt.Errorf("invalid venues.v3_router_address: %s", c.Venues.V3RouterAddress)
	}
	if !common.IsHexAddress(c.Venues.MulticallAddress) {
		return fmt.Errorf("invalid venues.multicall_address: %s", c.Venues.MulticallAddress)
	}
	if len(c.Venues.FeeTiers) == 0 {
		return fmt.Errorf("venues.fee_tiers cannot be empty")
	}
	if c.Strategy.SlippageFraction < 0 || c.Strategy.SlippageFraction >= 1 {
		return fmt.Errorf("strategy.slippage_fraction must be in [0, 1): %f", c.Strategy.SlippageFraction)
	}
	if c.Strategy.TradeAmount <= 0 {
		return fmt.Errorf("strategy.trade_amount must be positive: %f", c.Strategy.TradeAmount)
	}
	if c.Strategy.MaxDrawdown >= 0 {
		return fmt.Errorf("strategy.max_drawdown must be negative: %f", c.Strategy.MaxDrawdown)
	}
	if c.Execution.GasBumpFactor < 1.0 || c.Execution.GasBumpFactor > 2.0 {
		return fmt.Errorf("execution.gas_bump_factor must be in [1, 2]: %f", c.Execution.GasBumpFactor)
	}
	if c.Custody.PoolAddress != "" && !common.IsHexAddress(c.Custody.PoolAddress) {
		return fmt.Errorf("invalid custody.pool_address: %s", c.Custody.PoolAddress)
	}
	return nil
}
