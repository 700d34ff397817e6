// Package config loads and validates the scanner's configuration surface
// (spec.md §6). All validation happens once at startup: Load returns an
// error for a bad config rather than letting an invariant violation show
// up mid-run (spec.md §7 "Configuration errors... fatal at startup").
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full validated configuration surface.
type Config struct {
	Paths     PathsConfig
	RiskModel RiskModelConfig
	Execution ExecutionConfig
	Feed      FeedConfig
	Sink      SinkConfig
	Logging   LoggingConfig
}

// PathsConfig controls the enumerator (spec.md §4.5, §6).
type PathsConfig struct {
	MinLength           int
	MaxLength           int
	StartAssets         []string
	AllowRevisitNodes   bool
	AllowSameMarketTwice bool
	AllowCrossExchange  bool
}

// RiskModelConfig controls the evaluator's thresholds (spec.md §4.6, §6).
type RiskModelConfig struct {
	MinProfitMargin    float64
	VolRiskMultiplier  float64
	SlippageCoefficient float64
	StalenessBoundMs   int
	MinLegFillRatio    float64
	RejectOnPartialFill bool // if true, a fill_ratio < MinLegFillRatio rejects instead of continuing with the partial output
	FallbackSigma      float64
}

// ExecutionConfig controls the scanner loop (spec.md §4.7, §6).
type ExecutionConfig struct {
	TickInterval        time.Duration
	MaxConcurrentPaths  int
	OrderbookDepthLevels int
	InputNotional       float64
}

// FeedConfig controls the streaming ingress tasks (SPEC_FULL.md §11.2).
type FeedConfig struct {
	ReconnectInitialDelay time.Duration
	ReconnectMaxDelay     time.Duration
	ReconnectMaxRetries   int
	PingInterval          time.Duration
	ReadTimeout           time.Duration
	MetadataFetchRate     float64 // requests/sec across all exchanges
	Exchanges             []ExchangeFeedConfig
}

// ExchangeFeedConfig names one exchange's WS stream and metadata-snapshot
// endpoints (SPEC_FULL.md §10.3 "WS endpoints per exchange").
type ExchangeFeedConfig struct {
	ExchangeID  string
	WSURL       string
	MetadataURL string
}

// SinkConfig controls the opportunity sinks (SPEC_FULL.md §11.4).
type SinkConfig struct {
	PostgresDSN      string // empty disables the postgres audit sink
	BroadcastBufSize int    // queue size of the postgres sink, which drops its oldest record when full
	APIAddr          string // HTTP/WS listen address, e.g. ":8090"
}

// LoggingConfig controls pkg/utils.InitLogger (SPEC_FULL.md §10.1).
type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads configuration from the environment and validates it. Any
// invalid bound is a fatal startup error (spec.md §7), never a panic.
func Load() (*Config, error) {
	cfg := &Config{
		Paths: PathsConfig{
			MinLength:            getEnvAsInt("PATHS_MIN_LENGTH", 2),
			MaxLength:            getEnvAsInt("PATHS_MAX_LENGTH", 4),
			StartAssets:          getEnvAsList("PATHS_START_ASSETS", []string{"USDT", "USDC", "USD"}),
			AllowRevisitNodes:    getEnvAsBool("PATHS_ALLOW_REVISIT_NODES", false),
			AllowSameMarketTwice: getEnvAsBool("PATHS_ALLOW_SAME_MARKET_TWICE", false),
			AllowCrossExchange:   getEnvAsBool("PATHS_ALLOW_CROSS_EXCHANGE", false),
		},
		RiskModel: RiskModelConfig{
			MinProfitMargin:     getEnvAsFloat("RISK_MIN_PROFIT_MARGIN", 0.001),
			VolRiskMultiplier:   getEnvAsFloat("RISK_VOL_RISK_MULTIPLIER", 0.1),
			SlippageCoefficient: getEnvAsFloat("RISK_SLIPPAGE_COEFFICIENT", 0.1),
			StalenessBoundMs:    getEnvAsInt("RISK_STALENESS_BOUND_MS", 1000),
			MinLegFillRatio:     getEnvAsFloat("RISK_MIN_LEG_FILL_RATIO", 0.95),
			RejectOnPartialFill: getEnvAsBool("RISK_REJECT_ON_PARTIAL_FILL", false),
			FallbackSigma:       getEnvAsFloat("RISK_FALLBACK_SIGMA", 0.01),
		},
		Execution: ExecutionConfig{
			TickInterval:         getEnvAsDuration("EXECUTION_TICK_INTERVAL", 100*time.Millisecond),
			MaxConcurrentPaths:   getEnvAsInt("EXECUTION_MAX_CONCURRENT_PATHS", 32),
			OrderbookDepthLevels: getEnvAsInt("EXECUTION_ORDERBOOK_DEPTH_LEVELS", 25),
			InputNotional:        getEnvAsFloat("EXECUTION_INPUT_NOTIONAL", 1000),
		},
		Feed: FeedConfig{
			ReconnectInitialDelay: getEnvAsDuration("FEED_RECONNECT_INITIAL_DELAY", 2*time.Second),
			ReconnectMaxDelay:     getEnvAsDuration("FEED_RECONNECT_MAX_DELAY", 16*time.Second),
			ReconnectMaxRetries:   getEnvAsInt("FEED_RECONNECT_MAX_RETRIES", 0),
			PingInterval:          getEnvAsDuration("FEED_PING_INTERVAL", 15*time.Second),
			ReadTimeout:           getEnvAsDuration("FEED_READ_TIMEOUT", 30*time.Second),
			MetadataFetchRate:     getEnvAsFloat("FEED_METADATA_FETCH_RATE", 5),
			Exchanges:             getEnvAsExchanges("FEED_EXCHANGES"),
		},
		Sink: SinkConfig{
			PostgresDSN:      getEnv("SINK_POSTGRES_DSN", ""),
			BroadcastBufSize: getEnvAsInt("SINK_BROADCAST_BUF_SIZE", 256),
			APIAddr:          getEnv("SINK_API_ADDR", ":8090"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every bound named in spec.md §6/§7. It is exported so
// tests and cmd/scanner can validate a config built by hand (not just one
// loaded from the environment).
func (c *Config) Validate() error {
	if c.Paths.MinLength < 2 {
		return fmt.Errorf("paths.min_length must be >= 2, got %d", c.Paths.MinLength)
	}
	if c.Paths.MaxLength < c.Paths.MinLength {
		return fmt.Errorf("paths.max_length (%d) must be >= paths.min_length (%d)", c.Paths.MaxLength, c.Paths.MinLength)
	}
	if len(c.Paths.StartAssets) == 0 {
		return fmt.Errorf("paths.start_assets must not be empty")
	}
	if c.RiskModel.StalenessBoundMs <= 0 {
		return fmt.Errorf("risk_model.staleness_bound_ms must be > 0, got %d", c.RiskModel.StalenessBoundMs)
	}
	if c.RiskModel.MinLegFillRatio < 0 || c.RiskModel.MinLegFillRatio > 1 {
		return fmt.Errorf("risk_model.min_leg_fill_ratio must be in [0,1], got %v", c.RiskModel.MinLegFillRatio)
	}
	if c.Execution.TickInterval <= 0 {
		return fmt.Errorf("execution.tick_interval_ms must be > 0")
	}
	if c.Execution.MaxConcurrentPaths <= 0 {
		return fmt.Errorf("execution.max_concurrent_paths must be > 0, got %d", c.Execution.MaxConcurrentPaths)
	}
	if c.Execution.OrderbookDepthLevels <= 0 {
		return fmt.Errorf("execution.orderbook_depth_levels must be > 0, got %d", c.Execution.OrderbookDepthLevels)
	}
	if c.Execution.InputNotional <= 0 {
		return fmt.Errorf("execution.input_notional must be > 0")
	}
	return nil
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsExchanges parses FEED_EXCHANGES as a comma-separated list of
// "exchangeID|wsURL|metadataURL" triplets, e.g.
// "binance|wss://stream.binance.com/ws|https://api.binance.com/api/v3/exchangeInfo".
// An empty or malformed entry is skipped rather than failing Load — an
// operator running with no exchanges wired yet still gets a usable config.
func getEnvAsExchanges(key string) []ExchangeFeedConfig {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return nil
	}
	var out []ExchangeFeedConfig
	for _, entry := range strings.Split(valueStr, ",") {
		parts := strings.Split(strings.TrimSpace(entry), "|")
		if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
			continue
		}
		out = append(out, ExchangeFeedConfig{ExchangeID: parts[0], WSURL: parts[1], MetadataURL: parts[2]})
	}
	return out
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
