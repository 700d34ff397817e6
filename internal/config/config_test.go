package config

import (
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			MinLength:   2,
			MaxLength:   4,
			StartAssets: []string{"USDT"},
		},
		RiskModel: RiskModelConfig{
			StalenessBoundMs: 1000,
			MinLegFillRatio:  0.9,
		},
		Execution: ExecutionConfig{
			TickInterval:         100 * time.Millisecond,
			MaxConcurrentPaths:   8,
			OrderbookDepthLevels: 10,
			InputNotional:        1000,
		},
	}
}

func TestValidate_AcceptsValidConfig(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("expected valid config, got: %v", err)
	}
}

func TestValidate_RejectsMinLengthBelowTwo(t *testing.T) {
	c := validConfig()
	c.Paths.MinLength = 1
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for min_length < 2")
	}
}

func TestValidate_RejectsMaxLessThanMin(t *testing.T) {
	c := validConfig()
	c.Paths.MaxLength = 1
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for max_length < min_length")
	}
}

func TestValidate_RejectsEmptyStartAssets(t *testing.T) {
	c := validConfig()
	c.Paths.StartAssets = nil
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for empty start_assets")
	}
}

func TestValidate_RejectsNonPositiveStalenessBound(t *testing.T) {
	c := validConfig()
	c.RiskModel.StalenessBoundMs = 0
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for staleness_bound_ms <= 0")
	}
}

func TestValidate_RejectsFillRatioOutOfRange(t *testing.T) {
	c := validConfig()
	c.RiskModel.MinLegFillRatio = 1.5
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for min_leg_fill_ratio > 1")
	}
}

func TestValidate_RejectsNonPositiveTickInterval(t *testing.T) {
	c := validConfig()
	c.Execution.TickInterval = 0
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for tick_interval <= 0")
	}
}

func TestGetEnvAsExchanges_ParsesTriplets(t *testing.T) {
	t.Setenv("FEED_EXCHANGES", "binance|wss://a|https://b, okx|wss://c|https://d")

	got := getEnvAsExchanges("FEED_EXCHANGES")
	if len(got) != 2 {
		t.Fatalf("expected 2 exchanges, got %d", len(got))
	}
	if got[0].ExchangeID != "binance" || got[0].WSURL != "wss://a" || got[0].MetadataURL != "https://b" {
		t.Fatalf("unexpected first entry: %+v", got[0])
	}
	if got[1].ExchangeID != "okx" {
		t.Fatalf("unexpected second entry: %+v", got[1])
	}
}

func TestGetEnvAsExchanges_SkipsMalformedEntries(t *testing.T) {
	t.Setenv("FEED_EXCHANGES", "binance|wss://a|https://b, garbage, |wss://x|https://y")

	got := getEnvAsExchanges("FEED_EXCHANGES")
	if len(got) != 1 {
		t.Fatalf("expected 1 well-formed exchange, got %d: %+v", len(got), got)
	}
}

func TestGetEnvAsExchanges_EmptyReturnsNil(t *testing.T) {
	if got := getEnvAsExchanges("FEED_EXCHANGES_UNSET_KEY"); got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}
