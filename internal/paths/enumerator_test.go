package paths

import (
	"testing"

	"github.com/shopspring/decimal"

	"arbscan/internal/graph"
	"arbscan/internal/models"
	"arbscan/internal/registry"
)

func register(t *testing.T, reg *registry.Registry, exchange, symbol string, base, quote models.Asset) {
	t.Helper()
	m := models.Market{
		ExchangeID:  exchange,
		Symbol:      symbol,
		Base:        base,
		Quote:       quote,
		TakerFee:    decimal.NewFromFloat(0.001),
		MinNotional: decimal.NewFromInt(10),
		PriceTick:   decimal.NewFromFloat(0.01),
		QtyTick:     decimal.NewFromFloat(0.0001),
	}
	if err := reg.Register(m); err != nil {
		t.Fatalf("register: %v", err)
	}
}

func triangularGraph(t *testing.T) *graph.Graph {
	reg := registry.New()
	register(t, reg, "binance", "BTCUSDT", "BTC", "USDT")
	register(t, reg, "binance", "ETHUSDT", "ETH", "USDT")
	register(t, reg, "binance", "ETHBTC", "ETH", "BTC")
	return graph.Build(reg)
}

func TestEnumerate_FindsTriangularCycle(t *testing.T) {
	g := triangularGraph(t)
	opts := Options{
		MinLength:   3,
		MaxLength:   3,
		StartAssets: []models.Asset{"USDT"},
	}

	var found []models.Cycle
	Enumerate(g, opts, func(c models.Cycle) bool {
		found = append(found, c)
		return true
	})

	if len(found) == 0 {
		t.Fatal("expected at least one triangular cycle")
	}
	for _, c := range found {
		if !c.WellFormed() {
			t.Fatalf("cycle not well-formed: %+v", c)
		}
		if c.Len() != 3 {
			t.Fatalf("expected length-3 cycle, got %d", c.Len())
		}
		if !c.Root().Equal("USDT") {
			t.Fatalf("expected cycle rooted at USDT, got %s", c.Root())
		}
	}
}

func TestEnumerate_RespectsMaxLength(t *testing.T) {
	g := triangularGraph(t)
	opts := Options{
		MinLength:   2,
		MaxLength:   2,
		StartAssets: []models.Asset{"USDT"},
	}

	var found []models.Cycle
	Enumerate(g, opts, func(c models.Cycle) bool {
		found = append(found, c)
		return true
	})
	if len(found) != 0 {
		t.Fatalf("expected no 2-length cycles in a pure triangle, got %d", len(found))
	}
}

func TestEnumerate_DeduplicatesRotations(t *testing.T) {
	g := triangularGraph(t)
	opts := Options{
		MinLength:   3,
		MaxLength:   3,
		StartAssets: []models.Asset{"USDT", "BTC", "ETH"},
	}

	keys := make(map[string]int)
	Enumerate(g, opts, func(c models.Cycle) bool {
		keys[c.CanonicalKey()]++
		return true
	})
	for key, count := range keys {
		if count != 1 {
			t.Fatalf("cycle %s yielded %d times, expected 1", key, count)
		}
	}
}

func TestEnumerate_StopsOnYieldFalse(t *testing.T) {
	g := triangularGraph(t)
	opts := Options{
		MinLength:   3,
		MaxLength:   3,
		StartAssets: []models.Asset{"USDT", "BTC", "ETH"},
	}

	calls := 0
	Enumerate(g, opts, func(c models.Cycle) bool {
		calls++
		return false
	})
	if calls != 1 {
		t.Fatalf("expected enumeration to stop after first yield, got %d calls", calls)
	}
}
