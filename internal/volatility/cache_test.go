package volatility

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"arbscan/internal/models"
)

func TestGet_FallsBackWhenUnknown(t *testing.T) {
	c := New(decimal.NewFromFloat(0.02))
	entry := c.Get("BTCUSDT")
	if !entry.Sigma.Equal(decimal.NewFromFloat(0.02)) {
		t.Fatalf("expected fallback sigma, got %s", entry.Sigma)
	}
	if entry.WindowSamples != 0 {
		t.Fatal("expected zero window samples for fallback entry")
	}
}

func TestUpdateAndGet(t *testing.T) {
	c := New(decimal.Zero)
	c.Update(models.VolatilityEntry{
		Symbol:        "BTCUSDT",
		Sigma:         decimal.NewFromFloat(0.015),
		WindowSamples: 50,
		LastUpdated:   time.Now(),
	})

	entry := c.Get("BTCUSDT")
	if !entry.Sigma.Equal(decimal.NewFromFloat(0.015)) {
		t.Fatalf("expected recorded sigma, got %s", entry.Sigma)
	}
}
