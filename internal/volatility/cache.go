// Package volatility is the Volatility Cache (spec.md §4.3): a small,
// read-mostly table of the latest per-symbol volatility estimate used by
// the evaluator's risk adjustment. Producers (external to this module)
// update it periodically; the evaluator reads it on every leg.
package volatility

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"arbscan/internal/models"
)

// Cache is a concurrency-safe symbol -> volatility table.
type Cache struct {
	mu            sync.RWMutex
	entries       map[string]models.VolatilityEntry
	fallbackSigma decimal.Decimal
}

// New returns an empty cache. fallbackSigma is returned by Get when a
// symbol has no entry yet, so the evaluator never divides by a missing
// risk figure (spec.md §4.6 "unknown volatility falls back to a
// configured default, never zero").
func New(fallbackSigma decimal.Decimal) *Cache {
	return &Cache{
		entries:       make(map[string]models.VolatilityEntry),
		fallbackSigma: fallbackSigma,
	}
}

// Update records the latest volatility estimate for a symbol.
func (c *Cache) Update(entry models.VolatilityEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[entry.Symbol] = entry
}

// Get returns the volatility entry for symbol, or a fallback entry with
// WindowSamples == 0 if none has been recorded.
func (c *Cache) Get(symbol string) models.VolatilityEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if e, ok := c.entries[symbol]; ok {
		return e
	}
	return models.VolatilityEntry{
		Symbol:      symbol,
		Sigma:       c.fallbackSigma,
		LastUpdated: time.Time{},
	}
}
