package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Market is an immutable-after-registration descriptor for one tradeable
// symbol on one exchange (spec.md §3 "Market descriptor").
type Market struct {
	ExchangeID     string
	Symbol         string
	Base           Asset
	Quote          Asset
	TakerFee       decimal.Decimal // fraction, e.g. 0.001 for 10bps
	MinNotional    decimal.Decimal // in quote asset
	PriceTick      decimal.Decimal
	QtyTick        decimal.Decimal
}

// Key uniquely identifies a market by (exchange, symbol).
type Key struct {
	ExchangeID string
	Symbol     string
}

// Key returns the market's (exchange, symbol) identity.
func (m Market) Key() Key {
	return Key{ExchangeID: m.ExchangeID, Symbol: m.Symbol}
}

// Validate enforces §3's "A market is valid iff base != quote, fee in
// [0,1), ticks > 0".
func (m Market) Validate() error {
	if m.ExchangeID == "" {
		return fmt.Errorf("market %s: exchange_id is required", m.Symbol)
	}
	if m.Symbol == "" {
		return fmt.Errorf("market on %s: symbol is required", m.ExchangeID)
	}
	if m.Base.Equal(m.Quote) {
		return fmt.Errorf("market %s/%s: base and quote must differ", m.ExchangeID, m.Symbol)
	}
	if m.TakerFee.IsNegative() || m.TakerFee.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("market %s/%s: taker_fee %s out of [0,1)", m.ExchangeID, m.Symbol, m.TakerFee)
	}
	if m.PriceTick.Sign() <= 0 {
		return fmt.Errorf("market %s/%s: price_tick must be > 0", m.ExchangeID, m.Symbol)
	}
	if m.QtyTick.Sign() <= 0 {
		return fmt.Errorf("market %s/%s: qty_tick must be > 0", m.ExchangeID, m.Symbol)
	}
	return nil
}
