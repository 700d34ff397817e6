package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceLevel is one (price, qty) rung of an order-book side.
type PriceLevel struct {
	Price decimal.Decimal
	Qty   decimal.Decimal
}

// Snapshot is a consistent, point-in-time view of one (exchange, symbol)
// order book (spec.md §3 "Order-book snapshot"). Bids are sorted
// descending by price, asks ascending.
type Snapshot struct {
	ExchangeID string
	Symbol     string
	Bids       []PriceLevel
	Asks       []PriceLevel
	SequenceNo uint64
	UpdatedAt  time.Time
}

// BestBid returns the top-of-book bid, or a zero level if the book is
// empty on that side.
func (s Snapshot) BestBid() PriceLevel {
	if len(s.Bids) == 0 {
		return PriceLevel{}
	}
	return s.Bids[0]
}

// BestAsk returns the top-of-book ask, or a zero level if the book is
// empty on that side.
func (s Snapshot) BestAsk() PriceLevel {
	if len(s.Asks) == 0 {
		return PriceLevel{}
	}
	return s.Asks[0]
}

// Crossed reports whether the top of book is crossed (best_bid >=
// best_ask), which per §3 marks the entry stale.
func (s Snapshot) Crossed() bool {
	bid, ask := s.BestBid(), s.BestAsk()
	if bid.Price.IsZero() || ask.Price.IsZero() {
		return false
	}
	return bid.Price.GreaterThanOrEqual(ask.Price)
}

// Age returns how long ago this snapshot was produced, relative to now.
func (s Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.UpdatedAt)
}

// Delta is one incremental order-book update (spec.md §6 "Inbound —
// order-book stream"). Qty == 0 means "remove this level".
type Delta struct {
	ExchangeID string
	Symbol     string
	SequenceNo uint64
	Timestamp  time.Time
	Side       DeltaSide
	Price      decimal.Decimal
	Qty        decimal.Decimal
}

// DeltaSide is which side of the book a Delta applies to.
type DeltaSide string

const (
	DeltaBid DeltaSide = "bid"
	DeltaAsk DeltaSide = "ask"
)
