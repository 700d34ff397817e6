package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LimitingFactor names why a cycle's realized output fell short of the
// naive (fee-free, full-fill) estimate, or that nothing limited it
// (spec.md §3 "Evaluation record").
type LimitingFactor string

const (
	LimitNone        LimitingFactor = "none"
	LimitDepth       LimitingFactor = "depth"
	LimitMinNotional LimitingFactor = "min_notional"
)

// RejectionReason names why a cycle did not qualify, matching the
// "rejected_*" terminal states of §4.6's cycle aggregate state machine.
type RejectionReason string

const (
	RejectNone        RejectionReason = ""
	RejectThreshold   RejectionReason = "rejected_threshold"
	RejectNotional    RejectionReason = "rejected_notional"
	RejectStaleness   RejectionReason = "rejected_staleness"
	RejectFill        RejectionReason = "rejected_fill"
	RejectMissingBook RejectionReason = "rejected_missing_book"
	RejectCrossed     RejectionReason = "rejected_crossed_book"
)

// LegResult is the outcome of walking one edge's order-book depth for a
// given input amount.
type LegResult struct {
	Edge            Edge
	Input           decimal.Decimal
	Output          decimal.Decimal // after fee
	GrossOutput     decimal.Decimal // before fee
	FillRatio       decimal.Decimal // (input-remaining)/input
	VWAP            decimal.Decimal
	TopOfBookNotional decimal.Decimal
	ConsumedNotional  decimal.Decimal
	DepthExhausted  bool
}

// EvaluationRecord is the outcome of evaluating one cycle against a live
// snapshot set (spec.md §3 "Evaluation record"). Produced and discarded
// per scan; only records meeting threshold are emitted downstream.
type EvaluationRecord struct {
	Cycle               Cycle
	InputAsset          Asset
	InputQty            decimal.Decimal
	OutputQty           decimal.Decimal
	GrossReturn         decimal.Decimal // output/input
	FeeAdjustedReturn   decimal.Decimal
	RiskAdjustedReturn  decimal.Decimal
	WorstLegFillRatio   decimal.Decimal
	LimitedBy           LimitingFactor
	Legs                []LegResult
	Rejected            bool
	RejectionReason     RejectionReason
	Timestamp           time.Time
}

// Qualifies reports whether the record cleared its configured threshold
// and is therefore eligible for the downstream sink.
func (r EvaluationRecord) Qualifies() bool {
	return !r.Rejected
}

// VolatilityEntry is a per-symbol recent-return volatility estimate
// (spec.md §3 "Volatility entry").
type VolatilityEntry struct {
	Symbol       string
	Sigma        decimal.Decimal
	WindowSamples int
	LastUpdated  time.Time
}
