// Package evaluator is the Path Evaluator (spec.md §4.6): it walks each
// leg of a cycle against live order-book depth, rounds to the market's
// quantity tick, and folds in fees, slippage and volatility risk to
// decide whether the cycle qualifies as a profitable opportunity.
package evaluator

import (
	"time"

	"github.com/shopspring/decimal"

	"arbscan/internal/models"
	"arbscan/internal/orderbook"
	"arbscan/internal/volatility"
	"arbscan/pkg/utils"
)

// RiskConfig holds the thresholds evaluation is judged against
// (spec.md §6 "risk_model").
type RiskConfig struct {
	MinProfitMargin     decimal.Decimal
	VolRiskMultiplier   decimal.Decimal
	SlippageCoefficient decimal.Decimal
	StalenessBound      time.Duration
	MinLegFillRatio     decimal.Decimal
	RejectOnPartialFill bool
}

// Evaluator walks cycles against the order-book and volatility caches.
type Evaluator struct {
	books *orderbook.Cache
	vols  *volatility.Cache
	risk  RiskConfig
}

// New returns an Evaluator wired to the given caches and thresholds.
func New(books *orderbook.Cache, vols *volatility.Cache, risk RiskConfig) *Evaluator {
	return &Evaluator{books: books, vols: vols, risk: risk}
}

// Evaluate walks every leg of cycle starting from inputQty of
// inputAsset, and returns the resulting record. A record with
// Rejected == true still reports which leg and reason caused the
// rejection (spec.md §3 "Evaluation record" / §7 "rejection reasons are
// always recorded, never silently dropped").
func (e *Evaluator) Evaluate(cycle models.Cycle, inputAsset models.Asset, inputQty decimal.Decimal, now time.Time) models.EvaluationRecord {
	rec := models.EvaluationRecord{
		Cycle:      cycle,
		InputAsset: inputAsset,
		InputQty:   inputQty,
		Timestamp:  now,
		LimitedBy:  models.LimitNone,
	}

	legs := make([]models.LegResult, 0, cycle.Len())
	amount := inputQty
	worstFill := decimal.NewFromInt(1)
	maxSigma := decimal.Zero
	totalSlippageRatio := decimal.Zero

	for _, edge := range cycle.Edges {
		key := models.Key{ExchangeID: edge.Market.ExchangeID, Symbol: edge.Market.Symbol}
		snap := e.books.Get(key)
		if snap == nil {
			rec.Legs = legs
			return e.reject(rec, models.RejectMissingBook)
		}
		if snap.Crossed() {
			rec.Legs = legs
			return e.reject(rec, models.RejectCrossed)
		}
		if e.books.Quarantined(key) || snap.Age(now) > e.risk.StalenessBound {
			rec.Legs = legs
			return e.reject(rec, models.RejectStaleness)
		}

		leg, limitedBy := walkLeg(edge, snap, amount)
		legs = append(legs, leg)
		if limitedBy == models.LimitDepth {
			rec.LimitedBy = models.LimitDepth
		} else if limitedBy == models.LimitMinNotional && rec.LimitedBy == models.LimitNone {
			rec.LimitedBy = models.LimitMinNotional
		}
		if leg.ConsumedNotional.LessThan(edge.Market.MinNotional) {
			rec.Legs = legs
			return e.reject(rec, models.RejectNotional)
		}

		if leg.FillRatio.LessThan(worstFill) {
			worstFill = leg.FillRatio
		}
		if leg.TopOfBookNotional.IsPositive() {
			ratio := leg.ConsumedNotional.Div(leg.TopOfBookNotional)
			totalSlippageRatio = totalSlippageRatio.Add(ratio)
		}

		vol := e.vols.Get(edge.Market.Symbol)
		if vol.Sigma.GreaterThan(maxSigma) {
			maxSigma = vol.Sigma
		}

		amount = leg.Output
		if amount.IsZero() {
			rec.Legs = legs
			return e.reject(rec, models.RejectFill)
		}
	}

	rec.Legs = legs
	rec.OutputQty = amount
	rec.WorstLegFillRatio = worstFill

	if inputQty.IsPositive() {
		rec.GrossReturn = amount.Div(inputQty)
	}

	slippageAdj := e.risk.SlippageCoefficient.Mul(totalSlippageRatio)
	riskAdj := e.risk.VolRiskMultiplier.Mul(maxSigma)
	// Fee is already folded into each leg's output via (1 - taker_fee);
	// all three return figures stay on the same ratio scale (1.0 == flat)
	// so they coincide under zero fee/slippage/vol (spec.md §8 property 6).
	rec.FeeAdjustedReturn = rec.GrossReturn
	rec.RiskAdjustedReturn = rec.FeeAdjustedReturn.Sub(slippageAdj).Sub(riskAdj)

	if e.risk.RejectOnPartialFill && worstFill.LessThan(e.risk.MinLegFillRatio) {
		return e.reject(rec, models.RejectFill)
	}
	if rec.RiskAdjustedReturn.Sub(decimal.NewFromInt(1)).LessThan(e.risk.MinProfitMargin) {
		return e.reject(rec, models.RejectThreshold)
	}

	rec.Rejected = false
	return rec
}

func (e *Evaluator) reject(rec models.EvaluationRecord, reason models.RejectionReason) models.EvaluationRecord {
	rec.Rejected = true
	rec.RejectionReason = reason
	return rec
}

// walkLeg consumes order-book depth for one edge and returns the leg's
// result plus what limited it, if anything (spec.md §4.6 "depth walk").
func walkLeg(edge models.Edge, snap *models.Snapshot, input decimal.Decimal) (models.LegResult, models.LimitingFactor) {
	leg := models.LegResult{Edge: edge, Input: input}

	var levels []models.PriceLevel
	if edge.Side == models.SideBuy {
		levels = snap.Asks
	} else {
		levels = snap.Bids
	}
	if len(levels) > 0 {
		leg.TopOfBookNotional = levels[0].Price.Mul(levels[0].Qty)
	}

	if edge.Side == models.SideBuy {
		return walkBuy(leg, edge, levels, input)
	}
	return walkSell(leg, edge, levels, input)
}

// walkBuy spends `input` units of quote asset lifting asks, producing
// base asset output.
func walkBuy(leg models.LegResult, edge models.Edge, asks []models.PriceLevel, quoteIn decimal.Decimal) (models.LegResult, models.LimitingFactor) {
	remainingQuote := quoteIn
	baseFilled := decimal.Zero
	fills := make([]utils.LevelFill, 0, len(asks))

	for _, lv := range asks {
		if remainingQuote.LessThanOrEqual(decimal.Zero) {
			break
		}
		levelNotional := lv.Price.Mul(lv.Qty)
		take := decimal.Min(levelNotional, remainingQuote)
		takeQty := take.Div(lv.Price)

		fills = append(fills, utils.LevelFill{Price: lv.Price, Qty: takeQty})
		baseFilled = baseFilled.Add(takeQty)
		remainingQuote = remainingQuote.Sub(take)
		leg.ConsumedNotional = leg.ConsumedNotional.Add(take)
	}

	baseFilled = utils.RoundToTick(baseFilled, edge.Market.QtyTick)
	leg.VWAP = utils.WeightedAveragePrice(fills)
	leg.GrossOutput = baseFilled
	leg.Output = baseFilled.Mul(decimal.NewFromInt(1).Sub(edge.Market.TakerFee))

	if quoteIn.IsPositive() {
		leg.FillRatio = quoteIn.Sub(remainingQuote).Div(quoteIn)
	}

	limitedBy := models.LimitNone
	if remainingQuote.IsPositive() {
		leg.DepthExhausted = true
		limitedBy = models.LimitDepth
	}
	if leg.ConsumedNotional.LessThan(edge.Market.MinNotional) {
		if limitedBy == models.LimitNone {
			limitedBy = models.LimitMinNotional
		}
	}
	return leg, limitedBy
}

// walkSell spends `input` units of base asset hitting bids, producing
// quote asset output.
func walkSell(leg models.LegResult, edge models.Edge, bids []models.PriceLevel, baseIn decimal.Decimal) (models.LegResult, models.LimitingFactor) {
	remainingBase := baseIn
	quoteFilled := decimal.Zero
	fills := make([]utils.LevelFill, 0, len(bids))

	for _, lv := range bids {
		if remainingBase.LessThanOrEqual(decimal.Zero) {
			break
		}
		take := decimal.Min(lv.Qty, remainingBase)

		fills = append(fills, utils.LevelFill{Price: lv.Price, Qty: take})
		quoteFilled = quoteFilled.Add(take.Mul(lv.Price))
		remainingBase = remainingBase.Sub(take)
		leg.ConsumedNotional = leg.ConsumedNotional.Add(take.Mul(lv.Price))
	}

	quoteFilled = utils.RoundToTick(quoteFilled, edge.Market.PriceTick)
	leg.VWAP = utils.WeightedAveragePrice(fills)
	leg.GrossOutput = quoteFilled
	leg.Output = quoteFilled.Mul(decimal.NewFromInt(1).Sub(edge.Market.TakerFee))

	if baseIn.IsPositive() {
		leg.FillRatio = baseIn.Sub(remainingBase).Div(baseIn)
	}

	limitedBy := models.LimitNone
	if remainingBase.IsPositive() {
		leg.DepthExhausted = true
		limitedBy = models.LimitDepth
	}
	if leg.ConsumedNotional.LessThan(edge.Market.MinNotional) {
		if limitedBy == models.LimitNone {
			limitedBy = models.LimitMinNotional
		}
	}
	return leg, limitedBy
}
