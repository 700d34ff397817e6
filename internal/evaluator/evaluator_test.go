package evaluator

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"arbscan/internal/models"
	"arbscan/internal/orderbook"
	"arbscan/internal/volatility"
)

func dec(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func market(exchange, symbol string, base, quote models.Asset, fee string) *models.Market {
	return &models.Market{
		ExchangeID:  exchange,
		Symbol:      symbol,
		Base:        base,
		Quote:       quote,
		TakerFee:    dec(fee),
		MinNotional: dec("1"),
		PriceTick:   dec("0.01"),
		QtyTick:     dec("0.00001"),
	}
}

func putSnapshot(books *orderbook.Cache, exchange, symbol string, bids, asks []models.PriceLevel, now time.Time) {
	books.Put(&models.Snapshot{
		ExchangeID: exchange,
		Symbol:     symbol,
		Bids:       bids,
		Asks:       asks,
		SequenceNo: 1,
		UpdatedAt:  now,
	})
}

func lvl(price, qty string) models.PriceLevel {
	return models.PriceLevel{Price: dec(price), Qty: dec(qty)}
}

func defaultRisk() RiskConfig {
	return RiskConfig{
		MinProfitMargin:     dec("0.001"),
		VolRiskMultiplier:   dec("0"),
		SlippageCoefficient: dec("0"),
		StalenessBound:      time.Second,
		MinLegFillRatio:     dec("0.9"),
	}
}

func TestEvaluate_FlatBookNoProfit(t *testing.T) {
	now := time.Now()
	books := orderbook.New(4)
	vols := volatility.New(decimal.Zero)

	m := market("binance", "BTCUSDT", "BTC", "USDT", "0.001")
	putSnapshot(books, "binance", "BTCUSDT", []models.PriceLevel{lvl("99.9", "10")}, []models.PriceLevel{lvl("100", "10")}, now)

	buy, sell := models.NewEdges(m)
	cycle := models.Cycle{Edges: []models.Edge{buy, sell}}

	e := New(books, vols, defaultRisk())
	rec := e.Evaluate(cycle, "USDT", dec("100"), now)

	if !rec.Rejected {
		t.Fatalf("expected rejection on a flat (fee-losing) book, got %+v", rec)
	}
	if rec.RejectionReason != models.RejectThreshold {
		t.Fatalf("expected threshold rejection, got %s", rec.RejectionReason)
	}
}

func TestEvaluate_StaleSnapshotRejected(t *testing.T) {
	now := time.Now()
	books := orderbook.New(4)
	vols := volatility.New(decimal.Zero)

	m := market("binance", "BTCUSDT", "BTC", "USDT", "0.001")
	putSnapshot(books, "binance", "BTCUSDT", []models.PriceLevel{lvl("99", "10")}, []models.PriceLevel{lvl("100", "10")}, now.Add(-5*time.Second))

	buy, _ := models.NewEdges(m)
	cycle := models.Cycle{Edges: []models.Edge{buy}}

	e := New(books, vols, defaultRisk())
	rec := e.Evaluate(cycle, "USDT", dec("100"), now)

	if !rec.Rejected || rec.RejectionReason != models.RejectStaleness {
		t.Fatalf("expected staleness rejection, got %+v", rec)
	}
}

func TestEvaluate_QuarantinedBookStaysRejectedAfterCleanUpdate(t *testing.T) {
	now := time.Now()
	books := orderbook.New(4)
	vols := volatility.New(decimal.Zero)

	m := market("binance", "BTCUSDT", "BTC", "USDT", "0.001")
	// crossed on arrival: Put quarantines the symbol permanently.
	putSnapshot(books, "binance", "BTCUSDT", []models.PriceLevel{lvl("102", "10")}, []models.PriceLevel{lvl("100", "10")}, now)
	// a later, uncrossed snapshot does not lift the quarantine.
	putSnapshot(books, "binance", "BTCUSDT", []models.PriceLevel{lvl("99", "10")}, []models.PriceLevel{lvl("100", "10")}, now)

	buy, _ := models.NewEdges(m)
	cycle := models.Cycle{Edges: []models.Edge{buy}}

	e := New(books, vols, defaultRisk())
	rec := e.Evaluate(cycle, "USDT", dec("100"), now)

	if !rec.Rejected || rec.RejectionReason != models.RejectStaleness {
		t.Fatalf("expected quarantined book to keep rejecting as staleness, got %+v", rec)
	}
}

func TestEvaluate_CrossedBookRejected(t *testing.T) {
	now := time.Now()
	books := orderbook.New(4)
	vols := volatility.New(decimal.Zero)

	m := market("binance", "BTCUSDT", "BTC", "USDT", "0.001")
	putSnapshot(books, "binance", "BTCUSDT", []models.PriceLevel{lvl("101", "10")}, []models.PriceLevel{lvl("100", "10")}, now)

	buy, _ := models.NewEdges(m)
	cycle := models.Cycle{Edges: []models.Edge{buy}}

	e := New(books, vols, defaultRisk())
	rec := e.Evaluate(cycle, "USDT", dec("100"), now)

	if !rec.Rejected || rec.RejectionReason != models.RejectCrossed {
		t.Fatalf("expected crossed-book rejection, got %+v", rec)
	}
}

func TestEvaluate_DepthLimitedFill(t *testing.T) {
	now := time.Now()
	books := orderbook.New(4)
	vols := volatility.New(decimal.Zero)

	m := market("binance", "BTCUSDT", "BTC", "USDT", "0")
	// only 1 BTC worth of asks at 100, but we try to spend 1000 USDT
	putSnapshot(books, "binance", "BTCUSDT", nil, []models.PriceLevel{lvl("100", "1")}, now)

	buy, _ := models.NewEdges(m)
	cycle := models.Cycle{Edges: []models.Edge{buy}}

	e := New(books, vols, defaultRisk())
	rec := e.Evaluate(cycle, "USDT", dec("1000"), now)

	if len(rec.Legs) != 1 {
		t.Fatalf("expected 1 leg result, got %d", len(rec.Legs))
	}
	if !rec.Legs[0].DepthExhausted {
		t.Fatal("expected depth exhaustion flag set")
	}
	if rec.LimitedBy != models.LimitDepth {
		t.Fatalf("expected LimitDepth, got %s", rec.LimitedBy)
	}
}

func TestEvaluate_MissingBookRejected(t *testing.T) {
	now := time.Now()
	books := orderbook.New(4)
	vols := volatility.New(decimal.Zero)

	m := market("binance", "BTCUSDT", "BTC", "USDT", "0.001")
	buy, _ := models.NewEdges(m)
	cycle := models.Cycle{Edges: []models.Edge{buy}}

	e := New(books, vols, defaultRisk())
	rec := e.Evaluate(cycle, "USDT", dec("100"), now)

	if !rec.Rejected || rec.RejectionReason != models.RejectMissingBook {
		t.Fatalf("expected missing-book rejection, got %+v", rec)
	}
}

func TestEvaluate_SubMinNotionalRejected(t *testing.T) {
	now := time.Now()
	books := orderbook.New(4)
	vols := volatility.New(decimal.Zero)

	m := &models.Market{
		ExchangeID:  "binance",
		Symbol:      "BTCUSDT",
		Base:        "BTC",
		Quote:       "USDT",
		TakerFee:    dec("0"),
		MinNotional: dec("1000"),
		PriceTick:   dec("0.01"),
		QtyTick:     dec("0.00001"),
	}
	putSnapshot(books, "binance", "BTCUSDT", nil, []models.PriceLevel{lvl("100", "100")}, now)

	buy, _ := models.NewEdges(m)
	cycle := models.Cycle{Edges: []models.Edge{buy}}

	e := New(books, vols, defaultRisk())
	rec := e.Evaluate(cycle, "USDT", dec("50"), now)

	if !rec.Rejected || rec.RejectionReason != models.RejectNotional {
		t.Fatalf("expected notional rejection, got %+v", rec)
	}
}

func TestEvaluate_MispricedCrossMarketProfitQualifies(t *testing.T) {
	now := time.Now()
	books := orderbook.New(4)
	vols := volatility.New(decimal.Zero)

	// Two zero-fee BTC/USDT markets on different exchanges, deliberately
	// mispriced: buy low on one, sell high on the other.
	mBuy := market("binance", "BTCUSDT", "BTC", "USDT", "0")
	mSell := market("okx", "BTCUSDT", "BTC", "USDT", "0")

	putSnapshot(books, "binance", "BTCUSDT", nil, []models.PriceLevel{lvl("100", "1000")}, now)
	putSnapshot(books, "okx", "BTCUSDT", []models.PriceLevel{lvl("101", "1000")}, nil, now)

	buy, _ := models.NewEdges(mBuy)   // USDT -> BTC at ask 100
	_, sell := models.NewEdges(mSell) // BTC -> USDT at bid 101

	cycle := models.Cycle{Edges: []models.Edge{buy, sell}}

	e := New(books, vols, defaultRisk())
	rec := e.Evaluate(cycle, "USDT", dec("1000"), now)

	if rec.Rejected {
		t.Fatalf("expected a qualifying cycle, got rejection %s legs=%+v", rec.RejectionReason, rec.Legs)
	}
	if !rec.OutputQty.GreaterThan(rec.InputQty) {
		t.Fatalf("expected output %s > input %s", rec.OutputQty, rec.InputQty)
	}
}
