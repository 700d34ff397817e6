package metadata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"arbscan/internal/models"
	"arbscan/pkg/ratelimit"
	"arbscan/pkg/retry"
)

func TestHTTPProvider_FetchMarkets_ParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"markets":[
			{"symbol":"BTCUSDT","baseAsset":"BTC","quoteAsset":"USDT","takerFee":"0.001","minNotional":"10","priceTick":"0.01","qtyTick":"0.00001"}
		]}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider("binance", srv.URL, DefaultHTTPClientConfig(), ratelimit.NewRateLimiter(50, 50), retry.Config{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond})

	markets, err := p.FetchMarkets(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(markets) != 1 {
		t.Fatalf("expected 1 market, got %d", len(markets))
	}
	m := markets[0]
	if m.ExchangeID != "binance" || m.Symbol != "BTCUSDT" || m.Base != models.Asset("BTC") {
		t.Fatalf("unexpected market: %+v", m)
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("expected valid market, got: %v", err)
	}
}

func TestHTTPProvider_FetchMarkets_RetriesOnServerError(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"markets":[]}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider("binance", srv.URL, DefaultHTTPClientConfig(), nil, retry.Config{MaxRetries: 5, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond})

	markets, err := p.FetchMarkets(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(markets) != 0 {
		t.Fatalf("expected empty market list, got %d", len(markets))
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestHTTPProvider_FetchMarkets_PermanentOnClientError(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewHTTPProvider("binance", srv.URL, DefaultHTTPClientConfig(), nil, retry.Config{MaxRetries: 5, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond})

	_, err := p.FetchMarkets(context.Background())
	if err == nil {
		t.Fatal("expected error for 404 response")
	}
	if attempts != 1 {
		t.Fatalf("expected exactly 1 attempt for a permanent error, got %d", attempts)
	}
}

func TestStaticProvider_FetchMarkets_ReturnsCopy(t *testing.T) {
	p := StaticProvider{Markets: []models.Market{{ExchangeID: "okx", Symbol: "ETHUSDT"}}}

	markets, err := p.FetchMarkets(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	markets[0].Symbol = "mutated"

	again, err := p.FetchMarkets(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again[0].Symbol != "ETHUSDT" {
		t.Fatalf("expected StaticProvider to return a defensive copy, got mutated symbol %q", again[0].Symbol)
	}
}
