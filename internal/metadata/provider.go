// Package metadata fetches the one-time market-descriptor snapshot each
// exchange publishes (spec.md §6 "Inbound — market metadata"): symbol
// list, fee schedule, price/qty ticks, min notional. This is explicitly
// a single fetch-then-done operation, never a polling loop.
package metadata

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"arbscan/internal/models"
	"arbscan/pkg/ratelimit"
	"arbscan/pkg/retry"
)

// Provider fetches the current set of markets for one exchange.
type Provider interface {
	FetchMarkets(ctx context.Context) ([]models.Market, error)
}

// HTTPClientConfig mirrors the teacher's HTTPClientConfig: connection
// pooling and layered timeouts tuned for low-latency exchange APIs,
// reused here for the one-shot metadata fetch rather than order entry.
type HTTPClientConfig struct {
	ConnectTimeout      time.Duration
	TotalTimeout        time.Duration
	TLSHandshakeTimeout time.Duration
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
}

// DefaultHTTPClientConfig mirrors the teacher's DefaultHTTPClientConfig.
func DefaultHTTPClientConfig() HTTPClientConfig {
	return HTTPClientConfig{
		ConnectTimeout:      5 * time.Second,
		TotalTimeout:        30 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
}

func newHTTPClient(cfg HTTPClientConfig) *http.Client {
	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		TLSHandshakeTimeout: cfg.TLSHandshakeTimeout,
		TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
	}
	return &http.Client{Transport: transport, Timeout: cfg.TotalTimeout}
}

// rawMarket is the generic wire shape a venue's instrument-info endpoint
// returns: symbol, base/quote assets, fee and tick fields as strings.
type rawMarket struct {
	Symbol      string `json:"symbol"`
	Base        string `json:"baseAsset"`
	Quote       string `json:"quoteAsset"`
	TakerFee    string `json:"takerFee"`
	MinNotional string `json:"minNotional"`
	PriceTick   string `json:"priceTick"`
	QtyTick     string `json:"qtyTick"`
}

type rawMarketsResponse struct {
	Markets []rawMarket `json:"markets"`
}

// HTTPProvider fetches a market list once from a venue's REST endpoint,
// rate-limited and retried with backoff (spec.md §6; Non-goals exclude
// ongoing REST polling, not this startup snapshot).
type HTTPProvider struct {
	ExchangeID string
	URL        string
	client     *http.Client
	limiter    *ratelimit.RateLimiter
	retryCfg   retry.Config
}

// NewHTTPProvider returns a provider ready to FetchMarkets once.
func NewHTTPProvider(exchangeID, url string, cfg HTTPClientConfig, limiter *ratelimit.RateLimiter, retryCfg retry.Config) *HTTPProvider {
	return &HTTPProvider{
		ExchangeID: exchangeID,
		URL:        url,
		client:     newHTTPClient(cfg),
		limiter:    limiter,
		retryCfg:   retryCfg,
	}
}

// FetchMarkets performs one rate-limited, retried GET and parses the
// response into Market descriptors.
func (p *HTTPProvider) FetchMarkets(ctx context.Context) ([]models.Market, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("metadata %s: rate limit wait: %w", p.ExchangeID, err)
		}
	}

	retryCfg := p.retryCfg
	if retryCfg.RetryIf == nil {
		retryCfg.RetryIf = retry.IsRetryable
	}

	var body []byte
	err := retry.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
		if err != nil {
			return retry.Permanent(err)
		}
		resp, err := p.client.Do(req)
		if err != nil {
			return retry.Temporary(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return retry.Temporary(fmt.Errorf("metadata %s: server error %d", p.ExchangeID, resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			return retry.Permanent(fmt.Errorf("metadata %s: unexpected status %d", p.ExchangeID, resp.StatusCode))
		}

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return retry.Temporary(err)
		}
		body = b
		return nil
	}, retryCfg)
	if err != nil {
		return nil, err
	}

	var parsed rawMarketsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("metadata %s: decode response: %w", p.ExchangeID, err)
	}

	markets := make([]models.Market, 0, len(parsed.Markets))
	for _, rm := range parsed.Markets {
		m, err := rawMarket2Market(p.ExchangeID, rm)
		if err != nil {
			return nil, err
		}
		markets = append(markets, m)
	}
	return markets, nil
}

func rawMarket2Market(exchangeID string, rm rawMarket) (models.Market, error) {
	fee, err := decimal.NewFromString(rm.TakerFee)
	if err != nil {
		return models.Market{}, fmt.Errorf("metadata %s: symbol %s: taker fee: %w", exchangeID, rm.Symbol, err)
	}
	minNotional, err := decimal.NewFromString(rm.MinNotional)
	if err != nil {
		return models.Market{}, fmt.Errorf("metadata %s: symbol %s: min notional: %w", exchangeID, rm.Symbol, err)
	}
	priceTick, err := decimal.NewFromString(rm.PriceTick)
	if err != nil {
		return models.Market{}, fmt.Errorf("metadata %s: symbol %s: price tick: %w", exchangeID, rm.Symbol, err)
	}
	qtyTick, err := decimal.NewFromString(rm.QtyTick)
	if err != nil {
		return models.Market{}, fmt.Errorf("metadata %s: symbol %s: qty tick: %w", exchangeID, rm.Symbol, err)
	}

	return models.Market{
		ExchangeID:  exchangeID,
		Symbol:      rm.Symbol,
		Base:        models.Asset(rm.Base),
		Quote:       models.Asset(rm.Quote),
		TakerFee:    fee,
		MinNotional: minNotional,
		PriceTick:   priceTick,
		QtyTick:     qtyTick,
	}, nil
}

// StaticProvider returns a fixed, in-memory market list. Used in tests
// and for exchanges whose metadata is supplied out of band (config file,
// operator-maintained list) rather than fetched over HTTP.
type StaticProvider struct {
	Markets []models.Market
}

// FetchMarkets implements Provider.
func (p StaticProvider) FetchMarkets(ctx context.Context) ([]models.Market, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	out := make([]models.Market, len(p.Markets))
	copy(out, p.Markets)
	return out, nil
}
