// Package feed holds the inbound market-data adapters of spec.md §6
// ("Inbound — order-book stream", "Inbound — metadata"). WSFeed
// generalizes the teacher's per-exchange WebSocket client
// (subscribe/handleMessage over WSReconnectManager) into one
// exchange-agnostic streaming adapter driven by a pluggable Decoder.
package feed

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"

	"arbscan/internal/metrics"
	"arbscan/internal/models"
	"arbscan/internal/orderbook"
	"arbscan/pkg/utils"
)

var json = jsoniter.ConfigFastest

// ReconnectConfig mirrors the teacher's WSReconnectConfig
// (spec.md §6 "reconnect with exponential backoff: 2s, 4s, 8s, 16s").
type ReconnectConfig struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxRetries   int
	PingInterval time.Duration
	ReadTimeout  time.Duration
}

// Decoder turns one raw WS frame into either an order-book delta or a
// full resync snapshot. Exchange-specific wire formats live behind this
// interface; WSFeed itself is exchange-agnostic.
type Decoder interface {
	// DecodeDelta parses a raw frame into a delta. ok is false for frames
	// that are not order-book updates (e.g. pings, subscription acks).
	DecodeDelta(raw []byte) (delta models.Delta, ok bool, err error)
}

// Dialer opens a raw byte-stream connection to a venue. In production
// this wraps *websocket.Conn; tests supply a fake.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// Conn is the minimal duplex connection WSFeed needs.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage([]byte) error
	Close() error
}

// SnapshotFetcher fetches a full order-book snapshot, used after a
// sequence gap forces a resync (spec.md §4.2 "resync request").
type SnapshotFetcher interface {
	FetchSnapshot(ctx context.Context, key models.Key) (*models.Snapshot, error)
}

// WSFeed streams order-book deltas for one exchange into a shared
// orderbook.Cache, reconnecting with exponential backoff on failure
// (grounded on internal/exchange/ws_reconnect.go's WSReconnectManager).
type WSFeed struct {
	exchange string
	url      string
	dialer   Dialer
	decoder  Decoder
	books    *orderbook.Cache
	snapshots SnapshotFetcher
	cfg      ReconnectConfig
	logger   *utils.Logger

	connected atomic.Bool
	retries   atomic.Int32
}

// NewWSFeed returns a feed ready to Run.
func NewWSFeed(exchange, url string, dialer Dialer, decoder Decoder, books *orderbook.Cache, snapshots SnapshotFetcher, cfg ReconnectConfig, logger *utils.Logger) *WSFeed {
	if logger == nil {
		logger = utils.L()
	}
	return &WSFeed{
		exchange:  exchange,
		url:       url,
		dialer:    dialer,
		decoder:   decoder,
		books:     books,
		snapshots: snapshots,
		cfg:       cfg,
		logger:    logger.WithExchange(exchange),
	}
}

// Run connects and streams until ctx is cancelled, reconnecting with
// backoff on any read/dial error.
func (f *WSFeed) Run(ctx context.Context) {
	delay := f.cfg.InitialDelay
	attempt := 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if f.cfg.MaxRetries > 0 && attempt > f.cfg.MaxRetries {
			f.logger.Warn("max reconnect attempts reached, giving up")
			return
		}

		conn, err := f.dialer.Dial(ctx, f.url)
		if err != nil {
			f.logger.Warn("dial failed", utils.Err(err), utils.Int("attempt", attempt))
			attempt++
			if !sleepOrDone(ctx, delay) {
				return
			}
			delay = nextDelay(delay, f.cfg.MaxDelay)
			continue
		}

		f.connected.Store(true)
		f.retries.Store(0)
		attempt = 0
		delay = f.cfg.InitialDelay
		f.logger.Info("connected")

		f.readLoop(ctx, conn)

		f.connected.Store(false)
		conn.Close()

		select {
		case <-ctx.Done():
			return
		default:
		}
		attempt++
	}
}

func nextDelay(cur, max time.Duration) time.Duration {
	next := cur * 2
	if next > max {
		return max
	}
	return next
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

func (f *WSFeed) readLoop(ctx context.Context, conn Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		raw, err := conn.ReadMessage()
		if err != nil {
			f.logger.Warn("read error, reconnecting", utils.Err(err))
			return
		}

		start := time.Now()
		delta, ok, err := f.decoder.DecodeDelta(raw)
		if err != nil {
			f.logger.Warn("decode error", utils.Err(err))
			continue
		}
		if !ok {
			continue
		}

		applied, gap := f.books.ApplyDelta(delta)
		metrics.OrderbookApplyLatency.Observe(float64(time.Since(start).Milliseconds()))

		if gap {
			metrics.CacheResyncTotal.WithLabelValues(delta.ExchangeID, delta.Symbol).Inc()
			f.resync(ctx, models.Key{ExchangeID: delta.ExchangeID, Symbol: delta.Symbol})
			continue
		}
		if !applied {
			continue // stale/duplicate sequence number, not an error
		}
	}
}

func (f *WSFeed) resync(ctx context.Context, key models.Key) {
	if f.snapshots == nil {
		return
	}
	snap, err := f.snapshots.FetchSnapshot(ctx, key)
	if err != nil {
		f.logger.Warn("resync fetch failed", utils.Err(err), utils.Symbol(key.Symbol))
		return
	}
	f.books.Put(snap)
}

// IsConnected reports whether the feed currently holds a live connection.
func (f *WSFeed) IsConnected() bool { return f.connected.Load() }

// gorillaDialer adapts gorilla/websocket into the Dialer interface. It is
// the only production Dialer; tests use a fake.
type gorillaDialer struct {
	handshakeTimeout time.Duration
}

// NewGorillaDialer returns a Dialer backed by gorilla/websocket.
func NewGorillaDialer(handshakeTimeout time.Duration) Dialer {
	return &gorillaDialer{handshakeTimeout: handshakeTimeout}
}

func (d *gorillaDialer) Dial(ctx context.Context, url string) (Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: d.handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &gorillaConn{conn: conn}, nil
}

// gorillaConn adapts *websocket.Conn to the feed.Conn interface.
type gorillaConn struct {
	conn *websocket.Conn
}

func (c *gorillaConn) ReadMessage() ([]byte, error) {
	_, msg, err := c.conn.ReadMessage()
	return msg, err
}

func (c *gorillaConn) WriteMessage(msg []byte) error {
	return c.conn.WriteMessage(websocket.TextMessage, msg)
}

func (c *gorillaConn) Close() error {
	return c.conn.Close()
}
