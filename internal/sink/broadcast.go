package sink

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"arbscan/internal/models"
	"arbscan/pkg/utils"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
	clientBufSize  = 64
)

// opportunityMessage is the wire shape pushed to subscribed clients.
type opportunityMessage struct {
	Type               string  `json:"type"`
	CycleKey           string  `json:"cycle_key"`
	InputAsset         string  `json:"input_asset"`
	InputQty           string  `json:"input_qty"`
	OutputQty          string  `json:"output_qty"`
	RiskAdjustedReturn string  `json:"risk_adjusted_return"`
	Legs               int   `json:"legs"`
	EmittedAt          int64 `json:"emitted_at_unix_ms"`
}

// client is one subscribed read-only WebSocket connection (adapted from
// internal/websocket/client.go's Client).
type client struct {
	conn *websocket.Conn
	hub  *BroadcastSink
	send chan queuedMessage
}

type queuedMessage struct {
	payload    []byte
	riskReturn float64
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg.payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
		// this feed is read-only from the client's perspective; inbound
		// frames are drained only to keep the connection's read deadline
		// honest via pong handling.
	}
}

// BroadcastSink fans emitted opportunities out to subscribed WebSocket
// clients (adapted from internal/websocket/hub.go's Hub). Each client's
// outbound buffer is bounded; on overflow the queued message with the
// lowest risk-adjusted return is evicted in favor of the new one, rather
// than the teacher's drop-oldest policy — a recipient of this feed wants
// the best available opportunities, not the earliest.
type BroadcastSink struct {
	mu      sync.RWMutex
	clients map[*client]bool

	register   chan *client
	unregister chan *client
	done       chan struct{}

	dropped atomic.Int64
	logger  *utils.Logger
}

// NewBroadcastSink returns a sink ready to Run.
func NewBroadcastSink(logger *utils.Logger) *BroadcastSink {
	if logger == nil {
		logger = utils.L()
	}
	return &BroadcastSink{
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		logger:     logger.WithComponent("broadcast_sink"),
	}
}

// Run drives client (un)registration until ctx is cancelled.
func (h *BroadcastSink) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
		}
	}
}

// Emit implements scanner.Sink: marshals rec and pushes it to every
// connected client, applying the drop-lowest-profit overflow policy per
// client buffer.
func (h *BroadcastSink) Emit(ctx context.Context, rec models.EvaluationRecord) {
	msg := opportunityMessage{
		Type:               "opportunity",
		CycleKey:           rec.Cycle.CanonicalKey(),
		InputAsset:         string(rec.InputAsset),
		InputQty:           rec.InputQty.String(),
		OutputQty:          rec.OutputQty.String(),
		RiskAdjustedReturn: rec.RiskAdjustedReturn.String(),
		Legs:               rec.Cycle.Len(),
		EmittedAt:          rec.Timestamp.UnixMilli(),
	}
	payload, err := json.Marshal(&msg)
	if err != nil {
		h.logger.Warn("marshal opportunity", utils.Err(err))
		return
	}
	riskReturn, _ := rec.RiskAdjustedReturn.Float64()

	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	qm := queuedMessage{payload: payload, riskReturn: riskReturn}
	for _, c := range clients {
		h.enqueue(c, qm)
	}
}

// enqueue pushes qm onto c's buffer, evicting the lowest-risk-return
// pending message when full.
func (h *BroadcastSink) enqueue(c *client, qm queuedMessage) {
	select {
	case c.send <- qm:
		return
	default:
	}

	// Buffer full: drain it, keep the best N-1 plus the new message.
	pending := make([]queuedMessage, 0, cap(c.send)+1)
drain:
	for {
		select {
		case m, ok := <-c.send:
			if !ok {
				return
			}
			pending = append(pending, m)
		default:
			break drain
		}
	}
	pending = append(pending, qm)

	if len(pending) > cap(c.send) {
		worst := 0
		for i := 1; i < len(pending); i++ {
			if pending[i].riskReturn < pending[worst].riskReturn {
				worst = i
			}
		}
		pending = append(pending[:worst], pending[worst+1:]...)
		h.dropped.Add(1)
	}

	for _, m := range pending {
		select {
		case c.send <- m:
		default:
		}
	}
}

// ClientCount reports the number of subscribed clients.
func (h *BroadcastSink) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// DroppedMessages reports how many queued messages were evicted by the
// overflow policy so far.
func (h *BroadcastSink) DroppedMessages() int64 {
	return h.dropped.Load()
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWS upgrades an HTTP request into a subscribed read-only client
// connection (adapted from internal/websocket/client.go's ServeWS).
func (h *BroadcastSink) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", utils.Err(err))
		return
	}
	c := &client{conn: conn, hub: h, send: make(chan queuedMessage, clientBufSize)}
	h.register <- c
	go c.writePump()
	go c.readPump()
}
