package sink

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestBroadcastSink_EmitsToConnectedClient(t *testing.T) {
	h := NewBroadcastSink(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	waitForClientCount(t, h, 1)

	rec := sampleRecord()
	h.Emit(context.Background(), rec)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	var msg opportunityMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if msg.Type != "opportunity" || msg.InputAsset != "USDT" {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func waitForClientCount(t *testing.T, h *BroadcastSink, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if h.ClientCount() == n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for client count %d, got %d", n, h.ClientCount())
}

func TestBroadcastSink_EnqueueDropsLowestReturnOnOverflow(t *testing.T) {
	h := NewBroadcastSink(nil)
	c := &client{send: make(chan queuedMessage, 2)}

	h.enqueue(c, queuedMessage{payload: []byte("a"), riskReturn: 0.5})
	h.enqueue(c, queuedMessage{payload: []byte("b"), riskReturn: 0.1})
	h.enqueue(c, queuedMessage{payload: []byte("c"), riskReturn: 0.9})

	if h.DroppedMessages() != 1 {
		t.Fatalf("expected 1 dropped message, got %d", h.DroppedMessages())
	}

	var kept []string
	for len(c.send) > 0 {
		m := <-c.send
		kept = append(kept, string(m.payload))
	}
	for _, want := range []string{"a", "c"} {
		found := false
		for _, k := range kept {
			if k == want {
				found = true
			}
		}
		if !found {
			t.Fatalf("expected kept messages to include %q, got %v", want, kept)
		}
	}
	for _, k := range kept {
		if k == "b" {
			t.Fatalf("expected lowest-return message %q to be dropped, but it survived: %v", "b", kept)
		}
	}
}
