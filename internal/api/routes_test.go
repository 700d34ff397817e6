package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeHealth struct {
	ticks, skipped int64
}

func (f fakeHealth) TickCount() int64 { return f.ticks }
func (f fakeHealth) SkipCount() int64 { return f.skipped }

func TestSetupRoutes_Healthz(t *testing.T) {
	router := SetupRoutes(&Dependencies{Health: fakeHealth{ticks: 42, skipped: 3}})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("unexpected status: %v", body["status"])
	}
	if int64(body["ticks"].(float64)) != 42 {
		t.Fatalf("unexpected ticks: %v", body["ticks"])
	}
}

func TestSetupRoutes_Metrics(t *testing.T) {
	router := SetupRoutes(&Dependencies{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
