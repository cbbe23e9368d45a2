package quotefeed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/earnboard/earnboard/internal/models"
)

func TestGetSnapshot_ParsesObservations(t *testing.T) {
	mockResp := map[string]interface{}{
		"symbol":             "BRK-B",
		"name":               "Berkshire Hathaway Inc.",
		"shares_outstanding": int64(1300000000),
		"market_cap":         int64(900000000000),
		"last_trade":         map[string]interface{}{"price": 412.55, "timestamp": int64(1711641600)},
		"prev_day_bar":       map[string]interface{}{"price": 409.10, "timestamp": int64(1711555200)},
	}

	var capturedPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(mockResp)
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	bundle, err := client.GetSnapshot(context.Background(), "BRK.B")
	if err != nil {
		t.Fatalf("GetSnapshot failed: %v", err)
	}

	if capturedPath != "/snapshot/BRK-B" {
		t.Errorf("expected path /snapshot/BRK-B, got %s", capturedPath)
	}
	if bundle.Symbol != "BRK.B" {
		t.Errorf("expected canonical symbol BRK.B, got %s", bundle.Symbol)
	}
	if bundle.Shares == nil || *bundle.Shares != 1300000000 {
		t.Errorf("expected shares 1300000000, got %v", bundle.Shares)
	}
	if bundle.MarketCap == nil || *bundle.MarketCap != 900000000000 {
		t.Errorf("expected market cap 900000000000, got %v", bundle.MarketCap)
	}
	if len(bundle.Observations) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(bundle.Observations))
	}
	if bundle.Observations[0].Label != models.ObsLive || bundle.Observations[0].Price != 412.55 {
		t.Errorf("unexpected first observation: %+v", bundle.Observations[0])
	}
	if bundle.Observations[1].Label != models.ObsPrevClose || bundle.Observations[1].Price != 409.10 {
		t.Errorf("unexpected second observation: %+v", bundle.Observations[1])
	}
}

func TestGetSnapshot_SkipsZeroPrices(t *testing.T) {
	mockResp := map[string]interface{}{
		"symbol":     "AAPL",
		"last_trade": map[string]interface{}{"price": 0.0, "timestamp": int64(1711641600)},
		"day_bar":    map[string]interface{}{"price": 172.40, "timestamp": int64(1711641540)},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(mockResp)
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	bundle, err := client.GetSnapshot(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("GetSnapshot failed: %v", err)
	}

	if len(bundle.Observations) != 1 {
		t.Fatalf("expected 1 observation, got %d", len(bundle.Observations))
	}
	if bundle.Observations[0].Label != models.ObsDayBar {
		t.Errorf("expected day bar observation, got %s", bundle.Observations[0].Label)
	}
	if bundle.Shares != nil {
		t.Errorf("expected nil shares when feed omits them, got %v", bundle.Shares)
	}
}

func TestGetBulkPreviousClose(t *testing.T) {
	mockRows := []map[string]interface{}{
		{"symbol": "AAPL", "close": 172.40, "adjusted_close": 172.40},
		{"symbol": "BRK-B", "close": 409.10, "adjusted_close": 0.0},
		{"symbol": "BAD", "close": 0.0},
	}

	var capturedQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedQuery = r.URL.Query().Get("date")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(mockRows)
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	date := time.Date(2024, 3, 27, 0, 0, 0, 0, time.UTC)
	closes, err := client.GetBulkPreviousClose(context.Background(), date)
	if err != nil {
		t.Fatalf("GetBulkPreviousClose failed: %v", err)
	}

	if capturedQuery != "2024-03-27" {
		t.Errorf("expected date query 2024-03-27, got %s", capturedQuery)
	}
	if len(closes) != 2 {
		t.Fatalf("expected 2 rows (zero close dropped), got %d", len(closes))
	}
	if closes[1].Symbol != "BRK.B" {
		t.Errorf("expected canonical BRK.B, got %s", closes[1].Symbol)
	}
	if closes[1].AdjClose != 409.10 {
		t.Errorf("expected adj close fallback to raw close, got %.2f", closes[1].AdjClose)
	}
}

func TestGetCorporateActions_FiltersUnknownTypes(t *testing.T) {
	mockRows := []map[string]interface{}{
		{"symbol": "AAPL", "type": "dividend", "date": "2024-03-15"},
		{"symbol": "AAPL", "type": "split", "date": "2024-03-20"},
		{"symbol": "AAPL", "type": "rights_issue", "date": "2024-03-21"},
		{"symbol": "AAPL", "type": "dividend", "date": "not-a-date"},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(mockRows)
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	since := time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)
	actions, err := client.GetCorporateActions(context.Background(), "AAPL", since)
	if err != nil {
		t.Fatalf("GetCorporateActions failed: %v", err)
	}

	if len(actions) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(actions))
	}
	if actions[0].Type != "dividend" || actions[1].Type != "split" {
		t.Errorf("unexpected action types: %+v", actions)
	}
}
