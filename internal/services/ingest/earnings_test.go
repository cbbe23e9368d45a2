package ingest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/earnboard/earnboard/internal/common"
	"github.com/earnboard/earnboard/internal/interfaces"
	"github.com/earnboard/earnboard/internal/models"
	"github.com/earnboard/earnboard/internal/storage"
)

func newTestStorage(t *testing.T) interfaces.StorageManager {
	t.Helper()
	cfg := common.NewDefaultConfig()
	cfg.Storage.Path = filepath.Join(t.TempDir(), "badger")
	mgr, err := storage.NewManager(common.NewLogger("error"), cfg)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	t.Cleanup(func() { mgr.Close() })
	return mgr
}

func fptr(v float64) *float64 { return &v }

type fakeEarningsClient struct {
	entries []*models.EarningsEntry
	calls   int
}

func (f *fakeEarningsClient) GetCalendar(_ context.Context, _, _ time.Time) ([]*models.EarningsEntry, error) {
	f.calls++
	return f.entries, nil
}

func TestNormalizeTiming(t *testing.T) {
	tests := []struct {
		label string
		want  string
	}{
		{"bmo", models.TimingBeforeOpen},
		{"AMC", models.TimingAfterClose},
		{" time-pre-market ", models.TimingBeforeOpen},
		{"time-after-hours", models.TimingAfterClose},
		{"dmh", models.TimingDuringMarket},
		{"", models.TimingUnknown},
		{"whenever", models.TimingUnknown},
	}
	for _, tt := range tests {
		if got := NormalizeTiming(tt.label); got != tt.want {
			t.Errorf("NormalizeTiming(%q) = %q, want %q", tt.label, got, tt.want)
		}
	}
}

func TestNormalizeEarnings_SymbolsAndDedup(t *testing.T) {
	entries := []*models.EarningsEntry{
		{Symbol: " aapl ", ReportDate: "2024-04-25", TimingLabel: "amc"},
		// Duplicate with more fields wins.
		{Symbol: "AAPL", ReportDate: "2024-04-25", TimingLabel: "amc", EPSEstimate: fptr(1.50)},
		// Sparse duplicate does not displace the complete row.
		{Symbol: "AAPL", ReportDate: "2024-04-25"},
		// Invalid date dropped.
		{Symbol: "MSFT", ReportDate: "someday"},
		// Blank symbol dropped.
		{Symbol: "  ", ReportDate: "2024-04-25"},
	}

	records := NormalizeEarnings(entries)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	r := records[0]
	if r.Symbol != "AAPL" {
		t.Errorf("expected normalized symbol AAPL, got %q", r.Symbol)
	}
	if r.Timing != models.TimingAfterClose {
		t.Errorf("expected after_close, got %s", r.Timing)
	}
	if r.EPSEstimate == nil || *r.EPSEstimate != 1.50 {
		t.Errorf("expected most complete duplicate to win, got %+v", r)
	}
}

func TestEarningsService_IngestIdempotent(t *testing.T) {
	store := newTestStorage(t)
	client := &fakeEarningsClient{
		entries: []*models.EarningsEntry{
			{Symbol: "AAPL", ReportDate: "2024-04-25", TimingLabel: "amc", EPSEstimate: fptr(1.50)},
			{Symbol: "msft", ReportDate: "2024-04-25", TimingLabel: "bmo"},
		},
	}
	svc := NewEarningsService(client, store, common.NewLogger("error"))
	ctx := context.Background()
	day := time.Date(2024, 4, 25, 0, 0, 0, 0, time.UTC)

	written, err := svc.Ingest(ctx, day)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if written != 2 {
		t.Errorf("expected 2 written, got %d", written)
	}

	// Same feed content on the next cycle writes nothing.
	written, err = svc.Ingest(ctx, day)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if written != 0 {
		t.Errorf("expected 0 written on unchanged re-ingest, got %d", written)
	}

	symbols, err := svc.SymbolsForDate(ctx, "2024-04-25")
	if err != nil {
		t.Fatalf("SymbolsForDate failed: %v", err)
	}
	if len(symbols) != 2 || symbols[0] != "AAPL" || symbols[1] != "MSFT" {
		t.Errorf("expected [AAPL MSFT], got %v", symbols)
	}
}
