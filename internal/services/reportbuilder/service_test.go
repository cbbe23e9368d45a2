package reportbuilder

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/earnboard/earnboard/internal/common"
	"github.com/earnboard/earnboard/internal/interfaces"
	"github.com/earnboard/earnboard/internal/marketclock"
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

func newCalendar(t *testing.T) *marketclock.Calendar {
	t.Helper()
	cal, err := marketclock.NewCalendar("America/New_York")
	if err != nil {
		t.Fatalf("NewCalendar failed: %v", err)
	}
	return cal
}

func seedQuote(t *testing.T, store interfaces.StorageManager, symbol string, ready bool) {
	t.Helper()
	obs := &models.QuoteObservation{
		Symbol:         symbol,
		Name:           symbol + " Inc.",
		Price:          fptr(110.0),
		ChangePct:      fptr(10.0),
		SizeBucket:     models.SizeMega,
		SymbolResolved: true,
	}
	if ready {
		obs.MarketCap = models.BigIntPtr(110_000_000_000)
		obs.MarketCapDelta = models.BigIntPtr(10_000_000_000)
	}
	obs.Refresh()
	if _, err := store.QuoteStorage().Upsert(context.Background(), obs); err != nil {
		t.Fatalf("quote seed failed: %v", err)
	}
}

func TestBuild_JoinsOnlyReadySymbols(t *testing.T) {
	store := newTestStorage(t)
	cal := newCalendar(t)
	svc := NewService(store, cal, common.NewLogger("error"))
	ctx := context.Background()

	day := time.Date(2024, 4, 25, 15, 30, 0, 0, cal.Location())
	date := "2024-04-25"

	for _, sym := range []string{"AAPL", "NOQUOTE", "NOTREADY", "CAPONLY"} {
		rec := &models.EarningsRecord{
			Symbol:      sym,
			ReportDate:  date,
			Timing:      models.TimingAfterClose,
			EPSActual:   fptr(1.65),
			EPSEstimate: fptr(1.50),
		}
		if _, err := store.EarningsStorage().Upsert(ctx, rec); err != nil {
			t.Fatalf("earnings seed failed: %v", err)
		}
	}
	seedQuote(t, store, "AAPL", true)
	seedQuote(t, store, "NOTREADY", false)

	// An upstream market cap without a qualifying price is not fully ready
	// and must not surface a report with a null price.
	capOnly := &models.QuoteObservation{
		Symbol:         "CAPONLY",
		Name:           "Caponly Inc.",
		MarketCap:      models.BigIntPtr(5_000_000_000),
		SizeBucket:     models.SizeMid,
		SymbolResolved: true,
	}
	capOnly.Refresh()
	if _, err := store.QuoteStorage().Upsert(ctx, capOnly); err != nil {
		t.Fatalf("quote seed failed: %v", err)
	}

	written, err := svc.Build(ctx, day)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if written != 1 {
		t.Fatalf("expected 1 report written, got %d", written)
	}

	reports, err := store.ReportStorage().List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(reports) != 1 || reports[0].Symbol != "AAPL" {
		t.Fatalf("expected only AAPL in the intersection, got %+v", reports)
	}

	r := reports[0]
	if r.Name != "AAPL Inc." || r.SizeBucket != models.SizeMega {
		t.Errorf("unexpected quote fields: %+v", r)
	}
	if r.EPSSurprisePct == nil || *r.EPSSurprisePct != 10.0 {
		t.Errorf("expected eps surprise 10%%, got %v", r.EPSSurprisePct)
	}
	if r.RevenueSurprisePct != nil {
		t.Errorf("expected nil revenue surprise without revenue, got %v", r.RevenueSurprisePct)
	}

	// Dates pinned to exchange-local midnight regardless of build time.
	wantMidnight := time.Date(2024, 4, 25, 0, 0, 0, 0, cal.Location())
	if !r.ReportDate.Equal(wantMidnight) || !r.SnapshotAt.Equal(wantMidnight) {
		t.Errorf("expected midnight-pinned dates, got %v / %v", r.ReportDate, r.SnapshotAt)
	}
}

func TestBuild_Idempotent(t *testing.T) {
	store := newTestStorage(t)
	cal := newCalendar(t)
	svc := NewService(store, cal, common.NewLogger("error"))
	ctx := context.Background()

	day := time.Date(2024, 4, 25, 10, 0, 0, 0, cal.Location())
	rec := &models.EarningsRecord{Symbol: "AAPL", ReportDate: "2024-04-25", Timing: models.TimingBeforeOpen}
	if _, err := store.EarningsStorage().Upsert(ctx, rec); err != nil {
		t.Fatalf("earnings seed failed: %v", err)
	}
	seedQuote(t, store, "AAPL", true)

	if written, err := svc.Build(ctx, day); err != nil || written != 1 {
		t.Fatalf("first build: written=%d err=%v", written, err)
	}

	// Same inputs, later in the day: nothing to write.
	later := day.Add(4 * time.Hour)
	written, err := svc.Build(ctx, later)
	if err != nil {
		t.Fatalf("second build failed: %v", err)
	}
	if written != 0 {
		t.Errorf("expected idempotent rebuild, wrote %d", written)
	}
}
