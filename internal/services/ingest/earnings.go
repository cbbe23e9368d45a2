// Package ingest implements the earnings and quote ingestion jobs.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/earnboard/earnboard/internal/common"
	"github.com/earnboard/earnboard/internal/interfaces"
	"github.com/earnboard/earnboard/internal/models"
)

// calendarLookback and calendarLookahead bound the fetch window around the
// trading day so late restatements and early confirmations are both caught.
const (
	calendarLookback  = 7 * 24 * time.Hour
	calendarLookahead = 7 * 24 * time.Hour
)

// timingLabels maps the feed's free-text announcement labels onto the
// canonical timing values. Unknown labels map to TimingUnknown rather than
// failing the row.
var timingLabels = map[string]string{
	"bmo":               models.TimingBeforeOpen,
	"before_open":       models.TimingBeforeOpen,
	"before-open":       models.TimingBeforeOpen,
	"pre-market":        models.TimingBeforeOpen,
	"time-pre-market":   models.TimingBeforeOpen,
	"amc":               models.TimingAfterClose,
	"after_close":       models.TimingAfterClose,
	"after-close":       models.TimingAfterClose,
	"after-hours":       models.TimingAfterClose,
	"time-after-hours":  models.TimingAfterClose,
	"dmh":               models.TimingDuringMarket,
	"during_market":     models.TimingDuringMarket,
	"during-market":     models.TimingDuringMarket,
	"time-during-hours": models.TimingDuringMarket,
}

// EarningsService pulls the earnings calendar and writes normalized records.
type EarningsService struct {
	client  interfaces.EarningsFeedClient
	storage interfaces.StorageManager
	logger  *common.Logger
}

// NewEarningsService creates the earnings ingestion service.
func NewEarningsService(client interfaces.EarningsFeedClient, storage interfaces.StorageManager, logger *common.Logger) *EarningsService {
	return &EarningsService{client: client, storage: storage, logger: logger}
}

// Ingest fetches the calendar window around the trading day, normalizes rows,
// dedups by (date, symbol) keeping the most complete entry, and writes the
// result in chunked transactions. Returns the number of rows actually written.
func (s *EarningsService) Ingest(ctx context.Context, tradingDay time.Time) (int, error) {
	from := tradingDay.Add(-calendarLookback)
	to := tradingDay.Add(calendarLookahead)

	entries, err := s.client.GetCalendar(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("earnings calendar fetch failed: %w", err)
	}

	records := NormalizeEarnings(entries)

	written, err := s.storage.EarningsStorage().UpsertBatch(ctx, records)
	if err != nil {
		return written, fmt.Errorf("earnings batch upsert failed: %w", err)
	}

	s.logger.Info().
		Int("fetched", len(entries)).
		Int("normalized", len(records)).
		Int("written", written).
		Msg("Earnings calendar ingested")
	return written, nil
}

// SymbolsForDate returns the symbol universe reporting on a date, sorted.
func (s *EarningsService) SymbolsForDate(ctx context.Context, date string) ([]string, error) {
	records, err := s.storage.EarningsStorage().ListByDate(ctx, date)
	if err != nil {
		return nil, err
	}
	symbols := make([]string, 0, len(records))
	for _, r := range records {
		symbols = append(symbols, r.Symbol)
	}
	return symbols, nil
}

// NormalizeEarnings converts raw feed entries into canonical records:
// symbols are trimmed and uppercased, timing labels mapped, rows without a
// usable symbol or date dropped, and duplicates collapsed keeping the most
// complete row.
func NormalizeEarnings(entries []*models.EarningsEntry) []*models.EarningsRecord {
	byKey := make(map[string]*models.EarningsRecord)
	var order []string

	for _, entry := range entries {
		symbol := strings.ToUpper(strings.TrimSpace(entry.Symbol))
		if symbol == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", entry.ReportDate); err != nil {
			continue
		}

		record := &models.EarningsRecord{
			Symbol:        symbol,
			ReportDate:    entry.ReportDate,
			Timing:        NormalizeTiming(entry.TimingLabel),
			EPSActual:     entry.EPSActual,
			EPSEstimate:   entry.EPSEstimate,
			FiscalQuarter: entry.FiscalQuarter,
			FiscalYear:    entry.FiscalYear,
		}
		record.RevenueActual = models.BigIntFromPtr(entry.RevenueActual)
		record.RevenueEstimate = models.BigIntFromPtr(entry.RevenueEstimate)

		key := record.Key()
		existing, ok := byKey[key]
		if !ok {
			byKey[key] = record
			order = append(order, key)
			continue
		}
		if record.Completeness() > existing.Completeness() {
			byKey[key] = record
		}
	}

	out := make([]*models.EarningsRecord, 0, len(order))
	for _, key := range order {
		out = append(out, byKey[key])
	}
	return out
}

// NormalizeTiming maps a free-text announcement label to a canonical timing.
func NormalizeTiming(label string) string {
	normalized := strings.ToLower(strings.TrimSpace(label))
	if timing, ok := timingLabels[normalized]; ok {
		return timing
	}
	return models.TimingUnknown
}
