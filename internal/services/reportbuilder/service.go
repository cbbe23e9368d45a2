// Package reportbuilder joins the earnings calendar with reconciled quote
// snapshots into the per-symbol report rows the read API serves.
package reportbuilder

import (
	"context"
	"fmt"
	"time"

	"github.com/earnboard/earnboard/internal/common"
	"github.com/earnboard/earnboard/internal/interfaces"
	"github.com/earnboard/earnboard/internal/marketclock"
	"github.com/earnboard/earnboard/internal/models"
	"github.com/earnboard/earnboard/internal/resolver"
)

// Service implements interfaces.ReportBuilderService.
type Service struct {
	storage  interfaces.StorageManager
	calendar *marketclock.Calendar
	logger   *common.Logger
}

// NewService creates the report builder.
func NewService(storage interfaces.StorageManager, calendar *marketclock.Calendar, logger *common.Logger) *Service {
	return &Service{storage: storage, calendar: calendar, logger: logger}
}

// Build joins the trading day's earnings rows with fully-ready quote
// observations, and upserts one report per symbol in the intersection.
// Symbols missing from either side produce no report. Building twice from
// unchanged inputs writes nothing the second time.
func (s *Service) Build(ctx context.Context, tradingDay time.Time) (int, error) {
	date := tradingDay.Format("2006-01-02")

	earnings, err := s.storage.EarningsStorage().ListByDate(ctx, date)
	if err != nil {
		return 0, fmt.Errorf("failed to load earnings for %s: %w", date, err)
	}
	quotes, err := s.storage.QuoteStorage().ListReady(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load quote observations: %w", err)
	}

	quotesBySymbol := make(map[string]*models.QuoteObservation, len(quotes))
	for _, q := range quotes {
		quotesBySymbol[q.Symbol] = q
	}

	// Both report dates are pinned to exchange-local midnight of the trading
	// day so repeated intraday builds never drift a record's day.
	midnight := s.calendar.Midnight(tradingDay)

	written := 0
	joined := 0
	for _, e := range earnings {
		q, ok := quotesBySymbol[e.Symbol]
		if !ok {
			continue
		}
		joined++

		report := s.assemble(e, q, midnight)
		wrote, err := s.storage.ReportStorage().Upsert(ctx, report)
		if err != nil {
			return written, fmt.Errorf("failed to save report for %s: %w", e.Symbol, err)
		}
		if wrote {
			written++
		}
	}

	s.logger.Info().
		Str("date", date).
		Int("earnings", len(earnings)).
		Int("joined", joined).
		Int("written", written).
		Msg("Reports built")
	return written, nil
}

func (s *Service) assemble(e *models.EarningsRecord, q *models.QuoteObservation, midnight time.Time) *models.ReconciledReport {
	report := &models.ReconciledReport{
		Symbol:     e.Symbol,
		Name:       q.Name,
		SizeBucket: q.SizeBucket,

		MarketCap:      q.MarketCap,
		MarketCapDelta: q.MarketCapDelta,
		Price:          q.Price,
		ChangePct:      q.ChangePct,

		Timing:          e.Timing,
		EPSActual:       e.EPSActual,
		EPSEstimate:     e.EPSEstimate,
		RevenueActual:   e.RevenueActual,
		RevenueEstimate: e.RevenueEstimate,

		ReportDate: midnight,
		SnapshotAt: midnight,
	}

	report.EPSSurprisePct = resolver.SurprisePercent(e.EPSActual, e.EPSEstimate)

	var revActual, revEstimate *float64
	if v, ok := e.RevenueActual.Int64(); ok {
		f := float64(v)
		revActual = &f
	}
	if v, ok := e.RevenueEstimate.Int64(); ok {
		f := float64(v)
		revEstimate = &f
	}
	report.RevenueSurprisePct = resolver.SurprisePercent(revActual, revEstimate)

	return report
}
