package badger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/timshannon/badgerhold/v4"

	"github.com/earnboard/earnboard/internal/common"
	"github.com/earnboard/earnboard/internal/models"
)

type reportStorage struct {
	store  *Store
	logger *common.Logger
	now    func() time.Time
}

// NewReportStorage creates a ReportStorage backed by BadgerHold.
func NewReportStorage(store *Store, logger *common.Logger) *reportStorage {
	return &reportStorage{store: store, logger: logger, now: time.Now}
}

func (s *reportStorage) Get(_ context.Context, symbol string) (*models.ReconciledReport, error) {
	var report models.ReconciledReport
	err := s.store.db.Get(symbol, &report)
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("report for '%s' not found", symbol)
		}
		return nil, fmt.Errorf("failed to get report for '%s': %w", symbol, err)
	}
	return &report, nil
}

// Upsert carries logo fields forward from the stored row so rebuilds never
// clobber the enrichment job's work, then skips the write when the builder
// fields are unchanged.
func (s *reportStorage) Upsert(_ context.Context, report *models.ReconciledReport) (bool, error) {
	var existing models.ReconciledReport
	err := s.store.db.Get(report.Symbol, &existing)
	if err == nil {
		report.LogoURL = existing.LogoURL
		report.LogoSource = existing.LogoSource
		report.LogoFetchedAt = existing.LogoFetchedAt
		if report.Equal(&existing) {
			return false, nil
		}
	} else if err != badgerhold.ErrNotFound {
		return false, fmt.Errorf("failed to read report '%s': %w", report.Symbol, err)
	}

	report.UpdatedAt = s.now().UTC()
	if err := s.store.db.Upsert(report.Symbol, report); err != nil {
		return false, fmt.Errorf("failed to save report '%s': %w", report.Symbol, err)
	}
	return true, nil
}

func (s *reportStorage) SetLogo(_ context.Context, symbol string, logo *models.LogoInfo) error {
	var report models.ReconciledReport
	if err := s.store.db.Get(symbol, &report); err != nil {
		if err == badgerhold.ErrNotFound {
			return fmt.Errorf("report for '%s' not found", symbol)
		}
		return fmt.Errorf("failed to read report '%s': %w", symbol, err)
	}

	fetched := s.now().UTC()
	report.LogoURL = logo.URL
	report.LogoSource = logo.Source
	report.LogoFetchedAt = &fetched

	if err := s.store.db.Upsert(symbol, &report); err != nil {
		return fmt.Errorf("failed to save logo for '%s': %w", symbol, err)
	}
	s.logger.Debug().Str("symbol", symbol).Str("source", logo.Source).Msg("Logo saved")
	return nil
}

func (s *reportStorage) List(_ context.Context) ([]*models.ReconciledReport, error) {
	var rows []models.ReconciledReport
	if err := s.store.db.Find(&rows, nil); err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	out := make([]*models.ReconciledReport, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (s *reportStorage) Delete(_ context.Context, symbol string) error {
	err := s.store.db.Delete(symbol, models.ReconciledReport{})
	if err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete report for '%s': %w", symbol, err)
	}
	return nil
}

func (s *reportStorage) DeleteAll(ctx context.Context) (int, error) {
	rows, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, row := range rows {
		if err := s.Delete(ctx, row.Symbol); err != nil {
			return deleted, err
		}
		deleted++
	}
	if deleted > 0 {
		s.logger.Debug().Int("deleted", deleted).Msg("Reports purged")
	}
	return deleted, nil
}
