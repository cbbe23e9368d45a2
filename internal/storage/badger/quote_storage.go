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

type quoteStorage struct {
	store  *Store
	logger *common.Logger
	now    func() time.Time
}

// NewQuoteStorage creates a QuoteStorage backed by BadgerHold.
func NewQuoteStorage(store *Store, logger *common.Logger) *quoteStorage {
	return &quoteStorage{store: store, logger: logger, now: time.Now}
}

func (s *quoteStorage) Get(_ context.Context, symbol string) (*models.QuoteObservation, error) {
	var obs models.QuoteObservation
	err := s.store.db.Get(symbol, &obs)
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("quote observation for '%s' not found", symbol)
		}
		return nil, fmt.Errorf("failed to get quote observation for '%s': %w", symbol, err)
	}
	return &obs, nil
}

func (s *quoteStorage) Upsert(_ context.Context, obs *models.QuoteObservation) (bool, error) {
	var existing models.QuoteObservation
	err := s.store.db.Get(obs.Symbol, &existing)
	if err == nil && obs.Equal(&existing) {
		return false, nil
	}
	if err != nil && err != badgerhold.ErrNotFound {
		return false, fmt.Errorf("failed to read quote observation '%s': %w", obs.Symbol, err)
	}

	obs.UpdatedAt = s.now().UTC()
	if err := s.store.db.Upsert(obs.Symbol, obs); err != nil {
		return false, fmt.Errorf("failed to save quote observation '%s': %w", obs.Symbol, err)
	}
	return true, nil
}

func (s *quoteStorage) List(_ context.Context) ([]*models.QuoteObservation, error) {
	var rows []models.QuoteObservation
	if err := s.store.db.Find(&rows, nil); err != nil {
		return nil, fmt.Errorf("failed to list quote observations: %w", err)
	}
	return sortQuotes(rows), nil
}

func (s *quoteStorage) ListReady(_ context.Context) ([]*models.QuoteObservation, error) {
	var rows []models.QuoteObservation
	if err := s.store.db.Find(&rows, badgerhold.Where("FullyReady").Eq(true)); err != nil {
		return nil, fmt.Errorf("failed to list ready quote observations: %w", err)
	}
	return sortQuotes(rows), nil
}

func (s *quoteStorage) DeleteAll(_ context.Context) (int, error) {
	var rows []models.QuoteObservation
	if err := s.store.db.Find(&rows, nil); err != nil {
		return 0, fmt.Errorf("failed to find quote observations: %w", err)
	}
	deleted := 0
	for i := range rows {
		if err := s.store.db.Delete(rows[i].Symbol, models.QuoteObservation{}); err != nil && err != badgerhold.ErrNotFound {
			return deleted, fmt.Errorf("failed to delete quote observation '%s': %w", rows[i].Symbol, err)
		}
		deleted++
	}
	if deleted > 0 {
		s.logger.Debug().Int("deleted", deleted).Msg("Quote observations purged")
	}
	return deleted, nil
}

func sortQuotes(rows []models.QuoteObservation) []*models.QuoteObservation {
	out := make([]*models.QuoteObservation, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}
