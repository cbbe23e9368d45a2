package badger

import (
	"context"
	"fmt"
	"sort"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"

	"github.com/earnboard/earnboard/internal/common"
	"github.com/earnboard/earnboard/internal/models"
)

// upsertChunkSize bounds how many calendar rows share one write transaction.
const upsertChunkSize = 100

type earningsStorage struct {
	store  *Store
	logger *common.Logger
	now    func() time.Time
}

// NewEarningsStorage creates an EarningsStorage backed by BadgerHold.
func NewEarningsStorage(store *Store, logger *common.Logger) *earningsStorage {
	return &earningsStorage{store: store, logger: logger, now: time.Now}
}

func earningsKey(date, symbol string) string {
	return fmt.Sprintf("%s|%s", date, symbol)
}

func (s *earningsStorage) Get(_ context.Context, date, symbol string) (*models.EarningsRecord, error) {
	var record models.EarningsRecord
	err := s.store.db.Get(earningsKey(date, symbol), &record)
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("earnings record for '%s' on %s not found", symbol, date)
		}
		return nil, fmt.Errorf("failed to get earnings record for '%s': %w", symbol, err)
	}
	return &record, nil
}

// Upsert writes the record only when a business field differs from the
// stored row, keeping UpdatedAt honest about when data last moved.
func (s *earningsStorage) Upsert(_ context.Context, record *models.EarningsRecord) (bool, error) {
	key := record.Key()

	var existing models.EarningsRecord
	err := s.store.db.Get(key, &existing)
	if err == nil && record.Equal(&existing) {
		return false, nil
	}
	if err != nil && err != badgerhold.ErrNotFound {
		return false, fmt.Errorf("failed to read earnings record '%s': %w", key, err)
	}

	record.UpdatedAt = s.now().UTC()
	if err := s.store.db.Upsert(key, record); err != nil {
		return false, fmt.Errorf("failed to save earnings record '%s': %w", key, err)
	}
	return true, nil
}

// UpsertBatch writes records in fixed-size chunks, one transaction per chunk,
// with the same changed-fields-only semantics as Upsert.
func (s *earningsStorage) UpsertBatch(_ context.Context, records []*models.EarningsRecord) (int, error) {
	written := 0
	for start := 0; start < len(records); start += upsertChunkSize {
		end := start + upsertChunkSize
		if end > len(records) {
			end = len(records)
		}
		chunk := records[start:end]

		chunkWritten := 0
		err := s.store.db.Badger().Update(func(tx *badgerdb.Txn) error {
			chunkWritten = 0
			for _, record := range chunk {
				key := record.Key()
				var existing models.EarningsRecord
				err := s.store.db.TxGet(tx, key, &existing)
				if err == nil && record.Equal(&existing) {
					continue
				}
				if err != nil && err != badgerhold.ErrNotFound {
					return fmt.Errorf("failed to read earnings record '%s': %w", key, err)
				}
				record.UpdatedAt = s.now().UTC()
				if err := s.store.db.TxUpsert(tx, key, record); err != nil {
					return fmt.Errorf("failed to save earnings record '%s': %w", key, err)
				}
				chunkWritten++
			}
			return nil
		})
		if err != nil {
			return written, err
		}
		written += chunkWritten
	}
	return written, nil
}

func (s *earningsStorage) ListByDate(_ context.Context, date string) ([]*models.EarningsRecord, error) {
	var records []models.EarningsRecord
	if err := s.store.db.Find(&records, badgerhold.Where("ReportDate").Eq(date)); err != nil {
		return nil, fmt.Errorf("failed to list earnings for %s: %w", date, err)
	}
	out := make([]*models.EarningsRecord, len(records))
	for i := range records {
		out[i] = &records[i]
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (s *earningsStorage) DeleteAll(_ context.Context) (int, error) {
	var records []models.EarningsRecord
	if err := s.store.db.Find(&records, nil); err != nil {
		return 0, fmt.Errorf("failed to find earnings records: %w", err)
	}
	deleted := 0
	for i := range records {
		if err := s.store.db.Delete(records[i].Key(), models.EarningsRecord{}); err != nil && err != badgerhold.ErrNotFound {
			return deleted, fmt.Errorf("failed to delete earnings record '%s': %w", records[i].Key(), err)
		}
		deleted++
	}
	if deleted > 0 {
		s.logger.Debug().Int("deleted", deleted).Msg("Earnings records purged")
	}
	return deleted, nil
}
