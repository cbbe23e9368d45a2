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

type runStatusStorage struct {
	store  *Store
	logger *common.Logger
	now    func() time.Time
}

// NewRunStatusStorage creates a RunStatusStorage backed by BadgerHold.
func NewRunStatusStorage(store *Store, logger *common.Logger) *runStatusStorage {
	return &runStatusStorage{store: store, logger: logger, now: time.Now}
}

func (s *runStatusStorage) Get(_ context.Context, job string) (*models.PipelineRunStatus, error) {
	var status models.PipelineRunStatus
	err := s.store.db.Get(job, &status)
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("run status for job '%s' not found", job)
		}
		return nil, fmt.Errorf("failed to get run status for '%s': %w", job, err)
	}
	return &status, nil
}

func (s *runStatusStorage) Save(_ context.Context, status *models.PipelineRunStatus) error {
	status.UpdatedAt = s.now().UTC()
	if err := s.store.db.Upsert(status.Job, status); err != nil {
		return fmt.Errorf("failed to save run status for '%s': %w", status.Job, err)
	}
	return nil
}

func (s *runStatusStorage) List(_ context.Context) ([]*models.PipelineRunStatus, error) {
	var rows []models.PipelineRunStatus
	if err := s.store.db.Find(&rows, nil); err != nil {
		return nil, fmt.Errorf("failed to list run statuses: %w", err)
	}
	out := make([]*models.PipelineRunStatus, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Job < out[j].Job })
	return out, nil
}
