// Package interfaces defines service contracts for earnboard
package interfaces

import (
	"context"

	"github.com/earnboard/earnboard/internal/models"
)

// StorageManager coordinates all storage tables over a single embedded store.
type StorageManager interface {
	EarningsStorage() EarningsStorage
	QuoteStorage() QuoteStorage
	ReportStorage() ReportStorage
	RunStatusStorage() RunStatusStorage
	KVStorage() KeyValueStorage

	// DataPath returns the base data directory path.
	DataPath() string

	// Lifecycle
	Close() error
}

// EarningsStorage persists earnings calendar rows, keyed by (date, symbol).
type EarningsStorage interface {
	Get(ctx context.Context, date, symbol string) (*models.EarningsRecord, error)
	// Upsert writes the record only when its business fields changed.
	// Returns true when a write happened.
	Upsert(ctx context.Context, record *models.EarningsRecord) (bool, error)
	// UpsertBatch applies the same change-aware write to many records,
	// chunked into fixed-size transactions. Returns how many rows were
	// actually written.
	UpsertBatch(ctx context.Context, records []*models.EarningsRecord) (int, error)
	ListByDate(ctx context.Context, date string) ([]*models.EarningsRecord, error)
	DeleteAll(ctx context.Context) (int, error)
}

// QuoteStorage persists the latest reconciled market snapshot per symbol.
type QuoteStorage interface {
	Get(ctx context.Context, symbol string) (*models.QuoteObservation, error)
	Upsert(ctx context.Context, obs *models.QuoteObservation) (bool, error)
	List(ctx context.Context) ([]*models.QuoteObservation, error)
	// ListReady returns only fully-ready rows (symbol, price, and market cap
	// all resolved), the join set for report building.
	ListReady(ctx context.Context) ([]*models.QuoteObservation, error)
	DeleteAll(ctx context.Context) (int, error)
}

// ReportStorage persists reconciled per-symbol reports.
type ReportStorage interface {
	Get(ctx context.Context, symbol string) (*models.ReconciledReport, error)
	// Upsert preserves logo fields already present on the stored row and
	// skips the write when no builder-owned field changed.
	Upsert(ctx context.Context, report *models.ReconciledReport) (bool, error)
	// SetLogo writes only the logo fields of an existing report.
	SetLogo(ctx context.Context, symbol string, logo *models.LogoInfo) error
	// List returns all reports ordered by symbol.
	List(ctx context.Context) ([]*models.ReconciledReport, error)
	Delete(ctx context.Context, symbol string) error
	DeleteAll(ctx context.Context) (int, error)
}

// RunStatusStorage persists one status row per named job.
type RunStatusStorage interface {
	Get(ctx context.Context, job string) (*models.PipelineRunStatus, error)
	Save(ctx context.Context, status *models.PipelineRunStatus) error
	List(ctx context.Context) ([]*models.PipelineRunStatus, error)
}

// KeyValueStorage stores small system-level values (watermarks, markers).
type KeyValueStorage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
