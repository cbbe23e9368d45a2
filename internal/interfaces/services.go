// Package interfaces defines service contracts for earnboard
package interfaces

import (
	"context"
	"time"

	"github.com/earnboard/earnboard/internal/models"
)

// EarningsIngestService pulls the earnings calendar and normalizes it into
// storage.
type EarningsIngestService interface {
	// Ingest fetches the calendar window around the trading day and upserts
	// normalized records. Returns the number of rows written.
	Ingest(ctx context.Context, tradingDay time.Time) (int, error)

	// SymbolsForDate returns the symbol universe reporting on a date.
	SymbolsForDate(ctx context.Context, date string) ([]string, error)
}

// QuoteIngestService refreshes market snapshots for a symbol universe.
type QuoteIngestService interface {
	// Ingest fetches, reconciles, and upserts a quote observation for every
	// symbol. Per-symbol failures are isolated; the first error is reported
	// only when nothing succeeded. Returns the number of rows written.
	Ingest(ctx context.Context, symbols []string, tradingDay time.Time) (int, error)
}

// ReportBuilderService joins earnings and quote rows into reconciled reports.
type ReportBuilderService interface {
	// Build produces reports for the trading day and upserts them. Returns
	// the number of rows written. Building twice from unchanged inputs
	// writes nothing the second time.
	Build(ctx context.Context, tradingDay time.Time) (int, error)
}

// LogoEnrichService fills logo fields on stored reports.
type LogoEnrichService interface {
	// Enrich resolves logos for reports missing them. Returns the number of
	// reports updated.
	Enrich(ctx context.Context) (int, error)
}

// PipelineService sequences the ingestion jobs and owns run bookkeeping.
type PipelineService interface {
	// RunCycle executes one full earnings -> quotes -> report cycle.
	// Returns models.ErrRunInProgress when a cycle is already running.
	RunCycle(ctx context.Context, force bool) (*models.PipelineRunStatus, error)

	// RunJob executes a single named job outside the full cycle.
	RunJob(ctx context.Context, job string, tradingDay time.Time) (*models.PipelineRunStatus, error)

	// Status returns the most recent run status for every tracked job.
	Status(ctx context.Context) ([]*models.PipelineRunStatus, error)

	// Start launches the recurring scheduler; Stop halts it and waits for
	// any in-flight cycle to finish.
	Start(ctx context.Context) error
	Stop()
}
