// Package pipeline sequences the ingestion jobs into recurring reconciliation
// cycles and owns all run bookkeeping.
package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/earnboard/earnboard/internal/common"
	"github.com/earnboard/earnboard/internal/interfaces"
	"github.com/earnboard/earnboard/internal/marketclock"
	"github.com/earnboard/earnboard/internal/models"
)

// kvLastResetDay marks the exchange-local day the daily reset last ran, so a
// restart inside the same day never wipes twice.
const kvLastResetDay = "pipeline:last_reset_day"

// Orchestrator implements interfaces.PipelineService.
type Orchestrator struct {
	earnings interfaces.EarningsIngestService
	quotes   interfaces.QuoteIngestService
	reports  interfaces.ReportBuilderService
	logos    interfaces.LogoEnrichService
	storage  interfaces.StorageManager
	calendar *marketclock.Calendar
	logger   *common.Logger
	config   common.PipelineConfig

	// inRun is the single-flight gate: a cycle requested while another is
	// in flight is skipped, never queued.
	inRun bool
	runMu sync.Mutex

	cancel context.CancelFunc
	wg     sync.WaitGroup
	now    func() time.Time
}

// Option configures the orchestrator.
type Option func(*Orchestrator)

// WithNow sets the clock source.
func WithNow(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// NewOrchestrator creates the pipeline orchestrator.
func NewOrchestrator(
	earnings interfaces.EarningsIngestService,
	quotes interfaces.QuoteIngestService,
	reports interfaces.ReportBuilderService,
	logos interfaces.LogoEnrichService,
	storage interfaces.StorageManager,
	calendar *marketclock.Calendar,
	config common.PipelineConfig,
	logger *common.Logger,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		earnings: earnings,
		quotes:   quotes,
		reports:  reports,
		logos:    logos,
		storage:  storage,
		calendar: calendar,
		config:   config,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// safeGo launches a goroutine with panic recovery and logging.
func (o *Orchestrator) safeGo(name string, fn func()) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				o.logger.Error().
					Str("goroutine", name).
					Str("panic", fmt.Sprintf("%v", r)).
					Str("stack", string(debug.Stack())).
					Msg("Recovered from panic in pipeline goroutine")
			}
		}()
		fn()
	}()
}

// tryAcquire claims the single-flight slot without blocking.
func (o *Orchestrator) tryAcquire() bool {
	o.runMu.Lock()
	defer o.runMu.Unlock()
	if o.inRun {
		return false
	}
	o.inRun = true
	return true
}

func (o *Orchestrator) release() {
	o.runMu.Lock()
	o.inRun = false
	o.runMu.Unlock()
}

// RunCycle executes one full earnings -> quotes -> report -> logos cycle.
// Returns models.ErrRunInProgress when another cycle holds the slot; force
// only bypasses the quiet window, never the single-flight gate.
func (o *Orchestrator) RunCycle(ctx context.Context, force bool) (*models.PipelineRunStatus, error) {
	if !o.tryAcquire() {
		o.logger.Info().Msg("Pipeline cycle skipped - already running")
		return nil, models.ErrRunInProgress
	}
	defer o.release()

	if !force && o.inQuietWindow(ctx) {
		o.logger.Info().Msg("Pipeline cycle skipped - inside post-reset quiet window")
		return o.statusFor(ctx, models.JobPipeline), nil
	}

	if timeout := o.config.GetRunTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	now := o.now()
	tradingDay := o.calendar.TradingDay(now)
	status := o.begin(ctx, models.JobPipeline)

	total := 0
	err := func() error {
		n, err := o.runEarnings(ctx, tradingDay)
		total += n
		if err != nil {
			return err
		}

		n, err = o.runQuotes(ctx, tradingDay)
		total += n
		if err != nil {
			return err
		}

		n, err = o.runReports(ctx, tradingDay)
		total += n
		if err != nil {
			return err
		}

		// Logo enrichment is best effort and never fails the cycle.
		if o.logos != nil {
			if n, err := o.runLogos(ctx); err == nil {
				total += n
			}
		}
		return nil
	}()

	return o.finish(ctx, status, total, err), err
}

// RunJob executes a single named job outside the full cycle.
func (o *Orchestrator) RunJob(ctx context.Context, job string, tradingDay time.Time) (*models.PipelineRunStatus, error) {
	if !o.tryAcquire() {
		return nil, models.ErrRunInProgress
	}
	defer o.release()

	if tradingDay.IsZero() {
		tradingDay = o.calendar.TradingDay(o.now())
	}

	var n int
	var err error
	switch job {
	case models.JobEarningsFeed:
		n, err = o.runEarnings(ctx, tradingDay)
	case models.JobQuoteFeed:
		n, err = o.runQuotes(ctx, tradingDay)
	case models.JobReportBuild:
		n, err = o.runReports(ctx, tradingDay)
	case models.JobLogoEnrich:
		n, err = o.runLogos(ctx)
	case models.JobDailyReset:
		n, err = o.runReset(ctx)
	default:
		return nil, fmt.Errorf("unknown job %q", job)
	}
	_ = n
	return o.statusFor(ctx, job), err
}

// Status returns the most recent run status for every tracked job.
func (o *Orchestrator) Status(ctx context.Context) ([]*models.PipelineRunStatus, error) {
	return o.storage.RunStatusStorage().List(ctx)
}

// Start recovers from any crash the persisted state shows, then launches the
// scheduler loop. Safe to call once per process.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.recoverFromBoot(ctx)

	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.safeGo("scheduler", func() { o.scheduleLoop(runCtx) })

	o.logger.Info().
		Str("interval", o.config.Interval).
		Str("reset_time", o.config.ResetTime).
		Bool("allow_clear", o.config.AllowClear).
		Msg("Pipeline scheduler started")
	return nil
}

// Stop halts the scheduler and waits for any in-flight cycle to finish.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	o.wg.Wait()
	o.logger.Info().Msg("Pipeline scheduler stopped")
}

func (o *Orchestrator) scheduleLoop(ctx context.Context) {
	interval := o.config.GetInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// First cycle fires immediately so a fresh boot serves data without
	// waiting a full interval.
	o.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.tick(ctx)
		}
	}
}

// tick runs the daily reset when due, then a regular cycle.
func (o *Orchestrator) tick(ctx context.Context) {
	if o.resetDue(ctx) {
		if _, err := o.RunJob(ctx, models.JobDailyReset, time.Time{}); err != nil && err != models.ErrRunInProgress {
			o.logger.Error().Err(err).Msg("Daily reset failed")
		}
	}
	if _, err := o.RunCycle(ctx, false); err != nil && err != models.ErrRunInProgress {
		o.logger.Error().Err(err).Msg("Pipeline cycle failed")
	}
}

// --- individual jobs ---

func (o *Orchestrator) runEarnings(ctx context.Context, tradingDay time.Time) (int, error) {
	status := o.begin(ctx, models.JobEarningsFeed)
	n, err := o.earnings.Ingest(ctx, tradingDay)
	o.finish(ctx, status, n, err)
	return n, err
}

func (o *Orchestrator) runQuotes(ctx context.Context, tradingDay time.Time) (int, error) {
	status := o.begin(ctx, models.JobQuoteFeed)
	n, err := func() (int, error) {
		symbols, err := o.earnings.SymbolsForDate(ctx, tradingDay.Format("2006-01-02"))
		if err != nil {
			return 0, err
		}
		return o.quotes.Ingest(ctx, symbols, tradingDay)
	}()
	o.finish(ctx, status, n, err)
	return n, err
}

func (o *Orchestrator) runReports(ctx context.Context, tradingDay time.Time) (int, error) {
	status := o.begin(ctx, models.JobReportBuild)
	n, err := o.reports.Build(ctx, tradingDay)
	o.finish(ctx, status, n, err)
	return n, err
}

func (o *Orchestrator) runLogos(ctx context.Context) (int, error) {
	if o.logos == nil {
		return 0, nil
	}
	status := o.begin(ctx, models.JobLogoEnrich)
	n, err := o.logos.Enrich(ctx)
	o.finish(ctx, status, n, err)
	return n, err
}

// runReset wipes all ingested and derived tables so the new day starts
// clean. Gated by the allow_clear config; when the gate is off the reset only
// records the day.
func (o *Orchestrator) runReset(ctx context.Context) (int, error) {
	status := o.begin(ctx, models.JobDailyReset)
	n, err := func() (int, error) {
		deleted := 0
		if o.config.AllowClear {
			ne, err := o.storage.EarningsStorage().DeleteAll(ctx)
			if err != nil {
				return deleted, err
			}
			deleted += ne
			nq, err := o.storage.QuoteStorage().DeleteAll(ctx)
			if err != nil {
				return deleted, err
			}
			deleted += nq
			nr, err := o.storage.ReportStorage().DeleteAll(ctx)
			if err != nil {
				return deleted, err
			}
			deleted += nr
		}
		day := o.localDay(o.now())
		if err := o.storage.KVStorage().Set(ctx, kvLastResetDay, day); err != nil {
			return deleted, err
		}
		o.logger.Info().Str("day", day).Int("deleted", deleted).Bool("cleared", o.config.AllowClear).Msg("Daily reset complete")
		return deleted, nil
	}()
	o.finish(ctx, status, n, err)
	return n, err
}

// --- reset and quiet-window timing ---

func (o *Orchestrator) localDay(t time.Time) string {
	return t.In(o.calendar.Location()).Format("2006-01-02")
}

// resetDue reports whether the exchange-local clock has passed the reset
// time and the reset has not run today.
func (o *Orchestrator) resetDue(ctx context.Context) bool {
	now := o.now().In(o.calendar.Location())
	minutes := now.Hour()*60 + now.Minute()
	if minutes < o.config.ResetClock() {
		return false
	}
	last, err := o.storage.KVStorage().Get(ctx, kvLastResetDay)
	if err == nil && last == o.localDay(now) {
		return false
	}
	return true
}

// inQuietWindow reports whether the current time falls inside the
// post-reset suppression window, during which interval cycles are skipped so
// the wiped tables are not half-rebuilt against a feed that has not rolled
// to the new day yet.
func (o *Orchestrator) inQuietWindow(ctx context.Context) bool {
	window := o.config.GetQuietWindow()
	if window <= 0 {
		return false
	}
	last, err := o.storage.KVStorage().Get(ctx, kvLastResetDay)
	if err != nil {
		return false
	}
	now := o.now().In(o.calendar.Location())
	if last != o.localDay(now) {
		return false
	}
	resetAt := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, o.calendar.Location()).
		Add(time.Duration(o.config.ResetClock()) * time.Minute)
	return now.After(resetAt) && now.Before(resetAt.Add(window))
}

// recoverFromBoot repairs run state a crash left behind: any job still
// marked running is closed out as an error so the single-flight decision is
// made from honest state.
func (o *Orchestrator) recoverFromBoot(ctx context.Context) {
	statuses, err := o.storage.RunStatusStorage().List(ctx)
	if err != nil {
		o.logger.Warn().Err(err).Msg("Boot recovery could not read run state")
		return
	}
	now := o.now()
	for _, status := range statuses {
		if status.Status != models.RunStatusRunning {
			continue
		}
		status.Status = models.RunStatusError
		status.FinishedAt = now.UTC()
		status.LastError = "interrupted by restart"
		if err := o.storage.RunStatusStorage().Save(ctx, status); err != nil {
			o.logger.Warn().Str("job", status.Job).Err(err).Msg("Boot recovery save failed")
			continue
		}
		o.logger.Warn().Str("job", status.Job).Str("run_id", status.RunID).Msg("Closed run interrupted by restart")
	}
}

// --- run bookkeeping ---

func (o *Orchestrator) begin(ctx context.Context, job string) *models.PipelineRunStatus {
	status := &models.PipelineRunStatus{
		Job:       job,
		RunID:     uuid.New().String(),
		Status:    models.RunStatusRunning,
		StartedAt: o.now().UTC(),
	}
	if err := o.storage.RunStatusStorage().Save(ctx, status); err != nil {
		o.logger.Warn().Str("job", job).Err(err).Msg("Failed to persist run start")
	}
	o.logger.Debug().Str("job", job).Str("run_id", status.RunID).Msg("Job started")
	return status
}

func (o *Orchestrator) finish(ctx context.Context, status *models.PipelineRunStatus, records int, err error) *models.PipelineRunStatus {
	status.FinishedAt = o.now().UTC()
	status.RecordsProcessed = records
	if err != nil {
		status.Status = models.RunStatusError
		status.LastError = err.Error()
	} else {
		status.Status = models.RunStatusSuccess
		status.LastError = ""
	}
	if saveErr := o.storage.RunStatusStorage().Save(ctx, status); saveErr != nil {
		o.logger.Warn().Str("job", status.Job).Err(saveErr).Msg("Failed to persist run finish")
	}

	event := o.logger.Info()
	if err != nil {
		event = o.logger.Error().Err(err)
	}
	event.
		Str("job", status.Job).
		Str("run_id", status.RunID).
		Int("records", records).
		Dur("elapsed", status.FinishedAt.Sub(status.StartedAt)).
		Msg("Job finished")
	return status
}

func (o *Orchestrator) statusFor(ctx context.Context, job string) *models.PipelineRunStatus {
	status, err := o.storage.RunStatusStorage().Get(ctx, job)
	if err != nil {
		return &models.PipelineRunStatus{Job: job, Status: models.RunStatusIdle}
	}
	return status
}
