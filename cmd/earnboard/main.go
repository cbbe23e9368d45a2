package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/earnboard/earnboard/internal/app"
	"github.com/earnboard/earnboard/internal/models"
	"github.com/earnboard/earnboard/internal/server"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to config file (default: EARNBOARD_CONFIG, then earnboard.toml beside the binary)")
		jobName    = flag.String("job", "", "run one job and exit: earnings_feed, quote_feed, report_build, logo_enrich, daily_reset, pipeline")
		dateStr    = flag.String("date", "", "trading day for -job as YYYY-MM-DD (default: today)")
		force      = flag.Bool("force", false, "bypass the post-reset quiet window")
	)
	flag.Parse()

	a, err := app.NewApp(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize app: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	if *jobName != "" {
		os.Exit(runOnce(a, *jobName, *dateStr, *force))
	}

	runServer(a)
}

// runOnce executes a single job and reports its outcome, for cron use and
// local debugging.
func runOnce(a *app.App, job, dateStr string, force bool) int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var tradingDay time.Time
	if dateStr != "" {
		parsed, err := time.ParseInLocation("2006-01-02", dateStr, a.Calendar.Location())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid -date %q: %v\n", dateStr, err)
			return 2
		}
		tradingDay = parsed
	}

	var status *models.PipelineRunStatus
	var err error
	if job == models.JobPipeline {
		status, err = a.Pipeline.RunCycle(ctx, force)
	} else {
		status, err = a.Pipeline.RunJob(ctx, job, tradingDay)
	}
	if err != nil {
		a.Logger.Error().Str("job", job).Err(err).Msg("Job failed")
		return 1
	}
	if status != nil {
		a.Logger.Info().
			Str("job", status.Job).
			Str("status", status.Status).
			Int("records", status.RecordsProcessed).
			Msg("Job complete")
	}
	return 0
}

// runServer starts the scheduler and the read API and blocks until a
// shutdown signal arrives.
func runServer(a *app.App) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.Pipeline.Start(ctx); err != nil {
		a.Logger.Fatal().Err(err).Msg("Pipeline scheduler failed to start")
	}

	srv := server.NewServer(a)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			a.Logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	a.Logger.Info().
		Str("url", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)).
		Msg("Server ready")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	a.Logger.Info().Msg("Shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.Logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	a.Logger.Info().Msg("Server stopped")
}
