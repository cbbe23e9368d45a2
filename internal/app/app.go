// Package app wires configuration, storage, clients, and services into the
// shared core used by the server binary.
package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/earnboard/earnboard/internal/clients/earningsfeed"
	"github.com/earnboard/earnboard/internal/clients/quotefeed"
	"github.com/earnboard/earnboard/internal/clients/retryhttp"
	"github.com/earnboard/earnboard/internal/common"
	"github.com/earnboard/earnboard/internal/interfaces"
	"github.com/earnboard/earnboard/internal/marketclock"
	"github.com/earnboard/earnboard/internal/services/ingest"
	"github.com/earnboard/earnboard/internal/services/logos"
	"github.com/earnboard/earnboard/internal/services/pipeline"
	"github.com/earnboard/earnboard/internal/services/reportbuilder"
	"github.com/earnboard/earnboard/internal/storage"
)

// App holds all initialized services, clients, and shared infrastructure.
type App struct {
	Config   *common.Config
	Logger   *common.Logger
	Storage  interfaces.StorageManager
	Calendar *marketclock.Calendar

	EarningsClient interfaces.EarningsFeedClient
	QuoteClient    interfaces.QuoteFeedClient

	EarningsService interfaces.EarningsIngestService
	QuoteService    interfaces.QuoteIngestService
	ReportBuilder   interfaces.ReportBuilderService
	LogoService     interfaces.LogoEnrichService
	Pipeline        interfaces.PipelineService

	StartupTime time.Time
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp initializes configuration, storage, clients, and services.
// configPath may be empty, in which case the default resolution logic is used.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	common.LoadVersionFromFile()
	binDir := getBinaryDir()

	// Config resolution: flag, env, binary dir, development fallback.
	if configPath == "" {
		configPath = os.Getenv("EARNBOARD_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "earnboard.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/earnboard.toml"
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if config.Storage.Path != "" && !filepath.IsAbs(config.Storage.Path) {
		config.Storage.Path = filepath.Join(binDir, config.Storage.Path)
	}

	logger := common.NewLoggerFromConfig(config.Logging)

	storageManager, err := storage.NewManager(logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	calendar, err := marketclock.NewCalendar(config.Exchange.Timezone)
	if err != nil {
		storageManager.Close()
		return nil, fmt.Errorf("failed to initialize market calendar: %w", err)
	}

	earningsClient := newEarningsClient(config, logger)
	quoteClient := newQuoteClient(config, logger)

	earningsService := ingest.NewEarningsService(earningsClient, storageManager, logger)
	quoteService := ingest.NewQuoteService(quoteClient, storageManager, calendar, config, logger)
	reportBuilder := reportbuilder.NewService(storageManager, calendar, logger)
	logoService := logos.NewService(
		logos.NewTemplateSource("cdn", "https://logo.clearbit.com/{symbol}.com"),
		storageManager, logger)

	orchestrator := pipeline.NewOrchestrator(
		earningsService, quoteService, reportBuilder, logoService,
		storageManager, calendar, config.Pipeline, logger)

	a := &App{
		Config:   config,
		Logger:   logger,
		Storage:  storageManager,
		Calendar: calendar,

		EarningsClient: earningsClient,
		QuoteClient:    quoteClient,

		EarningsService: earningsService,
		QuoteService:    quoteService,
		ReportBuilder:   reportBuilder,
		LogoService:     logoService,
		Pipeline:        orchestrator,

		StartupTime: startupStart,
	}

	logger.Info().
		Str("version", common.GetFullVersion()).
		Str("environment", config.Environment).
		Str("timezone", config.Exchange.Timezone).
		Dur("startup", time.Since(startupStart)).
		Msg("Application initialized")
	return a, nil
}

// Close releases all resources.
func (a *App) Close() error {
	if a.Pipeline != nil {
		a.Pipeline.Stop()
	}
	if a.Storage != nil {
		return a.Storage.Close()
	}
	return nil
}

func newEarningsClient(config *common.Config, logger *common.Logger) *earningsfeed.Client {
	feed := config.Clients.Earnings
	return earningsfeed.NewClient(feed.APIKey,
		earningsfeed.WithBaseURL(feed.BaseURL),
		earningsfeed.WithLogger(logger),
		earningsfeed.WithHTTPClient(newFeedTransport("earnings", feed, logger)),
	)
}

func newQuoteClient(config *common.Config, logger *common.Logger) *quotefeed.Client {
	feed := config.Clients.Quotes
	return quotefeed.NewClient(feed.APIKey,
		quotefeed.WithBaseURL(feed.BaseURL),
		quotefeed.WithLogger(logger),
		quotefeed.WithHTTPClient(newFeedTransport("quotes", feed, logger)),
	)
}

func newFeedTransport(name string, feed common.FeedConfig, logger *common.Logger) *retryhttp.Client {
	opts := []retryhttp.ClientOption{
		retryhttp.WithLogger(logger),
		retryhttp.WithTimeout(feed.GetTimeout()),
		retryhttp.WithRateLimit(feed.RateLimit),
		retryhttp.WithMaxRetries(feed.MaxRetries),
	}
	if feed.BreakerTrip > 0 {
		opts = append(opts, retryhttp.WithBreaker(
			retryhttp.NewBreaker(feed.BreakerTrip, time.Minute, 30*time.Second, 1)))
	}
	return retryhttp.NewClient(name, opts...)
}
