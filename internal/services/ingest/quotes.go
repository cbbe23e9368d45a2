package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/earnboard/earnboard/internal/clients/retryhttp"
	"github.com/earnboard/earnboard/internal/common"
	"github.com/earnboard/earnboard/internal/interfaces"
	"github.com/earnboard/earnboard/internal/marketclock"
	"github.com/earnboard/earnboard/internal/models"
	"github.com/earnboard/earnboard/internal/resolver"
)

// corpActionLookback is how far back a dividend or split still plausibly
// explains an outsized price move.
const corpActionLookback = 14 * 24 * time.Hour

// QuoteService refreshes the reconciled market snapshot for a symbol
// universe against the rate-limited quote feed.
type QuoteService struct {
	client   interfaces.QuoteFeedClient
	storage  interfaces.StorageManager
	calendar *marketclock.Calendar
	logger   *common.Logger

	batchSize          int
	maxConcurrent      int
	batchDelay         time.Duration
	allowStaleFallback bool

	// prevCloses caches one trading day's bulk snapshot keyed by date; the
	// bulk endpoint is the expensive call and one fetch serves every symbol.
	prevCloses *common.TTLCache[string, map[string]models.PreviousClose]
	// corpActions caches per-symbol action lookups, which only happen for
	// symbols whose move crossed the spike threshold.
	corpActions *common.TTLCache[string, []models.CorporateAction]
	// lastShares remembers shares outstanding per symbol so the market-cap
	// chain keeps working on cycles where the snapshot omits them.
	lastShares *common.TTLCache[string, int64]

	now func() time.Time
}

// QuoteServiceOption configures the quote service.
type QuoteServiceOption func(*QuoteService)

// WithNow sets the clock source.
func WithNow(now func() time.Time) QuoteServiceOption {
	return func(s *QuoteService) {
		s.now = now
	}
}

// NewQuoteService creates the quote ingestion service.
func NewQuoteService(
	client interfaces.QuoteFeedClient,
	storage interfaces.StorageManager,
	calendar *marketclock.Calendar,
	config *common.Config,
	logger *common.Logger,
	opts ...QuoteServiceOption,
) *QuoteService {
	pipeline := config.Pipeline
	s := &QuoteService{
		client:             client,
		storage:            storage,
		calendar:           calendar,
		logger:             logger,
		batchSize:          pipeline.BatchSize,
		maxConcurrent:      pipeline.MaxConcurrent,
		batchDelay:         pipeline.GetBatchDelay(),
		allowStaleFallback: pipeline.AllowStaleFallback,
		prevCloses:         common.NewTTLCache[string, map[string]models.PreviousClose](common.FreshnessPreviousClose),
		corpActions:        common.NewTTLCache[string, []models.CorporateAction](common.FreshnessCorpActions),
		lastShares:         common.NewTTLCache[string, int64](common.FreshnessShares),
		now:                time.Now,
	}
	if s.batchSize <= 0 {
		s.batchSize = 25
	}
	if s.maxConcurrent <= 0 {
		s.maxConcurrent = 5
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest fetches, reconciles, and upserts a quote observation for every
// symbol. Symbols are processed in batches with a delay between them to stay
// inside the feed's rate budget; per-symbol failures are isolated. An error
// is returned only when nothing succeeded.
func (s *QuoteService) Ingest(ctx context.Context, symbols []string, tradingDay time.Time) (int, error) {
	if len(symbols) == 0 {
		return 0, nil
	}

	closes, err := s.previousCloses(ctx, tradingDay)
	if err != nil {
		// Change percentages degrade to absent; prices still flow.
		s.logger.Warn().Err(err).Msg("Previous close snapshot unavailable")
		closes = map[string]models.PreviousClose{}
	}

	written := 0
	failed := 0
	var firstErr error
	var mu sync.Mutex

	for start := 0; start < len(symbols); start += s.batchSize {
		if ctx.Err() != nil {
			break
		}
		end := start + s.batchSize
		if end > len(symbols) {
			end = len(symbols)
		}
		batch := symbols[start:end]

		sem := make(chan struct{}, s.maxConcurrent)
		var wg sync.WaitGroup
		for _, symbol := range batch {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
			}
			if ctx.Err() != nil {
				break
			}
			wg.Add(1)
			go func(symbol string) {
				defer wg.Done()
				defer func() { <-sem }()

				wrote, err := s.ingestSymbol(ctx, symbol, closes)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					failed++
					if firstErr == nil {
						firstErr = fmt.Errorf("%s: %w", symbol, err)
					}
					s.logger.Warn().Str("symbol", symbol).Err(err).Msg("Quote ingestion failed")
					if isPermanent(err) {
						s.markFetchFailed(ctx, symbol)
					}
					return
				}
				if wrote {
					written++
				}
			}(symbol)
		}
		wg.Wait()

		if end < len(symbols) && s.batchDelay > 0 {
			select {
			case <-time.After(s.batchDelay):
			case <-ctx.Done():
			}
		}
	}

	s.logger.Info().
		Int("symbols", len(symbols)).
		Int("written", written).
		Int("failed", failed).
		Msg("Quote snapshots ingested")

	if failed == len(symbols) && firstErr != nil {
		return written, fmt.Errorf("all quote fetches failed: %w", firstErr)
	}
	return written, nil
}

// ingestSymbol runs one symbol end to end: snapshot, resolution, spike
// re-check against corporate actions, and the change-aware upsert.
func (s *QuoteService) ingestSymbol(ctx context.Context, symbol string, closes map[string]models.PreviousClose) (bool, error) {
	bundle, err := s.client.GetSnapshot(ctx, symbol)
	if err != nil {
		return false, err
	}

	shares := bundle.Shares
	if shares != nil {
		s.lastShares.Set(symbol, *shares)
	} else if cached, ok := s.lastShares.Get(symbol); ok {
		shares = &cached
	}

	now := s.now()
	in := resolver.Input{
		Symbol:             symbol,
		Observations:       bundle.Observations,
		Shares:             shares,
		UpstreamCap:        bundle.MarketCap,
		Session:            s.calendar.CurrentSession(now),
		Now:                now,
		AllowStaleFallback: s.allowStaleFallback,
		SymbolResolved:     true,
	}
	if pc, ok := closes[symbol]; ok {
		in.PrevClose = &pc
	}

	result := resolver.Resolve(in)

	// Corporate actions are only fetched when a move crossed the spike
	// threshold, keeping per-symbol calls off the hot path.
	if hasFlag(result.Flags, resolver.FlagSpike) {
		actions, err := s.recentActions(ctx, symbol)
		if err != nil {
			s.logger.Warn().Str("symbol", symbol).Err(err).Msg("Corporate action lookup failed")
		} else if len(actions) > 0 {
			in.RecentCorpAction = true
			result = resolver.Resolve(in)
		}
	}

	obs := s.toObservation(symbol, bundle, in.PrevClose, result)
	return s.storage.QuoteStorage().Upsert(ctx, obs)
}

func (s *QuoteService) toObservation(symbol string, bundle *models.QuoteBundle, prevClose *models.PreviousClose, result resolver.Result) *models.QuoteObservation {
	obs := &models.QuoteObservation{
		Symbol:            symbol,
		Name:              bundle.Name,
		MarketCap:         models.BigIntFromPtr(result.MarketCap),
		PrevMarketCap:     models.BigIntFromPtr(result.PrevMarketCap),
		MarketCapDelta:    models.BigIntFromPtr(result.MarketCapDelta),
		Price:             result.Price,
		ChangePct:         result.ChangePct,
		PriceSession:      result.PriceSession,
		SizeBucket:        result.SizeBucket,
		QualityFlags:      result.Flags,
		SymbolResolved:    result.SymbolResolved,
		MarketCapResolved: result.MarketCapResolved,
		PriceResolved:     result.PriceResolved,
		FullyReady:        result.FullyReady,
	}
	if prevClose != nil {
		raw := prevClose.Close
		adj := prevClose.AdjClose
		obs.PrevCloseRaw = &raw
		obs.PrevCloseAdj = &adj
		obs.PrevCloseFrom = prevClose.Source
	}
	return obs
}

// previousCloses returns the reference close map for the trading day,
// falling back one more trading day when the feed has not produced the
// previous day's snapshot yet.
func (s *QuoteService) previousCloses(ctx context.Context, tradingDay time.Time) (map[string]models.PreviousClose, error) {
	prevDay := s.calendar.PreviousTradingDay(tradingDay)

	key := prevDay.Format("2006-01-02")
	return s.prevCloses.GetOrLoad(key, func() (map[string]models.PreviousClose, error) {
		rows, err := s.client.GetBulkPreviousClose(ctx, prevDay)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			earlier := s.calendar.PreviousTradingDay(prevDay)
			s.logger.Debug().
				Str("wanted", key).
				Str("fallback", earlier.Format("2006-01-02")).
				Msg("Previous close snapshot empty, falling back a day")
			rows, err = s.client.GetBulkPreviousClose(ctx, earlier)
			if err != nil {
				return nil, err
			}
		}
		out := make(map[string]models.PreviousClose, len(rows))
		for _, row := range rows {
			out[row.Symbol] = row
		}
		return out, nil
	})
}

func (s *QuoteService) recentActions(ctx context.Context, symbol string) ([]models.CorporateAction, error) {
	return s.corpActions.GetOrLoad(symbol, func() ([]models.CorporateAction, error) {
		return s.client.GetCorporateActions(ctx, symbol, s.now().Add(-corpActionLookback))
	})
}

// isPermanent reports whether the upstream rejected the request outright, as
// opposed to a transient failure that may clear by the next cycle.
func isPermanent(err error) bool {
	var apiErr *retryhttp.APIError
	return errors.As(err, &apiErr) && !retryhttp.Retryable(err)
}

// markFetchFailed records a permanent per-symbol rejection as a quality flag
// so downstream consumers can see why the row carries no data. The row is
// never fully ready, which keeps it out of the reconciled report.
func (s *QuoteService) markFetchFailed(ctx context.Context, symbol string) {
	obs := &models.QuoteObservation{
		Symbol:       symbol,
		QualityFlags: []string{resolver.FlagFetchFailed},
	}
	if existing, err := s.storage.QuoteStorage().Get(ctx, symbol); err == nil {
		obs.Name = existing.Name
	}
	if _, err := s.storage.QuoteStorage().Upsert(ctx, obs); err != nil {
		s.logger.Warn().Str("symbol", symbol).Err(err).Msg("Failed to record fetch failure")
	}
}

func hasFlag(flags []string, flag string) bool {
	for _, f := range flags {
		if f == flag {
			return true
		}
	}
	return false
}
