// Package interfaces defines service contracts for earnboard
package interfaces

import (
	"context"
	"time"

	"github.com/earnboard/earnboard/internal/models"
)

// EarningsFeedClient provides access to the earnings-calendar upstream.
type EarningsFeedClient interface {
	// GetCalendar retrieves all earnings entries with report dates in [from, to].
	GetCalendar(ctx context.Context, from, to time.Time) ([]*models.EarningsEntry, error)
}

// QuoteFeedClient provides access to the market-quote upstream.
type QuoteFeedClient interface {
	// GetSnapshot retrieves the latest quote snapshot for one canonical symbol.
	GetSnapshot(ctx context.Context, symbol string) (*models.QuoteBundle, error)

	// GetBulkPreviousClose retrieves the once-daily previous-close snapshot
	// for every symbol on the exchange.
	GetBulkPreviousClose(ctx context.Context, date time.Time) ([]models.PreviousClose, error)

	// GetCorporateActions retrieves dividends and splits since the given date.
	GetCorporateActions(ctx context.Context, symbol string, since time.Time) ([]models.CorporateAction, error)
}

// LogoSource resolves company logo and brand metadata for a symbol.
type LogoSource interface {
	// GetLogo returns logo URLs for a symbol. A nil result with nil error
	// means the source has no logo for that symbol.
	GetLogo(ctx context.Context, symbol string) (*models.LogoInfo, error)
}
