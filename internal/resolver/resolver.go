package resolver

import (
	"math"
	"time"

	"github.com/earnboard/earnboard/internal/marketclock"
	"github.com/earnboard/earnboard/internal/models"
)

// Size bucket thresholds in dollars. Canonical table: Mega >= $100B,
// Large >= $10B, Mid >= $1B, else Small.
const (
	megaFloor  = 100_000_000_000
	largeFloor = 10_000_000_000
	midFloor   = 1_000_000_000
)

// Input is one symbol's worth of reference data for a resolution pass.
type Input struct {
	Symbol       string
	Observations []models.PriceObservation
	PrevClose    *models.PreviousClose
	Shares       *int64
	UpstreamCap  *int64

	Session            marketclock.Session
	Now                time.Time
	AllowStaleFallback bool

	// RecentCorpAction is true when a dividend or split within the lookback
	// window plausibly explains an outsized move.
	RecentCorpAction bool

	// SymbolResolved is true once any upstream responded for the symbol.
	SymbolResolved bool
}

// Result is the canonical per-symbol reconciliation output.
type Result struct {
	Price        *float64
	PriceSession string // sub-session label of the selected observation
	ChangePct    *float64

	MarketCap      *int64
	PrevMarketCap  *int64
	MarketCapDelta *int64

	SizeBucket string
	Flags      []string

	SymbolResolved    bool
	MarketCapResolved bool
	PriceResolved     bool
	FullyReady        bool
}

// Resolve runs the full reconciliation for one symbol: price selection,
// change percentage, market caps, size bucket, and readiness flags. Pure
// aside from reading Input.Now.
func Resolve(in Input) Result {
	out := Result{SymbolResolved: in.SymbolResolved}

	price, priceLabel := SelectPrice(in.Observations, in.Session, in.Now, in.AllowStaleFallback)
	out.Price = price
	out.PriceSession = priceLabel
	if price == nil {
		out.Flags = append(out.Flags, FlagNoPrice)
	}

	var prevClose *float64
	if in.PrevClose != nil {
		// Adjusted close is the comparison reference; fall back to raw.
		ref := in.PrevClose.AdjClose
		if ref <= 0 {
			ref = in.PrevClose.Close
		}
		if ref > 0 {
			prevClose = &ref
		}
	}

	if price != nil && prevClose != nil {
		out.ChangePct = ChangePercent(*price, *prevClose)
	}
	if out.ChangePct == nil {
		out.Flags = append(out.Flags, FlagNoChangePct)
	} else if math.Abs(*out.ChangePct) >= spikeThresholdPct {
		if in.RecentCorpAction {
			out.Flags = append(out.Flags, FlagCorpAction)
		} else {
			out.Flags = append(out.Flags, FlagSpike)
		}
	}

	caps := ResolveMarketCaps(in.UpstreamCap, in.Shares, price, prevClose, out.ChangePct)
	out.MarketCap = caps.Current
	out.PrevMarketCap = caps.Previous
	out.MarketCapDelta = caps.Delta
	out.Flags = append(out.Flags, caps.Flags...)

	out.SizeBucket = SizeBucket(out.MarketCap)

	out.MarketCapResolved = out.MarketCap != nil
	out.PriceResolved = out.Price != nil
	out.FullyReady = out.SymbolResolved && out.MarketCapResolved && out.PriceResolved

	return out
}

// SizeBucket classifies a market cap. An undefined cap yields no bucket.
func SizeBucket(marketCap *int64) string {
	if marketCap == nil {
		return ""
	}
	switch {
	case *marketCap >= megaFloor:
		return models.SizeMega
	case *marketCap >= largeFloor:
		return models.SizeLarge
	case *marketCap >= midFloor:
		return models.SizeMid
	default:
		return models.SizeSmall
	}
}
