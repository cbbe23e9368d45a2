package models

import (
	"sort"
	"time"
)

// Sub-session labels attached to raw price observations by the quote feed.
const (
	ObsPreMarket  = "pre_market"
	ObsLive       = "live"
	ObsAfterHours = "after_hours"
	ObsMinuteBar  = "minute_bar"
	ObsDayBar     = "day_bar"
	ObsPrevClose  = "prev_close"
)

// Size bucket constants derived from market cap.
const (
	SizeMega  = "mega"  // >= $100B
	SizeLarge = "large" // >= $10B
	SizeMid   = "mid"   // >= $1B
	SizeSmall = "small"
)

// PriceObservation is one raw price sample for a symbol, tagged with the
// sub-session it belongs to. Timestamp is in the feed's native unit; the
// resolver normalizes it to milliseconds.
type PriceObservation struct {
	Label     string  `json:"label"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"`
}

// QuoteBundle is everything the quote feed returns for one symbol in a single
// snapshot call.
type QuoteBundle struct {
	Symbol       string             `json:"symbol"`
	Name         string             `json:"name"`
	Observations []PriceObservation `json:"observations"`
	Shares       *int64             `json:"shares_outstanding"`
	MarketCap    *int64             `json:"market_cap"` // upstream-reported, may be absent
}

// PreviousClose is one row of the once-daily bulk previous-close snapshot.
type PreviousClose struct {
	Symbol   string  `json:"symbol"`
	Date     string  `json:"date"` // "2006-01-02"
	Close    float64 `json:"close"`
	AdjClose float64 `json:"adj_close"`
	Source   string  `json:"source"` // which day's snapshot satisfied the lookup
}

// CorporateAction is a dividend or split event used to explain outsized moves.
type CorporateAction struct {
	Symbol string    `json:"symbol"`
	Type   string    `json:"type"` // "dividend" or "split"
	Date   time.Time `json:"date"`
}

// QuoteObservation is the latest known market snapshot for one symbol, one
// row per symbol, overwritten each pipeline cycle. Written exclusively by the
// quote ingestion path.
type QuoteObservation struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`

	MarketCap      *BigInt  `json:"market_cap"`
	PrevMarketCap  *BigInt  `json:"prev_market_cap"`
	MarketCapDelta *BigInt  `json:"market_cap_delta"`
	Price          *float64 `json:"price"`
	PrevCloseRaw   *float64 `json:"prev_close_raw"`
	PrevCloseAdj   *float64 `json:"prev_close_adj"`
	PrevCloseFrom  string   `json:"prev_close_from"` // source tag for the reference value
	ChangePct      *float64 `json:"change_pct"`
	PriceSession   string   `json:"price_session"` // session the selected price belongs to
	SizeBucket     string   `json:"size_bucket"`

	QualityFlags []string `json:"quality_flags"`

	SymbolResolved    bool `json:"symbol_resolved"`
	MarketCapResolved bool `json:"market_cap_resolved"`
	PriceResolved     bool `json:"price_resolved"`
	FullyReady        bool `json:"fully_ready"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Refresh recomputes the aggregate readiness flag. FullyReady is the
// conjunction of the three component flags and is the sole gate for report
// eligibility.
func (q *QuoteObservation) Refresh() {
	q.MarketCapResolved = q.MarketCap != nil
	q.PriceResolved = q.Price != nil
	q.FullyReady = q.SymbolResolved && q.MarketCapResolved && q.PriceResolved
}

// Equal compares every business field, ignoring UpdatedAt.
func (q *QuoteObservation) Equal(other *QuoteObservation) bool {
	if other == nil {
		return false
	}
	return q.Symbol == other.Symbol &&
		q.Name == other.Name &&
		eqBigInt(q.MarketCap, other.MarketCap) &&
		eqBigInt(q.PrevMarketCap, other.PrevMarketCap) &&
		eqBigInt(q.MarketCapDelta, other.MarketCapDelta) &&
		eqFloat(q.Price, other.Price) &&
		eqFloat(q.PrevCloseRaw, other.PrevCloseRaw) &&
		eqFloat(q.PrevCloseAdj, other.PrevCloseAdj) &&
		q.PrevCloseFrom == other.PrevCloseFrom &&
		eqFloat(q.ChangePct, other.ChangePct) &&
		q.PriceSession == other.PriceSession &&
		q.SizeBucket == other.SizeBucket &&
		eqFlags(q.QualityFlags, other.QualityFlags) &&
		q.SymbolResolved == other.SymbolResolved &&
		q.MarketCapResolved == other.MarketCapResolved &&
		q.PriceResolved == other.PriceResolved &&
		q.FullyReady == other.FullyReady
}

// eqFlags compares two flag sets order-insensitively.
func eqFlags(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}
