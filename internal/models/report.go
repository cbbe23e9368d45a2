package models

import "time"

// ReconciledReport is the externally visible artifact: one row per symbol
// joining the earnings calendar with the reconciled quote snapshot. Rebuilt
// by the report builder every pipeline cycle; the logo fields are owned by
// the enrichment job and preserved across rebuilds.
type ReconciledReport struct {
	Symbol     string `json:"symbol"`
	Name       string `json:"name"`
	SizeBucket string `json:"size_bucket"`

	MarketCap      *BigInt  `json:"market_cap"`
	MarketCapDelta *BigInt  `json:"market_cap_delta"`
	Price          *float64 `json:"price"`
	ChangePct      *float64 `json:"change_pct"`

	Timing             string   `json:"timing"`
	EPSActual          *float64 `json:"eps_actual"`
	EPSEstimate        *float64 `json:"eps_estimate"`
	EPSSurprisePct     *float64 `json:"eps_surprise_pct"`
	RevenueActual      *BigInt  `json:"revenue_actual"`
	RevenueEstimate    *BigInt  `json:"revenue_estimate"`
	RevenueSurprisePct *float64 `json:"revenue_surprise_pct"`

	// Written by the logo enrichment job, never by the report builder.
	LogoURL       string     `json:"logo_url,omitempty"`
	LogoSource    string     `json:"logo_source,omitempty"`
	LogoFetchedAt *time.Time `json:"logo_fetched_at,omitempty"`

	// Both pinned to exchange-local midnight of the run's trading day so
	// repeated intraday runs never drift the day a record belongs to.
	ReportDate time.Time `json:"report_date"`
	SnapshotAt time.Time `json:"snapshot_at"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Equal compares every field the report builder owns, ignoring the logo
// fields and UpdatedAt. Used by the change-aware upsert.
func (r *ReconciledReport) Equal(other *ReconciledReport) bool {
	if other == nil {
		return false
	}
	return r.Symbol == other.Symbol &&
		r.Name == other.Name &&
		r.SizeBucket == other.SizeBucket &&
		eqBigInt(r.MarketCap, other.MarketCap) &&
		eqBigInt(r.MarketCapDelta, other.MarketCapDelta) &&
		eqFloat(r.Price, other.Price) &&
		eqFloat(r.ChangePct, other.ChangePct) &&
		r.Timing == other.Timing &&
		eqFloat(r.EPSActual, other.EPSActual) &&
		eqFloat(r.EPSEstimate, other.EPSEstimate) &&
		eqFloat(r.EPSSurprisePct, other.EPSSurprisePct) &&
		eqBigInt(r.RevenueActual, other.RevenueActual) &&
		eqBigInt(r.RevenueEstimate, other.RevenueEstimate) &&
		eqFloat(r.RevenueSurprisePct, other.RevenueSurprisePct) &&
		r.ReportDate.Equal(other.ReportDate) &&
		r.SnapshotAt.Equal(other.SnapshotAt)
}
