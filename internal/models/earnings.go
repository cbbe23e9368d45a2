package models

import (
	"fmt"
	"time"
)

// Announcement timing constants for EarningsRecord.Timing.
const (
	TimingBeforeOpen   = "before_open"
	TimingAfterClose   = "after_close"
	TimingDuringMarket = "during_market"
	TimingUnknown      = "unknown"
)

// EarningsRecord is one row per (report date, symbol) from the earnings
// calendar feed. Written exclusively by the earnings ingestion job.
type EarningsRecord struct {
	Symbol          string   `json:"symbol"`      // canonical uppercase ticker
	ReportDate      string   `json:"report_date"` // "2006-01-02", exchange-local
	Timing          string   `json:"timing"`      // before_open / after_close / during_market / unknown
	EPSActual       *float64 `json:"eps_actual"`
	EPSEstimate     *float64 `json:"eps_estimate"`
	RevenueActual   *BigInt  `json:"revenue_actual"`
	RevenueEstimate *BigInt  `json:"revenue_estimate"`
	FiscalQuarter   *int     `json:"fiscal_quarter"`
	FiscalYear      *int     `json:"fiscal_year"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Key returns the unique storage key for the (report date, symbol) pair.
func (r *EarningsRecord) Key() string {
	return fmt.Sprintf("%s|%s", r.ReportDate, r.Symbol)
}

// Completeness counts non-null business fields. When the feed returns
// duplicate rows for the same (date, symbol), the most complete one wins.
func (r *EarningsRecord) Completeness() int {
	n := 0
	if r.Timing != "" && r.Timing != TimingUnknown {
		n++
	}
	if r.EPSActual != nil {
		n++
	}
	if r.EPSEstimate != nil {
		n++
	}
	if r.RevenueActual != nil {
		n++
	}
	if r.RevenueEstimate != nil {
		n++
	}
	if r.FiscalQuarter != nil {
		n++
	}
	if r.FiscalYear != nil {
		n++
	}
	return n
}

// Equal compares every business field, ignoring UpdatedAt. Used by the
// change-aware upsert to skip writes when nothing differs.
func (r *EarningsRecord) Equal(other *EarningsRecord) bool {
	if other == nil {
		return false
	}
	return r.Symbol == other.Symbol &&
		r.ReportDate == other.ReportDate &&
		r.Timing == other.Timing &&
		eqFloat(r.EPSActual, other.EPSActual) &&
		eqFloat(r.EPSEstimate, other.EPSEstimate) &&
		eqBigInt(r.RevenueActual, other.RevenueActual) &&
		eqBigInt(r.RevenueEstimate, other.RevenueEstimate) &&
		eqInt(r.FiscalQuarter, other.FiscalQuarter) &&
		eqInt(r.FiscalYear, other.FiscalYear)
}

// EarningsEntry is a raw row as returned by the earnings feed client, before
// the ingestion job normalizes it into an EarningsRecord.
type EarningsEntry struct {
	Symbol          string   `json:"symbol"`
	ReportDate      string   `json:"report_date"`
	TimingLabel     string   `json:"timing_label"` // free text, e.g. "time-pre-market"
	EPSActual       *float64 `json:"eps_actual"`
	EPSEstimate     *float64 `json:"eps_estimate"`
	RevenueActual   *int64   `json:"revenue_actual"`
	RevenueEstimate *int64   `json:"revenue_estimate"`
	FiscalQuarter   *int     `json:"fiscal_quarter"`
	FiscalYear      *int     `json:"fiscal_year"`
}

func eqFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func eqBigInt(a, b *BigInt) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func eqInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
