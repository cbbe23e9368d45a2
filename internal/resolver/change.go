package resolver

import (
	"math"

	"github.com/shopspring/decimal"
)

const (
	// minPrevClose guards against sub-cent reference prices that make
	// percentage math meaningless.
	minPrevClose = 0.0001

	// changeDecimals is the fixed rounding for the reported change.
	changeDecimals = 4

	// spikeThresholdPct flags moves a corporate action would usually explain.
	spikeThresholdPct = 50.0
)

// ChangePercent computes (current-previous)/previous*100 using decimal
// arithmetic, rounded to four places. Returns nil when either input is
// non-finite, non-positive, or the reference is at or below a tenth of a
// cent — undefined, never a misleading number.
func ChangePercent(current, previous float64) *float64 {
	if math.IsNaN(current) || math.IsInf(current, 0) || math.IsNaN(previous) || math.IsInf(previous, 0) {
		return nil
	}
	if current <= 0 || previous <= minPrevClose {
		return nil
	}

	cur := decimal.NewFromFloat(current)
	prev := decimal.NewFromFloat(previous)
	pct := cur.Sub(prev).Div(prev).Mul(decimal.NewFromInt(100)).Round(changeDecimals)

	v, _ := pct.Float64()
	return &v
}

// SurprisePercent computes (actual-estimate)/|estimate|*100 for EPS and
// revenue surprises, rounded to two places. Same null-propagation rules as
// ChangePercent, except negative actuals are legal (a company can miss into a
// loss) and the estimate only needs to be non-zero.
func SurprisePercent(actual, estimate *float64) *float64 {
	if actual == nil || estimate == nil {
		return nil
	}
	a, e := *actual, *estimate
	if math.IsNaN(a) || math.IsInf(a, 0) || math.IsNaN(e) || math.IsInf(e, 0) {
		return nil
	}
	if math.Abs(e) <= minPrevClose {
		return nil
	}

	act := decimal.NewFromFloat(a)
	est := decimal.NewFromFloat(e)
	pct := act.Sub(est).Div(est.Abs()).Mul(decimal.NewFromInt(100)).Round(2)

	v, _ := pct.Float64()
	return &v
}
