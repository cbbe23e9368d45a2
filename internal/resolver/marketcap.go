package resolver

import (
	"math"

	"github.com/shopspring/decimal"
)

// Quality flag tokens appended when a derivation step cannot resolve.
const (
	FlagNoPrice         = "no_price"
	FlagNoMarketCap     = "no_current_market_cap"
	FlagNoShares        = "no_shares"
	FlagNoPrevClose     = "no_previous_close"
	FlagNoChangePct     = "no_change_pct"
	FlagSpike           = "pct_spike_no_corporate_action"
	FlagCorpAction      = "recent_corporate_action"
	FlagDeltaFromPct    = "delta_recomputed_from_pct"
	FlagSharesEstimated = "shares_estimated_from_cap"
	FlagFetchFailed     = "fetch_failed"
)

// nearZeroPct is the band within which a change percentage counts as zero for
// the delta edge case.
const nearZeroPct = 1e-4

// MarketCaps is the reconciled capitalization output.
type MarketCaps struct {
	Current  *int64
	Previous *int64
	Delta    *int64
	Flags    []string
}

// ResolveMarketCaps derives current/previous market cap and their delta from
// whatever reference data is available, in strict priority order, using
// decimal arithmetic until the final integer conversion. Unresolvable steps
// append quality flags instead of guessing.
func ResolveMarketCaps(upstreamCap *int64, shares *int64, price, prevClose, changePct *float64) MarketCaps {
	var out MarketCaps

	current := currentCap(upstreamCap, shares, price)
	if current == nil {
		out.Flags = append(out.Flags, FlagNoMarketCap)
	}
	if shares == nil {
		out.Flags = append(out.Flags, FlagNoShares)
	}
	if prevClose == nil {
		out.Flags = append(out.Flags, FlagNoPrevClose)
	}

	previous := previousCap(current, shares, price, prevClose, changePct, &out.Flags)

	var delta *decimal.Decimal
	if current != nil && previous != nil {
		d := current.Sub(*previous)
		delta = &d
	}

	// Trust the percentage over the naive subtraction when signs disagree.
	if delta != nil && changePct != nil && signMismatch(*delta, *changePct) {
		if recomputed := capFromChange(*current, *changePct); recomputed != nil {
			previous = recomputed
			d := current.Sub(*previous)
			delta = &d
			out.Flags = append(out.Flags, FlagDeltaFromPct)
		}
	}

	// A numerically flat day is exactly flat, not rounding noise.
	if changePct != nil && math.Abs(*changePct) < nearZeroPct && current != nil {
		zero := decimal.Zero
		delta = &zero
	}

	// Last resort: previous cap and a sane change percentage give the delta
	// directly even when the current cap never resolved.
	if delta == nil && previous != nil && changePct != nil && math.Abs(*changePct) <= spikeThresholdPct {
		d := previous.Mul(decimal.NewFromFloat(*changePct)).Div(decimal.NewFromInt(100))
		delta = &d
	}

	out.Current = toInt(current)
	out.Previous = toInt(previous)
	out.Delta = toInt(delta)
	return out
}

// currentCap is step 1: upstream-reported value wins; price x shares is the
// computed fallback.
func currentCap(upstreamCap *int64, shares *int64, price *float64) *decimal.Decimal {
	if upstreamCap != nil && *upstreamCap > 0 {
		d := decimal.NewFromInt(*upstreamCap)
		return &d
	}
	if price != nil && shares != nil && *price > 0 && *shares > 0 {
		d := decimal.NewFromFloat(*price).Mul(decimal.NewFromInt(*shares))
		return &d
	}
	return nil
}

// previousCap is steps 2-4 of the derivation chain.
func previousCap(current *decimal.Decimal, shares *int64, price, prevClose, changePct *float64, flags *[]string) *decimal.Decimal {
	// Step 2: previousClose x shares.
	if prevClose != nil && shares != nil && *prevClose > 0 && *shares > 0 {
		d := decimal.NewFromFloat(*prevClose).Mul(decimal.NewFromInt(*shares))
		return &d
	}

	// Step 3: back-solve from the change percentage.
	if current != nil && changePct != nil {
		if d := capFromChange(*current, *changePct); d != nil {
			return d
		}
	}

	// Step 4: estimate shares from the current cap, then price it at the
	// previous close.
	if current != nil && price != nil && prevClose != nil && shares == nil && *price > 0 && *prevClose > 0 {
		estShares := current.Div(decimal.NewFromFloat(*price))
		d := decimal.NewFromFloat(*prevClose).Mul(estShares)
		*flags = append(*flags, FlagSharesEstimated)
		return &d
	}

	return nil
}

// capFromChange back-solves previous = current / (1 + change/100). Returns
// nil when the divisor collapses to zero (a -100% move).
func capFromChange(current decimal.Decimal, changePct float64) *decimal.Decimal {
	divisor := decimal.NewFromInt(1).Add(decimal.NewFromFloat(changePct).Div(decimal.NewFromInt(100)))
	if divisor.IsZero() {
		return nil
	}
	d := current.Div(divisor)
	return &d
}

func signMismatch(delta decimal.Decimal, changePct float64) bool {
	if delta.IsZero() || math.Abs(changePct) < nearZeroPct {
		return false
	}
	deltaPos := delta.IsPositive()
	pctPos := changePct > 0
	return deltaPos != pctPos
}

// toInt converts at the final step only, keeping full precision through the
// derivation chain.
func toInt(d *decimal.Decimal) *int64 {
	if d == nil {
		return nil
	}
	n := d.Round(0).IntPart()
	return &n
}
