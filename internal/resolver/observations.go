// Package resolver turns a bag of noisy same-symbol quote observations into
// one canonical price, change percentage, and market-cap delta.
package resolver

import (
	"math"
	"sort"
	"time"

	"github.com/earnboard/earnboard/internal/marketclock"
	"github.com/earnboard/earnboard/internal/models"
)

const (
	// clockSkewTolerance allows observation timestamps slightly in the
	// future before they are rejected as bogus.
	clockSkewTolerance = 30 * time.Second

	// Staleness ceilings for selected prices. Live/minute data from the
	// current session goes stale fast; anything else is acceptable for a day.
	freshStaleness   = 30 * time.Minute
	defaultStaleness = 24 * time.Hour
)

// Timestamp magnitude thresholds for unit detection.
const (
	nanosFloor  = int64(1e17)
	microsFloor = int64(1e14)
	millisFloor = int64(1e11)
)

// NormalizeTimestampMillis converts a timestamp of unknown native unit
// (seconds, milliseconds, microseconds, or nanoseconds) to milliseconds using
// magnitude heuristics. Values at second scale today are ~1.7e9; millisecond
// ~1.7e12; microsecond ~1.7e15; nanosecond ~1.7e18.
func NormalizeTimestampMillis(ts int64) int64 {
	switch {
	case ts >= nanosFloor:
		return ts / 1_000_000
	case ts >= microsFloor:
		return ts / 1_000
	case ts >= millisFloor:
		return ts
	default:
		return ts * 1_000
	}
}

// observationSession maps a sub-session label to the exchange session that
// data naturally belongs to. Day bars and previous closes belong to no live
// session.
func observationSession(label string) marketclock.Session {
	switch label {
	case models.ObsPreMarket:
		return marketclock.SessionPreMarket
	case models.ObsLive, models.ObsMinuteBar:
		return marketclock.SessionRegular
	case models.ObsAfterHours:
		return marketclock.SessionAfterHours
	default:
		return marketclock.SessionClosed
	}
}

// sessionPriority returns the static preference order of sub-session labels
// for the given current session. Lower is better.
func sessionPriority(session marketclock.Session) map[string]int {
	switch session {
	case marketclock.SessionPreMarket:
		return map[string]int{
			models.ObsPreMarket:  0,
			models.ObsLive:       1,
			models.ObsMinuteBar:  2,
			models.ObsAfterHours: 3,
			models.ObsDayBar:     4,
			models.ObsPrevClose:  5,
		}
	case marketclock.SessionAfterHours, marketclock.SessionClosed:
		return map[string]int{
			models.ObsAfterHours: 0,
			models.ObsLive:       1,
			models.ObsMinuteBar:  2,
			models.ObsPreMarket:  3,
			models.ObsDayBar:     4,
			models.ObsPrevClose:  5,
		}
	default: // regular
		return map[string]int{
			models.ObsLive:       0,
			models.ObsMinuteBar:  1,
			models.ObsAfterHours: 2,
			models.ObsPreMarket:  3,
			models.ObsDayBar:     4,
			models.ObsPrevClose:  5,
		}
	}
}

// candidate is a price observation with its timestamp normalized to millis.
type candidate struct {
	label  string
	price  float64
	millis int64
}

// SelectPrice picks the canonical price from the raw observations, or returns
// nil when no observation qualifies. A price is never synthesized.
func SelectPrice(obs []models.PriceObservation, session marketclock.Session, now time.Time, allowStaleFallback bool) (*float64, string) {
	if len(obs) == 0 {
		return nil, ""
	}

	// Previous-day close is only usable as a live price after hours, or when
	// the global stale-fallback override is on.
	staleOK := allowStaleFallback || session == marketclock.SessionAfterHours

	candidates := make([]candidate, 0, len(obs))
	for _, o := range obs {
		if o.Label == models.ObsPrevClose && !staleOK {
			continue
		}
		candidates = append(candidates, candidate{
			label:  o.Label,
			price:  o.Price,
			millis: NormalizeTimestampMillis(o.Timestamp),
		})
	}
	if len(candidates) == 0 {
		return nil, ""
	}

	prio := sessionPriority(session)
	sort.SliceStable(candidates, func(i, j int) bool {
		im := observationSession(candidates[i].label) == session
		jm := observationSession(candidates[j].label) == session
		if im != jm {
			return im // exact session match first
		}
		if candidates[i].millis != candidates[j].millis {
			return candidates[i].millis > candidates[j].millis
		}
		return prio[candidates[i].label] < prio[candidates[j].label]
	})

	nowMillis := now.UnixMilli()
	for _, c := range candidates {
		if !qualifies(c, session, nowMillis) {
			continue
		}
		price := c.price
		return &price, c.label
	}

	return nil, ""
}

// qualifies applies the finiteness, clock-skew, and staleness gates.
func qualifies(c candidate, session marketclock.Session, nowMillis int64) bool {
	if math.IsNaN(c.price) || math.IsInf(c.price, 0) || c.price <= 0 {
		return false
	}
	if c.millis > nowMillis+clockSkewTolerance.Milliseconds() {
		return false
	}

	ceiling := defaultStaleness
	if (c.label == models.ObsLive || c.label == models.ObsMinuteBar) && observationSession(c.label) == session {
		ceiling = freshStaleness
	}
	return nowMillis-c.millis <= ceiling.Milliseconds()
}
