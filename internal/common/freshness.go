// Package common provides shared utilities for earnboard
package common

import "time"

// TTLs for the in-process read-through caches
const (
	FreshnessPreviousClose = 24 * time.Hour      // once-daily bulk snapshot
	FreshnessShares        = 7 * 24 * time.Hour  // shares outstanding move slowly
	FreshnessCorpActions   = 6 * time.Hour       // dividend/split lookups
	FreshnessQuote         = 5 * time.Minute     // per-symbol snapshot between cycles
)

// IsFresh returns true if the given timestamp is within the TTL
func IsFresh(updated time.Time, ttl time.Duration) bool {
	if updated.IsZero() {
		return false
	}
	return time.Since(updated) < ttl
}
