package quotefeed

import "strings"

// The quote feed addresses share classes with a hyphen ("BRK-B") while the
// canonical form everywhere else in the system is dotted ("BRK.B"). The
// mapping is only applied to the class suffix, never to the base ticker.

// ToFeedSymbol converts a canonical symbol to the feed's hyphenated form.
func ToFeedSymbol(symbol string) string {
	return strings.ReplaceAll(symbol, ".", "-")
}

// FromFeedSymbol converts a feed symbol back to the canonical dotted form.
func FromFeedSymbol(symbol string) string {
	return strings.ReplaceAll(symbol, "-", ".")
}
