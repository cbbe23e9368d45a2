package quotefeed

import "testing"

func TestToFeedSymbol(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"AAPL", "AAPL"},
		{"BRK.B", "BRK-B"},
		{"BF.A", "BF-A"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ToFeedSymbol(tt.in); got != tt.want {
			t.Errorf("ToFeedSymbol(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFromFeedSymbol(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"AAPL", "AAPL"},
		{"BRK-B", "BRK.B"},
		{"BF-A", "BF.A"},
	}
	for _, tt := range tests {
		if got := FromFeedSymbol(tt.in); got != tt.want {
			t.Errorf("FromFeedSymbol(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSymbolRoundTrip(t *testing.T) {
	symbols := []string{"AAPL", "BRK.B", "HEI.A", "MSFT"}
	for _, sym := range symbols {
		if got := FromFeedSymbol(ToFeedSymbol(sym)); got != sym {
			t.Errorf("round trip of %q produced %q", sym, got)
		}
	}
}
