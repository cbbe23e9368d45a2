package resolver

import (
	"math"
	"testing"
)

func floatPtr(v float64) *float64 { return &v }

func TestChangePercentBasic(t *testing.T) {
	got := ChangePercent(150, 100)
	if got == nil {
		t.Fatal("expected a defined change")
	}
	if *got != 50.0 {
		t.Errorf("ChangePercent(150, 100) = %v, want 50", *got)
	}
}

func TestChangePercentRounding(t *testing.T) {
	got := ChangePercent(100, 90)
	if got == nil {
		t.Fatal("expected a defined change")
	}
	// (100-90)/90*100 = 11.1111... rounded to four places.
	if *got != 11.1111 {
		t.Errorf("ChangePercent(100, 90) = %v, want 11.1111", *got)
	}
}

func TestChangePercentUndefinedCases(t *testing.T) {
	cases := []struct {
		name     string
		current  float64
		previous float64
	}{
		{"sub-cent reference", 100, 0.0001},
		{"zero reference", 100, 0},
		{"negative reference", 100, -5},
		{"zero current", 0, 100},
		{"negative current", -1, 100},
		{"nan current", math.NaN(), 100},
		{"inf previous", 100, math.Inf(1)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ChangePercent(tc.current, tc.previous); got != nil {
				t.Errorf("ChangePercent(%v, %v) = %v, want undefined", tc.current, tc.previous, *got)
			}
		})
	}
}

func TestSurprisePercent(t *testing.T) {
	got := SurprisePercent(floatPtr(1.25), floatPtr(1.00))
	if got == nil || *got != 25.0 {
		t.Fatalf("SurprisePercent(1.25, 1.00) = %v, want 25", got)
	}

	// Negative estimates use the absolute value so the sign of the surprise
	// still reflects beat vs miss.
	got = SurprisePercent(floatPtr(-0.50), floatPtr(-1.00))
	if got == nil || *got != 50.0 {
		t.Fatalf("SurprisePercent(-0.50, -1.00) = %v, want 50", got)
	}

	if got := SurprisePercent(nil, floatPtr(1.0)); got != nil {
		t.Errorf("nil actual should be undefined, got %v", *got)
	}
	if got := SurprisePercent(floatPtr(1.0), floatPtr(0)); got != nil {
		t.Errorf("zero estimate should be undefined, got %v", *got)
	}
}
