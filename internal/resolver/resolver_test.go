package resolver

import (
	"testing"
	"time"

	"github.com/earnboard/earnboard/internal/marketclock"
	"github.com/earnboard/earnboard/internal/models"
)

func baseInput(now time.Time) Input {
	return Input{
		Symbol: "AAPL",
		Observations: []models.PriceObservation{
			{Label: models.ObsLive, Price: 150, Timestamp: now.Unix() - 30},
		},
		PrevClose:      &models.PreviousClose{Symbol: "AAPL", Close: 100, AdjClose: 100},
		Shares:         int64Ptr(1_000_000_000),
		Session:        marketclock.SessionRegular,
		Now:            now,
		SymbolResolved: true,
	}
}

func TestResolveSpikeFlagWithoutCorporateAction(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	res := Resolve(baseInput(now))

	if res.ChangePct == nil || *res.ChangePct != 50.0 {
		t.Fatalf("change = %v, want 50.0000", res.ChangePct)
	}
	if !hasFlag(res.Flags, FlagSpike) {
		t.Errorf("expected %s flag for an unexplained 50%% move, flags: %v", FlagSpike, res.Flags)
	}
}

func TestResolveSpikeSuppressedByCorporateAction(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	in := baseInput(now)
	in.RecentCorpAction = true

	res := Resolve(in)
	if hasFlag(res.Flags, FlagSpike) {
		t.Error("spike flag should be suppressed by a recent corporate action")
	}
	if !hasFlag(res.Flags, FlagCorpAction) {
		t.Errorf("expected %s flag, flags: %v", FlagCorpAction, res.Flags)
	}
}

func TestResolveDeltaSignMatchesChangeSign(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	res := Resolve(baseInput(now))

	if res.MarketCapDelta == nil || res.ChangePct == nil {
		t.Fatal("expected delta and change to resolve")
	}
	if (*res.MarketCapDelta > 0) != (*res.ChangePct > 0) {
		t.Errorf("delta %d sign disagrees with change %v", *res.MarketCapDelta, *res.ChangePct)
	}
}

func TestResolveNoPriceNeverSynthesized(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	in := baseInput(now)
	in.Observations = nil

	res := Resolve(in)
	if res.Price != nil {
		t.Errorf("price = %v, want nil with no observations", *res.Price)
	}
	if !hasFlag(res.Flags, FlagNoPrice) {
		t.Error("expected no_price flag")
	}
	if res.FullyReady {
		t.Error("symbol with no price must not be fully ready")
	}
}

func TestResolveReadinessFlags(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	res := Resolve(baseInput(now))

	if !res.SymbolResolved || !res.PriceResolved || !res.MarketCapResolved {
		t.Fatalf("component flags: symbol=%v price=%v cap=%v, want all true",
			res.SymbolResolved, res.PriceResolved, res.MarketCapResolved)
	}
	if !res.FullyReady {
		t.Error("fully ready should be the conjunction of the component flags")
	}
}

func TestSizeBucketThresholds(t *testing.T) {
	cases := []struct {
		cap  *int64
		want string
	}{
		{int64Ptr(250_000_000_000), models.SizeMega},
		{int64Ptr(100_000_000_000), models.SizeMega},
		{int64Ptr(99_999_999_999), models.SizeLarge},
		{int64Ptr(10_000_000_000), models.SizeLarge},
		{int64Ptr(9_999_999_999), models.SizeMid},
		{int64Ptr(1_000_000_000), models.SizeMid},
		{int64Ptr(999_999_999), models.SizeSmall},
		{nil, ""},
	}

	for _, tc := range cases {
		if got := SizeBucket(tc.cap); got != tc.want {
			t.Errorf("SizeBucket(%v) = %q, want %q", tc.cap, got, tc.want)
		}
	}
}
