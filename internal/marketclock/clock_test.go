package marketclock

import (
	"testing"
	"time"
)

func mustCalendar(t *testing.T, opts ...Option) *Calendar {
	t.Helper()
	cal, err := NewCalendar("America/New_York", opts...)
	if err != nil {
		t.Fatalf("NewCalendar: %v", err)
	}
	return cal
}

// nyTime builds an instant in the exchange timezone.
func nyTime(t *testing.T, year int, month time.Month, day, hour, min int) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	return time.Date(year, month, day, hour, min, 0, 0, loc)
}

func TestCurrentSession(t *testing.T) {
	cal := mustCalendar(t)

	cases := []struct {
		name string
		at   time.Time
		want Session
	}{
		{"before pre-market", nyTime(t, 2025, time.March, 12, 3, 59), SessionClosed},
		{"pre-market open", nyTime(t, 2025, time.March, 12, 4, 0), SessionPreMarket},
		{"just before bell", nyTime(t, 2025, time.March, 12, 9, 29), SessionPreMarket},
		{"regular open", nyTime(t, 2025, time.March, 12, 9, 30), SessionRegular},
		{"mid-session", nyTime(t, 2025, time.March, 12, 13, 0), SessionRegular},
		{"after-hours", nyTime(t, 2025, time.March, 12, 16, 0), SessionAfterHours},
		{"evening close", nyTime(t, 2025, time.March, 12, 20, 0), SessionClosed},
		{"saturday midday", nyTime(t, 2025, time.March, 15, 12, 0), SessionClosed},
		{"sunday midday", nyTime(t, 2025, time.March, 16, 12, 0), SessionClosed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := cal.CurrentSession(tc.at); got != tc.want {
				t.Errorf("CurrentSession(%v) = %s, want %s", tc.at, got, tc.want)
			}
		})
	}
}

func TestTradingDay(t *testing.T) {
	cal := mustCalendar(t)

	// Wednesday after the bell is Wednesday.
	got := cal.TradingDay(nyTime(t, 2025, time.March, 12, 10, 0))
	if got.Format("2006-01-02") != "2025-03-12" {
		t.Errorf("midweek trading day = %s, want 2025-03-12", got.Format("2006-01-02"))
	}

	// Wednesday before the bell rolls back to Tuesday.
	got = cal.TradingDay(nyTime(t, 2025, time.March, 12, 8, 0))
	if got.Format("2006-01-02") != "2025-03-11" {
		t.Errorf("pre-open trading day = %s, want 2025-03-11", got.Format("2006-01-02"))
	}

	// Saturday rolls back to Friday.
	got = cal.TradingDay(nyTime(t, 2025, time.March, 15, 12, 0))
	if got.Format("2006-01-02") != "2025-03-14" {
		t.Errorf("saturday trading day = %s, want 2025-03-14", got.Format("2006-01-02"))
	}

	// Monday pre-open rolls back across the weekend to Friday.
	got = cal.TradingDay(nyTime(t, 2025, time.March, 17, 7, 0))
	if got.Format("2006-01-02") != "2025-03-14" {
		t.Errorf("monday pre-open trading day = %s, want 2025-03-14", got.Format("2006-01-02"))
	}
}

func TestPreviousTradingDaySkipsWeekend(t *testing.T) {
	cal := mustCalendar(t)

	monday := nyTime(t, 2025, time.March, 17, 0, 0)
	got := cal.PreviousTradingDay(monday)
	if got.Format("2006-01-02") != "2025-03-14" {
		t.Errorf("previous trading day of Monday = %s, want Friday 2025-03-14", got.Format("2006-01-02"))
	}
}

func TestHolidayPredicatePluggable(t *testing.T) {
	// Friday 2025-03-14 declared a holiday: Saturday resolution should land
	// on Thursday instead.
	holiday := func(d time.Time) bool {
		return d.Format("2006-01-02") == "2025-03-14"
	}
	cal := mustCalendar(t, WithHolidays(holiday))

	got := cal.TradingDay(nyTime(t, 2025, time.March, 15, 12, 0))
	if got.Format("2006-01-02") != "2025-03-13" {
		t.Errorf("trading day with Friday holiday = %s, want 2025-03-13", got.Format("2006-01-02"))
	}
}

func TestNowUsesInjectedClock(t *testing.T) {
	fixed := time.Date(2025, time.March, 12, 18, 30, 0, 0, time.UTC)
	cal := mustCalendar(t, WithNow(func() time.Time { return fixed }))

	got := cal.Now()
	if !got.Equal(fixed) {
		t.Errorf("Now() = %v, want %v", got, fixed)
	}
	if got.Location().String() != "America/New_York" {
		t.Errorf("Now() location = %s, want America/New_York", got.Location())
	}
}
