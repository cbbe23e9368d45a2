// Package marketclock resolves trading days and exchange sessions in a fixed
// exchange timezone.
package marketclock

import "time"

// Session is the exchange session a given instant falls in.
type Session string

const (
	SessionPreMarket  Session = "pre_market"
	SessionRegular    Session = "regular"
	SessionAfterHours Session = "after_hours"
	SessionClosed     Session = "closed"
)

// Session boundaries as minutes after exchange-local midnight.
const (
	preMarketOpen  = 4 * 60          // 04:00
	regularOpen    = 9*60 + 30       // 09:30
	afterHoursOpen = 16 * 60         // 16:00
	sessionClose   = 20 * 60         // 20:00
)

// HolidayFunc reports whether a date (exchange-local midnight) is an exchange
// holiday. The default calendar treats no weekday as a holiday.
type HolidayFunc func(date time.Time) bool

// Calendar answers "what trading day and session is it" questions for one
// exchange timezone. The zero number of holidays is weekends-only; callers
// may plug in a real holiday table without breaking anything else.
type Calendar struct {
	loc       *time.Location
	isHoliday HolidayFunc
	now       func() time.Time // injectable clock for testing
}

// Option configures a Calendar.
type Option func(*Calendar)

// WithHolidays sets the holiday predicate.
func WithHolidays(fn HolidayFunc) Option {
	return func(c *Calendar) {
		if fn != nil {
			c.isHoliday = fn
		}
	}
}

// WithNow sets the clock source.
func WithNow(now func() time.Time) Option {
	return func(c *Calendar) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCalendar creates a Calendar for the given IANA timezone name.
func NewCalendar(timezone string, opts ...Option) (*Calendar, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, err
	}

	c := &Calendar{
		loc:       loc,
		isHoliday: func(time.Time) bool { return false },
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Location returns the exchange timezone.
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// Now returns the current instant in the exchange timezone.
func (c *Calendar) Now() time.Time {
	return c.now().In(c.loc)
}

// CurrentSession classifies an instant into an exchange session. Saturday and
// Sunday are always closed.
func (c *Calendar) CurrentSession(t time.Time) Session {
	local := t.In(c.loc)

	weekday := local.Weekday()
	if weekday == time.Saturday || weekday == time.Sunday {
		return SessionClosed
	}

	minute := local.Hour()*60 + local.Minute()
	switch {
	case minute < preMarketOpen:
		return SessionClosed
	case minute < regularOpen:
		return SessionPreMarket
	case minute < afterHoursOpen:
		return SessionRegular
	case minute < sessionClose:
		return SessionAfterHours
	default:
		return SessionClosed
	}
}

// TradingDay resolves the ISO date to use for "today's" feed queries. On a
// weekend or holiday it rolls back to the last open weekday; on a weekday
// before the regular open it rolls back to the previous trading day, because
// the feeds still describe yesterday's market until the bell.
func (c *Calendar) TradingDay(t time.Time) time.Time {
	local := t.In(c.loc)
	day := midnight(local)

	if isWeekend(day) || c.isHoliday(day) {
		return c.PreviousTradingDay(day)
	}

	minute := local.Hour()*60 + local.Minute()
	if minute < regularOpen {
		return c.PreviousTradingDay(day)
	}

	return day
}

// PreviousTradingDay returns the date minus one calendar day, skipping
// weekends and holidays.
func (c *Calendar) PreviousTradingDay(date time.Time) time.Time {
	day := midnight(date.In(c.loc))
	for {
		day = day.AddDate(0, 0, -1)
		if !isWeekend(day) && !c.isHoliday(day) {
			return day
		}
	}
}

// Midnight returns exchange-local midnight of the instant's date.
func (c *Calendar) Midnight(t time.Time) time.Time {
	return midnight(t.In(c.loc))
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
