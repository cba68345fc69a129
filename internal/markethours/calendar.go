package markethours

import (
	"time"

	"github.com/scmhub/calendar"

	"equity-screener/internal/model"
)

// nseMIC is the ISO 10383 market identifier of the National Stock Exchange of India.
const nseMIC = "xnse"

// Calendar answers trading-day questions for NSE. It prefers the
// scmhub/calendar exchange calendar and falls back to the built-in
// weekday + holiday table when that calendar is unavailable.
type Calendar struct {
	cal *calendar.Calendar
}

// NewCalendar loads the NSE calendar.
func NewCalendar() *Calendar {
	return &Calendar{cal: calendar.GetCalendar(nseMIC)}
}

// Fallback reports whether the built-in holiday table is in use.
func (c *Calendar) Fallback() bool { return c == nil || c.cal == nil }

// IsTradingDay reports whether the IST date of t is an NSE session.
func (c *Calendar) IsTradingDay(t time.Time) bool {
	if c.Fallback() {
		return IsTradingDay(t)
	}
	return c.cal.IsBusinessDay(t.In(IST))
}

// SessionsBack returns the date of the n-th trading session before day,
// not counting day itself. n <= 0 returns day unchanged.
func (c *Calendar) SessionsBack(day model.Date, n int) model.Date {
	t := day.In(IST).Add(12 * time.Hour) // midday IST
	for n > 0 {
		t = t.AddDate(0, 0, -1)
		if c.IsTradingDay(t) {
			n--
		}
	}
	return LocalDate(t)
}
