package model

import (
	"fmt"
	"strings"
	"time"
)

// Date is a calendar date in the exchange's local timezone.
// The zero value means "unset" (earliest available / today, depending on use).
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

const dateLayout = "2006-01-02"

// DateOf converts an instant to the calendar date it falls on in loc.
// The instant is shifted into loc first, so 2024-01-15T20:00:00Z is
// 2024-01-16 in IST.
func DateOf(t time.Time, loc *time.Location) Date {
	lt := t.In(loc)
	return Date{Year: lt.Year(), Month: lt.Month(), Day: lt.Day()}
}

// ParseDate is the single normalization point for externally supplied dates.
// Accepted forms:
//   - "2006-01-02"                    taken as a local calendar date
//   - RFC3339 / RFC3339Nano datetimes converted to loc, then truncated
//   - "2006-01-02 15:04:05"           interpreted in loc
//
// An empty string yields the zero (unset) Date.
func ParseDate(s string, loc *time.Location) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, nil
	}
	if t, err := time.ParseInLocation(dateLayout, s, loc); err == nil {
		return DateOf(t, loc), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return DateOf(t, loc), nil
	}
	if t, err := time.ParseInLocation("2006-01-02 15:04:05", s, loc); err == nil {
		return DateOf(t, loc), nil
	}
	return Date{}, fmt.Errorf("date %q: %w", s, ErrInvalidParameter)
}

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool { return d == Date{} }

// In returns midnight of d in loc.
func (d Date) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// AddDays returns d shifted by n calendar days.
func (d Date) AddDays(n int) Date {
	return DateOf(d.In(time.UTC).AddDate(0, 0, n), time.UTC)
}

// Before reports whether d is strictly earlier than o.
func (d Date) Before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

// String formats the date as YYYY-MM-DD, or "" when unset.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.In(time.UTC).Format(dateLayout)
}
