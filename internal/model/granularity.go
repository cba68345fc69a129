package model

import (
	"fmt"
	"strings"
)

// Granularity is the candle bucket unit. Combined with an interval
// multiplier it gives the bar size, e.g. (Minutes, 15) = 15-minute bars.
type Granularity string

const (
	Minutes Granularity = "minutes"
	Hours   Granularity = "hours"
	Days    Granularity = "days"
	Weeks   Granularity = "weeks"
	Months  Granularity = "months"
)

// ParseGranularity accepts the unit name in any case, singular or plural.
func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "minute", "minutes", "m":
		return Minutes, nil
	case "hour", "hours", "h":
		return Hours, nil
	case "day", "days", "d":
		return Days, nil
	case "week", "weeks", "w":
		return Weeks, nil
	case "month", "months", "mo":
		return Months, nil
	}
	return "", fmt.Errorf("granularity %q: %w", s, ErrInvalidParameter)
}

// Valid reports whether g is one of the known units.
func (g Granularity) Valid() bool {
	switch g {
	case Minutes, Hours, Days, Weeks, Months:
		return true
	}
	return false
}

// SupportsIntraday reports whether the provider serves a current-session
// series at this unit. Only minute and hour bars exist intraday.
func (g Granularity) SupportsIntraday() bool {
	return g == Minutes || g == Hours
}

// ValidateBar checks a (granularity, interval) pair.
func ValidateBar(g Granularity, interval int) error {
	if !g.Valid() {
		return fmt.Errorf("granularity %q: %w", g, ErrInvalidParameter)
	}
	if interval <= 0 {
		return fmt.Errorf("interval %d must be positive: %w", interval, ErrInvalidParameter)
	}
	return nil
}

func (g Granularity) String() string { return string(g) }
