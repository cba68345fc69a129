// Package markethours knows the NSE session clock: the IST timezone,
// trading hours and the holiday calendar.
package markethours

import (
	"fmt"
	"time"

	"equity-screener/internal/model"
)

// IST is the Indian Standard Time location (UTC+5:30).
var IST = time.FixedZone("IST", 5*3600+30*60)

// Market hours in IST
const (
	OpenHour    = 9
	OpenMinute  = 15
	CloseHour   = 15
	CloseMinute = 30
)

// Today returns the current IST calendar date.
func Today(now time.Time) model.Date {
	return model.DateOf(now, IST)
}

// LocalDate converts any instant to its IST calendar date.
func LocalDate(t time.Time) model.Date {
	return model.DateOf(t, IST)
}

// IsMarketOpen returns true if t falls within NSE trading hours
// (09:15 to 15:30 IST on weekdays that are not holidays).
func IsMarketOpen(t time.Time) bool {
	ist := t.In(IST)
	if !IsTradingDay(ist) {
		return false
	}
	hm := ist.Hour()*60 + ist.Minute()
	return hm >= OpenHour*60+OpenMinute && hm < CloseHour*60+CloseMinute
}

// IsWeekday returns true if t falls Monday to Friday in IST.
func IsWeekday(t time.Time) bool {
	wd := t.In(IST).Weekday()
	return wd >= time.Monday && wd <= time.Friday
}

// IsTradingDay returns true if t is a weekday and not a holiday.
func IsTradingDay(t time.Time) bool {
	ist := t.In(IST)
	return IsWeekday(ist) && !IsHoliday(ist)
}

// NextOpen returns the next market open time (9:15 AM IST on next trading day).
// If t is before today's open on a trading day, returns today's open.
func NextOpen(t time.Time) time.Time {
	ist := t.In(IST)

	todayOpen := time.Date(ist.Year(), ist.Month(), ist.Day(), OpenHour, OpenMinute, 0, 0, IST)
	if ist.Before(todayOpen) && IsTradingDay(ist) {
		return todayOpen
	}

	d := ist.AddDate(0, 0, 1)
	for i := 0; i < 10; i++ { // max 10 days ahead (holidays + weekends)
		if IsTradingDay(d) {
			return time.Date(d.Year(), d.Month(), d.Day(), OpenHour, OpenMinute, 0, 0, IST)
		}
		d = d.AddDate(0, 0, 1)
	}
	return time.Date(ist.Year(), ist.Month(), ist.Day()+1, OpenHour, OpenMinute, 0, 0, IST)
}

// closeAt returns the session close on t's IST date.
func closeAt(t time.Time) time.Time {
	ist := t.In(IST)
	return time.Date(ist.Year(), ist.Month(), ist.Day(), CloseHour, CloseMinute, 0, 0, IST)
}

// Describe summarizes the session state at t for log lines, e.g.
// "open, closes in 2h5m" or "closed, opens Mon 09:15 in 17h45m".
func Describe(t time.Time) string {
	if IsMarketOpen(t) {
		return "open, closes in " + shortDur(closeAt(t).Sub(t))
	}
	next := NextOpen(t).In(IST)
	return fmt.Sprintf("closed, opens %s %s in %s", next.Weekday().String()[:3], next.Format("15:04"), shortDur(next.Sub(t)))
}

func shortDur(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
