package model

import (
	"errors"
	"testing"
	"time"
)

var ist = time.FixedZone("IST", 5*3600+30*60)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want Date
	}{
		{"", Date{}},
		{"2025-10-03", Date{2025, time.October, 3}},
		{" 2025-10-03 ", Date{2025, time.October, 3}},
		// 20:00 UTC is 01:30 IST the next day.
		{"2025-10-03T20:00:00Z", Date{2025, time.October, 4}},
		{"2025-10-03T10:00:00+05:30", Date{2025, time.October, 3}},
		// 23:00 in New York is 09:30 IST the next day.
		{"2025-10-03T23:00:00-04:00", Date{2025, time.October, 4}},
		{"2025-10-03 23:59:59", Date{2025, time.October, 3}},
	}
	for _, tt := range tests {
		got, err := ParseDate(tt.in, ist)
		if err != nil {
			t.Errorf("ParseDate(%q): unexpected error %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDate(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseDate_Invalid(t *testing.T) {
	_, err := ParseDate("03/10/2025", ist)
	if !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter, got %v", err)
	}
}

func TestDateOf_CrossesDayBoundary(t *testing.T) {
	ts := time.Date(2024, 1, 15, 19, 0, 0, 0, time.UTC) // 00:30 IST on the 16th
	if got := DateOf(ts, ist); got != (Date{2024, time.January, 16}) {
		t.Errorf("DateOf = %v, want 2024-01-16", got)
	}
}

func TestDate_StringAndZero(t *testing.T) {
	var d Date
	if !d.IsZero() || d.String() != "" {
		t.Errorf("zero date: IsZero=%v String=%q", d.IsZero(), d.String())
	}
	d = Date{2026, time.March, 9}
	if d.String() != "2026-03-09" {
		t.Errorf("String() = %q", d.String())
	}
	if got := d.AddDays(-9); got != (Date{2026, time.February, 28}) {
		t.Errorf("AddDays(-9) = %v", got)
	}
	if !d.AddDays(-1).Before(d) {
		t.Error("expected previous day to sort before")
	}
}

func TestParseGranularity(t *testing.T) {
	for in, want := range map[string]Granularity{
		"minutes": Minutes, "Minute": Minutes, "hours": Hours,
		"day": Days, "WEEKS": Weeks, "month": Months,
	} {
		g, err := ParseGranularity(in)
		if err != nil || g != want {
			t.Errorf("ParseGranularity(%q) = %v, %v; want %v", in, g, err, want)
		}
	}
	if _, err := ParseGranularity("ticks"); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter, got %v", err)
	}
}

func TestGranularity_SupportsIntraday(t *testing.T) {
	for _, g := range []Granularity{Minutes, Hours} {
		if !g.SupportsIntraday() {
			t.Errorf("%s should support intraday", g)
		}
	}
	for _, g := range []Granularity{Days, Weeks, Months} {
		if g.SupportsIntraday() {
			t.Errorf("%s should not support intraday", g)
		}
	}
}

func TestValidateBar(t *testing.T) {
	if err := ValidateBar(Days, 1); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateBar(Days, 0); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("interval 0: expected ErrInvalidParameter, got %v", err)
	}
	if err := ValidateBar("fortnights", 1); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("bad unit: expected ErrInvalidParameter, got %v", err)
	}
}
