// Package cluster detects EMA clusters: time steps where a set of
// exponential moving averages of different periods sit within a relative
// tolerance of one another.
package cluster

import (
	"fmt"
	"math"
	"strings"
	"time"

	"equity-screener/internal/indicator"
	"equity-screener/internal/model"
)

// Mode selects which part of the series is evaluated.
type Mode int

const (
	// EvaluateWindow checks every candle in the supplied series.
	EvaluateWindow Mode = iota
	// EvaluateLatestOnly checks only the most recent candle.
	EvaluateLatestOnly
)

func (m Mode) String() string {
	switch m {
	case EvaluateWindow:
		return "window"
	case EvaluateLatestOnly:
		return "latest"
	default:
		return "unknown"
	}
}

// ParseMode accepts "window"/"past" and "latest"/"live"/"current".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "window", "past", "":
		return EvaluateWindow, nil
	case "latest", "live", "current":
		return EvaluateLatestOnly, nil
	}
	return 0, fmt.Errorf("cluster mode %q: %w", s, model.ErrInvalidParameter)
}

// Set is a named group of EMA periods evaluated together.
type Set struct {
	Name    string `yaml:"name" json:"name"`
	Periods []int  `yaml:"periods" json:"periods"`
}

// Standard period sets.
var (
	ThreeEMA = Set{Name: "ema3", Periods: []int{3, 4, 5}}
	FourEMA  = Set{Name: "ema4", Periods: []int{3, 4, 5, 6}}
)

// Validate rejects degenerate sets: fewer than two periods, or a
// non-positive period.
func (s Set) Validate() error {
	if len(s.Periods) < 2 {
		return fmt.Errorf("cluster set %q needs at least two periods, got %d: %w", s.Name, len(s.Periods), model.ErrInvalidParameter)
	}
	for _, p := range s.Periods {
		if p <= 0 {
			return fmt.Errorf("cluster set %q: period %d must be positive: %w", s.Name, p, model.ErrInvalidParameter)
		}
	}
	return nil
}

// Spread returns the relative width of values in percent:
// (max - min) / mean * 100. ok is false when the spread is undefined
// (no values, a zero value, or a zero mean).
func Spread(values []float64) (spread float64, ok bool) {
	if len(values) == 0 {
		return 0, false
	}
	lo, hi, sum := math.Inf(1), math.Inf(-1), 0.0
	for _, v := range values {
		if v == 0 || math.IsNaN(v) {
			return 0, false
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
		sum += v
	}
	mean := sum / float64(len(values))
	if mean == 0 {
		return 0, false
	}
	return (hi - lo) / mean * 100, true
}

// Clustered reports whether values lie within accuracy percent of each other.
func Clustered(values []float64, accuracy float64) bool {
	spread, ok := Spread(values)
	return ok && spread <= accuracy
}

// Detect returns the timestamps at which the EMAs of set.Periods, applied
// to the close price, were clustered within accuracy percent.
// An empty series yields an empty result and no error.
func Detect(series model.Series, set Set, accuracy float64, mode Mode) ([]time.Time, error) {
	if err := set.Validate(); err != nil {
		return nil, err
	}
	if math.IsNaN(accuracy) || accuracy < 0 {
		return nil, fmt.Errorf("accuracy %v must be a non-negative percentage: %w", accuracy, model.ErrInvalidParameter)
	}
	if mode != EvaluateWindow && mode != EvaluateLatestOnly {
		return nil, fmt.Errorf("cluster mode %d: %w", mode, model.ErrInvalidParameter)
	}
	if series.Empty() {
		return nil, nil
	}

	configs := make([]indicator.Config, len(set.Periods))
	for i, p := range set.Periods {
		configs[i] = indicator.Config{Kind: indicator.Exponential, Period: p, Field: indicator.Close}
	}
	emas, err := indicator.Compute(series, configs)
	if err != nil {
		return nil, err
	}

	first := 0
	if mode == EvaluateLatestOnly {
		first = series.Len() - 1
	}

	var hits []time.Time
	row := make([]float64, len(emas))
	for i := first; i < series.Len(); i++ {
		for j := range emas {
			row[j] = emas[j].Values[i]
		}
		if Clustered(row, accuracy) {
			hits = append(hits, series.Candles[i].TS)
		}
	}
	return hits, nil
}
