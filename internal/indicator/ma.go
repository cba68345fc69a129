package indicator

import (
	"fmt"
	"strings"
	"time"

	"equity-screener/internal/model"
)

// Kind selects the averaging method.
type Kind string

const (
	Simple      Kind = "simple"
	Exponential Kind = "exponential"
)

// Field selects the candle price an average is applied to.
type Field string

const (
	Open  Field = "open"
	High  Field = "high"
	Low   Field = "low"
	Close Field = "close"
)

// ParseKind accepts "simple"/"sma" and "exponential"/"ema" in any case.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "simple", "sma":
		return Simple, nil
	case "exponential", "ema":
		return Exponential, nil
	}
	return "", fmt.Errorf("moving average kind %q: %w", s, model.ErrInvalidParameter)
}

// ParseField accepts open/high/low/close in any case.
func ParseField(s string) (Field, error) {
	f := Field(strings.ToLower(strings.TrimSpace(s)))
	if err := f.validate(); err != nil {
		return "", err
	}
	return f, nil
}

func (f Field) validate() error {
	switch f {
	case Open, High, Low, Close:
		return nil
	}
	return fmt.Errorf("source field %q must be one of open, high, low, close: %w", f, model.ErrInvalidParameter)
}

func (f Field) price(c *model.Candle) float64 {
	switch f {
	case Open:
		return c.Open
	case High:
		return c.High
	case Low:
		return c.Low
	default:
		return c.Close
	}
}

// Average is a moving-average series aligned 1:1 with its source candles.
type Average struct {
	Name   string      `json:"name"`
	Kind   Kind        `json:"kind"`
	Period int         `json:"period"`
	Field  Field       `json:"field"`
	TS     []time.Time `json:"ts"`
	Values []float64   `json:"values"`
}

// Len returns the number of values.
func (a *Average) Len() int { return len(a.Values) }

// MovingAverage computes a simple or exponential moving average of field
// over the series. The output has exactly one value per input candle.
func MovingAverage(series model.Series, period int, kind Kind, field Field) (Average, error) {
	out, err := Compute(series, []Config{{Kind: kind, Period: period, Field: field}})
	if err != nil {
		return Average{}, err
	}
	return out[0], nil
}
