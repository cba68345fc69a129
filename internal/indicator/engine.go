package indicator

import (
	"fmt"
	"time"

	"equity-screener/internal/model"
)

// Config specifies a single moving average to compute.
type Config struct {
	Kind   Kind
	Period int
	Field  Field
}

// New creates a fresh streaming indicator for cfg.
func New(cfg Config) (Indicator, error) {
	if cfg.Period <= 0 {
		return nil, fmt.Errorf("period %d must be positive: %w", cfg.Period, model.ErrInvalidParameter)
	}
	switch cfg.Kind {
	case Simple:
		return NewSMA(cfg.Period), nil
	case Exponential:
		return NewEMA(cfg.Period), nil
	}
	return nil, fmt.Errorf("moving average kind %q must be simple or exponential: %w", cfg.Kind, model.ErrInvalidParameter)
}

// Compute runs every configured average over the series in a single pass.
// Results are returned in config order, each aligned with series.Candles.
func Compute(series model.Series, configs []Config) ([]Average, error) {
	inds := make([]Indicator, len(configs))
	out := make([]Average, len(configs))
	for i, cfg := range configs {
		if err := cfg.Field.validate(); err != nil {
			return nil, err
		}
		ind, err := New(cfg)
		if err != nil {
			return nil, err
		}
		inds[i] = ind
		out[i] = Average{
			Name:   ind.Name(),
			Kind:   cfg.Kind,
			Period: cfg.Period,
			Field:  cfg.Field,
			TS:     make([]time.Time, 0, series.Len()),
			Values: make([]float64, 0, series.Len()),
		}
	}

	for ci := range series.Candles {
		c := &series.Candles[ci]
		for i, ind := range inds {
			ind.Update(configs[i].Field.price(c))
			out[i].TS = append(out[i].TS, c.TS)
			out[i].Values = append(out[i].Values, ind.Value())
		}
	}
	return out, nil
}

// itoa converts int to string without importing strconv.
func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	buf := [20]byte{}
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
