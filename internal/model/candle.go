package model

import (
	"encoding/json"
	"time"
)

// Candle represents one OHLCV + open-interest bar for a single instrument.
// TS is always expressed in the exchange's local timezone (IST for NSE/BSE).
type Candle struct {
	TS           time.Time `json:"ts"`
	Open         float64   `json:"open"`
	High         float64   `json:"high"`
	Low          float64   `json:"low"`
	Close        float64   `json:"close"`
	Volume       float64   `json:"volume"`
	OpenInterest float64   `json:"oi"` // zero when the provider omits it
}

// JSON returns the JSON-encoded candle (ignoring errors for logging usage).
func (c *Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}

// Series is an ordered candle sequence for one (symbol, exchange, granularity) triple.
// After assembly the timestamps are strictly increasing.
type Series struct {
	Symbol      string      `json:"symbol"`
	Exchange    string      `json:"exchange"`
	Granularity Granularity `json:"granularity"`
	Interval    int         `json:"interval"`
	Candles     []Candle    `json:"candles"`
}

// Len returns the number of candles in the series.
func (s *Series) Len() int { return len(s.Candles) }

// Empty reports whether the series holds no candles.
func (s *Series) Empty() bool { return len(s.Candles) == 0 }

// Timestamps returns the candle timestamps in series order.
func (s *Series) Timestamps() []time.Time {
	out := make([]time.Time, len(s.Candles))
	for i, c := range s.Candles {
		out[i] = c.TS
	}
	return out
}

// Last returns the most recent candle. ok is false for an empty series.
func (s *Series) Last() (c Candle, ok bool) {
	if len(s.Candles) == 0 {
		return Candle{}, false
	}
	return s.Candles[len(s.Candles)-1], true
}
