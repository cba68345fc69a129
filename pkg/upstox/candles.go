package upstox

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Candle is one provider bar. Rows arrive as
// [timestamp, open, high, low, close, volume, open_interest].
type Candle struct {
	Time         time.Time
	Open         float64
	High         float64
	Low          float64
	Close        float64
	Volume       float64
	OpenInterest float64
}

// UnmarshalJSON decodes the positional row form.
func (c *Candle) UnmarshalJSON(b []byte) error {
	var row []json.RawMessage
	if err := json.Unmarshal(b, &row); err != nil {
		return err
	}
	if len(row) < 6 {
		return fmt.Errorf("upstox: candle row has %d fields, want at least 6", len(row))
	}
	var ts string
	if err := json.Unmarshal(row[0], &ts); err != nil {
		return fmt.Errorf("upstox: candle timestamp: %w", err)
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return fmt.Errorf("upstox: candle timestamp %q: %w", ts, err)
	}
	c.Time = t

	fields := []*float64{&c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &c.OpenInterest}
	for i, dst := range fields {
		if i+1 >= len(row) {
			break
		}
		if string(row[i+1]) == "null" {
			continue
		}
		if err := json.Unmarshal(row[i+1], dst); err != nil {
			return fmt.Errorf("upstox: candle field %d: %w", i+1, err)
		}
	}
	return nil
}

type candleData struct {
	Candles []Candle `json:"candles"`
}

// HistoricalCandles fetches completed bars for instrumentKey up to and
// including to. from may be empty, in which case the provider decides how
// far back to go. Dates are YYYY-MM-DD. Rows are returned as the provider
// sends them (newest first).
func (c *Client) HistoricalCandles(ctx context.Context, instrumentKey, unit string, interval int, to, from string) ([]Candle, error) {
	path := fmt.Sprintf(routes["candle.historical"], url.PathEscape(instrumentKey), unit, interval, to)
	if from != "" {
		path += "/" + from
	}
	var out candleData
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Candles, nil
}

// IntradayCandles fetches the current session's bars for instrumentKey.
// The provider only serves minute and hour units here.
func (c *Client) IntradayCandles(ctx context.Context, instrumentKey, unit string, interval int) ([]Candle, error) {
	path := fmt.Sprintf(routes["candle.intraday"], url.PathEscape(instrumentKey), unit, interval)
	var out candleData
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Candles, nil
}
