package candles

import (
	"context"
	"fmt"

	"equity-screener/internal/markethours"
	"equity-screener/internal/model"
	"equity-screener/pkg/upstox"
)

// CandleClient is the part of *upstox.Client the source needs.
type CandleClient interface {
	HistoricalCandles(ctx context.Context, key, unit string, interval int, to, from string) ([]upstox.Candle, error)
	IntradayCandles(ctx context.Context, key, unit string, interval int) ([]upstox.Candle, error)
}

// UpstoxSource adapts the Upstox REST client to Source.
type UpstoxSource struct {
	client CandleClient
}

// NewUpstoxSource returns a Source backed by c.
func NewUpstoxSource(c CandleClient) *UpstoxSource {
	return &UpstoxSource{client: c}
}

// Provider limits on the interval multiplier per unit.
var maxInterval = map[model.Granularity]int{
	model.Minutes: 300,
	model.Hours:   5,
	model.Days:    1,
	model.Weeks:   1,
	model.Months:  1,
}

func checkUnit(g model.Granularity, interval int) error {
	if err := model.ValidateBar(g, interval); err != nil {
		return err
	}
	if interval > maxInterval[g] {
		return fmt.Errorf("interval %d exceeds provider limit %d for %s: %w", interval, maxInterval[g], g, model.ErrInvalidParameter)
	}
	return nil
}

func (s *UpstoxSource) FetchHistorical(ctx context.Context, key string, g model.Granularity, interval int, from, to model.Date) ([]model.Candle, error) {
	if err := checkUnit(g, interval); err != nil {
		return nil, err
	}
	rows, err := s.client.HistoricalCandles(ctx, key, g.String(), interval, to.String(), from.String())
	if err != nil {
		return nil, fmt.Errorf("historical candles %s: %w: %w", key, model.ErrTransport, err)
	}
	return convert(rows), nil
}

func (s *UpstoxSource) FetchIntraday(ctx context.Context, key string, g model.Granularity, interval int) ([]model.Candle, error) {
	if !g.SupportsIntraday() {
		return nil, fmt.Errorf("intraday %s bars: %w", g, model.ErrInvalidParameter)
	}
	if err := checkUnit(g, interval); err != nil {
		return nil, err
	}
	rows, err := s.client.IntradayCandles(ctx, key, g.String(), interval)
	if err != nil {
		return nil, fmt.Errorf("intraday candles %s: %w: %w", key, model.ErrTransport, err)
	}
	return convert(rows), nil
}

// convert maps provider rows (newest first) to ascending IST candles.
func convert(rows []upstox.Candle) []model.Candle {
	out := make([]model.Candle, len(rows))
	for i, r := range rows {
		out[len(rows)-1-i] = model.Candle{
			TS:           r.Time.In(markethours.IST),
			Open:         r.Open,
			High:         r.High,
			Low:          r.Low,
			Close:        r.Close,
			Volume:       r.Volume,
			OpenInterest: r.OpenInterest,
		}
	}
	return out
}
