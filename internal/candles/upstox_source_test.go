package candles

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equity-screener/internal/markethours"
	"equity-screener/internal/model"
	"equity-screener/pkg/upstox"
)

type fakeClient struct {
	rows []upstox.Candle
	err  error

	unit     string
	interval int
	to, from string
}

func (f *fakeClient) HistoricalCandles(_ context.Context, _, unit string, interval int, to, from string) ([]upstox.Candle, error) {
	f.unit, f.interval, f.to, f.from = unit, interval, to, from
	return f.rows, f.err
}

func (f *fakeClient) IntradayCandles(_ context.Context, _, unit string, interval int) ([]upstox.Candle, error) {
	f.unit, f.interval = unit, interval
	return f.rows, f.err
}

func TestUpstoxSource_HistoricalReversesAndLocalizes(t *testing.T) {
	d1 := time.Date(2025, 10, 2, 18, 30, 0, 0, time.UTC) // 2025-10-03 00:00 IST
	d0 := d1.Add(-24 * time.Hour)
	fc := &fakeClient{rows: []upstox.Candle{{Time: d1, Close: 2}, {Time: d0, Close: 1}}}

	got, err := NewUpstoxSource(fc).FetchHistorical(context.Background(), "NSE_EQ|X", model.Days, 1,
		model.Date{}, model.Date{Year: 2025, Month: time.October, Day: 3})
	require.NoError(t, err)
	assert.Equal(t, "days", fc.unit)
	assert.Equal(t, "2025-10-03", fc.to)
	assert.Equal(t, "", fc.from)

	require.Len(t, got, 2)
	assert.Equal(t, 1.0, got[0].Close)
	assert.Equal(t, 2.0, got[1].Close)
	assert.Equal(t, 3, got[1].TS.Day())
	assert.Equal(t, markethours.IST, got[1].TS.Location())
}

func TestUpstoxSource_WrapsTransport(t *testing.T) {
	fc := &fakeClient{err: &upstox.APIError{StatusCode: 500, Message: "boom"}}
	_, err := NewUpstoxSource(fc).FetchIntraday(context.Background(), "NSE_EQ|X", model.Minutes, 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrTransport))

	var apiErr *upstox.APIError
	assert.True(t, errors.As(err, &apiErr))
}

func TestUpstoxSource_ProviderLimits(t *testing.T) {
	src := NewUpstoxSource(&fakeClient{})
	ctx := context.Background()

	_, err := src.FetchHistorical(ctx, "k", model.Days, 2, model.Date{}, model.Date{})
	assert.True(t, errors.Is(err, model.ErrInvalidParameter))

	_, err = src.FetchHistorical(ctx, "k", model.Minutes, 301, model.Date{}, model.Date{})
	assert.True(t, errors.Is(err, model.ErrInvalidParameter))

	_, err = src.FetchIntraday(ctx, "k", model.Weeks, 1)
	assert.True(t, errors.Is(err, model.ErrInvalidParameter))

	_, err = src.FetchIntraday(ctx, "k", model.Hours, 5)
	assert.NoError(t, err)
}
