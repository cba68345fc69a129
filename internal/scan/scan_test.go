package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equity-screener/internal/candles"
	"equity-screener/internal/cluster"
	"equity-screener/internal/logger"
	"equity-screener/internal/markethours"
	"equity-screener/internal/metrics"
	"equity-screener/internal/model"
)

type fakeAssembler struct {
	mu      sync.Mutex
	series  map[string][]model.Candle
	fail    map[string]candles.Status
	queries []candles.Query
}

func (f *fakeAssembler) Assemble(_ context.Context, q candles.Query) candles.Result {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()

	res := candles.Result{Symbol: q.Symbol, Exchange: q.Exchange}
	if st, ok := f.fail[q.Symbol]; ok {
		res.Status = st
		res.Err = fmt.Errorf("%s: %w", q.Symbol, model.ErrTransport)
		if st == candles.StatusResolutionFailed {
			res.Err = model.ErrResolution
		}
		return res
	}
	res.Series = model.Series{Symbol: q.Symbol, Exchange: q.Exchange, Candles: f.series[q.Symbol]}
	return res
}

// daily builds one bar per calendar day from 2025-09-22 through 2025-10-03.
func daily(price func(i int) float64) []model.Candle {
	start := time.Date(2025, 9, 22, 0, 0, 0, 0, markethours.IST)
	out := make([]model.Candle, 12)
	for i := range out {
		p := price(i)
		out[i] = model.Candle{TS: start.AddDate(0, 0, i), Open: p, High: p, Low: p, Close: p}
	}
	return out
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestScanner(a Assembler, m *metrics.Metrics) *Scanner {
	s := NewScanner(a, &markethours.Calendar{}, m, quiet)
	s.now = func() time.Time { return time.Date(2025, 10, 3, 16, 0, 0, 0, markethours.IST) }
	return s
}

func defaultOpts() Options {
	return Options{
		Granularity:  model.Days,
		Interval:     1,
		LookbackDays: 5,
		Accuracy:     0.2,
		Workers:      3,
	}
}

func universe(symbols ...string) []model.Listing {
	out := make([]model.Listing, len(symbols))
	for i, s := range symbols {
		out[i] = model.Listing{Symbol: s, Exchange: "NSE"}
	}
	return out
}

func TestRun_MixedUniverse(t *testing.T) {
	fa := &fakeAssembler{
		series: map[string][]model.Candle{
			"FLAT":  daily(func(int) float64 { return 50 }),
			"TREND": daily(func(i int) float64 { return 100 * math.Pow(1.05, float64(i)) }),
		},
		fail: map[string]candles.Status{
			"GHOST": candles.StatusResolutionFailed,
			"FLAKY": candles.StatusTransportFailed,
		},
	}
	m := metrics.New()
	rep, err := newTestScanner(fa, m).Run(context.Background(), universe("TREND", "GHOST", "FLAT", "EMPTY", "FLAKY"), defaultOpts())
	require.NoError(t, err)

	assert.Equal(t, 5, rep.Scanned)
	assert.Equal(t, 1, rep.Empty)
	assert.False(t, rep.Interrupted)
	assert.NotEmpty(t, rep.RunID)

	require.Len(t, rep.Hits, 2)
	assert.Equal(t, "FLAT", rep.Hits[0].Symbol)
	assert.Equal(t, cluster.ThreeEMA.Name, rep.Hits[0].Set)
	assert.Equal(t, cluster.FourEMA.Name, rep.Hits[1].Set)
	// window is 2025-09-28 .. 2025-10-03: six daily bars
	assert.Len(t, rep.Hits[0].Timestamps, 6)
	assert.Equal(t, 28, rep.Hits[0].Timestamps[0].Day())
	assert.Equal(t, []model.Listing{{Symbol: "FLAT", Exchange: "NSE"}}, rep.Symbols())

	require.Len(t, rep.Failures, 2)
	assert.Equal(t, "FLAKY", rep.Failures[0].Symbol)
	assert.Equal(t, "GHOST", rep.Failures[1].Symbol)
	counts := rep.FailureCounts()
	assert.Equal(t, 1, counts[candles.StatusResolutionFailed])
	assert.Equal(t, 1, counts[candles.StatusTransportFailed])
}

func TestRun_QueryWindow(t *testing.T) {
	fa := &fakeAssembler{}
	opts := defaultOpts()
	opts.WarmupSessions = 2
	_, err := newTestScanner(fa, nil).Run(context.Background(), universe("X"), opts)
	require.NoError(t, err)

	require.Len(t, fa.queries, 1)
	q := fa.queries[0]
	// 2025-09-28 is a Sunday; two sessions before it are Fri 26 and Thu 25
	assert.Equal(t, model.Date{Year: 2025, Month: time.September, Day: 25}, q.From)
	assert.Equal(t, model.Date{Year: 2025, Month: time.October, Day: 3}, q.To)
	assert.Equal(t, model.Days, q.Granularity)
}

func TestRun_LatestOnly(t *testing.T) {
	fa := &fakeAssembler{series: map[string][]model.Candle{
		"FLAT": daily(func(int) float64 { return 10 }),
	}}
	opts := defaultOpts()
	opts.Mode = cluster.EvaluateLatestOnly
	opts.Sets = []cluster.Set{cluster.ThreeEMA}

	rep, err := newTestScanner(fa, nil).Run(context.Background(), universe("FLAT"), opts)
	require.NoError(t, err)
	require.Len(t, rep.Hits, 1)
	require.Len(t, rep.Hits[0].Timestamps, 1)
	assert.Equal(t, 3, rep.Hits[0].Timestamps[0].Day())
}

func TestRun_InvalidOptions(t *testing.T) {
	s := newTestScanner(&fakeAssembler{}, nil)
	bad := []func(o *Options){
		func(o *Options) { o.Interval = 0 },
		func(o *Options) { o.LookbackDays = 0 },
		func(o *Options) { o.Accuracy = -1 },
		func(o *Options) { o.WarmupSessions = -1 },
		func(o *Options) { o.Sets = []cluster.Set{{Name: "one", Periods: []int{3}}} },
	}
	for i, mutate := range bad {
		opts := defaultOpts()
		mutate(&opts)
		_, err := s.Run(context.Background(), universe("X"), opts)
		assert.True(t, errors.Is(err, model.ErrInvalidParameter), "case %d: %v", i, err)
	}
}

func TestRun_CancelledContext(t *testing.T) {
	fa := &fakeAssembler{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep, err := newTestScanner(fa, nil).Run(ctx, universe("A", "B", "C"), defaultOpts())
	require.NoError(t, err)
	assert.True(t, rep.Interrupted)
	assert.Zero(t, rep.Scanned)
}

func TestRun_KeepsCallerRunID(t *testing.T) {
	ctx := logger.WithRunID(context.Background(), "run-42")
	rep, err := newTestScanner(&fakeAssembler{}, nil).Run(ctx, nil, defaultOpts())
	require.NoError(t, err)
	assert.Equal(t, "run-42", rep.RunID)
}

func TestRun_Throttle(t *testing.T) {
	fa := &fakeAssembler{}
	opts := defaultOpts()
	opts.Throttle = 20 * time.Millisecond

	start := time.Now()
	_, err := newTestScanner(fa, nil).Run(context.Background(), universe("A", "B", "C"), opts)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
	assert.Len(t, fa.queries, 3)
}

func TestSince(t *testing.T) {
	base := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	ts := []time.Time{base, base.Add(time.Hour), base.Add(2 * time.Hour)}
	assert.Len(t, since(ts, base.Add(time.Hour)), 2)
	assert.Empty(t, since(ts, base.Add(3*time.Hour)))
	assert.Len(t, since(ts, base.Add(-time.Hour)), 3)
}
