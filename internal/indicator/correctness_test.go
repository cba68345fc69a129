package indicator

import (
	"math"
	"testing"
	"time"

	"equity-screener/internal/model"
)

// ────────────────────────────────────────────────────────────
// Helper
// ────────────────────────────────────────────────────────────

var ist = time.FixedZone("IST", 5*3600+30*60)

func seriesOf(closes ...float64) model.Series {
	s := model.Series{Symbol: "TEST", Exchange: "NSE", Granularity: model.Days, Interval: 1}
	start := time.Date(2025, 10, 1, 0, 0, 0, 0, ist)
	for i, c := range closes {
		s.Candles = append(s.Candles, model.Candle{
			TS:   start.AddDate(0, 0, i),
			Open: c - 1, High: c + 2, Low: c - 2, Close: c,
			Volume: 1000,
		})
	}
	return s
}

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (tol=%.6f, diff=%.6f)", label, got, want, tol, math.Abs(got-want))
	}
}

// ────────────────────────────────────────────────────────────
// SMA Correctness
// ────────────────────────────────────────────────────────────

func TestSMA_Correctness_Period3(t *testing.T) {
	// Prices: 100, 102, 104, 103, 105
	// Partial windows near the start: 100, (100+102)/2 = 101
	// Full windows: 102, 103, 104
	sma := NewSMA(3)
	prices := []float64{100, 102, 104, 103, 105}
	expected := []float64{100, 101, 102, 103, 104}

	for i, p := range prices {
		sma.Update(p)
		if !sma.Ready() {
			t.Errorf("candle %d: expected Ready", i)
		}
		assertClose(t, "SMA(3)", sma.Value(), expected[i], 0.0001)
	}
}

func TestSMA_Reset(t *testing.T) {
	sma := NewSMA(2)
	sma.Update(10)
	sma.Update(20)
	sma.Reset()
	if sma.Ready() || sma.Value() != 0 {
		t.Fatalf("after Reset: Ready=%v Value=%f", sma.Ready(), sma.Value())
	}
	sma.Update(7)
	assertClose(t, "SMA after reset", sma.Value(), 7, 0)
}

func TestMovingAverage_SimplePeriodOneIsIdentity(t *testing.T) {
	s := seriesOf(101.25, 99.5, 100.75, 102.1, 98.3)
	for _, f := range []Field{Open, High, Low, Close} {
		ma, err := MovingAverage(s, 1, Simple, f)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", f, err)
		}
		for i := range s.Candles {
			want := f.price(&s.Candles[i])
			if ma.Values[i] != want {
				t.Errorf("%s[%d]: got %v, want exactly %v", f, i, ma.Values[i], want)
			}
		}
	}
}

// ────────────────────────────────────────────────────────────
// EMA Correctness
// ────────────────────────────────────────────────────────────

func TestEMA_Correctness_Period3(t *testing.T) {
	// α = 2/(3+1) = 0.5, seeded with the first price.
	// 100 → 100
	// 102 → 0.5*102 + 0.5*100 = 101
	// 104 → 0.5*104 + 0.5*101 = 102.5
	// 103 → 0.5*103 + 0.5*102.5 = 102.75
	ema := NewEMA(3)
	prices := []float64{100, 102, 104, 103}
	expected := []float64{100, 101, 102.5, 102.75}
	for i, p := range prices {
		ema.Update(p)
		assertClose(t, "EMA(3)", ema.Value(), expected[i], 1e-9)
	}
}

func TestEMA_SeedIdentity(t *testing.T) {
	s := seriesOf(87.65, 90, 91)
	for _, period := range []int{1, 3, 9, 200} {
		ma, err := MovingAverage(s, period, Exponential, Close)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ma.Values[0] != 87.65 {
			t.Errorf("EMA(%d)[0] = %v, want exactly 87.65", period, ma.Values[0])
		}
	}
}

func TestEMA_Correctness_Period9(t *testing.T) {
	prices := []float64{
		22.27, 22.19, 22.08, 22.17, 22.18, 22.13, 22.23, 22.43, 22.24, 22.29,
		22.15, 22.39, 22.38, 22.61, 23.36,
	}
	ema := NewEMA(9)
	alpha := 2.0 / 10.0
	want := prices[0]
	for i, p := range prices {
		ema.Update(p)
		if i > 0 {
			want = alpha*p + (1-alpha)*want
		}
		assertClose(t, "EMA(9)", ema.Value(), want, 1e-9)
	}
}

func TestEMA_ConstantSeries(t *testing.T) {
	ema := NewEMA(5)
	for i := 0; i < 50; i++ {
		ema.Update(50)
		if ema.Value() != 50 {
			t.Fatalf("update %d: EMA of constant series = %v, want 50", i, ema.Value())
		}
	}
}
