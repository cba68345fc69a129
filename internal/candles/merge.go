package candles

import (
	"slices"

	"equity-screener/internal/model"
)

// Merge concatenates historical and intraday batches, drops duplicate
// timestamps keeping the last occurrence and sorts ascending. Timestamps
// are compared as instants, so the same bar reported in two zones is one bar.
func Merge(historical, intraday []model.Candle) []model.Candle {
	out := make([]model.Candle, 0, len(historical)+len(intraday))
	pos := make(map[int64]int, len(historical)+len(intraday))

	add := func(batch []model.Candle) {
		for _, c := range batch {
			k := c.TS.UnixNano()
			if i, ok := pos[k]; ok {
				out[i] = c
				continue
			}
			pos[k] = len(out)
			out = append(out, c)
		}
	}
	add(historical)
	add(intraday)

	slices.SortStableFunc(out, func(a, b model.Candle) int { return a.TS.Compare(b.TS) })
	return out
}
