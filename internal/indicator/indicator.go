// Package indicator provides moving-average calculations over candle series.
//
// Streaming indicators implement the Indicator interface and consume one
// price at a time; MovingAverage and Compute run them over a whole series
// and return values aligned 1:1 with the input candles.
package indicator

// Indicator is the interface for all streaming indicators.
type Indicator interface {
	// Name returns the indicator name (e.g., "SMA_20", "EMA_9").
	Name() string

	// Update feeds the next price and recalculates.
	Update(price float64)

	// Value returns the current calculated value. Returns 0 before the first Update.
	Value() float64

	// Ready returns true once at least one price has been observed.
	Ready() bool
}
