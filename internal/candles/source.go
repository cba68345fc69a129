package candles

import (
	"context"

	"equity-screener/internal/model"
)

// Resolver maps a (symbol, exchange) pair to the provider's instrument key.
// Unknown pairs return an error wrapping model.ErrResolution.
type Resolver interface {
	Resolve(symbol, exchange string) (string, error)
}

// Source fetches raw candles for one instrument.
//
// FetchHistorical covers completed sessions in [from, to]; a zero from
// means "earliest available". FetchIntraday covers the current session and
// is only defined for minute and hour bars. Failures wrap model.ErrTransport
// (or model.ErrInvalidParameter for bars the provider cannot serve).
type Source interface {
	FetchHistorical(ctx context.Context, key string, g model.Granularity, interval int, from, to model.Date) ([]model.Candle, error)
	FetchIntraday(ctx context.Context, key string, g model.Granularity, interval int) ([]model.Candle, error)
}
