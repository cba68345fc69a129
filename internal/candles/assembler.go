// Package candles assembles one gap-free candle series per symbol from the
// provider's historical and intraday endpoints.
package candles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"equity-screener/internal/markethours"
	"equity-screener/internal/model"
)

// Query describes one series request. Zero From means earliest available,
// zero To means today in exchange-local time.
type Query struct {
	Symbol      string
	Exchange    string
	Granularity model.Granularity
	Interval    int
	From        model.Date
	To          model.Date
}

// Status classifies the outcome of one Assemble call.
type Status int

const (
	StatusOK Status = iota
	StatusResolutionFailed
	StatusTransportFailed
	StatusInvalidParameter
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusResolutionFailed:
		return "resolution_failed"
	case StatusTransportFailed:
		return "transport_failed"
	case StatusInvalidParameter:
		return "invalid_parameter"
	default:
		return "unknown"
	}
}

// Result is the per-symbol outcome. On any status other than StatusOK the
// series is empty and Err holds the cause. IntradayErr records a tolerated
// intraday failure; the series then holds historical bars only.
type Result struct {
	Symbol      string
	Exchange    string
	Series      model.Series
	Status      Status
	Err         error
	IntradayErr error
}

// OK reports whether the historical fetch succeeded.
func (r Result) OK() bool { return r.Status == StatusOK }

// Assembler combines a Resolver and a Source. It holds no per-query state
// and is safe for concurrent use if its collaborators are.
type Assembler struct {
	resolver Resolver
	source   Source
	log      *slog.Logger
	now      func() time.Time
}

// NewAssembler wires an assembler. A nil logger uses slog.Default().
func NewAssembler(r Resolver, s Source, log *slog.Logger) *Assembler {
	if log == nil {
		log = slog.Default()
	}
	return &Assembler{
		resolver: r,
		source:   s,
		log:      log.With(slog.String("component", "assembler")),
		now:      time.Now,
	}
}

// Assemble resolves the instrument, fetches historical bars and, for minute
// and hour bars, the current session, then merges them.
func (a *Assembler) Assemble(ctx context.Context, q Query) Result {
	res := Result{
		Symbol:   model.NormalizeSymbol(q.Symbol),
		Exchange: model.NormalizeSymbol(q.Exchange),
	}
	res.Series = model.Series{
		Symbol:      res.Symbol,
		Exchange:    res.Exchange,
		Granularity: q.Granularity,
		Interval:    q.Interval,
	}

	if err := model.ValidateBar(q.Granularity, q.Interval); err != nil {
		return res.fail(StatusInvalidParameter, err)
	}

	key, err := a.resolver.Resolve(res.Symbol, res.Exchange)
	if err != nil {
		if !errors.Is(err, model.ErrResolution) {
			err = fmt.Errorf("%w: %w", model.ErrResolution, err)
		}
		return res.fail(StatusResolutionFailed, err)
	}

	today := markethours.Today(a.now())
	to := q.To
	if to.IsZero() {
		to = today
	}

	hist, err := a.source.FetchHistorical(ctx, key, q.Granularity, q.Interval, q.From, to)
	if err != nil {
		if errors.Is(err, model.ErrInvalidParameter) {
			return res.fail(StatusInvalidParameter, err)
		}
		if !errors.Is(err, model.ErrTransport) {
			err = fmt.Errorf("%w: %w", model.ErrTransport, err)
		}
		return res.fail(StatusTransportFailed, err)
	}

	var intra []model.Candle
	if q.Granularity.SupportsIntraday() && !to.Before(today) {
		intra, err = a.source.FetchIntraday(ctx, key, q.Granularity, q.Interval)
		if err != nil {
			res.IntradayErr = err
			intra = nil
			a.log.Warn("intraday fetch failed, using historical only",
				slog.String("symbol", res.Symbol),
				slog.String("exchange", res.Exchange),
				slog.Any("err", err))
		}
	}

	merged := Merge(hist, intra)
	for i := range merged {
		merged[i].TS = merged[i].TS.In(markethours.IST)
	}
	res.Series.Candles = merged

	a.log.Debug("series assembled",
		slog.String("symbol", res.Symbol),
		slog.String("exchange", res.Exchange),
		slog.Int("historical", len(hist)),
		slog.Int("intraday", len(intra)),
		slog.Int("merged", len(merged)))
	return res
}

func (r Result) fail(s Status, err error) Result {
	r.Status = s
	r.Err = err
	r.Series.Candles = nil
	return r
}
