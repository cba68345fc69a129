// Package scan runs the screener over a symbol universe: assemble each
// series, run every configured cluster set, and collect hits and per-symbol
// failures without letting one symbol abort the batch.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"equity-screener/internal/candles"
	"equity-screener/internal/cluster"
	"equity-screener/internal/logger"
	"equity-screener/internal/markethours"
	"equity-screener/internal/metrics"
	"equity-screener/internal/model"
)

// Options control one scan.
type Options struct {
	Granularity model.Granularity
	Interval    int
	// LookbackDays is the evaluation window in calendar days ending today.
	LookbackDays int
	// WarmupSessions extends the fetch start before the window so the
	// EMAs have settled when the window begins. Hits before the window are
	// dropped.
	WarmupSessions int
	Accuracy       float64
	Mode           cluster.Mode
	Sets           []cluster.Set
	Workers        int
	// Throttle is the minimum gap between symbol starts, to stay under the
	// provider's request rate.
	Throttle time.Duration
}

// Validate checks o and fills defaults.
func (o *Options) Validate() error {
	if err := model.ValidateBar(o.Granularity, o.Interval); err != nil {
		return err
	}
	if o.LookbackDays <= 0 {
		return fmt.Errorf("lookback days %d must be positive: %w", o.LookbackDays, model.ErrInvalidParameter)
	}
	if o.WarmupSessions < 0 {
		return fmt.Errorf("warmup sessions %d must not be negative: %w", o.WarmupSessions, model.ErrInvalidParameter)
	}
	if o.Accuracy < 0 {
		return fmt.Errorf("accuracy %v must not be negative: %w", o.Accuracy, model.ErrInvalidParameter)
	}
	if len(o.Sets) == 0 {
		o.Sets = []cluster.Set{cluster.ThreeEMA, cluster.FourEMA}
	}
	for _, s := range o.Sets {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
	return nil
}

// Hit is one symbol that clustered under one EMA set.
type Hit struct {
	Symbol     string      `json:"symbol"`
	Exchange   string      `json:"exchange"`
	Set        string      `json:"set"`
	Timestamps []time.Time `json:"timestamps"`
}

// Failure is one symbol that could not be evaluated.
type Failure struct {
	Symbol   string         `json:"symbol"`
	Exchange string         `json:"exchange"`
	Status   candles.Status `json:"-"`
	Err      error          `json:"-"`
}

// Report is the outcome of Run. Hits and Failures are sorted by exchange
// then symbol.
type Report struct {
	RunID       string        `json:"run_id"`
	StartedAt   time.Time     `json:"started_at"`
	FinishedAt  time.Time     `json:"finished_at"`
	WindowFrom  model.Date    `json:"-"`
	WindowTo    model.Date    `json:"-"`
	Scanned     int           `json:"scanned"`
	Empty       int           `json:"empty"`
	Hits        []Hit         `json:"hits"`
	Failures    []Failure     `json:"failures"`
	Interrupted bool          `json:"interrupted"`
	Duration    time.Duration `json:"-"`
}

// Symbols returns the distinct clustered listings in report order.
func (r *Report) Symbols() []model.Listing {
	seen := make(map[string]bool)
	var out []model.Listing
	for _, h := range r.Hits {
		k := model.LookupKey(h.Symbol, h.Exchange)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, model.Listing{Symbol: h.Symbol, Exchange: h.Exchange})
	}
	return out
}

// FailureCounts groups failures by status.
func (r *Report) FailureCounts() map[candles.Status]int {
	out := make(map[candles.Status]int)
	for _, f := range r.Failures {
		out[f.Status]++
	}
	return out
}

// Assembler is satisfied by *candles.Assembler.
type Assembler interface {
	Assemble(ctx context.Context, q candles.Query) candles.Result
}

// Scanner is reusable across runs.
type Scanner struct {
	assembler Assembler
	calendar  *markethours.Calendar
	metrics   *metrics.Metrics // may be nil
	log       *slog.Logger
	now       func() time.Time
}

func NewScanner(a Assembler, cal *markethours.Calendar, m *metrics.Metrics, log *slog.Logger) *Scanner {
	if log == nil {
		log = slog.Default()
	}
	return &Scanner{
		assembler: a,
		calendar:  cal,
		metrics:   m,
		log:       log.With(slog.String("component", "scan")),
		now:       time.Now,
	}
}

// Run scans universe. Per-symbol errors land in Report.Failures; the
// returned error is non-nil only for invalid options. Cancelling ctx stops
// new symbols from starting and marks the report interrupted.
func (s *Scanner) Run(ctx context.Context, universe []model.Listing, opts Options) (*Report, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	runID := logger.RunID(ctx)
	if runID == "" {
		runID = logger.NewRunID()
		ctx = logger.WithRunID(ctx, runID)
	}

	start := s.now()
	today := markethours.Today(start)
	windowFrom := today.AddDays(-opts.LookbackDays)
	fetchFrom := windowFrom
	if opts.WarmupSessions > 0 {
		fetchFrom = s.calendar.SessionsBack(windowFrom, opts.WarmupSessions)
	}
	windowStart := windowFrom.In(markethours.IST)

	rep := &Report{RunID: runID, StartedAt: start, WindowFrom: windowFrom, WindowTo: today}
	s.log.Info("scan started", append(logger.Attrs(ctx),
		slog.Int("symbols", len(universe)),
		slog.String("window_from", windowFrom.String()),
		slog.String("fetch_from", fetchFrom.String()),
		slog.String("granularity", opts.Granularity.String()),
		slog.Int("interval", opts.Interval),
		slog.Int("workers", opts.Workers))...)

	var (
		mu   sync.Mutex
		tick *time.Ticker
	)
	if opts.Throttle > 0 {
		tick = time.NewTicker(opts.Throttle)
		defer tick.Stop()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

loop:
	for i, l := range universe {
		if tick != nil && i > 0 {
			select {
			case <-gctx.Done():
				break loop
			case <-tick.C:
			}
		}
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			out := s.scanOne(gctx, l, opts, fetchFrom, today, windowStart)
			mu.Lock()
			defer mu.Unlock()
			rep.Scanned++
			switch {
			case out.failure != nil:
				rep.Failures = append(rep.Failures, *out.failure)
			case out.empty:
				rep.Empty++
			}
			rep.Hits = append(rep.Hits, out.hits...)
			return nil
		})
	}
	g.Wait()

	rep.Interrupted = ctx.Err() != nil
	rep.FinishedAt = s.now()
	rep.Duration = rep.FinishedAt.Sub(start)
	sortReport(rep)

	if s.metrics != nil {
		s.metrics.ScanDur.Observe(rep.Duration.Seconds())
		s.metrics.LastScanTime.Set(float64(rep.FinishedAt.Unix()))
	}
	s.log.Info("scan finished", append(logger.Attrs(ctx),
		slog.Int("scanned", rep.Scanned),
		slog.Int("hits", len(rep.Hits)),
		slog.Int("failures", len(rep.Failures)),
		slog.Bool("interrupted", rep.Interrupted),
		slog.Duration("took", rep.Duration))...)
	return rep, nil
}

type symbolOutcome struct {
	hits    []Hit
	failure *Failure
	empty   bool
}

func (s *Scanner) scanOne(ctx context.Context, l model.Listing, opts Options, from, to model.Date, windowStart time.Time) symbolOutcome {
	if s.metrics != nil {
		s.metrics.ScanInFlight.Inc()
		defer s.metrics.ScanInFlight.Dec()
	}

	t0 := s.now()
	res := s.assembler.Assemble(ctx, candles.Query{
		Symbol:      l.Symbol,
		Exchange:    l.Exchange,
		Granularity: opts.Granularity,
		Interval:    opts.Interval,
		From:        from,
		To:          to,
	})
	if s.metrics != nil {
		s.metrics.AssembleDur.Observe(s.now().Sub(t0).Seconds())
		s.metrics.SymbolsTotal.WithLabelValues(res.Status.String()).Inc()
		s.metrics.CandlesFetched.Add(float64(res.Series.Len()))
		if res.IntradayErr != nil {
			s.metrics.IntradayFailures.Inc()
		}
	}

	if !res.OK() {
		lvl := slog.LevelWarn
		if errors.Is(res.Err, model.ErrResolution) {
			lvl = slog.LevelDebug
		}
		s.log.Log(ctx, lvl, "symbol skipped", append(logger.Attrs(ctx),
			slog.String("symbol", res.Symbol),
			slog.String("exchange", res.Exchange),
			slog.String("status", res.Status.String()),
			slog.Any("err", res.Err))...)
		return symbolOutcome{failure: &Failure{Symbol: res.Symbol, Exchange: res.Exchange, Status: res.Status, Err: res.Err}}
	}
	if res.Series.Empty() {
		return symbolOutcome{empty: true}
	}

	var out symbolOutcome
	t1 := s.now()
	for _, set := range opts.Sets {
		ts, err := cluster.Detect(res.Series, set, opts.Accuracy, opts.Mode)
		if err != nil {
			// options were validated; a failure here is a bug, report it per symbol
			out.failure = &Failure{Symbol: res.Symbol, Exchange: res.Exchange, Status: candles.StatusInvalidParameter, Err: err}
			return out
		}
		ts = since(ts, windowStart)
		if len(ts) == 0 {
			continue
		}
		out.hits = append(out.hits, Hit{Symbol: res.Symbol, Exchange: res.Exchange, Set: set.Name, Timestamps: ts})
		if s.metrics != nil {
			s.metrics.ClustersTotal.WithLabelValues(set.Name).Inc()
		}
		s.log.Info("cluster found", append(logger.Attrs(ctx),
			slog.String("symbol", res.Symbol),
			slog.String("exchange", res.Exchange),
			slog.String("set", set.Name),
			slog.Int("bars", len(ts)),
			slog.Time("last", ts[len(ts)-1]))...)
	}
	if s.metrics != nil {
		s.metrics.DetectDur.Observe(s.now().Sub(t1).Seconds())
	}
	return out
}

// since drops timestamps before start. ts is ascending.
func since(ts []time.Time, start time.Time) []time.Time {
	i := sort.Search(len(ts), func(i int) bool { return !ts[i].Before(start) })
	return ts[i:]
}

func sortReport(r *Report) {
	sort.Slice(r.Hits, func(i, j int) bool {
		a, b := r.Hits[i], r.Hits[j]
		if a.Exchange != b.Exchange {
			return a.Exchange < b.Exchange
		}
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		return a.Set < b.Set
	})
	sort.Slice(r.Failures, func(i, j int) bool {
		a, b := r.Failures[i], r.Failures[j]
		if a.Exchange != b.Exchange {
			return a.Exchange < b.Exchange
		}
		return a.Symbol < b.Symbol
	})
}
