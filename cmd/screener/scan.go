package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"equity-screener/config"
	"equity-screener/internal/cluster"
	"equity-screener/internal/logger"
	"equity-screener/internal/markethours"
	"equity-screener/internal/model"
	"equity-screener/internal/notification"
	"equity-screener/internal/scan"
)

var (
	scanProfile string
	scanSymbols []string
	scanJSON    bool
	scanNotify  bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the universe for EMA clusters",
	Long: `Assembles a candle series for every symbol in the universe, runs the
configured EMA sets over it and reports the symbols whose averages
converged within the accuracy band inside the lookback window.

The universe is the profile's symbols list, or every equity on the
profile's exchanges when that list is empty. --symbols overrides both.`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVarP(&scanProfile, "profile", "p", "", "YAML scan profile (default $SCAN_PROFILE, else built-in defaults)")
	scanCmd.Flags().StringSliceVarP(&scanSymbols, "symbols", "s", nil, "comma-separated EXCHANGE:SYMBOL list replacing the universe")
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "print the report as JSON")
	scanCmd.Flags().BoolVar(&scanNotify, "notify", false, "send the summary to the configured notifiers")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	path := scanProfile
	if path == "" {
		path = cfg.ProfilePath
	}
	p, err := config.LoadProfile(path)
	if err != nil {
		return err
	}
	if len(scanSymbols) > 0 {
		p.Symbols = scanSymbols
	}
	opts, err := p.Options()
	if err != nil {
		return err
	}

	rt, err := setup(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	universe, err := p.Listings()
	if err != nil {
		return err
	}
	if universe == nil {
		if universe, err = rt.ref.equities(ctx, p.Exchanges); err != nil {
			return err
		}
	}
	if len(universe) == 0 {
		return fmt.Errorf("empty universe for exchanges %v", p.Exchanges)
	}

	runID := logger.NewRunID()
	ctx = logger.WithRunID(ctx, runID)
	log.Info("scan starting",
		slog.String("run_id", runID),
		slog.Int("symbols", len(universe)),
		slog.String("bar", fmt.Sprintf("%d %s", opts.Interval, opts.Granularity)),
		slog.Float64("accuracy", opts.Accuracy),
		slog.String("mode", opts.Mode.String()),
	)

	if opts.Mode == cluster.EvaluateLatestOnly && !markethours.IsMarketOpen(time.Now()) {
		log.Warn("live mode outside market hours; the latest bar is from the last session",
			slog.String("market", markethours.Describe(time.Now())))
	}

	rt.health.ScanStarted(runID)
	scanner := scan.NewScanner(rt.assembler, markethours.NewCalendar(), rt.metrics, log)
	rep, err := scanner.Run(ctx, universe, opts)
	if err != nil {
		return err
	}
	rt.health.ScanFinished(rep.FinishedAt, len(rep.Hits))

	out := cmd.OutOrStdout()
	if scanJSON {
		err = writeReportJSON(out, rep)
	} else {
		writeReportText(out, cmd.ErrOrStderr(), rep)
	}
	if err != nil {
		return err
	}

	if scanNotify {
		if err := rt.notifier.Send(ctx, notification.FromReport(rep, notification.DefaultMaxListed)); err != nil {
			log.Error("notify failed", slog.Any("err", err))
		}
	}
	if rep.Interrupted {
		return ctx.Err()
	}
	return nil
}

type reportJSON struct {
	*scan.Report
	WindowFrom string          `json:"window_from"`
	WindowTo   string          `json:"window_to"`
	DurationMs int64           `json:"duration_ms"`
	Failures   []failureJSON   `json:"failures"`
	Symbols    []model.Listing `json:"symbols"`
	Counts     map[string]int  `json:"failure_counts,omitempty"`
}

type failureJSON struct {
	Symbol   string `json:"symbol"`
	Exchange string `json:"exchange"`
	Status   string `json:"status"`
	Error    string `json:"error"`
}

func writeReportJSON(w io.Writer, rep *scan.Report) error {
	doc := reportJSON{
		Report:     rep,
		WindowFrom: rep.WindowFrom.String(),
		WindowTo:   rep.WindowTo.String(),
		DurationMs: rep.Duration.Milliseconds(),
		Failures:   make([]failureJSON, 0, len(rep.Failures)),
		Symbols:    rep.Symbols(),
	}
	for _, f := range rep.Failures {
		fj := failureJSON{Symbol: f.Symbol, Exchange: f.Exchange, Status: f.Status.String()}
		if f.Err != nil {
			fj.Error = f.Err.Error()
		}
		doc.Failures = append(doc.Failures, fj)
	}
	if counts := rep.FailureCounts(); len(counts) > 0 {
		doc.Counts = make(map[string]int, len(counts))
		for s, n := range counts {
			doc.Counts[s.String()] = n
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func writeReportText(w, errw io.Writer, rep *scan.Report) {
	fmt.Fprintf(w, "window %s .. %s  scanned %d  hits %d  empty %d  failed %d  (%s)\n",
		rep.WindowFrom, rep.WindowTo, rep.Scanned, len(rep.Hits), rep.Empty, len(rep.Failures), rep.Duration.Round(time.Millisecond))
	for _, h := range rep.Hits {
		stamps := make([]string, len(h.Timestamps))
		for i, ts := range h.Timestamps {
			stamps[i] = ts.In(markethours.IST).Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%-6s %-20s %-5s %s\n", h.Exchange, h.Symbol, h.Set, strings.Join(stamps, ", "))
	}
	for _, f := range rep.Failures {
		fmt.Fprintf(errw, "failed %s:%s %s: %v\n", f.Exchange, f.Symbol, f.Status, f.Err)
	}
	if rep.Interrupted {
		fmt.Fprintln(w, "scan interrupted; report is partial")
	}
}
