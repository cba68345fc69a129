package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"equity-screener/internal/candles"
	"equity-screener/internal/indicator"
	"equity-screener/internal/markethours"
	"equity-screener/internal/model"
)

var (
	candlesExchange    string
	candlesGranularity string
	candlesInterval    int
	candlesFrom        string
	candlesTo          string
	candlesMA          []string
	candlesField       string
	candlesJSON        bool
)

var candlesCmd = &cobra.Command{
	Use:   "candles SYMBOL",
	Short: "Print the assembled candle series for one symbol",
	Long: `Fetches historical bars (plus today's intraday bars for minute and hour
units), merges them and prints the series with optional moving averages.

  screener candles RELIANCE --granularity minutes --interval 15 --ma ema:3,ema:4,sma:20`,
	Args: cobra.ExactArgs(1),
	RunE: runCandles,
}

func init() {
	candlesCmd.Flags().StringVarP(&candlesExchange, "exchange", "e", "NSE", "exchange")
	candlesCmd.Flags().StringVarP(&candlesGranularity, "granularity", "g", "days", "minutes|hours|days|weeks|months")
	candlesCmd.Flags().IntVarP(&candlesInterval, "interval", "i", 1, "bar size multiplier")
	candlesCmd.Flags().StringVar(&candlesFrom, "from", "", "first date, YYYY-MM-DD (default: earliest available)")
	candlesCmd.Flags().StringVar(&candlesTo, "to", "", "last date, YYYY-MM-DD (default: today)")
	candlesCmd.Flags().StringSliceVar(&candlesMA, "ma", nil, "moving averages as kind:period, e.g. ema:3,sma:20")
	candlesCmd.Flags().StringVar(&candlesField, "field", "close", "price the averages apply to")
	candlesCmd.Flags().BoolVar(&candlesJSON, "json", false, "print series and averages as JSON")
	rootCmd.AddCommand(candlesCmd)
}

// parseMA parses "kind:period" specs into indicator configs on field f.
func parseMA(specs []string, f indicator.Field) ([]indicator.Config, error) {
	out := make([]indicator.Config, 0, len(specs))
	for _, spec := range specs {
		k, p, ok := strings.Cut(spec, ":")
		if !ok {
			return nil, fmt.Errorf("moving average %q: want kind:period: %w", spec, model.ErrInvalidParameter)
		}
		kind, err := indicator.ParseKind(k)
		if err != nil {
			return nil, err
		}
		period, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("moving average %q: period: %w", spec, model.ErrInvalidParameter)
		}
		out = append(out, indicator.Config{Kind: kind, Period: period, Field: f})
	}
	return out, nil
}

func runCandles(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	g, err := model.ParseGranularity(candlesGranularity)
	if err != nil {
		return err
	}
	from, err := model.ParseDate(candlesFrom, markethours.IST)
	if err != nil {
		return err
	}
	to, err := model.ParseDate(candlesTo, markethours.IST)
	if err != nil {
		return err
	}
	field, err := indicator.ParseField(candlesField)
	if err != nil {
		return err
	}
	mas, err := parseMA(candlesMA, field)
	if err != nil {
		return err
	}

	rt, err := setup(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	res := rt.assembler.Assemble(ctx, candles.Query{
		Symbol:      args[0],
		Exchange:    candlesExchange,
		Granularity: g,
		Interval:    candlesInterval,
		From:        from,
		To:          to,
	})
	if !res.OK() {
		return fmt.Errorf("%s: %w", res.Status, res.Err)
	}
	if res.IntradayErr != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: intraday bars unavailable: %v\n", res.IntradayErr)
	}

	avgs, err := indicator.Compute(res.Series, mas)
	if err != nil {
		return err
	}

	if candlesJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Series   model.Series        `json:"series"`
			Averages []indicator.Average `json:"averages,omitempty"`
		}{res.Series, avgs})
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprint(tw, "TIME\tOPEN\tHIGH\tLOW\tCLOSE\tVOLUME")
	for _, a := range avgs {
		fmt.Fprintf(tw, "\t%s", a.Name)
	}
	fmt.Fprintln(tw)
	for i, c := range res.Series.Candles {
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.2f\t%.2f\t%.0f",
			c.TS.Format("2006-01-02 15:04"), c.Open, c.High, c.Low, c.Close, c.Volume)
		for _, a := range avgs {
			fmt.Fprintf(tw, "\t%.2f", a.Values[i])
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}
