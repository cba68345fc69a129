package main

import (
	"errors"
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"equity-screener/internal/instruments"
	sqlitestore "equity-screener/internal/store/sqlite"
)

var listExchanges []string

var instrumentsCmd = &cobra.Command{
	Use:   "instruments",
	Short: "Manage the instrument reference data",
}

var instrumentsImportCmd = &cobra.Command{
	Use:   "import [PATH]",
	Short: "Load a provider instrument dump into the SQLite store",
	Long: `Reads the provider's instrument JSON (plain or gzipped, default
$INSTRUMENTS_PATH) and upserts every row into $SQLITE_PATH.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.SQLitePath == "" {
			return errors.New("SQLITE_PATH is not set")
		}
		path := cfg.InstrumentsPath
		if len(args) == 1 {
			path = args[0]
		}
		list, err := instruments.Load(path)
		if err != nil {
			return err
		}
		st, err := sqlitestore.Open(cfg.SQLitePath, log)
		if err != nil {
			return err
		}
		defer st.Close()

		n, err := st.ImportInstruments(cmd.Context(), list)
		if err != nil {
			return err
		}
		total, err := st.Count(cmd.Context())
		if err != nil {
			return err
		}
		log.Info("instruments imported", slog.String("path", path), slog.Int("rows", n), slog.Int("total", total))
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d rows (%d in store)\n", n, total)
		return nil
	},
}

var instrumentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the equity universe on the given exchanges",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ref, err := openRefData(cmd.Context())
		if err != nil {
			return err
		}
		defer ref.close()

		list, err := ref.equities(cmd.Context(), listExchanges)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "EXCHANGE\tSYMBOL")
		for _, l := range list {
			fmt.Fprintf(tw, "%s\t%s\n", l.Exchange, l.Symbol)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%d equities\n", len(list))
		return nil
	},
}

func init() {
	instrumentsListCmd.Flags().StringSliceVarP(&listExchanges, "exchange", "e", []string{"NSE"}, "exchange prefixes to include")
	instrumentsCmd.AddCommand(instrumentsImportCmd, instrumentsListCmd)
	rootCmd.AddCommand(instrumentsCmd)
}
