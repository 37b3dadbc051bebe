package cmd

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "moneytree",
	Short: "Portfolio ledger reconciler and index dip scanner",
	Long: `Moneytree keeps an append-only portfolio ledger in sync with the broker's
order book and scans the NIFTY 50 for buying opportunities.

It provides commands for:
  - Reconciling executed orders into the running ledger
  - Marking the book at close on no-trade days
  - Ranking index constituents below their 20-day moving average
  - Averaging down into underwater holdings`,
}

var (
	cfgPath string
	verbose bool
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "f", "", "path to config file (YAML or JSON)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

// newLogger builds the process logger. One line per event; failures of a
// run are exactly one error line with full context.
func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().
		Timestamp().
		Logger()
}
