package cmd

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"moneytree/broker/dhan"
	"moneytree/broker/upstox"
	"moneytree/config"
	"moneytree/job"
	"moneytree/market"
	"moneytree/scan"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Rank NIFTY 50 constituents trading below their 20-day average",
	Long: `Scan quotes every constituent of the NIFTY 50, keeps the ones trading
below their 20-day moving average and prints the deepest dips first.

With --buy it places a market buy for the top-ranked symbol. With
--average-down it instead checks current holdings and buys more of the one
that has fallen furthest below its own average cost, if past the
configured threshold.

Example:
  moneytree scan -f moneytree.yaml
  moneytree scan --buy --average-down`,
	RunE: runScan,
}

var (
	scanBuy     bool
	scanAverage bool
	scanTopN    int
)

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().BoolVar(&scanBuy, "buy", false, "place a market buy for the top-ranked dip")
	scanCmd.Flags().BoolVar(&scanAverage, "average-down", false, "buy more of the worst underwater holding")
	scanCmd.Flags().IntVar(&scanTopN, "top", 0, "override how many candidates to keep")
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := newLogger()

	keys, err := market.LoadInstrumentMap(cfg.Market.InstrumentFile)
	if err != nil {
		return fmt.Errorf("load instruments: %w", err)
	}

	quotes := upstox.NewClient(cfg.Upstox.AccessToken)
	broking := dhan.NewClient(cfg.Dhan.ClientID, cfg.Dhan.AccessToken)

	topN := cfg.Scan.TopN
	if scanTopN > 0 {
		topN = scanTopN
	}

	j := &job.Scan{
		Ranker: scan.Ranker{
			Quotes:  quotes,
			Candles: quotes,
			Keys:    keys,
			Log:     log,
		},
		Averager: scan.Averager{
			Quotes:       quotes,
			Keys:         keys,
			ThresholdPct: decimal.NewFromFloat(cfg.Scan.AveragingThresholdPct),
			BuyQuantity:  cfg.Scan.BuyQuantity,
			Log:          log,
		},
		Holdings:    broking,
		Placer:      broking,
		Universe:    market.Nifty50,
		TopN:        topN,
		BuyTop:      scanBuy,
		AverageDown: scanAverage,
		BuyQuantity: cfg.Scan.BuyQuantity,
		Log:         log,
	}

	sum, err := j.Run(cmd.Context())
	if err != nil {
		log.Error().Err(err).Msg("scan failed")
		return err
	}

	fmt.Printf("%-12s %10s %10s %8s\n", "SYMBOL", "LTP", "MA20", "DEV%")
	for _, c := range sum.Candidates {
		fmt.Printf("%-12s %10s %10s %8s\n", c.Symbol, c.LTP.StringFixed(2), c.MA20.StringFixed(2), c.Deviation.StringFixed(2))
	}
	for _, t := range sum.Placed {
		fmt.Printf("\nplaced: BUY %d %s (%s)\n", t.Quantity, t.Symbol, t.Reason)
	}
	return nil
}
