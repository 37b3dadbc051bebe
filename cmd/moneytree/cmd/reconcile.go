package cmd

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"moneytree/broker"
	"moneytree/broker/bhavcopy"
	"moneytree/broker/dhan"
	"moneytree/broker/upstox"
	"moneytree/config"
	"moneytree/job"
	"moneytree/ledger"
	"moneytree/market"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Sync executed orders into the portfolio ledger",
	Long: `Reconcile reads the ledger tail, fetches the broker's order book, folds
any new executed orders for the tracked symbol into the running holding and
cost basis, and appends the resulting rows. On weekdays with no trade it
appends a single end-of-day mark instead.

Re-running is always safe: orders already in the ledger are skipped.

Example:
  moneytree reconcile -f moneytree.yaml
  moneytree reconcile --schedule "45 15 * * 1-5"`,
	RunE: runReconcile,
}

var reconcileSchedule string

func init() {
	rootCmd.AddCommand(reconcileCmd)

	reconcileCmd.Flags().StringVar(&reconcileSchedule, "schedule", "", "cron spec; keep running and reconcile on schedule")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := newLogger()

	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer store.Close()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	closeHour, closeMinute, err := cfg.MarketClose()
	if err != nil {
		return err
	}

	prices, err := pricingSource(cfg)
	if err != nil {
		return err
	}

	j := &job.Reconcile{
		Store:  store,
		Orders: dhan.NewClient(cfg.Dhan.ClientID, cfg.Dhan.AccessToken),
		Prices: prices,
		Rec: &ledger.Reconciler{
			Location:    loc,
			CloseHour:   closeHour,
			CloseMinute: closeMinute,
		},
		Symbol:   cfg.Symbol,
		Fallback: job.PricePolicy(cfg.PriceFallback),
		Log:      log,
	}

	schedule := reconcileSchedule
	if schedule == "" {
		schedule = cfg.Schedule
	}
	if schedule == "" {
		_, err := j.Run(cmd.Context())
		if err != nil {
			log.Error().Err(err).Msg("reconcile failed")
		}
		return err
	}

	// Scheduled mode: each tick is a full, independent batch run. A
	// failed run is logged; the next tick starts over from the tail.
	c := cron.New()
	_, err = c.AddFunc(schedule, func() {
		if _, err := j.Run(context.Background()); err != nil {
			log.Error().Err(err).Msg("reconcile failed")
		}
	})
	if err != nil {
		return fmt.Errorf("bad schedule %q: %w", schedule, err)
	}
	log.Info().Str("schedule", schedule).Msg("reconciling on schedule")
	c.Run()
	return nil
}

func openStore(cfg *config.Config) (ledger.Store, error) {
	if cfg.Ledger.Backend == "sqlite" {
		return ledger.NewSQLite(cfg.Ledger.DBPath)
	}
	return ledger.NewCSV(cfg.Ledger.CSVPath)
}

// pricingSource picks where the closing price comes from: the end-of-day
// bhavcopy when one is configured, the live quote otherwise.
func pricingSource(cfg *config.Config) (broker.PricingSource, error) {
	if cfg.Market.BhavcopyFile != "" {
		return bhavcopy.New(cfg.Market.BhavcopyFile), nil
	}
	keys, err := market.LoadInstrumentMap(cfg.Market.InstrumentFile)
	if err != nil {
		return nil, fmt.Errorf("load instruments: %w", err)
	}
	return upstox.Quote{
		Client: upstox.NewClient(cfg.Upstox.AccessToken),
		Keys:   keys,
	}, nil
}
