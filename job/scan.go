package job

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"moneytree/broker"
	"moneytree/scan"
)

// Scan is one universe-scan invocation: rank the constituents below their
// moving average and optionally issue buys: the top-ranked dip, the
// averaging-down pick against current holdings, or both.
type Scan struct {
	Ranker   scan.Ranker
	Averager scan.Averager
	Holdings broker.HoldingsSource
	Placer   broker.OrderPlacer

	Universe []string
	TopN     int

	BuyTop      bool
	AverageDown bool
	BuyQuantity int64

	Log zerolog.Logger
}

// ScanSummary reports what one scan run decided and did.
type ScanSummary struct {
	RunID      string
	Candidates []scan.Candidate
	Placed     []broker.Ticket
}

func (j *Scan) Run(ctx context.Context) (ScanSummary, error) {
	sum := ScanSummary{RunID: NewRunID()}
	log := j.Log.With().Str("run_id", sum.RunID).Logger()

	sum.Candidates = j.Ranker.Rank(ctx, j.Universe, j.TopN)
	for _, c := range sum.Candidates {
		log.Info().
			Str("symbol", c.Symbol).
			Str("ltp", c.LTP.String()).
			Str("ma20", c.MA20.String()).
			Str("deviation_pct", c.Deviation.StringFixed(2)).
			Msg("below moving average")
	}
	if len(sum.Candidates) == 0 {
		log.Info().Msg("nothing trading below its moving average")
	}

	if j.BuyTop && len(sum.Candidates) > 0 {
		top := sum.Candidates[0]
		key := j.Ranker.Keys[top.Symbol]
		qty := j.BuyQuantity
		if qty <= 0 {
			qty = 1
		}
		ticket := broker.Ticket{
			Symbol:     top.Symbol,
			SecurityID: key,
			Quantity:   qty,
			Reference:  top.LTP,
			Reason:     "dip " + top.Deviation.StringFixed(2) + "% below ma20",
		}
		if err := j.place(ctx, log, ticket, &sum); err != nil {
			return sum, err
		}
	}

	if j.AverageDown {
		holdings, err := j.Holdings.GetHoldings(ctx)
		if err != nil {
			return sum, fmt.Errorf("holdings: %w", err)
		}
		if ticket := j.Averager.Pick(ctx, holdings); ticket != nil {
			if err := j.place(ctx, log, *ticket, &sum); err != nil {
				return sum, err
			}
		} else {
			log.Info().Msg("no position past the averaging threshold")
		}
	}

	return sum, nil
}

func (j *Scan) place(ctx context.Context, log zerolog.Logger, t broker.Ticket, sum *ScanSummary) error {
	orderID, err := j.Placer.PlaceMarketBuy(ctx, t)
	if err != nil {
		return fmt.Errorf("place %s: %w", t.Symbol, err)
	}
	sum.Placed = append(sum.Placed, t)
	log.Info().
		Str("symbol", t.Symbol).
		Int64("quantity", t.Quantity).
		Str("order_id", orderID).
		Str("reason", t.Reason).
		Msg("buy placed")
	return nil
}
