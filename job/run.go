// Package job wires the collaborators together into the two batch runs:
// reconciling executed orders into the ledger, and scanning the universe
// for buys. Each run is stateless; everything durable lives in the store.
package job

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"moneytree/broker"
	"moneytree/ledger"
)

// PricePolicy is what to do when the closing-price collaborator fails.
type PricePolicy string

const (
	// PriceZero substitutes 0 and keeps going. This understates losses
	// on the marked rows; it is the default only because the ledger's
	// history was built that way.
	PriceZero PricePolicy = "zero"
	// PriceFail aborts the run instead.
	PriceFail PricePolicy = "fail"
)

// Reconcile is one ledger-sync invocation: read the persisted tail, price
// the book, fetch and filter orders, fold them in, append what is new.
type Reconcile struct {
	Store  ledger.Store
	Orders broker.OrderSource
	Prices broker.PricingSource
	Rec    *ledger.Reconciler

	Symbol   string
	Fallback PricePolicy

	Log zerolog.Logger
}

// Summary reports what one reconcile run did.
type Summary struct {
	RunID       string
	Fetched     int // traded orders matching the symbol
	Appended    int
	Skipped     int // already in the ledger
	TradedToday bool
	Holding     int64
	CostBasis   decimal.Decimal
}

// Run executes the reconciliation once. Failures surface as wrapped
// ErrUpstream / ErrMalformedOrder / ErrPersistence; rows appended before a
// failure stay appended, and the next run converges past them.
func (j *Reconcile) Run(ctx context.Context) (Summary, error) {
	sum := Summary{RunID: NewRunID()}
	log := j.Log.With().Str("run_id", sum.RunID).Str("symbol", j.Symbol).Logger()

	tail, err := j.Store.ReadAll()
	if err != nil {
		return sum, fmt.Errorf("read ledger: %w", err)
	}
	pos := ledger.Replay(tail)
	log.Info().Int("rows", len(tail)).Int64("holding", pos.Holding).Msg("ledger tail replayed")

	closing, err := j.Prices.ClosingPrice(ctx, j.Symbol)
	if err != nil {
		if j.Fallback == PriceFail {
			return sum, fmt.Errorf("closing price: %w", err)
		}
		log.Warn().Err(err).Msg("closing price unavailable, marking at zero")
		closing = decimal.Zero
	}

	orders, err := broker.FetchTraded(ctx, j.Orders, j.Symbol)
	if err != nil {
		return sum, err
	}
	sum.Fetched = len(orders)
	log.Info().Int("orders", len(orders)).Msg("traded orders fetched")

	rows, pos, traded, err := j.Rec.Reconcile(orders, pos, closing)
	if err != nil {
		return sum, err
	}
	sum.TradedToday = traded
	sum.Holding = pos.Holding
	sum.CostBasis = pos.CostBasis

	rows = j.dropDuplicateMark(tail, rows)

	for _, row := range rows {
		if err := j.Store.Append(row); err != nil {
			return sum, fmt.Errorf("append row %s: %w", row.OrderID, err)
		}
		sum.Appended++
	}
	sum.Skipped = sum.Fetched - ordersAppended(rows)

	log.Info().
		Int("appended", sum.Appended).
		Int("skipped", sum.Skipped).
		Bool("traded_today", sum.TradedToday).
		Int64("holding", sum.Holding).
		Str("cost_basis", sum.CostBasis.String()).
		Msg("reconcile complete")
	return sum, nil
}

// dropDuplicateMark suppresses the end-of-day placeholder when the tail
// already carries a row dated today: a re-run on a quiet day must append
// nothing, not a second mark.
func (j *Reconcile) dropDuplicateMark(tail []ledger.Row, rows []ledger.Row) []ledger.Row {
	if len(rows) == 0 || !rows[len(rows)-1].Placeholder() || len(tail) == 0 {
		return rows
	}
	today := rows[len(rows)-1].ExchangeTime[:10]
	last := tail[len(tail)-1].ExchangeTime
	if len(last) >= 10 && last[:10] == today {
		return rows[:len(rows)-1]
	}
	return rows
}

func ordersAppended(rows []ledger.Row) int {
	n := 0
	for _, r := range rows {
		if !r.Placeholder() {
			n++
		}
	}
	return n
}
