package scan

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"moneytree/broker"
)

// Averager picks at most one held position to average down into: the one
// trading furthest below its own average cost, if it has fallen past the
// threshold.
type Averager struct {
	Quotes broker.QuoteSource
	Keys   map[string]string // symbol -> instrument key

	// ThresholdPct is a negative percentage; a position qualifies only
	// when its deviation is below it.
	ThresholdPct decimal.Decimal

	// BuyQuantity is the size of the emitted ticket; defaults to 1.
	BuyQuantity int64

	Log zerolog.Logger
}

// Pick returns the single buy instruction, or nil for a no-op day.
// Positions with zero quantity or zero average cost never qualify, and a
// failed quote skips that position.
func (a Averager) Pick(ctx context.Context, holdings []broker.Holding) *broker.Ticket {
	var (
		worst    *broker.Holding
		worstDev decimal.Decimal
		worstLTP decimal.Decimal
	)

	for i := range holdings {
		h := holdings[i]
		if h.Quantity == 0 || h.AvgCost.IsZero() {
			continue
		}
		key, ok := a.Keys[h.Symbol]
		if !ok {
			a.Log.Warn().Str("symbol", h.Symbol).Msg("no instrument key, skipping")
			continue
		}
		ltp, err := a.Quotes.GetLTP(ctx, key, h.Symbol)
		if err != nil {
			a.Log.Warn().Err(err).Str("symbol", h.Symbol).Msg("quote failed, skipping")
			continue
		}

		dev := ltp.Sub(h.AvgCost).Div(h.AvgCost).Mul(hundred)
		if worst == nil || dev.LessThan(worstDev) {
			worst = &holdings[i]
			worstDev = dev
			worstLTP = ltp
		}
	}

	if worst == nil || worstDev.GreaterThanOrEqual(a.ThresholdPct) {
		return nil
	}

	qty := a.BuyQuantity
	if qty <= 0 {
		qty = 1
	}
	return &broker.Ticket{
		Symbol:     worst.Symbol,
		SecurityID: worst.SecurityID,
		Quantity:   qty,
		Reference:  worstLTP,
		Reason:     "average down " + worstDev.StringFixed(2) + "%",
	}
}
