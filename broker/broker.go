// Package broker defines the contracts the reconciler and the scanners use
// to talk to the outside world: an order source, price sources and an order
// placer. Concrete clients live in the subpackages.
package broker

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrUpstream marks a collaborator (order list, quote, candles, holdings)
// as unreachable or erroring. Never retried here; the caller logs it and
// the next scheduled run is the retry.
var ErrUpstream = errors.New("upstream unavailable")

type TransactionType string

const (
	Buy  TransactionType = "BUY"
	Sell TransactionType = "SELL"
)

// StatusTraded is the order status denoting full execution. Data sources
// use different labels for the same state; clients normalize to this one.
const StatusTraded = "TRADED"

// Order is a single executed order as reported by the order source.
// Immutable once fetched.
type Order struct {
	OrderID      string
	ExchangeTime string // as received; parsed only when reconciled
	Type         TransactionType
	Status       string
	Symbol       string
	Quantity     int64
	AveragePrice decimal.Decimal // resolved across synonymous price fields
	Raw          []byte          // original payload, kept for the ledger
}

// Holding is one position as reported by the holdings endpoint.
type Holding struct {
	Symbol     string
	SecurityID string
	Quantity   int64
	AvgCost    decimal.Decimal
}

// Ticket is a buy instruction produced by the selectors.
type Ticket struct {
	Symbol     string
	SecurityID string
	Quantity   int64
	Reference  decimal.Decimal // price the decision was made at
	Reason     string
}

type OrderSource interface {
	GetOrderList(ctx context.Context) ([]Order, error)
}

type QuoteSource interface {
	// GetLTP returns the last traded price for an instrument key.
	GetLTP(ctx context.Context, instrumentKey, symbol string) (decimal.Decimal, error)
}

type CandleSource interface {
	// GetDailyCloses returns up to n most recent end-of-day closes,
	// oldest first.
	GetDailyCloses(ctx context.Context, instrumentKey string, n int) ([]decimal.Decimal, error)
}

type HoldingsSource interface {
	GetHoldings(ctx context.Context) ([]Holding, error)
}

type OrderPlacer interface {
	// PlaceMarketBuy submits a market buy and returns the broker order ID.
	PlaceMarketBuy(ctx context.Context, t Ticket) (string, error)
}

// PricingSource is the single capability the reconciler needs for marking
// the book: one decimal per symbol. Implemented by the live-quote adapter
// and by the end-of-day bhavcopy reader.
type PricingSource interface {
	ClosingPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// FetchTraded pulls the full order list once and filters it down to fully
// executed orders for the given symbol. The match is exact and
// case-sensitive. Collaborator failures come back wrapped in ErrUpstream.
func FetchTraded(ctx context.Context, src OrderSource, symbol string) ([]Order, error) {
	orders, err := src.GetOrderList(ctx)
	if err != nil {
		if !errors.Is(err, ErrUpstream) {
			err = fmt.Errorf("%w: %v", ErrUpstream, err)
		}
		return nil, fmt.Errorf("fetch %s orders: %w", symbol, err)
	}

	out := make([]Order, 0, len(orders))
	for _, o := range orders {
		if o.Status == StatusTraded && o.Symbol == symbol {
			out = append(out, o)
		}
	}
	return out, nil
}
