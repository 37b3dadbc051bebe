// Package ledger implements the append-only portfolio ledger for one
// instrument: the persisted row model, the running position state and the
// reconciler that folds executed orders into it.
package ledger

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrMalformedOrder marks an order whose exchange timestamp cannot be
	// parsed (or whose transaction type is unknown). Fatal for the run:
	// dropping it silently would corrupt the running totals.
	ErrMalformedOrder = errors.New("malformed order")

	// ErrPersistence marks the row store as unreachable or erroring.
	ErrPersistence = errors.New("persistence unavailable")
)

// Columns is the persisted column schema, in order. This is a contract:
// reordering breaks every reader of historical rows.
var Columns = []string{
	"Order ID",
	"Exchange Time",
	"Transaction Type",
	"Order Status",
	"Close",
	"Average Price",
	"Quantity",
	"Total Holding",
	"Investment",
	"Value at close",
	"Profit/Loss",
	"Raw JSON",
}

// Row is one ledger entry: either a reconciled order or a no-activity-day
// placeholder. Placeholder rows carry no order fields (empty OrderID,
// TransactionType, Status and RawJSON, zero AveragePrice and Quantity).
type Row struct {
	OrderID         string
	ExchangeTime    string
	TransactionType string
	Status          string
	ClosingPrice    decimal.Decimal
	AveragePrice    decimal.Decimal
	Quantity        int64
	TotalHolding    int64
	Investment      decimal.Decimal // this order's quantity x price
	TotalCostBasis  decimal.Decimal // cumulative weighted-average cost after this row
	ValueAtClose    decimal.Decimal
	ProfitLoss      decimal.Decimal
	RawJSON         string
}

// Placeholder reports whether the row marks a no-trade day rather than an
// executed order.
func (r Row) Placeholder() bool { return r.OrderID == "" }

// Position is the running state reconstructed from the persisted tail at
// the start of each run. The ledger core keeps no durable state of its own.
type Position struct {
	Holding   int64
	CostBasis decimal.Decimal
	Seen      map[string]bool
}

// NewPosition returns an empty position with an allocated ID set.
func NewPosition() Position {
	return Position{CostBasis: decimal.Zero, Seen: map[string]bool{}}
}

// Store is the external append-only row store. Rows are never mutated or
// deleted; ReadAll returns them in append order.
type Store interface {
	ReadAll() ([]Row, error)
	Append(Row) error
	Close() error
}

// Replay rebuilds the running position from previously persisted rows.
//
// The store schema does not carry the cumulative cost basis as its own
// column; it is recovered from the last row as ValueAtClose - ProfitLoss,
// which is exact because both were written from the same state.
func Replay(rows []Row) Position {
	pos := NewPosition()
	for _, r := range rows {
		if r.Placeholder() {
			continue
		}
		pos.Seen[r.OrderID] = true
	}
	if len(rows) > 0 {
		last := rows[len(rows)-1]
		pos.Holding = last.TotalHolding
		pos.CostBasis = last.ValueAtClose.Sub(last.ProfitLoss)
	}
	return pos
}
