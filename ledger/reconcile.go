package ledger

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"moneytree/broker"
)

// exchangeTimeLayouts are tried in order when parsing an order's exchange
// timestamp. The broker reports "2006-01-02 15:04:05"; the others cover
// replays of older exports.
var exchangeTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// ParseExchangeTime parses an order timestamp in the given location.
func ParseExchangeTime(s string, loc *time.Location) (time.Time, error) {
	for _, layout := range exchangeTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unparsable exchange time %q", ErrMalformedOrder, s)
}

// Reconciler folds executed orders chronologically into the running
// position, emitting one ledger row per new order plus, on weekdays with
// no trade dated today, a single end-of-day placeholder row.
type Reconciler struct {
	// Now supplies the invocation time; defaults to time.Now.
	Now func() time.Time

	// Location is the market calendar's timezone; defaults to Local.
	Location *time.Location

	// CloseHour/CloseMinute stamp placeholder rows at market close.
	CloseHour   int
	CloseMinute int
}

func (r *Reconciler) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Reconciler) loc() *time.Location {
	if r.Location != nil {
		return r.Location
	}
	return time.Local
}

// Reconcile applies orders to pos and returns the rows to append.
//
// Orders are stable-sorted by exchange time so equal timestamps keep their
// upstream relative order and re-runs stay deterministic. Already-seen
// order IDs produce no row (replay safety); unparsable timestamps on new
// orders abort the run. The closing price is a single snapshot applied
// uniformly to every row in the batch.
//
// pos.Seen is updated in place as rows are emitted.
func (r *Reconciler) Reconcile(orders []broker.Order, pos Position, closing decimal.Decimal) (rows []Row, out Position, tradedToday bool, err error) {
	if pos.Seen == nil {
		pos.Seen = map[string]bool{}
	}

	sorted := make([]broker.Order, len(orders))
	copy(sorted, orders)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ExchangeTime < sorted[j].ExchangeTime
	})

	today := r.now().In(r.loc())

	for _, o := range sorted {
		if pos.Seen[o.OrderID] {
			// Already in the ledger. Still counts for the traded-today
			// decision, otherwise a re-run on the same day would append a
			// second mark for a day that did trade.
			if t, perr := ParseExchangeTime(o.ExchangeTime, r.loc()); perr == nil && sameDay(t, today) {
				tradedToday = true
			}
			continue
		}

		t, perr := ParseExchangeTime(o.ExchangeTime, r.loc())
		if perr != nil {
			return nil, pos, tradedToday, fmt.Errorf("order %s: %w", o.OrderID, perr)
		}

		qty := decimal.NewFromInt(o.Quantity)
		investment := o.AveragePrice.Mul(qty)

		switch o.Type {
		case broker.Buy:
			pos.Holding += o.Quantity
			pos.CostBasis = pos.CostBasis.Add(investment)
		case broker.Sell:
			newHolding := pos.Holding - o.Quantity
			if newHolding < 0 {
				newHolding = 0
			}
			if newHolding > 0 {
				// Proportional reduction: per-unit average cost is
				// preserved across partial sells.
				prior := decimal.NewFromInt(newHolding + o.Quantity)
				pos.CostBasis = pos.CostBasis.Div(prior).Mul(decimal.NewFromInt(newHolding))
			} else {
				pos.CostBasis = decimal.Zero
			}
			pos.Holding = newHolding
		default:
			return nil, pos, tradedToday, fmt.Errorf("order %s: %w: unknown transaction type %q", o.OrderID, ErrMalformedOrder, o.Type)
		}

		value := closing.Mul(decimal.NewFromInt(pos.Holding))
		rows = append(rows, Row{
			OrderID:         o.OrderID,
			ExchangeTime:    o.ExchangeTime,
			TransactionType: string(o.Type),
			Status:          o.Status,
			ClosingPrice:    closing,
			AveragePrice:    o.AveragePrice,
			Quantity:        o.Quantity,
			TotalHolding:    pos.Holding,
			Investment:      investment,
			TotalCostBasis:  pos.CostBasis,
			ValueAtClose:    value,
			ProfitLoss:      value.Sub(pos.CostBasis),
		})
		if len(o.Raw) > 0 {
			rows[len(rows)-1].RawJSON = string(o.Raw)
		} else if raw, jerr := json.Marshal(o); jerr == nil {
			rows[len(rows)-1].RawJSON = string(raw)
		}

		if sameDay(t, today) {
			tradedToday = true
		}
		pos.Seen[o.OrderID] = true
	}

	// Mark the book even on no-trade days, but only when the market was
	// open: weekdays get a placeholder, weekends get nothing.
	if !tradedToday && isWeekday(today) {
		rows = append(rows, r.placeholder(pos, closing, today))
	}

	return rows, pos, tradedToday, nil
}

func (r *Reconciler) placeholder(pos Position, closing decimal.Decimal, today time.Time) Row {
	closeAt := time.Date(today.Year(), today.Month(), today.Day(), r.CloseHour, r.CloseMinute, 0, 0, today.Location())
	value := closing.Mul(decimal.NewFromInt(pos.Holding))
	return Row{
		ExchangeTime:   closeAt.Format("2006-01-02 15:04:05"),
		ClosingPrice:   closing,
		AveragePrice:   decimal.Zero,
		Investment:     decimal.Zero,
		TotalHolding:   pos.Holding,
		TotalCostBasis: pos.CostBasis,
		ValueAtClose:   value,
		ProfitLoss:     value.Sub(pos.CostBasis),
	}
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

func isWeekday(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}
