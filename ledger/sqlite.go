package ledger

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// SQLite is a Store backed by a local SQLite database. Same append-only
// contract as the CSV store; decimals are stored as TEXT so nothing is
// rounded on the way in or out.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrPersistence, path, err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: create schema: %v", ErrPersistence, err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Append(r Row) error {
	orderID := sql.NullString{String: r.OrderID, Valid: r.OrderID != ""}
	var avgPrice, qty interface{}
	if !r.Placeholder() {
		avgPrice = r.AveragePrice.String()
		qty = r.Quantity
	}

	_, err := s.db.Exec(`
		INSERT INTO ledger
		(order_id, exchange_time, transaction_type, order_status, close,
		 average_price, quantity, total_holding, investment, value_at_close,
		 profit_loss, raw_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		orderID, r.ExchangeTime, r.TransactionType, r.Status,
		r.ClosingPrice.String(), avgPrice, qty, r.TotalHolding,
		r.Investment.String(), r.ValueAtClose.String(), r.ProfitLoss.String(),
		r.RawJSON,
	)
	if err != nil {
		return fmt.Errorf("%w: append row: %v", ErrPersistence, err)
	}
	return nil
}

func (s *SQLite) ReadAll() ([]Row, error) {
	rows, err := s.db.Query(`
		SELECT order_id, exchange_time, transaction_type, order_status, close,
		       average_price, quantity, total_holding, investment,
		       value_at_close, profit_loss, raw_json
		FROM ledger
		ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("%w: read rows: %v", ErrPersistence, err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var (
			r                     Row
			orderID, avgPrice     sql.NullString
			txType, status, raw   sql.NullString
			qty                   sql.NullInt64
			closeS, investS, valS string
			plS                   string
		)
		if err := rows.Scan(&orderID, &r.ExchangeTime, &txType, &status,
			&closeS, &avgPrice, &qty, &r.TotalHolding, &investS, &valS,
			&plS, &raw); err != nil {
			return nil, fmt.Errorf("%w: scan row: %v", ErrPersistence, err)
		}
		r.OrderID = orderID.String
		r.TransactionType = txType.String
		r.Status = status.String
		r.Quantity = qty.Int64
		r.RawJSON = raw.String

		if r.ClosingPrice, err = decimal.NewFromString(closeS); err != nil {
			return nil, fmt.Errorf("%w: close %q: %v", ErrPersistence, closeS, err)
		}
		if avgPrice.Valid {
			if r.AveragePrice, err = decimal.NewFromString(avgPrice.String); err != nil {
				return nil, fmt.Errorf("%w: average price %q: %v", ErrPersistence, avgPrice.String, err)
			}
		}
		if r.Investment, err = decimal.NewFromString(investS); err != nil {
			return nil, fmt.Errorf("%w: investment %q: %v", ErrPersistence, investS, err)
		}
		if r.ValueAtClose, err = decimal.NewFromString(valS); err != nil {
			return nil, fmt.Errorf("%w: value at close %q: %v", ErrPersistence, valS, err)
		}
		if r.ProfitLoss, err = decimal.NewFromString(plS); err != nil {
			return nil, fmt.Errorf("%w: profit/loss %q: %v", ErrPersistence, plS, err)
		}
		r.TotalCostBasis = r.ValueAtClose.Sub(r.ProfitLoss)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read rows: %v", ErrPersistence, err)
	}
	return out, nil
}

func (s *SQLite) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("%w: close: %v", ErrPersistence, err)
	}
	return nil
}
