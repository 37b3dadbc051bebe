package ledger

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/shopspring/decimal"
)

// CSV is a Store backed by a single append-only CSV file. The header is
// written once, when the file is created or found empty, mirroring how the
// spreadsheet the ledger historically lived in bootstraps itself.
type CSV struct {
	path string
	f    *os.File
	w    *csv.Writer
}

func NewCSV(path string) (*CSV, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrPersistence, path, err)
	}

	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: stat %s: %v", ErrPersistence, path, err)
	}

	w := csv.NewWriter(f)
	if st.Size() == 0 {
		if err := w.Write(Columns); err != nil {
			f.Close()
			return nil, fmt.Errorf("%w: write header: %v", ErrPersistence, err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("%w: write header: %v", ErrPersistence, err)
		}
	}

	return &CSV{path: path, f: f, w: w}, nil
}

func (s *CSV) Append(r Row) error {
	if err := s.w.Write(record(r)); err != nil {
		return fmt.Errorf("%w: append row: %v", ErrPersistence, err)
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return fmt.Errorf("%w: append row: %v", ErrPersistence, err)
	}
	return nil
}

func (s *CSV) ReadAll() ([]Row, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrPersistence, s.path, err)
	}
	defer f.Close()

	rd := csv.NewReader(f)
	rd.FieldsPerRecord = len(Columns)

	// Header.
	if _, err := rd.Read(); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read header: %v", ErrPersistence, err)
	}

	var rows []Row
	for {
		rec, err := rd.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read row: %v", ErrPersistence, err)
		}
		row, err := fromRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("%w: row %v: %v", ErrPersistence, rec, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *CSV) Close() error {
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		s.f.Close()
		return fmt.Errorf("%w: flush: %v", ErrPersistence, err)
	}
	if err := s.f.Close(); err != nil {
		return fmt.Errorf("%w: close: %v", ErrPersistence, err)
	}
	return nil
}

// record serializes a row into the Columns order. Order fields of
// placeholder rows serialize as empty cells.
func record(r Row) []string {
	avgPrice, qty := "", ""
	if !r.Placeholder() {
		avgPrice = r.AveragePrice.String()
		qty = strconv.FormatInt(r.Quantity, 10)
	}
	return []string{
		r.OrderID,
		r.ExchangeTime,
		r.TransactionType,
		r.Status,
		r.ClosingPrice.String(),
		avgPrice,
		qty,
		strconv.FormatInt(r.TotalHolding, 10),
		r.Investment.String(),
		r.ValueAtClose.String(),
		r.ProfitLoss.String(),
		r.RawJSON,
	}
}

func fromRecord(rec []string) (Row, error) {
	var (
		r   Row
		err error
	)
	r.OrderID = rec[0]
	r.ExchangeTime = rec[1]
	r.TransactionType = rec[2]
	r.Status = rec[3]

	if r.ClosingPrice, err = parseDecimal(rec[4]); err != nil {
		return Row{}, fmt.Errorf("close: %v", err)
	}
	if r.AveragePrice, err = parseDecimal(rec[5]); err != nil {
		return Row{}, fmt.Errorf("average price: %v", err)
	}
	if r.Quantity, err = parseInt(rec[6]); err != nil {
		return Row{}, fmt.Errorf("quantity: %v", err)
	}
	if r.TotalHolding, err = parseInt(rec[7]); err != nil {
		return Row{}, fmt.Errorf("total holding: %v", err)
	}
	if r.Investment, err = parseDecimal(rec[8]); err != nil {
		return Row{}, fmt.Errorf("investment: %v", err)
	}
	if r.ValueAtClose, err = parseDecimal(rec[9]); err != nil {
		return Row{}, fmt.Errorf("value at close: %v", err)
	}
	if r.ProfitLoss, err = parseDecimal(rec[10]); err != nil {
		return Row{}, fmt.Errorf("profit/loss: %v", err)
	}
	r.RawJSON = rec[11]

	// The cumulative basis is not its own column; recover it the same way
	// Replay does.
	r.TotalCostBasis = r.ValueAtClose.Sub(r.ProfitLoss)
	return r, nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func parseInt(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}
