package ledger

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRow() Row {
	return Row{
		OrderID:         "112524",
		ExchangeTime:    "2024-06-04 09:30:00",
		TransactionType: "BUY",
		Status:          "TRADED",
		ClosingPrice:    dec("251.3"),
		AveragePrice:    dec("250.05"),
		Quantity:        10,
		TotalHolding:    10,
		Investment:      dec("2500.5"),
		TotalCostBasis:  dec("2500.5"),
		ValueAtClose:    dec("2513"),
		ProfitLoss:      dec("12.5"),
		RawJSON:         `{"orderId":"112524"}`,
	}
}

func placeholderRow() Row {
	return Row{
		ExchangeTime:   "2024-06-05 15:30:00",
		ClosingPrice:   dec("252"),
		TotalHolding:   10,
		TotalCostBasis: dec("2500.5"),
		ValueAtClose:   dec("2520"),
		ProfitLoss:     dec("19.5"),
	}
}

func TestCSVHeaderBootstrap(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "ledger.csv")

	s, err := NewCSV(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	header, err := csv.NewReader(strings.NewReader(string(data))).Read()
	require.NoError(t, err)
	assert.Equal(t, Columns, header)

	// Reopening an existing file must not write the header twice.
	s, err = NewCSV(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "Order ID"))
}

func TestCSVAppendReadRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "ledger.csv")
	s, err := NewCSV(path)
	require.NoError(t, err)

	want := sampleRow()
	require.NoError(t, s.Append(want))
	require.NoError(t, s.Append(placeholderRow()))

	rows, err := s.ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)

	got := rows[0]
	assert.Equal(t, want.OrderID, got.OrderID)
	assert.Equal(t, want.ExchangeTime, got.ExchangeTime)
	assert.Equal(t, want.TransactionType, got.TransactionType)
	assert.Equal(t, want.Status, got.Status)
	assert.Equal(t, want.Quantity, got.Quantity)
	assert.Equal(t, want.TotalHolding, got.TotalHolding)
	assert.True(t, got.ClosingPrice.Equal(want.ClosingPrice))
	assert.True(t, got.AveragePrice.Equal(want.AveragePrice))
	assert.True(t, got.Investment.Equal(want.Investment))
	assert.True(t, got.ValueAtClose.Equal(want.ValueAtClose))
	assert.True(t, got.ProfitLoss.Equal(want.ProfitLoss))
	assert.True(t, got.TotalCostBasis.Equal(want.TotalCostBasis))
	assert.Equal(t, want.RawJSON, got.RawJSON)

	ph := rows[1]
	assert.True(t, ph.Placeholder())
	assert.Empty(t, ph.TransactionType)
	assert.Zero(t, ph.Quantity)
	assert.True(t, ph.TotalCostBasis.Equal(dec("2500.5")))

	require.NoError(t, s.Close())
}

func TestCSVReadAllSurvivesReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "ledger.csv")

	s, err := NewCSV(path)
	require.NoError(t, err)
	require.NoError(t, s.Append(sampleRow()))
	require.NoError(t, s.Close())

	s, err = NewCSV(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	rows, err := s.ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestReplayFromTail(t *testing.T) {
	t.Parallel()

	rows := []Row{sampleRow(), placeholderRow()}

	pos := Replay(rows)
	assert.Equal(t, int64(10), pos.Holding)
	assert.True(t, pos.CostBasis.Equal(dec("2500.5")), "cost basis %s", pos.CostBasis)
	assert.True(t, pos.Seen["112524"])
	// Placeholder rows contribute state but no order IDs.
	assert.Len(t, pos.Seen, 1)
}

func TestReplayEmpty(t *testing.T) {
	t.Parallel()

	pos := Replay(nil)
	assert.Zero(t, pos.Holding)
	assert.True(t, pos.CostBasis.IsZero())
	assert.NotNil(t, pos.Seen)
}
