package ledger

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) (*SQLite, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ledger.db")
	s, err := NewSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s, path
}

func TestSQLiteSchemaCreated(t *testing.T) {
	t.Parallel()

	s, path := newTestSQLite(t)
	require.NoError(t, s.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var name string
	err = db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='ledger'`).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "ledger", name)
}

func TestSQLiteAppendReadRoundTrip(t *testing.T) {
	t.Parallel()

	s, _ := newTestSQLite(t)

	want := sampleRow()
	require.NoError(t, s.Append(want))
	require.NoError(t, s.Append(placeholderRow()))

	rows, err := s.ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)

	got := rows[0]
	assert.Equal(t, want.OrderID, got.OrderID)
	assert.Equal(t, want.Status, got.Status)
	assert.Equal(t, want.Quantity, got.Quantity)
	assert.True(t, got.AveragePrice.Equal(want.AveragePrice))
	assert.True(t, got.TotalCostBasis.Equal(want.TotalCostBasis))
	assert.Equal(t, want.RawJSON, got.RawJSON)

	assert.True(t, rows[1].Placeholder())
}

func TestSQLiteRejectsDuplicateOrderID(t *testing.T) {
	t.Parallel()

	s, _ := newTestSQLite(t)

	require.NoError(t, s.Append(sampleRow()))
	err := s.Append(sampleRow())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistence)
}

func TestSQLiteAllowsManyPlaceholders(t *testing.T) {
	t.Parallel()

	// One placeholder per quiet day: NULL order_ids must not collide on
	// the UNIQUE constraint.
	s, _ := newTestSQLite(t)

	require.NoError(t, s.Append(placeholderRow()))
	ph := placeholderRow()
	ph.ExchangeTime = "2024-06-06 15:30:00"
	require.NoError(t, s.Append(ph))

	rows, err := s.ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}
