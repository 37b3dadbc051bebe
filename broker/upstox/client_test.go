package upstox

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moneytree/broker"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient("test-token").WithBaseURL(server.URL)
}

func TestGetLTP(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/market-quote/ltp", r.URL.Path)
		assert.Equal(t, "NSE_EQ|INE733E01010", r.URL.Query().Get("instrument_key"))
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		w.Write([]byte(`{"status":"success","data":{"NSE_EQ:NTPC":{"last_price":362.45}}}`))
	})

	ltp, err := client.GetLTP(context.Background(), "NSE_EQ|INE733E01010", "NTPC")
	require.NoError(t, err)
	assert.True(t, ltp.Equal(decimal.NewFromFloat(362.45)), "ltp %s", ltp)
}

func TestGetLTPSymbolMissing(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","data":{}}`))
	})

	_, err := client.GetLTP(context.Background(), "NSE_EQ|X", "NTPC")
	require.Error(t, err)
	assert.ErrorIs(t, err, broker.ErrUpstream)
}

func TestGetDailyCloses(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/historical-candle/NSE_EQ%7CINE733E01010/day/2024-06-04/2024-05-05", r.URL.EscapedPath())

		// Newest first, as the API reports them.
		w.Write([]byte(`{"data":{"candles":[
			["2024-06-04T00:00:00+05:30",361.0,363.9,359.2,362.45,1000,0],
			["2024-06-03T00:00:00+05:30",358.5,362.0,357.0,361.10,1200,0],
			["2024-05-31T00:00:00+05:30",355.0,359.5,354.1,358.20,900,0]
		]}}`))
	})
	client.Now = func() time.Time {
		return time.Date(2024, 6, 4, 12, 0, 0, 0, time.UTC)
	}

	closes, err := client.GetDailyCloses(context.Background(), "NSE_EQ|INE733E01010", 2)
	require.NoError(t, err)
	require.Len(t, closes, 2)

	// Oldest first, trimmed to the two most recent.
	assert.True(t, closes[0].Equal(decimal.NewFromFloat(361.10)))
	assert.True(t, closes[1].Equal(decimal.NewFromFloat(362.45)))
}

func TestGetDailyClosesUpstreamError(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"status":"error"}`, http.StatusTooManyRequests)
	})

	_, err := client.GetDailyCloses(context.Background(), "NSE_EQ|X", 19)
	require.Error(t, err)
	assert.ErrorIs(t, err, broker.ErrUpstream)
}

func TestQuoteClosingPrice(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"NSE_EQ:NIFTYBEES":{"last_price":250.3}}}`))
	})

	q := Quote{Client: client, Keys: map[string]string{"NIFTYBEES": "NSE_EQ|INF204KB14I2"}}

	got, err := q.ClosingPrice(context.Background(), "NIFTYBEES")
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromFloat(250.3)))

	_, err = q.ClosingPrice(context.Background(), "UNKNOWN")
	assert.ErrorIs(t, err, broker.ErrUpstream)
}
