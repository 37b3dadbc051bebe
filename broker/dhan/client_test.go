package dhan

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moneytree/broker"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient("1100001", "test-token").WithBaseURL(server.URL)
}

func TestGetOrderList(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v2/orders", r.URL.Path)
		assert.Equal(t, "test-token", r.Header.Get("access-token"))
		assert.Equal(t, "1100001", r.Header.Get("client-id"))

		w.Write([]byte(`{"data": [
			{"orderId":"1001","exchangeTime":"2024-06-04 09:30:00","transactionType":"BUY","orderStatus":"TRADED","tradingSymbol":"NIFTYBEES","quantity":10,"averageTradedPrice":250.05},
			{"orderId":"1002","exchangeTime":"2024-06-04 10:00:00","transactionType":"SELL","orderStatus":"TRADED","tradingSymbol":"NIFTYBEES","quantity":4,"averagePrice":252.10},
			{"orderId":"1003","exchangeTime":"2024-06-04 10:30:00","transactionType":"BUY","orderStatus":"PENDING","tradingSymbol":"NIFTYBEES","quantity":5}
		]}`))
	})

	orders, err := client.GetOrderList(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 3)

	assert.Equal(t, "1001", orders[0].OrderID)
	assert.Equal(t, broker.Buy, orders[0].Type)
	assert.Equal(t, broker.StatusTraded, orders[0].Status)
	assert.Equal(t, int64(10), orders[0].Quantity)
	assert.True(t, orders[0].AveragePrice.Equal(decimal.NewFromFloat(250.05)))

	// averagePrice is the fallback when averageTradedPrice is absent.
	assert.True(t, orders[1].AveragePrice.Equal(decimal.NewFromFloat(252.10)))

	// No price field at all defaults to zero.
	assert.True(t, orders[2].AveragePrice.IsZero())

	// Raw payload is retained verbatim for the ledger.
	var raw map[string]any
	require.NoError(t, json.Unmarshal(orders[0].Raw, &raw))
	assert.Equal(t, "1001", raw["orderId"])
}

func TestExecutionPriceFallbackOrder(t *testing.T) {
	t.Parallel()

	// averageTradedPrice wins even when both are present.
	p := executionPrice(apiOrder{AverageTradedPrice: 101.5, AveragePrice: 99.0})
	assert.True(t, p.Equal(decimal.NewFromFloat(101.5)))

	// Zero values are skipped, not taken.
	p = executionPrice(apiOrder{AverageTradedPrice: 0, AveragePrice: 99.0})
	assert.True(t, p.Equal(decimal.NewFromFloat(99.0)))

	p = executionPrice(apiOrder{Price: 98.0})
	assert.True(t, p.Equal(decimal.NewFromFloat(98.0)))

	assert.True(t, executionPrice(apiOrder{}).IsZero())
}

func TestGetOrderListUpstreamError(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errorType":"Invalid_Authentication"}`, http.StatusUnauthorized)
	})

	_, err := client.GetOrderList(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, broker.ErrUpstream)
	assert.Contains(t, err.Error(), "401")
}

func TestGetHoldings(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/holdings", r.URL.Path)
		w.Write([]byte(`{"data":[
			{"tradingSymbol":"NIFTYBEES","securityId":"10576","totalQty":15,"avgCostPrice":248.2},
			{"tradingSymbol":"GOLDBEES","securityId":"14428","totalQty":100,"avgCostPrice":55.7}
		]}`))
	})

	holdings, err := client.GetHoldings(context.Background())
	require.NoError(t, err)
	require.Len(t, holdings, 2)
	assert.Equal(t, "NIFTYBEES", holdings[0].Symbol)
	assert.Equal(t, "10576", holdings[0].SecurityID)
	assert.Equal(t, int64(15), holdings[0].Quantity)
	assert.True(t, holdings[0].AvgCost.Equal(decimal.NewFromFloat(248.2)))
}

func TestPlaceMarketBuy(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/orders", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req placeOrderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "1100001", req.DhanClientID)
		assert.Equal(t, "BUY", req.TransactionType)
		assert.Equal(t, "NSE_EQ", req.ExchangeSegment)
		assert.Equal(t, "CNC", req.ProductType)
		assert.Equal(t, "MARKET", req.OrderType)
		assert.Equal(t, "10576", req.SecurityID)
		assert.Equal(t, int64(2), req.Quantity)

		w.Write([]byte(`{"orderId":"5524","orderStatus":"TRANSIT"}`))
	})

	id, err := client.PlaceMarketBuy(context.Background(), broker.Ticket{
		Symbol:     "NIFTYBEES",
		SecurityID: "10576",
		Quantity:   2,
	})
	require.NoError(t, err)
	assert.Equal(t, "5524", id)
}
