// Package dhan is a minimal client for the Dhan HQ v2 REST API, covering
// only what the ledger and the shopper need: the order book, holdings and
// market buy placement.
package dhan

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"moneytree/broker"
)

// BaseURL is the production API endpoint.
const BaseURL = "https://api.dhan.co"

const (
	exchangeSegmentNSE = "NSE_EQ"
	productCNC         = "CNC"
	orderTypeMarket    = "MARKET"
)

type Client struct {
	baseURL    string
	clientID   string
	token      string
	httpClient *http.Client
}

func NewClient(clientID, accessToken string) *Client {
	return &Client{
		baseURL:  BaseURL,
		clientID: clientID,
		token:    accessToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// WithBaseURL overrides the API endpoint. Used by tests.
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = u
	return c
}

// apiOrder mirrors the fields of an order book entry that the ledger
// consumes. The execution price lives in one of several synonymous fields
// depending on API version.
type apiOrder struct {
	OrderID            string  `json:"orderId"`
	ExchangeTime       string  `json:"exchangeTime"`
	TransactionType    string  `json:"transactionType"`
	OrderStatus        string  `json:"orderStatus"`
	TradingSymbol      string  `json:"tradingSymbol"`
	Quantity           int64   `json:"quantity"`
	AverageTradedPrice float64 `json:"averageTradedPrice"`
	AveragePrice       float64 `json:"averagePrice"`
	Price              float64 `json:"price"`
}

// priceFields are the candidate execution-price extractors, checked in
// order until one yields a non-zero value.
var priceFields = []func(apiOrder) float64{
	func(o apiOrder) float64 { return o.AverageTradedPrice },
	func(o apiOrder) float64 { return o.AveragePrice },
	func(o apiOrder) float64 { return o.Price },
}

func executionPrice(o apiOrder) decimal.Decimal {
	for _, f := range priceFields {
		if v := f(o); v != 0 {
			return decimal.NewFromFloat(v)
		}
	}
	return decimal.Zero
}

type orderListResponse struct {
	Data []json.RawMessage `json:"data"`
}

// GetOrderList fetches the complete order book. No pagination: the API
// returns the whole relevant window in one call.
func (c *Client) GetOrderList(ctx context.Context) ([]broker.Order, error) {
	body, err := c.get(ctx, "/v2/orders")
	if err != nil {
		return nil, fmt.Errorf("order list: %w", err)
	}

	var resp orderListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("order list: decode response: %w", err)
	}

	orders := make([]broker.Order, 0, len(resp.Data))
	for _, raw := range resp.Data {
		var o apiOrder
		if err := json.Unmarshal(raw, &o); err != nil {
			return nil, fmt.Errorf("order list: decode order: %w", err)
		}
		orders = append(orders, broker.Order{
			OrderID:      o.OrderID,
			ExchangeTime: o.ExchangeTime,
			Type:         broker.TransactionType(o.TransactionType),
			Status:       o.OrderStatus,
			Symbol:       o.TradingSymbol,
			Quantity:     o.Quantity,
			AveragePrice: executionPrice(o),
			Raw:          append([]byte(nil), raw...),
		})
	}
	return orders, nil
}

type apiHolding struct {
	TradingSymbol string  `json:"tradingSymbol"`
	SecurityID    string  `json:"securityId"`
	TotalQty      int64   `json:"totalQty"`
	AvgCostPrice  float64 `json:"avgCostPrice"`
}

type holdingsResponse struct {
	Data []apiHolding `json:"data"`
}

func (c *Client) GetHoldings(ctx context.Context) ([]broker.Holding, error) {
	body, err := c.get(ctx, "/v2/holdings")
	if err != nil {
		return nil, fmt.Errorf("holdings: %w", err)
	}

	var resp holdingsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("holdings: decode response: %w", err)
	}

	out := make([]broker.Holding, 0, len(resp.Data))
	for _, h := range resp.Data {
		out = append(out, broker.Holding{
			Symbol:     h.TradingSymbol,
			SecurityID: h.SecurityID,
			Quantity:   h.TotalQty,
			AvgCost:    decimal.NewFromFloat(h.AvgCostPrice),
		})
	}
	return out, nil
}

type placeOrderRequest struct {
	DhanClientID    string `json:"dhanClientId"`
	TransactionType string `json:"transactionType"`
	ExchangeSegment string `json:"exchangeSegment"`
	ProductType     string `json:"productType"`
	OrderType       string `json:"orderType"`
	SecurityID      string `json:"securityId"`
	Quantity        int64  `json:"quantity"`
}

type placeOrderResponse struct {
	OrderID     string `json:"orderId"`
	OrderStatus string `json:"orderStatus"`
}

// PlaceMarketBuy submits a CNC market buy for the ticket's security.
func (c *Client) PlaceMarketBuy(ctx context.Context, t broker.Ticket) (string, error) {
	payload, err := json.Marshal(placeOrderRequest{
		DhanClientID:    c.clientID,
		TransactionType: string(broker.Buy),
		ExchangeSegment: exchangeSegmentNSE,
		ProductType:     productCNC,
		OrderType:       orderTypeMarket,
		SecurityID:      t.SecurityID,
		Quantity:        t.Quantity,
	})
	if err != nil {
		return "", fmt.Errorf("place order: marshal request: %w", err)
	}

	body, err := c.post(ctx, "/v2/orders", payload)
	if err != nil {
		return "", fmt.Errorf("place order %s: %w", t.Symbol, err)
	}

	var resp placeOrderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("place order: decode response: %w", err)
	}
	return resp.OrderID, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *Client) post(ctx context.Context, path string, payload []byte) ([]byte, error) {
	return c.do(ctx, http.MethodPost, path, payload)
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("access-token", c.token)
	req.Header.Set("client-id", c.clientID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", broker.ErrUpstream, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", broker.ErrUpstream, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", broker.ErrUpstream, resp.StatusCode, data)
	}
	return data, nil
}
