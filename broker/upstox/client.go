// Package upstox is a minimal client for the Upstox v2 REST API: last
// traded price and daily historical candles, which is all the scanner
// consumes.
package upstox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"moneytree/broker"
)

// BaseURL is the production API endpoint.
const BaseURL = "https://api.upstox.com"

// historyBufferDays is how far back the candle request reaches. Wide
// enough that 19 trading days always fit, holidays included.
const historyBufferDays = 30

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client

	// Now supplies the candle window end; defaults to time.Now.
	Now func() time.Time
}

func NewClient(accessToken string) *Client {
	return &Client{
		baseURL: BaseURL,
		token:   accessToken,
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

type ltpResponse struct {
	Data map[string]struct {
		LastPrice json.Number `json:"last_price"`
	} `json:"data"`
}

// GetLTP returns the last traded price for an instrument. The response is
// keyed by "NSE_EQ:<symbol>", not by the instrument key the request uses.
func (c *Client) GetLTP(ctx context.Context, instrumentKey, symbol string) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("instrument_key", instrumentKey)

	body, err := c.get(ctx, "/v2/market-quote/ltp?"+q.Encode())
	if err != nil {
		return decimal.Zero, fmt.Errorf("ltp %s: %w", symbol, err)
	}

	var resp ltpResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return decimal.Zero, fmt.Errorf("ltp %s: decode response: %w", symbol, err)
	}

	entry, ok := resp.Data["NSE_EQ:"+symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("ltp %s: %w: symbol missing from response", symbol, broker.ErrUpstream)
	}
	ltp, err := decimal.NewFromString(entry.LastPrice.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("ltp %s: parse %q: %w", symbol, entry.LastPrice, err)
	}
	return ltp, nil
}

type candlesResponse struct {
	Data struct {
		// Each candle is [timestamp, open, high, low, close, volume, oi]:
		// mixed types, so elements decode lazily.
		Candles [][]json.RawMessage `json:"candles"`
	} `json:"data"`
}

// GetDailyCloses returns up to n most recent end-of-day closes, oldest
// first. The API reports candles newest first; they are reordered here.
func (c *Client) GetDailyCloses(ctx context.Context, instrumentKey string, n int) ([]decimal.Decimal, error) {
	now := time.Now()
	if c.Now != nil {
		now = c.Now()
	}
	to := now.UTC().Format("2006-01-02")
	from := now.UTC().AddDate(0, 0, -historyBufferDays).Format("2006-01-02")

	path := fmt.Sprintf("/v2/historical-candle/%s/day/%s/%s", url.PathEscape(instrumentKey), to, from)
	body, err := c.get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("candles %s: %w", instrumentKey, err)
	}

	var resp candlesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("candles %s: decode response: %w", instrumentKey, err)
	}

	type bar struct {
		ts    string
		close decimal.Decimal
	}
	bars := make([]bar, 0, len(resp.Data.Candles))
	for _, raw := range resp.Data.Candles {
		if len(raw) < 5 {
			return nil, fmt.Errorf("candles %s: short candle %v", instrumentKey, raw)
		}
		var ts string
		if err := json.Unmarshal(raw[0], &ts); err != nil {
			return nil, fmt.Errorf("candles %s: parse timestamp: %w", instrumentKey, err)
		}
		var closeN json.Number
		if err := json.Unmarshal(raw[4], &closeN); err != nil {
			return nil, fmt.Errorf("candles %s: parse close: %w", instrumentKey, err)
		}
		closeV, err := decimal.NewFromString(closeN.String())
		if err != nil {
			return nil, fmt.Errorf("candles %s: parse close %q: %w", instrumentKey, closeN, err)
		}
		bars = append(bars, bar{ts: ts, close: closeV})
	}
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].ts < bars[j].ts })

	if len(bars) > n {
		bars = bars[len(bars)-n:]
	}
	closes := make([]decimal.Decimal, len(bars))
	for i, b := range bars {
		closes[i] = b.close
	}
	return closes, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

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

// Quote adapts the client to the reconciler's PricingSource: the symbol's
// last traded price stands in for the close.
type Quote struct {
	Client *Client
	Keys   map[string]string // symbol -> instrument key
}

func (q Quote) ClosingPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	key, ok := q.Keys[symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("quote %s: %w: no instrument key", symbol, broker.ErrUpstream)
	}
	return q.Client.GetLTP(ctx, key, symbol)
}
