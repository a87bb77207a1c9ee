package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Client fetches USD prices for reserve asset symbols from a
// CoinGecko-compatible HTTP API.
type Client struct {
	baseURL    string
	symbolIDs  map[string]string // symbol -> API coin id
	httpClient *http.Client
	delay      time.Duration
	maxRetries int
}

// NewClient creates a price API client. symbolIDs maps reserve asset
// symbols (e.g. "WBTC") to the upstream coin identifiers (e.g. "bitcoin").
func NewClient(baseURL string, symbolIDs map[string]string, delay time.Duration, maxRetries int) *Client {
	return &Client{
		baseURL:    baseURL,
		symbolIDs:  symbolIDs,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		delay:      delay,
		maxRetries: maxRetries,
	}
}

// FetchPrices fetches USD prices for all configured symbols.
func (c *Client) FetchPrices(ctx context.Context) (map[string]decimal.Decimal, error) {
	uniqueIDs := make(map[string]bool)
	for _, id := range c.symbolIDs {
		uniqueIDs[id] = true
	}
	ids := make([]string, 0, len(uniqueIDs))
	for id := range uniqueIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	url := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd", c.baseURL, strings.Join(ids, ","))

	body, err := c.fetchWithRetry(ctx, url)
	if err != nil {
		return nil, err
	}

	// Parse: {"bitcoin":{"usd":45000},"ethereum":{"usd":2500},...}
	var raw map[string]map[string]json.Number
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parsing price response: %w", err)
	}

	result := make(map[string]decimal.Decimal)
	for symbol, coinID := range c.symbolIDs {
		prices, ok := raw[coinID]
		if !ok {
			continue
		}
		p, err := decimal.NewFromString(prices["usd"].String())
		if err != nil {
			return nil, fmt.Errorf("parsing price for %s: %w", symbol, err)
		}
		result[symbol] = p
	}
	return result, nil
}

// Feed returns a per-symbol Feed view over this client. Every LatestPrice
// call queries the upstream API; the observation timestamp is the fetch
// time.
func (c *Client) Feed(symbol string) Feed {
	return &clientFeed{client: c, symbol: symbol}
}

type clientFeed struct {
	client *Client
	symbol string
}

func (f *clientFeed) LatestPrice(ctx context.Context) (PricePoint, error) {
	prices, err := f.client.FetchPrices(ctx)
	if err != nil {
		return PricePoint{}, err
	}
	p, ok := prices[f.symbol]
	if !ok {
		return PricePoint{}, fmt.Errorf("%w: symbol %s", ErrNoPrice, f.symbol)
	}
	return PricePoint{Price: p, UpdatedAt: time.Now()}, nil
}

func (c *Client) fetchWithRetry(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := range c.maxRetries + 1 {
		if attempt > 0 {
			baseDelay := c.delay
			if baseDelay == 0 {
				baseDelay = 10 * time.Second
			}
			delay := baseDelay * time.Duration(1<<uint(attempt-1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("creating price request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("price request failed: %w", err)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("reading price response: %w", err)
		}

		if resp.StatusCode == http.StatusOK {
			return body, nil
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("HTTP 429 at %s (attempt %d/%d)", url, attempt+1, c.maxRetries+1)
			continue
		}

		return nil, fmt.Errorf("HTTP %d from %s: %s", resp.StatusCode, url, string(body))
	}
	return nil, lastErr
}
