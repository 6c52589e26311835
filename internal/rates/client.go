package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

const monthKeyLayout = "2006-01"

// Client fetches exchange rates from an exchangeratesapi-style HTTP endpoint
// (GET /latest and GET /{YYYY-MM-DD}, EUR base). Historical months are cached
// in-memory for the lifetime of the client; a single instance should be
// shared per process. The latest-rates path is never cached because the
// current month is still open.
type Client struct {
	httpClient *http.Client
	baseURL    string // overridable for tests
	symbols    []string

	mu    sync.RWMutex
	cache map[string]map[string]decimal.Decimal // month key -> rates
}

// NewClient creates a rate client for the given supported currency symbols.
func NewClient(httpClient *http.Client, baseURL string, symbols []string) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		symbols:    symbols,
		cache:      make(map[string]map[string]decimal.Decimal),
	}
}

// ratesResponse is the wire format of the rates endpoint.
type ratesResponse struct {
	Base  string                     `json:"base"`
	Date  string                     `json:"date"`
	Rates map[string]decimal.Decimal `json:"rates"`
}

// GetLatestRates fetches the most recent rates.
func (c *Client) GetLatestRates(ctx context.Context) (map[string]decimal.Decimal, error) {
	return c.fetch(ctx, "latest")
}

// GetRates fetches (or returns cached) rates pinned to the given historical date.
func (c *Client) GetRates(ctx context.Context, monthEnd time.Time) (map[string]decimal.Decimal, error) {
	key := monthEnd.Format(monthKeyLayout)

	c.mu.RLock()
	cached, ok := c.cache[key]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}

	rates, err := c.fetch(ctx, monthEnd.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[key] = rates
	c.mu.Unlock()

	return rates, nil
}

// fetch performs the HTTP request for the given path segment and validates
// that every requested symbol is present in the response.
func (c *Client) fetch(ctx context.Context, path string) (map[string]decimal.Decimal, error) {
	endpoint := c.baseURL + "/" + path
	if len(c.symbols) > 0 {
		endpoint += "?symbols=" + url.QueryEscape(strings.Join(c.symbols, ","))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building rates request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rates http request for %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rates request for %s: unexpected status %d", path, resp.StatusCode)
	}

	var body ratesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding rates response for %s: %w", path, err)
	}

	if len(body.Rates) == 0 {
		return nil, fmt.Errorf("rates response for %s contains no rates", path)
	}

	for _, symbol := range c.symbols {
		rate, ok := body.Rates[symbol]
		if !ok {
			return nil, fmt.Errorf("rates response for %s is missing %s", path, symbol)
		}
		if rate.LessThanOrEqual(decimal.Zero) {
			return nil, fmt.Errorf("invalid rate for %s on %s: %s", symbol, path, rate)
		}
	}

	return body.Rates, nil
}
