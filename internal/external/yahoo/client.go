package yahoo

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/wonny/xcelerator/internal/marketdata"
	"github.com/wonny/xcelerator/pkg/httputil"
	"github.com/wonny/xcelerator/pkg/logger"
)

// DefaultWorkers is the number of concurrent chart requests
const DefaultWorkers = 8

// Client fetches daily bars from the Yahoo Finance chart API
// ⭐ SSOT: Yahoo chart API calls live only in this package
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	suffix     string
	workers    int
}

// NewClient creates a chart client; NSE equities are requested with the ".NS" suffix
func NewClient(httpClient *httputil.Client, baseURL string, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log.WithComponent("yahoo"),
		baseURL:    strings.TrimRight(baseURL, "/"),
		suffix:     ".NS",
		workers:    DefaultWorkers,
	}
}

// WithWorkers sets request concurrency
func (c *Client) WithWorkers(n int) *Client {
	if n > 0 {
		c.workers = n
	}
	return c
}

// Ticker maps an exchange symbol to its Yahoo ticker; index symbols pass through
func (c *Client) Ticker(symbol string) string {
	if strings.HasPrefix(symbol, "^") || strings.Contains(symbol, ".") {
		return symbol
	}
	return symbol + c.suffix
}

// FetchResult is the outcome for one symbol
type FetchResult struct {
	Symbol string
	Series *marketdata.Series
	Error  error
}

// GetPrices implements marketdata.Provider.
// Symbols that fail or return no bars are logged and left out of the map.
func (c *Client) GetPrices(ctx context.Context, symbols []string, start, end time.Time) (map[string]*marketdata.Series, error) {
	results := c.FetchAll(ctx, symbols, start, end)

	out := make(map[string]*marketdata.Series, len(results))
	failed := 0
	for _, r := range results {
		if r.Error != nil {
			failed++
			continue
		}
		if r.Series.Len() == 0 {
			continue
		}
		out[r.Symbol] = r.Series
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(symbols) > 0 && len(out) == 0 && failed > 0 {
		return nil, fmt.Errorf("all %d symbols failed", failed)
	}
	return out, nil
}

// FetchAll fetches symbols over a worker pool and returns one result per symbol
func (c *Client) FetchAll(ctx context.Context, symbols []string, start, end time.Time) []FetchResult {
	c.logger.WithFields(map[string]interface{}{
		"symbols": len(symbols),
		"from":    start.Format("2006-01-02"),
		"to":      end.Format("2006-01-02"),
		"workers": c.workers,
	}).Info("Starting price download")

	symbolCh := make(chan string, len(symbols))
	resultCh := make(chan FetchResult, len(symbols))

	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			c.worker(ctx, workerID, symbolCh, resultCh, start, end)
		}(i)
	}

	for _, s := range symbols {
		symbolCh <- s
	}
	close(symbolCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make([]FetchResult, 0, len(symbols))
	failed := 0
	for r := range resultCh {
		if r.Error != nil {
			failed++
		}
		results = append(results, r)
	}

	c.logger.WithFields(map[string]interface{}{
		"success": len(results) - failed,
		"failed":  failed,
	}).Info("Price download completed")

	return results
}

func (c *Client) worker(ctx context.Context, workerID int, symbolCh <-chan string, resultCh chan<- FetchResult, start, end time.Time) {
	for symbol := range symbolCh {
		if err := ctx.Err(); err != nil {
			resultCh <- FetchResult{Symbol: symbol, Error: err}
			continue
		}

		series, err := c.FetchSeries(ctx, symbol, start, end)
		if err != nil {
			c.logger.WithError(err).WithFields(map[string]interface{}{
				"worker": workerID,
				"symbol": symbol,
			}).Warn("Failed to fetch prices")
			resultCh <- FetchResult{Symbol: symbol, Error: err}
			continue
		}
		resultCh <- FetchResult{Symbol: symbol, Series: series}
	}
}

// FetchSeries downloads split/dividend adjusted daily bars for one symbol, start and end inclusive
func (c *Client) FetchSeries(ctx context.Context, symbol string, start, end time.Time) (*marketdata.Series, error) {
	params := url.Values{}
	params.Set("period1", fmt.Sprintf("%d", marketdata.Day(start).Unix()))
	params.Set("period2", fmt.Sprintf("%d", marketdata.Day(end).AddDate(0, 0, 1).Unix()))
	params.Set("interval", "1d")
	params.Set("events", "history")
	params.Set("includeAdjustedClose", "true")

	fullURL := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(c.Ticker(symbol)), params.Encode())

	resp, err := c.httpClient.Get(ctx, fullURL)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	body, err := httputil.ReadBody(resp)
	if err != nil {
		return nil, err
	}

	bars, err := parseChart(body)
	if err != nil {
		return nil, fmt.Errorf("parse %s chart: %w", symbol, err)
	}

	c.logger.WithFields(map[string]interface{}{
		"symbol": symbol,
		"count":  len(bars),
	}).Debug("Fetched prices")

	return marketdata.NewSeries(symbol, bars).Between(start, end), nil
}
