package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"time"

	"macropulse/internal/timeseries"
	"macropulse/pkg/config"
	"macropulse/pkg/httputil"
	"macropulse/pkg/logger"
)

// ErrSymbolNotFound is returned when Yahoo has no data for a symbol.
var ErrSymbolNotFound = errors.New("yahoo: symbol not found")

// Client handles communication with the Yahoo Finance chart API.
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
}

// NewClient creates a new Yahoo Finance client.
func NewClient(cfg *config.Config, httpClient *httputil.Client, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log,
		baseURL:    cfg.Yahoo.BaseURL,
	}
}

// chartResponse mirrors /v8/finance/chart/{symbol}.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// GetHistoricalPrices fetches close prices for a symbol. Interval is a
// Yahoo interval string ("1d", "1wk", "1mo"). Null closes become NaN
// points so gaps stay visible downstream.
func (c *Client) GetHistoricalPrices(ctx context.Context, symbol string, start, end time.Time, interval string) (timeseries.Series, error) {
	if symbol == "" {
		return nil, fmt.Errorf("yahoo: empty symbol")
	}
	if interval == "" {
		interval = "1d"
	}
	if end.IsZero() {
		end = time.Now()
	}
	if start.IsZero() {
		start = end.AddDate(-5, 0, 0)
	}

	params := url.Values{}
	params.Set("period1", fmt.Sprintf("%d", start.Unix()))
	params.Set("period2", fmt.Sprintf("%d", end.Unix()))
	params.Set("interval", interval)
	params.Set("events", "history")

	fullURL := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(symbol), params.Encode())

	headers := map[string]string{
		"User-Agent": "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36",
	}

	body, err := c.httpClient.GetWithHeaders(ctx, fullURL, headers)
	if err != nil {
		if httputil.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
		}
		return nil, fmt.Errorf("fetch chart for %s: %w", symbol, err)
	}

	var resp chartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse chart for %s: %w", symbol, err)
	}

	if resp.Chart.Error != nil {
		if resp.Chart.Error.Code == "Not Found" {
			return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
		}
		return nil, fmt.Errorf("yahoo error for %s: %s", symbol, resp.Chart.Error.Description)
	}

	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	}

	result := resp.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("yahoo: no quote data for %s", symbol)
	}

	closes := result.Indicators.Quote[0].Close
	series := make(timeseries.Series, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		value := math.NaN()
		if i < len(closes) && closes[i] != nil {
			value = *closes[i]
		}
		date := time.Unix(ts, 0).UTC().Truncate(24 * time.Hour)
		series = append(series, timeseries.Point{Date: date, Value: value})
	}

	c.logger.WithFields(map[string]interface{}{
		"symbol":   symbol,
		"interval": interval,
		"count":    len(series),
	}).Debug("Fetched Yahoo prices")

	return series, nil
}
