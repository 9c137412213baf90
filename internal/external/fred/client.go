package fred

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"time"

	"macropulse/internal/timeseries"
	"macropulse/pkg/config"
	"macropulse/pkg/httputil"
	"macropulse/pkg/logger"
)

// ErrSeriesNotFound is returned when FRED reports an unknown series ID.
var ErrSeriesNotFound = errors.New("fred: series not found")

// Client handles communication with the FRED API.
// All FRED calls in the repository go through this client.
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	apiKey     string
	baseURL    string
}

// NewClient creates a new FRED client.
func NewClient(cfg *config.Config, httpClient *httputil.Client, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log,
		apiKey:     cfg.FRED.APIKey,
		baseURL:    cfg.FRED.BaseURL,
	}
}

// observationsResponse mirrors /fred/series/observations.
type observationsResponse struct {
	Observations []struct {
		Date  string `json:"date"`
		Value string `json:"value"`
	} `json:"observations"`
}

// GetSeries fetches observations for a single series.
// Missing observations (reported as ".") become NaN points so downstream
// transforms see the gaps.
func (c *Client) GetSeries(ctx context.Context, seriesID string, start, end time.Time) (timeseries.Series, error) {
	params := url.Values{}
	params.Set("series_id", seriesID)
	params.Set("api_key", c.apiKey)
	params.Set("file_type", "json")
	if !start.IsZero() {
		params.Set("observation_start", start.Format("2006-01-02"))
	}
	if !end.IsZero() {
		params.Set("observation_end", end.Format("2006-01-02"))
	}

	fullURL := fmt.Sprintf("%s/series/observations?%s", c.baseURL, params.Encode())

	body, err := c.httpClient.Get(ctx, fullURL)
	if err != nil {
		if httputil.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrSeriesNotFound, seriesID)
		}
		var he *httputil.Error
		// FRED answers 400 with "series does not exist" for unknown IDs.
		if errors.As(err, &he) && he.StatusCode == 400 {
			return nil, fmt.Errorf("%w: %s", ErrSeriesNotFound, seriesID)
		}
		return nil, fmt.Errorf("fetch series %s: %w", seriesID, err)
	}

	var resp observationsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse observations for %s: %w", seriesID, err)
	}

	series := make(timeseries.Series, 0, len(resp.Observations))
	for _, obs := range resp.Observations {
		date, err := time.Parse("2006-01-02", obs.Date)
		if err != nil {
			continue
		}

		value := math.NaN()
		if obs.Value != "." && obs.Value != "" {
			if parsed, err := strconv.ParseFloat(obs.Value, 64); err == nil {
				value = parsed
			}
		}

		series = append(series, timeseries.Point{Date: date, Value: value})
	}

	c.logger.WithFields(map[string]interface{}{
		"series_id": seriesID,
		"count":     len(series),
	}).Debug("Fetched FRED series")

	return series, nil
}

// GetMultipleSeries fetches several series and merges them into one
// date-aligned table. A series that does not exist fails the whole call;
// partial tolerance belongs to the caller.
func (c *Client) GetMultipleSeries(ctx context.Context, seriesIDs []string, start, end time.Time) (*timeseries.Merged, error) {
	byID := make(map[string]timeseries.Series, len(seriesIDs))
	for _, id := range seriesIDs {
		s, err := c.GetSeries(ctx, id, start, end)
		if err != nil {
			return nil, err
		}
		byID[id] = s
	}

	merged := timeseries.MergeByDate(byID)
	return &merged, nil
}
