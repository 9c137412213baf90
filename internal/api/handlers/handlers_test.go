package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"macropulse/internal/cache"
	"macropulse/internal/external/fred"
	"macropulse/internal/indicator"
	"macropulse/internal/timeseries"
	"macropulse/pkg/config"
	"macropulse/pkg/logger"
)

type fakeFRED struct {
	mu      sync.Mutex
	failing map[string]bool
}

func (f *fakeFRED) GetSeries(ctx context.Context, seriesID string, start, end time.Time) (timeseries.Series, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing != nil && f.failing[seriesID] {
		return nil, fmt.Errorf("%w: %s", fred.ErrSeriesNotFound, seriesID)
	}
	s := make(timeseries.Series, 140)
	date := time.Date(2013, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range s {
		s[i] = timeseries.Point{Date: date, Value: 100 + float64(i) + 3*math.Sin(float64(i)/4)}
		date = date.AddDate(0, 1, 0)
	}
	return s, nil
}

func (f *fakeFRED) UpcomingReleases(ctx context.Context) ([]fred.Release, error) {
	return []fred.Release{{Name: "Consumer Price Index", Date: time.Date(2024, 7, 11, 0, 0, 0, 0, time.UTC)}}, nil
}

func (f *fakeFRED) NextReleaseDate(ctx context.Context, releaseID int, after time.Time) (time.Time, error) {
	return time.Date(2024, 7, 11, 0, 0, 0, 0, time.UTC), nil
}

type fakeYahoo struct{}

func (fakeYahoo) GetHistoricalPrices(ctx context.Context, symbol string, start, end time.Time, interval string) (timeseries.Series, error) {
	s := make(timeseries.Series, 300)
	date := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := range s {
		s[i] = timeseries.Point{Date: date, Value: 2 + float64(i)*0.01}
		date = date.AddDate(0, 0, 1)
	}
	return s, nil
}

type recordingHub struct {
	mu       sync.Mutex
	payloads []interface{}
}

func (h *recordingHub) Broadcast(v interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.payloads = append(h.payloads, v)
}

func (h *recordingHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.payloads)
}

func testRouter(t *testing.T, fredSource indicator.FREDSource, hub Broadcaster) http.Handler {
	t.Helper()
	cfg := &config.Config{
		FetchWorkers: 5,
		Cache: config.CacheConfig{
			Enabled:       true,
			MaxMemorySize: 64,
			DiskDir:       t.TempDir(),
			DefaultTTL:    time.Hour,
			FREDTTL:       24 * time.Hour,
			YahooTTL:      time.Hour,
		},
	}
	log := logger.NewWithWriter(io.Discard, "error")
	cacheManager, err := cache.NewManager(cfg, log)
	if err != nil {
		t.Fatal(err)
	}
	service := indicator.NewService(cfg, fredSource, fakeYahoo{}, cacheManager, log)

	indicatorHandler := NewIndicatorHandler(service, nil, hub, log)
	cacheHandler := NewCacheHandler(service, log)

	r := mux.NewRouter()
	r.HandleFunc("/api/indicators", indicatorHandler.GetAll).Methods("GET")
	r.HandleFunc("/api/indicators/{key}", indicatorHandler.Get).Methods("GET")
	r.HandleFunc("/api/indicators/{key}/refresh", indicatorHandler.Refresh).Methods("POST")
	r.HandleFunc("/api/indicators/{key}/history", indicatorHandler.History).Methods("GET")
	r.HandleFunc("/api/releases", indicatorHandler.Releases).Methods("GET")
	r.HandleFunc("/api/cache/stats", cacheHandler.Stats).Methods("GET")
	r.HandleFunc("/api/cache/cleanup", cacheHandler.Cleanup).Methods("POST")
	r.HandleFunc("/api/cache/invalidate", cacheHandler.Invalidate).Methods("POST")
	return r
}

func doRequest(t *testing.T, router http.Handler, method, path string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestGetIndicator(t *testing.T) {
	router := testRouter(t, &fakeFRED{}, nil)

	rec := doRequest(t, router, "GET", "/api/indicators/initial_claims", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var result indicator.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if result.Key != "initial_claims" {
		t.Errorf("key = %q", result.Key)
	}
	if result.Series == nil {
		t.Fatal("expected series payload")
	}
	if len(result.Series.Series) == 0 {
		t.Error("expected data points")
	}
}

func TestGetIndicatorUnknownKey(t *testing.T) {
	router := testRouter(t, &fakeFRED{}, nil)

	rec := doRequest(t, router, "GET", "/api/indicators/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestGetIndicatorInvalidPeriods(t *testing.T) {
	router := testRouter(t, &fakeFRED{}, nil)

	for _, periods := range []string{"abc", "-5", "0"} {
		rec := doRequest(t, router, "GET", "/api/indicators/pce?periods="+periods, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("periods=%s: status = %d", periods, rec.Code)
		}
	}
}

func TestGetIndicatorUpstreamFailure(t *testing.T) {
	router := testRouter(t, &fakeFRED{failing: map[string]bool{"ICSA": true}}, nil)

	rec := doRequest(t, router, "GET", "/api/indicators/initial_claims", nil)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestGetAllIndicators(t *testing.T) {
	router := testRouter(t, &fakeFRED{}, nil)

	rec := doRequest(t, router, "GET", "/api/indicators", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var summary indicator.Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if len(summary.Results) != len(indicator.Keys()) {
		t.Errorf("got %d results, want %d", len(summary.Results), len(indicator.Keys()))
	}
	if len(summary.Errors) != 0 {
		t.Errorf("unexpected errors: %v", summary.Errors)
	}
}

func TestRefreshBroadcasts(t *testing.T) {
	hub := &recordingHub{}
	router := testRouter(t, &fakeFRED{}, hub)

	rec := doRequest(t, router, "POST", "/api/indicators/pce/refresh", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if hub.count() != 1 {
		t.Errorf("broadcasts = %d, want 1", hub.count())
	}
}

func TestRefreshUnknownKey(t *testing.T) {
	router := testRouter(t, &fakeFRED{}, &recordingHub{})

	rec := doRequest(t, router, "POST", "/api/indicators/nope/refresh", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestHistoryWithoutDatabase(t *testing.T) {
	router := testRouter(t, &fakeFRED{}, nil)

	rec := doRequest(t, router, "GET", "/api/indicators/pce/history", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestReleases(t *testing.T) {
	router := testRouter(t, &fakeFRED{}, nil)

	rec := doRequest(t, router, "GET", "/api/releases", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var releases []fred.Release
	if err := json.Unmarshal(rec.Body.Bytes(), &releases); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if len(releases) != 1 || releases[0].Name != "Consumer Price Index" {
		t.Errorf("releases = %+v", releases)
	}
}

func TestCacheStats(t *testing.T) {
	router := testRouter(t, &fakeFRED{}, nil)

	// Warm the cache, then hit it once.
	doRequest(t, router, "GET", "/api/indicators/pce", nil)
	doRequest(t, router, "GET", "/api/indicators/pce", nil)

	rec := doRequest(t, router, "GET", "/api/cache/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var stats cache.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if stats.Hits < 1 {
		t.Errorf("hits = %d, want at least 1", stats.Hits)
	}
}

func TestCacheInvalidate(t *testing.T) {
	router := testRouter(t, &fakeFRED{}, nil)
	doRequest(t, router, "GET", "/api/indicators/pce", nil)

	body := bytes.NewBufferString(`{"indicator": "pce"}`)
	rec := doRequest(t, router, "POST", "/api/cache/invalidate", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp struct {
		Indicator   string `json:"indicator"`
		Invalidated int    `json:"invalidated"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Indicator != "pce" {
		t.Errorf("indicator = %q", resp.Indicator)
	}
	if resp.Invalidated < 1 {
		t.Errorf("invalidated = %d, want at least 1", resp.Invalidated)
	}
}

func TestCacheInvalidateAll(t *testing.T) {
	router := testRouter(t, &fakeFRED{}, nil)
	doRequest(t, router, "GET", "/api/indicators/pce", nil)

	rec := doRequest(t, router, "POST", "/api/cache/invalidate", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestCacheCleanup(t *testing.T) {
	router := testRouter(t, &fakeFRED{}, nil)

	rec := doRequest(t, router, "POST", "/api/cache/cleanup", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
