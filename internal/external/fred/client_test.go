package fred

import (
	"bytes"
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"macropulse/pkg/config"
	"macropulse/pkg/httputil"
	"macropulse/pkg/logger"
)

func testClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	cfg := &config.Config{
		RequestTimeout: 5 * time.Second,
		FRED: config.FREDConfig{
			APIKey:  "test-key",
			BaseURL: serverURL,
		},
	}
	log := logger.NewWithWriter(&bytes.Buffer{}, "error")
	return NewClient(cfg, httputil.New(cfg, log).DisableRetry(), log)
}

func TestGetSeries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("series_id") != "ICSA" {
			t.Errorf("unexpected series_id: %s", r.URL.Query().Get("series_id"))
		}
		if r.URL.Query().Get("api_key") != "test-key" {
			t.Error("api_key not forwarded")
		}
		w.Write([]byte(`{"observations":[
			{"date":"2024-01-06","value":"202000"},
			{"date":"2024-01-13","value":"."},
			{"date":"2024-01-20","value":"215000"}
		]}`))
	}))
	defer server.Close()

	series, err := testClient(t, server.URL).GetSeries(context.Background(), "ICSA", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("GetSeries() failed: %v", err)
	}

	if len(series) != 3 {
		t.Fatalf("got %d points, want 3", len(series))
	}
	if series[0].Value != 202000 {
		t.Errorf("first value = %f", series[0].Value)
	}
	if !math.IsNaN(series[1].Value) {
		t.Errorf("missing observation should be NaN, got %f", series[1].Value)
	}
	if series[2].Date != time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC) {
		t.Errorf("third date = %v", series[2].Date)
	}
}

func TestGetSeriesDateRange(t *testing.T) {
	var gotStart, gotEnd string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotStart = r.URL.Query().Get("observation_start")
		gotEnd = r.URL.Query().Get("observation_end")
		w.Write([]byte(`{"observations":[]}`))
	}))
	defer server.Close()

	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	if _, err := testClient(t, server.URL).GetSeries(context.Background(), "PCE", start, end); err != nil {
		t.Fatal(err)
	}

	if gotStart != "2020-01-01" || gotEnd != "2024-06-30" {
		t.Errorf("date range not forwarded: start=%q end=%q", gotStart, gotEnd)
	}
}

func TestGetSeriesNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error_code":400,"error_message":"The series does not exist."}`))
	}))
	defer server.Close()

	_, err := testClient(t, server.URL).GetSeries(context.Background(), "NOPE", time.Time{}, time.Time{})
	if !errors.Is(err, ErrSeriesNotFound) {
		t.Errorf("expected ErrSeriesNotFound, got %v", err)
	}
}

func TestGetSeries404(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := testClient(t, server.URL).GetSeries(context.Background(), "NOPE", time.Time{}, time.Time{})
	if !errors.Is(err, ErrSeriesNotFound) {
		t.Errorf("expected ErrSeriesNotFound, got %v", err)
	}
}

func TestGetMultipleSeries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("series_id") {
		case "AMTMNO":
			w.Write([]byte(`{"observations":[
				{"date":"2024-01-01","value":"100"},
				{"date":"2024-02-01","value":"102"}
			]}`))
		case "IPMAN":
			w.Write([]byte(`{"observations":[
				{"date":"2024-02-01","value":"98"},
				{"date":"2024-03-01","value":"99"}
			]}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer server.Close()

	merged, err := testClient(t, server.URL).GetMultipleSeries(context.Background(), []string{"AMTMNO", "IPMAN"}, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("GetMultipleSeries() failed: %v", err)
	}

	// Outer join: union of dates.
	if len(merged.Dates) != 3 {
		t.Fatalf("got %d dates, want 3", len(merged.Dates))
	}

	amtmno := merged.Columns["AMTMNO"]
	if !math.IsNaN(amtmno[2]) {
		t.Errorf("AMTMNO has no March value, got %f", amtmno[2])
	}
	ipman := merged.Columns["IPMAN"]
	if !math.IsNaN(ipman[0]) {
		t.Errorf("IPMAN has no January value, got %f", ipman[0])
	}
	if ipman[1] != 98 {
		t.Errorf("IPMAN February = %f, want 98", ipman[1])
	}
}

func TestNextReleaseDate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("release_id") != "59" {
			t.Errorf("release_id = %s", r.URL.Query().Get("release_id"))
		}
		w.Write([]byte(`{"release_dates":[
			{"release_id":59,"date":"2024-06-10"},
			{"release_id":59,"date":"2024-06-20"},
			{"release_id":59,"date":"2024-06-27"}
		]}`))
	}))
	defer server.Close()

	after := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	date, err := testClient(t, server.URL).NextReleaseDate(context.Background(), 59, after)
	if err != nil {
		t.Fatalf("NextReleaseDate() failed: %v", err)
	}

	want := time.Date(2024, 6, 20, 0, 0, 0, 0, time.UTC)
	if !date.Equal(want) {
		t.Errorf("got %v, want %v", date, want)
	}
}

func TestParseReleaseCalendar(t *testing.T) {
	html := `<html><body>
		<div class="release-calendar-date-group">
			<h2>June 20, 2024</h2>
			<table><tr><td><a href="/release/59">Unemployment Insurance Weekly Claims Report</a></td></tr></table>
		</div>
		<div class="release-calendar-date-group">
			<h2>June 21, 2024</h2>
			<table>
				<tr><td><a href="/release/149">Personal Income and Outlays</a></td></tr>
				<tr><td><a href="/release/85">Manufacturers' Shipments, Inventories, and Orders</a></td></tr>
			</table>
		</div>
	</body></html>`

	releases, err := parseReleaseCalendar(html)
	if err != nil {
		t.Fatalf("parseReleaseCalendar() failed: %v", err)
	}

	if len(releases) != 3 {
		t.Fatalf("got %d releases, want 3", len(releases))
	}
	if releases[0].Name != "Unemployment Insurance Weekly Claims Report" {
		t.Errorf("first name = %q", releases[0].Name)
	}
	if !releases[1].Date.Equal(time.Date(2024, 6, 21, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("second date = %v", releases[1].Date)
	}
}
