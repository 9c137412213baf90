package fred

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Release is one scheduled data release.
type Release struct {
	Name string    `json:"name"`
	Date time.Time `json:"date"`
}

// releaseDatesResponse mirrors /fred/release/dates.
type releaseDatesResponse struct {
	ReleaseDates []struct {
		ReleaseID int    `json:"release_id"`
		Date      string `json:"date"`
	} `json:"release_dates"`
}

// NextReleaseDate returns the next scheduled date for a release ID, using
// the FRED release/dates endpoint with include_release_dates_with_no_data
// so future dates appear.
func (c *Client) NextReleaseDate(ctx context.Context, releaseID int, after time.Time) (time.Time, error) {
	params := url.Values{}
	params.Set("release_id", fmt.Sprintf("%d", releaseID))
	params.Set("api_key", c.apiKey)
	params.Set("file_type", "json")
	params.Set("include_release_dates_with_no_data", "true")
	params.Set("realtime_start", after.Format("2006-01-02"))
	params.Set("limit", "30")

	fullURL := fmt.Sprintf("%s/release/dates?%s", c.baseURL, params.Encode())

	body, err := c.httpClient.Get(ctx, fullURL)
	if err != nil {
		return time.Time{}, fmt.Errorf("fetch release dates for %d: %w", releaseID, err)
	}

	var resp releaseDatesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return time.Time{}, fmt.Errorf("parse release dates for %d: %w", releaseID, err)
	}

	for _, rd := range resp.ReleaseDates {
		date, err := time.Parse("2006-01-02", rd.Date)
		if err != nil {
			continue
		}
		if !date.Before(after) {
			return date, nil
		}
	}

	return time.Time{}, fmt.Errorf("no upcoming release date for release %d", releaseID)
}

// UpcomingReleases scrapes the FRED release calendar page for the next
// few days of scheduled releases. The calendar has no JSON endpoint, so
// this parses the HTML table directly.
func (c *Client) UpcomingReleases(ctx context.Context) ([]Release, error) {
	calendarURL := "https://fred.stlouisfed.org/releases/calendar"

	body, err := c.httpClient.Get(ctx, calendarURL)
	if err != nil {
		return nil, fmt.Errorf("fetch release calendar: %w", err)
	}

	releases, err := parseReleaseCalendar(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse release calendar: %w", err)
	}

	c.logger.WithField("count", len(releases)).Debug("Scraped release calendar")
	return releases, nil
}

// parseReleaseCalendar extracts release names and dates from the calendar
// HTML. Each day is a heading followed by a table of release links.
func parseReleaseCalendar(html string) ([]Release, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var releases []Release

	doc.Find(".release-calendar-date-group, .calendar-day").Each(func(i int, group *goquery.Selection) {
		dateText := strings.TrimSpace(group.Find("h2, h3, .calendar-date").First().Text())
		date, ok := parseCalendarDate(dateText)
		if !ok {
			return
		}

		group.Find("a").Each(func(j int, link *goquery.Selection) {
			name := strings.TrimSpace(link.Text())
			if name == "" {
				return
			}
			releases = append(releases, Release{Name: name, Date: date})
		})
	})

	return releases, nil
}

// parseCalendarDate handles the date formats the calendar page uses.
func parseCalendarDate(text string) (time.Time, bool) {
	layouts := []string{
		"January 2, 2006",
		"Monday, January 2, 2006",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if date, err := time.Parse(layout, text); err == nil {
			return date, true
		}
	}
	return time.Time{}, false
}
