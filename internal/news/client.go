// Package news tracks the day's economic calendar and raises pre-release alerts.
package news

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"GoldPulse/internal/model"
)

const (
	sourceFeed     = "forexfactory"
	sourceFallback = "fallback"
)

// Client reads the weekly ForexFactory JSON calendar.
type Client struct {
	HTTP     *http.Client
	URL      string
	Currency string
}

// NewClient creates a Client. currency filters events, e.g. "USD".
func NewClient(hc *http.Client, url, currency string) *Client {
	return &Client{HTTP: hc, URL: url, Currency: strings.ToUpper(currency)}
}

// ffEvent is one entry of the calendar feed.
type ffEvent struct {
	Title    string `json:"title"`
	Country  string `json:"country"`
	Currency string `json:"currency"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Impact   string `json:"impact"`
	Forecast string `json:"forecast"`
	Previous string `json:"previous"`
}

// Fetch returns the feed's events for the client currency on day and the
// following day (UTC dates), sorted by time. The next day is kept so releases
// just after midnight are alerted before the date rolls over.
func (c *Client) Fetch(ctx context.Context, day time.Time) ([]model.NewsEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calendar fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("calendar: status %d, body: %s", resp.StatusCode, string(body))
	}

	var raw []ffEvent
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("calendar decode: %w", err)
	}
	return c.filter(raw, day), nil
}

func (c *Client) filter(raw []ffEvent, day time.Time) []model.NewsEvent {
	var out []model.NewsEvent
	for _, e := range raw {
		cur := strings.ToUpper(firstNonEmpty(e.Currency, e.Country))
		if cur == "US" {
			cur = "USD"
		}
		if cur != c.Currency {
			continue
		}
		at, ok := parseEventTime(e.Date, e.Time)
		if !ok {
			continue
		}
		if !sameDay(at, day) && !sameDay(at, day.AddDate(0, 0, 1)) {
			continue
		}
		out = append(out, model.NewsEvent{
			Time:     at,
			Currency: cur,
			Title:    firstNonEmpty(e.Title, cur+" Event"),
			Impact:   ParseImpact(e.Impact),
			Forecast: e.Forecast,
			Previous: e.Previous,
			Source:   sourceFeed,
		})
	}
	sortEvents(out)
	return out
}

// ParseImpact maps the feed's impact labels and folder colours onto Impact.
func ParseImpact(s string) model.Impact {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high", "red", "3":
		return model.ImpactHigh
	case "medium", "orange", "yellow", "2":
		return model.ImpactMedium
	default:
		return model.ImpactLow
	}
}

// parseEventTime accepts an RFC 3339 timestamp, or a date plus HH:MM clock
// time read as UTC. Events without a clock time are placed at 12:00.
func parseEventTime(date, clock string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, date); err == nil {
		return t.UTC(), true
	}
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return time.Time{}, false
	}
	if clock == "" {
		clock = "12:00"
	}
	hm, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, false
	}
	return day.Add(time.Duration(hm.Hour())*time.Hour + time.Duration(hm.Minute())*time.Minute), true
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
