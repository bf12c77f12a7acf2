package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"GoldPulse/internal/model"
)

// RESTSource implements Source against a generic JSON bar API.
type RESTSource struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewRESTSource creates a REST source.
func NewRESTSource(baseURL, apiKey string, client *http.Client) *RESTSource {
	return &RESTSource{BaseURL: baseURL, APIKey: apiKey, Client: client}
}

func (f *RESTSource) Name() string { return "rest" }

// restBar is the expected JSON shape of one bar.
type restBar struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

func (f *RESTSource) FetchCandles(ctx context.Context, symbol string, tf, limit int) (model.Series, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("timeframe", fmt.Sprint(tf))
	q.Set("limit", fmt.Sprint(limit))
	bars, err := f.fetchBars(ctx, f.BaseURL+"/api/v1/bars?"+q.Encode())
	if err != nil && tf > 60 && tf%60 == 0 {
		// Fallback: aggregate hourly bars when the API lacks the timeframe.
		q.Set("timeframe", "60")
		q.Set("limit", fmt.Sprint(limit*tf/60))
		hourly, hourlyErr := f.fetchBars(ctx, f.BaseURL+"/api/v1/bars?"+q.Encode())
		if hourlyErr != nil {
			return nil, fmt.Errorf("bars failed: %w; hourly fallback also failed: %w", err, hourlyErr)
		}
		return trim(Resample(hourly, tf), limit), nil
	}
	if err != nil {
		return nil, err
	}
	return trim(bars, limit), nil
}

func (f *RESTSource) FetchPrice(ctx context.Context, symbol string) (float64, error) {
	endpoint := fmt.Sprintf("%s/api/v1/quote?symbol=%s", f.BaseURL, url.QueryEscape(symbol))
	resp, err := f.get(ctx, endpoint)
	if err != nil {
		return 0, fmt.Errorf("fetch current price: %w", err)
	}
	defer resp.Body.Close()
	var result struct {
		Price float64 `json:"price"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("decode price: %w", err)
	}
	return result.Price, nil
}

func (f *RESTSource) get(ctx context.Context, endpoint string) (*http.Response, error) {
	if f.BaseURL == "" {
		return nil, fmt.Errorf("rest base url: %w", ErrUnsupported)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if f.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.APIKey)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("status %d, body: %s", resp.StatusCode, string(body))
	}
	return resp, nil
}

func (f *RESTSource) fetchBars(ctx context.Context, endpoint string) (model.Series, error) {
	resp, err := f.get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("fetch bars: %w", err)
	}
	defer resp.Body.Close()
	var raw []restBar
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode bars: %w", err)
	}
	bars := make(model.Series, len(raw))
	for i, b := range raw {
		bars[i] = model.Candle{
			Time:   time.Unix(b.Timestamp, 0).UTC(),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		}
	}
	// Ensure chronological order
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars, nil
}
