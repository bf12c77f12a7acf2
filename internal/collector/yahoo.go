package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"GoldPulse/internal/model"
)

const yahooChartURL = "https://query1.finance.yahoo.com/v8/finance/chart/"

// YahooSource implements Source using the Yahoo Finance chart API. Each
// instrument maps to candidate tickers tried in order.
type YahooSource struct {
	Client  *http.Client
	BaseURL string
	Symbols map[string][]string
}

// NewYahooSource creates a Yahoo Finance source.
func NewYahooSource(client *http.Client, symbols map[string][]string) *YahooSource {
	return &YahooSource{Client: client, BaseURL: yahooChartURL, Symbols: symbols}
}

func (f *YahooSource) Name() string { return "yahoo" }

func (f *YahooSource) tickers(symbol string) []string {
	if mapped, ok := f.Symbols[symbol]; ok && len(mapped) > 0 {
		return mapped
	}
	return []string{symbol}
}

// yahooChart is the response structure from Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []interface{} `json:"open"`
					High   []interface{} `json:"high"`
					Low    []interface{} `json:"low"`
					Close  []interface{} `json:"close"`
					Volume []interface{} `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func toFloat(v interface{}) float64 {
	if v == nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

// yahooInterval maps a timeframe to a native interval, its range, and the
// factor to resample by when the timeframe is not native.
func yahooInterval(tf int) (interval, rng string, resample int, err error) {
	switch {
	case tf == 15:
		return "15m", "60d", 0, nil
	case tf == 30:
		return "30m", "60d", 0, nil
	case tf == 60:
		return "60m", "60d", 0, nil
	case tf == 1440:
		return "1d", "2y", 0, nil
	case tf%60 == 0 && tf < 1440:
		return "60m", "730d", tf, nil
	case tf%15 == 0 && tf < 60:
		return "15m", "60d", tf, nil
	}
	return "", "", 0, fmt.Errorf("yahoo timeframe %d: %w", tf, ErrUnsupported)
}

func (f *YahooSource) FetchCandles(ctx context.Context, symbol string, tf, limit int) (model.Series, error) {
	interval, rng, resample, err := yahooInterval(tf)
	if err != nil {
		return nil, err
	}
	var errs []error
	for _, ticker := range f.tickers(symbol) {
		chart, err := f.fetchChart(ctx, ticker, interval, rng)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ticker, err))
			continue
		}
		bars := chartBars(chart)
		if len(bars) == 0 {
			errs = append(errs, fmt.Errorf("%s: no data returned", ticker))
			continue
		}
		if resample > 0 {
			bars = Resample(bars, resample)
		}
		return trim(bars, limit), nil
	}
	return nil, fmt.Errorf("yahoo %s: %w", symbol, errors.Join(errs...))
}

func (f *YahooSource) FetchPrice(ctx context.Context, symbol string) (float64, error) {
	var errs []error
	for _, ticker := range f.tickers(symbol) {
		chart, err := f.fetchChart(ctx, ticker, "1m", "1d")
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ticker, err))
			continue
		}
		if p := chart.Chart.Result[0].Meta.RegularMarketPrice; p > 0 {
			return p, nil
		}
		if last, ok := chartBars(chart).Last(); ok {
			return last.Close, nil
		}
		errs = append(errs, fmt.Errorf("%s: no price data", ticker))
	}
	return 0, fmt.Errorf("yahoo %s: %w", symbol, errors.Join(errs...))
}

func (f *YahooSource) fetchChart(ctx context.Context, ticker, interval, rng string) (*yahooChart, error) {
	u := fmt.Sprintf("%s%s?interval=%s&range=%s", f.BaseURL, url.PathEscape(ticker), interval, rng)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yahoo read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo: status %d, body: %.200s", resp.StatusCode, string(body))
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("yahoo decode: %w", err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 {
		return nil, fmt.Errorf("yahoo: empty result")
	}
	return &chart, nil
}

func chartBars(chart *yahooChart) model.Series {
	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil
	}
	quote := result.Indicators.Quote[0]
	bars := make(model.Series, 0, len(result.Timestamp))

	at := func(vals []interface{}, i int) float64 {
		if i < len(vals) {
			return toFloat(vals[i])
		}
		return 0
	}
	for i, ts := range result.Timestamp {
		o := at(quote.Open, i)
		h := at(quote.High, i)
		l := at(quote.Low, i)
		c := at(quote.Close, i)
		if o == 0 && h == 0 && l == 0 && c == 0 {
			continue // null bars (market closed)
		}
		bars = append(bars, model.Candle{
			Time:   time.Unix(ts, 0).UTC(),
			Open:   o,
			High:   h,
			Low:    l,
			Close:  c,
			Volume: at(quote.Volume, i),
		})
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars
}
