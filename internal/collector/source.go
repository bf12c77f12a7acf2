// Package collector fetches candles and quotes from ranked market data sources.
package collector

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"GoldPulse/internal/model"
)

// ErrUnsupported means a source cannot serve the symbol or timeframe.
var ErrUnsupported = errors.New("not supported by source")

// Source fetches market data for one provider.
type Source interface {
	Name() string
	// FetchCandles returns up to limit bars of timeframe minutes, oldest first.
	FetchCandles(ctx context.Context, symbol string, timeframe, limit int) (model.Series, error)
	FetchPrice(ctx context.Context, symbol string) (float64, error)
}

// NewHTTPClient builds a client with an optional proxy.
func NewHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

func trim(s model.Series, limit int) model.Series {
	if limit > 0 && len(s) > limit {
		return s[len(s)-limit:]
	}
	return s
}
