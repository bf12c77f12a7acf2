package collector

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"GoldPulse/internal/model"

	"github.com/adshao/go-binance/v2"
)

const binanceMaxLimit = 1000

// BinanceSource implements Source with public spot market endpoints.
type BinanceSource struct {
	client  *binance.Client
	symbols map[string]string // instrument -> exchange pair
}

// NewBinanceSource creates a keyless spot client. symbols maps instruments to
// exchange pairs; unmapped instruments are unsupported.
func NewBinanceSource(hc *http.Client, symbols map[string]string) *BinanceSource {
	c := binance.NewClient("", "")
	if hc != nil {
		c.HTTPClient = hc
	}
	return &BinanceSource{client: c, symbols: symbols}
}

func (b *BinanceSource) Name() string { return "binance" }

func (b *BinanceSource) pair(symbol string) (string, error) {
	p, ok := b.symbols[symbol]
	if !ok || p == "" {
		return "", fmt.Errorf("binance %s: %w", symbol, ErrUnsupported)
	}
	return p, nil
}

func binanceInterval(tf int) (string, error) {
	switch tf {
	case 15:
		return "15m", nil
	case 30:
		return "30m", nil
	case 60:
		return "1h", nil
	case 240:
		return "4h", nil
	case 1440:
		return "1d", nil
	}
	return "", fmt.Errorf("binance timeframe %d: %w", tf, ErrUnsupported)
}

func (b *BinanceSource) FetchCandles(ctx context.Context, symbol string, tf, limit int) (model.Series, error) {
	pair, err := b.pair(symbol)
	if err != nil {
		return nil, err
	}
	interval, err := binanceInterval(tf)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > binanceMaxLimit {
		limit = binanceMaxLimit
	}
	klines, err := b.client.NewKlinesService().Symbol(pair).Interval(interval).Limit(limit).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance klines %s: %w", pair, err)
	}
	return klineCandles(klines)
}

func (b *BinanceSource) FetchPrice(ctx context.Context, symbol string) (float64, error) {
	pair, err := b.pair(symbol)
	if err != nil {
		return 0, err
	}
	prices, err := b.client.NewListPricesService().Symbol(pair).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("binance price %s: %w", pair, err)
	}
	for _, p := range prices {
		if p.Symbol == pair {
			return strconv.ParseFloat(p.Price, 64)
		}
	}
	return 0, fmt.Errorf("binance price %s: not in response", pair)
}

func klineCandles(klines []*binance.Kline) (model.Series, error) {
	out := make(model.Series, 0, len(klines))
	for _, k := range klines {
		var vals [5]float64
		for i, s := range []string{k.Open, k.High, k.Low, k.Close, k.Volume} {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("binance kline %d: %w", k.OpenTime, err)
			}
			vals[i] = v
		}
		out = append(out, model.Candle{
			Time:   time.UnixMilli(k.OpenTime).UTC(),
			Open:   vals[0],
			High:   vals[1],
			Low:    vals[2],
			Close:  vals[3],
			Volume: vals[4],
		})
	}
	return out, nil
}
