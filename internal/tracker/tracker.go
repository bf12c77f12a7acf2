// Package tracker follows emitted signals until they resolve and summarises
// their outcomes.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"GoldPulse/internal/config"
	"GoldPulse/internal/model"
	"GoldPulse/internal/recorder"

	"github.com/rs/zerolog/log"
)

// monitorTimeframe is the bar size used to detect level touches.
const monitorTimeframe = 15

// CandleSource supplies recent bars for a monitored symbol.
type CandleSource interface {
	GetData(ctx context.Context, symbol string, timeframe, limit int) (model.Series, error)
}

// Trades is the subset of the recorder the monitor needs.
type Trades interface {
	OpenTrades(symbol string) ([]*model.TradeRecord, error)
	CloseTrade(id string, c recorder.Closure) error
}

// Monitor closes open trades when price touches a level or the trade ages out.
type Monitor struct {
	source CandleSource
	trades Trades
	now    func() time.Time
}

// NewMonitor creates a Monitor.
func NewMonitor(source CandleSource, trades Trades) *Monitor {
	return &Monitor{source: source, trades: trades, now: time.Now}
}

// Resolution is a trade closed by Check.
type Resolution struct {
	Trade   *model.TradeRecord
	Closure recorder.Closure
}

// Check walks the bars printed since each open trade was opened and closes
// the trades that resolved. Trades of every symbol are checked, each against
// its own instrument profile, so a symbol switch does not orphan them. A bar
// that touches both the stop and a target counts as a stop-out.
func (m *Monitor) Check(ctx context.Context, cfg *config.Config) ([]Resolution, error) {
	open, err := m.trades.OpenTrades("")
	if err != nil {
		return nil, fmt.Errorf("load open trades: %w", err)
	}

	var symbols []string
	bySymbol := make(map[string][]*model.TradeRecord)
	for _, t := range open {
		if _, ok := bySymbol[t.Symbol]; !ok {
			symbols = append(symbols, t.Symbol)
		}
		bySymbol[t.Symbol] = append(bySymbol[t.Symbol], t)
	}

	var out []Resolution
	var errs []error
	for _, sym := range symbols {
		res, err := m.checkSymbol(ctx, cfg, sym, bySymbol[sym])
		if err != nil {
			errs = append(errs, err)
		}
		out = append(out, res...)
	}
	return out, errors.Join(errs...)
}

func (m *Monitor) checkSymbol(ctx context.Context, cfg *config.Config, symbol string, open []*model.TradeRecord) ([]Resolution, error) {
	profile, ok := cfg.Risk.Profiles[symbol]
	if !ok {
		return nil, fmt.Errorf("%s: no risk profile", symbol)
	}
	bars, err := m.source.GetData(ctx, symbol, monitorTimeframe, cfg.Signal.CandleLimit)
	if err != nil {
		return nil, fmt.Errorf("fetch %s bars: %w", symbol, err)
	}
	bars = bars.Normalize()
	last, ok := bars.Last()
	if !ok {
		return nil, fmt.Errorf("no bars for %s", symbol)
	}

	now := m.now()
	var out []Resolution
	for _, t := range open {
		c, done := Resolve(t, bars)
		if !done && cfg.Learning.MaxTradeAge > 0 && now.Sub(t.Timestamp) >= cfg.Learning.MaxTradeAge {
			c, done = recorder.Closure{Level: "expired", Price: last.Close}, true
		}
		if !done {
			continue
		}
		c.PnL = PnL(t, c.Price, profile.ContractSize)
		c.At = now
		if err := m.trades.CloseTrade(t.ID, c); err != nil {
			log.Warn().Str("component", "tracker").Str("trade", t.ID).Err(err).Msg("close trade failed")
			continue
		}
		log.Info().Str("component", "tracker").Str("trade", t.ID).Str("symbol", symbol).
			Str("level", c.Level).Float64("pnl", c.PnL).Msg("trade closed")
		out = append(out, Resolution{Trade: t, Closure: c})
	}
	return out, nil
}

// Resolve finds the first level touched by a bar that opened after the trade
// opened. The returned closure has no PnL or time set.
func Resolve(t *model.TradeRecord, bars model.Series) (recorder.Closure, bool) {
	for _, b := range bars {
		if !b.Time.After(t.Timestamp) {
			continue
		}
		switch t.Direction {
		case model.Buy:
			if b.Low <= t.SL {
				return recorder.Closure{Level: "sl", Price: t.SL}, true
			}
			for i := model.TakeProfitLevels - 1; i >= 0; i-- {
				if b.High >= t.TP[i] {
					return recorder.Closure{Level: fmt.Sprintf("tp%d", i+1), Price: t.TP[i]}, true
				}
			}
		case model.Sell:
			if b.High >= t.SL {
				return recorder.Closure{Level: "sl", Price: t.SL}, true
			}
			for i := model.TakeProfitLevels - 1; i >= 0; i-- {
				if b.Low <= t.TP[i] {
					return recorder.Closure{Level: fmt.Sprintf("tp%d", i+1), Price: t.TP[i]}, true
				}
			}
		}
	}
	return recorder.Closure{}, false
}

// PnL is the account-currency result of exiting t at price.
func PnL(t *model.TradeRecord, price, contractSize float64) float64 {
	move := price - t.Entry
	if t.Direction == model.Sell {
		move = -move
	}
	return move * t.Size * contractSize
}

// Summary aggregates trade outcomes over a period.
type Summary struct {
	Signals  int
	Open     int
	Closed   int
	Wins     int
	Losses   int
	WinRate  float64 // percent of closed trades
	TotalPnL float64
	AvgPnL   float64
	ByLevel  map[string]int
}

// Summarize computes a Summary over trades.
func Summarize(trades []*model.TradeRecord) Summary {
	s := Summary{Signals: len(trades), ByLevel: make(map[string]int)}
	for _, t := range trades {
		if t.Status != model.TradeClosed {
			s.Open++
			continue
		}
		s.Closed++
		s.TotalPnL += t.PnL
		s.ByLevel[t.ExitLevel]++
		if t.Win() {
			s.Wins++
		} else {
			s.Losses++
		}
	}
	if s.Closed > 0 {
		s.WinRate = float64(s.Wins) / float64(s.Closed) * 100
		s.AvgPnL = s.TotalPnL / float64(s.Closed)
	}
	return s
}
