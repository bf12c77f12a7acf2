// Package learning adjusts strategy weights from closed-trade outcomes.
package learning

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"GoldPulse/internal/config"
	"GoldPulse/internal/model"
	"GoldPulse/internal/recorder"
	"GoldPulse/internal/weights"

	"github.com/rs/zerolog/log"
)

// ErrNotEnoughTrades means the run was skipped; the stored weights are unchanged.
var ErrNotEnoughTrades = errors.New("not enough closed trades")

// History is the trade log the optimizer learns from.
type History interface {
	Trades(symbol string, limit int) ([]*model.TradeRecord, error)
	RecordOptimization(evt *recorder.OptimizationEvent) error
}

// StrategyStats summarises closed trades a strategy voted for.
type StrategyStats struct {
	Name      string
	Trades    int
	Wins      int
	WinRate   float64 // percent
	AvgProfit float64 // mean PnL of winning trades
}

// Analyze attributes each closed trade to every strategy that voted in the
// trade's direction.
func Analyze(trades []*model.TradeRecord, names []string) map[string]StrategyStats {
	out := make(map[string]StrategyStats, len(names))
	for _, name := range names {
		st := StrategyStats{Name: name}
		profit := 0.0
		for _, t := range trades {
			if t.Status != model.TradeClosed || !t.SupportedBy(name) {
				continue
			}
			st.Trades++
			if t.Win() {
				st.Wins++
				profit += t.PnL
			}
		}
		if st.Trades > 0 {
			st.WinRate = float64(st.Wins) / float64(st.Trades) * 100
		}
		if st.Wins > 0 {
			st.AvgProfit = profit / float64(st.Wins)
		}
		out[name] = st
	}
	return out
}

// DeepAdjust applies the full re-weighting rules and returns the normalised map
// plus the names whose raw weight changed.
func DeepAdjust(w weights.Map, stats map[string]StrategyStats, cfg config.LearningConfig) (weights.Map, []string) {
	next := w.Clone()
	var changed []string
	for _, name := range w.Names() {
		st := stats[name]
		cur := next[name]
		v := cur
		if st.Trades >= cfg.MinTrades {
			switch {
			case st.WinRate >= 80:
				v = math.Min(0.35, v*1.5)
			case st.WinRate >= 70:
				v = math.Min(0.25, v*1.3)
			case st.WinRate >= 60:
				v *= 1.1
			case st.WinRate >= 50:
				v = math.Max(0.05, v*0.8)
			default:
				v = math.Max(0.02, v*0.5)
			}
		}
		if st.AvgProfit > cfg.ProfitBonus {
			v *= 1.2
		}
		if v != cur {
			next[name] = v
			changed = append(changed, name)
		}
	}
	return next.Normalize(), changed
}

// QuickAdjust nudges strategies with a clear recent edge either way.
func QuickAdjust(w weights.Map, stats map[string]StrategyStats, cfg config.LearningConfig) (weights.Map, []string) {
	next := w.Clone()
	var changed []string
	for _, name := range w.Names() {
		st := stats[name]
		if st.Trades < cfg.QuickMinPerStrategy {
			continue
		}
		cur := next[name]
		v := cur
		switch {
		case st.WinRate >= 75:
			v = math.Min(0.3, v*1.1)
		case st.WinRate <= 25:
			v = math.Max(0.05, v*0.9)
		}
		if v != cur {
			next[name] = v
			changed = append(changed, name)
		}
	}
	return next.Normalize(), changed
}

// Result describes one optimizer run.
type Result struct {
	Kind    string
	Trades  int
	Before  weights.Map
	After   weights.Map
	Changed []string
	Stats   map[string]StrategyStats
}

// Optimizer updates the weight file from trade history.
type Optimizer struct {
	store   *weights.Store
	history History
	cfg     config.LearningConfig
}

// NewOptimizer creates an Optimizer.
func NewOptimizer(store *weights.Store, history History, cfg config.LearningConfig) *Optimizer {
	return &Optimizer{store: store, history: history, cfg: cfg}
}

// Optimize re-weights from every closed trade of symbol.
func (o *Optimizer) Optimize(symbol string) (*Result, error) {
	trades, err := o.history.Trades(symbol, 0)
	if err != nil {
		return nil, fmt.Errorf("load trades: %w", err)
	}
	if len(trades) == 0 {
		return nil, ErrNotEnoughTrades
	}
	return o.run("deep", trades, DeepAdjust)
}

// QuickOptimize re-weights from the most recent window of closed trades.
func (o *Optimizer) QuickOptimize(symbol string) (*Result, error) {
	trades, err := o.history.Trades(symbol, o.cfg.QuickWindow)
	if err != nil {
		return nil, fmt.Errorf("load trades: %w", err)
	}
	if len(trades) < o.cfg.QuickMinTrades {
		return nil, fmt.Errorf("%w: %d of %d", ErrNotEnoughTrades, len(trades), o.cfg.QuickMinTrades)
	}
	return o.run("quick", trades, QuickAdjust)
}

type adjustFunc func(weights.Map, map[string]StrategyStats, config.LearningConfig) (weights.Map, []string)

func (o *Optimizer) run(kind string, trades []*model.TradeRecord, adjust adjustFunc) (*Result, error) {
	res := &Result{Kind: kind, Trades: len(trades)}
	after, err := o.store.Update(func(cur weights.Map) (weights.Map, error) {
		res.Before = cur.Clone()
		res.Stats = Analyze(trades, cur.Names())
		next, changed := adjust(cur, res.Stats, o.cfg)
		res.Changed = changed
		return next, nil
	})
	if err != nil {
		return nil, fmt.Errorf("update weights: %w", err)
	}
	res.After = after

	logger := log.With().Str("component", "learning").Str("kind", kind).Logger()
	logger.Info().Int("trades", res.Trades).Strs("changed", res.Changed).Msg("weights optimized")
	if best, worst, ok := extremes(after); ok {
		logger.Debug().Str("best", best).Str("worst", worst).Msg("weight extremes")
	}

	if err := o.history.RecordOptimization(&recorder.OptimizationEvent{
		Kind: kind, Trades: res.Trades, Before: res.Before, After: res.After, Changed: res.Changed,
	}); err != nil {
		logger.Warn().Err(err).Msg("record optimization failed")
	}
	return res, nil
}

// Overall returns the win rate over closed trades in percent.
func Overall(trades []*model.TradeRecord) float64 {
	closed, wins := 0, 0
	for _, t := range trades {
		if t.Status != model.TradeClosed {
			continue
		}
		closed++
		if t.Win() {
			wins++
		}
	}
	if closed == 0 {
		return 0
	}
	return float64(wins) / float64(closed) * 100
}

// Phase labels learning progress from the overall win rate.
func Phase(winRate float64) string {
	switch {
	case winRate >= 85:
		return "Excellent"
	case winRate >= 75:
		return "Learning well"
	case winRate >= 65:
		return "Improving"
	default:
		return "Collecting data"
	}
}

func extremes(w weights.Map) (best, worst string, ok bool) {
	names := w.Names()
	if len(names) == 0 {
		return "", "", false
	}
	sort.SliceStable(names, func(i, j int) bool { return w[names[i]] > w[names[j]] })
	return names[0], names[len(names)-1], true
}
