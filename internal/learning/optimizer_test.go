package learning

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"GoldPulse/internal/config"
	"GoldPulse/internal/model"
	"GoldPulse/internal/recorder"
	"GoldPulse/internal/weights"
)

var learnCfg = config.LearningConfig{
	MinTrades:           5,
	QuickWindow:         20,
	QuickMinTrades:      5,
	QuickMinPerStrategy: 2,
	ProfitBonus:         50,
}

type fakeHistory struct {
	trades []*model.TradeRecord
	events []*recorder.OptimizationEvent
}

func (f *fakeHistory) Trades(_ string, limit int) ([]*model.TradeRecord, error) {
	if limit > 0 && limit < len(f.trades) {
		return f.trades[:limit], nil
	}
	return f.trades, nil
}

func (f *fakeHistory) RecordOptimization(evt *recorder.OptimizationEvent) error {
	f.events = append(f.events, evt)
	return nil
}

func closed(pnl float64, supporters ...string) *model.TradeRecord {
	ops := make(map[string]model.Opinion)
	for _, s := range supporters {
		ops[s] = model.Opinion{Direction: model.Buy, Score: 70}
	}
	return &model.TradeRecord{
		Timestamp: time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
		Direction: model.Buy,
		Status:    model.TradeClosed,
		PnL:       pnl,
		Opinions:  ops,
	}
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestAnalyze(t *testing.T) {
	trades := []*model.TradeRecord{
		closed(100, "smc", "fvg"),
		closed(20, "smc"),
		closed(-30, "smc", "fvg"),
		{Direction: model.Buy, Status: model.TradeOpen, Opinions: map[string]model.Opinion{"smc": {Direction: model.Buy, Score: 60}}},
		{Direction: model.Sell, Status: model.TradeClosed, PnL: 10, Opinions: map[string]model.Opinion{"fvg": {Direction: model.Buy, Score: 60}}},
	}
	stats := Analyze(trades, []string{"smc", "fvg", "volume"})

	smc := stats["smc"]
	if smc.Trades != 3 || smc.Wins != 2 || !approx(smc.AvgProfit, 60) || !approx(smc.WinRate, 200.0/3) {
		t.Errorf("smc = %+v", smc)
	}
	if fvg := stats["fvg"]; fvg.Trades != 2 || fvg.Wins != 1 {
		t.Errorf("fvg = %+v (opposite-direction vote must not count)", fvg)
	}
	if vol := stats["volume"]; vol.Trades != 0 || vol.WinRate != 0 {
		t.Errorf("volume = %+v", vol)
	}
}

func TestDeepAdjust(t *testing.T) {
	w := weights.Map{"a": 0.2, "b": 0.2, "c": 0.6}
	stats := map[string]StrategyStats{
		"a": {Trades: 5, WinRate: 80},
		"b": {Trades: 6, WinRate: 40},
		"c": {Trades: 2, WinRate: 100},
	}
	got, changed := DeepAdjust(w, stats, learnCfg)
	want := map[string]float64{"a": 0.3, "b": 0.1, "c": 0.6}
	for k, v := range want {
		if !approx(got[k], v) {
			t.Errorf("%s = %v, want %v", k, got[k], v)
		}
	}
	if !reflect.DeepEqual(changed, []string{"a", "b"}) {
		t.Errorf("changed = %v", changed)
	}
	if !approx(got.Sum(), 1) {
		t.Errorf("sum = %v", got.Sum())
	}
	if w["a"] != 0.2 {
		t.Error("input map mutated")
	}
}

func TestDeepAdjust_Bands(t *testing.T) {
	tests := []struct {
		winRate float64
		start   float64
		want    float64 // raw weight before normalisation
	}{
		{85, 0.3, 0.35},
		{72, 0.1, 0.13},
		{65, 0.1, 0.11},
		{55, 0.05, 0.05},
		{30, 0.03, 0.02},
	}
	for _, tt := range tests {
		// Pair with a fixed untouched key so the raw result can be recovered.
		w := weights.Map{"x": tt.start, "fixed": 1}
		got, _ := DeepAdjust(w, map[string]StrategyStats{"x": {Trades: 10, WinRate: tt.winRate}}, learnCfg)
		raw := got["x"] / got["fixed"]
		if !approx(raw, tt.want) {
			t.Errorf("win rate %v: raw weight %v, want %v", tt.winRate, raw, tt.want)
		}
	}
}

func TestDeepAdjust_ProfitBonus(t *testing.T) {
	w := weights.Map{"x": 0.1, "fixed": 1}
	got, changed := DeepAdjust(w, map[string]StrategyStats{"x": {Trades: 1, WinRate: 100, AvgProfit: 80}}, learnCfg)
	if raw := got["x"] / got["fixed"]; !approx(raw, 0.12) {
		t.Errorf("raw = %v, want 0.12", raw)
	}
	if len(changed) != 1 {
		t.Errorf("changed = %v", changed)
	}
}

func TestQuickAdjust(t *testing.T) {
	w := weights.Map{"a": 0.5, "b": 0.5, "c": 0.5}
	stats := map[string]StrategyStats{
		"a": {Trades: 2, WinRate: 100},
		"b": {Trades: 4, WinRate: 25},
		"c": {Trades: 1, WinRate: 0},
	}
	got, changed := QuickAdjust(w, stats, learnCfg)
	total := 0.3 + 0.45 + 0.5
	if !approx(got["a"], 0.3/total) || !approx(got["b"], 0.45/total) || !approx(got["c"], 0.5/total) {
		t.Errorf("got %v", got)
	}
	if !reflect.DeepEqual(changed, []string{"a", "b"}) {
		t.Errorf("changed = %v", changed)
	}
}

func newStore(t *testing.T) *weights.Store {
	t.Helper()
	return weights.NewStore(filepath.Join(t.TempDir(), "weights.json"), weights.Map{"a": 0.5, "b": 0.5})
}

func TestOptimizer_Optimize(t *testing.T) {
	store := newStore(t)
	h := &fakeHistory{}
	for i := 0; i < 5; i++ {
		h.trades = append(h.trades, closed(10, "a"))
	}
	res, err := NewOptimizer(store, h, learnCfg).Optimize("XAUUSD")
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if !approx(res.After["a"], 0.35/0.85) || !approx(res.After["b"], 0.5/0.85) {
		t.Errorf("after = %v", res.After)
	}
	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !approx(loaded["a"], res.After["a"]) {
		t.Errorf("persisted = %v, want %v", loaded, res.After)
	}
	if len(h.events) != 1 || h.events[0].Kind != "deep" || h.events[0].Trades != 5 {
		t.Errorf("events = %+v", h.events)
	}
}

func TestOptimizer_QuickNeedsTrades(t *testing.T) {
	store := newStore(t)
	h := &fakeHistory{trades: []*model.TradeRecord{closed(10, "a"), closed(10, "a")}}
	_, err := NewOptimizer(store, h, learnCfg).QuickOptimize("XAUUSD")
	if !errors.Is(err, ErrNotEnoughTrades) {
		t.Fatalf("err = %v, want ErrNotEnoughTrades", err)
	}
	if _, err := os.Stat(store.Path()); !os.IsNotExist(err) {
		t.Error("weights file written on skipped run")
	}
	if len(h.events) != 0 {
		t.Error("skipped run recorded an event")
	}
}

func TestOverallAndPhase(t *testing.T) {
	trades := []*model.TradeRecord{closed(10), closed(-5), closed(3), {Status: model.TradeOpen}}
	if got := Overall(trades); !approx(got, 200.0/3) {
		t.Errorf("Overall = %v", got)
	}
	if Phase(90) != "Excellent" || Phase(10) != "Collecting data" {
		t.Error("unexpected phase labels")
	}
}
