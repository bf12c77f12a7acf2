package tracker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"GoldPulse/internal/config"
	"GoldPulse/internal/model"
	"GoldPulse/internal/recorder"
)

var t0 = time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)

func at(i int, o, h, l, c float64) model.Candle {
	return model.Candle{Time: t0.Add(time.Duration(i) * 15 * time.Minute), Open: o, High: h, Low: l, Close: c, Volume: 1}
}

func buyTrade(id string) *model.TradeRecord {
	return &model.TradeRecord{
		ID: id, Timestamp: t0, Symbol: "XAUUSD", Direction: model.Buy, Status: model.TradeOpen,
		Entry: 2000, SL: 1992, TP: [4]float64{2005, 2010, 2015, 2025}, Size: 0.1,
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name  string
		trade *model.TradeRecord
		bars  model.Series
		level string
		done  bool
	}{
		{"untouched", buyTrade("a"), model.Series{at(1, 2000, 2004, 1995, 2001)}, "", false},
		{"tp2 hit", buyTrade("a"), model.Series{at(1, 2000, 2004, 1995, 2001), at(2, 2001, 2011, 2000, 2010)}, "tp2", true},
		{"sl first", buyTrade("a"), model.Series{at(1, 2000, 2001, 1991, 1993), at(2, 1993, 2030, 1993, 2029)}, "sl", true},
		{"same bar both", buyTrade("a"), model.Series{at(1, 2000, 2026, 1990, 2000)}, "sl", true},
		{"bar before entry ignored", buyTrade("a"), model.Series{at(0, 2000, 2030, 2000, 2000)}, "", false},
		{"sell tp1", &model.TradeRecord{
			Timestamp: t0, Direction: model.Sell, Entry: 2000, SL: 2008, TP: [4]float64{1995, 1990, 1985, 1975},
		}, model.Series{at(1, 2000, 2002, 1994, 1996)}, "tp1", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, done := Resolve(tt.trade, tt.bars)
			if done != tt.done || c.Level != tt.level {
				t.Errorf("got (%+v, %v), want level %q done %v", c, done, tt.level, tt.done)
			}
		})
	}
}

func TestPnL(t *testing.T) {
	tr := buyTrade("a")
	if got := PnL(tr, 2010, 100); got != 100 {
		t.Errorf("buy pnl = %v, want 100", got)
	}
	tr.Direction = model.Sell
	if got := PnL(tr, 2010, 100); got != -100 {
		t.Errorf("sell pnl = %v, want -100", got)
	}
}

type fakeSource struct{ bars model.Series }

func (f fakeSource) GetData(context.Context, string, int, int) (model.Series, error) {
	return f.bars, nil
}

type fakeTrades struct {
	open   []*model.TradeRecord
	closed map[string]recorder.Closure
}

func (f *fakeTrades) OpenTrades(string) ([]*model.TradeRecord, error) { return f.open, nil }

func (f *fakeTrades) CloseTrade(id string, c recorder.Closure) error {
	if f.closed == nil {
		f.closed = make(map[string]recorder.Closure)
	}
	f.closed[id] = c
	return nil
}

func TestMonitor_Check(t *testing.T) {
	cfg := &config.Config{Symbol: "XAUUSD"}
	cfg.Risk.Profiles = config.DefaultProfiles()
	cfg.Learning.MaxTradeAge = 2 * time.Hour
	cfg.Signal.CandleLimit = 100

	hit := buyTrade("hit")
	stale := buyTrade("stale")
	stale.Timestamp = t0.Add(-3 * time.Hour)
	stale.TP = [4]float64{2100, 2110, 2120, 2130}
	stale.SL = 1900
	fresh := buyTrade("fresh")
	fresh.Timestamp = t0.Add(30 * time.Minute)

	trades := &fakeTrades{open: []*model.TradeRecord{hit, stale, fresh}}
	src := fakeSource{bars: model.Series{at(1, 2000, 2006, 1998, 2004), at(2, 2004, 2004.5, 2002, 2003)}}
	m := NewMonitor(src, trades)
	m.now = func() time.Time { return t0.Add(time.Hour) }

	res, err := m.Check(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("resolved %d trades, want 2", len(res))
	}
	if c := trades.closed["hit"]; c.Level != "tp1" || c.PnL != 50 {
		t.Errorf("hit closure = %+v, want tp1 / 50", c)
	}
	if c := trades.closed["stale"]; c.Level != "expired" || c.Price != 2003 {
		t.Errorf("stale closure = %+v", c)
	}
	if _, ok := trades.closed["fresh"]; ok {
		t.Error("fresh trade closed early")
	}
}

type symbolSource map[string]model.Series

func (f symbolSource) GetData(_ context.Context, symbol string, _, _ int) (model.Series, error) {
	bars, ok := f[symbol]
	if !ok {
		return nil, errors.New("no data")
	}
	return bars, nil
}

func TestMonitor_ChecksEverySymbol(t *testing.T) {
	rec, err := recorder.NewSQLiteRecorder(filepath.Join(t.TempDir(), "trades.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer rec.Close()

	cfg, err := (&config.Config{Symbol: "XAUUSD", Risk: config.RiskConfig{Profiles: config.DefaultProfiles()}}).WithSymbol("BTCUSD")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Learning.MaxTradeAge = 24 * time.Hour
	cfg.Signal.CandleLimit = 100

	gold := buyTrade("")
	gold.Timestamp = t0.Add(-72 * time.Hour)
	gold.TP = [4]float64{2100, 2110, 2120, 2130}
	gold.SL = 1900
	if err := rec.RecordTrade(gold); err != nil {
		t.Fatal(err)
	}

	src := symbolSource{"XAUUSD": model.Series{at(1, 2000, 2004, 1998, 2002)}}
	m := NewMonitor(src, rec)
	m.now = func() time.Time { return t0.Add(time.Hour) }

	res, err := m.Check(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(res) != 1 || res[0].Closure.Level != "expired" {
		t.Fatalf("resolutions = %+v, want one expired gold trade", res)
	}
	if got := res[0].Closure.PnL; got != 20 {
		t.Errorf("pnl = %v, want 20 from the gold contract size", got)
	}
	open, err := rec.OpenTrades("")
	if err != nil {
		t.Fatal(err)
	}
	if len(open) != 0 {
		t.Errorf("%d trades still open", len(open))
	}
}

func TestMonitor_OneSymbolFailing(t *testing.T) {
	cfg := &config.Config{Symbol: "XAUUSD"}
	cfg.Risk.Profiles = config.DefaultProfiles()
	cfg.Signal.CandleLimit = 100

	btc := &model.TradeRecord{
		ID: "btc", Timestamp: t0, Symbol: "BTCUSD", Direction: model.Buy, Status: model.TradeOpen,
		Entry: 60000, SL: 59000, TP: [4]float64{60500, 61000, 61500, 62500}, Size: 0.01,
	}
	trades := &fakeTrades{open: []*model.TradeRecord{buyTrade("gold"), btc}}
	src := symbolSource{"XAUUSD": model.Series{at(1, 2000, 2006, 1998, 2004)}}
	m := NewMonitor(src, trades)
	m.now = func() time.Time { return t0.Add(time.Hour) }

	res, err := m.Check(context.Background(), cfg)
	if err == nil {
		t.Error("expected an error for the symbol without data")
	}
	if len(res) != 1 || res[0].Trade.ID != "gold" {
		t.Fatalf("resolutions = %+v, want the gold trade only", res)
	}
}

func TestSummarize(t *testing.T) {
	trades := []*model.TradeRecord{
		{Status: model.TradeClosed, PnL: 100, ExitLevel: "tp2"},
		{Status: model.TradeClosed, PnL: -40, ExitLevel: "sl"},
		{Status: model.TradeClosed, PnL: 60, ExitLevel: "tp2"},
		{Status: model.TradeOpen},
	}
	s := Summarize(trades)
	if s.Signals != 4 || s.Open != 1 || s.Closed != 3 || s.Wins != 2 || s.Losses != 1 {
		t.Errorf("counts = %+v", s)
	}
	if s.TotalPnL != 120 || s.AvgPnL != 40 || s.ByLevel["tp2"] != 2 {
		t.Errorf("pnl = %+v", s)
	}
	if empty := Summarize(nil); empty.WinRate != 0 || empty.AvgPnL != 0 {
		t.Errorf("empty = %+v", empty)
	}
}
