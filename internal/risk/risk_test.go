package risk

import (
	"errors"
	"reflect"
	"testing"

	"GoldPulse/internal/config"
	"GoldPulse/internal/model"
)

func testConfig() *config.Config {
	return &config.Config{
		Symbol: "XAUUSD",
		Risk: config.RiskConfig{
			RiskPercentage: 2,
			AccountBalance: 10000,
			MaxLossWarning: 200,
			Profiles:       config.DefaultProfiles(),
		},
	}
}

func TestSLMultiplier(t *testing.T) {
	tests := []struct {
		score float64
		want  float64
	}{
		{95, 0.8}, {90, 0.8}, {87, 0.9}, {80, 1.0}, {78, 1.2}, {60, 1.5},
	}
	for _, tt := range tests {
		if got := SLMultiplier(tt.score); got != tt.want {
			t.Errorf("SLMultiplier(%v) = %v, want %v", tt.score, got, tt.want)
		}
	}
}

func TestStopDistance_Clamped(t *testing.T) {
	p := config.SymbolProfile{DefaultSL: 30, MinDistance: 2, MaxSL: 20}
	if got := StopDistance(p, 70); got != 20 {
		t.Errorf("wide stop = %v, want 20", got)
	}
	p = config.SymbolProfile{DefaultSL: 1, MinDistance: 2, MaxSL: 20}
	if got := StopDistance(p, 95); got != 2 {
		t.Errorf("tight stop = %v, want 2", got)
	}
}

func TestPlan_GoldBuy(t *testing.T) {
	sig := &model.Signal{Symbol: "XAUUSD", Direction: model.Buy, Entry: 2000, Score: 85, Reasons: []string{"smc: x"}}
	got, err := Plan(testConfig(), sig)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if got.SLDistance != 7.2 || got.SL != 1992.8 {
		t.Errorf("sl = %v (dist %v), want 1992.8 (7.2)", got.SL, got.SLDistance)
	}
	if want := [4]float64{2005, 2010, 2015, 2025}; got.TP != want {
		t.Errorf("tp = %v, want %v", got.TP, want)
	}
	if want := [4]float64{0.69, 1.39, 2.08, 3.47}; got.RiskReward != want {
		t.Errorf("rr = %v, want %v", got.RiskReward, want)
	}
	if got.AverageRR != 1.91 {
		t.Errorf("avg rr = %v, want 1.91", got.AverageRR)
	}
	if got.PositionSize != 0.278 {
		t.Errorf("size = %v, want 0.278", got.PositionSize)
	}
	if got.MaxLoss != 200.16 || got.PotentialProfit != 278 {
		t.Errorf("loss/profit = %v/%v", got.MaxLoss, got.PotentialProfit)
	}
	wantWarn := []string{"High risk trade: $200 max loss", "Gold can gap during news events"}
	if !reflect.DeepEqual(got.Warnings, wantWarn) {
		t.Errorf("warnings = %q, want %q", got.Warnings, wantWarn)
	}
	if sig.SL != 0 || sig.Warnings != nil {
		t.Error("input signal was modified")
	}
}

func TestPlan_BitcoinSellCapped(t *testing.T) {
	sig := &model.Signal{Symbol: "BTCUSD", Direction: model.Sell, Entry: 60000, Score: 95}
	got, err := Plan(testConfig(), sig)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if got.SL != 60240 {
		t.Errorf("sl = %v, want 60240", got.SL)
	}
	if want := [4]float64{59500, 59000, 58500, 57500}; got.TP != want {
		t.Errorf("tp = %v, want %v", got.TP, want)
	}
	if got.PositionSize != 0.1 {
		t.Errorf("size = %v, want cap 0.1", got.PositionSize)
	}
	if got.MaxLoss != 24 {
		t.Errorf("max loss = %v, want 24", got.MaxLoss)
	}
	if len(got.Warnings) != 1 || got.Warnings[0] != "High volatility asset, use tight risk management" {
		t.Errorf("warnings = %q", got.Warnings)
	}
}

func TestPlan_WeakSignalWarnings(t *testing.T) {
	sig := &model.Signal{Symbol: "XAUUSD", Direction: model.Sell, Entry: 2000, Score: 70}
	got, err := Plan(testConfig(), sig)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if got.SLDistance != 12 {
		t.Errorf("sl distance = %v, want 12", got.SLDistance)
	}
	if got.AverageRR >= 1.5 {
		t.Errorf("avg rr = %v, expected below 1.5", got.AverageRR)
	}
	want := []string{"Below-average signal strength", "Low risk-reward ratio", "High risk trade: $200 max loss", "Gold can gap during news events"}
	if !reflect.DeepEqual(got.Warnings, want) {
		t.Errorf("warnings = %q, want %q", got.Warnings, want)
	}
}

func TestPlan_Rejects(t *testing.T) {
	cfg := testConfig()
	tests := []struct {
		name string
		sig  model.Signal
		want error
	}{
		{"neutral", model.Signal{Symbol: "XAUUSD", Direction: model.Neutral, Entry: 2000}, ErrNeutral},
		{"zero entry", model.Signal{Symbol: "XAUUSD", Direction: model.Buy}, ErrInvalidEntry},
		{"unknown symbol", model.Signal{Symbol: "EURUSD", Direction: model.Buy, Entry: 1.1}, ErrUnknownProfile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Plan(cfg, &tt.sig); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}
