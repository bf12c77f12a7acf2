// Package risk turns a directional signal into a concrete trade plan.
package risk

import (
	"errors"
	"fmt"
	"math"

	"GoldPulse/internal/config"
	"GoldPulse/internal/model"

	"github.com/shopspring/decimal"
)

var (
	ErrNeutral        = errors.New("neutral signal has no trade plan")
	ErrInvalidEntry   = errors.New("entry price must be positive")
	ErrUnknownProfile = errors.New("no risk profile for symbol")
)

// SLMultiplier scales the default stop by signal strength: stronger signals
// get tighter stops.
func SLMultiplier(score float64) float64 {
	switch {
	case score >= 90:
		return 0.8
	case score >= 85:
		return 0.9
	case score >= 80:
		return 1.0
	case score >= 75:
		return 1.2
	default:
		return 1.5
	}
}

// StopDistance returns the score-adjusted stop distance clamped to the
// profile's [MinDistance, MaxSL] band.
func StopDistance(p config.SymbolProfile, score float64) float64 {
	d := p.DefaultSL * SLMultiplier(score)
	return math.Max(p.MinDistance, math.Min(d, p.MaxSL))
}

// PositionSize sizes the trade so a stop-out costs riskPct of the balance,
// capped at the profile maximum.
func PositionSize(p config.SymbolProfile, balance, riskPct, slDist float64) float64 {
	if slDist <= 0 || p.ContractSize <= 0 {
		return 0
	}
	size := balance * riskPct / 100 / slDist / p.ContractSize
	size = math.Min(size, p.MaxSize)
	return round(size, p.SizeDecimals)
}

// Plan returns a copy of sig with stops, targets, sizing and warnings filled in.
// The input signal is not modified.
func Plan(cfg *config.Config, sig *model.Signal) (*model.Signal, error) {
	if sig.Direction != model.Buy && sig.Direction != model.Sell {
		return nil, ErrNeutral
	}
	if !(sig.Entry > 0) || math.IsInf(sig.Entry, 0) {
		return nil, ErrInvalidEntry
	}
	p, ok := cfg.Risk.Profiles[sig.Symbol]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownProfile, sig.Symbol)
	}
	if len(p.TPLevels) != model.TakeProfitLevels {
		return nil, fmt.Errorf("profile %s: want %d take-profit levels, got %d", sig.Symbol, model.TakeProfitLevels, len(p.TPLevels))
	}

	out := *sig
	out.Reasons = append([]string(nil), sig.Reasons...)
	side := 1.0
	if sig.Direction == model.Sell {
		side = -1
	}

	slDist := StopDistance(p, sig.Score)
	out.SLDistance = round(slDist, p.PriceDecimals)
	out.SL = round(sig.Entry-side*slDist, p.PriceDecimals)

	tpSum := 0.0
	for i, d := range p.TPLevels {
		out.TP[i] = round(sig.Entry+side*d, p.PriceDecimals)
		out.RiskReward[i] = round(d/slDist, 2)
		tpSum += d
	}
	out.AverageRR = round(tpSum/(model.TakeProfitLevels*slDist), 2)

	out.PositionSize = PositionSize(p, cfg.Risk.AccountBalance, cfg.Risk.RiskPercentage, slDist)
	out.MaxLoss = round(slDist*out.PositionSize*p.ContractSize, 2)
	out.PotentialProfit = round(p.TPLevels[1]*out.PositionSize*p.ContractSize, 2)

	out.Warnings = warnings(cfg, p, &out)
	return &out, nil
}

func warnings(cfg *config.Config, p config.SymbolProfile, s *model.Signal) []string {
	var w []string
	if s.Score < 80 {
		w = append(w, "Below-average signal strength")
	}
	if s.AverageRR < 1.5 {
		w = append(w, "Low risk-reward ratio")
	}
	if s.MaxLoss > cfg.Risk.MaxLossWarning {
		w = append(w, fmt.Sprintf("High risk trade: $%.0f max loss", s.MaxLoss))
	}
	if p.RiskNote != "" {
		w = append(w, p.RiskNote)
	}
	return w
}

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
