package strategy

import (
	"fmt"
	"math"

	"GoldPulse/internal/indicator"
	"GoldPulse/internal/model"
)

// Bollinger scores squeezes, long-band extremes and band-edge touches.
type Bollinger struct{}

func (Bollinger) Name() string { return "bollinger" }

func (Bollinger) Evaluate(f *indicator.Frame) model.Opinion {
	if op, ok := need(f, 20); !ok {
		return op
	}
	upper, lower := f.Last(indicator.BBUpper), f.Last(indicator.BBLower)
	if !finite(upper, lower) {
		return model.NeutralOpinion("bollinger bands unavailable")
	}
	width := upper - lower
	if width <= 0 {
		return model.NeutralOpinion("zero-width band")
	}
	last, _ := f.Series.Last()
	pos := (last.Close - lower) / width

	if f.Len() >= 100 {
		ups, _ := f.Col(indicator.BBUpper)
		los, _ := f.Col(indicator.BBLower)
		var widths []float64
		for i := f.Len() - 100; i < f.Len(); i++ {
			if finite(ups[i], los[i]) {
				widths = append(widths, ups[i]-los[i])
			}
		}
		if pct := indicator.PercentileOfScore(widths, width); pct <= 10 {
			switch {
			case pos > 0.6:
				return signal(model.Buy, 85, "Extreme squeeze breakout bullish")
			case pos < 0.4:
				return signal(model.Sell, 85, "Extreme squeeze breakout bearish")
			}
		}
	}

	if f.Len() >= 50 {
		lu, _, ll, err := indicator.Bands(f.Series.Closes(), 50, 2.5)
		if err == nil && lu > ll {
			switch {
			case last.Close <= ll*1.005:
				return signal(model.Buy, 75, "Long-term band oversold bounce")
			case last.Close >= lu*0.995:
				return signal(model.Sell, 75, "Long-term band overbought rejection")
			}
		}
	}

	switch {
	case pos <= 0.1:
		return signal(model.Buy, 70, "Lower band bounce")
	case pos >= 0.9:
		return signal(model.Sell, 70, "Upper band rejection")
	}
	return model.NeutralOpinion("price inside bands")
}

// Volume scores volume spikes that move price, then price/volume divergence.
type Volume struct{}

func (Volume) Name() string { return "volume" }

func (Volume) Evaluate(f *indicator.Frame) model.Opinion {
	if op, ok := need(f, 21); !ok {
		return op
	}
	vols := f.Series.Volumes()
	n := len(vols)
	total := 0.0
	for _, v := range vols {
		total += v
	}
	if total == 0 {
		return model.NeutralOpinion("no volume data")
	}
	avg, _ := indicator.SMA(vols[:n-1], 20)
	if avg <= 0 {
		return model.NeutralOpinion("no recent volume")
	}
	closes := f.Series.Closes()
	prev, cur := closes[n-2], closes[n-1]
	change := (cur - prev) / prev
	ratio := vols[n-1] / avg

	switch {
	case ratio >= 2.5 && change > 0.005:
		return signal(model.Buy, 85, fmt.Sprintf("Extreme volume bullish breakout (%.1fx)", ratio))
	case ratio >= 2.5 && change < -0.005:
		return signal(model.Sell, 85, fmt.Sprintf("Extreme volume bearish breakdown (%.1fx)", ratio))
	case ratio >= 1.5 && change > 0.002:
		return signal(model.Buy, 70, fmt.Sprintf("High volume bullish move (%.1fx)", ratio))
	case ratio >= 1.5 && change < -0.002:
		return signal(model.Sell, 70, fmt.Sprintf("High volume bearish move (%.1fx)", ratio))
	}

	priceTrend := indicator.Slope(closes[n-20:])
	volTrend := indicator.Slope(vols[n-20:])
	switch {
	case priceTrend > 0 && volTrend < 0:
		return signal(model.Sell, 60, "Bearish volume-price divergence")
	case priceTrend < 0 && volTrend > 0:
		return signal(model.Buy, 60, "Bullish volume-price divergence")
	}
	return model.NeutralOpinion("no volume signal")
}

// PriceAction scores closes that break the prior N-bar range.
type PriceAction struct{}

func (PriceAction) Name() string { return "price_action" }

func (PriceAction) Evaluate(f *indicator.Frame) model.Opinion {
	if op, ok := need(f, 51); !ok {
		return op
	}
	n := f.Len()
	last := f.Series[n-1]
	prior := f.Series[:n-1]

	for _, p := range []struct {
		bars int
		base float64
	}{{50, 60}, {20, 55}} {
		high, low, err := indicator.Range(prior, p.bars)
		if err != nil {
			continue
		}
		var dir model.Direction
		switch {
		case last.Close > high:
			dir = model.Buy
		case last.Close < low:
			dir = model.Sell
		default:
			continue
		}
		score := p.base
		ema20, ema50 := f.Last(indicator.EMA20), f.Last(indicator.EMA50)
		if finite(ema20, ema50) && ((dir == model.Buy && ema20 > ema50) || (dir == model.Sell && ema20 < ema50)) {
			score += 10
		}
		vols := f.Series.Volumes()
		if avg, err := indicator.SMA(vols[:n-1], 20); err == nil && avg > 0 && last.Volume > avg*1.5 {
			score += 5
		}
		return signal(dir, math.Min(score, 75), fmt.Sprintf("%d-bar %s breakout", p.bars, dirWord(dir)))
	}
	return model.NeutralOpinion("no range breakout")
}

// TrendMomentum requires EMA trend, MACD, RSI and stochastic to agree.
type TrendMomentum struct{}

func (TrendMomentum) Name() string { return "trend_momentum" }

func (TrendMomentum) Evaluate(f *indicator.Frame) model.Opinion {
	if op, ok := need(f, 60); !ok {
		return op
	}
	ema20, ema50 := f.Last(indicator.EMA20), f.Last(indicator.EMA50)
	hist, rsi := f.Last(indicator.MACDHist), f.Last(indicator.RSI)
	k, d := f.Last(indicator.StochK), f.Last(indicator.StochD)
	if !finite(ema20, ema50, hist, rsi, k, d) {
		return model.NeutralOpinion("momentum indicators unavailable")
	}
	last, _ := f.Series.Last()

	bull := votes(ema20 > ema50, hist > 0, rsi >= 50 && rsi <= 70, k > d, last.Close > ema20)
	bear := votes(ema20 < ema50, hist < 0, rsi >= 30 && rsi <= 50, k < d, last.Close < ema20)

	switch {
	case ema20 > ema50 && bull >= 4:
		strength := float64(bull) / 5
		return signal(model.Buy, math.Floor(60+strength*25), fmt.Sprintf("Bullish momentum alignment (%d/5)", bull))
	case ema20 < ema50 && bear >= 4:
		strength := float64(bear) / 5
		return signal(model.Sell, math.Floor(60+strength*25), fmt.Sprintf("Bearish momentum alignment (%d/5)", bear))
	}
	return model.NeutralOpinion("no momentum alignment")
}

func votes(conds ...bool) int {
	n := 0
	for _, c := range conds {
		if c {
			n++
		}
	}
	return n
}

func dirWord(d model.Direction) string {
	if d == model.Buy {
		return "bullish"
	}
	return "bearish"
}
