package strategy

import (
	"fmt"
	"math"

	"GoldPulse/internal/indicator"
	"GoldPulse/internal/model"
)

// Patterns scores short higher-high/higher-low sequences and post-trend
// consolidations.
type Patterns struct{}

func (Patterns) Name() string { return "patterns" }

func (Patterns) Evaluate(f *indicator.Frame) model.Opinion {
	if op, ok := need(f, 10); !ok {
		return op
	}
	s := f.Series
	n := len(s)
	recent := s[n-4:]

	hh, hl, lh, ll := true, true, true, true
	for i := 1; i < len(recent); i++ {
		hh = hh && recent[i].High > recent[i-1].High
		hl = hl && recent[i].Low > recent[i-1].Low
		lh = lh && recent[i].High < recent[i-1].High
		ll = ll && recent[i].Low < recent[i-1].Low
	}
	switch {
	case hh && hl:
		return signal(model.Buy, 60, "Higher highs and higher lows")
	case lh && ll:
		return signal(model.Sell, 60, "Lower highs and lower lows")
	}

	// Consolidation: the last 5 bars stay inside a tight box after a
	// directional run of up to 11 bars.
	base := s[max(0, n-16) : n-5]
	avgRange := 0.0
	for _, c := range base {
		avgRange += c.Range()
	}
	avgRange /= float64(len(base))
	if avgRange <= 0 {
		return model.NeutralOpinion("flat market")
	}
	boxHigh, boxLow, _ := indicator.Range(s[n-5:], 5)
	run := base[len(base)-1].Close - base[0].Close
	if boxHigh-boxLow < 2*avgRange && math.Abs(run) > 3*avgRange {
		if run > 0 {
			return signal(model.Buy, 55, "Bull flag consolidation after uptrend")
		}
		return signal(model.Sell, 55, "Bear flag consolidation after downtrend")
	}
	return model.NeutralOpinion("no pattern")
}

// Candlesticks classifies the last bars by body and wick proportions.
type Candlesticks struct{}

func (Candlesticks) Name() string { return "candlesticks" }

func (Candlesticks) Evaluate(f *indicator.Frame) model.Opinion {
	if op, ok := need(f, 3); !ok {
		return op
	}
	s := f.Series
	n := len(s)
	last, prev, before := s[n-1], s[n-2], s[n-3]
	if last.Range() <= 0 {
		return model.NeutralOpinion("flat bar")
	}
	downtrend := prev.Close < before.Close
	uptrend := prev.Close > before.Close

	switch {
	case prev.Bearish() && last.Bullish() && last.Open <= prev.Close && last.Close >= prev.Open && last.Body() > prev.Body():
		return signal(model.Buy, 70, "Bullish engulfing")
	case prev.Bullish() && last.Bearish() && last.Open >= prev.Close && last.Close <= prev.Open && last.Body() > prev.Body():
		return signal(model.Sell, 70, "Bearish engulfing")
	}

	body, rng := last.Body(), last.Range()
	if body > rng*0.1 {
		switch {
		case last.LowerWick() >= 2*body && last.UpperWick() <= body && downtrend:
			return signal(model.Buy, 65, "Hammer after decline")
		case last.UpperWick() >= 2*body && last.LowerWick() <= body && uptrend:
			return signal(model.Sell, 65, "Shooting star after rally")
		}
		return model.NeutralOpinion("no candlestick pattern")
	}

	switch {
	case uptrend:
		return signal(model.Sell, 55, "Doji after rally")
	case downtrend:
		return signal(model.Buy, 55, "Doji after decline")
	}
	return model.NeutralOpinion("doji without trend")
}

// FVG scores price trading inside an unfilled three-bar fair value gap.
type FVG struct{}

func (FVG) Name() string { return "fvg" }

func (FVG) Evaluate(f *indicator.Frame) model.Opinion {
	if op, ok := need(f, 3); !ok {
		return op
	}
	s := f.Series
	n := len(s)
	price := s[n-1].Close
	stop := n - 50
	if stop < 2 {
		stop = 2
	}

	for i := n - 1; i >= stop; i-- {
		var dir model.Direction
		var top, bottom float64
		switch {
		case s[i].Low > s[i-2].High:
			dir, top, bottom = model.Buy, s[i].Low, s[i-2].High
		case s[i].High < s[i-2].Low:
			dir, top, bottom = model.Sell, s[i-2].Low, s[i].High
		default:
			continue
		}
		if price < bottom || price > top {
			continue
		}
		age := n - 1 - i
		sizePct := (top - bottom) / price * 100
		score := 60.0
		switch {
		case age <= 5:
			score += 15
		case age <= 10:
			score += 10
		}
		switch {
		case sizePct >= 0.5:
			score += 15
		case sizePct >= 0.3:
			score += 10
		}
		return signal(dir, math.Min(score, 80), fmt.Sprintf("%s FVG %.2f-%.2f (age %d, size %.2f%%)", fvgLabel(dir), bottom, top, age, sizePct))
	}
	return model.NeutralOpinion("no active FVG")
}

func fvgLabel(d model.Direction) string {
	if d == model.Buy {
		return "Bullish"
	}
	return "Bearish"
}
