package strategy

import (
	"fmt"
	"math"

	"GoldPulse/internal/indicator"
	"GoldPulse/internal/model"
)

// SMC detects a simplified break of structure, then order-block retests.
type SMC struct{}

func (SMC) Name() string { return "smc" }

func (SMC) Evaluate(f *indicator.Frame) model.Opinion {
	if op, ok := need(f, 30); !ok {
		return op
	}
	window := f.Series.Tail(100)
	last := window[len(window)-1]
	highs, lows := indicator.Swings(window[:len(window)-1], 5, 5)

	if len(highs) > 0 {
		sh := highs[len(highs)-1].Price
		if last.Close > sh*1.001 {
			conviction := math.Min((last.Close-sh)/sh*1000, 1)
			return signal(model.Buy, math.Min(60+conviction*25, 85),
				fmt.Sprintf("Bullish structure break above %.2f (conviction %.1f)", sh, conviction))
		}
	}
	if len(lows) > 0 {
		sl := lows[len(lows)-1].Price
		if last.Close < sl*0.999 {
			conviction := math.Min((sl-last.Close)/sl*1000, 1)
			return signal(model.Sell, math.Min(60+conviction*25, 85),
				fmt.Sprintf("Bearish structure break below %.2f (conviction %.1f)", sl, conviction))
		}
	}

	for _, ob := range orderBlocks(window, 30) {
		if inZone(last.Close, ob.high, ob.low, 0.001) {
			return signal(ob.dir, 65, fmt.Sprintf("%s order block retest %.2f-%.2f", ob.label(), ob.low, ob.high))
		}
	}
	return model.NeutralOpinion("no structure setup")
}

type orderBlock struct {
	dir       model.Direction
	high, low float64
}

func (ob orderBlock) label() string {
	if ob.dir == model.Buy {
		return "Bullish"
	}
	return "Bearish"
}

// orderBlocks finds the last opposite candle before an impulsive move within
// the last lookback bars, newest first. The current bar is excluded.
func orderBlocks(bars model.Series, lookback int) []orderBlock {
	n := len(bars) - 1
	if n < 3 {
		return nil
	}
	start := n - lookback
	if start < 1 {
		start = 1
	}
	avgBody := 0.0
	for i := start; i < n; i++ {
		avgBody += bars[i].Body()
	}
	avgBody /= float64(n - start)
	if avgBody == 0 {
		return nil
	}

	var out []orderBlock
	for i := n - 2; i >= start; i-- {
		c, next := bars[i], bars[i+1]
		if next.Body() < avgBody*1.5 {
			continue
		}
		switch {
		case c.Bearish() && next.Bullish() && next.Close > c.High:
			out = append(out, orderBlock{dir: model.Buy, high: c.High, low: c.Low})
		case c.Bullish() && next.Bearish() && next.Close < c.Low:
			out = append(out, orderBlock{dir: model.Sell, high: c.High, low: c.Low})
		}
	}
	return out
}

func inZone(price, high, low, tolerance float64) bool {
	buffer := (high - low) * tolerance
	return price >= low-buffer && price <= high+buffer
}

// MarketStructure reads the last two swing highs and lows for a clear trend.
type MarketStructure struct{}

func (MarketStructure) Name() string { return "market_structure" }

func (MarketStructure) Evaluate(f *indicator.Frame) model.Opinion {
	if op, ok := need(f, 40); !ok {
		return op
	}
	highs, lows := indicator.Swings(f.Series.Tail(200), 3, 3)
	if len(highs) < 2 || len(lows) < 2 {
		return model.NeutralOpinion("not enough swings")
	}
	h1, h2 := highs[len(highs)-2].Price, highs[len(highs)-1].Price
	l1, l2 := lows[len(lows)-2].Price, lows[len(lows)-1].Price

	var bias model.Direction
	switch {
	case h2 > h1 && l2 > l1:
		bias = model.Buy
	case h2 < h1 && l2 < l1:
		bias = model.Sell
	default:
		return model.NeutralOpinion("unclear market structure")
	}
	clarity := structureClarity(highs, lows, bias)
	return signal(bias, math.Floor(50+clarity*30), fmt.Sprintf("Clear %s structure (clarity %.1f)", dirWord(bias), clarity))
}

// structureClarity is the share of consecutive swing pairs, over the last
// four of each kind, that move in the bias direction.
func structureClarity(highs, lows []indicator.Swing, bias model.Direction) float64 {
	agree, total := 0, 0
	for _, seq := range [][]indicator.Swing{tailSwings(highs, 4), tailSwings(lows, 4)} {
		for i := 1; i < len(seq); i++ {
			total++
			up := seq[i].Price > seq[i-1].Price
			if (bias == model.Buy && up) || (bias == model.Sell && !up && seq[i].Price != seq[i-1].Price) {
				agree++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(agree) / float64(total)
}

func tailSwings(s []indicator.Swing, n int) []indicator.Swing {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// SupportResistance flags price within 0.2% of a recorded local extremum.
type SupportResistance struct{}

func (SupportResistance) Name() string { return "support_resistance" }

func (SupportResistance) Evaluate(f *indicator.Frame) model.Opinion {
	if op, ok := need(f, 20); !ok {
		return op
	}
	window := f.Series.Tail(200)
	last := window[len(window)-1]
	highs, lows := indicator.Swings(window[:len(window)-1], 5, 5)
	tolerance := last.Close * 0.002

	supports := groupLevels(lows, last.Close*0.005)
	resistances := groupLevels(highs, last.Close*0.005)

	for _, lv := range supports {
		if math.Abs(last.Close-lv.price) <= tolerance {
			return signal(model.Buy, 70, fmt.Sprintf("Support %.2f (%d touches)", lv.price, lv.touches))
		}
	}
	for _, lv := range resistances {
		if math.Abs(last.Close-lv.price) <= tolerance {
			return signal(model.Sell, 70, fmt.Sprintf("Resistance %.2f (%d touches)", lv.price, lv.touches))
		}
	}
	return model.NeutralOpinion("no level interaction")
}

type level struct {
	price   float64
	touches int
}

// groupLevels merges swings within tolerance of each other, newest first.
func groupLevels(swings []indicator.Swing, tolerance float64) []level {
	var out []level
	for i := len(swings) - 1; i >= 0; i-- {
		p := swings[i].Price
		merged := false
		for j := range out {
			if math.Abs(out[j].price-p) <= tolerance {
				out[j].touches++
				merged = true
				break
			}
		}
		if !merged {
			out = append(out, level{price: p, touches: 1})
		}
	}
	return out
}

// ZoneKind names a chart zone.
type ZoneKind string

const (
	ZoneSupport    ZoneKind = "support"
	ZoneResistance ZoneKind = "resistance"
	ZoneOrderBlock ZoneKind = "order_block"
	ZoneLiquidity  ZoneKind = "liquidity"
)

// Zone is a price band read from market structure. Levels have High == Low.
type Zone struct {
	Kind      ZoneKind
	Direction model.Direction
	High, Low float64
}

// KeyZones lists the levels and order blocks the structure strategies read
// from bars: supports and resistances, order blocks, and liquidity pools
// (levels touched two or more times). Each kind is newest first.
func KeyZones(bars model.Series) []Zone {
	if len(bars) < 12 {
		return nil
	}
	window := bars.Tail(200)
	last := window[len(window)-1]
	highs, lows := indicator.Swings(window[:len(window)-1], 5, 5)
	tolerance := last.Close * 0.005

	var out []Zone
	for _, lv := range groupLevels(lows, tolerance) {
		out = append(out, Zone{Kind: ZoneSupport, Direction: model.Buy, High: lv.price, Low: lv.price})
		if lv.touches >= 2 {
			out = append(out, Zone{Kind: ZoneLiquidity, Direction: model.Sell, High: lv.price, Low: lv.price})
		}
	}
	for _, lv := range groupLevels(highs, tolerance) {
		out = append(out, Zone{Kind: ZoneResistance, Direction: model.Sell, High: lv.price, Low: lv.price})
		if lv.touches >= 2 {
			out = append(out, Zone{Kind: ZoneLiquidity, Direction: model.Buy, High: lv.price, Low: lv.price})
		}
	}
	for _, ob := range orderBlocks(window, 30) {
		out = append(out, Zone{Kind: ZoneOrderBlock, Direction: ob.dir, High: ob.high, Low: ob.low})
	}
	return out
}
