package model

import (
	"math"
	"sort"
	"time"
)

// Candle represents a single OHLCV bar.
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Valid reports whether the bar satisfies low <= min(open,close) <= max(open,close) <= high.
func (c Candle) Valid() bool {
	for _, v := range []float64{c.Open, c.High, c.Low, c.Close, c.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	if c.Close <= 0 || c.Volume < 0 {
		return false
	}
	lo, hi := math.Min(c.Open, c.Close), math.Max(c.Open, c.Close)
	return c.Low <= lo && hi <= c.High
}

// Body is the absolute distance between open and close.
func (c Candle) Body() float64 { return math.Abs(c.Close - c.Open) }

// Range is high minus low.
func (c Candle) Range() float64 { return c.High - c.Low }

// UpperWick is the distance from the top of the body to the high.
func (c Candle) UpperWick() float64 { return c.High - math.Max(c.Open, c.Close) }

// LowerWick is the distance from the bottom of the body to the low.
func (c Candle) LowerWick() float64 { return math.Min(c.Open, c.Close) - c.Low }

// Bullish reports a close above the open.
func (c Candle) Bullish() bool { return c.Close > c.Open }

// Bearish reports a close below the open.
func (c Candle) Bearish() bool { return c.Close < c.Open }

// Series is a time-ordered sequence of candles, ascending, unique by timestamp.
type Series []Candle

// Normalize sorts bars ascending, drops invalid bars and keeps the last bar
// seen for each timestamp.
func (s Series) Normalize() Series {
	if len(s) == 0 {
		return nil
	}
	byTime := make(map[int64]Candle, len(s))
	for _, c := range s {
		if !c.Valid() {
			continue
		}
		byTime[c.Time.Unix()] = c
	}
	out := make(Series, 0, len(byTime))
	for _, c := range byTime {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}

// Tail returns the last n bars (or the whole series when shorter).
func (s Series) Tail(n int) Series {
	if n <= 0 {
		return nil
	}
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// Last returns the most recent bar.
func (s Series) Last() (Candle, bool) {
	if len(s) == 0 {
		return Candle{}, false
	}
	return s[len(s)-1], true
}

func (s Series) Opens() []float64   { return s.column(func(c Candle) float64 { return c.Open }) }
func (s Series) Highs() []float64   { return s.column(func(c Candle) float64 { return c.High }) }
func (s Series) Lows() []float64    { return s.column(func(c Candle) float64 { return c.Low }) }
func (s Series) Closes() []float64  { return s.column(func(c Candle) float64 { return c.Close }) }
func (s Series) Volumes() []float64 { return s.column(func(c Candle) float64 { return c.Volume }) }

func (s Series) column(f func(Candle) float64) []float64 {
	out := make([]float64, len(s))
	for i, c := range s {
		out[i] = f(c)
	}
	return out
}
