// Package indicator annotates candle series with technical indicator columns.
package indicator

import (
	"math"
	"sort"

	"GoldPulse/internal/model"

	talib "github.com/markcheno/go-talib"
	"github.com/rs/zerolog/log"
)

// Column names produced by Annotate.
const (
	EMA20      = "ema_20"
	EMA50      = "ema_50"
	RSI        = "rsi"
	MACD       = "macd"
	MACDSignal = "macd_signal"
	MACDHist   = "macd_hist"
	ATR        = "atr"
	StochK     = "stoch_k"
	StochD     = "stoch_d"
	BBUpper    = "bb_upper"
	BBMiddle   = "bb_middle"
	BBLower    = "bb_lower"
)

// Frame is a candle series plus named indicator columns aligned to it.
// Warm-up values are NaN; a column that could not be computed is absent.
type Frame struct {
	Series model.Series
	cols   map[string][]float64
}

// NewFrame wraps a series with no columns.
func NewFrame(s model.Series) *Frame {
	return &Frame{Series: s, cols: make(map[string][]float64)}
}

// Len is the number of bars.
func (f *Frame) Len() int { return len(f.Series) }

// Set stores a column. Columns of the wrong length are ignored.
func (f *Frame) Set(name string, values []float64) {
	if len(values) != len(f.Series) {
		return
	}
	f.cols[name] = values
}

// Col returns a column and whether it exists.
func (f *Frame) Col(name string) ([]float64, bool) {
	v, ok := f.cols[name]
	return v, ok
}

// Last returns the latest value of a column, NaN when missing.
func (f *Frame) Last(name string) float64 {
	return f.At(name, f.Len()-1)
}

// At returns the value of a column at bar i, NaN when missing or out of range.
func (f *Frame) At(name string, i int) float64 {
	v, ok := f.cols[name]
	if !ok || i < 0 || i >= len(v) {
		return math.NaN()
	}
	return v[i]
}

// Columns lists the column names present.
func (f *Frame) Columns() []string {
	names := make([]string, 0, len(f.cols))
	for k := range f.cols {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Annotate computes the standard indicator set. A column whose lookback
// exceeds the series, or whose computation panics, is left out.
func Annotate(s model.Series) *Frame {
	f := NewFrame(s)
	n := len(s)
	if n == 0 {
		return f
	}
	closes, highs, lows := s.Closes(), s.Highs(), s.Lows()

	f.compute([]string{EMA20}, 20, func() [][]float64 {
		return [][]float64{warm(talib.Ema(closes, 20), 19)}
	})
	f.compute([]string{EMA50}, 50, func() [][]float64 {
		return [][]float64{warm(talib.Ema(closes, 50), 49)}
	})
	f.compute([]string{RSI}, 15, func() [][]float64 {
		return [][]float64{warm(talib.Rsi(closes, 14), 14)}
	})
	f.compute([]string{MACD, MACDSignal, MACDHist}, 34, func() [][]float64 {
		m, sig, hist := talib.Macd(closes, 12, 26, 9)
		return [][]float64{warm(m, 33), warm(sig, 33), warm(hist, 33)}
	})
	f.compute([]string{ATR}, 15, func() [][]float64 {
		return [][]float64{warm(talib.Atr(highs, lows, closes, 14), 14)}
	})
	f.compute([]string{StochK, StochD}, 18, func() [][]float64 {
		k, d := talib.Stoch(highs, lows, closes, 14, 3, talib.SMA, 3, talib.SMA)
		return [][]float64{warm(k, 17), warm(d, 17)}
	})
	f.compute([]string{BBUpper, BBMiddle, BBLower}, 20, func() [][]float64 {
		u, m, l := talib.BBands(closes, 20, 2, 2, talib.SMA)
		return [][]float64{warm(u, 19), warm(m, 19), warm(l, 19)}
	})
	return f
}

func (f *Frame) compute(names []string, minBars int, fn func() [][]float64) {
	if f.Len() < minBars {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Str("component", "indicator").Strs("columns", names).Interface("panic", r).Msg("indicator calculation failed")
		}
	}()
	out := fn()
	for i, name := range names {
		if i < len(out) {
			f.Set(name, out[i])
		}
	}
}

// warm replaces the first lookback values with NaN.
func warm(values []float64, lookback int) []float64 {
	for i := 0; i < lookback && i < len(values); i++ {
		values[i] = math.NaN()
	}
	return values
}
