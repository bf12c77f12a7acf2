package indicator

import (
	"errors"
	"math"

	"GoldPulse/internal/model"
)

// Range scans the most recent lookback bars and returns the highest high and
// lowest low.
func Range(bars model.Series, lookback int) (high, low float64, err error) {
	if len(bars) == 0 {
		return 0, 0, errors.New("no bars provided")
	}
	n := len(bars)
	start := n - lookback
	if start < 0 {
		start = 0
	}
	high = math.Inf(-1)
	low = math.Inf(1)
	for i := start; i < n; i++ {
		if bars[i].High > high {
			high = bars[i].High
		}
		if bars[i].Low < low {
			low = bars[i].Low
		}
	}
	return high, low, nil
}

// Position returns where current sits within [low, high], clamped to 0..1.
func Position(current, high, low float64) (float64, error) {
	if high == low {
		return 0.5, nil
	}
	if high < low {
		return 0, errors.New("high must be >= low")
	}
	pos := (current - low) / (high - low)
	if pos < 0 {
		pos = 0
	}
	if pos > 1 {
		pos = 1
	}
	return pos, nil
}

// PercentileOfScore returns the percentage of values at or below score, with
// ties counted half.
func PercentileOfScore(values []float64, score float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	var below, equal float64
	for _, v := range values {
		switch {
		case v < score:
			below++
		case v == score:
			equal++
		}
	}
	return (below + 0.5*equal) / float64(len(values)) * 100
}

// Swing is a local extremum at a bar index.
type Swing struct {
	Index int
	Price float64
}

// Swings finds fractal highs and lows: a bar whose high (low) is the extreme
// of the window spanning left bars before and right bars after it.
func Swings(bars model.Series, left, right int) (highs, lows []Swing) {
	for i := left; i < len(bars)-right; i++ {
		isHigh, isLow := true, true
		for j := i - left; j <= i+right; j++ {
			if j == i {
				continue
			}
			if bars[j].High > bars[i].High {
				isHigh = false
			}
			if bars[j].Low < bars[i].Low {
				isLow = false
			}
		}
		if isHigh {
			highs = append(highs, Swing{Index: i, Price: bars[i].High})
		}
		if isLow {
			lows = append(lows, Swing{Index: i, Price: bars[i].Low})
		}
	}
	return highs, lows
}
