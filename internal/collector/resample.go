package collector

import (
	"time"

	"GoldPulse/internal/model"
)

// Resample aggregates bars into buckets of minutes aligned to UTC midnight.
// Input must be in chronological order.
func Resample(bars model.Series, minutes int) model.Series {
	if len(bars) == 0 || minutes <= 0 {
		return nil
	}
	step := time.Duration(minutes) * time.Minute
	var out model.Series
	var cur model.Candle
	var key time.Time
	started := false

	for _, b := range bars {
		k := b.Time.UTC().Truncate(step)
		if !started || !k.Equal(key) {
			if started {
				out = append(out, cur)
			}
			key = k
			cur = model.Candle{Time: k, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume}
			started = true
			continue
		}
		if b.High > cur.High {
			cur.High = b.High
		}
		if b.Low < cur.Low {
			cur.Low = b.Low
		}
		cur.Close = b.Close
		cur.Volume += b.Volume
	}
	if started {
		out = append(out, cur)
	}
	return out
}
