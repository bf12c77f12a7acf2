package indicator

import (
	"errors"
	"math"
)

// SMA computes the simple moving average of the last period values.
func SMA(values []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(values) < period {
		return 0, errors.New("not enough data for SMA calculation")
	}
	sum := 0.0
	for i := len(values) - period; i < len(values); i++ {
		sum += values[i]
	}
	return sum / float64(period), nil
}

// RollingMean returns the trailing mean at every index; the first period-1
// entries are NaN.
func RollingMean(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if period <= 0 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i < period-1 {
			out[i] = math.NaN()
			continue
		}
		out[i] = sum / float64(period)
	}
	return out
}

// Slope fits a least-squares line through values and returns its slope per bar.
func Slope(values []float64) float64 {
	n := float64(len(values))
	if n < 2 {
		return 0
	}
	var sx, sy, sxy, sxx float64
	for i, v := range values {
		x := float64(i)
		sx += x
		sy += v
		sxy += x * v
		sxx += x * x
	}
	den := n*sxx - sx*sx
	if den == 0 {
		return 0
	}
	return (n*sxy - sx*sy) / den
}

// Bands computes a simple-moving-average band with k standard deviations at
// the last bar.
func Bands(values []float64, period int, k float64) (upper, middle, lower float64, err error) {
	middle, err = SMA(values, period)
	if err != nil {
		return 0, 0, 0, err
	}
	variance := 0.0
	for i := len(values) - period; i < len(values); i++ {
		d := values[i] - middle
		variance += d * d
	}
	sd := math.Sqrt(variance / float64(period))
	return middle + k*sd, middle, middle - k*sd, nil
}
