package collector

import (
	"context"
	"math"
	"time"

	"GoldPulse/internal/model"
)

// MockSource returns controllable generated data for development and testing.
type MockSource struct {
	Price float64
	Bars  model.Series // returned as-is when set
	Err   error
	Now   func() time.Time
}

func (m *MockSource) Name() string { return "mock" }

func (m *MockSource) FetchCandles(_ context.Context, _ string, tf, limit int) (model.Series, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Bars != nil {
		return trim(m.Bars, limit), nil
	}
	if limit <= 0 {
		limit = 500
	}
	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	return generateMockBars(m.Price, tf, limit, now()), nil
}

func (m *MockSource) FetchPrice(context.Context, string) (float64, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	if m.Bars != nil {
		if last, ok := m.Bars.Last(); ok {
			return last.Close, nil
		}
	}
	return m.Price, nil
}

// generateMockBars produces a gentle wave around basePrice ending at end.
func generateMockBars(basePrice float64, tf, count int, end time.Time) model.Series {
	step := time.Duration(tf) * time.Minute
	start := end.Truncate(step).Add(-time.Duration(count) * step)
	bars := make(model.Series, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + math.Sin(float64(i)/12)*0.004)
		bars[i] = model.Candle{
			Time:   start.Add(time.Duration(i) * step).UTC(),
			Open:   p * 0.9995,
			High:   p * 1.002,
			Low:    p * 0.998,
			Close:  p,
			Volume: 1000,
		}
	}
	return bars
}
