package model

import (
	"math"
	"time"
)

// Direction is the directional call of an opinion or signal.
type Direction string

const (
	Buy     Direction = "BUY"
	Sell    Direction = "SELL"
	Neutral Direction = "NEUTRAL"
)

// Opposite returns the other trading side. NEUTRAL stays NEUTRAL.
func (d Direction) Opposite() Direction {
	switch d {
	case Buy:
		return Sell
	case Sell:
		return Buy
	default:
		return Neutral
	}
}

// Opinion is one strategy's directional view for one evaluation.
type Opinion struct {
	Direction Direction `json:"direction"`
	Score     float64   `json:"score"`
	Reason    string    `json:"reason"`
}

// NeutralOpinion builds a zero-score NEUTRAL opinion with a reason.
func NeutralOpinion(reason string) Opinion {
	return Opinion{Direction: Neutral, Score: 0, Reason: reason}
}

// WellFormed reports whether the opinion has a known direction and a finite, non-negative score.
func (o Opinion) WellFormed() bool {
	switch o.Direction {
	case Buy, Sell, Neutral:
	default:
		return false
	}
	return !math.IsNaN(o.Score) && !math.IsInf(o.Score, 0) && o.Score >= 0
}

// TakeProfitLevels is the number of take-profit targets on a signal.
const TakeProfitLevels = 4

// Signal is the aggregator output enriched by the risk calculator.
type Signal struct {
	Symbol          string
	Direction       Direction
	Entry           float64
	Score           float64
	Timeframe       int // minutes
	Reasons         []string
	Opinions        map[string]Opinion
	CandlesAnalyzed int

	SL              float64
	TP              [TakeProfitLevels]float64
	PositionSize    float64
	SLDistance      float64
	RiskReward      [TakeProfitLevels]float64
	AverageRR       float64
	MaxLoss         float64
	PotentialProfit float64
	Warnings        []string

	Timestamp time.Time
}

// TimeframeLabel renders the timeframe the way traders read it (M15, H1, H4, D1).
func (s *Signal) TimeframeLabel() string {
	return TimeframeLabel(s.Timeframe)
}
