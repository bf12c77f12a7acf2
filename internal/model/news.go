package model

import "time"

// Impact classifies how market-moving an economic event is.
type Impact string

const (
	ImpactHigh   Impact = "high"
	ImpactMedium Impact = "medium"
	ImpactLow    Impact = "low"
)

// NewsEvent is one economic calendar entry.
type NewsEvent struct {
	Time     time.Time
	Currency string
	Title    string
	Impact   Impact
	Forecast string
	Previous string
	Source   string
}
