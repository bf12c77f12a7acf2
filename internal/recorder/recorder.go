package recorder

import (
	"errors"
	"time"

	"GoldPulse/internal/model"
	"GoldPulse/internal/weights"
)

// ErrNotFound is returned when a trade id does not exist or is already closed.
var ErrNotFound = errors.New("trade not found")

// CycleEvent records the outcome of one timeframe in an analysis cycle.
type CycleEvent struct {
	Symbol    string
	Timeframe int
	Bars      int
	BuyScore  float64
	SellScore float64
	Direction model.Direction // NEUTRAL when silent
	Emitted   bool
	Note      string
}

// OptimizationEvent records a weight update.
type OptimizationEvent struct {
	Kind    string // "deep" or "quick"
	Trades  int
	Before  weights.Map
	After   weights.Map
	Changed []string
}

// Closure describes how an open trade ended.
type Closure struct {
	Level string // "sl", "tp1".."tp4", "expired"
	Price float64
	PnL   float64
	At    time.Time
}

// Recorder persists trades and cycle history.
type Recorder interface {
	RecordTrade(t *model.TradeRecord) error
	CloseTrade(id string, c Closure) error
	OpenTrades(symbol string) ([]*model.TradeRecord, error)
	// Trades returns closed trades newest first. An empty symbol matches all.
	Trades(symbol string, limit int) ([]*model.TradeRecord, error)
	// TradesSince returns every trade opened at or after since, oldest first.
	TradesSince(since time.Time) ([]*model.TradeRecord, error)
	RecordCycle(evt *CycleEvent) error
	RecordOptimization(evt *OptimizationEvent) error
	Close() error
}
