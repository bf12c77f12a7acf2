package model

import (
	"fmt"
	"time"
)

// TradeStatus is the lifecycle state of a trade record.
type TradeStatus string

const (
	TradeOpen   TradeStatus = "open"
	TradeClosed TradeStatus = "closed"
)

// TradeRecord is created when a signal is emitted and closed by the position monitor.
type TradeRecord struct {
	ID        string
	Timestamp time.Time
	Symbol    string
	Direction Direction
	Entry     float64
	SL        float64
	TP        [TakeProfitLevels]float64
	Score     float64
	Timeframe int
	Size      float64
	Status    TradeStatus
	ExitLevel string // "sl", "tp1".."tp4", "expired"
	ExitPrice float64
	PnL       float64
	ClosedAt  time.Time

	// Opinions holds every strategy's view at signal time, for attribution.
	Opinions map[string]Opinion
}

// NewTradeRecord opens a trade from an enriched signal.
func NewTradeRecord(sig *Signal) *TradeRecord {
	ops := make(map[string]Opinion, len(sig.Opinions))
	for k, v := range sig.Opinions {
		ops[k] = v
	}
	return &TradeRecord{
		Timestamp: sig.Timestamp,
		Symbol:    sig.Symbol,
		Direction: sig.Direction,
		Entry:     sig.Entry,
		SL:        sig.SL,
		TP:        sig.TP,
		Score:     sig.Score,
		Timeframe: sig.Timeframe,
		Size:      sig.PositionSize,
		Status:    TradeOpen,
		Opinions:  ops,
	}
}

// Win reports whether a closed trade made money.
func (t *TradeRecord) Win() bool { return t.Status == TradeClosed && t.PnL > 0 }

// SupportedBy reports whether the named strategy voted in the trade's direction.
func (t *TradeRecord) SupportedBy(strategy string) bool {
	op, ok := t.Opinions[strategy]
	return ok && op.Direction == t.Direction && op.Score > 0
}

// TimeframeLabel renders minutes as M15/H1/H4/D1.
func TimeframeLabel(minutes int) string {
	switch {
	case minutes >= 1440 && minutes%1440 == 0:
		return fmt.Sprintf("D%d", minutes/1440)
	case minutes >= 60 && minutes%60 == 0:
		return fmt.Sprintf("H%d", minutes/60)
	default:
		return fmt.Sprintf("M%d", minutes)
	}
}
