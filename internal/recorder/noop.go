package recorder

import (
	"time"

	"GoldPulse/internal/model"
)

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordTrade(_ *model.TradeRecord) error                { return nil }
func (n *NoopRecorder) CloseTrade(_ string, _ Closure) error                  { return nil }
func (n *NoopRecorder) OpenTrades(_ string) ([]*model.TradeRecord, error)     { return nil, nil }
func (n *NoopRecorder) Trades(_ string, _ int) ([]*model.TradeRecord, error)  { return nil, nil }
func (n *NoopRecorder) TradesSince(_ time.Time) ([]*model.TradeRecord, error) { return nil, nil }
func (n *NoopRecorder) RecordCycle(_ *CycleEvent) error                       { return nil }
func (n *NoopRecorder) RecordOptimization(_ *OptimizationEvent) error         { return nil }
func (n *NoopRecorder) Close() error                                          { return nil }
