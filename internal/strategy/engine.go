package strategy

import (
	"fmt"
	"math"

	"GoldPulse/internal/indicator"
	"GoldPulse/internal/model"

	"github.com/rs/zerolog/log"
)

// Strategy evaluates an annotated candle window into one opinion. Strategies
// hold no state between calls.
type Strategy interface {
	Name() string
	Evaluate(f *indicator.Frame) model.Opinion
}

// Result pairs a strategy name with its opinion.
type Result struct {
	Name    string
	Opinion model.Opinion
}

// Engine runs a fixed, ordered list of strategies.
type Engine struct {
	strategies []Strategy
}

// NewEngine creates an engine evaluating strategies in the given order.
func NewEngine(strategies ...Strategy) *Engine {
	return &Engine{strategies: strategies}
}

// Default returns the engine with the full built-in strategy set.
func Default() *Engine {
	return NewEngine(
		Bollinger{},
		Volume{},
		PriceAction{},
		SMC{},
		Patterns{},
		Candlesticks{},
		FVG{},
		SupportResistance{},
		TrendMomentum{},
		MarketStructure{},
	)
}

// Names lists strategy names in evaluation order.
func (e *Engine) Names() []string {
	names := make([]string, len(e.strategies))
	for i, s := range e.strategies {
		names[i] = s.Name()
	}
	return names
}

// Analyze evaluates every strategy against the frame. It never panics and
// always returns one well-formed result per strategy, in order.
func (e *Engine) Analyze(f *indicator.Frame) []Result {
	results := make([]Result, len(e.strategies))
	for i, s := range e.strategies {
		results[i] = Result{Name: s.Name(), Opinion: Evaluate(s, f)}
	}
	return results
}

// Evaluate runs one strategy, converting panics and malformed output into a
// NEUTRAL opinion.
func Evaluate(s Strategy, f *indicator.Frame) (op model.Opinion) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Str("component", "strategy").Str("strategy", s.Name()).Interface("panic", r).Msg("strategy failed")
			op = model.NeutralOpinion(fmt.Sprintf("%s error: %v", s.Name(), r))
		}
	}()
	if f == nil {
		return model.NeutralOpinion("no data")
	}
	op = s.Evaluate(f)
	if !op.WellFormed() {
		return model.NeutralOpinion(fmt.Sprintf("%s produced an invalid opinion", s.Name()))
	}
	if op.Direction == model.Neutral {
		op.Score = 0
	}
	return op
}

// need returns a NEUTRAL opinion when the frame is shorter than bars.
func need(f *indicator.Frame, bars int) (model.Opinion, bool) {
	if f.Len() < bars {
		return model.NeutralOpinion(fmt.Sprintf("insufficient history: %d bars, need %d", f.Len(), bars)), false
	}
	return model.Opinion{}, true
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func signal(d model.Direction, score float64, reason string) model.Opinion {
	return model.Opinion{Direction: d, Score: score, Reason: reason}
}
