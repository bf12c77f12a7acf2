// Package aggregator combines per-strategy opinions into one weighted signal.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"GoldPulse/internal/config"
	"GoldPulse/internal/indicator"
	"GoldPulse/internal/model"
	"GoldPulse/internal/strategy"
	"GoldPulse/internal/weights"

	"github.com/rs/zerolog/log"
)

// ErrNoData means no configured timeframe produced a usable candle window.
var ErrNoData = errors.New("no candle data for any timeframe")

// htfMultiplier scales the side aligned with the higher-timeframe trend.
const htfMultiplier = 1.3

// CandleSource supplies candle windows.
type CandleSource interface {
	GetData(ctx context.Context, symbol string, timeframe, limit int) (model.Series, error)
}

// TimeframeResult is the outcome of one timeframe in a cycle.
type TimeframeResult struct {
	Timeframe int
	Bars      int
	BuyScore  float64
	SellScore float64
	Results   []strategy.Result
	Signal    *model.Signal // nil when the timeframe stayed silent
	Skipped   error         // set when the timeframe had no usable data
}

// Aggregator runs the strategy engine per timeframe and keeps the best signal.
type Aggregator struct {
	Source CandleSource
	Engine *strategy.Engine
	Now    func() time.Time
}

// New creates an Aggregator.
func New(src CandleSource, engine *strategy.Engine) *Aggregator {
	return &Aggregator{Source: src, Engine: engine, Now: time.Now}
}

// Score accumulates weighted BUY and SELL scores. NEUTRAL opinions and
// strategies absent from the weight map contribute nothing.
func Score(results []strategy.Result, w weights.Map) (buy, sell float64) {
	for _, r := range results {
		contribution := r.Opinion.Score * w.Get(r.Name)
		switch r.Opinion.Direction {
		case model.Buy:
			buy += contribution
		case model.Sell:
			sell += contribution
		}
	}
	return buy, sell
}

// Decision is the gated outcome of one timeframe's scores.
type Decision struct {
	Direction model.Direction
	Score     float64
}

// Decide applies the tie rule and the threshold gate to accumulated scores.
// It returns NEUTRAL when the sides tie or the winner is below minScore.
func Decide(buy, sell, minScore float64) Decision {
	switch {
	case buy > sell && buy >= minScore:
		return Decision{Direction: model.Buy, Score: buy}
	case sell > buy && sell >= minScore:
		return Decision{Direction: model.Sell, Score: sell}
	default:
		return Decision{Direction: model.Neutral}
	}
}

// Reasons collects up to topN reasons from strategies that voted for dir,
// in evaluation order.
func Reasons(results []strategy.Result, w weights.Map, dir model.Direction, topN int) []string {
	var out []string
	for _, r := range results {
		if len(out) >= topN {
			break
		}
		if r.Opinion.Direction != dir || w.Get(r.Name) <= 0 {
			continue
		}
		out = append(out, fmt.Sprintf("%s: %s", r.Name, r.Opinion.Reason))
	}
	return out
}

// Opinions flattens results into a name-keyed map for attribution.
func Opinions(results []strategy.Result) map[string]model.Opinion {
	out := make(map[string]model.Opinion, len(results))
	for _, r := range results {
		out[r.Name] = r.Opinion
	}
	return out
}

// Evaluate runs one analysis cycle across cfg's timeframes. It returns the
// highest-scoring qualifying signal, or nil when every timeframe stayed silent.
// On equal scores the earlier timeframe wins.
func (a *Aggregator) Evaluate(ctx context.Context, cfg *config.Config, w weights.Map) (*model.Signal, []TimeframeResult, error) {
	var best *model.Signal
	outcomes := make([]TimeframeResult, 0, len(cfg.Signal.Timeframes))
	usable := 0

	for _, tf := range cfg.Signal.Timeframes {
		if err := ctx.Err(); err != nil {
			return nil, outcomes, err
		}
		res := a.evaluateTimeframe(ctx, cfg, w, tf)
		outcomes = append(outcomes, res)
		if res.Skipped != nil {
			log.Warn().Str("component", "aggregator").Int("timeframe", tf).Err(res.Skipped).Msg("timeframe skipped")
			continue
		}
		usable++
		log.Info().Str("component", "aggregator").Int("timeframe", tf).
			Float64("buy", res.BuyScore).Float64("sell", res.SellScore).
			Bool("qualified", res.Signal != nil).Msg("timeframe scored")
		if res.Signal != nil && (best == nil || res.Signal.Score > best.Score) {
			best = res.Signal
		}
	}
	if usable == 0 {
		return nil, outcomes, ErrNoData
	}
	return best, outcomes, nil
}

func (a *Aggregator) evaluateTimeframe(ctx context.Context, cfg *config.Config, w weights.Map, tf int) TimeframeResult {
	res := TimeframeResult{Timeframe: tf}
	series, err := a.Source.GetData(ctx, cfg.Symbol, tf, cfg.Signal.CandleLimit)
	if err != nil {
		res.Skipped = err
		return res
	}
	series = series.Normalize()
	last, ok := series.Last()
	if !ok {
		res.Skipped = fmt.Errorf("empty candle window")
		return res
	}
	res.Bars = len(series)

	frame := indicator.Annotate(series)
	res.Results = a.Engine.Analyze(frame)
	res.BuyScore, res.SellScore = Score(res.Results, w)

	var extra []string
	if cfg.Signal.HTFBias {
		if bias, why := a.higherTimeframeBias(ctx, cfg, tf); bias != model.Neutral {
			if bias == model.Buy {
				res.BuyScore *= htfMultiplier
			} else {
				res.SellScore *= htfMultiplier
			}
			extra = append(extra, why)
		}
	}

	d := Decide(res.BuyScore, res.SellScore, cfg.Signal.MinScore)
	if d.Direction == model.Neutral {
		return res
	}

	topN := cfg.Signal.TopReasons
	picked := Reasons(res.Results, w, d.Direction, topN)
	for _, r := range extra {
		if len(picked) >= topN {
			break
		}
		picked = append(picked, r)
	}

	res.Signal = &model.Signal{
		Symbol:          cfg.Symbol,
		Direction:       d.Direction,
		Entry:           last.Close,
		Score:           d.Score,
		Timeframe:       tf,
		Reasons:         picked,
		Opinions:        Opinions(res.Results),
		CandlesAnalyzed: len(series),
		Timestamp:       a.Now(),
	}
	return res
}

// higherTimeframeBias reads the EMA trend of the next timeframe up.
func (a *Aggregator) higherTimeframeBias(ctx context.Context, cfg *config.Config, tf int) (model.Direction, string) {
	htf := HigherTimeframe(tf)
	series, err := a.Source.GetData(ctx, cfg.Symbol, htf, 200)
	if err != nil {
		log.Debug().Str("component", "aggregator").Int("htf", htf).Err(err).Msg("higher timeframe unavailable")
		return model.Neutral, ""
	}
	series = series.Normalize()
	if len(series) < 50 {
		return model.Neutral, ""
	}
	f := indicator.Annotate(series)
	last, _ := series.Last()
	ema20, ema50 := f.Last(indicator.EMA20), f.Last(indicator.EMA50)
	label := model.TimeframeLabel(htf)
	switch {
	case last.Close > ema20 && ema20 > ema50:
		return model.Buy, "HTF bias: " + label + " uptrend"
	case last.Close < ema20 && ema20 < ema50:
		return model.Sell, "HTF bias: " + label + " downtrend"
	}
	return model.Neutral, ""
}

// HigherTimeframe maps a trading timeframe to its context timeframe.
func HigherTimeframe(tf int) int {
	switch tf {
	case 15:
		return 60
	case 30:
		return 240
	case 60:
		return 1440
	default:
		return 240
	}
}
