package strategy

import (
	"math"
	"reflect"
	"strings"
	"testing"
	"time"

	"GoldPulse/internal/indicator"
	"GoldPulse/internal/model"
)

var t0 = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

func bar(i int, o, h, l, c, v float64) model.Candle {
	return model.Candle{Time: t0.Add(time.Duration(i) * 15 * time.Minute), Open: o, High: h, Low: l, Close: c, Volume: v}
}

// ranging builds n bars oscillating around base within +-1.
func ranging(n int, base float64) model.Series {
	s := make(model.Series, n)
	for i := range s {
		c := base + math.Sin(float64(i))*0.8
		s[i] = bar(i, c-0.1, c+0.2, c-0.2, c, 1000)
	}
	return s
}

func TestDefault_Order(t *testing.T) {
	want := []string{"bollinger", "volume", "price_action", "smc", "patterns", "candlesticks", "fvg", "support_resistance", "trend_momentum", "market_structure"}
	if got := Default().Names(); !reflect.DeepEqual(got, want) {
		t.Fatalf("names = %v, want %v", got, want)
	}
}

func TestAnalyze_InsufficientHistory(t *testing.T) {
	f := indicator.Annotate(ranging(5, 2000))
	results := Default().Analyze(f)
	if len(results) != 10 {
		t.Fatalf("expected 10 results, got %d", len(results))
	}
	for _, r := range results {
		if !r.Opinion.WellFormed() {
			t.Errorf("%s: malformed opinion %+v", r.Name, r.Opinion)
		}
	}
	pa := results[2]
	if pa.Opinion.Direction != model.Neutral || pa.Opinion.Score != 0 {
		t.Errorf("price_action on 5 bars = %+v, want NEUTRAL/0", pa.Opinion)
	}
	if !strings.Contains(pa.Opinion.Reason, "insufficient history") {
		t.Errorf("reason = %q", pa.Opinion.Reason)
	}
}

func TestAnalyze_Totality(t *testing.T) {
	flat := make(model.Series, 120)
	for i := range flat {
		flat[i] = bar(i, 100, 100, 100, 100, 0)
	}
	nanFrame := indicator.NewFrame(ranging(80, 2000))
	nan := make([]float64, 80)
	for i := range nan {
		nan[i] = math.NaN()
	}
	for _, c := range []string{indicator.BBUpper, indicator.BBLower, indicator.EMA20, indicator.EMA50, indicator.RSI} {
		nanFrame.Set(c, nan)
	}

	frames := map[string]*indicator.Frame{
		"nil":      nil,
		"empty":    indicator.Annotate(nil),
		"one bar":  indicator.Annotate(ranging(1, 2000)),
		"flat":     indicator.Annotate(flat),
		"nan cols": nanFrame,
		"long":     indicator.Annotate(ranging(300, 2000)),
	}
	engine := Default()
	for name, f := range frames {
		for _, r := range engine.Analyze(f) {
			if !r.Opinion.WellFormed() {
				t.Errorf("%s/%s: malformed opinion %+v", name, r.Name, r.Opinion)
			}
			if r.Opinion.Direction == model.Neutral && r.Opinion.Score != 0 {
				t.Errorf("%s/%s: neutral with score %v", name, r.Name, r.Opinion.Score)
			}
		}
	}
}

func TestAnalyze_Deterministic(t *testing.T) {
	f := indicator.Annotate(ranging(250, 2000))
	a := Default().Analyze(f)
	b := Default().Analyze(f)
	if !reflect.DeepEqual(a, b) {
		t.Fatal("repeated analysis differs")
	}
}

type panicky struct{}

func (panicky) Name() string                            { return "panicky" }
func (panicky) Evaluate(*indicator.Frame) model.Opinion { panic("boom") }

type nanScore struct{}

func (nanScore) Name() string { return "nan" }
func (nanScore) Evaluate(*indicator.Frame) model.Opinion {
	return model.Opinion{Direction: model.Buy, Score: math.NaN()}
}

func TestEvaluate_RecoversAndSanitises(t *testing.T) {
	f := indicator.Annotate(ranging(30, 2000))
	op := Evaluate(panicky{}, f)
	if op.Direction != model.Neutral || op.Score != 0 || !strings.Contains(op.Reason, "boom") {
		t.Errorf("panic not converted: %+v", op)
	}
	op = Evaluate(nanScore{}, f)
	if op.Direction != model.Neutral || op.Score != 0 {
		t.Errorf("NaN score not converted: %+v", op)
	}
}

func bandFrame(closeLast, upper, lower float64) *indicator.Frame {
	s := ranging(30, (upper+lower)/2)
	last := len(s) - 1
	s[last] = bar(last, closeLast, closeLast+0.1, closeLast-0.1, closeLast, 1000)
	f := indicator.NewFrame(s)
	up, lo := make([]float64, len(s)), make([]float64, len(s))
	for i := range s {
		up[i], lo[i] = upper, lower
	}
	f.Set(indicator.BBUpper, up)
	f.Set(indicator.BBLower, lo)
	return f
}

func TestBollinger(t *testing.T) {
	tests := []struct {
		name  string
		close float64
		upper float64
		lower float64
		want  model.Direction
		score float64
	}{
		{"lower band bounce", 100.5, 110, 100, model.Buy, 70},
		{"upper band rejection", 109.5, 110, 100, model.Sell, 70},
		{"mid band", 105, 110, 100, model.Neutral, 0},
		{"zero width", 105, 105, 105, model.Neutral, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := Evaluate(Bollinger{}, bandFrame(tt.close, tt.upper, tt.lower))
			if op.Direction != tt.want || op.Score != tt.score {
				t.Errorf("got %+v, want %s/%v", op, tt.want, tt.score)
			}
		})
	}
}

func TestVolume_Spike(t *testing.T) {
	s := ranging(40, 2000)
	last := len(s) - 1
	prev := s[last-1].Close
	c := prev * 1.01
	s[last] = bar(last, prev, c+1, prev-1, c, 5000)
	op := Evaluate(Volume{}, indicator.NewFrame(s))
	if op.Direction != model.Buy || op.Score != 85 {
		t.Errorf("got %+v, want BUY/85", op)
	}
}

func TestVolume_NoData(t *testing.T) {
	s := ranging(40, 2000)
	for i := range s {
		s[i].Volume = 0
	}
	op := Evaluate(Volume{}, indicator.NewFrame(s))
	if op.Direction != model.Neutral || op.Reason != "no volume data" {
		t.Errorf("got %+v", op)
	}
}

func TestPriceAction_Breakout(t *testing.T) {
	s := ranging(60, 2000)
	last := len(s) - 1
	s[last] = bar(last, 2000, 2006, 1999.9, 2005, 1000)
	op := Evaluate(PriceAction{}, indicator.Annotate(s))
	if op.Direction != model.Buy {
		t.Fatalf("got %+v, want BUY", op)
	}
	if op.Score < 60 || op.Score > 75 {
		t.Errorf("score %v outside 60..75", op.Score)
	}
}

func TestSMC_StructureBreak(t *testing.T) {
	s := ranging(60, 2000)
	last := len(s) - 1
	s[last] = bar(last, 2000, 2010.5, 1999.9, 2010, 1000)
	op := Evaluate(SMC{}, indicator.NewFrame(s))
	if op.Direction != model.Buy {
		t.Fatalf("got %+v, want BUY", op)
	}
	if op.Score < 60 || op.Score > 85 {
		t.Errorf("score %v outside 60..85", op.Score)
	}
}

func TestCandlesticks(t *testing.T) {
	tests := []struct {
		name string
		bars model.Series
		want model.Direction
	}{
		{"bullish engulfing", model.Series{
			bar(0, 105, 106, 103, 104, 1),
			bar(1, 104, 104.5, 101.5, 102, 1),
			bar(2, 101.8, 105, 101.5, 104.5, 1),
		}, model.Buy},
		{"bearish engulfing", model.Series{
			bar(0, 100, 102, 99, 101, 1),
			bar(1, 101, 103.5, 100.8, 103, 1),
			bar(2, 103.2, 103.5, 99.5, 100.5, 1),
		}, model.Sell},
		{"hammer after decline", model.Series{
			bar(0, 110, 110.5, 107.5, 108, 1),
			bar(1, 108, 108.2, 105.8, 106, 1),
			bar(2, 105, 106.1, 101, 106, 1),
		}, model.Buy},
		{"flat bar", model.Series{
			bar(0, 100, 101, 99, 100, 1),
			bar(1, 100, 101, 99, 100, 1),
			bar(2, 100, 100, 100, 100, 1),
		}, model.Neutral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := Evaluate(Candlesticks{}, indicator.NewFrame(tt.bars))
			if op.Direction != tt.want {
				t.Errorf("got %+v, want %s", op, tt.want)
			}
		})
	}
}

func TestFVG_BullishRetest(t *testing.T) {
	s := model.Series{
		bar(0, 100, 101, 99, 100.5, 1),
		bar(1, 100.5, 104, 100.4, 103.8, 1),
		bar(2, 103.8, 105, 102, 104.5, 1), // gap 101..102
		bar(3, 104.5, 104.6, 101.2, 101.5, 1),
	}
	op := Evaluate(FVG{}, indicator.NewFrame(s))
	if op.Direction != model.Buy {
		t.Fatalf("got %+v, want BUY", op)
	}
	if op.Score < 60 || op.Score > 80 {
		t.Errorf("score %v outside 60..80", op.Score)
	}
}

func TestPatterns_HigherHighs(t *testing.T) {
	s := ranging(20, 2000)
	n := len(s)
	for i := 0; i < 4; i++ {
		c := 2003 + float64(i)
		s[n-4+i] = bar(n-4+i, c-0.5, c+0.5, c-1, c, 1000)
	}
	op := Evaluate(Patterns{}, indicator.NewFrame(s))
	if op.Direction != model.Buy || op.Score != 60 {
		t.Errorf("got %+v, want BUY/60", op)
	}
}

func TestCandlesticks_Reversals(t *testing.T) {
	tests := []struct {
		name  string
		bars  model.Series
		want  model.Direction
		score float64
	}{
		{"shooting star after rally", model.Series{
			bar(0, 100, 101, 99.5, 100.5, 1),
			bar(1, 100.5, 102.5, 100.3, 102, 1),
			bar(2, 102.2, 103, 101.9, 102, 1),
		}, model.Sell, 65},
		{"doji after rally", model.Series{
			bar(0, 100, 101, 99.5, 100.5, 1),
			bar(1, 100.5, 102.5, 100.3, 102, 1),
			bar(2, 102, 102.5, 101.5, 102.02, 1),
		}, model.Sell, 55},
		{"doji after decline", model.Series{
			bar(0, 102.5, 102.8, 101.8, 102, 1),
			bar(1, 102, 102.2, 100.3, 100.5, 1),
			bar(2, 100.5, 101, 100, 100.48, 1),
		}, model.Buy, 55},
		{"doji without trend", model.Series{
			bar(0, 100, 101, 99, 100.5, 1),
			bar(1, 100, 101, 99.5, 100.5, 1),
			bar(2, 100.5, 101, 100, 100.48, 1),
		}, model.Neutral, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := Evaluate(Candlesticks{}, indicator.NewFrame(tt.bars))
			if op.Direction != tt.want || op.Score != tt.score {
				t.Errorf("got %+v, want %s/%v", op, tt.want, tt.score)
			}
		})
	}
}

func TestCandlesticks_FirstMatchWins(t *testing.T) {
	// The last bar is both a bullish engulfing and a hammer after a decline.
	s := model.Series{
		bar(0, 105.5, 106, 104.8, 105, 1),
		bar(1, 104, 104.2, 101.8, 102, 1),
		bar(2, 101.9, 104.3, 96, 104.2, 1),
	}
	op := Evaluate(Candlesticks{}, indicator.NewFrame(s))
	if op.Direction != model.Buy || op.Score != 70 || op.Reason != "Bullish engulfing" {
		t.Errorf("got %+v, want the engulfing rule", op)
	}
}

// zigzag builds a triangle wave with a period of 20 bars: lows at i%20 == 10,
// highs at i%20 == 0, plus drift per bar.
func zigzag(n int, base, drift float64) model.Series {
	s := make(model.Series, n)
	for i := range s {
		p := base + math.Abs(float64(i%20-10)) + drift*float64(i)
		s[i] = bar(i, p, p+0.5, p-0.5, p, 1000)
	}
	return s
}

func TestSupportResistance(t *testing.T) {
	tests := []struct {
		name  string
		bars  int
		want  model.Direction
		score float64
	}{
		{"at support", 51, model.Buy, 70},
		{"at resistance", 41, model.Sell, 70},
		{"between levels", 46, model.Neutral, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := Evaluate(SupportResistance{}, indicator.NewFrame(zigzag(tt.bars, 2000, 0)))
			if op.Direction != tt.want || op.Score != tt.score {
				t.Errorf("got %+v, want %s/%v", op, tt.want, tt.score)
			}
		})
	}
}

func TestMarketStructure(t *testing.T) {
	tests := []struct {
		name  string
		drift float64
		want  model.Direction
		score float64
	}{
		{"rising swings", 0.2, model.Buy, 80},
		{"falling swings", -0.2, model.Sell, 80},
		{"equal swings", 0, model.Neutral, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := Evaluate(MarketStructure{}, indicator.NewFrame(zigzag(60, 2000, tt.drift)))
			if op.Direction != tt.want || op.Score != tt.score {
				t.Errorf("got %+v, want %s/%v", op, tt.want, tt.score)
			}
		})
	}
}

func momentumFrame(close float64, cols map[string]float64) *indicator.Frame {
	s := ranging(70, 2000)
	last := len(s) - 1
	s[last] = bar(last, close, close+0.5, close-0.5, close, 1000)
	f := indicator.NewFrame(s)
	for name, v := range cols {
		vals := make([]float64, len(s))
		for i := range vals {
			vals[i] = v
		}
		f.Set(name, vals)
	}
	return f
}

func TestTrendMomentum(t *testing.T) {
	cols := func(ema20, ema50, hist, rsi, k, d float64) map[string]float64 {
		return map[string]float64{
			indicator.EMA20: ema20, indicator.EMA50: ema50, indicator.MACDHist: hist,
			indicator.RSI: rsi, indicator.StochK: k, indicator.StochD: d,
		}
	}
	tests := []struct {
		name  string
		close float64
		cols  map[string]float64
		want  model.Direction
		score float64
	}{
		{"full bullish alignment", 2005, cols(2002, 2000, 0.5, 60, 70, 60), model.Buy, 85},
		{"bullish four of five", 2005, cols(2002, 2000, 0.5, 75, 70, 60), model.Buy, 80},
		{"full bearish alignment", 1995, cols(1998, 2000, -0.5, 40, 30, 40), model.Sell, 85},
		{"mixed", 2005, cols(2002, 2000, -0.5, 40, 30, 40), model.Neutral, 0},
		{"missing columns", 2005, nil, model.Neutral, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := Evaluate(TrendMomentum{}, momentumFrame(tt.close, tt.cols))
			if op.Direction != tt.want || op.Score != tt.score {
				t.Errorf("got %+v, want %s/%v", op, tt.want, tt.score)
			}
		})
	}
}

func TestSMC_OrderBlockRetest(t *testing.T) {
	s := ranging(30, 2000)
	s = append(s,
		bar(30, 2000, 2000.3, 1999.5, 1999.6, 1000),   // last bearish candle
		bar(31, 1999.6, 2006.2, 1999.5, 2005.8, 1000), // impulse through its high
	)
	prev := 2005.8
	for i, c := range []float64{2005, 2004, 2003, 2002.5, 2002, 2001.5, 2001} {
		s = append(s, bar(32+i, prev, prev+0.3, c-0.3, c, 1000))
		prev = c
	}
	s = append(s, bar(39, 2000.8, 2000.9, 1999.9, 2000, 1000))

	op := Evaluate(SMC{}, indicator.NewFrame(s))
	if op.Direction != model.Buy || op.Score != 65 {
		t.Fatalf("got %+v, want BUY/65", op)
	}
	if !strings.Contains(op.Reason, "order block retest 1999.50-2000.30") {
		t.Errorf("reason = %q", op.Reason)
	}
}

func TestPatterns_Consolidation(t *testing.T) {
	flag := func(step float64) model.Series {
		s := make(model.Series, 0, 10)
		for i := 0; i < 5; i++ {
			c := 2000 + step*float64(i)
			s = append(s, bar(i, c-0.5, c+0.5, c-0.5, c, 1000))
		}
		box := 2000 + step*4
		for i := 5; i < 10; i++ {
			s = append(s, bar(i, box, box+0.3, box-0.3, box, 1000))
		}
		return s
	}
	tests := []struct {
		name  string
		bars  model.Series
		want  model.Direction
		score float64
	}{
		{"bull flag", flag(3), model.Buy, 55},
		{"bear flag", flag(-3), model.Sell, 55},
		{"no run", flag(0.1), model.Neutral, 0},
		{"too short", flag(3)[1:], model.Neutral, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := Evaluate(Patterns{}, indicator.NewFrame(tt.bars))
			if op.Direction != tt.want || op.Score != tt.score {
				t.Errorf("got %+v, want %s/%v", op, tt.want, tt.score)
			}
		})
	}
}
