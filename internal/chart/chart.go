// Package chart renders signal charts: price, trade levels and the structure
// zones the strategies read.
package chart

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"time"

	"GoldPulse/internal/model"
	"GoldPulse/internal/strategy"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

const (
	defaultBars = 100
	width       = 1200
	height      = 640

	// maxZonesPerKind keeps the chart readable.
	maxZonesPerKind = 3
)

// ErrTooFewBars is returned when there is nothing to draw.
var ErrTooFewBars = errors.New("chart needs at least two bars")

var (
	priceColor      = drawing.ColorFromHex("1f77b4")
	wickColor       = drawing.ColorFromHex("9e9e9e")
	entryColor      = drawing.ColorFromHex("212121")
	stopColor       = drawing.ColorFromHex("d32f2f")
	targetColor     = drawing.ColorFromHex("388e3c")
	supportColor    = drawing.ColorFromHex("66bb6a").WithAlpha(160)
	resistanceColor = drawing.ColorFromHex("ef5350").WithAlpha(160)
	orderBlockColor = drawing.ColorFromHex("ab47bc").WithAlpha(180)
	liquidityColor  = drawing.ColorFromHex("ffa726").WithAlpha(180)
)

// Render draws the last n bars (100 when n <= 0) with the signal's entry,
// stop and targets plus support/resistance, order block and liquidity zones.
// The result is a PNG.
func Render(bars model.Series, sig *model.Signal, n int) ([]byte, error) {
	if n <= 0 {
		n = defaultBars
	}
	bars = bars.Normalize().Tail(n)
	if len(bars) < 2 {
		return nil, ErrTooFewBars
	}

	times := make([]time.Time, len(bars))
	for i, b := range bars {
		times[i] = b.Time
	}
	span := []time.Time{times[0], times[len(times)-1]}
	lo, hi := priceRange(bars, sig)

	series := []gochart.Series{
		gochart.TimeSeries{Name: "High", Style: line(wickColor, 1, false), XValues: times, YValues: bars.Highs()},
		gochart.TimeSeries{Name: "Low", Style: line(wickColor, 1, false), XValues: times, YValues: bars.Lows()},
		gochart.TimeSeries{Name: "Close", Style: line(priceColor, 2, false), XValues: times, YValues: bars.Closes()},
	}
	series = append(series, zoneSeries(bars, span, lo, hi)...)

	if sig != nil {
		series = append(series, level("Entry", sig.Entry, span, entryColor))
		if sig.SL > 0 {
			series = append(series, level("SL", sig.SL, span, stopColor))
		}
		for i, tp := range sig.TP {
			if tp > 0 {
				series = append(series, level(fmt.Sprintf("TP%d", i+1), tp, span, targetColor))
			}
		}
	}

	graph := gochart.Chart{
		Title:  title(bars, sig),
		Width:  width,
		Height: height,
		Background: gochart.Style{
			Padding: gochart.Box{Top: 50, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: gochart.XAxis{ValueFormatter: gochart.TimeHourValueFormatter},
		YAxis: gochart.YAxis{
			Range:          &gochart.ContinuousRange{Min: lo, Max: hi},
			ValueFormatter: func(v interface{}) string { return fmt.Sprintf("%.2f", v.(float64)) },
		},
		Series: series,
	}
	graph.Elements = []gochart.Renderable{gochart.Legend(&graph)}

	var buf bytes.Buffer
	if err := graph.Render(gochart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render chart: %w", err)
	}
	return buf.Bytes(), nil
}

func title(bars model.Series, sig *model.Signal) string {
	if sig == nil {
		last, _ := bars.Last()
		return fmt.Sprintf("Close %.2f", last.Close)
	}
	return fmt.Sprintf("%s %s %s  score %.0f", sig.Symbol, sig.Direction, sig.TimeframeLabel(), sig.Score)
}

// zoneSeries draws the nearest zones of each kind that fall inside [lo, hi].
func zoneSeries(bars model.Series, span []time.Time, lo, hi float64) []gochart.Series {
	var out []gochart.Series
	count := make(map[strategy.ZoneKind]int)
	for _, z := range strategy.KeyZones(bars) {
		if count[z.Kind] >= maxZonesPerKind || z.High < lo || z.Low > hi {
			continue
		}
		count[z.Kind]++
		name := fmt.Sprintf("%s %d", z.Kind, count[z.Kind])
		c := zoneColor(z.Kind)
		if z.High == z.Low {
			out = append(out, band(name, z.High, span, c))
			continue
		}
		out = append(out, band(name+" high", z.High, span, c), band(name+" low", z.Low, span, c))
	}
	return out
}

func zoneColor(k strategy.ZoneKind) drawing.Color {
	switch k {
	case strategy.ZoneSupport:
		return supportColor
	case strategy.ZoneResistance:
		return resistanceColor
	case strategy.ZoneOrderBlock:
		return orderBlockColor
	default:
		return liquidityColor
	}
}

func level(name string, price float64, span []time.Time, c drawing.Color) gochart.Series {
	return gochart.TimeSeries{Name: name, Style: line(c, 2, true), XValues: span, YValues: []float64{price, price}}
}

func band(name string, price float64, span []time.Time, c drawing.Color) gochart.Series {
	return gochart.TimeSeries{Name: name, Style: line(c, 1, true), XValues: span, YValues: []float64{price, price}}
}

func line(c drawing.Color, w float64, dashed bool) gochart.Style {
	s := gochart.Style{StrokeColor: c, StrokeWidth: w}
	if dashed {
		s.StrokeDashArray = []float64{6, 4}
	}
	return s
}

// priceRange spans the bars and every trade level with a small margin.
func priceRange(bars model.Series, sig *model.Signal) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, b := range bars {
		lo = math.Min(lo, b.Low)
		hi = math.Max(hi, b.High)
	}
	if sig != nil {
		for _, p := range append([]float64{sig.Entry, sig.SL}, sig.TP[:]...) {
			if p > 0 {
				lo = math.Min(lo, p)
				hi = math.Max(hi, p)
			}
		}
	}
	margin := (hi - lo) * 0.05
	if margin == 0 {
		margin = math.Max(hi*0.001, 1)
	}
	return lo - margin, hi + margin
}
