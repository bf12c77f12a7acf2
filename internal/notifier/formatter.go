package notifier

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"GoldPulse/internal/collector"
	"GoldPulse/internal/config"
	"GoldPulse/internal/model"
	"GoldPulse/internal/news"
	"GoldPulse/internal/recorder"
	"GoldPulse/internal/tracker"
	"GoldPulse/internal/weights"
)

// reportTarget is the win rate the progress bar measures against.
const reportTarget = 90.0

// FormatSignal renders an enriched signal for the chat.
func FormatSignal(sig *model.Signal, p config.SymbolProfile) string {
	var b strings.Builder
	mark, arrow := "🟢", "📈"
	if sig.Direction == model.Sell {
		mark, arrow = "🔴", "📉"
	}

	fmt.Fprintf(&b, "%s <b>%s SIGNAL</b> %s\n", mark, sig.Direction, mark)
	fmt.Fprintf(&b, "%s <b>%s %s</b>\n\n", arrow, sig.Symbol, sig.TimeframeLabel())

	b.WriteString("💰 <b>ENTRY LEVELS:</b>\n")
	fmt.Fprintf(&b, "🔵 <b>Entry:</b> $%.2f\n", sig.Entry)
	fmt.Fprintf(&b, "🛑 <b>Stop Loss:</b> $%.2f\n\n", sig.SL)

	b.WriteString("🎯 <b>TAKE PROFIT LEVELS:</b>\n")
	for i, tp := range sig.TP {
		fmt.Fprintf(&b, "🎯 <b>TP %d:</b> $%.2f (R:R 1:%.1f)\n", i+1, tp, sig.RiskReward[i])
	}

	b.WriteString("\n📊 <b>SIGNAL STRENGTH:</b>\n")
	fmt.Fprintf(&b, "⚡ Score: <b>%.1f/100</b>\n", sig.Score)
	fmt.Fprintf(&b, "🎯 Strategies: <b>%d agreeing</b>\n", agreeing(sig))
	fmt.Fprintf(&b, "💎 Position Size: <b>%s %s</b>\n", trimFloat(sig.PositionSize), p.Unit)
	fmt.Fprintf(&b, "⚖️ Avg R:R: <b>1:%.2f</b> | Max loss: <b>$%.0f</b>\n", sig.AverageRR, sig.MaxLoss)

	if len(sig.Reasons) > 0 {
		b.WriteString("\n🧠 <b>WHY:</b>\n")
		for _, r := range sig.Reasons {
			fmt.Fprintf(&b, "• %s\n", html.EscapeString(r))
		}
	}
	if len(sig.Warnings) > 0 {
		b.WriteString("\n⚠️ <b>RISK NOTES:</b>\n")
		for _, w := range sig.Warnings {
			fmt.Fprintf(&b, "• %s\n", html.EscapeString(w))
		}
	}

	fmt.Fprintf(&b, "\n⏰ <b>Signal Time:</b> %s UTC\n", sig.Timestamp.UTC().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "📏 Candles analyzed: %d", sig.CandlesAnalyzed)
	return b.String()
}

func agreeing(sig *model.Signal) int {
	n := 0
	for _, op := range sig.Opinions {
		if op.Direction == sig.Direction && op.Score > 0 {
			n++
		}
	}
	return n
}

// FormatNewsAlert renders the pre-release warning for a high-impact event.
func FormatNewsAlert(e model.NewsEvent, now time.Time) string {
	var b strings.Builder
	b.WriteString("🚨 <b>HIGH-IMPACT NEWS ALERT</b> 🚨\n\n")
	fmt.Fprintf(&b, "⏰ <b>Time:</b> %s UTC\n", e.Time.UTC().Format("15:04"))
	fmt.Fprintf(&b, "💵 <b>Currency:</b> %s\n", e.Currency)
	fmt.Fprintf(&b, "📰 <b>Event:</b> %s\n", html.EscapeString(e.Title))
	fmt.Fprintf(&b, "%s <b>Impact:</b> %s\n", impactIcon(e.Impact), strings.ToUpper(string(e.Impact)))
	if e.Forecast != "" || e.Previous != "" {
		b.WriteString("\n📊 <b>Data:</b>\n")
		if e.Forecast != "" {
			fmt.Fprintf(&b, "• Forecast: %s\n", html.EscapeString(e.Forecast))
		}
		if e.Previous != "" {
			fmt.Fprintf(&b, "• Previous: %s\n", html.EscapeString(e.Previous))
		}
	}
	b.WriteString("\n⚠️ <b>Before the release:</b>\n")
	b.WriteString("• Tighten or close risky positions\n")
	b.WriteString("• Avoid new entries 15 min either side\n")
	fmt.Fprintf(&b, "\n⏳ Starts in %d minutes", int(e.Time.Sub(now).Round(time.Minute).Minutes()))
	return b.String()
}

func impactIcon(i model.Impact) string {
	switch i {
	case model.ImpactHigh:
		return "🔴"
	case model.ImpactMedium:
		return "🟡"
	default:
		return "⚪"
	}
}

// Report is the input of the daily performance message.
type Report struct {
	Date         time.Time
	Symbol       string
	Summary      tracker.Summary
	Today        int
	BestStrategy string
	Phase        string
}

// FormatReport renders the daily performance report.
func FormatReport(r Report) string {
	var b strings.Builder
	s := r.Summary
	fmt.Fprintf(&b, "📊 <b>PERFORMANCE REPORT</b> | %s\n\n", r.Date.UTC().Format("2006-01-02"))
	fmt.Fprintf(&b, "📈 <b>Symbol:</b> %s\n", r.Symbol)
	fmt.Fprintf(&b, "🧭 <b>Phase:</b> %s\n\n", r.Phase)

	b.WriteString("<b>TRADING STATISTICS:</b>\n")
	fmt.Fprintf(&b, "• Signals: <b>%d</b> (today %d)\n", s.Signals, r.Today)
	fmt.Fprintf(&b, "• Closed: <b>%d</b> | Open: <b>%d</b>\n", s.Closed, s.Open)
	fmt.Fprintf(&b, "• Wins/Losses: <b>%d/%d</b>\n", s.Wins, s.Losses)
	fmt.Fprintf(&b, "• Win Rate: <b>%.1f%%</b>\n", s.WinRate)
	fmt.Fprintf(&b, "• Total P/L: <b>$%.2f</b> | Avg: <b>$%.2f</b>\n", s.TotalPnL, s.AvgPnL)
	if r.BestStrategy != "" {
		fmt.Fprintf(&b, "• Top weight: <b>%s</b>\n", r.BestStrategy)
	}
	if len(s.ByLevel) > 0 {
		b.WriteString("\n<b>EXITS:</b>\n")
		levels := make([]string, 0, len(s.ByLevel))
		for l := range s.ByLevel {
			levels = append(levels, l)
		}
		sort.Strings(levels)
		for _, l := range levels {
			fmt.Fprintf(&b, "• %s: %d\n", l, s.ByLevel[l])
		}
	}
	fmt.Fprintf(&b, "\n<b>PROGRESS TO TARGET:</b>\n%s", progressBar(s.WinRate, reportTarget))
	return b.String()
}

func progressBar(current, target float64) string {
	filled := int(current / target * 10)
	if filled > 10 {
		filled = 10
	}
	if filled < 0 {
		filled = 0
	}
	return fmt.Sprintf("%s%s %.1f%% / %.0f%%", strings.Repeat("█", filled), strings.Repeat("░", 10-filled), current, target)
}

// StatusView is the input of the /status reply.
type StatusView struct {
	Symbol     string
	Market     string
	MinScore   float64
	Timeframes []int
	Summary    tracker.Summary
	Sources    []collector.Health
	NewsSource string
}

// FormatStatus renders bot health and headline stats.
func FormatStatus(v StatusView) string {
	var b strings.Builder
	b.WriteString("📊 <b>Bot Status</b>\n\n")
	fmt.Fprintf(&b, "📊 Symbol: <b>%s</b>\n", v.Symbol)
	fmt.Fprintf(&b, "🕒 %s\n", v.Market)
	labels := make([]string, len(v.Timeframes))
	for i, tf := range v.Timeframes {
		labels[i] = model.TimeframeLabel(tf)
	}
	fmt.Fprintf(&b, "🎚 Min score: %.0f | Timeframes: %s\n", v.MinScore, strings.Join(labels, ", "))
	fmt.Fprintf(&b, "📈 Trades: %d (open %d) | Win rate: %.1f%%\n", v.Summary.Signals, v.Summary.Open, v.Summary.WinRate)
	if len(v.Sources) > 0 {
		b.WriteString("\n🔌 <b>Data sources:</b>\n")
		for _, h := range v.Sources {
			icon := "🟢"
			if h.State != "closed" {
				icon = "🔴"
			}
			fmt.Fprintf(&b, "%s %s (%s)\n", icon, h.Name, h.State)
		}
	}
	if v.NewsSource != "" {
		fmt.Fprintf(&b, "\n📰 News feed: %s", v.NewsSource)
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatPrice renders the /price reply.
func FormatPrice(symbol string, p config.SymbolProfile, price float64, market string, at time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "💰 <b>LIVE %s PRICE</b>\n\n", symbol)
	fmt.Fprintf(&b, "📊 %s: <b>$%.*f</b>\n", p.Name, int(p.PriceDecimals), price)
	fmt.Fprintf(&b, "🕒 %s\n", market)
	fmt.Fprintf(&b, "⏰ %s UTC", at.UTC().Format("15:04:05"))
	return b.String()
}

// FormatPriceUnavailable renders the /price reply when every source failed.
func FormatPriceUnavailable(symbol string, err error) string {
	return fmt.Sprintf("❌ <b>PRICE DATA UNAVAILABLE</b>\n\n%s: %s\n\n💡 Use /status to check source health",
		symbol, html.EscapeString(err.Error()))
}

// FormatSymbol renders the active instrument profile.
func FormatSymbol(symbol string, p config.SymbolProfile) string {
	var b strings.Builder
	b.WriteString("📊 <b>Current Trading Symbol</b>\n\n")
	fmt.Fprintf(&b, "🎯 Symbol: <b>%s</b> (%s)\n", symbol, p.Name)
	fmt.Fprintf(&b, "📈 TP Levels: %s\n", joinFloats(p.TPLevels))
	fmt.Fprintf(&b, "🛑 Stop Loss: %s\n\n", trimFloat(p.DefaultSL))
	b.WriteString("💡 Use /signalchange to switch symbols")
	return b.String()
}

// FormatSymbolChange confirms a symbol switch.
func FormatSymbolChange(old, next string, p config.SymbolProfile) string {
	var b strings.Builder
	b.WriteString("✅ <b>Symbol Changed</b>\n\n")
	fmt.Fprintf(&b, "📊 Old Symbol: %s\n", old)
	fmt.Fprintf(&b, "📈 New Symbol: <b>%s</b>\n\n", next)
	fmt.Fprintf(&b, "🎯 TP Levels: %s\n", joinFloats(p.TPLevels))
	fmt.Fprintf(&b, "🛑 Stop Loss: %s\n\n", trimFloat(p.DefaultSL))
	fmt.Fprintf(&b, "🔄 Analysis now runs on %s", next)
	return b.String()
}

// FormatWeights lists the weight map, heaviest first.
func FormatWeights(w weights.Map) string {
	names := w.Names()
	sort.SliceStable(names, func(i, j int) bool { return w[names[i]] > w[names[j]] })
	var b strings.Builder
	b.WriteString("⚖️ <b>Strategy Weights</b>\n\n")
	for _, n := range names {
		fmt.Fprintf(&b, "• %s: <b>%.1f%%</b>\n", n, w[n]*100)
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatNewsStatus renders the /news reply.
func FormatNewsStatus(st news.Status, upcoming []model.NewsEvent, now time.Time) string {
	var b strings.Builder
	b.WriteString("📰 <b>NEWS MONITOR</b>\n\n")
	fmt.Fprintf(&b, "🔴 High: %d | 🟡 Medium: %d | ⚪ Low: %d\n", st.High, st.Medium, st.Low)
	if st.Source != "" {
		fmt.Fprintf(&b, "📡 Source: %s (updated %s UTC)\n", st.Source, st.LastUpdate.UTC().Format("15:04"))
	}
	if st.NextHigh != nil {
		mins := int(st.NextHigh.Time.Sub(now).Minutes())
		fmt.Fprintf(&b, "\n⏭ Next high impact: <b>%s</b> at %s UTC (in %dm)\n",
			html.EscapeString(st.NextHigh.Title), st.NextHigh.Time.UTC().Format("15:04"), mins)
	}
	if len(upcoming) == 0 {
		b.WriteString("\nNo more events today.")
		return b.String()
	}
	b.WriteString("\n<b>Upcoming today:</b>")
	for _, e := range upcoming {
		fmt.Fprintf(&b, "\n%s %s - %s", impactIcon(e.Impact), e.Time.UTC().Format("15:04"), html.EscapeString(e.Title))
	}
	return b.String()
}

// FormatMorning renders the pre-London briefing.
func FormatMorning(symbol, market string, focus []int, w weights.Map, upcoming []model.NewsEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🌅 <b>Morning Briefing</b> | %s\n\n", symbol)
	fmt.Fprintf(&b, "🕒 %s\n", market)
	if len(focus) > 0 {
		labels := make([]string, len(focus))
		for i, tf := range focus {
			labels[i] = model.TimeframeLabel(tf)
		}
		fmt.Fprintf(&b, "🔎 Session focus: %s\n", strings.Join(labels, ", "))
	}
	names := w.Names()
	if len(names) > 0 {
		sort.SliceStable(names, func(i, j int) bool { return w[names[i]] > w[names[j]] })
		fmt.Fprintf(&b, "⚖️ Leading strategy: %s (%.1f%%)\n", names[0], w[names[0]]*100)
	}
	high := 0
	for _, e := range upcoming {
		if e.Impact == model.ImpactHigh {
			high++
		}
	}
	fmt.Fprintf(&b, "📰 High-impact events today: %d", high)
	return b.String()
}

// FormatChartCaption is the caption of the chart sent ahead of a signal.
func FormatChartCaption(sig *model.Signal) string {
	return fmt.Sprintf("📊 <b>%s %s</b> %s | score %.0f\nEntry $%.2f | SL $%.2f",
		html.EscapeString(sig.Symbol), sig.Direction, sig.TimeframeLabel(), sig.Score, sig.Entry, sig.SL)
}

// FormatClosure reports a trade resolved by the position monitor.
func FormatClosure(t *model.TradeRecord, c recorder.Closure) string {
	icon := "✅"
	if c.PnL <= 0 {
		icon = "❌"
	}
	return fmt.Sprintf("%s <b>%s %s closed at %s</b>\n\nEntry: $%.2f | Exit: $%.2f\nP/L: <b>$%.2f</b>",
		icon, t.Symbol, t.Direction, strings.ToUpper(c.Level), t.Entry, c.Price, c.PnL)
}

// FormatStart is the /start greeting.
func FormatStart(symbol string) string {
	return fmt.Sprintf("🤖 <b>GoldPulse Active</b>\n\n📊 Current Symbol: <b>%s</b>\n🔄 Automated signals running\n\n"+
		"/price - Live price\n/news - Today's events\n/help - All commands", symbol)
}

// FormatHelp lists the supported commands.
func FormatHelp(symbols []string) string {
	sort.Strings(symbols)
	var b strings.Builder
	b.WriteString("📚 <b>Commands</b>\n\n")
	b.WriteString("/start - Greeting and current symbol\n")
	b.WriteString("/status - Bot and data source status\n")
	b.WriteString("/report - Performance report\n")
	b.WriteString("/price - Live price\n")
	b.WriteString("/news - Today's economic events\n")
	b.WriteString("/symbol - Show current symbol\n")
	b.WriteString("/weights - Strategy weights\n")
	fmt.Fprintf(&b, "/signalchange &lt;symbol&gt; - Switch to one of: %s", strings.Join(symbols, ", "))
	return b.String()
}

func joinFloats(vs []float64) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = trimFloat(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func trimFloat(v float64) string {
	s := fmt.Sprintf("%.6f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
