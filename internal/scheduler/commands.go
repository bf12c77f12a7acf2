package scheduler

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"GoldPulse/internal/notifier"
	"GoldPulse/internal/session"

	"github.com/rs/zerolog/log"
)

// priceTimeout bounds the /price lookup so a slow source cannot stall polling.
const priceTimeout = 20 * time.Second

// HandleCommand processes a chat command and returns the reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command, args string) string {
	cfg := s.Config.Get()
	now := s.now()
	switch command {
	case "start":
		return notifier.FormatStart(cfg.Symbol)

	case "status":
		view := notifier.StatusView{
			Symbol:     cfg.Symbol,
			Market:     session.Status(cfg.Profile().Crypto, now),
			MinScore:   cfg.Signal.MinScore,
			Timeframes: cfg.Signal.Timeframes,
			Sources:    s.Market.HealthCheck(),
		}
		if r, err := s.BuildReport(); err == nil {
			view.Summary = r.Summary
		}
		if s.News != nil {
			view.NewsSource = s.News.Status(now).Source
		}
		return notifier.FormatStatus(view)

	case "report":
		r, err := s.BuildReport()
		if err != nil {
			return fmt.Sprintf("❌ Report unavailable: %s", html.EscapeString(err.Error()))
		}
		return notifier.FormatReport(r)

	case "price":
		pctx, cancel := context.WithTimeout(ctx, priceTimeout)
		defer cancel()
		price, err := s.Market.GetCurrentPrice(pctx, cfg.Symbol)
		if err != nil {
			log.Warn().Str("component", "scheduler").Err(err).Msg("price lookup failed")
			return notifier.FormatPriceUnavailable(cfg.Symbol, err)
		}
		return notifier.FormatPrice(cfg.Symbol, cfg.Profile(), price, session.Status(cfg.Profile().Crypto, now), now)

	case "news":
		if s.News == nil {
			return "📰 News monitoring is disabled."
		}
		return notifier.FormatNewsStatus(s.News.Status(now), s.News.Upcoming(now), now)

	case "signalchange":
		if args == "" {
			return fmt.Sprintf("Usage: /signalchange &lt;symbol&gt;\nAvailable: %s", strings.Join(sortedSymbols(cfg.Symbols()), ", "))
		}
		old := cfg.Symbol
		next, err := s.Config.SwitchSymbol(args)
		if err != nil {
			return fmt.Sprintf("❌ %s\nAvailable: %s", html.EscapeString(err.Error()), strings.Join(sortedSymbols(cfg.Symbols()), ", "))
		}
		log.Info().Str("component", "scheduler").Str("from", old).Str("to", next.Symbol).Msg("symbol changed")
		return notifier.FormatSymbolChange(old, next.Symbol, next.Profile())

	case "symbol":
		return notifier.FormatSymbol(cfg.Symbol, cfg.Profile())

	case "weights":
		w, err := s.Weights.Load()
		reply := notifier.FormatWeights(w)
		if err != nil {
			reply += "\n\n⚠️ Using defaults: " + html.EscapeString(err.Error())
		}
		return reply

	default:
		return notifier.FormatHelp(cfg.Symbols())
	}
}

func sortedSymbols(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
