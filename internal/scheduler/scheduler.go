package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"GoldPulse/internal/aggregator"
	"GoldPulse/internal/chart"
	"GoldPulse/internal/collector"
	"GoldPulse/internal/config"
	"GoldPulse/internal/learning"
	"GoldPulse/internal/logging"
	"GoldPulse/internal/metrics"
	"GoldPulse/internal/model"
	"GoldPulse/internal/news"
	"GoldPulse/internal/notifier"
	"GoldPulse/internal/recorder"
	"GoldPulse/internal/risk"
	"GoldPulse/internal/session"
	"GoldPulse/internal/tracker"
	"GoldPulse/internal/weights"

	"github.com/jpillora/backoff"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Market is the data manager as seen by the scheduler.
type Market interface {
	GetData(ctx context.Context, symbol string, timeframe, limit int) (model.Series, error)
	GetCurrentPrice(ctx context.Context, symbol string) (float64, error)
	HealthCheck() []collector.Health
}

// Deps are the collaborators a Scheduler drives. News, Metrics and Notifier may be nil.
type Deps struct {
	Config     *config.Live
	Market     Market
	Aggregator *aggregator.Aggregator
	Weights    *weights.Store
	Optimizer  *learning.Optimizer
	Monitor    *tracker.Monitor
	News       *news.Monitor
	Notifier   notifier.Sender
	Recorder   recorder.Recorder
	Metrics    *metrics.Metrics
}

// Scheduler manages all cron tasks.
type Scheduler struct {
	Deps
	Cron *cron.Cron
	Ctx  context.Context

	now          func() time.Time
	signals      atomic.Int64
	newsAttempts int
	retry        func() *backoff.Backoff
}

// NewScheduler creates a new Scheduler. Jobs never overlap with themselves.
func NewScheduler(ctx context.Context, deps Deps) *Scheduler {
	logger := logging.CronLogger()
	if deps.Recorder == nil {
		deps.Recorder = recorder.NewNoopRecorder()
	}
	return &Scheduler{
		Deps: deps,
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		Ctx:          ctx,
		now:          time.Now,
		newsAttempts: 3,
		retry: func() *backoff.Backoff {
			return &backoff.Backoff{Min: 2 * time.Second, Max: 30 * time.Second, Factor: 2, Jitter: true}
		},
	}
}

type job struct {
	name string
	spec string
	fn   func()
}

// RegisterAll registers every job from the schedule section.
func (s *Scheduler) RegisterAll(sc config.ScheduleConfig) error {
	jobs := []job{
		{"analysis", sc.Analysis, func() { _, _ = s.RunAnalysis(s.Ctx) }},
		{"monitor", sc.Monitor, func() { s.CheckPositions(s.Ctx) }},
		{"quick optimize", sc.QuickOptimize, s.quickOptimize},
		{"deep optimize", sc.DeepOptimize, func() { _, _ = s.DeepOptimize() }},
		{"daily report", sc.DailyReport, func() { s.SendDailyReport(s.Ctx) }},
		{"morning prep", sc.MorningPrep, func() { s.morningPrep(s.Ctx) }},
	}
	if s.News != nil {
		jobs = append(jobs,
			job{"news refresh", sc.NewsRefresh, func() { s.RefreshNews(s.Ctx) }},
			job{"news alerts", sc.NewsAlerts, func() { s.CheckNews(s.Ctx) }},
		)
	}
	for _, j := range jobs {
		if _, err := s.Cron.AddFunc(j.spec, j.fn); err != nil {
			return fmt.Errorf("register %s task: %w", j.name, err)
		}
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Info().Str("component", "scheduler").Int("jobs", len(s.Cron.Entries())).Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Info().Str("component", "scheduler").Msg("scheduler stopped")
}

// RunAnalysis runs one analysis cycle against the current config snapshot. It
// returns the emitted signal, or nil when the cycle stayed silent.
func (s *Scheduler) RunAnalysis(ctx context.Context) (*model.Signal, error) {
	cfg := s.Config.Get()
	start := s.now()
	defer func() { s.Metrics.ObserveCycle(s.now().Sub(start)) }()
	logger := log.With().Str("component", "scheduler").Str("symbol", cfg.Symbol).Logger()

	if !session.IsOpen(cfg.Profile().Crypto, start) {
		logger.Debug().Msg("market closed, skipping analysis")
		return nil, nil
	}

	w, err := s.Weights.Load()
	if err != nil {
		logger.Warn().Err(err).Msg("weights unusable, using defaults")
	}

	sig, outcomes, err := s.Aggregator.Evaluate(ctx, cfg, w)
	s.recordCycles(cfg.Symbol, outcomes, sig)
	if err != nil {
		logger.Warn().Err(err).Msg("analysis produced no data")
		return nil, err
	}
	if sig == nil {
		logger.Info().Msg("no qualifying signal")
		return nil, nil
	}

	planned, err := risk.Plan(cfg, sig)
	if err != nil {
		logger.Error().Err(err).Msg("risk planning failed, dropping signal")
		return nil, err
	}
	s.Metrics.SignalEmitted(string(planned.Direction))
	logger.Info().Str("direction", string(planned.Direction)).Float64("score", planned.Score).
		Int("timeframe", planned.Timeframe).Float64("entry", planned.Entry).Msg("signal emitted")

	// One delivery attempt per signal; the next cycle is unaffected by a failure.
	s.sendChart(ctx, cfg, planned)
	s.send(ctx, notifier.FormatSignal(planned, cfg.Profile()), false)

	if err := s.Recorder.RecordTrade(model.NewTradeRecord(planned)); err != nil {
		logger.Error().Err(err).Msg("record trade failed")
	}

	if every := int64(cfg.Learning.QuickEverySignals); every > 0 && s.signals.Add(1)%every == 0 {
		s.quickOptimize()
	}
	return planned, nil
}

// sendChart posts the signal chart when the notifier can carry photos. A
// missing chart never blocks the signal text.
func (s *Scheduler) sendChart(ctx context.Context, cfg *config.Config, sig *model.Signal) {
	ps, ok := s.Notifier.(notifier.PhotoSender)
	if !ok || !cfg.Chart.Enabled {
		return
	}
	logger := log.With().Str("component", "scheduler").Str("symbol", sig.Symbol).Logger()
	bars, err := s.Market.GetData(ctx, sig.Symbol, sig.Timeframe, cfg.Signal.CandleLimit)
	if err != nil {
		logger.Warn().Err(err).Msg("chart data unavailable")
		return
	}
	png, err := chart.Render(bars, sig, cfg.Chart.Bars)
	if err != nil {
		logger.Warn().Err(err).Msg("render chart failed")
		return
	}
	if err := ps.SendPhoto(ctx, png, notifier.FormatChartCaption(sig)); err != nil {
		s.Metrics.NotificationFailed()
		logger.Warn().Err(err).Msg("send chart failed")
	}
}

func (s *Scheduler) recordCycles(symbol string, outcomes []aggregator.TimeframeResult, best *model.Signal) {
	for _, o := range outcomes {
		evt := &recorder.CycleEvent{
			Symbol:    symbol,
			Timeframe: o.Timeframe,
			Bars:      o.Bars,
			BuyScore:  o.BuyScore,
			SellScore: o.SellScore,
			Direction: model.Neutral,
		}
		if o.Signal != nil {
			evt.Direction = o.Signal.Direction
		}
		if o.Skipped != nil {
			evt.Note = o.Skipped.Error()
		}
		evt.Emitted = best != nil && o.Signal == best
		if err := s.Recorder.RecordCycle(evt); err != nil {
			log.Warn().Str("component", "scheduler").Err(err).Msg("record cycle failed")
		}
	}
}

// CheckPositions resolves open trades against recent bars.
func (s *Scheduler) CheckPositions(ctx context.Context) {
	cfg := s.Config.Get()
	res, err := s.Monitor.Check(ctx, cfg)
	if err != nil {
		log.Warn().Str("component", "scheduler").Err(err).Msg("position check failed")
	}
	for _, r := range res {
		s.Metrics.TradeClosed(r.Closure.Level)
		s.send(ctx, notifier.FormatClosure(r.Trade, r.Closure), true)
	}
	if open, err := s.Recorder.OpenTrades(""); err == nil {
		s.Metrics.SetOpenTrades(len(open))
	}
}

func (s *Scheduler) quickOptimize() {
	cfg := s.Config.Get()
	res, err := s.Optimizer.QuickOptimize(cfg.Symbol)
	if err != nil {
		if errors.Is(err, learning.ErrNotEnoughTrades) {
			log.Debug().Str("component", "scheduler").Err(err).Msg("quick optimization skipped")
			return
		}
		log.Error().Str("component", "scheduler").Err(err).Msg("quick optimization failed")
		return
	}
	s.Metrics.WeightsUpdated(res.Kind)
}

// DeepOptimize re-weights strategies from the full trade history.
func (s *Scheduler) DeepOptimize() (*learning.Result, error) {
	cfg := s.Config.Get()
	res, err := s.Optimizer.Optimize(cfg.Symbol)
	if err != nil {
		if errors.Is(err, learning.ErrNotEnoughTrades) {
			log.Info().Str("component", "scheduler").Msg("no closed trades yet, deep optimization skipped")
		} else {
			log.Error().Str("component", "scheduler").Err(err).Msg("deep optimization failed")
		}
		return nil, err
	}
	s.Metrics.WeightsUpdated(res.Kind)
	return res, nil
}

// BuildReport gathers the daily performance report for the active symbol.
func (s *Scheduler) BuildReport() (notifier.Report, error) {
	cfg := s.Config.Get()
	now := s.now().UTC()
	all, err := s.Recorder.TradesSince(time.Time{})
	if err != nil {
		return notifier.Report{}, fmt.Errorf("load trades: %w", err)
	}
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	var trades []*model.TradeRecord
	today := 0
	for _, t := range all {
		if t.Symbol != cfg.Symbol {
			continue
		}
		trades = append(trades, t)
		if !t.Timestamp.Before(dayStart) {
			today++
		}
	}
	sum := tracker.Summarize(trades)
	w, _ := s.Weights.Load()
	return notifier.Report{
		Date:         now,
		Symbol:       cfg.Symbol,
		Summary:      sum,
		Today:        today,
		BestStrategy: heaviest(w),
		Phase:        learning.Phase(sum.WinRate),
	}, nil
}

// SendDailyReport posts the performance report.
func (s *Scheduler) SendDailyReport(ctx context.Context) {
	r, err := s.BuildReport()
	if err != nil {
		log.Error().Str("component", "scheduler").Err(err).Msg("build report failed")
		return
	}
	s.send(ctx, notifier.FormatReport(r), true)
}

func (s *Scheduler) morningPrep(ctx context.Context) {
	cfg := s.Config.Get()
	now := s.now()
	if !session.IsOpen(cfg.Profile().Crypto, now) {
		return
	}
	w, _ := s.Weights.Load()
	var upcoming []model.NewsEvent
	if s.News != nil {
		upcoming = s.News.Upcoming(now)
	}
	focus := session.Timeframes(session.Current(now))
	s.send(ctx, notifier.FormatMorning(cfg.Symbol, session.Status(cfg.Profile().Crypto, now), focus, w, upcoming), true)
}

// RefreshNews reloads today's calendar, retrying with backoff. The monitor
// keeps the static schedule while the feed is down.
func (s *Scheduler) RefreshNews(ctx context.Context) {
	if s.News == nil {
		return
	}
	b := s.retry()
	for attempt := 1; attempt <= s.newsAttempts; attempt++ {
		err := s.News.Refresh(ctx)
		if err == nil {
			return
		}
		if attempt == s.newsAttempts {
			log.Warn().Str("component", "scheduler").Err(err).Msg("news feed unavailable, using fallback schedule")
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(b.Duration()):
		}
	}
}

// CheckNews sends alerts for high-impact events about to start.
func (s *Scheduler) CheckNews(ctx context.Context) {
	if s.News == nil {
		return
	}
	now := s.now()
	for _, e := range s.News.Due(now) {
		s.send(ctx, notifier.FormatNewsAlert(e, now), true)
	}
}

// send delivers text. With retry it backs off on failure; without it makes
// exactly one attempt.
func (s *Scheduler) send(ctx context.Context, text string, retry bool) {
	if s.Notifier == nil {
		return
	}
	var err error
	if retry {
		err = notifier.SendWithRetry(ctx, s.Notifier, text, 2, s.retry())
	} else {
		err = s.Notifier.Send(ctx, text)
	}
	if err != nil {
		s.Metrics.NotificationFailed()
		log.Error().Str("component", "scheduler").Err(err).Msg("send notification failed")
	}
}

func heaviest(w weights.Map) string {
	names := w.Names()
	if len(names) == 0 {
		return ""
	}
	sort.SliceStable(names, func(i, j int) bool { return w[names[i]] > w[names[j]] })
	return names[0]
}
