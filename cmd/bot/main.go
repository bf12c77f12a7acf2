package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"
	"time"

	"GoldPulse/internal/aggregator"
	"GoldPulse/internal/collector"
	"GoldPulse/internal/config"
	"GoldPulse/internal/learning"
	"GoldPulse/internal/logging"
	"GoldPulse/internal/metrics"
	"GoldPulse/internal/news"
	"GoldPulse/internal/notifier"
	"GoldPulse/internal/recorder"
	"GoldPulse/internal/scheduler"
	"GoldPulse/internal/session"
	"GoldPulse/internal/strategy"
	"GoldPulse/internal/tracker"
	"GoldPulse/internal/weights"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	cfgPath string
	symbol  string
	cfg     *config.Config
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "goldpulse",
		Short: "XAUUSD / BTCUSD trading signal bot",
		Long: `goldpulse analyses gold and bitcoin candles on several timeframes,
scores them with a weighted set of strategies and posts qualifying signals to Telegram.`,
		PersistentPreRunE: loadConfig,
		RunE:              runBot,
		SilenceUsage:      true,
	}

	defaultPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defaultPath = v
	}
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", defaultPath, "Path to the YAML config file")
	rootCmd.PersistentFlags().StringVarP(&symbol, "symbol", "s", "", "Override the active symbol (XAUUSD, BTCUSD)")

	rootCmd.AddCommand(
		&cobra.Command{Use: "run", Short: "Run the full bot (default)", RunE: runBot},
		&cobra.Command{Use: "analyze", Short: "Run one analysis cycle and print the result", RunE: runAnalyze},
		&cobra.Command{Use: "optimize", Short: "Run one deep weight optimization", RunE: runOptimize},
		&cobra.Command{Use: "weights", Short: "Print the current strategy weights", RunE: runWeights},
		&cobra.Command{Use: "health", Short: "Check every data source", RunE: runHealth},
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(_ *cobra.Command, _ []string) error {
	c, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if symbol != "" {
		if c, err = c.WithSymbol(symbol); err != nil {
			return err
		}
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	logging.Init(c.Log.Level, c.Log.Pretty)
	cfg = c
	return nil
}

// app holds the components shared by every subcommand.
type app struct {
	market  *collector.Manager
	store   *weights.Store
	rec     recorder.Recorder
	metrics *metrics.Metrics
	closers []func() error
}

func newApp(ctx context.Context, journal bool) (*app, error) {
	a := &app{metrics: metrics.New()}
	hc := collector.NewHTTPClient(cfg.Proxy, cfg.Data.HTTPTimeout)

	sources, err := collector.BuildSources(cfg, hc)
	if err != nil {
		return nil, err
	}
	var cache collector.Cache = collector.NewMemoryCache()
	if cfg.Redis.Addr != "" {
		rc := collector.NewRedisCache(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		a.closers = append(a.closers, rc.Close)
		cache = rc
	}
	a.market = collector.NewManager(sources, cache, cfg.Data, cfg.Risk.Profiles)
	a.market.SetObserver(a.metrics)
	a.store = weights.NewStore(cfg.Storage.WeightsFile, cfg.Signal.StrategyWeights)

	a.rec = recorder.NewNoopRecorder()
	if journal && cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			log.Warn().Str("component", "main").Err(err).Msg("init sqlite recorder failed, using noop")
		} else {
			a.rec = sr
			a.closers = append(a.closers, sr.Close)
		}
	}
	return a, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Str("component", "main").Err(err).Msg("close failed")
		}
	}
}

// newScheduler wires the analysis pipeline. A nil sender keeps every message local.
func (a *app) newScheduler(ctx context.Context, live *config.Live, sender notifier.Sender, nm *news.Monitor) *scheduler.Scheduler {
	return scheduler.NewScheduler(ctx, scheduler.Deps{
		Config:     live,
		Market:     a.market,
		Aggregator: aggregator.New(a.market, strategy.Default()),
		Weights:    a.store,
		Optimizer:  learning.NewOptimizer(a.store, a.rec, live.Get().Learning),
		Monitor:    tracker.NewMonitor(a.market, a.rec),
		News:       nm,
		Notifier:   sender,
		Recorder:   a.rec,
		Metrics:    a.metrics,
	})
}

func runBot(cmd *cobra.Command, _ []string) error {
	if err := cfg.RequireTelegram(); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Str("component", "main").Str("symbol", cfg.Symbol).Strs("sources", cfg.Data.Sources).Msg("GoldPulse starting")
	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	chatID, _ := strconv.ParseInt(cfg.Telegram.ChatID, 10, 64)
	tg, err := notifier.NewTelegram(cfg.Telegram.BotToken, chatID, "", collector.NewHTTPClient(cfg.Proxy, 40*time.Second))
	if err != nil {
		return err
	}

	var nm *news.Monitor
	if cfg.News.Enabled {
		client := news.NewClient(collector.NewHTTPClient(cfg.Proxy, cfg.Data.HTTPTimeout), cfg.News.FeedURL, cfg.News.Currency)
		nm = news.NewMonitor(client, time.Duration(cfg.News.AlertMinMin)*time.Minute, time.Duration(cfg.News.AlertMaxMin)*time.Minute)
	}

	live := config.NewLive(cfg)
	sched := a.newScheduler(ctx, live, tg, nm)
	if err := sched.RegisterAll(cfg.Schedule); err != nil {
		return fmt.Errorf("register cron tasks: %w", err)
	}
	if nm != nil {
		sched.RefreshNews(ctx)
	}
	sched.Start()
	defer sched.Stop()

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := a.metrics.Serve(ctx, cfg.Metrics.Addr, healthFunc(a.market)); err != nil {
				log.Error().Str("component", "main").Err(err).Msg("metrics server failed")
			}
		}()
	}

	go tg.StartPolling(ctx, sched.HandleCommand)

	if err := tg.SendWithRetry(ctx, notifier.FormatStart(cfg.Symbol), 2); err != nil {
		log.Warn().Str("component", "main").Err(err).Msg("startup message failed")
	}
	if os.Getenv("RUN_ON_START") == "true" {
		log.Info().Str("component", "main").Msg("RUN_ON_START enabled, running analysis now")
		go func() { _, _ = sched.RunAnalysis(ctx) }()
	}

	log.Info().Str("component", "main").Msg("GoldPulse is running, press Ctrl+C to stop")
	<-ctx.Done()
	log.Info().Str("component", "main").Msg("shutdown signal received, stopping")
	return nil
}

func healthFunc(m *collector.Manager) metrics.HealthFunc {
	return func() (bool, any) {
		health := m.HealthCheck()
		return collector.Healthy(health), health
	}
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.close()

	if !session.IsOpen(cfg.Profile().Crypto, time.Now()) {
		fmt.Println(session.Status(cfg.Profile().Crypto, time.Now()))
		return nil
	}
	sig, err := a.newScheduler(ctx, config.NewLive(cfg), nil, nil).RunAnalysis(ctx)
	if err != nil {
		return err
	}
	if sig == nil {
		fmt.Printf("%s: no qualifying signal (min score %.0f)\n", cfg.Symbol, cfg.Signal.MinScore)
		return nil
	}
	fmt.Printf("%s %s %s score %.1f\n", sig.Symbol, sig.Direction, sig.TimeframeLabel(), sig.Score)
	fmt.Printf("  entry %.2f  sl %.2f  size %g %s\n", sig.Entry, sig.SL, sig.PositionSize, cfg.Profile().Unit)
	for i, tp := range sig.TP {
		fmt.Printf("  tp%d %.2f (rr %.2f)\n", i+1, tp, sig.RiskReward[i])
	}
	for _, r := range sig.Reasons {
		fmt.Printf("  - %s\n", r)
	}
	for _, w := range sig.Warnings {
		fmt.Printf("  ! %s\n", w)
	}
	return nil
}

func runOptimize(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer a.close()

	res, err := a.newScheduler(cmd.Context(), config.NewLive(cfg), nil, nil).DeepOptimize()
	if err != nil {
		return err
	}
	fmt.Printf("deep optimization over %d trades\n", res.Trades)
	for _, c := range res.Changed {
		fmt.Printf("  * %s\n", c)
	}
	for _, name := range sortedByWeight(res.After) {
		fmt.Printf("  %-20s %.4f -> %.4f\n", name, res.Before[name], res.After[name])
	}
	return nil
}

func runWeights(cmd *cobra.Command, _ []string) error {
	store := weights.NewStore(cfg.Storage.WeightsFile, cfg.Signal.StrategyWeights)
	w, err := store.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v (showing defaults)\n", err)
	}
	fmt.Printf("%s\n", store.Path())
	for _, name := range sortedByWeight(w) {
		fmt.Printf("  %-20s %.4f\n", name, w[name])
	}
	return nil
}

func runHealth(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.close()

	price, err := a.market.GetCurrentPrice(ctx, cfg.Symbol)
	if err != nil {
		fmt.Printf("%s price: unavailable (%v)\n", cfg.Symbol, err)
	} else {
		fmt.Printf("%s price: %.2f\n", cfg.Symbol, price)
	}
	for _, h := range a.market.HealthCheck() {
		last := "never"
		if !h.LastSuccess.IsZero() {
			last = h.LastSuccess.Format(time.RFC3339)
		}
		fmt.Printf("  %-8s %-9s last ok %s %s\n", h.Name, h.State, last, h.LastError)
	}
	return nil
}

func sortedByWeight(w weights.Map) []string {
	names := w.Names()
	sort.SliceStable(names, func(i, j int) bool { return w[names[i]] > w[names[j]] })
	return names
}
