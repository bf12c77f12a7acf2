package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"GoldPulse/internal/weights"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration. A loaded Config is treated as
// immutable; use WithSymbol to derive a changed copy.
type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Symbol   string         `yaml:"symbol"`
	Signal   SignalConfig   `yaml:"signal"`
	Risk     RiskConfig     `yaml:"risk"`
	Data     DataConfig     `yaml:"data"`
	Redis    RedisConfig    `yaml:"redis"`
	Learning LearningConfig `yaml:"learning"`
	News     NewsConfig     `yaml:"news"`
	Chart    ChartConfig    `yaml:"chart"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Storage struct {
		WeightsFile string `yaml:"weights_file"`
	} `yaml:"storage"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

// SignalConfig drives the aggregator.
type SignalConfig struct {
	MinScore        float64     `yaml:"min_score"`
	Timeframes      []int       `yaml:"timeframes"` // minutes, evaluation order
	TopReasons      int         `yaml:"top_reasons"`
	CandleLimit     int         `yaml:"candle_limit"`
	HTFBias         bool        `yaml:"htf_bias"`
	StrategyWeights weights.Map `yaml:"strategy_weights"`
}

// RiskConfig drives the risk calculator.
type RiskConfig struct {
	RiskPercentage float64                  `yaml:"risk_percentage"`
	AccountBalance float64                  `yaml:"account_balance"`
	MaxLossWarning float64                  `yaml:"max_loss_warning"`
	Profiles       map[string]SymbolProfile `yaml:"profiles"`
}

// SymbolProfile describes one tradable instrument.
type SymbolProfile struct {
	Name          string    `yaml:"name"`
	Crypto        bool      `yaml:"crypto"`
	DefaultSL     float64   `yaml:"default_sl"`
	TPLevels      []float64 `yaml:"tp_levels"`
	MinDistance   float64   `yaml:"min_distance"`
	MaxSL         float64   `yaml:"max_sl"`
	ContractSize  float64   `yaml:"contract_size"`
	MaxSize       float64   `yaml:"max_size"`
	SizeDecimals  int32     `yaml:"size_decimals"`
	PriceDecimals int32     `yaml:"price_decimals"`
	Unit          string    `yaml:"unit"`
	PriceMin      float64   `yaml:"price_min"`
	PriceMax      float64   `yaml:"price_max"`
	YahooSymbols  []string  `yaml:"yahoo_symbols"`
	BinanceSymbol string    `yaml:"binance_symbol"`
	RiskNote      string    `yaml:"risk_note"`
}

// DataConfig configures the ranked candle sources.
type DataConfig struct {
	Sources         []string      `yaml:"sources"`
	RESTBaseURL     string        `yaml:"rest_base_url"`
	RESTAPIKey      string        `yaml:"rest_api_key"`
	HTTPTimeout     time.Duration `yaml:"http_timeout"`
	BreakerFailures int           `yaml:"breaker_failures"`
	BreakerCooldown time.Duration `yaml:"breaker_cooldown"`
	CacheTTL        time.Duration `yaml:"cache_ttl"`
}

// RedisConfig enables the shared candle cache when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LearningConfig tunes the weight optimizer and the position monitor.
type LearningConfig struct {
	MinTrades           int           `yaml:"min_trades"`
	QuickWindow         int           `yaml:"quick_window"`
	QuickMinTrades      int           `yaml:"quick_min_trades"`
	QuickMinPerStrategy int           `yaml:"quick_min_per_strategy"`
	QuickEverySignals   int           `yaml:"quick_every_signals"`
	ProfitBonus         float64       `yaml:"profit_bonus"`
	MaxTradeAge         time.Duration `yaml:"max_trade_age"`
}

// NewsConfig configures the economic calendar monitor.
type NewsConfig struct {
	Enabled     bool   `yaml:"enabled"`
	FeedURL     string `yaml:"feed_url"`
	Currency    string `yaml:"currency"`
	AlertMinMin int    `yaml:"alert_min_minutes"`
	AlertMaxMin int    `yaml:"alert_max_minutes"`
}

// ChartConfig controls the chart sent ahead of each signal.
type ChartConfig struct {
	Enabled bool `yaml:"enabled"`
	Bars    int  `yaml:"bars"`
}

// ScheduleConfig holds six-field cron expressions.
type ScheduleConfig struct {
	Analysis      string `yaml:"analysis"`
	Monitor       string `yaml:"monitor"`
	QuickOptimize string `yaml:"quick_optimize"`
	DeepOptimize  string `yaml:"deep_optimize"`
	DailyReport   string `yaml:"daily_report"`
	MorningPrep   string `yaml:"morning_prep"`
	NewsRefresh   string `yaml:"news_refresh"`
	NewsAlerts    string `yaml:"news_alerts"`
}

// DefaultWeights is the initial weight map for XAUUSD. trend_momentum and
// market_structure start at zero: they are evaluated and recorded, and vote
// once config or the weight file gives them weight.
func DefaultWeights() weights.Map {
	return weights.Map{
		"smc":                0.25,
		"support_resistance": 0.20,
		"price_action":       0.15,
		"bollinger":          0.12,
		"fvg":                0.10,
		"patterns":           0.08,
		"volume":             0.05,
		"candlesticks":       0.05,
		"trend_momentum":     0,
		"market_structure":   0,
	}
}

// DefaultProfiles returns the built-in instrument profiles.
func DefaultProfiles() map[string]SymbolProfile {
	return map[string]SymbolProfile{
		"XAUUSD": {
			Name:          "Gold",
			DefaultSL:     8,
			TPLevels:      []float64{5, 10, 15, 25},
			MinDistance:   2,
			MaxSL:         20,
			ContractSize:  100,
			MaxSize:       1,
			SizeDecimals:  3,
			PriceDecimals: 2,
			Unit:          "lots",
			PriceMin:      1500,
			PriceMax:      6000,
			YahooSymbols:  []string{"XAUUSD=X", "GC=F"},
			RiskNote:      "Gold can gap during news events",
		},
		"BTCUSD": {
			Name:          "Bitcoin",
			Crypto:        true,
			DefaultSL:     300,
			TPLevels:      []float64{500, 1000, 1500, 2500},
			MinDistance:   100,
			MaxSL:         1000,
			ContractSize:  1,
			MaxSize:       0.1,
			SizeDecimals:  6,
			PriceDecimals: 2,
			Unit:          "BTC",
			PriceMin:      10000,
			PriceMax:      500000,
			YahooSymbols:  []string{"BTC-USD"},
			BinanceSymbol: "BTCUSDT",
			RiskNote:      "High volatility asset, use tight risk management",
		},
	}
}

// Load reads .env, then the YAML file, then environment overrides, then defaults.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	cfg.Signal.StrategyWeights = cfg.Signal.StrategyWeights.Normalize()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := firstEnv("TELEGRAM_CHAT_ID", "TELEGRAM_GROUP_ID"); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv("SYMBOL"); v != "" {
		c.Symbol = strings.ToUpper(v)
	}
	if v := os.Getenv("MIN_SIGNAL_SCORE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("MIN_SIGNAL_SCORE: %w", err)
		}
		c.Signal.MinScore = f
	}
	if v := os.Getenv("RISK_PERCENTAGE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("RISK_PERCENTAGE: %w", err)
		}
		c.Risk.RiskPercentage = f
	}
	if v := os.Getenv("TIMEFRAMES"); v != "" {
		tfs, err := parseTimeframes(v)
		if err != nil {
			return fmt.Errorf("TIMEFRAMES: %w", err)
		}
		c.Signal.Timeframes = tfs
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		c.Proxy = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Database.SQLitePath = v
	}
	if v := os.Getenv("WEIGHTS_FILE"); v != "" {
		c.Storage.WeightsFile = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("REST_BASE_URL"); v != "" {
		c.Data.RESTBaseURL = v
	}
	if v := os.Getenv("REST_API_KEY"); v != "" {
		c.Data.RESTAPIKey = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Symbol == "" {
		c.Symbol = "XAUUSD"
	}
	c.Symbol = strings.ToUpper(c.Symbol)

	if c.Signal.MinScore == 0 {
		c.Signal.MinScore = 78
	}
	if len(c.Signal.Timeframes) == 0 {
		c.Signal.Timeframes = []int{15, 30, 60}
	}
	if c.Signal.TopReasons == 0 {
		c.Signal.TopReasons = 5
	}
	if c.Signal.CandleLimit == 0 {
		c.Signal.CandleLimit = 500
	}
	if len(c.Signal.StrategyWeights) == 0 {
		c.Signal.StrategyWeights = DefaultWeights()
	}

	if c.Risk.RiskPercentage == 0 {
		c.Risk.RiskPercentage = 2
	}
	if c.Risk.AccountBalance == 0 {
		c.Risk.AccountBalance = 10000
	}
	if c.Risk.MaxLossWarning == 0 {
		c.Risk.MaxLossWarning = 200
	}
	profiles := DefaultProfiles()
	for k, p := range c.Risk.Profiles {
		profiles[strings.ToUpper(k)] = p
	}
	c.Risk.Profiles = profiles

	if len(c.Data.Sources) == 0 {
		c.Data.Sources = []string{"binance", "yahoo", "rest"}
	}
	if c.Data.HTTPTimeout == 0 {
		c.Data.HTTPTimeout = 15 * time.Second
	}
	if c.Data.BreakerFailures == 0 {
		c.Data.BreakerFailures = 3
	}
	if c.Data.BreakerCooldown == 0 {
		c.Data.BreakerCooldown = 5 * time.Minute
	}
	if c.Data.CacheTTL == 0 {
		c.Data.CacheTTL = time.Minute
	}

	if c.Learning.MinTrades == 0 {
		c.Learning.MinTrades = 5
	}
	if c.Learning.QuickWindow == 0 {
		c.Learning.QuickWindow = 20
	}
	if c.Learning.QuickMinTrades == 0 {
		c.Learning.QuickMinTrades = 5
	}
	if c.Learning.QuickMinPerStrategy == 0 {
		c.Learning.QuickMinPerStrategy = 2
	}
	if c.Learning.QuickEverySignals == 0 {
		c.Learning.QuickEverySignals = 5
	}
	if c.Learning.ProfitBonus == 0 {
		c.Learning.ProfitBonus = 50
	}
	if c.Learning.MaxTradeAge == 0 {
		c.Learning.MaxTradeAge = 24 * time.Hour
	}

	if c.News.FeedURL == "" {
		c.News.FeedURL = "https://nfs.faireconomy.media/ff_calendar_thisweek.json"
	}
	if c.News.Currency == "" {
		c.News.Currency = "USD"
	}
	if c.News.AlertMinMin == 0 {
		c.News.AlertMinMin = 55
	}
	if c.News.AlertMaxMin == 0 {
		c.News.AlertMaxMin = 65
	}
	if c.Chart.Bars <= 0 {
		c.Chart.Bars = 100
	}

	s := &c.Schedule
	setDefault(&s.Analysis, "0 */5 * * * *")
	setDefault(&s.Monitor, "15 * * * * *")
	setDefault(&s.QuickOptimize, "0 */30 * * * *")
	setDefault(&s.DeepOptimize, "0 0 */6 * * *")
	setDefault(&s.DailyReport, "0 0 22 * * *")
	setDefault(&s.MorningPrep, "0 0 7 * * *")
	setDefault(&s.NewsRefresh, "0 */30 * * * *")
	setDefault(&s.NewsAlerts, "45 * * * * *")

	setDefault(&c.Database.SQLitePath, "data/goldpulse.db")
	setDefault(&c.Storage.WeightsFile, "data/strategy_weights.json")
	setDefault(&c.Log.Level, "info")
}

// Validate checks value ranges. Telegram credentials are checked by RequireTelegram.
func (c *Config) Validate() error {
	if c.Signal.MinScore < 50 || c.Signal.MinScore > 100 {
		return fmt.Errorf("signal.min_score must be within [50,100], got %.1f", c.Signal.MinScore)
	}
	if len(c.Signal.Timeframes) == 0 {
		return fmt.Errorf("signal.timeframes must not be empty")
	}
	for _, tf := range c.Signal.Timeframes {
		if tf <= 0 {
			return fmt.Errorf("signal.timeframes: invalid timeframe %d", tf)
		}
	}
	if err := c.Signal.StrategyWeights.Validate(nil); err != nil {
		return fmt.Errorf("signal.strategy_weights: %w", err)
	}
	if c.Risk.RiskPercentage <= 0 || c.Risk.RiskPercentage > 5 {
		return fmt.Errorf("risk.risk_percentage must be within (0,5], got %.2f", c.Risk.RiskPercentage)
	}
	if c.Risk.AccountBalance <= 0 {
		return fmt.Errorf("risk.account_balance must be positive")
	}
	for sym, p := range c.Risk.Profiles {
		if err := p.validate(); err != nil {
			return fmt.Errorf("risk.profiles.%s: %w", sym, err)
		}
	}
	if _, ok := c.Risk.Profiles[c.Symbol]; !ok {
		return fmt.Errorf("symbol %q has no risk profile", c.Symbol)
	}
	if len(c.Data.Sources) == 0 {
		return fmt.Errorf("data.sources must not be empty")
	}
	return nil
}

// RequireTelegram checks the credentials needed by the bot runtime.
func (c *Config) RequireTelegram() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if c.Telegram.ChatID == "" {
		return fmt.Errorf("telegram.chat_id is required")
	}
	if _, err := strconv.ParseInt(c.Telegram.ChatID, 10, 64); err != nil {
		return fmt.Errorf("telegram.chat_id must be numeric: %w", err)
	}
	return nil
}

func (p SymbolProfile) validate() error {
	if p.DefaultSL <= 0 {
		return fmt.Errorf("default_sl must be positive")
	}
	if p.MinDistance <= 0 || p.MaxSL < p.MinDistance {
		return fmt.Errorf("min_distance/max_sl out of order")
	}
	if len(p.TPLevels) != 4 {
		return fmt.Errorf("tp_levels needs 4 entries, got %d", len(p.TPLevels))
	}
	for i := 1; i < len(p.TPLevels); i++ {
		if p.TPLevels[i] <= p.TPLevels[i-1] {
			return fmt.Errorf("tp_levels must be ascending")
		}
	}
	if p.ContractSize <= 0 || p.MaxSize <= 0 {
		return fmt.Errorf("contract_size and max_size must be positive")
	}
	if p.PriceMax > 0 && p.PriceMax <= p.PriceMin {
		return fmt.Errorf("price_max must exceed price_min")
	}
	return nil
}

// Profile returns the active instrument profile.
func (c *Config) Profile() SymbolProfile {
	return c.Risk.Profiles[c.Symbol]
}

// Symbols lists the configured instruments.
func (c *Config) Symbols() []string {
	out := make([]string, 0, len(c.Risk.Profiles))
	for s := range c.Risk.Profiles {
		out = append(out, s)
	}
	return out
}

// WithSymbol returns a copy of c targeting another instrument. c is not modified.
func (c *Config) WithSymbol(symbol string) (*Config, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if _, ok := c.Risk.Profiles[symbol]; !ok {
		return nil, fmt.Errorf("unknown symbol %q", symbol)
	}
	next := c.clone()
	next.Symbol = symbol
	return next, nil
}

func (c *Config) clone() *Config {
	next := *c
	next.Signal.Timeframes = append([]int(nil), c.Signal.Timeframes...)
	next.Signal.StrategyWeights = c.Signal.StrategyWeights.Clone()
	next.Data.Sources = append([]string(nil), c.Data.Sources...)
	next.Risk.Profiles = make(map[string]SymbolProfile, len(c.Risk.Profiles))
	for k, p := range c.Risk.Profiles {
		p.TPLevels = append([]float64(nil), p.TPLevels...)
		p.YahooSymbols = append([]string(nil), p.YahooSymbols...)
		next.Risk.Profiles[k] = p
	}
	return &next
}

func parseTimeframes(v string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func setDefault(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}
