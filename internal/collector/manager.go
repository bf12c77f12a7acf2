package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"GoldPulse/internal/config"
	"GoldPulse/internal/model"

	"github.com/rs/zerolog/log"
)

// ErrAllSourcesFailed wraps the per-source errors of a failed lookup.
var ErrAllSourcesFailed = errors.New("all data sources failed")

// Observer receives per-source fetch outcomes.
type Observer interface {
	ObserveFetch(source string, ok bool, elapsed time.Duration)
	ObserveBreaker(source string, state BreakerState)
}

type managedSource struct {
	src     Source
	breaker *Breaker

	mu          sync.Mutex
	lastErr     error
	lastSuccess time.Time
}

// Health reports one source's availability. Idle sources have not completed
// a supported request yet.
type Health struct {
	Name        string
	State       string
	LastError   string
	LastSuccess time.Time
	Idle        bool
}

// Healthy reports whether some source with a closed breaker has served data.
// Before any source has been used the manager counts as healthy.
func Healthy(health []Health) bool {
	idle := true
	for _, h := range health {
		if h.Idle {
			continue
		}
		idle = false
		if h.State == StateClosed.String() && !h.LastSuccess.IsZero() {
			return true
		}
	}
	return idle
}

// Manager tries ranked sources in order, validates what they return and
// caches good candle windows.
type Manager struct {
	sources  []*managedSource
	cache    Cache
	cacheTTL time.Duration
	profiles map[string]config.SymbolProfile
	observer Observer
}

// NewManager wires sources behind per-source breakers. cache may be nil.
func NewManager(sources []Source, cache Cache, cfg config.DataConfig, profiles map[string]config.SymbolProfile) *Manager {
	m := &Manager{cache: cache, cacheTTL: cfg.CacheTTL, profiles: profiles}
	for _, s := range sources {
		ms := &managedSource{src: s, breaker: NewBreaker(cfg.BreakerFailures, cfg.BreakerCooldown)}
		ms.breaker.Neutral = func(err error) bool { return errors.Is(err, ErrUnsupported) }
		name := s.Name()
		ms.breaker.OnStateChange = func(from, to BreakerState) {
			log.Warn().Str("component", "collector").Str("source", name).
				Str("from", from.String()).Str("to", to.String()).Msg("breaker state change")
			if m.observer != nil {
				m.observer.ObserveBreaker(name, to)
			}
		}
		m.sources = append(m.sources, ms)
	}
	return m
}

// SetObserver installs a fetch observer. Call before the manager is shared.
func (m *Manager) SetObserver(o Observer) { m.observer = o }

// GetData returns a normalised candle window from the first healthy source
// whose data passes validation.
func (m *Manager) GetData(ctx context.Context, symbol string, tf, limit int) (model.Series, error) {
	key := cacheKey(symbol, tf, limit)
	if m.cache != nil {
		if s, ok := m.cache.Get(ctx, key); ok && len(s) > 0 {
			return s, nil
		}
	}

	var errs []error
	for _, ms := range m.sources {
		var series model.Series
		err := m.call(ms, func() error {
			s, err := ms.src.FetchCandles(ctx, symbol, tf, limit)
			if err != nil {
				return err
			}
			s = s.Normalize()
			last, ok := s.Last()
			if !ok {
				return fmt.Errorf("no valid bars")
			}
			if err := m.checkPrice(symbol, last.Close); err != nil {
				return err
			}
			series = s
			return nil
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ms.src.Name(), err))
			continue
		}
		if m.cache != nil {
			m.cache.Set(ctx, key, series, m.cacheTTL)
		}
		return series, nil
	}
	return nil, fmt.Errorf("%w for %s %s: %w", ErrAllSourcesFailed, symbol, model.TimeframeLabel(tf), errors.Join(errs...))
}

// GetCurrentPrice returns the first in-range quote.
func (m *Manager) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	var errs []error
	for _, ms := range m.sources {
		var price float64
		err := m.call(ms, func() error {
			p, err := ms.src.FetchPrice(ctx, symbol)
			if err != nil {
				return err
			}
			if err := m.checkPrice(symbol, p); err != nil {
				return err
			}
			price = p
			return nil
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ms.src.Name(), err))
			continue
		}
		return price, nil
	}
	return 0, fmt.Errorf("%w for %s price: %w", ErrAllSourcesFailed, symbol, errors.Join(errs...))
}

// HealthCheck reports every source's breaker state and last outcome.
func (m *Manager) HealthCheck() []Health {
	out := make([]Health, 0, len(m.sources))
	for _, ms := range m.sources {
		ms.mu.Lock()
		h := Health{
			Name:        ms.src.Name(),
			State:       ms.breaker.State().String(),
			LastSuccess: ms.lastSuccess,
			Idle:        ms.lastSuccess.IsZero() && ms.lastErr == nil,
		}
		if ms.lastErr != nil {
			h.LastError = ms.lastErr.Error()
		}
		ms.mu.Unlock()
		out = append(out, h)
	}
	return out
}

// call runs fn through the source breaker. Unsupported requests neither count
// against the breaker nor overwrite the last outcome.
func (m *Manager) call(ms *managedSource, fn func() error) error {
	start := time.Now()
	err := ms.breaker.Execute(fn)
	if errors.Is(err, ErrUnsupported) || errors.Is(err, ErrCircuitOpen) {
		return err
	}

	ms.mu.Lock()
	if err != nil {
		ms.lastErr = err
	} else {
		ms.lastSuccess = time.Now()
	}
	ms.mu.Unlock()

	if m.observer != nil {
		m.observer.ObserveFetch(ms.src.Name(), err == nil, time.Since(start))
	}
	if err != nil {
		log.Debug().Str("component", "collector").Str("source", ms.src.Name()).Err(err).Msg("source failed")
	}
	return err
}

func (m *Manager) checkPrice(symbol string, price float64) error {
	if !(price > 0) {
		return fmt.Errorf("non-positive price %v", price)
	}
	p, ok := m.profiles[symbol]
	if !ok || p.PriceMax <= 0 {
		return nil
	}
	if price < p.PriceMin || price > p.PriceMax {
		return fmt.Errorf("price %.2f outside plausible range [%.0f, %.0f]", price, p.PriceMin, p.PriceMax)
	}
	return nil
}

// BuildSources creates the configured sources in rank order.
func BuildSources(cfg *config.Config, hc *http.Client) ([]Source, error) {
	yahoo := make(map[string][]string)
	pairs := make(map[string]string)
	for sym, p := range cfg.Risk.Profiles {
		if len(p.YahooSymbols) > 0 {
			yahoo[sym] = p.YahooSymbols
		}
		if p.BinanceSymbol != "" {
			pairs[sym] = p.BinanceSymbol
		}
	}

	var out []Source
	for _, name := range cfg.Data.Sources {
		switch name {
		case "yahoo":
			out = append(out, NewYahooSource(hc, yahoo))
		case "binance":
			out = append(out, NewBinanceSource(hc, pairs))
		case "rest":
			if cfg.Data.RESTBaseURL == "" {
				log.Info().Str("component", "collector").Msg("rest source listed without base url, skipping")
				continue
			}
			out = append(out, NewRESTSource(cfg.Data.RESTBaseURL, cfg.Data.RESTAPIKey, hc))
		case "mock":
			p := cfg.Profile()
			out = append(out, &MockSource{Price: (p.PriceMin + p.PriceMax) / 2})
		default:
			return nil, fmt.Errorf("unknown data source %q", name)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no usable data sources")
	}
	return out, nil
}
