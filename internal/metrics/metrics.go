// Package metrics exposes the bot's Prometheus instruments and a small
// /metrics + /healthz HTTP server.
package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"GoldPulse/internal/collector"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Metrics holds every instrument on a private registry. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	CyclesTotal          prometheus.Counter
	CycleDuration        prometheus.Histogram
	SignalsTotal         *prometheus.CounterVec
	SourceFetches        *prometheus.CounterVec
	FetchDuration        *prometheus.HistogramVec
	BreakerState         *prometheus.GaugeVec
	NotificationFailures prometheus.Counter
	TradesClosed         *prometheus.CounterVec
	OpenTrades           prometheus.Gauge
	WeightUpdates        *prometheus.CounterVec
}

// New creates and registers all instruments.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "goldpulse_analysis_cycles_total",
			Help: "Completed analysis cycles.",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "goldpulse_analysis_cycle_seconds",
			Help:    "Wall time of one analysis cycle.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
		}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "goldpulse_signals_total",
			Help: "Signals emitted, by direction.",
		}, []string{"direction"}),
		SourceFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "goldpulse_source_fetches_total",
			Help: "Data source calls, by source and result.",
		}, []string{"source", "result"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "goldpulse_source_fetch_seconds",
			Help:    "Latency of data source calls.",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "goldpulse_source_breaker_state",
			Help: "Circuit breaker state per source (0 closed, 1 open, 2 half-open).",
		}, []string{"source"}),
		NotificationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "goldpulse_notification_failures_total",
			Help: "Telegram messages that could not be delivered.",
		}),
		TradesClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "goldpulse_trades_closed_total",
			Help: "Trades closed by the position monitor, by exit level.",
		}, []string{"level"}),
		OpenTrades: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "goldpulse_open_trades",
			Help: "Trades awaiting resolution.",
		}),
		WeightUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "goldpulse_weight_updates_total",
			Help: "Weight optimizer runs that rewrote the weight file, by kind.",
		}, []string{"kind"}),
	}
	m.Registry.MustRegister(
		m.CyclesTotal, m.CycleDuration, m.SignalsTotal, m.SourceFetches,
		m.FetchDuration, m.BreakerState, m.NotificationFailures,
		m.TradesClosed, m.OpenTrades, m.WeightUpdates,
	)
	return m
}

// ObserveFetch implements collector.Observer.
func (m *Metrics) ObserveFetch(source string, ok bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.SourceFetches.WithLabelValues(source, result).Inc()
	m.FetchDuration.WithLabelValues(source).Observe(elapsed.Seconds())
}

// ObserveBreaker implements collector.Observer.
func (m *Metrics) ObserveBreaker(source string, state collector.BreakerState) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(source).Set(float64(state))
}

// ObserveCycle records one finished analysis cycle.
func (m *Metrics) ObserveCycle(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.CyclesTotal.Inc()
	m.CycleDuration.Observe(elapsed.Seconds())
}

// SignalEmitted counts a signal.
func (m *Metrics) SignalEmitted(direction string) {
	if m == nil {
		return
	}
	m.SignalsTotal.WithLabelValues(direction).Inc()
}

// NotificationFailed counts an undelivered message.
func (m *Metrics) NotificationFailed() {
	if m == nil {
		return
	}
	m.NotificationFailures.Inc()
}

// TradeClosed counts a resolved trade.
func (m *Metrics) TradeClosed(level string) {
	if m == nil {
		return
	}
	m.TradesClosed.WithLabelValues(level).Inc()
}

// SetOpenTrades sets the open trade gauge.
func (m *Metrics) SetOpenTrades(n int) {
	if m == nil {
		return
	}
	m.OpenTrades.Set(float64(n))
}

// WeightsUpdated counts an optimizer run.
func (m *Metrics) WeightsUpdated(kind string) {
	if m == nil {
		return
	}
	m.WeightUpdates.WithLabelValues(kind).Inc()
}

// HealthFunc reports whether the bot is healthy plus a JSON-encodable detail.
type HealthFunc func() (healthy bool, detail any)

// Handler returns the mux serving /metrics and /healthz.
func (m *Metrics) Handler(health HealthFunc) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		healthy, detail := true, any(nil)
		if health != nil {
			healthy, detail = health()
		}
		status := struct {
			Status string `json:"status"`
			Detail any    `json:"detail,omitempty"`
		}{Status: "healthy", Detail: detail}

		w.Header().Set("Content-Type", "application/json")
		if !healthy {
			status.Status = "degraded"
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(status)
	})
	return mux
}

// Serve runs the metrics server until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, health HealthFunc) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           m.Handler(health),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("component", "metrics").Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
