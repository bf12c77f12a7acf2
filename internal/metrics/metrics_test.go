package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"GoldPulse/internal/collector"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rec.Body.String()
}

func TestObservers(t *testing.T) {
	m := New()
	m.ObserveFetch("yahoo", true, 200*time.Millisecond)
	m.ObserveFetch("yahoo", false, time.Second)
	m.ObserveFetch("yahoo", false, time.Second)
	m.ObserveBreaker("yahoo", collector.StateOpen)
	m.SignalEmitted("BUY")
	m.TradeClosed("tp2")
	m.SetOpenTrades(3)

	out := scrape(t, m)
	for _, want := range []string{
		`goldpulse_source_fetches_total{result="error",source="yahoo"} 2`,
		`goldpulse_source_fetches_total{result="ok",source="yahoo"} 1`,
		`goldpulse_source_breaker_state{source="yahoo"} 1`,
		`goldpulse_signals_total{direction="BUY"} 1`,
		`goldpulse_trades_closed_total{level="tp2"} 1`,
		`goldpulse_open_trades 3`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q", want)
		}
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveFetch("x", true, time.Second)
	m.ObserveCycle(time.Second)
	m.NotificationFailed()
	m.WeightsUpdated("deep")
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveCycle(time.Second)
	healthy := true
	srv := httptest.NewServer(m.Handler(func() (bool, any) { return healthy, map[string]string{"yahoo": "closed"} }))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "goldpulse_analysis_cycles_total 1") {
		t.Errorf("metrics output missing cycle counter:\n%s", body)
	}

	resp, err = http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d", resp.StatusCode)
	}

	healthy = false
	resp, err = http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable || !strings.Contains(string(body), `"degraded"`) {
		t.Errorf("degraded healthz = %d %s", resp.StatusCode, body)
	}
}
