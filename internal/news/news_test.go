package news

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"GoldPulse/internal/model"
)

// 2025-03-07 is a Friday.
var day = time.Date(2025, 3, 7, 9, 0, 0, 0, time.UTC)

const feed = `[
 {"title":"Non-Farm Employment Change","country":"USD","date":"2025-03-07T08:30:00-05:00","impact":"High","forecast":"160K","previous":"143K"},
 {"title":"Unemployment Rate","country":"USD","date":"2025-03-07T08:30:00-05:00","impact":"red"},
 {"title":"Fed Chair Speaks","country":"USD","date":"2025-03-07T12:30:00-05:00","impact":"Medium"},
 {"title":"Bank Holiday","country":"USD","date":"2025-03-07T00:00:00-05:00","impact":"Holiday"},
 {"title":"German CPI","country":"EUR","date":"2025-03-07T02:00:00-05:00","impact":"High"},
 {"title":"ISM Services PMI","country":"USD","date":"2025-03-05T10:00:00-05:00","impact":"High"},
 {"title":"Legacy","currency":"US","date":"2025-03-07","time":"15:00","impact":"2"},
 {"title":"Broken","country":"USD","date":"soon","impact":"High"}
]`

func TestParseImpact(t *testing.T) {
	tests := map[string]model.Impact{
		"High": model.ImpactHigh, "red": model.ImpactHigh, "3": model.ImpactHigh,
		"Medium": model.ImpactMedium, "orange": model.ImpactMedium, "yellow": model.ImpactMedium, "2": model.ImpactMedium,
		"Low": model.ImpactLow, "Holiday": model.ImpactLow, "": model.ImpactLow,
	}
	for in, want := range tests {
		if got := ParseImpact(in); got != want {
			t.Errorf("ParseImpact(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestClient_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(feed))
	}))
	defer srv.Close()

	events, err := NewClient(srv.Client(), srv.URL, "usd").Fetch(context.Background(), day)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(events) != 5 {
		t.Fatalf("got %d events, want 5: %+v", len(events), events)
	}
	if events[0].Title != "Bank Holiday" || events[0].Impact != model.ImpactLow {
		t.Errorf("first = %+v", events[0])
	}
	nfp := events[1]
	if nfp.Title != "Non-Farm Employment Change" || nfp.Impact != model.ImpactHigh || nfp.Forecast != "160K" {
		t.Errorf("nfp = %+v", nfp)
	}
	if want := time.Date(2025, 3, 7, 13, 30, 0, 0, time.UTC); !nfp.Time.Equal(want) {
		t.Errorf("nfp time = %v, want %v", nfp.Time, want)
	}
	legacy := events[3]
	if legacy.Title != "Legacy" || legacy.Currency != "USD" || legacy.Impact != model.ImpactMedium {
		t.Errorf("legacy = %+v", legacy)
	}
}

func TestClient_FetchStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()
	if _, err := NewClient(srv.Client(), srv.URL, "USD").Fetch(context.Background(), day); err == nil {
		t.Fatal("expected error on 429")
	}
}

type stubFetcher struct {
	events []model.NewsEvent
	err    error
}

func (s stubFetcher) Fetch(context.Context, time.Time) ([]model.NewsEvent, error) {
	return s.events, s.err
}

func TestMonitor_FallbackOnError(t *testing.T) {
	m := NewMonitor(stubFetcher{err: errors.New("down")}, 55*time.Minute, 65*time.Minute)
	m.now = func() time.Time { return day }
	if err := m.Refresh(context.Background()); err == nil {
		t.Fatal("expected feed error to be reported")
	}
	st := m.Status(day)
	if st.Source != sourceFallback || st.High != 2 || st.Medium != 2 || st.Low != 1 {
		t.Errorf("status = %+v", st)
	}
	if st.NextHigh == nil || st.NextHigh.Title != "Non-Farm Employment Change" {
		t.Errorf("next high = %+v", st.NextHigh)
	}
}

func TestMonitor_DueWindowAndDedupe(t *testing.T) {
	release := time.Date(2025, 3, 7, 13, 30, 0, 0, time.UTC)
	events := []model.NewsEvent{
		{Time: release, Title: "NFP", Impact: model.ImpactHigh},
		{Time: release, Title: "Earnings", Impact: model.ImpactMedium},
	}
	m := NewMonitor(stubFetcher{events: events}, 55*time.Minute, 65*time.Minute)
	m.now = func() time.Time { return day }
	if err := m.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	if got := m.Due(release.Add(-70 * time.Minute)); len(got) != 0 {
		t.Errorf("70m ahead: %v", got)
	}
	got := m.Due(release.Add(-60 * time.Minute))
	if len(got) != 1 || got[0].Title != "NFP" {
		t.Fatalf("60m ahead: %v", got)
	}
	if again := m.Due(release.Add(-56 * time.Minute)); len(again) != 0 {
		t.Errorf("duplicate alert: %v", again)
	}
	if late := m.Due(release.Add(-50 * time.Minute)); len(late) != 0 {
		t.Errorf("50m ahead: %v", late)
	}
}

func TestMonitor_Upcoming(t *testing.T) {
	m := NewMonitor(stubFetcher{events: Fallback(day)}, 55*time.Minute, 65*time.Minute)
	m.now = func() time.Time { return day }
	_ = m.Refresh(context.Background())
	up := m.Upcoming(time.Date(2025, 3, 7, 14, 0, 0, 0, time.UTC))
	if len(up) != 2 {
		t.Fatalf("upcoming = %d, want 2", len(up))
	}
	for _, e := range up {
		if e.Time.Hour() != 15 {
			t.Errorf("unexpected event %+v", e)
		}
	}
}

func TestFallback_Weekend(t *testing.T) {
	if ev := Fallback(time.Date(2025, 3, 8, 10, 0, 0, 0, time.UTC)); len(ev) != 0 {
		t.Errorf("saturday events = %d", len(ev))
	}
}

func TestMonitor_AlertsAfterMidnight(t *testing.T) {
	const overnight = `[
 {"title":"Fed Chair Speaks","country":"USD","date":"2025-03-07T21:00:00Z","impact":"High"},
 {"title":"Treasury Auction","country":"USD","date":"2025-03-08T00:30:00Z","impact":"High"},
 {"title":"Next Week","country":"USD","date":"2025-03-09T00:30:00Z","impact":"High"}
]`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(overnight))
	}))
	defer srv.Close()

	late := time.Date(2025, 3, 7, 23, 30, 0, 0, time.UTC)
	m := NewMonitor(NewClient(srv.Client(), srv.URL, "USD"), 55*time.Minute, 65*time.Minute)
	m.now = func() time.Time { return late }
	if err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	due := m.Due(late)
	if len(due) != 1 || due[0].Title != "Treasury Auction" {
		t.Fatalf("due at 23:30 = %+v", due)
	}
	if up := m.Upcoming(late); len(up) != 0 {
		t.Errorf("upcoming today = %+v", up)
	}
	if st := m.Status(late); st.High != 1 || st.NextHigh != nil {
		t.Errorf("status = %+v", st)
	}
}
