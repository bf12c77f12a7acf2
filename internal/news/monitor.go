package news

import (
	"context"
	"sync"
	"time"

	"GoldPulse/internal/model"

	"github.com/rs/zerolog/log"
)

// Fetcher loads one day of calendar events.
type Fetcher interface {
	Fetch(ctx context.Context, day time.Time) ([]model.NewsEvent, error)
}

// Monitor caches today's and tomorrow's events and decides which ones need an alert.
type Monitor struct {
	fetcher Fetcher
	minLead time.Duration
	maxLead time.Duration
	now     func() time.Time

	mu         sync.Mutex
	events     []model.NewsEvent
	source     string
	lastUpdate time.Time
	alerted    map[string]string // dedupe key -> UTC date
}

// NewMonitor creates a Monitor alerting high-impact events whose start lies
// within [minLead, maxLead] from now.
func NewMonitor(f Fetcher, minLead, maxLead time.Duration) *Monitor {
	return &Monitor{
		fetcher: f,
		minLead: minLead,
		maxLead: maxLead,
		now:     time.Now,
		alerted: make(map[string]string),
	}
}

// Refresh reloads today's events. A feed failure installs the static schedule
// and is reported through the returned error.
func (m *Monitor) Refresh(ctx context.Context) error {
	now := m.now()
	events, err := m.fetcher.Fetch(ctx, now)
	source := sourceFeed
	if err != nil {
		log.Warn().Str("component", "news").Err(err).Msg("calendar unavailable, using fallback schedule")
		events, source = Fallback(now), sourceFallback
	}

	m.mu.Lock()
	m.events = events
	m.source = source
	m.lastUpdate = now
	m.pruneLocked(now)
	m.mu.Unlock()

	high := 0
	for _, e := range events {
		if e.Impact == model.ImpactHigh {
			high++
		}
	}
	log.Info().Str("component", "news").Str("source", source).Int("events", len(events)).Int("high", high).Msg("calendar refreshed")
	return err
}

// Due returns high-impact events entering the alert window, each at most once
// per day. Returned events are marked as alerted.
func (m *Monitor) Due(now time.Time) []model.NewsEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneLocked(now)

	var out []model.NewsEvent
	for _, e := range m.events {
		if e.Impact != model.ImpactHigh {
			continue
		}
		lead := e.Time.Sub(now)
		if lead < m.minLead || lead > m.maxLead {
			continue
		}
		key := alertKey(e)
		if _, done := m.alerted[key]; done {
			continue
		}
		m.alerted[key] = e.Time.UTC().Format("2006-01-02")
		out = append(out, e)
	}
	return out
}

// Upcoming returns today's events that start after now, in time order.
func (m *Monitor) Upcoming(now time.Time) []model.NewsEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.NewsEvent
	for _, e := range m.events {
		if e.Time.After(now) && sameDay(e.Time, now) {
			out = append(out, e)
		}
	}
	return out
}

// Status summarises the cached calendar for now's UTC day.
type Status struct {
	High, Medium, Low int
	NextHigh          *model.NewsEvent
	Source            string
	LastUpdate        time.Time
}

func (m *Monitor) Status(now time.Time) Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := Status{Source: m.source, LastUpdate: m.lastUpdate}
	for i, e := range m.events {
		if !sameDay(e.Time, now) {
			continue
		}
		switch e.Impact {
		case model.ImpactHigh:
			st.High++
			if st.NextHigh == nil && e.Time.After(now) {
				st.NextHigh = &m.events[i]
			}
		case model.ImpactMedium:
			st.Medium++
		default:
			st.Low++
		}
	}
	return st
}

// pruneLocked forgets alert keys from previous days.
func (m *Monitor) pruneLocked(now time.Time) {
	today := now.UTC().Format("2006-01-02")
	for k, day := range m.alerted {
		if day < today {
			delete(m.alerted, k)
		}
	}
}

func alertKey(e model.NewsEvent) string {
	t := e.Time.UTC()
	return e.Title + "_" + t.Format("15:04") + "_" + t.Format("2006-01-02")
}
