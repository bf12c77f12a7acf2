package news

import (
	"sort"
	"time"

	"GoldPulse/internal/model"
)

type scheduled struct {
	hour, min int
	title     string
	impact    model.Impact
}

// weeklyUSD is the recurring USD release calendar used when the feed is down.
var weeklyUSD = map[time.Weekday][]scheduled{
	time.Monday: {
		{14, 0, "Existing Home Sales", model.ImpactMedium},
		{15, 30, "Fed Speech", model.ImpactMedium},
	},
	time.Tuesday: {
		{13, 30, "Core CPI m/m", model.ImpactHigh},
		{13, 30, "CPI m/m", model.ImpactHigh},
		{13, 30, "CPI y/y", model.ImpactHigh},
	},
	time.Wednesday: {
		{13, 30, "Core PPI m/m", model.ImpactMedium},
		{13, 30, "PPI m/m", model.ImpactMedium},
		{15, 0, "Crude Oil Inventories", model.ImpactMedium},
		{19, 0, "FOMC Meeting Minutes", model.ImpactHigh},
	},
	time.Thursday: {
		{13, 30, "Initial Jobless Claims", model.ImpactMedium},
		{13, 30, "Continuing Jobless Claims", model.ImpactLow},
		{14, 0, "Philadelphia Fed Manufacturing Index", model.ImpactLow},
		{15, 30, "Fed Speech", model.ImpactMedium},
	},
	time.Friday: {
		{13, 30, "Non-Farm Employment Change", model.ImpactHigh},
		{13, 30, "Unemployment Rate", model.ImpactHigh},
		{13, 30, "Average Hourly Earnings m/m", model.ImpactMedium},
		{15, 0, "Preliminary UoM Consumer Sentiment", model.ImpactMedium},
		{15, 0, "UoM Inflation Expectations", model.ImpactLow},
	},
}

// Fallback returns the static USD schedule for day's weekday (UTC).
func Fallback(day time.Time) []model.NewsEvent {
	d := day.UTC()
	base := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	var out []model.NewsEvent
	for _, s := range weeklyUSD[d.Weekday()] {
		out = append(out, model.NewsEvent{
			Time:     base.Add(time.Duration(s.hour)*time.Hour + time.Duration(s.min)*time.Minute),
			Currency: "USD",
			Title:    s.title,
			Impact:   s.impact,
			Source:   sourceFallback,
		})
	}
	return out
}

func sortEvents(ev []model.NewsEvent) {
	sort.SliceStable(ev, func(i, j int) bool { return ev[i].Time.Before(ev[j].Time) })
}
