// Package session answers market-hours questions in UTC.
package session

import (
	"fmt"
	"time"
)

// Name is an FX trading session.
type Name string

const (
	Asian   Name = "ASIAN"
	London  Name = "LONDON"
	NewYork Name = "NEW_YORK"
)

// Spot gold closes for the weekend at Friday 21:00 UTC and reopens Sunday 22:00 UTC.
const (
	CloseHour = 21
	OpenHour  = 22
)

// IsOpen reports whether the instrument trades at t. Crypto never closes.
func IsOpen(crypto bool, t time.Time) bool {
	if crypto {
		return true
	}
	u := t.UTC()
	switch u.Weekday() {
	case time.Friday:
		return u.Hour() < CloseHour
	case time.Saturday:
		return false
	case time.Sunday:
		return u.Hour() >= OpenHour
	}
	return true
}

// NextOpen returns the next weekend reopen at or after t. It returns t when
// the market is already open.
func NextOpen(crypto bool, t time.Time) time.Time {
	if IsOpen(crypto, t) {
		return t
	}
	u := t.UTC()
	days := (int(time.Sunday) - int(u.Weekday()) + 7) % 7
	d := u.AddDate(0, 0, days)
	return time.Date(d.Year(), d.Month(), d.Day(), OpenHour, 0, 0, 0, time.UTC)
}

// Current returns the session active at t.
func Current(t time.Time) Name {
	h := t.UTC().Hour()
	switch {
	case h >= 22 || h < 8:
		return Asian
	case h < 15:
		return London
	default:
		return NewYork
	}
}

// Timeframes suggests the evaluation timeframes for a session's volatility.
func Timeframes(n Name) []int {
	switch n {
	case London:
		return []int{15, 30, 60}
	case NewYork:
		return []int{15, 30}
	default:
		return []int{30, 60}
	}
}

// Status renders a one-line market status for chat replies.
func Status(crypto bool, t time.Time) string {
	if IsOpen(crypto, t) {
		return fmt.Sprintf("Market open, %s session", Current(t))
	}
	next := NextOpen(crypto, t)
	d := next.Sub(t)
	return fmt.Sprintf("Market closed, opens %s %s UTC (%dh%dm)",
		next.Weekday().String()[:3], next.Format("15:04"), int(d.Hours()), int(d.Minutes())%60)
}
