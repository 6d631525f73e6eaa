package service

import (
	"fmt"
	"time"
)

// KRX regular session: 09:00-15:30 KST, weekdays. Exchange holidays beyond
// weekends are not modelled; the broker rejects orders on those days anyway.

const (
	openMinute  = 9 * 60
	closeMinute = 15*60 + 30
)

var seoul = mustLoadSeoul()

func mustLoadSeoul() *time.Location {
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		return time.FixedZone("KST", 9*3600)
	}
	return loc
}

// MarketStatus describes the session state at one instant.
type MarketStatus struct {
	Open       bool
	Message    string
	NextChange time.Time
}

// IsMarketOpen reports whether t falls inside the regular session.
func IsMarketOpen(t time.Time) bool {
	t = t.In(seoul)
	if wd := t.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	m := t.Hour()*60 + t.Minute()
	return m >= openMinute && m <= closeMinute
}

// Status returns the session state with a human-readable message and the
// next open/close boundary.
func Status(t time.Time) MarketStatus {
	t = t.In(seoul)
	if IsMarketOpen(t) {
		close := time.Date(t.Year(), t.Month(), t.Day(), 15, 30, 0, 0, seoul)
		left := close.Sub(t).Round(time.Minute)
		return MarketStatus{
			Open:       true,
			Message:    fmt.Sprintf("market open, %s to close", left),
			NextChange: close,
		}
	}

	next := nextOpen(t)
	var msg string
	switch {
	case t.Weekday() == time.Saturday || t.Weekday() == time.Sunday:
		msg = fmt.Sprintf("weekend, next open %s", next.Format("01/02 15:04"))
	case t.Hour()*60+t.Minute() < openMinute:
		msg = fmt.Sprintf("pre-market, opens in %s", next.Sub(t).Round(time.Minute))
	default:
		msg = fmt.Sprintf("after close, next open %s", next.Format("01/02 15:04"))
	}
	return MarketStatus{Open: false, Message: msg, NextChange: next}
}

// nextOpen finds the next 09:00 KST on a weekday strictly after now if the
// session already started today.
func nextOpen(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 9, 0, 0, 0, seoul)
	if !t.Before(day) {
		day = day.AddDate(0, 0, 1)
	}
	for day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
		day = day.AddDate(0, 0, 1)
	}
	return day
}

// TodayClose returns 15:30 KST for t's date.
func TodayClose(t time.Time) time.Time {
	t = t.In(seoul)
	return time.Date(t.Year(), t.Month(), t.Day(), 15, 30, 0, 0, seoul)
}
