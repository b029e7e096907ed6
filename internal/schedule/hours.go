// Package schedule holds the shop's weekly opening hours and answers whether
// a proposed time span falls inside them. Hours are civil times in the
// business's own zone; day windows are materialized per calendar date so the
// host process's zone never leaks into the arithmetic.
package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/linderfish/looking-glass-groomery-sub000/internal/domain"
)

// ClockTime is a wall-clock time of day in the business zone.
type ClockTime struct {
	Hour   int
	Minute int
}

func (c ClockTime) minutes() int {
	return c.Hour*60 + c.Minute
}

func (c ClockTime) on(year int, month time.Month, day int, loc *time.Location) time.Time {
	return time.Date(year, month, day, c.Hour, c.Minute, 0, 0, loc)
}

// String renders the time the way it reads in a chat reply, e.g. "10:00 AM".
func (c ClockTime) String() string {
	return time.Date(0, 1, 1, c.Hour, c.Minute, 0, 0, time.UTC).Format("3:04 PM")
}

// DayHours is one weekday's open/close window.
type DayHours struct {
	Open  ClockTime
	Close ClockTime
}

// WeeklyHours is the fixed weekly table. Immutable after construction.
type WeeklyHours struct {
	days [7]*DayHours
	loc  *time.Location
}

// NewWeeklyHours builds the policy from a per-weekday table. Weekdays absent
// from the map are closed. Open must precede close on every open day.
func NewWeeklyHours(loc *time.Location, days map[time.Weekday]DayHours) (*WeeklyHours, error) {
	if loc == nil {
		return nil, fmt.Errorf("schedule: location is required")
	}
	w := &WeeklyHours{loc: loc}
	for weekday, h := range days {
		if weekday < time.Sunday || weekday > time.Saturday {
			return nil, fmt.Errorf("schedule: invalid weekday %d", weekday)
		}
		if h.Open.minutes() >= h.Close.minutes() {
			return nil, fmt.Errorf("schedule: %s opens at %s but closes at %s", weekday, h.Open, h.Close)
		}
		hh := h
		w.days[weekday] = &hh
	}
	return w, nil
}

func (w *WeeklyHours) Location() *time.Location {
	return w.loc
}

// WindowFor returns the open/close instants for the calendar date containing t
// (in the business zone), or false when the shop is closed that day.
func (w *WeeklyHours) WindowFor(t time.Time) (domain.TimeInterval, bool) {
	local := t.In(w.loc)
	h := w.days[local.Weekday()]
	if h == nil {
		return domain.TimeInterval{}, false
	}
	year, month, day := local.Date()
	return domain.TimeInterval{
		Start: h.Open.on(year, month, day, w.loc),
		End:   h.Close.on(year, month, day, w.loc),
	}, true
}

// CheckWithinHours reports whether the interval fits entirely inside the open
// window of the day it starts on. A span ending exactly at close is fine.
// The reason is written for the customer, not for a log line.
func (w *WeeklyHours) CheckWithinHours(iv domain.TimeInterval) (bool, string) {
	local := iv.Start.In(w.loc)
	h := w.days[local.Weekday()]
	if h == nil {
		return false, fmt.Sprintf("we're closed on %ss", local.Weekday())
	}

	window, _ := w.WindowFor(iv.Start)
	if iv.Start.Before(window.Start) {
		return false, fmt.Sprintf("we don't open until %s on %ss", h.Open, local.Weekday())
	}
	if iv.End.After(window.End) {
		return false, fmt.Sprintf("we close at %s on %ss", h.Close, local.Weekday())
	}
	return true, ""
}

// ParseDayHours parses a config value like "10:00-17:00". The literal "closed"
// (or an empty string) means no window that day.
func ParseDayHours(s string) (*DayHours, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" || s == "closed" {
		return nil, nil
	}

	open, close, ok := strings.Cut(s, "-")
	if !ok {
		return nil, fmt.Errorf("schedule: %q is not in open-close form", s)
	}
	o, err := parseClock(open)
	if err != nil {
		return nil, err
	}
	c, err := parseClock(close)
	if err != nil {
		return nil, err
	}
	return &DayHours{Open: o, Close: c}, nil
}

func parseClock(s string) (ClockTime, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return ClockTime{}, fmt.Errorf("schedule: bad clock time %q: %w", s, err)
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}
