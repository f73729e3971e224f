package model

import (
	"fmt"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// All schedule times are local wall-clock values carried in UTC so that
// date arithmetic never crosses a DST boundary.

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return d, nil
}

// ParseClock parses HH:mm and places it on the given date.
func ParseClock(date time.Time, s string) (time.Time, error) {
	t, err := time.ParseInLocation(ClockLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q, expected HH:mm", s)
	}
	return OnDate(date, t.Hour(), t.Minute()), nil
}

// OnDate returns hour:minute on the calendar day of date.
func OnDate(date time.Time, hour, minute int) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, time.UTC)
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) time.Time {
	return OnDate(t, 0, 0)
}

// WallClock keeps the clock reading of t and drops its location.
func WallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// IsHalfHour reports whether t sits exactly on :00 or :30.
func IsHalfHour(t time.Time) bool {
	return (t.Minute() == 0 || t.Minute() == 30) && t.Second() == 0 && t.Nanosecond() == 0
}

// DayOfWeek returns 1=Mon ... 7=Sun.
func DayOfWeek(t time.Time) int {
	d := int(t.Weekday())
	if d == 0 {
		return 7
	}
	return d
}

// FormatDate formats a calendar date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// FormatClock formats a wall-clock time as HH:mm.
func FormatClock(t time.Time) string {
	return t.Format(ClockLayout)
}

// DatesBetween returns every calendar day in [from, to].
func DatesBetween(from, to time.Time) []time.Time {
	from, to = DateOf(from), DateOf(to)
	var out []time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}
