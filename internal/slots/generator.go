// Package slots generates candidate appointment intervals for a working day.
package slots

import (
	"fmt"
	"sort"
	"time"

	"salonbook/internal/model"
)

// Reasons attached to unavailable candidates.
const (
	ReasonBooked = "booked"
	ReasonPast   = "past"
)

// Slot is an ephemeral candidate interval. It is never persisted.
type Slot struct {
	StartTime time.Time
	EndTime   time.Time
	Available bool
	Reason    string
}

// SlotInfo is the wire representation of a slot.
type SlotInfo struct {
	StartTime string `json:"startTime"` // "10:00"
	EndTime   string `json:"endTime"`   // "11:00"
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// Window is a half-open working interval [Open, Close) on one date.
type Window struct {
	Open  time.Time
	Close time.Time
}

// Empty reports a window with no bookable time.
func (w Window) Empty() bool {
	return !w.Close.After(w.Open)
}

// Contains reports whether [start, end) lies inside the window.
func (w Window) Contains(start, end time.Time) bool {
	return !start.Before(w.Open) && !end.After(w.Close)
}

// Clamp intersects w with bounds.
func (w Window) Clamp(bounds Window) Window {
	if w.Open.Before(bounds.Open) {
		w.Open = bounds.Open
	}
	if w.Close.After(bounds.Close) {
		w.Close = bounds.Close
	}
	return w
}

// Union merges overlapping or touching windows and returns them ordered by
// Open.
func Union(windows []Window) []Window {
	if len(windows) == 0 {
		return nil
	}
	sorted := make([]Window, len(windows))
	copy(sorted, windows)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Open.Before(sorted[j].Open) })

	out := []Window{sorted[0]}
	for _, w := range sorted[1:] {
		last := &out[len(out)-1]
		if w.Open.After(last.Close) {
			out = append(out, w)
			continue
		}
		if w.Close.After(last.Close) {
			last.Close = w.Close
		}
	}
	return out
}

// BusinessHours is the outer day window every working rule is clamped to.
type BusinessHours struct {
	OpenHour  int
	CloseHour int
}

// DefaultBusinessHours is 09:00-18:00.
var DefaultBusinessHours = BusinessHours{OpenHour: 9, CloseHour: 18}

// On returns the business-hours window for date.
func (b BusinessHours) On(date time.Time) Window {
	return Window{Open: model.OnDate(date, b.OpenHour, 0), Close: model.OnDate(date, b.CloseHour, 0)}
}

// Generate steps through the window by duration starting at Open. The final
// candidate that would overflow Close is dropped, so the result has
// floor((Close-Open)/duration) entries and no partial slot.
func Generate(window Window, duration time.Duration) []Slot {
	if duration <= 0 || window.Empty() {
		return nil
	}

	var out []Slot
	for cursor := window.Open; !cursor.Add(duration).After(window.Close); cursor = cursor.Add(duration) {
		out = append(out, Slot{
			StartTime: cursor,
			EndTime:   cursor.Add(duration),
			Available: true,
		})
	}
	return out
}

// ToSlotInfo converts slots to their wire form.
func ToSlotInfo(slots []Slot) []SlotInfo {
	result := make([]SlotInfo, len(slots))
	for i, s := range slots {
		result[i] = SlotInfo{
			StartTime: model.FormatClock(s.StartTime),
			EndTime:   model.FormatClock(s.EndTime),
			Available: s.Available,
			Reason:    s.Reason,
		}
	}
	return result
}

// Overlaps reports whether [start1, end1) and [start2, end2) intersect.
func Overlaps(start1, end1, start2, end2 time.Time) bool {
	return start1.Before(end2) && start2.Before(end1)
}

// FormatDuration formats minutes as "45 min", "1 h" or "1 h 30 min".
func FormatDuration(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%d min", minutes)
	}
	hours := minutes / 60
	mins := minutes % 60
	if mins == 0 {
		return fmt.Sprintf("%d h", hours)
	}
	return fmt.Sprintf("%d h %d min", hours, mins)
}
