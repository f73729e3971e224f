package availability

import (
	"time"

	"salonbook/internal/model"
	"salonbook/internal/slots"
)

// EffectiveWindows derives the working windows for one date, in order.
// Specific-date rules replace the weekday rules entirely; several rules of
// the same kind contribute the union of their intervals, so a split shift
// leaves its gap closed. ok is false when no rule applies.
func EffectiveWindows(date time.Time, rules []model.WorkingHoursRule, hours slots.BusinessHours) ([]slots.Window, bool) {
	var specific, weekly []model.WorkingHoursRule
	for i := range rules {
		r := rules[i]
		if !r.AppliesTo(date) {
			continue
		}
		if r.IsSpecificDate() {
			specific = append(specific, r)
		} else {
			weekly = append(weekly, r)
		}
	}

	chosen := weekly
	if len(specific) > 0 {
		chosen = specific
	}
	if len(chosen) == 0 {
		return nil, false
	}

	bounds := hours.On(date)
	var spans []slots.Window
	for _, r := range chosen {
		if r.IsDayOff() {
			continue
		}
		w := slots.Window{Open: model.OnDate(date, r.StartHour, 0), Close: model.OnDate(date, r.EndHour, 0)}.Clamp(bounds)
		if !w.Empty() {
			spans = append(spans, w)
		}
	}
	if len(spans) == 0 {
		// day off: the date has a rule but no hours
		return nil, true
	}
	return slots.Union(spans), true
}

// fitsAny reports whether one window holds all of [start, end).
func fitsAny(start, end time.Time, windows []slots.Window) bool {
	for _, w := range windows {
		if w.Contains(start, end) {
			return true
		}
	}
	return false
}

// BlackoutsOn returns the blackout intervals for date. Specific-date
// blackouts replace the recurring ones for that date, independently of
// which working-hours rule is in force.
func BlackoutsOn(date time.Time, blackouts []model.BlackoutWindow) []slots.Window {
	var specific, weekly []slots.Window
	for i := range blackouts {
		b := blackouts[i]
		if !b.AppliesTo(date) {
			continue
		}
		start, end := b.Interval(date)
		if b.IsSpecificDate() {
			specific = append(specific, slots.Window{Open: start, Close: end})
		} else {
			weekly = append(weekly, slots.Window{Open: start, Close: end})
		}
	}
	if len(specific) > 0 {
		return specific
	}
	return weekly
}

func hitsAny(start, end time.Time, windows []slots.Window) bool {
	for _, w := range windows {
		if slots.Overlaps(start, end, w.Open, w.Close) {
			return true
		}
	}
	return false
}
