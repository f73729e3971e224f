package model

import "time"

// WorkingHoursRule is either a recurring weekday rule (Date zero) or a
// specific-date rule that replaces the weekday rule for that date.
type WorkingHoursRule struct {
	ID         int64     `json:"id"`
	EmployeeID int64     `json:"employeeId"`
	DayOfWeek  int       `json:"dayOfWeek,omitempty"` // 1=Mon, 7=Sun
	Date       time.Time `json:"date,omitempty"`
	StartHour  int       `json:"startHour"`
	EndHour    int       `json:"endHour"`
}

func (r *WorkingHoursRule) IsSpecificDate() bool {
	return !r.Date.IsZero()
}

// AppliesTo reports whether the rule matches date, by exact date or weekday.
func (r *WorkingHoursRule) AppliesTo(date time.Time) bool {
	if r.IsSpecificDate() {
		return DateOf(r.Date).Equal(DateOf(date))
	}
	return r.DayOfWeek == DayOfWeek(date)
}

// IsDayOff is true for an empty range; holidays are stored this way.
func (r *WorkingHoursRule) IsDayOff() bool {
	return r.EndHour <= r.StartHour
}

type BlackoutWindow struct {
	ID         int64     `json:"id"`
	EmployeeID int64     `json:"employeeId"`
	DayOfWeek  int       `json:"dayOfWeek,omitempty"`
	Date       time.Time `json:"date,omitempty"`
	StartHour  int       `json:"startHour"`
	EndHour    int       `json:"endHour"`
	Reason     string    `json:"reason,omitempty"`
}

func (b *BlackoutWindow) IsSpecificDate() bool {
	return !b.Date.IsZero()
}

func (b *BlackoutWindow) AppliesTo(date time.Time) bool {
	if b.IsSpecificDate() {
		return DateOf(b.Date).Equal(DateOf(date))
	}
	return b.DayOfWeek == DayOfWeek(date)
}

// Interval returns the blackout bounds on date.
func (b *BlackoutWindow) Interval(date time.Time) (time.Time, time.Time) {
	return OnDate(date, b.StartHour, 0), OnDate(date, b.EndHour, 0)
}
