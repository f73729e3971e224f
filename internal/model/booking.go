package model

import (
	"encoding/json"
	"fmt"
	"time"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusActive    Status = "ACTIVE"
	StatusCancelled Status = "CANCELLED"
	StatusCompleted Status = "COMPLETED"
)

// ParseStatus accepts any of the four booking statuses.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusActive, StatusCancelled, StatusCompleted:
		return st, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

type Booking struct {
	ID         int64
	Reference  string
	ClientID   int64
	EmployeeID int64
	ServiceID  int64
	Date       time.Time
	StartTime  time.Time
	EndTime    time.Time
	Status     Status
	Quantity   int
	Paid       bool
	Notes      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Occupies reports whether the booking blocks its interval. Only cancelled
// bookings release it.
func (b *Booking) Occupies() bool {
	return b.Status != StatusCancelled
}

// CanCancel reports whether the booking is still open.
func (b *Booking) CanCancel() bool {
	return b.Status == StatusActive || b.Status == StatusPending
}

func (b *Booking) Duration() time.Duration {
	return b.EndTime.Sub(b.StartTime)
}

// OverlapsWith checks if two bookings of the same employee intersect.
func (b *Booking) OverlapsWith(other *Booking) bool {
	if b.EmployeeID != other.EmployeeID {
		return false
	}
	return b.StartTime.Before(other.EndTime) && other.StartTime.Before(b.EndTime)
}

// ContainsTime checks if t falls within [StartTime, EndTime).
func (b *Booking) ContainsTime(t time.Time) bool {
	return !t.Before(b.StartTime) && t.Before(b.EndTime)
}

type bookingJSON struct {
	ID         int64     `json:"id"`
	Reference  string    `json:"reference,omitempty"`
	ClientID   int64     `json:"clientId"`
	EmployeeID int64     `json:"employeeId"`
	ServiceID  int64     `json:"serviceId"`
	Date       string    `json:"date"`
	StartTime  string    `json:"startTime"`
	EndTime    string    `json:"endTime"`
	Status     Status    `json:"status"`
	Quantity   int       `json:"quantity"`
	Paid       bool      `json:"paid"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// MarshalJSON renders dates as YYYY-MM-DD and times as HH:mm.
func (b Booking) MarshalJSON() ([]byte, error) {
	return json.Marshal(bookingJSON{
		ID:         b.ID,
		Reference:  b.Reference,
		ClientID:   b.ClientID,
		EmployeeID: b.EmployeeID,
		ServiceID:  b.ServiceID,
		Date:       FormatDate(b.Date),
		StartTime:  FormatClock(b.StartTime),
		EndTime:    FormatClock(b.EndTime),
		Status:     b.Status,
		Quantity:   b.Quantity,
		Paid:       b.Paid,
		Notes:      b.Notes,
		CreatedAt:  b.CreatedAt,
		UpdatedAt:  b.UpdatedAt,
	})
}

func (b *Booking) UnmarshalJSON(data []byte) error {
	var w bookingJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	date, err := ParseDate(w.Date)
	if err != nil {
		return err
	}
	start, err := ParseClock(date, w.StartTime)
	if err != nil {
		return err
	}
	end, err := ParseClock(date, w.EndTime)
	if err != nil {
		return err
	}
	*b = Booking{
		ID:         w.ID,
		Reference:  w.Reference,
		ClientID:   w.ClientID,
		EmployeeID: w.EmployeeID,
		ServiceID:  w.ServiceID,
		Date:       date,
		StartTime:  start,
		EndTime:    end,
		Status:     w.Status,
		Quantity:   w.Quantity,
		Paid:       w.Paid,
		Notes:      w.Notes,
		CreatedAt:  w.CreatedAt,
		UpdatedAt:  w.UpdatedAt,
	}
	return nil
}

type Client struct {
	ID         int64     `json:"id"`
	FullName   string    `json:"fullName"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone"`
	NationalID string    `json:"nationalId"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// BookingFilter selects ledger entries. Zero fields are ignored.
type BookingFilter struct {
	FromDate   time.Time
	ToDate     time.Time
	EmployeeID int64
	ServiceID  int64
	Status     Status
}

// Matches applies the filter in memory.
func (f BookingFilter) Matches(b *Booking) bool {
	d := DateOf(b.Date)
	if !f.FromDate.IsZero() && d.Before(DateOf(f.FromDate)) {
		return false
	}
	if !f.ToDate.IsZero() && d.After(DateOf(f.ToDate)) {
		return false
	}
	if f.EmployeeID != 0 && b.EmployeeID != f.EmployeeID {
		return false
	}
	if f.ServiceID != 0 && b.ServiceID != f.ServiceID {
		return false
	}
	if f.Status != "" && b.Status != f.Status {
		return false
	}
	return true
}
