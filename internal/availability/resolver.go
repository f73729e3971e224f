// Package availability turns working-hours rules, blackout windows and
// ledger occupancy into bookable candidates per date.
package availability

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"salonbook/internal/apperr"
	"salonbook/internal/metrics"
	"salonbook/internal/model"
	"salonbook/internal/slots"
)

// MaxRangeDays bounds a single resolution request.
const MaxRangeDays = 90

// RuleStore provides working hours and blackouts for an employee. Both
// recurring and specific-date entries intersecting [from, to] are returned.
type RuleStore interface {
	ListWorkingHours(ctx context.Context, employeeID int64, from, to time.Time) ([]model.WorkingHoursRule, error)
	ListBlackouts(ctx context.Context, employeeID int64, from, to time.Time) ([]model.BlackoutWindow, error)
}

// Catalog looks up employees and services.
type Catalog interface {
	GetEmployee(ctx context.Context, id int64) (*model.Employee, error)
	GetService(ctx context.Context, id int64) (*model.Service, error)
}

// Ledger lists bookings.
type Ledger interface {
	ListBookings(ctx context.Context, filter model.BookingFilter) ([]model.Booking, error)
}

type Query struct {
	EmployeeID int64
	ServiceID  int64
	From       time.Time
	To         time.Time
}

type Result struct {
	Employee     model.Employee    `json:"employee"`
	Service      model.Service     `json:"service"`
	Availability []DayAvailability `json:"availability"`
}

// DayAvailability separates "no working hours" (HasActiveTimeSlots false)
// from "fully booked" (every slot unavailable).
type DayAvailability struct {
	Date               string           `json:"date"`
	DayOfWeek          int              `json:"dayOfWeek"`
	HasActiveTimeSlots bool             `json:"hasActiveTimeSlots"`
	Slots              []slots.SlotInfo `json:"slots"`
}

// AvailableSlots returns the available entries of the day.
func (d *DayAvailability) AvailableSlots() []slots.SlotInfo {
	var out []slots.SlotInfo
	for _, s := range d.Slots {
		if s.Available {
			out = append(out, s)
		}
	}
	return out
}

// Resolver recomputes availability on every call; it holds no cache.
type Resolver struct {
	rules   RuleStore
	catalog Catalog
	ledger  Ledger
	hours   slots.BusinessHours
	now     func() time.Time
	logger  *zerolog.Logger
}

func NewResolver(rules RuleStore, catalog Catalog, ledger Ledger, logger *zerolog.Logger) *Resolver {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Resolver{
		rules:   rules,
		catalog: catalog,
		ledger:  ledger,
		hours:   slots.DefaultBusinessHours,
		now:     time.Now,
		logger:  logger,
	}
}

// SetBusinessHours overrides the default 09:00-18:00 day.
func (r *Resolver) SetBusinessHours(h slots.BusinessHours) {
	r.hours = h
}

// SetClock replaces the wall clock used to mark past slots.
func (r *Resolver) SetClock(now func() time.Time) {
	r.now = now
}

// BusinessHours returns the configured outer day.
func (r *Resolver) BusinessHours() slots.BusinessHours {
	return r.hours
}

// Resolve builds the availability map for every date in [From, To].
func (r *Resolver) Resolve(ctx context.Context, q Query) (*Result, error) {
	started := time.Now()
	defer func() { metrics.ObserveAvailability(time.Since(started)) }()

	if err := validateQuery(q); err != nil {
		return nil, err
	}
	from, to := model.DateOf(q.From), model.DateOf(q.To)

	employee, err := r.catalog.GetEmployee(ctx, q.EmployeeID)
	if err != nil {
		return nil, fmt.Errorf("get employee %d: %w", q.EmployeeID, err)
	}
	service, err := r.catalog.GetService(ctx, q.ServiceID)
	if err != nil {
		return nil, fmt.Errorf("get service %d: %w", q.ServiceID, err)
	}
	if service.DurationMinutes <= 0 {
		return nil, apperr.Invalid("serviceId", "service %d has no duration", service.ID)
	}

	rules, err := r.rules.ListWorkingHours(ctx, q.EmployeeID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list working hours: %w", err)
	}
	blackouts, err := r.rules.ListBlackouts(ctx, q.EmployeeID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list blackouts: %w", err)
	}
	bookings, err := r.ledger.ListBookings(ctx, model.BookingFilter{FromDate: from, ToDate: to, EmployeeID: q.EmployeeID})
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}

	byDate := make(map[string][]model.Booking)
	for _, b := range bookings {
		if !b.Occupies() {
			continue
		}
		key := model.FormatDate(b.Date)
		byDate[key] = append(byDate[key], b)
	}

	now := model.WallClock(r.now())
	result := &Result{Employee: *employee, Service: *service}
	for _, date := range model.DatesBetween(from, to) {
		key := model.FormatDate(date)
		day := r.resolveDay(date, service.Duration(), rules, blackouts, byDate[key], now)
		result.Availability = append(result.Availability, day)
	}

	r.logger.Debug().
		Int64("employee_id", q.EmployeeID).
		Int64("service_id", q.ServiceID).
		Str("from", model.FormatDate(from)).
		Str("to", model.FormatDate(to)).
		Int("bookings", len(bookings)).
		Msg("availability resolved")

	return result, nil
}

func (r *Resolver) resolveDay(
	date time.Time,
	duration time.Duration,
	rules []model.WorkingHoursRule,
	blackouts []model.BlackoutWindow,
	occupied []model.Booking,
	now time.Time,
) DayAvailability {
	day := DayAvailability{
		Date:      model.FormatDate(date),
		DayOfWeek: model.DayOfWeek(date),
		Slots:     []slots.SlotInfo{},
	}

	windows, _ := EffectiveWindows(date, rules, r.hours)
	if len(windows) == 0 {
		return day
	}
	day.HasActiveTimeSlots = true

	var candidates []slots.Slot
	for _, w := range windows {
		candidates = append(candidates, slots.Generate(w, duration)...)
	}

	excluded := BlackoutsOn(date, blackouts)
	var kept []slots.Slot
	for _, s := range candidates {
		if hitsAny(s.StartTime, s.EndTime, excluded) {
			continue
		}
		for i := range occupied {
			if slots.Overlaps(s.StartTime, s.EndTime, occupied[i].StartTime, occupied[i].EndTime) {
				s.Available = false
				s.Reason = slots.ReasonBooked
				break
			}
		}
		if s.Available && s.StartTime.Before(now) {
			s.Available = false
			s.Reason = slots.ReasonPast
		}
		kept = append(kept, s)
	}
	day.Slots = append(day.Slots, slots.ToSlotInfo(kept)...)
	return day
}

// CheckBookable verifies that [start, end) lies inside one of the employee's
// effective windows on that date and clear of blackouts. Occupancy is left to
// the ledger.
func (r *Resolver) CheckBookable(ctx context.Context, employeeID int64, start, end time.Time) error {
	date := model.DateOf(start)
	rules, err := r.rules.ListWorkingHours(ctx, employeeID, date, date)
	if err != nil {
		return fmt.Errorf("list working hours: %w", err)
	}
	windows, _ := EffectiveWindows(date, rules, r.hours)
	if len(windows) == 0 {
		return apperr.Invalid("date", "employee %d does not work on %s", employeeID, model.FormatDate(date))
	}
	if !fitsAny(start, end, windows) {
		return apperr.Invalid("startTime", "%s-%s is outside working hours %s",
			model.FormatClock(start), model.FormatClock(end), formatWindows(windows))
	}

	blackouts, err := r.rules.ListBlackouts(ctx, employeeID, date, date)
	if err != nil {
		return fmt.Errorf("list blackouts: %w", err)
	}
	if hitsAny(start, end, BlackoutsOn(date, blackouts)) {
		return apperr.Invalid("startTime", "%s-%s intersects a blackout window",
			model.FormatClock(start), model.FormatClock(end))
	}
	return nil
}

func formatWindows(windows []slots.Window) string {
	parts := make([]string, len(windows))
	for i, w := range windows {
		parts[i] = model.FormatClock(w.Open) + "-" + model.FormatClock(w.Close)
	}
	return strings.Join(parts, ", ")
}

func validateQuery(q Query) error {
	if q.EmployeeID <= 0 {
		return apperr.Invalid("employeeId", "is required")
	}
	if q.ServiceID <= 0 {
		return apperr.Invalid("serviceId", "is required")
	}
	if q.From.IsZero() || q.To.IsZero() {
		return apperr.Invalid("minDate", "minDate and maxDate are required")
	}
	from, to := model.DateOf(q.From), model.DateOf(q.To)
	if to.Before(from) {
		return apperr.Invalid("maxDate", "must not be before minDate")
	}
	if int(to.Sub(from).Hours()/24) >= MaxRangeDays {
		return apperr.Invalid("maxDate", "date range exceeds maximum of %d days", MaxRangeDays)
	}
	return nil
}
