// Package wizard is the client booking dialog: accept terms, pick a session
// type, confirm the professional, pick a slot, then commit.
package wizard

import (
	"context"
	"errors"
	"time"

	"salonbook/internal/apperr"
	"salonbook/internal/availability"
	"salonbook/internal/booking"
	"salonbook/internal/events"
	"salonbook/internal/identity"
	"salonbook/internal/model"
	"salonbook/internal/slots"
)

// Step is one of TermsStep, SessionTypeStep, SlotSelectionStep or
// ConfirmationStep. Each carries only what is valid in that state.
type Step interface {
	Name() string
	isStep()
}

type TermsStep struct {
	Accepted bool
}

type SessionTypeStep struct {
	// OptionID is empty until the user picks one.
	OptionID string
}

type SlotPhase int

const (
	PhaseProfessional SlotPhase = iota
	PhaseSlot
)

type SlotSelectionStep struct {
	Option       Option
	Professional model.Employee
	Phase        SlotPhase
	Days         []availability.DayAvailability
	// Selected is nil until a slot is picked.
	Selected *Choice
}

type ConfirmationStep struct {
	Option       Option
	Professional model.Employee
	Slot         Choice
}

// Choice is a picked candidate.
type Choice struct {
	Date      time.Time
	StartTime string
	EndTime   string
}

func (TermsStep) Name() string { return "terms" }
func (SessionTypeStep) Name() string { return "session_type" }
func (SlotSelectionStep) Name() string { return "slot_selection" }
func (ConfirmationStep) Name() string { return "confirmation" }

func (TermsStep) isStep() {}
func (SessionTypeStep) isStep() {}
func (SlotSelectionStep) isStep() {}
func (ConfirmationStep) isStep() {}

// Wizard is driven by one user at a time; callers serialise access.
type Wizard struct {
	catalog *Catalog
	backend booking.Backend
	saga    *booking.Saga
	bus     booking.Publisher
	now     func() time.Time

	step    Step
	closed  bool
	from    time.Time
	to      time.Time
	partial *apperr.PartialFailureError
}

type Setting func(*Wizard)

// WithPublisher announces successful bookings on bus. Leave it unset when
// the backend publishes itself.
func WithPublisher(bus booking.Publisher) Setting {
	return func(w *Wizard) { w.bus = bus }
}

func WithClock(now func() time.Time) Setting {
	return func(w *Wizard) { w.now = now }
}

func New(catalog *Catalog, backend booking.Backend, opts ...Setting) *Wizard {
	w := &Wizard{
		catalog: catalog,
		backend: backend,
		saga:    booking.NewSaga(backend),
		now:     func() time.Time { return model.WallClock(time.Now()) },
		step:    TermsStep{},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Wizard) Step() Step { return w.step }
func (w *Wizard) Closed() bool { return w.closed }
func (w *Wizard) Catalog() *Catalog { return w.catalog }

// Partial reports a client resolved by a failed commit, if any.
func (w *Wizard) Partial() *apperr.PartialFailureError { return w.partial }

func (w *Wizard) AcceptTerms(accepted bool) error {
	if w.closed {
		return errClosed
	}
	st, ok := w.step.(TermsStep)
	if !ok {
		return w.wrongStep("terms")
	}
	st.Accepted = accepted
	w.step = st
	return nil
}

func (w *Wizard) SelectOption(id string) error {
	if w.closed {
		return errClosed
	}
	st, ok := w.step.(SessionTypeStep)
	if !ok {
		return w.wrongStep("session type")
	}
	if _, ok := w.catalog.Option(id); !ok {
		return apperr.Invalid("option", "unknown option %q", id)
	}
	st.OptionID = id
	w.step = st
	return nil
}

// Next advances one step when the current one is complete.
func (w *Wizard) Next() error {
	if w.closed {
		return errClosed
	}
	switch st := w.step.(type) {
	case TermsStep:
		if !st.Accepted {
			return apperr.Invalid("terms", "must be accepted to continue")
		}
		w.step = SessionTypeStep{}
	case SessionTypeStep:
		if st.OptionID == "" {
			return apperr.Invalid("option", "select a session type")
		}
		opt, _ := w.catalog.Option(st.OptionID)
		pro, err := w.catalog.Professional(opt)
		if err != nil {
			return err
		}
		w.step = SlotSelectionStep{Option: opt, Professional: pro, Phase: PhaseProfessional}
	case SlotSelectionStep:
		if st.Phase != PhaseSlot {
			return apperr.Invalid("professional", "confirm the professional first")
		}
		if st.Selected == nil {
			return apperr.Invalid("slot", "select a time slot")
		}
		w.step = ConfirmationStep{Option: st.Option, Professional: st.Professional, Slot: *st.Selected}
	case ConfirmationStep:
		return apperr.Invalid("confirmation", "submit to finish")
	}
	return nil
}

// Back moves one step (or sub-phase) backwards keeping earlier choices.
func (w *Wizard) Back() error {
	if w.closed {
		return errClosed
	}
	switch st := w.step.(type) {
	case TermsStep:
		return apperr.Invalid("terms", "already at the first step")
	case SessionTypeStep:
		w.step = TermsStep{Accepted: true}
	case SlotSelectionStep:
		if st.Phase == PhaseSlot {
			w.step = SlotSelectionStep{Option: st.Option, Professional: st.Professional, Phase: PhaseProfessional}
			return nil
		}
		w.step = SessionTypeStep{OptionID: st.Option.ID}
	case ConfirmationStep:
		sel := st.Slot
		w.step = SlotSelectionStep{Option: st.Option, Professional: st.Professional, Phase: PhaseSlot, Selected: &sel}
	}
	return nil
}

// Cancel closes the wizard and discards every choice.
func (w *Wizard) Cancel() {
	w.reset()
}

func (w *Wizard) ConfirmProfessional() error {
	st, ok := w.step.(SlotSelectionStep)
	if !ok || st.Phase != PhaseProfessional {
		return w.wrongStep("professional confirmation")
	}
	st.Phase = PhaseSlot
	w.step = st
	return nil
}

// LoadAvailability resolves candidates for [from, to] and drops a previous
// selection that is no longer available.
func (w *Wizard) LoadAvailability(ctx context.Context, from, to time.Time) error {
	st, ok := w.step.(SlotSelectionStep)
	if !ok || st.Phase != PhaseSlot {
		return w.wrongStep("slot selection")
	}
	res, err := w.backend.GetAvailability(ctx, w.query(st, from, to))
	if err != nil {
		return err
	}
	w.from, w.to = model.DateOf(from), model.DateOf(to)
	w.ApplyAvailability(res)
	return nil
}

// ApplyAvailability installs a result fetched elsewhere, for example by an
// AvailabilityQuery. It is ignored outside the slot phase.
func (w *Wizard) ApplyAvailability(res *availability.Result) {
	st, ok := w.step.(SlotSelectionStep)
	if !ok || st.Phase != PhaseSlot || res == nil {
		return
	}
	st.Days = res.Availability
	if st.Selected != nil && !available(st.Days, *st.Selected) {
		st.Selected = nil
	}
	w.step = st
}

// DefaultRange is today plus days-1 following dates.
func (w *Wizard) DefaultRange(days int) (time.Time, time.Time) {
	if days < 1 {
		days = 1
	}
	today := model.DateOf(w.now())
	return today, today.AddDate(0, 0, days-1)
}

// Query returns the availability request of the slot phase for a range.
func (w *Wizard) Query(from, to time.Time) (availability.Query, bool) {
	st, ok := w.step.(SlotSelectionStep)
	if !ok || st.Phase != PhaseSlot {
		return availability.Query{}, false
	}
	w.from, w.to = model.DateOf(from), model.DateOf(to)
	return w.query(st, from, to), true
}

func (w *Wizard) query(st SlotSelectionStep, from, to time.Time) availability.Query {
	return availability.Query{
		EmployeeID: st.Professional.ID,
		ServiceID:  st.Option.Service.ID,
		From:       model.DateOf(from),
		To:         model.DateOf(to),
	}
}

// SelectSlot picks an available candidate from the loaded availability.
func (w *Wizard) SelectSlot(date time.Time, start string) error {
	st, ok := w.step.(SlotSelectionStep)
	if !ok || st.Phase != PhaseSlot {
		return w.wrongStep("slot selection")
	}
	want := model.FormatDate(date)
	for _, day := range st.Days {
		if day.Date != want {
			continue
		}
		for _, s := range day.Slots {
			if s.StartTime == start && s.Available {
				st.Selected = &Choice{Date: model.DateOf(date), StartTime: s.StartTime, EndTime: s.EndTime}
				w.step = st
				return nil
			}
		}
	}
	return apperr.Invalid("slot", "%s %s is not available", want, start)
}

// Submit resolves the client and books the confirmed slot. On success the
// wizard resets and closes. A conflict returns to slot picking with fresh
// availability; any other failure keeps the confirmation step.
func (w *Wizard) Submit(ctx context.Context, in identity.Input) (*booking.Outcome, error) {
	st, ok := w.step.(ConfirmationStep)
	if !ok {
		return nil, w.wrongStep("confirmation")
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	slot := booking.Slot{
		EmployeeID: st.Professional.ID,
		ServiceID:  st.Option.Service.ID,
		Date:       model.FormatDate(st.Slot.Date),
		StartTime:  st.Slot.StartTime,
		Quantity:   1,
	}

	var (
		out *booking.Outcome
		err error
	)
	if w.partial != nil && w.partial.Client != nil && w.partial.Client.NationalID == in.NationalID {
		out, err = w.saga.Resume(ctx, w.partial, slot)
	} else {
		out, err = w.saga.Commit(ctx, in, slot)
	}

	if err == nil {
		if w.bus != nil && out.Booking != nil {
			w.bus.Publish(events.Event{
				Type:       events.BookingCreated,
				BookingID:  out.Booking.ID,
				EmployeeID: out.Booking.EmployeeID,
				Date:       out.Booking.Date,
			})
		}
		w.reset()
		return out, nil
	}

	if p, ok := apperr.AsPartial(err); ok {
		w.partial = p
	}
	if errors.Is(err, apperr.ErrConflict) {
		w.step = SlotSelectionStep{Option: st.Option, Professional: st.Professional, Phase: PhaseSlot}
		from, to := w.from, w.to
		if from.IsZero() {
			from = st.Slot.Date
			to = st.Slot.Date
		}
		if loadErr := w.LoadAvailability(ctx, from, to); loadErr != nil {
			return out, errors.Join(err, loadErr)
		}
	}
	return out, err
}

func (w *Wizard) reset() {
	w.step = TermsStep{}
	w.closed = true
	w.partial = nil
	w.from, w.to = time.Time{}, time.Time{}
}

var errClosed = apperr.Invalid("wizard", "is closed, start a new booking")

func (w *Wizard) wrongStep(want string) error {
	return apperr.Invalid("step", "not at %s (currently %s)", want, w.step.Name())
}

func available(days []availability.DayAvailability, c Choice) bool {
	want := model.FormatDate(c.Date)
	for _, d := range days {
		if d.Date != want {
			continue
		}
		for _, s := range d.Slots {
			if s.StartTime == c.StartTime {
				return s.Available
			}
		}
	}
	return false
}

// AvailableSlots lists the selectable candidates of date in the slot phase.
func (st SlotSelectionStep) AvailableSlots(date time.Time) []slots.SlotInfo {
	want := model.FormatDate(date)
	for i := range st.Days {
		if st.Days[i].Date == want {
			return st.Days[i].AvailableSlots()
		}
	}
	return nil
}
