package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"salonbook/internal/apperr"
	"salonbook/internal/availability"
	"salonbook/internal/identity"
	"salonbook/internal/model"
	"salonbook/internal/wizard"
)

// Client fields asked for at confirmation, in order. "-" skips an
// optional one.
var fields = []struct {
	name     string
	prompt   string
	optional bool
}{
	{"nationalId", "Enter your national ID number:", false},
	{"fullName", "Enter your full name:", false},
	{"email", "Enter your email, or - to skip:", true},
	{"phone", "Enter your phone number, or - to skip:", true},
}

// newSession is the SessionStore factory. Private chats share the user id,
// so availability results go to chat userID.
func (b *Bot) newSession(userID int64) *wizard.Session {
	s := &wizard.Session{Wizard: wizard.New(b.catalog.Load(), b.backend)}
	s.Query = wizard.NewAvailabilityQuery(context.Background(), b.backend.GetAvailability, b.opts.Debounce,
		func(_ availability.Query, res *availability.Result, err error) {
			b.deliverAvailability(userID, s, res, err)
		})
	return s
}

func (b *Bot) startBooking(ctx context.Context, chatID, userID int64) {
	b.sessions.Delete(userID)
	s := b.sessions.GetOrCreate(userID)
	s.Lock()
	defer s.Unlock()
	zerolog.Ctx(ctx).Info().Int64("user_id", userID).Msg("booking wizard started")
	b.render(ctx, chatID, s)
}

func (b *Bot) cancelBooking(chatID, userID int64) {
	if s := b.sessions.Get(userID); s != nil {
		s.Lock()
		s.Wizard.Cancel()
		s.Unlock()
	}
	b.sessions.Delete(userID)
	b.reply(chatID, "Cancelled. Nothing was booked. /book to start again.")
}

func (b *Bot) handleWizardCallback(ctx context.Context, chatID, userID int64, data string) {
	if data == "cancel" {
		b.cancelBooking(chatID, userID)
		return
	}

	s := b.sessions.Get(userID)
	if s == nil || s.Wizard.Closed() {
		b.reply(chatID, "This booking has expired. /book to start again.")
		return
	}
	s.Lock()
	defer s.Unlock()
	s.Touch(b.now())
	w := s.Wizard

	kind, arg, _ := strings.Cut(data, ":")
	var err error
	switch kind {
	case "terms":
		if err = w.AcceptTerms(true); err == nil {
			err = w.Next()
		}
	case "opts":
		b.sendOptions(chatID, w, atoiOr(arg, 0))
		return
	case "opt":
		if err = w.SelectOption(arg); err == nil {
			err = w.Next()
		}
	case "pro":
		if err = w.ConfirmProfessional(); err == nil {
			b.loadAvailability(chatID, s)
			return
		}
	case "retry":
		b.loadAvailability(chatID, s)
		return
	case "dates":
		b.sendDates(chatID, w)
		return
	case "date":
		b.sendSlots(chatID, w, arg)
		return
	case "slot":
		date, start, _ := strings.Cut(arg, " ")
		if err = w.SelectSlot(parseDateOrZero(date), start); err == nil {
			err = w.Next()
			s.Input.Field = ""
		}
	case "back":
		err = w.Back()
		s.Input = wizard.Draft{}
	case "confirm":
		b.submit(ctx, chatID, userID, s)
		return
	default:
		return
	}

	if err != nil {
		b.reply(chatID, apperr.UserMessage(err))
	}
	b.render(ctx, chatID, s)
}

// handleText feeds typed client details into the confirmation draft. At the
// session type step a typed name picks the matching option.
func (b *Bot) handleText(ctx context.Context, chatID, userID int64, text string) {
	s := b.sessions.Get(userID)
	if s == nil || s.Wizard.Closed() {
		b.sendMenu(chatID, userID)
		return
	}
	s.Lock()
	defer s.Unlock()
	s.Touch(b.now())

	if _, ok := s.Wizard.Step().(wizard.SessionTypeStep); ok {
		b.selectByName(ctx, chatID, s, text)
		return
	}

	if _, ok := s.Wizard.Step().(wizard.ConfirmationStep); !ok || s.Input.Field == "" {
		b.reply(chatID, "Please use the buttons above, or /cancel.")
		return
	}

	value := strings.TrimSpace(text)
	if value == "-" {
		value = ""
	}
	if msg := checkField(s.Input.Field, value); msg != "" {
		b.reply(chatID, msg)
		return
	}
	if value == "" {
		s.Input.Skip(s.Input.Field)
	} else {
		setField(&s.Input, s.Input.Field, value)
	}
	s.Input.Field = ""
	b.render(ctx, chatID, s)
}

func (b *Bot) selectByName(ctx context.Context, chatID int64, s *wizard.Session, text string) {
	w := s.Wizard
	o, ok := w.Catalog().ResolveByName(text)
	if !ok {
		b.reply(chatID, fmt.Sprintf("No session type matches %q. Please pick one below.", strings.TrimSpace(text)))
		b.sendOptions(chatID, w, 0)
		return
	}
	err := w.SelectOption(o.ID)
	if err == nil {
		err = w.Next()
	}
	if err != nil {
		b.reply(chatID, apperr.UserMessage(err))
	}
	b.render(ctx, chatID, s)
}

func checkField(field, value string) string {
	switch field {
	case "nationalId":
		if identity.NormalizeNationalID(value) == "" {
			return "The national ID is required."
		}
	case "fullName":
		if value == "" {
			return "Your name is required."
		}
	case "email":
		if value != "" && !identity.ValidEmail(value) {
			return "That email does not look right. Try again or send -."
		}
	case "phone":
		if value != "" {
			if _, ok := identity.NormalizePhone(value); !ok {
				return "That phone number does not look right. Example: +34 600 123 456"
			}
		}
	}
	return ""
}

func setField(d *wizard.Draft, field, value string) {
	switch field {
	case "nationalId":
		d.NationalID = value
	case "fullName":
		d.FullName = value
	case "email":
		d.Email = value
	case "phone":
		d.Phone = value
	}
}

// render shows whatever the current step needs next.
func (b *Bot) render(ctx context.Context, chatID int64, s *wizard.Session) {
	w := s.Wizard
	switch st := w.Step().(type) {
	case wizard.TermsStep:
		msg := tgbotapi.NewMessage(chatID, "Before booking, please accept the salon terms: appointments can be cancelled up to 24 hours ahead.")
		msg.ReplyMarkup = termsKeyboard()
		b.send(msg)
	case wizard.SessionTypeStep:
		b.sendOptions(chatID, w, 0)
	case wizard.SlotSelectionStep:
		if st.Phase == wizard.PhaseProfessional {
			msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("%s will see you for %s.", st.Professional.Name, st.Option.Label))
			msg.ReplyMarkup = professionalKeyboard()
			b.send(msg)
			return
		}
		if st.Days == nil {
			b.loadAvailability(chatID, s)
			return
		}
		b.sendDates(chatID, w)
	case wizard.ConfirmationStep:
		if field := b.pendingField(s); field != "" {
			s.Input.Field = field
			msg := tgbotapi.NewMessage(chatID, promptFor(field))
			msg.ReplyMarkup = backKeyboard()
			b.send(msg)
			return
		}
		msg := tgbotapi.NewMessage(chatID, summary(st, s.Input))
		msg.ReplyMarkup = confirmKeyboard()
		b.send(msg)
	}
	zerolog.Ctx(ctx).Debug().Str("step", w.Step().Name()).Msg("wizard rendered")
}

// pendingField walks the fields in order; required ones must be filled and
// optional ones are asked once.
func (b *Bot) pendingField(s *wizard.Session) string {
	d := &s.Input
	values := map[string]string{
		"nationalId": d.NationalID,
		"fullName":   d.FullName,
		"email":      d.Email,
		"phone":      d.Phone,
	}
	for _, f := range fields {
		if values[f.name] != "" {
			continue
		}
		if f.optional && d.Skipped(f.name) {
			continue
		}
		return f.name
	}
	return ""
}

func promptFor(field string) string {
	for _, f := range fields {
		if f.name == field {
			return f.prompt
		}
	}
	return ""
}

func summary(st wizard.ConfirmationStep, d wizard.Draft) string {
	var sb strings.Builder
	sb.WriteString("Please confirm your appointment:\n\n")
	fmt.Fprintf(&sb, "%s with %s\n", st.Option.Label, st.Professional.Name)
	fmt.Fprintf(&sb, "%s, %s-%s\n", st.Slot.Date.Format("Mon 02 Jan 2006"), st.Slot.StartTime, st.Slot.EndTime)
	if dep := st.Option.Service.Deposit(); dep > 0 {
		fmt.Fprintf(&sb, "Price %.2f, deposit %.2f at the salon\n", st.Option.Service.Price, dep)
	}
	fmt.Fprintf(&sb, "\nName: %s\nNational ID: %s\n", d.FullName, d.NationalID)
	if d.Email != "" {
		fmt.Fprintf(&sb, "Email: %s\n", d.Email)
	}
	if d.Phone != "" {
		fmt.Fprintf(&sb, "Phone: %s\n", d.Phone)
	}
	return sb.String()
}

func (b *Bot) loadAvailability(chatID int64, s *wizard.Session) {
	from, to := s.Wizard.DefaultRange(b.opts.LookaheadDays)
	q, ok := s.Wizard.Query(from, to)
	if !ok {
		return
	}
	s.Query.Set(q)
	b.reply(chatID, "Looking for free times...")
}

// deliverAvailability runs on the query goroutine with the latest result.
func (b *Bot) deliverAvailability(chatID int64, s *wizard.Session, res *availability.Result, err error) {
	s.Lock()
	defer s.Unlock()
	if s.Wizard.Closed() {
		return
	}
	if err != nil {
		b.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("availability fetch failed")
		msg := tgbotapi.NewMessage(chatID, "Could not load free times. Nothing was retried, please try again.")
		msg.ReplyMarkup = retryKeyboard()
		b.send(msg)
		return
	}
	s.Wizard.ApplyAvailability(res)
	b.sendDates(chatID, s.Wizard)
}

func (b *Bot) sendOptions(chatID int64, w *wizard.Wizard, page int) {
	msg := tgbotapi.NewMessage(chatID, "Choose a session type:")
	msg.ReplyMarkup = optionsKeyboard(w.Catalog().Options(), page)
	b.send(msg)
}

func (b *Bot) sendDates(chatID int64, w *wizard.Wizard) {
	st, ok := w.Step().(wizard.SlotSelectionStep)
	if !ok || st.Phase != wizard.PhaseSlot {
		return
	}
	open := make(map[string]bool)
	for _, d := range st.Days {
		if len(d.AvailableSlots()) > 0 {
			open[d.Date] = true
		}
	}
	if len(open) == 0 {
		msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("%s has no free times in the next %d days.", st.Professional.Name, b.opts.LookaheadDays))
		msg.ReplyMarkup = backKeyboard()
		b.send(msg)
		return
	}
	msg := tgbotapi.NewMessage(chatID, "Choose a date:")
	msg.ReplyMarkup = datesKeyboard(st.Days, open)
	b.send(msg)
}

func (b *Bot) sendSlots(chatID int64, w *wizard.Wizard, date string) {
	st, ok := w.Step().(wizard.SlotSelectionStep)
	if !ok || st.Phase != wizard.PhaseSlot {
		return
	}
	d, err := model.ParseDate(date)
	if err != nil {
		b.reply(chatID, "Invalid date")
		return
	}
	free := st.AvailableSlots(d)
	if len(free) == 0 {
		b.reply(chatID, "No free times left that day.")
		b.sendDates(chatID, w)
		return
	}
	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("Free times on %s:", d.Format("Mon 02 Jan")))
	msg.ReplyMarkup = slotsKeyboard(date, free)
	b.send(msg)
}

// submit commits the booking. A conflict sends the user back to the dates
// with fresh availability; other failures keep the confirmation.
func (b *Bot) submit(ctx context.Context, chatID, userID int64, s *wizard.Session) {
	in := identity.Input{
		FullName:   s.Input.FullName,
		Email:      s.Input.Email,
		Phone:      s.Input.Phone,
		NationalID: s.Input.NationalID,
	}
	l := zerolog.Ctx(ctx)

	out, err := s.Wizard.Submit(ctx, in)
	if err == nil {
		l.Info().Int64("booking_id", out.Booking.ID).Bool("client_new", out.ClientIsNew).Msg("booking created")
		b.reply(chatID, fmt.Sprintf("Booked! %s at %s. Reference %s.",
			model.FormatDate(out.Booking.Date), model.FormatClock(out.Booking.StartTime), out.Booking.Reference))
		b.sessions.Delete(userID)
		return
	}

	l.Warn().Err(err).Str("code", apperr.Code(err)).Msg("booking submit failed")
	b.reply(chatID, apperr.UserMessage(err))

	var ve *apperr.ValidationError
	switch {
	case errors.Is(err, apperr.ErrConflict):
		b.sendDates(chatID, s.Wizard)
	case errors.As(err, &ve):
		s.Input.Field = ""
		b.render(ctx, chatID, s)
	default:
		if st, ok := s.Wizard.Step().(wizard.ConfirmationStep); ok {
			msg := tgbotapi.NewMessage(chatID, summary(st, s.Input))
			msg.ReplyMarkup = confirmKeyboard()
			b.send(msg)
		}
	}
}
