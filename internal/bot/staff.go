package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"salonbook/internal/apperr"
	"salonbook/internal/calendar"
	"salonbook/internal/events"
	"salonbook/internal/model"
)

// sendDay shows every employee's bookings of date with the "now" marker
// when date is today.
func (b *Bot) sendDay(ctx context.Context, chatID int64, date time.Time) {
	day := model.DateOf(date)
	list, err := b.bookingsOn(ctx, day)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("list bookings for day view")
		b.reply(chatID, "Could not load the schedule, please try again.")
		return
	}
	cat := b.catalog.Load()
	grid := calendar.DayView(list, day, cat.Employees(), b.opts.Layout)
	b.reply(chatID, calendar.RenderDay(grid, b.label, model.WallClock(b.now())))
}

type dayBoard struct {
	day   time.Time
	board *calendar.Board
}

// TrackToday keeps the current day loaded and refetched on every booking
// event from bus, so /today is answered from memory.
func (b *Bot) TrackToday(ctx context.Context, bus calendar.Subscriber) (detach func(), err error) {
	board := calendar.NewBoard(b.backend, b.logger)
	day := model.DateOf(b.now())
	if err := board.Show(ctx, model.BookingFilter{FromDate: day, ToDate: day}); err != nil {
		return nil, err
	}
	off := board.Attach(bus)
	b.today.Store(&dayBoard{day: day, board: board})
	return func() {
		b.today.Store(nil)
		off()
	}, nil
}

func (b *Bot) bookingsOn(ctx context.Context, day time.Time) ([]model.Booking, error) {
	tb := b.today.Load()
	if tb == nil || !day.Equal(model.DateOf(b.now())) {
		return b.backend.ListBookings(ctx, model.BookingFilter{FromDate: day, ToDate: day})
	}
	if !tb.day.Equal(day) {
		// midnight passed since the board was last shown
		if err := tb.board.Show(ctx, model.BookingFilter{FromDate: day, ToDate: day}); err != nil {
			return nil, err
		}
		b.today.CompareAndSwap(tb, &dayBoard{day: day, board: tb.board})
	}
	return tb.board.Bookings(), nil
}

func (b *Bot) sendDayArg(ctx context.Context, chatID int64, arg string) {
	d, err := model.ParseDate(strings.TrimSpace(arg))
	if err != nil {
		b.reply(chatID, "Usage: /day YYYY-MM-DD")
		return
	}
	b.sendDay(ctx, chatID, d)
}

func (b *Bot) sendMonth(ctx context.Context, chatID int64, now time.Time) {
	from, to := calendar.MonthRange(now.Year(), now.Month())
	list, err := b.backend.ListBookings(ctx, model.BookingFilter{FromDate: from, ToDate: to})
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("list bookings for month view")
		b.reply(chatID, "Could not load the calendar, please try again.")
		return
	}
	m := calendar.MonthView(list, now.Year(), now.Month())
	msg := tgbotapi.NewMessage(chatID, "```\n"+calendar.RenderMonth(m)+"```")
	msg.ParseMode = tgbotapi.ModeMarkdown
	b.send(msg)
}

func (b *Bot) staffCancel(ctx context.Context, chatID int64, arg string) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		b.reply(chatID, "Usage: /cancel_booking <id>")
		return
	}
	bk, err := b.backend.CancelBooking(ctx, id)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Int64("booking_id", id).Msg("staff cancel failed")
		b.reply(chatID, apperr.UserMessage(err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Booking #%d on %s at %s cancelled.", bk.ID, model.FormatDate(bk.Date), model.FormatClock(bk.StartTime)))
}

func (b *Bot) label(bk model.Booking) string {
	name := fmt.Sprintf("service %d", bk.ServiceID)
	if s, ok := b.catalog.Load().Service(bk.ServiceID); ok {
		name = s.Name
	}
	return fmt.Sprintf("%s · #%d client %d", name, bk.ID, bk.ClientID)
}

// NotifyStaff forwards booking changes from bus to every staff chat. Sends
// happen off the publisher's goroutine.
func (b *Bot) NotifyStaff(bus calendar.Subscriber) (unsubscribe func()) {
	if len(b.staff) == 0 {
		return func() {}
	}
	handler := func(e events.Event) error {
		text := b.eventText(e)
		go func() {
			for id := range b.staff {
				b.reply(id, text)
			}
		}()
		return nil
	}
	offs := []func(){
		bus.Subscribe(events.BookingCreated, handler),
		bus.Subscribe(events.BookingCancelled, handler),
	}
	return func() {
		for _, off := range offs {
			off()
		}
	}
}

func (b *Bot) eventText(e events.Event) string {
	who := fmt.Sprintf("employee %d", e.EmployeeID)
	for _, emp := range b.catalog.Load().Employees() {
		if emp.ID == e.EmployeeID {
			who = emp.Name
			break
		}
	}
	verb := "New booking"
	if e.Type == events.BookingCancelled {
		verb = "Cancelled"
	}
	return fmt.Sprintf("%s #%d: %s, %s", verb, e.BookingID, who, e.Date.Format("Mon 02 Jan"))
}
