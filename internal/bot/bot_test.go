package bot

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salonbook/internal/apperr"
	"salonbook/internal/availability"
	"salonbook/internal/booking"
	"salonbook/internal/config"
	"salonbook/internal/events"
	"salonbook/internal/identity"
	"salonbook/internal/model"
	"salonbook/internal/slots"
	"salonbook/internal/wizard"
)

const botCatalog = `
employees:
  - {id: 1, name: Ana Ruiz, category: hair, is_active: true}
services:
  - {id: 10, name: Haircut, category: hair, price: 40, deposit_percent: 25, duration_minutes: 60, is_active: true}
options:
  - {id: cut, label: Classic cut, service_id: 10, employee_id: 1}
`

type fakeTG struct {
	mu   sync.Mutex
	sent []tgbotapi.MessageConfig
}

func (f *fakeTG) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, m)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeTG) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeTG) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(chan tgbotapi.Update)
}

func (f *fakeTG) SelfUser() tgbotapi.User { return tgbotapi.User{UserName: "salonbot"} }

func (f *fakeTG) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, m := range f.sent {
		out[i] = m.Text
	}
	return out
}

func (f *fakeTG) lastText() string {
	t := f.texts()
	if len(t) == 0 {
		return ""
	}
	return t[len(t)-1]
}

func (f *fakeTG) saw(prefix string) bool {
	for _, t := range f.texts() {
		if strings.HasPrefix(t, prefix) {
			return true
		}
	}
	return false
}

type stubBackend struct {
	mu        sync.Mutex
	lastQuery availability.Query
	createErr error
	created   []booking.CreateRequest
	resolved  []identity.Input
	listed    []model.Booking
	cancelled []int64
	lists     int
}

func (s *stubBackend) GetAvailability(_ context.Context, q availability.Query) (*availability.Result, error) {
	s.mu.Lock()
	s.lastQuery = q
	s.mu.Unlock()
	var days []availability.DayAvailability
	for _, d := range model.DatesBetween(q.From, q.To) {
		days = append(days, availability.DayAvailability{
			Date:               model.FormatDate(d),
			DayOfWeek:          model.DayOfWeek(d),
			HasActiveTimeSlots: true,
			Slots: []slots.SlotInfo{
				{StartTime: "10:00", EndTime: "11:00", Available: true},
				{StartTime: "11:00", EndTime: "12:00", Available: true},
			},
		})
	}
	return &availability.Result{Availability: days}, nil
}

func (s *stubBackend) CreateBooking(_ context.Context, req booking.CreateRequest) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, req)
	if s.createErr != nil {
		return nil, s.createErr
	}
	date, _ := model.ParseDate(req.Date)
	start, _ := model.ParseClock(date, req.StartTime)
	return &model.Booking{ID: 1, Reference: "SB-1", Date: date, StartTime: start, EndTime: start.Add(time.Hour), Status: model.StatusActive}, nil
}

func (s *stubBackend) CancelBooking(_ context.Context, id int64) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = append(s.cancelled, id)
	if id != 7 {
		return nil, apperr.ErrNotFound
	}
	d := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	return &model.Booking{ID: 7, Date: d, StartTime: model.OnDate(d, 10, 0), Status: model.StatusCancelled}, nil
}

func (s *stubBackend) ListBookings(context.Context, model.BookingFilter) ([]model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists++
	return append([]model.Booking(nil), s.listed...), nil
}

func (s *stubBackend) ResolveClient(_ context.Context, in identity.Input) (identity.Resolution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolved = append(s.resolved, in)
	return identity.Resolution{Client: &model.Client{ID: 3, NationalID: in.NationalID}, IsNew: true}, nil
}

func newTestBot(t *testing.T, backend *stubBackend) (*Bot, *fakeTG) {
	t.Helper()
	cfg, err := config.ParseCatalog([]byte(botCatalog))
	require.NoError(t, err)
	cat, err := wizard.NewCatalog(cfg)
	require.NoError(t, err)

	tg := &fakeTG{}
	b, err := NewWithTelegramClient(tg, backend, cat, Options{
		Staff:         []int64{99},
		LookaheadDays: 3,
		Debounce:      time.Millisecond,
	}, nil)
	require.NoError(t, err)
	return b, tg
}

const user = int64(42)

func message(from int64, text string) *tgbotapi.Update {
	return &tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: from},
		Chat: &tgbotapi.Chat{ID: from},
		Text: text,
	}}
}

func callback(from int64, data string) *tgbotapi.Update {
	return &tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: from},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: from}},
		Data:    data,
	}}
}

// toConfirmation drives a user through the wizard up to the summary.
func toConfirmation(t *testing.T, b *Bot, tg *fakeTG, backend *stubBackend) string {
	t.Helper()
	ctx := context.Background()

	b.handleUpdate(ctx, message(user, "/book"))
	assert.True(t, strings.HasPrefix(tg.lastText(), "Before booking"))

	b.handleUpdate(ctx, callback(user, "terms:accept"))
	assert.Equal(t, "Choose a session type:", tg.lastText())

	b.handleUpdate(ctx, callback(user, "opt:cut"))
	assert.Equal(t, "Ana Ruiz will see you for Classic cut.", tg.lastText())

	b.handleUpdate(ctx, callback(user, "pro:ok"))
	require.Eventually(t, func() bool { return tg.lastText() == "Choose a date:" }, time.Second, 5*time.Millisecond)

	backend.mu.Lock()
	date := model.FormatDate(backend.lastQuery.From)
	backend.mu.Unlock()

	b.handleUpdate(ctx, callback(user, "date:"+date))
	assert.True(t, strings.HasPrefix(tg.lastText(), "Free times on"))

	b.handleUpdate(ctx, callback(user, "slot:"+date+" 10:00"))
	assert.Equal(t, "Enter your national ID number:", tg.lastText())

	b.handleUpdate(ctx, message(user, "x-1"))
	assert.Equal(t, "Enter your full name:", tg.lastText())
	b.handleUpdate(ctx, message(user, "Dana Ruiz"))
	assert.Equal(t, "Enter your email, or - to skip:", tg.lastText())
	b.handleUpdate(ctx, message(user, "not-an-email"))
	assert.Contains(t, tg.lastText(), "does not look right")
	b.handleUpdate(ctx, message(user, "-"))
	assert.Equal(t, "Enter your phone number, or - to skip:", tg.lastText())
	b.handleUpdate(ctx, message(user, "+34 600 123 456"))
	require.True(t, strings.HasPrefix(tg.lastText(), "Please confirm"))
	assert.Contains(t, tg.lastText(), "deposit 10.00")
	return date
}

func TestBookingFlow(t *testing.T) {
	backend := &stubBackend{}
	b, tg := newTestBot(t, backend)

	date := toConfirmation(t, b, tg, backend)
	b.handleUpdate(context.Background(), callback(user, "confirm"))

	assert.Contains(t, tg.lastText(), "Booked!")
	assert.Contains(t, tg.lastText(), "SB-1")
	require.Len(t, backend.resolved, 1)
	assert.Equal(t, "X1", backend.resolved[0].NationalID)
	assert.Equal(t, "+34600123456", backend.resolved[0].Phone)
	require.Len(t, backend.created, 1)
	assert.Equal(t, booking.CreateRequest{ClientID: 3, EmployeeID: 1, ServiceID: 10, Date: date, StartTime: "10:00", Quantity: 1}, backend.created[0])
	assert.Nil(t, b.sessions.Get(user))
}

func TestBookingFlow_Conflict(t *testing.T) {
	backend := &stubBackend{createErr: apperr.ErrConflict}
	b, tg := newTestBot(t, backend)

	toConfirmation(t, b, tg, backend)
	b.handleUpdate(context.Background(), callback(user, "confirm"))

	texts := tg.texts()
	require.GreaterOrEqual(t, len(texts), 2)
	assert.Contains(t, texts[len(texts)-2], "client record was created")
	assert.Contains(t, texts[len(texts)-2], "just taken")
	assert.Equal(t, "Choose a date:", texts[len(texts)-1])

	s := b.sessions.Get(user)
	require.NotNil(t, s)
	_, ok := s.Wizard.Step().(wizard.SlotSelectionStep)
	assert.True(t, ok)
}

func TestBookingFlow_Cancel(t *testing.T) {
	backend := &stubBackend{}
	b, tg := newTestBot(t, backend)
	ctx := context.Background()

	b.handleUpdate(ctx, message(user, "/book"))
	b.handleUpdate(ctx, callback(user, "terms:accept"))
	b.handleUpdate(ctx, callback(user, "cancel"))
	assert.Contains(t, tg.lastText(), "Nothing was booked")
	assert.Nil(t, b.sessions.Get(user))

	b.handleUpdate(ctx, callback(user, "opt:cut"))
	assert.Contains(t, tg.lastText(), "expired")
	assert.Empty(t, backend.resolved)
}

func TestBookingFlow_Back(t *testing.T) {
	backend := &stubBackend{}
	b, tg := newTestBot(t, backend)
	ctx := context.Background()

	b.handleUpdate(ctx, message(user, "/book"))
	b.handleUpdate(ctx, callback(user, "terms:accept"))
	b.handleUpdate(ctx, callback(user, "opt:cut"))
	b.handleUpdate(ctx, callback(user, "back"))
	assert.Equal(t, "Choose a session type:", tg.lastText())
	b.handleUpdate(ctx, callback(user, "back"))
	assert.True(t, strings.HasPrefix(tg.lastText(), "Before booking"))
}

func TestStaffCommands(t *testing.T) {
	d := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	start := model.OnDate(d, 10, 0)
	backend := &stubBackend{listed: []model.Booking{
		{ID: 5, EmployeeID: 1, ServiceID: 10, ClientID: 3, Date: d, StartTime: start, EndTime: start.Add(time.Hour), Status: model.StatusActive},
	}}
	b, tg := newTestBot(t, backend)
	b.now = func() time.Time { return model.OnDate(d, 12, 15) }
	ctx := context.Background()

	b.handleUpdate(ctx, message(user, "/today"))
	assert.Equal(t, "Unknown command. /help", tg.lastText())

	b.handleUpdate(ctx, message(99, "/today"))
	day := tg.lastText()
	assert.Contains(t, day, "Ana Ruiz")
	assert.Contains(t, day, "10:00-11:00  Haircut · #5 client 3")
	assert.Contains(t, day, "now 12:15")

	b.handleUpdate(ctx, message(99, "/month"))
	assert.Contains(t, tg.lastText(), " 2:1")

	b.handleUpdate(ctx, message(99, "/cancel_booking 7"))
	assert.Contains(t, tg.lastText(), "Booking #7")
	b.handleUpdate(ctx, message(99, "/cancel_booking 8"))
	assert.Contains(t, tg.lastText(), "no longer exists")
	b.handleUpdate(ctx, message(99, "/cancel_booking x"))
	assert.Contains(t, tg.lastText(), "Usage")
}

func TestFormatDigest(t *testing.T) {
	d := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	start := model.OnDate(d, 9, 30)
	cancelled := model.Booking{ID: 2, StartTime: start, EndTime: start.Add(time.Hour), Status: model.StatusCancelled}
	active := model.Booking{ID: 1, StartTime: start, EndTime: start.Add(time.Hour), Status: model.StatusActive}

	text := formatDigest(d, []model.Booking{active, cancelled}, func(b model.Booking) string { return "ref" })
	assert.Equal(t, "Tomorrow, Tue 03 Mar:\n09:30-10:30  ref\n", text)

	assert.Contains(t, formatDigest(d, []model.Booking{cancelled}, nil), "no appointments")
}

func TestTimeUntilNextHour(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, 23*time.Hour, timeUntilNextHour(now, 9))
	assert.Equal(t, time.Hour, timeUntilNextHour(now, 11))
}

func TestNotifyStaff(t *testing.T) {
	b, tg := newTestBot(t, &stubBackend{})
	bus := events.NewBus(nil)
	off := b.NotifyStaff(bus)

	bus.Publish(events.Event{Type: events.BookingCreated, BookingID: 12, EmployeeID: 1, Date: time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)})
	require.Eventually(t, func() bool { return tg.lastText() != "" }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "New booking #12: Ana Ruiz, Tue 03 Mar", tg.lastText())

	off()
	bus.Publish(events.Event{Type: events.BookingCancelled, BookingID: 13, EmployeeID: 1})
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, tg.texts(), 1)
}

func TestTrackToday(t *testing.T) {
	d := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	start := model.OnDate(d, 10, 0)
	backend := &stubBackend{listed: []model.Booking{
		{ID: 5, EmployeeID: 1, ServiceID: 10, ClientID: 3, Date: d, StartTime: start, EndTime: start.Add(time.Hour), Status: model.StatusActive},
	}}
	b, tg := newTestBot(t, backend)
	b.now = func() time.Time { return model.OnDate(d, 9, 0) }
	bus := events.NewBus(nil)
	ctx := context.Background()

	detach, err := b.TrackToday(ctx, bus)
	require.NoError(t, err)
	defer detach()

	b.handleUpdate(ctx, message(99, "/today"))
	assert.Contains(t, tg.lastText(), "#5 client 3")
	assert.Equal(t, 1, backend.lists, "/today is served by the board")

	later := model.OnDate(d, 14, 0)
	backend.mu.Lock()
	backend.listed = append(backend.listed, model.Booking{ID: 6, EmployeeID: 1, ServiceID: 10, ClientID: 4, Date: d, StartTime: later, EndTime: later.Add(time.Hour), Status: model.StatusActive})
	backend.mu.Unlock()
	bus.Publish(events.Event{Type: events.BookingCreated, BookingID: 6, EmployeeID: 1, Date: d})

	b.handleUpdate(ctx, message(99, "/today"))
	assert.Contains(t, tg.lastText(), "#6 client 4")
	assert.Equal(t, 2, backend.lists)

	b.handleUpdate(ctx, message(99, "/day 2026-03-03"))
	assert.Equal(t, 3, backend.lists, "other dates read the ledger")

	// next day: the board moves along with the clock
	b.now = func() time.Time { return model.OnDate(d.AddDate(0, 0, 1), 9, 0) }
	b.handleUpdate(ctx, message(99, "/today"))
	assert.Equal(t, 4, backend.lists)
	b.handleUpdate(ctx, message(99, "/today"))
	assert.Equal(t, 4, backend.lists)
}

func TestBookingFlow_TypedSessionType(t *testing.T) {
	b, tg := newTestBot(t, &stubBackend{})
	ctx := context.Background()

	b.handleUpdate(ctx, message(user, "/book"))
	b.handleUpdate(ctx, callback(user, "terms:accept"))

	b.handleUpdate(ctx, message(user, "massage"))
	texts := tg.texts()
	require.GreaterOrEqual(t, len(texts), 2)
	assert.Equal(t, `No session type matches "massage". Please pick one below.`, texts[len(texts)-2])
	assert.Equal(t, "Choose a session type:", texts[len(texts)-1])

	b.handleUpdate(ctx, message(user, "HAIRCUT"))
	assert.Equal(t, "Ana Ruiz will see you for Classic cut.", tg.lastText())
}
