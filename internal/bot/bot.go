// Package bot is the Telegram front-end: clients book through the wizard,
// staff read the day and month calendars.
package bot

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"salonbook/internal/booking"
	"salonbook/internal/calendar"
	"salonbook/internal/wizard"
)

type telegramClient interface {
	Send(tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	SelfUser() tgbotapi.User
}

type realTelegramClient struct {
	api *tgbotapi.BotAPI
}

func (c *realTelegramClient) Send(msg tgbotapi.Chattable) (tgbotapi.Message, error) {
	return c.api.Send(msg)
}

func (c *realTelegramClient) Request(msg tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return c.api.Request(msg)
}

func (c *realTelegramClient) GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return c.api.GetUpdatesChan(cfg)
}

func (c *realTelegramClient) SelfUser() tgbotapi.User {
	return c.api.Self
}

// Options tune the booking dialog.
type Options struct {
	Staff          []int64
	LookaheadDays  int
	Debounce       time.Duration
	SessionTimeout time.Duration
	Layout         calendar.Layout
	Debug          bool
}

type Bot struct {
	tg       telegramClient
	backend  booking.Backend
	catalog  atomic.Pointer[wizard.Catalog]
	today    atomic.Pointer[dayBoard]
	sessions *wizard.SessionStore
	staff    map[int64]struct{}
	opts     Options
	limiter  *rate.Limiter
	now      func() time.Time
	logger   *zerolog.Logger
}

func New(token string, backend booking.Backend, catalog *wizard.Catalog, opts Options, logger *zerolog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	api.Debug = opts.Debug
	return newBot(&realTelegramClient{api: api}, backend, catalog, opts, logger)
}

// NewWithTelegramClient allows injecting a fake Telegram client in tests.
func NewWithTelegramClient(tg telegramClient, backend booking.Backend, catalog *wizard.Catalog, opts Options, logger *zerolog.Logger) (*Bot, error) {
	return newBot(tg, backend, catalog, opts, logger)
}

func newBot(tg telegramClient, backend booking.Backend, catalog *wizard.Catalog, opts Options, logger *zerolog.Logger) (*Bot, error) {
	if tg == nil {
		return nil, fmt.Errorf("telegram client is nil")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog is nil")
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if opts.LookaheadDays <= 0 {
		opts.LookaheadDays = 14
	}
	if opts.Layout.RowHeight == 0 {
		opts.Layout = calendar.DefaultLayout()
	}

	b := &Bot{
		tg:      tg,
		backend: backend,
		staff:   make(map[int64]struct{}),
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(sendRate), sendBurst),
		now:     time.Now,
		logger:  logger,
	}
	for _, id := range opts.Staff {
		b.staff[id] = struct{}{}
	}
	b.catalog.Store(catalog)
	b.sessions = wizard.NewSessionStore(opts.SessionTimeout, b.newSession)
	return b, nil
}

// SetCatalog applies a reloaded catalog to wizards started afterwards.
func (b *Bot) SetCatalog(c *wizard.Catalog) {
	b.catalog.Store(c)
}

// Start polls updates until ctx is done. Every update gets its own
// request-scoped logger.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.tg.GetUpdatesChan(u)
	b.logger.Info().Str("username", b.tg.SelfUser().UserName).Msg("bot authorized")

	cleanup := time.NewTicker(5 * time.Minute)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-cleanup.C:
			if n := b.sessions.Cleanup(); n > 0 {
				b.logger.Debug().Int("sessions", n).Msg("expired sessions removed")
			}
		case update, ok := <-updates:
			if !ok {
				return
			}
			l := b.logger.With().Str("request_id", uuid.New().String()).Logger()
			b.handleUpdate(l.WithContext(ctx), &update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update *tgbotapi.Update) {
	l := zerolog.Ctx(ctx)
	if update.CallbackQuery != nil {
		l.Debug().
			Int64("user_id", update.CallbackQuery.From.ID).
			Str("data", update.CallbackQuery.Data).
			Msg("handling callback query")
		b.handleCallback(ctx, update.CallbackQuery)
		return
	}
	if update.Message != nil {
		l.Debug().
			Int64("user_id", update.Message.From.ID).
			Str("text", update.Message.Text).
			Msg("handling message")
		b.handleMessage(ctx, update.Message)
	}
}

var mainMenu = tgbotapi.NewReplyKeyboard(
	tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton("/book"),
		tgbotapi.NewKeyboardButton("/help"),
	),
)

var staffMenu = tgbotapi.NewReplyKeyboard(
	tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton("/book"),
		tgbotapi.NewKeyboardButton("/today"),
		tgbotapi.NewKeyboardButton("/month"),
	),
)

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg == nil || msg.From == nil {
		return
	}
	text := strings.TrimSpace(msg.Text)
	chatID, userID := msg.Chat.ID, msg.From.ID

	// Commands interrupt any active flow.
	if strings.HasPrefix(text, "/") {
		cmd, arg, _ := strings.Cut(text, " ")
		switch {
		case cmd == "/start":
			b.sessions.Delete(userID)
			b.sendMenu(chatID, userID)
		case cmd == "/help":
			b.reply(chatID, "Commands: /book to make an appointment, /cancel to stop.")
		case cmd == "/book":
			b.startBooking(ctx, chatID, userID)
		case cmd == "/cancel":
			b.cancelBooking(chatID, userID)
		case cmd == "/today" && b.isStaff(userID):
			b.sendDay(ctx, chatID, b.now())
		case cmd == "/day" && b.isStaff(userID):
			b.sendDayArg(ctx, chatID, arg)
		case cmd == "/month" && b.isStaff(userID):
			b.sendMonth(ctx, chatID, b.now())
		case cmd == "/cancel_booking" && b.isStaff(userID):
			b.staffCancel(ctx, chatID, arg)
		default:
			b.reply(chatID, "Unknown command. /help")
		}
		return
	}

	b.handleText(ctx, chatID, userID, text)
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq == nil || cq.Message == nil {
		return
	}
	_ = b.answerCallback(cq.ID)
	if cq.Data == "noop" {
		return
	}
	b.handleWizardCallback(ctx, cq.Message.Chat.ID, cq.From.ID, cq.Data)
}

func (b *Bot) sendMenu(chatID, userID int64) {
	msg := tgbotapi.NewMessage(chatID, "Choose an action:")
	if b.isStaff(userID) {
		msg.ReplyMarkup = staffMenu
	} else {
		msg.ReplyMarkup = mainMenu
	}
	b.send(msg)
}

func (b *Bot) isStaff(id int64) bool {
	_, ok := b.staff[id]
	return ok
}

func (b *Bot) reply(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

// Telegram rejects bots that exceed about 30 messages per second.
const (
	sendRate  = 20
	sendBurst = 30
)

func (b *Bot) send(c tgbotapi.Chattable) {
	if err := b.limiter.Wait(context.Background()); err != nil {
		b.logger.Warn().Err(err).Msg("telegram send throttled")
		return
	}
	if _, err := b.tg.Send(c); err != nil {
		b.logger.Warn().Err(err).Msg("telegram send failed")
	}
}

func (b *Bot) answerCallback(id string) error {
	_, err := b.tg.Request(tgbotapi.NewCallback(id, ""))
	return err
}
