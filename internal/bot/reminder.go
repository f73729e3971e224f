package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"salonbook/internal/model"
)

// StartReminders sends staff a digest of the next day's appointments every
// day at 09:00 until ctx is done.
func (b *Bot) StartReminders(ctx context.Context) {
	if len(b.staff) == 0 {
		return
	}

	go func() {
		timer := time.NewTimer(timeUntilNextHour(b.now(), 9))
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
				b.sendTomorrowDigest(ctx)
				timer.Reset(timeUntilNextHour(b.now(), 9))
			}
		}
	}()
}

func (b *Bot) sendTomorrowDigest(ctx context.Context) {
	tomorrow := model.DateOf(b.now()).AddDate(0, 0, 1)
	list, err := b.backend.ListBookings(ctx, model.BookingFilter{FromDate: tomorrow, ToDate: tomorrow})
	if err != nil {
		b.logger.Error().Err(err).Msg("reminder: list bookings")
		return
	}
	text := formatDigest(tomorrow, list, b.label)
	for id := range b.staff {
		b.reply(id, text)
	}
}

func formatDigest(date time.Time, list []model.Booking, label func(model.Booking) string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Tomorrow, %s:\n", date.Format("Mon 02 Jan"))
	n := 0
	for _, bk := range list {
		if !shouldRemind(bk.Status) {
			continue
		}
		n++
		fmt.Fprintf(&sb, "%s-%s  %s\n", model.FormatClock(bk.StartTime), model.FormatClock(bk.EndTime), label(bk))
	}
	if n == 0 {
		sb.WriteString("no appointments\n")
	}
	return sb.String()
}

func shouldRemind(status model.Status) bool {
	return status == model.StatusActive || status == model.StatusPending
}

func timeUntilNextHour(now time.Time, hour int) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next.Sub(now)
}
