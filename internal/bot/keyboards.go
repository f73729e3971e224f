package bot

import (
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"salonbook/internal/availability"
	"salonbook/internal/calendar"
	"salonbook/internal/model"
	"salonbook/internal/slots"
	"salonbook/internal/wizard"
)

const optionsPerPage = 8

var weekdayRow = []string{"Mo", "Tu", "We", "Th", "Fr", "Sa", "Su"}

func navRow() []tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", "back"),
		tgbotapi.NewInlineKeyboardButtonData("✖️ Cancel", "cancel"),
	)
}

func termsKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("✅ I accept", "terms:accept")),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("✖️ Cancel", "cancel")),
	)
}

func professionalKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("👍 Continue", "pro:ok")),
		navRow(),
	)
}

func backKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(navRow())
}

func retryKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🔄 Try again", "retry")),
		navRow(),
	)
}

func confirmKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("✅ Confirm", "confirm")),
		navRow(),
	)
}

// optionsKeyboard pages through the session types.
func optionsKeyboard(options []wizard.Option, page int) tgbotapi.InlineKeyboardMarkup {
	start := page * optionsPerPage
	if start >= len(options) || start < 0 {
		start, page = 0, 0
	}
	end := min(start+optionsPerPage, len(options))

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, o := range options[start:end] {
		label := o.Label
		if o.Service.Price > 0 {
			label = fmt.Sprintf("%s · %s · %.0f", o.Label, slots.FormatDuration(o.Service.DurationMinutes), o.Service.Price)
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(label, "opt:"+o.ID)))
	}

	var pager []tgbotapi.InlineKeyboardButton
	if page > 0 {
		pager = append(pager, tgbotapi.NewInlineKeyboardButtonData("⬅️", fmt.Sprintf("opts:%d", page-1)))
	}
	if end < len(options) {
		pager = append(pager, tgbotapi.NewInlineKeyboardButtonData("➡️", fmt.Sprintf("opts:%d", page+1)))
	}
	if len(pager) > 0 {
		rows = append(rows, pager)
	}
	rows = append(rows, navRow())
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// datesKeyboard renders a Monday-first month grid for every month the
// loaded days span. Only dates in open are selectable.
func datesKeyboard(days []availability.DayAvailability, open map[string]bool) tgbotapi.InlineKeyboardMarkup {
	inRange := make(map[string]bool, len(days))
	var months []time.Time
	for _, d := range days {
		inRange[d.Date] = true
		date, err := model.ParseDate(d.Date)
		if err != nil {
			continue
		}
		first := time.Date(date.Year(), date.Month(), 1, 0, 0, 0, 0, time.UTC)
		if len(months) == 0 || !months[len(months)-1].Equal(first) {
			months = append(months, first)
		}
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, first := range months {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(first.Format("January 2006"), "noop")))
		header := make([]tgbotapi.InlineKeyboardButton, 0, 7)
		for _, wd := range weekdayRow {
			header = append(header, tgbotapi.NewInlineKeyboardButtonData(wd, "noop"))
		}
		rows = append(rows, header)

		for _, week := range calendar.MonthView(nil, first.Year(), first.Month()).Weeks {
			row := make([]tgbotapi.InlineKeyboardButton, 0, 7)
			shown := false
			for _, cell := range week {
				key := model.FormatDate(cell.Date)
				switch {
				case !cell.InMonth || !inRange[key]:
					row = append(row, tgbotapi.NewInlineKeyboardButtonData(" ", "noop"))
				case open[key]:
					shown = true
					row = append(row, tgbotapi.NewInlineKeyboardButtonData(strconv.Itoa(cell.Date.Day()), "date:"+key))
				default:
					shown = true
					row = append(row, tgbotapi.NewInlineKeyboardButtonData("·", "noop"))
				}
			}
			if shown {
				rows = append(rows, row)
			}
		}
	}
	rows = append(rows, navRow())
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// slotsKeyboard lists free times of one date, three per row.
func slotsKeyboard(date string, free []slots.SlotInfo) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var current []tgbotapi.InlineKeyboardButton
	for _, s := range free {
		current = append(current, tgbotapi.NewInlineKeyboardButtonData(
			s.StartTime+"-"+s.EndTime, fmt.Sprintf("slot:%s %s", date, s.StartTime)))
		if len(current) == 3 {
			rows = append(rows, current)
			current = nil
		}
	}
	if len(current) > 0 {
		rows = append(rows, current)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("📅 Other date", "dates")))
	rows = append(rows, navRow())
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func atoiOr(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func parseDateOrZero(s string) time.Time {
	d, _ := model.ParseDate(s)
	return d
}
