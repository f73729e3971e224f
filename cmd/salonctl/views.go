package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"salonbook/internal/calendar"
	"salonbook/internal/model"
)

func today() time.Time {
	return model.DateOf(model.WallClock(time.Now()))
}

func dateArg(args []string) (time.Time, error) {
	if len(args) == 0 {
		return today(), nil
	}
	d, err := model.ParseDate(args[0])
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be YYYY-MM-DD: %w", err)
	}
	return d, nil
}

func (e *env) layout() calendar.Layout {
	l := calendar.DefaultLayout()
	l.FirstHour = e.cfg.OpenHour()
	l.LastHour = e.cfg.CloseHour() - 1
	return l
}

func staffLabel(b model.Booking) string {
	ref := b.Reference
	if ref == "" {
		ref = fmt.Sprintf("#%d", b.ID)
	}
	return fmt.Sprintf("%s  client %d  service %d  [%s]", ref, b.ClientID, b.ServiceID, b.Status)
}

func newDayCmd(g *globalFlags) *cobra.Command {
	var employeeID int64
	var watch bool

	c := &cobra.Command{
		Use:   "day [YYYY-MM-DD]",
		Short: "Show one day, one column per professional",
		Args:  cobra.MaximumNArgs(1),
		RunE: withEnv(g, func(ctx context.Context, e *env, args []string) error {
			date, err := dateArg(args)
			if err != nil {
				return err
			}
			employees, err := e.employees(ctx)
			if err != nil {
				return fmt.Errorf("list employees: %w", err)
			}
			if employeeID > 0 {
				employees = filterEmployees(employees, employeeID)
			}

			board := calendar.NewBoard(e.backend, &e.logger)
			if err := board.Show(ctx, model.BookingFilter{FromDate: date, ToDate: date, EmployeeID: employeeID}); err != nil {
				return err
			}
			render := func() string {
				grid := board.Day(date, employees, e.layout())
				return calendar.RenderDay(grid, staffLabel, model.WallClock(time.Now()))
			}

			if !watch {
				fmt.Print(render())
				return nil
			}
			return watchDay(ctx, e, board, render)
		}),
	}
	c.Flags().Int64Var(&employeeID, "employee", 0, "only this professional")
	c.Flags().BoolVar(&watch, "watch", false, "keep the view open and move the now marker every minute")
	return c
}

// watchDay redraws the day on every indicator tick, refetching first so
// changes made elsewhere show up, until interrupted.
func watchDay(ctx context.Context, e *env, board *calendar.Board, render func() string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	indicator := calendar.NewNowIndicator(e.layout(), func(float64, bool) {
		if err := board.Refresh(ctx); err != nil {
			e.logger.Warn().Err(err).Msg("refresh day view")
		}
		fmt.Print("\033[H\033[2J")
		fmt.Print(render())
	})
	indicator.Start(ctx)
	<-ctx.Done()
	indicator.Stop()
	return nil
}

func filterEmployees(list []model.Employee, id int64) []model.Employee {
	for _, emp := range list {
		if emp.ID == id {
			return []model.Employee{emp}
		}
	}
	return []model.Employee{{ID: id, Name: fmt.Sprintf("Employee %d", id)}}
}

func newWeekCmd(g *globalFlags) *cobra.Command {
	var employeeID int64

	c := &cobra.Command{
		Use:   "week [YYYY-MM-DD]",
		Short: "Show the Monday-first week containing the date",
		Args:  cobra.MaximumNArgs(1),
		RunE: withEnv(g, func(ctx context.Context, e *env, args []string) error {
			date, err := dateArg(args)
			if err != nil {
				return err
			}
			start := calendar.WeekStart(date)
			board := calendar.NewBoard(e.backend, &e.logger)
			filter := model.BookingFilter{FromDate: start, ToDate: start.AddDate(0, 0, 6), EmployeeID: employeeID}
			if err := board.Show(ctx, filter); err != nil {
				return err
			}
			fmt.Print(calendar.RenderWeek(board.Week(start, e.layout()), staffLabel))
			return nil
		}),
	}
	c.Flags().Int64Var(&employeeID, "employee", 0, "only this professional")
	return c
}

func newMonthCmd(g *globalFlags) *cobra.Command {
	var employeeID int64
	var list bool

	c := &cobra.Command{
		Use:   "month [YYYY-MM]",
		Short: "Show the month grid with the number of bookings per day",
		Args:  cobra.MaximumNArgs(1),
		RunE: withEnv(g, func(ctx context.Context, e *env, args []string) error {
			first := today()
			if len(args) == 1 {
				m, err := time.Parse("2006-01", args[0])
				if err != nil {
					return fmt.Errorf("month must be YYYY-MM: %w", err)
				}
				first = m
			}
			from, to := calendar.MonthRange(first.Year(), first.Month())
			board := calendar.NewBoard(e.backend, &e.logger)
			if err := board.Show(ctx, model.BookingFilter{FromDate: from, ToDate: to, EmployeeID: employeeID}); err != nil {
				return err
			}
			m := board.Month(first.Year(), first.Month())
			fmt.Print(calendar.RenderMonth(m))
			if !list {
				return nil
			}
			for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
				day := m.DayList(d)
				if len(day) == 0 {
					continue
				}
				fmt.Printf("\n%s\n", d.Format("Mon 02 Jan"))
				for _, b := range day {
					fmt.Printf("  %s-%s  %s\n", model.FormatClock(b.StartTime), model.FormatClock(b.EndTime), staffLabel(b))
				}
			}
			return nil
		}),
	}
	c.Flags().Int64Var(&employeeID, "employee", 0, "only this professional")
	c.Flags().BoolVar(&list, "list", false, "also print every booking of the month by day")
	return c
}
