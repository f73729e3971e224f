package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"salonbook/internal/apperr"
	"salonbook/internal/availability"
	"salonbook/internal/calendar"
	"salonbook/internal/model"
	"salonbook/internal/report"
)

func idArg(args []string) (int64, error) {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("booking id must be a positive number, got %q", args[0])
	}
	return id, nil
}

func printClosed(verb string, b *model.Booking) {
	fmt.Printf("Booking #%d (%s) on %s at %s %s.\n",
		b.ID, b.Reference, model.FormatDate(b.Date), model.FormatClock(b.StartTime), verb)
}

func newCancelCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <booking-id>",
		Short: "Cancel an open booking and free its slot",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(g, func(ctx context.Context, e *env, args []string) error {
			id, err := idArg(args)
			if err != nil {
				return err
			}
			b, err := e.backend.CancelBooking(ctx, id)
			if err != nil {
				return fmt.Errorf("%s (%w)", apperr.UserMessage(err), err)
			}
			printClosed("cancelled", b)
			return nil
		}),
	}
}

func newCompleteCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "complete <booking-id>",
		Short: "Mark an open booking as completed",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(g, func(ctx context.Context, e *env, args []string) error {
			if e.service == nil {
				return errLocalOnly
			}
			id, err := idArg(args)
			if err != nil {
				return err
			}
			b, err := e.service.CompleteBooking(ctx, id)
			if err != nil {
				return fmt.Errorf("%s (%w)", apperr.UserMessage(err), err)
			}
			printClosed("completed", b)
			return nil
		}),
	}
}

func newSlotsCmd(g *globalFlags) *cobra.Command {
	var employeeID, serviceID int64
	var from, to string
	var all bool

	c := &cobra.Command{
		Use:   "slots",
		Short: "List bookable times of a professional for a service",
		RunE: withEnv(g, func(ctx context.Context, e *env, _ []string) error {
			start := today()
			if from != "" {
				d, err := model.ParseDate(from)
				if err != nil {
					return fmt.Errorf("--from: %w", err)
				}
				start = d
			}
			end := start.AddDate(0, 0, e.cfg.LookaheadDays()-1)
			if to != "" {
				d, err := model.ParseDate(to)
				if err != nil {
					return fmt.Errorf("--to: %w", err)
				}
				end = d
			}

			res, err := e.backend.GetAvailability(ctx, availability.Query{
				EmployeeID: employeeID,
				ServiceID:  serviceID,
				From:       start,
				To:         end,
			})
			if err != nil {
				return err
			}

			fmt.Printf("%s, %s\n", res.Employee.Name, res.Service.Name)
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			for _, day := range res.Availability {
				if !day.HasActiveTimeSlots {
					if all {
						fmt.Fprintf(tw, "%s\tclosed\n", day.Date)
					}
					continue
				}
				for _, s := range day.Slots {
					switch {
					case s.Available:
						fmt.Fprintf(tw, "%s\t%s-%s\tfree\n", day.Date, s.StartTime, s.EndTime)
					case all:
						fmt.Fprintf(tw, "%s\t%s-%s\t%s\n", day.Date, s.StartTime, s.EndTime, s.Reason)
					}
				}
			}
			return tw.Flush()
		}),
	}
	c.Flags().Int64Var(&employeeID, "employee", 0, "professional id")
	c.Flags().Int64Var(&serviceID, "service", 0, "service id")
	c.Flags().StringVar(&from, "from", "", "first date, YYYY-MM-DD (default today)")
	c.Flags().StringVar(&to, "to", "", "last date, YYYY-MM-DD (default lookahead)")
	c.Flags().BoolVar(&all, "all", false, "include taken slots and closed days")
	_ = c.MarkFlagRequired("employee")
	_ = c.MarkFlagRequired("service")
	return c
}

func newExportCmd(g *globalFlags) *cobra.Command {
	var dir string
	var tables bool

	c := &cobra.Command{
		Use:   "export [YYYY-MM]",
		Short: "Write the monthly bookings workbook (default: previous month)",
		Args:  cobra.MaximumNArgs(1),
		RunE: withEnv(g, func(ctx context.Context, e *env, args []string) error {
			if e.db == nil {
				return errLocalOnly
			}
			first := today().AddDate(0, -1, 0)
			if len(args) == 1 {
				m, err := time.Parse("2006-01", args[0])
				if err != nil {
					return fmt.Errorf("month must be YYYY-MM: %w", err)
				}
				first = m
			}
			year, month := first.Year(), first.Month()

			catalog, err := e.cfg.LoadCatalog()
			if err != nil {
				e.logger.Warn().Err(err).Msg("catalog unavailable, exporting ids only")
				catalog = nil
			}
			exporter := report.NewExporter(e.db, catalog, &e.logger)
			if tables {
				exporter.IncludeTables(e.db)
			}
			if dir == "" {
				dir = e.cfg.ReportDir()
			}
			path, err := exporter.WriteMonthly(ctx, dir, year, month)
			if err != nil {
				return err
			}
			from, to := calendar.MonthRange(year, month)
			fmt.Printf("Wrote %s (%s to %s)\n", path, model.FormatDate(from), model.FormatDate(to))
			return nil
		}),
	}
	c.Flags().StringVar(&dir, "dir", "", "output directory (default report.dir)")
	c.Flags().BoolVar(&tables, "tables", false, "append raw table sheets")
	return c
}

func newCatalogCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List professionals and services known to the database",
		RunE: withEnv(g, func(ctx context.Context, e *env, _ []string) error {
			if e.db == nil {
				return errLocalOnly
			}
			employees, err := e.db.ListEmployees(ctx)
			if err != nil {
				return err
			}
			services, err := e.db.ListServices(ctx)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "EMPLOYEE\tNAME\tCATEGORY\tACTIVE")
			for _, emp := range employees {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%t\n", emp.ID, emp.Name, emp.Category, emp.IsActive)
			}
			fmt.Fprintln(tw)
			fmt.Fprintln(tw, "SERVICE\tNAME\tDURATION\tPRICE\tDEPOSIT")
			for i := range services {
				s := &services[i]
				fmt.Fprintf(tw, "%d\t%s\t%d min\t%.2f\t%.2f\n", s.ID, s.Name, s.DurationMinutes, s.Price, s.Deposit())
			}
			return tw.Flush()
		}),
	}
}
