package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"salonbook/internal/api"
	"salonbook/internal/availability"
	"salonbook/internal/booking"
	"salonbook/internal/config"
	"salonbook/internal/db"
	"salonbook/internal/events"
	"salonbook/internal/identity"
	"salonbook/internal/model"
	"salonbook/internal/slots"
	"salonbook/internal/wizard"
)

var errLocalOnly = errors.New("this command needs direct database access, drop --remote")

type globalFlags struct {
	configPath string
	remote     bool
	verbose    bool
}

// env is what a command runs against: the in-process service over the
// local database, or the HTTP API of a running server.
type env struct {
	cfg     *config.Config
	backend booking.Backend
	service *booking.Service
	db      *db.DB
	rdb     *redis.Client
	logger  zerolog.Logger
}

func (e *env) Close() {
	if e.rdb != nil {
		_ = e.rdb.Close()
	}
	if e.db != nil {
		_ = e.db.Close()
	}
}

// employees lists the active professionals, from the database when local
// and from catalog.yaml otherwise.
func (e *env) employees(ctx context.Context) ([]model.Employee, error) {
	if e.db != nil {
		list, err := e.db.ListEmployees(ctx)
		if err != nil {
			return nil, err
		}
		active := list[:0]
		for _, emp := range list {
			if emp.IsActive {
				active = append(active, emp)
			}
		}
		return active, nil
	}
	cat, err := e.cfg.LoadCatalog()
	if err != nil {
		return nil, err
	}
	wc, err := wizard.NewCatalog(cat)
	if err != nil {
		return nil, err
	}
	return wc.Employees(), nil
}

func newRootCmd() *cobra.Command {
	var g globalFlags

	root := &cobra.Command{
		Use:           "salonctl",
		Short:         "Staff tool for the salon schedule: calendar views, cancellations, exports",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", os.Getenv("SALON_CONFIG_PATH"), "path to config.yaml")
	root.PersistentFlags().BoolVar(&g.remote, "remote", false, "talk to the server API instead of the local database")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "log to stderr")

	root.AddCommand(newDayCmd(&g))
	root.AddCommand(newWeekCmd(&g))
	root.AddCommand(newMonthCmd(&g))
	root.AddCommand(newSlotsCmd(&g))
	root.AddCommand(newCancelCmd(&g))
	root.AddCommand(newCompleteCmd(&g))
	root.AddCommand(newExportCmd(&g))
	root.AddCommand(newCatalogCmd(&g))
	return root
}

func openEnv(g *globalFlags) (*env, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := zerolog.New(io.Discard)
	if g.verbose {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	}

	e := &env{cfg: cfg, logger: logger}

	if g.remote {
		if cfg.API.BaseURL == "" {
			return nil, errors.New("api.base_url is not configured")
		}
		client := api.NewClient(cfg.API.BaseURL, cfg.API.APIKey, cfg.APITimeout(), &e.logger)
		if cfg.Redis.Address != "" && cfg.APICacheTTL() > 0 {
			e.rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
			client.UseRedisCache(e.rdb, cfg.APICacheTTL())
		}
		e.backend = client
		return e, nil
	}

	database, err := db.NewDB(cfg.Database.Path, &e.logger)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	e.db = database

	resolver := availability.NewResolver(database, database, database, &e.logger)
	resolver.SetBusinessHours(slots.BusinessHours{OpenHour: cfg.OpenHour(), CloseHour: cfg.CloseHour()})
	guard := booking.NewGuard(database, nil, cfg.LockTTL(), &e.logger)
	e.service = booking.NewService(database, guard, database, resolver, identity.NewResolver(database, &e.logger), &e.logger)
	if cfg.Redis.Address != "" {
		e.rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		bus := events.NewBus(&e.logger)
		api.ClearCacheOn(bus, e.rdb, &e.logger)
		e.service.SetPublisher(bus)
	}
	e.backend = e.service
	return e, nil
}

// withEnv opens the environment for the duration of one command.
func withEnv(g *globalFlags, run func(ctx context.Context, e *env, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		e, err := openEnv(g)
		if err != nil {
			return err
		}
		defer e.Close()
		return run(ctx, e, args)
	}
}
