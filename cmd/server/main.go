package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"salonbook/internal/api"
	"salonbook/internal/availability"
	"salonbook/internal/booking"
	"salonbook/internal/bot"
	"salonbook/internal/calendar"
	"salonbook/internal/config"
	"salonbook/internal/db"
	"salonbook/internal/events"
	"salonbook/internal/httpapi"
	"salonbook/internal/identity"
	"salonbook/internal/lock"
	"salonbook/internal/metrics"
	"salonbook/internal/model"
	"salonbook/internal/report"
	"salonbook/internal/slots"
	"salonbook/internal/wizard"
)

func main() {
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("SALON_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	database, err := db.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var rdb *redis.Client
	var locker lock.Locker
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		locker = lock.NewRedisLock(rdb)
	}

	bus := events.NewBus(&logger)
	if rdb != nil {
		// Consumers of the HTTP API may cache reads in the same Redis.
		defer api.ClearCacheOn(bus, rdb, &logger)()
	}

	resolver := availability.NewResolver(database, database, database, &logger)
	resolver.SetBusinessHours(slots.BusinessHours{OpenHour: cfg.OpenHour(), CloseHour: cfg.CloseHour()})

	guard := booking.NewGuard(database, locker, cfg.LockTTL(), &logger)
	svc := booking.NewService(database, guard, database, resolver, identity.NewResolver(database, &logger), &logger)
	svc.SetPublisher(bus)
	if cfg.Booking.InitialStatus != "" {
		st, err := model.ParseStatus(cfg.Booking.InitialStatus)
		if err == nil {
			err = svc.SetInitialStatus(st)
		}
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid booking.initial_status")
		}
	}

	exporter := report.NewExporter(database, nil, &logger)
	exporter.IncludeTables(database)

	catalog, err := cfg.LoadCatalog()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load catalog")
	}

	var tg *bot.Bot
	if cfg.Telegram.BotToken != "" && cfg.Telegram.BotToken != "YOUR_BOT_TOKEN_HERE" {
		wcat, err := wizard.NewCatalog(catalog)
		if err != nil {
			logger.Fatal().Err(err).Msg("build wizard catalog")
		}
		tg, err = bot.New(cfg.Telegram.BotToken, svc, wcat, bot.Options{
			Staff:          cfg.Telegram.StaffIDs,
			LookaheadDays:  cfg.LookaheadDays(),
			Debounce:       cfg.Debounce(),
			SessionTimeout: cfg.SessionTimeout(),
			Layout:         calendar.Layout{FirstHour: cfg.OpenHour(), LastHour: cfg.CloseHour() - 1, RowHeight: 48, Gutter: 4},
			Debug:          cfg.Telegram.Debug,
		}, &logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("create bot error")
		}
	} else {
		logger.Warn().Msg("telegram.bot_token not set, bot disabled")
	}

	// Every accepted catalog revision is synced into the DB first; the
	// in-memory consumers only follow a successful sync.
	watcher := &config.CatalogWatcher{
		Path:     cfg.CatalogPath,
		Interval: 30 * time.Second,
		OnUpdate: func(c *config.Catalog) {
			if err := database.SyncCatalog(ctx, c); err != nil {
				logger.Error().Err(err).Msg("failed to apply catalog")
				return
			}
			exporter.SetCatalog(c)
			if tg != nil {
				wc, err := wizard.NewCatalog(c)
				if err != nil {
					logger.Error().Err(err).Msg("rebuild wizard catalog")
					return
				}
				tg.SetCatalog(wc)
			}
			logger.Info().Int("employees", len(c.Employees)).Int("services", len(c.Services)).Msg("catalog applied")
		},
		OnError: func(err error) {
			logger.Error().Err(err).Msg("catalog reload failed, keeping previous revision")
		},
	}
	if err := watcher.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to apply catalog")
	}

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	if cfg.Backup.Enabled {
		go startBackupLoop(ctx, database, cfg, &logger)
	}

	if cfg.Report.Enabled {
		go report.NewScheduler(exporter, cfg.ReportDir(), &logger).Run(ctx)
	}

	if tg != nil {
		defer tg.NotifyStaff(bus)()
		if detach, err := tg.TrackToday(ctx, bus); err != nil {
			logger.Warn().Err(err).Msg("today board unavailable, /today reads the ledger")
		} else {
			defer detach()
		}
		go tg.StartReminders(ctx)
		go tg.Start(ctx)
	}

	perSecond, burst := cfg.RateLimit()
	opts := []httpapi.Option{
		httpapi.WithRateLimit(perSecond, burst),
		httpapi.WithAPIKey(cfg.API.APIKey),
	}
	if rdb != nil {
		opts = append(opts, httpapi.WithReadiness(database, rdb))
	} else {
		opts = append(opts, httpapi.WithReadiness(database, nil))
	}
	server := httpapi.NewServer(svc, &logger, opts...)

	logger.Info().Msg("salon scheduling server started")
	if err := server.ListenAndServe(ctx, fmt.Sprintf(":%d", cfg.ServerPort())); err != nil {
		logger.Fatal().Err(err).Msg("http server error")
	}
}

func startBackupLoop(ctx context.Context, database *db.DB, cfg *config.Config, logger *zerolog.Logger) {
	if cfg.Backup.Path == "" {
		cfg.Backup.Path = "backups"
	}
	if cfg.Backup.IntervalHours <= 0 {
		cfg.Backup.IntervalHours = 24
	}
	if cfg.Backup.RetentionDays <= 0 {
		cfg.Backup.RetentionDays = 14
	}

	if err := os.MkdirAll(cfg.Backup.Path, 0o755); err != nil {
		logger.Error().Err(err).Msg("failed to create backup directory")
		return
	}

	interval := time.Duration(cfg.Backup.IntervalHours) * time.Hour
	retention := time.Duration(cfg.Backup.RetentionDays) * 24 * time.Hour

	select {
	case <-time.After(time.Minute):
		runBackupTask(ctx, database, cfg.Backup.Path, retention, logger)
	case <-ctx.Done():
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			runBackupTask(ctx, database, cfg.Backup.Path, retention, logger)
		case <-ctx.Done():
			return
		}
	}
}

func runBackupTask(ctx context.Context, database *db.DB, dir string, retention time.Duration, logger *zerolog.Logger) {
	dest := filepath.Join(dir, fmt.Sprintf("salonbook_%s.db", time.Now().Format("20060102_150405")))

	logger.Info().Str("path", dest).Msg("starting database backup")
	if err := database.Backup(ctx, dest); err != nil {
		logger.Error().Err(err).Msg("backup failed")
	} else {
		logger.Info().Msg("backup completed")
	}

	deleted, err := database.CleanupBackups(dir, retention)
	if err != nil {
		logger.Error().Err(err).Msg("backup cleanup failed")
	} else if deleted > 0 {
		logger.Info().Int("deleted", deleted).Msg("cleaned up old backups")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
