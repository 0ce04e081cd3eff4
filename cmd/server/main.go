package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"gymbook/internal/access"
	"gymbook/internal/api"
	"gymbook/internal/booking"
	"gymbook/internal/config"
	"gymbook/internal/db"
	"gymbook/internal/events"
	"gymbook/internal/metrics"
	"gymbook/internal/usage"
)

func main() {
	// Initialize logger
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	if err := config.LoadEnv(); err != nil {
		logger.Fatal().Err(err).Msg("failed to load .env")
	}
	cfg, err := config.Load(os.Getenv("GYMBOOK_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if level, err := zerolog.ParseLevel(strings.ToLower(cfg.App.LogLevel)); err == nil {
		logger = logger.Level(level)
	}
	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Str("timezone", cfg.App.Timezone).Msg("invalid timezone")
	}
	time.Local = loc

	database, err := db.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	usageSvc := usage.NewService(database, &logger)
	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		usageSvc.UseRedisCache(rdb, cfg.UsageCacheTTL())
	}

	metrics.Register()
	bus := events.NewEventBus(&logger)
	subscribeEvents(bus, usageSvc, &logger)

	err = config.WatchFacility(ctx, cfg.Facility.Path, cfg.FacilityWatchInterval(), &logger, func(fc *config.FacilityConfig) {
		syncCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := database.SyncFacilityFromConfig(syncCtx, fc); err != nil {
			logger.Error().Err(err).Msg("facility sync failed; keeping previous catalog")
			return
		}
		logger.Info().Str("facility", fc.String()).Msg("facility synced")
		if err := bus.PublishJSON(events.TypeCatalogSynced, catalogPayload(fc)); err != nil {
			logger.Warn().Err(err).Msg("catalog event not published")
		}
	})
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.Facility.Path).Msg("failed to load facility config")
	}

	gate := access.NewService(database, database, logger)
	bookings := booking.NewService(database, &logger,
		booking.WithPublisher(bus),
		booking.WithGatekeeper(gate),
	)

	if cfg.Backup.Enabled {
		backups := db.NewBackupService(database, cfg.Backup.Path, cfg.BackupInterval(), cfg.Backup.RetentionDays, &logger)
		go backups.Start(ctx)
	}

	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, database, rdb, &logger)
	if cfg.Monitoring.PrometheusEnabled {
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	server := api.NewHTTPServer(api.Config{
		Port:              cfg.API.Port,
		AdminAPIKey:       cfg.API.AdminAPIKey,
		RequestTimeout:    cfg.RequestTimeout(),
		SubmitRatePerMin:  cfg.API.SubmitRatePerMin,
		SubmitBurst:       cfg.API.SubmitBurst,
		TrustProxyHeaders: cfg.API.TrustProxyHeaders,
	}, api.Deps{
		Bookings: bookings,
		Usage:    usageSvc,
		Access:   gate,
		Tables:   database,
		Pinger:   database,
		Redis:    rdb,
	}, &logger)
	if cfg.API.AdminAPIKey == "" {
		logger.Warn().Msg("api.admin_api_key is empty; admin routes will reject every request")
	}

	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctxShutdown)
	}()

	logger.Info().Str("app", cfg.App.Name).Msg("gymbook started")
	if err := server.Start(); err != nil {
		logger.Error().Err(err).Msg("api server error")
	}
	logger.Info().Msg("gymbook stopped")
}

func catalogPayload(fc *config.FacilityConfig) events.CatalogPayload {
	return events.CatalogPayload{
		Services: len(fc.Services),
		Coaches:  len(fc.Coaches),
		At:       time.Now(),
	}
}

func subscribeEvents(bus *events.EventBus, usageSvc *usage.Service, logger *zerolog.Logger) {
	bus.Subscribe(events.TypeCatalogSynced, func(events.Event) error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return usageSvc.Invalidate(ctx)
	})
	bus.Subscribe(events.TypeBookingSubmitted, func(events.Event) error {
		metrics.IncBookingSubmitted("accepted")
		return nil
	})
	bus.Subscribe(events.TypeBookingDecided, func(e events.Event) error {
		var p events.BookingPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		metrics.IncBookingDecision(strings.ToLower(p.Status))
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := usageSvc.Invalidate(ctx); err != nil {
			logger.Warn().Err(err).Int64("booking_id", p.ID).Msg("usage cache invalidation failed")
		}
		return nil
	})
}

func startHealthServer(ctx context.Context, port int, database *db.DB, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := database.PingContext(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
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
