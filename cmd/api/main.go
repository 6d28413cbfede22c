package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"salonbook/internal/api"
	"salonbook/internal/availability"
	"salonbook/internal/calendar"
	"salonbook/internal/config"
	"salonbook/internal/database"
	"salonbook/internal/domain"
	"salonbook/internal/events"
	"salonbook/internal/export"
	"salonbook/internal/google"
	"salonbook/internal/logging"
	"salonbook/internal/metrics"
	"salonbook/internal/notify"
	"salonbook/internal/repository"
	"salonbook/internal/service"
	"salonbook/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := initDatabase(ctx, cfg, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if !cfg.API.Enabled {
		logger.Warn().Msg("API is disabled in config, but starting API application. Check your config.")
	}

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer (func() { _ = repository.Close(redisClient) })()
	}

	schedule := calendar.NewScheduleCalendar(db, cfg.Booking.SlotMinutes)
	staff := calendar.NewEmployeeCalendar(db)
	resolver := availability.NewCachedResolver(
		availability.NewResolver(db, db, schedule, staff, &logger),
		initAvailabilityCache(cfg, redisClient, &logger),
		&logger,
	)

	bus := events.NewEventBus()
	if err := registerHandlers(ctx, bus, cfg, db, &logger); err != nil {
		return err
	}

	dispatcher := worker.NewDispatcher(db, bus, redisClient, worker.DispatcherConfig{
		Retry: worker.RetryPolicy{
			MaxRetries:    cfg.Dispatcher.MaxRetries,
			InitialDelay:  cfg.Dispatcher.InitialDelay,
			MaxDelay:      cfg.Dispatcher.MaxDelay,
			BackoffFactor: cfg.Dispatcher.BackoffFactor,
		},
		PollInterval: cfg.Dispatcher.PollInterval,
		BatchSize:    cfg.Dispatcher.BatchSize,
	}, &logger)
	go dispatcher.Start(ctx)

	selector, err := service.NewSelector(cfg.Booking.SelectionStrategy)
	if err != nil {
		return err
	}
	bookings := service.NewBookingService(
		db, db, db,
		schedule, staff,
		service.NewConflictGuard(selector),
		resolver,
		dispatcher,
		service.BookingServiceConfig{MaxAdvanceDays: cfg.Booking.MaxAdvanceDays},
		&logger,
	)

	if cfg.Backup.Enabled {
		go database.NewBackupService(db, cfg.Backup, &logger).Start(ctx)
	}

	grpcServer, err := api.NewGRPCServer(&cfg.API, resolver, bookings, &logger)
	if err != nil {
		logger.Error().Err(err).Msg("create grpc server")
		return err
	}

	httpServer := api.NewHTTPServer(cfg.API, resolver, bookings, db, &logger).
		WithExporter(export.NewExporter(db, db, &logger))

	startMetrics(ctx, cfg, &logger)

	return startServers(ctx, grpcServer, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

// initDatabase opens the store and seeds the catalog on first start.
func initDatabase(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}

	catalogPath := os.Getenv("CATALOG_PATH")
	if catalogPath == "" {
		catalogPath = "configs/catalog.yaml"
	}
	catalog, err := config.LoadCatalog(catalogPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.Info().Str("catalog_path", catalogPath).Msg("no catalog file, skipping seed")
		return db, nil
	case err != nil:
		db.Close()
		logger.Error().Err(err).Str("catalog_path", catalogPath).Msg("load catalog")
		return nil, err
	}

	seeded, err := db.SeedCatalog(ctx, catalog)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("seed catalog: %w", err)
	}
	if seeded {
		logger.Info().Int("places", len(catalog.Places)).Msg("catalog seeded")
	}
	return db, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

// initAvailabilityCache prefers redis and falls back to process memory.
func initAvailabilityCache(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) availability.Cache {
	ttl := time.Duration(cfg.Redis.AvailabilityTTL) * time.Second
	memory := repository.NewMemoryAvailabilityCache(ttl)
	if redisClient == nil {
		return memory
	}
	return repository.NewFailoverAvailabilityCache(repository.NewRedisAvailabilityCache(redisClient, ttl), memory, logger)
}

func registerHandlers(ctx context.Context, bus *events.EventBus, cfg *config.Config, db *database.DB, logger *zerolog.Logger) error {
	var calculator service.PointsCalculator = service.FixedPoints(cfg.Booking.RewardsPointsPerBooking)
	if cfg.Booking.RewardsMinorPerPoint > 0 {
		calculator = service.PricePoints{MinorPerUnit: cfg.Booking.RewardsMinorPerPoint}
	}
	service.NewRewardsHandler(db, db, calculator, logger).Register(bus)

	notifier, err := initNotifier(cfg, db, logger)
	if err != nil {
		return err
	}
	service.NewNotificationHandler(notifier, logger).Register(bus)

	if cfg.Google.BookingsSpreadsheetID != "" {
		sheet, err := initBookingSheet(ctx, cfg, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
			return nil
		}
		service.NewSheetsSyncHandler(sheet, logger).Register(bus)
	}
	return nil
}

func initBookingSheet(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*google.BookingSheet, error) {
	sheet, err := google.NewBookingSheet(ctx, cfg.Google.CredentialsFile, cfg.Google.BookingsSpreadsheetID, cfg.Google.BookingsSheetName)
	if err != nil {
		return nil, err
	}

	warmCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := sheet.WarmUpCache(warmCtx); err != nil {
		return nil, err
	}

	logger.Info().Msg("google sheets connected")
	return sheet, nil
}

func initNotifier(cfg *config.Config, db *database.DB, logger *zerolog.Logger) (domain.Notifier, error) {
	if cfg.Telegram.BotToken == "" {
		return notify.NewLogNotifier(logger), nil
	}

	bot, err := notify.NewBotSender(cfg.Telegram.BotToken, cfg.Telegram.Debug)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}
	logger.Info().Str("bot", bot.Self.UserName).Msg("telegram notifications enabled")
	return notify.NewTelegramNotifier(bot, db, cfg.Telegram.ChatID, logger), nil
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	go func() {
		if !cfg.API.GRPC.Enabled {
			return
		}
		if err := grpcServer.Serve(); err != nil {
			logger.Error().Err(err).Msg("grpc server stopped")
		}
	}()

	go func() {
		if !cfg.API.HTTP.Enabled {
			return
		}
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Str("grpc_addr", grpcServer.Addr()).Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	grpcServer.Shutdown(shutdownCtx)
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return nil
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
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
