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

	"courtclub/internal/api"
	"courtclub/internal/assistant"
	"courtclub/internal/config"
	"courtclub/internal/database"
	"courtclub/internal/domain"
	"courtclub/internal/events"
	"courtclub/internal/google"
	"courtclub/internal/logging"
	"courtclub/internal/metrics"
	"courtclub/internal/models"
	"courtclub/internal/notify"
	"courtclub/internal/receipt"
	"courtclub/internal/remote"
	"courtclub/internal/repository"
	"courtclub/internal/service"
	"courtclub/internal/state"
	"courtclub/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
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

	if err := loadCatalog(cfg, &logger); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := initRedis(cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	store, closeStore, err := initRemoteStore(ctx, cfg, redisClient, &logger)
	if err != nil {
		return err
	}
	defer closeStore()

	issuer, err := receipt.NewIssuer(cfg.Club.ReceiptSecret, cfg.Club.Name)
	if err != nil {
		return fmt.Errorf("init receipts: %w", err)
	}

	bus := events.NewEventBus()
	appState := state.NewStore(state.AppState{Slots: cfg.Club.Slots, News: cfg.Club.News})

	deps := &service.Deps{
		Store:             appState,
		Remote:            store,
		Events:            bus,
		Receipts:          issuer,
		ClubName:          cfg.Club.Name,
		Rates:             cfg.Club.Rates,
		Location:          cfg.Club.Location(),
		RemoteTimeout:     cfg.Club.RemoteTimeout,
		ConfirmationDelay: cfg.Club.ConfirmationDelay,
		Now:               time.Now,
		Logger:            &logger,
	}

	closeBroker := initSubscribers(ctx, cfg, bus, appState, redisClient, &logger)
	defer closeBroker()

	loader := service.NewLoader(deps)
	if err := loader.Refresh(ctx); err != nil {
		// Клуб работает и с пустым списком, данные подтянутся через /refresh.
		logger.Error().Err(err).Msg("initial load from remote store failed")
	}

	sessions := service.NewSessionService(deps, initStateRepository(cfg, redisClient, &logger), service.SessionOptions{
		IdleTTL:        cfg.Session.DraftTTL,
		ChatRateLimit:  cfg.Session.ChatRateLimit,
		ChatRateWindow: cfg.Session.ChatRateWindow,
	})
	go sweepSessions(ctx, sessions, &logger)

	club := service.NewClubService(deps)
	httpServer := api.NewHTTPServer(&cfg.API, api.Services{
		Club:      club,
		Sessions:  sessions,
		Admin:     service.NewAdminConsole(deps, cfg.Club.AccessCode),
		Loader:    loader,
		Concierge: initConcierge(ctx, cfg, &logger),
		Receipts:  issuer,
	}, &logger)

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(&cfg.API, api.NewAvailabilityService(club), &logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
	}

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

	for _, key := range cfg.GeneratedSecrets() {
		logger.Warn().Str("key", key).Msg("secret not configured, using a random value until restart")
	}

	return cfg, logger, closer, nil
}

// loadCatalog replaces the configured slot template and news with the ones
// from CATALOG_PATH when that file exists.
func loadCatalog(cfg *config.Config, logger *zerolog.Logger) error {
	catalogPath := os.Getenv("CATALOG_PATH")
	if catalogPath == "" {
		catalogPath = "configs/catalog.yaml"
	}
	data, err := os.ReadFile(catalogPath)
	if errors.Is(err, os.ErrNotExist) {
		logger.Info().Str("catalog_path", catalogPath).Msg("no catalog file, using configured slots and news")
		return nil
	}
	if err != nil {
		logger.Error().Err(err).Str("catalog_path", catalogPath).Msg("read catalog")
		return err
	}

	var catalog struct {
		Slots []models.TimeSlot `yaml:"slots"`
		News  []models.NewsItem `yaml:"news"`
	}
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		logger.Error().Err(err).Str("catalog_path", catalogPath).Msg("parse catalog")
		return err
	}

	if len(catalog.Slots) > 0 {
		for i := range catalog.Slots {
			if catalog.Slots[i].ID == "" {
				catalog.Slots[i].ID = fmt.Sprintf("%d", i+1)
			}
		}
		if err := config.ValidateSlots(catalog.Slots); err != nil {
			return fmt.Errorf("catalog %s: %w", catalogPath, err)
		}
		cfg.Club.Slots = catalog.Slots
	}
	if catalog.News != nil {
		cfg.Club.News = catalog.News
	}

	logger.Info().Int("slots", len(cfg.Club.Slots)).Int("news", len(cfg.Club.News)).Msg("catalog loaded")
	return nil
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

// initRemoteStore opens the configured backend and wraps it with metrics.
func initRemoteStore(
	ctx context.Context,
	cfg *config.Config,
	redisClient *redis.Client,
	logger *zerolog.Logger,
) (domain.RemoteStore, func(), error) {
	noop := func() {}
	opts := database.Options{EnforceUniqueSlot: cfg.Store.EnforceUniqueSlot}
	storeLogger := logger.With().Str("component", "remote-store").Str("backend", cfg.Store.Backend).Logger()

	var (
		store   domain.RemoteStore
		closeFn = noop
	)

	switch cfg.Store.Backend {
	case config.BackendMemory:
		mem := remote.NewMemoryStore(cfg.Store.EnforceUniqueSlot)
		if cfg.Store.SeedDemo {
			now := time.Now()
			today := models.Today(now, cfg.Club.Location())
			if err := mem.SeedDemo(ctx, today, cfg.Club.Rates, now); err != nil {
				return nil, noop, fmt.Errorf("seed demo reservations: %w", err)
			}
		}
		store = mem

	case config.BackendREST:
		rest := remote.NewRESTStore(cfg.Store.REST.URL, cfg.Store.REST.APIKey, cfg.Store.REST.Timeout)
		if redisClient != nil && cfg.Store.REST.CacheTTL > 0 {
			rest.UseRedisCache(redisClient, cfg.Store.REST.CacheTTL)
		}
		store = rest

	case config.BackendSQLite, config.BackendPostgres:
		var (
			db  *database.DB
			err error
		)
		if cfg.Store.Backend == config.BackendSQLite {
			db, err = database.NewSQLite(cfg.Store.SQLite.Path, opts, &storeLogger)
		} else {
			db, err = database.NewPostgres(cfg.Store.Postgres.DSN(), opts, &storeLogger)
		}
		if err != nil {
			logger.Error().Err(err).Str("backend", cfg.Store.Backend).Msg("init database")
			return nil, noop, err
		}
		backupLogger := logger.With().Str("component", "backup").Logger()
		go database.NewBackupService(db, cfg.Backup, &backupLogger).Start(ctx)
		store = db
		closeFn = func() { _ = db.Close() }

	case config.BackendMongo:
		mongoStore, err := remote.NewMongoStore(ctx, cfg.Store.Mongo.URI, cfg.Store.Mongo.Database, cfg.Store.EnforceUniqueSlot)
		if err != nil {
			logger.Error().Err(err).Msg("init mongo store")
			return nil, noop, err
		}
		store = mongoStore
		closeFn = func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = mongoStore.Close(closeCtx)
		}

	default:
		return nil, noop, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	logger.Info().Str("backend", cfg.Store.Backend).Bool("enforce_unique_slot", cfg.Store.EnforceUniqueSlot).Msg("remote store ready")
	return remote.Instrument(store, &storeLogger), closeFn, nil
}

// initStateRepository keeps drafts in redis when it is up and falls back to
// process memory otherwise.
func initStateRepository(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) domain.StateRepository {
	memory := repository.NewMemoryStateRepository(cfg.Session.DraftTTL)
	if redisClient == nil {
		return memory
	}
	repoLogger := logger.With().Str("component", "state-repo").Logger()
	return repository.NewFailoverStateRepository(
		repository.NewRedisStateRepository(redisClient, cfg.Session.DraftTTL),
		memory,
		&repoLogger,
	)
}

// initSubscribers hangs the slow consumers of domain events off the bus. All of
// them run asynchronously so a workflow never waits for a notification.
func initSubscribers(
	ctx context.Context,
	cfg *config.Config,
	bus *events.EventBus,
	appState *state.Store,
	redisClient *redis.Client,
	logger *zerolog.Logger,
) func() {
	closeFn := func() {}
	onError := func(e *events.Event, err error) {
		logger.Warn().Err(err).Str("event", e.Type).Str("event_id", e.ID).Msg("event handler failed")
	}

	if cfg.Broker.URL != "" {
		bridge, err := events.DialAMQP(cfg.Broker.URL, cfg.Broker.Exchange, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("broker unavailable, events stay in-process")
		} else {
			bus.Subscribe(events.AllEvents, events.Async(bridge.Forward, onError))
			closeFn = func() { _ = bridge.Close() }
			logger.Info().Str("exchange", cfg.Broker.Exchange).Msg("broker connected")
		}
	}

	if cfg.Google.GoogleCredentialsFile != "" && cfg.Google.ScheduleSpreadsheetID != "" {
		sheet, err := google.NewScheduleSheet(ctx, cfg.Google.GoogleCredentialsFile, cfg.Google.ScheduleSpreadsheetID, cfg.Google.ScheduleSheetName)
		if err == nil {
			err = sheet.TestConnection(ctx)
		}
		if err != nil {
			logger.Warn().Err(err).Msg("google sheets init failed, continuing without schedule mirror")
		} else {
			if err := sheet.WarmUpCache(ctx); err != nil {
				logger.Warn().Err(err).Msg("schedule row cache warm-up failed")
			}
			workerLogger := logger.With().Str("component", "sheets-worker").Logger()
			source := func() []models.Reservation { return appState.Snapshot().Reservations }
			sheetsWorker := worker.NewSheetsWorker(sheet, source, redisClient, worker.RetryPolicyFrom(cfg.Google.SyncRetry), &workerLogger)
			bus.Subscribe(events.EventReservationCreated, sheetsWorker.HandleEvent)
			bus.Subscribe(events.EventReservationUpdated, sheetsWorker.HandleEvent)
			bus.Subscribe(events.EventReservationDeleted, sheetsWorker.HandleEvent)
			go sheetsWorker.Start(ctx)
			logger.Info().Msg("google sheets schedule mirror enabled")
		}
	}

	if tg := cfg.Notifications.Telegram; tg.BotToken != "" && tg.ChatID != 0 {
		bot, err := notify.NewTelegramBot(tg.BotToken, tg.Debug)
		if err != nil {
			logger.Warn().Err(err).Msg("telegram bot init failed, front desk alerts disabled")
		} else {
			notifier := notify.NewTelegramNotifier(bot, tg.ChatID, logger)
			bus.Subscribe(events.AllEvents, events.Async(notifier.HandleEvent, onError))
			logger.Info().Int64("chat_id", tg.ChatID).Msg("telegram front desk alerts enabled")
		}
	}

	if ms := cfg.Notifications.MailerSend; ms.APIKey != "" && ms.FromEmail != "" {
		mailer := notify.NewEmailNotifier(notify.NewMailerSend(ms.APIKey), ms.FromEmail, ms.FromName, cfg.Club.Name, logger)
		bus.Subscribe(events.EventReservationCreated, events.Async(mailer.HandleEvent, onError))
		logger.Info().Str("from", ms.FromEmail).Msg("email confirmations enabled")
	}

	return closeFn
}

func initConcierge(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *assistant.Concierge {
	conciergeLogger := logger.With().Str("component", "concierge").Logger()
	if !cfg.Assistant.Enabled {
		return assistant.NewConcierge(nil, cfg.Assistant.Timeout, &conciergeLogger)
	}

	oracle, err := assistant.NewGeminiOracle(ctx, cfg.Assistant.APIKey, cfg.Assistant.Model)
	if err != nil {
		logger.Warn().Err(err).Msg("gemini client init failed, concierge answers with fallbacks")
		return assistant.NewConcierge(nil, cfg.Assistant.Timeout, &conciergeLogger)
	}
	return assistant.NewConcierge(oracle, cfg.Assistant.Timeout, &conciergeLogger)
}

func sweepSessions(ctx context.Context, sessions *service.SessionService, logger *zerolog.Logger) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.Sweep(); n > 0 {
				logger.Debug().Int("sessions", n).Msg("idle sessions swept")
			}
		}
	}
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
	if grpcServer != nil {
		go func() {
			if err := grpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	startedLog := logger.Info().Int("http_port", cfg.API.HTTP.Port)
	if grpcServer != nil {
		startedLog = startedLog.Str("grpc_addr", grpcServer.Addr())
	}
	startedLog.Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
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
