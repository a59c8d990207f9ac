package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"pablos-ai/internal/config"
	"pablos-ai/internal/infra/adapter/persistence/memory"
	pgRepo "pablos-ai/internal/infra/adapter/persistence/postgres"
	sqliteRepo "pablos-ai/internal/infra/adapter/persistence/sqlite"
	"pablos-ai/internal/infra/db"
	"pablos-ai/internal/infra/inference"
	"pablos-ai/internal/infra/notifier"
	"pablos-ai/internal/infra/worker"
	"pablos-ai/internal/observability/logging"
	"pablos-ai/internal/observability/tracing"
	"pablos-ai/internal/repository"
	pkgconfig "pablos-ai/pkg/config"

	chatUC "pablos-ai/internal/usecase/chat"

	hhttp "pablos-ai/internal/handler/http"
	hchat "pablos-ai/internal/handler/http/chat"
	"pablos-ai/internal/handler/http/requestid"
)

func main() {
	logger := initLogger()

	shutdownTracing := tracing.Setup(pkgconfig.GetEnvBool("TRACING_SAMPLE", false))
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Error("failed to shut down tracer provider", slog.Any("error", err))
		}
	}()

	provider := initInference(logger)
	defer func() {
		if err := provider.Close(); err != nil {
			logger.Error("failed to close inference client", slog.Any("error", err))
		}
	}()

	history := initHistory(logger)
	defer history.Close()

	version := getVersion()
	components := setupServer(logger, provider, history, version)

	probeJob := startProbeJob(logger, provider)
	defer probeJob.Stop()

	runServer(logger, components, version)
}

// initLogger initializes and returns a structured logger based on environment configuration.
func initLogger() *slog.Logger {
	logger := logging.NewLogger()
	slog.SetDefault(logger)
	return logger
}

// initInference builds the multi-endpoint inference client (or the stub when
// INFERENCE_USE_MOCK is set).
func initInference(logger *slog.Logger) inference.Service {
	cfg, err := config.LoadInferenceConfig()
	if err != nil {
		logger.Error("failed to load inference configuration", slog.Any("error", err))
		os.Exit(1)
	}

	svc, err := inference.New(cfg,
		inference.WithLogger(logger),
		inference.WithMetrics(inference.NewPrometheusMetrics()),
	)
	if err != nil {
		logger.Error("failed to create inference client", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("inference client ready",
		slog.Int("endpoints", len(cfg.Endpoints)),
		slog.Bool("mock", cfg.UseMock),
		slog.Bool("fallback_enabled", cfg.FallbackEnabled))
	return svc
}

// historyStore is the selected history backend plus the database behind it, if any.
type historyStore struct {
	Repo    repository.HistoryRepository
	DB      *sql.DB
	Backend string
	Prompt  int
	Max     int
	logger  *slog.Logger
}

// Close closes the underlying database of a persistent backend.
func (h *historyStore) Close() {
	if h.DB == nil {
		return
	}
	if err := h.DB.Close(); err != nil {
		h.logger.Error("failed to close database", slog.Any("error", err))
	}
}

// initHistory opens the configured history backend and runs its migrations.
func initHistory(logger *slog.Logger) *historyStore {
	cfg, err := config.LoadHistoryConfig()
	if err != nil {
		logger.Error("failed to load history configuration", slog.Any("error", err))
		os.Exit(1)
	}

	store := &historyStore{Backend: cfg.Backend, Prompt: cfg.PromptMessages, Max: cfg.MaxMessages, logger: logger}

	var (
		dialect db.Dialect
		dsn     string
	)
	switch cfg.Backend {
	case config.HistoryBackendMemory:
		store.Repo = memory.NewHistoryRepo(cfg.MaxMessages)
		logger.Info("history backend selected", slog.String("backend", cfg.Backend))
		return store
	case config.HistoryBackendPostgres:
		dialect, dsn = db.Postgres, cfg.DatabaseURL
	case config.HistoryBackendSQLite:
		dialect, dsn = db.SQLite, cfg.SQLitePath
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	database, err := db.Open(ctx, dialect, dsn)
	if err != nil {
		logger.Error("failed to open database", slog.String("backend", cfg.Backend), slog.Any("error", err))
		os.Exit(1)
	}
	if err := db.MigrateUp(ctx, database, dialect); err != nil {
		_ = database.Close()
		logger.Error("failed to migrate database", slog.Any("error", err))
		os.Exit(1)
	}

	store.DB = database
	if dialect == db.Postgres {
		store.Repo = pgRepo.NewHistoryRepo(database, cfg.MaxMessages)
	} else {
		store.Repo = sqliteRepo.NewHistoryRepo(database, cfg.MaxMessages)
	}

	logger.Info("history backend selected",
		slog.String("backend", cfg.Backend),
		slog.Int("max_messages", cfg.MaxMessages))
	return store
}

// getVersion returns the application version from environment or default.
func getVersion() string {
	return pkgconfig.GetEnvString("VERSION", "dev")
}

// ServerComponents holds components needed for server operation.
type ServerComponents struct {
	Handler http.Handler
	Addr    string
}

// setupServer configures and returns the HTTP handler with all routes and middleware.
func setupServer(logger *slog.Logger, provider inference.Service, history *historyStore, version string) *ServerComponents {
	chatCfg := chatUC.DefaultConfig()
	chatCfg.PromptMessages = history.Prompt
	chatCfg.MaxHistory = history.Max
	chatCfg.Temperature = pkgconfig.GetEnvFloat("CHAT_TEMPERATURE", chatCfg.Temperature)
	chatCfg.CacheTTL = pkgconfig.GetEnvDuration("CHAT_CACHE_TTL", chatCfg.CacheTTL)
	chatCfg.UserCooldown = pkgconfig.GetEnvDuration("CHAT_USER_COOLDOWN", chatCfg.UserCooldown)

	chatSvc := chatUC.NewService(provider, history.Repo, chatCfg, chatUC.WithLogger(logger))

	mux := setupRoutes(logger, chatSvc, provider, history, version)
	handler := applyMiddleware(logger, mux)

	return &ServerComponents{
		Handler: handler,
		Addr:    pkgconfig.GetEnvString("HTTP_ADDR", ":8080"),
	}
}

// setupRoutes registers all HTTP routes.
func setupRoutes(
	logger *slog.Logger,
	chatSvc *chatUC.Service,
	provider inference.Service,
	history *historyStore,
	version string,
) *http.ServeMux {
	mux := http.NewServeMux()

	hchat.Register(mux, chatSvc, logger)

	mux.Handle("GET /health", &hhttp.HealthHandler{DB: history.DB, HistoryBackend: history.Backend, Version: version})
	mux.Handle("GET /live", hhttp.LiveHandler{})
	mux.Handle("GET /health/endpoints", hhttp.EndpointsHandler{
		Monitor:      provider,
		ProbeTimeout: pkgconfig.GetEnvDuration("INFERENCE_PROBE_TIMEOUT", 10*time.Second),
	})
	mux.Handle("GET /metrics", hhttp.MetricsHandler())

	return mux
}

// applyMiddleware wraps the mux with the middleware chain.
// Order: Request ID → Tracing → Recovery → Logging → Body Limit → Timeout → Metrics
//
// Metrics must wrap the mux directly so the matched route pattern is visible
// after the mux has served the request.
func applyMiddleware(logger *slog.Logger, mux *http.ServeMux) http.Handler {
	timeout := pkgconfig.GetEnvDuration("HTTP_REQUEST_TIMEOUT", 90*time.Second)

	return hhttp.Chain(hhttp.MetricsMiddleware(mux),
		requestid.Middleware,
		tracing.Middleware,
		hhttp.Recover(logger),
		hhttp.Logging(logger),
		hhttp.LimitRequestBody(1<<20), // 1MB limit
		hhttp.Timeout(timeout),
	)
}

// loadAlertNotifier builds the endpoint alert notifier from environment variables.
//
// Environment variables:
//   - DISCORD_ENABLED / DISCORD_WEBHOOK_URL
//   - SLACK_ENABLED / SLACK_WEBHOOK_URL
//
// A webhook that fails validation is disabled with a warning.
func loadAlertNotifier(logger *slog.Logger) notifier.Notifier {
	const timeout = 30 * time.Second
	var notifiers []notifier.Notifier

	if pkgconfig.GetEnvBool("DISCORD_ENABLED", false) {
		webhookURL := os.Getenv("DISCORD_WEBHOOK_URL")
		if err := notifier.ValidateWebhookURL(webhookURL, notifier.DiscordWebhookHost, notifier.DiscordWebhookPrefix); err != nil {
			logger.Warn("invalid Discord webhook, disabling alerts", slog.Any("error", err))
		} else {
			notifiers = append(notifiers, notifier.NewDiscordNotifier(
				notifier.DiscordConfig{WebhookURL: webhookURL, Timeout: timeout},
				notifier.WithLogger(logger)))
		}
	}

	if pkgconfig.GetEnvBool("SLACK_ENABLED", false) {
		webhookURL := os.Getenv("SLACK_WEBHOOK_URL")
		if err := notifier.ValidateWebhookURL(webhookURL, notifier.SlackWebhookHost, notifier.SlackWebhookPrefix); err != nil {
			logger.Warn("invalid Slack webhook, disabling alerts", slog.Any("error", err))
		} else {
			notifiers = append(notifiers, notifier.NewSlackNotifier(
				notifier.SlackConfig{WebhookURL: webhookURL, Timeout: timeout},
				notifier.WithLogger(logger)))
		}
	}

	logger.Info("endpoint alerts configured", slog.Int("webhooks", len(notifiers)))
	return notifier.New(notifiers...)
}

// startProbeJob schedules the periodic endpoint probe, which logs the outcome
// and alerts on health changes.
func startProbeJob(logger *slog.Logger, provider inference.Service) *cron.Cron {
	metrics := worker.NewProbeMetrics(prometheus.DefaultRegisterer)
	job := &worker.ProbeJob{
		Prober:  provider,
		Watcher: notifier.NewWatcher(loadAlertNotifier(logger), logger),
		Metrics: metrics,
		Config:  worker.LoadConfigFromEnv(logger, metrics),
		Logger:  logger,
	}

	c, err := job.Start()
	if err != nil {
		logger.Error("failed to start probe job", slog.Any("error", err))
		os.Exit(1)
	}
	return c
}

// runServer starts the HTTP server and handles graceful shutdown.
func runServer(logger *slog.Logger, components *ServerComponents, version string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := &http.Server{
		Addr:              components.Addr,
		Handler:           components.Handler,
		ReadHeaderTimeout: 10 * time.Second, // Prevent Slowloris attacks
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		logger.Info("server starting",
			slog.String("addr", components.Addr),
			slog.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")

	// Image calls can run for a minute; give in-flight requests time to finish.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", slog.Any("error", err))
	}
	cancel()
	logger.Info("server stopped")
}
