package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benvon/smart-todo-capture/api/openapi"
	"github.com/benvon/smart-todo-capture/internal/app"
	"github.com/benvon/smart-todo-capture/internal/capture"
	"github.com/benvon/smart-todo-capture/internal/config"
	"github.com/benvon/smart-todo-capture/internal/database"
	"github.com/benvon/smart-todo-capture/internal/handlers"
	"github.com/benvon/smart-todo-capture/internal/logger"
	"github.com/benvon/smart-todo-capture/internal/middleware"
	"github.com/benvon/smart-todo-capture/internal/tasks"
	"github.com/benvon/smart-todo-capture/internal/telemetry"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"
)

const serviceName = "smart-todo-capture"

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging of generation requests")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger("server", debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync(zapLogger) }()

	zapLogger.Info("starting_server",
		zap.String("version", version),
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("ai_provider", cfg.AIProvider),
		zap.String("ai_fallback_provider", cfg.AIFallbackProvider),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	var tracingEnabled bool
	if cfg.OTELEnabled {
		if cfg.OTELEndpoint == "" {
			zapLogger.Warn("otel_enabled_but_endpoint_not_configured")
		} else {
			tp, err := telemetry.InitTracer(context.Background(), serviceName, cfg.OTELEndpoint)
			if err != nil {
				zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
			} else {
				tracingEnabled = true
				zapLogger.Info("otel_tracer_initialized", zap.String("endpoint", cfg.OTELEndpoint))
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					if err := telemetry.Shutdown(shutdownCtx, tp); err != nil {
						zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
					}
				}()
			}
		}
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()
	if err := db.Migrate(context.Background()); err != nil {
		zapLogger.Fatal("failed_to_apply_schema", zap.Error(err))
	}
	zapLogger.Info("connected_to_database")

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		zapLogger.Fatal("invalid_redis_url", zap.Error(err))
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() {
		if err := redisClient.Close(); err != nil {
			zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
		}
	}()
	limiterStore, err := redisstore.NewStoreWithOptions(redisClient, limiter.StoreOptions{Prefix: "smart_todo_capture_limiter"})
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limit_store", zap.Error(err))
	}
	zapLogger.Info("connected_to_redis")

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	jobQueue, err := app.ConnectQueue(rootCtx, cfg.RabbitMQURL, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_rabbitmq_after_retries", zap.Error(err))
	}
	defer func() {
		if err := jobQueue.Close(); err != nil {
			zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
		}
	}()

	extractor, err := app.NewExtractor(cfg, zapLogger, debugMode)
	if err != nil {
		zapLogger.Fatal("failed_to_create_extractor", zap.Error(err))
	}
	processor := app.NewProcessor(cfg, db, extractor, zapLogger, false)

	policies, err := config.LoadCapturePolicies(cfg.CaptureConfigFile)
	if err != nil {
		zapLogger.Fatal("failed_to_load_capture_policies", zap.Error(err))
	}
	sessions := capture.NewManager(processor,
		capture.WithPolicies(policies),
		capture.WithLogger(zapLogger),
	)

	taskRepo := database.NewTaskRepository(db)
	taskService := tasks.NewService(taskRepo, zapLogger)

	healthChecker := handlers.NewHealthChecker(version, map[string]handlers.Pinger{
		"database": db,
		"redis": handlers.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}),
		"queue": jobQueue,
	})
	openAPIHandler, err := handlers.NewOpenAPIHandler(openapi.Spec)
	if err != nil {
		zapLogger.Fatal("failed_to_load_openapi_document", zap.Error(err))
	}

	r := mux.NewRouter()

	// Middleware wraps in registration order: the first registered is outermost
	if tracingEnabled {
		r.Use(otelmux.Middleware(serviceName))
	}
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	corsReloader := middleware.NewCORSReloader(database.NewCorsConfigRepository(db), cfg.FrontendURL, zapLogger, middleware.DefaultReloadInterval)
	r.Use(corsReloader.Middleware())
	rateLimitReloader, err := middleware.NewRateLimitReloader(limiterStore, database.NewRatelimitConfigRepository(db), middleware.DefaultRate, zapLogger, middleware.DefaultReloadInterval)
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limit_reloader", zap.Error(err))
	}
	r.Use(middleware.RequestID)
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize))
	r.Use(middleware.ContentType)
	r.Use(middleware.Timeout(middleware.DefaultRequestTimeout))
	r.Use(middleware.Recover(zapLogger))
	r.Use(middleware.Audit(zapLogger))
	r.Use(middleware.Logging(zapLogger))

	r.HandleFunc("/healthz", healthChecker.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/version", healthChecker.Version).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	openAPIHandler.RegisterRoutes(r)

	apiRouter := r.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(rateLimitReloader.Middleware())

	handlers.NewTaskHandler(taskRepo, taskService, zapLogger).
		RegisterRoutes(apiRouter.PathPrefix("/tasks").Subrouter())
	handlers.NewTranscriptHandler(processor, jobQueue, zapLogger).
		RegisterRoutes(apiRouter.PathPrefix("/transcripts").Subrouter())
	handlers.NewCaptureHandler(sessions, zapLogger).
		RegisterRoutes(apiRouter.PathPrefix("/capture/sessions").Subrouter())
	handlers.NewScanHandler(jobQueue, zapLogger).
		RegisterRoutes(apiRouter.PathPrefix("/scans").Subrouter())
	handlers.NewWebhookHandler(sessions, zapLogger).
		RegisterRoutes(apiRouter.PathPrefix("/webhooks").Subrouter())

	// Preflight requests are answered by the CORS middleware before this runs
	r.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := &http.Server{
		Addr:           ":" + cfg.ServerPort,
		Handler:        r,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   middleware.DefaultRequestTimeout + 15*time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go corsReloader.Start(rootCtx)
	go rateLimitReloader.Start(rootCtx)

	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")
	rootCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("server_forced_to_shutdown", zap.Error(err))
	}
	// Sessions still holding fragments are flushed before the store closes
	sessions.Close(ctx)

	zapLogger.Info("server_exited")
}
