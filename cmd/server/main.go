package main

import (
	"context"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"cubby/internal/auth"
	"cubby/internal/cache"
	"cubby/internal/config"
	"cubby/internal/domain/repositories"
	"cubby/internal/handler"
	"cubby/internal/handler/sse"
	"cubby/internal/middleware"
	"cubby/internal/notify"
	"cubby/internal/repository/postgres"
	"cubby/internal/repository/retry"
	"cubby/internal/service"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// Setup structured logging
	logLevel := slog.LevelInfo
	if cfg.Debug {
		logLevel = slog.LevelDebug
	}

	// LOG_DIR tees logs into timestamped files next to stdout
	var logOut io.Writer = os.Stdout
	if cfg.LogDir != "" {
		logFile, err := config.SetupLogFile(cfg.LogDir, cfg.LogMaxFiles)
		if err != nil {
			log.Fatalf("Failed to set up log file: %v", err)
		}
		defer logFile.Close()
		logOut = io.MultiWriter(os.Stdout, logFile)
	}

	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"table_prefix", cfg.TablePrefix,
	)

	// JWT verifier for bearer-token authentication
	verifier, err := auth.NewJWKSVerifier(cfg.JWKSURL, logger)
	if err != nil {
		log.Fatalf("Failed to create JWT verifier: %v", err)
	}
	defer verifier.Close()

	// pgx connection pool
	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create connection pool: %v", err)
	}
	defer pool.Close()

	logger.Info("database connected",
		"max_conns", 25,
		"min_conns", 5,
	)

	tables := postgres.NewTableNames(cfg.TablePrefix)
	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	}

	// Folder change feed over LISTEN/NOTIFY; live views depend on it.
	listener := postgres.NewChangeListener(cfg.DatabaseURL, logger)
	if err := listener.Start(ctx); err != nil {
		log.Fatalf("Failed to start change listener: %v", err)
	}
	defer listener.Close()

	// Repositories, with transient store errors retried
	retryPolicy := retry.DefaultPolicy()
	if cfg.RetryMaxAttempts > 0 {
		retryPolicy.MaxAttempts = uint64(cfg.RetryMaxAttempts)
	}
	var folderRepo repositories.FolderRepository = postgres.NewFolderRepository(repoConfig)
	folderRepo = retry.NewFolderRepository(folderRepo, retryPolicy, logger)
	watcher := postgres.NewFolderWatcher(folderRepo, listener, logger)
	txManager := postgres.NewTransactionManager(pool)

	// Snapshot cache (optional)
	var snapshots *cache.SnapshotCache
	if cfg.RedisAddr != "" {
		redisClient, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
		snapshots = cache.New(redisClient, cache.DefaultTTL, logger)
		logger.Info("snapshot cache connected", "addr", cfg.RedisAddr)
	}

	// Membership event publishing (optional)
	var notifier notify.Notifier = notify.NoopNotifier{}
	if len(cfg.KafkaBrokers) > 0 {
		notifier = notify.NewKafkaNotifier(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		logger.Info("kafka notifier enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}
	defer notifier.Close()

	// Services
	folderService := service.NewFolderService(folderRepo, txManager, snapshots, notifier, logger)
	membershipService := service.NewMembershipService(folderRepo, snapshots, notifier, logger)
	viewService := service.NewViewService(folderRepo, watcher,
		service.FailurePolicy(cfg.ViewFailurePolicy), logger)

	logger.Info("services initialized")

	// Handlers
	folderHandler := handler.NewFolderHandler(folderService, logger)
	membershipHandler := handler.NewMembershipHandler(membershipService, logger)
	viewHandler := handler.NewViewHandler(viewService, sse.DefaultConfig(), logger)

	// HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", folderHandler.HealthCheck)

	// Folder routes
	mux.HandleFunc("POST /api/folders", folderHandler.CreateFolder)
	mux.HandleFunc("GET /api/folders", viewHandler.List)
	mux.HandleFunc("GET /api/folders/stream", viewHandler.Stream) // Must come before {id} route
	mux.HandleFunc("GET /api/folders/{id}", folderHandler.GetFolder)
	mux.HandleFunc("DELETE /api/folders/{id}", folderHandler.DeleteFolder)
	mux.HandleFunc("PUT /api/folders/{id}/public", folderHandler.SetPublic)
	mux.HandleFunc("POST /api/folders/{id}/lock", folderHandler.Lock)
	mux.HandleFunc("DELETE /api/folders/{id}/lock", folderHandler.Unlock)

	// Membership routes
	mux.HandleFunc("POST /api/folders/{id}/contributors", membershipHandler.Invite)
	mux.HandleFunc("DELETE /api/folders/{id}/contributors/{userID}", membershipHandler.Remove)

	// Build middleware chain
	var h http.Handler = mux

	// Apply middleware in reverse order (they wrap each other)
	// Order: CORS → Recovery → Auth → Routes
	h = middleware.Auth(verifier)(h)
	h = middleware.Recovery(logger)(h)

	// CORS - Must be before auth to handle OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization", "Last-Event-ID"},
		AllowCredentials: true,
	})
	h = corsHandler.Handler(h)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // Disabled to allow long-lived SSE streams
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("server listening", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to start server: %v", err)
	}
}
