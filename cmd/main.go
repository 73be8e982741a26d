package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/kkkkikiki/portal/internal/assistant"
	"github.com/kkkkikiki/portal/internal/cache"
	"github.com/kkkkikiki/portal/internal/completion"
	"github.com/kkkkikiki/portal/internal/config"
	"github.com/kkkkikiki/portal/internal/database"
	"github.com/kkkkikiki/portal/internal/logger"
	"github.com/kkkkikiki/portal/internal/reward"
	"github.com/kkkkikiki/portal/internal/service"
)

func main() {
	ctx := context.Background()

	// Load configuration from .env and environment variables
	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLog, err := logger.New(cfg.App.Environment, cfg.App.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer appLog.Sync()

	appLog.Info("Starting portal service", "environment", cfg.App.Environment)

	// Initialize database connections
	db, err := database.NewDB(ctx, cfg, appLog)
	if err != nil {
		appLog.Fatal("Failed to connect to database", "error", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			appLog.Error("Error closing database connections", "error", err)
		}
	}()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db.Postgres); err != nil {
			appLog.Fatal("Failed to migrate schema", "error", err)
		}
	}

	// Content snapshots come straight from the database unless redis is configured
	var source assistant.Source = assistant.NewDBSource(db.Postgres, cfg.Assistant.RowLimit)
	if cfg.Redis.Enabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			appLog.Warn("Redis unreachable, snapshots will be loaded from the database", "addr", cfg.Redis.Addr, "error", err)
		}
		source = cache.NewSnapshotCache(rdb, source, cfg.Redis.TTL(), appLog.With("component", "cache"))
	}

	completer := completion.NewClient(cfg.Completion, completion.WithLogger(appLog.With("component", "completion")))
	if !completer.Enabled() {
		appLog.Info("Completion service not configured, assistant answers locally")
	}

	engine := reward.NewEngine(db.Postgres, reward.WithLogger(appLog.With("component", "reward")))
	responder := assistant.NewResponder(source, completer, assistant.Config{RowLimit: cfg.Assistant.RowLimit},
		assistant.WithLogger(appLog.With("component", "assistant")))

	// Create HTTP mux
	mux := http.NewServeMux()

	// Register service handlers
	mux.Handle(service.NewRewardServiceHandler(service.NewRewardServer(engine)))
	mux.Handle(service.NewAdminServiceHandler(service.NewAdminServer(engine)))
	mux.Handle(service.NewAssistantServiceHandler(service.NewAssistantServer(responder)))

	// Add health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		hostname, _ := os.Hostname()
		w.WriteHeader(http.StatusOK)
		response := fmt.Sprintf(`{"status":"ok","service":"portal","hostname":"%s"}`, hostname)
		w.Write([]byte(response))
	})

	// Add database health check endpoint
	mux.HandleFunc("/health/db", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Postgres.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"error","message":"postgres unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","postgres":"connected"}`))
	})

	// Add Prometheus metrics endpoint
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:           cfg.Server.GetServerAddr(),
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB
		// Use h2c so we can serve HTTP/2 without TLS
		Handler: h2c.NewHandler(mux, &http2.Server{
			MaxConcurrentStreams: 1000,
		}),
	}

	// Start server in goroutine
	go func() {
		appLog.Info("Listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Fatal("Failed to start server", "error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		appLog.Error("Server forced to shutdown", "error", err)
		return
	}

	appLog.Info("Server exited gracefully")
}
