package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"p2p-desk/config"
	httpHandler "p2p-desk/internal/adapter/http/handler"
	"p2p-desk/internal/adapter/remote"
	pgStorage "p2p-desk/internal/adapter/storage/postgres"
	redisStorage "p2p-desk/internal/adapter/storage/redis"
	"p2p-desk/internal/core/ports"
	"p2p-desk/internal/service"
	"p2p-desk/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load(os.Getenv("P2P_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("remote", cfg.Remote.BaseURL).
		Msg("Starting P2P desk")

	if cfg.Session.JWTSecret == "" {
		log.Fatal().Msg("P2P_SESSION_JWT_SECRET is required")
	}
	gin.SetMode(cfg.Server.Mode)

	ctx := context.Background()

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Backend tokens are encrypted at rest in Redis
	cipher, err := service.NewTokenCipher(cfg.Session.EncryptionKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize token cipher")
	}
	vault := redisStorage.NewTokenVault(rdb, cipher)
	guard := redisStorage.NewSubmissionGuard(rdb)
	throttle := redisStorage.NewThrottle(rdb)

	checkers := []ports.HealthChecker{redisStorage.NewHealthCheck(rdb)}

	// Action journal (optional PostgreSQL)
	var auditRepo ports.ActionAuditRepository
	if cfg.Database.Enabled() {
		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer pool.Close()
		if err := pgStorage.EnsureSchema(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("Failed to prepare action journal schema")
		}
		auditRepo = pgStorage.NewActionAuditRepo(pool)
		checkers = append(checkers, pgStorage.NewHealthCheck(pool))
		log.Info().Msg("PostgreSQL connected")
	} else {
		log.Warn().Msg("No database configured, action journal is log-only")
	}
	auditSvc := service.NewAuditService(auditRepo, log)

	// Trading API client
	gw, err := remote.NewClient(cfg.Remote, nil, logger.Component(log, "remote"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize trading API client")
	}
	checkers = append(checkers, remote.NewHealthCheck(gw))

	// Initialize services
	tokenSvc := service.NewJWTTokenService(cfg.Session.JWTSecret, cfg.Session.JWTExpiry, cfg.Session.Issuer)
	queues := service.NewQueueService(gw, cfg.Remote.PageLimit)
	desk := service.NewDesk(queues, service.NewPoller(logger.Component(log, "poller")), cfg.Remote.PollInterval, logger.Component(log, "desk"))
	defer desk.Close()

	sessions := service.NewSessionService(gw, vault, tokenSvc, desk, cfg.Session.TokenTTL, log)
	dispatcher := service.NewDispatcher(gw, guard, auditSvc, desk, cfg.Session.ActionLockTTL, logger.Component(log, "dispatcher"))
	wallet := service.NewWalletService(gw, guard, cfg.Remote.PageLimit, log)
	tickets := service.NewTicketService(gw, guard, cfg.Remote.PageLimit, log)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		Sessions:       sessions,
		Queues:         queues,
		Dispatcher:     dispatcher,
		Desk:           desk,
		Wallet:         wallet,
		Tickets:        tickets,
		TokenSvc:       tokenSvc,
		ThrottleStore:  throttle,
		AuditSvc:       auditSvc,
		AuditRepo:      auditRepo,
		HealthCheckers: checkers,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	// Stop polling first so open streams close cleanly.
	desk.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
