package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/authgate/authgate/internal/auth"
	"github.com/authgate/authgate/internal/config"
	"github.com/authgate/authgate/internal/handler"
	"github.com/authgate/authgate/internal/pkg/logger"
	"github.com/authgate/authgate/internal/repository"
	"github.com/authgate/authgate/internal/service"
	"github.com/gin-gonic/gin"
)

func main() {
	// 0. Initialize Logger
	logger.Init("info")

	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// 2. Key material and persistence are guard dependencies: missing
	// means fatal startup, never a per-request failure.
	tokens, err := auth.NewTokenService(cfg.Auth)
	if err != nil {
		log.Fatalf("Failed to load token keys: %v", err)
	}

	db, err := repository.NewDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	logger.Info("✅ Connected to PostgreSQL")

	if cfg.Database.Seed {
		if err := repository.Seed(db); err != nil {
			log.Fatalf("Failed to seed database: %v", err)
		}
	}

	// Client cache (Redis > none)
	var clientCache service.ClientCache
	if cfg.Redis.Addr != "" {
		redisCache, err := repository.NewRedisClientCache(cfg)
		if err == nil {
			logger.Info("✅ Connected to Redis")
			clientCache = redisCache
		} else {
			logger.Error("⚠️ Failed to connect to Redis, client lookups go straight to DB", "error", err)
		}
	}

	// 3. Initialize Core Services
	recorder, err := service.NewRecorder(cfg.RequestLog)
	if err != nil {
		log.Fatalf("Failed to initialize request recorder: %v", err)
	}

	clients := service.NewClientRegistry(repository.NewGormClientRepo(db), clientCache, cfg.RateLimit)
	authSvc := service.NewAuthService(repository.NewGormUserRepo(db), tokens)

	// 4. Setup Router
	r := handler.NewRouter(handler.RouterDeps{
		Cfg:      cfg,
		Tokens:   tokens,
		Clients:  clients,
		AuthSvc:  authSvc,
		Recorder: recorder,
	})

	// 5. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Info("🚀 AuthGate started", "port", cfg.Server.Port, "env", cfg.Server.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}
	recorder.Close()

	logger.Info("Server exiting")
}
