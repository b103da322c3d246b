package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"docdash/config"
	"docdash/config/database"
	"docdash/internal/document/repository"
	"docdash/internal/document/service"
	"docdash/internal/identity"
	"docdash/middleware"
	"docdash/pkg/logger"
	"docdash/router"
	"docdash/socket"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables from OS")
	}

	cfg := config.Load()
	logger.Init(cfg.LogLevel)
	defer logger.Sync()

	if cfg.JWTSecret == "" {
		logger.Sugar.Fatal("JWT_SECRET environment variable not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Documents live in Postgres unless DATABASE_URL selects the in-memory store.
	var repo service.Repository
	if strings.HasPrefix(cfg.DatabaseURL, "memory://") {
		logger.Sugar.Warn("Using in-memory document store; data is lost on restart")
		repo = repository.NewMemoryRepository()
	} else {
		db, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Sugar.Fatalf("Database connection failed: %v", err)
		}
		defer db.Close()
		if err := database.Migrate(ctx, db); err != nil {
			logger.Sugar.Fatalf("Migrations failed: %v", err)
		}
		repo = repository.NewDocumentRepository(db)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Sugar.Fatalf("Invalid REDIS_URL: %v", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()
	sessions := identity.NewRedisSessionStore(redisClient)
	if err := sessions.Ping(ctx); err != nil {
		logger.Sugar.Fatalf("Redis connection failed: %v", err)
	}

	docService := service.NewDocumentService(repo, nil)
	hub := socket.NewHub(docService)
	fanout := socket.NewFanout(redisClient, cfg.FanoutChannel, hub)
	docService.Notifier = fanout

	go hub.Run(ctx)
	go hub.FlushWorker(ctx, cfg.FlushInterval)
	go func() {
		if err := fanout.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Sugar.Errorf("Change fan-out stopped: %v", err)
		}
	}()

	handler := router.Setup(router.Deps{
		Documents:   docService,
		Identity:    identity.NewProvider(sessions, identity.NewSigner(cfg.JWTSecret), cfg.SessionTTL),
		Hub:         hub,
		Sessions:    fanout,
		RateLimiter: middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		CORSOrigin:  cfg.CORSOrigin,
	})

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Sugar.Infof("docdash backend listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Sugar.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Sugar.Errorf("Shutdown error: %v", err)
	}
}
