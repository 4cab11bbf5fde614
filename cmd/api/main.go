package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"

	"github.com/rev2018/placement-tracker/internal/account"
	"github.com/rev2018/placement-tracker/internal/api"
	"github.com/rev2018/placement-tracker/internal/api/middleware"
	"github.com/rev2018/placement-tracker/internal/application"
	"github.com/rev2018/placement-tracker/internal/auth"
	"github.com/rev2018/placement-tracker/internal/config"
	"github.com/rev2018/placement-tracker/internal/dashboard"
	"github.com/rev2018/placement-tracker/internal/database"
	"github.com/rev2018/placement-tracker/internal/export"
	"github.com/rev2018/placement-tracker/internal/storage"
)

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))
	slog.SetDefault(logger)

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("migrate database: %v", err)
	}
	logger.Info("database ready",
		slog.String("host", cfg.Database.Host),
		slog.Int("port", cfg.Database.Port),
		slog.String("db", cfg.Database.Name),
	)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}

	authService, err := auth.NewAuthService(
		[]byte(cfg.Auth.PrivateKeyPEM),
		[]byte(cfg.Auth.PublicKeyPEM),
		cfg.Auth.AccessTokenTTL,
		cfg.Auth.RefreshTokenTTL,
	)
	if err != nil {
		log.Fatalf("init auth service: %v", err)
	}

	storageClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}
	logger.Info("storage client ready", slog.String("bucket", cfg.MinIO.Bucket))

	accounts := account.NewStore(db, cfg.Auth.MinPasswordLength)
	repo := application.NewRepository(db)

	router := api.NewRouter(cfg.API, logger)
	api.RegisterRoutes(router, authService, api.Handlers{
		Auth: api.NewAuthHandler(accounts, authService, redisClient, api.LoginGuard{
			RateLimitPerHour: cfg.Auth.LoginRateLimitPerHour,
			LockThreshold:    cfg.Auth.LoginLockThreshold,
			LockTTL:          cfg.Auth.LoginLockTTL,
		}, cfg.Auth.CookieDomain),
		Applications: api.NewApplicationHandler(repo, dashboard.NewEngine(repo), export.NewExporter(repo)),
		Resumes:      api.NewResumeHandler(storageClient, api.NewClamdScanner(cfg.Upload.ClamdAddr), cfg.Upload.MaxBytes),
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.API.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", middleware.CorrelationIDHeader},
		ExposedHeaders:   []string{"Content-Disposition", middleware.CorrelationIDHeader},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.API.Port),
		Handler:           corsHandler.Handler(router),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("api listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("failed to start api server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down api server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("api server shutdown failed", slog.Any("error", err))
	}
}
