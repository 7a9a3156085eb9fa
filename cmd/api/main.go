package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/stepup-id/api/internal/cache"
	"github.com/stepup-id/api/internal/config"
	"github.com/stepup-id/api/internal/handler"
	"github.com/stepup-id/api/internal/infrastructure/idp"
	infraRedis "github.com/stepup-id/api/internal/infrastructure/redis"
	"github.com/stepup-id/api/internal/notifier"
	"github.com/stepup-id/api/internal/repository"
	"github.com/stepup-id/api/internal/service/challenge"
	"github.com/stepup-id/api/internal/service/emailcode"
	"github.com/stepup-id/api/internal/service/login"
	"github.com/stepup-id/api/internal/service/recovery"
	"github.com/stepup-id/api/internal/service/totp"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	slog.Info("Starting StepUp-ID API...")

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Config load failed", slog.Any("error", err))
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := repository.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Database connection failed", slog.Any("error", err))
		os.Exit(1)
	}

	redisClient, err := infraRedis.NewClient(infraRedis.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		slog.Error("Redis connection failed", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("Redis connected")

	idpClient, err := idp.NewClient(ctx, cfg.Provider)
	if err != nil {
		slog.Error("Identity provider connection failed", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("Identity provider connected", slog.String("issuer", cfg.Provider.IssuerURL))

	identityRepo := repository.NewIdentityRepository(db.Pool)
	auditRepo := repository.NewAuditRepository(db.Pool)
	recoveryRepo := repository.NewRecoveryRepository(db.Pool)

	snapshotCache := cache.New(cfg.StepUp.CacheTTL, cfg.StepUp.CacheCapacity)
	defer snapshotCache.Shutdown()

	zapLogger, err := zap.NewProduction()
	if err != nil {
		slog.Error("Logger init failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer zapLogger.Sync()

	var sender notifier.Sender
	if cfg.Notifier.WebhookURL != "" {
		sender = notifier.NewWebhookSender(cfg.Notifier.WebhookURL,
			time.Duration(cfg.Notifier.TimeoutSeconds)*time.Second, zapLogger)
	} else {
		slog.Warn("No delivery webhook configured, email codes will not be delivered")
		sender = notifier.NewNoOpSender(zapLogger)
	}

	challengeService := challenge.NewService(redisClient, cfg.StepUp.ChallengeTTL)

	totpService, err := totp.NewService(cfg.TOTP, identityRepo, auditRepo, redisClient)
	if err != nil {
		slog.Error("TOTP service init failed", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("TOTP service initialized")

	emailService := emailcode.NewService(redisClient, sender, auditRepo, cfg.StepUp.EmailCodeTTL)
	recoveryService := recovery.NewService(recoveryRepo, auditRepo)

	loginService := login.NewService(
		identityRepo,
		snapshotCache,
		challengeService,
		totpService,
		emailService,
		recoveryService,
		redisClient,
		auditRepo,
	)
	slog.Info("Login orchestrator initialized")

	healthHandler := handler.NewHealthHandler(db, redisClient, idpClient)
	authHandler := handler.NewAuthHandler(idpClient, loginService)
	stepUpHandler := handler.NewStepUpHandler(loginService)

	router := handler.NewRouter(cfg, healthHandler, authHandler, stepUpHandler)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		slog.Info("Server starting", slog.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	srv.Shutdown(shutdownCtx)
	redisClient.Close()
	db.Close()
	slog.Info("Server stopped")
}
