package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"swapbot/internal/config"
	"swapbot/internal/domain/services"
	"swapbot/internal/infrastructure/cache"
	"swapbot/internal/infrastructure/database"
	"swapbot/internal/infrastructure/queue"
	httpiface "swapbot/internal/interfaces/http"
	"swapbot/internal/interfaces/http/middleware"
)

func main() {
	cfg := config.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("service", "swapbot-gateway")

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgresConnection(&cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.RunMigrations("migrations"); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	redisClient, err := cache.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	userRepo := database.NewUserRepository(db)
	purchaseRepo := database.NewPurchaseRepository(db)
	runLogRepo := database.NewRunLogRepository(db)

	clock := services.SystemClock()
	entitlements := services.NewEntitlementService(userRepo, purchaseRepo, cfg.Quota, clock, logger)
	targetMode := services.NewTargetModeService(userRepo, logger)
	reconciler := services.NewReconcilerService(userRepo, purchaseRepo, runLogRepo, cfg.Quota, clock, logger)
	photoQueue := queue.NewPhotoQueue(redisClient.Client)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.RequestLogger(logger))

	handler := httpiface.NewHandler(entitlements, targetMode, reconciler, photoQueue, clock, logger)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		logger.Info("gateway listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shCtx); err != nil {
		logger.Error("forced shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("gateway stopped")
}
