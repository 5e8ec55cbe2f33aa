package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"swapbot/internal/config"
	"swapbot/internal/domain/services"
	"swapbot/internal/infrastructure/cache"
	"swapbot/internal/infrastructure/database"
	"swapbot/internal/infrastructure/faceswap"
	"swapbot/internal/infrastructure/queue"
	"swapbot/internal/infrastructure/storage"
	"swapbot/internal/infrastructure/telegram"
	"swapbot/internal/workers/swapworker"
)

func main() {
	cfg := config.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("service", "swapbot-worker")

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

	store, err := storage.NewLocalStore(cfg.Swap.StorageDir)
	if err != nil {
		logger.Error("failed to prepare storage", "error", err)
		os.Exit(1)
	}

	userRepo := database.NewUserRepository(db)
	purchaseRepo := database.NewPurchaseRepository(db)
	runLogRepo := database.NewRunLogRepository(db)

	clock := services.SystemClock()
	entitlements := services.NewEntitlementService(userRepo, purchaseRepo, cfg.Quota, clock, logger)
	limiter := services.NewRateLimiter(time.Duration(cfg.Quota.CooldownSeconds)*time.Second, cfg.Quota.BurstWindow, clock)
	targetMode := services.NewTargetModeService(userRepo, logger)
	reconciler := services.NewReconcilerService(userRepo, purchaseRepo, runLogRepo, cfg.Quota, clock, logger)

	tgClient := telegram.NewClient(&cfg.Telegram)
	swapClient := faceswap.NewClient(&cfg.Swap)

	pipeline := services.NewPipelineService(
		entitlements,
		limiter,
		targetMode,
		userRepo,
		tgClient,
		swapClient,
		store,
		tgClient,
		clock,
		logger,
	)

	photoQueue := queue.NewPhotoQueue(redisClient.Client)
	pool := swapworker.NewPool(photoQueue, pipeline, cfg.Worker.Count, logger)
	scheduler := swapworker.NewScheduler(reconciler, cfg.Quota.ReconcileHourUTC, clock, logger)

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("shutdown signal received")
		cancel()
	}()

	go scheduler.Run(ctx)

	logger.Info("worker pool starting", "workers", cfg.Worker.Count)
	pool.Run(ctx)

	logger.Info("worker stopped")
}
