package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mohammaddarweesh/FlightMnagementsystem-sub003/internal/application"
	"github.com/mohammaddarweesh/FlightMnagementsystem-sub003/internal/config"
	"github.com/mohammaddarweesh/FlightMnagementsystem-sub003/internal/domain/pricing"
	"github.com/mohammaddarweesh/FlightMnagementsystem-sub003/internal/infrastructure/postgres"
	"github.com/mohammaddarweesh/FlightMnagementsystem-sub003/internal/infrastructure/rabbitmq"
	redisinfra "github.com/mohammaddarweesh/FlightMnagementsystem-sub003/internal/infrastructure/redis"
	"github.com/mohammaddarweesh/FlightMnagementsystem-sub003/internal/pkg/clock"
	"github.com/mohammaddarweesh/FlightMnagementsystem-sub003/internal/pkg/logger"
	"github.com/mohammaddarweesh/FlightMnagementsystem-sub003/internal/pkg/metrics"
	"github.com/mohammaddarweesh/FlightMnagementsystem-sub003/internal/worker"
)

func main() {
	// .env はローカル開発用。無ければ環境変数のみで動く
	_ = godotenv.Load()

	cfg := config.Load()
	metrics.Init()
	defer logger.Sync()

	// データベース接続とマイグレーション
	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		logger.Fatal("データベース接続に失敗", zap.Error(err))
	}
	defer db.Close()

	migrationsPath := os.Getenv("MIGRATIONS_PATH")
	if migrationsPath == "" {
		migrationsPath = "migrations"
	}
	if err := postgres.RunMigrations(db.DB, migrationsPath); err != nil {
		logger.Fatal("マイグレーション実行に失敗", zap.Error(err))
	}

	// Redis（分散ロック・空席数キャッシュ）
	redisClient := redisinfra.NewClient(&cfg.Redis)
	defer redisClient.Close()
	lockManager := redisinfra.NewLockManager(redisClient)
	availabilityCache := redisinfra.NewAvailabilityCache(redisClient)

	// RabbitMQ（ライフサイクルイベント）。接続できなくてもリーパーは動かす
	var publisher application.EventPublisher
	rmq, err := rabbitmq.NewPublisher(&cfg.RabbitMQ)
	if err != nil {
		logger.Warn("RabbitMQ接続に失敗（イベント発行なしで継続）", zap.Error(err))
	} else {
		publisher = rmq
		defer rmq.Close()
	}

	// リポジトリとサービス
	txManager := postgres.NewTxManager(db)
	seatRepo := postgres.NewSeatRepository(db)
	holdRepo := postgres.NewSeatHoldRepository(db)
	bookingRepo := postgres.NewBookingRepository(db)
	flightRepo := postgres.NewFlightRepository(db)
	idemStore := postgres.NewIdempotencyStore(db)
	clk := clock.New()

	inventoryService := application.NewInventoryService(
		txManager, seatRepo, holdRepo, availabilityCache, publisher, clk)
	bookingService := application.NewBookingService(
		txManager, bookingRepo, flightRepo, inventoryService, idemStore, lockManager, publisher, clk,
		&application.BookingServiceConfig{
			HoldWindow:         cfg.Booking.HoldWindow,
			LockTTL:            cfg.Lock.TTL,
			LockRetry:          redisinfra.RetryPolicy{MaxAttempts: cfg.Lock.MaxRetries, Delay: cfg.Lock.RetryDelay},
			CancellationPolicy: pricing.DefaultCancellationPolicy(),
			ModificationFees:   pricing.DefaultModificationFees(),
		})

	// 期限切れ回収リーパー
	reaper := worker.NewHoldExpiryReaper(
		bookingService, inventoryService, clk, cfg.Booking.ReaperInterval, 100)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go reaper.Start(ctx)

	// 運用エンドポイント（ヘルスチェック・メトリクス）
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	e.GET("/healthz", func(c echo.Context) error {
		if err := db.PingContext(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy", "error": err.Error(),
			})
		}
		return c.JSON(http.StatusOK, map[string]string{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	go func() {
		if err := e.Start(":" + cfg.Server.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("運用サーバー起動エラー", zap.Error(err))
		}
	}()

	// シグナル待機
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("シャットダウンしています...")
	reaper.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("運用サーバーシャットダウンエラー", zap.Error(err))
	}

	logger.Info("正常にシャットダウンしました")
}
