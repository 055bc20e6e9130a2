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

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-tour-slot-reservation/internal/api"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/api/handler"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/api/middleware"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/application"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/config"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/infrastructure/kafka"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/infrastructure/postgres"
	redisinfra "github.com/sanosuguru/go-tour-slot-reservation/internal/infrastructure/redis"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/infrastructure/voucher"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/pkg/metrics"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/worker"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.App.Env)
	defer logger.Sync()

	m := metrics.Init()

	// DB接続
	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		logger.Fatal("データベース接続エラー", zap.Error(err))
	}
	if err := postgres.RunMigrations(db.DB, cfg.App.MigrationsPath); err != nil {
		logger.Fatal("マイグレーションエラー", zap.Error(err))
	}

	// Redis はキャッシュと分散ロックにのみ使うので、なくても起動する
	var (
		redisClient   *goredis.Client
		calendarCache redisinfra.CalendarCacheInterface
		lockManager   redisinfra.LockManagerInterface
	)
	redisClient, err = redisinfra.NewClient(&redisinfra.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		logger.Warn("Redis に接続できません。キャッシュと分散ロックなしで起動します", zap.Error(err))
	} else {
		calendarCache = redisinfra.NewCalendarCache(redisClient, cfg.Booking.CalendarCacheTTL)
		lockManager = redisinfra.NewLockManager(redisClient)
	}

	// ライフサイクルイベントの送出先
	var (
		sink      worker.EventSink = worker.LogSink{}
		publisher *kafka.Publisher
	)
	if cfg.Kafka.Enabled() {
		publisher, err = kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.BookingTopic)
		if err != nil {
			logger.Fatal("Kafka パブリッシャー作成エラー", zap.Error(err))
		}
		sink = publisher
	}
	dispatcher := worker.NewEventDispatcher(sink, cfg.Booking.EventQueueSize, worker.WithDispatcherMetrics(m))

	// リポジトリ
	productRepo := postgres.NewProductRepository(db)
	slotRepo := postgres.NewSlotRepository(db)
	holdRepo := postgres.NewHoldRepository(db)
	bookingRepo := postgres.NewBookingRepository(db)
	txManager := postgres.NewTxManager(db)

	// サービス
	availabilityService := application.NewAvailabilityService(productRepo, slotRepo, calendarCache, cfg.Booking.MaxCalendarDays)
	productService := application.NewProductService(productRepo, cfg.Booking.DefaultCapacity)
	slotService := application.NewSlotService(productRepo, slotRepo, availabilityService)
	reservationService := application.NewReservationService(txManager, productRepo, slotRepo, holdRepo,
		application.WithHoldTTL(cfg.Booking.HoldTTL),
		application.WithInvalidator(availabilityService),
		application.WithMetrics(m),
	)
	bookingService := application.NewBookingService(txManager, bookingRepo, holdRepo, productRepo, reservationService,
		application.WithPublisher(dispatcher),
		application.WithVoucherRenderer(voucher.NewRenderer("Tour Slot Reservation")),
		application.WithBookingMetrics(m),
	)

	reaperOpts := []worker.ReaperOption{worker.WithReaperMetrics(m)}
	if lockManager != nil {
		reaperOpts = append(reaperOpts, worker.WithLockManager(lockManager))
	}
	reaper := worker.NewHoldReaper(bookingService, cfg.Booking.ReaperInterval, cfg.Booking.ReaperBatchSize, reaperOpts...)

	// Echo
	e := echo.New()
	e.HideBanner = true
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout
	middleware.SetupMiddleware(e, m)

	(&handler.Handlers{
		Health:       handler.NewHealthHandler(healthChecks(db, redisClient)),
		Product:      handler.NewProductHandler(productService),
		Slot:         handler.NewSlotHandler(slotService),
		Availability: handler.NewAvailabilityHandler(availabilityService),
		Hold:         handler.NewHoldHandler(reservationService),
		Booking:      handler.NewBookingHandler(bookingService),
	}).Register(e)

	metricsCfg := middleware.LoadMetricsConfig()
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()), middleware.MetricsBasicAuth(metricsCfg))

	// ワーカー起動
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	go dispatcher.Start(workerCtx)
	go reaper.Start(workerCtx)

	go func() {
		logger.Info("サーバー起動",
			zap.String("port", cfg.Server.Port),
			zap.String("env", cfg.App.Env),
			zap.Bool("redis", redisClient != nil),
			zap.Bool("kafka", publisher != nil),
			zap.Bool("metrics_auth", metricsCfg.IsEnabled()),
		)
		if err := e.Start(fmt.Sprintf(":%s", cfg.Server.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("サーバー起動エラー", zap.Error(err))
		}
	}()

	// シグナル待機
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("サーバーをシャットダウンしています...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Error("サーバーシャットダウンエラー", zap.Error(err))
	}

	// HTTP を止めてからワーカーを止める（キューに残ったイベントはここで送出される）
	reaper.Stop()
	dispatcher.Stop()

	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("Kafka パブリッシャーのクローズに失敗", zap.Error(err))
		}
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error("Redis のクローズに失敗", zap.Error(err))
		}
	}
	if err := db.Close(); err != nil {
		logger.Error("データベースのクローズに失敗", zap.Error(err))
	}

	logger.Info("サーバーが正常にシャットダウンしました")
}

func healthChecks(db *sqlx.DB, redisClient *goredis.Client) map[string]handler.HealthCheck {
	checks := map[string]handler.HealthCheck{
		"postgres": func(ctx context.Context) error { return postgres.Ping(ctx, db) },
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisinfra.Ping(ctx, redisClient) }
	}
	return checks
}
