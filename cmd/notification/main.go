package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/issuetracking/internal/notification/application"
	"github.com/wyfcoding/issuetracking/internal/notification/domain"
	"github.com/wyfcoding/issuetracking/internal/notification/infrastructure/persistence/mysql"
	"github.com/wyfcoding/issuetracking/internal/notification/infrastructure/realtime"
	"github.com/wyfcoding/issuetracking/internal/notification/infrastructure/registry"
	"github.com/wyfcoding/issuetracking/internal/notification/infrastructure/sender"
	httphandler "github.com/wyfcoding/issuetracking/internal/notification/interfaces/http"
	"github.com/wyfcoding/issuetracking/pkg/cache"
	"github.com/wyfcoding/issuetracking/pkg/config"
	"github.com/wyfcoding/issuetracking/pkg/db"
	"github.com/wyfcoding/issuetracking/pkg/jobqueue"
	"github.com/wyfcoding/issuetracking/pkg/logger"
	"github.com/wyfcoding/issuetracking/pkg/metrics"
	"github.com/wyfcoding/issuetracking/pkg/middleware"
	"github.com/wyfcoding/issuetracking/pkg/mq"
	"github.com/wyfcoding/issuetracking/pkg/ratelimit"
)

// BootstrapName 服务标识。
const BootstrapName = "notification"

const deadLetterTopic = "notification.email.dead-letter"

func main() {
	configPath := flag.String("config", "configs/notification.toml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("service bootstrap failed", "service", BootstrapName, "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx := context.Background()

	// 1. 配置与日志
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}
	if err := logger.Init(cfg.Logger); err != nil {
		return fmt.Errorf("logger init failed: %w", err)
	}
	bootLog := slog.With("module", "bootstrap")
	bootLog.Info("starting service", "service", BootstrapName, "environment", cfg.Environment)

	// 2. 指标
	m := metrics.New(BootstrapName)
	if err := m.Register(); err != nil {
		return fmt.Errorf("metrics register failed: %w", err)
	}

	// 3. 基础设施
	database, err := db.Init(cfg.Database)
	if err != nil {
		return fmt.Errorf("database init failed: %w", err)
	}
	defer database.Close()

	if err := mysql.AutoMigrate(database.DB); err != nil {
		return fmt.Errorf("database migrate failed: %w", err)
	}

	redisCache, err := cache.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("redis init failed: %w", err)
	}
	defer redisCache.Close()

	producer, err := mq.NewProducer(cfg.Kafka)
	if err != nil {
		return fmt.Errorf("kafka producer init failed: %w", err)
	}
	defer producer.Close()

	// 4. 任务队列
	queue := jobqueue.New(producer,
		func(topic string) (jobqueue.Consumer, error) {
			return mq.NewConsumer(cfg.Kafka, topic)
		},
		jobqueue.WithDeadLetter(mq.NewDeadLetterQueue(producer, deadLetterTopic)),
		jobqueue.WithObserver(func(kind string, state jobqueue.State) {
			m.RecordJob(kind, string(state))
		}),
	)

	var emailSender domain.EmailSender
	if cfg.SMTP.Host != "" {
		emailSender = sender.NewSMTPSender(cfg.SMTP)
	} else {
		bootLog.Warn("smtp not configured, using mock email sender")
		emailSender = sender.NewMockSender()
	}
	if err := application.RegisterEmailHandlers(queue, emailSender); err != nil {
		return fmt.Errorf("email handler registration failed: %w", err)
	}

	// 5. 业务组件装配
	bootLog.Info("initializing notification service...")
	store := mysql.NewNotificationRepository(database.DB)
	prefs := mysql.NewPreferenceRepository(database.DB)
	lookups := mysql.NewLookupRepository(database.DB)
	connRegistry := registry.New(redisCache.GetClient(), 5*time.Minute)
	hub := realtime.NewHub(m)

	appService := application.NewNotificationService(application.Deps{
		Store:     store,
		Prefs:     prefs,
		Queue:     queue,
		Registry:  connRegistry,
		Transport: hub,
		Projects:  lookups,
		Issues:    lookups,
		Accounts:  lookups,
		Metrics:   m,
	})
	defer appService.Close()

	// 6. 启动消费
	queueCtx, stopQueue := context.WithCancel(ctx)
	defer stopQueue()
	if err := queue.ProcessAll(queueCtx); err != nil {
		return fmt.Errorf("job queue start failed: %w", err)
	}
	defer queue.Close()

	// 7. HTTP 服务
	if cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(
		middleware.GinRecoveryMiddleware(),
		middleware.GinLoggingMiddleware(),
		middleware.GinMetricsMiddleware(m),
		middleware.GinCORSMiddleware(),
	)

	sys := engine.Group("/sys")
	{
		sys.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status":    "UP",
				"service":   BootstrapName,
				"timestamp": time.Now().Unix(),
			})
		})
		sys.GET("/ready", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "READY"})
		})
	}

	if cfg.Metrics.Enabled {
		engine.GET(cfg.Metrics.Path, gin.WrapH(m.Handler()))
	}

	if cfg.RateLimit.Enabled {
		limiter := ratelimit.NewRedisRateLimiter(redisCache.GetClient())
		engine.Use(middleware.RateLimitMiddleware(limiter, cfg.RateLimit))
	}

	handler := httphandler.NewNotificationHandler(appService, hub, connRegistry)
	handler.RegisterRoutes(engine)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      engine,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		bootLog.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 8. 优雅退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case sig := <-quit:
		bootLog.Info("shutdown signal received", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		bootLog.Error("http server shutdown failed", "error", err)
	}

	bootLog.Info("service stopped", "service", BootstrapName)
	return nil
}
