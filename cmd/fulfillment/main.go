// FulfillmentService 主程序
// 功能：订阅领域事件驱动订单履约 Saga：预占库存、确认订单、发起支付，
// 失败时按相反顺序补偿
// 架构：基于 DDD + 事件溯源 + Kafka 消费组 + Redis 幂等去重
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/ecommerce/internal/fulfillment/application"
	"github.com/wyfcoding/ecommerce/internal/fulfillment/infrastructure/gateway"
	fulfillmentmysql "github.com/wyfcoding/ecommerce/internal/fulfillment/infrastructure/persistence/mysql"
	"github.com/wyfcoding/ecommerce/internal/fulfillment/interfaces/consumer"
	fulfillmenthttp "github.com/wyfcoding/ecommerce/internal/fulfillment/interfaces/http"
	inventoryapp "github.com/wyfcoding/ecommerce/internal/inventory/application"
	inventorymysql "github.com/wyfcoding/ecommerce/internal/inventory/infrastructure/persistence/mysql"
	orderapp "github.com/wyfcoding/ecommerce/internal/order/application"
	ordermysql "github.com/wyfcoding/ecommerce/internal/order/infrastructure/persistence/mysql"
	paymentapp "github.com/wyfcoding/ecommerce/internal/payment/application"
	paymentmysql "github.com/wyfcoding/ecommerce/internal/payment/infrastructure/persistence/mysql"
	"github.com/wyfcoding/ecommerce/pkg/cache"
	"github.com/wyfcoding/ecommerce/pkg/config"
	"github.com/wyfcoding/ecommerce/pkg/db"
	"github.com/wyfcoding/ecommerce/pkg/idgen"
	"github.com/wyfcoding/ecommerce/pkg/logger"
	"github.com/wyfcoding/ecommerce/pkg/metrics"
	"github.com/wyfcoding/ecommerce/pkg/mq"
	"github.com/wyfcoding/ecommerce/pkg/trace"
)

func main() {
	// 1. 加载配置
	configPath := "configs/fulfillment/config.toml"
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	loggerCfg := logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		Output:     cfg.Logger.Output,
		FilePath:   cfg.Logger.FilePath,
		MaxSize:    cfg.Logger.MaxSize,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAge:     cfg.Logger.MaxAge,
		Compress:   cfg.Logger.Compress,
		WithCaller: cfg.Logger.WithCaller,
	}
	if err := logger.Init(loggerCfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info(ctx, "Starting FulfillmentService",
		"service", cfg.ServiceName,
		"version", cfg.Version,
		"environment", cfg.Environment,
	)

	// 3. 初始化追踪
	shutdownTracer, err := trace.Init(ctx, cfg.ServiceName, cfg.Version, cfg.Tracing)
	if err != nil {
		logger.Error(ctx, "Failed to initialize tracer", "error", err)
	} else {
		defer func() {
			if err := shutdownTracer(context.Background()); err != nil {
				logger.Error(ctx, "Failed to shutdown tracer", "error", err)
			}
		}()
	}

	// 4. 初始化数据库
	database, err := db.Init(db.Config{
		Driver:             cfg.Database.Driver,
		DSN:                cfg.Database.DSN,
		MaxOpenConns:       cfg.Database.MaxOpenConns,
		MaxIdleConns:       cfg.Database.MaxIdleConns,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
		LogEnabled:         cfg.Database.LogEnabled,
		SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
	})
	if err != nil {
		logger.Fatal(ctx, "Failed to initialize database", "error", err)
	}
	defer database.Close()

	// 5. 初始化 Redis
	redisCache, err := cache.New(cache.Config{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		MaxPoolSize:  cfg.Redis.MaxPoolSize,
		ConnTimeout:  cfg.Redis.ConnTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		logger.Fatal(ctx, "Failed to initialize Redis", "error", err)
	}
	defer redisCache.Close()

	// 6. 初始化指标
	metricsInstance := metrics.New(cfg.ServiceName)
	if err := metricsInstance.Register(); err != nil {
		logger.Fatal(ctx, "Failed to register metrics", "error", err)
	}
	if cfg.Metrics.Enabled {
		if err := metrics.StartHTTPServer(cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
			logger.Fatal(ctx, "Failed to start metrics HTTP server", "error", err)
		}
	}

	// 7. 装配三个上下文的仓储与应用服务
	generator := idgen.New()
	retryLimit := cfg.Fulfillment.ConflictRetryLimit
	reservationTTL := time.Duration(cfg.Fulfillment.ReservationTTLMinutes) * time.Minute

	inventoryRepo := inventorymysql.NewRepository(database.DB)
	inventoryCmd := inventoryapp.NewInventoryCommandService(inventoryRepo, generator, metricsInstance, retryLimit, reservationTTL)

	orderRepo := ordermysql.NewRepository(database.DB)
	orderCmd := orderapp.NewOrderCommandService(orderRepo, generator, metricsInstance, retryLimit)
	orderQuery := orderapp.NewOrderQueryService(orderRepo)

	paymentRepo := paymentmysql.NewRepository(database.DB)
	paymentCmd := paymentapp.NewPaymentCommandService(paymentRepo, generator, metricsInstance, retryLimit)

	// 8. 装配 Saga 协调器
	sagaStore := fulfillmentmysql.NewSagaStore(database.DB)
	if err := sagaStore.Migrate(); err != nil {
		logger.Fatal(ctx, "Failed to migrate saga schema", "error", err)
	}
	coordinator := application.NewCoordinator(
		sagaStore,
		gateway.NewInventoryGateway(inventoryCmd, inventoryRepo),
		gateway.NewOrderGateway(orderCmd, orderQuery),
		gateway.NewPaymentGateway(paymentCmd),
		metricsInstance,
	)
	eventConsumer := consumer.NewEventConsumer(coordinator, redisCache)

	// 9. 启动事件消费
	kafkaConsumer, err := mq.NewConsumer(mq.KafkaConfig{
		Brokers:        cfg.Kafka.Brokers,
		GroupID:        cfg.Kafka.GroupID,
		SessionTimeout: cfg.Kafka.SessionTimeout,
	}, cfg.Kafka.EventTopic)
	if err != nil {
		logger.Fatal(ctx, "Failed to create Kafka consumer", "error", err)
	}
	defer kafkaConsumer.Close()

	consumerDone := make(chan error, 1)
	go func() {
		consumerDone <- kafkaConsumer.Run(ctx, eventConsumer.Handle)
	}()

	// 10. HTTP 端口：健康检查 + Saga 状态查询
	httpServer := createHTTPServer(cfg, fulfillmenthttp.NewSagaHandler(sagaStore))
	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
		logger.Info(ctx, "Starting HTTP server", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "HTTP server error", "error", err)
		}
	}()

	// 11. 优雅关停
	select {
	case <-ctx.Done():
	case err := <-consumerDone:
		if err != nil {
			logger.Error(ctx, "Event consumer exited with error", "error", err)
		}
	}
	logger.Info(ctx, "Shutting down FulfillmentService")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "HTTP server shutdown error", "error", err)
	}

	logger.Info(ctx, "FulfillmentService stopped")
}

// createHTTPServer 创建携带健康检查与 Saga 查询的 HTTP 服务器
func createHTTPServer(cfg *config.Config, handler *fulfillmenthttp.SagaHandler) *http.Server {
	router := gin.New()
	handler.RegisterRoutes(&router.RouterGroup)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"service":   cfg.ServiceName,
			"timestamp": time.Now().Unix(),
		})
	})
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}
}
