// Package metrics 提供 Prometheus helper，包含 HTTP 与领域核心指标模板
package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wyfcoding/ecommerce/pkg/logger"
)

// Metrics 指标集合
type Metrics struct {
	// HTTP 请求计数
	HTTPRequestsTotal prometheus.Counter
	// HTTP 请求耗时
	HTTPRequestDuration prometheus.Histogram

	// 数据库查询计数
	DBQueriesTotal prometheus.Counter
	// 数据库查询耗时
	DBQueryDuration prometheus.Histogram

	// 命令处理计数，按命令名与结果分类
	CommandsTotal *prometheus.CounterVec
	// 事件追加时的版本冲突计数
	VersionConflictsTotal prometheus.Counter
	// 事件追加计数
	EventsAppendedTotal prometheus.Counter

	// Saga 步骤计数，按步骤与结果分类
	SagaStepsTotal *prometheus.CounterVec
	// 进行中的 Saga 数量
	SagasActive prometheus.Gauge

	// 活跃预留数量
	ReservationsActive prometheus.Gauge
	// 过期回收的预留计数
	ReservationsExpiredTotal prometheus.Counter

	// Outbox 中待投递的消息数量
	OutboxPending prometheus.Gauge
	// Outbox 已投递的消息计数
	OutboxPublishedTotal prometheus.Counter
}

// New 创建指标实例
func New(serviceName string) *Metrics {
	return &Metrics{
		HTTPRequestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ecommerce",
			Subsystem: serviceName,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}),
		HTTPRequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ecommerce",
			Subsystem: serviceName,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		DBQueriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ecommerce",
			Subsystem: serviceName,
			Name:      "db_queries_total",
			Help:      "Total database queries",
		}),
		DBQueryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ecommerce",
			Subsystem: serviceName,
			Name:      "db_query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ecommerce",
			Subsystem: serviceName,
			Name:      "commands_total",
			Help:      "Total domain commands processed",
		}, []string{"command", "result"}),
		VersionConflictsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ecommerce",
			Subsystem: serviceName,
			Name:      "version_conflicts_total",
			Help:      "Total optimistic concurrency conflicts on event append",
		}),
		EventsAppendedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ecommerce",
			Subsystem: serviceName,
			Name:      "events_appended_total",
			Help:      "Total domain events appended to event streams",
		}),

		SagaStepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ecommerce",
			Subsystem: serviceName,
			Name:      "saga_steps_total",
			Help:      "Total saga steps executed",
		}, []string{"step", "result"}),
		SagasActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ecommerce",
			Subsystem: serviceName,
			Name:      "sagas_active",
			Help:      "Number of in-flight fulfillment sagas",
		}),

		ReservationsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ecommerce",
			Subsystem: serviceName,
			Name:      "reservations_active",
			Help:      "Number of active stock reservations",
		}),
		ReservationsExpiredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ecommerce",
			Subsystem: serviceName,
			Name:      "reservations_expired_total",
			Help:      "Total reservations reclaimed by the expiry sweeper",
		}),

		OutboxPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ecommerce",
			Subsystem: serviceName,
			Name:      "outbox_pending",
			Help:      "Number of outbox messages waiting for delivery",
		}),
		OutboxPublishedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ecommerce",
			Subsystem: serviceName,
			Name:      "outbox_published_total",
			Help:      "Total outbox messages published to the broker",
		}),
	}
}

// Register 注册所有指标
func (m *Metrics) Register() error {
	collectors := []prometheus.Collector{
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.DBQueriesTotal,
		m.DBQueryDuration,
		m.CommandsTotal,
		m.VersionConflictsTotal,
		m.EventsAppendedTotal,
		m.SagaStepsTotal,
		m.SagasActive,
		m.ReservationsActive,
		m.ReservationsExpiredTotal,
		m.OutboxPending,
		m.OutboxPublishedTotal,
	}

	for _, c := range collectors {
		if err := prometheus.DefaultRegisterer.Register(c); err != nil {
			logger.Error(context.Background(), "Failed to register metric", "error", err)
			return err
		}
	}

	logger.Info(context.Background(), "Metrics registered successfully")
	return nil
}

// RecordCommand 记录一次命令处理结果
func (m *Metrics) RecordCommand(command, result string) {
	m.CommandsTotal.WithLabelValues(command, result).Inc()
}

// RecordSagaStep 记录一次 Saga 步骤执行结果
func (m *Metrics) RecordSagaStep(step, result string) {
	m.SagaStepsTotal.WithLabelValues(step, result).Inc()
}

// StartHTTPServer 启动 Prometheus HTTP 服务器
func StartHTTPServer(port int, path string) error {
	if path == "" {
		path = "/metrics"
	}

	http.Handle(path, promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	logger.Info(context.Background(), "Starting Prometheus HTTP server", "addr", addr, "path", path)

	go func() {
		if err := http.ListenAndServe(addr, nil); err != nil {
			logger.Error(context.Background(), "Failed to start Prometheus HTTP server", "error", err)
		}
	}()

	return nil
}
