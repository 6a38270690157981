// Package metrics 提供 Prometheus 指标集合与暴露服务
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wyfcoding/investledger/pkg/logger"
)

// Metrics 指标集合
type Metrics struct {
	registry *prometheus.Registry

	// HTTP 请求计数
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTP 请求耗时
	HTTPRequestDuration *prometheus.HistogramVec

	// 账本操作计数（按操作、结果）
	LedgerOpsTotal *prometheus.CounterVec
	// 账本操作耗时
	LedgerOpDuration *prometheus.HistogramVec

	// Outbox 待投递消息数
	OutboxBacklog prometheus.Gauge
	// Outbox 投递计数（按 topic、结果）
	OutboxPublishedTotal *prometheus.CounterVec
}

// New 创建并注册指标，每个实例使用独立注册表
func New(serviceName string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "investledger",
			Subsystem: serviceName,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "investledger",
			Subsystem: serviceName,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		LedgerOpsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "investledger",
			Subsystem: serviceName,
			Name:      "ledger_operations_total",
			Help:      "Ledger operations by operation and result",
		}, []string{"operation", "result"}),
		LedgerOpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "investledger",
			Subsystem: serviceName,
			Name:      "ledger_operation_duration_seconds",
			Help:      "Ledger operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		OutboxBacklog: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "investledger",
			Subsystem: serviceName,
			Name:      "outbox_backlog",
			Help:      "Unpublished outbox messages seen by the last relay poll",
		}),
		OutboxPublishedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "investledger",
			Subsystem: serviceName,
			Name:      "outbox_published_total",
			Help:      "Outbox messages published by topic and result",
		}, []string{"topic", "result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.LedgerOpsTotal,
		m.LedgerOpDuration,
		m.OutboxBacklog,
		m.OutboxPublishedTotal,
	)
	return m
}

// Registry 返回注册表
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveLedgerOp 记录一次账本操作
func (m *Metrics) ObserveLedgerOp(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.LedgerOpsTotal.WithLabelValues(operation, result).Inc()
	m.LedgerOpDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// Handler 返回 Prometheus 抓取端点
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Serve 启动指标 HTTP 服务，ctx 取消后优雅退出
func (m *Metrics) Serve(ctx context.Context, port int, path string) error {
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info(ctx, "Starting Prometheus HTTP server", "addr", server.Addr, "path", path)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
