// Package messaging outbox 投递：轮询未发送消息，发布到 Kafka 后标记完成
package messaging

import (
	"context"
	"time"

	"github.com/wyfcoding/investledger/internal/ledger/domain"
	"github.com/wyfcoding/investledger/pkg/logger"
	"github.com/wyfcoding/investledger/pkg/metrics"
)

// Publisher 消息发布端
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload []byte) error
}

// RelayConfig 投递参数
type RelayConfig struct {
	PollInterval time.Duration
	BatchSize    int
	// TopicPrefix 实际 topic 为 <prefix>.<topic>
	TopicPrefix string
}

// Relay outbox 投递器，至少一次语义，消费方按消息 ID 去重
type Relay struct {
	outbox    domain.OutboxRepository
	publisher Publisher
	cfg       RelayConfig
	metrics   *metrics.Metrics
}

// NewRelay 创建投递器
func NewRelay(outbox domain.OutboxRepository, publisher Publisher, cfg RelayConfig, m *metrics.Metrics) *Relay {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Relay{outbox: outbox, publisher: publisher, cfg: cfg, metrics: m}
}

// Run 按间隔轮询直到 ctx 取消
func (r *Relay) Run(ctx context.Context) error {
	logger.Info(ctx, "outbox relay started", "interval", r.cfg.PollInterval, "batch_size", r.cfg.BatchSize)
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(context.Background(), "outbox relay stopped")
			return nil
		case <-ticker.C:
			if _, err := r.RelayOnce(ctx); err != nil && ctx.Err() == nil {
				logger.Error(ctx, "outbox relay tick failed", "error", err)
			}
		}
	}
}

// RelayOnce 投递一批消息，返回成功条数。遇到发布失败即停止，保证同一批内的顺序
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	msgs, err := r.outbox.FetchPending(ctx, r.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	if len(msgs) == 0 {
		r.observeBacklog(ctx)
		return 0, nil
	}

	published := make([]string, 0, len(msgs))
	var pubErr error
	for _, msg := range msgs {
		topic := r.topic(msg.Topic)
		if err := r.publisher.Publish(ctx, topic, msg.Key, msg.Payload); err != nil {
			r.countPublish(topic, "error")
			logger.Warn(ctx, "outbox publish failed, will retry",
				"message_id", msg.ID,
				"topic", topic,
				"error", err,
			)
			pubErr = err
			break
		}
		r.countPublish(topic, "ok")
		published = append(published, msg.ID)
	}

	if err := r.outbox.MarkPublished(ctx, published); err != nil {
		return 0, err
	}
	r.observeBacklog(ctx)
	return len(published), pubErr
}

func (r *Relay) topic(t string) string {
	if r.cfg.TopicPrefix == "" {
		return t
	}
	return r.cfg.TopicPrefix + "." + t
}

func (r *Relay) countPublish(topic, result string) {
	if r.metrics == nil {
		return
	}
	r.metrics.OutboxPublishedTotal.WithLabelValues(topic, result).Inc()
}

func (r *Relay) observeBacklog(ctx context.Context) {
	if r.metrics == nil {
		return
	}
	n, err := r.outbox.CountPending(ctx)
	if err != nil {
		return
	}
	r.metrics.OutboxBacklog.Set(float64(n))
}

// LogPublisher Kafka 关闭时使用，只记录日志
type LogPublisher struct{}

// Publish 输出消息摘要
func (LogPublisher) Publish(ctx context.Context, topic, key string, payload []byte) error {
	logger.Info(ctx, "outbox message", "topic", topic, "key", key, "size", len(payload))
	return nil
}
