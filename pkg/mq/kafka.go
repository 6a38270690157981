// Package mq 提供 Kafka 生产者封装，带重试与熔断
package mq

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"
	"github.com/wyfcoding/investledger/pkg/logger"
)

// KafkaConfig Kafka 配置
type KafkaConfig struct {
	Brokers      []string
	MaxRetries   int
	RetryBackoff int
}

// KafkaProducer Kafka 生产者
type KafkaProducer struct {
	writer  *kafka.Writer
	breaker *gobreaker.CircuitBreaker
}

// NewProducer 创建 Kafka 生产者
func NewProducer(cfg KafkaConfig) *KafkaProducer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		AllowAutoTopicCreation: true,
		Balancer:               &kafka.Hash{},
		Compression:            kafka.Gzip,
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            cfg.MaxRetries,
		WriteBackoffMin:        time.Duration(cfg.RetryBackoff) * time.Millisecond,
		WriteBackoffMax:        time.Duration(cfg.RetryBackoff*10) * time.Millisecond,
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "kafka-producer",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn(context.Background(), "Circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	logger.Info(context.Background(), "Kafka producer created", "brokers", cfg.Brokers)
	return &KafkaProducer{
		writer:  writer,
		breaker: breaker,
	}
}

// Publish 发送单条消息，熔断打开时直接返回错误
func (kp *KafkaProducer) Publish(ctx context.Context, topic, key string, payload []byte) error {
	_, err := kp.breaker.Execute(func() (any, error) {
		return nil, kp.writer.WriteMessages(ctx, kafka.Message{
			Topic: topic,
			Key:   []byte(key),
			Value: payload,
		})
	})
	if err != nil {
		logger.Error(ctx, "Failed to send Kafka message",
			"topic", topic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("kafka publish %s: %w", topic, err)
	}

	logger.Debug(ctx, "Kafka message sent", "topic", topic, "key", key)
	return nil
}

// Close 关闭生产者
func (kp *KafkaProducer) Close() error {
	return kp.writer.Close()
}
