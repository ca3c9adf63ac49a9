// Package events 作品领域事件
// 审核流程在系统之外完成，提交和删除事件通过Kafka通知审核方
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	kafka "github.com/segmentio/kafka-go"
	"github.com/weiwangfds/dsnworks/internal/logger"
	"github.com/weiwangfds/dsnworks/internal/metrics"
)

// 事件类型
const (
	TypeWorkSubmitted = "work.submitted"
	TypeWorkDeleted   = "work.deleted"
)

// Event 作品事件载荷
type Event struct {
	Type       string    `json:"type"`
	WorkID     string    `json:"work_id"`
	UserID     string    `json:"user_id"`
	Title      string    `json:"title,omitempty"`
	Module     string    `json:"module,omitempty"`
	Teacher    string    `json:"teacher,omitempty"`
	FileURL    string    `json:"file_url,omitempty"`
	StorageKey string    `json:"storage_key,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher 事件发布接口
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NoopPublisher 未配置broker时使用
type NoopPublisher struct{}

// Publish 丢弃事件
func (NoopPublisher) Publish(context.Context, Event) error { return nil }

// Close 无资源需要释放
func (NoopPublisher) Close() error { return nil }

// KafkaPublisher 基于kafka-go的发布者
// writer为异步模式，Publish只负责入队，投递结果在Completion中记录
type KafkaPublisher struct {
	writer *kafka.Writer
	topic  string
}

// NewKafkaPublisher 创建Kafka发布者，brokers为逗号分隔的地址列表
func NewKafkaPublisher(brokers, topic string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:            kafka.TCP(SplitBrokers(brokers)...),
		Topic:           topic,
		Balancer:        &kafka.LeastBytes{},
		BatchTimeout:    10 * time.Millisecond,
		MaxAttempts:     3,
		WriteBackoffMin: 50 * time.Millisecond,
		WriteBackoffMax: 200 * time.Millisecond,
		Async:           true,
		Completion:      completion(topic),
	}
	return &KafkaPublisher{writer: w, topic: topic}
}

// completion 统计异步投递结果
func completion(topic string) func([]kafka.Message, error) {
	return func(messages []kafka.Message, err error) {
		status := "ok"
		if err != nil {
			status = "error"
			logger.Warnf("deliver %d work events to %s failed: %v", len(messages), topic, err)
		}
		for _, m := range messages {
			metrics.EventsPublished.WithLabelValues(eventType(m), status).Inc()
		}
	}
}

func eventType(m kafka.Message) string {
	for _, h := range m.Headers {
		if h.Key == "type" {
			return string(h.Value)
		}
	}
	return "unknown"
}

// New 根据配置选择发布者
func New(brokers, topic string) Publisher {
	if strings.TrimSpace(brokers) == "" {
		logger.Info("kafka brokers not configured, work events disabled")
		return NoopPublisher{}
	}
	logger.Infof("publishing work events to kafka topic %s", topic)
	return NewKafkaPublisher(brokers, topic)
}

// Publish 以作品ID为key写入一条消息
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.WorkID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type)},
		},
	})
	if err != nil {
		metrics.EventsPublished.WithLabelValues(event.Type, "error").Inc()
		return fmt.Errorf("enqueue %s to %s: %w", event.Type, p.topic, err)
	}
	return nil
}

// Close 刷新并关闭writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// SplitBrokers 解析逗号分隔的broker列表
func SplitBrokers(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
