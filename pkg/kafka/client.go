// Package kafka 负责把传输与恢复事件发布到 Kafka。
package kafka

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Event 是可发布的事件，Key 决定分区。
type Event interface {
	Key() string
}

// Publisher 发布领域事件。发布失败不影响核心状态，由调用方记录日志。
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// messageWriter 是 *kafka.Writer 的最小子集，便于测试替换。
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher 使用 kafka-go Writer 发送 JSON 编码的事件。
type KafkaPublisher struct {
	writer messageWriter
}

// NewPublisher 根据以逗号分隔的 broker 列表创建 Publisher。
// brokers 为空时返回 NopPublisher。
func NewPublisher(brokers, topic string, logger *zap.SugaredLogger) Publisher {
	addrs := splitBrokers(brokers)
	if len(addrs) == 0 {
		logger.Info("[Kafka] 未配置 broker，事件发布已禁用")
		return NopPublisher{}
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(addrs...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	logger.Infof("[Kafka] 生产者初始化成功, brokers=%v, topic=%s", addrs, topic)
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Key()),
		Value: value,
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher 丢弃所有事件。
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

func splitBrokers(brokers string) []string {
	var out []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
