// Package kafka 提供了与 Kafka 消息队列交互的功能。
// webhook 更新以会话 id 为 key 写入，同一会话落在同一分区，消费顺序与到达顺序一致。
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"chat-bridge-go/internal/config"
	"chat-bridge-go/pkg/log"
	"chat-bridge-go/pkg/tasks"
	"chat-bridge-go/pkg/telegram"

	"github.com/segmentio/kafka-go"
)

// UpdateHandler 处理一条已解码的 webhook 更新，BridgeService 实现了该接口。
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update telegram.Update) error
}

// Producer 把 webhook 更新写入 Kafka。
type Producer struct {
	writer *kafka.Writer
}

// NewProducer 初始化 Kafka 生产者。
func NewProducer(cfg config.KafkaConfig) *Producer {
	w := &kafka.Writer{
		Addr:     kafka.TCP(brokerList(cfg.Brokers)...),
		Topic:    cfg.Topic,
		Balancer: &kafka.Hash{},
	}
	log.Info("Kafka 生产者初始化成功")
	return &Producer{writer: w}
}

// PublishUpdate 发送一个更新任务到 Kafka。
func (p *Producer) PublishUpdate(ctx context.Context, task tasks.UpdateTask) error {
	msg, err := newUpdateMessage(task)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish update %d: %w", task.UpdateID, err)
	}
	return nil
}

// Close 关闭生产者，刷新未发送的消息。
func (p *Producer) Close() error {
	return p.writer.Close()
}

func newUpdateMessage(task tasks.UpdateTask) (kafka.Message, error) {
	if task.ConversationID == "" {
		return kafka.Message{}, errors.New("update task without conversation id")
	}
	value, err := json.Marshal(task)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal update task: %w", err)
	}
	return kafka.Message{Key: []byte(task.ConversationID), Value: value}, nil
}

// StartConsumer 启动一个 Kafka 消费者来处理 webhook 更新，阻塞直到 ctx 结束。
// 每条消息处理完都会提交 offset：消息日志的写入不允许重试，失败只记录日志。
func StartConsumer(ctx context.Context, cfg config.KafkaConfig, handler UpdateHandler) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokerList(cfg.Brokers),
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.Topic)

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Error("从 Kafka 读取消息失败", err)
			}
			break
		}

		log.Debugf("收到 Kafka 消息: partition %d, offset %d", m.Partition, m.Offset)
		if err := handleMessage(ctx, handler, m.Value); err != nil {
			log.Errorw("处理更新失败，提交 offset 不再重试",
				"partition", m.Partition, "offset", m.Offset, "key", string(m.Key), "error", err)
		}

		// 提交使用独立 context，关停时也能确认已处理的消息
		if err := r.CommitMessages(context.WithoutCancel(ctx), m); err != nil {
			log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
		}
	}

	if err := r.Close(); err != nil {
		log.Errorf("关闭 Kafka 消费者失败: %v", err)
	}
	log.Info("Kafka 消费者已停止")
}

func handleMessage(ctx context.Context, handler UpdateHandler, value []byte) error {
	var task tasks.UpdateTask
	if err := json.Unmarshal(value, &task); err != nil {
		return fmt.Errorf("无法解析 Kafka 消息: %w", err)
	}
	update, err := telegram.DecodeUpdate(task.Update)
	if err != nil {
		return fmt.Errorf("无法解析 update %d: %w", task.UpdateID, err)
	}
	return handler.HandleUpdate(ctx, update)
}

func brokerList(brokers string) []string {
	var out []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
