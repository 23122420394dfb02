package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQBusConfig 描述 RabbitMQ 发布通道的连接参数。
type RabbitMQBusConfig struct {
	URL        string
	Queue      string
	Durable    bool
	AutoDelete bool
}

// RabbitMQBus 将运行状态事件投递到 RabbitMQ 队列。
type RabbitMQBus struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

// NewRabbitMQBus 创建 RabbitMQ 事件总线实例。
func NewRabbitMQBus(cfg RabbitMQBusConfig) (*RabbitMQBus, error) {
	if cfg.URL == "" {
		return nil, errors.New("RabbitMQ URL 不能为空")
	}
	queue := cfg.Queue
	if queue == "" {
		queue = "vestify.runs"
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("连接 RabbitMQ 失败: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("创建 RabbitMQ channel 失败: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, cfg.Durable, cfg.AutoDelete, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("声明 RabbitMQ 队列失败: %w", err)
	}
	return &RabbitMQBus{conn: conn, ch: ch, queue: queue}, nil
}

// Publish 将事件序列化后投递到队列。
func (b *RabbitMQBus) Publish(ctx context.Context, event Event) error {
	if b == nil || b.ch == nil {
		return errors.New("RabbitMQ 总线未初始化")
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("序列化事件失败: %w", err)
	}
	return b.ch.PublishWithContext(ctx, "", b.queue, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        payload,
	})
}

// Close 关闭 RabbitMQ 连接。
func (b *RabbitMQBus) Close() error {
	if b == nil {
		return nil
	}
	if b.ch != nil {
		_ = b.ch.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}

var _ Publisher = (*RabbitMQBus)(nil)
