package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisBusConfig 描述 Redis 发布通道的连接参数。
type RedisBusConfig struct {
	Address  string
	Password string
	DB       int
	Channel  string
}

// RedisBus 通过 Redis pub/sub 将运行状态事件广播给外部消费者。
type RedisBus struct {
	client  *redis.Client
	channel string
}

// NewRedisBus 创建 Redis 事件总线实例。
func NewRedisBus(cfg RedisBusConfig) (*RedisBus, error) {
	if cfg.Address == "" {
		return nil, errors.New("Redis address 不能为空")
	}
	channel := cfg.Channel
	if channel == "" {
		channel = "vestify:runs"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("连接 Redis 失败: %w", err)
	}
	return &RedisBus{client: client, channel: channel}, nil
}

// Publish 将事件序列化后发布到频道。
func (b *RedisBus) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("序列化事件失败: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("Redis 发布事件失败: %w", err)
	}
	return nil
}

// Close 关闭 Redis 连接。
func (b *RedisBus) Close() error {
	if b == nil || b.client == nil {
		return nil
	}
	return b.client.Close()
}

var _ Publisher = (*RedisBus)(nil)
