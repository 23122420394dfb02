package workflow

import (
	"context"
	"sync"

	xerrors "Vestify-Chain/internal/errors"
)

// MemoryBus 使用带缓冲的 channel 分发事件，主要用于开发与测试。
// 缓冲写满时丢弃最旧的事件：事件通道只是通知，不承担可靠投递。
type MemoryBus struct {
	mu     sync.Mutex
	ch     chan Event
	closed bool
}

// NewMemoryBus 创建一个内存事件总线。
func NewMemoryBus(size int) *MemoryBus {
	if size <= 0 {
		size = 64
	}
	return &MemoryBus{ch: make(chan Event, size)}
}

// Publish 将事件写入缓冲。
func (b *MemoryBus) Publish(_ context.Context, event Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return xerrors.New(xerrors.CodeQueueFailure, "事件总线已关闭")
	}
	for {
		select {
		case b.ch <- event:
			return nil
		default:
		}
		select {
		case <-b.ch:
		default:
		}
	}
}

// Events 返回事件只读通道。
func (b *MemoryBus) Events() <-chan Event {
	return b.ch
}

// Close 关闭内存总线。
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	if !b.closed {
		close(b.ch)
		b.closed = true
	}
	b.mu.Unlock()
	return nil
}

var _ Publisher = (*MemoryBus)(nil)
