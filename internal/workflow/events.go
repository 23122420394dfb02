package workflow

import "context"

// Event 是一次运行状态变迁的对外通知，供界面层或外部消费者订阅。
type Event struct {
	RunID      string `json:"run_id"`
	Kind       Kind   `json:"kind"`
	Status     Status `json:"status"`
	Step       int    `json:"step"`
	TotalSteps int    `json:"total_steps"`
	ErrorCode  string `json:"error_code,omitempty"`
	Message    string `json:"message,omitempty"`
	OccurredAt int64  `json:"occurred_at"`
}

// Publisher 负责向外发布状态变迁事件。发布失败不会中断工作流，
// 事件通道是尽力而为的通知，不是事实来源（事实在 RunStore）。
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}
