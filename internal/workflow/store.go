package workflow

import "context"

// RunStats 汇总运行记录的状态分布。
type RunStats struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	InFlight  int `json:"in_flight"`
}

// RunStore 抽象了运行记录的持久化接口。运行记录是审计痕迹：
// 编排器只对外暴露最近一次运行，历史记录仅用于查询与诊断。
type RunStore interface {
	Create(ctx context.Context, run *Run) error
	Update(ctx context.Context, run *Run) error
	Get(ctx context.Context, id string) (*Run, error)
	List(ctx context.Context, limit int) ([]*Run, error)
	Stats(ctx context.Context) (RunStats, error)
	Close() error
}
