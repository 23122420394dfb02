package workflow

import (
	"context"
	"sort"
	"sync"
	"time"

	xerrors "Vestify-Chain/internal/errors"
)

// MemoryRunStore 以内存方式保存运行记录，用于开发与测试。
type MemoryRunStore struct {
	mu   sync.RWMutex
	runs map[string]*Run
}

// NewMemoryRunStore 创建 MemoryRunStore。
func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{runs: make(map[string]*Run)}
}

// Create 实现 RunStore 接口。
func (m *MemoryRunStore) Create(_ context.Context, run *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run == nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "run 不能为空")
	}
	if run.ID == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "运行 ID 不能为空")
	}
	if _, ok := m.runs[run.ID]; ok {
		return ErrRunConflict
	}
	now := time.Now().Unix()
	if run.CreatedAt == 0 {
		run.CreatedAt = now
	}
	run.UpdatedAt = now
	m.runs[run.ID] = cloneRun(run)
	return nil
}

// Update 覆盖已有的运行记录。
func (m *MemoryRunStore) Update(_ context.Context, run *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run == nil || run.ID == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "运行 ID 不能为空")
	}
	if _, ok := m.runs[run.ID]; !ok {
		return ErrRunNotFound
	}
	run.UpdatedAt = time.Now().Unix()
	m.runs[run.ID] = cloneRun(run)
	return nil
}

// Get 返回运行记录。
func (m *MemoryRunStore) Get(_ context.Context, id string) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return cloneRun(run), nil
}

// List 返回最近的运行记录，按更新时间倒序。
func (m *MemoryRunStore) List(_ context.Context, limit int) ([]*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 {
		limit = 20
	}

	results := make([]*Run, 0, len(m.runs))
	for _, run := range m.runs {
		results = append(results, cloneRun(run))
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].UpdatedAt == results[j].UpdatedAt {
			if results[i].CreatedAt == results[j].CreatedAt {
				return results[i].ID < results[j].ID
			}
			return results[i].CreatedAt > results[j].CreatedAt
		}
		return results[i].UpdatedAt > results[j].UpdatedAt
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Stats 统计运行记录的状态分布。
func (m *MemoryRunStore) Stats(_ context.Context) (RunStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := RunStats{Total: len(m.runs)}
	for _, run := range m.runs {
		switch run.Status {
		case StatusSucceeded:
			stats.Succeeded++
		case StatusFailed:
			stats.Failed++
		default:
			stats.InFlight++
		}
	}
	return stats, nil
}

// Close 对内存存储无需操作。
func (m *MemoryRunStore) Close() error {
	return nil
}

var _ RunStore = (*MemoryRunStore)(nil)
