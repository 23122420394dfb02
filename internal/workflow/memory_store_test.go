package workflow

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryRunStoreCreateAndGet(t *testing.T) {
	store := NewMemoryRunStore()
	ctx := context.Background()

	run := &Run{ID: "run-1", Kind: KindMint, Status: StatusAwaitingSignature, TotalSteps: 1}
	if err := store.Create(ctx, run); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(ctx, &Run{ID: "run-1"}); !errors.Is(err, ErrRunConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	got, err := store.Get(ctx, "run-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Kind != KindMint {
		t.Fatalf("unexpected run: %+v", got)
	}

	// 返回的是副本，修改它不得影响存储内的记录。
	got.Status = StatusFailed
	again, _ := store.Get(ctx, "run-1")
	if again.Status == StatusFailed {
		t.Fatalf("store must hand out copies")
	}
}

func TestMemoryRunStoreUpdateMissing(t *testing.T) {
	store := NewMemoryRunStore()
	err := store.Update(context.Background(), &Run{ID: "absent"})
	if !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryRunStoreListAndStats(t *testing.T) {
	store := NewMemoryRunStore()
	ctx := context.Background()

	for _, run := range []*Run{
		{ID: "a", Kind: KindMint, Status: StatusSucceeded, CreatedAt: 100},
		{ID: "b", Kind: KindVestingSchedule, Status: StatusFailed, CreatedAt: 200},
		{ID: "c", Kind: KindWhitelist, Status: StatusAwaitingConfirmation, CreatedAt: 300},
	} {
		if err := store.Create(ctx, run); err != nil {
			t.Fatalf("create %s: %v", run.ID, err)
		}
	}

	runs, err := store.List(ctx, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 3 || stats.Succeeded != 1 || stats.Failed != 1 || stats.InFlight != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
