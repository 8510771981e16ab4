package workflow_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Khamel83/atlas-sub014/internal/queue"
	"github.com/Khamel83/atlas-sub014/internal/services"
	"github.com/Khamel83/atlas-sub014/internal/testsupport"
	"github.com/Khamel83/atlas-sub014/internal/workflow"
)

// stubProcessor records calls and returns a fixed outcome.
type stubProcessor struct {
	err   error
	calls atomic.Int64
}

func (p *stubProcessor) Process(_ context.Context, _ *queue.Task) error {
	p.calls.Add(1)
	return p.err
}

// waitForTaskStatus polls the store until the task reaches the wanted status.
func waitForTaskStatus(t *testing.T, store *queue.Store, taskID string, want queue.TaskStatus) *queue.Task {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		task, err := store.GetTask(context.Background(), taskID)
		if err != nil {
			t.Fatalf("get task: %v", err)
		}
		if task != nil && task.Status == want {
			return task
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("task %s never reached status %s", taskID, want)
	return nil
}

func TestManagerProcessesPendingTask(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	_, task := testsupport.NewItem(t, store, "https://example.com/a", "example.com")

	processor := &stubProcessor{}
	manager := workflow.NewManager(cfg, store, processor, nil)
	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer manager.Stop()

	completed := waitForTaskStatus(t, store, task.ID, queue.TaskCompleted)
	if completed.Status != queue.TaskCompleted {
		t.Fatalf("status = %s, want completed", completed.Status)
	}
	if processor.calls.Load() == 0 {
		t.Fatal("processor was never invoked")
	}
}

func TestManagerRecordsFailureWithCategory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	_, task := testsupport.NewItem(t, store, "https://example.com/a", "example.com")

	processor := &stubProcessor{
		err: services.Wrap(services.ErrNetwork, "fetch", "direct", "connection refused", nil),
	}
	manager := workflow.NewManager(cfg, store, processor, nil)
	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer manager.Stop()

	failed := waitForTaskStatus(t, store, task.ID, queue.TaskFailed)
	if failed.ErrorCategory != "network" {
		t.Errorf("category = %s, want network", failed.ErrorCategory)
	}
	if failed.RetryCount != 1 {
		t.Errorf("retry count = %d, want 1", failed.RetryCount)
	}
	if failed.NextRetryAt == nil {
		t.Error("failed task has no retry deadline")
	}
}

func TestManagerDeadLettersPermanentFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item, task := testsupport.NewItem(t, store, "https://example.com/a", "example.com")

	processor := &stubProcessor{
		err: services.Wrap(services.ErrPermanent, "fetch", "direct", "410 gone", nil),
	}
	manager := workflow.NewManager(cfg, store, processor, nil)
	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer manager.Stop()

	waitForTaskStatus(t, store, task.ID, queue.TaskDeadLetter)

	loaded, err := store.GetItem(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if loaded.Status != queue.ItemDeadLetter {
		t.Errorf("item status = %s, want dead_letter", loaded.Status)
	}
}

func TestManagerStartStopLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	manager := workflow.NewManager(cfg, store, &stubProcessor{}, nil)
	if manager.Running() {
		t.Fatal("manager reports running before start")
	}
	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !manager.Running() {
		t.Fatal("manager not running after start")
	}
	if err := manager.Start(context.Background()); err == nil {
		t.Fatal("second start succeeded")
	}

	manager.Stop()
	if manager.Running() {
		t.Fatal("manager still running after stop")
	}
	// Stopping again is a no-op.
	manager.Stop()
}
