package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Khamel83/atlas-sub014/internal/logging"
	"github.com/Khamel83/atlas-sub014/internal/queue"
	"github.com/Khamel83/atlas-sub014/internal/services"
)

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.done = make(chan struct{})
	done := m.done
	m.mu.Unlock()

	// Return anything a crashed worker left claimed before the pool starts.
	if reclaimed, err := m.store.ReclaimStaleProcessing(runCtx, m.heartbeatTimeout); err != nil {
		m.logger.Warn("startup reclaim failed", logging.Error(err))
	} else if reclaimed > 0 {
		m.logger.Info("reclaimed stale tasks", logging.Int64("count", reclaimed))
	}

	group, groupCtx := errgroup.WithContext(runCtx)
	for i := 0; i < m.workerCount; i++ {
		workerID := i
		group.Go(func() error {
			m.runWorker(groupCtx, workerID)
			return nil
		})
	}
	group.Go(func() error {
		m.runReclaimer(groupCtx)
		return nil
	})

	go func() {
		_ = group.Wait()
		close(done)
	}()

	m.logger.Info("worker pool started", logging.Int("workers", m.workerCount))
	return nil
}

// Stop terminates background processing and waits for workers to drain.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	done := m.done
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	<-done
	m.logger.Info("worker pool stopped")
}

func (m *Manager) runWorker(ctx context.Context, workerID int) {
	logger := m.logger.With(logging.Int("worker", workerID))
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		task, err := m.nextTask(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			m.setLastError(err)
			logger.Error("dequeue failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "dequeue_failed"),
				logging.String(logging.FieldErrorHint, "check queue database access"),
			)
			m.sleep(ctx, m.errorRetryInterval)
			continue
		}
		if task == nil {
			m.sleep(ctx, m.pollInterval)
			continue
		}

		m.executeTask(ctx, logger, task)
	}
}

// nextTask scans worker classes with ready work and claims the first task an
// open breaker doesn't block.
func (m *Manager) nextTask(ctx context.Context) (*queue.Task, error) {
	classes, err := m.store.ReadyWorkerClasses(ctx)
	if err != nil {
		return nil, err
	}
	for _, class := range classes {
		task, err := m.store.Dequeue(ctx, class, queue.TaskTypeIngest)
		if err != nil {
			return nil, err
		}
		if task != nil {
			return task, nil
		}
	}
	return nil, nil
}

func (m *Manager) executeTask(ctx context.Context, logger *slog.Logger, task *queue.Task) {
	taskCtx := ctx
	var cancel context.CancelFunc
	if m.taskTimeout > 0 {
		taskCtx, cancel = context.WithTimeout(ctx, m.taskTimeout)
		defer cancel()
	}

	stopHeartbeat := m.startHeartbeat(taskCtx, task.ID)
	defer stopHeartbeat()

	logger.Info("task started", logging.Args(
		logging.String(logging.FieldTaskID, task.ID),
		logging.String(logging.FieldItemID, task.ItemID),
		logging.String(logging.FieldWorkerClass, task.WorkerClass),
	)...)

	started := time.Now()
	err := m.processor.Process(taskCtx, task)
	if err == nil {
		if completeErr := m.store.Complete(ctx, task.ID); completeErr != nil {
			m.setLastError(completeErr)
			logger.Error("complete failed", logging.Args(
				logging.String(logging.FieldTaskID, task.ID),
				logging.Error(completeErr),
			)...)
			return
		}
		logger.Info("task completed", logging.Args(
			logging.String(logging.FieldTaskID, task.ID),
			logging.Duration("duration", time.Since(started)),
		)...)
		return
	}

	if errors.Is(ctx.Err(), context.Canceled) {
		// Shutdown, not a task failure; the claim is reclaimed on restart.
		return
	}
	if errors.Is(taskCtx.Err(), context.DeadlineExceeded) {
		err = services.Wrap(services.ErrTimeout, "workflow", "task",
			fmt.Sprintf("task timed out after %s", m.taskTimeout), err)
	}

	failed, failErr := m.store.Fail(ctx, task.ID, err)
	if failErr != nil {
		m.setLastError(failErr)
		logger.Error("fail reporting failed", logging.Args(
			logging.String(logging.FieldTaskID, task.ID),
			logging.Error(failErr),
		)...)
		return
	}
	attrs := logging.Args(
		logging.String(logging.FieldTaskID, task.ID),
		logging.String(logging.FieldItemID, task.ItemID),
		logging.String("category", failed.ErrorCategory),
		logging.Int("retry_count", failed.RetryCount),
		logging.Error(err),
	)
	if failed.Status == queue.TaskDeadLetter {
		logger.Error("task dead-lettered", attrs...)
	} else {
		logger.Warn("task failed, retry scheduled", attrs...)
	}
}

// startHeartbeat refreshes the task's liveness marker until the returned stop
// function runs.
func (m *Manager) startHeartbeat(ctx context.Context, taskID string) func() {
	if m.heartbeatTimeout <= 0 {
		return func() {}
	}
	interval := m.heartbeatTimeout / 3
	if interval < time.Second {
		interval = time.Second
	}
	stopped := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stopped:
				return
			case <-ticker.C:
				if err := m.store.UpdateHeartbeat(ctx, taskID); err != nil {
					m.logger.Warn("heartbeat update failed", logging.Args(
						logging.String(logging.FieldTaskID, taskID),
						logging.Error(err),
					)...)
				}
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(stopped) }) }
}

func (m *Manager) runReclaimer(ctx context.Context) {
	if m.heartbeatTimeout <= 0 {
		return
	}
	ticker := time.NewTicker(m.heartbeatTimeout)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reclaimed, err := m.store.ReclaimStaleProcessing(ctx, m.heartbeatTimeout)
			if err != nil {
				m.logger.Warn("reclaim stale processing failed; stuck tasks may remain",
					logging.Error(err),
					logging.String(logging.FieldEventType, "reclaim_failed"),
					logging.String(logging.FieldErrorHint, "check queue database access"),
				)
				continue
			}
			if reclaimed > 0 {
				m.logger.Info("reclaimed stale tasks", logging.Int64("count", reclaimed))
			}
		}
	}
}

func (m *Manager) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		d = time.Second
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
