package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Khamel83/atlas-sub014/internal/retry"
)

// GetTask fetches a task by identifier.
func (s *Store) GetTask(ctx context.Context, id string) (*Task, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+taskColumns+` FROM tasks WHERE task_id = ?`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

// TaskForItem returns the most recent task wrapping an item.
func (s *Store) TaskForItem(ctx context.Context, itemID string) (*Task, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+taskColumns+` FROM tasks WHERE item_id = ? ORDER BY created_at DESC LIMIT 1`,
		itemID,
	)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("task for item: %w", err)
	}
	return task, nil
}

// ListTasks returns tasks filtered by status set, ordered by creation time.
func (s *Store) ListTasks(ctx context.Context, statuses ...TaskStatus) ([]*Task, error) {
	ctx = ensureContext(ctx)
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + taskColumns + ` FROM tasks`
	orderClause := ` ORDER BY created_at`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// ReadyWorkerClasses returns the distinct worker classes that currently have a
// claimable task: pending, or failed with an elapsed retry deadline.
func (s *Store) ReadyWorkerClasses(ctx context.Context) ([]string, error) {
	ctx = ensureContext(ctx)
	nowStr := formatTime(s.nowUTC())
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT DISTINCT worker_class FROM tasks
         WHERE status = ? OR (status = ? AND next_retry_at IS NOT NULL AND next_retry_at <= ?)
         ORDER BY worker_class`,
		TaskPending,
		TaskFailed,
		nowStr,
	)
	if err != nil {
		return nil, fmt.Errorf("ready worker classes: %w", err)
	}
	defer rows.Close()

	var classes []string
	for rows.Next() {
		var class string
		if err := rows.Scan(&class); err != nil {
			return nil, err
		}
		classes = append(classes, class)
	}
	return classes, rows.Err()
}

// Dequeue atomically claims the next ready task for a worker class, honoring
// the class's circuit breaker. An optional task type filter restricts what the
// caller is willing to execute. It returns nil when nothing is claimable:
// no ready task, or the breaker is open and still cooling down.
//
// Claiming is a select-then-conditional-update inside one transaction, so two
// workers racing for the same task cannot both win it.
func (s *Store) Dequeue(ctx context.Context, workerClass string, allowedTypes ...string) (*Task, error) {
	ctx = ensureContext(ctx)
	now := s.nowUTC()
	nowStr := formatTime(now)

	typeClause := ""
	typeArgs := make([]any, 0, len(allowedTypes))
	if len(allowedTypes) > 0 {
		typeClause = ` AND task_type IN (` + makePlaceholders(len(allowedTypes)) + `)`
		for _, taskType := range allowedTypes {
			typeArgs = append(typeArgs, taskType)
		}
	}

	var claimed *Task
	err := retryOnBusy(ctx, func() error {
		claimed = nil
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		allowed, err := s.breakerAllowsTx(ctx, tx, workerClass, now)
		if err != nil {
			return err
		}
		if !allowed {
			return tx.Commit()
		}

		args := append([]any{
			workerClass,
			TaskPending,
			TaskFailed,
			nowStr,
		}, typeArgs...)
		row := tx.QueryRowContext(
			ctx,
			`SELECT `+taskColumns+` FROM tasks
             WHERE worker_class = ?
               AND (status = ? OR (status = ? AND next_retry_at IS NOT NULL AND next_retry_at <= ?))`+typeClause+`
             ORDER BY priority DESC, created_at
             LIMIT 1`,
			args...,
		)
		task, err := scanTask(row)
		if errors.Is(err, sql.ErrNoRows) {
			return tx.Commit()
		}
		if err != nil {
			return fmt.Errorf("select ready task: %w", err)
		}

		res, err := tx.ExecContext(
			ctx,
			`UPDATE tasks SET status = ?, last_heartbeat = ?, updated_at = ?
             WHERE task_id = ? AND status IN (?, ?)`,
			TaskProcessing,
			nowStr,
			nowStr,
			task.ID,
			TaskPending,
			TaskFailed,
		)
		if err != nil {
			return fmt.Errorf("claim task: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			// Lost the race to another worker.
			return tx.Commit()
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit claim: %w", err)
		}

		task.Status = TaskProcessing
		task.LastHeartbeat = &now
		task.UpdatedAt = now
		claimed = task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// Complete marks a processing task finished and closes the worker class's
// breaker. A task reaching a terminal item outcome (accepted, duplicate,
// rejected) completes; only errors fail it.
func (s *Store) Complete(ctx context.Context, taskID string) error {
	ctx = ensureContext(ctx)
	nowStr := formatTime(s.nowUTC())

	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		var workerClass string
		err = tx.QueryRowContext(ctx, `SELECT worker_class FROM tasks WHERE task_id = ?`, taskID).Scan(&workerClass)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("task %s not found", taskID)
		}
		if err != nil {
			return fmt.Errorf("load task: %w", err)
		}

		if _, err := tx.ExecContext(
			ctx,
			`UPDATE tasks SET status = ?, error_category = NULL, error_message = NULL,
                next_retry_at = NULL, updated_at = ?
             WHERE task_id = ?`,
			TaskCompleted,
			nowStr,
			taskID,
		); err != nil {
			return fmt.Errorf("complete task: %w", err)
		}

		if err := s.breakerRecordSuccessTx(ctx, tx, workerClass); err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit complete: %w", err)
		}
		return nil
	})
}

// Fail records a task failure. The error is classified into a retry category;
// the task either reschedules with a backoff deadline or dead-letters when the
// category is permanent or the retry budget is spent. The worker class's
// breaker accumulates the failure in the same transaction.
func (s *Store) Fail(ctx context.Context, taskID string, failure error) (*Task, error) {
	ctx = ensureContext(ctx)
	if failure == nil {
		return nil, errors.New("failure is nil")
	}

	now := s.nowUTC()
	nowStr := formatTime(now)
	category := retry.Classify(failure)
	message := failure.Error()

	var updated *Task
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		row := tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE task_id = ?`, taskID)
		task, err := scanTask(row)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("task %s not found", taskID)
		}
		if err != nil {
			return fmt.Errorf("load task: %w", err)
		}

		task.RetryCount++
		task.ErrorCategory = string(category)
		task.ErrorMessage = message

		exhausted := category == retry.CategoryPermanent || task.RetryCount > s.policies.MaxRetries(category)
		if exhausted {
			task.Status = TaskDeadLetter
			task.NextRetryAt = nil
			if _, err := tx.ExecContext(
				ctx,
				`UPDATE tasks SET status = ?, retry_count = ?, error_category = ?,
                    error_message = ?, next_retry_at = NULL, updated_at = ?
                 WHERE task_id = ?`,
				TaskDeadLetter,
				task.RetryCount,
				task.ErrorCategory,
				task.ErrorMessage,
				nowStr,
				taskID,
			); err != nil {
				return fmt.Errorf("dead-letter task: %w", err)
			}
			if _, err := tx.ExecContext(
				ctx,
				`UPDATE content_items SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
				ItemDeadLetter,
				message,
				nowStr,
				task.ItemID,
			); err != nil {
				return fmt.Errorf("dead-letter item: %w", err)
			}
		} else {
			next := now.Add(s.policies.Delay(category, task.RetryCount))
			task.Status = TaskFailed
			task.NextRetryAt = &next
			if _, err := tx.ExecContext(
				ctx,
				`UPDATE tasks SET status = ?, retry_count = ?, error_category = ?,
                    error_message = ?, next_retry_at = ?, updated_at = ?
                 WHERE task_id = ?`,
				TaskFailed,
				task.RetryCount,
				task.ErrorCategory,
				task.ErrorMessage,
				formatTime(next),
				nowStr,
				taskID,
			); err != nil {
				return fmt.Errorf("fail task: %w", err)
			}
		}

		if err := s.breakerRecordFailureTx(ctx, tx, task.WorkerClass, now); err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit fail: %w", err)
		}
		task.UpdatedAt = now
		updated = task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// RetryTask manually re-drives a failed or dead-lettered task: the task
// returns to pending with its retry deadline cleared and the item returns to
// discovered. The retry count is preserved for the audit trail.
func (s *Store) RetryTask(ctx context.Context, taskID string) error {
	ctx = ensureContext(ctx)
	nowStr := formatTime(s.nowUTC())

	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		row := tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE task_id = ?`, taskID)
		task, err := scanTask(row)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("task %s not found", taskID)
		}
		if err != nil {
			return fmt.Errorf("load task: %w", err)
		}
		if task.Status != TaskFailed && task.Status != TaskDeadLetter {
			return fmt.Errorf("task %s is %s, only failed or dead_letter tasks can be retried", taskID, task.Status)
		}

		if _, err := tx.ExecContext(
			ctx,
			`UPDATE tasks SET status = ?, next_retry_at = NULL, updated_at = ? WHERE task_id = ?`,
			TaskPending,
			nowStr,
			taskID,
		); err != nil {
			return fmt.Errorf("reset task: %w", err)
		}
		if _, err := tx.ExecContext(
			ctx,
			`UPDATE content_items SET status = ?, error_message = NULL, updated_at = ? WHERE id = ?`,
			ItemDiscovered,
			nowStr,
			task.ItemID,
		); err != nil {
			return fmt.Errorf("reset item: %w", err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit retry: %w", err)
		}
		return nil
	})
}

// UpdateHeartbeat refreshes a processing task's liveness marker.
func (s *Store) UpdateHeartbeat(ctx context.Context, taskID string) error {
	nowStr := formatTime(s.nowUTC())
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE tasks SET last_heartbeat = ?, updated_at = ? WHERE task_id = ? AND status = ?`,
		nowStr,
		nowStr,
		taskID,
		TaskProcessing,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}
