package queue

import (
	"context"
	"fmt"
	"time"
)

// QueueStatus aggregates task and item counts with breaker state for operator
// inspection. FailedCount covers failed tasks whether or not their retry
// deadline has elapsed; RetryReadyCount covers only the elapsed ones.
func (s *Store) QueueStatus(ctx context.Context) (Status, error) {
	ctx = ensureContext(ctx)
	status := Status{
		TasksByStatus: make(map[TaskStatus]int),
		ItemsByStatus: make(map[ItemStatus]int),
	}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM tasks GROUP BY status`)
	if err != nil {
		return Status{}, fmt.Errorf("task stats: %w", err)
	}
	for rows.Next() {
		var (
			taskStatus TaskStatus
			count      int
		)
		if err := rows.Scan(&taskStatus, &count); err != nil {
			rows.Close()
			return Status{}, err
		}
		status.TasksByStatus[taskStatus] = count
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return Status{}, err
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM content_items GROUP BY status`)
	if err != nil {
		return Status{}, fmt.Errorf("item stats: %w", err)
	}
	for rows.Next() {
		var (
			itemStatus ItemStatus
			count      int
		)
		if err := rows.Scan(&itemStatus, &count); err != nil {
			rows.Close()
			return Status{}, err
		}
		status.ItemsByStatus[itemStatus] = count
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return Status{}, err
	}
	rows.Close()

	status.FailedCount = status.TasksByStatus[TaskFailed]

	nowStr := formatTime(s.nowUTC())
	if err := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM tasks WHERE status = ? AND next_retry_at IS NOT NULL AND next_retry_at <= ?`,
		TaskFailed,
		nowStr,
	).Scan(&status.RetryReadyCount); err != nil {
		return Status{}, fmt.Errorf("retry ready count: %w", err)
	}

	breakers, err := s.Breakers(ctx)
	if err != nil {
		return Status{}, err
	}
	status.Breakers = breakers

	return status, nil
}

// ReclaimStaleProcessing returns processing tasks with a stale heartbeat to
// pending so another worker can pick them up after a crash. Tasks with no
// heartbeat at all are reclaimed by age.
func (s *Store) ReclaimStaleProcessing(ctx context.Context, heartbeatTimeout time.Duration) (int64, error) {
	if heartbeatTimeout <= 0 {
		return 0, nil
	}
	cutoff := formatTime(s.nowUTC().Add(-heartbeatTimeout))
	res, err := s.execWithRetry(
		ctx,
		`UPDATE tasks SET status = ?, last_heartbeat = NULL, updated_at = ?
         WHERE status = ?
           AND (last_heartbeat IS NULL OR last_heartbeat < ?)
           AND updated_at < ?`,
		TaskPending,
		formatTime(s.nowUTC()),
		TaskProcessing,
		cutoff,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale tasks: %w", err)
	}
	return res.RowsAffected()
}

// CleanupOldTasks removes completed and dead-lettered tasks older than the
// retention window, together with orphaned attempt history.
func (s *Store) CleanupOldTasks(ctx context.Context, olderThan time.Duration) (int64, error) {
	ctx = ensureContext(ctx)
	cutoff := formatTime(s.nowUTC().Add(-olderThan))

	var removed int64
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		res, err := tx.ExecContext(
			ctx,
			`DELETE FROM tasks WHERE status IN (?, ?) AND updated_at < ?`,
			TaskCompleted,
			TaskDeadLetter,
			cutoff,
		)
		if err != nil {
			return fmt.Errorf("delete old tasks: %w", err)
		}
		removed, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}

		if _, err := tx.ExecContext(
			ctx,
			`DELETE FROM fetch_attempts WHERE item_id NOT IN (SELECT id FROM content_items)`,
		); err != nil {
			return fmt.Errorf("delete orphaned attempts: %w", err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit cleanup: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// Clear removes all items, tasks, attempts, and breaker rows.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)
	var removed int64
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, `DELETE FROM fetch_attempts`); err != nil {
			return fmt.Errorf("clear attempts: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM tasks`); err != nil {
			return fmt.Errorf("clear tasks: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM circuit_breakers`); err != nil {
			return fmt.Errorf("clear breakers: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM content_items`)
		if err != nil {
			return fmt.Errorf("clear items: %w", err)
		}
		removed, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit clear: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}
