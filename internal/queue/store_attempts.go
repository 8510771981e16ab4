package queue

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RecordAttempt appends one fetch attempt to an item's audit trail and bumps
// the item's attempt counter. Attempt rows are never updated or deleted.
func (s *Store) RecordAttempt(ctx context.Context, attempt Attempt) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO fetch_attempts (item_id, method, started_at, duration_ms, outcome, error_summary)
             VALUES (?, ?, ?, ?, ?, ?)`,
			attempt.ItemID,
			attempt.Method,
			formatTime(attempt.StartedAt),
			attempt.Duration.Milliseconds(),
			attempt.Outcome,
			nullableString(attempt.ErrorSummary),
		); err != nil {
			return fmt.Errorf("insert attempt: %w", err)
		}

		if _, err := tx.ExecContext(
			ctx,
			`UPDATE content_items SET attempt_count = attempt_count + 1, updated_at = ? WHERE id = ?`,
			formatTime(s.nowUTC()),
			attempt.ItemID,
		); err != nil {
			return fmt.Errorf("bump attempt count: %w", err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit attempt: %w", err)
		}
		return nil
	})
}

// AttemptsForItem returns an item's fetch attempts ordered by start time.
func (s *Store) AttemptsForItem(ctx context.Context, itemID string) ([]Attempt, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT id, item_id, method, started_at, duration_ms, outcome, error_summary
         FROM fetch_attempts WHERE item_id = ? ORDER BY started_at, id`,
		itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("attempts for item: %w", err)
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		var (
			attempt    Attempt
			startedRaw string
			durationMS int64
			errSummary sql.NullString
		)
		if err := rows.Scan(
			&attempt.ID,
			&attempt.ItemID,
			&attempt.Method,
			&startedRaw,
			&durationMS,
			&attempt.Outcome,
			&errSummary,
		); err != nil {
			return nil, err
		}
		if started, err := parseTime(startedRaw); err == nil {
			attempt.StartedAt = started
		}
		attempt.Duration = time.Duration(durationMS) * time.Millisecond
		attempt.ErrorSummary = errSummary.String
		attempts = append(attempts, attempt)
	}
	return attempts, rows.Err()
}
