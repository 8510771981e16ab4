package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Breaker rows are created lazily on first failure, so a healthy worker class
// carries no bookkeeping at all.

func (s *Store) breakerAllowsTx(ctx context.Context, tx *sql.Tx, workerClass string, now time.Time) (bool, error) {
	row := tx.QueryRowContext(
		ctx,
		`SELECT worker_class, state, failure_count, last_failure_at, next_retry_at, updated_at
         FROM circuit_breakers WHERE worker_class = ?`,
		workerClass,
	)
	breaker, err := scanBreaker(row)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("load breaker: %w", err)
	}

	switch breaker.State {
	case BreakerClosed:
		return true, nil
	case BreakerOpen:
		if breaker.NextRetryAt == nil || !now.Before(*breaker.NextRetryAt) {
			// Cooldown elapsed: allow a single probe through.
			if _, err := tx.ExecContext(
				ctx,
				`UPDATE circuit_breakers SET state = ?, updated_at = ? WHERE worker_class = ?`,
				BreakerHalfOpen,
				formatTime(now),
				workerClass,
			); err != nil {
				return false, fmt.Errorf("half-open breaker: %w", err)
			}
			return true, nil
		}
		return false, nil
	case BreakerHalfOpen:
		// A probe is in flight; hold further work until it resolves. A probe
		// that never resolves (the process died mid-claim) would starve the
		// class forever, so after a full cooldown the row is treated as
		// abandoned and a fresh probe is allowed through.
		if now.Sub(breaker.UpdatedAt) < s.breakerCooldown {
			return false, nil
		}
		if _, err := tx.ExecContext(
			ctx,
			`UPDATE circuit_breakers SET updated_at = ? WHERE worker_class = ?`,
			formatTime(now),
			workerClass,
		); err != nil {
			return false, fmt.Errorf("refresh half-open breaker: %w", err)
		}
		return true, nil
	default:
		return false, fmt.Errorf("unknown breaker state %q", breaker.State)
	}
}

func (s *Store) breakerRecordFailureTx(ctx context.Context, tx *sql.Tx, workerClass string, now time.Time) error {
	nowStr := formatTime(now)
	cooldownStr := formatTime(now.Add(s.breakerCooldown))

	row := tx.QueryRowContext(
		ctx,
		`SELECT worker_class, state, failure_count, last_failure_at, next_retry_at, updated_at
         FROM circuit_breakers WHERE worker_class = ?`,
		workerClass,
	)
	breaker, err := scanBreaker(row)
	if errors.Is(err, sql.ErrNoRows) {
		state := BreakerClosed
		var nextRetry any
		if s.breakerThreshold <= 1 {
			state = BreakerOpen
			nextRetry = cooldownStr
		}
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO circuit_breakers (worker_class, state, failure_count, last_failure_at, next_retry_at, updated_at)
             VALUES (?, ?, 1, ?, ?, ?)`,
			workerClass,
			state,
			nowStr,
			nextRetry,
			nowStr,
		); err != nil {
			return fmt.Errorf("insert breaker: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("load breaker: %w", err)
	}

	failureCount := breaker.FailureCount + 1
	state := breaker.State
	var nextRetry any

	switch {
	case breaker.State == BreakerHalfOpen:
		// The probe failed: reopen for another full cooldown.
		state = BreakerOpen
		nextRetry = cooldownStr
	case failureCount >= s.breakerThreshold:
		state = BreakerOpen
		nextRetry = cooldownStr
	case breaker.NextRetryAt != nil:
		nextRetry = formatTime(*breaker.NextRetryAt)
	}

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE circuit_breakers SET state = ?, failure_count = ?, last_failure_at = ?, next_retry_at = ?, updated_at = ?
         WHERE worker_class = ?`,
		state,
		failureCount,
		nowStr,
		nextRetry,
		nowStr,
		workerClass,
	); err != nil {
		return fmt.Errorf("update breaker: %w", err)
	}
	return nil
}

func (s *Store) breakerRecordSuccessTx(ctx context.Context, tx *sql.Tx, workerClass string) error {
	if _, err := tx.ExecContext(
		ctx,
		`UPDATE circuit_breakers SET state = ?, failure_count = 0, next_retry_at = NULL, updated_at = ?
         WHERE worker_class = ?`,
		BreakerClosed,
		formatTime(s.nowUTC()),
		workerClass,
	); err != nil {
		return fmt.Errorf("reset breaker: %w", err)
	}
	return nil
}

// BreakerFor returns the breaker state for a worker class, or nil when the
// class has never failed.
func (s *Store) BreakerFor(ctx context.Context, workerClass string) (*BreakerState, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT worker_class, state, failure_count, last_failure_at, next_retry_at, updated_at
         FROM circuit_breakers WHERE worker_class = ?`,
		workerClass,
	)
	breaker, err := scanBreaker(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("breaker for %s: %w", workerClass, err)
	}
	return breaker, nil
}

// Breakers lists all tracked breaker states ordered by worker class.
func (s *Store) Breakers(ctx context.Context) ([]BreakerState, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT worker_class, state, failure_count, last_failure_at, next_retry_at, updated_at
         FROM circuit_breakers ORDER BY worker_class`,
	)
	if err != nil {
		return nil, fmt.Errorf("list breakers: %w", err)
	}
	defer rows.Close()

	var breakers []BreakerState
	for rows.Next() {
		breaker, err := scanBreaker(rows)
		if err != nil {
			return nil, err
		}
		breakers = append(breakers, *breaker)
	}
	return breakers, rows.Err()
}
