package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrHashAlreadySet indicates an attempt to overwrite an item's content hash.
// The hash is recorded exactly once, when the item's content is first stored.
var ErrHashAlreadySet = errors.New("content hash already set")

// NewItem inserts a content item together with its pending ingest task in a
// single transaction. The task's worker class is the item's domain.
func (s *Store) NewItem(ctx context.Context, sourceURL, domain, sourceKind string, pathway []string, priority int) (*Item, *Task, error) {
	ctx = ensureContext(ctx)
	sourceURL = strings.TrimSpace(sourceURL)
	if sourceURL == "" {
		return nil, nil, errors.New("source url is empty")
	}
	if domain == "" {
		return nil, nil, errors.New("domain is empty")
	}

	itemID := uuid.NewString()
	taskID := uuid.NewString()
	timestamp := formatTime(s.nowUTC())

	pathwayValue, err := marshalPathway(pathway)
	if err != nil {
		return nil, nil, fmt.Errorf("encode pathway: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO content_items (
            id, source_url, domain, source_kind, pathway, status,
            attempt_count, quality_score, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, 0, 0, ?, ?)`,
		itemID,
		sourceURL,
		domain,
		sourceKind,
		pathwayValue,
		ItemDiscovered,
		timestamp,
		timestamp,
	); err != nil {
		return nil, nil, fmt.Errorf("insert item: %w", err)
	}

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO tasks (
            task_id, task_type, item_id, worker_class, priority, status,
            retry_count, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		taskID,
		TaskTypeIngest,
		itemID,
		domain,
		priority,
		TaskPending,
		timestamp,
		timestamp,
	); err != nil {
		return nil, nil, fmt.Errorf("insert task: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit: %w", err)
	}

	item, err := s.GetItem(ctx, itemID)
	if err != nil {
		return nil, nil, err
	}
	task, err := s.GetTask(ctx, taskID)
	if err != nil {
		return nil, nil, err
	}
	return item, task, nil
}

// GetItem fetches a content item by identifier.
func (s *Store) GetItem(ctx context.Context, id string) (*Item, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+itemColumns+` FROM content_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// FindByHash returns the first item carrying a content hash.
func (s *Store) FindByHash(ctx context.Context, hash string) (*Item, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+itemColumns+` FROM content_items WHERE content_hash = ? ORDER BY created_at LIMIT 1`,
		hash,
	)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by hash: %w", err)
	}
	return item, nil
}

// SetItemStatus transitions an item and records an optional error message.
func (s *Store) SetItemStatus(ctx context.Context, id string, status ItemStatus, errorMessage string) error {
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE content_items SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		status,
		nullableString(errorMessage),
		formatTime(s.nowUTC()),
		id,
	); err != nil {
		return fmt.Errorf("set item status: %w", err)
	}
	return nil
}

// SetPathway records the resolved fallback chain for an item.
func (s *Store) SetPathway(ctx context.Context, id string, pathway []string) error {
	pathwayValue, err := marshalPathway(pathway)
	if err != nil {
		return fmt.Errorf("encode pathway: %w", err)
	}
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE content_items SET pathway = ?, updated_at = ? WHERE id = ?`,
		pathwayValue,
		formatTime(s.nowUTC()),
		id,
	); err != nil {
		return fmt.Errorf("set pathway: %w", err)
	}
	return nil
}

// SetContentHash records an item's content hash. The hash is immutable once
// written; a second call with a different hash returns ErrHashAlreadySet.
func (s *Store) SetContentHash(ctx context.Context, id, hash string) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE content_items SET content_hash = ?, updated_at = ?
         WHERE id = ? AND (content_hash IS NULL OR content_hash = ?)`,
		hash,
		formatTime(s.nowUTC()),
		id,
		hash,
	)
	if err != nil {
		return fmt.Errorf("set content hash: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		item, getErr := s.GetItem(ctx, id)
		if getErr != nil {
			return getErr
		}
		if item == nil {
			return fmt.Errorf("item %s not found", id)
		}
		return fmt.Errorf("%w: item %s has hash %s", ErrHashAlreadySet, id, item.ContentHash)
	}
	return nil
}

// SetQuality records the classifier outcome for an item.
func (s *Store) SetQuality(ctx context.Context, id string, score float64, tier string) error {
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE content_items SET quality_score = ?, quality_tier = ?, updated_at = ? WHERE id = ?`,
		score,
		nullableString(tier),
		formatTime(s.nowUTC()),
		id,
	); err != nil {
		return fmt.Errorf("set quality: %w", err)
	}
	return nil
}

// ListItems returns items filtered by status set (or all items when no status
// is provided), ordered by creation time.
func (s *Store) ListItems(ctx context.Context, statuses ...ItemStatus) ([]*Item, error) {
	ctx = ensureContext(ctx)
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + itemColumns + ` FROM content_items`
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
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// RemoveItem deletes an item together with its tasks and attempt history.
func (s *Store) RemoveItem(ctx context.Context, id string) (bool, error) {
	ctx = ensureContext(ctx)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM fetch_attempts WHERE item_id = ?`, id); err != nil {
		return false, fmt.Errorf("delete attempts: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE item_id = ?`, id); err != nil {
		return false, fmt.Errorf("delete tasks: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM content_items WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return affected > 0, nil
}
