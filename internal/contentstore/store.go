package contentstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Khamel83/atlas-sub014/internal/config"
)

// Metadata accompanies stored content.
type Metadata struct {
	Hash       string
	Title      string
	SourceURL  string
	Domain     string
	SourceKind string
	FetchedVia string
}

// Entry is one stored content row.
type Entry struct {
	ItemID       string
	Hash         string
	Title        string
	SourceURL    string
	Domain       string
	SourceKind   string
	FetchedVia   string
	Body         string
	QualityScore float64
	IssueTags    []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Store is the contract the pipeline needs from a persistent content store.
// Insert provides insert-if-absent semantics keyed by content hash.
type Store interface {
	ExistsByHash(ctx context.Context, hash string) (bool, error)
	Insert(ctx context.Context, itemID, content string, meta Metadata) (bool, error)
	UpdateQuality(ctx context.Context, itemID string, score float64, issueTags []string) (bool, error)
}

// SQLiteStore persists content in a local SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

const contentSchema = `
CREATE TABLE IF NOT EXISTS stored_content (
    item_id       TEXT PRIMARY KEY,
    content_hash  TEXT NOT NULL UNIQUE,
    title         TEXT,
    source_url    TEXT,
    domain        TEXT,
    source_kind   TEXT,
    fetched_via   TEXT,
    body          TEXT NOT NULL,
    quality_score REAL NOT NULL DEFAULT 0,
    issue_tags    TEXT,
    created_at    TEXT NOT NULL,
    updated_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_stored_content_domain ON stored_content(domain);
`

// Open initializes or connects to the content database.
func Open(cfg *config.Config) (*SQLiteStore, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.ContentDBPath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(contentSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create content schema: %w", err)
	}

	return &SQLiteStore{db: db, path: dbPath}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ExistsByHash reports whether content with the given hash is already stored.
func (s *SQLiteStore) ExistsByHash(ctx context.Context, hash string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM stored_content WHERE content_hash = ?`, hash).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("exists by hash: %w", err)
	}
	return true, nil
}

// Insert stores content unless its hash is already present. Returns false
// without error when the hash collides with an existing row.
func (s *SQLiteStore) Insert(ctx context.Context, itemID, content string, meta Metadata) (bool, error) {
	if itemID == "" {
		return false, errors.New("item id is required")
	}
	if meta.Hash == "" {
		return false, errors.New("content hash is required")
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO stored_content (
            item_id, content_hash, title, source_url, domain, source_kind,
            fetched_via, body, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(content_hash) DO NOTHING`,
		itemID,
		meta.Hash,
		meta.Title,
		meta.SourceURL,
		meta.Domain,
		meta.SourceKind,
		meta.FetchedVia,
		content,
		timestamp,
		timestamp,
	)
	if err != nil {
		return false, fmt.Errorf("insert content: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// UpdateQuality records the classifier verdict for a stored item.
func (s *SQLiteStore) UpdateQuality(ctx context.Context, itemID string, score float64, issueTags []string) (bool, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE stored_content SET quality_score = ?, issue_tags = ?, updated_at = ? WHERE item_id = ?`,
		score,
		strings.Join(issueTags, ","),
		time.Now().UTC().Format(time.RFC3339Nano),
		itemID,
	)
	if err != nil {
		return false, fmt.Errorf("update quality: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ListBatch returns stored entries ordered by item id, for maintenance sweeps.
func (s *SQLiteStore) ListBatch(ctx context.Context, offset, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT item_id, content_hash, title, source_url, domain, source_kind,
            fetched_via, body, quality_score, issue_tags, created_at, updated_at
         FROM stored_content ORDER BY item_id LIMIT ? OFFSET ?`,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list content: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Delete removes a stored item.
func (s *SQLiteStore) Delete(ctx context.Context, itemID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM stored_content WHERE item_id = ?`, itemID); err != nil {
		return fmt.Errorf("delete content: %w", err)
	}
	return nil
}

// Count returns the number of stored items.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM stored_content`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count content: %w", err)
	}
	return count, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var (
		entry      Entry
		title      sql.NullString
		sourceURL  sql.NullString
		domain     sql.NullString
		sourceKind sql.NullString
		fetchedVia sql.NullString
		issueTags  sql.NullString
		createdRaw string
		updatedRaw string
	)
	if err := rows.Scan(
		&entry.ItemID,
		&entry.Hash,
		&title,
		&sourceURL,
		&domain,
		&sourceKind,
		&fetchedVia,
		&entry.Body,
		&entry.QualityScore,
		&issueTags,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return Entry{}, fmt.Errorf("scan content row: %w", err)
	}
	entry.Title = title.String
	entry.SourceURL = sourceURL.String
	entry.Domain = domain.String
	entry.SourceKind = sourceKind.String
	entry.FetchedVia = fetchedVia.String
	if issueTags.String != "" {
		entry.IssueTags = strings.Split(issueTags.String, ",")
	}
	if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		entry.CreatedAt = created
	}
	if updated, err := time.Parse(time.RFC3339Nano, updatedRaw); err == nil {
		entry.UpdatedAt = updated
	}
	return entry, nil
}
