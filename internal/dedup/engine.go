// Package dedup detects exact and near-duplicate content against everything
// already accepted, and maintains duplicate groups.
//
// The exact stage hashes a normalized content prefix. The near-duplicate stage
// compares normalized prefixes with a sequence-similarity ratio, but only
// against a bounded candidate set selected by length bucket; full pairwise
// comparison is never performed.
package dedup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Khamel83/atlas-sub014/internal/config"
)

// Basis describes how a duplicate match was established.
type Basis string

const (
	BasisExactHash     Basis = "exact_hash"
	BasisNearDuplicate Basis = "near_duplicate"
)

// bucketWidth groups normalized prefixes by length so near-duplicate
// comparison only considers candidates of comparable size.
const bucketWidth = 256

// Outcome is the result of a duplicate check.
type Outcome struct {
	Duplicate   bool
	CanonicalID string
	Basis       Basis
	Score       float64
}

// Group is one persisted duplicate group.
type Group struct {
	ID          int64
	CanonicalID string
	Basis       Basis
	Score       float64
	MemberIDs   []string
}

// Engine manages the duplicate index backed by SQLite.
type Engine struct {
	db        *sql.DB
	path      string
	threshold float64
	prefixLen int
	maxCand   int
}

const dedupSchema = `
CREATE TABLE IF NOT EXISTS dedup_index (
    prefix_hash       TEXT PRIMARY KEY,
    item_id           TEXT NOT NULL,
    normalized_prefix TEXT NOT NULL,
    bucket            INTEGER NOT NULL,
    created_at        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_dedup_bucket ON dedup_index(bucket);

CREATE TABLE IF NOT EXISTS duplicate_groups (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    canonical_item_id TEXT NOT NULL,
    similarity_basis  TEXT NOT NULL,
    similarity_score  REAL NOT NULL,
    created_at        TEXT NOT NULL,
    UNIQUE(canonical_item_id, similarity_basis)
);

CREATE TABLE IF NOT EXISTS duplicate_group_members (
    group_id INTEGER NOT NULL REFERENCES duplicate_groups(id),
    item_id  TEXT NOT NULL,
    added_at TEXT NOT NULL,
    PRIMARY KEY (group_id, item_id)
);
`

// Open initializes or connects to the duplicate index database.
func Open(cfg *config.Config) (*Engine, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.DedupDBPath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(dedupSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create dedup schema: %w", err)
	}

	return &Engine{
		db:        db,
		path:      dbPath,
		threshold: cfg.Dedup.SimilarityThreshold,
		prefixLen: cfg.Dedup.PrefixLength,
		maxCand:   cfg.Dedup.MaxCandidates,
	}, nil
}

// Close closes the underlying database connection.
func (e *Engine) Close() error {
	if e == nil || e.db == nil {
		return nil
	}
	return e.db.Close()
}

// CheckAndRegister checks content against the exact and near-duplicate indexes.
// Unique content is registered as a new canonical; duplicates are attached to
// the canonical's group and never registered. The whole check-and-register is
// one transaction so concurrent workers cannot both claim the same prefix.
func (e *Engine) CheckAndRegister(ctx context.Context, itemID, content string) (Outcome, error) {
	if itemID == "" {
		return Outcome{}, errors.New("item id is required")
	}

	normalized := NormalizePrefix(content, e.prefixLen)
	hash := HashPrefix(content, e.prefixLen)
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return Outcome{}, fmt.Errorf("begin dedup tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var canonicalID string
	err = tx.QueryRowContext(ctx, `SELECT item_id FROM dedup_index WHERE prefix_hash = ?`, hash).Scan(&canonicalID)
	switch {
	case err == nil:
		if err := attachToGroup(ctx, tx, canonicalID, itemID, BasisExactHash, 1.0, timestamp); err != nil {
			return Outcome{}, err
		}
		if err := tx.Commit(); err != nil {
			return Outcome{}, fmt.Errorf("commit dedup tx: %w", err)
		}
		return Outcome{Duplicate: true, CanonicalID: canonicalID, Basis: BasisExactHash, Score: 1.0}, nil
	case errors.Is(err, sql.ErrNoRows):
	default:
		return Outcome{}, fmt.Errorf("exact lookup: %w", err)
	}

	bestID, bestScore, err := e.nearDuplicate(ctx, tx, normalized)
	if err != nil {
		return Outcome{}, err
	}
	if bestID != "" && bestScore >= e.threshold {
		if err := attachToGroup(ctx, tx, bestID, itemID, BasisNearDuplicate, bestScore, timestamp); err != nil {
			return Outcome{}, err
		}
		if err := tx.Commit(); err != nil {
			return Outcome{}, fmt.Errorf("commit dedup tx: %w", err)
		}
		return Outcome{Duplicate: true, CanonicalID: bestID, Basis: BasisNearDuplicate, Score: bestScore}, nil
	}

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO dedup_index (prefix_hash, item_id, normalized_prefix, bucket, created_at)
         VALUES (?, ?, ?, ?, ?)`,
		hash,
		itemID,
		normalized,
		len(normalized)/bucketWidth,
		timestamp,
	); err != nil {
		return Outcome{}, fmt.Errorf("register prefix: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Outcome{}, fmt.Errorf("commit dedup tx: %w", err)
	}
	return Outcome{}, nil
}

// nearDuplicate scans the bounded candidate set around the prefix's length
// bucket and returns the most similar canonical.
func (e *Engine) nearDuplicate(ctx context.Context, tx *sql.Tx, normalized string) (string, float64, error) {
	bucket := len(normalized) / bucketWidth
	rows, err := tx.QueryContext(
		ctx,
		`SELECT item_id, normalized_prefix FROM dedup_index
         WHERE bucket BETWEEN ? AND ?
         ORDER BY created_at DESC LIMIT ?`,
		bucket-1,
		bucket+1,
		e.maxCand,
	)
	if err != nil {
		return "", 0, fmt.Errorf("candidate scan: %w", err)
	}
	defer rows.Close()

	bestID := ""
	bestScore := 0.0
	for rows.Next() {
		var candidateID, candidatePrefix string
		if err := rows.Scan(&candidateID, &candidatePrefix); err != nil {
			return "", 0, fmt.Errorf("scan candidate: %w", err)
		}
		if score := similarity(normalized, candidatePrefix); score > bestScore {
			bestID = candidateID
			bestScore = score
		}
	}
	return bestID, bestScore, rows.Err()
}

func attachToGroup(ctx context.Context, tx *sql.Tx, canonicalID, itemID string, basis Basis, score float64, timestamp string) error {
	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO duplicate_groups (canonical_item_id, similarity_basis, similarity_score, created_at)
         VALUES (?, ?, ?, ?)
         ON CONFLICT(canonical_item_id, similarity_basis) DO NOTHING`,
		canonicalID,
		basis,
		score,
		timestamp,
	); err != nil {
		return fmt.Errorf("upsert group: %w", err)
	}

	var groupID int64
	if err := tx.QueryRowContext(
		ctx,
		`SELECT id FROM duplicate_groups WHERE canonical_item_id = ? AND similarity_basis = ?`,
		canonicalID,
		basis,
	).Scan(&groupID); err != nil {
		return fmt.Errorf("load group: %w", err)
	}

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO duplicate_group_members (group_id, item_id, added_at) VALUES (?, ?, ?)
         ON CONFLICT(group_id, item_id) DO NOTHING`,
		groupID,
		itemID,
		timestamp,
	); err != nil {
		return fmt.Errorf("add group member: %w", err)
	}
	return nil
}

// GroupFor returns the duplicate group containing the given canonical item,
// or nil when none exists.
func (e *Engine) GroupFor(ctx context.Context, canonicalID string) (*Group, error) {
	row := e.db.QueryRowContext(
		ctx,
		`SELECT id, canonical_item_id, similarity_basis, similarity_score
         FROM duplicate_groups WHERE canonical_item_id = ? ORDER BY id LIMIT 1`,
		canonicalID,
	)
	group := &Group{}
	var basis string
	if err := row.Scan(&group.ID, &group.CanonicalID, &basis, &group.Score); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load group: %w", err)
	}
	group.Basis = Basis(basis)

	rows, err := e.db.QueryContext(
		ctx,
		`SELECT item_id FROM duplicate_group_members WHERE group_id = ? ORDER BY added_at`,
		group.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("load group members: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var memberID string
		if err := rows.Scan(&memberID); err != nil {
			return nil, fmt.Errorf("scan group member: %w", err)
		}
		group.MemberIDs = append(group.MemberIDs, memberID)
	}
	return group, rows.Err()
}

// IndexSize returns the number of registered canonical prefixes.
func (e *Engine) IndexSize(ctx context.Context) (int, error) {
	var count int
	if err := e.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM dedup_index`).Scan(&count); err != nil {
		return 0, fmt.Errorf("index size: %w", err)
	}
	return count, nil
}
