package dedup

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Khamel83/atlas-sub014/internal/config"
	"github.com/Khamel83/atlas-sub014/internal/contentstore"
	"github.com/Khamel83/atlas-sub014/internal/logging"
)

const sweepBatchSize = 200

// ContentSource is the slice of the content store the sweep needs.
type ContentSource interface {
	ListBatch(ctx context.Context, offset, limit int) ([]contentstore.Entry, error)
	Delete(ctx context.Context, itemID string) error
}

// Sweeper removes already-stored garbage content in batches. It runs as a
// maintenance operation, never on the synchronous per-item path.
type Sweeper struct {
	source         ContentSource
	logger         *slog.Logger
	minBodyLength  int
	garbagePhrases []string
}

// NewSweeper builds a sweeper over a content source.
func NewSweeper(cfg *config.Config, source ContentSource, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Sweeper{
		source:         source,
		logger:         logging.NewComponentLogger(logger, "dedup-sweep"),
		minBodyLength:  cfg.Dedup.MinBodyLength,
		garbagePhrases: cfg.Dedup.GarbagePhrases,
	}
}

// Sweep scans the content store and deletes garbage entries: near-empty
// bodies, known platform boilerplate, and titles that are bare domain names.
// Returns the number of entries removed.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	removed := 0
	offset := 0
	for {
		entries, err := s.source.ListBatch(ctx, offset, sweepBatchSize)
		if err != nil {
			return removed, err
		}
		if len(entries) == 0 {
			return removed, nil
		}

		for _, entry := range entries {
			reason, garbage := s.classifyGarbage(entry)
			if !garbage {
				continue
			}
			if err := s.source.Delete(ctx, entry.ItemID); err != nil {
				return removed, err
			}
			removed++
			s.logger.Info("removed garbage content",
				logging.String(logging.FieldItemID, entry.ItemID),
				logging.String("reason", reason),
			)
		}

		// Offset skips only the survivors; deleted rows shift the window.
		offset += len(entries) - countGarbage(entries, s.classifyGarbage)
	}
}

func (s *Sweeper) classifyGarbage(entry contentstore.Entry) (string, bool) {
	body := strings.TrimSpace(entry.Body)
	if len(body) < s.minBodyLength {
		return "near_empty_body", true
	}
	lowered := strings.ToLower(body)
	for _, phrase := range s.garbagePhrases {
		if strings.Contains(lowered, phrase) {
			return "boilerplate", true
		}
	}
	title := strings.ToLower(strings.TrimSpace(entry.Title))
	if title != "" && (title == strings.ToLower(entry.Domain) || title == "www."+strings.ToLower(entry.Domain)) {
		return "bare_domain_title", true
	}
	return "", false
}

func countGarbage(entries []contentstore.Entry, classify func(contentstore.Entry) (string, bool)) int {
	count := 0
	for _, entry := range entries {
		if _, garbage := classify(entry); garbage {
			count++
		}
	}
	return count
}
