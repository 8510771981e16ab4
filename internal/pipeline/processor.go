// Package pipeline executes one full ingestion pass over a content item:
// resolve the fallback chain, fetch, classify, deduplicate, store.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Khamel83/atlas-sub014/internal/config"
	"github.com/Khamel83/atlas-sub014/internal/contentstore"
	"github.com/Khamel83/atlas-sub014/internal/dedup"
	"github.com/Khamel83/atlas-sub014/internal/fetch"
	"github.com/Khamel83/atlas-sub014/internal/logging"
	"github.com/Khamel83/atlas-sub014/internal/pathway"
	"github.com/Khamel83/atlas-sub014/internal/quality"
	"github.com/Khamel83/atlas-sub014/internal/queue"
	"github.com/Khamel83/atlas-sub014/internal/services"
)

// Processor owns the per-task pipeline pass. A rejected or duplicate item is
// a successful outcome for the task; only stage errors propagate as failures.
type Processor struct {
	cfg        *config.Config
	store      *queue.Store
	resolver   *pathway.Resolver
	fetcher    *fetch.Fetcher
	classifier *quality.Classifier
	dedup      *dedup.Engine
	content    contentstore.Store
	logger     *slog.Logger
}

// NewProcessor wires the pipeline stages together.
func NewProcessor(
	cfg *config.Config,
	store *queue.Store,
	resolver *pathway.Resolver,
	fetcher *fetch.Fetcher,
	classifier *quality.Classifier,
	engine *dedup.Engine,
	content contentstore.Store,
	logger *slog.Logger,
) *Processor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Processor{
		cfg:        cfg,
		store:      store,
		resolver:   resolver,
		fetcher:    fetcher,
		classifier: classifier,
		dedup:      engine,
		content:    content,
		logger:     logging.NewComponentLogger(logger, "pipeline"),
	}
}

// Process runs the pipeline for one claimed task.
func (p *Processor) Process(ctx context.Context, task *queue.Task) error {
	item, err := p.store.GetItem(ctx, task.ItemID)
	if err != nil {
		return services.Wrap(services.ErrTransient, "pipeline", "load item", "", err)
	}
	if item == nil {
		return services.Wrap(services.ErrPermanent, "pipeline", "load item",
			fmt.Sprintf("item %s not found", task.ItemID), nil)
	}

	kind := pathway.SourceKind(item.SourceKind)
	if kind == "" {
		kind = pathway.KindArticle
	}

	if err := p.store.SetItemStatus(ctx, item.ID, queue.ItemFetching, ""); err != nil {
		return err
	}

	chain := item.Pathway
	if len(chain) == 0 {
		chain = p.resolver.Resolve(item.Domain, kind, p.cfg.HasCredentials(item.Domain))
		if err := p.store.SetPathway(ctx, item.ID, chain); err != nil {
			return err
		}
	}

	target := fetch.Target{
		ItemID: item.ID,
		URL:    item.SourceURL,
		Domain: item.Domain,
		Kind:   kind,
	}
	if source, ok := p.resolver.DirectSource(item.Domain); ok {
		target.DirectSource = source
	}

	result, attempts, fetchErr := p.fetcher.Fetch(ctx, target, chain)
	p.recordAttempts(ctx, item.ID, attempts)
	if fetchErr != nil {
		if statusErr := p.store.SetItemStatus(ctx, item.ID, queue.ItemFetching, fetchErr.Error()); statusErr != nil {
			p.logger.Warn("record fetch error", logging.Args(
				logging.String(logging.FieldItemID, item.ID),
				logging.Error(statusErr),
			)...)
		}
		return fetchErr
	}

	if err := p.store.SetItemStatus(ctx, item.ID, queue.ItemClassifying, ""); err != nil {
		return err
	}

	assessment := p.classifier.Classify(result.Content, kind)
	if err := p.store.SetQuality(ctx, item.ID, assessment.Score, string(assessment.Tier)); err != nil {
		return err
	}
	if assessment.Tier == quality.TierFailed || assessment.Tier == quality.TierStub {
		reason := fmt.Sprintf("quality tier %s (score %.2f) via %s", assessment.Tier, assessment.Score, result.Method)
		p.logger.Info("item rejected", logging.Args(
			logging.String(logging.FieldItemID, item.ID),
			logging.String(logging.FieldMethod, result.Method),
			logging.Float64("score", assessment.Score),
		)...)
		return p.store.SetItemStatus(ctx, item.ID, queue.ItemRejected, reason)
	}

	outcome, err := p.dedup.CheckAndRegister(ctx, item.ID, result.Content)
	if err != nil {
		return services.Wrap(services.ErrTransient, "pipeline", "dedup", "", err)
	}
	if outcome.Duplicate {
		reason := fmt.Sprintf("%s duplicate of %s (similarity %.2f)", outcome.Basis, outcome.CanonicalID, outcome.Score)
		p.logger.Info("item deduplicated", logging.Args(
			logging.String(logging.FieldItemID, item.ID),
			logging.String("canonical_id", outcome.CanonicalID),
			logging.Float64("similarity", outcome.Score),
		)...)
		return p.store.SetItemStatus(ctx, item.ID, queue.ItemDuplicate, reason)
	}

	hash := dedup.HashPrefix(result.Content, p.cfg.Dedup.PrefixLength)
	if err := p.store.SetContentHash(ctx, item.ID, hash); err != nil {
		return services.Wrap(services.ErrTransient, "pipeline", "record hash", "", err)
	}

	inserted, err := p.content.Insert(ctx, item.ID, result.Content, contentstore.Metadata{
		Hash:       hash,
		Title:      result.Title,
		SourceURL:  item.SourceURL,
		Domain:     item.Domain,
		SourceKind: item.SourceKind,
		FetchedVia: result.Method,
	})
	if err != nil {
		return services.Wrap(services.ErrTransient, "pipeline", "store content", "", err)
	}
	if !inserted {
		// Another item already owns this hash in the store.
		reason := fmt.Sprintf("content hash %s already stored", hash)
		return p.store.SetItemStatus(ctx, item.ID, queue.ItemDuplicate, reason)
	}

	if _, err := p.content.UpdateQuality(ctx, item.ID, assessment.Score, assessment.Issues); err != nil {
		return services.Wrap(services.ErrTransient, "pipeline", "store quality", "", err)
	}

	p.logger.Info("item accepted", logging.Args(
		logging.String(logging.FieldItemID, item.ID),
		logging.String(logging.FieldMethod, result.Method),
		logging.Float64("score", assessment.Score),
		logging.String("tier", string(assessment.Tier)),
	)...)
	return p.store.SetItemStatus(ctx, item.ID, queue.ItemAccepted, "")
}

func (p *Processor) recordAttempts(ctx context.Context, itemID string, attempts []fetch.Attempt) {
	for _, attempt := range attempts {
		record := queue.Attempt{
			ItemID:    itemID,
			Method:    attempt.Method,
			StartedAt: attempt.StartedAt,
			Duration:  attempt.Duration,
			Outcome:   queue.AttemptSuccess,
		}
		if attempt.Err != nil {
			record.Outcome = queue.AttemptFailure
			record.ErrorSummary = attempt.Err.Error()
		}
		if err := p.store.RecordAttempt(ctx, record); err != nil {
			p.logger.Warn("record fetch attempt", logging.Args(
				logging.String(logging.FieldItemID, itemID),
				logging.String(logging.FieldMethod, attempt.Method),
				logging.Error(err),
			)...)
		}
	}
}
