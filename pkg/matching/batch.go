package matching

import (
	"context"
	"database/sql"

	"github.com/Gobusters/ectologger"

	"github.com/givestack/donorid/pkg/database"
	"github.com/givestack/donorid/pkg/metrics"
	"github.com/givestack/donorid/pkg/models"
	"github.com/givestack/donorid/pkg/tracing"
)

// BatchDonationStore lists the donations a batch run operates on.
type BatchDonationStore interface {
	ListUnresolvedByBatches(ctx context.Context, batchIDs []int64) ([]models.Donation, error)
}

// BatchSummary reports what a batch run did.
type BatchSummary struct {
	Processed int `json:"processed"`
	Resolved  int `json:"resolved"`
	Pending   int `json:"pending"`
	Unmatched int `json:"unmatched"`
	Failed    int `json:"failed"`
}

// BatchResolver runs every unattributed donation in a set of batches
// through the matcher. It is invoked by reconciliation once a period
// balances.
type BatchResolver struct {
	db        database.DB
	donations BatchDonationStore
	matcher   *Matcher
	logger    ectologger.Logger
}

// NewBatchResolver creates a new batch resolver.
func NewBatchResolver(db database.DB, donations BatchDonationStore, matcher *Matcher, logger ectologger.Logger) *BatchResolver {
	return &BatchResolver{
		db:        db,
		donations: donations,
		matcher:   matcher,
		logger:    logger,
	}
}

// ResolveBatches resolves donations sequentially, each inside its own
// transaction. A donation that fails is rolled back, counted, and skipped;
// one bad row does not abort the run.
func (b *BatchResolver) ResolveBatches(ctx context.Context, batchIDs []int64) (*BatchSummary, error) {
	ctx, span := tracing.StartSpan(ctx, "matching.BatchResolver.ResolveBatches")
	defer span.End()

	log := b.logger.WithContext(ctx).WithFields(map[string]any{"batch_ids": batchIDs})

	donations, err := b.donations.ListUnresolvedByBatches(ctx, batchIDs)
	if err != nil {
		return nil, err
	}

	summary := &BatchSummary{}
	for i := range donations {
		donation := donations[i]
		summary.Processed++

		outcome, err := b.resolveOne(ctx, &donation)
		if err != nil {
			summary.Failed++
			metrics.BatchResolutionsTotal.WithLabelValues("failed").Inc()
			log.WithError(err).WithFields(map[string]any{"donation_id": donation.ID}).Error("Failed to resolve donation in batch run")
			continue
		}

		switch {
		case outcome.Resolved:
			summary.Resolved++
			metrics.BatchResolutionsTotal.WithLabelValues("resolved").Inc()
		case len(outcome.Candidates) > 0:
			summary.Pending++
			metrics.BatchResolutionsTotal.WithLabelValues("pending").Inc()
		default:
			summary.Unmatched++
			metrics.BatchResolutionsTotal.WithLabelValues("unmatched").Inc()
		}
	}

	log.WithFields(map[string]any{
		"processed": summary.Processed,
		"resolved":  summary.Resolved,
		"pending":   summary.Pending,
		"unmatched": summary.Unmatched,
		"failed":    summary.Failed,
	}).Info("Batch resolution run complete")

	return summary, nil
}

func (b *BatchResolver) resolveOne(ctx context.Context, donation *models.Donation) (*Outcome, error) {
	ctxTx, tx, err := b.db.GetTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctxTx)

	outcome, err := b.matcher.Resolve(ctxTx, donation)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctxTx); err != nil {
		return nil, err
	}

	return outcome, nil
}
