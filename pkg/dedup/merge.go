package dedup

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/givestack/donorid/pkg/database"
	"github.com/givestack/donorid/pkg/metrics"
	"github.com/givestack/donorid/pkg/models"
	"github.com/givestack/donorid/pkg/tracing"
)

// MergeDonorStore is the donor persistence the merger depends on.
type MergeDonorStore interface {
	GetByID(ctx context.Context, id int64) (*models.Donor, error)
	Delete(ctx context.Context, ids []int64) error
}

// MergeDonationStore reassigns donations during a merge.
type MergeDonationStore interface {
	ReassignDonor(ctx context.Context, fromDonorID, toDonorID int64) error
}

// MergeCandidateStore reassigns staged candidates during a merge.
type MergeCandidateStore interface {
	ReassignDonor(ctx context.Context, fromDonorID, toDonorID int64) error
}

// MergeDependentStore reassigns donor-owned records during a merge.
type MergeDependentStore interface {
	ReassignPledges(ctx context.Context, fromDonorID, toDonorID int64) error
	ReassignTasks(ctx context.Context, fromDonorID, toDonorID int64) error
	ReassignFiles(ctx context.Context, fromDonorID, toDonorID int64) error
}

// Merger folds duplicate donor profiles into a surviving primary.
type Merger struct {
	db         database.DB
	donors     MergeDonorStore
	donations  MergeDonationStore
	candidates MergeCandidateStore
	dependents MergeDependentStore
	logger     ectologger.Logger
}

// NewMerger creates a new merge engine.
func NewMerger(db database.DB, donors MergeDonorStore, donations MergeDonationStore, candidates MergeCandidateStore, dependents MergeDependentStore, logger ectologger.Logger) *Merger {
	return &Merger{
		db:         db,
		donors:     donors,
		donations:  donations,
		candidates: candidates,
		dependents: dependents,
		logger:     logger,
	}
}

// Merge reassigns every donation, pledge, task, file, and staged candidate
// from each secondary donor to the primary, then deletes the secondaries.
// The whole operation is one transaction; any failure rolls back all of it.
func (m *Merger) Merge(ctx context.Context, primaryID int64, secondaryIDs []int64) error {
	ctx, span := tracing.StartSpan(ctx, "dedup.Merger.Merge")
	defer span.End()

	log := m.logger.WithContext(ctx).WithFields(map[string]any{
		"primary_donor_id":    primaryID,
		"secondary_donor_ids": secondaryIDs,
	})

	if len(secondaryIDs) == 0 {
		log.Debug("No secondary donors to merge")
		return nil
	}

	for _, id := range secondaryIDs {
		if id == primaryID {
			return httperror.NewHTTPError(http.StatusBadRequest, "primary donor cannot be listed as a secondary")
		}
	}

	if _, err := m.donors.GetByID(ctx, primaryID); err != nil {
		return err
	}

	ctxTx, tx, err := m.db.GetTx(ctx, &sql.TxOptions{})
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to begin merge")
	}
	defer tx.Rollback(ctxTx)

	for _, secondaryID := range secondaryIDs {
		if err := m.donations.ReassignDonor(ctxTx, secondaryID, primaryID); err != nil {
			return m.fail(log, err)
		}
		if err := m.dependents.ReassignPledges(ctxTx, secondaryID, primaryID); err != nil {
			return m.fail(log, err)
		}
		if err := m.dependents.ReassignTasks(ctxTx, secondaryID, primaryID); err != nil {
			return m.fail(log, err)
		}
		if err := m.dependents.ReassignFiles(ctxTx, secondaryID, primaryID); err != nil {
			return m.fail(log, err)
		}
		if err := m.candidates.ReassignDonor(ctxTx, secondaryID, primaryID); err != nil {
			return m.fail(log, err)
		}
	}

	if err := m.donors.Delete(ctxTx, secondaryIDs); err != nil {
		return m.fail(log, err)
	}

	if err := tx.Commit(ctxTx); err != nil {
		return m.fail(log, httperror.NewHTTPError(http.StatusInternalServerError, "failed to commit merge"))
	}

	metrics.MergesTotal.WithLabelValues("success").Inc()
	metrics.DonorsMerged.Add(float64(len(secondaryIDs)))
	log.WithFields(map[string]any{"merged": len(secondaryIDs)}).Info("Merged donors")
	return nil
}

func (m *Merger) fail(log ectologger.Logger, err error) error {
	metrics.MergesTotal.WithLabelValues("failed").Inc()
	log.WithError(err).Error("Merge failed, rolling back")
	return err
}
