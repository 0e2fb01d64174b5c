package candidate

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/givestack/donorid/pkg/database"
	"github.com/givestack/donorid/pkg/models"
	"github.com/givestack/donorid/pkg/tracing"
)

// Repository handles resolution candidate persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new resolution candidate repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// CreateBatch stages a set of candidates in one statement.
func (r *Repository) CreateBatch(ctx context.Context, candidates []*models.ResolutionCandidate) error {
	ctx, span := tracing.StartSpan(ctx, "candidate.Repository.CreateBatch")
	defer span.End()

	if len(candidates) == 0 {
		return nil
	}

	now := time.Now().UTC()
	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("resolution_candidates")
	sb.Cols("donation_id", "donor_id", "score", "reason", "details", "created_at")

	for _, c := range candidates {
		c.CreatedAt = now
		sb.Values(c.DonationID, c.DonorID, c.Score, c.Reason, c.Details, c.CreatedAt)
	}

	query, args := sb.Build()
	exec := database.Resolve(ctx, r.db)
	if _, err := exec.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to stage resolution candidates")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to stage resolution candidates")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"count": len(candidates)}).Debug("Staged resolution candidates")
	return nil
}

// ListByDonations returns all candidates for the given donations, best
// score first within each donation.
func (r *Repository) ListByDonations(ctx context.Context, donationIDs []int64) ([]models.ResolutionCandidate, error) {
	ctx, span := tracing.StartSpan(ctx, "candidate.Repository.ListByDonations")
	defer span.End()

	if len(donationIDs) == 0 {
		return nil, nil
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("*").From("resolution_candidates")
	sb.Where(sb.In("donation_id", sqlbuilder.Flatten(donationIDs)...))
	sb.OrderBy("donation_id", "score DESC")

	var candidates []models.ResolutionCandidate
	query, args := sb.Build()
	exec := database.Resolve(ctx, r.db)
	if err := exec.SelectContext(ctx, &candidates, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list resolution candidates")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list resolution candidates")
	}

	return candidates, nil
}

// DeleteByDonation removes every candidate staged for a donation.
func (r *Repository) DeleteByDonation(ctx context.Context, donationID int64) error {
	ctx, span := tracing.StartSpan(ctx, "candidate.Repository.DeleteByDonation")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	sb.DeleteFrom("resolution_candidates")
	sb.Where(sb.Equal("donation_id", donationID))

	query, args := sb.Build()
	exec := database.Resolve(ctx, r.db)
	if _, err := exec.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"donation_id": donationID}).Error("Failed to delete resolution candidates")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete resolution candidates")
	}

	return nil
}

// ReassignDonor moves candidates pointing at one donor to another.
func (r *Repository) ReassignDonor(ctx context.Context, fromDonorID, toDonorID int64) error {
	ctx, span := tracing.StartSpan(ctx, "candidate.Repository.ReassignDonor")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("resolution_candidates")
	sb.Set(sb.Assign("donor_id", toDonorID))
	sb.Where(sb.Equal("donor_id", fromDonorID))

	query, args := sb.Build()
	exec := database.Resolve(ctx, r.db)
	if _, err := exec.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"from_donor_id": fromDonorID, "to_donor_id": toDonorID}).Error("Failed to reassign resolution candidates")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to reassign resolution candidates")
	}

	return nil
}
