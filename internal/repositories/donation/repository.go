package donation

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/givestack/donorid/pkg/database"
	"github.com/givestack/donorid/pkg/models"
	"github.com/givestack/donorid/pkg/tracing"
)

// Repository handles donation persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new donation repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// GetByID retrieves a donation by id.
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.Donation, error) {
	ctx, span := tracing.StartSpan(ctx, "donation.Repository.GetByID")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("*").From("donations")
	sb.Where(sb.Equal("id", id))

	var donation models.Donation
	query, args := sb.Build()
	exec := database.Resolve(ctx, r.db)
	if err := exec.GetContext(ctx, &donation, query, args...); err != nil {
		if strings.Contains(err.Error(), "no rows in result set") {
			return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "donation %d not found", id)
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"donation_id": id}).Error("Failed to get donation")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get donation")
	}

	return &donation, nil
}

// ListPending returns all donations awaiting review, oldest first.
func (r *Repository) ListPending(ctx context.Context) ([]models.Donation, error) {
	ctx, span := tracing.StartSpan(ctx, "donation.Repository.ListPending")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("*").From("donations")
	sb.Where(sb.Equal("resolution_status", models.ResolutionStatusPending))
	sb.OrderBy("id")

	var donations []models.Donation
	query, args := sb.Build()
	exec := database.Resolve(ctx, r.db)
	if err := exec.SelectContext(ctx, &donations, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list pending donations")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list pending donations")
	}

	return donations, nil
}

// ListUnresolvedByBatches returns donations in the given batches that have
// no donor attributed yet, oldest first.
func (r *Repository) ListUnresolvedByBatches(ctx context.Context, batchIDs []int64) ([]models.Donation, error) {
	ctx, span := tracing.StartSpan(ctx, "donation.Repository.ListUnresolvedByBatches")
	defer span.End()

	if len(batchIDs) == 0 {
		return nil, nil
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("*").From("donations")
	sb.Where(
		sb.In("batch_id", sqlbuilder.Flatten(batchIDs)...),
		sb.IsNull("donor_id"),
	)
	sb.OrderBy("id")

	var donations []models.Donation
	query, args := sb.Build()
	exec := database.Resolve(ctx, r.db)
	if err := exec.SelectContext(ctx, &donations, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list unresolved donations")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list unresolved donations")
	}

	return donations, nil
}

// LinkDonor attributes a donation to a donor and marks it resolved.
func (r *Repository) LinkDonor(ctx context.Context, donationID, donorID int64) error {
	ctx, span := tracing.StartSpan(ctx, "donation.Repository.LinkDonor")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("donations")
	sb.Set(
		sb.Assign("donor_id", donorID),
		sb.Assign("resolution_status", models.ResolutionStatusResolved),
		sb.Assign("updated_at", time.Now().UTC()),
	)
	sb.Where(sb.Equal("id", donationID))

	query, args := sb.Build()
	exec := database.Resolve(ctx, r.db)
	if _, err := exec.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"donation_id": donationID, "donor_id": donorID}).Error("Failed to link donor")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to link donor")
	}

	return nil
}

// MarkPending flags a donation as awaiting human review.
func (r *Repository) MarkPending(ctx context.Context, donationID int64) error {
	ctx, span := tracing.StartSpan(ctx, "donation.Repository.MarkPending")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("donations")
	sb.Set(
		sb.Assign("resolution_status", models.ResolutionStatusPending),
		sb.Assign("updated_at", time.Now().UTC()),
	)
	sb.Where(sb.Equal("id", donationID))

	query, args := sb.Build()
	exec := database.Resolve(ctx, r.db)
	if _, err := exec.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"donation_id": donationID}).Error("Failed to mark donation pending")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to mark donation pending")
	}

	return nil
}

// ReassignDonor moves all donations from one donor to another.
func (r *Repository) ReassignDonor(ctx context.Context, fromDonorID, toDonorID int64) error {
	ctx, span := tracing.StartSpan(ctx, "donation.Repository.ReassignDonor")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("donations")
	sb.Set(
		sb.Assign("donor_id", toDonorID),
		sb.Assign("updated_at", time.Now().UTC()),
	)
	sb.Where(sb.Equal("donor_id", fromDonorID))

	query, args := sb.Build()
	exec := database.Resolve(ctx, r.db)
	if _, err := exec.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"from_donor_id": fromDonorID, "to_donor_id": toDonorID}).Error("Failed to reassign donations")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to reassign donations")
	}

	return nil
}
