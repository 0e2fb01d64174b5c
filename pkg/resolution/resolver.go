package resolution

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/givestack/donorid/pkg/database"
	"github.com/givestack/donorid/pkg/models"
	"github.com/givestack/donorid/pkg/tracing"
)

// Action is a reviewer decision on a pending donation.
type Action string

const (
	// ActionLink attributes the donation to a chosen candidate donor.
	ActionLink Action = "link"
	// ActionCreateNew creates a donor from the donation snapshot instead.
	ActionCreateNew Action = "create_new"
)

// ResolverDonationStore is the donation persistence the resolver depends on.
type ResolverDonationStore interface {
	GetByID(ctx context.Context, id int64) (*models.Donation, error)
	LinkDonor(ctx context.Context, donationID, donorID int64) error
}

// ResolverDonorStore creates donors for create_new decisions.
type ResolverDonorStore interface {
	Create(ctx context.Context, d *models.Donor) (*models.Donor, error)
}

// ResolverCandidateStore clears staged candidates once decided.
type ResolverCandidateStore interface {
	DeleteByDonation(ctx context.Context, donationID int64) error
}

// Resolver applies reviewer decisions from the resolution queue.
type Resolver struct {
	db         database.DB
	donations  ResolverDonationStore
	donors     ResolverDonorStore
	candidates ResolverCandidateStore
	logger     ectologger.Logger
}

// NewResolver creates a new resolver.
func NewResolver(db database.DB, donations ResolverDonationStore, donors ResolverDonorStore, candidates ResolverCandidateStore, logger ectologger.Logger) *Resolver {
	return &Resolver{
		db:         db,
		donations:  donations,
		donors:     donors,
		candidates: candidates,
		logger:     logger,
	}
}

// Resolve applies a reviewer decision in a single transaction: link or
// create the donor, then clear every candidate staged for the donation.
func (r *Resolver) Resolve(ctx context.Context, donationID int64, action Action, candidateDonorID *int64) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "resolution.Resolver.Resolve")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"donation_id": donationID,
		"action":      action,
	})

	switch action {
	case ActionLink:
		if candidateDonorID == nil {
			return 0, httperror.NewHTTPError(http.StatusBadRequest, "candidateId is required for the link action")
		}
	case ActionCreateNew:
	default:
		return 0, httperror.NewHTTPErrorf(http.StatusBadRequest, "unknown action %q", action)
	}

	ctxTx, tx, err := r.db.GetTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to begin resolution")
	}
	defer tx.Rollback(ctxTx)

	var donorID int64
	switch action {
	case ActionLink:
		donorID = *candidateDonorID
		if err := r.donations.LinkDonor(ctxTx, donationID, donorID); err != nil {
			return 0, err
		}
	case ActionCreateNew:
		donation, err := r.donations.GetByID(ctxTx, donationID)
		if err != nil {
			return 0, err
		}
		created, err := r.donors.Create(ctxTx, &models.Donor{
			FirstName: donation.FirstName,
			LastName:  donation.LastName,
			Email:     donation.Email,
			Phone:     donation.Phone,
			Address:   donation.Address,
			City:      donation.City,
			State:     donation.State,
			Zip:       donation.Zip,
		})
		if err != nil {
			return 0, err
		}
		donorID = created.ID
		if err := r.donations.LinkDonor(ctxTx, donationID, donorID); err != nil {
			return 0, err
		}
	}

	if err := r.candidates.DeleteByDonation(ctxTx, donationID); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctxTx); err != nil {
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to commit resolution")
	}

	log.WithFields(map[string]any{"donor_id": donorID}).Info("Applied reviewer decision")
	return donorID, nil
}
