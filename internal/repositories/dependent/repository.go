package dependent

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/givestack/donorid/pkg/database"
	"github.com/givestack/donorid/pkg/tracing"
)

// Repository reassigns donor-owned records (pledges, tasks, files) during
// a merge.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new dependent record repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// ReassignPledges moves pledges from one donor to another.
func (r *Repository) ReassignPledges(ctx context.Context, fromDonorID, toDonorID int64) error {
	ctx, span := tracing.StartSpan(ctx, "dependent.Repository.ReassignPledges")
	defer span.End()

	return r.reassign(ctx, "pledges", true, fromDonorID, toDonorID)
}

// ReassignTasks moves donor tasks from one donor to another.
func (r *Repository) ReassignTasks(ctx context.Context, fromDonorID, toDonorID int64) error {
	ctx, span := tracing.StartSpan(ctx, "dependent.Repository.ReassignTasks")
	defer span.End()

	return r.reassign(ctx, "donor_tasks", true, fromDonorID, toDonorID)
}

// ReassignFiles moves donor files from one donor to another.
func (r *Repository) ReassignFiles(ctx context.Context, fromDonorID, toDonorID int64) error {
	ctx, span := tracing.StartSpan(ctx, "dependent.Repository.ReassignFiles")
	defer span.End()

	return r.reassign(ctx, "donor_files", false, fromDonorID, toDonorID)
}

func (r *Repository) reassign(ctx context.Context, table string, hasUpdatedAt bool, fromDonorID, toDonorID int64) error {
	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update(table)
	assignments := []string{sb.Assign("donor_id", toDonorID)}
	if hasUpdatedAt {
		assignments = append(assignments, sb.Assign("updated_at", time.Now().UTC()))
	}
	sb.Set(assignments...)
	sb.Where(sb.Equal("donor_id", fromDonorID))

	query, args := sb.Build()
	exec := database.Resolve(ctx, r.db)
	if _, err := exec.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"table":         table,
			"from_donor_id": fromDonorID,
			"to_donor_id":   toDonorID,
		}).Error("Failed to reassign donor records")
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to reassign %s", table)
	}

	return nil
}
