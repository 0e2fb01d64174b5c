package donor

import (
	"context"
	"fmt"
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

// Repository handles donor persistence and lookups
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new donor repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a donor and returns it with its assigned id.
func (r *Repository) Create(ctx context.Context, d *models.Donor) (*models.Donor, error) {
	ctx, span := tracing.StartSpan(ctx, "donor.Repository.Create")
	defer span.End()

	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("donors")
	sb.Cols("first_name", "last_name", "email", "phone", "address", "city", "state", "zip", "bio", "created_at", "updated_at")
	sb.Values(d.FirstName, d.LastName, d.Email, d.Phone, d.Address, d.City, d.State, d.Zip, d.Bio, d.CreatedAt, d.UpdatedAt)
	sb.Returning("id")

	query, args := sb.Build()
	exec := database.Resolve(ctx, r.db)
	if err := exec.GetContext(ctx, &d.ID, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create donor")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create donor")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"donor_id": d.ID}).Debug("Created donor")
	return d, nil
}

// GetByID retrieves a donor by id.
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.Donor, error) {
	ctx, span := tracing.StartSpan(ctx, "donor.Repository.GetByID")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("*").From("donors")
	sb.Where(sb.Equal("id", id))

	var donor models.Donor
	query, args := sb.Build()
	exec := database.Resolve(ctx, r.db)
	if err := exec.GetContext(ctx, &donor, query, args...); err != nil {
		if strings.Contains(err.Error(), "no rows in result set") {
			return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "donor %d not found", id)
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"donor_id": id}).Error("Failed to get donor")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get donor")
	}

	return &donor, nil
}

// GetByIDs retrieves donors for a set of ids in one round trip.
func (r *Repository) GetByIDs(ctx context.Context, ids []int64) ([]models.Donor, error) {
	ctx, span := tracing.StartSpan(ctx, "donor.Repository.GetByIDs")
	defer span.End()

	if len(ids) == 0 {
		return nil, nil
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("*").From("donors")
	sb.Where(sb.In("id", sqlbuilder.Flatten(ids)...))

	var donors []models.Donor
	query, args := sb.Build()
	exec := database.Resolve(ctx, r.db)
	if err := exec.SelectContext(ctx, &donors, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get donors by ids")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get donors")
	}

	return donors, nil
}

// FindByEmail returns the first donor with a matching email, oldest id
// first, or nil when there is none. Comparison is case-insensitive.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.Donor, error) {
	ctx, span := tracing.StartSpan(ctx, "donor.Repository.FindByEmail")
	defer span.End()

	query := `
		SELECT * FROM donors
		WHERE LOWER(email) = LOWER($1)
		ORDER BY id
		LIMIT 1`

	var donor models.Donor
	exec := database.Resolve(ctx, r.db)
	if err := exec.GetContext(ctx, &donor, query, email); err != nil {
		if strings.Contains(err.Error(), "no rows in result set") {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to find donor by email")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to find donor by email")
	}

	return &donor, nil
}

// FindByName returns the first donor whose first and last name both match
// case-insensitively, or nil when there is none.
func (r *Repository) FindByName(ctx context.Context, firstName, lastName string) (*models.Donor, error) {
	ctx, span := tracing.StartSpan(ctx, "donor.Repository.FindByName")
	defer span.End()

	query := `
		SELECT * FROM donors
		WHERE LOWER(first_name) = LOWER($1)
		  AND LOWER(last_name) = LOWER($2)
		ORDER BY id
		LIMIT 1`

	var donor models.Donor
	exec := database.Resolve(ctx, r.db)
	if err := exec.GetContext(ctx, &donor, query, firstName, lastName); err != nil {
		if strings.Contains(err.Error(), "no rows in result set") {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to find donor by name")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to find donor by name")
	}

	return &donor, nil
}

// FindFuzzyName returns donors with the same last name and zip whose first
// name clears the trigram similarity threshold, best score first.
func (r *Repository) FindFuzzyName(ctx context.Context, firstName, lastName, zip string, threshold float64, limit int) ([]models.DonorMatch, error) {
	ctx, span := tracing.StartSpan(ctx, "donor.Repository.FindFuzzyName")
	defer span.End()

	query := `
		SELECT *, similarity(first_name, $1) AS score
		FROM donors
		WHERE LOWER(last_name) = LOWER($2)
		  AND zip = $3
		  AND similarity(first_name, $1) > $4
		ORDER BY score DESC
		LIMIT $5`

	var matches []models.DonorMatch
	exec := database.Resolve(ctx, r.db)
	if err := exec.SelectContext(ctx, &matches, query, firstName, lastName, zip, threshold, limit); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to run fuzzy name search")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to run fuzzy name search")
	}

	return matches, nil
}

// FindFuzzyAddress returns donors with the same last name whose address
// clears the trigram similarity threshold, best score first.
func (r *Repository) FindFuzzyAddress(ctx context.Context, lastName, address string, threshold float64, limit int) ([]models.DonorMatch, error) {
	ctx, span := tracing.StartSpan(ctx, "donor.Repository.FindFuzzyAddress")
	defer span.End()

	query := `
		SELECT *, similarity(address, $1) AS score
		FROM donors
		WHERE LOWER(last_name) = LOWER($2)
		  AND similarity(address, $1) > $3
		ORDER BY score DESC
		LIMIT $4`

	var matches []models.DonorMatch
	exec := database.Resolve(ctx, r.db)
	if err := exec.SelectContext(ctx, &matches, query, address, lastName, threshold, limit); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to run fuzzy address search")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to run fuzzy address search")
	}

	return matches, nil
}

// FindLookupPool returns a recall pool of donors that loosely resemble the
// submitted fields. Ranking happens in the caller, this only narrows the
// set with the trigram operators so the whole table is never scanned.
func (r *Repository) FindLookupPool(ctx context.Context, firstName, lastName, email, address string, limit int) ([]models.Donor, error) {
	ctx, span := tracing.StartSpan(ctx, "donor.Repository.FindLookupPool")
	defer span.End()

	var conditions []string
	var args []any

	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if email != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(email) = LOWER(%s)", next(email)))
	}
	if lastName != "" {
		conditions = append(conditions, fmt.Sprintf("last_name %% %s", next(lastName)))
	}
	if firstName != "" {
		conditions = append(conditions, fmt.Sprintf("first_name %% %s", next(firstName)))
	}
	if address != "" {
		conditions = append(conditions, fmt.Sprintf("address %% %s", next(address)))
	}

	if len(conditions) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT * FROM donors
		WHERE %s
		LIMIT %s`, strings.Join(conditions, " OR "), next(limit))

	var donors []models.Donor
	exec := database.Resolve(ctx, r.db)
	if err := exec.SelectContext(ctx, &donors, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to run duplicate lookup pool query")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to run duplicate lookup")
	}

	return donors, nil
}

// EmailDuplicateGroups returns groups of donors sharing a non-empty email.
func (r *Repository) EmailDuplicateGroups(ctx context.Context) ([]models.DonorIDGroup, error) {
	ctx, span := tracing.StartSpan(ctx, "donor.Repository.EmailDuplicateGroups")
	defer span.End()

	query := `
		SELECT LOWER(email) AS value, COUNT(*) AS count, array_agg(id ORDER BY id) AS donor_ids
		FROM donors
		WHERE email <> ''
		GROUP BY LOWER(email)
		HAVING COUNT(*) > 1
		ORDER BY count DESC, value`

	var groups []models.DonorIDGroup
	exec := database.Resolve(ctx, r.db)
	if err := exec.SelectContext(ctx, &groups, query); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to scan email duplicate groups")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to scan for duplicates")
	}

	return groups, nil
}

// NameDuplicateGroups returns groups of donors sharing a non-empty
// (first, last) name pair.
func (r *Repository) NameDuplicateGroups(ctx context.Context) ([]models.DonorIDGroup, error) {
	ctx, span := tracing.StartSpan(ctx, "donor.Repository.NameDuplicateGroups")
	defer span.End()

	query := `
		SELECT LOWER(first_name) || ' ' || LOWER(last_name) AS value, COUNT(*) AS count, array_agg(id ORDER BY id) AS donor_ids
		FROM donors
		WHERE first_name <> '' AND last_name <> ''
		GROUP BY LOWER(first_name), LOWER(last_name)
		HAVING COUNT(*) > 1
		ORDER BY count DESC, value`

	var groups []models.DonorIDGroup
	exec := database.Resolve(ctx, r.db)
	if err := exec.SelectContext(ctx, &groups, query); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to scan name duplicate groups")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to scan for duplicates")
	}

	return groups, nil
}

// Delete removes donors by id.
func (r *Repository) Delete(ctx context.Context, ids []int64) error {
	ctx, span := tracing.StartSpan(ctx, "donor.Repository.Delete")
	defer span.End()

	if len(ids) == 0 {
		return nil
	}

	sb := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	sb.DeleteFrom("donors")
	sb.Where(sb.In("id", sqlbuilder.Flatten(ids)...))

	query, args := sb.Build()
	exec := database.Resolve(ctx, r.db)
	if _, err := exec.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete donors")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete donors")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"count": len(ids)}).Debug("Deleted donors")
	return nil
}
