package dedup

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/givestack/donorid/pkg/metrics"
	"github.com/givestack/donorid/pkg/models"
	"github.com/givestack/donorid/pkg/tracing"
)

// Duplicate group key fields.
const (
	FieldEmail = "email"
	FieldName  = "name"
)

// ScannerDonorStore is the donor persistence the scanner depends on.
type ScannerDonorStore interface {
	EmailDuplicateGroups(ctx context.Context) ([]models.DonorIDGroup, error)
	NameDuplicateGroups(ctx context.Context) ([]models.DonorIDGroup, error)
	GetByIDs(ctx context.Context, ids []int64) ([]models.Donor, error)
}

// DuplicateGroup is a set of donor profiles sharing the same email or name.
type DuplicateGroup struct {
	Field  string         `json:"field"`
	Value  string         `json:"value"`
	Count  int            `json:"count"`
	Donors []models.Donor `json:"donors"`
}

// Scanner surfaces donor profiles that look like duplicates of each other.
type Scanner struct {
	donors ScannerDonorStore
	logger ectologger.Logger
}

// NewScanner creates a new duplicate scanner.
func NewScanner(donors ScannerDonorStore, logger ectologger.Logger) *Scanner {
	return &Scanner{
		donors: donors,
		logger: logger,
	}
}

// Scan groups donors by shared non-empty email and by shared non-empty
// (first, last) name pair. Donor records are fetched once for the union of
// ids and assembled per group client-side.
func (s *Scanner) Scan(ctx context.Context) ([]DuplicateGroup, error) {
	ctx, span := tracing.StartSpan(ctx, "dedup.Scanner.Scan")
	defer span.End()

	emailGroups, err := s.donors.EmailDuplicateGroups(ctx)
	if err != nil {
		return nil, err
	}
	nameGroups, err := s.donors.NameDuplicateGroups(ctx)
	if err != nil {
		return nil, err
	}

	idSet := make(map[int64]struct{})
	var ids []int64
	collect := func(groups []models.DonorIDGroup) {
		for _, g := range groups {
			for _, id := range g.DonorIDs {
				if _, seen := idSet[id]; !seen {
					idSet[id] = struct{}{}
					ids = append(ids, id)
				}
			}
		}
	}
	collect(emailGroups)
	collect(nameGroups)

	donors, err := s.donors.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	donorsByID := make(map[int64]models.Donor, len(donors))
	for _, d := range donors {
		donorsByID[d.ID] = d
	}

	assemble := func(field string, groups []models.DonorIDGroup) []DuplicateGroup {
		out := make([]DuplicateGroup, 0, len(groups))
		for _, g := range groups {
			group := DuplicateGroup{
				Field:  field,
				Value:  g.Value,
				Count:  g.Count,
				Donors: make([]models.Donor, 0, len(g.DonorIDs)),
			}
			for _, id := range g.DonorIDs {
				if d, ok := donorsByID[id]; ok {
					group.Donors = append(group.Donors, d)
				}
			}
			out = append(out, group)
		}
		return out
	}

	result := assemble(FieldEmail, emailGroups)
	result = append(result, assemble(FieldName, nameGroups)...)

	metrics.DuplicateScansTotal.Inc()
	s.logger.WithContext(ctx).WithFields(map[string]any{"groups": len(result)}).Info("Duplicate scan complete")
	return result, nil
}
