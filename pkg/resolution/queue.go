package resolution

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/givestack/donorid/pkg/models"
	"github.com/givestack/donorid/pkg/tracing"
)

// QueueDonationStore reads donations awaiting review.
type QueueDonationStore interface {
	ListPending(ctx context.Context) ([]models.Donation, error)
}

// QueueCandidateStore reads staged candidates.
type QueueCandidateStore interface {
	ListByDonations(ctx context.Context, donationIDs []int64) ([]models.ResolutionCandidate, error)
}

// QueueDonorStore bulk-fetches candidate donors.
type QueueDonorStore interface {
	GetByIDs(ctx context.Context, ids []int64) ([]models.Donor, error)
}

// QueueCandidate is a staged candidate joined with its donor record.
type QueueCandidate struct {
	models.ResolutionCandidate
	Donor *models.Donor `json:"donor"`
}

// QueueEntry is one pending donation with its review candidates, best
// score first.
type QueueEntry struct {
	Donation   models.Donation  `json:"donation"`
	Candidates []QueueCandidate `json:"candidates"`
}

// Queue assembles the human review queue.
type Queue struct {
	donations  QueueDonationStore
	candidates QueueCandidateStore
	donors     QueueDonorStore
	logger     ectologger.Logger
}

// NewQueue creates a new review queue reader.
func NewQueue(donations QueueDonationStore, candidates QueueCandidateStore, donors QueueDonorStore, logger ectologger.Logger) *Queue {
	return &Queue{
		donations:  donations,
		candidates: candidates,
		donors:     donors,
		logger:     logger,
	}
}

// ListPending reads every pending donation, then its candidates and their
// donors in two further round trips, and joins them client-side.
func (q *Queue) ListPending(ctx context.Context) ([]QueueEntry, error) {
	ctx, span := tracing.StartSpan(ctx, "resolution.Queue.ListPending")
	defer span.End()

	donations, err := q.donations.ListPending(ctx)
	if err != nil {
		return nil, err
	}
	if len(donations) == 0 {
		return []QueueEntry{}, nil
	}

	donationIDs := make([]int64, 0, len(donations))
	for _, d := range donations {
		donationIDs = append(donationIDs, d.ID)
	}

	candidates, err := q.candidates.ListByDonations(ctx, donationIDs)
	if err != nil {
		return nil, err
	}

	donorIDSet := make(map[int64]struct{})
	donorIDs := make([]int64, 0, len(candidates))
	for _, c := range candidates {
		if _, seen := donorIDSet[c.DonorID]; !seen {
			donorIDSet[c.DonorID] = struct{}{}
			donorIDs = append(donorIDs, c.DonorID)
		}
	}

	donors, err := q.donors.GetByIDs(ctx, donorIDs)
	if err != nil {
		return nil, err
	}

	donorsByID := make(map[int64]*models.Donor, len(donors))
	for i := range donors {
		donorsByID[donors[i].ID] = &donors[i]
	}

	// candidates arrive ordered by donation then score desc, so appending
	// preserves the review ordering
	byDonation := make(map[int64][]QueueCandidate, len(donations))
	for _, c := range candidates {
		byDonation[c.DonationID] = append(byDonation[c.DonationID], QueueCandidate{
			ResolutionCandidate: c,
			Donor:               donorsByID[c.DonorID],
		})
	}

	entries := make([]QueueEntry, 0, len(donations))
	for _, d := range donations {
		entries = append(entries, QueueEntry{
			Donation:   d,
			Candidates: byDonation[d.ID],
		})
	}

	q.logger.WithContext(ctx).WithFields(map[string]any{"entries": len(entries)}).Debug("Assembled resolution queue")
	return entries, nil
}
