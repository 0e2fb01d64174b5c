package matching

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/givestack/donorid/pkg/metrics"
	"github.com/givestack/donorid/pkg/models"
	"github.com/givestack/donorid/pkg/tracing"
)

// Match tiers, in evaluation order.
const (
	TierAlreadyResolved  = "already_resolved"
	TierExactEmail       = "exact_email"
	TierExactName        = "exact_name"
	TierFuzzyName        = "fuzzy_name"
	TierFuzzyAddress     = "fuzzy_address"
	TierNewDonor         = "new_donor"
	TierInsufficientData = "insufficient_data"
)

// DonorStore is the donor persistence the matcher depends on.
type DonorStore interface {
	Create(ctx context.Context, d *models.Donor) (*models.Donor, error)
	FindByEmail(ctx context.Context, email string) (*models.Donor, error)
	FindByName(ctx context.Context, firstName, lastName string) (*models.Donor, error)
	FindFuzzyName(ctx context.Context, firstName, lastName, zip string, threshold float64, limit int) ([]models.DonorMatch, error)
	FindFuzzyAddress(ctx context.Context, lastName, address string, threshold float64, limit int) ([]models.DonorMatch, error)
}

// DonationStore is the donation persistence the matcher depends on.
type DonationStore interface {
	LinkDonor(ctx context.Context, donationID, donorID int64) error
	MarkPending(ctx context.Context, donationID int64) error
}

// CandidateStore stages potential matches for human review.
type CandidateStore interface {
	CreateBatch(ctx context.Context, candidates []*models.ResolutionCandidate) error
}

// Options control the fuzzy tiers.
type Options struct {
	NameSimilarityThreshold    float64
	AddressSimilarityThreshold float64
	CandidateLimit             int
}

// DefaultOptions returns the production thresholds.
func DefaultOptions() Options {
	return Options{
		NameSimilarityThreshold:    0.3,
		AddressSimilarityThreshold: 0.6,
		CandidateLimit:             5,
	}
}

// Outcome is the result of resolving one donation.
type Outcome struct {
	DonationID int64                         `json:"donationId"`
	Resolved   bool                          `json:"resolved"`
	Tier       string                        `json:"tier"`
	DonorID    int64                         `json:"donorId,omitempty"`
	Candidates []*models.ResolutionCandidate `json:"candidates,omitempty"`
}

// Matcher attributes donations to donor identities through a tiered
// pipeline: exact email, exact name, fuzzy name, fuzzy address, then
// create-new. Fuzzy hits are never auto-linked; they are staged as
// resolution candidates and the donation is parked for human review.
type Matcher struct {
	donors     DonorStore
	donations  DonationStore
	candidates CandidateStore
	opts       Options
	logger     ectologger.Logger
}

// NewMatcher creates a new matcher.
func NewMatcher(donors DonorStore, donations DonationStore, candidates CandidateStore, opts Options, logger ectologger.Logger) *Matcher {
	if opts.CandidateLimit <= 0 {
		opts.CandidateLimit = DefaultOptions().CandidateLimit
	}
	return &Matcher{
		donors:     donors,
		donations:  donations,
		candidates: candidates,
		opts:       opts,
		logger:     logger,
	}
}

// Resolve runs the donation through the tiers, stopping at the first one
// that decides. A donation that already carries a donor id is returned
// untouched. Statements join an open transaction when the context carries
// one, so a caller can make the whole resolution a single unit of work.
func (m *Matcher) Resolve(ctx context.Context, donation *models.Donation) (*Outcome, error) {
	ctx, span := tracing.StartSpan(ctx, "matching.Matcher.Resolve")
	defer span.End()

	start := time.Now()
	defer func() {
		metrics.ResolutionDuration.Observe(time.Since(start).Seconds())
	}()

	log := m.logger.WithContext(ctx).WithFields(map[string]any{"donation_id": donation.ID})

	if donation.DonorID != nil {
		return m.outcome(log, &Outcome{
			DonationID: donation.ID,
			Resolved:   true,
			Tier:       TierAlreadyResolved,
			DonorID:    *donation.DonorID,
		}), nil
	}

	// Tier 1: exact email
	if donation.HasUsableEmail() {
		found, err := m.donors.FindByEmail(ctx, donation.Email)
		if err != nil {
			return nil, err
		}
		if found != nil {
			return m.link(ctx, log, donation, found.ID, TierExactEmail)
		}
	}

	hasName := donation.FirstName != "" && donation.LastName != ""

	// Tier 2: exact first + last name
	if hasName {
		found, err := m.donors.FindByName(ctx, donation.FirstName, donation.LastName)
		if err != nil {
			return nil, err
		}
		if found != nil {
			return m.link(ctx, log, donation, found.ID, TierExactName)
		}
	}

	// Tier 3: fuzzy first name, anchored on last name + zip
	if hasName && len(donation.Zip) >= 5 {
		matches, err := m.donors.FindFuzzyName(ctx, donation.FirstName, donation.LastName, donation.Zip, m.opts.NameSimilarityThreshold, m.opts.CandidateLimit)
		if err != nil {
			return nil, err
		}
		if len(matches) > 0 {
			return m.stage(ctx, log, donation, matches, models.CandidateReasonFuzzyName, donation.FirstName, TierFuzzyName)
		}
	}

	// Tier 4: fuzzy address, reached only when tier 3 staged nothing
	if donation.LastName != "" && len(donation.Address) > 5 {
		matches, err := m.donors.FindFuzzyAddress(ctx, donation.LastName, donation.Address, m.opts.AddressSimilarityThreshold, m.opts.CandidateLimit)
		if err != nil {
			return nil, err
		}
		if len(matches) > 0 {
			return m.stage(ctx, log, donation, matches, models.CandidateReasonFuzzyAddress, donation.Address, TierFuzzyAddress)
		}
	}

	// Tier 5: create a new donor from the snapshot
	if hasName || donation.HasUsableEmail() {
		created, err := m.donors.Create(ctx, &models.Donor{
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
			return nil, err
		}
		return m.link(ctx, log, donation, created.ID, TierNewDonor)
	}

	metrics.ResolutionsTotal.WithLabelValues(TierInsufficientData, "unmatched").Inc()
	log.Info("Donation has no usable identity fields, left unresolved")
	return &Outcome{DonationID: donation.ID, Tier: TierInsufficientData}, nil
}

func (m *Matcher) link(ctx context.Context, log ectologger.Logger, donation *models.Donation, donorID int64, tier string) (*Outcome, error) {
	if err := m.donations.LinkDonor(ctx, donation.ID, donorID); err != nil {
		return nil, err
	}

	donation.DonorID = &donorID
	donation.ResolutionStatus = models.ResolutionStatusResolved

	metrics.ResolutionsTotal.WithLabelValues(tier, "resolved").Inc()
	return m.outcome(log, &Outcome{
		DonationID: donation.ID,
		Resolved:   true,
		Tier:       tier,
		DonorID:    donorID,
	}), nil
}

func (m *Matcher) stage(ctx context.Context, log ectologger.Logger, donation *models.Donation, matches []models.DonorMatch, reason, queryValue, tier string) (*Outcome, error) {
	candidates := make([]*models.ResolutionCandidate, 0, len(matches))
	for _, match := range matches {
		matchedValue := match.FirstName
		if reason == models.CandidateReasonFuzzyAddress {
			matchedValue = match.Address
		}
		candidates = append(candidates, &models.ResolutionCandidate{
			DonationID: donation.ID,
			DonorID:    match.ID,
			Score:      match.Score,
			Reason:     reason,
			Details:    models.NewCandidateDetails(queryValue, matchedValue),
		})
	}

	if err := m.candidates.CreateBatch(ctx, candidates); err != nil {
		return nil, err
	}
	if err := m.donations.MarkPending(ctx, donation.ID); err != nil {
		return nil, err
	}

	donation.ResolutionStatus = models.ResolutionStatusPending

	metrics.ResolutionsTotal.WithLabelValues(tier, "pending").Inc()
	metrics.CandidatesStaged.WithLabelValues(reason).Add(float64(len(candidates)))
	return m.outcome(log, &Outcome{
		DonationID: donation.ID,
		Tier:       tier,
		Candidates: candidates,
	}), nil
}

func (m *Matcher) outcome(log ectologger.Logger, o *Outcome) *Outcome {
	log.WithFields(map[string]any{
		"tier":       o.Tier,
		"resolved":   o.Resolved,
		"donor_id":   o.DonorID,
		"candidates": len(o.Candidates),
	}).Info("Resolved donation")
	return o
}
