package matching

import (
	"context"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/givestack/donorid/pkg/models"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(m ectologger.EctoLogMessage) {})
}

type fakeDonorStore struct {
	byEmail      *models.Donor
	byName       *models.Donor
	fuzzyName    []models.DonorMatch
	fuzzyAddress []models.DonorMatch
	nextID       int64

	emailCalls        int
	nameCalls         int
	fuzzyNameCalls    int
	fuzzyAddressCalls int
	createCalls       int
	created           []*models.Donor
}

func (f *fakeDonorStore) Create(ctx context.Context, d *models.Donor) (*models.Donor, error) {
	f.createCalls++
	f.nextID++
	d.ID = f.nextID
	f.created = append(f.created, d)
	return d, nil
}

func (f *fakeDonorStore) FindByEmail(ctx context.Context, email string) (*models.Donor, error) {
	f.emailCalls++
	return f.byEmail, nil
}

func (f *fakeDonorStore) FindByName(ctx context.Context, firstName, lastName string) (*models.Donor, error) {
	f.nameCalls++
	return f.byName, nil
}

func (f *fakeDonorStore) FindFuzzyName(ctx context.Context, firstName, lastName, zip string, threshold float64, limit int) ([]models.DonorMatch, error) {
	f.fuzzyNameCalls++
	return f.fuzzyName, nil
}

func (f *fakeDonorStore) FindFuzzyAddress(ctx context.Context, lastName, address string, threshold float64, limit int) ([]models.DonorMatch, error) {
	f.fuzzyAddressCalls++
	return f.fuzzyAddress, nil
}

type fakeDonationStore struct {
	linked  map[int64]int64
	pending map[int64]bool
}

func newFakeDonationStore() *fakeDonationStore {
	return &fakeDonationStore{
		linked:  make(map[int64]int64),
		pending: make(map[int64]bool),
	}
}

func (f *fakeDonationStore) LinkDonor(ctx context.Context, donationID, donorID int64) error {
	f.linked[donationID] = donorID
	return nil
}

func (f *fakeDonationStore) MarkPending(ctx context.Context, donationID int64) error {
	f.pending[donationID] = true
	return nil
}

type fakeCandidateStore struct {
	staged []*models.ResolutionCandidate
}

func (f *fakeCandidateStore) CreateBatch(ctx context.Context, candidates []*models.ResolutionCandidate) error {
	f.staged = append(f.staged, candidates...)
	return nil
}

func newTestMatcher(donors *fakeDonorStore, donations *fakeDonationStore, candidates *fakeCandidateStore) *Matcher {
	return NewMatcher(donors, donations, candidates, DefaultOptions(), testLogger())
}

func TestResolveAlreadyResolved(t *testing.T) {
	donors := &fakeDonorStore{}
	donations := newFakeDonationStore()
	candidates := &fakeCandidateStore{}
	matcher := newTestMatcher(donors, donations, candidates)

	donorID := int64(42)
	donation := &models.Donation{ID: 1, DonorID: &donorID, Email: "jane@example.com"}

	outcome, err := matcher.Resolve(context.Background(), donation)
	require.NoError(t, err)

	assert.True(t, outcome.Resolved)
	assert.Equal(t, TierAlreadyResolved, outcome.Tier)
	assert.Equal(t, donorID, outcome.DonorID)
	assert.Zero(t, donors.emailCalls, "no lookups should run for an attributed donation")
	assert.Empty(t, donations.linked, "no writes should happen")
}

func TestResolveExactEmail(t *testing.T) {
	donors := &fakeDonorStore{byEmail: &models.Donor{ID: 7, Email: "jane@example.com"}}
	donations := newFakeDonationStore()
	candidates := &fakeCandidateStore{}
	matcher := newTestMatcher(donors, donations, candidates)

	donation := &models.Donation{ID: 1, Email: "Jane@Example.com", FirstName: "Jane", LastName: "Doe"}

	outcome, err := matcher.Resolve(context.Background(), donation)
	require.NoError(t, err)

	assert.True(t, outcome.Resolved)
	assert.Equal(t, TierExactEmail, outcome.Tier)
	assert.Equal(t, int64(7), outcome.DonorID)
	assert.Equal(t, int64(7), donations.linked[1])
	assert.Zero(t, donors.nameCalls, "later tiers should not run")
	require.NotNil(t, donation.DonorID)
	assert.Equal(t, int64(7), *donation.DonorID)
	assert.Equal(t, models.ResolutionStatusResolved, donation.ResolutionStatus)
}

func TestResolveSkipsUnusableEmail(t *testing.T) {
	donors := &fakeDonorStore{byName: &models.Donor{ID: 9}}
	donations := newFakeDonationStore()
	candidates := &fakeCandidateStore{}
	matcher := newTestMatcher(donors, donations, candidates)

	// too short and missing @, so tier 1 is skipped entirely
	donation := &models.Donation{ID: 1, Email: "x", FirstName: "Jane", LastName: "Doe"}

	outcome, err := matcher.Resolve(context.Background(), donation)
	require.NoError(t, err)

	assert.Zero(t, donors.emailCalls)
	assert.Equal(t, TierExactName, outcome.Tier)
	assert.Equal(t, int64(9), outcome.DonorID)
}

func TestResolveExactName(t *testing.T) {
	donors := &fakeDonorStore{byName: &models.Donor{ID: 3, FirstName: "Jane", LastName: "Doe"}}
	donations := newFakeDonationStore()
	candidates := &fakeCandidateStore{}
	matcher := newTestMatcher(donors, donations, candidates)

	donation := &models.Donation{ID: 2, FirstName: "jane", LastName: "doe"}

	outcome, err := matcher.Resolve(context.Background(), donation)
	require.NoError(t, err)

	assert.True(t, outcome.Resolved)
	assert.Equal(t, TierExactName, outcome.Tier)
	assert.Equal(t, int64(3), donations.linked[2])
}

func TestResolveFuzzyNameStagesCandidates(t *testing.T) {
	donors := &fakeDonorStore{
		fuzzyName: []models.DonorMatch{
			{Donor: models.Donor{ID: 11, FirstName: "Margret"}, Score: 0.62},
			{Donor: models.Donor{ID: 12, FirstName: "Margo"}, Score: 0.41},
		},
	}
	donations := newFakeDonationStore()
	candidates := &fakeCandidateStore{}
	matcher := newTestMatcher(donors, donations, candidates)

	donation := &models.Donation{ID: 5, FirstName: "Margaret", LastName: "Smith", Zip: "97205"}

	outcome, err := matcher.Resolve(context.Background(), donation)
	require.NoError(t, err)

	assert.False(t, outcome.Resolved, "fuzzy hits must never auto-link")
	assert.Equal(t, TierFuzzyName, outcome.Tier)
	assert.Empty(t, donations.linked)
	assert.True(t, donations.pending[5])
	assert.Equal(t, models.ResolutionStatusPending, donation.ResolutionStatus)

	require.Len(t, candidates.staged, 2)
	assert.Equal(t, int64(11), candidates.staged[0].DonorID)
	assert.Equal(t, 0.62, candidates.staged[0].Score)
	assert.Equal(t, models.CandidateReasonFuzzyName, candidates.staged[0].Reason)
	assert.Equal(t, "Margaret", candidates.staged[0].Details.Data.QueryValue)
	assert.Equal(t, "Margret", candidates.staged[0].Details.Data.MatchedValue)

	assert.Zero(t, donors.fuzzyAddressCalls, "tier 4 must not run once tier 3 staged")
	assert.Zero(t, donors.createCalls)
}

func TestResolveFuzzyNameRequiresZip(t *testing.T) {
	donors := &fakeDonorStore{
		fuzzyName: []models.DonorMatch{{Donor: models.Donor{ID: 11}, Score: 0.9}},
	}
	donations := newFakeDonationStore()
	candidates := &fakeCandidateStore{}
	matcher := newTestMatcher(donors, donations, candidates)

	donation := &models.Donation{ID: 5, FirstName: "Margaret", LastName: "Smith", Zip: "9720"}

	outcome, err := matcher.Resolve(context.Background(), donation)
	require.NoError(t, err)

	assert.Zero(t, donors.fuzzyNameCalls, "a short zip disables the fuzzy name tier")
	assert.Equal(t, TierNewDonor, outcome.Tier)
}

func TestResolveFuzzyAddressWhenNameTierEmpty(t *testing.T) {
	donors := &fakeDonorStore{
		fuzzyAddress: []models.DonorMatch{
			{Donor: models.Donor{ID: 21, Address: "123 Main St"}, Score: 0.8},
		},
	}
	donations := newFakeDonationStore()
	candidates := &fakeCandidateStore{}
	matcher := newTestMatcher(donors, donations, candidates)

	donation := &models.Donation{ID: 6, FirstName: "Jane", LastName: "Doe", Zip: "97205", Address: "123 Main Street"}

	outcome, err := matcher.Resolve(context.Background(), donation)
	require.NoError(t, err)

	assert.Equal(t, 1, donors.fuzzyNameCalls, "tier 3 ran first and found nothing")
	assert.Equal(t, TierFuzzyAddress, outcome.Tier)
	assert.True(t, donations.pending[6])

	require.Len(t, candidates.staged, 1)
	assert.Equal(t, models.CandidateReasonFuzzyAddress, candidates.staged[0].Reason)
	assert.Equal(t, "123 Main Street", candidates.staged[0].Details.Data.QueryValue)
	assert.Equal(t, "123 Main St", candidates.staged[0].Details.Data.MatchedValue)
}

func TestResolveFuzzyAddressRequiresLongAddress(t *testing.T) {
	donors := &fakeDonorStore{
		fuzzyAddress: []models.DonorMatch{{Donor: models.Donor{ID: 21}, Score: 0.8}},
	}
	donations := newFakeDonationStore()
	candidates := &fakeCandidateStore{}
	matcher := newTestMatcher(donors, donations, candidates)

	donation := &models.Donation{ID: 6, FirstName: "Jane", LastName: "Doe", Address: "12345"}

	outcome, err := matcher.Resolve(context.Background(), donation)
	require.NoError(t, err)

	assert.Zero(t, donors.fuzzyAddressCalls)
	assert.Equal(t, TierNewDonor, outcome.Tier)
}

func TestResolveCreatesNewDonor(t *testing.T) {
	donors := &fakeDonorStore{nextID: 99}
	donations := newFakeDonationStore()
	candidates := &fakeCandidateStore{}
	matcher := newTestMatcher(donors, donations, candidates)

	donation := &models.Donation{
		ID:        8,
		FirstName: "Jane",
		LastName:  "Doe",
		Email:     "jane@example.com",
		Phone:     "555-1234",
		Address:   "44 Elm St",
		City:      "Portland",
		State:     "OR",
		Zip:       "97205",
	}

	outcome, err := matcher.Resolve(context.Background(), donation)
	require.NoError(t, err)

	assert.True(t, outcome.Resolved)
	assert.Equal(t, TierNewDonor, outcome.Tier)
	assert.Equal(t, int64(100), outcome.DonorID)
	assert.Equal(t, int64(100), donations.linked[8])

	require.Len(t, donors.created, 1)
	created := donors.created[0]
	assert.Equal(t, "Jane", created.FirstName)
	assert.Equal(t, "Doe", created.LastName)
	assert.Equal(t, "jane@example.com", created.Email)
	assert.Equal(t, "44 Elm St", created.Address)
	assert.Equal(t, "97205", created.Zip)
}

func TestResolveCreatesNewDonorFromEmailOnly(t *testing.T) {
	donors := &fakeDonorStore{}
	donations := newFakeDonationStore()
	candidates := &fakeCandidateStore{}
	matcher := newTestMatcher(donors, donations, candidates)

	donation := &models.Donation{ID: 9, Email: "anon@example.com"}

	outcome, err := matcher.Resolve(context.Background(), donation)
	require.NoError(t, err)

	assert.Equal(t, TierNewDonor, outcome.Tier)
	assert.Equal(t, 1, donors.createCalls)
}

func TestResolveInsufficientData(t *testing.T) {
	donors := &fakeDonorStore{}
	donations := newFakeDonationStore()
	candidates := &fakeCandidateStore{}
	matcher := newTestMatcher(donors, donations, candidates)

	donation := &models.Donation{ID: 10, FirstName: "Jane"}

	outcome, err := matcher.Resolve(context.Background(), donation)
	require.NoError(t, err)

	assert.False(t, outcome.Resolved)
	assert.Equal(t, TierInsufficientData, outcome.Tier)
	assert.Zero(t, donors.createCalls)
	assert.Empty(t, donations.linked)
	assert.Empty(t, donations.pending)
}
