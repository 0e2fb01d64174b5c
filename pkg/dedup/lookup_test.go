package dedup

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/givestack/donorid/pkg/matching"
	"github.com/givestack/donorid/pkg/models"
)

type fakeLookupDonorStore struct {
	pool      []models.Donor
	poolLimit int
}

func (f *fakeLookupDonorStore) FindLookupPool(ctx context.Context, firstName, lastName, email, address string, limit int) ([]models.Donor, error) {
	f.poolLimit = limit
	return f.pool, nil
}

func TestLookupRanksBySimilarity(t *testing.T) {
	store := &fakeLookupDonorStore{
		pool: []models.Donor{
			{ID: 1, FirstName: "Margret", LastName: "Smith"},
			{ID: 2, FirstName: "Xavier", LastName: "Nguyen"},
			{ID: 3, FirstName: "Margaret", LastName: "Smith"},
		},
	}
	lookup := NewLookup(store, matching.NewTrigramScorer(), 10, testLogger())

	matches, err := lookup.FindDuplicates(context.Background(), LookupQuery{
		FirstName: "Margaret",
		LastName:  "Smith",
	})
	require.NoError(t, err)
	require.Len(t, matches, 2, "the unrelated donor scores zero and is dropped")

	assert.Equal(t, int64(3), matches[0].Donor.ID, "the exact name ranks first")
	assert.Equal(t, 1.0, matches[0].Score)
	assert.Equal(t, int64(1), matches[1].Donor.ID)
	assert.Greater(t, matches[1].Score, 0.5)
	assert.Less(t, matches[1].Score, 1.0)
}

func TestLookupExactEmailWins(t *testing.T) {
	store := &fakeLookupDonorStore{
		pool: []models.Donor{
			{ID: 1, FirstName: "Jane", LastName: "Doe", Email: "other@example.com"},
			{ID: 2, FirstName: "Janet", LastName: "Doe", Email: "jane@example.com"},
		},
	}
	lookup := NewLookup(store, matching.NewTrigramScorer(), 10, testLogger())

	matches, err := lookup.FindDuplicates(context.Background(), LookupQuery{
		FirstName: "Jane",
		Email:     "JANE@example.com",
	})
	require.NoError(t, err)
	require.NotEmpty(t, matches)

	assert.Equal(t, int64(2), matches[0].Donor.ID)
	assert.Equal(t, 1.0, matches[0].Score)
}

func TestLookupAppliesLimit(t *testing.T) {
	store := &fakeLookupDonorStore{
		pool: []models.Donor{
			{ID: 1, LastName: "Smith"},
			{ID: 2, LastName: "Smith"},
			{ID: 3, LastName: "Smith"},
		},
	}
	lookup := NewLookup(store, matching.NewTrigramScorer(), 10, testLogger())

	matches, err := lookup.FindDuplicates(context.Background(), LookupQuery{
		LastName: "Smith",
		Limit:    2,
	})
	require.NoError(t, err)

	assert.Len(t, matches, 2)
	assert.Equal(t, 2*lookupPoolFactor, store.poolLimit, "the recall pool scales with the limit")
}

func TestLookupDropsZeroScores(t *testing.T) {
	store := &fakeLookupDonorStore{
		pool: []models.Donor{
			{ID: 1, LastName: ""},
		},
	}
	lookup := NewLookup(store, matching.NewTrigramScorer(), 10, testLogger())

	matches, err := lookup.FindDuplicates(context.Background(), LookupQuery{LastName: "Smith"})
	require.NoError(t, err)

	assert.Empty(t, matches)
}

func TestLookupDefaultLimit(t *testing.T) {
	store := &fakeLookupDonorStore{}
	lookup := NewLookup(store, matching.NewTrigramScorer(), 25, testLogger())

	_, err := lookup.FindDuplicates(context.Background(), LookupQuery{LastName: "Smith"})
	require.NoError(t, err)

	assert.Equal(t, 25*lookupPoolFactor, store.poolLimit)
}
