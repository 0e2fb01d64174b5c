package dedup

import (
	"context"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/givestack/donorid/pkg/models"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(m ectologger.EctoLogMessage) {})
}

type fakeScannerDonorStore struct {
	emailGroups []models.DonorIDGroup
	nameGroups  []models.DonorIDGroup
	donors      []models.Donor

	getByIDsCalls int
	requestedIDs  []int64
}

func (f *fakeScannerDonorStore) EmailDuplicateGroups(ctx context.Context) ([]models.DonorIDGroup, error) {
	return f.emailGroups, nil
}

func (f *fakeScannerDonorStore) NameDuplicateGroups(ctx context.Context) ([]models.DonorIDGroup, error) {
	return f.nameGroups, nil
}

func (f *fakeScannerDonorStore) GetByIDs(ctx context.Context, ids []int64) ([]models.Donor, error) {
	f.getByIDsCalls++
	f.requestedIDs = ids
	return f.donors, nil
}

func TestScannerScan(t *testing.T) {
	store := &fakeScannerDonorStore{
		emailGroups: []models.DonorIDGroup{
			{Value: "jane@example.com", Count: 2, DonorIDs: pq.Int64Array{1, 2}},
		},
		nameGroups: []models.DonorIDGroup{
			{Value: "jane doe", Count: 3, DonorIDs: pq.Int64Array{1, 2, 3}},
		},
		donors: []models.Donor{
			{ID: 1, FirstName: "Jane", LastName: "Doe", Email: "jane@example.com"},
			{ID: 2, FirstName: "Jane", LastName: "Doe", Email: "jane@example.com"},
			{ID: 3, FirstName: "Jane", LastName: "Doe"},
		},
	}

	scanner := NewScanner(store, testLogger())

	groups, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 2)

	assert.Equal(t, 1, store.getByIDsCalls, "donors are fetched once for the union of ids")
	assert.Equal(t, []int64{1, 2, 3}, store.requestedIDs)

	emailGroup := groups[0]
	assert.Equal(t, FieldEmail, emailGroup.Field)
	assert.Equal(t, "jane@example.com", emailGroup.Value)
	assert.Equal(t, 2, emailGroup.Count)
	require.Len(t, emailGroup.Donors, 2)
	assert.Equal(t, int64(1), emailGroup.Donors[0].ID)

	nameGroup := groups[1]
	assert.Equal(t, FieldName, nameGroup.Field)
	assert.Equal(t, "jane doe", nameGroup.Value)
	require.Len(t, nameGroup.Donors, 3)
}

func TestScannerScanNoDuplicates(t *testing.T) {
	store := &fakeScannerDonorStore{}
	scanner := NewScanner(store, testLogger())

	groups, err := scanner.Scan(context.Background())
	require.NoError(t, err)

	assert.Empty(t, groups)
}
