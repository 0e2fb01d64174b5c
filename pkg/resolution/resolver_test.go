package resolution

import (
	"context"
	"database/sql"
	"net/http"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/givestack/donorid/pkg/database"
	"github.com/givestack/donorid/pkg/models"
)

type fakeTx struct {
	database.Tx
	open      bool
	commits   int
	rollbacks int
}

func (t *fakeTx) IsOpen() bool { return t.open }

func (t *fakeTx) Commit(ctx context.Context) error {
	t.commits++
	t.open = false
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if t.open {
		t.rollbacks++
		t.open = false
	}
	return nil
}

type fakeDB struct {
	database.DB
	txs []*fakeTx
}

func (f *fakeDB) GetTx(ctx context.Context, opts *sql.TxOptions) (context.Context, database.Tx, error) {
	tx := &fakeTx{open: true}
	f.txs = append(f.txs, tx)
	return ctx, tx, nil
}

type fakeResolverDonationStore struct {
	donation *models.Donation
	getErr   error
	linked   map[int64]int64
}

func (f *fakeResolverDonationStore) GetByID(ctx context.Context, id int64) (*models.Donation, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.donation, nil
}

func (f *fakeResolverDonationStore) LinkDonor(ctx context.Context, donationID, donorID int64) error {
	if f.linked == nil {
		f.linked = make(map[int64]int64)
	}
	f.linked[donationID] = donorID
	return nil
}

type fakeResolverDonorStore struct {
	created []*models.Donor
	nextID  int64
}

func (f *fakeResolverDonorStore) Create(ctx context.Context, d *models.Donor) (*models.Donor, error) {
	f.nextID++
	d.ID = f.nextID
	f.created = append(f.created, d)
	return d, nil
}

type fakeResolverCandidateStore struct {
	deleted []int64
}

func (f *fakeResolverCandidateStore) DeleteByDonation(ctx context.Context, donationID int64) error {
	f.deleted = append(f.deleted, donationID)
	return nil
}

func TestResolverLink(t *testing.T) {
	db := &fakeDB{}
	donations := &fakeResolverDonationStore{}
	donors := &fakeResolverDonorStore{}
	candidates := &fakeResolverCandidateStore{}
	resolver := NewResolver(db, donations, donors, candidates, testLogger())

	candidateID := int64(42)
	donorID, err := resolver.Resolve(context.Background(), 7, ActionLink, &candidateID)
	require.NoError(t, err)

	assert.Equal(t, int64(42), donorID)
	assert.Equal(t, int64(42), donations.linked[7])
	assert.Equal(t, []int64{7}, candidates.deleted, "candidates are cleared after the decision")
	assert.Empty(t, donors.created)

	require.Len(t, db.txs, 1)
	assert.Equal(t, 1, db.txs[0].commits)
	assert.Equal(t, 0, db.txs[0].rollbacks)
}

func TestResolverLinkRequiresCandidate(t *testing.T) {
	db := &fakeDB{}
	resolver := NewResolver(db, &fakeResolverDonationStore{}, &fakeResolverDonorStore{}, &fakeResolverCandidateStore{}, testLogger())

	_, err := resolver.Resolve(context.Background(), 7, ActionLink, nil)
	require.Error(t, err)

	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
	assert.Empty(t, db.txs, "no transaction is opened for an invalid request")
}

func TestResolverUnknownAction(t *testing.T) {
	db := &fakeDB{}
	resolver := NewResolver(db, &fakeResolverDonationStore{}, &fakeResolverDonorStore{}, &fakeResolverCandidateStore{}, testLogger())

	_, err := resolver.Resolve(context.Background(), 7, Action("merge"), nil)
	require.Error(t, err)

	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
}

func TestResolverCreateNew(t *testing.T) {
	db := &fakeDB{}
	donations := &fakeResolverDonationStore{
		donation: &models.Donation{
			ID:        7,
			FirstName: "Jane",
			LastName:  "Doe",
			Email:     "jane@example.com",
			Address:   "44 Elm St",
			Zip:       "97205",
		},
	}
	donors := &fakeResolverDonorStore{nextID: 500}
	candidates := &fakeResolverCandidateStore{}
	resolver := NewResolver(db, donations, donors, candidates, testLogger())

	donorID, err := resolver.Resolve(context.Background(), 7, ActionCreateNew, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(501), donorID)
	assert.Equal(t, int64(501), donations.linked[7])
	assert.Equal(t, []int64{7}, candidates.deleted)

	require.Len(t, donors.created, 1)
	assert.Equal(t, "Jane", donors.created[0].FirstName)
	assert.Equal(t, "jane@example.com", donors.created[0].Email)

	require.Len(t, db.txs, 1)
	assert.Equal(t, 1, db.txs[0].commits)
}

func TestResolverCreateNewMissingDonation(t *testing.T) {
	db := &fakeDB{}
	donations := &fakeResolverDonationStore{
		getErr: httperror.NewHTTPError(http.StatusNotFound, "donation 7 not found"),
	}
	candidates := &fakeResolverCandidateStore{}
	resolver := NewResolver(db, donations, &fakeResolverDonorStore{}, candidates, testLogger())

	_, err := resolver.Resolve(context.Background(), 7, ActionCreateNew, nil)
	require.Error(t, err)

	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
	assert.Empty(t, candidates.deleted)

	require.Len(t, db.txs, 1)
	assert.Equal(t, 0, db.txs[0].commits)
	assert.Equal(t, 1, db.txs[0].rollbacks, "the failed decision rolls back")
}
