package ownership

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/buildmart/internal/entity"
	"github.com/Additional-Code/buildmart/internal/testutil/memstore"
	"github.com/Additional-Code/buildmart/pkg/errorbank"
)

func setup(t *testing.T) (*Resolver, *memstore.DB) {
	t.Helper()
	db := memstore.New()
	db.PutCompany(entity.Company{ID: "acme", OwnerID: "client-1", Name: "Acme Build"})
	db.PutTender(entity.Tender{ID: "t-personal", ClientID: "client-1", Status: entity.TenderPublished})
	db.PutTender(entity.Tender{ID: "t-company", ClientID: "acme", Status: entity.TenderDraft})
	db.PutApplication(entity.Application{ID: "a1", TenderID: "t-company", ContractorID: "builder-1", Status: entity.ApplicationPending})

	r := NewResolver(Params{
		Tenders:      db.Tenders(),
		Applications: db.Applications(),
		Companies:    db.Companies(),
	})
	return r, db
}

func TestControllingIdentities(t *testing.T) {
	r, _ := setup(t)
	ctx := context.Background()

	ids, err := r.ControllingIdentities(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"acme", "client-1"}, ids.IDs())

	anon, err := r.ControllingIdentities(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, anon)
}

func TestIsOwnerTender(t *testing.T) {
	r, _ := setup(t)
	ctx := context.Background()

	ok, err := r.IsOwner(ctx, "client-1", KindTender, "t-personal")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.IsOwner(ctx, "client-1", KindTender, "t-company")
	require.NoError(t, err)
	assert.True(t, ok, "company owner controls company tenders")

	ok, err = r.IsOwner(ctx, "builder-1", KindTender, "t-personal")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = r.IsOwner(ctx, "", KindTender, "t-personal")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = r.IsOwner(ctx, "client-1", KindTender, "missing")
	assert.True(t, errorbank.Is(err, errorbank.KindNotFound))
}

func TestIsOwnerCompanyAndApplication(t *testing.T) {
	r, _ := setup(t)
	ctx := context.Background()

	ok, err := r.IsOwner(ctx, "client-1", KindCompany, "acme")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.IsOwner(ctx, "builder-1", KindCompany, "acme")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = r.IsOwner(ctx, "client-1", KindApplication, "a1")
	assert.True(t, errorbank.Is(err, errorbank.KindValidation))
}

func TestApplicationChecks(t *testing.T) {
	r, _ := setup(t)
	ctx := context.Background()

	ok, err := r.IsApplicant(ctx, "builder-1", "a1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.IsApplicant(ctx, "client-1", "a1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = r.OwnsParentTender(ctx, "client-1", "a1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.OwnsParentTender(ctx, "builder-1", "a1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = r.OwnsParentTender(ctx, "client-1", "nope")
	assert.True(t, errorbank.Is(err, errorbank.KindNotFound))
}

func TestStorageFailuresSurfaceAsUnavailable(t *testing.T) {
	r, db := setup(t)
	ctx := context.Background()

	db.FailOn("tenders.GetByID", errors.New("connection reset"))
	_, err := r.IsOwner(ctx, "client-1", KindTender, "t-personal")
	assert.True(t, errorbank.Is(err, errorbank.KindStorageUnavailable))

	db.FailOn("tenders.GetByID", nil)
	db.FailOn("companies.ListIDsByOwner", errors.New("timeout"))
	_, err = r.IsOwner(ctx, "client-1", KindTender, "t-company")
	assert.True(t, errorbank.Is(err, errorbank.KindStorageUnavailable))
}

func TestCancelledContext(t *testing.T) {
	r, _ := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.IsApplicant(ctx, "builder-1", "a1")
	assert.True(t, errorbank.Is(err, errorbank.KindStorageUnavailable))
}
