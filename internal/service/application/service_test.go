package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/buildmart/internal/entity"
	"github.com/Additional-Code/buildmart/internal/identity"
	"github.com/Additional-Code/buildmart/internal/service/lifecycle"
	"github.com/Additional-Code/buildmart/internal/service/ownership"
	tendersvc "github.com/Additional-Code/buildmart/internal/service/tender"
	"github.com/Additional-Code/buildmart/internal/testutil/memstore"
	"github.com/Additional-Code/buildmart/pkg/errorbank"
)

var (
	clientC     = identity.Principal{ID: "client-c"}
	contractorX = identity.Principal{ID: "contractor-x"}
	contractorY = identity.Principal{ID: "contractor-y"}
)

type fixture struct {
	db      *memstore.DB
	tenders *tendersvc.Service
	apps    *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := memstore.New()
	resolver := ownership.NewResolver(ownership.Params{
		Tenders:      db.Tenders(),
		Applications: db.Applications(),
		Companies:    db.Companies(),
	})
	tenders := tendersvc.NewService(tendersvc.Params{Store: db.Tenders(), Resolver: resolver})
	coord, err := lifecycle.NewCoordinator(lifecycle.Params{
		Tenders:      db.Tenders(),
		Applications: db.Applications(),
		Transactor:   db.Transactor(),
		Resolver:     resolver,
		Evicter:      tenders,
	})
	require.NoError(t, err)
	apps := NewService(Params{
		Store:       db.Applications(),
		Tenders:     db.Tenders(),
		Resolver:    resolver,
		Coordinator: coord,
	})
	return &fixture{db: db, tenders: tenders, apps: apps}
}

func ptr[T any](v T) *T { return &v }

func (f *fixture) roofTender(t *testing.T) *entity.Tender {
	t.Helper()
	tender, err := f.tenders.Create(context.Background(), clientC, tendersvc.CreateInput{
		Title:       "Roof repair",
		Description: "Replace broken tiles",
		BudgetMin:   ptr(1000.0),
		BudgetMax:   ptr(5000.0),
	})
	require.NoError(t, err)
	require.Equal(t, entity.TenderPublished, tender.Status)
	return tender
}

func TestSubmitThenAccept(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tender := f.roofTender(t)

	app, err := f.apps.Submit(ctx, contractorX, SubmitInput{TenderID: tender.ID, Proposal: "I can do it", Budget: ptr(4000.0)})
	require.NoError(t, err)
	assert.Equal(t, entity.ApplicationPending, app.Status)
	assert.Equal(t, contractorX.ID, app.ContractorID)

	stored, _ := f.db.Tender(tender.ID)
	assert.Equal(t, entity.TenderPublished, stored.Status)

	accepted, err := f.apps.UpdateStatus(ctx, clientC, app.ID, entity.ApplicationAccepted)
	require.NoError(t, err)
	assert.Equal(t, entity.ApplicationAccepted, accepted.Status)

	stored, _ = f.db.Tender(tender.ID)
	assert.Equal(t, entity.TenderInProgress, stored.Status)
}

func TestSecondSubmitIsConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tender := f.roofTender(t)

	_, err := f.apps.Submit(ctx, contractorX, SubmitInput{TenderID: tender.ID, Proposal: "I can do it", Budget: ptr(4000.0)})
	require.NoError(t, err)

	_, err = f.apps.Submit(ctx, contractorX, SubmitInput{TenderID: tender.ID, Proposal: "Again", Budget: ptr(3900.0)})
	assert.True(t, errorbank.Is(err, errorbank.KindConflict), "got %v", err)
}

func TestStrangerCannotAccept(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tender := f.roofTender(t)
	app, err := f.apps.Submit(ctx, contractorX, SubmitInput{TenderID: tender.ID, Proposal: "I can do it", Budget: ptr(4000.0)})
	require.NoError(t, err)

	_, err = f.apps.UpdateStatus(ctx, contractorY, app.ID, entity.ApplicationAccepted)
	assert.True(t, errorbank.Is(err, errorbank.KindForbidden))

	_, err = f.apps.UpdateStatus(ctx, contractorX, app.ID, entity.ApplicationAccepted)
	assert.True(t, errorbank.Is(err, errorbank.KindForbidden), "applicants cannot accept their own bid")

	stored, _ := f.db.Application(app.ID)
	assert.Equal(t, entity.ApplicationPending, stored.Status)
}

func TestConcurrentSubmitsHaveOneWinner(t *testing.T) {
	f := newFixture(t)
	tender := f.roofTender(t)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.apps.Submit(context.Background(), contractorX, SubmitInput{TenderID: tender.ID, Proposal: "bid", Budget: ptr(100.0)})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errorbank.Is(err, errorbank.KindConflict), "got %v", err)
	}
	assert.Equal(t, 1, succeeded)
}

func TestSubmitRequiresPublishedTender(t *testing.T) {
	for _, status := range []entity.TenderStatus{entity.TenderDraft, entity.TenderInProgress, entity.TenderCompleted, entity.TenderCancelled} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(t)
			f.db.PutTender(entity.Tender{ID: "t1", ClientID: clientC.ID, Status: status})

			_, err := f.apps.Submit(context.Background(), contractorX, SubmitInput{TenderID: "t1", Proposal: "bid", Budget: ptr(1.0)})
			assert.True(t, errorbank.Is(err, errorbank.KindInvalidState), "got %v", err)
		})
	}
}

func TestSubmitRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tender := f.roofTender(t)
	f.db.PutCompany(entity.Company{ID: "x-builders", OwnerID: contractorX.ID, Name: "X Builders"})

	_, err := f.apps.Submit(ctx, identity.Anonymous, SubmitInput{TenderID: tender.ID, Proposal: "bid", Budget: ptr(1.0)})
	assert.True(t, errorbank.Is(err, errorbank.KindUnauthenticated))

	_, err = f.apps.Submit(ctx, contractorY, SubmitInput{TenderID: tender.ID, CompanyID: "x-builders", Proposal: "bid", Budget: ptr(1.0)})
	assert.True(t, errorbank.Is(err, errorbank.KindForbidden))

	_, err = f.apps.Submit(ctx, contractorX, SubmitInput{TenderID: "missing", Proposal: "bid", Budget: ptr(1.0)})
	assert.True(t, errorbank.Is(err, errorbank.KindNotFound))

	_, err = f.apps.Submit(ctx, clientC, SubmitInput{TenderID: tender.ID, Proposal: "bid", Budget: ptr(1.0)})
	assert.True(t, errorbank.Is(err, errorbank.KindForbidden), "owners cannot bid on their own tender")

	_, err = f.apps.Submit(ctx, contractorX, SubmitInput{TenderID: tender.ID, Proposal: "  ", Budget: ptr(1.0)})
	assert.True(t, errorbank.Is(err, errorbank.KindValidation))

	_, err = f.apps.Submit(ctx, contractorX, SubmitInput{TenderID: tender.ID, Proposal: "bid", Budget: ptr(-5.0)})
	assert.True(t, errorbank.Is(err, errorbank.KindValidation))

	app, err := f.apps.Submit(ctx, contractorX, SubmitInput{TenderID: tender.ID, CompanyID: "x-builders", Proposal: "bid", Budget: ptr(1.0)})
	require.NoError(t, err)
	assert.Equal(t, "x-builders", app.ContractorID)

	f.db.FailOn("applications.FindActive", errors.New("down"))
	_, err = f.apps.Submit(ctx, contractorY, SubmitInput{TenderID: tender.ID, Proposal: "bid", Budget: ptr(1.0)})
	assert.True(t, errorbank.Is(err, errorbank.KindStorageUnavailable))
}

func TestResubmitAfterWithdrawal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tender := f.roofTender(t)

	first, err := f.apps.Submit(ctx, contractorX, SubmitInput{TenderID: tender.ID, Proposal: "bid", Budget: ptr(1.0)})
	require.NoError(t, err)
	_, err = f.apps.UpdateStatus(ctx, contractorX, first.ID, entity.ApplicationWithdrawn)
	require.NoError(t, err)

	second, err := f.apps.Submit(ctx, contractorX, SubmitInput{TenderID: tender.ID, Proposal: "revised bid", Budget: ptr(2.0)})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestUpdateStatusTransitions(t *testing.T) {
	cases := []struct {
		name   string
		from   entity.ApplicationStatus
		to     entity.ApplicationStatus
		caller identity.Principal
		want   errorbank.Kind
	}{
		{"owner rejects pending", entity.ApplicationPending, entity.ApplicationRejected, clientC, ""},
		{"applicant withdraws pending", entity.ApplicationPending, entity.ApplicationWithdrawn, contractorX, ""},
		{"owner rejects accepted", entity.ApplicationAccepted, entity.ApplicationRejected, clientC, ""},
		{"applicant cannot reject", entity.ApplicationPending, entity.ApplicationRejected, contractorX, errorbank.KindForbidden},
		{"owner cannot withdraw", entity.ApplicationPending, entity.ApplicationWithdrawn, clientC, errorbank.KindForbidden},
		{"rejected again", entity.ApplicationRejected, entity.ApplicationRejected, clientC, errorbank.KindInvalidTransition},
		{"withdrawn to pending", entity.ApplicationWithdrawn, entity.ApplicationPending, contractorX, errorbank.KindInvalidTransition},
		{"pending to pending", entity.ApplicationPending, entity.ApplicationPending, contractorX, errorbank.KindInvalidTransition},
		{"accepted to withdrawn", entity.ApplicationAccepted, entity.ApplicationWithdrawn, contractorX, errorbank.KindInvalidTransition},
		{"stranger", entity.ApplicationPending, entity.ApplicationRejected, contractorY, errorbank.KindForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.db.PutTender(entity.Tender{ID: "t1", ClientID: clientC.ID, Status: entity.TenderInProgress})
			f.db.PutApplication(entity.Application{ID: "a1", TenderID: "t1", ContractorID: contractorX.ID, Status: tc.from})

			got, err := f.apps.UpdateStatus(context.Background(), tc.caller, "a1", tc.to)
			stored, _ := f.db.Application("a1")
			if tc.want == "" {
				require.NoError(t, err)
				assert.Equal(t, tc.to, got.Status)
				assert.Equal(t, tc.to, stored.Status)
				return
			}
			assert.True(t, errorbank.Is(err, tc.want), "got %v", err)
			assert.Equal(t, tc.from, stored.Status)
		})
	}
}

func TestRejectingAcceptedKeepsTenderInProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tender := f.roofTender(t)
	app, err := f.apps.Submit(ctx, contractorX, SubmitInput{TenderID: tender.ID, Proposal: "bid", Budget: ptr(1.0)})
	require.NoError(t, err)
	_, err = f.apps.Accept(ctx, clientC, app.ID)
	require.NoError(t, err)

	_, err = f.apps.UpdateStatus(ctx, clientC, app.ID, entity.ApplicationRejected)
	require.NoError(t, err)

	stored, _ := f.db.Tender(tender.ID)
	assert.Equal(t, entity.TenderInProgress, stored.Status)
}

func TestUpdateStatusValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.apps.UpdateStatus(ctx, identity.Anonymous, "a1", entity.ApplicationRejected)
	assert.True(t, errorbank.Is(err, errorbank.KindUnauthenticated))

	_, err = f.apps.UpdateStatus(ctx, clientC, "a1", entity.ApplicationStatus("approved"))
	assert.True(t, errorbank.Is(err, errorbank.KindValidation))

	_, err = f.apps.UpdateStatus(ctx, clientC, "missing", entity.ApplicationRejected)
	assert.True(t, errorbank.Is(err, errorbank.KindNotFound))
}

func TestListingAndGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	f.db.PutCompany(entity.Company{ID: "x-builders", OwnerID: contractorX.ID})
	f.db.PutTender(entity.Tender{ID: "t1", ClientID: clientC.ID, Status: entity.TenderPublished})
	f.db.PutTender(entity.Tender{ID: "t2", ClientID: "someone", Status: entity.TenderPublished})
	f.db.PutApplication(entity.Application{ID: "a1", TenderID: "t1", ContractorID: contractorX.ID, Status: entity.ApplicationPending, CreatedAt: base})
	f.db.PutApplication(entity.Application{ID: "a2", TenderID: "t1", ContractorID: contractorY.ID, Status: entity.ApplicationPending, CreatedAt: base.Add(time.Minute)})
	f.db.PutApplication(entity.Application{ID: "a3", TenderID: "t2", ContractorID: "x-builders", Status: entity.ApplicationPending, CreatedAt: base.Add(2 * time.Minute)})

	onTender, err := f.apps.ListForTender(ctx, clientC, "t1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a2", "a1"}, appIDs(onTender))

	_, err = f.apps.ListForTender(ctx, contractorX, "t1")
	assert.True(t, errorbank.Is(err, errorbank.KindForbidden))

	mine, err := f.apps.ListForContractor(ctx, contractorX)
	require.NoError(t, err)
	assert.Equal(t, []string{"a3", "a1"}, appIDs(mine))

	none, err := f.apps.ListForContractor(ctx, clientC)
	require.NoError(t, err)
	assert.Empty(t, none)

	got, err := f.apps.Get(ctx, clientC, "a2")
	require.NoError(t, err)
	assert.Equal(t, "a2", got.ID)

	got, err = f.apps.Get(ctx, contractorX, "a3")
	require.NoError(t, err)
	assert.Equal(t, "a3", got.ID)

	_, err = f.apps.Get(ctx, contractorY, "a1")
	assert.True(t, errorbank.Is(err, errorbank.KindNotFound))

	_, err = f.apps.ListForTender(ctx, clientC, "missing")
	assert.True(t, errorbank.Is(err, errorbank.KindNotFound))

	f.db.FailOn("tenders.GetByID", errors.New("down"))
	got, err = f.apps.Get(ctx, contractorY, "a2")
	require.NoError(t, err, "the applicant is answered before the tender is loaded")
	assert.Equal(t, "a2", got.ID)

	_, err = f.apps.Get(ctx, clientC, "a2")
	assert.True(t, errorbank.Is(err, errorbank.KindStorageUnavailable))

	_, err = f.apps.ListForTender(ctx, clientC, "t1")
	assert.True(t, errorbank.Is(err, errorbank.KindStorageUnavailable))
}

func appIDs(apps []entity.Application) []string {
	out := make([]string, 0, len(apps))
	for _, a := range apps {
		out = append(out, a.ID)
	}
	return out
}
