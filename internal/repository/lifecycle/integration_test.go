//go:build integration

package lifecycle_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/buildmart/internal/entity"
	"github.com/Additional-Code/buildmart/internal/repository"
	apprepo "github.com/Additional-Code/buildmart/internal/repository/application"
	companyrepo "github.com/Additional-Code/buildmart/internal/repository/company"
	"github.com/Additional-Code/buildmart/internal/repository/lifecycle"
	tenderrepo "github.com/Additional-Code/buildmart/internal/repository/tender"
	"github.com/Additional-Code/buildmart/internal/testutil/pgtest"
)

func seedTender(t *testing.T, repo *tenderrepo.Repository, clientID string, status entity.TenderStatus) *entity.Tender {
	t.Helper()
	now := time.Now().UTC()
	tender := &entity.Tender{
		ID:          uuid.NewString(),
		ClientID:    clientID,
		Title:       "Roof repair",
		Description: "Replace broken tiles",
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, repo.Create(context.Background(), tender))
	return tender
}

func newApplication(tenderID, contractorID string) *entity.Application {
	now := time.Now().UTC()
	return &entity.Application{
		ID:           uuid.NewString(),
		TenderID:     tenderID,
		ContractorID: contractorID,
		Proposal:     "I can do it",
		Budget:       4000,
		Status:       entity.ApplicationPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestPostgresRepositories(t *testing.T) {
	conns := pgtest.Connections(t)
	ctx := context.Background()

	tenders := tenderrepo.NewRepository(conns)
	apps := apprepo.NewRepository(conns)
	companies := companyrepo.NewRepository(conns)
	tx := lifecycle.NewRepository(conns)

	t.Run("active pair is unique", func(t *testing.T) {
		tender := seedTender(t, tenders, "client-c", entity.TenderPublished)
		first := newApplication(tender.ID, "contractor-x")
		require.NoError(t, apps.Create(ctx, first))

		err := apps.Create(ctx, newApplication(tender.ID, "contractor-x"))
		assert.ErrorIs(t, err, repository.ErrConflict)

		require.NoError(t, apps.UpdateStatus(ctx, first.ID, entity.ApplicationPending, entity.ApplicationWithdrawn, time.Now()))
		assert.NoError(t, apps.Create(ctx, newApplication(tender.ID, "contractor-x")))

		active, err := apps.FindActive(ctx, tender.ID, "contractor-x")
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, active.ID)
	})

	t.Run("guarded status writes", func(t *testing.T) {
		tender := seedTender(t, tenders, "client-c", entity.TenderDraft)
		err := tenders.UpdateStatus(ctx, tender.ID, entity.TenderPublished, entity.TenderCancelled, time.Now())
		assert.ErrorIs(t, err, repository.ErrStaleStatus)

		require.NoError(t, tenders.UpdateStatus(ctx, tender.ID, entity.TenderDraft, entity.TenderPublished, time.Now()))
		stored, err := tenders.GetByID(ctx, tender.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.TenderPublished, stored.Status)

		_, err = tenders.GetByID(ctx, uuid.NewString())
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("acceptance commits both rows", func(t *testing.T) {
		tender := seedTender(t, tenders, "client-c", entity.TenderPublished)
		app := newApplication(tender.ID, "contractor-y")
		require.NoError(t, apps.Create(ctx, app))

		err := tx.RunInTx(ctx, func(ctx context.Context, tx lifecycle.Tx) error {
			if err := tx.UpdateApplicationStatus(ctx, app.ID, entity.ApplicationPending, entity.ApplicationAccepted, time.Now()); err != nil {
				return err
			}
			return tx.UpdateTenderStatus(ctx, tender.ID, entity.TenderPublished, entity.TenderInProgress, time.Now())
		})
		require.NoError(t, err)

		storedApp, err := apps.GetByID(ctx, app.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.ApplicationAccepted, storedApp.Status)
		storedTender, err := tenders.GetByID(ctx, tender.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.TenderInProgress, storedTender.Status)
	})

	t.Run("failed acceptance rolls back", func(t *testing.T) {
		tender := seedTender(t, tenders, "client-c", entity.TenderCancelled)
		app := newApplication(tender.ID, "contractor-z")
		require.NoError(t, apps.Create(ctx, app))

		err := tx.RunInTx(ctx, func(ctx context.Context, tx lifecycle.Tx) error {
			if err := tx.UpdateApplicationStatus(ctx, app.ID, entity.ApplicationPending, entity.ApplicationAccepted, time.Now()); err != nil {
				return err
			}
			return tx.UpdateTenderStatus(ctx, tender.ID, entity.TenderPublished, entity.TenderInProgress, time.Now())
		})
		require.True(t, errors.Is(err, repository.ErrStaleStatus), "got %v", err)

		storedApp, err := apps.GetByID(ctx, app.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.ApplicationPending, storedApp.Status)
	})

	t.Run("listing and ownership lookups", func(t *testing.T) {
		company := &entity.Company{ID: uuid.NewString(), OwnerID: "owner-1", Name: "Acme Build", CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}
		require.NoError(t, companies.Create(ctx, company))
		ids, err := companies.ListIDsByOwner(ctx, "owner-1")
		require.NoError(t, err)
		assert.Equal(t, []string{company.ID}, ids)

		seedTender(t, tenders, company.ID, entity.TenderPublished)
		seedTender(t, tenders, company.ID, entity.TenderDraft)

		published, err := tenders.List(ctx, tenderrepo.Filter{
			Statuses:  []entity.TenderStatus{entity.TenderPublished},
			ClientIDs: []string{company.ID},
		})
		require.NoError(t, err)
		assert.Len(t, published, 1)

		all, err := tenders.List(ctx, tenderrepo.Filter{ClientIDs: []string{company.ID}})
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})
}
