package tender

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/buildmart/internal/cache"
	"github.com/Additional-Code/buildmart/internal/config"
	"github.com/Additional-Code/buildmart/internal/entity"
	"github.com/Additional-Code/buildmart/internal/identity"
	"github.com/Additional-Code/buildmart/internal/repository"
	"github.com/Additional-Code/buildmart/internal/service/ownership"
	"github.com/Additional-Code/buildmart/internal/testutil/memstore"
	"github.com/Additional-Code/buildmart/pkg/errorbank"
)

type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]time.Duration
}

func newMapCache() *mapCache {
	return &mapCache{data: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

func (c *mapCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return v, nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.ttls[key] = ttl
	return nil
}

func (c *mapCache) ttl(key string) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ttls[key]
}

func (c *mapCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *mapCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

var (
	client     = identity.Principal{ID: "client-1"}
	contractor = identity.Principal{ID: "builder-1"}
)

func ptr[T any](v T) *T { return &v }

func newTestService(t *testing.T) (*Service, *memstore.DB, *mapCache) {
	t.Helper()
	db := memstore.New()
	db.PutCompany(entity.Company{ID: "acme", OwnerID: client.ID, Name: "Acme Build"})
	c := newMapCache()
	svc := NewService(Params{
		Store: db.Tenders(),
		Resolver: ownership.NewResolver(ownership.Params{
			Tenders:      db.Tenders(),
			Applications: db.Applications(),
			Companies:    db.Companies(),
		}),
		Cache: c,
	})
	return svc, db, c
}

func validInput() CreateInput {
	return CreateInput{
		Title:       "Kitchen remodel",
		Description: "Full strip and refit",
		BudgetMin:   ptr(5000.0),
		BudgetMax:   ptr(9000.0),
		Location:    "Leeds",
		Category:    "renovation",
	}
}

func TestCreate(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()

	tender, err := svc.Create(ctx, client, validInput())
	require.NoError(t, err)
	assert.NotEmpty(t, tender.ID)
	assert.Equal(t, client.ID, tender.ClientID)
	assert.Equal(t, entity.TenderPublished, tender.Status)

	stored, ok := db.Tender(tender.ID)
	require.True(t, ok)
	assert.Equal(t, "Kitchen remodel", stored.Title)

	in := validInput()
	in.Draft = true
	in.CompanyID = "acme"
	draft, err := svc.Create(ctx, client, in)
	require.NoError(t, err)
	assert.Equal(t, entity.TenderDraft, draft.Status)
	assert.Equal(t, "acme", draft.ClientID)
}

func TestCreateRejections(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, identity.Anonymous, validInput())
	assert.True(t, errorbank.Is(err, errorbank.KindUnauthenticated))

	in := validInput()
	in.CompanyID = "acme"
	_, err = svc.Create(ctx, contractor, in)
	assert.True(t, errorbank.Is(err, errorbank.KindForbidden))

	in = validInput()
	in.Title = "   "
	_, err = svc.Create(ctx, client, in)
	assert.True(t, errorbank.Is(err, errorbank.KindValidation))

	in = validInput()
	in.BudgetMin = ptr(10000.0)
	_, err = svc.Create(ctx, client, in)
	assert.True(t, errorbank.Is(err, errorbank.KindValidation))

	in = validInput()
	in.BudgetMax = ptr(-1.0)
	in.BudgetMin = nil
	_, err = svc.Create(ctx, client, in)
	assert.True(t, errorbank.Is(err, errorbank.KindValidation))
}

func TestUpdateRejectsInvertedBudgetAndLeavesTenderUnchanged(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()
	tender, err := svc.Create(ctx, client, validInput())
	require.NoError(t, err)

	_, err = svc.Update(ctx, client, tender.ID, UpdateInput{BudgetMin: ptr(20000.0)})
	assert.True(t, errorbank.Is(err, errorbank.KindValidation))

	stored, _ := db.Tender(tender.ID)
	assert.Equal(t, 5000.0, *stored.BudgetMin)
	assert.Equal(t, 9000.0, *stored.BudgetMax)
}

func TestUpdateClearsOptionalFields(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()
	in := validInput()
	in.Deadline = ptr(time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC))
	tender, err := svc.Create(ctx, client, in)
	require.NoError(t, err)

	updated, err := svc.Update(ctx, client, tender.ID, UpdateInput{ClearBudgetMax: true, BudgetMin: ptr(20000.0)})
	require.NoError(t, err, "without a maximum the raised minimum is valid")
	assert.Nil(t, updated.BudgetMax)
	assert.Equal(t, 20000.0, *updated.BudgetMin)
	require.NotNil(t, updated.Deadline)

	updated, err = svc.Update(ctx, client, tender.ID, UpdateInput{ClearBudgetMin: true, ClearDeadline: true})
	require.NoError(t, err)
	assert.Nil(t, updated.BudgetMin)
	assert.Nil(t, updated.Deadline)

	stored, _ := db.Tender(tender.ID)
	assert.Nil(t, stored.BudgetMin)
	assert.Nil(t, stored.BudgetMax)
	assert.Nil(t, stored.Deadline)
	assert.Equal(t, "Kitchen remodel", stored.Title)
}

func TestUpdateOwnershipAndFields(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()
	in := validInput()
	in.CompanyID = "acme"
	tender, err := svc.Create(ctx, client, in)
	require.NoError(t, err)

	_, err = svc.Update(ctx, contractor, tender.ID, UpdateInput{Title: ptr("Mine now")})
	assert.True(t, errorbank.Is(err, errorbank.KindForbidden))

	_, err = svc.Update(ctx, identity.Anonymous, tender.ID, UpdateInput{Title: ptr("x")})
	assert.True(t, errorbank.Is(err, errorbank.KindUnauthenticated))

	_, err = svc.Update(ctx, client, "missing", UpdateInput{Title: ptr("x")})
	assert.True(t, errorbank.Is(err, errorbank.KindNotFound))

	updated, err := svc.Update(ctx, client, tender.ID, UpdateInput{Title: ptr(" Loft conversion "), Location: ptr("York")})
	require.NoError(t, err)
	assert.Equal(t, "Loft conversion", updated.Title)

	stored, _ := db.Tender(tender.ID)
	assert.Equal(t, "York", stored.Location)
	assert.Equal(t, "acme", stored.ClientID)
}

func TestUpdateStatusTransitions(t *testing.T) {
	cases := []struct {
		name    string
		from    entity.TenderStatus
		to      entity.TenderStatus
		allowed bool
	}{
		{"draft to published", entity.TenderDraft, entity.TenderPublished, true},
		{"draft to cancelled", entity.TenderDraft, entity.TenderCancelled, true},
		{"published to cancelled", entity.TenderPublished, entity.TenderCancelled, true},
		{"published to in progress", entity.TenderPublished, entity.TenderInProgress, false},
		{"published to draft", entity.TenderPublished, entity.TenderDraft, false},
		{"published to published", entity.TenderPublished, entity.TenderPublished, false},
		{"in progress to completed", entity.TenderInProgress, entity.TenderCompleted, true},
		{"completed to published", entity.TenderCompleted, entity.TenderPublished, false},
		{"cancelled to draft", entity.TenderCancelled, entity.TenderDraft, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, db, _ := newTestService(t)
			db.PutTender(entity.Tender{ID: "t1", ClientID: client.ID, Title: "Roof", Description: "Retile", Status: tc.from})

			_, err := svc.Update(context.Background(), client, "t1", UpdateInput{Status: ptr(tc.to)})
			stored, _ := db.Tender("t1")
			if tc.allowed {
				require.NoError(t, err)
				assert.Equal(t, tc.to, stored.Status)
				return
			}
			assert.True(t, errorbank.Is(err, errorbank.KindInvalidTransition), "got %v", err)
			assert.Equal(t, tc.from, stored.Status)
		})
	}
}

func TestUpdateStaleWriteIsConflict(t *testing.T) {
	svc, db, _ := newTestService(t)
	db.PutTender(entity.Tender{ID: "t1", ClientID: client.ID, Title: "Roof", Description: "Retile", Status: entity.TenderPublished})
	db.FailOn("tenders.Update", repository.ErrStaleStatus)

	_, err := svc.Update(context.Background(), client, "t1", UpdateInput{Title: ptr("Roof v2")})
	assert.True(t, errorbank.Is(err, errorbank.KindConflict))

	db.FailOn("tenders.Update", errors.New("broken pipe"))
	_, err = svc.Update(context.Background(), client, "t1", UpdateInput{Title: ptr("Roof v2")})
	assert.True(t, errorbank.Is(err, errorbank.KindStorageUnavailable))
}

func TestGetVisibilityAndCache(t *testing.T) {
	svc, db, c := newTestService(t)
	ctx := context.Background()
	db.PutTender(entity.Tender{ID: "open", ClientID: client.ID, Title: "A", Description: "B", Status: entity.TenderPublished})
	db.PutTender(entity.Tender{ID: "draft", ClientID: "acme", Title: "A", Description: "B", Status: entity.TenderDraft})

	got, err := svc.Get(ctx, identity.Anonymous, "open")
	require.NoError(t, err)
	assert.Equal(t, "open", got.ID)
	assert.True(t, c.has(CacheKey("open")))

	_, err = svc.Get(ctx, contractor, "draft")
	assert.True(t, errorbank.Is(err, errorbank.KindNotFound))

	got, err = svc.Get(ctx, client, "draft")
	require.NoError(t, err)
	assert.Equal(t, entity.TenderDraft, got.Status)

	_, err = svc.Get(ctx, client, "missing")
	assert.True(t, errorbank.Is(err, errorbank.KindNotFound))

	db.FailOn("tenders.GetByID", errors.New("down"))
	got, err = svc.Get(ctx, identity.Anonymous, "open")
	require.NoError(t, err, "cached copy is served")
	assert.Equal(t, "open", got.ID)
}

func TestUpdateEvictsCache(t *testing.T) {
	svc, db, c := newTestService(t)
	ctx := context.Background()
	db.PutTender(entity.Tender{ID: "t1", ClientID: client.ID, Title: "A", Description: "B", Status: entity.TenderPublished})

	_, err := svc.Get(ctx, client, "t1")
	require.NoError(t, err)
	require.True(t, c.has(CacheKey("t1")))

	_, err = svc.Update(ctx, client, "t1", UpdateInput{Status: ptr(entity.TenderCancelled)})
	require.NoError(t, err)
	assert.False(t, c.has(CacheKey("t1")))

	got, err := svc.Get(ctx, client, "t1")
	require.NoError(t, err)
	assert.Equal(t, entity.TenderCancelled, got.Status)
}

func TestCacheTTLFollowsStatus(t *testing.T) {
	db := memstore.New()
	c := newMapCache()
	var cfg config.Config
	cfg.Cache.DefaultTTL = 5 * time.Minute
	cfg.Cache.VolatileTTL = 5 * time.Second
	svc := NewService(Params{
		Store: db.Tenders(),
		Resolver: ownership.NewResolver(ownership.Params{
			Tenders:      db.Tenders(),
			Applications: db.Applications(),
			Companies:    db.Companies(),
		}),
		Cache:  c,
		Config: cfg,
	})
	ctx := context.Background()
	db.PutTender(entity.Tender{ID: "open", ClientID: client.ID, Title: "A", Description: "B", Status: entity.TenderPublished})
	db.PutTender(entity.Tender{ID: "busy", ClientID: client.ID, Title: "A", Description: "B", Status: entity.TenderInProgress})
	db.PutTender(entity.Tender{ID: "done", ClientID: client.ID, Title: "A", Description: "B", Status: entity.TenderCompleted})

	for _, id := range []string{"open", "busy", "done"} {
		_, err := svc.Get(ctx, client, id)
		require.NoError(t, err)
	}

	assert.Equal(t, 5*time.Second, c.ttl(CacheKey("open")))
	assert.Equal(t, 5*time.Second, c.ttl(CacheKey("busy")))
	assert.Equal(t, 5*time.Minute, c.ttl(CacheKey("done")))
}

func TestList(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	db.PutTender(entity.Tender{ID: "p1", ClientID: client.ID, Status: entity.TenderPublished, Category: "roofing", CreatedAt: base})
	db.PutTender(entity.Tender{ID: "p2", ClientID: "other", Status: entity.TenderPublished, Category: "plumbing", CreatedAt: base.Add(time.Hour)})
	db.PutTender(entity.Tender{ID: "d1", ClientID: "acme", Status: entity.TenderDraft, CreatedAt: base.Add(2 * time.Hour)})

	public, err := svc.List(ctx, identity.Anonymous, ListInput{})
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p1"}, ids(public))

	roofing, err := svc.List(ctx, identity.Anonymous, ListInput{Category: "roofing"})
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, ids(roofing))

	hidden, err := svc.List(ctx, identity.Anonymous, ListInput{Status: entity.TenderDraft})
	require.NoError(t, err)
	assert.Empty(t, hidden)

	mine, err := svc.List(ctx, client, ListInput{Mine: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"d1", "p1"}, ids(mine))

	_, err = svc.List(ctx, identity.Anonymous, ListInput{Mine: true})
	assert.True(t, errorbank.Is(err, errorbank.KindUnauthenticated))

	_, err = svc.List(ctx, client, ListInput{MinBudget: ptr(10.0), MaxBudget: ptr(1.0)})
	assert.True(t, errorbank.Is(err, errorbank.KindValidation))
}

func ids(tenders []entity.Tender) []string {
	out := make([]string, 0, len(tenders))
	for _, t := range tenders {
		out = append(out, t.ID)
	}
	return out
}
