package tender

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/buildmart/internal/cache"
	"github.com/Additional-Code/buildmart/internal/config"
	"github.com/Additional-Code/buildmart/internal/entity"
	"github.com/Additional-Code/buildmart/internal/events"
	"github.com/Additional-Code/buildmart/internal/identity"
	"github.com/Additional-Code/buildmart/internal/repository"
	repo "github.com/Additional-Code/buildmart/internal/repository/tender"
	"github.com/Additional-Code/buildmart/internal/service"
	"github.com/Additional-Code/buildmart/internal/service/ownership"
	"github.com/Additional-Code/buildmart/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/buildmart/service/tender")

// CreateInput carries the fields of a new tender.
type CreateInput struct {
	CompanyID   string
	Title       string
	Description string
	BudgetMin   *float64
	BudgetMax   *float64
	Location    string
	Category    string
	Deadline    *time.Time
	Draft       bool
}

// UpdateInput carries a partial update; nil fields are left unchanged.
// The Clear flags remove an optional value and win over a value for the same field.
type UpdateInput struct {
	Title       *string
	Description *string
	BudgetMin   *float64
	BudgetMax   *float64
	Location    *string
	Category    *string
	Deadline    *time.Time
	Status      *entity.TenderStatus

	ClearBudgetMin bool
	ClearBudgetMax bool
	ClearDeadline  bool
}

// ListInput selects either the public listing or the caller's own tenders.
type ListInput struct {
	Mine      bool
	Status    entity.TenderStatus
	Category  string
	Location  string
	MinBudget *float64
	MaxBudget *float64
	Limit     int
	Offset    int
}

// Service encapsulates business rules around tenders.
type Service struct {
	store    repo.Store
	owners   *ownership.Resolver
	cache    cache.Store
	cacheTTL time.Duration
	shortTTL time.Duration
	timeout  time.Duration
	events   *events.Publisher
	logger   *zap.Logger
	now      func() time.Time
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Store     repo.Store
	Resolver  *ownership.Resolver
	Cache     cache.Store `optional:"true"`
	Config    config.Config
	Logger    *zap.Logger
	Publisher *events.Publisher `optional:"true"`
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:    p.Store,
		owners:   p.Resolver,
		cache:    p.Cache,
		cacheTTL: p.Config.Cache.DefaultTTL,
		shortTTL: p.Config.Cache.VolatileTTL,
		timeout:  p.Config.Store.OperationTimeout,
		events:   p.Publisher,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a new tender owned by the caller, or by a company the caller controls.
func (s *Service) Create(ctx context.Context, principal identity.Principal, in CreateInput) (*entity.Tender, error) {
	if principal.IsAnonymous() {
		return nil, errorbank.Unauthenticated("sign in to create tenders")
	}
	ctx, span := serviceTracer.Start(ctx, "TenderService.Create")
	defer span.End()

	status := entity.TenderPublished
	if in.Draft {
		status = entity.TenderDraft
	}
	now := s.now()
	tender := &entity.Tender{
		ID:          uuid.NewString(),
		ClientID:    principal.ID,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		BudgetMin:   in.BudgetMin,
		BudgetMax:   in.BudgetMax,
		Location:    strings.TrimSpace(in.Location),
		Category:    strings.TrimSpace(in.Category),
		Deadline:    in.Deadline,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := service.Validate(tender); err != nil {
		return nil, err
	}

	if in.CompanyID != "" && in.CompanyID != principal.ID {
		ok, err := s.owners.CanActAs(ctx, principal.ID, in.CompanyID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errorbank.Forbidden("caller does not control this company")
		}
		tender.ClientID = in.CompanyID
	}
	span.SetAttributes(attribute.String("tender.id", tender.ID))

	storeCtx, cancel := service.WithStoreTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.store.Create(storeCtx, tender); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, service.Unavailable("create tender", err)
	}

	s.logger.Info("tender created",
		zap.String("tender_id", tender.ID),
		zap.String("client_id", tender.ClientID),
		zap.String("status", string(tender.Status)),
	)
	s.events.Publish(ctx, events.LifecycleEvent{
		Type:       events.TenderCreated,
		TenderID:   tender.ID,
		ActorID:    principal.ID,
		Status:     string(tender.Status),
		OccurredAt: now,
	})
	return tender, nil
}

// Update applies a partial update. Only a principal controlling the tender's
// client may call it; status changes follow the tender transition table.
func (s *Service) Update(ctx context.Context, principal identity.Principal, tenderID string, in UpdateInput) (*entity.Tender, error) {
	if principal.IsAnonymous() {
		return nil, errorbank.Unauthenticated("sign in to update tenders")
	}
	ctx, span := serviceTracer.Start(ctx, "TenderService.Update", trace.WithAttributes(attribute.String("tender.id", tenderID)))
	defer span.End()

	current, err := s.load(ctx, tenderID)
	if err != nil {
		return nil, err
	}
	ok, err := s.owners.Controls(ctx, principal.ID, current.ClientID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errorbank.Forbidden("only the tender owner may update it")
	}

	next := *current
	if in.Title != nil {
		next.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		next.Description = strings.TrimSpace(*in.Description)
	}
	if in.BudgetMin != nil {
		next.BudgetMin = in.BudgetMin
	}
	if in.BudgetMax != nil {
		next.BudgetMax = in.BudgetMax
	}
	if in.Location != nil {
		next.Location = strings.TrimSpace(*in.Location)
	}
	if in.Category != nil {
		next.Category = strings.TrimSpace(*in.Category)
	}
	if in.Deadline != nil {
		next.Deadline = in.Deadline
	}
	if in.ClearBudgetMin {
		next.BudgetMin = nil
	}
	if in.ClearBudgetMax {
		next.BudgetMax = nil
	}
	if in.ClearDeadline {
		next.Deadline = nil
	}
	if err := service.Validate(&next); err != nil {
		return nil, err
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, errorbank.Validation("unknown tender status", errorbank.WithDetail("status", *in.Status))
		}
		if !current.Status.CanTransitionTo(*in.Status) {
			return nil, errorbank.InvalidTransition("tender status change not allowed",
				errorbank.WithDetail("from", current.Status),
				errorbank.WithDetail("to", *in.Status),
			)
		}
		next.Status = *in.Status
	}
	next.UpdatedAt = s.now()

	storeCtx, cancel := service.WithStoreTimeout(ctx, s.timeout)
	defer cancel()
	err = s.store.Update(storeCtx, &next, current.Status)
	if errors.Is(err, repository.ErrStaleStatus) {
		return nil, errorbank.Conflict("tender changed concurrently; reload and retry")
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, service.Unavailable("update tender", err)
	}

	s.Evict(ctx, tenderID)
	s.logger.Info("tender updated", zap.String("tender_id", tenderID), zap.String("status", string(next.Status)))
	s.events.Publish(ctx, events.LifecycleEvent{
		Type:       events.TenderUpdated,
		TenderID:   tenderID,
		ActorID:    principal.ID,
		Status:     string(next.Status),
		OccurredAt: next.UpdatedAt,
	})
	return &next, nil
}

// Get returns a tender visible to the caller. Tenders the caller may not see
// are reported as missing so their existence does not leak.
func (s *Service) Get(ctx context.Context, principal identity.Principal, tenderID string) (*entity.Tender, error) {
	ctx, span := serviceTracer.Start(ctx, "TenderService.Get", trace.WithAttributes(attribute.String("tender.id", tenderID)))
	defer span.End()

	tender, err := s.getFromCache(ctx, tenderID)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("tenders cache read failed", zap.String("tender_id", tenderID), zap.Error(err))
		}
		tender, err = s.load(ctx, tenderID)
		if err != nil {
			return nil, err
		}
		if err := s.storeInCache(ctx, tender); err != nil {
			s.logger.Warn("tenders cache write failed", zap.String("tender_id", tenderID), zap.Error(err))
		}
	}

	if tender.Status == entity.TenderPublished {
		return tender, nil
	}
	ids, err := s.owners.ControllingIdentities(ctx, principal.ID)
	if err != nil {
		return nil, err
	}
	if !tender.VisibleTo(ids) {
		return nil, errorbank.NotFound("tender not found")
	}
	return tender, nil
}

// List returns published tenders, or with Mine set every tender the caller controls.
func (s *Service) List(ctx context.Context, principal identity.Principal, in ListInput) ([]entity.Tender, error) {
	ctx, span := serviceTracer.Start(ctx, "TenderService.List")
	defer span.End()

	if in.MinBudget != nil && in.MaxBudget != nil && *in.MinBudget > *in.MaxBudget {
		return nil, errorbank.Validation("min_budget must not exceed max_budget")
	}
	if in.Status != "" && !in.Status.Valid() {
		return nil, errorbank.Validation("unknown tender status", errorbank.WithDetail("status", in.Status))
	}

	filter := repo.Filter{
		Category:  strings.TrimSpace(in.Category),
		Location:  strings.TrimSpace(in.Location),
		MinBudget: in.MinBudget,
		MaxBudget: in.MaxBudget,
		Limit:     in.Limit,
		Offset:    in.Offset,
	}

	if in.Mine {
		if principal.IsAnonymous() {
			return nil, errorbank.Unauthenticated("sign in to list your tenders")
		}
		ids, err := s.owners.ControllingIdentities(ctx, principal.ID)
		if err != nil {
			return nil, err
		}
		filter.ClientIDs = ids.IDs()
		if in.Status != "" {
			filter.Statuses = []entity.TenderStatus{in.Status}
		}
	} else {
		if in.Status != "" && in.Status != entity.TenderPublished {
			return []entity.Tender{}, nil
		}
		filter.Statuses = []entity.TenderStatus{entity.TenderPublished}
	}

	storeCtx, cancel := service.WithStoreTimeout(ctx, s.timeout)
	defer cancel()
	tenders, err := s.store.List(storeCtx, filter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, service.Unavailable("list tenders", err)
	}
	if tenders == nil {
		tenders = []entity.Tender{}
	}
	return tenders, nil
}

// Evict drops the cached copy of a tender.
func (s *Service) Evict(ctx context.Context, tenderID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, CacheKey(tenderID)); err != nil {
		s.logger.Warn("tenders cache delete failed", zap.String("tender_id", tenderID), zap.Error(err))
	}
}

// CacheKey is the cache key of a tender.
func CacheKey(tenderID string) string {
	return "tenders:" + tenderID
}

func (s *Service) load(ctx context.Context, tenderID string) (*entity.Tender, error) {
	ctx, cancel := service.WithStoreTimeout(ctx, s.timeout)
	defer cancel()
	tender, err := s.store.GetByID(ctx, tenderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errorbank.NotFound("tender not found")
	}
	if err != nil {
		return nil, service.Unavailable("load tender", err)
	}
	return tender, nil
}

func (s *Service) getFromCache(ctx context.Context, tenderID string) (*entity.Tender, error) {
	if s.cache == nil {
		return nil, cache.ErrCacheMiss
	}
	bytes, err := s.cache.Get(ctx, CacheKey(tenderID))
	if err != nil {
		return nil, err
	}
	var tender entity.Tender
	if err := json.Unmarshal(bytes, &tender); err != nil {
		return nil, err
	}
	return &tender, nil
}

func (s *Service) storeInCache(ctx context.Context, tender *entity.Tender) error {
	if s.cache == nil || tender == nil {
		return nil
	}
	bytes, err := json.Marshal(tender)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, CacheKey(tender.ID), bytes, s.ttlFor(tender.Status))
}

// ttlFor keeps entries for tenders that can still change short-lived. A read
// that loaded the row before a concurrent acceptance committed may write its
// copy after that acceptance evicted the key; the short TTL bounds how long
// that copy is served.
func (s *Service) ttlFor(status entity.TenderStatus) time.Duration {
	if status.Terminal() || s.shortTTL <= 0 {
		return s.cacheTTL
	}
	return s.shortTTL
}
