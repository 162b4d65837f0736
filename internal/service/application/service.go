package application

import (
	"context"
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

	"github.com/Additional-Code/buildmart/internal/config"
	"github.com/Additional-Code/buildmart/internal/entity"
	"github.com/Additional-Code/buildmart/internal/events"
	"github.com/Additional-Code/buildmart/internal/identity"
	"github.com/Additional-Code/buildmart/internal/repository"
	repo "github.com/Additional-Code/buildmart/internal/repository/application"
	tenderrepo "github.com/Additional-Code/buildmart/internal/repository/tender"
	"github.com/Additional-Code/buildmart/internal/service"
	"github.com/Additional-Code/buildmart/internal/service/lifecycle"
	"github.com/Additional-Code/buildmart/internal/service/ownership"
	"github.com/Additional-Code/buildmart/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/buildmart/service/application")

type actor int

const (
	actorTenderOwner actor = iota + 1
	actorApplicant
)

// transitions lists every allowed status change and who may perform it.
var transitions = map[entity.ApplicationStatus]map[entity.ApplicationStatus]actor{
	entity.ApplicationPending: {
		entity.ApplicationAccepted:  actorTenderOwner,
		entity.ApplicationRejected:  actorTenderOwner,
		entity.ApplicationWithdrawn: actorApplicant,
	},
	entity.ApplicationAccepted: {
		entity.ApplicationRejected: actorTenderOwner,
	},
}

// SubmitInput carries a contractor's bid.
type SubmitInput struct {
	TenderID  string
	CompanyID string
	Proposal  string
	Budget    *float64
	Timeline  string
}

// Service encapsulates business rules around applications.
type Service struct {
	store       repo.Store
	tenders     tenderrepo.Store
	owners      *ownership.Resolver
	coordinator *lifecycle.Coordinator
	events      *events.Publisher
	timeout     time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Store       repo.Store
	Tenders     tenderrepo.Store
	Resolver    *ownership.Resolver
	Coordinator *lifecycle.Coordinator
	Publisher   *events.Publisher `optional:"true"`
	Config      config.Config
	Logger      *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:       p.Store,
		tenders:     p.Tenders,
		owners:      p.Resolver,
		coordinator: p.Coordinator,
		events:      p.Publisher,
		timeout:     p.Config.Store.OperationTimeout,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Submit records a pending application against a published tender.
func (s *Service) Submit(ctx context.Context, principal identity.Principal, in SubmitInput) (*entity.Application, error) {
	if principal.IsAnonymous() {
		return nil, errorbank.Unauthenticated("sign in to submit applications")
	}
	ctx, span := serviceTracer.Start(ctx, "ApplicationService.Submit", trace.WithAttributes(attribute.String("tender.id", in.TenderID)))
	defer span.End()

	contractorID := principal.ID
	if in.CompanyID != "" && in.CompanyID != principal.ID {
		ok, err := s.owners.CanActAs(ctx, principal.ID, in.CompanyID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errorbank.Forbidden("caller does not control this company")
		}
		contractorID = in.CompanyID
	}

	tender, err := s.loadTender(ctx, in.TenderID)
	if err != nil {
		return nil, err
	}
	if tender.Status != entity.TenderPublished {
		return nil, errorbank.InvalidState("tender is not accepting applications",
			errorbank.WithDetail("tender_status", tender.Status))
	}
	ownsTender, err := s.owners.Controls(ctx, principal.ID, tender.ClientID)
	if err != nil {
		return nil, err
	}
	if ownsTender {
		return nil, errorbank.Forbidden("tender owners cannot apply to their own tender")
	}

	if err := s.ensureNoActive(ctx, tender.ID, contractorID); err != nil {
		return nil, err
	}

	if in.Budget == nil {
		return nil, errorbank.Validation("invalid application", errorbank.WithDetail("budget", "is required"))
	}
	now := s.now()
	app := &entity.Application{
		ID:           uuid.NewString(),
		TenderID:     tender.ID,
		ContractorID: contractorID,
		Proposal:     strings.TrimSpace(in.Proposal),
		Budget:       *in.Budget,
		Timeline:     strings.TrimSpace(in.Timeline),
		Status:       entity.ApplicationPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := service.Validate(app); err != nil {
		return nil, err
	}

	storeCtx, cancel := service.WithStoreTimeout(ctx, s.timeout)
	defer cancel()
	err = s.store.Create(storeCtx, app)
	if errors.Is(err, repository.ErrConflict) {
		return nil, duplicateApplication()
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, service.Unavailable("submit application", err)
	}

	s.logger.Info("application submitted",
		zap.String("application_id", app.ID),
		zap.String("tender_id", app.TenderID),
		zap.String("contractor_id", app.ContractorID),
	)
	s.events.Publish(ctx, events.LifecycleEvent{
		Type:          events.ApplicationSubmitted,
		TenderID:      app.TenderID,
		ApplicationID: app.ID,
		ActorID:       principal.ID,
		Status:        string(app.Status),
		OccurredAt:    now,
	})
	return app, nil
}

// UpdateStatus moves an application along its transition table. Acceptance is
// delegated to the lifecycle coordinator so the tender moves with it.
func (s *Service) UpdateStatus(ctx context.Context, principal identity.Principal, applicationID string, status entity.ApplicationStatus) (*entity.Application, error) {
	if principal.IsAnonymous() {
		return nil, errorbank.Unauthenticated("sign in to update applications")
	}
	if !status.Valid() {
		return nil, errorbank.Validation("unknown application status", errorbank.WithDetail("status", status))
	}
	ctx, span := serviceTracer.Start(ctx, "ApplicationService.UpdateStatus", trace.WithAttributes(
		attribute.String("application.id", applicationID),
		attribute.String("application.status", string(status)),
	))
	defer span.End()

	app, err := s.loadApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	tender, err := s.loadTender(ctx, app.TenderID)
	if err != nil {
		return nil, err
	}
	ids, err := s.owners.ControllingIdentities(ctx, principal.ID)
	if err != nil {
		return nil, err
	}
	isOwner := ids.Has(tender.ClientID)
	isApplicant := ids.Has(app.ContractorID)
	if !isOwner && !isApplicant {
		return nil, errorbank.Forbidden("caller is neither the applicant nor the tender owner")
	}

	required, ok := transitions[app.Status][status]
	if !ok {
		return nil, errorbank.InvalidTransition("application status change not allowed",
			errorbank.WithDetail("from", app.Status),
			errorbank.WithDetail("to", status),
		)
	}
	if (required == actorTenderOwner && !isOwner) || (required == actorApplicant && !isApplicant) {
		return nil, errorbank.Forbidden("caller may not perform this status change")
	}

	if status == entity.ApplicationAccepted {
		result, err := s.coordinator.AcceptApplication(ctx, principal, app.ID)
		if err != nil {
			return nil, err
		}
		return &result.Application, nil
	}

	now := s.now()
	storeCtx, cancel := service.WithStoreTimeout(ctx, s.timeout)
	defer cancel()
	err = s.store.UpdateStatus(storeCtx, app.ID, app.Status, status, now)
	if errors.Is(err, repository.ErrStaleStatus) {
		return nil, errorbank.InvalidTransition("application changed concurrently; reload and retry")
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, service.Unavailable("update application status", err)
	}

	from := app.Status
	app.Status = status
	app.UpdatedAt = now
	s.logger.Info("application status changed",
		zap.String("application_id", app.ID),
		zap.String("from", string(from)),
		zap.String("to", string(status)),
		zap.String("actor_id", principal.ID),
	)
	s.events.Publish(ctx, events.LifecycleEvent{
		Type:          events.ApplicationStatusChanged,
		TenderID:      app.TenderID,
		ApplicationID: app.ID,
		ActorID:       principal.ID,
		Status:        string(status),
		OccurredAt:    now,
	})
	return app, nil
}

// Accept is the dedicated accept operation.
func (s *Service) Accept(ctx context.Context, principal identity.Principal, applicationID string) (*lifecycle.Acceptance, error) {
	return s.coordinator.AcceptApplication(ctx, principal, applicationID)
}

// ListForTender returns every application on a tender to the tender owner, newest first.
func (s *Service) ListForTender(ctx context.Context, principal identity.Principal, tenderID string) ([]entity.Application, error) {
	if principal.IsAnonymous() {
		return nil, errorbank.Unauthenticated("sign in to list applications")
	}
	ctx, span := serviceTracer.Start(ctx, "ApplicationService.ListForTender", trace.WithAttributes(attribute.String("tender.id", tenderID)))
	defer span.End()

	ok, err := s.owners.IsOwner(ctx, principal.ID, ownership.KindTender, tenderID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errorbank.Forbidden("only the tender owner may list its applications")
	}

	storeCtx, cancel := service.WithStoreTimeout(ctx, s.timeout)
	defer cancel()
	apps, err := s.store.ListByTender(storeCtx, tenderID)
	if err != nil {
		return nil, service.Unavailable("list applications", err)
	}
	return nonNil(apps), nil
}

// ListForContractor returns the applications of every identity the caller controls, newest first.
func (s *Service) ListForContractor(ctx context.Context, principal identity.Principal) ([]entity.Application, error) {
	if principal.IsAnonymous() {
		return nil, errorbank.Unauthenticated("sign in to list applications")
	}
	ctx, span := serviceTracer.Start(ctx, "ApplicationService.ListForContractor")
	defer span.End()

	ids, err := s.owners.ControllingIdentities(ctx, principal.ID)
	if err != nil {
		return nil, err
	}
	storeCtx, cancel := service.WithStoreTimeout(ctx, s.timeout)
	defer cancel()
	apps, err := s.store.ListByContractors(storeCtx, ids.IDs())
	if err != nil {
		return nil, service.Unavailable("list applications", err)
	}
	return nonNil(apps), nil
}

// Get returns an application to its applicant or the owner of its tender.
func (s *Service) Get(ctx context.Context, principal identity.Principal, applicationID string) (*entity.Application, error) {
	if principal.IsAnonymous() {
		return nil, errorbank.Unauthenticated("sign in to view applications")
	}
	ctx, span := serviceTracer.Start(ctx, "ApplicationService.Get", trace.WithAttributes(attribute.String("application.id", applicationID)))
	defer span.End()

	app, err := s.loadApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	applicant, err := s.owners.IsApplicant(ctx, principal.ID, app.ID)
	if err != nil {
		return nil, err
	}
	if applicant {
		return app, nil
	}
	owner, err := s.owners.OwnsParentTender(ctx, principal.ID, app.ID)
	if err != nil {
		return nil, err
	}
	if !owner {
		return nil, errorbank.NotFound("application not found")
	}
	return app, nil
}

func (s *Service) ensureNoActive(ctx context.Context, tenderID, contractorID string) error {
	ctx, cancel := service.WithStoreTimeout(ctx, s.timeout)
	defer cancel()
	_, err := s.store.FindActive(ctx, tenderID, contractorID)
	switch {
	case err == nil:
		return duplicateApplication()
	case errors.Is(err, repository.ErrNotFound):
		return nil
	default:
		return service.Unavailable("check existing applications", err)
	}
}

func (s *Service) loadApplication(ctx context.Context, id string) (*entity.Application, error) {
	ctx, cancel := service.WithStoreTimeout(ctx, s.timeout)
	defer cancel()
	app, err := s.store.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errorbank.NotFound("application not found")
	}
	if err != nil {
		return nil, service.Unavailable("load application", err)
	}
	return app, nil
}

func (s *Service) loadTender(ctx context.Context, id string) (*entity.Tender, error) {
	ctx, cancel := service.WithStoreTimeout(ctx, s.timeout)
	defer cancel()
	tender, err := s.tenders.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errorbank.NotFound("tender not found")
	}
	if err != nil {
		return nil, service.Unavailable("load tender", err)
	}
	return tender, nil
}

func duplicateApplication() *errorbank.AppError {
	return errorbank.Conflict("contractor already has an active application for this tender")
}

func nonNil(apps []entity.Application) []entity.Application {
	if apps == nil {
		return []entity.Application{}
	}
	return apps
}
