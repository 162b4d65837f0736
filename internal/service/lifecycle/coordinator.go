// Package lifecycle moves an application and its tender together when a bid is accepted.
package lifecycle

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/buildmart/internal/config"
	"github.com/Additional-Code/buildmart/internal/entity"
	"github.com/Additional-Code/buildmart/internal/events"
	"github.com/Additional-Code/buildmart/internal/identity"
	"github.com/Additional-Code/buildmart/internal/repository"
	apprepo "github.com/Additional-Code/buildmart/internal/repository/application"
	lifecyclerepo "github.com/Additional-Code/buildmart/internal/repository/lifecycle"
	tenderrepo "github.com/Additional-Code/buildmart/internal/repository/tender"
	"github.com/Additional-Code/buildmart/internal/service"
	"github.com/Additional-Code/buildmart/internal/service/ownership"
	"github.com/Additional-Code/buildmart/pkg/errorbank"
)

const instrumentation = "github.com/Additional-Code/buildmart/service/lifecycle"

var coordinatorTracer = otel.Tracer(instrumentation)

// CacheEvicter drops cached copies of a tender.
type CacheEvicter interface {
	Evict(ctx context.Context, tenderID string)
}

// Acceptance is the committed outcome of accepting an application.
type Acceptance struct {
	Application entity.Application `json:"application"`
	Tender      entity.Tender      `json:"tender"`
}

// Coordinator performs the accept transition atomically.
type Coordinator struct {
	tenders      tenderrepo.Store
	applications apprepo.Store
	tx           lifecyclerepo.Transactor
	owners       *ownership.Resolver
	evicter      CacheEvicter
	events       *events.Publisher
	acceptances  metric.Int64Counter
	timeout      time.Duration
	logger       *zap.Logger
	now          func() time.Time
}

// Params defines dependencies for constructing Coordinator.
type Params struct {
	fx.In

	Tenders      tenderrepo.Store
	Applications apprepo.Store
	Transactor   lifecyclerepo.Transactor
	Resolver     *ownership.Resolver
	Evicter      CacheEvicter      `optional:"true"`
	Publisher    *events.Publisher `optional:"true"`
	Config       config.Config
	Logger       *zap.Logger
}

// NewCoordinator wires a Coordinator.
func NewCoordinator(p Params) (*Coordinator, error) {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	counter, err := otel.Meter(instrumentation).Int64Counter(
		"buildmart.lifecycle.acceptances",
		metric.WithDescription("Applications accepted by tender owners"),
	)
	if err != nil {
		return nil, err
	}
	return &Coordinator{
		tenders:      p.Tenders,
		applications: p.Applications,
		tx:           p.Transactor,
		owners:       p.Resolver,
		evicter:      p.Evicter,
		events:       p.Publisher,
		acceptances:  counter,
		timeout:      p.Config.Store.OperationTimeout,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}, nil
}

// AcceptApplication marks a pending application accepted and moves its tender
// into progress. Both writes commit together or not at all.
func (c *Coordinator) AcceptApplication(ctx context.Context, principal identity.Principal, applicationID string) (*Acceptance, error) {
	if principal.IsAnonymous() {
		return nil, errorbank.Unauthenticated("sign in to accept applications")
	}
	ctx, span := coordinatorTracer.Start(ctx, "LifecycleCoordinator.AcceptApplication",
		trace.WithAttributes(attribute.String("application.id", applicationID)))
	defer span.End()

	app, err := c.loadApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	ok, err := c.owners.OwnsParentTender(ctx, principal.ID, app.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errorbank.Forbidden("only the tender owner may accept applications")
	}
	tender, err := c.loadTender(ctx, app.TenderID)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("tender.id", tender.ID))

	if app.Status != entity.ApplicationPending {
		return nil, errorbank.InvalidTransition("only pending applications can be accepted",
			errorbank.WithDetail("status", app.Status))
	}
	if tender.Status != entity.TenderPublished {
		return nil, errorbank.InvalidState("tender is not open for acceptance",
			errorbank.WithDetail("tender_status", tender.Status))
	}

	now := c.now()
	txCtx, cancel := service.WithStoreTimeout(ctx, c.timeout)
	defer cancel()
	err = c.tx.RunInTx(txCtx, func(ctx context.Context, tx lifecyclerepo.Tx) error {
		if err := tx.UpdateApplicationStatus(ctx, app.ID, entity.ApplicationPending, entity.ApplicationAccepted, now); err != nil {
			return &staleError{kind: errorbank.KindInvalidTransition, err: err}
		}
		if err := tx.UpdateTenderStatus(ctx, tender.ID, entity.TenderPublished, entity.TenderInProgress, now); err != nil {
			return &staleError{kind: errorbank.KindInvalidState, err: err}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "accept failed")
		return nil, translateTxError(err)
	}

	app.Status = entity.ApplicationAccepted
	app.UpdatedAt = now
	tender.Status = entity.TenderInProgress
	tender.UpdatedAt = now

	if c.evicter != nil {
		c.evicter.Evict(ctx, tender.ID)
	}
	c.acceptances.Add(ctx, 1)
	c.logger.Info("application accepted",
		zap.String("application_id", app.ID),
		zap.String("tender_id", tender.ID),
		zap.String("actor_id", principal.ID),
	)
	c.events.Publish(ctx, events.LifecycleEvent{
		Type:          events.ApplicationAccepted,
		TenderID:      tender.ID,
		ApplicationID: app.ID,
		ActorID:       principal.ID,
		Status:        string(entity.ApplicationAccepted),
		OccurredAt:    now,
	})
	return &Acceptance{Application: *app, Tender: *tender}, nil
}

// staleError tags which guarded write failed inside the transaction.
type staleError struct {
	kind errorbank.Kind
	err  error
}

func (e *staleError) Error() string { return e.err.Error() }
func (e *staleError) Unwrap() error { return e.err }

func translateTxError(err error) error {
	if errors.Is(err, repository.ErrStaleStatus) {
		var stale *staleError
		if errors.As(err, &stale) && stale.kind == errorbank.KindInvalidState {
			return errorbank.InvalidState("tender changed concurrently and is no longer published")
		}
		return errorbank.InvalidTransition("application changed concurrently and is no longer pending")
	}
	if errors.Is(err, repository.ErrConflict) {
		return errorbank.Conflict("contractor already holds an active application for this tender")
	}
	return service.Unavailable("accept application", err)
}

func (c *Coordinator) loadApplication(ctx context.Context, id string) (*entity.Application, error) {
	ctx, cancel := service.WithStoreTimeout(ctx, c.timeout)
	defer cancel()
	app, err := c.applications.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errorbank.NotFound("application not found")
	}
	if err != nil {
		return nil, service.Unavailable("load application", err)
	}
	return app, nil
}

func (c *Coordinator) loadTender(ctx context.Context, id string) (*entity.Tender, error) {
	ctx, cancel := service.WithStoreTimeout(ctx, c.timeout)
	defer cancel()
	tender, err := c.tenders.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errorbank.NotFound("tender not found")
	}
	if err != nil {
		return nil, service.Unavailable("load tender", err)
	}
	return tender, nil
}
