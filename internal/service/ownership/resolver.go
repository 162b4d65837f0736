package ownership

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"

	"github.com/Additional-Code/buildmart/internal/config"
	"github.com/Additional-Code/buildmart/internal/entity"
	"github.com/Additional-Code/buildmart/internal/repository"
	apprepo "github.com/Additional-Code/buildmart/internal/repository/application"
	companyrepo "github.com/Additional-Code/buildmart/internal/repository/company"
	tenderrepo "github.com/Additional-Code/buildmart/internal/repository/tender"
	"github.com/Additional-Code/buildmart/internal/service"
	"github.com/Additional-Code/buildmart/pkg/errorbank"
)

var resolverTracer = otel.Tracer("github.com/Additional-Code/buildmart/service/ownership")

// Kind names a resource type subject to ownership checks.
type Kind string

const (
	KindTender      Kind = "tender"
	KindCompany     Kind = "company"
	KindApplication Kind = "application"
)

// Identities is the set of ids a principal controls: its own id plus every
// company it owns. Ownership checks are set-membership tests against it.
type Identities map[string]struct{}

// Has reports whether id is controlled.
func (ids Identities) Has(id string) bool {
	_, ok := ids[id]
	return ok
}

// IDs returns the controlled ids in a stable order.
func (ids Identities) IDs() []string {
	out := make([]string, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Resolver answers "does this principal control that resource".
type Resolver struct {
	tenders      tenderrepo.Store
	applications apprepo.Store
	companies    companyrepo.Store
	timeout      time.Duration
}

// Params defines dependencies for constructing Resolver.
type Params struct {
	fx.In

	Tenders      tenderrepo.Store
	Applications apprepo.Store
	Companies    companyrepo.Store
	Config       config.Config
}

// NewResolver wires a Resolver.
func NewResolver(p Params) *Resolver {
	return &Resolver{
		tenders:      p.Tenders,
		applications: p.Applications,
		companies:    p.Companies,
		timeout:      p.Config.Store.OperationTimeout,
	}
}

// ControllingIdentities resolves the identity set of principalID.
func (r *Resolver) ControllingIdentities(ctx context.Context, principalID string) (Identities, error) {
	ids := Identities{}
	if principalID == "" {
		return ids, nil
	}
	ids[principalID] = struct{}{}

	ctx, cancel := service.WithStoreTimeout(ctx, r.timeout)
	defer cancel()
	companyIDs, err := r.companies.ListIDsByOwner(ctx, principalID)
	if err != nil {
		return nil, service.Unavailable("resolve identities", err)
	}
	for _, id := range companyIDs {
		ids[id] = struct{}{}
	}
	return ids, nil
}

// IsOwner reports whether principalID controls the tender or company identified by id.
// Applications have two distinct notions of ownership; use IsApplicant or OwnsParentTender.
// Listing a tender's applications uses it; services that already loaded the
// tender call Controls with its client id instead.
func (r *Resolver) IsOwner(ctx context.Context, principalID string, kind Kind, id string) (bool, error) {
	ctx, span := resolverTracer.Start(ctx, "OwnershipResolver.IsOwner", trace.WithAttributes(
		attribute.String("resource.kind", string(kind)),
		attribute.String("resource.id", id),
	))
	defer span.End()

	switch kind {
	case KindTender:
		tender, err := r.loadTender(ctx, id)
		if err != nil {
			return false, err
		}
		return r.Controls(ctx, principalID, tender.ClientID)
	case KindCompany:
		company, err := r.loadCompany(ctx, id)
		if err != nil {
			return false, err
		}
		return principalID != "" && company.OwnerID == principalID, nil
	case KindApplication:
		return false, errorbank.Validation("application ownership is split into applicant and tender-owner checks")
	default:
		return false, errorbank.Validation("unknown resource kind", errorbank.WithDetail("kind", kind))
	}
}

// IsApplicant reports whether principalID controls the contractor of the application.
// Application Get uses it before falling back to OwnsParentTender.
func (r *Resolver) IsApplicant(ctx context.Context, principalID, applicationID string) (bool, error) {
	app, err := r.loadApplication(ctx, applicationID)
	if err != nil {
		return false, err
	}
	return r.Controls(ctx, principalID, app.ContractorID)
}

// OwnsParentTender reports whether principalID controls the tender the application targets.
// It gates acceptance in the lifecycle coordinator and application Get.
func (r *Resolver) OwnsParentTender(ctx context.Context, principalID, applicationID string) (bool, error) {
	app, err := r.loadApplication(ctx, applicationID)
	if err != nil {
		return false, err
	}
	tender, err := r.loadTender(ctx, app.TenderID)
	if err != nil {
		return false, err
	}
	return r.Controls(ctx, principalID, tender.ClientID)
}

// CanActAs reports whether principalID may act under actingID (itself or an owned company).
func (r *Resolver) CanActAs(ctx context.Context, principalID, actingID string) (bool, error) {
	return r.Controls(ctx, principalID, actingID)
}

// Controls reports whether ownerID is among the identities principalID controls.
// Callers that already hold the resource use it to avoid a second fetch.
func (r *Resolver) Controls(ctx context.Context, principalID, ownerID string) (bool, error) {
	if principalID == "" || ownerID == "" {
		return false, nil
	}
	if principalID == ownerID {
		return true, nil
	}
	ids, err := r.ControllingIdentities(ctx, principalID)
	if err != nil {
		return false, err
	}
	return ids.Has(ownerID), nil
}

func (r *Resolver) loadTender(ctx context.Context, id string) (*entity.Tender, error) {
	ctx, cancel := service.WithStoreTimeout(ctx, r.timeout)
	defer cancel()
	tender, err := r.tenders.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errorbank.NotFound("tender not found")
	}
	if err != nil {
		return nil, service.Unavailable("load tender", err)
	}
	return tender, nil
}

func (r *Resolver) loadApplication(ctx context.Context, id string) (*entity.Application, error) {
	ctx, cancel := service.WithStoreTimeout(ctx, r.timeout)
	defer cancel()
	app, err := r.applications.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errorbank.NotFound("application not found")
	}
	if err != nil {
		return nil, service.Unavailable("load application", err)
	}
	return app, nil
}

func (r *Resolver) loadCompany(ctx context.Context, id string) (*entity.Company, error) {
	ctx, cancel := service.WithStoreTimeout(ctx, r.timeout)
	defer cancel()
	company, err := r.companies.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errorbank.NotFound("company not found")
	}
	if err != nil {
		return nil, service.Unavailable("load company", err)
	}
	return company, nil
}
