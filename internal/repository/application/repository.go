package application

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/buildmart/internal/database"
	"github.com/Additional-Code/buildmart/internal/entity"
	"github.com/Additional-Code/buildmart/internal/repository"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/buildmart/repository/application")

// Store is the persistence contract for applications.
type Store interface {
	Create(ctx context.Context, app *entity.Application) error
	GetByID(ctx context.Context, id string) (*entity.Application, error)
	FindActive(ctx context.Context, tenderID, contractorID string) (*entity.Application, error)
	UpdateStatus(ctx context.Context, id string, from, to entity.ApplicationStatus, at time.Time) error
	ListByTender(ctx context.Context, tenderID string) ([]entity.Application, error)
	ListByContractors(ctx context.Context, contractorIDs []string) ([]entity.Application, error)
}

// Repository encapsulates read/write access for applications.
type Repository struct {
	writer bun.IDB
	reader bun.IDB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// WithTx returns a copy bound to tx for both reads and writes.
func (r *Repository) WithTx(tx bun.Tx) *Repository {
	return &Repository{writer: tx, reader: tx}
}

// Create inserts a new application. The partial unique index on
// (tender_id, contractor_id) over active statuses turns a racing duplicate
// into repository.ErrConflict.
func (r *Repository) Create(ctx context.Context, app *entity.Application) error {
	if app == nil {
		return errors.New("nil application")
	}
	ctx, span := repoTracer.Start(ctx, "ApplicationRepository.Create", trace.WithAttributes(
		attribute.String("application.id", app.ID),
		attribute.String("tender.id", app.TenderID),
	))
	defer span.End()

	_, err := r.writer.NewInsert().Model(app).Exec(ctx)
	if repository.IsUniqueViolation(err) {
		span.SetStatus(codes.Error, "duplicate")
		return repository.ErrConflict
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// GetByID fetches an application by primary key.
func (r *Repository) GetByID(ctx context.Context, id string) (*entity.Application, error) {
	ctx, span := repoTracer.Start(ctx, "ApplicationRepository.GetByID", trace.WithAttributes(attribute.String("application.id", id)))
	defer span.End()

	app := new(entity.Application)
	err := r.reader.NewSelect().Model(app).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, repository.ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return app, nil
}

// FindActive returns the pending or accepted application of a contractor on a tender.
// Reads go to the writer so a just-committed submission is never missed.
func (r *Repository) FindActive(ctx context.Context, tenderID, contractorID string) (*entity.Application, error) {
	ctx, span := repoTracer.Start(ctx, "ApplicationRepository.FindActive", trace.WithAttributes(attribute.String("tender.id", tenderID)))
	defer span.End()

	app := new(entity.Application)
	err := r.writer.NewSelect().
		Model(app).
		Where("tender_id = ?", tenderID).
		Where("contractor_id = ?", contractorID).
		Where("status IN (?)", bun.In(entity.ActiveApplicationStatuses)).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return app, nil
}

// UpdateStatus moves an application between statuses in a single guarded write.
func (r *Repository) UpdateStatus(ctx context.Context, id string, from, to entity.ApplicationStatus, at time.Time) error {
	ctx, span := repoTracer.Start(ctx, "ApplicationRepository.UpdateStatus", trace.WithAttributes(
		attribute.String("application.id", id),
		attribute.String("application.status", string(to)),
	))
	defer span.End()

	res, err := r.writer.NewUpdate().
		Model((*entity.Application)(nil)).
		Set("status = ?", to).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Where("status = ?", from).
		Exec(ctx)
	if repository.IsUniqueViolation(err) {
		return repository.ErrConflict
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrStaleStatus
	}
	return nil
}

// ListByTender returns every application on a tender, newest first.
func (r *Repository) ListByTender(ctx context.Context, tenderID string) ([]entity.Application, error) {
	ctx, span := repoTracer.Start(ctx, "ApplicationRepository.ListByTender", trace.WithAttributes(attribute.String("tender.id", tenderID)))
	defer span.End()

	var apps []entity.Application
	err := r.reader.NewSelect().
		Model(&apps).
		Where("tender_id = ?", tenderID).
		Order("created_at DESC", "id DESC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return apps, nil
}

// ListByContractors returns applications submitted under any of the given identities.
func (r *Repository) ListByContractors(ctx context.Context, contractorIDs []string) ([]entity.Application, error) {
	if len(contractorIDs) == 0 {
		return nil, nil
	}
	ctx, span := repoTracer.Start(ctx, "ApplicationRepository.ListByContractors")
	defer span.End()

	var apps []entity.Application
	err := r.reader.NewSelect().
		Model(&apps).
		Where("contractor_id IN (?)", bun.In(contractorIDs)).
		Order("created_at DESC", "id DESC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return apps, nil
}
