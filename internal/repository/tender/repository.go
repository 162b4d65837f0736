package tender

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

var repoTracer = otel.Tracer("github.com/Additional-Code/buildmart/repository/tender")

// Store is the persistence contract for tenders.
type Store interface {
	Create(ctx context.Context, tender *entity.Tender) error
	GetByID(ctx context.Context, id string) (*entity.Tender, error)
	Update(ctx context.Context, tender *entity.Tender, expected entity.TenderStatus) error
	List(ctx context.Context, filter Filter) ([]entity.Tender, error)
}

// Repository encapsulates read/write access for tenders.
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

// Create persists a new tender using the write connection.
func (r *Repository) Create(ctx context.Context, tender *entity.Tender) error {
	if tender == nil {
		return errors.New("nil tender")
	}
	ctx, span := repoTracer.Start(ctx, "TenderRepository.Create", trace.WithAttributes(attribute.String("tender.id", tender.ID)))
	defer span.End()

	_, err := r.writer.NewInsert().Model(tender).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// GetByID fetches a tender by primary key using the read replica when available.
func (r *Repository) GetByID(ctx context.Context, id string) (*entity.Tender, error) {
	ctx, span := repoTracer.Start(ctx, "TenderRepository.GetByID", trace.WithAttributes(attribute.String("tender.id", id)))
	defer span.End()

	tender := new(entity.Tender)
	err := r.reader.NewSelect().Model(tender).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, repository.ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return tender, nil
}

// Update rewrites every mutable column, provided the stored status still equals expected.
func (r *Repository) Update(ctx context.Context, tender *entity.Tender, expected entity.TenderStatus) error {
	ctx, span := repoTracer.Start(ctx, "TenderRepository.Update", trace.WithAttributes(attribute.String("tender.id", tender.ID)))
	defer span.End()

	res, err := r.writer.NewUpdate().
		Model(tender).
		ExcludeColumn("id", "client_id", "created_at").
		WherePK().
		Where("status = ?", expected).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return err
	}
	return requireRow(res)
}

// UpdateStatus moves a tender from one status to another in a single guarded write.
func (r *Repository) UpdateStatus(ctx context.Context, id string, from, to entity.TenderStatus, at time.Time) error {
	ctx, span := repoTracer.Start(ctx, "TenderRepository.UpdateStatus", trace.WithAttributes(
		attribute.String("tender.id", id),
		attribute.String("tender.status", string(to)),
	))
	defer span.End()

	res, err := r.writer.NewUpdate().
		Model((*entity.Tender)(nil)).
		Set("status = ?", to).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Where("status = ?", from).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return err
	}
	return requireRow(res)
}

// List returns tenders matching filter, newest first.
func (r *Repository) List(ctx context.Context, filter Filter) ([]entity.Tender, error) {
	ctx, span := repoTracer.Start(ctx, "TenderRepository.List")
	defer span.End()

	var tenders []entity.Tender
	q := r.reader.NewSelect().Model(&tenders)
	if len(filter.Statuses) > 0 {
		q = q.Where("status IN (?)", bun.In(filter.Statuses))
	}
	if len(filter.ClientIDs) > 0 {
		q = q.Where("client_id IN (?)", bun.In(filter.ClientIDs))
	}
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if filter.Location != "" {
		q = q.Where("location = ?", filter.Location)
	}
	if filter.MaxBudget != nil {
		q = q.Where("(budget_min IS NULL OR budget_min <= ?)", *filter.MaxBudget)
	}
	if filter.MinBudget != nil {
		q = q.Where("(budget_max IS NULL OR budget_max >= ?)", *filter.MinBudget)
	}
	limit, offset := filter.Page()
	err := q.Order("created_at DESC", "id DESC").Limit(limit).Offset(offset).Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return tenders, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrStaleStatus
	}
	return nil
}
