package company

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/buildmart/internal/database"
	"github.com/Additional-Code/buildmart/internal/entity"
	"github.com/Additional-Code/buildmart/internal/repository"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/buildmart/repository/company")

// Store is the persistence contract for company reference data.
type Store interface {
	Create(ctx context.Context, company *entity.Company) error
	GetByID(ctx context.Context, id string) (*entity.Company, error)
	ListIDsByOwner(ctx context.Context, ownerID string) ([]string, error)
}

// Repository encapsulates access to companies.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// Create persists a new company.
func (r *Repository) Create(ctx context.Context, company *entity.Company) error {
	if company == nil {
		return errors.New("nil company")
	}
	ctx, span := repoTracer.Start(ctx, "CompanyRepository.Create", trace.WithAttributes(attribute.String("company.id", company.ID)))
	defer span.End()

	_, err := r.writer.NewInsert().Model(company).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// GetByID fetches a company by primary key.
func (r *Repository) GetByID(ctx context.Context, id string) (*entity.Company, error) {
	ctx, span := repoTracer.Start(ctx, "CompanyRepository.GetByID", trace.WithAttributes(attribute.String("company.id", id)))
	defer span.End()

	company := new(entity.Company)
	err := r.reader.NewSelect().Model(company).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, repository.ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return company, nil
}

// ListIDsByOwner returns the ids of companies controlled by ownerID.
func (r *Repository) ListIDsByOwner(ctx context.Context, ownerID string) ([]string, error) {
	ctx, span := repoTracer.Start(ctx, "CompanyRepository.ListIDsByOwner")
	defer span.End()

	var ids []string
	err := r.reader.NewSelect().
		Model((*entity.Company)(nil)).
		Column("id").
		Where("owner_id = ?", ownerID).
		Order("id").
		Scan(ctx, &ids)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return ids, nil
}
