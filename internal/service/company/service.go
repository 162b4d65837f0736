package company

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/buildmart/internal/config"
	"github.com/Additional-Code/buildmart/internal/entity"
	"github.com/Additional-Code/buildmart/internal/identity"
	"github.com/Additional-Code/buildmart/internal/repository"
	repo "github.com/Additional-Code/buildmart/internal/repository/company"
	"github.com/Additional-Code/buildmart/internal/service"
	"github.com/Additional-Code/buildmart/pkg/errorbank"
)

// Service registers and looks up companies.
type Service struct {
	store   repo.Store
	timeout time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Store  repo.Store
	Config config.Config
	Logger *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:   p.Store,
		timeout: p.Config.Store.OperationTimeout,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Register creates a company owned by the caller.
func (s *Service) Register(ctx context.Context, principal identity.Principal, name string) (*entity.Company, error) {
	if principal.IsAnonymous() {
		return nil, errorbank.Unauthenticated("sign in to register a company")
	}
	now := s.now()
	company := &entity.Company{
		ID:        uuid.NewString(),
		OwnerID:   principal.ID,
		Name:      strings.TrimSpace(name),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := service.Validate(company); err != nil {
		return nil, err
	}
	ctx, cancel := service.WithStoreTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.store.Create(ctx, company); err != nil {
		return nil, service.Unavailable("register company", err)
	}
	s.logger.Info("company registered", zap.String("company_id", company.ID), zap.String("owner_id", company.OwnerID))
	return company, nil
}

// Get returns a company by id.
func (s *Service) Get(ctx context.Context, companyID string) (*entity.Company, error) {
	ctx, cancel := service.WithStoreTimeout(ctx, s.timeout)
	defer cancel()
	company, err := s.store.GetByID(ctx, companyID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errorbank.NotFound("company not found")
	}
	if err != nil {
		return nil, service.Unavailable("load company", err)
	}
	return company, nil
}
