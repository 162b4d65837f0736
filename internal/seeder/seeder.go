package seeder

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/buildmart/internal/database"
	"github.com/Additional-Code/buildmart/internal/entity"
)

// Module provides the seeder to Fx.
var Module = fx.Provide(New)

// Principal ids the demo data belongs to. Mint tokens for them with `buildmart token issue`.
const (
	DemoClientID     = "demo-client"
	DemoContractorID = "demo-contractor"
)

// Fixed ids keep seeding idempotent.
const (
	demoCompanyID     = "6f1f7d8e-3b0a-4c57-9a52-0d5f1c2b9a01"
	demoTenderRoofID  = "0c7e3a55-2f4b-4a8e-b1a6-5e9d2c7f4b10"
	demoTenderDraftID = "8d2b6c14-7e9f-4d3a-a0c5-1b4e6f8a2c20"
	demoApplicationID = "c4a9e2f7-5b1d-4e6c-8f3a-9d7b2e5c1a30"
)

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	db     *bun.DB
	logger *zap.Logger
	now    func() time.Time
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, logger *zap.Logger) *Seeder {
	return &Seeder{db: conns.Writer, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Demo seeds a company, a published and a draft tender, and one pending
// application. Rows that already exist are left untouched.
func (s *Seeder) Demo(ctx context.Context) error {
	now := s.now()
	budget := func(v float64) *float64 { return &v }

	company := entity.Company{ID: demoCompanyID, OwnerID: DemoClientID, Name: "Demo Construction Ltd", CreatedAt: now, UpdatedAt: now}
	tenders := []entity.Tender{
		{
			ID:          demoTenderRoofID,
			ClientID:    demoCompanyID,
			Title:       "Roof repair",
			Description: "Replace damaged tiles and flashing on a two-storey house",
			BudgetMin:   budget(1000),
			BudgetMax:   budget(5000),
			Location:    "Manchester",
			Category:    "roofing",
			Status:      entity.TenderPublished,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		{
			ID:          demoTenderDraftID,
			ClientID:    DemoClientID,
			Title:       "Garden wall rebuild",
			Description: "Rebuild a 12m brick boundary wall",
			Location:    "Manchester",
			Category:    "masonry",
			Status:      entity.TenderDraft,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}
	application := entity.Application{
		ID:           demoApplicationID,
		TenderID:     demoTenderRoofID,
		ContractorID: DemoContractorID,
		Proposal:     "Full retile with breathable membrane",
		Budget:       4000,
		Timeline:     "2 weeks",
		Status:       entity.ApplicationPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(&company).Ignore().Exec(ctx); err != nil {
			return fmt.Errorf("seed company: %w", err)
		}
		if _, err := tx.NewInsert().Model(&tenders).Ignore().Exec(ctx); err != nil {
			return fmt.Errorf("seed tenders: %w", err)
		}
		if _, err := tx.NewInsert().Model(&application).Ignore().Exec(ctx); err != nil {
			return fmt.Errorf("seed application: %w", err)
		}
		if s.logger != nil {
			s.logger.Info("seeded demo data",
				zap.Int("companies", 1),
				zap.Int("tenders", len(tenders)),
				zap.Int("applications", 1),
			)
		}
		return nil
	})
}
