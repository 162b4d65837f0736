package lifecycle

import (
	"context"
	"database/sql"
	"time"

	"github.com/uptrace/bun"

	"github.com/Additional-Code/buildmart/internal/database"
	"github.com/Additional-Code/buildmart/internal/entity"
	apprepo "github.com/Additional-Code/buildmart/internal/repository/application"
	tenderrepo "github.com/Additional-Code/buildmart/internal/repository/tender"
)

// Tx exposes the writes that must commit together when an application is accepted.
type Tx interface {
	UpdateApplicationStatus(ctx context.Context, id string, from, to entity.ApplicationStatus, at time.Time) error
	UpdateTenderStatus(ctx context.Context, id string, from, to entity.TenderStatus, at time.Time) error
}

// Transactor runs fn inside a single database transaction. Any error returned
// by fn rolls back every write made through tx.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Repository implements Transactor on the writer connection.
type Repository struct {
	db           *bun.DB
	tenders      *tenderrepo.Repository
	applications *apprepo.Repository
}

// NewRepository wires the transactor.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		db:           conns.Writer,
		tenders:      tenderrepo.NewRepository(conns),
		applications: apprepo.NewRepository(conns),
	}
}

// RunInTx executes fn in a read-committed transaction.
func (r *Repository) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	opts := &sql.TxOptions{Isolation: sql.LevelReadCommitted}
	return r.db.RunInTx(ctx, opts, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, txStore{
			tenders:      r.tenders.WithTx(tx),
			applications: r.applications.WithTx(tx),
		})
	})
}

type txStore struct {
	tenders      *tenderrepo.Repository
	applications *apprepo.Repository
}

func (s txStore) UpdateApplicationStatus(ctx context.Context, id string, from, to entity.ApplicationStatus, at time.Time) error {
	return s.applications.UpdateStatus(ctx, id, from, to, at)
}

func (s txStore) UpdateTenderStatus(ctx context.Context, id string, from, to entity.TenderStatus, at time.Time) error {
	return s.tenders.UpdateStatus(ctx, id, from, to, at)
}
