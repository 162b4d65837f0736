// Package memstore is an in-memory backing store for service tests. It mirrors
// the database guarantees the services rely on: the partial unique index on
// active applications, status-guarded updates and all-or-nothing transactions.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Additional-Code/buildmart/internal/entity"
	"github.com/Additional-Code/buildmart/internal/repository"
	apprepo "github.com/Additional-Code/buildmart/internal/repository/application"
	companyrepo "github.com/Additional-Code/buildmart/internal/repository/company"
	lifecyclerepo "github.com/Additional-Code/buildmart/internal/repository/lifecycle"
	tenderrepo "github.com/Additional-Code/buildmart/internal/repository/tender"
)

// DB holds the shared state behind every store view.
type DB struct {
	mu        sync.Mutex
	tenders   map[string]entity.Tender
	apps      map[string]entity.Application
	companies map[string]entity.Company
	failures  map[string]error
}

// New returns an empty DB.
func New() *DB {
	return &DB{
		tenders:   make(map[string]entity.Tender),
		apps:      make(map[string]entity.Application),
		companies: make(map[string]entity.Company),
		failures:  make(map[string]error),
	}
}

// FailOn makes every call of op return err until cleared with a nil err.
// Operation names are "<store>.<Method>", e.g. "tenders.GetByID" or "tx.UpdateTenderStatus".
func (db *DB) FailOn(op string, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err == nil {
		delete(db.failures, op)
		return
	}
	db.failures[op] = err
}

func (db *DB) check(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return db.failures[op]
}

// Tenders returns the tender store view.
func (db *DB) Tenders() *Tenders { return &Tenders{db: db} }

// Applications returns the application store view.
func (db *DB) Applications() *Applications { return &Applications{db: db} }

// Companies returns the company store view.
func (db *DB) Companies() *Companies { return &Companies{db: db} }

// Transactor returns the lifecycle transactor view.
func (db *DB) Transactor() *Transactor { return &Transactor{db: db} }

// Tender returns a copy of the stored tender.
func (db *DB) Tender(id string) (entity.Tender, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	t, ok := db.tenders[id]
	return t, ok
}

// Application returns a copy of the stored application.
func (db *DB) Application(id string) (entity.Application, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	a, ok := db.apps[id]
	return a, ok
}

// PutTender stores t as-is.
func (db *DB) PutTender(t entity.Tender) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.tenders[t.ID] = t
}

// PutApplication stores a as-is.
func (db *DB) PutApplication(a entity.Application) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.apps[a.ID] = a
}

// PutCompany stores c as-is.
func (db *DB) PutCompany(c entity.Company) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.companies[c.ID] = c
}

// Tenders implements tenderrepo.Store.
type Tenders struct{ db *DB }

var _ tenderrepo.Store = (*Tenders)(nil)

func (s *Tenders) Create(ctx context.Context, tender *entity.Tender) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.check(ctx, "tenders.Create"); err != nil {
		return err
	}
	if _, exists := s.db.tenders[tender.ID]; exists {
		return repository.ErrConflict
	}
	s.db.tenders[tender.ID] = *tender
	return nil
}

func (s *Tenders) GetByID(ctx context.Context, id string) (*entity.Tender, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.check(ctx, "tenders.GetByID"); err != nil {
		return nil, err
	}
	t, ok := s.db.tenders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (s *Tenders) Update(ctx context.Context, tender *entity.Tender, expected entity.TenderStatus) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.check(ctx, "tenders.Update"); err != nil {
		return err
	}
	current, ok := s.db.tenders[tender.ID]
	if !ok || current.Status != expected {
		return repository.ErrStaleStatus
	}
	next := *tender
	next.ClientID = current.ClientID
	next.CreatedAt = current.CreatedAt
	s.db.tenders[tender.ID] = next
	return nil
}

func (s *Tenders) List(ctx context.Context, filter tenderrepo.Filter) ([]entity.Tender, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.check(ctx, "tenders.List"); err != nil {
		return nil, err
	}
	var out []entity.Tender
	for _, t := range s.db.tenders {
		t := t
		if filter.Match(&t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[i].CreatedAt, out[i].ID, out[j].CreatedAt, out[j].ID) })
	limit, offset := filter.Page()
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Applications implements apprepo.Store.
type Applications struct{ db *DB }

var _ apprepo.Store = (*Applications)(nil)

func (s *Applications) Create(ctx context.Context, app *entity.Application) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.check(ctx, "applications.Create"); err != nil {
		return err
	}
	if _, exists := s.db.apps[app.ID]; exists {
		return repository.ErrConflict
	}
	if app.Status.Active() && s.db.activeLocked(app.TenderID, app.ContractorID, "") {
		return repository.ErrConflict
	}
	s.db.apps[app.ID] = *app
	return nil
}

func (s *Applications) GetByID(ctx context.Context, id string) (*entity.Application, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.check(ctx, "applications.GetByID"); err != nil {
		return nil, err
	}
	a, ok := s.db.apps[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (s *Applications) FindActive(ctx context.Context, tenderID, contractorID string) (*entity.Application, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.check(ctx, "applications.FindActive"); err != nil {
		return nil, err
	}
	for _, a := range s.db.apps {
		if a.TenderID == tenderID && a.ContractorID == contractorID && a.Status.Active() {
			a := a
			return &a, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Applications) UpdateStatus(ctx context.Context, id string, from, to entity.ApplicationStatus, at time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.check(ctx, "applications.UpdateStatus"); err != nil {
		return err
	}
	return s.db.setApplicationStatusLocked(id, from, to, at)
}

func (s *Applications) ListByTender(ctx context.Context, tenderID string) ([]entity.Application, error) {
	return s.list(ctx, "applications.ListByTender", func(a entity.Application) bool { return a.TenderID == tenderID })
}

func (s *Applications) ListByContractors(ctx context.Context, contractorIDs []string) ([]entity.Application, error) {
	set := make(map[string]struct{}, len(contractorIDs))
	for _, id := range contractorIDs {
		set[id] = struct{}{}
	}
	return s.list(ctx, "applications.ListByContractors", func(a entity.Application) bool {
		_, ok := set[a.ContractorID]
		return ok
	})
}

func (s *Applications) list(ctx context.Context, op string, keep func(entity.Application) bool) ([]entity.Application, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.check(ctx, op); err != nil {
		return nil, err
	}
	var out []entity.Application
	for _, a := range s.db.apps {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[i].CreatedAt, out[i].ID, out[j].CreatedAt, out[j].ID) })
	return out, nil
}

// Companies implements companyrepo.Store.
type Companies struct{ db *DB }

var _ companyrepo.Store = (*Companies)(nil)

func (s *Companies) Create(ctx context.Context, company *entity.Company) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.check(ctx, "companies.Create"); err != nil {
		return err
	}
	s.db.companies[company.ID] = *company
	return nil
}

func (s *Companies) GetByID(ctx context.Context, id string) (*entity.Company, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.check(ctx, "companies.GetByID"); err != nil {
		return nil, err
	}
	c, ok := s.db.companies[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (s *Companies) ListIDsByOwner(ctx context.Context, ownerID string) ([]string, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.check(ctx, "companies.ListIDsByOwner"); err != nil {
		return nil, err
	}
	var ids []string
	for _, c := range s.db.companies {
		if c.OwnerID == ownerID {
			ids = append(ids, c.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Transactor implements lifecycle.Transactor with staged, all-or-nothing commits.
type Transactor struct{ db *DB }

var _ lifecyclerepo.Transactor = (*Transactor)(nil)

// RunInTx stages every write made through tx and applies them only when fn succeeds.
func (t *Transactor) RunInTx(ctx context.Context, fn func(ctx context.Context, tx lifecyclerepo.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &memTx{db: t.db}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	if err := t.db.check(ctx, "tx.Commit"); err != nil {
		return err
	}
	for _, w := range tx.apps {
		if cur, ok := t.db.apps[w.id]; !ok || cur.Status != w.from {
			return repository.ErrStaleStatus
		}
	}
	for _, w := range tx.tenders {
		if cur, ok := t.db.tenders[w.id]; !ok || cur.Status != w.from {
			return repository.ErrStaleStatus
		}
	}
	for _, w := range tx.apps {
		_ = t.db.setApplicationStatusLocked(w.id, w.from, w.to, w.at)
	}
	for _, w := range tx.tenders {
		cur := t.db.tenders[w.id]
		cur.Status = w.to
		cur.UpdatedAt = w.at
		t.db.tenders[w.id] = cur
	}
	return nil
}

type appWrite struct {
	id       string
	from, to entity.ApplicationStatus
	at       time.Time
}

type tenderWrite struct {
	id       string
	from, to entity.TenderStatus
	at       time.Time
}

type memTx struct {
	db      *DB
	apps    []appWrite
	tenders []tenderWrite
}

func (tx *memTx) UpdateApplicationStatus(ctx context.Context, id string, from, to entity.ApplicationStatus, at time.Time) error {
	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()
	if err := tx.db.check(ctx, "tx.UpdateApplicationStatus"); err != nil {
		return err
	}
	if cur, ok := tx.db.apps[id]; !ok || cur.Status != from {
		return repository.ErrStaleStatus
	}
	tx.apps = append(tx.apps, appWrite{id: id, from: from, to: to, at: at})
	return nil
}

func (tx *memTx) UpdateTenderStatus(ctx context.Context, id string, from, to entity.TenderStatus, at time.Time) error {
	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()
	if err := tx.db.check(ctx, "tx.UpdateTenderStatus"); err != nil {
		return err
	}
	if cur, ok := tx.db.tenders[id]; !ok || cur.Status != from {
		return repository.ErrStaleStatus
	}
	tx.tenders = append(tx.tenders, tenderWrite{id: id, from: from, to: to, at: at})
	return nil
}

func (db *DB) activeLocked(tenderID, contractorID, exceptID string) bool {
	for id, a := range db.apps {
		if id != exceptID && a.TenderID == tenderID && a.ContractorID == contractorID && a.Status.Active() {
			return true
		}
	}
	return false
}

func (db *DB) setApplicationStatusLocked(id string, from, to entity.ApplicationStatus, at time.Time) error {
	cur, ok := db.apps[id]
	if !ok || cur.Status != from {
		return repository.ErrStaleStatus
	}
	if to.Active() && !from.Active() && db.activeLocked(cur.TenderID, cur.ContractorID, id) {
		return repository.ErrConflict
	}
	cur.Status = to
	cur.UpdatedAt = at
	db.apps[id] = cur
	return nil
}

func newer(ta time.Time, ida string, tb time.Time, idb string) bool {
	if !ta.Equal(tb) {
		return ta.After(tb)
	}
	return ida > idb
}
