package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// TenderStatus is the lifecycle state of a tender.
type TenderStatus string

const (
	TenderDraft      TenderStatus = "draft"
	TenderPublished  TenderStatus = "published"
	TenderInProgress TenderStatus = "in_progress"
	TenderCompleted  TenderStatus = "completed"
	TenderCancelled  TenderStatus = "cancelled"
)

// tenderTransitions lists the moves an owner may request directly.
// in_progress is entered only through application acceptance.
var tenderTransitions = map[TenderStatus][]TenderStatus{
	TenderDraft:      {TenderPublished, TenderCancelled},
	TenderPublished:  {TenderCancelled},
	TenderInProgress: {TenderCompleted, TenderCancelled},
	TenderCompleted:  {},
	TenderCancelled:  {},
}

// Valid reports whether s is a known tender status.
func (s TenderStatus) Valid() bool {
	_, ok := tenderTransitions[s]
	return ok
}

// Terminal reports whether no further status change is possible from s.
func (s TenderStatus) Terminal() bool {
	return s == TenderCompleted || s == TenderCancelled
}

// CanTransitionTo reports whether the owner may move a tender from s to next.
func (s TenderStatus) CanTransitionTo(next TenderStatus) bool {
	for _, allowed := range tenderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Tender is a client-posted request for construction work.
type Tender struct {
	bun.BaseModel `bun:"table:tenders"`

	ID          string       `bun:"id,pk" json:"id"`
	ClientID    string       `bun:"client_id,notnull" json:"client_id" validate:"required"`
	Title       string       `bun:"title,notnull" json:"title" validate:"required,max=200"`
	Description string       `bun:"description,notnull" json:"description" validate:"required"`
	BudgetMin   *float64     `bun:"budget_min" json:"budget_min,omitempty" validate:"omitempty,finite,gte=0"`
	BudgetMax   *float64     `bun:"budget_max" json:"budget_max,omitempty" validate:"omitempty,finite,gte=0"`
	Location    string       `bun:"location" json:"location,omitempty" validate:"max=200"`
	Category    string       `bun:"category" json:"category,omitempty" validate:"max=100"`
	Deadline    *time.Time   `bun:"deadline" json:"deadline,omitempty"`
	Status      TenderStatus `bun:"status,notnull" json:"status"`
	CreatedAt   time.Time    `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time    `bun:"updated_at,nullzero" json:"updated_at"`
}

// VisibleTo reports whether a caller controlling identities may see the tender.
func (t *Tender) VisibleTo(identities map[string]struct{}) bool {
	if t.Status == TenderPublished {
		return true
	}
	_, owner := identities[t.ClientID]
	return owner
}
