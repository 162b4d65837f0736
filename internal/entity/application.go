package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// ApplicationStatus is the lifecycle state of a contractor's bid.
type ApplicationStatus string

const (
	ApplicationPending   ApplicationStatus = "pending"
	ApplicationAccepted  ApplicationStatus = "accepted"
	ApplicationRejected  ApplicationStatus = "rejected"
	ApplicationWithdrawn ApplicationStatus = "withdrawn"
)

// Valid reports whether s is a known application status.
func (s ApplicationStatus) Valid() bool {
	switch s {
	case ApplicationPending, ApplicationAccepted, ApplicationRejected, ApplicationWithdrawn:
		return true
	default:
		return false
	}
}

// Active reports whether the status counts towards the one-per-contractor rule.
func (s ApplicationStatus) Active() bool {
	return s == ApplicationPending || s == ApplicationAccepted
}

// ActiveApplicationStatuses lists statuses covered by the uniqueness constraint.
var ActiveApplicationStatuses = []ApplicationStatus{ApplicationPending, ApplicationAccepted}

// Application is a contractor's bid against a tender.
type Application struct {
	bun.BaseModel `bun:"table:applications"`

	ID           string            `bun:"id,pk" json:"id"`
	TenderID     string            `bun:"tender_id,notnull" json:"tender_id"`
	ContractorID string            `bun:"contractor_id,notnull" json:"contractor_id" validate:"required"`
	Proposal     string            `bun:"proposal,notnull" json:"proposal" validate:"required"`
	Budget       float64           `bun:"budget,notnull" json:"budget" validate:"finite,gte=0"`
	Timeline     string            `bun:"timeline" json:"timeline,omitempty" validate:"max=200"`
	Status       ApplicationStatus `bun:"status,notnull" json:"status"`
	CreatedAt    time.Time         `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time         `bun:"updated_at,nullzero" json:"updated_at"`
}
