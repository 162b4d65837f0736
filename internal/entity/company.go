package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// Company is reference data: a business controlled by a single owner principal.
type Company struct {
	bun.BaseModel `bun:"table:companies"`

	ID        string    `bun:"id,pk" json:"id"`
	OwnerID   string    `bun:"owner_id,notnull" json:"owner_id" validate:"required"`
	Name      string    `bun:"name,notnull" json:"name" validate:"required,max=200"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,nullzero" json:"updated_at"`
}
