package dto

import (
	"time"

	"github.com/Additional-Code/buildmart/internal/entity"
)

// CreateCompanyRequest is the body of POST /companies.
type CreateCompanyRequest struct {
	Name string `json:"name"`
}

// CompanyResponse is the representation of a company.
type CompanyResponse struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// NewCompanyResponse maps an entity onto its response shape.
func NewCompanyResponse(c *entity.Company) CompanyResponse {
	return CompanyResponse{ID: c.ID, OwnerID: c.OwnerID, Name: c.Name, CreatedAt: c.CreatedAt}
}
