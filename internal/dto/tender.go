package dto

import (
	"time"

	"github.com/Additional-Code/buildmart/internal/entity"
)

// CreateTenderRequest is the body of POST /tenders.
type CreateTenderRequest struct {
	CompanyID   string     `json:"company_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	BudgetMin   *float64   `json:"budget_min"`
	BudgetMax   *float64   `json:"budget_max"`
	Location    string     `json:"location"`
	Category    string     `json:"category"`
	Deadline    *time.Time `json:"deadline"`
	Draft       bool       `json:"draft"`
}

// UpdateTenderRequest is the body of PATCH /tenders/:id. Absent fields are left
// unchanged; an explicit null clears budget_min, budget_max or deadline.
type UpdateTenderRequest struct {
	Title       *string              `json:"title"`
	Description *string              `json:"description"`
	BudgetMin   Clearable[float64]   `json:"budget_min"`
	BudgetMax   Clearable[float64]   `json:"budget_max"`
	Location    *string              `json:"location"`
	Category    *string              `json:"category"`
	Deadline    Clearable[time.Time] `json:"deadline"`
	Status      *string              `json:"status"`
}

// TenderResponse is the public representation of a tender.
type TenderResponse struct {
	ID          string     `json:"id"`
	ClientID    string     `json:"client_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	BudgetMin   *float64   `json:"budget_min,omitempty"`
	BudgetMax   *float64   `json:"budget_max,omitempty"`
	Location    string     `json:"location,omitempty"`
	Category    string     `json:"category,omitempty"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewTenderResponse maps an entity onto its response shape.
func NewTenderResponse(t *entity.Tender) TenderResponse {
	return TenderResponse{
		ID:          t.ID,
		ClientID:    t.ClientID,
		Title:       t.Title,
		Description: t.Description,
		BudgetMin:   t.BudgetMin,
		BudgetMax:   t.BudgetMax,
		Location:    t.Location,
		Category:    t.Category,
		Deadline:    t.Deadline,
		Status:      string(t.Status),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// NewTenderList maps a slice of tenders.
func NewTenderList(tenders []entity.Tender) []TenderResponse {
	out := make([]TenderResponse, 0, len(tenders))
	for i := range tenders {
		out = append(out, NewTenderResponse(&tenders[i]))
	}
	return out
}
