package dto

import (
	"time"

	"github.com/Additional-Code/buildmart/internal/entity"
)

// SubmitApplicationRequest is the body of POST /tenders/:id/applications.
type SubmitApplicationRequest struct {
	CompanyID string   `json:"company_id"`
	Proposal  string   `json:"proposal"`
	Budget    *float64 `json:"budget"`
	Timeline  string   `json:"timeline"`
}

// UpdateApplicationStatusRequest is the body of PATCH /applications/:id/status.
type UpdateApplicationStatusRequest struct {
	Status string `json:"status"`
}

// ApplicationResponse is the representation of an application.
type ApplicationResponse struct {
	ID           string    `json:"id"`
	TenderID     string    `json:"tender_id"`
	ContractorID string    `json:"contractor_id"`
	Proposal     string    `json:"proposal"`
	Budget       float64   `json:"budget"`
	Timeline     string    `json:"timeline,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AcceptanceResponse reports both records moved by an acceptance.
type AcceptanceResponse struct {
	Application ApplicationResponse `json:"application"`
	Tender      TenderResponse      `json:"tender"`
}

// NewApplicationResponse maps an entity onto its response shape.
func NewApplicationResponse(a *entity.Application) ApplicationResponse {
	return ApplicationResponse{
		ID:           a.ID,
		TenderID:     a.TenderID,
		ContractorID: a.ContractorID,
		Proposal:     a.Proposal,
		Budget:       a.Budget,
		Timeline:     a.Timeline,
		Status:       string(a.Status),
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

// NewApplicationList maps a slice of applications.
func NewApplicationList(apps []entity.Application) []ApplicationResponse {
	out := make([]ApplicationResponse, 0, len(apps))
	for i := range apps {
		out = append(out, NewApplicationResponse(&apps[i]))
	}
	return out
}
