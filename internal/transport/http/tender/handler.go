package tender

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/buildmart/internal/dto"
	"github.com/Additional-Code/buildmart/internal/entity"
	"github.com/Additional-Code/buildmart/internal/identity"
	"github.com/Additional-Code/buildmart/internal/presentation/http/request"
	"github.com/Additional-Code/buildmart/internal/presentation/http/response"
	service "github.com/Additional-Code/buildmart/internal/service/tender"
	"github.com/Additional-Code/buildmart/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/buildmart/transport/http/tender")

// Handler exposes tender endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a tender Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/tenders")
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.getByID)
	g.PATCH("/:id", h.update)
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)

	var payload dto.CreateTenderRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "tenders.create")
	defer span.End()

	tender, err := h.svc.Create(ctx, identity.FromContext(ctx), service.CreateInput{
		CompanyID:   payload.CompanyID,
		Title:       payload.Title,
		Description: payload.Description,
		BudgetMin:   payload.BudgetMin,
		BudgetMax:   payload.BudgetMax,
		Location:    payload.Location,
		Category:    payload.Category,
		Deadline:    payload.Deadline,
		Draft:       payload.Draft,
	})
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(dto.NewTenderResponse(tender)).Build()
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)

	var (
		in                   service.ListInput
		status               string
		minBudget, maxBudget float64
	)
	err := echo.QueryParamsBinder(c).
		Bool("mine", &in.Mine).
		String("status", &status).
		String("category", &in.Category).
		String("location", &in.Location).
		Float64("min_budget", &minBudget).
		Float64("max_budget", &maxBudget).
		Int("limit", &in.Limit).
		Int("offset", &in.Offset).
		BindError()
	if err != nil {
		return b.WithError(errorbank.Validation("invalid query parameters", errorbank.WithCause(err))).Build()
	}
	if in.Limit < 0 || in.Offset < 0 {
		return b.WithError(errorbank.Validation("limit and offset must be non-negative")).Build()
	}
	in.Status = entity.TenderStatus(status)
	if c.QueryParam("min_budget") != "" {
		in.MinBudget = &minBudget
	}
	if c.QueryParam("max_budget") != "" {
		in.MaxBudget = &maxBudget
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "tenders.list", trace.WithAttributes(attribute.Bool("tenders.mine", in.Mine)))
	defer span.End()

	tenders, err := h.svc.List(ctx, identity.FromContext(ctx), in)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewTenderList(tenders)).WithPage(in.Limit, in.Offset, len(tenders)).Build()
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)
	id := c.Param("id")

	ctx, span := httpTracer.Start(c.Request().Context(), "tenders.getByID", trace.WithAttributes(attribute.String("tender.id", id)))
	defer span.End()

	tender, err := h.svc.Get(ctx, identity.FromContext(ctx), id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewTenderResponse(tender)).Build()
}

func (h *Handler) update(c echo.Context) error {
	b := response.New(c)
	id := c.Param("id")

	var payload dto.UpdateTenderRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "tenders.update", trace.WithAttributes(attribute.String("tender.id", id)))
	defer span.End()

	in := service.UpdateInput{
		Title:          payload.Title,
		Description:    payload.Description,
		BudgetMin:      payload.BudgetMin.Value,
		BudgetMax:      payload.BudgetMax.Value,
		Location:       payload.Location,
		Category:       payload.Category,
		Deadline:       payload.Deadline.Value,
		ClearBudgetMin: payload.BudgetMin.Cleared(),
		ClearBudgetMax: payload.BudgetMax.Cleared(),
		ClearDeadline:  payload.Deadline.Cleared(),
	}
	if payload.Status != nil {
		status := entity.TenderStatus(*payload.Status)
		in.Status = &status
	}

	tender, err := h.svc.Update(ctx, identity.FromContext(ctx), id, in)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewTenderResponse(tender)).Build()
}
