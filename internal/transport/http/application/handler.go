package application

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
	service "github.com/Additional-Code/buildmart/internal/service/application"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/buildmart/transport/http/application")

// Handler exposes application endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs an application Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	e.GET("/tenders/:id/applications", h.listForTender)
	e.POST("/tenders/:id/applications", h.submit)

	g := e.Group("/applications")
	g.GET("", h.listMine)
	g.GET("/:id", h.getByID)
	g.PATCH("/:id/status", h.updateStatus)
	g.POST("/:id/accept", h.accept)
}

func (h *Handler) submit(c echo.Context) error {
	b := response.New(c)
	tenderID := c.Param("id")

	var payload dto.SubmitApplicationRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "applications.submit", trace.WithAttributes(attribute.String("tender.id", tenderID)))
	defer span.End()

	app, err := h.svc.Submit(ctx, identity.FromContext(ctx), service.SubmitInput{
		TenderID:  tenderID,
		CompanyID: payload.CompanyID,
		Proposal:  payload.Proposal,
		Budget:    payload.Budget,
		Timeline:  payload.Timeline,
	})
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(dto.NewApplicationResponse(app)).Build()
}

func (h *Handler) listForTender(c echo.Context) error {
	b := response.New(c)
	tenderID := c.Param("id")

	ctx, span := httpTracer.Start(c.Request().Context(), "applications.listForTender", trace.WithAttributes(attribute.String("tender.id", tenderID)))
	defer span.End()

	apps, err := h.svc.ListForTender(ctx, identity.FromContext(ctx), tenderID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewApplicationList(apps)).WithMeta("count", len(apps)).Build()
}

func (h *Handler) listMine(c echo.Context) error {
	b := response.New(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "applications.listMine")
	defer span.End()

	apps, err := h.svc.ListForContractor(ctx, identity.FromContext(ctx))
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewApplicationList(apps)).WithMeta("count", len(apps)).Build()
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)
	id := c.Param("id")

	ctx, span := httpTracer.Start(c.Request().Context(), "applications.getByID", trace.WithAttributes(attribute.String("application.id", id)))
	defer span.End()

	app, err := h.svc.Get(ctx, identity.FromContext(ctx), id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewApplicationResponse(app)).Build()
}

func (h *Handler) updateStatus(c echo.Context) error {
	b := response.New(c)
	id := c.Param("id")

	var payload dto.UpdateApplicationStatusRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "applications.updateStatus", trace.WithAttributes(
		attribute.String("application.id", id),
		attribute.String("application.status", payload.Status),
	))
	defer span.End()

	app, err := h.svc.UpdateStatus(ctx, identity.FromContext(ctx), id, entity.ApplicationStatus(payload.Status))
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewApplicationResponse(app)).Build()
}

func (h *Handler) accept(c echo.Context) error {
	b := response.New(c)
	id := c.Param("id")

	ctx, span := httpTracer.Start(c.Request().Context(), "applications.accept", trace.WithAttributes(attribute.String("application.id", id)))
	defer span.End()

	result, err := h.svc.Accept(ctx, identity.FromContext(ctx), id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.AcceptanceResponse{
		Application: dto.NewApplicationResponse(&result.Application),
		Tender:      dto.NewTenderResponse(&result.Tender),
	}).Build()
}
