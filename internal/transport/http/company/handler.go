package company

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Additional-Code/buildmart/internal/dto"
	"github.com/Additional-Code/buildmart/internal/identity"
	"github.com/Additional-Code/buildmart/internal/presentation/http/request"
	"github.com/Additional-Code/buildmart/internal/presentation/http/response"
	service "github.com/Additional-Code/buildmart/internal/service/company"
)

// Handler exposes company reference endpoints.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a company Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/companies")
	g.POST("", h.create)
	g.GET("/:id", h.getByID)
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)

	var payload dto.CreateCompanyRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}
	ctx := c.Request().Context()
	company, err := h.svc.Register(ctx, identity.FromContext(ctx), payload.Name)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(dto.NewCompanyResponse(company)).Build()
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)
	company, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewCompanyResponse(company)).Build()
}
