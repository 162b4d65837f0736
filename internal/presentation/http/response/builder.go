package response

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Additional-Code/buildmart/pkg/errorbank"
)

// Builder assembles the JSON envelope every endpoint returns.
type Builder struct {
	ctx    echo.Context
	status int
	data   any
	err    error
	meta   map[string]any
}

// New instantiates a Builder for the provided request context.
func New(ctx echo.Context) *Builder {
	return &Builder{ctx: ctx, status: http.StatusOK}
}

// WithStatus overrides the response status code.
func (b *Builder) WithStatus(status int) *Builder {
	if status > 0 {
		b.status = status
	}
	return b
}

// WithData attaches a success payload.
func (b *Builder) WithData(data any) *Builder {
	b.data = data
	return b
}

// WithError records an error to be rendered.
func (b *Builder) WithError(err error) *Builder {
	b.err = err
	return b
}

// WithMeta appends auxiliary metadata to the response.
func (b *Builder) WithMeta(key string, value any) *Builder {
	if key == "" {
		return b
	}
	if b.meta == nil {
		b.meta = make(map[string]any)
	}
	b.meta[key] = value
	return b
}

// WithPage records the paging window of a list response.
func (b *Builder) WithPage(limit, offset, count int) *Builder {
	return b.WithMeta("limit", limit).WithMeta("offset", offset).WithMeta("count", count)
}

// Build finalises and emits the HTTP response.
func (b *Builder) Build() error {
	if b.err != nil {
		return b.buildError()
	}
	return b.buildSuccess()
}

type errorBody struct {
	Kind    string         `json:"kind"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type envelope struct {
	Success bool           `json:"success"`
	Data    any            `json:"data,omitempty"`
	Error   *errorBody     `json:"error,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

func (b *Builder) buildSuccess() error {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.ctx.JSON(b.status, envelope{Success: true, Data: b.data, Meta: b.meta})
}

func (b *Builder) buildError() error {
	appErr := fromEcho(b.err)
	status := b.status
	if status < 400 {
		status = appErr.StatusCode()
	}
	return b.ctx.JSON(status, envelope{
		Success: false,
		Error: &errorBody{
			Kind:    string(appErr.Kind()),
			Message: appErr.Message(),
			Details: appErr.Details(),
		},
		Meta: b.meta,
	})
}

// fromEcho maps router-level errors (unknown route, wrong method, oversized body)
// onto error kinds so they share the envelope.
func fromEcho(err error) *errorbank.AppError {
	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) {
		return errorbank.From(err)
	}
	message := fmt.Sprint(httpErr.Message)
	switch {
	case httpErr.Code == http.StatusNotFound:
		return errorbank.NotFound(message)
	case httpErr.Code == http.StatusUnauthorized:
		return errorbank.Unauthenticated(message)
	case httpErr.Code == http.StatusForbidden:
		return errorbank.Forbidden(message)
	case httpErr.Code == http.StatusServiceUnavailable:
		return errorbank.StorageUnavailable(message)
	case httpErr.Code >= 400 && httpErr.Code < 500:
		return errorbank.Validation(message, errorbank.WithDetail("status", httpErr.Code))
	default:
		return errorbank.Internal(message, errorbank.WithCause(err))
	}
}
