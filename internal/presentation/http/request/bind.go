// Package request decodes HTTP payloads.
package request

import (
	"errors"
	"fmt"

	"github.com/labstack/echo/v4"

	"github.com/Additional-Code/buildmart/pkg/errorbank"
)

// Bind decodes the request into dst. Only the shape of the payload is checked
// here; field rules are enforced by the services after the caller has been
// authorised, so a malformed body is the only validation error raised here.
func Bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			return errorbank.Validation("malformed request", errorbank.WithCause(httpErr.Internal),
				errorbank.WithDetail("reason", fmt.Sprint(httpErr.Message)))
		}
		return errorbank.Validation("malformed request", errorbank.WithCause(err))
	}
	return nil
}
