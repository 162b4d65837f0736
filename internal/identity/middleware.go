package identity

import (
	"github.com/labstack/echo/v4"
)

// Middleware resolves the caller and stores the principal on the request context.
func Middleware(g *Gate) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p := g.Authenticate(c.Request().Header.Get(echo.HeaderAuthorization))
			req := c.Request()
			c.SetRequest(req.WithContext(WithPrincipal(req.Context(), p)))
			return next(c)
		}
	}
}
