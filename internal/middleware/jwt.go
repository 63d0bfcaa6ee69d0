package middleware // middleware holds the Echo middleware shared by all route groups

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/dance-booking/internal/utils"
)

// Context keys set by JWTAuth.
const (
	ctxUserID   = "user_id"
	ctxRole     = "role"
	ctxIdentity = "identity"
)

// JWTAuth returns an Echo middleware that validates a Bearer access
// token and stores the caller in the context.  Handlers read it back
// with IdentityFrom; "user_id" and "role" are also set as strings for
// the rate limiter and the request logger.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			id, err := utils.ParseAccessToken(secret, strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			c.Set(ctxIdentity, id)
			c.Set(ctxUserID, id.UserID)
			c.Set(ctxRole, id.Role)
			return next(c)
		}
	}
}
