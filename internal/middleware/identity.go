package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/dance-booking/internal/model"
)

// IdentityFrom returns the caller stored by JWTAuth.  ok is false on
// routes that are not behind JWTAuth.
func IdentityFrom(c echo.Context) (model.Identity, bool) {
	id, ok := c.Get(ctxIdentity).(model.Identity)
	return id, ok && id.UserID != ""
}

// userID returns the caller's id, or "anon" for unauthenticated requests.
func userID(c echo.Context) string {
	if s, ok := c.Get(ctxUserID).(string); ok && s != "" {
		return s
	}
	return "anon"
}
