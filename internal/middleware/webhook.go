package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
)

// WebhookSecretHeader carries the shared secret of webhook callers.
const WebhookSecretHeader = "X-Webhook-Secret"

// WebhookSecret rejects requests whose X-Webhook-Secret header does not
// match secret.  An empty secret disables the check.
func WebhookSecret(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if secret == "" {
				return next(c)
			}
			got := c.Request().Header.Get(WebhookSecretHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid webhook secret"})
			}
			return next(c)
		}
	}
}
