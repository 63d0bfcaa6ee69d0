package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/dance-booking/internal/handler"
	"github.com/iliyamo/dance-booking/internal/middleware"
)

// RegisterWebhooks registers the provider callbacks.  They carry no JWT;
// the shared secret header authenticates them instead.
func RegisterWebhooks(e *echo.Echo, h *handler.WebhookHandler, secret string) {
	g := e.Group("/v1/webhooks", middleware.WebhookSecret(secret))
	g.POST("/payment", h.Payment)
	g.POST("/class-reminder", h.ClassReminder)
}
