// Package router defines how HTTP routes are registered for the API.
package router

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/dance-booking/internal/handler"
	"github.com/iliyamo/dance-booking/internal/middleware"
	"github.com/iliyamo/dance-booking/internal/model"
)

// Handlers bundles every handler the router mounts.
type Handlers struct {
	Auth          *handler.AuthHandler
	Reservations  *handler.ReservationHandler
	Classes       *handler.ClassHandler
	Notifications *handler.NotificationHandler
	Reports       *handler.ReportHandler
	Users         *handler.UserHandler
	Webhooks      *handler.WebhookHandler
}

// Options carries the middleware and secrets shared by route groups.
// Nil middlewares are skipped.
type Options struct {
	JWTSecret     string
	WebhookSecret string
	RateLimit     echo.MiddlewareFunc
	Cache         echo.MiddlewareFunc
	Store         handler.Pinger
	Metrics       http.Handler
}

// Register mounts the whole API on e.
func Register(e *echo.Echo, h Handlers, o Options) {
	RegisterRoutes(e, o.Store, o.Metrics)
	RegisterPublic(e, h.Classes, o.Cache)
	RegisterAuth(e, h.Auth)
	g := Protected(e, o.JWTSecret, o.RateLimit)
	RegisterMember(g, h)
	RegisterAdmin(g, h)
	RegisterWebhooks(e, h.Webhooks, o.WebhookSecret)
}

// RegisterRoutes registers the operational endpoints: the health check
// and, when metrics is set, the Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo, store handler.Pinger, metrics http.Handler) {
	e.GET("/healthz", handler.Health(store))
	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics))
	}
}

// RegisterPublic registers the anonymous class catalogue.  The listing
// goes through the response cache.
func RegisterPublic(e *echo.Echo, h *handler.ClassHandler, cache echo.MiddlewareFunc) {
	g := e.Group("/v1/classes")
	if cache != nil {
		g.GET("", h.List, cache)
	} else {
		g.GET("", h.List)
	}
	g.GET("/:id", h.Get)
}

// RegisterAuth registers the session endpoints under /v1/auth and the
// authenticated profile endpoint.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler) {
	g := e.Group("/v1/auth")
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)
}

// Protected returns the /v1 group every authenticated route hangs off:
// a valid JWT with a known role, then the rate limiter.
func Protected(e *echo.Echo, jwtSecret string, rateLimit echo.MiddlewareFunc) *echo.Group {
	g := e.Group("/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin, model.RoleTeacher, model.RoleStudent),
	)
	if rateLimit != nil {
		g.Use(rateLimit)
	}
	return g
}
