package router

import (
	"github.com/labstack/echo/v4"
)

// RegisterMember registers the endpoints open to every role.  Which
// records a caller may touch is decided per request by the services.
func RegisterMember(g *echo.Group, h Handlers) {
	g.GET("/me", h.Auth.Me)

	g.POST("/reservations", h.Reservations.Create)
	g.GET("/reservations", h.Reservations.List)
	g.GET("/reservations/:id", h.Reservations.Get)
	g.PUT("/reservations/:id", h.Reservations.UpdateStatus)

	g.GET("/notifications", h.Notifications.List)
	g.PUT("/notifications/:id/read", h.Notifications.MarkRead)

	g.GET("/users/:id/credits", h.Users.CreditHistory)
}
