package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/dance-booking/internal/middleware"
	"github.com/iliyamo/dance-booking/internal/model"
)

// RegisterAdmin registers staff endpoints on the authenticated group.
// Teachers reach the class update and report routes; the services
// restrict them to their own classes and reports.
func RegisterAdmin(g *echo.Group, h Handlers) {
	admin := middleware.RequireRole(model.RoleAdmin)
	staff := middleware.RequireRole(model.RoleAdmin, model.RoleTeacher)

	// ---- Classes ----
	g.POST("/classes", h.Classes.Create, admin)
	g.PATCH("/classes/:id", h.Classes.Update, staff)

	// ---- Users ----
	g.POST("/users", h.Users.Create, admin)
	g.PATCH("/users/:id", h.Users.Update, admin)
	g.POST("/users/:id/credits", h.Users.GrantCredits, admin)

	// ---- Notifications ----
	g.POST("/notifications", h.Notifications.Create, admin)

	// ---- Reports ----
	g.GET("/reports", h.Reports.List, staff)
	g.POST("/reports/generate", h.Reports.Generate, admin)
	g.GET("/reports/:id/export", h.Reports.Export, staff)
}
