package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/dance-booking/internal/model"
	"github.com/iliyamo/dance-booking/internal/service"
)

// NotificationHandler serves the in-app inbox.
type NotificationHandler struct {
	Notifications *service.NotificationService
	Log           *slog.Logger
}

func NewNotificationHandler(n *service.NotificationService, log *slog.Logger) *NotificationHandler {
	return &NotificationHandler{Notifications: n, Log: log}
}

type notificationResp struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	Type      string     `json:"type"`
	IsRead    bool       `json:"isRead"`
	ReadAt    *time.Time `json:"readAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

func notificationRespOf(n model.Notification) notificationResp {
	return notificationResp{
		ID:        n.ID,
		Title:     n.Title,
		Body:      n.Body,
		Type:      n.Type,
		IsRead:    n.IsRead,
		ReadAt:    n.ReadAt,
		CreatedAt: n.CreatedAt,
	}
}

// List handles GET /v1/notifications?unreadOnly=true.
func (h *NotificationHandler) List(c echo.Context) error {
	id, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	unreadOnly := false
	if v := c.QueryParam("unreadOnly"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return badRequest(c, "unreadOnly must be a boolean")
		}
		unreadOnly = b
	}
	ns, err := h.Notifications.List(c.Request().Context(), id, unreadOnly)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	out := make([]notificationResp, 0, len(ns))
	for _, n := range ns {
		out = append(out, notificationRespOf(n))
	}
	return c.JSON(http.StatusOK, out)
}

// MarkRead handles PUT /v1/notifications/:id/read.
func (h *NotificationHandler) MarkRead(c echo.Context) error {
	id, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	if err := h.Notifications.MarkRead(c.Request().Context(), id, c.Param("id")); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "notification marked as read"})
}

// Create handles POST /v1/notifications (admin).
func (h *NotificationHandler) Create(c echo.Context) error {
	id, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	var req struct {
		UserID string `json:"userId"`
		Title  string `json:"title"`
		Body   string `json:"body"`
		Type   string `json:"type"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	n, err := h.Notifications.Create(c.Request().Context(), id, req.UserID, req.Title, req.Body, req.Type)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, notificationRespOf(n))
}
