package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/dance-booking/internal/service"
)

// WebhookHandler receives callbacks from the payment provider and the
// scheduling system.  Requests are authenticated by the shared secret
// middleware, not by JWT.
type WebhookHandler struct {
	Credits       *service.CreditService
	Notifications *service.NotificationService
	Log           *slog.Logger
}

func NewWebhookHandler(credits *service.CreditService, n *service.NotificationService, log *slog.Logger) *WebhookHandler {
	return &WebhookHandler{Credits: credits, Notifications: n, Log: log}
}

type paymentReq struct {
	Type string `json:"type"`
	Data struct {
		UserID       string          `json:"userId"`
		Amount       decimal.Decimal `json:"amount"`
		CreditsToAdd int             `json:"creditsToAdd"`
		Reason       string          `json:"reason"`
	} `json:"data"`
}

// Payment handles POST /v1/webhooks/payment.  Unknown event types are
// acknowledged so the provider stops retrying them.
func (h *WebhookHandler) Payment(c echo.Context) error {
	var req paymentReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Type == "" {
		return badRequest(c, "type is required")
	}
	res, err := h.Credits.ApplyPayment(c.Request().Context(), service.PaymentEvent{
		Type:         req.Type,
		UserID:       req.Data.UserID,
		Amount:       req.Data.Amount.StringFixed(2),
		CreditsToAdd: req.Data.CreditsToAdd,
		Reason:       req.Data.Reason,
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if !res.Handled {
		return c.JSON(http.StatusOK, echo.Map{"message": "event ignored"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message":      "payment processed",
		"creditsAdded": res.CreditsAdded,
		"credits":      res.Balance,
	})
}

// ClassReminder handles POST /v1/webhooks/class-reminder {classId, message}.
func (h *WebhookHandler) ClassReminder(c echo.Context) error {
	var req struct {
		ClassID string `json:"classId"`
		Message string `json:"message"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	n, err := h.Notifications.SendClassReminder(c.Request().Context(), req.ClassID, req.Message)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "reminders sent", "sentTo": n})
}
