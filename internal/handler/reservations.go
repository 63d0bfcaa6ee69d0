package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/dance-booking/internal/model"
	"github.com/iliyamo/dance-booking/internal/service"
)

// ReservationHandler exposes the reservation lifecycle.  All routes
// sit behind JWTAuth; authorization is decided by the service.
type ReservationHandler struct {
	Reservations *service.ReservationManager
	Log          *slog.Logger
}

func NewReservationHandler(m *service.ReservationManager, log *slog.Logger) *ReservationHandler {
	return &ReservationHandler{Reservations: m, Log: log}
}

type createReservationReq struct {
	ClassID string `json:"classId"`
	UserID  string `json:"userId"`
	Date    string `json:"date"` // RFC3339
}

type updateStatusReq struct {
	Status string `json:"status"`
}

type reservationResp struct {
	ID          string    `json:"id"`
	ClassID     string    `json:"classId"`
	UserID      string    `json:"userId"`
	ProfessorID string    `json:"professorId"`
	Date        time.Time `json:"date"`
	Status      string    `json:"status"`
	CreditsUsed int       `json:"creditsUsed"`
	Refunded    bool      `json:"refunded"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func reservationRespOf(r model.Reservation) reservationResp {
	return reservationResp{
		ID:          r.ID,
		ClassID:     r.ClassID,
		UserID:      r.UserID,
		ProfessorID: r.ProfessorID,
		Date:        r.Date,
		Status:      r.Status,
		CreditsUsed: r.CreditsUsed,
		Refunded:    r.Refunded,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// Create handles POST /v1/reservations.  It returns 201 with the new
// reservation id.
func (h *ReservationHandler) Create(c echo.Context) error {
	id, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	var req createReservationReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if strings.TrimSpace(req.ClassID) == "" || strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.Date) == "" {
		return badRequest(c, "classId, userId and date are required")
	}
	date, err := time.Parse(time.RFC3339, strings.TrimSpace(req.Date))
	if err != nil {
		return badRequest(c, "date must be RFC3339")
	}

	r, err := h.Reservations.Create(c.Request().Context(), id, service.CreateReservationInput{
		ClassID: req.ClassID,
		UserID:  req.UserID,
		Date:    date,
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": r.ID, "message": service.MsgCreated})
}

// UpdateStatus handles PUT /v1/reservations/:id.  Cancelling reports
// whether the credits were returned.
func (h *ReservationHandler) UpdateStatus(c echo.Context) error {
	id, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	var req updateStatusReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if strings.TrimSpace(req.Status) == "" {
		return badRequest(c, "status is required")
	}

	out, err := h.Reservations.UpdateStatus(c.Request().Context(), id, c.Param("id"), req.Status)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": out.Message, "refunded": out.Refunded})
}

// List handles GET /v1/reservations.
func (h *ReservationHandler) List(c echo.Context) error {
	id, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	rs, err := h.Reservations.List(c.Request().Context(), id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	out := make([]reservationResp, 0, len(rs))
	for _, r := range rs {
		out = append(out, reservationRespOf(r))
	}
	return c.JSON(http.StatusOK, out)
}

// Get handles GET /v1/reservations/:id.
func (h *ReservationHandler) Get(c echo.Context) error {
	id, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	r, err := h.Reservations.Get(c.Request().Context(), id, c.Param("id"))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, reservationRespOf(r))
}
