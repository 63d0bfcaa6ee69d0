package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/dance-booking/internal/model"
	"github.com/iliyamo/dance-booking/internal/service"
)

// UserHandler covers admin account provisioning and credit top-ups.
type UserHandler struct {
	Users   *service.UserService
	Credits *service.CreditService
	Log     *slog.Logger
}

func NewUserHandler(users *service.UserService, credits *service.CreditService, log *slog.Logger) *UserHandler {
	return &UserHandler{Users: users, Credits: credits, Log: log}
}

type createUserReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Role     string `json:"role"`
	Credits  int    `json:"credits"`
}

type userResp struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Role      string    `json:"role"`
	Credits   int       `json:"credits"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

func userRespOf(u model.User) userResp {
	return userResp{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Phone:     u.Phone,
		Role:      u.Role,
		Credits:   u.Credits,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}

type creditEntryResp struct {
	Delta         int       `json:"delta"`
	BalanceAfter  int       `json:"balanceAfter"`
	Kind          string    `json:"kind"`
	ReservationID string    `json:"reservationId,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Create handles POST /v1/users.
func (h *UserHandler) Create(c echo.Context) error {
	id, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	var req createUserReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	u, err := h.Users.Create(c.Request().Context(), id, service.NewUserInput(req))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, userRespOf(u))
}

// Update handles PATCH /v1/users/:id {isActive}.
func (h *UserHandler) Update(c echo.Context) error {
	id, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	var req struct {
		IsActive *bool `json:"isActive"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.IsActive == nil {
		return badRequest(c, "isActive is required")
	}
	if err := h.Users.SetActive(c.Request().Context(), id, c.Param("id"), *req.IsActive); err != nil {
		return writeError(c, h.Log, err)
	}
	u, err := h.Users.Get(c.Request().Context(), id, c.Param("id"))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, userRespOf(u))
}

// GrantCredits handles POST /v1/users/:id/credits {amount, reason}.
func (h *UserHandler) GrantCredits(c echo.Context) error {
	id, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	var req struct {
		Amount int    `json:"amount"`
		Reason string `json:"reason"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	u, err := h.Credits.Grant(c.Request().Context(), id, c.Param("id"), req.Amount, req.Reason)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"userId": u.ID, "credits": u.Credits})
}

// CreditHistory handles GET /v1/users/:id/credits: the ledger history
// of one user.  Non-admins may only read their own.
func (h *UserHandler) CreditHistory(c echo.Context) error {
	id, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	entries, err := h.Users.CreditHistory(c.Request().Context(), id, c.Param("id"))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	out := make([]creditEntryResp, 0, len(entries))
	for _, e := range entries {
		out = append(out, creditEntryResp{
			Delta:         e.Delta,
			BalanceAfter:  e.BalanceAfter,
			Kind:          e.Kind,
			ReservationID: e.ReservationID,
			Reason:        e.Reason,
			CreatedAt:     e.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, out)
}
