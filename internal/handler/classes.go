package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/dance-booking/internal/model"
	"github.com/iliyamo/dance-booking/internal/service"
)

// CachePurger drops cached public responses.  *middleware.ResponseCache
// implements it.
type CachePurger interface {
	Purge(ctx context.Context) error
}

// ClassHandler serves the public catalogue and the admin class
// management endpoints.
type ClassHandler struct {
	Classes *service.ClassService
	Cache   CachePurger // may be nil
	Log     *slog.Logger
}

func NewClassHandler(classes *service.ClassService, cache CachePurger, log *slog.Logger) *ClassHandler {
	return &ClassHandler{Classes: classes, Cache: cache, Log: log}
}

type classReq struct {
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	ProfessorID     string          `json:"professorId"`
	MaxStudents     int             `json:"maxStudents"`
	DurationMinutes int             `json:"durationMinutes"`
	Price           decimal.Decimal `json:"price"`
}

type classPatchReq struct {
	Name            *string          `json:"name"`
	Description     *string          `json:"description"`
	MaxStudents     *int             `json:"maxStudents"`
	DurationMinutes *int             `json:"durationMinutes"`
	Price           *decimal.Decimal `json:"price"`
	IsActive        *bool            `json:"isActive"`
}

type classResp struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	ProfessorID     string          `json:"professorId"`
	ProfessorName   string          `json:"professorName"`
	MaxStudents     int             `json:"maxStudents"`
	DurationMinutes int             `json:"durationMinutes"`
	Price           decimal.Decimal `json:"price"`
	IsActive        bool            `json:"isActive"`
	CreatedAt       time.Time       `json:"createdAt"`
}

func classRespOf(c model.Class) classResp {
	return classResp{
		ID:              c.ID,
		Name:            c.Name,
		Description:     c.Description,
		ProfessorID:     c.ProfessorID,
		ProfessorName:   c.ProfessorName,
		MaxStudents:     c.MaxStudents,
		DurationMinutes: c.DurationMinutes,
		Price:           c.Price,
		IsActive:        c.IsActive,
		CreatedAt:       c.CreatedAt,
	}
}

// List handles GET /v1/classes.  Only active classes are listed.
func (h *ClassHandler) List(c echo.Context) error {
	cs, err := h.Classes.List(c.Request().Context(), true)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	out := make([]classResp, 0, len(cs))
	for _, cl := range cs {
		out = append(out, classRespOf(cl))
	}
	return c.JSON(http.StatusOK, out)
}

// Get handles GET /v1/classes/:id.
func (h *ClassHandler) Get(c echo.Context) error {
	cl, err := h.Classes.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, classRespOf(cl))
}

// Create handles POST /v1/classes.
func (h *ClassHandler) Create(c echo.Context) error {
	id, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	var req classReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	cl, err := h.Classes.Create(c.Request().Context(), id, service.ClassInput(req))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	h.purge(c)
	return c.JSON(http.StatusCreated, classRespOf(cl))
}

// Update handles PATCH /v1/classes/:id.
func (h *ClassHandler) Update(c echo.Context) error {
	id, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	var req classPatchReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	cl, err := h.Classes.Update(c.Request().Context(), id, c.Param("id"), service.ClassPatch(req))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	h.purge(c)
	return c.JSON(http.StatusOK, classRespOf(cl))
}

func (h *ClassHandler) purge(c echo.Context) {
	if h.Cache == nil {
		return
	}
	if err := h.Cache.Purge(c.Request().Context()); err != nil {
		h.Log.Warn("class cache purge failed", "err", err)
	}
}
