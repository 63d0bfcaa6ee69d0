package handler

import (
	"bytes"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/dance-booking/internal/model"
	"github.com/iliyamo/dance-booking/internal/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ReportHandler serves teacher earnings reports.
type ReportHandler struct {
	Reports *service.ReportService
	Log     *slog.Logger
}

func NewReportHandler(r *service.ReportService, log *slog.Logger) *ReportHandler {
	return &ReportHandler{Reports: r, Log: log}
}

type reportResp struct {
	ID             string          `json:"id"`
	ProfessorID    string          `json:"professorId"`
	Type           string          `json:"type"`
	PeriodStart    time.Time       `json:"periodStart"`
	PeriodEnd      time.Time       `json:"periodEnd"`
	TotalClasses   int             `json:"totalClasses"`
	UniqueStudents int             `json:"uniqueStudents"`
	TotalEarnings  decimal.Decimal `json:"totalEarnings"`
	GeneratedBy    string          `json:"generatedBy,omitempty"`
	GeneratedAt    time.Time       `json:"generatedAt"`
}

func reportRespOf(r model.Report) reportResp {
	return reportResp{
		ID:             r.ID,
		ProfessorID:    r.ProfessorID,
		Type:           r.Type,
		PeriodStart:    r.PeriodStart,
		PeriodEnd:      r.PeriodEnd,
		TotalClasses:   r.TotalClasses,
		UniqueStudents: r.UniqueStudents,
		TotalEarnings:  r.TotalEarnings,
		GeneratedBy:    r.GeneratedBy,
		GeneratedAt:    r.GeneratedAt,
	}
}

// List handles GET /v1/reports.  Teachers see their own reports and
// admins all of them.
func (h *ReportHandler) List(c echo.Context) error {
	id, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	rs, err := h.Reports.List(c.Request().Context(), id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	out := make([]reportResp, 0, len(rs))
	for _, r := range rs {
		out = append(out, reportRespOf(r))
	}
	return c.JSON(http.StatusOK, out)
}

// Generate handles POST /v1/reports/generate {month, professorId}.
func (h *ReportHandler) Generate(c echo.Context) error {
	id, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	var req struct {
		Month       string `json:"month"`
		ProfessorID string `json:"professorId"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	r, err := h.Reports.GenerateMonthly(c.Request().Context(), id, req.Month, req.ProfessorID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, reportRespOf(r))
}

// Export handles GET /v1/reports/:id/export and streams an XLSX file.
func (h *ReportHandler) Export(c echo.Context) error {
	id, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	// Render into memory first so errors can still become JSON.
	var buf bytes.Buffer
	if err := h.Reports.ExportXLSX(c.Request().Context(), id, c.Param("id"), &buf); err != nil {
		return writeError(c, h.Log, err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="report-`+c.Param("id")+`.xlsx"`)
	return c.Blob(http.StatusOK, xlsxContentType, buf.Bytes())
}
