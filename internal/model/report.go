package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Report periods.
const (
	ReportDaily   = "daily"
	ReportWeekly  = "weekly"
	ReportMonthly = "monthly"
)

// Report summarises one teacher's completed reservations over a
// half-open period [PeriodStart, PeriodEnd).
//
// Fields:
//  ID             – UUID primary key.
//  ProfessorID    – teacher the report belongs to.
//  Type           – daily, weekly or monthly.
//  PeriodStart    – inclusive lower bound, UTC.
//  PeriodEnd      – exclusive upper bound, UTC.
//  TotalClasses   – completed reservations in the period.
//  UniqueStudents – distinct users among them.
//  TotalEarnings  – TotalClasses times the configured per-class rate.
//  GeneratedBy    – admin id for on-demand reports, empty for jobs.
//  GeneratedAt    – when the report was computed.
type Report struct {
	ID             string          // reports.id
	ProfessorID    string          // reports.professor_id
	Type           string          // reports.type
	PeriodStart    time.Time       // reports.period_start
	PeriodEnd      time.Time       // reports.period_end
	TotalClasses   int             // reports.total_classes
	UniqueStudents int             // reports.unique_students
	TotalEarnings  decimal.Decimal // reports.total_earnings
	GeneratedBy    string          // reports.generated_by
	GeneratedAt    time.Time       // reports.generated_at
}
