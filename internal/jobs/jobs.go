package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/iliyamo/dance-booking/internal/config"
	"github.com/iliyamo/dance-booking/internal/service"
)

// Names used in logs and metrics.
const (
	NameCompletion   = "complete_reservations"
	NameDailyReport  = "daily_reports"
	NameWeeklyReport = "weekly_reports"
	NameCreditExpiry = "credit_expiration"
)

// Deps are the services the batch jobs drive.
type Deps struct {
	Reservations       *service.ReservationManager
	Reports            *service.ReportService
	Credits            *service.CreditService
	CreditExpiryMonths int
	Log                *slog.Logger
	Now                func() time.Time
}

// Standard returns the four batch jobs configured by cfg.
func Standard(cfg config.JobsConfig, d Deps) []Job {
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}
	months := d.CreditExpiryMonths
	if months <= 0 {
		months = 3
	}
	grace := cfg.CompletionGrace
	if grace <= 0 {
		grace = 24 * time.Hour
	}

	return []Job{
		{
			Name: NameCompletion,
			Spec: cfg.CompletionSpec,
			Run: func(ctx context.Context) error {
				n, err := d.Reservations.CompleteExpired(ctx, grace)
				if err == nil {
					d.Log.Info("reservations completed", slog.Int("count", n))
				}
				return err
			},
		},
		{
			Name: NameDailyReport,
			Spec: cfg.DailyReportSpec,
			Run: func(ctx context.Context) error {
				reports, err := d.Reports.GenerateDaily(ctx, d.Now().AddDate(0, 0, -1))
				d.Log.Info("daily reports generated", slog.Int("count", len(reports)))
				return err
			},
		},
		{
			Name: NameWeeklyReport,
			Spec: cfg.WeeklyReportSpec,
			Run: func(ctx context.Context) error {
				reports, err := d.Reports.GenerateWeekly(ctx, d.Now())
				d.Log.Info("weekly reports generated", slog.Int("count", len(reports)))
				return err
			},
		},
		{
			Name: NameCreditExpiry,
			Spec: cfg.CreditExpirySpec,
			Run: func(ctx context.Context) error {
				n, err := d.Credits.ExpireInactive(ctx, d.Now().AddDate(0, -months, 0))
				if err == nil {
					d.Log.Info("credits expired", slog.Int("users", n))
				}
				return err
			},
		},
	}
}
