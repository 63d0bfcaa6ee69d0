package config

import (
	"time"

	"github.com/spf13/viper"
)

// JobsConfig holds the cron specs (minute hour dom month dow, UTC) of
// the batch jobs.  An empty spec disables that job.
type JobsConfig struct {
	Enabled          bool
	CompletionSpec   string
	DailyReportSpec  string
	WeeklyReportSpec string
	CreditExpirySpec string
	// CompletionGrace is how long after its date a confirmed
	// reservation is marked completed.
	CompletionGrace time.Duration
}

func loadJobs(v *viper.Viper) JobsConfig {
	return JobsConfig{
		Enabled:          v.GetBool("JOBS_ENABLED"),
		CompletionSpec:   v.GetString("JOB_COMPLETION_SPEC"),
		DailyReportSpec:  v.GetString("JOB_DAILY_REPORT_SPEC"),
		WeeklyReportSpec: v.GetString("JOB_WEEKLY_REPORT_SPEC"),
		CreditExpirySpec: v.GetString("JOB_CREDIT_EXPIRY_SPEC"),
		CompletionGrace:  v.GetDuration("JOB_COMPLETION_GRACE"),
	}
}
