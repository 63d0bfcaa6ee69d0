// Package jobs runs the periodic batch work of the studio: completing
// past reservations, building teacher reports and expiring idle credits.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/iliyamo/dance-booking/internal/metrics"
)

// Job is one named unit of batch work on a cron schedule.
type Job struct {
	Name string
	Spec string // five-field cron spec, evaluated in UTC
	Run  func(ctx context.Context) error
}

// Scheduler runs jobs on their schedules.  A job that is still running
// when its next tick arrives skips that tick.
type Scheduler struct {
	cron *cron.Cron
	log  *slog.Logger
	rec  metrics.Recorder
	ctx  context.Context
}

// NewScheduler returns an idle scheduler.
func NewScheduler(log *slog.Logger, rec metrics.Recorder) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	cl := cronLogger{log: log}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.SkipIfStillRunning(cl)),
		),
		log: log,
		rec: rec,
		ctx: context.Background(),
	}
}

// Add schedules j.  A job with an empty spec is skipped.
func (s *Scheduler) Add(j Job) error {
	if j.Spec == "" {
		s.log.Info("job disabled", slog.String("job", j.Name))
		return nil
	}
	if _, err := s.cron.AddFunc(j.Spec, func() { s.RunNow(s.ctx, j) }); err != nil {
		return fmt.Errorf("schedule %s %q: %w", j.Name, j.Spec, err)
	}
	return nil
}

// Run starts the scheduler and blocks until ctx is done, then waits
// for running jobs to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.ctx = ctx
	s.cron.Start()
	s.log.Info("job scheduler started", slog.Int("jobs", len(s.cron.Entries())))
	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.log.Info("job scheduler stopped")
	return nil
}

// RunNow executes j once in the calling goroutine.  Errors and panics
// are logged and counted; they never escape.
func (s *Scheduler) RunNow(ctx context.Context, j Job) (err error) {
	start := time.Now()
	s.log.Info("job started", slog.String("job", j.Name))
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		attrs := []any{slog.String("job", j.Name), slog.Duration("took", time.Since(start))}
		if err != nil {
			s.log.Error("job failed", append(attrs, slog.Any("err", err))...)
		} else {
			s.log.Info("job finished", attrs...)
		}
		s.rec.JobRun(j.Name, err == nil)
	}()
	return j.Run(ctx)
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct{ log *slog.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}
