// Package schedule runs publishes periodically.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/mdpublish/internal/logfields"
)

// Scheduler wraps a gocron scheduler. Jobs run in singleton mode: a run that
// is still going when the next one is due makes the next one wait for the
// following slot instead of overlapping.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
}

// New creates a scheduler. It does not run jobs until Start.
func New(logger *slog.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{scheduler: s, logger: logger}, nil
}

// Start begins running scheduled jobs.
func (s *Scheduler) Start() {
	s.logger.Info("Starting scheduler", logfields.Count(len(s.scheduler.Jobs())))
	s.scheduler.Start()
}

// Stop waits for running jobs and shuts the scheduler down.
func (s *Scheduler) Stop() error {
	s.logger.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}

// ScheduleEvery runs fn every interval, starting immediately when
// immediately is set.
func (s *Scheduler) ScheduleEvery(name string, interval time.Duration, immediately bool, fn func()) (string, error) {
	if interval <= 0 {
		return "", fmt.Errorf("interval must be positive, got %s", interval)
	}
	opts := []gocron.JobOption{
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	}
	if immediately {
		opts = append(opts, gocron.WithStartAt(gocron.WithStartImmediately()))
	}
	job, err := s.scheduler.NewJob(gocron.DurationJob(interval), gocron.NewTask(fn), opts...)
	if err != nil {
		return "", fmt.Errorf("failed to create periodic job: %w", err)
	}
	s.logger.Info("Scheduled job", slog.String("name", name), slog.Duration("interval", interval))
	return job.ID().String(), nil
}

// ScheduleCron runs fn on a five-field crontab expression.
func (s *Scheduler) ScheduleCron(name, expr string, fn func()) (string, error) {
	job, err := s.scheduler.NewJob(
		gocron.CronJob(expr, false),
		gocron.NewTask(fn),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create cron job %q: %w", expr, err)
	}
	s.logger.Info("Scheduled job", slog.String("name", name), slog.String("cron", expr))
	return job.ID().String(), nil
}

// NextRun reports when the named job runs next.
func (s *Scheduler) NextRun(name string) (time.Time, bool) {
	for _, j := range s.scheduler.Jobs() {
		if j.Name() != name {
			continue
		}
		next, err := j.NextRun()
		if err != nil {
			return time.Time{}, false
		}
		return next, true
	}
	return time.Time{}, false
}

// PublishTask adapts a publish function into a job body. Each run gets a
// context derived from ctx; failures are logged, never propagated, so one
// failed run does not stop the schedule.
func PublishTask(ctx context.Context, logger *slog.Logger, publish func(context.Context) error) func() {
	return func() {
		if ctx.Err() != nil {
			return
		}
		start := time.Now()
		logger.Info("Executing scheduled publish")
		if err := publish(ctx); err != nil {
			logger.Error("Scheduled publish failed", logfields.Error(err))
			return
		}
		logger.Info("Scheduled publish finished", logfields.DurationMS(float64(time.Since(start).Milliseconds())))
	}
}
