// Package scheduler fires the calendar triggers and the overdue sweep on cron schedules.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"residence-billing-backend/config"
	"residence-billing-backend/internal/billing"
	"residence-billing-backend/internal/sweeper"
)

// Runner is the part of the engine the scheduled jobs drive.
type Runner interface {
	RunCalendarTrigger(ctx context.Context, trigger billing.Trigger) (*billing.Report, error)
	RunOverdueSweep(ctx context.Context) (*sweeper.Report, error)
}

// Jobs contains the logic for all scheduled tasks. Every job runs under ctx,
// which is cancelled when the scheduler stops.
type Jobs struct {
	runner Runner
	log    logrus.FieldLogger
	ctx    context.Context
}

func (j *Jobs) runTrigger(trigger billing.Trigger) {
	log := j.log.WithField("job", trigger)
	log.Info("Starting calendar billing job")

	report, err := j.runner.RunCalendarTrigger(j.ctx, trigger)
	if err != nil {
		log.WithError(err).Error("Calendar billing job failed")
		return
	}
	log.WithFields(report.Fields()).Info("Calendar billing job finished")
}

// NewMonth bills the monthly definitions.
func (j *Jobs) NewMonth() { j.runTrigger(billing.TriggerNewMonth) }

// NewSemester bills the semesterly definitions.
func (j *Jobs) NewSemester() { j.runTrigger(billing.TriggerNewSemester) }

// OverdueSweep demotes occupants with overdue charges.
func (j *Jobs) OverdueSweep() {
	log := j.log.WithField("job", "overdue_sweep")
	log.Info("Starting overdue sweep job")

	report, err := j.runner.RunOverdueSweep(j.ctx)
	if err != nil {
		log.WithError(err).Error("Overdue sweep job failed")
		return
	}
	log.WithFields(logrus.Fields{
		"scanned": report.Scanned,
		"demoted": len(report.Demoted),
		"failed":  report.Failed,
	}).Info("Overdue sweep job finished")
}

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron   *cron.Cron
	jobs   *Jobs
	cancel context.CancelFunc
	log    logrus.FieldLogger
	cfg    config.SchedulerConfig
}

// New creates a new scheduler instance.
func New(runner Runner, cfg config.SchedulerConfig, log logrus.FieldLogger) *Scheduler {
	log = log.WithField("component", "scheduler")
	c := cron.New(cron.WithChain(cron.Recover(cron.PrintfLogger(log))))
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:   c,
		jobs:   &Jobs{runner: runner, log: log, ctx: ctx},
		cancel: cancel,
		log:    log,
		cfg:    cfg,
	}
}

// Start registers the jobs and starts the cron scheduler. An invalid
// schedule is reported before anything runs.
func (s *Scheduler) Start() error {
	entries := []struct {
		name     string
		schedule string
		job      func()
	}{
		{"new_month", s.cfg.NewMonthSchedule, s.jobs.NewMonth},
		{"new_semester", s.cfg.NewSemesterSchedule, s.jobs.NewSemester},
		{"overdue_sweep", s.cfg.OverdueSweepSchedule, s.jobs.OverdueSweep},
	}

	for _, e := range entries {
		if _, err := s.cron.AddFunc(e.schedule, e.job); err != nil {
			return fmt.Errorf("failed to schedule %s job %q: %w", e.name, e.schedule, err)
		}
		s.log.WithFields(logrus.Fields{"job": e.name, "schedule": e.schedule}).Info("Scheduled job")
	}

	s.cron.Start()
	return nil
}

// Stop cancels running jobs between occupants and returns a context that is
// done once they have returned.
func (s *Scheduler) Stop() context.Context {
	s.cancel()
	return s.cron.Stop()
}
