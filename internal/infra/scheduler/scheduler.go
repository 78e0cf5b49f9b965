package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"enrollment_sync/internal/app" // For Syncer interface

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Job binds a sync job to its cron expression.
type Job struct {
	Kind     app.JobKind
	CronSpec string
}

type SyncScheduler struct {
	cronEngine *cron.Cron
	syncer     app.Syncer
	logger     logrus.FieldLogger
	jobs       []Job

	// runCtx is handed to every triggered run and cancelled by Stop.
	runCtx    context.Context
	cancelRun context.CancelFunc
}

func NewSyncScheduler(syncer app.Syncer, logger logrus.FieldLogger, jobs ...Job) *SyncScheduler {
	runCtx, cancel := context.WithCancel(context.Background())
	return &SyncScheduler{
		cronEngine: cron.New(cron.WithLocation(time.Local)), // Use server's local time for cron
		syncer:     syncer,
		logger:     logger,
		jobs:       jobs,
		runCtx:     runCtx,
		cancelRun:  cancel,
	}
}

// Start registers every job and starts the cron engine. Jobs skip a tick
// while a previous run of the same job is still going.
func (s *SyncScheduler) Start() error {
	s.logger.Info("Starting sync scheduler...")

	for _, job := range s.jobs {
		job := job
		wrapped := cron.NewChain(cron.SkipIfStillRunning(cronLogger{s.logger})).Then(cron.FuncJob(func() {
			s.execute(job.Kind)
		}))
		if _, err := s.cronEngine.AddJob(job.CronSpec, wrapped); err != nil {
			return fmt.Errorf("could not add %s cron job (%q): %w", job.Kind, job.CronSpec, err)
		}
		s.logger.Infof("Scheduled %s sync with spec %q", job.Kind, job.CronSpec)
	}

	s.cronEngine.Start()
	s.logger.Info("Sync scheduler started with jobs.")
	return nil
}

func (s *SyncScheduler) execute(kind app.JobKind) {
	log := s.logger.WithField("job", kind)
	log.Info("Cron job triggered.")

	report, err := s.syncer.RunScheduled(s.runCtx, kind)
	if err != nil {
		if app.IsLockHeld(err) {
			log.Warn("Another instance is running this job, skipping.")
			return
		}
		if errors.Is(err, context.Canceled) {
			log.Warn("Sync run interrupted by shutdown")
			return
		}
		log.WithError(err).Error("Sync run failed")
		return
	}
	if s.runCtx.Err() != nil {
		log.WithField("run_id", report.RunID).Warn("Sync run interrupted by shutdown, remaining campuses were not started")
		return
	}
	log.WithFields(logrus.Fields{
		"run_id":          report.RunID,
		"period":          report.Period.String(),
		"campuses":        len(report.Campuses),
		"failed_campuses": len(report.FailedCampuses),
	}).Info("Sync run completed")
}

// Stop prevents new ticks, interrupts running syncs between campuses and
// waits for them to return.
func (s *SyncScheduler) Stop() {
	s.logger.Info("Stopping sync scheduler...")
	ctx := s.cronEngine.Stop()
	s.cancelRun()
	<-ctx.Done()
	s.logger.Info("Sync scheduler gracefully stopped.")
}

// cronLogger adapts logrus to cron.Logger.
type cronLogger struct {
	logger logrus.FieldLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(kvFields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(kvFields(keysAndValues)).WithError(err).Error(msg)
}

func kvFields(kv []interface{}) logrus.Fields {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
