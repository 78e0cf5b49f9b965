package app

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"enrollment_sync/internal/domain/campus"
	"enrollment_sync/internal/domain/enrollment"
	"enrollment_sync/internal/domain/period"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RecordProcessor turns the records fetched for one campus into enrolments.
type RecordProcessor interface {
	Name() string
	Process(ctx context.Context, c campus.Campus, records []enrollment.Record) (Stats, error)
}

// Stats counts what a processor did with a batch of records.
type Stats struct {
	Records         int
	Enrolled        int
	AlreadyEnrolled int
	Skipped         int
	Failed          int
}

func (s *Stats) Add(o Stats) {
	s.Records += o.Records
	s.Enrolled += o.Enrolled
	s.AlreadyEnrolled += o.AlreadyEnrolled
	s.Skipped += o.Skipped
	s.Failed += o.Failed
}

func (s *Stats) count(o Outcome) {
	switch o.Status {
	case OutcomeNewlyEnrolled:
		s.Enrolled++
	case OutcomeAlreadyEnrolled:
		s.AlreadyEnrolled++
	default:
		s.Failed++
	}
}

type RunState int32

const (
	StateIdle RunState = iota
	StateFetchingCampuses
	StateFetching
	StateProcessing
	StateDone
)

func (s RunState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetchingCampuses:
		return "fetching_campuses"
	case StateFetching:
		return "fetching"
	case StateProcessing:
		return "processing"
	case StateDone:
		return "done"
	}
	return fmt.Sprintf("RunState(%d)", int32(s))
}

// RunReport is the aggregate result of one Sync call.
type RunReport struct {
	RunID          string
	Job            string
	Period         period.Period
	Campuses       []string
	FailedCampuses map[string]string // campus name -> error
	Stats          Stats
	StartedAt      time.Time
	FinishedAt     time.Time
}

func (r *RunReport) HasFailures() bool { return len(r.FailedCampuses) > 0 }

// Runner iterates the configured campuses, fetching records for each one
// and handing them to a RecordProcessor. A campus that fails is logged and
// skipped; the others still run.
type Runner struct {
	campuses  campus.ConfigStore
	provider  enrollment.Provider
	processor RecordProcessor
	period    period.Period
	logger    logrus.FieldLogger
	now       func() time.Time
	state     atomic.Int32
}

func NewRunner(
	campuses campus.ConfigStore,
	provider enrollment.Provider,
	processor RecordProcessor,
	p period.Period,
	logger logrus.FieldLogger,
) *Runner {
	return &Runner{
		campuses:  campuses,
		provider:  provider,
		processor: processor,
		period:    p,
		logger:    logger,
		now:       time.Now,
	}
}

func (r *Runner) State() RunState { return RunState(r.state.Load()) }

func (r *Runner) setState(s RunState) { r.state.Store(int32(s)) }

// Sync runs every configured campus once. It only returns an error when the
// campus list itself cannot be loaded.
func (r *Runner) Sync(ctx context.Context) (*RunReport, error) {
	report := &RunReport{
		RunID:          uuid.NewString(),
		Job:            r.processor.Name(),
		Period:         r.period,
		FailedCampuses: make(map[string]string),
		StartedAt:      r.now(),
	}
	log := r.logger.WithFields(logrus.Fields{
		"run_id": report.RunID,
		"job":    report.Job,
		"period": r.period.String(),
	})

	r.setState(StateFetchingCampuses)
	campuses, err := r.campuses.Campuses(ctx)
	if err != nil {
		r.setState(StateDone)
		return nil, fmt.Errorf("load campuses: %w", err)
	}
	log.Infof("Starting sync for %d campuses", len(campuses))

	for _, c := range campuses {
		if err := ctx.Err(); err != nil {
			log.WithError(err).Warn("Sync interrupted, remaining campuses not attempted")
			break
		}
		report.Campuses = append(report.Campuses, c.Name)
		clog := log.WithField("campus", c.Name)

		stats, err := r.syncCampus(ctx, c, clog)
		report.Stats.Add(stats)
		if err != nil {
			report.FailedCampuses[c.Name] = err.Error()
			clog.WithError(err).Error("Campus sync failed")
			continue
		}
		clog.WithFields(logrus.Fields{
			"records":          stats.Records,
			"enrolled":         stats.Enrolled,
			"already_enrolled": stats.AlreadyEnrolled,
			"skipped":          stats.Skipped,
			"failed":           stats.Failed,
		}).Info("Campus sync finished")
	}

	r.setState(StateDone)
	report.FinishedAt = r.now()
	log.WithField("failed_campuses", len(report.FailedCampuses)).
		Infof("Sync finished in %s", report.FinishedAt.Sub(report.StartedAt))
	return report, nil
}

func (r *Runner) syncCampus(ctx context.Context, c campus.Campus, log logrus.FieldLogger) (stats Stats, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Errorf("panic while syncing campus: %v\n%s", rec, debug.Stack())
			err = fmt.Errorf("panic: %v", rec)
		}
	}()

	r.setState(StateFetching)
	records, err := r.provider.GetEnrollments(ctx, c, r.period)
	if err != nil {
		return Stats{}, fmt.Errorf("fetch records: %w", err)
	}

	r.setState(StateProcessing)
	log.Infof("Processing %d records", len(records))
	return r.processor.Process(ctx, c, records)
}
