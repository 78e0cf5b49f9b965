package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"enrollment_sync/internal/domain/campus"
	"enrollment_sync/internal/domain/directory"
	"enrollment_sync/internal/domain/enrollment"
	"enrollment_sync/internal/domain/period"

	"github.com/sirupsen/logrus"
)

// JobKind selects which processor a sync run uses.
type JobKind string

const (
	JobStudents JobKind = "students"
	JobTeachers JobKind = "teachers"
)

func ParseJobKind(s string) (JobKind, error) {
	switch k := JobKind(strings.ToLower(strings.TrimSpace(s))); k {
	case JobStudents, JobTeachers:
		return k, nil
	}
	return "", fmt.Errorf("unknown sync job %q", s)
}

var ErrLockHeld = fmt.Errorf("sync job is already running")

// Locker prevents two runs of the same job from overlapping.
type Locker interface {
	// Acquire returns ErrLockHeld when another run holds key.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}

// NoopLocker never blocks. Used when no lock backend is configured.
type NoopLocker struct{}

func (NoopLocker) Acquire(context.Context, string, time.Duration) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}

// RunNotifier is told about runs that finished with failed campuses.
type RunNotifier interface {
	NotifyRun(ctx context.Context, report *RunReport) error
}

// Syncer is what the scheduler triggers.
type Syncer interface {
	RunScheduled(ctx context.Context, kind JobKind) (*RunReport, error)
}

type SyncServiceConfig struct {
	StudentRole   directory.Role
	TeacherRole   directory.Role
	MissingPerson MissingPersonPolicy
	TermRule      period.TermRule
	LockTTL       time.Duration
}

// SyncService wires collaborators into a fresh Runner for every run, so
// lookup caches never outlive the run that filled them.
type SyncService struct {
	campuses campus.ConfigStore
	provider enrollment.Provider
	dir      directory.Directory
	locker   Locker
	notifier RunNotifier
	cfg      SyncServiceConfig
	logger   logrus.FieldLogger
	now      func() time.Time
}

func NewSyncService(
	campuses campus.ConfigStore,
	provider enrollment.Provider,
	dir directory.Directory,
	locker Locker,
	notifier RunNotifier,
	cfg SyncServiceConfig,
	logger logrus.FieldLogger,
) *SyncService {
	if locker == nil {
		locker = NoopLocker{}
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * time.Hour
	}
	return &SyncService{
		campuses: campuses,
		provider: provider,
		dir:      dir,
		locker:   locker,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *SyncService) newProcessor(kind JobKind) (RecordProcessor, error) {
	switch kind {
	case JobStudents:
		return NewStudentEnrollmentSync(s.dir, s.cfg.StudentRole, s.cfg.MissingPerson, s.logger), nil
	case JobTeachers:
		return NewTeacherEnrollmentSync(s.dir, s.cfg.TeacherRole, s.logger), nil
	}
	return nil, fmt.Errorf("unknown sync job %q", kind)
}

// RunCurrent syncs the period containing the current date.
func (s *SyncService) RunCurrent(ctx context.Context, kind JobKind) (*RunReport, error) {
	return s.Run(ctx, kind, period.Current(s.now(), s.cfg.TermRule))
}

// RunScheduled syncs the current period for the campuses that have
// scheduled sync enabled.
func (s *SyncService) RunScheduled(ctx context.Context, kind JobKind) (*RunReport, error) {
	return s.run(ctx, kind, period.Current(s.now(), s.cfg.TermRule), campus.ScheduledOnly(s.campuses))
}

// Run syncs every configured campus for p with the processor for kind.
func (s *SyncService) Run(ctx context.Context, kind JobKind, p period.Period) (*RunReport, error) {
	return s.run(ctx, kind, p, s.campuses)
}

func (s *SyncService) run(ctx context.Context, kind JobKind, p period.Period, campuses campus.ConfigStore) (*RunReport, error) {
	processor, err := s.newProcessor(kind)
	if err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, "enrollment_sync:lock:"+string(kind), s.cfg.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire %s lock: %w", kind, err)
	}
	defer func() {
		if err := release(context.Background()); err != nil {
			s.logger.WithError(err).Warnf("Failed to release %s lock", kind)
		}
	}()

	report, err := NewRunner(campuses, s.provider, processor, p, s.logger).Sync(ctx)
	if err != nil {
		return nil, err
	}

	if report.HasFailures() && s.notifier != nil {
		if err := s.notifier.NotifyRun(ctx, report); err != nil {
			s.logger.WithError(err).WithField("run_id", report.RunID).Warn("Failed to send run alert")
		}
	}
	return report, nil
}

// IsLockHeld reports whether err came from an overlapping run.
func IsLockHeld(err error) bool { return errors.Is(err, ErrLockHeld) }
