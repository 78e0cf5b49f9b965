package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"enrollment_sync/internal/domain/campus"
	"enrollment_sync/internal/domain/directory"
	"enrollment_sync/internal/domain/enrollment"
	"enrollment_sync/internal/domain/taxid"

	"github.com/sirupsen/logrus"
)

// TeacherEnrollmentSync enrols the teachers listed on each offering into the
// matching local course. Teachers are looked up by their normalized tax id.
type TeacherEnrollmentSync struct {
	dir     directory.Directory
	courses *CourseLookupCache
	people  *LookupCache[directory.Person]
	applier *EnrollmentApplier
	role    directory.Role
	logger  logrus.FieldLogger

	// course id number + tax id pairs already handled in this run
	handled map[string]struct{}
}

func NewTeacherEnrollmentSync(dir directory.Directory, role directory.Role, logger logrus.FieldLogger) *TeacherEnrollmentSync {
	return &TeacherEnrollmentSync{
		dir:     dir,
		courses: NewCourseLookupCache(),
		people:  NewLookupCache[directory.Person](),
		applier: NewEnrollmentApplier(dir, logger),
		role:    role,
		logger:  logger,
		handled: make(map[string]struct{}),
	}
}

func (s *TeacherEnrollmentSync) Name() string { return "teachers" }

func (s *TeacherEnrollmentSync) Process(ctx context.Context, c campus.Campus, records []enrollment.Record) (Stats, error) {
	var stats Stats
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("interrupted after %d of %d records: %w", i, len(records), err)
		}
		stats.Records++
		log := s.logger.WithFields(logrus.Fields{
			"campus":          c.Name,
			"registration_id": rec.RegistrationID,
		})
		for _, raw := range rec.Offerings {
			stats.Add(s.processOffering(ctx, c, rec, raw, log))
		}
	}
	return stats, nil
}

func (s *TeacherEnrollmentSync) processOffering(ctx context.Context, c campus.Campus, rec enrollment.Record, raw enrollment.RawOffering, log logrus.FieldLogger) (stats Stats) {
	defer func() {
		if r := recover(); r != nil {
			stats.Failed++
			log.Errorf("panic while processing offering: %v", r)
		}
	}()

	o, skipped, err := validateOffering(raw)
	if err != nil {
		stats.Failed++
		log.WithError(err).Error("Failed to validate offering")
		return stats
	}
	if skipped != nil {
		stats.Skipped++
		log.Warnf("Offering skipped: %s", skipped.detail)
		return stats
	}

	courseID := enrollment.DeriveCourseIdentifier(c, rec, o)
	log = log.WithField("course_idnumber", courseID)
	course, err := s.courses.Resolve(ctx, courseID, s.dir.SearchCourseByIDNumber)
	if errors.Is(err, ErrEarlierSearchFailed) {
		stats.Failed++
		log.Warn("Course search failed earlier in this run, teachers not enrolled")
		return stats
	}
	if err != nil {
		stats.Failed++
		log.WithError(err).Error("Course search failed")
		return stats
	}
	if course == nil {
		stats.Skipped++
		log.Error("Course not found, teachers not enrolled")
		return stats
	}

	for _, t := range o.Teachers {
		s.enrolTeacher(ctx, course, t, log, &stats)
	}
	return stats
}

func (s *TeacherEnrollmentSync) enrolTeacher(ctx context.Context, course *directory.Course, t enrollment.TeacherRef, log logrus.FieldLogger, stats *Stats) {
	tlog := log.WithField("teacher", t.Name)
	if strings.TrimSpace(t.TaxID) == "" {
		stats.Skipped++
		tlog.Error("Teacher has no tax id in the external system, cannot enrol")
		return
	}
	id, ok := taxid.NormalizeAndValidate(t.TaxID)
	if !ok {
		stats.Skipped++
		tlog.WithField("tax_id", t.TaxID).Error("Invalid teacher tax id, cannot enrol")
		return
	}
	tlog = tlog.WithField("tax_id", id)

	key := course.IDNumber + "|" + id
	if _, done := s.handled[key]; done {
		return
	}
	s.handled[key] = struct{}{}

	person, err := s.people.Resolve(ctx, id, s.dir.FindPersonByUsername)
	if err != nil {
		stats.Failed++
		tlog.WithError(err).Error("Teacher lookup failed")
		return
	}
	if person == nil {
		stats.Skipped++
		tlog.Error("Teacher not found")
		return
	}

	outcome := s.applier.EnsureEnrolled(ctx, course, person, s.role)
	stats.count(outcome)
	switch outcome.Status {
	case OutcomeNewlyEnrolled:
		tlog.Info("Teacher enrolled in course")
	case OutcomeAlreadyEnrolled:
		tlog.Info("Teacher already enrolled in course")
	default:
		tlog.Errorf("Teacher enrolment failed: %s", outcome.Reason)
	}
}
