package app

import (
	"context"
	"errors"
	"fmt"

	"enrollment_sync/internal/domain/campus"
	"enrollment_sync/internal/domain/directory"
	"enrollment_sync/internal/domain/enrollment"

	"github.com/sirupsen/logrus"
)

// StudentEnrollmentSync enrols every student returned by the external system
// into the local courses matching their offerings.
type StudentEnrollmentSync struct {
	dir     directory.Directory
	courses *CourseLookupCache
	applier *EnrollmentApplier
	role    directory.Role
	policy  MissingPersonPolicy
	logger  logrus.FieldLogger
}

func NewStudentEnrollmentSync(dir directory.Directory, role directory.Role, policy MissingPersonPolicy, logger logrus.FieldLogger) *StudentEnrollmentSync {
	return &StudentEnrollmentSync{
		dir:     dir,
		courses: NewCourseLookupCache(),
		applier: NewEnrollmentApplier(dir, logger),
		role:    role,
		policy:  policy,
		logger:  logger,
	}
}

func (s *StudentEnrollmentSync) Name() string { return "students" }

func (s *StudentEnrollmentSync) Process(ctx context.Context, c campus.Campus, records []enrollment.Record) (Stats, error) {
	var stats Stats
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("interrupted after %d of %d records: %w", i, len(records), err)
		}
		stats.Records++
		log := s.logger.WithFields(logrus.Fields{
			"campus":          c.Name,
			"login":           rec.Login,
			"registration_id": rec.RegistrationID,
		})

		person, err := s.dir.FindPersonByUsername(ctx, rec.Login)
		if err != nil {
			stats.Failed++
			log.WithError(err).Error("Student lookup failed")
			continue
		}
		if person == nil {
			stats.Skipped++
			log.Error("Student not found, enrolments not created")
			if s.policy == AbortRemaining {
				log.Warnf("Skipping the remaining %d records of this campus", len(records)-i-1)
				return stats, nil
			}
			continue
		}

		for _, raw := range rec.Offerings {
			res, err := s.enrolInOffering(ctx, c, rec, raw, person)
			olog := log.WithField("course_idnumber", res.courseID)
			if err != nil {
				stats.Failed++
				if errors.Is(err, ErrEarlierSearchFailed) {
					olog.Warn("Course search failed earlier in this run, student not enrolled")
					continue
				}
				olog.WithError(err).Error("Failed to process student enrolment in course")
				continue
			}
			switch res.skip {
			case skipInvalidOffering:
				stats.Skipped++
				olog.Warnf("Offering skipped: %s", res.detail)
				continue
			case skipCourseNotFound:
				stats.Skipped++
				olog.Error("Course not found, student not enrolled")
				continue
			}

			stats.count(res.outcome)
			switch res.outcome.Status {
			case OutcomeNewlyEnrolled:
				olog.Info("Student enrolled in course")
			case OutcomeAlreadyEnrolled:
				olog.Debug("Student already enrolled in course")
			default:
				olog.Errorf("Student enrolment failed: %s", res.outcome.Reason)
			}
		}
	}
	return stats, nil
}

func (s *StudentEnrollmentSync) enrolInOffering(ctx context.Context, c campus.Campus, rec enrollment.Record, raw enrollment.RawOffering, person *directory.Person) (res offeringResult, err error) {
	defer recoverInto(&err)

	o, skipped, err := validateOffering(raw)
	if err != nil {
		return offeringResult{}, err
	}
	if skipped != nil {
		return *skipped, nil
	}

	res.courseID = enrollment.DeriveCourseIdentifier(c, rec, o)
	course, err := s.courses.Resolve(ctx, res.courseID, s.dir.SearchCourseByIDNumber)
	if err != nil {
		return res, fmt.Errorf("search course: %w", err)
	}
	if course == nil {
		res.skip = skipCourseNotFound
		return res, nil
	}
	res.outcome = s.applier.EnsureEnrolled(ctx, course, person, s.role)
	return res, nil
}
