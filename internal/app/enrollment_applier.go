package app

import (
	"context"
	"fmt"

	"enrollment_sync/internal/domain/directory"

	"github.com/sirupsen/logrus"
)

type OutcomeStatus string

const (
	OutcomeAlreadyEnrolled OutcomeStatus = "ALREADY_ENROLLED"
	OutcomeNewlyEnrolled   OutcomeStatus = "NEWLY_ENROLLED"
	OutcomeFailed          OutcomeStatus = "FAILED"
)

const ReasonManualChannelUnavailable = "manual enrollment channel unavailable"

// Outcome is the result of one EnsureEnrolled call. Reason is set on failure.
type Outcome struct {
	Status OutcomeStatus
	Reason string
}

func (o Outcome) Failed() bool { return o.Status == OutcomeFailed }

func failed(reason string) Outcome {
	return Outcome{Status: OutcomeFailed, Reason: reason}
}

// EnrollmentApplier enrols people into courses through the directory's
// manual enrolment channel. Repeating a call is harmless.
type EnrollmentApplier struct {
	dir    directory.Directory
	logger logrus.FieldLogger

	// courses already reported without a manual channel
	noManualChannel map[int64]struct{}
}

func NewEnrollmentApplier(dir directory.Directory, logger logrus.FieldLogger) *EnrollmentApplier {
	return &EnrollmentApplier{
		dir:             dir,
		logger:          logger,
		noManualChannel: make(map[int64]struct{}),
	}
}

// EnsureEnrolled makes sure person is enrolled in course with role. It never
// returns an error; failures are reported through the Outcome.
func (a *EnrollmentApplier) EnsureEnrolled(ctx context.Context, course *directory.Course, person *directory.Person, role directory.Role) Outcome {
	enrolled, err := a.dir.IsEnrolled(ctx, course, person)
	if err != nil {
		return failed(fmt.Sprintf("check enrolment: %v", err))
	}
	if enrolled {
		return Outcome{Status: OutcomeAlreadyEnrolled}
	}

	if _, reported := a.noManualChannel[course.ID]; reported {
		return failed(ReasonManualChannelUnavailable)
	}
	instance, err := a.dir.ManualEnrolmentInstance(ctx, course)
	if err != nil {
		return failed(fmt.Sprintf("load enrolment instances: %v", err))
	}
	if instance == nil {
		a.noManualChannel[course.ID] = struct{}{}
		a.logger.WithField("course_idnumber", course.IDNumber).
			Error("Manual enrolment is not enabled for this course. Enable it and run the integration again.")
		return failed(ReasonManualChannelUnavailable)
	}

	if err := a.dir.Enrol(ctx, instance, person, role); err != nil {
		return failed(fmt.Sprintf("enrol with role %s: %v", role.Name, err))
	}
	return Outcome{Status: OutcomeNewlyEnrolled}
}
