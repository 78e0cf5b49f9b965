package app

import (
	"errors"
	"fmt"
	"strings"

	"enrollment_sync/internal/domain/enrollment"
)

// MissingPersonPolicy decides what happens to the rest of a batch when a
// student from the external system has no local account.
type MissingPersonPolicy string

const (
	// SkipPerson skips only the missing person's offerings.
	SkipPerson MissingPersonPolicy = "skip_person"
	// AbortRemaining stops processing the remaining records of the campus,
	// matching the behaviour of the legacy plugin.
	AbortRemaining MissingPersonPolicy = "abort_remaining"
)

func ParseMissingPersonPolicy(s string) (MissingPersonPolicy, error) {
	switch MissingPersonPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", SkipPerson:
		return SkipPerson, nil
	case AbortRemaining:
		return AbortRemaining, nil
	}
	return "", fmt.Errorf("unknown missing person policy %q", s)
}

type skipReason int

const (
	notSkipped skipReason = iota
	skipInvalidOffering
	skipCourseNotFound
)

// offeringResult is what happened to one offering of a record. Exactly one
// of skip or outcome is meaningful.
type offeringResult struct {
	courseID string
	skip     skipReason
	detail   string
	outcome  Outcome
}

// validateOffering separates "skip this offering" from real failures.
func validateOffering(raw enrollment.RawOffering) (enrollment.Offering, *offeringResult, error) {
	o, err := raw.Validate()
	if err == nil {
		return o, nil, nil
	}
	var ve *enrollment.ValidationError
	if errors.As(err, &ve) {
		return enrollment.Offering{}, &offeringResult{skip: skipInvalidOffering, detail: ve.Error()}, nil
	}
	return enrollment.Offering{}, nil, err
}

func recoverInto(err *error) {
	if rec := recover(); rec != nil {
		*err = fmt.Errorf("panic: %v", rec)
	}
}
