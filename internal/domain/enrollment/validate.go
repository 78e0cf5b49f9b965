package enrollment

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ValidationError lists the offering fields that failed validation, or the
// decoding error for offerings that arrived malformed.
type ValidationError struct {
	Fields []string
	Cause  error
}

func (e *ValidationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid offering: malformed entry: %v", e.Cause)
	}
	return fmt.Sprintf("invalid offering: missing %s", strings.Join(e.Fields, ", "))
}

func (e *ValidationError) Unwrap() error { return e.Cause }

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func offeringValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate converts a RawOffering into an Offering. The error is a
// *ValidationError when required fields are missing.
func (r RawOffering) Validate() (Offering, error) {
	if r.DecodeErr != nil {
		return Offering{}, &ValidationError{Cause: r.DecodeErr}
	}
	if err := offeringValidator().Struct(r); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return Offering{}, fmt.Errorf("validate offering: %w", err)
		}
		ve := &ValidationError{}
		for _, fe := range fieldErrs {
			ve.Fields = append(ve.Fields, fe.Field())
		}
		return Offering{}, ve
	}
	return Offering{
		Period:         *r.Period,
		TermOfOffering: *r.TermOfOffering,
		Section:        *r.Section,
		CourseCode:     *r.CourseCode,
		Teachers:       r.Teachers,
	}, nil
}
