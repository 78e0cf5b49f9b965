// internal/domain/enrollment/record.go
package enrollment

import (
	"context"

	"enrollment_sync/internal/domain/campus"
	"enrollment_sync/internal/domain/period"
)

// Record is one external enrollment entry: a person and the offerings they
// are enrolled in. Offerings arrive unvalidated.
type Record struct {
	Login          string
	RegistrationID string
	Offerings      []RawOffering
}

// RawOffering mirrors the external payload. Nil fields were absent.
// DecodeErr is set when the entry could not be decoded at all.
type RawOffering struct {
	Period         *string      `validate:"required"`
	TermOfOffering *string      `validate:"required"`
	Section        *string      `validate:"required"`
	CourseCode     *string      `validate:"required"`
	Teachers       []TeacherRef `validate:"-"`
	DecodeErr      error        `validate:"-"`
}

// TeacherRef is a teacher as listed by the external system.
type TeacherRef struct {
	Name  string
	TaxID string
}

// Offering is a validated RawOffering.
type Offering struct {
	Period         string
	TermOfOffering string
	Section        string
	CourseCode     string
	Teachers       []TeacherRef
}

// Provider fetches enrollment records for a campus and period.
type Provider interface {
	GetEnrollments(ctx context.Context, c campus.Campus, p period.Period) ([]Record, error)
}
