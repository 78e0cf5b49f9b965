package enrollment

import (
	"strings"

	"enrollment_sync/internal/domain/campus"
)

// CourseOffering bundles what is needed to derive a course identifier and
// to report it in logs.
type CourseOffering struct {
	RegistrationID string
	Login          string
	CourseCode     string
	Period         string
	TermOfOffering string
	Section        string
}

func MapToCourseOffering(r Record, o Offering) CourseOffering {
	return CourseOffering{
		RegistrationID: r.RegistrationID,
		Login:          r.Login,
		CourseCode:     o.CourseCode,
		Period:         o.Period,
		TermOfOffering: o.TermOfOffering,
		Section:        o.Section,
	}
}

const idSeparator = "."

// Escaping keeps a separator inside a part from producing the same key as
// a different split of the parts.
var idPartEscaper = strings.NewReplacer("%", "%25", idSeparator, "%2E")

// CourseIdentifier is the join key between an external offering and a
// local course id number. The same inputs always give the same key.
func (co CourseOffering) CourseIdentifier(c campus.Campus) string {
	parts := []string{c.ID, co.CourseCode, co.Period, co.TermOfOffering, co.Section}
	for i, p := range parts {
		parts[i] = idPartEscaper.Replace(strings.TrimSpace(p))
	}
	return strings.Join(parts, idSeparator)
}

// DeriveCourseIdentifier is shorthand for mapping and deriving in one step.
func DeriveCourseIdentifier(c campus.Campus, r Record, o Offering) string {
	return MapToCourseOffering(r, o).CourseIdentifier(c)
}
