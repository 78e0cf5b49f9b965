// internal/domain/directory/directory.go
package directory

import "context"

// Person is a local user resolved by login or tax id.
type Person struct {
	ID       int64
	Username string
}

// Course is a local course resolved by its integration id number.
type Course struct {
	ID       int64
	IDNumber string
	FullName string
}

// Role is the role granted by an enrolment (student, editing teacher).
type Role struct {
	Name string
	ID   int64
}

// EnrolmentInstance is an enrolment channel attached to a course.
type EnrolmentInstance struct {
	ID       int64
	CourseID int64
	Method   string
}

const ManualMethod = "manual"

// Directory is the local user/course/enrolment store.
// Lookups return (nil, nil) when nothing matches.
type Directory interface {
	FindPersonByUsername(ctx context.Context, username string) (*Person, error)
	SearchCourseByIDNumber(ctx context.Context, idNumber string) (*Course, error)
	IsEnrolled(ctx context.Context, course *Course, person *Person) (bool, error)
	// ManualEnrolmentInstance returns nil when the course has no enabled manual channel.
	ManualEnrolmentInstance(ctx context.Context, course *Course) (*EnrolmentInstance, error)
	Enrol(ctx context.Context, instance *EnrolmentInstance, person *Person, role Role) error
}
