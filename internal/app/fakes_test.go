package app

import (
	"context"
	"fmt"

	"enrollment_sync/internal/domain/campus"
	"enrollment_sync/internal/domain/directory"
	"enrollment_sync/internal/domain/enrollment"
	"enrollment_sync/internal/domain/period"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

var (
	studentRole = directory.Role{Name: "student", ID: 5}
	teacherRole = directory.Role{Name: "editingteacher", ID: 3}
)

type enrolCall struct {
	CourseID int64
	PersonID int64
	Role     directory.Role
}

type fakeDirectory struct {
	people         map[string]*directory.Person
	courses        map[string]*directory.Course
	noManual       map[int64]bool
	enrolled       map[[2]int64]bool
	personErr      map[string]error
	searchErr      map[string]error
	searchPanic    map[string]bool
	enrolErr       error
	personLookups  map[string]int
	courseSearches map[string]int
	enrolCalls     []enrolCall
	nextID         int64
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		people:         make(map[string]*directory.Person),
		courses:        make(map[string]*directory.Course),
		noManual:       make(map[int64]bool),
		enrolled:       make(map[[2]int64]bool),
		personErr:      make(map[string]error),
		searchErr:      make(map[string]error),
		searchPanic:    make(map[string]bool),
		personLookups:  make(map[string]int),
		courseSearches: make(map[string]int),
	}
}

func (f *fakeDirectory) addPerson(username string) *directory.Person {
	f.nextID++
	p := &directory.Person{ID: f.nextID, Username: username}
	f.people[username] = p
	return p
}

func (f *fakeDirectory) addCourse(idNumber string) *directory.Course {
	f.nextID++
	c := &directory.Course{ID: f.nextID, IDNumber: idNumber}
	f.courses[idNumber] = c
	return c
}

func (f *fakeDirectory) FindPersonByUsername(_ context.Context, username string) (*directory.Person, error) {
	f.personLookups[username]++
	if err := f.personErr[username]; err != nil {
		return nil, err
	}
	return f.people[username], nil
}

func (f *fakeDirectory) SearchCourseByIDNumber(_ context.Context, idNumber string) (*directory.Course, error) {
	f.courseSearches[idNumber]++
	if f.searchPanic[idNumber] {
		panic("unexpected row shape for " + idNumber)
	}
	if err := f.searchErr[idNumber]; err != nil {
		return nil, err
	}
	return f.courses[idNumber], nil
}

func (f *fakeDirectory) IsEnrolled(_ context.Context, c *directory.Course, p *directory.Person) (bool, error) {
	return f.enrolled[[2]int64{c.ID, p.ID}], nil
}

func (f *fakeDirectory) ManualEnrolmentInstance(_ context.Context, c *directory.Course) (*directory.EnrolmentInstance, error) {
	if f.noManual[c.ID] {
		return nil, nil
	}
	return &directory.EnrolmentInstance{ID: c.ID * 100, CourseID: c.ID, Method: directory.ManualMethod}, nil
}

func (f *fakeDirectory) Enrol(_ context.Context, inst *directory.EnrolmentInstance, p *directory.Person, role directory.Role) error {
	if f.enrolErr != nil {
		return f.enrolErr
	}
	key := [2]int64{inst.CourseID, p.ID}
	if f.enrolled[key] {
		return fmt.Errorf("duplicate enrolment course=%d person=%d", inst.CourseID, p.ID)
	}
	f.enrolled[key] = true
	f.enrolCalls = append(f.enrolCalls, enrolCall{CourseID: inst.CourseID, PersonID: p.ID, Role: role})
	return nil
}

type fakeConfigStore struct {
	campuses []campus.Campus
	err      error
}

func (f fakeConfigStore) Campuses(context.Context) ([]campus.Campus, error) {
	return f.campuses, f.err
}

type fakeProvider struct {
	records map[string][]enrollment.Record
	errs    map[string]error
	calls   []string
	periods []period.Period
}

func (f *fakeProvider) GetEnrollments(_ context.Context, c campus.Campus, p period.Period) ([]enrollment.Record, error) {
	f.calls = append(f.calls, c.ID)
	f.periods = append(f.periods, p)
	if err := f.errs[c.ID]; err != nil {
		return nil, err
	}
	return f.records[c.ID], nil
}

type recordingProcessor struct {
	seen     map[string][]enrollment.Record
	order    []string
	errFor   map[string]error
	panicFor map[string]bool
}

func newRecordingProcessor() *recordingProcessor {
	return &recordingProcessor{seen: make(map[string][]enrollment.Record)}
}

func (r *recordingProcessor) Name() string { return "recording" }

func (r *recordingProcessor) Process(_ context.Context, c campus.Campus, records []enrollment.Record) (Stats, error) {
	if r.panicFor[c.ID] {
		panic("processor exploded")
	}
	r.order = append(r.order, c.ID)
	r.seen[c.ID] = records
	return Stats{Records: len(records)}, r.errFor[c.ID]
}

func newTestLogger() (logrus.FieldLogger, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return logger, hook
}

func strPtr(s string) *string { return &s }

func rawOffering(courseCode, section string) enrollment.RawOffering {
	return enrollment.RawOffering{
		Period:         strPtr("2024"),
		TermOfOffering: strPtr("1"),
		Section:        strPtr(section),
		CourseCode:     strPtr(courseCode),
	}
}

// messagesAt returns the messages logged at level.
func messagesAt(hook *test.Hook, level logrus.Level) []string {
	var out []string
	for _, e := range hook.AllEntries() {
		if e.Level == level {
			out = append(out, e.Message)
		}
	}
	return out
}
