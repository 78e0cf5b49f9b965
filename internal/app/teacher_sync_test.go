package app

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"enrollment_sync/internal/domain/enrollment"
)

func offeringWithTeachers(courseCode string, teachers ...enrollment.TeacherRef) enrollment.RawOffering {
	o := rawOffering(courseCode, "A")
	o.Teachers = teachers
	return o
}

func TestTeacherSync_InvalidTaxIDSkipsOnlyThatTeacher(t *testing.T) {
	dir := newFakeDirectory()
	course := dir.addCourse("7.MAT101.2024.1.A")
	ana := dir.addPerson("12345678909")
	records := []enrollment.Record{{Login: "student", Offerings: []enrollment.RawOffering{
		offeringWithTeachers("MAT101",
			enrollment.TeacherRef{Name: "No Id", TaxID: ""},
			enrollment.TeacherRef{Name: "Too Long", TaxID: "123.456.789-0123"},
			enrollment.TeacherRef{Name: "Ana", TaxID: "123.456.789-09"},
		),
	}}}
	logger, hook := newTestLogger()

	stats, err := NewTeacherEnrollmentSync(dir, teacherRole, logger).Process(context.Background(), testCampus, records)
	require.NoError(t, err)

	require.Len(t, dir.enrolCalls, 1)
	assert.Equal(t, enrolCall{CourseID: course.ID, PersonID: ana.ID, Role: teacherRole}, dir.enrolCalls[0])
	assert.Equal(t, 2, stats.Skipped)
	assert.Equal(t, 1, stats.Enrolled)

	errs := messagesAt(hook, logrus.ErrorLevel)
	assert.Contains(t, errs, "Teacher has no tax id in the external system, cannot enrol")
	assert.Contains(t, errs, "Invalid teacher tax id, cannot enrol")
}

func TestTeacherSync_ShortTaxIDIsPadded(t *testing.T) {
	dir := newFakeDirectory()
	dir.addCourse("7.MAT101.2024.1.A")
	p := dir.addPerson("01234567890")
	records := []enrollment.Record{{Offerings: []enrollment.RawOffering{
		offeringWithTeachers("MAT101", enrollment.TeacherRef{Name: "Bia", TaxID: "123.456.789-0"}),
	}}}
	logger, _ := newTestLogger()

	_, err := NewTeacherEnrollmentSync(dir, teacherRole, logger).Process(context.Background(), testCampus, records)
	require.NoError(t, err)
	require.Len(t, dir.enrolCalls, 1)
	assert.Equal(t, p.ID, dir.enrolCalls[0].PersonID)
}

func TestTeacherSync_RepeatedOfferingsAreHandledOnce(t *testing.T) {
	dir := newFakeDirectory()
	dir.addCourse("7.MAT101.2024.1.A")
	dir.addPerson("12345678909")
	ana := enrollment.TeacherRef{Name: "Ana", TaxID: "12345678909"}
	ghost := enrollment.TeacherRef{Name: "Ghost", TaxID: "99999999999"}
	var records []enrollment.Record
	for i := 0; i < 3; i++ {
		records = append(records, enrollment.Record{Offerings: []enrollment.RawOffering{
			offeringWithTeachers("MAT101", ana, ghost),
		}})
	}
	logger, _ := newTestLogger()

	stats, err := NewTeacherEnrollmentSync(dir, teacherRole, logger).Process(context.Background(), testCampus, records)
	require.NoError(t, err)

	assert.Len(t, dir.enrolCalls, 1)
	assert.Equal(t, 1, dir.courseSearches["7.MAT101.2024.1.A"])
	assert.Equal(t, 1, dir.personLookups["99999999999"])
	assert.Equal(t, 1, stats.Enrolled)
	assert.Equal(t, 1, stats.Skipped)
}

func TestTeacherSync_MissingCourseAndInvalidOffering(t *testing.T) {
	dir := newFakeDirectory()
	dir.addPerson("12345678909")
	invalid := offeringWithTeachers("MAT101", enrollment.TeacherRef{Name: "Ana", TaxID: "12345678909"})
	invalid.TermOfOffering = nil
	records := []enrollment.Record{{Offerings: []enrollment.RawOffering{
		invalid,
		offeringWithTeachers("NOPE", enrollment.TeacherRef{Name: "Ana", TaxID: "12345678909"}),
	}}}
	logger, hook := newTestLogger()

	stats, err := NewTeacherEnrollmentSync(dir, teacherRole, logger).Process(context.Background(), testCampus, records)
	require.NoError(t, err)

	assert.Empty(t, dir.enrolCalls)
	assert.Equal(t, 2, stats.Skipped)
	assert.Contains(t, messagesAt(hook, logrus.ErrorLevel), "Course not found, teachers not enrolled")
	assert.Zero(t, dir.personLookups["12345678909"])
}

func TestTeacherSync_PanicInOneOfferingDoesNotStopTheNext(t *testing.T) {
	dir := newFakeDirectory()
	course := dir.addCourse("7.MAT101.2024.1.A")
	ana := dir.addPerson("12345678909")
	dir.searchPanic["7.FIS201.2024.1.A"] = true
	ref := enrollment.TeacherRef{Name: "Ana", TaxID: "123.456.789-09"}
	records := []enrollment.Record{
		{Offerings: []enrollment.RawOffering{offeringWithTeachers("FIS201", ref)}},
		{Offerings: []enrollment.RawOffering{offeringWithTeachers("MAT101", ref)}},
	}
	logger, hook := newTestLogger()

	stats, err := NewTeacherEnrollmentSync(dir, teacherRole, logger).Process(context.Background(), testCampus, records)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Enrolled)
	require.Len(t, dir.enrolCalls, 1)
	assert.Equal(t, enrolCall{CourseID: course.ID, PersonID: ana.ID, Role: teacherRole}, dir.enrolCalls[0])

	errs := messagesAt(hook, logrus.ErrorLevel)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "panic while processing offering")
}

func TestTeacherSync_FailedCourseSearchIsNotRetried(t *testing.T) {
	dir := newFakeDirectory()
	dir.addPerson("12345678909")
	dir.searchErr["7.MAT101.2024.1.A"] = errors.New("catalog unavailable")
	ref := enrollment.TeacherRef{Name: "Ana", TaxID: "123.456.789-09"}
	records := []enrollment.Record{
		{Offerings: []enrollment.RawOffering{offeringWithTeachers("MAT101", ref)}},
		{Offerings: []enrollment.RawOffering{offeringWithTeachers("MAT101", ref)}},
	}
	logger, hook := newTestLogger()

	stats, err := NewTeacherEnrollmentSync(dir, teacherRole, logger).Process(context.Background(), testCampus, records)
	require.NoError(t, err)

	assert.Equal(t, 1, dir.courseSearches["7.MAT101.2024.1.A"])
	assert.Equal(t, 2, stats.Failed)
	assert.Equal(t, []string{"Course search failed earlier in this run, teachers not enrolled"}, messagesAt(hook, logrus.WarnLevel))
}

func TestTeacherSync_StopsWhenContextIsCancelled(t *testing.T) {
	dir := newFakeDirectory()
	dir.addCourse("7.MAT101.2024.1.A")
	records := []enrollment.Record{{Offerings: []enrollment.RawOffering{
		offeringWithTeachers("MAT101", enrollment.TeacherRef{Name: "Ana", TaxID: "123.456.789-09"}),
	}}}
	logger, _ := newTestLogger()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewTeacherEnrollmentSync(dir, teacherRole, logger).Process(ctx, testCampus, records)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, dir.courseSearches)
}
