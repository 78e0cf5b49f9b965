package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"enrollment_sync/internal/domain/directory"

	"github.com/lib/pq"
)

const defaultQueryTimeout = 10 * time.Second

// PostgresDirectory reads people and courses from the local LMS database
// and writes enrolments through its manual enrolment instances.
//
// Tables used: users, courses, enrol, user_enrolments, role_assignments.
type PostgresDirectory struct {
	db           *sql.DB
	queryTimeout time.Duration
}

func NewPostgresDirectory(db *sql.DB, queryTimeout time.Duration) *PostgresDirectory {
	if queryTimeout <= 0 {
		queryTimeout = defaultQueryTimeout
	}
	return &PostgresDirectory{db: db, queryTimeout: queryTimeout}
}

func (r *PostgresDirectory) FindPersonByUsername(ctx context.Context, username string) (*directory.Person, error) {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	query := `SELECT id, username FROM users WHERE username = $1 AND deleted = FALSE`
	p := &directory.Person{}
	err := r.db.QueryRowContext(ctx, query, username).Scan(&p.ID, &p.Username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error getting user by username: %w", err)
	}
	return p, nil
}

func (r *PostgresDirectory) SearchCourseByIDNumber(ctx context.Context, idNumber string) (*directory.Course, error) {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	query := `SELECT id, idnumber, fullname FROM courses WHERE idnumber = $1 ORDER BY id LIMIT 1`
	c := &directory.Course{}
	err := r.db.QueryRowContext(ctx, query, idNumber).Scan(&c.ID, &c.IDNumber, &c.FullName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error searching course by idnumber: %w", err)
	}
	return c, nil
}

func (r *PostgresDirectory) IsEnrolled(ctx context.Context, course *directory.Course, person *directory.Person) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	query := `SELECT EXISTS (
                SELECT 1 FROM user_enrolments ue
                JOIN enrol e ON e.id = ue.enrolid
               WHERE e.courseid = $1 AND ue.userid = $2)`
	var enrolled bool
	if err := r.db.QueryRowContext(ctx, query, course.ID, person.ID).Scan(&enrolled); err != nil {
		return false, fmt.Errorf("error checking enrolment: %w", err)
	}
	return enrolled, nil
}

func (r *PostgresDirectory) ManualEnrolmentInstance(ctx context.Context, course *directory.Course) (*directory.EnrolmentInstance, error) {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	query := `SELECT id, courseid, enrol FROM enrol
               WHERE courseid = $1 AND enrol = $2 AND status = 0
               ORDER BY sortorder, id LIMIT 1`
	inst := &directory.EnrolmentInstance{}
	err := r.db.QueryRowContext(ctx, query, course.ID, directory.ManualMethod).Scan(&inst.ID, &inst.CourseID, &inst.Method)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error getting manual enrolment instance: %w", err)
	}
	return inst, nil
}

// Enrol adds the user enrolment and role assignment in one transaction.
// Existing rows are left untouched.
func (r *PostgresDirectory) Enrol(ctx context.Context, instance *directory.EnrolmentInstance, person *directory.Person, role directory.Role) error {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // no-op after commit

	_, err = tx.ExecContext(ctx,
		`INSERT INTO user_enrolments (enrolid, userid, status, timestart, timecreated)
         VALUES ($1, $2, 0, NOW(), NOW())
         ON CONFLICT (enrolid, userid) DO NOTHING`,
		instance.ID, person.ID)
	if err != nil {
		return fmt.Errorf("error inserting user enrolment: %w", describePQError(err))
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO role_assignments (roleid, userid, courseid, component, itemid, timemodified)
         VALUES ($1, $2, $3, 'enrol_manual', $4, NOW())
         ON CONFLICT (roleid, userid, courseid) DO NOTHING`,
		role.ID, person.ID, instance.CourseID, instance.ID)
	if err != nil {
		return fmt.Errorf("error assigning role %s: %w", role.Name, describePQError(err))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit enrolment: %w", err)
	}
	return nil
}

// describePQError adds the constraint name to driver errors so that
// foreign key problems (unknown role, deleted user) are readable in logs.
func describePQError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Constraint != "" {
		return fmt.Errorf("%w (constraint %s)", err, pqErr.Constraint)
	}
	return err
}

var _ directory.Directory = (*PostgresDirectory)(nil)
