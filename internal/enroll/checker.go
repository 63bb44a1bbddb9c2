// Package enroll is the engine's view of course enrollment, which is owned by
// the course-management side of the platform.
package enroll

import (
	"context"
	"database/sql"
	"errors"
)

type Checker interface {
	// Enrolled reports whether the student is actively enrolled in the course.
	Enrolled(ctx context.Context, studentID, courseID string) (bool, error)
	// Roster lists the IDs of actively enrolled students, for notification
	// fan-out on quiz publication.
	Roster(ctx context.Context, courseID string) ([]string, error)
}

type SQLChecker struct{ db *sql.DB }

func NewSQLChecker(db *sql.DB) *SQLChecker { return &SQLChecker{db: db} }

func (c *SQLChecker) Enrolled(ctx context.Context, studentID, courseID string) (bool, error) {
	var one int
	err := c.db.QueryRowContext(ctx,
		`SELECT 1 FROM enrollments WHERE student_id=$1 AND course_id=$2 AND status='active'`,
		studentID, courseID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *SQLChecker) Roster(ctx context.Context, courseID string) ([]string, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT student_id FROM enrollments WHERE course_id=$1 AND status='active' ORDER BY student_id`,
		courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
