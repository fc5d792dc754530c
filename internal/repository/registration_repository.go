package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/uni-api/internal/models"
)

// RegistrationTx is the set of statements a lecture toggle runs inside one transaction.
type RegistrationTx interface {
	LockLecture(ctx context.Context, lectureID string) (*models.Lecture, error)
	IsEnrolled(ctx context.Context, lectureID, studentID string) (bool, error)
	AddEnrollment(ctx context.Context, lectureID, studentID string) error
	RemoveEnrollment(ctx context.Context, lectureID, studentID string) (bool, error)
	DecrementCapacity(ctx context.Context, lectureID string) (int, bool, error)
	IncrementCapacity(ctx context.Context, lectureID string) (int, error)
	OtherEnrolledLectures(ctx context.Context, studentID, courseID, excludeLectureID string) ([]models.Lecture, error)
	DeactivateLectureRecords(ctx context.Context, studentID, lectureID string) error
	DeactivateCourseRecords(ctx context.Context, studentID, courseID string) error
	LatestInactiveRecord(ctx context.Context, studentID, courseID, excludeLectureID string) (*models.GradeRecord, error)
	ActivateRecord(ctx context.Context, recordID string) error
}

// RegistrationRepository runs lecture toggles under a row lock on the lecture.
type RegistrationRepository struct {
	db *sqlx.DB
}

// NewRegistrationRepository constructs the repository.
func NewRegistrationRepository(db *sqlx.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// WithinTx runs fn in a transaction, committing when fn returns nil and rolling back otherwise.
func (r *RegistrationRepository) WithinTx(ctx context.Context, fn func(RegistrationTx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin registration: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			_ = tx.Rollback()
		}
	}()

	if err := fn(&registrationTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit registration: %w", err)
	}
	commit = true
	return nil
}

type registrationTx struct {
	tx *sqlx.Tx
}

func (t *registrationTx) LockLecture(ctx context.Context, lectureID string) (*models.Lecture, error) {
	query := `SELECT ` + lectureColumns + ` FROM lectures l WHERE l.id = $1 FOR UPDATE`
	var lecture models.Lecture
	if err := t.tx.GetContext(ctx, &lecture, query, lectureID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock lecture: %w", err)
	}
	return &lecture, nil
}

func (t *registrationTx) IsEnrolled(ctx context.Context, lectureID, studentID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM lecture_students WHERE lecture_id = $1 AND student_id = $2)`
	var exists bool
	if err := t.tx.GetContext(ctx, &exists, query, lectureID, studentID); err != nil {
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return exists, nil
}

func (t *registrationTx) AddEnrollment(ctx context.Context, lectureID, studentID string) error {
	const query = `INSERT INTO lecture_students (lecture_id, student_id, created_at) VALUES ($1, $2, $3)
ON CONFLICT (lecture_id, student_id) DO NOTHING`
	if _, err := t.tx.ExecContext(ctx, query, lectureID, studentID, time.Now().UTC()); err != nil {
		return fmt.Errorf("add enrollment: %w", err)
	}
	return nil
}

// RemoveEnrollment reports whether a membership row was actually deleted.
func (t *registrationTx) RemoveEnrollment(ctx context.Context, lectureID, studentID string) (bool, error) {
	const query = `DELETE FROM lecture_students WHERE lecture_id = $1 AND student_id = $2`
	res, err := t.tx.ExecContext(ctx, query, lectureID, studentID)
	if err != nil {
		return false, fmt.Errorf("remove enrollment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove enrollment rows: %w", err)
	}
	return n > 0, nil
}

// DecrementCapacity takes one seat if any is left. ok is false when the lecture is already full.
func (t *registrationTx) DecrementCapacity(ctx context.Context, lectureID string) (int, bool, error) {
	const query = `UPDATE lectures SET capacity = capacity - 1, updated_at = $2 WHERE id = $1 AND capacity > 0 RETURNING capacity`
	var capacity int
	if err := t.tx.GetContext(ctx, &capacity, query, lectureID, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("decrement capacity: %w", err)
	}
	return capacity, true, nil
}

func (t *registrationTx) IncrementCapacity(ctx context.Context, lectureID string) (int, error) {
	const query = `UPDATE lectures SET capacity = capacity + 1, updated_at = $2 WHERE id = $1 RETURNING capacity`
	var capacity int
	if err := t.tx.GetContext(ctx, &capacity, query, lectureID, time.Now().UTC()); err != nil {
		return 0, fmt.Errorf("increment capacity: %w", err)
	}
	return capacity, nil
}

// OtherEnrolledLectures lists the student's lectures of courseID except excludeLectureID, newest enrollment first.
func (t *registrationTx) OtherEnrolledLectures(ctx context.Context, studentID, courseID, excludeLectureID string) ([]models.Lecture, error) {
	query := `SELECT ` + lectureColumns + ` FROM lectures l
JOIN lecture_students ls ON ls.lecture_id = l.id
WHERE ls.student_id = $1 AND l.course_id = $2 AND l.id <> $3
ORDER BY ls.created_at DESC`
	var lectures []models.Lecture
	if err := t.tx.SelectContext(ctx, &lectures, query, studentID, courseID, excludeLectureID); err != nil {
		return nil, fmt.Errorf("list other enrolled lectures: %w", err)
	}
	return lectures, nil
}

func (t *registrationTx) DeactivateLectureRecords(ctx context.Context, studentID, lectureID string) error {
	const query = `UPDATE grade_records SET is_active = FALSE, updated_at = $3
WHERE student_id = $1 AND lecture_id = $2 AND is_active = TRUE`
	if _, err := t.tx.ExecContext(ctx, query, studentID, lectureID, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate lecture records: %w", err)
	}
	return nil
}

func (t *registrationTx) DeactivateCourseRecords(ctx context.Context, studentID, courseID string) error {
	const query = `UPDATE grade_records SET is_active = FALSE, updated_at = $3
WHERE student_id = $1 AND is_active = TRUE
AND lecture_id IN (SELECT id FROM lectures WHERE course_id = $2)`
	if _, err := t.tx.ExecContext(ctx, query, studentID, courseID, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate course records: %w", err)
	}
	return nil
}

// LatestInactiveRecord returns the most recent inactive record of the course outside excludeLectureID.
func (t *registrationTx) LatestInactiveRecord(ctx context.Context, studentID, courseID, excludeLectureID string) (*models.GradeRecord, error) {
	query := `SELECT ` + gradeRecordColumns + ` FROM grade_records gr
JOIN lectures l ON l.id = gr.lecture_id
WHERE gr.student_id = $1 AND l.course_id = $2 AND gr.lecture_id <> $3 AND gr.is_active = FALSE
ORDER BY gr.created_at DESC LIMIT 1`
	var record models.GradeRecord
	if err := t.tx.GetContext(ctx, &record, query, studentID, courseID, excludeLectureID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find inactive record: %w", err)
	}
	return &record, nil
}

func (t *registrationTx) ActivateRecord(ctx context.Context, recordID string) error {
	const query = `UPDATE grade_records SET is_active = TRUE, updated_at = $2 WHERE id = $1`
	if _, err := t.tx.ExecContext(ctx, query, recordID, time.Now().UTC()); err != nil {
		return fmt.Errorf("activate record: %w", err)
	}
	return nil
}
