package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/uni-api/internal/models"
)

const gradeRecordColumns = `gr.id, gr.student_id, gr.lecture_id, gr.grade, gr.failed, gr.is_active, gr.created_at, gr.updated_at`

const gradeRecordDetailSelect = `SELECT ` + gradeRecordColumns + `, l.name AS lecture_name, l.course_id, c.name AS course_name,
c.credits, l.uni_year, TRIM(u.first_name || ' ' || u.last_name) AS student_name
FROM grade_records gr
JOIN lectures l ON l.id = gr.lecture_id
JOIN courses c ON c.id = l.course_id
JOIN users u ON u.id = gr.student_id`

// GradeRecordRepository persists settled lecture outcomes.
type GradeRecordRepository struct {
	db *sqlx.DB
}

// NewGradeRecordRepository constructs the repository.
func NewGradeRecordRepository(db *sqlx.DB) *GradeRecordRepository {
	return &GradeRecordRepository{db: db}
}

// Settle upserts the record keyed on (student, lecture, failed). When activate is set the record becomes
// the single active record of its course and every other active record of the course is deactivated.
func (r *GradeRecordRepository) Settle(ctx context.Context, record *models.GradeRecord, activate bool) (*models.GradeRecord, error) {
	now := time.Now().UTC()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin settle grade record: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if activate {
		const deactivate = `UPDATE grade_records SET is_active = FALSE, updated_at = $4
WHERE student_id = $1 AND is_active = TRUE AND NOT (lecture_id = $2 AND failed = $3)
AND lecture_id IN (SELECT id FROM lectures WHERE course_id = (SELECT course_id FROM lectures WHERE id = $2))`
		if _, err := tx.ExecContext(ctx, deactivate, record.StudentID, record.LectureID, record.Failed, now); err != nil {
			return nil, fmt.Errorf("deactivate sibling records: %w", err)
		}
	}

	const upsert = `INSERT INTO grade_records (id, student_id, lecture_id, grade, failed, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
ON CONFLICT (student_id, lecture_id, failed)
DO UPDATE SET grade = EXCLUDED.grade, is_active = EXCLUDED.is_active OR grade_records.is_active, updated_at = EXCLUDED.updated_at
RETURNING id, student_id, lecture_id, grade, failed, is_active, created_at, updated_at`
	var stored models.GradeRecord
	if err := tx.GetContext(ctx, &stored, upsert, record.ID, record.StudentID, record.LectureID, record.Grade, record.Failed, activate, now); err != nil {
		return nil, fmt.Errorf("upsert grade record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit settle grade record: %w", err)
	}
	return &stored, nil
}

// ListActiveByStudent returns a student's active records with course data.
func (r *GradeRecordRepository) ListActiveByStudent(ctx context.Context, studentID string) ([]models.GradeRecordDetail, error) {
	query := gradeRecordDetailSelect + ` WHERE gr.student_id = $1 AND gr.is_active = TRUE ORDER BY gr.created_at`
	var records []models.GradeRecordDetail
	if err := r.db.SelectContext(ctx, &records, query, studentID); err != nil {
		return nil, fmt.Errorf("list active grade records: %w", err)
	}
	return records, nil
}

// ListByStudent returns every record of a student, newest first.
func (r *GradeRecordRepository) ListByStudent(ctx context.Context, studentID string) ([]models.GradeRecordDetail, error) {
	query := gradeRecordDetailSelect + ` WHERE gr.student_id = $1 ORDER BY gr.created_at DESC`
	var records []models.GradeRecordDetail
	if err := r.db.SelectContext(ctx, &records, query, studentID); err != nil {
		return nil, fmt.Errorf("list grade records: %w", err)
	}
	return records, nil
}

// ListByLecture returns the records of a lecture ordered by student name.
func (r *GradeRecordRepository) ListByLecture(ctx context.Context, lectureID string) ([]models.GradeRecordDetail, error) {
	query := gradeRecordDetailSelect + ` WHERE gr.lecture_id = $1 ORDER BY student_name`
	var records []models.GradeRecordDetail
	if err := r.db.SelectContext(ctx, &records, query, lectureID); err != nil {
		return nil, fmt.Errorf("list lecture grade records: %w", err)
	}
	return records, nil
}
