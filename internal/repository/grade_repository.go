package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/uni-api/internal/models"
)

// LectureTotal is the summed grade of one student in one lecture.
type LectureTotal struct {
	Total     float64  `db:"total"`
	FinalExam *float64 `db:"final_exam"`
	Graded    int      `db:"graded"`
}

// GradeRepository persists assignment grades.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository constructs the repository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

// Upsert stores the student's grade for an assignment, one row per (student, assignment).
func (r *GradeRepository) Upsert(ctx context.Context, grade *models.Grade) (*models.Grade, error) {
	now := time.Now().UTC()
	if grade.ID == "" {
		grade.ID = uuid.NewString()
	}
	if grade.CreatedAt.IsZero() {
		grade.CreatedAt = now
	}
	grade.UpdatedAt = now
	const query = `INSERT INTO grades (id, student_id, assignment_id, grade, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (student_id, assignment_id)
DO UPDATE SET grade = EXCLUDED.grade, created_by = EXCLUDED.created_by, updated_at = EXCLUDED.updated_at
RETURNING id, student_id, assignment_id, grade, created_by, created_at, updated_at`
	var stored models.Grade
	if err := r.db.GetContext(ctx, &stored, query, grade.ID, grade.StudentID, grade.AssignmentID, grade.Grade, grade.CreatedBy, grade.CreatedAt, grade.UpdatedAt); err != nil {
		return nil, fmt.Errorf("upsert grade: %w", err)
	}
	return &stored, nil
}

// LectureTotal sums the student's grades in a lecture and picks out the final exam grade.
func (r *GradeRepository) LectureTotal(ctx context.Context, studentID, lectureID string) (*LectureTotal, error) {
	const query = `SELECT COALESCE(SUM(g.grade), 0) AS total,
MAX(CASE WHEN a.name = ANY($3) THEN g.grade END) AS final_exam,
COUNT(g.id) AS graded
FROM grades g JOIN assignments a ON a.id = g.assignment_id
WHERE g.student_id = $1 AND a.lecture_id = $2`
	var total LectureTotal
	if err := r.db.GetContext(ctx, &total, query, studentID, lectureID, pq.Array(models.FinalExamNames())); err != nil {
		return nil, fmt.Errorf("sum lecture grades: %w", err)
	}
	return &total, nil
}

// FirstInLecture returns the earliest grade of the student in a lecture.
func (r *GradeRepository) FirstInLecture(ctx context.Context, studentID, lectureID string) (*models.Grade, error) {
	const query = `SELECT g.id, g.student_id, g.assignment_id, g.grade, g.created_by, g.created_at, g.updated_at
FROM grades g JOIN assignments a ON a.id = g.assignment_id
WHERE g.student_id = $1 AND a.lecture_id = $2
ORDER BY g.created_at ASC LIMIT 1`
	var grade models.Grade
	if err := r.db.GetContext(ctx, &grade, query, studentID, lectureID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find lecture grade: %w", err)
	}
	return &grade, nil
}

// ListByStudentLecture returns the student's grades in a lecture.
func (r *GradeRepository) ListByStudentLecture(ctx context.Context, studentID, lectureID string) ([]models.Grade, error) {
	const query = `SELECT g.id, g.student_id, g.assignment_id, g.grade, g.created_by, g.created_at, g.updated_at
FROM grades g JOIN assignments a ON a.id = g.assignment_id
WHERE g.student_id = $1 AND a.lecture_id = $2
ORDER BY a.due_date NULLS LAST, a.name`
	var grades []models.Grade
	if err := r.db.SelectContext(ctx, &grades, query, studentID, lectureID); err != nil {
		return nil, fmt.Errorf("list student lecture grades: %w", err)
	}
	return grades, nil
}
