package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/uni-api/internal/models"
)

const assignmentColumns = `id, lecture_id, name, description, due_date, max_points, created_at, updated_at`

// AssignmentRepository persists lecture assignments.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// FindByID returns an assignment by identifier.
func (r *AssignmentRepository) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments WHERE id = $1`
	var assignment models.Assignment
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find assignment: %w", err)
	}
	return &assignment, nil
}

// ListByLecture returns a lecture's assignments ordered by due date.
func (r *AssignmentRepository) ListByLecture(ctx context.Context, lectureID string) ([]models.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments WHERE lecture_id = $1 ORDER BY due_date NULLS LAST, name`
	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, query, lectureID); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return assignments, nil
}

// SumMaxPoints totals max_points of a lecture, skipping excludeID when it is not empty.
func (r *AssignmentRepository) SumMaxPoints(ctx context.Context, lectureID, excludeID string) (float64, error) {
	const query = `SELECT COALESCE(SUM(max_points), 0) FROM assignments WHERE lecture_id = $1 AND id <> $2`
	var total float64
	if err := r.db.GetContext(ctx, &total, query, lectureID, excludeID); err != nil {
		return 0, fmt.Errorf("sum max points: %w", err)
	}
	return total, nil
}

// Create inserts an assignment.
func (r *AssignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	assignment.CreatedAt = now
	assignment.UpdatedAt = now
	const query = `INSERT INTO assignments (id, lecture_id, name, description, due_date, max_points, created_at, updated_at)
VALUES (:id, :lecture_id, :name, :description, :due_date, :max_points, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("insert assignment: %w", err)
	}
	return nil
}

// Update stores editable assignment fields.
func (r *AssignmentRepository) Update(ctx context.Context, assignment *models.Assignment) error {
	assignment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE assignments SET name = :name, description = :description, due_date = :due_date,
max_points = :max_points, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, assignment)
	if err != nil {
		return fmt.Errorf("update assignment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update assignment rows: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
