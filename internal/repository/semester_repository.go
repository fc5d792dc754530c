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

const semesterColumns = `id, year, ordinal, start_date, end_date, midterm_start, final_start, created_at`

// SemesterRepository persists academic terms.
type SemesterRepository struct {
	db *sqlx.DB
}

// NewSemesterRepository constructs the repository.
func NewSemesterRepository(db *sqlx.DB) *SemesterRepository {
	return &SemesterRepository{db: db}
}

// ListContaining returns every semester whose date range includes day.
func (r *SemesterRepository) ListContaining(ctx context.Context, day time.Time) ([]models.Semester, error) {
	query := `SELECT ` + semesterColumns + ` FROM semesters WHERE start_date <= $1 AND end_date >= $1 ORDER BY start_date`
	var semesters []models.Semester
	if err := r.db.SelectContext(ctx, &semesters, query, models.DateOf(day)); err != nil {
		return nil, fmt.Errorf("list semesters containing date: %w", err)
	}
	return semesters, nil
}

// ListOverlapping returns semesters sharing at least one day with [start, end].
func (r *SemesterRepository) ListOverlapping(ctx context.Context, start, end time.Time) ([]models.Semester, error) {
	query := `SELECT ` + semesterColumns + ` FROM semesters WHERE start_date <= $2 AND end_date >= $1 ORDER BY start_date`
	var semesters []models.Semester
	if err := r.db.SelectContext(ctx, &semesters, query, models.DateOf(start), models.DateOf(end)); err != nil {
		return nil, fmt.Errorf("list overlapping semesters: %w", err)
	}
	return semesters, nil
}

// List returns all semesters, newest first.
func (r *SemesterRepository) List(ctx context.Context) ([]models.Semester, error) {
	query := `SELECT ` + semesterColumns + ` FROM semesters ORDER BY start_date DESC`
	var semesters []models.Semester
	if err := r.db.SelectContext(ctx, &semesters, query); err != nil {
		return nil, fmt.Errorf("list semesters: %w", err)
	}
	return semesters, nil
}

// FindByID returns a semester by identifier.
func (r *SemesterRepository) FindByID(ctx context.Context, id string) (*models.Semester, error) {
	query := `SELECT ` + semesterColumns + ` FROM semesters WHERE id = $1`
	var semester models.Semester
	if err := r.db.GetContext(ctx, &semester, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find semester: %w", err)
	}
	return &semester, nil
}

// Create inserts a semester.
func (r *SemesterRepository) Create(ctx context.Context, semester *models.Semester) error {
	if semester.ID == "" {
		semester.ID = uuid.NewString()
	}
	semester.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO semesters (id, year, ordinal, start_date, end_date, midterm_start, final_start, created_at)
VALUES (:id, :year, :ordinal, :start_date, :end_date, :midterm_start, :final_start, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, semester); err != nil {
		return fmt.Errorf("insert semester: %w", err)
	}
	return nil
}
