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

const lectureColumns = `l.id, l.course_id, l.semester_id, l.professor_id, l.auditorium_id, l.name, l.day,
l.start_time, l.end_time, l.uni_year, l.capacity, l.start_day, l.start_day_second, l.created_at, l.updated_at`

const lectureDetailColumns = lectureColumns + `, c.name AS course_name, c.code AS course_code, c.credits,
a.name AS auditorium_name, NULLIF(TRIM(COALESCE(p.first_name, '') || ' ' || COALESCE(p.last_name, '')), '') AS professor_name`

const lectureDetailJoins = ` FROM lectures l
JOIN courses c ON c.id = l.course_id
LEFT JOIN auditoriums a ON a.id = l.auditorium_id
LEFT JOIN users p ON p.id = l.professor_id`

// LectureRepository persists scheduled lectures and auditoriums.
type LectureRepository struct {
	db *sqlx.DB
}

// NewLectureRepository constructs the repository.
func NewLectureRepository(db *sqlx.DB) *LectureRepository {
	return &LectureRepository{db: db}
}

// FindByID returns a lecture by identifier.
func (r *LectureRepository) FindByID(ctx context.Context, id string) (*models.Lecture, error) {
	query := `SELECT ` + lectureColumns + ` FROM lectures l WHERE l.id = $1`
	var lecture models.Lecture
	if err := r.db.GetContext(ctx, &lecture, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find lecture: %w", err)
	}
	return &lecture, nil
}

// FindDetailByID returns a lecture with course, room and professor names.
func (r *LectureRepository) FindDetailByID(ctx context.Context, id string) (*models.LectureDetail, error) {
	query := `SELECT ` + lectureDetailColumns + lectureDetailJoins + ` WHERE l.id = $1`
	var detail models.LectureDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find lecture detail: %w", err)
	}
	return &detail, nil
}

// ListByStudentInSemester returns the lectures a student is enrolled in for the semester.
func (r *LectureRepository) ListByStudentInSemester(ctx context.Context, studentID, semesterID string) ([]models.LectureDetail, error) {
	query := `SELECT ` + lectureDetailColumns + lectureDetailJoins + `
JOIN lecture_students ls ON ls.lecture_id = l.id
WHERE ls.student_id = $1 AND l.semester_id = $2
ORDER BY l.day, l.start_time`
	var lectures []models.LectureDetail
	if err := r.db.SelectContext(ctx, &lectures, query, studentID, semesterID); err != nil {
		return nil, fmt.Errorf("list student lectures: %w", err)
	}
	return lectures, nil
}

// ListByProfessorInSemester returns the lectures a professor teaches in the semester.
func (r *LectureRepository) ListByProfessorInSemester(ctx context.Context, professorID, semesterID string) ([]models.LectureDetail, error) {
	query := `SELECT ` + lectureDetailColumns + lectureDetailJoins + `
WHERE l.professor_id = $1 AND l.semester_id = $2
ORDER BY l.day, l.start_time`
	var lectures []models.LectureDetail
	if err := r.db.SelectContext(ctx, &lectures, query, professorID, semesterID); err != nil {
		return nil, fmt.Errorf("list professor lectures: %w", err)
	}
	return lectures, nil
}

// ListByCourse returns every lecture of a course.
func (r *LectureRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Lecture, error) {
	query := `SELECT ` + lectureColumns + ` FROM lectures l WHERE l.course_id = $1 ORDER BY l.created_at DESC`
	var lectures []models.Lecture
	if err := r.db.SelectContext(ctx, &lectures, query, courseID); err != nil {
		return nil, fmt.Errorf("list course lectures: %w", err)
	}
	return lectures, nil
}

// ListSameDay returns lectures in the semester held on day, either in the auditorium or by the professor.
// Empty auditoriumID or professorID disables that half of the match.
func (r *LectureRepository) ListSameDay(ctx context.Context, semesterID string, day time.Weekday, auditoriumID, professorID string) ([]models.Lecture, error) {
	query := `SELECT ` + lectureColumns + ` FROM lectures l
WHERE l.semester_id = $1 AND l.day = $2
AND ((l.auditorium_id = $3 AND $3 <> '') OR (l.professor_id = $4 AND $4 <> ''))`
	var lectures []models.Lecture
	if err := r.db.SelectContext(ctx, &lectures, query, semesterID, day, auditoriumID, professorID); err != nil {
		return nil, fmt.Errorf("list same day lectures: %w", err)
	}
	return lectures, nil
}

// IsEnrolled reports whether the student is in the lecture's student set.
func (r *LectureRepository) IsEnrolled(ctx context.Context, lectureID, studentID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM lecture_students WHERE lecture_id = $1 AND student_id = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, lectureID, studentID); err != nil {
		return false, fmt.Errorf("check lecture membership: %w", err)
	}
	return exists, nil
}

// Create inserts a lecture.
func (r *LectureRepository) Create(ctx context.Context, lecture *models.Lecture) error {
	if lecture.ID == "" {
		lecture.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	lecture.CreatedAt = now
	lecture.UpdatedAt = now
	const query = `INSERT INTO lectures (id, course_id, semester_id, professor_id, auditorium_id, name, day, start_time, end_time,
uni_year, capacity, start_day, start_day_second, created_at, updated_at)
VALUES (:id, :course_id, :semester_id, :professor_id, :auditorium_id, :name, :day, :start_time, :end_time,
:uni_year, :capacity, :start_day, :start_day_second, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, lecture); err != nil {
		return fmt.Errorf("insert lecture: %w", err)
	}
	return nil
}

// FindAuditorium returns an auditorium by identifier.
func (r *LectureRepository) FindAuditorium(ctx context.Context, id string) (*models.Auditorium, error) {
	const query = `SELECT id, name, capacity, has_computers FROM auditoriums WHERE id = $1`
	var auditorium models.Auditorium
	if err := r.db.GetContext(ctx, &auditorium, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find auditorium: %w", err)
	}
	return &auditorium, nil
}
