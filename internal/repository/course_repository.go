package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/uni-api/internal/models"
)

const courseColumns = `c.id, c.code, c.name, c.credits, c.department_id, c.created_at, c.updated_at`

// CourseRepository handles the course catalog and the student course set.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// FindByID returns a course by identifier.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses c WHERE c.id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find course: %w", err)
	}
	return &course, nil
}

// List returns courses narrowed by department, taught-by professor or registered student.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	var conditions []string
	var args []interface{}

	if filter.DepartmentID != "" {
		args = append(args, filter.DepartmentID)
		conditions = append(conditions, fmt.Sprintf("c.department_id = $%d", len(args)))
	}
	if filter.ProfessorID != "" {
		args = append(args, filter.ProfessorID)
		conditions = append(conditions, fmt.Sprintf("EXISTS (SELECT 1 FROM lectures l WHERE l.course_id = c.id AND l.professor_id = $%d)", len(args)))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("EXISTS (SELECT 1 FROM course_students cs WHERE cs.course_id = c.id AND cs.student_id = $%d)", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(c.name) LIKE $%d OR LOWER(c.code) LIKE $%d)", len(args), len(args)))
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM courses c%s ORDER BY c.code ASC LIMIT %d OFFSET %d`, courseColumns, clause, size, offset)
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM courses c"+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// ListPrerequisites returns the courses required by courseID.
func (r *CourseRepository) ListPrerequisites(ctx context.Context, courseID string) ([]models.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses c
JOIN course_prerequisites cp ON cp.prerequisite_id = c.id
WHERE cp.course_id = $1 ORDER BY c.code`
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, courseID); err != nil {
		return nil, fmt.Errorf("list prerequisites: %w", err)
	}
	return courses, nil
}

// MissingPrerequisites returns prerequisites of courseID the student has no course membership in.
func (r *CourseRepository) MissingPrerequisites(ctx context.Context, courseID, studentID string) ([]models.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses c
JOIN course_prerequisites cp ON cp.prerequisite_id = c.id
WHERE cp.course_id = $1
AND NOT EXISTS (SELECT 1 FROM course_students cs WHERE cs.course_id = c.id AND cs.student_id = $2)
ORDER BY c.code`
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, courseID, studentID); err != nil {
		return nil, fmt.Errorf("list missing prerequisites: %w", err)
	}
	return courses, nil
}

// PrerequisiteGradeTotals sums the student's grades per prerequisite course of courseID.
// Courses without a single grade are omitted.
func (r *CourseRepository) PrerequisiteGradeTotals(ctx context.Context, courseID, studentID string) ([]models.CourseGradeTotal, error) {
	const query = `SELECT c.id AS course_id, c.name AS course_name, c.credits,
COALESCE(SUM(g.grade), 0) AS total,
MAX(CASE WHEN a.name = ANY($3) THEN g.grade END) AS final_exam,
COUNT(g.id) AS graded
FROM course_prerequisites cp
JOIN courses c ON c.id = cp.prerequisite_id
JOIN lectures l ON l.course_id = c.id
JOIN assignments a ON a.lecture_id = l.id
JOIN grades g ON g.assignment_id = a.id AND g.student_id = $2
WHERE cp.course_id = $1
GROUP BY c.id, c.name, c.credits
ORDER BY c.name`
	var totals []models.CourseGradeTotal
	if err := r.db.SelectContext(ctx, &totals, query, courseID, studentID, pq.Array(models.FinalExamNames())); err != nil {
		return nil, fmt.Errorf("sum prerequisite grades: %w", err)
	}
	return totals, nil
}

// RegisteredCourseTotals sums the student's grades per registered course that has at least one grade.
func (r *CourseRepository) RegisteredCourseTotals(ctx context.Context, studentID string) ([]models.CourseGradeTotal, error) {
	const query = `SELECT c.id AS course_id, c.name AS course_name, c.credits,
SUM(g.grade) AS total, NULL::numeric AS final_exam, COUNT(g.id) AS graded
FROM course_students cs
JOIN courses c ON c.id = cs.course_id
JOIN lectures l ON l.course_id = c.id
JOIN assignments a ON a.lecture_id = l.id
JOIN grades g ON g.assignment_id = a.id AND g.student_id = cs.student_id
WHERE cs.student_id = $1
GROUP BY c.id, c.name, c.credits
ORDER BY c.name`
	var totals []models.CourseGradeTotal
	if err := r.db.SelectContext(ctx, &totals, query, studentID); err != nil {
		return nil, fmt.Errorf("sum registered course grades: %w", err)
	}
	return totals, nil
}

// RegisteredInSemester returns distinct registered courses that have a lecture in semesterID.
func (r *CourseRepository) RegisteredInSemester(ctx context.Context, studentID, semesterID string) ([]models.FeeCourse, error) {
	const query = `SELECT c.id, c.name, c.credits FROM courses c
JOIN course_students cs ON cs.course_id = c.id AND cs.student_id = $1
WHERE EXISTS (SELECT 1 FROM lectures l WHERE l.course_id = c.id AND l.semester_id = $2)
ORDER BY c.name`
	var courses []models.FeeCourse
	if err := r.db.SelectContext(ctx, &courses, query, studentID, semesterID); err != nil {
		return nil, fmt.Errorf("list semester courses: %w", err)
	}
	return courses, nil
}

// IsStudentRegistered reports whether the student holds course membership.
func (r *CourseRepository) IsStudentRegistered(ctx context.Context, courseID, studentID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM course_students WHERE course_id = $1 AND student_id = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, courseID, studentID); err != nil {
		return false, fmt.Errorf("check course membership: %w", err)
	}
	return exists, nil
}

// AddStudent inserts course membership. Adding twice is a no-op.
func (r *CourseRepository) AddStudent(ctx context.Context, courseID, studentID string) error {
	const query = `INSERT INTO course_students (course_id, student_id, created_at) VALUES ($1, $2, $3)
ON CONFLICT (course_id, student_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, courseID, studentID, time.Now().UTC()); err != nil {
		return fmt.Errorf("add course student: %w", err)
	}
	return nil
}

// RemoveStudent deletes course membership.
func (r *CourseRepository) RemoveStudent(ctx context.Context, courseID, studentID string) error {
	const query = `DELETE FROM course_students WHERE course_id = $1 AND student_id = $2`
	if _, err := r.db.ExecContext(ctx, query, courseID, studentID); err != nil {
		return fmt.Errorf("remove course student: %w", err)
	}
	return nil
}

// Create inserts a course together with its prerequisite edges.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course, prerequisiteIDs []string) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	course.CreatedAt = now
	course.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create course: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insertCourse = `INSERT INTO courses (id, code, name, credits, department_id, created_at, updated_at)
VALUES (:id, :code, :name, :credits, :department_id, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertCourse, course); err != nil {
		return fmt.Errorf("insert course: %w", err)
	}

	const insertPrerequisite = `INSERT INTO course_prerequisites (course_id, prerequisite_id) VALUES ($1, $2)
ON CONFLICT DO NOTHING`
	for _, prerequisiteID := range prerequisiteIDs {
		if _, err := tx.ExecContext(ctx, insertPrerequisite, course.ID, prerequisiteID); err != nil {
			return fmt.Errorf("insert course prerequisite: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create course: %w", err)
	}
	return nil
}

// CountExisting returns how many of ids are present in the catalog.
func (r *CourseRepository) CountExisting(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM courses WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return 0, fmt.Errorf("count courses: %w", err)
	}
	return count, nil
}

// ReplacePrerequisites swaps the prerequisite edges of courseID for prerequisiteIDs.
func (r *CourseRepository) ReplacePrerequisites(ctx context.Context, courseID string, prerequisiteIDs []string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace prerequisites: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM course_prerequisites WHERE course_id = $1`, courseID); err != nil {
		return fmt.Errorf("clear course prerequisites: %w", err)
	}
	const insertPrerequisite = `INSERT INTO course_prerequisites (course_id, prerequisite_id) VALUES ($1, $2)
ON CONFLICT DO NOTHING`
	for _, prerequisiteID := range prerequisiteIDs {
		if _, err := tx.ExecContext(ctx, insertPrerequisite, courseID, prerequisiteID); err != nil {
			return fmt.Errorf("insert course prerequisite: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace prerequisites: %w", err)
	}
	return nil
}
