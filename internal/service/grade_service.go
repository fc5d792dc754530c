package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-api/internal/models"
	"github.com/noah-isme/uni-api/pkg/jobs"
	appErrors "github.com/noah-isme/uni-api/pkg/errors"
)

// JobTypeGradeRecord names grade record settlement jobs.
const JobTypeGradeRecord = "grade_record"

type gradeRepository interface {
	Upsert(ctx context.Context, grade *models.Grade) (*models.Grade, error)
	ListByStudentLecture(ctx context.Context, studentID, lectureID string) ([]models.Grade, error)
}

type assignmentFinder interface {
	FindByID(ctx context.Context, id string) (*models.Assignment, error)
}

type enrollmentLectureReader interface {
	FindByID(ctx context.Context, id string) (*models.Lecture, error)
	IsEnrolled(ctx context.Context, lectureID, studentID string) (bool, error)
}

type gradeAggregator interface {
	FinalGrade(ctx context.Context, studentID string, lecture models.Lecture) (*models.FinalGrade, error)
	GPA(ctx context.Context, studentID string) (float64, error)
	Invalidate(ctx context.Context, studentID string)
}

type gradeRecordReader interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.GradeRecordDetail, error)
}

// GradeService records assignment grades and exposes the aggregates built from them.
type GradeService struct {
	grades      gradeRepository
	assignments assignmentFinder
	lectures    enrollmentLectureReader
	users       studentReader
	records     gradeRecordReader
	calculator  gradeAggregator
	queue       jobs.Enqueuer
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewGradeService constructs the service. queue may be nil, in which case no grade records are produced.
func NewGradeService(
	grades gradeRepository,
	assignments assignmentFinder,
	lectures enrollmentLectureReader,
	users studentReader,
	records gradeRecordReader,
	calculator gradeAggregator,
	queue jobs.Enqueuer,
	validate *validator.Validate,
	logger *zap.Logger,
) *GradeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeService{
		grades:      grades,
		assignments: assignments,
		lectures:    lectures,
		users:       users,
		records:     records,
		calculator:  calculator,
		queue:       queue,
		validator:   validate,
		logger:      logger,
	}
}

// Upsert stores a student's grade on an assignment. Grading a terminal assignment schedules a grade record.
func (s *GradeService) Upsert(ctx context.Context, actor *models.JWTClaims, req models.UpsertGradeRequest) (*models.Grade, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err, "invalid grade payload")
	}

	assignment, err := s.assignments.FindByID(ctx, req.AssignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Internal(err, "failed to load assignment")
	}
	lecture, err := s.lectures.FindByID(ctx, assignment.LectureID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load lecture")
	}
	if !canManageLecture(actor, *lecture) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "this is not your lecture")
	}

	student, err := s.users.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Internal(err, "failed to load student")
	}
	if !student.Role.Can(models.CapRegisterSelf) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "this user is not a student")
	}
	enrolled, err := s.lectures.IsEnrolled(ctx, lecture.ID, student.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to check enrollment")
	}
	if !enrolled {
		return nil, appErrors.ErrStudentNotEnrolled
	}
	if req.Grade > assignment.MaxPoints {
		return nil, appErrors.ErrGradeExceedsMax
	}

	createdBy := actor.UserID
	stored, err := s.grades.Upsert(ctx, &models.Grade{
		StudentID:    student.ID,
		AssignmentID: assignment.ID,
		Grade:        req.Grade,
		CreatedBy:    &createdBy,
	})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to store grade")
	}
	s.calculator.Invalidate(ctx, student.ID)

	if assignment.Terminal(*lecture) {
		s.enqueueRecord(student.ID, lecture.ID)
	}
	return stored, nil
}

func (s *GradeService) enqueueRecord(studentID, lectureID string) {
	if s.queue == nil {
		return
	}
	job := jobs.Job{
		Type:     JobTypeGradeRecord,
		Payload:  models.GradeRecordJob{StudentID: studentID, LectureID: lectureID},
		Enqueued: time.Now().UTC(),
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("failed to enqueue grade record",
			zap.String("student_id", studentID),
			zap.String("lecture_id", lectureID),
			zap.Error(err),
		)
	}
}

// LectureGrades lists a student's grades in a lecture.
func (s *GradeService) LectureGrades(ctx context.Context, actor *models.JWTClaims, studentID, lectureID string) ([]models.Grade, error) {
	if _, err := s.viewLecture(ctx, actor, studentID, lectureID); err != nil {
		return nil, err
	}
	grades, err := s.grades.ListByStudentLecture(ctx, studentID, lectureID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list grades")
	}
	return grades, nil
}

// FinalGrade returns the aggregate of a student in a lecture.
func (s *GradeService) FinalGrade(ctx context.Context, actor *models.JWTClaims, studentID, lectureID string) (*models.FinalGrade, error) {
	lecture, err := s.viewLecture(ctx, actor, studentID, lectureID)
	if err != nil {
		return nil, err
	}
	return s.calculator.FinalGrade(ctx, studentID, *lecture)
}

// GPA returns the cumulative GPA of a student.
func (s *GradeService) GPA(ctx context.Context, actor *models.JWTClaims, studentID string) (*models.GPAResponse, error) {
	if !canViewStudent(actor, studentID) {
		return nil, appErrors.ErrForbidden
	}
	gpa, err := s.calculator.GPA(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return &models.GPAResponse{StudentID: studentID, GPA: gpa}, nil
}

// Records lists a student's grade records, newest first.
func (s *GradeService) Records(ctx context.Context, actor *models.JWTClaims, studentID string) ([]models.GradeRecordDetail, error) {
	if !canViewStudent(actor, studentID) {
		return nil, appErrors.ErrForbidden
	}
	records, err := s.records.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list grade records")
	}
	return records, nil
}

func (s *GradeService) viewLecture(ctx context.Context, actor *models.JWTClaims, studentID, lectureID string) (*models.Lecture, error) {
	lecture, err := s.lectures.FindByID(ctx, lectureID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lecture not found")
		}
		return nil, appErrors.Internal(err, "failed to load lecture")
	}
	if !canViewStudent(actor, studentID) && !canManageLecture(actor, *lecture) {
		return nil, appErrors.ErrForbidden
	}
	return lecture, nil
}
