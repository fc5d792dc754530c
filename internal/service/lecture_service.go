package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-api/internal/models"
	appErrors "github.com/noah-isme/uni-api/pkg/errors"
)

type lectureStore interface {
	FindByID(ctx context.Context, id string) (*models.Lecture, error)
	FindDetailByID(ctx context.Context, id string) (*models.LectureDetail, error)
	ListByStudentInSemester(ctx context.Context, studentID, semesterID string) ([]models.LectureDetail, error)
	ListByProfessorInSemester(ctx context.Context, professorID, semesterID string) ([]models.LectureDetail, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.Lecture, error)
	ListSameDay(ctx context.Context, semesterID string, day time.Weekday, auditoriumID, professorID string) ([]models.Lecture, error)
	Create(ctx context.Context, lecture *models.Lecture) error
	FindAuditorium(ctx context.Context, id string) (*models.Auditorium, error)
}

type courseFinder interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type semesterFinder interface {
	FindByID(ctx context.Context, id string) (*models.Semester, error)
}

// LectureService schedules lectures and lists them for the current semester.
type LectureService struct {
	lectures  lectureStore
	courses   courseFinder
	semesters semesterFinder
	current   currentSemesterResolver
	users     studentReader
	validator *validator.Validate
	logger    *zap.Logger
	now       Clock
}

// NewLectureService constructs the service.
func NewLectureService(
	lectures lectureStore,
	courses courseFinder,
	semesters semesterFinder,
	current currentSemesterResolver,
	users studentReader,
	validate *validator.Validate,
	logger *zap.Logger,
	clock Clock,
) *LectureService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LectureService{
		lectures:  lectures,
		courses:   courses,
		semesters: semesters,
		current:   current,
		users:     users,
		validator: validate,
		logger:    logger,
		now:       clockOrDefault(clock),
	}
}

// Get returns a lecture with display data.
func (s *LectureService) Get(ctx context.Context, id string) (*models.LectureDetail, error) {
	lecture, err := s.lectures.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lecture not found")
		}
		return nil, appErrors.Internal(err, "failed to load lecture")
	}
	return lecture, nil
}

// ListByCourse returns the lectures of a course across semesters.
func (s *LectureService) ListByCourse(ctx context.Context, courseID string) ([]models.Lecture, error) {
	lectures, err := s.lectures.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list lectures")
	}
	return lectures, nil
}

// Mine lists the actor's lectures in the current semester: enrolled ones for students, taught ones for professors.
func (s *LectureService) Mine(ctx context.Context, actor *models.JWTClaims) ([]models.LectureDetail, error) {
	semester, err := s.current.Current(ctx, s.now())
	if err != nil {
		return nil, err
	}
	return s.InSemester(ctx, actor, semester)
}

// InSemester lists the actor's lectures in the given semester.
func (s *LectureService) InSemester(ctx context.Context, actor *models.JWTClaims, semester *models.Semester) ([]models.LectureDetail, error) {
	var (
		lectures []models.LectureDetail
		err      error
	)
	switch actor.Role {
	case models.RoleProfessor:
		lectures, err = s.lectures.ListByProfessorInSemester(ctx, actor.UserID, semester.ID)
	case models.RoleStudent:
		lectures, err = s.lectures.ListByStudentInSemester(ctx, actor.UserID, semester.ID)
	default:
		return []models.LectureDetail{}, nil
	}
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list lectures")
	}
	return lectures, nil
}

// Create schedules a lecture after checking times, the auditorium and the professor.
func (s *LectureService) Create(ctx context.Context, req models.CreateLectureRequest) (*models.Lecture, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err, "invalid lecture payload")
	}
	if req.StartTime >= req.EndTime {
		return nil, appErrors.ErrInvalidTimeRange
	}

	if _, err := s.courses.FindByID(ctx, req.CourseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Internal(err, "failed to load course")
	}
	if _, err := s.semesters.FindByID(ctx, req.SemesterID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "semester not found")
		}
		return nil, appErrors.Internal(err, "failed to load semester")
	}

	professor, err := s.users.FindByID(ctx, req.ProfessorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "professor not found")
		}
		return nil, appErrors.Internal(err, "failed to load professor")
	}
	if professor.Role != models.RoleProfessor {
		return nil, appErrors.ErrNotProfessor
	}

	lecture := &models.Lecture{
		CourseID:       req.CourseID,
		SemesterID:     req.SemesterID,
		ProfessorID:    &professor.ID,
		AuditoriumID:   req.AuditoriumID,
		Name:           req.Name,
		Day:            req.Day,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		UniYear:        req.UniYear,
		Capacity:       req.Capacity,
		StartDay:       req.StartDay,
		StartDaySecond: req.StartDaySecond,
	}

	auditoriumID := ""
	if req.AuditoriumID != nil && *req.AuditoriumID != "" {
		auditoriumID = *req.AuditoriumID
		auditorium, err := s.lectures.FindAuditorium(ctx, auditoriumID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "auditorium not found")
			}
			return nil, appErrors.Internal(err, "failed to load auditorium")
		}
		if auditorium.Capacity < req.Capacity {
			return nil, appErrors.ErrAuditoriumTooSmall
		}
	}

	sameDay, err := s.lectures.ListSameDay(ctx, req.SemesterID, req.Day, auditoriumID, professor.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to check schedule")
	}
	for _, existing := range sameDay {
		if !existing.Overlaps(*lecture) {
			continue
		}
		if auditoriumID != "" && existing.AuditoriumID != nil && *existing.AuditoriumID == auditoriumID {
			return nil, appErrors.ErrAuditoriumBooked
		}
		if existing.ProfessorID != nil && *existing.ProfessorID == professor.ID {
			return nil, appErrors.ErrProfessorBusy
		}
	}

	if err := s.lectures.Create(ctx, lecture); err != nil {
		return nil, appErrors.Internal(err, "failed to create lecture")
	}
	s.logger.Info("lecture created",
		zap.String("lecture_id", lecture.ID),
		zap.String("course_id", lecture.CourseID),
		zap.String("semester_id", lecture.SemesterID),
	)
	return lecture, nil
}
