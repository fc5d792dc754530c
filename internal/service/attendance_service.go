package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-api/internal/models"
	appErrors "github.com/noah-isme/uni-api/pkg/errors"
)

type attendanceRepository interface {
	Upsert(ctx context.Context, record *models.Attendance) (*models.Attendance, error)
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.Attendance, error)
}

// AttendanceService records lecture attendance.
type AttendanceService struct {
	repo      attendanceRepository
	lectures  enrollmentLectureReader
	validator *validator.Validate
	logger    *zap.Logger
	now       Clock
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(repo attendanceRepository, lectures enrollmentLectureReader, validate *validator.Validate, logger *zap.Logger, clock Clock) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{repo: repo, lectures: lectures, validator: validate, logger: logger, now: clockOrDefault(clock)}
}

// Mark stores the hour flags of a student for one lecture day. A second mark on the same day overwrites the first.
func (s *AttendanceService) Mark(ctx context.Context, actor *models.JWTClaims, req models.MarkAttendanceRequest) (*models.Attendance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err, "invalid attendance payload")
	}
	if actor == nil || !actor.Role.Can(models.CapAttendanceWrite) {
		return nil, appErrors.ErrForbidden
	}

	lecture, err := s.lectures.FindByID(ctx, req.LectureID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lecture not found")
		}
		return nil, appErrors.Internal(err, "failed to load lecture")
	}
	if actor.Role == models.RoleProfessor && !teachesLecture(actor, *lecture) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "this is not your lecture")
	}

	enrolled, err := s.lectures.IsEnrolled(ctx, lecture.ID, req.StudentID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to check enrollment")
	}
	if !enrolled {
		return nil, appErrors.ErrStudentNotEnrolled
	}

	date := req.Date
	if date.IsZero() {
		date = s.now()
	}
	record, err := s.repo.Upsert(ctx, &models.Attendance{
		StudentID:  req.StudentID,
		LectureID:  lecture.ID,
		Date:       models.DateOf(date),
		FirstHour:  req.FirstHour,
		SecondHour: req.SecondHour,
		ThirdHour:  req.ThirdHour,
	})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to store attendance")
	}
	return record, nil
}

// List returns attendance rows visible to the actor. Students only ever see their own rows and professors
// only the lectures they teach.
func (s *AttendanceService) List(ctx context.Context, actor *models.JWTClaims, filter models.AttendanceFilter) ([]models.Attendance, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	switch {
	case actor.Role.Can(models.CapGradesReadAll):
	case actor.Role == models.RoleProfessor:
		if filter.LectureID == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "lecture_id is required")
		}
		lecture, err := s.lectures.FindByID(ctx, filter.LectureID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "lecture not found")
			}
			return nil, appErrors.Internal(err, "failed to load lecture")
		}
		if !teachesLecture(actor, *lecture) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "this is not your lecture")
		}
	default:
		filter.StudentID = actor.UserID
	}

	records, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list attendance")
	}
	return records, nil
}
