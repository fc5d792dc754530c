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

type semesterRepository interface {
	ListContaining(ctx context.Context, day time.Time) ([]models.Semester, error)
	ListOverlapping(ctx context.Context, start, end time.Time) ([]models.Semester, error)
	List(ctx context.Context) ([]models.Semester, error)
	FindByID(ctx context.Context, id string) (*models.Semester, error)
	Create(ctx context.Context, semester *models.Semester) error
}

// SemesterService resolves and manages academic terms.
type SemesterService struct {
	repo      semesterRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSemesterService constructs the service.
func NewSemesterService(repo semesterRepository, validate *validator.Validate, logger *zap.Logger) *SemesterService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SemesterService{repo: repo, validator: validate, logger: logger}
}

// Current returns the single semester whose date range contains now.
func (s *SemesterService) Current(ctx context.Context, now time.Time) (*models.Semester, error) {
	semesters, err := s.repo.ListContaining(ctx, now)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to resolve semester")
	}
	switch len(semesters) {
	case 0:
		return nil, appErrors.ErrNoActiveSemester
	case 1:
		return &semesters[0], nil
	default:
		ids := make([]string, len(semesters))
		for i, sem := range semesters {
			ids[i] = sem.ID
		}
		s.logger.Error("overlapping semesters configured", zap.Time("date", models.DateOf(now)), zap.Strings("semester_ids", ids))
		return nil, appErrors.ErrSemesterOverlap
	}
}

// Get returns a semester by id.
func (s *SemesterService) Get(ctx context.Context, id string) (*models.Semester, error) {
	semester, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "semester not found")
		}
		return nil, appErrors.Internal(err, "failed to load semester")
	}
	return semester, nil
}

// List returns every semester.
func (s *SemesterService) List(ctx context.Context) ([]models.Semester, error) {
	semesters, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list semesters")
	}
	return semesters, nil
}

// Create opens a semester after checking date order and that no stored semester shares a day with it.
func (s *SemesterService) Create(ctx context.Context, req models.CreateSemesterRequest) (*models.Semester, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err, "invalid semester payload")
	}

	semester := models.Semester{
		Year:         req.Year,
		Ordinal:      req.Ordinal,
		StartDate:    models.DateOf(req.StartDate),
		EndDate:      models.DateOf(req.EndDate),
		MidtermStart: models.DateOf(req.MidtermStart),
		FinalStart:   models.DateOf(req.FinalStart),
	}
	if !semester.StartDate.Before(semester.MidtermStart) ||
		!semester.MidtermStart.Before(semester.FinalStart) ||
		semester.FinalStart.After(semester.EndDate) {
		return nil, appErrors.ErrInvalidSemester
	}

	overlapping, err := s.repo.ListOverlapping(ctx, semester.StartDate, semester.EndDate)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to check semester overlap")
	}
	if len(overlapping) > 0 {
		return nil, appErrors.Clone(appErrors.ErrConflict, "semester overlaps "+overlapping[0].Year)
	}

	if err := s.repo.Create(ctx, &semester); err != nil {
		return nil, appErrors.Internal(err, "failed to create semester")
	}
	s.logger.Info("semester created", zap.String("semester_id", semester.ID), zap.String("year", semester.Year))
	return &semester, nil
}
