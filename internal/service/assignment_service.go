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

type assignmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Assignment, error)
	ListByLecture(ctx context.Context, lectureID string) ([]models.Assignment, error)
	SumMaxPoints(ctx context.Context, lectureID, excludeID string) (float64, error)
	Create(ctx context.Context, assignment *models.Assignment) error
	Update(ctx context.Context, assignment *models.Assignment) error
}

type lectureFinder interface {
	FindByID(ctx context.Context, id string) (*models.Lecture, error)
}

// AssignmentService manages graded components of lectures.
type AssignmentService struct {
	repo      assignmentRepository
	lectures  lectureFinder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAssignmentService constructs the service.
func NewAssignmentService(repo assignmentRepository, lectures lectureFinder, validate *validator.Validate, logger *zap.Logger) *AssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{repo: repo, lectures: lectures, validator: validate, logger: logger}
}

// List returns the assignments of a lecture.
func (s *AssignmentService) List(ctx context.Context, lectureID string) ([]models.Assignment, error) {
	assignments, err := s.repo.ListByLecture(ctx, lectureID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list assignments")
	}
	return assignments, nil
}

// Create adds an assignment to a lecture the actor manages.
func (s *AssignmentService) Create(ctx context.Context, actor *models.JWTClaims, req models.UpsertAssignmentRequest) (*models.Assignment, error) {
	if err := s.check(ctx, actor, req, ""); err != nil {
		return nil, err
	}
	assignment := &models.Assignment{
		LectureID:   req.LectureID,
		Name:        req.Name,
		Description: req.Description,
		DueDate:     req.DueDate,
		MaxPoints:   req.MaxPoints,
	}
	if err := s.repo.Create(ctx, assignment); err != nil {
		return nil, appErrors.Internal(err, "failed to create assignment")
	}
	s.logger.Info("assignment created", zap.String("assignment_id", assignment.ID), zap.String("lecture_id", assignment.LectureID))
	return assignment, nil
}

// Update edits an assignment. Its previous max points do not count against the lecture total.
func (s *AssignmentService) Update(ctx context.Context, actor *models.JWTClaims, id string, req models.UpsertAssignmentRequest) (*models.Assignment, error) {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Internal(err, "failed to load assignment")
	}
	if err := s.check(ctx, actor, req, existing.ID); err != nil {
		return nil, err
	}
	existing.LectureID = req.LectureID
	existing.Name = req.Name
	existing.Description = req.Description
	existing.DueDate = req.DueDate
	existing.MaxPoints = req.MaxPoints
	if err := s.repo.Update(ctx, existing); err != nil {
		return nil, appErrors.Internal(err, "failed to update assignment")
	}
	return existing, nil
}

func (s *AssignmentService) check(ctx context.Context, actor *models.JWTClaims, req models.UpsertAssignmentRequest, excludeID string) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Invalid(err, "invalid assignment payload")
	}
	lecture, err := s.lectures.FindByID(ctx, req.LectureID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "lecture not found")
		}
		return appErrors.Internal(err, "failed to load lecture")
	}
	if !canManageLecture(actor, *lecture) {
		return appErrors.Clone(appErrors.ErrForbidden, "this is not your lecture")
	}
	sum, err := s.repo.SumMaxPoints(ctx, lecture.ID, excludeID)
	if err != nil {
		return appErrors.Internal(err, "failed to sum max points")
	}
	if sum+req.MaxPoints > models.MaxLecturePoints {
		return appErrors.ErrMaxPointsExceeded
	}
	return nil
}
