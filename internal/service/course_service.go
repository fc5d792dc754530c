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

type catalogRepository interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	ListPrerequisites(ctx context.Context, courseID string) ([]models.Course, error)
	Create(ctx context.Context, course *models.Course, prerequisiteIDs []string) error
	ReplacePrerequisites(ctx context.Context, courseID string, prerequisiteIDs []string) error
	CountExisting(ctx context.Context, ids []string) (int, error)
}

// CourseService manages the course catalog.
type CourseService struct {
	courses   catalogRepository
	users     studentReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs the service.
func NewCourseService(courses catalogRepository, users studentReader, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{courses: courses, users: users, validator: validate, logger: logger}
}

// List returns the catalog visible to the actor. Professors see the courses they teach, admins see all and
// everyone else sees their department.
func (s *CourseService) List(ctx context.Context, actor *models.JWTClaims, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	filter.ProfessorID = ""
	filter.StudentID = ""
	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleProfessor:
		filter.ProfessorID = actor.UserID
		filter.DepartmentID = ""
	default:
		user, err := s.users.FindByID(ctx, actor.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil, appErrors.ErrUnauthorized
			}
			return nil, nil, appErrors.Internal(err, "failed to load user")
		}
		if user.DepartmentID == nil {
			return []models.Course{}, &models.Pagination{Page: pageOrDefault(filter.Page), PageSize: pageSizeOrDefault(filter.PageSize)}, nil
		}
		filter.DepartmentID = *user.DepartmentID
	}

	courses, total, err := s.courses.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list courses")
	}
	return courses, &models.Pagination{
		Page:       pageOrDefault(filter.Page),
		PageSize:   pageSizeOrDefault(filter.PageSize),
		TotalCount: total,
	}, nil
}

// Get returns a course with its prerequisites.
func (s *CourseService) Get(ctx context.Context, id string) (*models.CourseDetail, error) {
	course, err := s.courses.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Internal(err, "failed to load course")
	}
	prerequisites, err := s.courses.ListPrerequisites(ctx, course.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load prerequisites")
	}
	return &models.CourseDetail{Course: *course, Prerequisites: prerequisites}, nil
}

// Create adds a course and its prerequisite edges.
func (s *CourseService) Create(ctx context.Context, req models.CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err, "invalid course payload")
	}
	prerequisiteIDs := uniqueIDs(req.PrerequisiteIDs)
	if err := s.checkPrerequisitesExist(ctx, prerequisiteIDs); err != nil {
		return nil, err
	}

	course := &models.Course{
		Code:         req.Code,
		Name:         req.Name,
		Credits:      req.Credits,
		DepartmentID: req.DepartmentID,
	}
	if err := s.courses.Create(ctx, course, prerequisiteIDs); err != nil {
		return nil, appErrors.Internal(err, "failed to create course")
	}
	s.logger.Info("course created", zap.String("course_id", course.ID), zap.Int("prerequisites", len(prerequisiteIDs)))
	return course, nil
}

// SetPrerequisites replaces the prerequisites of a course. A course may not require itself.
func (s *CourseService) SetPrerequisites(ctx context.Context, courseID string, req models.SetPrerequisitesRequest) (*models.CourseDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err, "invalid prerequisites payload")
	}
	if _, err := s.courses.FindByID(ctx, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Internal(err, "failed to load course")
	}

	prerequisiteIDs := uniqueIDs(req.PrerequisiteIDs)
	for _, id := range prerequisiteIDs {
		if id == courseID {
			return nil, appErrors.ErrSelfPrerequisite
		}
	}
	if err := s.checkPrerequisitesExist(ctx, prerequisiteIDs); err != nil {
		return nil, err
	}
	if err := s.courses.ReplacePrerequisites(ctx, courseID, prerequisiteIDs); err != nil {
		return nil, appErrors.Internal(err, "failed to store prerequisites")
	}
	return s.Get(ctx, courseID)
}

func (s *CourseService) checkPrerequisitesExist(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	count, err := s.courses.CountExisting(ctx, ids)
	if err != nil {
		return appErrors.Internal(err, "failed to check prerequisites")
	}
	if count != len(ids) {
		return appErrors.Clone(appErrors.ErrValidation, "one or more prerequisites do not exist")
	}
	return nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func pageOrDefault(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

func pageSizeOrDefault(size int) int {
	if size <= 0 || size > 100 {
		return 20
	}
	return size
}
