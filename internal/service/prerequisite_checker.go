package service

import (
	"context"

	"github.com/noah-isme/uni-api/internal/models"
	appErrors "github.com/noah-isme/uni-api/pkg/errors"
)

type prerequisiteRepository interface {
	ListPrerequisites(ctx context.Context, courseID string) ([]models.Course, error)
	MissingPrerequisites(ctx context.Context, courseID, studentID string) ([]models.Course, error)
	PrerequisiteGradeTotals(ctx context.Context, courseID, studentID string) ([]models.CourseGradeTotal, error)
}

// PrerequisiteChecker decides whether a student has completed and passed a course's prerequisites.
type PrerequisiteChecker struct {
	repo prerequisiteRepository
}

// NewPrerequisiteChecker constructs the checker.
func NewPrerequisiteChecker(repo prerequisiteRepository) *PrerequisiteChecker {
	return &PrerequisiteChecker{repo: repo}
}

// Missing returns the prerequisites of course the student never joined. ok is false when the course
// has no prerequisites at all.
func (c *PrerequisiteChecker) Missing(ctx context.Context, course models.Course, studentID string) ([]models.Course, bool, error) {
	prerequisites, err := c.repo.ListPrerequisites(ctx, course.ID)
	if err != nil {
		return nil, false, appErrors.Internal(err, "failed to load prerequisites")
	}
	if len(prerequisites) == 0 {
		return nil, false, nil
	}
	missing, err := c.repo.MissingPrerequisites(ctx, course.ID, studentID)
	if err != nil {
		return nil, false, appErrors.Internal(err, "failed to find missing prerequisites")
	}
	return missing, true, nil
}

// Failed returns the prerequisites the student did not pass, judged on summed grades of each prerequisite course.
func (c *PrerequisiteChecker) Failed(ctx context.Context, course models.Course, studentID string) (models.FailedPrerequisites, error) {
	prerequisites, err := c.repo.ListPrerequisites(ctx, course.ID)
	if err != nil {
		return models.FailedPrerequisites{}, appErrors.Internal(err, "failed to load prerequisites")
	}
	if len(prerequisites) == 0 {
		return models.FailedPrerequisites{}, nil
	}

	totals, err := c.repo.PrerequisiteGradeTotals(ctx, course.ID, studentID)
	if err != nil {
		return models.FailedPrerequisites{}, appErrors.Internal(err, "failed to sum prerequisite grades")
	}
	result := models.FailedPrerequisites{Applicable: true}
	if len(totals) == 0 {
		result.Ungraded = true
		return result, nil
	}

	byID := make(map[string]models.Course, len(prerequisites))
	for _, p := range prerequisites {
		byID[p.ID] = p
	}
	for _, total := range totals {
		if !failedPrerequisite(total) {
			continue
		}
		course, ok := byID[total.CourseID]
		if !ok {
			course = models.Course{ID: total.CourseID, Name: total.CourseName, Credits: total.Credits}
		}
		result.Courses = append(result.Courses, course)
	}
	return result, nil
}

func failedPrerequisite(total models.CourseGradeTotal) bool {
	if total.FinalExam == nil || *total.FinalExam < models.FinalExamPassMark {
		return true
	}
	return total.Total < models.PrerequisitePassMark
}
