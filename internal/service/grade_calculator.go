package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/uni-api/internal/models"
	"github.com/noah-isme/uni-api/internal/repository"
	appErrors "github.com/noah-isme/uni-api/pkg/errors"
)

type lectureGradeReader interface {
	LectureTotal(ctx context.Context, studentID, lectureID string) (*repository.LectureTotal, error)
}

type courseTotalsReader interface {
	RegisteredCourseTotals(ctx context.Context, studentID string) ([]models.CourseGradeTotal, error)
}

// GradeCalculatorConfig sets cache lifetimes for aggregates.
type GradeCalculatorConfig struct {
	FinalGradeTTL time.Duration
	GPATTL        time.Duration
}

// GradeCalculator aggregates assignment grades into lecture results and GPA.
type GradeCalculator struct {
	grades  lectureGradeReader
	courses courseTotalsReader
	cache   *CacheService
	logger  *zap.Logger
	cfg     GradeCalculatorConfig
}

// NewGradeCalculator constructs the calculator. cache may be nil.
func NewGradeCalculator(grades lectureGradeReader, courses courseTotalsReader, cache *CacheService, logger *zap.Logger, cfg GradeCalculatorConfig) *GradeCalculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FinalGradeTTL <= 0 {
		cfg.FinalGradeTTL = 10 * time.Minute
	}
	if cfg.GPATTL <= 0 {
		cfg.GPATTL = time.Hour
	}
	return &GradeCalculator{grades: grades, courses: courses, cache: cache, logger: logger, cfg: cfg}
}

// FinalGrade sums the student's grades in the lecture. A student without grades gets zeros.
func (c *GradeCalculator) FinalGrade(ctx context.Context, studentID string, lecture models.Lecture) (*models.FinalGrade, error) {
	result, err := remember(ctx, c.cache, aggregateFinalGrade, finalGradeKey(studentID, lecture.ID), c.cfg.FinalGradeTTL, func() (models.FinalGrade, error) {
		total, err := c.grades.LectureTotal(ctx, studentID, lecture.ID)
		if err != nil {
			return models.FinalGrade{}, appErrors.Internal(err, "failed to sum lecture grades")
		}
		fg := models.FinalGrade{Subject: lecture.Name}
		if total.Graded > 0 {
			fg.FinalGrade = total.Total
			if total.FinalExam != nil {
				fg.FinalExam = *total.FinalExam
			}
		}
		return fg, nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// GradePoint bands a score into its point value and letter.
func GradePoint(score float64) models.GradePoint {
	switch {
	case score >= 90 && score <= 100:
		return models.GradePoint{Point: 4.0, Letter: "A"}
	case score >= 80 && score < 90:
		return models.GradePoint{Point: 3.0, Letter: "B"}
	case score >= 70 && score < 80:
		return models.GradePoint{Point: 2.0, Letter: "C"}
	case score >= 60 && score < 70:
		return models.GradePoint{Point: 1.0, Letter: "D"}
	default:
		return models.GradePoint{Point: 0.0, Letter: "F"}
	}
}

// GPA weights grade points of the student's graded registered courses by credits. No credits yields 0.
func (c *GradeCalculator) GPA(ctx context.Context, studentID string) (float64, error) {
	return remember(ctx, c.cache, aggregateGPA, gpaKey(studentID), c.cfg.GPATTL, func() (float64, error) {
		totals, err := c.courses.RegisteredCourseTotals(ctx, studentID)
		if err != nil {
			return 0, appErrors.Internal(err, "failed to sum course grades")
		}
		return weightedGPA(totals), nil
	})
}

func weightedGPA(totals []models.CourseGradeTotal) float64 {
	var points float64
	var credits int
	for _, t := range totals {
		points += GradePoint(t.Total).Point * float64(t.Credits)
		credits += t.Credits
	}
	if credits == 0 {
		return 0
	}
	return points / float64(credits)
}

// Invalidate drops every cached aggregate of the student.
func (c *GradeCalculator) Invalidate(ctx context.Context, studentID string) {
	_ = c.cache.ForgetStudent(ctx, studentID)
}
