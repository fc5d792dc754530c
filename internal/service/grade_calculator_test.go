package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-api/internal/models"
	"github.com/noah-isme/uni-api/internal/repository"
	appErrors "github.com/noah-isme/uni-api/pkg/errors"
)

type mockLectureGrades struct {
	totals map[string]repository.LectureTotal
	calls  int
}

func (m *mockLectureGrades) LectureTotal(ctx context.Context, studentID, lectureID string) (*repository.LectureTotal, error) {
	m.calls++
	total := m.totals[studentID+"/"+lectureID]
	return &total, nil
}

type mockCourseTotals struct {
	totals []models.CourseGradeTotal
}

func (m *mockCourseTotals) RegisteredCourseTotals(ctx context.Context, studentID string) ([]models.CourseGradeTotal, error) {
	return m.totals, nil
}

// memoryCache stores JSON like the redis repository does.
type memoryCache struct {
	values map[string][]byte
}

func newMemoryCache() *memoryCache { return &memoryCache{values: make(map[string][]byte)} }

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.values[key] = raw
	return nil
}

func (m *memoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.values {
		if strings.HasPrefix(key, prefix) {
			delete(m.values, key)
		}
	}
	return nil
}

func TestGradePointBands(t *testing.T) {
	cases := []struct {
		score  float64
		point  float64
		letter string
	}{
		{100, 4, "A"},
		{90, 4, "A"},
		{89.99, 3, "B"},
		{80, 3, "B"},
		{79, 2, "C"},
		{70, 2, "C"},
		{65, 1, "D"},
		{60, 1, "D"},
		{59.5, 0, "F"},
		{0, 0, "F"},
		{101, 0, "F"},
	}
	for _, tc := range cases {
		got := GradePoint(tc.score)
		assert.Equal(t, tc.point, got.Point, "score %v", tc.score)
		assert.Equal(t, tc.letter, got.Letter, "score %v", tc.score)
	}
}

func TestGradePointIsMonotoneOnValidRange(t *testing.T) {
	previous := GradePoint(0).Point
	for score := 0.0; score <= 100; score += 0.25 {
		point := GradePoint(score).Point
		require.GreaterOrEqual(t, point, previous, "grade point dropped at %v", score)
		previous = point
	}
}

func TestFinalGradeWithoutGradesIsZero(t *testing.T) {
	calc := NewGradeCalculator(&mockLectureGrades{}, &mockCourseTotals{}, nil, nil, GradeCalculatorConfig{})

	got, err := calc.FinalGrade(context.Background(), "stu-1", models.Lecture{ID: "lec-1", Name: "Databases A"})
	require.NoError(t, err)
	assert.Equal(t, "Databases A", got.Subject)
	assert.Zero(t, got.FinalGrade)
	assert.Zero(t, got.FinalExam)
}

func TestFinalGradeSumsAndCaches(t *testing.T) {
	grades := &mockLectureGrades{totals: map[string]repository.LectureTotal{
		"stu-1/lec-1": {Total: 78.5, FinalExam: floatPtr(31), Graded: 4},
	}}
	cache := NewCacheService(newMemoryCache(), nil, time.Minute, nil, true)
	calc := NewGradeCalculator(grades, &mockCourseTotals{}, cache, nil, GradeCalculatorConfig{})
	lecture := models.Lecture{ID: "lec-1", Name: "Databases A"}

	first, err := calc.FinalGrade(context.Background(), "stu-1", lecture)
	require.NoError(t, err)
	assert.Equal(t, 78.5, first.FinalGrade)
	assert.Equal(t, 31.0, first.FinalExam)

	second, err := calc.FinalGrade(context.Background(), "stu-1", lecture)
	require.NoError(t, err)
	assert.Equal(t, *first, *second)
	assert.Equal(t, 1, grades.calls)

	calc.Invalidate(context.Background(), "stu-1")
	_, err = calc.FinalGrade(context.Background(), "stu-1", lecture)
	require.NoError(t, err)
	assert.Equal(t, 2, grades.calls)
}

func TestGPAWeightsByCredits(t *testing.T) {
	courses := &mockCourseTotals{totals: []models.CourseGradeTotal{
		{CourseID: "c1", Credits: 6, Total: 92},
		{CourseID: "c2", Credits: 4, Total: 75},
		{CourseID: "c3", Credits: 2, Total: 40},
	}}
	calc := NewGradeCalculator(&mockLectureGrades{}, courses, nil, nil, GradeCalculatorConfig{})

	gpa, err := calc.GPA(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.InDelta(t, (4.0*6+2.0*4+0)/12, gpa, 1e-9)
}

func TestGPAWithoutCoursesIsZero(t *testing.T) {
	calc := NewGradeCalculator(&mockLectureGrades{}, &mockCourseTotals{}, nil, nil, GradeCalculatorConfig{})

	gpa, err := calc.GPA(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Zero(t, gpa)
}

type brokenCache struct{}

func (brokenCache) Get(ctx context.Context, key string, dest interface{}) error {
	return errors.New("redis: connection refused")
}

func (brokenCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return errors.New("redis: connection refused")
}

func (brokenCache) DeleteByPattern(ctx context.Context, pattern string) error {
	return errors.New("redis: connection refused")
}

func TestCacheFaultsFallBackToDatabase(t *testing.T) {
	metrics := NewMetricsService()
	grades := &mockLectureGrades{totals: map[string]repository.LectureTotal{"stu-1/lec-1": {Total: 64, Graded: 2}}}
	calc := NewGradeCalculator(grades, &mockCourseTotals{}, NewCacheService(brokenCache{}, metrics, 0, nil, true), nil, GradeCalculatorConfig{})

	got, err := calc.FinalGrade(context.Background(), "stu-1", models.Lecture{ID: "lec-1", Name: "Databases A"})
	require.NoError(t, err)
	assert.Equal(t, 64.0, got.FinalGrade)
	calc.Invalidate(context.Background(), "stu-1")

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.aggregates.WithLabelValues(aggregateFinalGrade, "error")))
}

func TestCacheCountsHitsPerAggregate(t *testing.T) {
	metrics := NewMetricsService()
	courses := &mockCourseTotals{totals: []models.CourseGradeTotal{{CourseID: "c1", Credits: 6, Total: 95}}}
	calc := NewGradeCalculator(&mockLectureGrades{}, courses, NewCacheService(newMemoryCache(), metrics, 0, nil, true), nil, GradeCalculatorConfig{})

	for i := 0; i < 3; i++ {
		gpa, err := calc.GPA(context.Background(), "stu-1")
		require.NoError(t, err)
		assert.Equal(t, 4.0, gpa)
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.aggregates.WithLabelValues(aggregateGPA, "miss")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.aggregates.WithLabelValues(aggregateGPA, "hit")))
}
