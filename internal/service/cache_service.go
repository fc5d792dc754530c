package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/uni-api/pkg/errors"
)

// CacheRepository stores JSON payloads with a TTL.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

const (
	aggregateFinalGrade = "final_grade"
	aggregateGPA        = "gpa"
)

// CacheService memoises per-student grade aggregates. Keys live under grades:<student>: so that any
// grade change can drop all of them at once. A nil or disabled service always loads.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs the aggregate cache.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled && repo != nil}
}

// Enabled reports whether lookups reach the repository.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled
}

func studentScope(studentID string) string {
	return fmt.Sprintf("grades:%s:", studentID)
}

func finalGradeKey(studentID, lectureID string) string {
	return studentScope(studentID) + "final:" + lectureID
}

func gpaKey(studentID string) string {
	return studentScope(studentID) + "gpa"
}

// ForgetStudent drops every cached aggregate of the student.
func (s *CacheService) ForgetStudent(ctx context.Context, studentID string) error {
	if !s.Enabled() {
		return nil
	}
	pattern := studentScope(studentID) + "*"
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("grade cache invalidation failed", zap.String("student_id", studentID), zap.Error(err))
		return err
	}
	return nil
}

func (s *CacheService) lookup(ctx context.Context, aggregate, key string, dest interface{}) bool {
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	switch {
	case err == nil:
		s.metrics.RecordAggregateLookup(aggregate, "hit", time.Since(start))
		return true
	case errors.Is(err, appErrors.ErrCacheMiss):
		s.metrics.RecordAggregateLookup(aggregate, "miss", time.Since(start))
	default:
		s.metrics.RecordAggregateLookup(aggregate, "error", time.Since(start))
		s.logger.Warn("grade cache read failed", zap.String("key", key), zap.Error(err))
	}
	return false
}

func (s *CacheService) store(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	s.metrics.ObserveAggregateWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("grade cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// remember returns the cached value under key or computes and stores it. Cache faults never fail the load.
func remember[T any](ctx context.Context, s *CacheService, aggregate, key string, ttl time.Duration, load func() (T, error)) (T, error) {
	if s.Enabled() {
		var cached T
		if s.lookup(ctx, aggregate, key, &cached) {
			return cached, nil
		}
	}
	value, err := load()
	if err != nil {
		return value, err
	}
	if s.Enabled() {
		s.store(ctx, key, value, ttl)
	}
	return value, nil
}
