package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/uni-api/internal/models"
	"github.com/noah-isme/uni-api/pkg/jobs"
	appErrors "github.com/noah-isme/uni-api/pkg/errors"
)

type thesisGradeReader interface {
	FirstInLecture(ctx context.Context, studentID, lectureID string) (*models.Grade, error)
}

type finalGradeCalculator interface {
	FinalGrade(ctx context.Context, studentID string, lecture models.Lecture) (*models.FinalGrade, error)
}

type gradeRecordSettler interface {
	Settle(ctx context.Context, record *models.GradeRecord, activate bool) (*models.GradeRecord, error)
}

// GradeRecordWorker turns terminal grades into grade records.
type GradeRecordWorker struct {
	lectures   enrollmentLectureReader
	grades     thesisGradeReader
	calculator finalGradeCalculator
	records    gradeRecordSettler
	metrics    *MetricsService
	logger     *zap.Logger
}

// NewGradeRecordWorker constructs the worker.
func NewGradeRecordWorker(
	lectures enrollmentLectureReader,
	grades thesisGradeReader,
	calculator finalGradeCalculator,
	records gradeRecordSettler,
	metrics *MetricsService,
	logger *zap.Logger,
) *GradeRecordWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeRecordWorker{
		lectures:   lectures,
		grades:     grades,
		calculator: calculator,
		records:    records,
		metrics:    metrics,
		logger:     logger,
	}
}

// Handle is the jobs.Handler for grade record jobs.
func (w *GradeRecordWorker) Handle(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(models.GradeRecordJob)
	if !ok {
		w.metrics.RecordGradeRecordJob("invalid")
		return jobs.Permanent(fmt.Errorf("unexpected payload %T for job %s", job.Payload, job.Type))
	}
	record, err := w.Settle(ctx, payload.StudentID, payload.LectureID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			w.metrics.RecordGradeRecordJob("invalid")
			return jobs.Permanent(err)
		}
		w.metrics.RecordGradeRecordJob("failed")
		return err
	}
	w.metrics.RecordGradeRecordJob("settled")
	w.logger.Info("grade record settled",
		zap.String("student_id", record.StudentID),
		zap.String("lecture_id", record.LectureID),
		zap.Float64("grade", record.Grade),
		zap.Bool("failed", record.Failed),
		zap.Bool("active", record.IsActive),
	)
	return nil
}

// Abandon is the queue drop hook. The grade record stays unsettled until the next terminal grade.
func (w *GradeRecordWorker) Abandon(job jobs.Job, err error) {
	fields := []zap.Field{zap.String("job_id", job.ID), zap.Int("attempts", job.Attempt), zap.Error(err)}
	if payload, ok := job.Payload.(models.GradeRecordJob); ok {
		fields = append(fields, zap.String("student_id", payload.StudentID), zap.String("lecture_id", payload.LectureID))
	}
	w.metrics.RecordGradeRecordJob("abandoned")
	w.logger.Error("grade record abandoned", fields...)
}

// Settle computes the outcome of the student in the lecture and stores it.
func (w *GradeRecordWorker) Settle(ctx context.Context, studentID, lectureID string) (*models.GradeRecord, error) {
	lecture, err := w.lectures.FindByID(ctx, lectureID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("load lecture: %w", err)
	}

	record := &models.GradeRecord{StudentID: studentID, LectureID: lecture.ID}
	if lecture.IsThesis() {
		grade, err := w.grades.FirstInLecture(ctx, studentID, lecture.ID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.ErrThesisGradeMissing
			}
			return nil, fmt.Errorf("load thesis grade: %w", err)
		}
		record.Grade = grade.Grade
		record.Failed = grade.Grade < models.LecturePassMark
	} else {
		final, err := w.calculator.FinalGrade(ctx, studentID, *lecture)
		if err != nil {
			return nil, err
		}
		record.Grade = final.FinalGrade
		record.Failed = final.FinalGrade < models.LecturePassMark || final.FinalExam < models.FinalExamPassMark
	}

	enrolled, err := w.lectures.IsEnrolled(ctx, lecture.ID, studentID)
	if err != nil {
		return nil, fmt.Errorf("check enrollment: %w", err)
	}
	stored, err := w.records.Settle(ctx, record, enrolled)
	if err != nil {
		return nil, err
	}
	return stored, nil
}
