package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/uni-api/internal/models"
	appErrors "github.com/noah-isme/uni-api/pkg/errors"
)

// Graduation thresholds.
const (
	MasterGraduationCredits   = 120
	BachelorGraduationCredits = 240
)

type lifecycleUserRepository interface {
	ListActiveStudents(ctx context.Context) ([]models.User, error)
	DeactivateStudentsWithLoan(ctx context.Context) (int64, error)
	UpdateRole(ctx context.Context, id string, role models.UserRole) error
}

type paymentLister interface {
	List(ctx context.Context, studentID string) ([]models.Payment, error)
}

type activeRecordReader interface {
	ListActiveByStudent(ctx context.Context, studentID string) ([]models.GradeRecordDetail, error)
}

// StudentLifecycleService runs the periodic status changes of student accounts.
type StudentLifecycleService struct {
	users     lifecycleUserRepository
	payments  paymentLister
	records   activeRecordReader
	semesters currentSemesterResolver
	fees      feeReconciler
	metrics   *MetricsService
	logger    *zap.Logger
	now       Clock
}

// NewStudentLifecycleService constructs the service.
func NewStudentLifecycleService(
	users lifecycleUserRepository,
	payments paymentLister,
	records activeRecordReader,
	semesters currentSemesterResolver,
	fees feeReconciler,
	metrics *MetricsService,
	logger *zap.Logger,
	clock Clock,
) *StudentLifecycleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentLifecycleService{
		users:     users,
		payments:  payments,
		records:   records,
		semesters: semesters,
		fees:      fees,
		metrics:   metrics,
		logger:    logger,
		now:       clockOrDefault(clock),
	}
}

// DeactivateDelinquent refreshes the loan of every paying student and deactivates those still owing.
func (s *StudentLifecycleService) DeactivateDelinquent(ctx context.Context) (int64, error) {
	students, err := s.users.ListActiveStudents(ctx)
	if err != nil {
		return 0, err
	}

	semester, err := s.semesters.Current(ctx, s.now())
	switch {
	case err == nil:
		for i := range students {
			student := &students[i]
			paid, err := s.payments.List(ctx, student.ID)
			if err != nil {
				return 0, err
			}
			if len(paid) == 0 {
				continue
			}
			if _, err := s.fees.Reconcile(ctx, student, semester); err != nil {
				return 0, err
			}
		}
	case errors.Is(err, appErrors.ErrNoActiveSemester):
		s.logger.Warn("no active semester, deactivating on stored loans")
	default:
		return 0, err
	}

	n, err := s.users.DeactivateStudentsWithLoan(ctx)
	if err != nil {
		return 0, err
	}
	s.metrics.RecordLifecycleChange("deactivate", int(n))
	s.logger.Info("delinquent students deactivated", zap.Int64("count", n))
	return n, nil
}

// PromoteGraduates moves active students who completed their degree to the alumni role.
func (s *StudentLifecycleService) PromoteGraduates(ctx context.Context) (int, error) {
	students, err := s.users.ListActiveStudents(ctx)
	if err != nil {
		return 0, err
	}

	promoted := 0
	for _, student := range students {
		records, err := s.records.ListActiveByStudent(ctx, student.ID)
		if err != nil {
			return promoted, err
		}
		if !Graduated(records) {
			continue
		}
		if err := s.users.UpdateRole(ctx, student.ID, models.RoleAlumni); err != nil {
			return promoted, err
		}
		promoted++
		s.logger.Info("student graduated", zap.String("student_id", student.ID))
	}
	s.metrics.RecordLifecycleChange("graduate", promoted)
	return promoted, nil
}

// Graduated applies the degree rule to a student's active records. A master thesis record decides alone,
// even when it failed.
func Graduated(records []models.GradeRecordDetail) bool {
	var master, bachelor *models.GradeRecordDetail
	for i := range records {
		switch {
		case master == nil && models.IsMasterThesisName(records[i].LectureName):
			master = &records[i]
		case bachelor == nil && models.IsBachelorThesisName(records[i].LectureName):
			bachelor = &records[i]
		}
	}

	switch {
	case master != nil:
		if master.Failed {
			return false
		}
		credits := 0
		for _, r := range records {
			if r.UniYear == 5 || r.UniYear == 6 {
				credits += r.Credits
			}
		}
		return credits >= MasterGraduationCredits
	case bachelor != nil:
		if bachelor.Failed {
			return false
		}
		credits := 0
		for _, r := range records {
			credits += r.Credits
		}
		return credits >= BachelorGraduationCredits
	default:
		return false
	}
}
