package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-api/internal/models"
	"github.com/noah-isme/uni-api/pkg/gateway"
	appErrors "github.com/noah-isme/uni-api/pkg/errors"
)

// Fee constants used when configuration leaves them unset.
const (
	DefaultFeePerCredit    = 37.5
	DefaultGovernmentGrant = 2250
	DefaultCurrency        = "USD"
)

type semesterCourseReader interface {
	RegisteredInSemester(ctx context.Context, studentID, semesterID string) ([]models.FeeCourse, error)
}

type paymentRepository interface {
	SumForSemester(ctx context.Context, studentID, semesterID string) (float64, error)
	List(ctx context.Context, studentID string) ([]models.Payment, error)
	RecordCapture(ctx context.Context, payment *models.Payment) (bool, error)
}

type loanWriter interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdateLoan(ctx context.Context, id string, loan float64) error
}

// PaymentGateway opens and settles orders with a payment processor.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, reference string, amount float64, currency string) (*gateway.Order, error)
	CaptureOrder(ctx context.Context, orderID string) (*gateway.Capture, error)
}

// PaymentConfig holds tuition constants.
type PaymentConfig struct {
	PerCredit       float64
	GovernmentGrant float64
	Currency        string
	Clock           Clock
}

// PaymentService calculates semester fees and records payments against them.
type PaymentService struct {
	courses   semesterCourseReader
	payments  paymentRepository
	users     loanWriter
	semesters currentSemesterResolver
	gateway   PaymentGateway
	validator *validator.Validate
	logger    *zap.Logger
	cfg       PaymentConfig
	now       Clock
}

// NewPaymentService constructs the service.
func NewPaymentService(
	courses semesterCourseReader,
	payments paymentRepository,
	users loanWriter,
	semesters currentSemesterResolver,
	gw PaymentGateway,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg PaymentConfig,
) *PaymentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PerCredit <= 0 {
		cfg.PerCredit = DefaultFeePerCredit
	}
	if cfg.GovernmentGrant <= 0 {
		cfg.GovernmentGrant = DefaultGovernmentGrant
	}
	if cfg.Currency == "" {
		cfg.Currency = DefaultCurrency
	}
	return &PaymentService{
		courses:   courses,
		payments:  payments,
		users:     users,
		semesters: semesters,
		gateway:   gw,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       clockOrDefault(cfg.Clock),
	}
}

// SemesterFee prices credits after the scholarship share of the government grant. Zero credits cost nothing.
func (s *PaymentService) SemesterFee(credits int, scholarship float64) float64 {
	if credits <= 0 {
		return 0
	}
	fee := float64(credits) * s.cfg.PerCredit
	if scholarship > 0 {
		fee -= s.cfg.GovernmentGrant * scholarship / 100 / 2
	}
	if fee < 0 {
		return 0
	}
	return fee
}

// CalculateFee prices the distinct registered courses that have a lecture in the semester.
func (s *PaymentService) CalculateFee(ctx context.Context, student *models.User, semester *models.Semester) (*models.Fee, error) {
	courses, err := s.courses.RegisteredInSemester(ctx, student.ID, semester.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load semester courses")
	}
	credits := 0
	for _, c := range courses {
		credits += c.Credits
	}
	if courses == nil {
		courses = []models.FeeCourse{}
	}
	return &models.Fee{
		SemesterFee:           s.SemesterFee(credits, student.GovernmentScholarship),
		GovernmentScholarship: student.GovernmentScholarship,
		Courses:               courses,
	}, nil
}

// Reconcile compares the fee with what was paid this semester. It returns nil when the fee is covered;
// otherwise the remaining balance is stored as the student's loan and returned.
func (s *PaymentService) Reconcile(ctx context.Context, student *models.User, semester *models.Semester) (*models.Fee, error) {
	fee, err := s.CalculateFee(ctx, student, semester)
	if err != nil {
		return nil, err
	}
	paid, err := s.payments.SumForSemester(ctx, student.ID, semester.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to sum payments")
	}
	if paid >= fee.SemesterFee {
		if student.Loan > 0 {
			if err := s.users.UpdateLoan(ctx, student.ID, 0); err != nil {
				return nil, appErrors.Internal(err, "failed to clear loan")
			}
			student.Loan = 0
		}
		return nil, nil
	}

	fee.SemesterFee -= paid
	if err := s.users.UpdateLoan(ctx, student.ID, fee.SemesterFee); err != nil {
		return nil, appErrors.Internal(err, "failed to update loan")
	}
	student.Loan = fee.SemesterFee
	s.logger.Debug("fee reconciled",
		zap.String("student_id", student.ID),
		zap.String("semester_id", semester.ID),
		zap.Float64("paid", paid),
		zap.Float64("remaining", fee.SemesterFee),
	)
	return fee, nil
}

// CurrentFee reconciles the caller's fee for the current semester.
func (s *PaymentService) CurrentFee(ctx context.Context, studentID string) (*models.Fee, error) {
	student, semester, err := s.payer(ctx, studentID)
	if err != nil {
		return nil, err
	}
	fee, err := s.Reconcile(ctx, student, semester)
	if err != nil {
		return nil, err
	}
	if fee == nil {
		return nil, appErrors.ErrAlreadyPaid
	}
	return fee, nil
}

// CreateOrder opens an order for the outstanding fee.
func (s *PaymentService) CreateOrder(ctx context.Context, studentID string) (*models.CreateOrderResponse, error) {
	fee, err := s.CurrentFee(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if fee.SemesterFee <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no courses found for this semester")
	}
	order, err := s.gateway.CreateOrder(ctx, studentID, fee.SemesterFee, s.cfg.Currency)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPaymentGateway.Code, appErrors.ErrPaymentGateway.Status, "failed to create order")
	}
	s.logger.Info("payment order created", zap.String("student_id", studentID), zap.String("order_id", order.ID), zap.Float64("amount", order.Amount))
	return &models.CreateOrderResponse{OrderID: order.ID, Amount: order.Amount, Currency: order.Currency, Status: order.Status}, nil
}

// CaptureOrder settles an order and records the payment against the current semester.
func (s *PaymentService) CaptureOrder(ctx context.Context, studentID string, req models.CaptureOrderRequest) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err, "invalid capture payload")
	}
	student, semester, err := s.payer(ctx, studentID)
	if err != nil {
		return nil, err
	}

	capture, err := s.gateway.CaptureOrder(ctx, req.OrderID)
	if err != nil {
		if errors.Is(err, gateway.ErrOrderNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "order not found")
		}
		if errors.Is(err, gateway.ErrOrderAlreadyCapture) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "order already captured")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrPaymentGateway.Code, appErrors.ErrPaymentGateway.Status, "failed to capture order")
	}
	if capture.Reference != student.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "order belongs to another student")
	}

	payment := &models.Payment{
		StudentID:  student.ID,
		SemesterID: semester.ID,
		Amount:     capture.Amount,
		OrderID:    capture.OrderID,
		CreatedAt:  capture.CapturedAt,
	}
	recorded, err := s.payments.RecordCapture(ctx, payment)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to record payment")
	}
	if !recorded {
		return nil, appErrors.Clone(appErrors.ErrConflict, "payment already recorded")
	}
	s.logger.Info("payment captured", zap.String("student_id", student.ID), zap.String("order_id", payment.OrderID), zap.Float64("amount", payment.Amount))
	return payment, nil
}

// ListPayments returns the caller's payments, or any student's for roles allowed to read all payments.
func (s *PaymentService) ListPayments(ctx context.Context, actor *models.JWTClaims, studentID string) ([]models.Payment, error) {
	if !actor.Role.Can(models.CapPaymentsReadAll) {
		if !actor.Role.Can(models.CapPaymentsSelf) {
			return nil, appErrors.ErrForbidden
		}
		studentID = actor.UserID
	}
	payments, err := s.payments.List(ctx, studentID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list payments")
	}
	return payments, nil
}

func (s *PaymentService) payer(ctx context.Context, studentID string) (*models.User, *models.Semester, error) {
	student, err := s.users.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, nil, appErrors.Internal(err, "failed to load student")
	}
	if !student.Role.Can(models.CapPaymentsSelf) {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "staff members can't pay the semester fee")
	}
	semester, err := s.semesters.Current(ctx, s.now())
	if err != nil {
		return nil, nil, err
	}
	return student, semester, nil
}
