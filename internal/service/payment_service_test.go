package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-api/internal/models"
	appErrors "github.com/noah-isme/uni-api/pkg/errors"
	"github.com/noah-isme/uni-api/pkg/gateway"
)

type mockSemesterCourses struct {
	courses []models.FeeCourse
}

func (m *mockSemesterCourses) RegisteredInSemester(ctx context.Context, studentID, semesterID string) ([]models.FeeCourse, error) {
	return m.courses, nil
}

type mockPaymentRepo struct {
	paid     float64
	payments []models.Payment
	orders   map[string]bool
}

func (m *mockPaymentRepo) SumForSemester(ctx context.Context, studentID, semesterID string) (float64, error) {
	return m.paid, nil
}

func (m *mockPaymentRepo) List(ctx context.Context, studentID string) ([]models.Payment, error) {
	var out []models.Payment
	for _, p := range m.payments {
		if p.StudentID == studentID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockPaymentRepo) RecordCapture(ctx context.Context, payment *models.Payment) (bool, error) {
	if m.orders == nil {
		m.orders = make(map[string]bool)
	}
	if m.orders[payment.OrderID] {
		return false, nil
	}
	m.orders[payment.OrderID] = true
	m.payments = append(m.payments, *payment)
	m.paid += payment.Amount
	return true, nil
}

type mockLoanWriter struct {
	users map[string]*models.User
	loans map[string]float64
}

func (m *mockLoanWriter) FindByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *u
	return &clone, nil
}

func (m *mockLoanWriter) UpdateLoan(ctx context.Context, id string, loan float64) error {
	if m.loans == nil {
		m.loans = make(map[string]float64)
	}
	m.loans[id] = loan
	if u, ok := m.users[id]; ok {
		u.Loan = loan
	}
	return nil
}

type paymentFixture struct {
	courses  *mockSemesterCourses
	payments *mockPaymentRepo
	users    *mockLoanWriter
	svc      *PaymentService
}

func newPaymentFixture(t *testing.T, gw PaymentGateway) *paymentFixture {
	t.Helper()
	f := &paymentFixture{
		courses:  &mockSemesterCourses{},
		payments: &mockPaymentRepo{},
		users: &mockLoanWriter{users: map[string]*models.User{
			"stu-1":  {ID: "stu-1", Role: models.RoleStudent},
			"prof-1": {ID: "prof-1", Role: models.RoleProfessor},
		}},
	}
	f.svc = NewPaymentService(f.courses, f.payments, f.users, fakeSemesters{semester: fall}, gw, nil, nil, PaymentConfig{
		Clock: fixedClock(fallStart.AddDate(0, 0, 1)),
	})
	return f
}

func TestSemesterFee(t *testing.T) {
	svc := NewPaymentService(nil, nil, nil, nil, nil, nil, nil, PaymentConfig{})

	cases := []struct {
		name        string
		credits     int
		scholarship float64
		want        float64
	}{
		{"no credits", 0, 100, 0},
		{"no scholarship", 30, 0, 1125},
		{"half scholarship wipes fifteen credits", 15, 50, 0},
		{"half scholarship", 30, 50, 562.5},
		{"full scholarship clamps at zero", 20, 100, 0},
		{"ten credits under a full scholarship owe nothing", 10, 100, 0},
		{"quarter scholarship", 60, 25, 1968.75},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, svc.SemesterFee(tc.credits, tc.scholarship), 1e-9)
		})
	}
}

func TestReconcileStoresRemainingBalance(t *testing.T) {
	f := newPaymentFixture(t, nil)
	f.courses.courses = []models.FeeCourse{{ID: "c1", Name: "Databases", Credits: 6}, {ID: "c2", Name: "Networks", Credits: 4}}
	f.payments.paid = 100

	student, _ := f.users.FindByID(context.Background(), "stu-1")
	fee, err := f.svc.Reconcile(context.Background(), student, fall)
	require.NoError(t, err)
	require.NotNil(t, fee)
	assert.InDelta(t, 275, fee.SemesterFee, 1e-9)
	assert.Len(t, fee.Courses, 2)
	assert.InDelta(t, 275, f.users.loans["stu-1"], 1e-9)
	assert.InDelta(t, 275, student.Loan, 1e-9)
}

func TestReconcilePaidInFullClearsLoan(t *testing.T) {
	f := newPaymentFixture(t, nil)
	f.courses.courses = []models.FeeCourse{{ID: "c1", Credits: 4}}
	f.payments.paid = 150
	f.users.users["stu-1"].Loan = 40

	student, _ := f.users.FindByID(context.Background(), "stu-1")
	fee, err := f.svc.Reconcile(context.Background(), student, fall)
	require.NoError(t, err)
	assert.Nil(t, fee)
	assert.Zero(t, f.users.loans["stu-1"])
	assert.Zero(t, student.Loan)
}

func TestReconcileWithoutCoursesIsPaid(t *testing.T) {
	f := newPaymentFixture(t, nil)

	student, _ := f.users.FindByID(context.Background(), "stu-1")
	fee, err := f.svc.Reconcile(context.Background(), student, fall)
	require.NoError(t, err)
	assert.Nil(t, fee)
	_, touched := f.users.loans["stu-1"]
	assert.False(t, touched)
}

func TestCurrentFeeAlreadyPaid(t *testing.T) {
	f := newPaymentFixture(t, nil)

	_, err := f.svc.CurrentFee(context.Background(), "stu-1")
	assert.True(t, errors.Is(err, appErrors.ErrAlreadyPaid))
}

func TestCurrentFeeRejectsStaff(t *testing.T) {
	f := newPaymentFixture(t, nil)

	_, err := f.svc.CurrentFee(context.Background(), "prof-1")
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestOrderCaptureFlow(t *testing.T) {
	f := newPaymentFixture(t, gateway.NewSandbox(nil))
	f.courses.courses = []models.FeeCourse{{ID: "c1", Credits: 8}}

	order, err := f.svc.CreateOrder(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.InDelta(t, 300, order.Amount, 1e-9)
	assert.Equal(t, DefaultCurrency, order.Currency)
	assert.Equal(t, gateway.StatusCreated, order.Status)

	payment, err := f.svc.CaptureOrder(context.Background(), "stu-1", models.CaptureOrderRequest{OrderID: order.OrderID})
	require.NoError(t, err)
	assert.Equal(t, fall.ID, payment.SemesterID)
	assert.InDelta(t, 300, payment.Amount, 1e-9)

	_, err = f.svc.CaptureOrder(context.Background(), "stu-1", models.CaptureOrderRequest{OrderID: order.OrderID})
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	_, err = f.svc.CurrentFee(context.Background(), "stu-1")
	assert.True(t, errors.Is(err, appErrors.ErrAlreadyPaid))
}

func TestCaptureOrderOfAnotherStudent(t *testing.T) {
	sandbox := gateway.NewSandbox(nil)
	f := newPaymentFixture(t, sandbox)
	order, err := sandbox.CreateOrder(context.Background(), "stu-2", 50, "USD")
	require.NoError(t, err)

	_, err = f.svc.CaptureOrder(context.Background(), "stu-1", models.CaptureOrderRequest{OrderID: order.ID})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
	assert.Empty(t, f.payments.payments)
}

func TestCaptureUnknownOrder(t *testing.T) {
	f := newPaymentFixture(t, gateway.NewSandbox(nil))

	_, err := f.svc.CaptureOrder(context.Background(), "stu-1", models.CaptureOrderRequest{OrderID: "missing"})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestListPaymentsScopesStudents(t *testing.T) {
	f := newPaymentFixture(t, nil)
	f.payments.payments = []models.Payment{{ID: "p1", StudentID: "stu-1"}, {ID: "p2", StudentID: "stu-2"}}

	own, err := f.svc.ListPayments(context.Background(), &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent}, "stu-2")
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, "p1", own[0].ID)

	other, err := f.svc.ListPayments(context.Background(), &models.JWTClaims{UserID: "mgr", Role: models.RoleManager}, "stu-2")
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, "p2", other[0].ID)

	_, err = f.svc.ListPayments(context.Background(), &models.JWTClaims{UserID: "prof-1", Role: models.RoleProfessor}, "")
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}
