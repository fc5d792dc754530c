package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/uni-api/internal/models"
)

// PaymentRepository persists captured tuition payments.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// SumForSemester totals a student's payments for one semester.
func (r *PaymentRepository) SumForSemester(ctx context.Context, studentID, semesterID string) (float64, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM payments WHERE student_id = $1 AND semester_id = $2`
	var total float64
	if err := r.db.GetContext(ctx, &total, query, studentID, semesterID); err != nil {
		return 0, fmt.Errorf("sum payments: %w", err)
	}
	return total, nil
}

// List returns payments newest first. An empty studentID lists every student's payments.
func (r *PaymentRepository) List(ctx context.Context, studentID string) ([]models.Payment, error) {
	query := `SELECT id, student_id, semester_id, amount, order_id, created_at FROM payments`
	var args []interface{}
	if studentID != "" {
		query += ` WHERE student_id = $1`
		args = append(args, studentID)
	}
	query += ` ORDER BY created_at DESC`
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, args...); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}

// RecordCapture stores a payment and lowers the student's loan by its amount in one transaction.
// A replayed order id is ignored and reported through the returned flag.
func (r *PaymentRepository) RecordCapture(ctx context.Context, payment *models.Payment) (bool, error) {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin record payment: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insert = `INSERT INTO payments (id, student_id, semester_id, amount, order_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (order_id) DO NOTHING`
	res, err := tx.ExecContext(ctx, insert, payment.ID, payment.StudentID, payment.SemesterID, payment.Amount, payment.OrderID, payment.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert payment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert payment rows: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	const loan = `UPDATE users SET loan = GREATEST(loan - $2, 0), updated_at = $3 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, loan, payment.StudentID, payment.Amount, payment.CreatedAt); err != nil {
		return false, fmt.Errorf("reduce loan: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit record payment: %w", err)
	}
	return true, nil
}
