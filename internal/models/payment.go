package models

import "time"

// Payment is a captured tuition payment for one semester.
type Payment struct {
	ID         string    `db:"id" json:"id"`
	StudentID  string    `db:"student_id" json:"student_id"`
	SemesterID string    `db:"semester_id" json:"semester_id"`
	Amount     float64   `db:"amount" json:"amount"`
	OrderID    string    `db:"order_id" json:"order_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// FeeCourse is a course contributing credits to a fee.
type FeeCourse struct {
	ID      string `db:"id" json:"id"`
	Name    string `db:"name" json:"name"`
	Credits int    `db:"credits" json:"credits"`
}

// Fee is the semester charge for a student.
type Fee struct {
	SemesterFee           float64     `json:"semester_fee"`
	GovernmentScholarship float64     `json:"government_scholarship"`
	Courses               []FeeCourse `json:"courses"`
}

// CreateOrderResponse is returned when an order is opened with the payment processor.
type CreateOrderResponse struct {
	OrderID  string  `json:"order_id"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Status   string  `json:"status"`
}

// CaptureOrderRequest settles an order.
type CaptureOrderRequest struct {
	OrderID string `json:"order_id" validate:"required"`
}
