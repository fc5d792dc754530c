// Package gateway holds payment processor adapters. Only an in-process sandbox ships; a hosted
// processor plugs in by satisfying the same method set.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Order statuses.
const (
	StatusCreated   = "CREATED"
	StatusCompleted = "COMPLETED"
)

var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrOrderAlreadyCapture = errors.New("order already captured")
	ErrInvalidAmount       = errors.New("order amount must be positive")
)

// Order is a pending charge.
type Order struct {
	ID        string    `json:"id"`
	Reference string    `json:"reference"`
	Amount    float64   `json:"amount"`
	Currency  string    `json:"currency"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Capture is the settled result of an order.
type Capture struct {
	OrderID    string    `json:"order_id"`
	Reference  string    `json:"reference"`
	Amount     float64   `json:"amount"`
	Currency   string    `json:"currency"`
	Status     string    `json:"status"`
	CapturedAt time.Time `json:"captured_at"`
}

// Sandbox approves every order immediately and keeps state in memory.
type Sandbox struct {
	mu     sync.Mutex
	orders map[string]*Order
	now    func() time.Time
	logger *zap.Logger
}

// NewSandbox builds an empty sandbox gateway.
func NewSandbox(logger *zap.Logger) *Sandbox {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sandbox{orders: make(map[string]*Order), now: time.Now, logger: logger}
}

// CreateOrder opens an order for amount tagged with the caller's reference.
func (s *Sandbox) CreateOrder(ctx context.Context, reference string, amount float64, currency string) (*Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	order := &Order{
		ID:        uuid.NewString(),
		Reference: reference,
		Amount:    amount,
		Currency:  currency,
		Status:    StatusCreated,
		CreatedAt: s.now().UTC(),
	}

	s.mu.Lock()
	s.orders[order.ID] = order
	s.mu.Unlock()

	s.logger.Info("sandbox order created", zap.String("order_id", order.ID), zap.String("reference", reference), zap.Float64("amount", amount))
	out := *order
	return &out, nil
}

// CaptureOrder settles a created order exactly once.
func (s *Sandbox) CaptureOrder(ctx context.Context, orderID string) (*Capture, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	if order.Status == StatusCompleted {
		return nil, ErrOrderAlreadyCapture
	}
	order.Status = StatusCompleted

	s.logger.Info("sandbox order captured", zap.String("order_id", orderID))
	return &Capture{
		OrderID:    order.ID,
		Reference:  order.Reference,
		Amount:     order.Amount,
		Currency:   order.Currency,
		Status:     StatusCompleted,
		CapturedAt: s.now().UTC(),
	}, nil
}
