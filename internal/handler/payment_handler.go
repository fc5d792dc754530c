package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-api/internal/models"
	"github.com/noah-isme/uni-api/pkg/response"
)

type paymentService interface {
	CurrentFee(ctx context.Context, studentID string) (*models.Fee, error)
	CreateOrder(ctx context.Context, studentID string) (*models.CreateOrderResponse, error)
	CaptureOrder(ctx context.Context, studentID string, req models.CaptureOrderRequest) (*models.Payment, error)
	ListPayments(ctx context.Context, actor *models.JWTClaims, studentID string) ([]models.Payment, error)
}

// PaymentHandler exposes tuition fee and payment endpoints.
type PaymentHandler struct {
	payments paymentService
}

// NewPaymentHandler constructs handler.
func NewPaymentHandler(payments paymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// Fee godoc
// @Summary Outstanding fee of the caller for the current semester
// @Tags Payments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /payments/fee [get]
func (h *PaymentHandler) Fee(c *gin.Context) {
	claims, ok := claimsOrAbort(c)
	if !ok {
		return
	}
	fee, err := h.payments.CurrentFee(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, fee, nil)
}

// CreateOrder godoc
// @Summary Open a payment order for the outstanding fee
// @Tags Payments
// @Produce json
// @Success 201 {object} response.Envelope
// @Router /payments/orders [post]
func (h *PaymentHandler) CreateOrder(c *gin.Context) {
	claims, ok := claimsOrAbort(c)
	if !ok {
		return
	}
	order, err := h.payments.CreateOrder(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, order)
}

// CaptureOrder godoc
// @Summary Capture an approved order
// @Tags Payments
// @Accept json
// @Produce json
// @Param payload body models.CaptureOrderRequest true "Order"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /payments/capture [post]
func (h *PaymentHandler) CaptureOrder(c *gin.Context) {
	claims, ok := claimsOrAbort(c)
	if !ok {
		return
	}
	var req models.CaptureOrderRequest
	if !bindJSON(c, &req, "invalid capture payload") {
		return
	}
	payment, err := h.payments.CaptureOrder(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, payment)
}

// List godoc
// @Summary Payment history
// @Tags Payments
// @Produce json
// @Param student_id query string false "Student, staff only"
// @Success 200 {object} response.Envelope
// @Router /payments [get]
func (h *PaymentHandler) List(c *gin.Context) {
	claims, ok := claimsOrAbort(c)
	if !ok {
		return
	}
	payments, err := h.payments.ListPayments(c.Request.Context(), claims, c.Query("student_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payments, nil)
}
