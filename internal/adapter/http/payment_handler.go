package http

import (
	"net/http"
	"time"

	"github.com/aq2208/gorder-bookstore/internal/adapter/http/middleware"
	domain "github.com/aq2208/gorder-bookstore/internal/entity"
	"github.com/aq2208/gorder-bookstore/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type PaymentHandler struct {
	payments *usecase.PaymentReconciler
	timeout  time.Duration
}

func NewPaymentHandler(payments *usecase.PaymentReconciler, timeout time.Duration) *PaymentHandler {
	return &PaymentHandler{payments: payments, timeout: timeout}
}

type createIntentReq struct {
	Amount decimal.Decimal `json:"amount"`
}

type captureReq struct {
	IntentRef       string                 `json:"intentRef" binding:"required"`
	Items           []usecase.CaptureItem  `json:"items" binding:"required,min=1"`
	ShippingAddress domain.ShippingAddress `json:"shippingAddress"`
}

func (h *PaymentHandler) CreateIntent(c *gin.Context) {
	var req createIntentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "amount required")
		return
	}

	ctx, cancel := requestCtx(c, h.timeout)
	defer cancel()

	intent, err := h.payments.CreatePaymentIntent(ctx, middleware.AccountID(c), req.Amount)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": intent})
}

func (h *PaymentHandler) Capture(c *gin.Context) {
	var req captureReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "intentRef and items required")
		return
	}

	// provider round trips get a longer deadline
	ctx, cancel := requestCtx(c, 3*h.timeout)
	defer cancel()

	out, err := h.payments.CaptureAndRecord(ctx, usecase.CaptureInput{
		AccountID:       middleware.AccountID(c),
		Email:           middleware.Email(c),
		IntentRef:       req.IntentRef,
		Items:           req.Items,
		ShippingAddress: req.ShippingAddress,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success":       true,
		"captureResult": out.Capture,
		"order":         toOrderDTO(out.Order),
	})
}

// Callback is reached only after ChecksumVerify accepted the raw body.
func (h *PaymentHandler) Callback(c *gin.Context) {
	raw, ok := middleware.RawBody(c)
	if !ok {
		badRequest(c, "missing body")
		return
	}

	ctx, cancel := requestCtx(c, h.timeout)
	defer cancel()

	res, err := h.payments.HandleCallback(ctx, raw, c.GetHeader(middleware.HeaderVerify))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":               true,
		"merchantTransactionId": res.MerchantTransactionID,
		"orderId":               res.OrderID,
		"replay":                res.Replay,
	})
}
