package http

import (
	"net/http"
	"time"

	"github.com/aq2208/gorder-bookstore/internal/adapter/http/middleware"
	domain "github.com/aq2208/gorder-bookstore/internal/entity"
	"github.com/aq2208/gorder-bookstore/internal/usecase"
	"github.com/gin-gonic/gin"
)

type OrderHandler struct {
	writer   *usecase.OrderWriter
	payments *usecase.PaymentReconciler
	query    *usecase.OrderQuery
	timeout  time.Duration
}

func NewOrderHandler(writer *usecase.OrderWriter, payments *usecase.PaymentReconciler, query *usecase.OrderQuery, timeout time.Duration) *OrderHandler {
	return &OrderHandler{writer: writer, payments: payments, query: query, timeout: timeout}
}

type checkoutReq struct {
	ShippingAddress domain.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string                 `json:"paymentMethod" binding:"required"`
}

// Checkout places a cash-on-delivery order directly, or starts a hosted
// payment whose callback creates the order later.
func (h *OrderHandler) Checkout(c *gin.Context) {
	var req checkoutReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "shippingAddress and paymentMethod required")
		return
	}

	in := usecase.PlaceOrderInput{
		AccountID:       middleware.AccountID(c),
		Email:           middleware.Email(c),
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   domain.PaymentMethod(req.PaymentMethod),
	}

	ctx, cancel := requestCtx(c, h.timeout)
	defer cancel()

	switch in.PaymentMethod {
	case domain.PaymentCOD:
		o, err := h.writer.PlaceOrder(ctx, in)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"success": true, "data": toOrderDTO(o)})
	case domain.PaymentProviderHosted:
		out, err := h.payments.InitiatePayment(ctx, in)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"success": true, "data": out})
	default:
		badRequest(c, "paymentMethod must be cod or provider-hosted")
	}
}

func (h *OrderHandler) ListMine(c *gin.Context) {
	ctx, cancel := requestCtx(c, h.timeout)
	defer cancel()

	orders, err := h.query.ListMine(ctx, middleware.AccountID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": toOrderDTOs(orders)})
}

func (h *OrderHandler) GetOrderByID(c *gin.Context) {
	ctx, cancel := requestCtx(c, h.timeout)
	defer cancel()

	o, err := h.query.GetOrder(ctx, viewer(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": toOrderDTO(o)})
}

func viewer(c *gin.Context) usecase.Viewer {
	return usecase.Viewer{AccountID: middleware.AccountID(c), Admin: middleware.IsAdmin(c)}
}
