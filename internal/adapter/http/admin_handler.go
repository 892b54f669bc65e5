package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/aq2208/gorder-bookstore/internal/usecase"
	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	query   *usecase.OrderQuery
	timeout time.Duration
}

func NewAdminHandler(query *usecase.OrderQuery, timeout time.Duration) *AdminHandler {
	return &AdminHandler{query: query, timeout: timeout}
}

type setStockReq struct {
	Stock *int `json:"stock" binding:"required"`
}

func (h *AdminHandler) ListOrders(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	ctx, cancel := requestCtx(c, h.timeout)
	defer cancel()

	orders, err := h.query.ListAll(ctx, limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": toOrderDTOs(orders)})
}

func (h *AdminHandler) Stats(c *gin.Context) {
	ctx, cancel := requestCtx(c, 2*h.timeout)
	defer cancel()

	st, err := h.query.Stats(ctx)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": st})
}

func (h *AdminHandler) Inventory(c *gin.Context) {
	ctx, cancel := requestCtx(c, h.timeout)
	defer cancel()

	rep, err := h.query.Inventory(ctx)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": rep})
}

func (h *AdminHandler) SetStock(c *gin.Context) {
	var req setStockReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "stock required")
		return
	}

	ctx, cancel := requestCtx(c, h.timeout)
	defer cancel()

	it, err := h.query.SetStock(ctx, c.Param("id"), *req.Stock)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": it})
}
