package http

import (
	"net/http"
	"time"

	"github.com/aq2208/gorder-bookstore/internal/adapter/http/middleware"
	"github.com/aq2208/gorder-bookstore/internal/usecase"
	"github.com/gin-gonic/gin"
)

type CartHandler struct {
	carts   *usecase.CartManager
	timeout time.Duration
}

func NewCartHandler(carts *usecase.CartManager, timeout time.Duration) *CartHandler {
	return &CartHandler{carts: carts, timeout: timeout}
}

type addItemReq struct {
	ItemID   string `json:"itemId" binding:"required"`
	Quantity *int   `json:"quantity"`
}

type updateItemReq struct {
	// ItemID is either the cart line id or the inventory item id.
	ItemID   string `json:"itemId" binding:"required"`
	Quantity int    `json:"quantity"`
}

func (h *CartHandler) GetCart(c *gin.Context) {
	ctx, cancel := requestCtx(c, h.timeout)
	defer cancel()

	view, err := h.carts.GetCart(ctx, middleware.AccountID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": view})
}

func (h *CartHandler) AddItem(c *gin.Context) {
	var req addItemReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "itemId required")
		return
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}

	ctx, cancel := requestCtx(c, h.timeout)
	defer cancel()

	view, err := h.carts.AddItem(ctx, middleware.AccountID(c), req.ItemID, qty)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": view})
}

func (h *CartHandler) UpdateItem(c *gin.Context) {
	var req updateItemReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "itemId and quantity required")
		return
	}

	ctx, cancel := requestCtx(c, h.timeout)
	defer cancel()

	view, err := h.carts.UpdateQuantity(ctx, middleware.AccountID(c), req.ItemID, req.Quantity)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": view})
}

func (h *CartHandler) RemoveItem(c *gin.Context) {
	ctx, cancel := requestCtx(c, h.timeout)
	defer cancel()

	view, err := h.carts.RemoveItem(ctx, middleware.AccountID(c), c.Param("ref"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": view})
}

func (h *CartHandler) Clear(c *gin.Context) {
	ctx, cancel := requestCtx(c, h.timeout)
	defer cancel()

	view, err := h.carts.Clear(ctx, middleware.AccountID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": view})
}
