package http

import (
	"net/http"
	"time"

	"github.com/aq2208/gorder-bookstore/internal/adapter/http/middleware"
	"github.com/aq2208/gorder-bookstore/internal/usecase"
	"github.com/gin-gonic/gin"
)

type TrackingHandler struct {
	tracking *usecase.Tracking
	timeout  time.Duration
}

func NewTrackingHandler(tracking *usecase.Tracking, timeout time.Duration) *TrackingHandler {
	return &TrackingHandler{tracking: tracking, timeout: timeout}
}

type statusUpdateReq struct {
	Status            string     `json:"status"`
	Location          string     `json:"location"`
	Note              string     `json:"note"`
	TrackingNumber    string     `json:"trackingNumber"`
	Courier           string     `json:"courier"`
	EstimatedDelivery *time.Time `json:"estimatedDelivery"`
}

func (h *TrackingHandler) GetTracking(c *gin.Context) {
	ctx, cancel := requestCtx(c, h.timeout)
	defer cancel()

	view, err := h.tracking.GetTracking(ctx, viewer(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": view})
}

func (h *TrackingHandler) UpdateStatus(c *gin.Context) {
	var req statusUpdateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid status update")
		return
	}

	ctx, cancel := requestCtx(c, h.timeout)
	defer cancel()

	o, err := h.tracking.UpdateStatus(ctx, c.Param("id"), "admin:"+middleware.AccountID(c), usecase.TrackingUpdate{
		Status:            req.Status,
		Location:          req.Location,
		Note:              req.Note,
		TrackingNumber:    req.TrackingNumber,
		Courier:           req.Courier,
		EstimatedDelivery: req.EstimatedDelivery,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": toOrderDTO(o)})
}
