package http

import (
	"log/slog"

	"github.com/aq2208/gorder-bookstore/internal/adapter/http/middleware"
	"github.com/aq2208/gorder-bookstore/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	Cart     *CartHandler
	Order    *OrderHandler
	Payment  *PaymentHandler
	Tracking *TrackingHandler
	Admin    *AdminHandler
}

func NewRouter(h Handlers, authz *middleware.Authz, cv *middleware.ChecksumVerify, l *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Metrics())
	r.Use(middleware.Logging(l))

	r.GET("/healthz", func(c *gin.Context) {
		logging.From(c).Debug("health check")
		c.JSON(200, gin.H{"ok": true})
	})
	// Prometheus endpoint (scraped by Prometheus)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	read := authz.Require(middleware.PermRead)
	write := authz.Require(middleware.PermWrite)
	admin := authz.Require(middleware.PermAdmin)

	v1 := r.Group("/v1")
	{
		cart := v1.Group("/cart", write)
		cart.GET("", h.Cart.GetCart)
		cart.POST("/items", h.Cart.AddItem)
		cart.PUT("/items", h.Cart.UpdateItem)
		cart.DELETE("/items/:ref", h.Cart.RemoveItem)
		cart.DELETE("", h.Cart.Clear)

		v1.POST("/orders", write, h.Order.Checkout)
		v1.GET("/orders", read, h.Order.ListMine)
		v1.GET("/orders/:id", read, h.Order.GetOrderByID)

		v1.POST("/payments/intents", write, h.Payment.CreateIntent)
		v1.POST("/payments/capture", write, h.Payment.Capture)
		v1.POST("/payments/callback", cv.Verify(), h.Payment.Callback)

		v1.GET("/tracking/orders/:id", read, h.Tracking.GetTracking)
		v1.PUT("/tracking/orders/:id", admin, h.Tracking.UpdateStatus)

		adm := v1.Group("/admin", admin)
		adm.GET("/orders", h.Admin.ListOrders)
		adm.GET("/orders/stats", h.Admin.Stats)
		adm.GET("/inventory", h.Admin.Inventory)
		adm.PUT("/inventory/:id/stock", h.Admin.SetStock)
	}

	return r
}
