package http

import (
	"context"
	"time"

	domain "github.com/aq2208/gorder-bookstore/internal/entity"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const defaultRequestTimeout = 3 * time.Second

func requestCtx(c *gin.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = defaultRequestTimeout
	}
	return context.WithTimeout(c.Request.Context(), d)
}

type orderDTO struct {
	ID              string                 `json:"id"`
	AccountID       string                 `json:"accountId"`
	Items           []domain.OrderLine     `json:"items"`
	TotalAmount     decimal.Decimal        `json:"totalAmount"`
	ShippingAddress domain.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   domain.PaymentMethod   `json:"paymentMethod"`
	CurrentStatus   domain.Status          `json:"currentStatus"`
	LastUpdated     time.Time              `json:"lastUpdated"`
	History         []domain.StatusEntry   `json:"statusHistory"`
	TrackingNumber  string                 `json:"trackingNumber,omitempty"`
	Courier         string                 `json:"courier,omitempty"`
	CreatedAt       time.Time              `json:"createdAt"`
}

func toOrderDTO(o *domain.Order) orderDTO {
	return orderDTO{
		ID:              o.ID,
		AccountID:       o.AccountID,
		Items:           o.Lines,
		TotalAmount:     o.TotalAmount,
		ShippingAddress: o.ShippingAddress,
		PaymentMethod:   o.PaymentMethod,
		CurrentStatus:   o.CurrentStatus(),
		LastUpdated:     o.LastUpdated(),
		History:         o.History,
		TrackingNumber:  o.Tracking.TrackingNumber,
		Courier:         o.Tracking.Courier,
		CreatedAt:       o.CreatedAt,
	}
}

func toOrderDTOs(in []domain.Order) []orderDTO {
	out := make([]orderDTO, 0, len(in))
	for i := range in {
		out = append(out, toOrderDTO(&in[i]))
	}
	return out
}
