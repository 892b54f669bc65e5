package usecase

import (
	"time"

	domain "github.com/aq2208/gorder-bookstore/internal/entity"
	"github.com/shopspring/decimal"
)

type NotificationKind string

const (
	NotifyOrderConfirmed NotificationKind = "order.confirmed"
	NotifyStatusChanged  NotificationKind = "order.status"
)

// Published to the notification exchange, consumed by the mailer.
type NotificationMsg struct {
	Kind            NotificationKind       `json:"kind"`
	OrderID         string                 `json:"orderId"`
	AccountID       string                 `json:"accountId"`
	Email           string                 `json:"email,omitempty"`
	Status          domain.Status          `json:"status"`
	TotalAmount     decimal.Decimal        `json:"totalAmount"`
	PaymentMethod   domain.PaymentMethod   `json:"paymentMethod"`
	Lines           []domain.OrderLine     `json:"lines,omitempty"`
	ShippingAddress domain.ShippingAddress `json:"shippingAddress"`
	TrackingNumber  string                 `json:"trackingNumber,omitempty"`
	Courier         string                 `json:"courier,omitempty"`
	Location        string                 `json:"location,omitempty"`
	At              time.Time              `json:"at"`
}

// Sent by courier integrations on Kafka
type CourierStatusMsg struct {
	OrderID           string     `json:"orderId"`
	Courier           string     `json:"courier"`
	TrackingNumber    string     `json:"trackingNumber,omitempty"`
	Status            string     `json:"status"`
	Location          string     `json:"location,omitempty"`
	EstimatedDelivery *time.Time `json:"estimatedDelivery,omitempty"`
	Note              string     `json:"note,omitempty"`
}

// Body posted by the hosted payment page on completion. Amount is in minor units.
type PaymentCallbackMsg struct {
	MerchantTransactionID string `json:"merchantTransactionId"`
	TransactionID         string `json:"transactionId"`
	Amount                int64  `json:"amount"`
	Status                string `json:"status"`
}

func newNotification(kind NotificationKind, o *domain.Order) NotificationMsg {
	last := domain.StatusEntry{}
	if n := len(o.History); n > 0 {
		last = o.History[n-1]
	}
	return NotificationMsg{
		Kind:            kind,
		OrderID:         o.ID,
		AccountID:       o.AccountID,
		Email:           o.ContactEmail,
		Status:          o.CurrentStatus(),
		TotalAmount:     o.TotalAmount,
		PaymentMethod:   o.PaymentMethod,
		Lines:           o.Lines,
		ShippingAddress: o.ShippingAddress,
		TrackingNumber:  o.Tracking.TrackingNumber,
		Courier:         o.Tracking.Courier,
		Location:        last.Location,
		At:              o.LastUpdated(),
	}
}
