package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/aq2208/gorder-bookstore/internal/entity"
	"github.com/aq2208/gorder-bookstore/internal/logging"
	"github.com/shopspring/decimal"
)

type TrackingUpdate struct {
	Status            string
	Location          string
	Note              string
	TrackingNumber    string
	Courier           string
	EstimatedDelivery *time.Time
}

func (u TrackingUpdate) touchesTracking() bool {
	return u.TrackingNumber != "" || u.Courier != "" || u.EstimatedDelivery != nil
}

func (u TrackingUpdate) apply(tr domain.Tracking) domain.Tracking {
	if u.TrackingNumber != "" {
		tr.TrackingNumber = u.TrackingNumber
	}
	if u.Courier != "" {
		tr.Courier = u.Courier
	}
	if u.EstimatedDelivery != nil {
		eta := u.EstimatedDelivery.UTC()
		tr.EstimatedDelivery = &eta
	}
	return tr
}

type PaymentSummary struct {
	Status string          `json:"status"`
	Method string          `json:"method"`
	Amount decimal.Decimal `json:"amount"`
}

type TrackingView struct {
	OrderID           string               `json:"orderId"`
	CurrentStatus     domain.Status        `json:"currentStatus"`
	LastUpdated       time.Time            `json:"lastUpdated"`
	History           []domain.StatusEntry `json:"history"`
	EstimatedDelivery *time.Time           `json:"estimatedDelivery,omitempty"`
	TrackingNumber    string               `json:"trackingNumber,omitempty"`
	Courier           string               `json:"courier,omitempty"`
	Payment           PaymentSummary       `json:"payment"`
}

type Tracking struct {
	orders   OrderRepo
	payments PaymentRepo
	writer   *OrderWriter
	locks    *keyedMutex
	now      func() time.Time
}

func NewTracking(orders OrderRepo, payments PaymentRepo, writer *OrderWriter) *Tracking {
	return &Tracking{orders: orders, payments: payments, writer: writer, locks: newKeyedMutex(), now: time.Now}
}

// UpdateStatus appends a history entry and refreshes the tracking facts. An update
// without a status only annotates the latest entry with a location.
func (t *Tracking) UpdateStatus(ctx context.Context, orderID, actor string, u TrackingUpdate) (*domain.Order, error) {
	if u.Status == "" && u.Location == "" && !u.touchesTracking() {
		return nil, invalid("nothing to update")
	}
	unlock := t.locks.Lock(orderID)
	defer unlock()

	o, err := t.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	tr := u.apply(o.Tracking)

	if u.Status == "" {
		if err := t.orders.AnnotateLast(ctx, orderID, u.Location, &tr); err != nil {
			return nil, fmt.Errorf("%w: annotate: %v", ErrPersistence, err)
		}
		o.Tracking = tr
		if u.Location != "" && len(o.History) > 0 {
			o.History[len(o.History)-1].Location = u.Location
		}
		return o, nil
	}

	next, err := domain.ParseStatus(u.Status)
	if err != nil {
		return nil, invalid("unknown status %q", u.Status)
	}
	cur := o.CurrentStatus()
	if !cur.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur, next)
	}

	entry := domain.StatusEntry{
		Status:   next,
		At:       t.now().UTC(),
		Actor:    actor,
		Location: u.Location,
		Note:     u.Note,
	}
	ok, err := t.orders.AppendHistory(ctx, orderID, cur, entry, &tr)
	if err != nil {
		return nil, fmt.Errorf("%w: append history: %v", ErrPersistence, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: order changed concurrently", ErrInvalidTransition)
	}
	o.History = append(o.History, entry)
	o.Tracking = tr

	logging.FromCtx(ctx).Info("order status updated", "order_id", orderID, "from", cur, "to", next, "actor", actor)
	t.writer.notify(ctx, NotifyStatusChanged, o)
	return o, nil
}

func (t *Tracking) GetTracking(ctx context.Context, v Viewer, orderID string) (*TrackingView, error) {
	o, err := t.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !v.CanSee(o) {
		return nil, ErrOrderNotFound
	}

	view := &TrackingView{
		OrderID:           o.ID,
		CurrentStatus:     o.CurrentStatus(),
		LastUpdated:       o.LastUpdated(),
		History:           o.History,
		EstimatedDelivery: o.Tracking.EstimatedDelivery,
		TrackingNumber:    o.Tracking.TrackingNumber,
		Courier:           o.Tracking.Courier,
		Payment: PaymentSummary{
			Status: "due_on_delivery",
			Method: string(o.PaymentMethod),
			Amount: o.TotalAmount,
		},
	}
	txn, err := t.payments.GetByOrderID(ctx, o.ID)
	switch {
	case err == nil:
		view.Payment = PaymentSummary{Status: string(txn.Status), Method: string(txn.Method), Amount: txn.Amount}
	case errors.Is(err, ErrNotFound):
		if o.PaymentMethod == domain.PaymentCOD && o.CurrentStatus() == domain.StatusDelivered {
			view.Payment.Status = "collected"
		}
	default:
		return nil, fmt.Errorf("%w: load payment: %v", ErrPersistence, err)
	}
	return view, nil
}
