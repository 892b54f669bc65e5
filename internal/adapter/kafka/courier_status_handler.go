package kafka

import (
	"context"
	"errors"
	"strings"

	domain "github.com/aq2208/gorder-bookstore/internal/entity"
	"github.com/aq2208/gorder-bookstore/internal/usecase"
	"go.uber.org/zap"
)

// StatusUpdater is the tracking operation courier events drive.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, orderID, actor string, u usecase.TrackingUpdate) (*domain.Order, error)
}

// courierStatuses maps courier scan codes onto order statuses.
var courierStatuses = map[string]domain.Status{
	"picked_up":        domain.StatusShipped,
	"in_transit":       domain.StatusShipped,
	"out_for_delivery": domain.StatusShipped,
	"delivered":        domain.StatusDelivered,
	"returned":         domain.StatusCancelled,
	"rto":              domain.StatusCancelled,
}

func mapCourierStatus(s string) (domain.Status, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if st, ok := courierStatuses[s]; ok {
		return st, true
	}
	st, err := domain.ParseStatus(s)
	return st, err == nil
}

type CourierStatusHandler struct {
	tracking StatusUpdater
	log      *zap.Logger
}

func NewCourierStatusHandler(tracking StatusUpdater, log *zap.Logger) *CourierStatusHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &CourierStatusHandler{tracking: tracking, log: log}
}

// Handle applies one courier event. Events that can never apply are logged and
// acknowledged; only storage failures are returned for redelivery.
func (h *CourierStatusHandler) Handle(ctx context.Context, ev usecase.CourierStatusMsg) error {
	log := h.log.With(zap.String("order_id", ev.OrderID), zap.String("courier", ev.Courier), zap.String("status", ev.Status))
	if ev.OrderID == "" {
		log.Warn("courier event without order id")
		return nil
	}
	status, ok := mapCourierStatus(ev.Status)
	if !ok && ev.Status != "" {
		log.Warn("unknown courier status")
		return nil
	}

	actor := "courier"
	if ev.Courier != "" {
		actor = "courier:" + ev.Courier
	}
	upd := usecase.TrackingUpdate{
		Status:            string(status),
		Location:          ev.Location,
		Note:              ev.Note,
		TrackingNumber:    ev.TrackingNumber,
		Courier:           ev.Courier,
		EstimatedDelivery: ev.EstimatedDelivery,
	}

	_, err := h.tracking.UpdateStatus(ctx, ev.OrderID, actor, upd)
	if errors.Is(err, usecase.ErrInvalidTransition) {
		// a repeat scan at the same stage only carries new location facts
		upd.Status = ""
		_, err = h.tracking.UpdateStatus(ctx, ev.OrderID, actor, upd)
	}
	switch {
	case err == nil:
		log.Info("courier event applied")
		return nil
	case errors.Is(err, usecase.ErrNotFound), errors.Is(err, usecase.ErrValidation), errors.Is(err, usecase.ErrInvalidTransition):
		log.Warn("courier event dropped", zap.Error(err))
		return nil
	default:
		return err
	}
}
