package usecase

import (
	"context"
	"errors"
	"time"

	domain "github.com/aq2208/gorder-bookstore/internal/entity"
	"github.com/aq2208/gorder-bookstore/internal/logging"
	"github.com/aq2208/gorder-bookstore/internal/metrics"
)

type ReconcileReport struct {
	Applied int
	Short   int
	Failed  int
}

// StockReconciler finishes stock decrements left pending after their order was written.
type StockReconciler struct {
	stock StockLedger
	grace time.Duration
	batch int
	now   func() time.Time
}

func NewStockReconciler(stock StockLedger, grace time.Duration, batch int) *StockReconciler {
	if batch <= 0 {
		batch = 100
	}
	return &StockReconciler{stock: stock, grace: grace, batch: batch, now: time.Now}
}

func (r *StockReconciler) RunOnce(ctx context.Context) (ReconcileReport, error) {
	var rep ReconcileReport
	log := logging.FromCtx(ctx)

	ids, err := r.stock.Pending(ctx, r.now().Add(-r.grace), r.batch)
	if err != nil {
		return rep, err
	}
	for _, id := range ids {
		err := r.stock.Apply(ctx, id)
		switch {
		case err == nil:
			rep.Applied++
			metrics.StockReconciled.WithLabelValues("applied").Inc()
		case errors.Is(err, ErrInsufficientStock):
			rep.Short++
			metrics.StockReconciled.WithLabelValues("short").Inc()
			if serr := r.stock.Settle(ctx, id, domain.StockShort); serr != nil {
				log.Error("flag short order", "order_id", id, "err", serr)
			}
			log.Error("pending order short on stock", "order_id", id)
		default:
			rep.Failed++
			metrics.StockReconciled.WithLabelValues("failed").Inc()
			log.Warn("stock reconcile failed", "order_id", id, "err", err)
		}
	}
	return rep, nil
}
