package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersPlaced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookstore_orders_placed_total",
			Help: "Orders created, by payment method",
		},
		[]string{"method"},
	)

	PaymentCallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookstore_payment_callbacks_total",
			Help: "Provider callbacks, by outcome",
		},
		[]string{"result"},
	)

	NotifierFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bookstore_notifier_failures_total",
			Help: "Notifications that could not be handed off",
		},
	)

	StockReconciled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookstore_stock_reconciled_total",
			Help: "Pending stock decrements settled by the reconciler, by outcome",
		},
		[]string{"result"},
	)
)
