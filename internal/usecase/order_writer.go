package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/aq2208/gorder-bookstore/internal/entity"
	"github.com/aq2208/gorder-bookstore/internal/logging"
	"github.com/aq2208/gorder-bookstore/internal/metrics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PlaceOrderInput struct {
	AccountID       string
	Email           string
	ShippingAddress domain.ShippingAddress
	PaymentMethod   domain.PaymentMethod
}

// orderDraft is everything needed to write an order, whatever path produced it.
type orderDraft struct {
	ID              string
	AccountID       string
	Email           string
	Lines           []domain.OrderLine
	Total           decimal.Decimal
	ShippingAddress domain.ShippingAddress
	Method          domain.PaymentMethod
	Actor           string
	Note            string
	// CancelOnShort cancels the order when stock ran out between check and decrement.
	// Paid orders are kept and flagged instead.
	CancelOnShort bool
}

type OrderWriter struct {
	carts    *CartManager
	items    InventoryRepo
	orders   OrderRepo
	stock    StockLedger
	notifier Notifier
	now      func() time.Time
}

func NewOrderWriter(carts *CartManager, items InventoryRepo, orders OrderRepo, stock StockLedger, notifier Notifier) *OrderWriter {
	return &OrderWriter{carts: carts, items: items, orders: orders, stock: stock, notifier: notifier, now: time.Now}
}

// PlaceOrder turns the account's cart into a cash-on-delivery order.
func (w *OrderWriter) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*domain.Order, error) {
	if in.PaymentMethod != domain.PaymentCOD {
		return nil, invalid("payment method %q is not settled at checkout", in.PaymentMethod)
	}
	if err := in.ShippingAddress.Validate(); err != nil {
		return nil, invalid("%v", err)
	}

	var order *domain.Order
	err := w.carts.withCart(ctx, in.AccountID, func(cart *domain.Cart) error {
		if cart.IsEmpty() {
			return ErrEmptyCart
		}
		lines := cart.Snapshot()
		if err := w.checkStock(ctx, lines); err != nil {
			return err
		}

		o, err := w.createOrder(ctx, orderDraft{
			AccountID:       in.AccountID,
			Email:           in.Email,
			Lines:           lines,
			Total:           cart.Total,
			ShippingAddress: in.ShippingAddress,
			Method:          in.PaymentMethod,
			Actor:           in.AccountID,
			CancelOnShort:   true,
		})
		if err != nil {
			return err
		}
		order = o

		cart.Clear()
		if err := w.carts.persist(ctx, cart); err != nil {
			logging.FromCtx(ctx).Error("clear cart after order", "order_id", o.ID, "err", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	w.notify(ctx, NotifyOrderConfirmed, order)
	return order, nil
}

// checkStock verifies live stock for every line and fills in titles.
func (w *OrderWriter) checkStock(ctx context.Context, lines []domain.OrderLine) error {
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ItemID)
	}
	items, err := w.items.GetItems(ctx, ids)
	if err != nil {
		return fmt.Errorf("%w: load items: %v", ErrPersistence, err)
	}
	for i, l := range lines {
		it, ok := items[l.ItemID]
		if !ok {
			return fmt.Errorf("%w: %s", ErrItemNotFound, l.ItemID)
		}
		if !it.Covers(l.Quantity) {
			return fmt.Errorf("%w: %s has %d, %d requested", ErrInsufficientStock, it.Title, it.Stock, l.Quantity)
		}
		lines[i].Title = it.Title
	}
	return nil
}

// createOrder writes the order first and applies stock second. Once the order row
// exists the call does not fail on stock persistence errors: the decrement stays
// pending and the stock reconciler retries it.
func (w *OrderWriter) createOrder(ctx context.Context, d orderDraft) (*domain.Order, error) {
	log := logging.FromCtx(ctx)
	now := w.now().UTC()

	id := d.ID
	if id == "" {
		id = uuid.NewString()
	}
	o := &domain.Order{
		ID:              id,
		AccountID:       d.AccountID,
		ContactEmail:    d.Email,
		Lines:           d.Lines,
		TotalAmount:     d.Total,
		ShippingAddress: d.ShippingAddress,
		PaymentMethod:   d.Method,
		StockState:      domain.StockPending,
		CreatedAt:       now,
		History: []domain.StatusEntry{{
			Status: d.Method.InitialStatus(),
			At:     now,
			Actor:  d.Actor,
			Note:   d.Note,
		}},
	}
	if err := o.Validate(); err != nil {
		return nil, invalid("%v", err)
	}

	if err := w.orders.Create(ctx, o); err != nil {
		if errors.Is(err, ErrConflict) && d.ID != "" {
			existing, gerr := w.orders.GetByID(ctx, d.ID)
			if gerr == nil {
				log.Info("order already written", "order_id", d.ID)
				return existing, nil
			}
		}
		log.Error("order write failed", "account", d.AccountID, "method", d.Method, "err", err)
		return nil, fmt.Errorf("%w: %v", ErrOrderWriteFailed, err)
	}
	metrics.OrdersPlaced.WithLabelValues(string(o.PaymentMethod)).Inc()

	err := w.stock.Apply(ctx, o.ID)
	switch {
	case err == nil:
		o.StockState = domain.StockApplied
	case errors.Is(err, ErrInsufficientStock) && d.CancelOnShort:
		return nil, w.cancelShort(ctx, o, err)
	case errors.Is(err, ErrInsufficientStock):
		if serr := w.stock.Settle(ctx, o.ID, domain.StockShort); serr != nil {
			log.Error("flag short order", "order_id", o.ID, "err", serr)
		}
		o.StockState = domain.StockShort
		log.Error("paid order short on stock", "order_id", o.ID, "err", err)
	default:
		log.Warn("stock decrement deferred to reconciler", "order_id", o.ID, "err", err)
	}

	log.Info("order created", "order_id", o.ID, "method", o.PaymentMethod, "total", o.TotalAmount.String())
	return o, nil
}

// cancelShort releases the saga and records the cancellation for an order
// that lost the race for stock.
func (w *OrderWriter) cancelShort(ctx context.Context, o *domain.Order, cause error) error {
	log := logging.FromCtx(ctx)
	if err := w.stock.Settle(ctx, o.ID, domain.StockReleased); err != nil {
		log.Error("release stock saga", "order_id", o.ID, "err", err)
	}
	entry := domain.StatusEntry{
		Status: domain.StatusCancelled,
		At:     w.now().UTC(),
		Actor:  "system",
		Note:   "insufficient stock",
	}
	if _, err := w.orders.AppendHistory(ctx, o.ID, o.CurrentStatus(), entry, nil); err != nil {
		log.Error("cancel short order", "order_id", o.ID, "err", err)
	}
	return cause
}

func (w *OrderWriter) notify(ctx context.Context, kind NotificationKind, o *domain.Order) {
	if w.notifier == nil {
		return
	}
	if err := w.notifier.Notify(ctx, newNotification(kind, o)); err != nil {
		metrics.NotifierFailures.Inc()
		logging.FromCtx(ctx).Warn("notification failed", "order_id", o.ID, "kind", kind, "err", err)
	}
}
