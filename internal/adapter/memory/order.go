package memory

import (
	"context"
	"time"

	domain "github.com/aq2208/gorder-bookstore/internal/entity"
	"github.com/aq2208/gorder-bookstore/internal/usecase"
)

type OrderRepo struct{ s *Store }

func (r *OrderRepo) Create(_ context.Context, o *domain.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.orders[o.ID]; ok {
		return usecase.ErrConflict
	}
	r.s.orders[o.ID] = copyOrder(*o)
	r.s.seq = append(r.s.seq, o.ID)
	return nil
}

func (r *OrderRepo) GetByID(_ context.Context, id string) (*domain.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	o, ok := r.s.orders[id]
	if !ok {
		return nil, usecase.ErrOrderNotFound
	}
	o = copyOrder(o)
	return &o, nil
}

func (r *OrderRepo) ListByAccount(_ context.Context, accountID string) ([]domain.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.Order
	for _, id := range r.s.seq {
		if o := r.s.orders[id]; o.AccountID == accountID {
			out = append(out, copyOrder(o))
		}
	}
	return out, nil
}

// ListAll pages newest first.
func (r *OrderRepo) ListAll(_ context.Context, limit, offset int) ([]domain.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []domain.Order{}
	for i := len(r.s.seq) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, copyOrder(r.s.orders[r.s.seq[i]]))
	}
	return out, nil
}

func (r *OrderRepo) AppendHistory(_ context.Context, id string, expect domain.Status, e domain.StatusEntry, tr *domain.Tracking) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return false, usecase.ErrOrderNotFound
	}
	if o.CurrentStatus() != expect {
		return false, nil
	}
	o = copyOrder(o)
	o.History = append(o.History, e)
	if tr != nil {
		o.Tracking = copyTracking(*tr)
	}
	r.s.orders[id] = o
	return true, nil
}

func (r *OrderRepo) AnnotateLast(_ context.Context, id, location string, tr *domain.Tracking) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return usecase.ErrOrderNotFound
	}
	o = copyOrder(o)
	if location != "" && len(o.History) > 0 {
		o.History[len(o.History)-1].Location = location
	}
	if tr != nil {
		o.Tracking = copyTracking(*tr)
	}
	r.s.orders[id] = o
	return nil
}

func copyTracking(tr domain.Tracking) domain.Tracking {
	if tr.EstimatedDelivery != nil {
		eta := *tr.EstimatedDelivery
		tr.EstimatedDelivery = &eta
	}
	return tr
}

type StockLedger struct{ s *Store }

// Apply validates every line before touching any counter so a short line leaves stock unchanged.
func (l *StockLedger) Apply(_ context.Context, orderID string) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	o, ok := l.s.orders[orderID]
	if !ok {
		return usecase.ErrOrderNotFound
	}
	if o.StockState != domain.StockPending {
		return nil
	}

	need := make(map[string]int, len(o.Lines))
	for _, line := range o.Lines {
		need[line.ItemID] += line.Quantity
	}
	for id, qty := range need {
		it, ok := l.s.items[id]
		if !ok || !it.Covers(qty) {
			return usecase.ErrInsufficientStock
		}
	}
	for id, qty := range need {
		it := l.s.items[id]
		it.Stock -= qty
		l.s.items[id] = it
	}
	o.StockState = domain.StockApplied
	l.s.orders[orderID] = o
	return nil
}

func (l *StockLedger) Settle(_ context.Context, orderID string, to domain.StockState) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	o, ok := l.s.orders[orderID]
	if !ok {
		return usecase.ErrOrderNotFound
	}
	if o.StockState == domain.StockPending {
		o.StockState = to
		l.s.orders[orderID] = o
	}
	return nil
}

func (l *StockLedger) Pending(_ context.Context, createdBefore time.Time, limit int) ([]string, error) {
	l.s.mu.RLock()
	defer l.s.mu.RUnlock()
	var out []string
	for _, id := range l.s.seq {
		o := l.s.orders[id]
		if o.StockState == domain.StockPending && o.CreatedAt.Before(createdBefore) {
			out = append(out, id)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

var (
	_ usecase.OrderRepo   = (*OrderRepo)(nil)
	_ usecase.StockLedger = (*StockLedger)(nil)
)
