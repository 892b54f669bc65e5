package memory

import (
	"context"
	"time"

	domain "github.com/aq2208/gorder-bookstore/internal/entity"
	"github.com/aq2208/gorder-bookstore/internal/usecase"
)

type PaymentRepo struct{ s *Store }

func (r *PaymentRepo) Create(_ context.Context, t *domain.PaymentTransaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.payments[t.MerchantTxnID]; ok {
		return usecase.ErrConflict
	}
	r.s.payments[t.MerchantTxnID] = copyTxn(*t)
	if t.OrderID != "" {
		r.s.byOrder[t.OrderID] = t.MerchantTxnID
	}
	return nil
}

func (r *PaymentRepo) GetByMerchantID(_ context.Context, id string) (*domain.PaymentTransaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.payments[id]
	if !ok {
		return nil, usecase.ErrTransactionNotFound
	}
	t = copyTxn(t)
	return &t, nil
}

func (r *PaymentRepo) GetByOrderID(_ context.Context, orderID string) (*domain.PaymentTransaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.byOrder[orderID]
	if !ok {
		return nil, usecase.ErrTransactionNotFound
	}
	t := copyTxn(r.s.payments[id])
	return &t, nil
}

func (r *PaymentRepo) UpdateStatusIf(_ context.Context, id string, from, to domain.TxnStatus, providerTxnID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.payments[id]
	if !ok || t.Status != from {
		return false, nil
	}
	t.Status = to
	if providerTxnID != "" {
		t.ProviderTxnID = providerTxnID
	}
	t.UpdatedAt = time.Now().UTC()
	r.s.payments[id] = t
	return true, nil
}

func (r *PaymentRepo) LinkOrder(_ context.Context, id, orderID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.payments[id]
	if !ok {
		return false, usecase.ErrTransactionNotFound
	}
	if t.OrderID != "" {
		return false, nil
	}
	t.OrderID = orderID
	t.UpdatedAt = time.Now().UTC()
	r.s.payments[id] = t
	r.s.byOrder[orderID] = id
	return true, nil
}

var _ usecase.PaymentRepo = (*PaymentRepo)(nil)
