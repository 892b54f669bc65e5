package memory

import (
	"context"

	domain "github.com/aq2208/gorder-bookstore/internal/entity"
	"github.com/aq2208/gorder-bookstore/internal/usecase"
)

type CartRepo struct{ s *Store }

func (r *CartRepo) Load(_ context.Context, accountID string) (*domain.Cart, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.carts[accountID]
	if !ok {
		return nil, usecase.ErrNotFound
	}
	c = copyCart(c)
	return &c, nil
}

func (r *CartRepo) Save(_ context.Context, c *domain.Cart) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.carts[c.AccountID] = copyCart(*c)
	return nil
}

var _ usecase.CartRepo = (*CartRepo)(nil)
