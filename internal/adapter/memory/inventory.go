package memory

import (
	"context"
	"sort"

	domain "github.com/aq2208/gorder-bookstore/internal/entity"
	"github.com/aq2208/gorder-bookstore/internal/usecase"
)

type InventoryRepo struct{ s *Store }

func (r *InventoryRepo) GetItem(_ context.Context, id string) (*domain.InventoryItem, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	it, ok := r.s.items[id]
	if !ok {
		return nil, usecase.ErrItemNotFound
	}
	return &it, nil
}

func (r *InventoryRepo) GetItems(_ context.Context, ids []string) (map[string]domain.InventoryItem, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make(map[string]domain.InventoryItem, len(ids))
	for _, id := range ids {
		if it, ok := r.s.items[id]; ok {
			out[id] = it
		}
	}
	return out, nil
}

func (r *InventoryRepo) SetStock(_ context.Context, id string, stock int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	it, ok := r.s.items[id]
	if !ok {
		return usecase.ErrItemNotFound
	}
	it.Stock = stock
	r.s.items[id] = it
	return nil
}

func (r *InventoryRepo) ListItems(_ context.Context) ([]domain.InventoryItem, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]domain.InventoryItem, 0, len(r.s.items))
	for _, it := range r.s.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

var _ usecase.InventoryRepo = (*InventoryRepo)(nil)
