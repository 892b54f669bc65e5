// Package memory keeps every repository in process memory. It backs the
// memory storage driver and the use case tests.
package memory

import (
	"sync"

	domain "github.com/aq2208/gorder-bookstore/internal/entity"
)

type Store struct {
	mu       sync.RWMutex
	items    map[string]domain.InventoryItem
	carts    map[string]domain.Cart
	orders   map[string]domain.Order
	seq      []string
	payments map[string]domain.PaymentTransaction
	byOrder  map[string]string
}

func NewStore() *Store {
	return &Store{
		items:    make(map[string]domain.InventoryItem),
		carts:    make(map[string]domain.Cart),
		orders:   make(map[string]domain.Order),
		payments: make(map[string]domain.PaymentTransaction),
		byOrder:  make(map[string]string),
	}
}

// Seed inserts or replaces inventory items.
func (s *Store) Seed(items ...domain.InventoryItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range items {
		s.items[it.ID] = it
	}
}

func (s *Store) Inventory() *InventoryRepo { return &InventoryRepo{s: s} }
func (s *Store) Carts() *CartRepo          { return &CartRepo{s: s} }
func (s *Store) Orders() *OrderRepo        { return &OrderRepo{s: s} }
func (s *Store) Stock() *StockLedger       { return &StockLedger{s: s} }
func (s *Store) Payments() *PaymentRepo    { return &PaymentRepo{s: s} }

func copyCart(c domain.Cart) domain.Cart {
	c.Lines = append([]domain.CartLine(nil), c.Lines...)
	return c
}

func copyOrder(o domain.Order) domain.Order {
	o.Lines = append([]domain.OrderLine(nil), o.Lines...)
	o.History = append([]domain.StatusEntry(nil), o.History...)
	if o.Tracking.EstimatedDelivery != nil {
		eta := *o.Tracking.EstimatedDelivery
		o.Tracking.EstimatedDelivery = &eta
	}
	return o
}

func copyTxn(t domain.PaymentTransaction) domain.PaymentTransaction {
	t.Lines = append([]domain.OrderLine(nil), t.Lines...)
	return t
}
