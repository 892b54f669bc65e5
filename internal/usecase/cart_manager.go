package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/aq2208/gorder-bookstore/internal/entity"
	"github.com/aq2208/gorder-bookstore/internal/logging"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CartViewLine struct {
	ID       string          `json:"id"`
	ItemID   string          `json:"itemId"`
	Title    string          `json:"title"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	Stock    int             `json:"stock"`
}

type CartView struct {
	AccountID string          `json:"accountId"`
	Items     []CartViewLine  `json:"items"`
	Total     decimal.Decimal `json:"total"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

type CartManager struct {
	carts CartRepo
	items InventoryRepo
	locks *keyedMutex
	now   func() time.Time
}

func NewCartManager(carts CartRepo, items InventoryRepo) *CartManager {
	return &CartManager{carts: carts, items: items, locks: newKeyedMutex(), now: time.Now}
}

func (m *CartManager) AddItem(ctx context.Context, accountID, itemID string, qty int) (*CartView, error) {
	if qty < 1 {
		return nil, invalid("quantity must be at least 1")
	}
	unlock := m.locks.Lock(accountID)
	defer unlock()

	item, err := m.items.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	cart, err := m.load(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if idx := cart.LineForItem(itemID); idx >= 0 {
		cart.Lines[idx].Quantity += qty
	} else {
		cart.Lines = append(cart.Lines, domain.CartLine{
			ID:        uuid.NewString(),
			ItemID:    item.ID,
			Quantity:  qty,
			UnitPrice: item.UnitPrice,
		})
	}
	return m.save(ctx, cart)
}

// RemoveItem drops the line matching ref, which may be a line id or an item id.
func (m *CartManager) RemoveItem(ctx context.Context, accountID, ref string) (*CartView, error) {
	unlock := m.locks.Lock(accountID)
	defer unlock()

	cart, err := m.load(ctx, accountID)
	if err != nil {
		return nil, err
	}
	idx := cart.Find(ref)
	if idx < 0 {
		return nil, ErrCartLineNotFound
	}
	cart.Remove(idx)
	return m.save(ctx, cart)
}

func (m *CartManager) UpdateQuantity(ctx context.Context, accountID, ref string, qty int) (*CartView, error) {
	if qty < 1 {
		return nil, invalid("quantity must be at least 1")
	}
	unlock := m.locks.Lock(accountID)
	defer unlock()

	cart, err := m.load(ctx, accountID)
	if err != nil {
		return nil, err
	}
	idx := cart.Find(ref)
	if idx < 0 {
		return nil, ErrCartLineNotFound
	}
	item, err := m.items.GetItem(ctx, cart.Lines[idx].ItemID)
	if err != nil {
		return nil, err
	}
	if !item.Covers(qty) {
		return nil, fmt.Errorf("%w: %d requested, %d available", ErrInsufficientStock, qty, item.Stock)
	}
	cart.Lines[idx].Quantity = qty
	return m.save(ctx, cart)
}

// Clear empties the cart. Clearing an empty cart is a no-op.
func (m *CartManager) Clear(ctx context.Context, accountID string) (*CartView, error) {
	unlock := m.locks.Lock(accountID)
	defer unlock()

	cart, err := m.load(ctx, accountID)
	if err != nil {
		return nil, err
	}
	cart.Clear()
	return m.save(ctx, cart)
}

func (m *CartManager) GetCart(ctx context.Context, accountID string) (*CartView, error) {
	unlock := m.locks.Lock(accountID)
	defer unlock()

	cart, err := m.load(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return m.project(ctx, cart)
}

// withCart runs fn on the account's cart while holding the account lock.
func (m *CartManager) withCart(ctx context.Context, accountID string, fn func(*domain.Cart) error) error {
	unlock := m.locks.Lock(accountID)
	defer unlock()

	cart, err := m.load(ctx, accountID)
	if err != nil {
		return err
	}
	return fn(cart)
}

// load returns the stored cart, creating an empty one on first use.
func (m *CartManager) load(ctx context.Context, accountID string) (*domain.Cart, error) {
	cart, err := m.carts.Load(ctx, accountID)
	if errors.Is(err, ErrNotFound) {
		cart = domain.NewCart(accountID, m.now())
		if err := m.carts.Save(ctx, cart); err != nil {
			return nil, fmt.Errorf("%w: create cart: %v", ErrPersistence, err)
		}
		logging.FromCtx(ctx).Debug("cart created", "account", accountID)
		return cart, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load cart: %v", ErrPersistence, err)
	}
	cart.Recompute()
	return cart, nil
}

func (m *CartManager) save(ctx context.Context, cart *domain.Cart) (*CartView, error) {
	if err := m.persist(ctx, cart); err != nil {
		return nil, err
	}
	return m.project(ctx, cart)
}

func (m *CartManager) persist(ctx context.Context, cart *domain.Cart) error {
	cart.Recompute()
	cart.UpdatedAt = m.now()
	if err := m.carts.Save(ctx, cart); err != nil {
		return fmt.Errorf("%w: save cart: %v", ErrPersistence, err)
	}
	return nil
}

func (m *CartManager) project(ctx context.Context, cart *domain.Cart) (*CartView, error) {
	ids := make([]string, 0, len(cart.Lines))
	for _, l := range cart.Lines {
		ids = append(ids, l.ItemID)
	}
	items, err := m.items.GetItems(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: load items: %v", ErrPersistence, err)
	}

	view := &CartView{
		AccountID: cart.AccountID,
		Items:     make([]CartViewLine, 0, len(cart.Lines)),
		Total:     cart.Total,
		UpdatedAt: cart.UpdatedAt,
	}
	for _, l := range cart.Lines {
		it := items[l.ItemID]
		view.Items = append(view.Items, CartViewLine{
			ID:       l.ID,
			ItemID:   l.ItemID,
			Title:    it.Title,
			Price:    l.UnitPrice,
			Quantity: l.Quantity,
			Stock:    it.Stock,
		})
	}
	return view, nil
}
