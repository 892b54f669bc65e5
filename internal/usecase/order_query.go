package usecase

import (
	"context"
	"fmt"
	"sort"

	domain "github.com/aq2208/gorder-bookstore/internal/entity"
	"github.com/aq2208/gorder-bookstore/internal/logging"
	"github.com/shopspring/decimal"
)

// Viewer is the authenticated caller of a read.
type Viewer struct {
	AccountID string
	Admin     bool
}

func (v Viewer) CanSee(o *domain.Order) bool {
	return v.Admin || (v.AccountID != "" && v.AccountID == o.AccountID)
}

type OrderStats struct {
	Total    int                   `json:"total"`
	ByStatus map[domain.Status]int `json:"byStatus"`
	Revenue  decimal.Decimal       `json:"revenue"`
}

type InventoryReport struct {
	Items      int                    `json:"items"`
	TotalStock int                    `json:"totalStock"`
	LowStock   []domain.InventoryItem `json:"lowStock"`
	OutOfStock int                    `json:"outOfStock"`
}

type OrderQuery struct {
	orders OrderRepo
	items  InventoryRepo
}

func NewOrderQuery(orders OrderRepo, items InventoryRepo) *OrderQuery {
	return &OrderQuery{orders: orders, items: items}
}

// ListMine returns the account's orders, newest first.
func (q *OrderQuery) ListMine(ctx context.Context, accountID string) ([]domain.Order, error) {
	out, err := q.orders.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("%w: list orders: %v", ErrPersistence, err)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// GetOrder hides orders the viewer may not see behind ErrOrderNotFound.
func (q *OrderQuery) GetOrder(ctx context.Context, v Viewer, id string) (*domain.Order, error) {
	o, err := q.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !v.CanSee(o) {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

func (q *OrderQuery) ListAll(ctx context.Context, limit, offset int) ([]domain.Order, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	out, err := q.orders.ListAll(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list orders: %v", ErrPersistence, err)
	}
	return out, nil
}

// Stats groups every order by its derived current status. Cancelled orders do not count as revenue.
func (q *OrderQuery) Stats(ctx context.Context) (*OrderStats, error) {
	st := &OrderStats{ByStatus: map[domain.Status]int{}, Revenue: decimal.Zero}
	const page = 200
	for offset := 0; ; offset += page {
		batch, err := q.orders.ListAll(ctx, page, offset)
		if err != nil {
			return nil, fmt.Errorf("%w: list orders: %v", ErrPersistence, err)
		}
		for i := range batch {
			s := batch[i].CurrentStatus()
			st.Total++
			st.ByStatus[s]++
			if s != domain.StatusCancelled {
				st.Revenue = st.Revenue.Add(batch[i].TotalAmount)
			}
		}
		if len(batch) < page {
			return st, nil
		}
	}
}

func (q *OrderQuery) Inventory(ctx context.Context) (*InventoryReport, error) {
	items, err := q.items.ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list items: %v", ErrPersistence, err)
	}
	rep := &InventoryReport{Items: len(items), LowStock: []domain.InventoryItem{}}
	for _, it := range items {
		rep.TotalStock += it.Stock
		if it.Stock == 0 {
			rep.OutOfStock++
		}
		if it.LowStock() {
			rep.LowStock = append(rep.LowStock, it)
		}
	}
	return rep, nil
}

// SetStock overwrites an item's stock counter.
func (q *OrderQuery) SetStock(ctx context.Context, itemID string, stock int) (*domain.InventoryItem, error) {
	if stock < 0 {
		return nil, invalid("%v", domain.ErrNegativeStock)
	}
	if err := q.items.SetStock(ctx, itemID, stock); err != nil {
		return nil, err
	}
	logging.FromCtx(ctx).Info("stock set", "item_id", itemID, "stock", stock)
	return q.items.GetItem(ctx, itemID)
}
