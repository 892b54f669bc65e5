package usecase

import (
	"context"
	"time"

	domain "github.com/aq2208/gorder-bookstore/internal/entity"
	"github.com/shopspring/decimal"
)

type InventoryRepo interface {
	GetItem(ctx context.Context, id string) (*domain.InventoryItem, error)
	// GetItems returns the items found; missing ids are simply absent from the map.
	GetItems(ctx context.Context, ids []string) (map[string]domain.InventoryItem, error)
	SetStock(ctx context.Context, id string, stock int) error
	ListItems(ctx context.Context) ([]domain.InventoryItem, error)
}

type CartRepo interface {
	// Load returns ErrNotFound when the account has no cart yet.
	Load(ctx context.Context, accountID string) (*domain.Cart, error)
	Save(ctx context.Context, c *domain.Cart) error
}

type OrderRepo interface {
	Create(ctx context.Context, o *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	ListByAccount(ctx context.Context, accountID string) ([]domain.Order, error)
	ListAll(ctx context.Context, limit, offset int) ([]domain.Order, error)
	// AppendHistory appends e only while the current status is still expect.
	AppendHistory(ctx context.Context, id string, expect domain.Status, e domain.StatusEntry, tr *domain.Tracking) (bool, error)
	// AnnotateLast sets the location of the most recent history entry.
	AnnotateLast(ctx context.Context, id, location string, tr *domain.Tracking) error
}

// StockLedger applies an order's stock decrement exactly once.
type StockLedger interface {
	// Apply decrements stock for every line of the order, all or nothing, when the
	// order is still pending. It returns ErrInsufficientStock without changes
	// when any line is short.
	Apply(ctx context.Context, orderID string) error
	// Settle moves a pending order to a final stock state without decrementing.
	Settle(ctx context.Context, orderID string, to domain.StockState) error
	Pending(ctx context.Context, createdBefore time.Time, limit int) ([]string, error)
}

type PaymentRepo interface {
	Create(ctx context.Context, t *domain.PaymentTransaction) error
	GetByMerchantID(ctx context.Context, merchantTxnID string) (*domain.PaymentTransaction, error)
	GetByOrderID(ctx context.Context, orderID string) (*domain.PaymentTransaction, error)
	// UpdateStatusIf moves the transaction from -> to and stores the provider id.
	UpdateStatusIf(ctx context.Context, merchantTxnID string, from, to domain.TxnStatus, providerTxnID string) (bool, error)
	// LinkOrder sets the order id only if none is linked yet.
	LinkOrder(ctx context.Context, merchantTxnID, orderID string) (bool, error)
}

type IdempotencyStore interface {
	TryLock(ctx context.Context, scope, key string) (bool, error)
	Release(ctx context.Context, scope, key string) error
	Remember(ctx context.Context, scope, key, value string) error
	Recall(ctx context.Context, scope, key string) (string, bool, error)
}

// KeyedStore holds short-lived records that expire on their own.
type KeyedStore interface {
	Put(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error
}

type ProviderOrder struct {
	ID     string
	Status string
}

type CaptureResult struct {
	OrderID   string          `json:"orderId"`
	CaptureID string          `json:"captureId"`
	Status    string          `json:"status"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
}

type PaymentProvider interface {
	CreateOrder(ctx context.Context, amount decimal.Decimal, currency string) (ProviderOrder, error)
	Capture(ctx context.Context, providerOrderID string) (CaptureResult, error)
}

type Notifier interface {
	Notify(ctx context.Context, msg NotificationMsg) error
}

type ChecksumVerifier interface {
	Verify(body []byte, header string) error
}
