package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aq2208/gorder-bookstore/configs"
	"github.com/aq2208/gorder-bookstore/internal/adapter/memory"
	domain "github.com/aq2208/gorder-bookstore/internal/entity"
	"github.com/aq2208/gorder-bookstore/internal/security"
	"github.com/aq2208/gorder-bookstore/internal/usecase"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []usecase.NotificationMsg
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, msg usecase.NotificationMsg) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
	return n.err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.msgs)
}

type fakeProvider struct {
	captureErr error
	amount     decimal.Decimal
	captures   int
}

func (p *fakeProvider) CreateOrder(_ context.Context, amount decimal.Decimal, _ string) (usecase.ProviderOrder, error) {
	p.amount = amount
	return usecase.ProviderOrder{ID: "PAY-1", Status: "CREATED"}, nil
}

func (p *fakeProvider) Capture(_ context.Context, id string) (usecase.CaptureResult, error) {
	p.captures++
	if p.captureErr != nil {
		return usecase.CaptureResult{}, p.captureErr
	}
	return usecase.CaptureResult{OrderID: id, CaptureID: "CAP-1", Status: "COMPLETED", Amount: p.amount, Currency: "INR"}, nil
}

// failingOrders fails Create while fail is set.
type failingOrders struct {
	usecase.OrderRepo
	fail bool
}

func (f *failingOrders) Create(ctx context.Context, o *domain.Order) error {
	if f.fail {
		return errors.New("connection reset")
	}
	return f.OrderRepo.Create(ctx, o)
}

// flakyStock fails Apply once with a persistence error.
type flakyStock struct {
	usecase.StockLedger
	failures int
}

func (f *flakyStock) Apply(ctx context.Context, id string) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("deadlock found")
	}
	return f.StockLedger.Apply(ctx, id)
}

type fixture struct {
	store    *memory.Store
	orders   *failingOrders
	stock    *flakyStock
	notifier *recordingNotifier
	provider *fakeProvider
	checksum security.ChecksumService
	carts    *usecase.CartManager
	writer   *usecase.OrderWriter
	payments *usecase.PaymentReconciler
	tracking *usecase.Tracking
	query    *usecase.OrderQuery
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	store.Seed(
		domain.InventoryItem{ID: "book-1", Kind: domain.KindBook, Title: "Operating Systems", UnitPrice: decimal.RequireFromString("299"), Stock: 5},
		domain.InventoryItem{ID: "book-2", Kind: domain.KindBook, Title: "Compilers", UnitPrice: decimal.RequireFromString("450.50"), Stock: 3},
		domain.InventoryItem{ID: "wb-1", Kind: domain.KindWorkbook, Title: "Calculus Workbook", UnitPrice: decimal.RequireFromString("120"), Stock: 1},
	)

	var cfg configs.Config
	cfg.Gateway.SaltKey = "test-salt"
	cfg.Gateway.SaltIndex = "1"
	cm, err := security.NewChecksumMaterial(cfg)
	require.NoError(t, err)
	cs, err := security.NewChecksumService(cm)
	require.NoError(t, err)

	f := &fixture{
		store:    store,
		orders:   &failingOrders{OrderRepo: store.Orders()},
		stock:    &flakyStock{StockLedger: store.Stock()},
		notifier: &recordingNotifier{},
		provider: &fakeProvider{},
		checksum: cs,
	}
	f.carts = usecase.NewCartManager(store.Carts(), store.Inventory())
	f.writer = usecase.NewOrderWriter(f.carts, store.Inventory(), f.orders, f.stock, f.notifier)
	f.payments = usecase.NewPaymentReconciler(
		f.writer, f.carts, store.Inventory(), store.Payments(), f.provider,
		memory.NewKeyedStore(time.Minute), memory.NewIdempotencyStore(time.Minute), cs,
		usecase.ReconcilerConfig{Currency: "INR", RedirectURL: "http://shop.local/payment/success"},
	)
	f.tracking = usecase.NewTracking(f.orders, store.Payments(), f.writer)
	f.query = usecase.NewOrderQuery(f.orders, store.Inventory())
	return f
}

func (f *fixture) stockOf(t *testing.T, id string) int {
	t.Helper()
	it, err := f.store.Inventory().GetItem(context.Background(), id)
	require.NoError(t, err)
	return it.Stock
}

func address() domain.ShippingAddress {
	return domain.ShippingAddress{Street: "1 College Rd", City: "Pune", State: "MH", PinCode: "411001", Phone: "9999999999"}
}
