package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	domain "github.com/aq2208/gorder-bookstore/internal/entity"
	"github.com/aq2208/gorder-bookstore/internal/usecase"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func codInput(account string) usecase.PlaceOrderInput {
	return usecase.PlaceOrderInput{
		AccountID:       account,
		Email:           account + "@uni.edu",
		ShippingAddress: address(),
		PaymentMethod:   domain.PaymentCOD,
	}
}

func TestPlaceOrder_CashOnDelivery(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.carts.AddItem(ctx, "acc-1", "book-1", 2)
	require.NoError(t, err)

	order, err := f.writer.PlaceOrder(ctx, codInput("acc-1"))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPending, order.CurrentStatus())
	require.Len(t, order.History, 1)
	assert.Equal(t, "acc-1", order.History[0].Actor)
	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("598")))
	assert.Equal(t, "Operating Systems", order.Lines[0].Title)
	assert.Equal(t, domain.StockApplied, order.StockState)
	assert.Equal(t, 3, f.stockOf(t, "book-1"))

	view, err := f.carts.GetCart(ctx, "acc-1")
	require.NoError(t, err)
	assert.Empty(t, view.Items)
	assert.True(t, view.Total.IsZero())

	require.Equal(t, 1, f.notifier.count())
	assert.Equal(t, usecase.NotifyOrderConfirmed, f.notifier.msgs[0].Kind)
	assert.Equal(t, "acc-1@uni.edu", f.notifier.msgs[0].Email)
}

func TestPlaceOrder_EmptyCart(t *testing.T) {
	f := newFixture(t)
	_, err := f.writer.PlaceOrder(context.Background(), codInput("acc-1"))
	assert.ErrorIs(t, err, usecase.ErrEmptyCart)
	assert.Zero(t, f.notifier.count())
}

func TestPlaceOrder_RejectsBadInput(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, _ = f.carts.AddItem(ctx, "acc-1", "book-1", 1)

	in := codInput("acc-1")
	in.ShippingAddress.City = ""
	_, err := f.writer.PlaceOrder(ctx, in)
	assert.ErrorIs(t, err, usecase.ErrValidation)

	in = codInput("acc-1")
	in.PaymentMethod = domain.PaymentProviderHosted
	_, err = f.writer.PlaceOrder(ctx, in)
	assert.ErrorIs(t, err, usecase.ErrValidation)
}

func TestPlaceOrder_InsufficientStockWritesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.carts.AddItem(ctx, "acc-1", "book-2", 3)
	require.NoError(t, err)
	require.NoError(t, f.store.Inventory().SetStock(ctx, "book-2", 2))

	_, err = f.writer.PlaceOrder(ctx, codInput("acc-1"))
	assert.ErrorIs(t, err, usecase.ErrInsufficientStock)

	orders, err := f.query.ListMine(ctx, "acc-1")
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.Equal(t, 2, f.stockOf(t, "book-2"))

	view, _ := f.carts.GetCart(ctx, "acc-1")
	assert.Len(t, view.Items, 1)
}

func TestPlaceOrder_NotifierFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.notifier.err = errors.New("smtp down")
	_, _ = f.carts.AddItem(ctx, "acc-1", "book-1", 1)

	order, err := f.writer.PlaceOrder(ctx, codInput("acc-1"))
	require.NoError(t, err)
	assert.NotEmpty(t, order.ID)
	assert.Equal(t, 1, f.notifier.count())
}

func TestPlaceOrder_OrderWriteFailureLeavesStockAndCart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, _ = f.carts.AddItem(ctx, "acc-1", "book-1", 2)
	f.orders.fail = true

	_, err := f.writer.PlaceOrder(ctx, codInput("acc-1"))
	assert.ErrorIs(t, err, usecase.ErrOrderWriteFailed)
	assert.Equal(t, 5, f.stockOf(t, "book-1"))

	view, _ := f.carts.GetCart(ctx, "acc-1")
	assert.Len(t, view.Items, 1)
}

func TestPlaceOrder_DeferredStockIsReconciled(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, _ = f.carts.AddItem(ctx, "acc-1", "book-1", 2)
	f.stock.failures = 1

	order, err := f.writer.PlaceOrder(ctx, codInput("acc-1"))
	require.NoError(t, err)
	assert.Equal(t, domain.StockPending, order.StockState)
	assert.Equal(t, 5, f.stockOf(t, "book-1"))

	time.Sleep(time.Millisecond)
	rec := usecase.NewStockReconciler(f.store.Stock(), 0, 10)
	rep, err := rec.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Applied)
	assert.Equal(t, 3, f.stockOf(t, "book-1"))

	rep, err = rec.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, rep.Applied)
	assert.Equal(t, 3, f.stockOf(t, "book-1"))
}

func TestPlaceOrder_ConcurrentCheckoutsNeverOversell(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	const buyers = 12
	for i := 0; i < buyers; i++ {
		_, err := f.carts.AddItem(ctx, fmt.Sprintf("acc-%d", i), "wb-1", 1)
		require.NoError(t, err)
	}

	var ok, short atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.writer.PlaceOrder(ctx, codInput(fmt.Sprintf("acc-%d", i)))
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, usecase.ErrInsufficientStock):
				short.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(buyers-1), short.Load())
	assert.Equal(t, 0, f.stockOf(t, "wb-1"))

	all, err := f.query.ListAll(ctx, 100, 0)
	require.NoError(t, err)
	live := 0
	for _, o := range all {
		if o.CurrentStatus() != domain.StatusCancelled {
			live++
		}
	}
	assert.Equal(t, 1, live)
}
