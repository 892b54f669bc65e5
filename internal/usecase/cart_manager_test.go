package usecase_test

import (
	"context"
	"sync"
	"testing"

	"github.com/aq2208/gorder-bookstore/internal/usecase"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartManager_GetCartCreatesEmptyCart(t *testing.T) {
	f := newFixture(t)
	view, err := f.carts.GetCart(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.Empty(t, view.Items)
	assert.True(t, view.Total.IsZero())

	_, err = f.store.Carts().Load(context.Background(), "acc-1")
	assert.NoError(t, err)
}

func TestCartManager_AddMergesLinesAndTotals(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.carts.AddItem(ctx, "acc-1", "book-1", 1)
	require.NoError(t, err)
	view, err := f.carts.AddItem(ctx, "acc-1", "book-1", 1)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 2, view.Items[0].Quantity)
	assert.Equal(t, "Operating Systems", view.Items[0].Title)
	assert.Equal(t, 5, view.Items[0].Stock)
	assert.True(t, view.Total.Equal(decimal.RequireFromString("598")))

	view, err = f.carts.AddItem(ctx, "acc-1", "book-2", 1)
	require.NoError(t, err)
	assert.Len(t, view.Items, 2)
	assert.True(t, view.Total.Equal(decimal.RequireFromString("1048.50")))
}

func TestCartManager_PriceCapturedAtAddTime(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.carts.AddItem(ctx, "acc-1", "book-1", 1)
	require.NoError(t, err)

	it, _ := f.store.Inventory().GetItem(ctx, "book-1")
	it.UnitPrice = decimal.RequireFromString("999")
	f.store.Seed(*it)

	view, err := f.carts.GetCart(ctx, "acc-1")
	require.NoError(t, err)
	assert.True(t, view.Total.Equal(decimal.RequireFromString("299")))
}

func TestCartManager_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.carts.AddItem(ctx, "acc-1", "book-1", 0)
	assert.ErrorIs(t, err, usecase.ErrValidation)

	_, err = f.carts.AddItem(ctx, "acc-1", "missing", 1)
	assert.ErrorIs(t, err, usecase.ErrNotFound)

	_, err = f.carts.RemoveItem(ctx, "acc-1", "missing")
	assert.ErrorIs(t, err, usecase.ErrCartLineNotFound)

	view, err := f.carts.AddItem(ctx, "acc-1", "book-1", 1)
	require.NoError(t, err)
	_, err = f.carts.UpdateQuantity(ctx, "acc-1", view.Items[0].ID, 0)
	assert.ErrorIs(t, err, usecase.ErrValidation)
}

func TestCartManager_UpdateQuantityChecksLiveStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	view, err := f.carts.AddItem(ctx, "acc-1", "book-2", 1)
	require.NoError(t, err)
	lineID := view.Items[0].ID

	_, err = f.carts.UpdateQuantity(ctx, "acc-1", lineID, 4)
	assert.ErrorIs(t, err, usecase.ErrInsufficientStock)

	view, err = f.carts.GetCart(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, 1, view.Items[0].Quantity)

	view, err = f.carts.UpdateQuantity(ctx, "acc-1", "book-2", 3)
	require.NoError(t, err)
	assert.True(t, view.Total.Equal(decimal.RequireFromString("1351.50")))
}

func TestCartManager_RemoveByLineOrItemAndClear(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, _ = f.carts.AddItem(ctx, "acc-1", "book-1", 1)
	view, err := f.carts.AddItem(ctx, "acc-1", "book-2", 2)
	require.NoError(t, err)

	view, err = f.carts.RemoveItem(ctx, "acc-1", view.Items[0].ID)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.True(t, view.Total.Equal(decimal.RequireFromString("901")))

	view, err = f.carts.RemoveItem(ctx, "acc-1", "book-2")
	require.NoError(t, err)
	assert.Empty(t, view.Items)
	assert.True(t, view.Total.IsZero())

	_, _ = f.carts.AddItem(ctx, "acc-1", "book-1", 1)
	view, err = f.carts.Clear(ctx, "acc-1")
	require.NoError(t, err)
	assert.Empty(t, view.Items)
	view, err = f.carts.Clear(ctx, "acc-1")
	require.NoError(t, err)
	assert.True(t, view.Total.IsZero())
}

func TestCartManager_ConcurrentAddsKeepTotalConsistent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			item := "book-1"
			if i%2 == 0 {
				item = "book-2"
			}
			_, err := f.carts.AddItem(ctx, "acc-1", item, 1)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	cart, err := f.store.Carts().Load(ctx, "acc-1")
	require.NoError(t, err)
	sum := decimal.Zero
	qty := 0
	for _, l := range cart.Lines {
		sum = sum.Add(l.Subtotal())
		qty += l.Quantity
	}
	assert.Equal(t, 20, qty)
	assert.True(t, cart.Total.Equal(sum))
	assert.True(t, sum.Equal(decimal.RequireFromString("7495")))
}
