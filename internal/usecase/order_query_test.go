package usecase_test

import (
	"context"
	"testing"

	domain "github.com/aq2208/gorder-bookstore/internal/entity"
	"github.com/aq2208/gorder-bookstore/internal/usecase"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderQuery_OwnershipAndListing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	first := f.codOrder(t, "acc-1")
	second := f.codOrder(t, "acc-1")
	f.codOrder(t, "acc-2")

	mine, err := f.query.ListMine(ctx, "acc-1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, second.ID, mine[0].ID)

	_, err = f.query.GetOrder(ctx, usecase.Viewer{AccountID: "acc-2"}, first.ID)
	assert.ErrorIs(t, err, usecase.ErrOrderNotFound)

	got, err := f.query.GetOrder(ctx, usecase.Viewer{Admin: true}, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	all, err := f.query.ListAll(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestOrderQuery_StatsUseDerivedStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.codOrder(t, "acc-1")
	f.codOrder(t, "acc-2")
	_, err := f.tracking.UpdateStatus(ctx, a.ID, "admin", usecase.TrackingUpdate{Status: "cancelled"})
	require.NoError(t, err)

	st, err := f.query.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Total)
	assert.Equal(t, 1, st.ByStatus[domain.StatusCancelled])
	assert.Equal(t, 1, st.ByStatus[domain.StatusPending])
	assert.True(t, st.Revenue.Equal(decimal.RequireFromString("299")))
}

func TestOrderQuery_SetStockAndInventoryReport(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.query.SetStock(ctx, "book-1", -1)
	assert.ErrorIs(t, err, usecase.ErrValidation)

	_, err = f.query.SetStock(ctx, "missing", 3)
	assert.ErrorIs(t, err, usecase.ErrNotFound)

	it, err := f.query.SetStock(ctx, "book-1", 40)
	require.NoError(t, err)
	assert.Equal(t, 40, it.Stock)

	rep, err := f.query.Inventory(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Items)
	assert.Equal(t, 44, rep.TotalStock)
	assert.Len(t, rep.LowStock, 2)
}
