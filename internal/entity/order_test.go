package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusShipped, true},
		{StatusProcessing, StatusConfirmed, false},
		{StatusShipped, StatusCancelled, true},
		{StatusDelivered, StatusCancelled, false},
		{StatusCancelled, StatusPending, false},
		{StatusShipped, StatusShipped, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestOrder_CurrentStatusFollowsLastEntry(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	o := &Order{CreatedAt: t0}
	assert.Equal(t, Status(""), o.CurrentStatus())
	assert.Equal(t, t0, o.LastUpdated())

	o.History = append(o.History,
		StatusEntry{Status: StatusPending, At: t0},
		StatusEntry{Status: StatusShipped, At: t0.Add(time.Hour)},
	)
	assert.Equal(t, StatusShipped, o.CurrentStatus())
	assert.Equal(t, t0.Add(time.Hour), o.LastUpdated())
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus("cancelled")
	assert.NoError(t, err)
	assert.Equal(t, StatusCancelled, st)

	_, err = ParseStatus("lost")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestTxnStatus_TerminalNeverMoves(t *testing.T) {
	assert.True(t, TxnInitiated.CanTransitionTo(TxnPending))
	assert.True(t, TxnPending.CanTransitionTo(TxnSuccess))
	assert.False(t, TxnSuccess.CanTransitionTo(TxnFailure))
	assert.False(t, TxnFailure.CanTransitionTo(TxnSuccess))
}

func TestMinorUnits(t *testing.T) {
	assert.True(t, FromMinorUnits(59800).Equal(decimal.RequireFromString("598")))
	assert.True(t, FromMinorUnits(1999).Equal(decimal.RequireFromString("19.99")))
	assert.Equal(t, int64(1999), ToMinorUnits(decimal.RequireFromString("19.99")))
}
