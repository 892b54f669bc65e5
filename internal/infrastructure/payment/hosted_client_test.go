package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostedClient_CreateAndCapture(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "cid" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/v2/checkout/orders":
			var req createOrderReq
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "CAPTURE", req.Intent)
			assert.Equal(t, "598.00", req.PurchaseUnits[0].Amount.Value)
			_, _ = w.Write([]byte(`{"id":"PAY-1","status":"CREATED"}`))
		case "/v2/checkout/orders/PAY-1/capture":
			_, _ = w.Write([]byte(`{"id":"PAY-1","status":"COMPLETED","purchase_units":[{"payments":{"captures":[
				{"id":"CAP-1","status":"COMPLETED","amount":{"currency_code":"USD","value":"598.00"}}]}}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewHostedClient(Config{BaseURL: srv.URL, ClientID: "cid", ClientSecret: "secret", Timeout: time.Second})

	po, err := c.CreateOrder(context.Background(), decimal.RequireFromString("598"), "USD")
	require.NoError(t, err)
	assert.Equal(t, "PAY-1", po.ID)

	res, err := c.Capture(context.Background(), po.ID)
	require.NoError(t, err)
	assert.Equal(t, "CAP-1", res.CaptureID)
	assert.True(t, res.Amount.Equal(decimal.RequireFromString("598")))
	assert.Equal(t, "USD", res.Currency)
}

func TestHostedClient_DeclinedCaptureDoesNotTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"name":"UNPROCESSABLE_ENTITY"}`))
	}))
	defer srv.Close()

	c := NewHostedClient(Config{BaseURL: srv.URL, MaxFailures: 2})
	for i := 0; i < 5; i++ {
		_, err := c.Capture(context.Background(), "PAY-1")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrRejected)
	}
	assert.Equal(t, gobreaker.StateClosed, c.breaker.State())
}

func TestHostedClient_BreakerOpensOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewHostedClient(Config{BaseURL: srv.URL, MaxFailures: 2, OpenTimeout: time.Minute})
	for i := 0; i < 2; i++ {
		_, err := c.CreateOrder(context.Background(), decimal.NewFromInt(1), "USD")
		require.Error(t, err)
	}
	_, err := c.CreateOrder(context.Background(), decimal.NewFromInt(1), "USD")
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.EqualValues(t, 2, calls.Load())
}
