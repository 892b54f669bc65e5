package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aq2208/gorder-bookstore/internal/usecase"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
	MaxFailures  uint32
	OpenTimeout  time.Duration
	UserAgent    string
}

// HostedClient talks to the hosted checkout provider's orders API
// (create an order, then capture it once the buyer approved).
type HostedClient struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
}

// ErrRejected marks a 4xx answer; those never trip the breaker.
var ErrRejected = errors.New("provider rejected request")

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string { return fmt.Sprintf("provider status %d: %s", e.code, e.body) }

func (e *statusError) Unwrap() error {
	if e.code >= 400 && e.code < 500 {
		return ErrRejected
	}
	return nil
}

func NewHostedClient(cfg Config) *HostedClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	maxFailures := cfg.MaxFailures
	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "payment-provider",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrRejected)
		},
	})

	return &HostedClient{
		cfg:     cfg,
		http:    &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		breaker: cb,
	}
}

type money struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type createOrderReq struct {
	Intent        string `json:"intent"`
	PurchaseUnits []struct {
		Amount money `json:"amount"`
	} `json:"purchase_units"`
}

type orderResp struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PurchaseUnits []struct {
		Payments struct {
			Captures []struct {
				ID     string `json:"id"`
				Status string `json:"status"`
				Amount money  `json:"amount"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

func (c *HostedClient) CreateOrder(ctx context.Context, amount decimal.Decimal, currency string) (usecase.ProviderOrder, error) {
	var req createOrderReq
	req.Intent = "CAPTURE"
	req.PurchaseUnits = make([]struct {
		Amount money `json:"amount"`
	}, 1)
	req.PurchaseUnits[0].Amount = money{CurrencyCode: currency, Value: amount.StringFixed(2)}

	var out orderResp
	if err := c.post(ctx, "/v2/checkout/orders", req, &out); err != nil {
		return usecase.ProviderOrder{}, err
	}
	if out.ID == "" {
		return usecase.ProviderOrder{}, errors.New("provider returned no order id")
	}
	return usecase.ProviderOrder{ID: out.ID, Status: out.Status}, nil
}

func (c *HostedClient) Capture(ctx context.Context, providerOrderID string) (usecase.CaptureResult, error) {
	var out orderResp
	if err := c.post(ctx, "/v2/checkout/orders/"+providerOrderID+"/capture", struct{}{}, &out); err != nil {
		return usecase.CaptureResult{}, err
	}
	if out.Status != "COMPLETED" {
		return usecase.CaptureResult{}, fmt.Errorf("%w: capture status %s", ErrRejected, out.Status)
	}
	if len(out.PurchaseUnits) == 0 || len(out.PurchaseUnits[0].Payments.Captures) == 0 {
		return usecase.CaptureResult{}, errors.New("provider returned no capture")
	}
	capt := out.PurchaseUnits[0].Payments.Captures[0]
	amount, err := decimal.NewFromString(capt.Amount.Value)
	if err != nil {
		return usecase.CaptureResult{}, fmt.Errorf("capture amount %q: %w", capt.Amount.Value, err)
	}
	return usecase.CaptureResult{
		OrderID:   out.ID,
		CaptureID: capt.ID,
		Status:    out.Status,
		Amount:    amount,
		Currency:  capt.Amount.CurrencyCode,
	}, nil
}

func (c *HostedClient) post(ctx context.Context, path string, in, out any) error {
	// ensure per-call timeout if caller didn't set one
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}

	body, err := c.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Prefer", "return=representation")
		if c.cfg.UserAgent != "" {
			req.Header.Set("User-Agent", c.cfg.UserAgent)
		}
		req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 300 {
			return nil, &statusError{code: resp.StatusCode, body: string(b)}
		}
		return b, nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

var _ usecase.PaymentProvider = (*HostedClient)(nil)
