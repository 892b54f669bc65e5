package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	domain "github.com/aq2208/gorder-bookstore/internal/entity"
	"github.com/aq2208/gorder-bookstore/internal/logging"
	"github.com/aq2208/gorder-bookstore/internal/metrics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const callbackScope = "payment-callback"

// orderNamespace derives stable order ids from merchant transaction ids so a
// retried callback lands on the same order.
var orderNamespace = uuid.MustParse("6f1c2a9e-3b7d-4c1e-9a55-2d8e0f4b7c31")

type ReconcilerConfig struct {
	Currency    string
	RedirectURL string
}

type PaymentReconciler struct {
	writer   *OrderWriter
	carts    *CartManager
	items    InventoryRepo
	payments PaymentRepo
	provider PaymentProvider
	intents  KeyedStore
	idem     IdempotencyStore
	checksum ChecksumVerifier
	cfg      ReconcilerConfig
	now      func() time.Time
}

func NewPaymentReconciler(
	writer *OrderWriter,
	carts *CartManager,
	items InventoryRepo,
	payments PaymentRepo,
	provider PaymentProvider,
	intents KeyedStore,
	idem IdempotencyStore,
	checksum ChecksumVerifier,
	cfg ReconcilerConfig,
) *PaymentReconciler {
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}
	return &PaymentReconciler{
		writer:   writer,
		carts:    carts,
		items:    items,
		payments: payments,
		provider: provider,
		intents:  intents,
		idem:     idem,
		checksum: checksum,
		cfg:      cfg,
		now:      time.Now,
	}
}

type PaymentIntent struct {
	Ref      string          `json:"intentRef"`
	Status   string          `json:"status"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

type intentRecord struct {
	AccountID string          `json:"accountId"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
}

func intentKey(ref string) string { return "intent:" + ref }

// CreatePaymentIntent opens a provider order and remembers who owns it.
func (r *PaymentReconciler) CreatePaymentIntent(ctx context.Context, accountID string, amount decimal.Decimal) (*PaymentIntent, error) {
	if !amount.IsPositive() {
		return nil, invalid("amount must be positive")
	}
	po, err := r.provider.CreateOrder(ctx, amount, r.cfg.Currency)
	if err != nil {
		return nil, fmt.Errorf("%w: create order: %v", ErrUpstream, err)
	}

	raw, err := json.Marshal(intentRecord{AccountID: accountID, Amount: amount, Currency: r.cfg.Currency})
	if err != nil {
		return nil, err
	}
	if err := r.intents.Put(ctx, intentKey(po.ID), raw); err != nil {
		return nil, fmt.Errorf("%w: store intent: %v", ErrPersistence, err)
	}
	return &PaymentIntent{Ref: po.ID, Status: po.Status, Amount: amount, Currency: r.cfg.Currency}, nil
}

type CaptureItem struct {
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
}

type CaptureInput struct {
	AccountID       string
	Email           string
	IntentRef       string
	Items           []CaptureItem
	ShippingAddress domain.ShippingAddress
}

type CaptureOutcome struct {
	Capture CaptureResult `json:"captureResult"`
	Order   *domain.Order `json:"order"`
}

// CaptureAndRecord captures a previously created intent and writes the order and
// its payment transaction. Nothing is written when the provider rejects the capture.
func (r *PaymentReconciler) CaptureAndRecord(ctx context.Context, in CaptureInput) (*CaptureOutcome, error) {
	log := logging.FromCtx(ctx)
	if len(in.Items) == 0 {
		return nil, invalid("items required")
	}
	if err := in.ShippingAddress.Validate(); err != nil {
		return nil, invalid("%v", err)
	}

	raw, ok, err := r.intents.Get(ctx, intentKey(in.IntentRef))
	if err != nil {
		return nil, fmt.Errorf("%w: load intent: %v", ErrPersistence, err)
	}
	if !ok {
		return nil, ErrIntentNotFound
	}
	var rec intentRecord
	if err := json.Unmarshal(raw, &rec); err != nil || rec.AccountID != in.AccountID {
		return nil, ErrIntentNotFound
	}

	lines, err := r.priceLines(ctx, in.Items)
	if err != nil {
		return nil, err
	}

	res, err := r.provider.Capture(ctx, in.IntentRef)
	if err != nil {
		log.Warn("capture failed", "intent", in.IntentRef, "err", err)
		return nil, fmt.Errorf("%w: capture: %v", ErrUpstream, err)
	}

	now := r.now().UTC()
	txn := &domain.PaymentTransaction{
		MerchantTxnID:   newMerchantTxnID(now),
		ProviderTxnID:   res.CaptureID,
		AccountID:       in.AccountID,
		ContactEmail:    in.Email,
		Amount:          res.Amount,
		Method:          domain.PaymentCapture,
		Status:          domain.TxnSuccess,
		Lines:           lines,
		ShippingAddress: in.ShippingAddress,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := r.payments.Create(ctx, txn); err != nil {
		log.Error("record captured payment", "capture_id", res.CaptureID, "err", err)
		txn = nil
	}

	order, err := r.writer.createOrder(ctx, orderDraft{
		AccountID:       in.AccountID,
		Email:           in.Email,
		Lines:           lines,
		Total:           res.Amount,
		ShippingAddress: in.ShippingAddress,
		Method:          domain.PaymentCapture,
		Actor:           in.AccountID,
		Note:            "captured " + res.CaptureID,
	})
	if err != nil {
		log.Error("payment captured but order not written", "capture_id", res.CaptureID, "err", err)
		return nil, err
	}

	if txn != nil {
		if _, err := r.payments.LinkOrder(ctx, txn.MerchantTxnID, order.ID); err != nil {
			log.Error("link captured payment", "order_id", order.ID, "err", err)
		}
	}
	if err := r.intents.Delete(ctx, intentKey(in.IntentRef)); err != nil {
		log.Warn("drop intent", "intent", in.IntentRef, "err", err)
	}

	r.writer.notify(ctx, NotifyOrderConfirmed, order)
	return &CaptureOutcome{Capture: res, Order: order}, nil
}

func (r *PaymentReconciler) priceLines(ctx context.Context, in []CaptureItem) ([]domain.OrderLine, error) {
	ids := make([]string, 0, len(in))
	for _, it := range in {
		if it.Quantity < 1 {
			return nil, invalid("quantity must be at least 1")
		}
		ids = append(ids, it.ItemID)
	}
	items, err := r.items.GetItems(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: load items: %v", ErrPersistence, err)
	}
	lines := make([]domain.OrderLine, 0, len(in))
	for _, it := range in {
		item, ok := items[it.ItemID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrItemNotFound, it.ItemID)
		}
		lines = append(lines, domain.OrderLine{
			ItemID:    item.ID,
			Title:     item.Title,
			Quantity:  it.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return lines, nil
}

type HostedCheckout struct {
	MerchantTransactionID string          `json:"merchantTransactionId"`
	Amount                decimal.Decimal `json:"amount"`
	PaymentURL            string          `json:"paymentUrl"`
}

// InitiatePayment snapshots the cart into a pending transaction for the hosted
// payment page. The order is only written once the provider confirms.
func (r *PaymentReconciler) InitiatePayment(ctx context.Context, in PlaceOrderInput) (*HostedCheckout, error) {
	if err := in.ShippingAddress.Validate(); err != nil {
		return nil, invalid("%v", err)
	}

	var txn *domain.PaymentTransaction
	err := r.carts.withCart(ctx, in.AccountID, func(cart *domain.Cart) error {
		if cart.IsEmpty() {
			return ErrEmptyCart
		}
		lines := cart.Snapshot()
		if err := r.writer.checkStock(ctx, lines); err != nil {
			return err
		}
		now := r.now().UTC()
		txn = &domain.PaymentTransaction{
			MerchantTxnID:   newMerchantTxnID(now),
			AccountID:       in.AccountID,
			ContactEmail:    in.Email,
			Amount:          cart.Total,
			Method:          domain.PaymentProviderHosted,
			Status:          domain.TxnInitiated,
			Lines:           lines,
			ShippingAddress: in.ShippingAddress,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := r.payments.Create(ctx, txn); err != nil {
			return fmt.Errorf("%w: create transaction: %v", ErrPersistence, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.FromCtx(ctx).Info("payment initiated", "merchant_txn", txn.MerchantTxnID, "amount", txn.Amount.String())
	return &HostedCheckout{
		MerchantTransactionID: txn.MerchantTxnID,
		Amount:                txn.Amount,
		PaymentURL:            r.paymentURL(txn.MerchantTxnID),
	}, nil
}

func (r *PaymentReconciler) paymentURL(merchantTxnID string) string {
	u, err := url.Parse(r.cfg.RedirectURL)
	if err != nil || r.cfg.RedirectURL == "" {
		return ""
	}
	q := u.Query()
	q.Set("transactionId", merchantTxnID)
	u.RawQuery = q.Encode()
	return u.String()
}

type CallbackResult struct {
	MerchantTransactionID string
	OrderID               string
	Replay                bool
}

// HandleCallback applies a provider callback at most once. The checksum is checked
// before anything else and a rejected callback changes nothing.
func (r *PaymentReconciler) HandleCallback(ctx context.Context, body []byte, checksum string) (*CallbackResult, error) {
	log := logging.FromCtx(ctx)

	if err := r.checksum.Verify(body, checksum); err != nil {
		metrics.PaymentCallbacks.WithLabelValues("invalid_checksum").Inc()
		log.Warn("callback rejected", "event", "security.invalid_checksum", "err", err)
		return nil, ErrInvalidChecksum
	}

	var msg PaymentCallbackMsg
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, invalid("malformed callback body")
	}
	if msg.MerchantTransactionID == "" {
		return nil, invalid("merchantTransactionId required")
	}
	ctx = logging.Enrich(ctx, "merchant_txn", msg.MerchantTransactionID)
	log = logging.FromCtx(ctx)

	status, err := domain.ParseTxnStatus(msg.Status)
	if err != nil {
		return nil, invalid("unknown payment status %q", msg.Status)
	}

	locked, err := r.idem.TryLock(ctx, callbackScope, msg.MerchantTransactionID)
	if err != nil {
		return nil, fmt.Errorf("%w: callback lock: %v", ErrPersistence, err)
	}
	if !locked {
		metrics.PaymentCallbacks.WithLabelValues("in_flight").Inc()
		return nil, ErrCallbackInFlight
	}
	defer func() {
		if err := r.idem.Release(context.WithoutCancel(ctx), callbackScope, msg.MerchantTransactionID); err != nil {
			log.Warn("release callback lock", "merchant_txn", msg.MerchantTransactionID, "err", err)
		}
	}()

	txn, err := r.payments.GetByMerchantID(ctx, msg.MerchantTransactionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			metrics.PaymentCallbacks.WithLabelValues("not_found").Inc()
			log.Warn("callback for unknown transaction", "merchant_txn", msg.MerchantTransactionID)
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("%w: load transaction: %v", ErrPersistence, err)
	}

	res := &CallbackResult{MerchantTransactionID: txn.MerchantTxnID, OrderID: txn.OrderID}
	if txn.Linked() {
		metrics.PaymentCallbacks.WithLabelValues("replay").Inc()
		log.Info("callback replay ignored", "merchant_txn", txn.MerchantTxnID, "order_id", txn.OrderID)
		res.Replay = true
		return res, nil
	}

	if txn.Status != status {
		if !txn.Status.CanTransitionTo(status) {
			metrics.PaymentCallbacks.WithLabelValues("conflict").Inc()
			log.Warn("callback conflicts with settled transaction",
				"merchant_txn", txn.MerchantTxnID, "have", txn.Status, "got", status)
			res.Replay = true
			return res, nil
		}
		ok, err := r.payments.UpdateStatusIf(ctx, txn.MerchantTxnID, txn.Status, status, msg.TransactionID)
		if err != nil {
			return nil, fmt.Errorf("%w: update transaction: %v", ErrPersistence, err)
		}
		if !ok {
			return nil, ErrCallbackInFlight
		}
		txn.Status = status
		txn.ProviderTxnID = msg.TransactionID
	}

	if status != domain.TxnSuccess {
		metrics.PaymentCallbacks.WithLabelValues(string(status)).Inc()
		log.Info("payment status recorded", "merchant_txn", txn.MerchantTxnID, "status", status)
		return res, nil
	}

	amount := domain.FromMinorUnits(msg.Amount)
	if !amount.Equal(txn.Amount) {
		log.Warn("callback amount differs from transaction",
			"merchant_txn", txn.MerchantTxnID, "callback", amount.String(), "expected", txn.Amount.String())
	}

	order, err := r.writer.createOrder(ctx, orderDraft{
		ID:              uuid.NewSHA1(orderNamespace, []byte(txn.MerchantTxnID)).String(),
		AccountID:       txn.AccountID,
		Email:           txn.ContactEmail,
		Lines:           txn.Lines,
		Total:           amount,
		ShippingAddress: txn.ShippingAddress,
		Method:          domain.PaymentProviderHosted,
		Actor:           "payment-provider",
		Note:            "payment " + msg.TransactionID,
	})
	if err != nil {
		metrics.PaymentCallbacks.WithLabelValues("order_failed").Inc()
		log.Error("payment succeeded but order not written", "merchant_txn", txn.MerchantTxnID, "err", err)
		return nil, err
	}

	if _, err := r.payments.LinkOrder(ctx, txn.MerchantTxnID, order.ID); err != nil {
		return nil, fmt.Errorf("%w: link order: %v", ErrPersistence, err)
	}
	res.OrderID = order.ID

	metrics.PaymentCallbacks.WithLabelValues("applied").Inc()
	r.writer.notify(ctx, NotifyOrderConfirmed, order)
	return res, nil
}

func newMerchantTxnID(now time.Time) string {
	return "MT" + strconv.FormatInt(now.UnixNano(), 10) + uuid.NewString()[:8]
}
