package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domain "github.com/aq2208/gorder-bookstore/internal/entity"
	"github.com/aq2208/gorder-bookstore/internal/usecase"
)

type MySQLPaymentRepo struct{ db *sql.DB }

func NewMySQLPaymentRepo(db *sql.DB) *MySQLPaymentRepo { return &MySQLPaymentRepo{db: db} }

func (r *MySQLPaymentRepo) Create(ctx context.Context, t *domain.PaymentTransaction) error {
	lines, err := json.Marshal(t.Lines)
	if err != nil {
		return fmt.Errorf("marshal lines: %w", err)
	}
	addr, err := json.Marshal(t.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshal address: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO payment_transactions (merchant_txn_id,provider_txn_id,account_id,contact_email,amount,method,status,
  order_id,lines_json,shipping_address,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.MerchantTxnID, t.ProviderTxnID, t.AccountID, t.ContactEmail, t.Amount, string(t.Method), string(t.Status),
		sql.NullString{String: t.OrderID, Valid: t.OrderID != ""}, lines, addr, t.CreatedAt, t.UpdatedAt)
	if isDuplicate(err) {
		return usecase.ErrConflict
	}
	return err
}

const paymentColumns = `merchant_txn_id,provider_txn_id,account_id,contact_email,amount,method,status,
  order_id,lines_json,shipping_address,created_at,updated_at`

func scanPayment(sc interface{ Scan(...any) error }) (*domain.PaymentTransaction, error) {
	var (
		t       domain.PaymentTransaction
		method  string
		status  string
		orderID sql.NullString
		lines   []byte
		addr    []byte
	)
	if err := sc.Scan(&t.MerchantTxnID, &t.ProviderTxnID, &t.AccountID, &t.ContactEmail, &t.Amount,
		&method, &status, &orderID, &lines, &addr, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Method = domain.PaymentMethod(method)
	t.Status = domain.TxnStatus(status)
	t.OrderID = orderID.String
	if err := json.Unmarshal(lines, &t.Lines); err != nil {
		return nil, fmt.Errorf("decode lines: %w", err)
	}
	if err := json.Unmarshal(addr, &t.ShippingAddress); err != nil {
		return nil, fmt.Errorf("decode address: %w", err)
	}
	return &t, nil
}

func (r *MySQLPaymentRepo) GetByMerchantID(ctx context.Context, id string) (*domain.PaymentTransaction, error) {
	t, err := scanPayment(r.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payment_transactions WHERE merchant_txn_id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, usecase.ErrTransactionNotFound
	}
	return t, err
}

func (r *MySQLPaymentRepo) GetByOrderID(ctx context.Context, orderID string) (*domain.PaymentTransaction, error) {
	t, err := scanPayment(r.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payment_transactions WHERE order_id=?`, orderID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, usecase.ErrTransactionNotFound
	}
	return t, err
}

func (r *MySQLPaymentRepo) UpdateStatusIf(ctx context.Context, id string, from, to domain.TxnStatus, providerTxnID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE payment_transactions
SET status = ?, provider_txn_id = IF(? = '', provider_txn_id, ?), updated_at = ?
WHERE merchant_txn_id = ? AND status = ?`,
		string(to), providerTxnID, providerTxnID, time.Now().UTC(), id, string(from),
	)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	// rows == 0 → nothing matched (either not found or status mismatch)
	return rows > 0, nil
}

func (r *MySQLPaymentRepo) LinkOrder(ctx context.Context, id, orderID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE payment_transactions SET order_id = ?, updated_at = ?
WHERE merchant_txn_id = ? AND order_id IS NULL`,
		orderID, time.Now().UTC(), id,
	)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

var _ usecase.PaymentRepo = (*MySQLPaymentRepo)(nil)
