package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	domain "github.com/aq2208/gorder-bookstore/internal/entity"
	"github.com/aq2208/gorder-bookstore/internal/usecase"
)

type MySQLOrderRepo struct{ db *sql.DB }

func NewMySQLOrderRepo(db *sql.DB) *MySQLOrderRepo { return &MySQLOrderRepo{db: db} }

func (r *MySQLOrderRepo) Create(ctx context.Context, o *domain.Order) error {
	addr, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshal address: %w", err)
	}
	err = withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO orders (id,account_id,contact_email,total_amount,payment_method,shipping_address,
  tracking_number,courier,estimated_delivery,stock_state,created_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
			o.ID, o.AccountID, o.ContactEmail, o.TotalAmount, string(o.PaymentMethod), addr,
			o.Tracking.TrackingNumber, o.Tracking.Courier, nullTime(o.Tracking.EstimatedDelivery),
			string(o.StockState), o.CreatedAt); err != nil {
			return err
		}
		for i, l := range o.Lines {
			if _, err := tx.ExecContext(ctx, `
INSERT INTO order_lines (order_id,line_no,item_id,title,quantity,unit_price) VALUES (?,?,?,?,?,?)`,
				o.ID, i, l.ItemID, l.Title, l.Quantity, l.UnitPrice); err != nil {
				return err
			}
		}
		for i, e := range o.History {
			if err := insertEntry(ctx, tx, o.ID, i, e); err != nil {
				return err
			}
		}
		return nil
	})
	if isDuplicate(err) {
		return usecase.ErrConflict
	}
	return err
}

func insertEntry(ctx context.Context, q rowQuerier, orderID string, seq int, e domain.StatusEntry) error {
	_, err := q.ExecContext(ctx, `
INSERT INTO order_status_history (order_id,seq,status,at,actor,location,note) VALUES (?,?,?,?,?,?,?)`,
		orderID, seq, string(e.Status), e.At, e.Actor, e.Location, e.Note)
	return err
}

const orderColumns = `id,account_id,contact_email,total_amount,payment_method,shipping_address,
  tracking_number,courier,estimated_delivery,stock_state,created_at`

func scanOrder(sc interface{ Scan(...any) error }) (domain.Order, error) {
	var (
		o      domain.Order
		method string
		state  string
		addr   []byte
		eta    sql.NullTime
	)
	if err := sc.Scan(&o.ID, &o.AccountID, &o.ContactEmail, &o.TotalAmount, &method, &addr,
		&o.Tracking.TrackingNumber, &o.Tracking.Courier, &eta, &state, &o.CreatedAt); err != nil {
		return o, err
	}
	o.PaymentMethod = domain.PaymentMethod(method)
	o.StockState = domain.StockState(state)
	if eta.Valid {
		t := eta.Time
		o.Tracking.EstimatedDelivery = &t
	}
	if err := json.Unmarshal(addr, &o.ShippingAddress); err != nil {
		return o, fmt.Errorf("decode address: %w", err)
	}
	return o, nil
}

func (r *MySQLOrderRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, usecase.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadChildren(ctx, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *MySQLOrderRepo) ListByAccount(ctx context.Context, accountID string) ([]domain.Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE account_id=? ORDER BY created_at DESC`, accountID)
}

func (r *MySQLOrderRepo) ListAll(ctx context.Context, limit, offset int) ([]domain.Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset)
}

func (r *MySQLOrderRepo) list(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range out {
		if err := r.loadChildren(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *MySQLOrderRepo) loadChildren(ctx context.Context, o *domain.Order) error {
	rows, err := r.db.QueryContext(ctx, `
SELECT item_id,title,quantity,unit_price FROM order_lines WHERE order_id=? ORDER BY line_no`, o.ID)
	if err != nil {
		return err
	}
	for rows.Next() {
		var l domain.OrderLine
		if err := rows.Scan(&l.ItemID, &l.Title, &l.Quantity, &l.UnitPrice); err != nil {
			rows.Close()
			return err
		}
		o.Lines = append(o.Lines, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = r.db.QueryContext(ctx, `
SELECT status,at,actor,location,note FROM order_status_history WHERE order_id=? ORDER BY seq`, o.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var e domain.StatusEntry
		var status string
		if err := rows.Scan(&status, &e.At, &e.Actor, &e.Location, &e.Note); err != nil {
			return err
		}
		e.Status = domain.Status(status)
		o.History = append(o.History, e)
	}
	return rows.Err()
}

// AppendHistory locks the order row, then appends only if the latest entry is still expect.
func (r *MySQLOrderRepo) AppendHistory(ctx context.Context, id string, expect domain.Status, e domain.StatusEntry, tr *domain.Tracking) (bool, error) {
	appended := false
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := lockOrder(ctx, tx, id); err != nil {
			return err
		}
		var (
			seq    int
			status string
		)
		err := tx.QueryRowContext(ctx, `
SELECT seq,status FROM order_status_history WHERE order_id=? ORDER BY seq DESC LIMIT 1`, id).Scan(&seq, &status)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			seq, status = -1, ""
		case err != nil:
			return err
		}
		if domain.Status(status) != expect {
			return nil
		}
		if err := insertEntry(ctx, tx, id, seq+1, e); err != nil {
			return err
		}
		if err := updateTracking(ctx, tx, id, tr); err != nil {
			return err
		}
		appended = true
		return nil
	})
	return appended, err
}

func (r *MySQLOrderRepo) AnnotateLast(ctx context.Context, id, location string, tr *domain.Tracking) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := lockOrder(ctx, tx, id); err != nil {
			return err
		}
		if location != "" {
			if _, err := tx.ExecContext(ctx, `
UPDATE order_status_history SET location=? WHERE order_id=? ORDER BY seq DESC LIMIT 1`, location, id); err != nil {
				return err
			}
		}
		return updateTracking(ctx, tx, id, tr)
	})
}

func lockOrder(ctx context.Context, tx *sql.Tx, id string) error {
	var got string
	err := tx.QueryRowContext(ctx, `SELECT id FROM orders WHERE id=? FOR UPDATE`, id).Scan(&got)
	if errors.Is(err, sql.ErrNoRows) {
		return usecase.ErrOrderNotFound
	}
	return err
}

func updateTracking(ctx context.Context, tx *sql.Tx, id string, tr *domain.Tracking) error {
	if tr == nil {
		return nil
	}
	_, err := tx.ExecContext(ctx, `
UPDATE orders SET tracking_number=?, courier=?, estimated_delivery=? WHERE id=?`,
		tr.TrackingNumber, tr.Courier, nullTime(tr.EstimatedDelivery), id)
	return err
}

var _ usecase.OrderRepo = (*MySQLOrderRepo)(nil)
