package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	domain "github.com/aq2208/gorder-bookstore/internal/entity"
	"github.com/aq2208/gorder-bookstore/internal/usecase"
)

// MySQLStockLedger applies the stock side of an order. The orders.stock_state
// column is the saga record: pending until the decrement commits.
type MySQLStockLedger struct{ db *sql.DB }

func NewMySQLStockLedger(db *sql.DB) *MySQLStockLedger { return &MySQLStockLedger{db: db} }

func (l *MySQLStockLedger) Apply(ctx context.Context, orderID string) error {
	return withTx(ctx, l.db, func(tx *sql.Tx) error {
		var state string
		err := tx.QueryRowContext(ctx, `SELECT stock_state FROM orders WHERE id=? FOR UPDATE`, orderID).Scan(&state)
		if errors.Is(err, sql.ErrNoRows) {
			return usecase.ErrOrderNotFound
		}
		if err != nil {
			return err
		}
		if domain.StockState(state) != domain.StockPending {
			return nil
		}

		// item order keeps row locks acquired in a stable sequence across orders
		rows, err := tx.QueryContext(ctx, `
SELECT item_id, SUM(quantity) FROM order_lines WHERE order_id=? GROUP BY item_id ORDER BY item_id`, orderID)
		if err != nil {
			return err
		}
		type need struct {
			itemID string
			qty    int
		}
		var needs []need
		for rows.Next() {
			var n need
			if err := rows.Scan(&n.itemID, &n.qty); err != nil {
				rows.Close()
				return err
			}
			needs = append(needs, n)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, n := range needs {
			res, err := tx.ExecContext(ctx, `
UPDATE items SET stock = stock - ? WHERE id = ? AND stock >= ?`, n.qty, n.itemID, n.qty)
			if err != nil {
				return err
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if affected == 0 {
				return usecase.ErrInsufficientStock
			}
		}

		_, err = tx.ExecContext(ctx, `UPDATE orders SET stock_state=? WHERE id=?`, string(domain.StockApplied), orderID)
		return err
	})
}

func (l *MySQLStockLedger) Settle(ctx context.Context, orderID string, to domain.StockState) error {
	_, err := l.db.ExecContext(ctx, `
UPDATE orders SET stock_state=? WHERE id=? AND stock_state=?`, string(to), orderID, string(domain.StockPending))
	return err
}

func (l *MySQLStockLedger) Pending(ctx context.Context, createdBefore time.Time, limit int) ([]string, error) {
	rows, err := l.db.QueryContext(ctx, `
SELECT id FROM orders WHERE stock_state=? AND created_at < ? ORDER BY created_at LIMIT ?`,
		string(domain.StockPending), createdBefore, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

var _ usecase.StockLedger = (*MySQLStockLedger)(nil)
