package repo

import (
	"context"
	"database/sql"
	"errors"

	domain "github.com/aq2208/gorder-bookstore/internal/entity"
	"github.com/aq2208/gorder-bookstore/internal/usecase"
)

type MySQLCartRepo struct{ db *sql.DB }

func NewMySQLCartRepo(db *sql.DB) *MySQLCartRepo { return &MySQLCartRepo{db: db} }

func (r *MySQLCartRepo) Load(ctx context.Context, accountID string) (*domain.Cart, error) {
	c := &domain.Cart{AccountID: accountID}
	err := r.db.QueryRowContext(ctx, `SELECT total,updated_at FROM carts WHERE account_id=?`, accountID).
		Scan(&c.Total, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, usecase.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT id,item_id,quantity,unit_price FROM cart_lines
WHERE account_id=? ORDER BY position`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var l domain.CartLine
		if err := rows.Scan(&l.ID, &l.ItemID, &l.Quantity, &l.UnitPrice); err != nil {
			return nil, err
		}
		c.Lines = append(c.Lines, l)
	}
	return c, rows.Err()
}

// Save replaces the stored cart and its lines in one transaction.
func (r *MySQLCartRepo) Save(ctx context.Context, c *domain.Cart) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO carts (account_id,total,updated_at) VALUES (?,?,?)
ON DUPLICATE KEY UPDATE total=VALUES(total), updated_at=VALUES(updated_at)`,
			c.AccountID, c.Total, c.UpdatedAt); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM cart_lines WHERE account_id=?`, c.AccountID); err != nil {
			return err
		}
		for i, l := range c.Lines {
			if _, err := tx.ExecContext(ctx, `
INSERT INTO cart_lines (id,account_id,position,item_id,quantity,unit_price) VALUES (?,?,?,?,?,?)`,
				l.ID, c.AccountID, i, l.ItemID, l.Quantity, l.UnitPrice); err != nil {
				return err
			}
		}
		return nil
	})
}

var _ usecase.CartRepo = (*MySQLCartRepo)(nil)
