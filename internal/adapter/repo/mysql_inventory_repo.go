package repo

import (
	"context"
	"database/sql"
	"errors"

	domain "github.com/aq2208/gorder-bookstore/internal/entity"
	"github.com/aq2208/gorder-bookstore/internal/usecase"
)

type MySQLInventoryRepo struct{ db *sql.DB }

func NewMySQLInventoryRepo(db *sql.DB) *MySQLInventoryRepo { return &MySQLInventoryRepo{db: db} }

const itemColumns = `id,kind,title,author,price,stock`

func scanItem(sc interface{ Scan(...any) error }) (domain.InventoryItem, error) {
	var it domain.InventoryItem
	var kind string
	err := sc.Scan(&it.ID, &kind, &it.Title, &it.Author, &it.UnitPrice, &it.Stock)
	it.Kind = domain.ItemKind(kind)
	return it, err
}

func (r *MySQLInventoryRepo) GetItem(ctx context.Context, id string) (*domain.InventoryItem, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id=?`, id)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, usecase.ErrItemNotFound
	}
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func (r *MySQLInventoryRepo) GetItems(ctx context.Context, ids []string) (map[string]domain.InventoryItem, error) {
	out := make(map[string]domain.InventoryItem, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out[it.ID] = it
	}
	return out, rows.Err()
}

// SetStock overwrites the counter. MySQL reports zero affected rows for an
// unchanged value, so existence is checked separately.
func (r *MySQLInventoryRepo) SetStock(ctx context.Context, id string, stock int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE items SET stock=? WHERE id=?`, stock, id)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows > 0 {
		return nil
	}
	var one int
	err = r.db.QueryRowContext(ctx, `SELECT 1 FROM items WHERE id=?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return usecase.ErrItemNotFound
	}
	return err
}

func (r *MySQLInventoryRepo) ListItems(ctx context.Context) ([]domain.InventoryItem, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+itemColumns+` FROM items ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.InventoryItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

var _ usecase.InventoryRepo = (*MySQLInventoryRepo)(nil)
