package domain

import (
	"errors"

	"github.com/shopspring/decimal"
)

type ItemKind string

const (
	KindBook     ItemKind = "book"
	KindWorkbook ItemKind = "workbook"
)

var ErrNegativeStock = errors.New("stock cannot be negative")

// InventoryItem is a sellable title with a single stock counter.
type InventoryItem struct {
	ID        string          `json:"id"`
	Kind      ItemKind        `json:"kind"`
	Title     string          `json:"title"`
	Author    string          `json:"author,omitempty"`
	UnitPrice decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
}

// LowStockThreshold marks items the admin view flags for restocking.
const LowStockThreshold = 10

func (i InventoryItem) LowStock() bool { return i.Stock < LowStockThreshold }

func (i InventoryItem) Covers(qty int) bool { return i.Stock >= qty }
