package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type CartLine struct {
	ID        string          `json:"id"`
	ItemID    string          `json:"itemId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

func (l CartLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart belongs to exactly one account. It is emptied, never deleted.
type Cart struct {
	AccountID string
	Lines     []CartLine
	Total     decimal.Decimal
	UpdatedAt time.Time
}

func NewCart(accountID string, now time.Time) *Cart {
	return &Cart{AccountID: accountID, Total: decimal.Zero, UpdatedAt: now}
}

// Recompute derives Total from the full line list. Every mutation ends here.
func (c *Cart) Recompute() {
	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.Subtotal())
	}
	c.Total = total
}

// Find returns the index of the line whose line id or item id equals ref, or -1.
func (c *Cart) Find(ref string) int {
	for i, l := range c.Lines {
		if l.ID == ref {
			return i
		}
	}
	for i, l := range c.Lines {
		if l.ItemID == ref {
			return i
		}
	}
	return -1
}

func (c *Cart) LineForItem(itemID string) int {
	for i, l := range c.Lines {
		if l.ItemID == itemID {
			return i
		}
	}
	return -1
}

func (c *Cart) Remove(idx int) {
	c.Lines = append(c.Lines[:idx], c.Lines[idx+1:]...)
	c.Recompute()
}

func (c *Cart) Clear() {
	c.Lines = nil
	c.Total = decimal.Zero
}

func (c *Cart) IsEmpty() bool { return len(c.Lines) == 0 }

// Snapshot copies the cart lines into order lines at their captured prices.
func (c *Cart) Snapshot() []OrderLine {
	out := make([]OrderLine, 0, len(c.Lines))
	for _, l := range c.Lines {
		out = append(out, OrderLine{ItemID: l.ItemID, Quantity: l.Quantity, UnitPrice: l.UnitPrice})
	}
	return out
}
