package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// rank orders the forward path; cancelled sits outside it.
var rank = map[Status]int{
	StatusPending:    1,
	StatusConfirmed:  2,
	StatusProcessing: 3,
	StatusShipped:    4,
	StatusDelivered:  5,
}

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrInvalidAddress  = errors.New("invalid shipping address")
	ErrNoLines         = errors.New("order has no lines")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if st == StatusCancelled {
		return st, nil
	}
	if _, ok := rank[st]; !ok {
		return "", ErrInvalidStatus
	}
	return st, nil
}

func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransitionTo reports whether an order in s may move to next.
// Forward moves may skip steps; cancelled is reachable from any non-terminal state.
func (s Status) CanTransitionTo(next Status) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StatusCancelled {
		return true
	}
	cur, ok := rank[s]
	if !ok {
		return false
	}
	nxt, ok := rank[next]
	if !ok {
		return false
	}
	return nxt > cur
}

type PaymentMethod string

const (
	PaymentCOD            PaymentMethod = "cod"
	PaymentProviderHosted PaymentMethod = "provider-hosted"
	PaymentCapture        PaymentMethod = "capture"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCOD, PaymentProviderHosted, PaymentCapture:
		return true
	}
	return false
}

// InitialStatus is pending for cash on delivery and processing for anything already paid.
func (m PaymentMethod) InitialStatus() Status {
	if m == PaymentCOD {
		return StatusPending
	}
	return StatusProcessing
}

type ShippingAddress struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	PinCode string `json:"pinCode"`
	Phone   string `json:"phone"`
	Country string `json:"country,omitempty"`
}

func (a ShippingAddress) Validate() error {
	if a.Street == "" || a.City == "" || a.State == "" || a.PinCode == "" || a.Phone == "" {
		return ErrInvalidAddress
	}
	return nil
}

type OrderLine struct {
	ItemID    string          `json:"itemId"`
	Title     string          `json:"title,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

func (l OrderLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type StatusEntry struct {
	Status   Status    `json:"status"`
	At       time.Time `json:"at"`
	Actor    string    `json:"actor"`
	Location string    `json:"location,omitempty"`
	Note     string    `json:"note,omitempty"`
}

// Tracking holds the mutable shipment facts of an order.
type Tracking struct {
	TrackingNumber    string     `json:"trackingNumber,omitempty"`
	Courier           string     `json:"courier,omitempty"`
	EstimatedDelivery *time.Time `json:"estimatedDelivery,omitempty"`
}

type StockState string

const (
	StockPending  StockState = "pending"
	StockApplied  StockState = "applied"
	StockReleased StockState = "released"
	StockShort    StockState = "short"
)

type Order struct {
	ID              string
	AccountID       string
	ContactEmail    string
	Lines           []OrderLine
	TotalAmount     decimal.Decimal
	ShippingAddress ShippingAddress
	PaymentMethod   PaymentMethod
	History         []StatusEntry
	Tracking        Tracking
	StockState      StockState
	CreatedAt       time.Time
}

// CurrentStatus is the status of the most recent history entry.
func (o *Order) CurrentStatus() Status {
	if len(o.History) == 0 {
		return ""
	}
	return o.History[len(o.History)-1].Status
}

func (o *Order) LastUpdated() time.Time {
	if len(o.History) == 0 {
		return o.CreatedAt
	}
	return o.History[len(o.History)-1].At
}

func (o *Order) Validate() error {
	if len(o.Lines) == 0 {
		return ErrNoLines
	}
	for _, l := range o.Lines {
		if l.Quantity < 1 {
			return ErrInvalidQuantity
		}
	}
	if !o.TotalAmount.IsPositive() {
		return ErrInvalidAmount
	}
	return o.ShippingAddress.Validate()
}

func SumLines(lines []OrderLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}
