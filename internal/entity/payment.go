package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type TxnStatus string

const (
	TxnInitiated TxnStatus = "initiated"
	TxnPending   TxnStatus = "PENDING"
	TxnSuccess   TxnStatus = "SUCCESS"
	TxnFailure   TxnStatus = "FAILURE"
)

func ParseTxnStatus(s string) (TxnStatus, error) {
	switch st := TxnStatus(s); st {
	case TxnInitiated, TxnPending, TxnSuccess, TxnFailure:
		return st, nil
	}
	return "", ErrInvalidStatus
}

func (s TxnStatus) IsTerminal() bool { return s == TxnSuccess || s == TxnFailure }

// CanTransitionTo: initiated -> PENDING -> SUCCESS|FAILURE, skipping PENDING allowed.
func (s TxnStatus) CanTransitionTo(next TxnStatus) bool {
	switch s {
	case TxnInitiated:
		return next == TxnPending || next == TxnSuccess || next == TxnFailure
	case TxnPending:
		return next == TxnSuccess || next == TxnFailure
	}
	return false
}

// PaymentTransaction tracks one external payment and the order snapshot it pays for.
type PaymentTransaction struct {
	MerchantTxnID   string
	ProviderTxnID   string
	AccountID       string
	ContactEmail    string
	Amount          decimal.Decimal
	Method          PaymentMethod
	Status          TxnStatus
	OrderID         string
	Lines           []OrderLine
	ShippingAddress ShippingAddress
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (t *PaymentTransaction) Linked() bool { return t.OrderID != "" }
