package usecase

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidChecksum   = errors.New("invalid checksum")
	ErrCallbackInFlight  = errors.New("callback already being processed")
	ErrUpstream          = errors.New("payment provider failure")
	ErrPersistence       = errors.New("persistence failure")
	ErrOrderWriteFailed  = errors.New("order write failed")
	ErrConflict          = errors.New("already exists")
)

var (
	ErrItemNotFound        = fmt.Errorf("item %w", ErrNotFound)
	ErrCartLineNotFound    = fmt.Errorf("cart line %w", ErrNotFound)
	ErrOrderNotFound       = fmt.Errorf("order %w", ErrNotFound)
	ErrTransactionNotFound = fmt.Errorf("transaction %w", ErrNotFound)
	ErrIntentNotFound      = fmt.Errorf("payment intent %w", ErrNotFound)
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
