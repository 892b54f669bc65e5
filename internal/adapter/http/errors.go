package http

import (
	"errors"
	"net/http"

	domain "github.com/aq2208/gorder-bookstore/internal/entity"
	"github.com/aq2208/gorder-bookstore/internal/logging"
	"github.com/aq2208/gorder-bookstore/internal/usecase"
	"github.com/gin-gonic/gin"
)

type errorMapping struct {
	target error
	status int
	code   string
}

// order matters: the specific not-found sentinels wrap ErrNotFound
var errorTable = []errorMapping{
	{usecase.ErrValidation, http.StatusBadRequest, "validation_failed"},
	{domain.ErrInvalidAddress, http.StatusBadRequest, "validation_failed"},
	{domain.ErrInvalidStatus, http.StatusBadRequest, "validation_failed"},
	{domain.ErrInvalidQuantity, http.StatusBadRequest, "validation_failed"},
	{usecase.ErrEmptyCart, http.StatusBadRequest, "empty_cart"},
	{usecase.ErrInvalidChecksum, http.StatusUnauthorized, "invalid_checksum"},
	{usecase.ErrForbidden, http.StatusForbidden, "forbidden"},
	{usecase.ErrItemNotFound, http.StatusNotFound, "item_not_found"},
	{usecase.ErrCartLineNotFound, http.StatusNotFound, "cart_item_not_found"},
	{usecase.ErrOrderNotFound, http.StatusNotFound, "order_not_found"},
	{usecase.ErrTransactionNotFound, http.StatusNotFound, "transaction_not_found"},
	{usecase.ErrIntentNotFound, http.StatusNotFound, "intent_not_found"},
	{usecase.ErrNotFound, http.StatusNotFound, "not_found"},
	{usecase.ErrInsufficientStock, http.StatusConflict, "insufficient_stock"},
	{usecase.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{usecase.ErrCallbackInFlight, http.StatusConflict, "callback_in_flight"},
	{usecase.ErrConflict, http.StatusConflict, "conflict"},
	{usecase.ErrUpstream, http.StatusBadGateway, "payment_provider_error"},
	{usecase.ErrOrderWriteFailed, http.StatusInternalServerError, "order_write_failed"},
	{usecase.ErrPersistence, http.StatusInternalServerError, "persistence_error"},
}

func classify(err error) (int, string) {
	for _, m := range errorTable {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

// writeError maps a use-case error to its HTTP status. Server-side failures
// are logged and their detail is not echoed to the client.
func writeError(c *gin.Context, err error) {
	status, code := classify(err)
	_ = c.Error(err)
	if status >= http.StatusInternalServerError {
		logging.From(c).Error("request failed", "err", err, "code", code)
		c.AbortWithStatusJSON(status, gin.H{"success": false, "error": code})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": code, "message": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "error": "bad_request", "message": msg})
}
