package middleware

import (
	"bytes"
	"io"
	"net/http"

	"github.com/aq2208/gorder-bookstore/internal/logging"
	"github.com/aq2208/gorder-bookstore/internal/metrics"
	"github.com/aq2208/gorder-bookstore/internal/security"
	"github.com/gin-gonic/gin"
)

const (
	HeaderVerify = "X-VERIFY"

	ctxRawBody        = "raw_body"
	callbackBodyLimit = 64 * 1024
)

type ChecksumVerify struct {
	cs security.ChecksumService
}

func NewChecksumVerify(cs security.ChecksumService) *ChecksumVerify {
	return &ChecksumVerify{cs: cs}
}

// Verify rejects a request whose X-VERIFY header does not match the raw body.
// The exact bytes that were verified are kept on the context and restored as the body.
func (cv *ChecksumVerify) Verify() gin.HandlerFunc {
	return func(c *gin.Context) {
		// --- Read raw body ---
		rawBody, err := io.ReadAll(io.LimitReader(c.Request.Body, callbackBodyLimit+1))
		_ = c.Request.Body.Close()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
			return
		}
		if len(rawBody) > callbackBodyLimit {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "body too large"})
			return
		}

		if err := cv.cs.Verify(rawBody, c.GetHeader(HeaderVerify)); err != nil {
			metrics.PaymentCallbacks.WithLabelValues("invalid_checksum").Inc()
			logging.From(c).Warn("callback rejected", "event", "security.invalid_checksum", "err", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_checksum"})
			return
		}

		c.Set(ctxRawBody, rawBody)
		c.Request.Body = io.NopCloser(bytes.NewReader(rawBody))
		c.Request.ContentLength = int64(len(rawBody))
		c.Next()
	}
}

// RawBody returns the verified body captured by Verify.
func RawBody(c *gin.Context) ([]byte, bool) {
	v, ok := c.Get(ctxRawBody)
	if !ok {
		return nil, false
	}
	b, ok := v.([]byte)
	return b, ok
}
